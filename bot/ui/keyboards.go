package ui

import (
	"github.com/waygroup/numbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Callback keys. Payload follows after ':' in the button data.
const (
	CallbackLogin     = "login"
	CallbackBuyMenu   = "buy_numbers"
	CallbackBuy       = "buy"
	CallbackManualBuy = "manual_buy"
	CallbackInbox     = "inbox"
	CallbackDelete    = "delete"
	CallbackLogout    = "logout"
)

// LoginKeyboard is the one-button reply keyboard shown to logged-out users.
func LoginKeyboard() *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{LabelLogin})
}

// MainMenuKeyboard is the reply keyboard for authenticated operators.
func MainMenuKeyboard() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{LabelBuyNumbers, LabelBuySID},
		[]string{LabelContactUs, LabelLogout},
	)
}

// NumberPicker lays out the search results two buttons per row.
func NumberPicker(numbers []string) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(numbers))
	for _, n := range numbers {
		buttons = append(buttons, keyboard.InlineBtn{
			Text: n,
			Data: CallbackBuy + ":" + n,
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 2)
}

// ManualBuyButton offers a one-tap purchase of a pasted number.
func ManualBuyButton(number string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "Buy", Data: CallbackManualBuy + ":" + number},
	})
}

// PurchasedActions attaches inbox and delete buttons to the confirmation.
func PurchasedActions(numberSID string) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Show Inbox 📥", Data: CallbackInbox + ":" + numberSID},
		{Text: "🗑️ Delete", Data: CallbackDelete + ":" + numberSID},
	})
}

// LogoutButton is attached to suspended-key replies.
func LogoutButton() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: LabelLogout, Data: CallbackLogout},
	})
}
