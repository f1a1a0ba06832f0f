// Package ui holds the operator-facing message texts and keyboards.
package ui

import "fmt"

// Reply keyboard labels. Routing matches on these exact strings.
const (
	LabelLogin      = "🔐 Login"
	LabelBuyNumbers = "📱 Buy Numbers"
	LabelBuySID     = "🛒 Buy SID"
	LabelContactUs  = "📞 Contact Us"
	LabelLogout     = "🔓 Logout"
)

// Static texts.
const (
	TextWelcome         = "Welcome! Please login below:"
	TextWelcomeBack     = "Welcome back! Please login below:"
	TextEnterUsername   = "👤 Enter your username:"
	TextUsernameOK      = "✅ Username approved.\n\nPlease send your Key 🔑:"
	TextNotAuthorized   = "❌ You are not authorized to login."
	TextLoggedIn        = "You are successfully logged in ✅"
	TextChooseOption    = "Choose an option below:"
	TextInvalidKey      = "Your Key is Invalid ❌"
	TextLoggedOut       = "You have been logged out. Please log in again to continue."
	TextSendKey         = "Please send your Key 🔑."
	TextLoginFirst      = "Please login first ✅."
	TextEnterAreaCode   = "📍Enter Area Code:"
	TextNoNumbersFound  = "❌ No numbers found for this area code ❌."
	TextSearchFailed    = "❌ Failed to fetch numbers ❌"
	TextChooseNumber    = "Choose a number below:"
	TextAlreadyOwns     = "🚫 You have already purchased a number 🚫. Please delete it first ✅."
	TextKeySuspended    = "🚫 Your key is suspended 🚫"
	TextSuspendedLogout = "Your key is suspended. You need to logout."
	TextInboxEmpty      = "❌ Your Inbox Is Empty ❌."
	TextDeleteFailed    = "🚫 Failed to delete the number. Maybe already deleted or invalid key."
	TextBuyUsage        = "⚠️ Please provide an area code. Example: /buy 416"
)

// AvailableNumbers renders the markdown list shown before the picker keyboard.
func AvailableNumbers(numbers []string) string {
	list := ""
	for i, n := range numbers {
		if i > 0 {
			list += "\n"
		}
		list += n
	}
	return fmt.Sprintf("*Available Numbers:*\n\n%s\n\nChoose a phone number below ⬇️", list)
}

// Purchased renders the tracked confirmation message.
func Purchased(number string) string {
	return fmt.Sprintf("Successfully Purchased ✅\n%s", number)
}

// OTPSummary renders the markdown block shown when an inbound code arrives.
func OTPSummary(code, app, number, country, timestamp string) string {
	return fmt.Sprintf(
		"📬 *New OTP Detected!*\n\n🔐 *OTP:* `%s`\n📱 *App:* %s\n📞 *Number:* %s\n🌍 *Country:* %s\n🕒 *Time:* %s",
		code, app, number, country, timestamp,
	)
}

// FullMessage renders the raw SMS body in a code block.
func FullMessage(body string) string {
	return fmt.Sprintf("*Full Message:*\n```\n%s\n```", body)
}

// NumberReleased renders the auto-release notice after an inbox read.
func NumberReleased(number string) string {
	return fmt.Sprintf("♻️ The number %s has been deleted.", number)
}

// NumberDeleted renders the manual delete confirmation.
func NumberDeleted(number string) string {
	return fmt.Sprintf("🗑️ Number %s has been deleted.", number)
}

// ShopPointer renders the Buy SID pointer.
func ShopPointer(url string) string {
	return fmt.Sprintf("Wanna buy a Key ❓❓ Go here ⬇️: %s", url)
}

// ContactList renders the Contact Us reply from configured mentor handles.
func ContactList(mentors []string) string {
	out := "Contact Work Together Group's Mentors 🔔:"
	for _, m := range mentors {
		out += "\n" + m
	}
	return out
}
