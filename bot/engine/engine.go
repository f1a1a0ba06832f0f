// Package engine implements the operator conversation as a transition
// table over session steps. It consumes classified input and emits
// presentation Events, keeping Telegram transport concerns out of the
// dialog logic so the whole flow is testable against a stub provider.
package engine

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/waygroup/numbot/bot/session"
	"github.com/waygroup/numbot/bot/ui"
	"github.com/waygroup/numbot/services/auth"
	"github.com/waygroup/numbot/services/numbers"
	"github.com/waygroup/numbot/services/telephony"
)

// tryLaterRe matches forwarded "try later" markers carrying a bare number.
var tryLaterRe = regexp.MustCompile(`(\d{10,11})\s*🟡\s*Try later`)

// Options carry the presentation knobs the engine needs.
type Options struct {
	// ShopURL is the Buy SID pointer target.
	ShopURL string
	// Mentors are the contact handles listed under Contact Us.
	Mentors []string
	// CountryName is the display name used in OTP summaries.
	CountryName string
	// Now is the clock for OTP timestamps; nil means time.Now.
	Now func() time.Time
}

// Engine drives the login and rental dialogs for all operators.
type Engine struct {
	store   *session.Store
	gate    *auth.Gate
	manager *numbers.Manager
	factory telephony.Factory
	opts    Options
}

// New wires the engine. The factory rebuilds a provider from the
// session's stored credentials on demand.
func New(store *session.Store, gate *auth.Gate, manager *numbers.Manager, factory telephony.Factory, opts Options) *Engine {
	if opts.CountryName == "" {
		opts.CountryName = "Canada"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:   store,
		gate:    gate,
		manager: manager,
		factory: factory,
		opts:    opts,
	}
}

// InProgress reports whether free text should be treated as a dialog step.
func (e *Engine) InProgress(userID int64) bool {
	return e.store.InProgress(userID)
}

func (e *Engine) provider(sess *session.Session) telephony.Provider {
	if sess == nil || sess.Creds == nil {
		return nil
	}
	return e.factory(sess.Creds.AccountSID, sess.Creds.AuthToken)
}

// Start handles /start.
func (e *Engine) Start(ctx context.Context, userID int64) []Event {
	return []Event{sendKB(ui.TextWelcome, ui.LoginKeyboard())}
}

// HandleText classifies a free-text message and advances the dialog.
// Classification order follows the transition table: try-later marker,
// login trigger, pending step, pasted number, menu label, fallback.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) []Event {
	text = strings.TrimSpace(text)

	if m := tryLaterRe.FindStringSubmatch(text); m != nil {
		number := "+" + m[1]
		return []Event{sendKB(number, ui.ManualBuyButton(number))}
	}

	if text == ui.LabelLogin {
		e.store.SetStep(userID, session.StepAwaitingUsername)
		return []Event{send(ui.TextEnterUsername)}
	}

	sess := e.store.Get(userID)

	switch sess.Step {
	case session.StepAwaitingUsername:
		return e.handleUsername(ctx, userID, text)
	case session.StepAwaitingSidToken:
		if lines := splitCredentials(text); lines != nil {
			return e.handleCredentials(ctx, userID, lines[0], lines[1])
		}
		// Not a two-line block; fall through to the other classifications.
	case session.StepAwaitingAreaCode:
		e.store.SetStep(userID, session.StepIdle)
		return e.searchNumbers(ctx, userID, text)
	}

	if strings.HasPrefix(text, "+") {
		return []Event{sendMD(text, ui.ManualBuyButton(text))}
	}

	switch text {
	case ui.LabelBuyNumbers:
		if !sess.Authenticated() {
			return []Event{send(ui.TextLoginFirst)}
		}
		e.store.SetStep(userID, session.StepAwaitingAreaCode)
		return []Event{send(ui.TextEnterAreaCode)}
	case ui.LabelBuySID:
		return []Event{send(ui.ShopPointer(e.opts.ShopURL))}
	case ui.LabelContactUs:
		return []Event{send(ui.ContactList(e.opts.Mentors))}
	case ui.LabelLogout:
		e.store.Reset(userID)
		return []Event{sendKB(ui.TextLoggedOut, ui.LoginKeyboard())}
	}

	return []Event{send(ui.TextSendKey)}
}

// BuyCommand handles /buy <areacode>.
func (e *Engine) BuyCommand(ctx context.Context, userID int64, args []string) []Event {
	sess := e.store.Get(userID)
	if !sess.Authenticated() {
		return []Event{send(ui.TextLoginFirst)}
	}
	if len(args) != 1 {
		return []Event{send(ui.TextBuyUsage)}
	}
	return e.searchNumbers(ctx, userID, args[0])
}

// HandleCallback dispatches an inline button press.
func (e *Engine) HandleCallback(ctx context.Context, userID int64, key, payload string) []Event {
	switch key {
	case ui.CallbackLogin:
		e.store.SetStep(userID, session.StepAwaitingUsername)
		return []Event{send(ui.TextEnterUsername)}
	case ui.CallbackBuyMenu:
		sess := e.store.Get(userID)
		if !sess.Authenticated() {
			return []Event{send(ui.TextLoginFirst)}
		}
		e.store.SetStep(userID, session.StepAwaitingAreaCode)
		return []Event{send(ui.TextEnterAreaCode)}
	case ui.CallbackBuy, ui.CallbackManualBuy:
		return e.buyNumber(ctx, userID, payload)
	case ui.CallbackInbox:
		return e.readInbox(ctx, userID, payload)
	case ui.CallbackDelete:
		return e.deleteNumber(ctx, userID, payload)
	case ui.CallbackLogout:
		e.store.Reset(userID)
		return []Event{
			send(ui.TextLoggedOut),
			sendKB(ui.TextWelcomeBack, ui.LoginKeyboard()),
		}
	}
	return nil
}

func (e *Engine) handleUsername(ctx context.Context, userID int64, username string) []Event {
	if err := e.gate.CheckUsername(ctx, username); err != nil {
		// Step stays at AwaitingUsername so the operator can retry.
		return []Event{send(ui.TextNotAuthorized)}
	}
	e.store.SetPendingUsername(userID, username)
	e.store.SetStep(userID, session.StepAwaitingSidToken)
	return []Event{send(ui.TextUsernameOK)}
}

func (e *Engine) handleCredentials(ctx context.Context, userID int64, accountSID, authToken string) []Event {
	_, err := e.gate.ValidateCredentials(ctx, accountSID, authToken)
	if err != nil {
		e.store.SetStep(userID, session.StepIdle)
		if errors.Is(err, auth.ErrAccountDisabled) {
			return []Event{
				send(ui.TextInvalidKey),
				sendKB(ui.TextSuspendedLogout, ui.LogoutButton()),
			}
		}
		return []Event{send(ui.TextInvalidKey)}
	}

	e.store.SetCredentials(userID, session.Credentials{
		AccountSID: strings.TrimSpace(accountSID),
		AuthToken:  strings.TrimSpace(authToken),
	})
	return []Event{
		send(ui.TextLoggedIn),
		sendKB(ui.TextChooseOption, ui.MainMenuKeyboard()),
	}
}

func (e *Engine) searchNumbers(ctx context.Context, userID int64, areaCodeText string) []Event {
	sess := e.store.Get(userID)
	provider := e.provider(sess)
	if provider == nil {
		return []Event{send(ui.TextLoginFirst)}
	}

	areaCode, err := strconv.Atoi(strings.TrimSpace(areaCodeText))
	if err != nil || areaCode <= 0 {
		return []Event{send(ui.TextSearchFailed)}
	}

	found, err := e.manager.Search(ctx, provider, areaCode)
	if errors.Is(err, numbers.ErrNoneAvailable) {
		return []Event{send(ui.TextNoNumbersFound)}
	}
	if err != nil {
		return []Event{send(ui.TextSearchFailed)}
	}

	list := make([]string, 0, len(found))
	for _, n := range found {
		list = append(list, n.PhoneNumber)
	}
	return []Event{
		sendMD(ui.AvailableNumbers(list), nil),
		sendKB(ui.TextChooseNumber, ui.NumberPicker(list)),
	}
}

func (e *Engine) buyNumber(ctx context.Context, userID int64, number string) []Event {
	sess := e.store.Get(userID)
	provider := e.provider(sess)
	if provider == nil {
		return []Event{send(ui.TextLoginFirst)}
	}

	bought, err := e.manager.Purchase(ctx, userID, provider, number)
	if errors.Is(err, numbers.ErrAlreadyOwnsNumber) {
		return []Event{send(ui.TextAlreadyOwns)}
	}
	if err != nil {
		return []Event{
			send(ui.TextKeySuspended),
			sendKB(ui.TextSuspendedLogout, ui.LogoutButton()),
		}
	}

	return []Event{
		{Kind: KindRetractSource},
		{
			Kind:     KindSend,
			Text:     ui.Purchased(bought.PhoneNumber),
			Markup:   ui.PurchasedActions(bought.SID),
			Markdown: true,
			Track:    true,
		},
	}
}

func (e *Engine) readInbox(ctx context.Context, userID int64, numberSID string) []Event {
	sess := e.store.Get(userID)
	provider := e.provider(sess)
	if provider == nil {
		return []Event{send(ui.TextLoginFirst)}
	}

	result, err := e.manager.FetchLatestCode(ctx, userID, provider, numberSID)
	if err != nil {
		return []Event{
			send(ui.TextKeySuspended),
			sendKB(ui.TextSuspendedLogout, ui.LogoutButton()),
		}
	}
	if result == nil {
		return []Event{send(ui.TextInboxEmpty)}
	}

	timestamp := e.opts.Now().Format("2006-01-02 15:04:05")
	events := []Event{
		sendMD(ui.OTPSummary(result.Code, "WhatsApp", result.Number, e.opts.CountryName, timestamp), nil),
		sendMD(ui.FullMessage(result.Body), nil),
	}
	if result.Released {
		events = append(events,
			send(ui.NumberReleased(result.Number)),
			Event{Kind: KindRetractTracked},
		)
	}
	return events
}

func (e *Engine) deleteNumber(ctx context.Context, userID int64, numberSID string) []Event {
	sess := e.store.Get(userID)
	provider := e.provider(sess)
	if provider == nil {
		return []Event{send(ui.TextLoginFirst)}
	}

	number, err := e.manager.Release(ctx, userID, provider, numberSID)
	if err != nil {
		return []Event{send(ui.TextDeleteFailed)}
	}
	return []Event{
		send(ui.NumberDeleted(number)),
		{Kind: KindRetractTracked},
	}
}

// splitCredentials accepts exactly two non-empty lines and returns them
// trimmed, or nil when the input is not a credential block.
func splitCredentials(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		return nil
	}
	sid := strings.TrimSpace(lines[0])
	token := strings.TrimSpace(lines[1])
	if sid == "" || token == "" {
		return nil
	}
	return []string{sid, token}
}
