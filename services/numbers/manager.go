// Package numbers implements the rental lifecycle: searching available
// numbers, purchasing, reading the first inbound code, and releasing.
package numbers

import (
	"context"
	"errors"
	"fmt"

	"github.com/waygroup/numbot/bot/session"
	"github.com/waygroup/numbot/core/logger"
	"github.com/waygroup/numbot/services/ledger"
	"github.com/waygroup/numbot/services/telephony"
	"log/slog"
)

// ErrAlreadyOwnsNumber is returned when a purchase is attempted while
// the session already holds a rented number.
var ErrAlreadyOwnsNumber = errors.New("numbers: session already owns a number")

// ErrNoneAvailable is returned when a search yields no purchasable numbers.
var ErrNoneAvailable = errors.New("numbers: no numbers available")

// ErrProviderRejected wraps a provider-side purchase failure. The usual
// cause is a suspended or unfunded account.
var ErrProviderRejected = errors.New("numbers: provider rejected the purchase")

// Options configure the Manager.
type Options struct {
	// Country is the two-letter search country, e.g. "CA".
	Country string
	// SearchLimit caps how many candidates a search returns.
	SearchLimit int
}

// InboxResult is the outcome of reading a rented number's inbox.
type InboxResult struct {
	Number string
	From   string
	Body   string
	// Code is the extracted verification code, or CodeNotFound.
	Code string
	// Released reports whether the number was returned after the read.
	Released bool
}

// Manager drives number rentals for authenticated sessions.
type Manager struct {
	store  *session.Store
	ledger *ledger.Ledger
	opts   Options
}

// NewManager builds a Manager. ledger may be nil-backed; writes are
// best-effort either way.
func NewManager(store *session.Store, led *ledger.Ledger, opts Options) *Manager {
	if opts.Country == "" {
		opts.Country = "CA"
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 60
	}
	return &Manager{store: store, ledger: led, opts: opts}
}

// Search lists purchasable numbers for the area code. areaCode 0 means
// any. Returns ErrNoneAvailable when the provider has nothing to offer,
// so callers can distinguish an empty market from a failed call.
func (m *Manager) Search(ctx context.Context, provider telephony.Provider, areaCode int) ([]telephony.AvailableNumber, error) {
	found, err := provider.SearchLocal(ctx, m.opts.Country, areaCode, m.opts.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("numbers: search: %w", err)
	}
	logger.SVCNumbers.LogAttrs(ctx, slog.LevelInfo, "search.done",
		slog.Int("area_code", areaCode),
		slog.String("country", m.opts.Country),
		slog.Int("found", len(found)),
	)
	if len(found) == 0 {
		return nil, ErrNoneAvailable
	}
	return found, nil
}

// Purchase buys the number for the user. The one-number-per-session
// invariant is checked before any provider call, so a rejected purchase
// never spends money.
func (m *Manager) Purchase(ctx context.Context, userID int64, provider telephony.Provider, phoneNumber string) (*telephony.IncomingNumber, error) {
	sess := m.store.Get(userID)
	if len(sess.Numbers) > 0 {
		logger.SVCNumbers.LogAttrs(ctx, slog.LevelInfo, "purchase.rejected",
			slog.Int64("user_id", userID),
			slog.String("reason", "already_owns"),
		)
		return nil, ErrAlreadyOwnsNumber
	}

	bought, err := provider.Purchase(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderRejected, phoneNumber, err)
	}

	m.store.AppendNumber(userID, bought.SID)
	m.ledger.Record(ctx, ledger.Event{
		UserID:    userID,
		Action:    ledger.ActionPurchase,
		Number:    bought.PhoneNumber,
		NumberSID: bought.SID,
	})
	logger.SVCNumbers.LogAttrs(ctx, slog.LevelInfo, "number.purchased",
		slog.Int64("user_id", userID),
		slog.String("number", bought.PhoneNumber),
		slog.String("number_sid", bought.SID),
	)
	return bought, nil
}

// Release returns the number to the provider and drops the SID from the
// session. A SID the provider no longer knows is treated as already
// released: the session is still cleaned up and ErrNotFound propagates
// so the caller can word the reply. The released phone number is
// returned for display when the lookup succeeded.
func (m *Manager) Release(ctx context.Context, userID int64, provider telephony.Provider, numberSID string) (string, error) {
	owned, err := provider.FetchNumber(ctx, numberSID)
	if err != nil {
		if errors.Is(err, telephony.ErrNotFound) {
			m.store.RemoveNumber(userID, numberSID)
			return "", telephony.ErrNotFound
		}
		return "", fmt.Errorf("numbers: release lookup %s: %w", numberSID, err)
	}

	if err := provider.Release(ctx, numberSID); err != nil {
		return "", fmt.Errorf("numbers: release %s: %w", numberSID, err)
	}

	m.store.RemoveNumber(userID, numberSID)
	m.ledger.Record(ctx, ledger.Event{
		UserID:    userID,
		Action:    ledger.ActionRelease,
		Number:    owned.PhoneNumber,
		NumberSID: numberSID,
	})
	logger.SVCNumbers.LogAttrs(ctx, slog.LevelInfo, "number.released",
		slog.Int64("user_id", userID),
		slog.String("number", owned.PhoneNumber),
		slog.String("number_sid", numberSID),
	)
	return owned.PhoneNumber, nil
}

// FetchLatestCode reads the newest inbound SMS for the rented number
// and, when one exists, extracts the code and releases the number.
// Numbers are single-use: a read inbox means the rental served its
// purpose. Returns nil when the inbox is empty; the rental then stays
// active.
func (m *Manager) FetchLatestCode(ctx context.Context, userID int64, provider telephony.Provider, numberSID string) (*InboxResult, error) {
	owned, err := provider.FetchNumber(ctx, numberSID)
	if err != nil {
		return nil, fmt.Errorf("numbers: inbox lookup %s: %w", numberSID, err)
	}

	msg, err := provider.LatestMessage(ctx, owned.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("numbers: inbox %s: %w", owned.PhoneNumber, err)
	}
	if msg == nil {
		logger.SVCInbox.LogAttrs(ctx, slog.LevelInfo, "inbox.empty",
			slog.Int64("user_id", userID),
			slog.String("number", owned.PhoneNumber),
		)
		return nil, nil
	}

	result := &InboxResult{
		Number: owned.PhoneNumber,
		From:   msg.From,
		Body:   msg.Body,
		Code:   ExtractCode(msg.Body),
	}
	m.ledger.Record(ctx, ledger.Event{
		UserID:    userID,
		Action:    ledger.ActionInboxRead,
		Number:    owned.PhoneNumber,
		NumberSID: numberSID,
	})
	logger.SVCInbox.LogAttrs(ctx, slog.LevelInfo, "inbox.read",
		slog.Int64("user_id", userID),
		slog.String("number", owned.PhoneNumber),
		slog.Bool("otp_found", result.Code != CodeNotFound),
	)

	// Auto-release is best-effort. The operator already has the code,
	// so a failed release must not hide it.
	switch _, err := m.Release(ctx, userID, provider, numberSID); {
	case err == nil, errors.Is(err, telephony.ErrNotFound):
		result.Released = true
	default:
		logger.SVCInbox.LogAttrs(ctx, slog.LevelWarn, "inbox.release_failed",
			slog.Int64("user_id", userID),
			slog.String("number", owned.PhoneNumber),
			slog.String("err", err.Error()),
		)
	}

	return result, nil
}
