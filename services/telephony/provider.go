// Package telephony abstracts the phone-number provider so the rest of
// the bot talks to a small interface instead of the Twilio SDK.
package telephony

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the provider has no such resource,
// typically a number that was already released.
var ErrNotFound = errors.New("telephony: resource not found")

// Account is the provider account the operator logged in with.
type Account struct {
	SID          string
	FriendlyName string
	// Status is the provider account status, e.g. "active", "suspended", "closed".
	Status string
}

// AvailableNumber is a purchasable local number.
type AvailableNumber struct {
	PhoneNumber  string
	FriendlyName string
	Locality     string
	Region       string
}

// IncomingNumber is a number owned by the account.
type IncomingNumber struct {
	SID         string
	PhoneNumber string
}

// Message is an inbound SMS as seen by the provider.
type Message struct {
	SID      string
	From     string
	To       string
	Body     string
	DateSent time.Time
}

// Provider is the operator-scoped telephony API. An implementation is
// bound to one SID/token pair; a new login builds a new Provider.
type Provider interface {
	// FetchAccount returns the account the credentials belong to.
	FetchAccount(ctx context.Context) (*Account, error)

	// SearchLocal lists purchasable local numbers in the given country,
	// optionally narrowed to an area code (0 means any).
	SearchLocal(ctx context.Context, country string, areaCode int, limit int) ([]AvailableNumber, error)

	// Purchase buys the exact number in E.164 form.
	Purchase(ctx context.Context, phoneNumber string) (*IncomingNumber, error)

	// FetchNumber resolves an owned number SID to its provider record.
	// Returns ErrNotFound when the account does not own it.
	FetchNumber(ctx context.Context, numberSID string) (*IncomingNumber, error)

	// Release deletes the number from the account by SID.
	Release(ctx context.Context, numberSID string) error

	// LatestMessage returns the newest inbound SMS for the number,
	// or nil when the inbox is empty.
	LatestMessage(ctx context.Context, phoneNumber string) (*Message, error)
}

// Factory builds a Provider for a SID/token pair. It exists so login
// handlers can be tested without the real SDK.
type Factory func(accountSID, authToken string) Provider
