// Package telephonytest provides a scriptable Provider for tests.
package telephonytest

import (
	"context"
	"sync"

	"github.com/waygroup/numbot/services/telephony"
)

// Stub implements telephony.Provider from fixed fields and counts every
// call, so tests can assert both outcomes and side effects.
type Stub struct {
	mu    sync.Mutex
	calls map[string]int

	Account    *telephony.Account
	AccountErr error

	Available []telephony.AvailableNumber
	SearchErr error

	Purchased   *telephony.IncomingNumber
	PurchaseErr error

	Owned    map[string]*telephony.IncomingNumber
	FetchErr error

	ReleaseErr error

	Inbox      map[string]*telephony.Message
	MessageErr error
}

// NewStub returns an empty stub with call counting enabled.
func NewStub() *Stub {
	return &Stub{
		calls: make(map[string]int),
		Owned: make(map[string]*telephony.IncomingNumber),
		Inbox: make(map[string]*telephony.Message),
	}
}

// Factory returns a telephony.Factory that always hands out this stub.
func (s *Stub) Factory() telephony.Factory {
	return func(accountSID, authToken string) telephony.Provider {
		return s
	}
}

// Calls reports how many times the named method ran.
func (s *Stub) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Stub) count(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
}

func (s *Stub) FetchAccount(ctx context.Context) (*telephony.Account, error) {
	s.count("FetchAccount")
	if s.AccountErr != nil {
		return nil, s.AccountErr
	}
	return s.Account, nil
}

func (s *Stub) SearchLocal(ctx context.Context, country string, areaCode int, limit int) ([]telephony.AvailableNumber, error) {
	s.count("SearchLocal")
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if limit > 0 && len(s.Available) > limit {
		return s.Available[:limit], nil
	}
	return s.Available, nil
}

func (s *Stub) Purchase(ctx context.Context, phoneNumber string) (*telephony.IncomingNumber, error) {
	s.count("Purchase")
	if s.PurchaseErr != nil {
		return nil, s.PurchaseErr
	}
	if s.Purchased != nil {
		return s.Purchased, nil
	}
	bought := &telephony.IncomingNumber{SID: "PN" + phoneNumber, PhoneNumber: phoneNumber}
	s.mu.Lock()
	s.Owned[bought.SID] = bought
	s.mu.Unlock()
	return bought, nil
}

func (s *Stub) FetchNumber(ctx context.Context, numberSID string) (*telephony.IncomingNumber, error) {
	s.count("FetchNumber")
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	s.mu.Lock()
	owned, ok := s.Owned[numberSID]
	s.mu.Unlock()
	if !ok {
		return nil, telephony.ErrNotFound
	}
	return owned, nil
}

func (s *Stub) Release(ctx context.Context, numberSID string) error {
	s.count("Release")
	if s.ReleaseErr != nil {
		return s.ReleaseErr
	}
	s.mu.Lock()
	delete(s.Owned, numberSID)
	s.mu.Unlock()
	return nil
}

func (s *Stub) LatestMessage(ctx context.Context, phoneNumber string) (*telephony.Message, error) {
	s.count("LatestMessage")
	if s.MessageErr != nil {
		return nil, s.MessageErr
	}
	s.mu.Lock()
	msg := s.Inbox[phoneNumber]
	s.mu.Unlock()
	return msg, nil
}
