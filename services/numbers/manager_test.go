package numbers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waygroup/numbot/bot/session"
	"github.com/waygroup/numbot/services/telephony"
	"github.com/waygroup/numbot/services/telephony/telephonytest"
)

func newManager(store *session.Store) *Manager {
	return NewManager(store, nil, Options{Country: "CA", SearchLimit: 60})
}

func TestSearchDistinguishesEmptyFromFailure(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	ctx := context.Background()

	stub := telephonytest.NewStub()
	_, err := mgr.Search(ctx, stub, 416)
	assert.ErrorIs(t, err, ErrNoneAvailable)

	stub.SearchErr = errors.New("boom")
	_, err = mgr.Search(ctx, stub, 416)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoneAvailable)

	stub.SearchErr = nil
	stub.Available = []telephony.AvailableNumber{{PhoneNumber: "+14165550100"}}
	found, err := mgr.Search(ctx, stub, 416)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestPurchaseEnforcesSingleNumber(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	stub := telephonytest.NewStub()
	ctx := context.Background()

	bought, err := mgr.Purchase(ctx, 1, stub, "+14165550100")
	require.NoError(t, err)
	assert.Equal(t, []string{bought.SID}, store.Get(1).Numbers)

	_, err = mgr.Purchase(ctx, 1, stub, "+14165550101")
	assert.ErrorIs(t, err, ErrAlreadyOwnsNumber)
	assert.Equal(t, 1, stub.Calls("Purchase"), "rejected purchase must not reach the provider")
	assert.Len(t, store.Get(1).Numbers, 1)
}

func TestPurchaseFailureLeavesSessionClean(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	stub := telephonytest.NewStub()
	stub.PurchaseErr = errors.New("payment required")
	ctx := context.Background()

	_, err := mgr.Purchase(ctx, 1, stub, "+14165550100")
	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.ErrorContains(t, err, "payment required")
	assert.Empty(t, store.Get(1).Numbers)
}

func TestReleaseRemovesFromSession(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	stub := telephonytest.NewStub()
	ctx := context.Background()

	bought, err := mgr.Purchase(ctx, 1, stub, "+14165550100")
	require.NoError(t, err)

	number, err := mgr.Release(ctx, 1, stub, bought.SID)
	require.NoError(t, err)
	assert.Equal(t, "+14165550100", number)
	assert.Empty(t, store.Get(1).Numbers)
	assert.Equal(t, 1, stub.Calls("Release"))
}

func TestReleaseUnknownNumberStillCleansSession(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	stub := telephonytest.NewStub()
	ctx := context.Background()

	store.AppendNumber(1, "PNgone")
	_, err := mgr.Release(ctx, 1, stub, "PNgone")
	assert.ErrorIs(t, err, telephony.ErrNotFound)
	assert.Empty(t, store.Get(1).Numbers)
	assert.Equal(t, 0, stub.Calls("Release"))
}

func TestFetchLatestCodeEmptyInboxKeepsRental(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	stub := telephonytest.NewStub()
	ctx := context.Background()

	bought, err := mgr.Purchase(ctx, 1, stub, "+14165550100")
	require.NoError(t, err)

	result, err := mgr.FetchLatestCode(ctx, 1, stub, bought.SID)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []string{bought.SID}, store.Get(1).Numbers)
	assert.Equal(t, 0, stub.Calls("Release"))
}

func TestFetchLatestCodeReadsAndReleases(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	stub := telephonytest.NewStub()
	ctx := context.Background()

	bought, err := mgr.Purchase(ctx, 1, stub, "+14165550100")
	require.NoError(t, err)
	stub.Inbox["+14165550100"] = &telephony.Message{
		From: "+15005550006",
		Body: "Your WhatsApp code is 482-910",
	}

	result, err := mgr.FetchLatestCode(ctx, 1, stub, bought.SID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "482910", result.Code)
	assert.Equal(t, "+14165550100", result.Number)
	assert.True(t, result.Released)
	assert.Empty(t, store.Get(1).Numbers)
	assert.Equal(t, 1, stub.Calls("Release"))
}

func TestFetchLatestCodeWithoutOTP(t *testing.T) {
	store := session.NewStore()
	mgr := newManager(store)
	stub := telephonytest.NewStub()
	ctx := context.Background()

	bought, err := mgr.Purchase(ctx, 1, stub, "+14165550100")
	require.NoError(t, err)
	stub.Inbox["+14165550100"] = &telephony.Message{Body: "hello world"}

	result, err := mgr.FetchLatestCode(ctx, 1, stub, bought.SID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, CodeNotFound, result.Code)
	assert.True(t, result.Released)
}
