package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waygroup/numbot/bot/session"
	"github.com/waygroup/numbot/bot/ui"
	"github.com/waygroup/numbot/services/auth"
	"github.com/waygroup/numbot/services/numbers"
	"github.com/waygroup/numbot/services/telephony"
	"github.com/waygroup/numbot/services/telephony/telephonytest"
)

type fixture struct {
	engine *Engine
	store  *session.Store
	stub   *telephonytest.Stub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "allowed_users.txt")
	require.NoError(t, os.WriteFile(path, []byte("alice\n"), 0o600))

	stub := telephonytest.NewStub()
	stub.Account = &telephony.Account{SID: "AC1", Status: "active"}

	store := session.NewStore()
	gate := auth.NewGate(path, stub.Factory())
	manager := numbers.NewManager(store, nil, numbers.Options{Country: "CA", SearchLimit: 60})

	eng := New(store, gate, manager, stub.Factory(), Options{
		ShopURL:     "https://example.test/shop",
		Mentors:     []string{"@mentor"},
		CountryName: "Canada",
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return &fixture{engine: eng, store: store, stub: stub}
}

func (f *fixture) login(t *testing.T, userID int64) {
	t.Helper()
	ctx := context.Background()
	f.engine.HandleText(ctx, userID, ui.LabelLogin)
	f.engine.HandleText(ctx, userID, "alice")
	events := f.engine.HandleText(ctx, userID, "AC1\ntoken")
	require.NotEmpty(t, events)
	require.Equal(t, ui.TextLoggedIn, events[0].Text)
}

func texts(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Kind == KindSend {
			out = append(out, ev.Text)
		}
	}
	return out
}

func TestLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events := f.engine.Start(ctx, 1)
	require.Len(t, events, 1)
	assert.Equal(t, ui.TextWelcome, events[0].Text)
	assert.NotNil(t, events[0].Markup)

	events = f.engine.HandleText(ctx, 1, ui.LabelLogin)
	assert.Equal(t, []string{ui.TextEnterUsername}, texts(events))
	assert.Equal(t, session.StepAwaitingUsername, f.store.Get(1).Step)

	events = f.engine.HandleText(ctx, 1, "mallory")
	assert.Equal(t, []string{ui.TextNotAuthorized}, texts(events))
	assert.Equal(t, session.StepAwaitingUsername, f.store.Get(1).Step, "step unchanged after rejection")

	events = f.engine.HandleText(ctx, 1, "alice")
	assert.Equal(t, []string{ui.TextUsernameOK}, texts(events))
	assert.Equal(t, session.StepAwaitingSidToken, f.store.Get(1).Step)

	events = f.engine.HandleText(ctx, 1, "AC1\ntoken")
	require.Len(t, events, 2)
	assert.Equal(t, ui.TextLoggedIn, events[0].Text)
	assert.Equal(t, ui.TextChooseOption, events[1].Text)
	assert.True(t, f.store.Get(1).Authenticated())
	assert.Equal(t, session.StepIdle, f.store.Get(1).Step)
}

func TestCredentialBlockMustBeTwoLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.HandleText(ctx, 1, ui.LabelLogin)
	f.engine.HandleText(ctx, 1, "alice")

	events := f.engine.HandleText(ctx, 1, "just one line")
	assert.Equal(t, []string{ui.TextSendKey}, texts(events))
	assert.Equal(t, session.StepAwaitingSidToken, f.store.Get(1).Step)
	assert.Equal(t, 0, f.stub.Calls("FetchAccount"))
}

func TestInvalidKeyEndsLoginCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stub.AccountErr = assert.AnError

	f.engine.HandleText(ctx, 1, ui.LabelLogin)
	f.engine.HandleText(ctx, 1, "alice")
	events := f.engine.HandleText(ctx, 1, "AC1\nbad")

	assert.Equal(t, []string{ui.TextInvalidKey}, texts(events))
	assert.False(t, f.store.Get(1).Authenticated())
	assert.Equal(t, session.StepIdle, f.store.Get(1).Step)
}

func TestSuspendedAccountOffersLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stub.Account = &telephony.Account{SID: "AC1", Status: "suspended"}

	f.engine.HandleText(ctx, 1, ui.LabelLogin)
	f.engine.HandleText(ctx, 1, "alice")
	events := f.engine.HandleText(ctx, 1, "AC1\ntoken")

	require.Len(t, events, 2)
	assert.Equal(t, ui.TextInvalidKey, events[0].Text)
	assert.Equal(t, ui.TextSuspendedLogout, events[1].Text)
	assert.NotNil(t, events[1].Markup)
}

func TestAreaCodeSearchFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1)
	f.stub.Available = []telephony.AvailableNumber{
		{PhoneNumber: "+14165550100"},
		{PhoneNumber: "+14165550101"},
	}

	events := f.engine.HandleText(ctx, 1, ui.LabelBuyNumbers)
	assert.Equal(t, []string{ui.TextEnterAreaCode}, texts(events))
	assert.Equal(t, session.StepAwaitingAreaCode, f.store.Get(1).Step)

	events = f.engine.HandleText(ctx, 1, "416")
	require.Len(t, events, 2)
	assert.True(t, events[0].Markdown)
	assert.Contains(t, events[0].Text, "+14165550100")
	assert.Equal(t, ui.TextChooseNumber, events[1].Text)
	assert.NotNil(t, events[1].Markup)
	assert.Equal(t, session.StepIdle, f.store.Get(1).Step, "search always returns to idle")
}

func TestAreaCodeSearchEmptyAndFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1)

	f.engine.HandleText(ctx, 1, ui.LabelBuyNumbers)
	events := f.engine.HandleText(ctx, 1, "204")
	assert.Equal(t, []string{ui.TextNoNumbersFound}, texts(events))

	f.stub.SearchErr = assert.AnError
	f.engine.HandleText(ctx, 1, ui.LabelBuyNumbers)
	events = f.engine.HandleText(ctx, 1, "204")
	assert.Equal(t, []string{ui.TextSearchFailed}, texts(events))

	f.engine.HandleText(ctx, 1, ui.LabelBuyNumbers)
	events = f.engine.HandleText(ctx, 1, "not-a-code")
	assert.Equal(t, []string{ui.TextSearchFailed}, texts(events))
}

func TestMenuActionsRequireLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events := f.engine.HandleText(ctx, 1, ui.LabelBuyNumbers)
	assert.Equal(t, []string{ui.TextLoginFirst}, texts(events))

	events = f.engine.HandleCallback(ctx, 1, ui.CallbackBuy, "+14165550100")
	assert.Equal(t, []string{ui.TextLoginFirst}, texts(events))
	assert.Equal(t, 0, f.stub.Calls("Purchase"))
}

func TestBuyCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events := f.engine.BuyCommand(ctx, 1, []string{"416"})
	assert.Equal(t, []string{ui.TextLoginFirst}, texts(events))

	f.login(t, 1)
	events = f.engine.BuyCommand(ctx, 1, nil)
	assert.Equal(t, []string{ui.TextBuyUsage}, texts(events))

	f.stub.Available = []telephony.AvailableNumber{{PhoneNumber: "+14165550100"}}
	events = f.engine.BuyCommand(ctx, 1, []string{"416"})
	require.Len(t, events, 2)
	assert.Contains(t, events[0].Text, "+14165550100")
}

func TestPurchaseFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1)

	events := f.engine.HandleCallback(ctx, 1, ui.CallbackBuy, "+14165550100")
	require.Len(t, events, 2)
	assert.Equal(t, KindRetractSource, events[0].Kind)
	assert.Equal(t, KindSend, events[1].Kind)
	assert.True(t, events[1].Track)
	assert.Contains(t, events[1].Text, "+14165550100")

	events = f.engine.HandleCallback(ctx, 1, ui.CallbackBuy, "+14165550101")
	assert.Equal(t, []string{ui.TextAlreadyOwns}, texts(events))
	assert.Equal(t, 1, f.stub.Calls("Purchase"))
}

func TestInboxFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1)

	f.engine.HandleCallback(ctx, 1, ui.CallbackBuy, "+14165550100")
	sid := f.store.Get(1).Numbers[0]

	events := f.engine.HandleCallback(ctx, 1, ui.CallbackInbox, sid)
	assert.Equal(t, []string{ui.TextInboxEmpty}, texts(events))
	assert.Len(t, f.store.Get(1).Numbers, 1, "empty inbox keeps the rental")

	f.stub.Inbox["+14165550100"] = &telephony.Message{Body: "code 482 910"}
	events = f.engine.HandleCallback(ctx, 1, ui.CallbackInbox, sid)
	require.Len(t, events, 4)
	assert.Contains(t, events[0].Text, "482910")
	assert.Contains(t, events[1].Text, "code 482 910")
	assert.Contains(t, events[2].Text, "+14165550100")
	assert.Equal(t, KindRetractTracked, events[3].Kind)
	assert.Empty(t, f.store.Get(1).Numbers)
}

func TestDeleteFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1)

	f.engine.HandleCallback(ctx, 1, ui.CallbackBuy, "+14165550100")
	sid := f.store.Get(1).Numbers[0]

	events := f.engine.HandleCallback(ctx, 1, ui.CallbackDelete, sid)
	require.Len(t, events, 2)
	assert.Contains(t, events[0].Text, "+14165550100")
	assert.Equal(t, KindRetractTracked, events[1].Kind)
	assert.Empty(t, f.store.Get(1).Numbers)

	events = f.engine.HandleCallback(ctx, 1, ui.CallbackDelete, sid)
	assert.Equal(t, []string{ui.TextDeleteFailed}, texts(events))
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1)
	f.engine.HandleCallback(ctx, 1, ui.CallbackBuy, "+14165550100")

	events := f.engine.HandleCallback(ctx, 1, ui.CallbackLogout, "")
	require.Len(t, events, 2)
	assert.Equal(t, ui.TextLoggedOut, events[0].Text)
	assert.Equal(t, ui.TextWelcomeBack, events[1].Text)

	sess := f.store.Get(1)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, sess.Numbers)
	assert.Equal(t, session.StepIdle, sess.Step)
}

func TestPastedNumberFastPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events := f.engine.HandleText(ctx, 1, "+14165550100")
	require.Len(t, events, 1)
	assert.Equal(t, "+14165550100", events[0].Text)
	assert.NotNil(t, events[0].Markup)

	events = f.engine.HandleText(ctx, 1, "14165550100 🟡 Try later")
	require.Len(t, events, 1)
	assert.Equal(t, "+14165550100", events[0].Text)
	assert.NotNil(t, events[0].Markup)
}

func TestUnauthenticatedFallback(t *testing.T) {
	f := newFixture(t)
	events := f.engine.HandleText(context.Background(), 1, "what is this")
	assert.Equal(t, []string{ui.TextSendKey}, texts(events))
}
