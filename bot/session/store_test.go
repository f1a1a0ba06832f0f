package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetCreatesIdleSession(t *testing.T) {
	store := NewStore()

	sess := store.Get(1)
	require.NotNil(t, sess)
	assert.Equal(t, StepIdle, sess.Step)
	assert.False(t, sess.Authenticated())
	assert.False(t, store.InProgress(1))
}

func TestStoreStepTransitions(t *testing.T) {
	store := NewStore()

	store.SetStep(1, StepAwaitingUsername)
	assert.True(t, store.InProgress(1))

	store.SetPendingUsername(1, "operator")
	store.SetStep(1, StepAwaitingSidToken)
	assert.Equal(t, StepAwaitingSidToken, store.Get(1).Step)

	store.SetCredentials(1, Credentials{AccountSID: "AC1", AuthToken: "tok"})
	sess := store.Get(1)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, StepIdle, sess.Step)
	assert.False(t, store.InProgress(1))
}

func TestStoreNumbers(t *testing.T) {
	store := NewStore()

	store.AppendNumber(7, "PN123")
	assert.Equal(t, []string{"PN123"}, store.Get(7).Numbers)

	store.RemoveNumber(7, "PN999")
	assert.Len(t, store.Get(7).Numbers, 1)

	store.RemoveNumber(7, "PN123")
	assert.Empty(t, store.Get(7).Numbers)
}

func TestStoreTakeLastMessageClears(t *testing.T) {
	store := NewStore()

	store.SetLastMessage(7, 42)
	assert.Equal(t, 42, store.TakeLastMessage(7))
	assert.Equal(t, 0, store.TakeLastMessage(7))
}

func TestStoreResetClearsEverything(t *testing.T) {
	store := NewStore()

	store.SetCredentials(7, Credentials{AccountSID: "AC1", AuthToken: "tok"})
	store.AppendNumber(7, "PN123")
	store.SetLastMessage(7, 42)

	before := store.Get(7)
	store.Reset(7)

	sess := store.Get(7)
	assert.Same(t, before, sess)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, sess.Numbers)
	assert.Equal(t, 0, sess.LastMessageID)
	assert.Equal(t, StepIdle, sess.Step)
}

func TestStoreAcquireSerializesPerUser(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := store.Acquire(1)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
