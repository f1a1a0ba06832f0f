package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waygroup/numbot/services/telephony"
	"github.com/waygroup/numbot/services/telephony/telephonytest"
)

func writeAllowlist(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allowed_users.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func TestCheckUsername(t *testing.T) {
	stub := telephonytest.NewStub()
	path := writeAllowlist(t, "# team\nalice\n@Bob\n\n")
	gate := NewGate(path, stub.Factory())
	ctx := context.Background()

	assert.NoError(t, gate.CheckUsername(ctx, "alice"))
	assert.NoError(t, gate.CheckUsername(ctx, "@Alice"))
	assert.NoError(t, gate.CheckUsername(ctx, "bob"))
	assert.ErrorIs(t, gate.CheckUsername(ctx, "mallory"), ErrNotAllowed)
	assert.ErrorIs(t, gate.CheckUsername(ctx, ""), ErrNotAllowed)
}

func TestCheckUsernameReloadsWithoutRestart(t *testing.T) {
	stub := telephonytest.NewStub()
	path := writeAllowlist(t, "alice\n")
	gate := NewGate(path, stub.Factory())
	ctx := context.Background()

	assert.ErrorIs(t, gate.CheckUsername(ctx, "carol"), ErrNotAllowed)

	require.NoError(t, os.WriteFile(path, []byte("alice\ncarol\n"), 0o600))
	assert.NoError(t, gate.CheckUsername(ctx, "carol"))
}

func TestValidateCredentialsAccepted(t *testing.T) {
	stub := telephonytest.NewStub()
	stub.Account = &telephony.Account{SID: "AC1", Status: "active"}
	gate := NewGate("unused", stub.Factory())

	provider, err := gate.ValidateCredentials(context.Background(), "AC1", "token")
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, 1, stub.Calls("FetchAccount"))
}

func TestValidateCredentialsStatusMatrix(t *testing.T) {
	for _, tc := range []struct {
		status   string
		disabled bool
	}{
		{"suspended", true},
		{"closed", true},
		{"Suspended", true},
		{"active", false},
		{"trial", false},
	} {
		stub := telephonytest.NewStub()
		stub.Account = &telephony.Account{SID: "AC1", Status: tc.status}
		gate := NewGate("unused", stub.Factory())

		_, err := gate.ValidateCredentials(context.Background(), "AC1", "token")
		if tc.disabled {
			assert.ErrorIs(t, err, ErrAccountDisabled, "status %q", tc.status)
			assert.ErrorIs(t, err, ErrInvalidKey, "status %q", tc.status)
		} else {
			assert.NoError(t, err, "status %q", tc.status)
		}
	}
}

func TestValidateCredentialsCollapsesFailures(t *testing.T) {
	stub := telephonytest.NewStub()
	stub.AccountErr = errors.New("401 unauthorized")
	gate := NewGate("unused", stub.Factory())
	ctx := context.Background()

	_, err := gate.ValidateCredentials(ctx, "AC1", "bad")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.NotErrorIs(t, err, ErrAccountDisabled)

	_, err = gate.ValidateCredentials(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, 1, stub.Calls("FetchAccount"), "blank credentials must not reach the provider")
}
