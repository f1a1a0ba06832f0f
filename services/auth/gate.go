// Package auth gates access to the bot: a username allow-list read from
// disk plus live validation of provider credentials.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/waygroup/numbot/core/logger"
	"github.com/waygroup/numbot/services/telephony"
	"log/slog"
)

// ErrNotAllowed is returned when the username is not on the allow-list.
var ErrNotAllowed = errors.New("auth: username not allowed")

// ErrInvalidKey is returned for any credential pair that cannot be used,
// whether malformed, rejected by the provider, or attached to a
// suspended or closed account. Callers get one error on purpose so the
// reply cannot leak which part failed.
var ErrInvalidKey = errors.New("auth: invalid credentials")

// ErrAccountDisabled marks a suspended or closed account. It unwraps to
// ErrInvalidKey so generic handling stays uniform; the UI only uses it
// to offer a logout button.
var ErrAccountDisabled = fmt.Errorf("auth: account disabled: %w", ErrInvalidKey)

// Gate performs both authentication steps of the login dialog.
type Gate struct {
	allowlistPath string
	factory       telephony.Factory
}

// NewGate builds a Gate reading usernames from allowlistPath and
// validating credentials through providers built by factory.
func NewGate(allowlistPath string, factory telephony.Factory) *Gate {
	return &Gate{
		allowlistPath: allowlistPath,
		factory:       factory,
	}
}

// CheckUsername reports whether the username is allow-listed. The file
// is re-read on every call so edits apply without a restart. Matching
// ignores case and a leading @.
func (g *Gate) CheckUsername(ctx context.Context, username string) error {
	want := normalizeUsername(username)
	if want == "" {
		return ErrNotAllowed
	}

	f, err := os.Open(g.allowlistPath)
	if err != nil {
		logger.SVCAuth.LogAttrs(ctx, slog.LevelError, "allowlist.read_failed",
			slog.String("path", g.allowlistPath),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("auth: read allow-list: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if normalizeUsername(line) == want {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("auth: read allow-list: %w", err)
	}

	logger.SVCAuth.LogAttrs(ctx, slog.LevelInfo, "username.rejected",
		slog.String("username", logger.Sanitize(want)),
	)
	return ErrNotAllowed
}

// ValidateCredentials checks a SID/token pair against the provider and
// returns the ready Provider on success. Any failure, including a
// suspended or closed account, collapses to ErrInvalidKey.
func (g *Gate) ValidateCredentials(ctx context.Context, accountSID, authToken string) (telephony.Provider, error) {
	accountSID = strings.TrimSpace(accountSID)
	authToken = strings.TrimSpace(authToken)
	if accountSID == "" || authToken == "" {
		return nil, ErrInvalidKey
	}

	provider := g.factory(accountSID, authToken)
	acct, err := provider.FetchAccount(ctx)
	if err != nil {
		logger.SVCAuth.LogAttrs(ctx, slog.LevelInfo, "credentials.rejected",
			slog.String("account_sid", accountSID),
			slog.String("err_code", "INVALID_KEY"),
		)
		return nil, ErrInvalidKey
	}

	switch strings.ToLower(acct.Status) {
	case "suspended", "closed":
		logger.SVCAuth.LogAttrs(ctx, slog.LevelInfo, "credentials.rejected",
			slog.String("account_sid", accountSID),
			slog.String("account_status", acct.Status),
			slog.String("err_code", "INVALID_KEY"),
		)
		return nil, ErrAccountDisabled
	}

	logger.SVCAuth.LogAttrs(ctx, slog.LevelInfo, "credentials.accepted",
		slog.String("account_sid", accountSID),
		slog.String("account_status", acct.Status),
	)
	return provider, nil
}

func normalizeUsername(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimPrefix(u, "@")
	return strings.ToLower(u)
}
