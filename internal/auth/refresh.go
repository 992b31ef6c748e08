package auth

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotui/internal/shared"
	"golang.org/x/oauth2"
)

// Refresh trades the refresh token for a new access token.
//
// On success the access token and expiry are replaced; the refresh token is kept unless the provider rotates it.
// On failure the credential is left exactly as it was. Concurrent callers share one request.
func (m *TokenManager) Refresh(ctx context.Context) error {
	_, err, _ := m.flight.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *TokenManager) refresh(ctx context.Context) error {
	current := m.Credential()
	if current.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	src := m.oauth.TokenSource(m.httpContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		m.logger.Warn("token refresh failed", "error", err)
		return &RefreshError{Status: statusOf(err), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred.RefreshToken != current.RefreshToken {
		return fmt.Errorf("%w: credential changed during refresh", shared.ErrNotAuthenticated)
	}

	next := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: current.RefreshToken,
		ExpiresAt:    m.expiresAt(tok),
	}
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}

	if err := m.save(next); err != nil {
		return err
	}

	m.logger.Debug("access token refreshed", "expires_at", next.ExpiresAt)
	return nil
}
