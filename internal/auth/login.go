package auth

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotui/internal/shared"
	"golang.org/x/oauth2"
)

// Navigator sends the user agent to the authorize URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error { return f(ctx, url) }

// BrowserNavigator opens the system browser.
var BrowserNavigator Navigator = NavigatorFunc(shared.OpenBrowser)

// StartLogin begins a PKCE login and returns the authorize URL after navigating to it with nav.
//
// A nil nav skips navigation. Any held credential is cleared first.
func (m *TokenManager) StartLogin(ctx context.Context, nav Navigator) (string, error) {
	if m.config.ClientID == "" || m.config.RedirectURI == "" {
		return "", fmt.Errorf("%w: client id and redirect uri must be set", shared.ErrConfiguration)
	}

	if err := m.Logout(); err != nil {
		return "", err
	}

	verifier, err := NewVerifier()
	if err != nil {
		return "", err
	}

	if err := m.store.Set(KeyCodeVerifier, verifier); err != nil {
		return "", fmt.Errorf("failed to persist code verifier: %w", err)
	}

	authURL := m.oauth.AuthCodeURL("",
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("show_dialog", "false"),
	)

	m.logger.Debug("starting login", "redirect_uri", m.config.RedirectURI)

	if nav != nil {
		if err := nav.Navigate(ctx, authURL); err != nil {
			return authURL, fmt.Errorf("failed to navigate to authorize url: %w", err)
		}
	}
	return authURL, nil
}

// CompleteLogin exchanges the callback code for a credential and persists it.
//
// The pending verifier is consumed on every path, so a second call for the same login fails with
// [shared.ErrMissingVerifier].
func (m *TokenManager) CompleteLogin(ctx context.Context, code string) error {
	verifier, ok, err := m.store.Get(KeyCodeVerifier)
	if err != nil {
		return fmt.Errorf("failed to read code verifier: %w", err)
	}

	defer func() {
		if err := m.store.Delete(KeyCodeVerifier); err != nil {
			m.logger.Warn("failed to delete code verifier", "error", err)
		}
	}()

	if !ok || verifier == "" {
		return shared.ErrMissingVerifier
	}

	tok, err := m.oauth.Exchange(m.httpContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return &ExchangeError{Status: statusOf(err), Err: err}
	}

	cred := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    m.expiresAt(tok),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.save(cred); err != nil {
		return err
	}

	m.logger.Info("login complete", "expires_at", cred.ExpiresAt)
	return nil
}
