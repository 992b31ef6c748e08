package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/spotui/internal/auth"
	"github.com/desertthunder/spotui/internal/server"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/urfave/cli/v3"
)

// callbackAddr returns the listen address and checks the redirect URI points at the login handler's callback.
func callbackAddr(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: redirect_uri %q is not an absolute URL", shared.ErrInvalidConfig, redirectURI)
	}
	if u.Path != "/callback" {
		return "", fmt.Errorf("%w: redirect_uri path must be /callback, got %q", shared.ErrInvalidConfig, u.Path)
	}
	if u.Port() == "" {
		return "", fmt.Errorf("%w: redirect_uri %q needs an explicit port", shared.ErrInvalidConfig, redirectURI)
	}
	return u.Host, nil
}

// AuthLogin runs the PKCE login: it serves the callback on the redirect URI's host, opens the authorize URL and
// waits for the provider to redirect back.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.session(); err != nil {
		return err
	}

	addr, err := callbackAddr(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	logger := shared.WithLogger(r.logger, "flow", "login")
	handler := server.NewOAuthHandler(r.tokens, r.spotify, logger, true)

	router := server.NewBasicRouter()
	router.Use(server.Recover(logger), server.Logging(logger))
	router.Handler(handler)

	srvCtx, stopServer := context.WithCancel(ctx)
	srvErr := make(chan error, 1)
	go func() { srvErr <- server.Serve(srvCtx, addr, router, logger) }()
	defer func() {
		stopServer()
		<-srvErr
	}()

	nav := r.navigator
	if cmd.Bool("no-browser") {
		nav = nil
	}

	authURL, err := r.tokens.StartLogin(ctx, nav)
	if err != nil && authURL == "" {
		return err
	}
	if err != nil {
		logger.Warn("could not open a browser", "error", err)
	}

	r.writePlain("Open this URL to sign in if a browser did not open:\n\n%s\n\n", authURL)
	r.writePlain("Waiting for the callback on %s ...\n", addr)

	select {
	case res := <-handler.Result():
		if err := res.Err(); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAuthenticationFailed, err)
		}
		if res.Profile != nil {
			r.writePlainln("✓ Signed in as %s (%s)", res.Profile.DisplayName, res.Profile.Product)
		} else {
			r.writePlainln("✓ Signed in")
		}
		return nil

	case err := <-srvErr:
		srvErr <- err
		if err == nil {
			err = errors.New("server stopped")
		}
		return fmt.Errorf("callback server on %s: %w", addr, err)

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: no callback within %s", shared.ErrTimeout, cmd.Duration("timeout"))
		}
		return ctx.Err()
	}
}

// AuthLogout removes the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.session(); err != nil {
		return err
	}
	if err := r.tokens.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

type authStatus struct {
	Authenticated bool      `json:"authenticated"`
	Expired       bool      `json:"expired"`
	Refreshable   bool      `json:"refreshable"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	User          string    `json:"user,omitempty"`
	Product       string    `json:"product,omitempty"`
}

// AuthStatus reports the stored credential without refreshing or purging it, plus the profile when --check is set.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.session(); err != nil {
		return err
	}

	cred := r.tokens.Credential()
	status := authStatus{
		Authenticated: !cred.IsZero(),
		Expired:       !cred.IsZero() && !cred.Valid(time.Now()),
		Refreshable:   cred.RefreshToken != "",
		ExpiresAt:     cred.ExpiresAt,
	}

	if status.Authenticated && cmd.Bool("check") {
		profile, err := r.spotify.CurrentUser(ctx)
		if err != nil {
			return fmt.Errorf("credential present but unusable: %w", err)
		}
		status.User, status.Product = profile.DisplayName, profile.Product
		status.Expired = false
		status.ExpiresAt = r.tokens.Credential().ExpiresAt
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Authenticated {
		return r.writePlain("✗ Not signed in. Run 'spotui auth login'.\n")
	}

	r.writePlain("✓ Signed in\n")
	if status.User != "" {
		r.writePlain("User: %s (%s)\n", status.User, status.Product)
	}
	switch {
	case status.Expired && status.Refreshable:
		r.writePlain("Access token expired at %s, it will be refreshed on the next request\n", status.ExpiresAt.Format(time.RFC3339))
	case status.Expired:
		r.writePlain("Access token expired at %s and cannot be refreshed\n", status.ExpiresAt.Format(time.RFC3339))
	default:
		r.writePlain("Access token valid until %s\n", status.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// AuthRefresh trades the refresh token for a new access token now.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.signedIn(); err != nil {
		return err
	}

	if err := r.tokens.Refresh(ctx); err != nil {
		var refreshErr *auth.RefreshError
		if errors.As(err, &refreshErr) && refreshErr.Status == 400 {
			return fmt.Errorf("%w: refresh token rejected, run 'spotui auth login'", err)
		}
		return err
	}

	return r.writePlain("✓ Access token valid until %s\n", r.tokens.Credential().ExpiresAt.Format(time.RFC3339))
}
