// Package auth owns the Spotify Authorization Code with PKCE flow and the lifecycle of the resulting credential.
//
// # Flow
//
// [TokenManager.StartLogin] clears any held credential, persists a fresh code verifier and navigates to the
// authorize URL. The provider redirects back with a code which [TokenManager.CompleteLogin] exchanges, together
// with the verifier, for a [Credential]. The verifier is deleted whatever the outcome, so a callback can only be
// completed once.
//
// # Lifecycle
//
// The credential lives in memory and in a flat key-value [Storage] under four fixed keys. It is refreshed on demand
// by [TokenManager.AuthorizedRequest], which is the only sanctioned way to reach the Web API. A failed refresh never
// touches the stored credential. [TokenManager.IsAuthenticated] purges a credential that is no longer valid.
//
// Concurrent refreshes collapse into a single token endpoint call.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/jonboulle/clockwork"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultAPIURL is the Web API base every endpoint path is joined to.
const DefaultAPIURL = "https://api.spotify.com/v1"

// defaultLifetime applies when the token endpoint omits expires_in.
const defaultLifetime = time.Hour

// Scopes requested at login.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserTopRead,
}

// Storage is the key-value persistence the manager writes through to.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Config identifies the public client. Empty URLs fall back to Spotify's.
type Config struct {
	ClientID    string
	RedirectURI string
	AuthURL     string
	TokenURL    string
	APIURL      string
}

// ConfigFrom maps the file/env configuration onto [Config].
func ConfigFrom(c shared.SpotifyConfig) Config {
	return Config{
		ClientID:    c.ClientID,
		RedirectURI: c.RedirectURI,
		AuthURL:     c.AuthURL,
		TokenURL:    c.TokenURL,
		APIURL:      c.APIURL,
	}
}

// Options carries optional collaborators. Zero values select real implementations.
type Options struct {
	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *log.Logger
}

// TokenManager owns the PKCE session and the credential. Safe for concurrent use.
type TokenManager struct {
	config Config
	oauth  *oauth2.Config
	store  Storage
	client *http.Client
	clock  clockwork.Clock
	logger *log.Logger
	flight singleflight.Group

	mu   sync.Mutex
	cred Credential
}

// New creates a [TokenManager] and loads any persisted credential from storage.
func New(config Config, storage Storage, opts Options) (*TokenManager, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if config.AuthURL == "" {
		config.AuthURL = spotifyauth.AuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = spotifyauth.TokenURL
	}
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}

	cred, err := loadCredential(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	return &TokenManager{
		config: config,
		oauth: &oauth2.Config{
			ClientID:    config.ClientID,
			RedirectURL: config.RedirectURI,
			Scopes:      Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:  storage,
		client: opts.HTTPClient,
		clock:  opts.Clock,
		logger: shared.WithLogger(opts.Logger, "component", "auth"),
		cred:   cred,
	}, nil
}

// Credential returns a copy of the held credential.
func (m *TokenManager) Credential() Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// IsAuthenticated reports whether the held credential is valid now. An invalid credential is purged.
func (m *TokenManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred.Valid(m.clock.Now()) {
		return true
	}

	if !m.cred.IsZero() {
		m.logger.Debug("purging invalid credential", "expires_at", m.cred.ExpiresAt)
		m.cred = Credential{}
		if err := m.store.Delete(KeyAccessToken, KeyRefreshToken, KeyTokenExpiry); err != nil {
			m.logger.Warn("failed to purge credential", "error", err)
		}
	}
	return false
}

// Logout clears the credential and any pending verifier from memory and storage. Calling it twice is harmless.
func (m *TokenManager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cred = Credential{}
	if err := m.store.Delete(KeyAccessToken, KeyRefreshToken, KeyTokenExpiry, KeyCodeVerifier); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// AccessToken returns a valid access token, refreshing once if the held one has lapsed.
//
// Device implementations use it as their token supplier.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	cred := m.Credential()
	if cred.Valid(m.clock.Now()) {
		return cred.AccessToken, nil
	}

	if err := m.Refresh(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}

	cred = m.Credential()
	if !cred.Valid(m.clock.Now()) {
		return "", fmt.Errorf("%w: refreshed token is not usable", shared.ErrNotAuthenticated)
	}
	return cred.AccessToken, nil
}

// save writes cred through to storage and adopts it. Caller holds mu.
func (m *TokenManager) save(cred Credential) error {
	for k, v := range cred.entries() {
		if err := m.store.Set(k, v); err != nil {
			return fmt.Errorf("failed to persist %s: %w", k, err)
		}
	}
	m.cred = cred
	return nil
}

// expiresAt converts the provider's relative lifetime using the injected clock.
func (m *TokenManager) expiresAt(tok *oauth2.Token) time.Time {
	switch {
	case tok.ExpiresIn > 0:
		return m.clock.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		return tok.Expiry
	default:
		return m.clock.Now().Add(defaultLifetime)
	}
}

// httpContext routes oauth2's token requests through the configured client.
func (m *TokenManager) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}
