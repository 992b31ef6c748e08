package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotui/internal/shared"
	"github.com/desertthunder/spotui/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID    = "client-123"
	testRedirectURI = "http://127.0.0.1:3000/callback"
)

func accessToken(n int) string {
	return fmt.Sprintf("access-%02d-%s", n, strings.Repeat("x", 60))
}

type tokenReply struct {
	status int
	body   string
}

func tokenJSON(access, refresh string, expiresIn int) tokenReply {
	body := fmt.Sprintf(`{"access_token":%q,"token_type":"Bearer","expires_in":%d`, access, expiresIn)
	if refresh != "" {
		body += fmt.Sprintf(`,"refresh_token":%q`, refresh)
	}
	return tokenReply{status: http.StatusOK, body: body + "}"}
}

// fakeProvider serves the token endpoint and, optionally, Web API routes under /v1/.
type fakeProvider struct {
	server *httptest.Server

	mu      sync.Mutex
	forms   []url.Values
	replies []tokenReply
	api     http.HandlerFunc

	// entered receives once per token request while hold is open
	entered chan struct{}
	hold    chan struct{}
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		p.mu.Lock()
		entered, hold := p.entered, p.hold
		p.mu.Unlock()
		if hold != nil {
			entered <- struct{}{}
			<-hold
		}

		p.mu.Lock()
		p.forms = append(p.forms, r.PostForm)
		reply := tokenReply{status: http.StatusBadRequest, body: `{"error":"invalid_request"}`}
		if len(p.replies) > 0 {
			reply = p.replies[0]
			if len(p.replies) > 1 {
				p.replies = p.replies[1:]
			}
		}
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		io.WriteString(w, reply.body)
	})
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		h := p.api
		p.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) reply(replies ...tokenReply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = replies
}

// holdTokens parks token requests until the returned release is called.
func (p *fakeProvider) holdTokens() (entered <-chan struct{}, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entered = make(chan struct{}, 16)
	p.hold = make(chan struct{})
	return p.entered, func() { close(p.hold) }
}

func (p *fakeProvider) handleAPI(h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.api = h
}

func (p *fakeProvider) tokenCalls() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.forms...)
}

type fixture struct {
	provider *fakeProvider
	store    *store.Memory
	clock    *clockwork.FakeClock
	manager  *TokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := newFakeProvider(t)
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	m, err := New(Config{
		ClientID:    testClientID,
		RedirectURI: testRedirectURI,
		AuthURL:     p.server.URL + "/authorize",
		TokenURL:    p.server.URL + "/api/token",
		APIURL:      p.server.URL + "/v1",
	}, st, Options{HTTPClient: p.server.Client(), Clock: clock, Logger: shared.NewLogger(io.Discard)})
	require.NoError(t, err)

	return &fixture{provider: p, store: st, clock: clock, manager: m}
}

// login runs a full start/complete cycle with the given token reply.
func (f *fixture) login(t *testing.T, reply tokenReply) {
	t.Helper()
	f.provider.reply(reply)
	_, err := f.manager.StartLogin(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, f.manager.CompleteLogin(context.Background(), "auth-code"))
}

func TestPKCE(t *testing.T) {
	t.Run("verifier is 128 alphanumeric characters", func(t *testing.T) {
		pattern := regexp.MustCompile(`^[A-Za-z0-9]{128}$`)
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			v, err := NewVerifier()
			require.NoError(t, err)
			assert.Regexp(t, pattern, v)
			assert.False(t, seen[v], "verifier repeated")
			seen[v] = true
		}
	})

	t.Run("challenge matches RFC 7636 example", func(t *testing.T) {
		assert.Equal(t,
			"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
			Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
		)
	})
}

func TestStartLogin(t *testing.T) {
	t.Run("requires client configuration", func(t *testing.T) {
		f := newFixture(t)
		f.manager.config.ClientID = ""

		_, err := f.manager.StartLogin(context.Background(), nil)
		assert.ErrorIs(t, err, shared.ErrConfiguration)

		_, ok, _ := f.store.Get(KeyCodeVerifier)
		assert.False(t, ok, "no verifier should be persisted")
	})

	t.Run("builds the authorize url and persists the verifier", func(t *testing.T) {
		f := newFixture(t)

		var navigated string
		nav := NavigatorFunc(func(_ context.Context, u string) error {
			navigated = u
			return nil
		})

		authURL, err := f.manager.StartLogin(context.Background(), nav)
		require.NoError(t, err)
		assert.Equal(t, authURL, navigated)

		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()

		verifier, ok, _ := f.store.Get(KeyCodeVerifier)
		require.True(t, ok)
		assert.Len(t, verifier, 128)

		assert.Equal(t, testClientID, q.Get("client_id"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, testRedirectURI, q.Get("redirect_uri"))
		assert.Equal(t, strings.Join(Scopes, " "), q.Get("scope"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, Challenge(verifier), q.Get("code_challenge"))
		assert.Equal(t, "false", q.Get("show_dialog"))
		assert.Empty(t, q.Get("client_secret"))
	})

	t.Run("clears an existing credential", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		require.True(t, f.manager.IsAuthenticated())

		_, err := f.manager.StartLogin(context.Background(), nil)
		require.NoError(t, err)

		assert.True(t, f.manager.Credential().IsZero())
		_, ok, _ := f.store.Get(KeyAccessToken)
		assert.False(t, ok)
	})

	t.Run("navigation failure is reported with the url", func(t *testing.T) {
		f := newFixture(t)
		nav := NavigatorFunc(func(context.Context, string) error { return errors.New("no browser") })

		authURL, err := f.manager.StartLogin(context.Background(), nav)
		assert.Error(t, err)
		assert.NotEmpty(t, authURL)
	})
}

func TestCompleteLogin(t *testing.T) {
	t.Run("exchanges the code with the verifier", func(t *testing.T) {
		f := newFixture(t)
		f.provider.reply(tokenJSON(accessToken(1), "refresh-1", 3600))

		_, err := f.manager.StartLogin(context.Background(), nil)
		require.NoError(t, err)
		verifier, _, _ := f.store.Get(KeyCodeVerifier)

		require.NoError(t, f.manager.CompleteLogin(context.Background(), "auth-code"))

		calls := f.provider.tokenCalls()
		require.Len(t, calls, 1)
		form := calls[0]
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "auth-code", form.Get("code"))
		assert.Equal(t, testRedirectURI, form.Get("redirect_uri"))
		assert.Equal(t, verifier, form.Get("code_verifier"))
		assert.Equal(t, testClientID, form.Get("client_id"))
		assert.False(t, form.Has("client_secret"))

		snap := f.store.Snapshot()
		assert.Equal(t, accessToken(1), snap[KeyAccessToken])
		assert.Equal(t, "refresh-1", snap[KeyRefreshToken])
		assert.Equal(t, fmt.Sprint(f.clock.Now().Add(time.Hour).UnixMilli()), snap[KeyTokenExpiry])
		assert.NotContains(t, snap, KeyCodeVerifier)
	})

	t.Run("validity follows the clock", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		assert.True(t, f.manager.IsAuthenticated())

		f.clock.Advance(3599 * time.Second)
		assert.True(t, f.manager.IsAuthenticated())

		f.clock.Advance(time.Second)
		assert.False(t, f.manager.IsAuthenticated())

		assert.True(t, f.manager.Credential().IsZero(), "expired credential should be purged")
		assert.Empty(t, f.store.Snapshot())
	})

	t.Run("verifier is single use", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		err := f.manager.CompleteLogin(context.Background(), "auth-code")
		assert.ErrorIs(t, err, shared.ErrMissingVerifier)
		assert.Len(t, f.provider.tokenCalls(), 1, "no second exchange should be attempted")
	})

	t.Run("missing verifier", func(t *testing.T) {
		f := newFixture(t)
		err := f.manager.CompleteLogin(context.Background(), "auth-code")
		assert.ErrorIs(t, err, shared.ErrMissingVerifier)
		assert.Empty(t, f.provider.tokenCalls())
	})

	t.Run("exchange failure deletes the verifier", func(t *testing.T) {
		f := newFixture(t)
		f.provider.reply(tokenReply{status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`})

		_, err := f.manager.StartLogin(context.Background(), nil)
		require.NoError(t, err)

		err = f.manager.CompleteLogin(context.Background(), "bad-code")
		require.ErrorIs(t, err, shared.ErrExchange)

		var exErr *ExchangeError
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, http.StatusBadRequest, exErr.Status)

		_, ok, _ := f.store.Get(KeyCodeVerifier)
		assert.False(t, ok)
		assert.False(t, f.manager.IsAuthenticated())
	})

	t.Run("short access tokens are not valid", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON("short", "refresh-1", 3600))
		assert.False(t, f.manager.IsAuthenticated())
	})
}

func TestRefresh(t *testing.T) {
	t.Run("without refresh token", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.manager.Refresh(context.Background()), shared.ErrNoRefreshToken)
		assert.Empty(t, f.provider.tokenCalls())
	})

	t.Run("replaces access token and keeps refresh token", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		f.clock.Advance(30 * time.Minute)
		f.provider.reply(tokenJSON(accessToken(2), "", 3600))
		require.NoError(t, f.manager.Refresh(context.Background()))

		form := f.provider.tokenCalls()[1]
		assert.Equal(t, "refresh_token", form.Get("grant_type"))
		assert.Equal(t, "refresh-1", form.Get("refresh_token"))
		assert.Equal(t, testClientID, form.Get("client_id"))

		cred := f.manager.Credential()
		assert.Equal(t, accessToken(2), cred.AccessToken)
		assert.Equal(t, "refresh-1", cred.RefreshToken)
		assert.Equal(t, f.clock.Now().Add(time.Hour).UnixMilli(), cred.ExpiresAt.UnixMilli())
		assert.Equal(t, accessToken(2), f.store.Snapshot()[KeyAccessToken])
	})

	t.Run("adopts a rotated refresh token", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		f.provider.reply(tokenJSON(accessToken(2), "refresh-2", 3600))
		require.NoError(t, f.manager.Refresh(context.Background()))

		assert.Equal(t, "refresh-2", f.manager.Credential().RefreshToken)
		assert.Equal(t, "refresh-2", f.store.Snapshot()[KeyRefreshToken])
	})

	t.Run("concurrent refreshes share one request", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.provider.reply(tokenJSON(accessToken(2), "", 3600))

		entered, release := f.provider.holdTokens()

		const callers = 8
		errs := make(chan error, callers)
		go func() { errs <- f.manager.Refresh(context.Background()) }()
		<-entered

		var started sync.WaitGroup
		for range callers - 1 {
			started.Add(1)
			go func() {
				started.Done()
				errs <- f.manager.Refresh(context.Background())
			}()
		}
		started.Wait()
		time.Sleep(50 * time.Millisecond)
		release()

		for range callers {
			require.NoError(t, <-errs)
		}
		assert.Len(t, f.provider.tokenCalls(), 2, "login exchange plus a single refresh")
		assert.Equal(t, accessToken(2), f.manager.Credential().AccessToken)
	})

	t.Run("failure leaves the credential untouched", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		before := f.store.Snapshot()
		credBefore := f.manager.Credential()

		f.provider.reply(tokenReply{status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`})
		err := f.manager.Refresh(context.Background())
		require.ErrorIs(t, err, shared.ErrRefresh)

		var rErr *RefreshError
		require.ErrorAs(t, err, &rErr)
		assert.Equal(t, http.StatusBadRequest, rErr.Status)

		assert.Equal(t, before, f.store.Snapshot())
		assert.Equal(t, credBefore, f.manager.Credential())
	})
}

func TestAuthorizedRequest(t *testing.T) {
	t.Run("attaches the bearer token", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer "+accessToken(1), r.Header.Get("Authorization"))
			assert.Equal(t, "/v1/me", r.URL.Path)
			io.WriteString(w, `{"id":"user-1"}`)
		})

		resp, err := f.manager.AuthorizedRequest(context.Background(), "/me", RequestOptions{})
		require.NoError(t, err)
		assert.False(t, resp.NoContent)

		var me struct{ ID string }
		require.NoError(t, resp.Decode(&me))
		assert.Equal(t, "user-1", me.ID)
	})

	t.Run("sends query and json body", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "dev-1", r.URL.Query().Get("device_id"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"uris":["spotify:track:1"]}`, string(body))
			w.WriteHeader(http.StatusNoContent)
		})

		resp, err := f.manager.AuthorizedRequest(context.Background(), "/me/player/play", RequestOptions{
			Method: http.MethodPut,
			Query:  url.Values{"device_id": {"dev-1"}},
			Body:   map[string][]string{"uris": {"spotify:track:1"}},
		})
		require.NoError(t, err)
		assert.True(t, resp.NoContent)
		assert.ErrorIs(t, resp.Decode(&struct{}{}), shared.ErrNoContent)
	})

	t.Run("empty 200 body is no content", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

		resp, err := f.manager.AuthorizedRequest(context.Background(), "/me/player", RequestOptions{})
		require.NoError(t, err)
		assert.True(t, resp.NoContent)
	})

	t.Run("refreshes a lapsed credential before sending", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.clock.Advance(2 * time.Hour)

		f.provider.reply(tokenJSON(accessToken(2), "", 3600))
		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer "+accessToken(2), r.Header.Get("Authorization"))
			io.WriteString(w, `{}`)
		})

		_, err := f.manager.AuthorizedRequest(context.Background(), "/me", RequestOptions{})
		require.NoError(t, err)
		assert.Len(t, f.provider.tokenCalls(), 2)
	})

	t.Run("retries once after a 401", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.provider.reply(tokenJSON(accessToken(2), "", 3600))

		var seen []string
		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Header.Get("Authorization"))
			if r.Header.Get("Authorization") == "Bearer "+accessToken(1) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"ok":true}`)
		})

		resp, err := f.manager.AuthorizedRequest(context.Background(), "/me", RequestOptions{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
		assert.Equal(t, []string{"Bearer " + accessToken(1), "Bearer " + accessToken(2)}, seen)
		assert.Len(t, f.provider.tokenCalls(), 2, "exactly one refresh")
	})

	t.Run("second 401 fails authentication", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.provider.reply(tokenJSON(accessToken(2), "", 3600))

		calls := 0
		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := f.manager.AuthorizedRequest(context.Background(), "/me", RequestOptions{})
		assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
		assert.Equal(t, 2, calls)
	})

	t.Run("failed refresh after 401 fails authentication", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.provider.reply(tokenReply{status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`})
		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) })

		_, err := f.manager.AuthorizedRequest(context.Background(), "/me", RequestOptions{})
		assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
		assert.ErrorIs(t, err, shared.ErrRefresh)
	})

	t.Run("surfaces other errors verbatim", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"error":{"status":403,"message":"Player command failed: Premium required","reason":"PREMIUM_REQUIRED"}}`)
		})

		_, err := f.manager.AuthorizedRequest(context.Background(), "/me/player/next", RequestOptions{Method: http.MethodPost})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "PREMIUM_REQUIRED", apiErr.Reason())
		assert.Contains(t, apiErr.Error(), "Premium required")
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("unauthenticated without refresh token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.AuthorizedRequest(context.Background(), "/me", RequestOptions{})
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
		assert.ErrorIs(t, err, shared.ErrNoRefreshToken)
	})

	t.Run("absolute urls are used as is", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))
		f.provider.handleAPI(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/me/playlists", r.URL.Path)
			assert.Equal(t, "50", r.URL.Query().Get("offset"))
			io.WriteString(w, `{}`)
		})

		_, err := f.manager.AuthorizedRequest(context.Background(), f.provider.server.URL+"/v1/me/playlists?offset=50", RequestOptions{})
		require.NoError(t, err)
	})
}

func TestLifecycle(t *testing.T) {
	t.Run("logout is idempotent", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		require.NoError(t, f.manager.Logout())
		require.NoError(t, f.manager.Logout())

		assert.False(t, f.manager.IsAuthenticated())
		assert.Empty(t, f.store.Snapshot())
	})

	t.Run("new manager loads the persisted credential", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 3600))

		m, err := New(f.manager.config, f.store, Options{Clock: f.clock, Logger: shared.NewLogger(io.Discard)})
		require.NoError(t, err)

		assert.True(t, m.IsAuthenticated())
		assert.Equal(t, "refresh-1", m.Credential().RefreshToken)
	})

	t.Run("malformed expiry is never valid", func(t *testing.T) {
		st := store.NewMemory()
		st.Set(KeyAccessToken, accessToken(1))
		st.Set(KeyTokenExpiry, "tomorrow")

		m, err := New(Config{}, st, Options{Logger: shared.NewLogger(io.Discard)})
		require.NoError(t, err)
		assert.False(t, m.IsAuthenticated())
	})

	t.Run("AccessToken refreshes on demand", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, tokenJSON(accessToken(1), "refresh-1", 60))

		tok, err := f.manager.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, accessToken(1), tok)

		f.clock.Advance(time.Minute)
		f.provider.reply(tokenJSON(accessToken(2), "", 3600))

		tok, err = f.manager.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, accessToken(2), tok)
	})
}
