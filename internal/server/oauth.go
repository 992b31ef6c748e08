package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/auth"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/services"
	"github.com/desertthunder/spotui/internal/shared"
)

// OAuthResult is the outcome of one callback.
type OAuthResult struct {
	Profile *models.Profile
	err     error
}

// Err returns the reason the login failed, nil on success.
func (o OAuthResult) Err() error {
	return o.err
}

// OAuthHandler serves the login, callback and logout routes.
//
// In single-use mode (the CLI login) only the first callback is processed; later ones get 400. Every processed
// callback is reported on [OAuthHandler.Result] once.
type OAuthHandler struct {
	auth      Authenticator
	library   services.Library
	logger    *log.Logger
	singleUse bool

	resultChan chan OAuthResult
	once       sync.Once

	mu          sync.Mutex
	callbackHit bool
}

// NewOAuthHandler creates a handler completing logins on a. The identity is fetched from library when it is set.
func NewOAuthHandler(a Authenticator, library services.Library, logger *log.Logger, singleUse bool) *OAuthHandler {
	return &OAuthHandler{
		auth:       a,
		library:    library,
		logger:     logger,
		singleUse:  singleUse,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback", "GET /logout"}
}

// ServeHTTP dispatches on the path.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	case "/logout":
		h.logout(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login redirects the browser to the authorize URL.
func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	redirect := auth.NavigatorFunc(func(_ context.Context, url string) error {
		http.Redirect(w, r, url, http.StatusFound)
		return nil
	})

	if _, err := h.auth.StartLogin(r.Context(), redirect); err != nil {
		h.logger.Error("login failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrConfiguration) {
			status = http.StatusServiceUnavailable
		}
		renderPage(w, status, "Login unavailable", err.Error())
	}
}

// callback completes the login with the code the provider sent back.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	if h.singleUse {
		h.mu.Lock()
		if h.callbackHit {
			h.mu.Unlock()
			http.Error(w, "Callback already processed", http.StatusBadRequest)
			return
		}
		h.callbackHit = true
		h.mu.Unlock()
	}

	query := r.URL.Query()
	code := query.Get("code")
	if code == "" {
		errParam := query.Get("error")
		if errParam == "" {
			errParam = "missing code"
		}
		err := fmt.Errorf("%w: authorization failed: %s", shared.ErrExchange, errParam)
		h.Send(OAuthResult{err: err})
		renderPage(w, http.StatusBadRequest, "Authorization failed", errParam)
		return
	}

	if err := h.auth.CompleteLogin(r.Context(), code); err != nil {
		h.logger.Error("code exchange failed", "error", err)
		h.Send(OAuthResult{err: err})

		status := http.StatusBadGateway
		if errors.Is(err, shared.ErrMissingVerifier) {
			status = http.StatusBadRequest
		}
		renderPage(w, status, "Authorization failed", err.Error())
		return
	}

	var profile *models.Profile
	if h.library != nil {
		p, err := h.library.CurrentUser(r.Context())
		if err != nil {
			h.logger.Warn("logged in but failed to fetch profile", "error", err)
		} else {
			profile = p
		}
	}

	h.Send(OAuthResult{Profile: profile})

	message := "You can close this window and return to the terminal."
	if profile != nil {
		message = fmt.Sprintf("Signed in as %s. You can close this window.", profile.DisplayName)
	}
	renderPage(w, http.StatusOK, "Authorization Successful", message)
}

func (h *OAuthHandler) logout(w http.ResponseWriter, _ *http.Request) {
	if err := h.auth.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

// Send reports result on the result channel. Only the first result is kept.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .container { text-align: center; background: #181818; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.4); }
        h1 { color: {{if .OK}}#1DB954{{else}}#E22134{{end}}; margin: 0 0 1rem 0; }
        p { color: #B3B3B3; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func renderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = resultPage.Execute(w, struct {
		Title, Message string
		OK             bool
	}{title, message, status < 400})
}
