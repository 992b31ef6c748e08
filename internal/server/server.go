package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/auth"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/services"
	"github.com/desertthunder/spotui/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Authenticator is the login surface of [auth.TokenManager].
type Authenticator interface {
	StartLogin(ctx context.Context, nav auth.Navigator) (string, error)
	CompleteLogin(ctx context.Context, code string) error
	IsAuthenticated() bool
	Logout() error
}

// Controller is the intent surface of [playback.Coordinator].
type Controller interface {
	State() playback.State
	Activate(ctx context.Context) error
	PlayTrack(ctx context.Context, uri string) error
	Toggle(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, volume float64) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetCurrentTrack(uri string)
}

var (
	_ Authenticator = (*auth.TokenManager)(nil)
	_ Controller    = (*playback.Coordinator)(nil)
)

// Deps are the collaborators routes are built from. Nil Player or Device leave their routes unregistered.
type Deps struct {
	Auth    Authenticator
	Library services.Library
	Player  Controller
	Device  http.Handler // WebSocket endpoint for the player page
	Page    http.Handler // player page served at "/"
	Config  shared.ServerConfig
	Logger  *log.Logger
}

// Server hosts the login flow, the player page and its bridge, and the JSON API.
type Server struct {
	deps   Deps
	router *BasicRouter
	oauth  *OAuthHandler
	logger *log.Logger
}

// New builds the router for deps.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(deps.Logger, "component", "server")

	s := &Server{
		deps:   deps,
		router: NewBasicRouter(),
		logger: logger,
		oauth:  NewOAuthHandler(deps.Auth, deps.Library, logger, false),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(Recover(s.logger), Logging(s.logger), RateLimit(s.deps.Config.RateLimit, s.deps.Config.Burst, s.logger))

	r.Handler(s.oauth)

	if s.deps.Page != nil {
		r.Handle(http.MethodGet, "/{$}", s.deps.Page)
	}
	if s.deps.Device != nil {
		r.Handle(http.MethodGet, "/device/ws", s.deps.Device)
	}

	r.HandleFunc(http.MethodGet, "/api/me", s.handleMe)
	r.HandleFunc(http.MethodGet, "/api/search", s.handleSearch)

	if s.deps.Player != nil {
		r.HandleFunc(http.MethodGet, "/api/player", s.handleState)
		r.HandleFunc(http.MethodPost, "/api/player/activate", s.handleActivate)
		r.HandleFunc(http.MethodPost, "/api/player/play", s.handlePlay)
		r.HandleFunc(http.MethodPost, "/api/player/toggle", s.handleToggle)
		r.HandleFunc(http.MethodPost, "/api/player/seek", s.handleSeek)
		r.HandleFunc(http.MethodPost, "/api/player/volume", s.handleVolume)
		r.HandleFunc(http.MethodPost, "/api/player/next", s.handleNext)
		r.HandleFunc(http.MethodPost, "/api/player/previous", s.handlePrevious)
		r.HandleFunc(http.MethodPut, "/api/player/current", s.handleCurrent)
	}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// OAuth returns the login handler, for callers that want its result channel.
func (s *Server) OAuth() *OAuthHandler {
	return s.oauth
}

// ListenAndServe serves on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	return Serve(ctx, s.deps.Config.Addr(), s, s.logger)
}

// Serve runs handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down", "addr", addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
