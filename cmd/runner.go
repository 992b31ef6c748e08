package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/auth"
	"github.com/desertthunder/spotui/internal/services"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/desertthunder/spotui/internal/store"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store and token manager are opened on first use so commands like `setup config` work without either.
type Runner struct {
	config     *shared.Config
	configPath string
	store      store.Store
	ownsStore  bool
	tokens     *auth.TokenManager
	spotify    *services.SpotifyService
	api        *services.APIService
	httpClient *http.Client
	navigator  auth.Navigator
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      store.Store // opened from Config when nil
	HTTPClient *http.Client
	Navigator  auth.Navigator // defaults to the system browser
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Navigator == nil {
		opts.Navigator = auth.BrowserNavigator
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		navigator:  opts.Navigator,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, libraryCommand, playerCommand, apiCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetConfig replaces the configuration. Services opened from the previous one are kept.
func (r *Runner) SetConfig(path string, config *shared.Config) {
	r.configPath = path
	r.config = config
}

// SetLogger replaces the logger, used by the TUI to keep log lines off the screen.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// session opens the store and the token manager once, and builds the Web API services over them.
func (r *Runner) session() error {
	if r.tokens != nil {
		return nil
	}

	if r.store == nil {
		s, err := store.Open(r.config.Storage, r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", r.config.Storage.Driver, err)
		}
		r.store, r.ownsStore = s, true
	}

	tokens, err := auth.New(auth.ConfigFrom(r.config.Credentials.Spotify), r.store, auth.Options{
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}

	r.tokens = tokens
	r.spotify = services.NewSpotifyService(tokens, r.logger)
	r.api = services.NewAPIService(tokens)
	return nil
}

// signedIn opens the session and requires a stored credential. An expired access token is fine: requests
// refresh it on demand.
func (r *Runner) signedIn() error {
	if err := r.session(); err != nil {
		return err
	}
	if r.tokens.Credential().IsZero() {
		return fmt.Errorf("%w: run 'spotui auth login' first", shared.ErrNotAuthenticated)
	}
	return nil
}

// Close releases the store when the runner opened it.
func (r *Runner) Close() error {
	if r.store == nil || !r.ownsStore {
		return nil
	}
	err := r.store.Close()
	r.store, r.tokens = nil, nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
