package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Values from the environment (and a .env file in the working directory) take precedence over the file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Storage     StorageConfig     `toml:"storage"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Player      PlayerConfig      `toml:"player"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains the public client settings for the PKCE flow. There is no client secret.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	RedirectURI string `toml:"redirect_uri" env:"SPOTIFY_REDIRECT_URI"`
	AuthURL     string `toml:"auth_url" env:"SPOTIFY_AUTH_URL"`
	TokenURL    string `toml:"token_url" env:"SPOTIFY_TOKEN_URL"`
	APIURL      string `toml:"api_url" env:"SPOTIFY_API_URL"`
}

// StorageConfig selects the key-value backend holding the credential.
type StorageConfig struct {
	Driver string `toml:"driver" env:"SPOTUI_STORAGE_DRIVER"` // bolt, sqlite or memory
	Path   string `toml:"path" env:"SPOTUI_STORAGE_PATH"`
}

// DatabaseConfig contains connection pool settings for the sqlite driver.
type DatabaseConfig struct {
	MaxOpenConns int `toml:"max_open_conns"`
	MaxIdleConns int `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host" env:"SPOTUI_HOST"`
	Port      int     `toml:"port" env:"SPOTUI_PORT"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// PlayerConfig holds playback device selection and the coordinator's timing constants.
type PlayerConfig struct {
	Name          string        `toml:"name" env:"SPOTUI_PLAYER_NAME"`
	DeviceName    string        `toml:"device_name" env:"SPOTUI_DEVICE_NAME"`
	Volume        float64       `toml:"volume"`
	Debounce      time.Duration `toml:"debounce"`
	Settle        time.Duration `toml:"settle"`
	Tick          time.Duration `toml:"tick"`
	AutoTransfer  time.Duration `toml:"auto_transfer"`
	PollInterval  time.Duration `toml:"poll_interval"`
	CommandWindow time.Duration `toml:"command_timeout"`
}

// LogConfig controls logger verbosity and where the TUI writes its log.
type LogConfig struct {
	Level string `toml:"level" env:"SPOTUI_LOG_LEVEL"`
	File  string `toml:"file"`
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path, then applies environment overrides.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads path when it exists and falls back to the defaults otherwise.
// Environment overrides apply in both cases.
func ResolveConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		config := DefaultConfig()
		if err := config.applyEnv(); err != nil {
			return nil, err
		}
		return config, nil
	}
	return LoadConfig(path)
}

func (c *Config) applyEnv() error {
	_ = godotenv.Load()

	if err := env.Parse(c); err != nil {
		return fmt.Errorf("%w: parsing environment: %v", ErrInvalidConfig, err)
	}

	c.Storage.Path = expandHome(c.Storage.Path)
	c.Log.File = expandHome(c.Log.File)
	return nil
}

// Validate reports the first setting that would make the player unusable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "bolt", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.Storage.Driver != "memory" && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required for the %s driver", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		return fmt.Errorf("%w: player.volume must be within [0, 1]", ErrInvalidConfig)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

// SaveConfig writes the configuration back to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
