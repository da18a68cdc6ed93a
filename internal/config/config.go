// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("invalid configuration")

type RelayMode string

const (
	RelayMemory   RelayMode = "memory"
	RelayPostgres RelayMode = "postgres"
	RelayRemote   RelayMode = "remote"
	RelayNone     RelayMode = "none"
)

type Config struct {
	Addr            string        `env:"BOSSFIGHT_ADDR"             envDefault:":8080"`
	LogLevel        string        `env:"BOSSFIGHT_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"BOSSFIGHT_LOG_FORMAT"       envDefault:"json"`
	LogFile         string        `env:"BOSSFIGHT_LOG_FILE"`
	SettingsPath    string        `env:"BOSSFIGHT_SETTINGS_PATH"`
	HistoryDepth    int           `env:"BOSSFIGHT_HISTORY_DEPTH"    envDefault:"100"`
	Relay           RelayMode     `env:"BOSSFIGHT_RELAY"            envDefault:"memory"`
	RelayPath       string        `env:"BOSSFIGHT_RELAY_PATH"       envDefault:"controls/latest"`
	PostgresDSN     string        `env:"BOSSFIGHT_POSTGRES_DSN"`
	RelayURL        string        `env:"BOSSFIGHT_RELAY_URL"`
	DockToken       string        `env:"BOSSFIGHT_DOCK_TOKEN"`
	DockTokenHash   string        `env:"BOSSFIGHT_DOCK_TOKEN_HASH"`
	AssetsDir       string        `env:"BOSSFIGHT_ASSETS_DIR"       envDefault:"assets"`
	ShutdownTimeout time.Duration `env:"BOSSFIGHT_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads the given .env files (".env" when none are named), then the
// environment. Missing files are skipped; variables already set win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Relay {
	case RelayMemory, RelayNone:
	case RelayPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: BOSSFIGHT_POSTGRES_DSN is required for the postgres relay", ErrInvalid)
		}
	case RelayRemote:
		if c.RelayURL == "" {
			return fmt.Errorf("%w: BOSSFIGHT_RELAY_URL is required for the remote relay", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown relay %q", ErrInvalid, c.Relay)
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("%w: history depth must be positive, got %d", ErrInvalid, c.HistoryDepth)
	}
	if c.RelayPath == "" {
		return fmt.Errorf("%w: relay path is empty", ErrInvalid)
	}
	return nil
}
