package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime settings of the Dragon Sea plugin and simulator.
type Config struct {
	DeckDir     string        `env:"DRAGONSEA_DECK_DIR" envDefault:"data/decks"`
	TokenSecret string        `env:"DRAGONSEA_TOKEN_SECRET"`
	TokenIssuer string        `env:"DRAGONSEA_TOKEN_ISSUER" envDefault:"dragonsea"`
	TokenTTL    time.Duration `env:"DRAGONSEA_TOKEN_TTL" envDefault:"24h"`
	ShowPhases  bool          `env:"DRAGONSEA_SHOW_PHASES" envDefault:"false"`
	SQLitePath  string        `env:"DRAGONSEA_SQLITE_PATH" envDefault:"dragonsea.db"`
	// GameMasters may start, advance and end sessions. Empty means anyone can.
	GameMasters  []string `env:"DRAGONSEA_GAME_MASTERS" envSeparator:","`
	OtelEndpoint string   `env:"DRAGONSEA_OTEL_ENDPOINT"`
	OtelEnabled  bool     `env:"DRAGONSEA_OTEL_ENABLED" envDefault:"true"`
}

// Parse loads configuration from an explicit environment map, such as the
// Nakama runtime environment.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.GameMasters = trimAll(cfg.GameMasters)
	return cfg, nil
}

// FromOS loads configuration from the process environment.
func FromOS() (Config, error) {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	return Parse(environ)
}

// TracingEnabled reports whether spans should be exported.
func (c Config) TracingEnabled() bool {
	return c.OtelEnabled && strings.TrimSpace(c.OtelEndpoint) != ""
}

// IsGameMaster reports whether userID may run sessions.
func (c Config) IsGameMaster(userID string) bool {
	if len(c.GameMasters) == 0 {
		return true
	}
	for _, id := range c.GameMasters {
		if id == userID {
			return true
		}
	}
	return false
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
