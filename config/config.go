// Package config loads process configuration from WORLDCORE_* environment
// variables, with command flags taking precedence.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Narrator modes.
const (
	NarratorNone   = "none"
	NarratorMock   = "mock"
	NarratorOpenAI = "openai"
)

// Config holds everything the commands need to open and run worlds.
type Config struct {
	WorldDir string `env:"WORLDCORE_WORLD_DIR"`
	Player   string `env:"WORLDCORE_PLAYER"`
	// DB is the sqlite path. Empty keeps the log in memory.
	DB            string `env:"WORLDCORE_DB"`
	SnapshotEvery uint64 `env:"WORLDCORE_SNAPSHOT_EVERY" envDefault:"50"`
	QueueSize     int    `env:"WORLDCORE_QUEUE_SIZE"     envDefault:"64"`
	Paranoid      bool   `env:"WORLDCORE_PARANOID"`
	Intents       string `env:"WORLDCORE_INTENTS"`

	Narrator       string        `env:"WORLDCORE_NARRATOR"        envDefault:"none"`
	OpenAIKey      string        `env:"WORLDCORE_OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"WORLDCORE_OPENAI_BASE_URL"`
	OpenAIModel    string        `env:"WORLDCORE_OPENAI_MODEL"    envDefault:"gpt-4o-mini"`
	SuggestTimeout time.Duration `env:"WORLDCORE_SUGGEST_TIMEOUT" envDefault:"3s"`
	NarrateTimeout time.Duration `env:"WORLDCORE_NARRATE_TIMEOUT" envDefault:"2s"`

	// LogFile receives engine and agent logs. Empty discards them.
	LogFile string `env:"WORLDCORE_LOG_FILE"`

	OTelEndpoint string `env:"WORLDCORE_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"WORLDCORE_OTEL_ENABLED" envDefault:"true"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Bind registers flags that override the environment values in cfg.
func (cfg *Config) Bind(fs *flag.FlagSet) {
	fs.StringVar(&cfg.Player, "player", cfg.Player, "player id to act as (default: first player in the world)")
	fs.StringVar(&cfg.DB, "db", cfg.DB, "sqlite database path (empty: in-memory)")
	fs.Uint64Var(&cfg.SnapshotEvery, "snapshot-every", cfg.SnapshotEvery, "write a snapshot every N entries (0: never)")
	fs.BoolVar(&cfg.Paranoid, "paranoid", cfg.Paranoid, "check full world invariants after every action")
	fs.StringVar(&cfg.Intents, "intents", cfg.Intents, "YAML intent map overriding the built-in one")
	fs.StringVar(&cfg.Narrator, "narrator", cfg.Narrator, "narrator: none, mock or openai")
	fs.StringVar(&cfg.OpenAIModel, "model", cfg.OpenAIModel, "model name for the openai narrator")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "write engine logs to this file")
}

// Validate checks values env tags cannot express.
func (cfg Config) Validate() error {
	switch cfg.Narrator {
	case NarratorNone, NarratorMock:
	case NarratorOpenAI:
		if cfg.OpenAIKey == "" && cfg.OpenAIBaseURL == "" {
			return fmt.Errorf("narrator %q needs WORLDCORE_OPENAI_API_KEY or WORLDCORE_OPENAI_BASE_URL", cfg.Narrator)
		}
	default:
		return fmt.Errorf("unknown narrator %q", cfg.Narrator)
	}
	if cfg.QueueSize < 1 {
		return fmt.Errorf("queue size must be positive, got %d", cfg.QueueSize)
	}
	if cfg.SuggestTimeout <= 0 || cfg.NarrateTimeout <= 0 {
		return fmt.Errorf("agent timeouts must be positive")
	}
	return nil
}
