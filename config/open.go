package config

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/nathoo/worldcore/agent"
	"github.com/nathoo/worldcore/engine"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/loader"
	"github.com/nathoo/worldcore/storage"
	"github.com/nathoo/worldcore/storage/memory"
	"github.com/nathoo/worldcore/storage/sqlite"
	"github.com/nathoo/worldcore/types"
)

// Backend opens the durable store the config names.
func (cfg Config) Backend() (storage.Store, error) {
	if cfg.DB == "" {
		return memory.New(), nil
	}
	st, err := sqlite.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DB, err)
	}
	return st, nil
}

// LogOutput returns where logs go and a func that releases it.
func (cfg Config) LogOutput() (io.Writer, func() error, error) {
	if cfg.LogFile == "" {
		return io.Discard, func() error { return nil }, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f.Close, nil
}

// NewNarrator builds the narrator the config selects. It returns nil for
// NarratorNone, leaving every reply to the fallback templates.
func (cfg Config) NewNarrator() agent.Narrator {
	switch cfg.Narrator {
	case NarratorMock:
		return agent.MockNarrator{}
	case NarratorOpenAI:
		return agent.NewOpenAI(agent.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	default:
		return nil
	}
}

// Orchestrator builds the agent orchestrator with the configured intent
// map and narrator.
func (cfg Config) Orchestrator(w io.Writer) (*agent.Orchestrator, error) {
	intents, err := agent.DefaultIntents()
	if cfg.Intents != "" {
		intents, err = agent.LoadIntents(cfg.Intents)
	}
	if err != nil {
		return nil, err
	}
	return agent.New(intents, agent.Options{
		Narrator:       cfg.NewNarrator(),
		SuggestTimeout: cfg.SuggestTimeout,
		NarrateTimeout: cfg.NarrateTimeout,
		Logger:         log.New(w, "[agent] ", log.LstdFlags|log.Lmicroseconds),
	})
}

// Engine returns the engine tuning the config carries.
func (cfg Config) Engine(w io.Writer) engine.Config {
	return engine.Config{
		SnapshotEvery: cfg.SnapshotEvery,
		Paranoid:      cfg.Paranoid,
		QueueSize:     cfg.QueueSize,
		Logger:        log.New(w, "[engine] ", log.LstdFlags|log.Lmicroseconds),
	}
}

// OpenWorld opens the backend and the engine for loaded content. The
// caller closes the engine first, then the store.
func (cfg Config) OpenWorld(ctx context.Context, w *loader.World, logs io.Writer) (*engine.Engine, storage.Store, error) {
	orch, err := cfg.Orchestrator(logs)
	if err != nil {
		return nil, nil, err
	}
	st, err := cfg.Backend()
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.Open(ctx, w.Defs.World.ID, w.Defs, w.Genesis, st, orch, cfg.Engine(logs))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return eng, st, nil
}

// PickPlayer returns cfg.Player when set, otherwise the first player in
// id order.
func (cfg Config) PickPlayer(s *types.WorldState) (string, error) {
	if cfg.Player != "" {
		if _, ok := s.Players[cfg.Player]; !ok {
			return "", fmt.Errorf("no player %q in world %s", cfg.Player, s.WorldID)
		}
		return cfg.Player, nil
	}
	ids := state.SortedKeys(s.Players)
	if len(ids) == 0 {
		return "", fmt.Errorf("world %s has no players", s.WorldID)
	}
	return ids[0], nil
}
