package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nathoo/worldcore/agent"
	"github.com/nathoo/worldcore/types"
)

// Loader opens the engine for a world id.
type Loader func(ctx context.Context, worldID string) (*Engine, error)

// Registry hosts many worlds. Each world is opened at most once, however
// many callers ask for it at the same time.
type Registry struct {
	load   Loader
	group  singleflight.Group
	mu     sync.RWMutex
	worlds map[string]*Engine
	closed bool
}

// NewRegistry returns a registry that opens worlds with load.
func NewRegistry(load Loader) *Registry {
	return &Registry{load: load, worlds: make(map[string]*Engine)}
}

// Get returns the engine for worldID, opening it on first use.
func (r *Registry) Get(ctx context.Context, worldID string) (*Engine, error) {
	if e, ok, err := r.lookup(worldID); ok || err != nil {
		return e, err
	}
	v, err, _ := r.group.Do(worldID, func() (any, error) {
		if e, ok, err := r.lookup(worldID); ok || err != nil {
			return e, err
		}
		e, err := r.load(ctx, worldID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = e.Close()
			return nil, ErrClosed
		}
		r.worlds[worldID] = e
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

func (r *Registry) lookup(worldID string) (*Engine, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, false, ErrClosed
	}
	e, ok := r.worlds[worldID]
	return e, ok, nil
}

// SubmitAction routes a proposal to its world.
func (r *Registry) SubmitAction(ctx context.Context, worldID, playerID string, p agent.Proposal) (Report, error) {
	e, err := r.Get(ctx, worldID)
	if err != nil {
		return Report{}, err
	}
	return e.SubmitAction(ctx, playerID, p)
}

// View returns playerID's view of worldID.
func (r *Registry) View(ctx context.Context, worldID, playerID string) (types.WorldView, error) {
	e, err := r.Get(ctx, worldID)
	if err != nil {
		return types.WorldView{}, err
	}
	return e.View(playerID)
}

// Replay rebuilds worldID as of sequence upTo.
func (r *Registry) Replay(ctx context.Context, worldID string, upTo uint64) (*types.WorldState, error) {
	e, err := r.Get(ctx, worldID)
	if err != nil {
		return nil, err
	}
	return e.Replay(ctx, upTo)
}

// Worlds lists the ids of the open worlds.
func (r *Registry) Worlds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.worlds))
	for id := range r.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every open world. The registry accepts nothing afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	worlds := r.worlds
	r.worlds = map[string]*Engine{}
	r.mu.Unlock()

	var errs []error
	for _, e := range worlds {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
