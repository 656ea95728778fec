package state

import (
	"sync"

	"github.com/nathoo/worldcore/types"
)

// Store holds the one authoritative copy of a world. Readers only ever
// receive deep clones; Commit swaps in a new value atomically.
type Store struct {
	mu  sync.RWMutex
	cur *types.WorldState
}

// NewStore takes a private copy of initial.
func NewStore(initial *types.WorldState) *Store {
	return &Store{cur: Clone(initial)}
}

// Snapshot returns a deep clone of the current world.
func (st *Store) Snapshot() *types.WorldState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return Clone(st.cur)
}

// Read calls fn with the current world under the read lock. fn must not
// retain or mutate s.
func (st *Store) Read(fn func(s *types.WorldState)) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	fn(st.cur)
}

// Commit replaces the current world. The store takes ownership of next;
// the caller must not touch it afterwards.
func (st *Store) Commit(next *types.WorldState) {
	st.mu.Lock()
	st.cur = next
	st.mu.Unlock()
}

// Sequence returns the sequence of the last applied log entry.
func (st *Store) Sequence() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur.Sequence
}
