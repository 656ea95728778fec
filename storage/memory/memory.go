// Package memory provides an in-process storage.Store for tests and
// throwaway worlds. It can be told to fail to exercise storage outages.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nathoo/worldcore/storage"
)

// Store is a map-backed storage.Store.
type Store struct {
	mu        sync.Mutex
	snapshots map[string][]storage.Snapshot
	entries   map[string][]storage.Record
	failure   error
	closed    bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		snapshots: map[string][]storage.Snapshot{},
		entries:   map[string][]storage.Record{},
	}
}

// SetFailure makes every later call return err until it is cleared with nil.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return s.failure
}

func (s *Store) PutSnapshot(ctx context.Context, snap storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if snap.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	for _, existing := range s.snapshots[snap.WorldID] {
		if existing.ID == snap.ID {
			return fmt.Errorf("snapshot %s: %w", snap.ID, storage.ErrConflict)
		}
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	snap.Data = append([]byte(nil), snap.Data...)
	list := append(s.snapshots[snap.WorldID], snap)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
	s.snapshots[snap.WorldID] = list
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context, worldID string) (storage.Snapshot, error) {
	return s.SnapshotAtOrBefore(ctx, worldID, ^uint64(0))
}

func (s *Store) SnapshotAtOrBefore(ctx context.Context, worldID string, seq uint64) (storage.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return storage.Snapshot{}, err
	}
	list := s.snapshots[worldID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Sequence <= seq {
			snap := list[i]
			snap.Data = append([]byte(nil), snap.Data...)
			return snap, nil
		}
	}
	return storage.Snapshot{}, storage.ErrNotFound
}

func (s *Store) ListSnapshots(ctx context.Context, worldID string) ([]storage.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]storage.Snapshot, 0, len(s.snapshots[worldID]))
	for _, snap := range s.snapshots[worldID] {
		snap.Data = nil
		out = append(out, snap)
	}
	return out, nil
}

func (s *Store) AppendEntry(ctx context.Context, worldID string, seq uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	last := uint64(len(s.entries[worldID]))
	if seq != last+1 {
		return fmt.Errorf("append %d after %d: %w", seq, last, storage.ErrConflict)
	}
	s.entries[worldID] = append(s.entries[worldID], storage.Record{
		WorldID:  worldID,
		Sequence: seq,
		Data:     append([]byte(nil), data...),
	})
	return nil
}

func (s *Store) ReadEntries(ctx context.Context, worldID string, from uint64, limit int) ([]storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	all := s.entries[worldID]
	if from > uint64(len(all)) {
		return nil, nil
	}
	// Sequences are gapless from 1, so entry n lives at index n-1.
	rest := all[from-1:]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	out := make([]storage.Record, len(rest))
	copy(out, rest)
	return out, nil
}

func (s *Store) LastSequence(ctx context.Context, worldID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return uint64(len(s.entries[worldID])), nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
