// Package eventlog implements the append-only record of accepted actions
// for one world, and the fold that rebuilds state from it.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/nathoo/worldcore/storage"
	"github.com/nathoo/worldcore/types"
)

// DefaultPageSize is how many entries Replay reads per store round trip.
const DefaultPageSize = 256

// Journal appends entries for one world. Append must only be called from
// a single goroutine; Last may be read from anywhere.
type Journal struct {
	store   storage.Store
	worldID string
	last    atomic.Uint64
}

// Open returns a journal positioned after the last stored entry.
func Open(ctx context.Context, store storage.Store, worldID string) (*Journal, error) {
	j := &Journal{store: store, worldID: worldID}
	if err := j.Resync(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

// WorldID returns the world this journal records.
func (j *Journal) WorldID() string { return j.worldID }

// Last returns the sequence of the newest durable entry, or 0.
func (j *Journal) Last() uint64 { return j.last.Load() }

// Next returns the sequence the next appended entry must carry.
func (j *Journal) Next() uint64 { return j.last.Load() + 1 }

// Resync re-reads the last sequence from the store, e.g. after an outage.
func (j *Journal) Resync(ctx context.Context) error {
	last, err := j.store.LastSequence(ctx, j.worldID)
	if err != nil {
		return fmt.Errorf("read last sequence: %w", err)
	}
	j.last.Store(last)
	return nil
}

// Append persists an entry and returns its sequence. It returns only after
// the store has confirmed the write.
func (j *Journal) Append(ctx context.Context, entry types.EventLogEntry) (uint64, error) {
	if entry.WorldID != j.worldID {
		return 0, fmt.Errorf("entry for world %q appended to %q", entry.WorldID, j.worldID)
	}
	if want := j.Next(); entry.Sequence != want {
		return 0, fmt.Errorf("entry sequence %d, want %d: %w", entry.Sequence, want, storage.ErrConflict)
	}
	data, err := Encode(entry)
	if err != nil {
		return 0, err
	}
	if err := j.store.AppendEntry(ctx, j.worldID, entry.Sequence, data); err != nil {
		return 0, fmt.Errorf("append entry %d: %w", entry.Sequence, err)
	}
	j.last.Store(entry.Sequence)
	return entry.Sequence, nil
}

// Replay yields this world's entries from sequence from onward.
func (j *Journal) Replay(ctx context.Context, from uint64) iter.Seq2[types.EventLogEntry, error] {
	return Replay(ctx, j.store, j.worldID, from, DefaultPageSize)
}

// Replay lazily yields entries with sequence >= from in commit order,
// reading pageSize entries at a time. Iteration stops at the first error,
// which is yielded with a zero entry.
func Replay(ctx context.Context, store storage.Store, worldID string, from uint64, pageSize int) iter.Seq2[types.EventLogEntry, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if from == 0 {
		from = 1
	}
	return func(yield func(types.EventLogEntry, error) bool) {
		next := from
		for {
			recs, err := store.ReadEntries(ctx, worldID, next, pageSize)
			if err != nil {
				yield(types.EventLogEntry{}, fmt.Errorf("read entries from %d: %w", next, err))
				return
			}
			for _, rec := range recs {
				if rec.Sequence != next {
					yield(types.EventLogEntry{}, fmt.Errorf("log gap: got %d, want %d", rec.Sequence, next))
					return
				}
				entry, err := Decode(rec.Data)
				if err != nil {
					yield(types.EventLogEntry{}, fmt.Errorf("entry %d: %w", rec.Sequence, err))
					return
				}
				if !yield(entry, nil) {
					return
				}
				next++
			}
			if len(recs) < pageSize {
				return
			}
		}
	}
}

// Encode serializes an entry for storage.
func Encode(entry types.EventLogEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode entry %d: %w", entry.Sequence, err)
	}
	return data, nil
}

// Decode parses a stored entry.
func Decode(data []byte) (types.EventLogEntry, error) {
	var entry types.EventLogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("decode entry: %w", err)
	}
	return entry, nil
}
