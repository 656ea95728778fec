// Package storage defines the durable store behind a world: snapshots of
// world state and the append-only log of accepted actions.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no snapshot matches a query.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an append would duplicate or skip a
	// sequence number, or a snapshot id is reused.
	ErrConflict = errors.New("conflict")
)

// Snapshot is one serialized world state. Data is opaque to the store.
type Snapshot struct {
	WorldID   string
	ID        string
	Label     string
	Sequence  uint64
	Time      int64
	Data      []byte
	CreatedAt time.Time
}

// Record is one serialized event log entry.
type Record struct {
	WorldID  string
	Sequence uint64
	Data     []byte
}

// Store persists snapshots and event log entries keyed by world.
type Store interface {
	// PutSnapshot stores a snapshot. ID is required and unique per world;
	// several snapshots may share a sequence.
	PutSnapshot(ctx context.Context, snap Snapshot) error
	// LatestSnapshot returns the snapshot with the highest sequence.
	LatestSnapshot(ctx context.Context, worldID string) (Snapshot, error)
	// SnapshotAtOrBefore returns the newest snapshot not past seq.
	SnapshotAtOrBefore(ctx context.Context, worldID string, seq uint64) (Snapshot, error)
	// ListSnapshots returns snapshot metadata in sequence order, without Data.
	ListSnapshots(ctx context.Context, worldID string) ([]Snapshot, error)

	// AppendEntry stores the entry for seq. seq must be exactly one past
	// the last stored sequence.
	AppendEntry(ctx context.Context, worldID string, seq uint64, data []byte) error
	// ReadEntries returns up to limit entries with sequence >= from, in order.
	ReadEntries(ctx context.Context, worldID string, from uint64, limit int) ([]Record, error)
	// LastSequence returns the highest stored sequence, or 0.
	LastSequence(ctx context.Context, worldID string) (uint64, error)

	Ping(ctx context.Context) error
	Close() error
}
