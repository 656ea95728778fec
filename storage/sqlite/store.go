// Package sqlite provides a storage.Store backed by a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nathoo/worldcore/storage"
	"github.com/nathoo/worldcore/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed snapshot and event log persistence.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens a world SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps appends strictly serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks that the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// PutSnapshot stores one snapshot.
func (s *Store) PutSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.Data == nil {
		snap.Data = []byte{}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO snapshots (world_id, snapshot_id, label, sequence, world_time, data, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		snap.WorldID,
		snap.ID,
		snap.Label,
		int64(snap.Sequence),
		snap.Time,
		snap.Data,
		snap.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("snapshot %s: %w", snap.ID, storage.ErrConflict)
		}
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of a world.
func (s *Store) LatestSnapshot(ctx context.Context, worldID string) (storage.Snapshot, error) {
	return s.querySnapshot(ctx, `
SELECT world_id, snapshot_id, label, sequence, world_time, data, created_at
FROM snapshots WHERE world_id = ?
ORDER BY sequence DESC, id DESC LIMIT 1
`, worldID)
}

// SnapshotAtOrBefore returns the newest snapshot with sequence <= seq.
func (s *Store) SnapshotAtOrBefore(ctx context.Context, worldID string, seq uint64) (storage.Snapshot, error) {
	return s.querySnapshot(ctx, `
SELECT world_id, snapshot_id, label, sequence, world_time, data, created_at
FROM snapshots WHERE world_id = ? AND sequence <= ?
ORDER BY sequence DESC, id DESC LIMIT 1
`, worldID, int64(seq))
}

func (s *Store) querySnapshot(ctx context.Context, query string, args ...any) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	var (
		snap      storage.Snapshot
		seq       int64
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(
		&snap.WorldID, &snap.ID, &snap.Label, &seq, &snap.Time, &snap.Data, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	snap.Sequence = uint64(seq)
	snap.CreatedAt = time.UnixMilli(createdAt).UTC()
	return snap, nil
}

// ListSnapshots returns snapshot metadata oldest first.
func (s *Store) ListSnapshots(ctx context.Context, worldID string) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT world_id, snapshot_id, label, sequence, world_time, created_at
FROM snapshots WHERE world_id = ?
ORDER BY sequence ASC, id ASC
`, worldID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []storage.Snapshot
	for rows.Next() {
		var (
			snap      storage.Snapshot
			seq       int64
			createdAt int64
		)
		if err := rows.Scan(&snap.WorldID, &snap.ID, &snap.Label, &seq, &snap.Time, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Sequence = uint64(seq)
		snap.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// AppendEntry stores the next log entry. The sequence check and insert
// run in one transaction.
func (s *Store) AppendEntry(ctx context.Context, worldID string, seq uint64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM entries WHERE world_id = ?`, worldID,
	).Scan(&last); err != nil {
		return fmt.Errorf("read last sequence: %w", err)
	}
	if seq != uint64(last)+1 {
		return fmt.Errorf("append %d after %d: %w", seq, last, storage.ErrConflict)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries (world_id, sequence, data) VALUES (?, ?, ?)`,
		worldID, int64(seq), data,
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry: %w", err)
	}
	return nil
}

// ReadEntries returns up to limit entries starting at from.
func (s *Store) ReadEntries(ctx context.Context, worldID string, from uint64, limit int) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT sequence, data FROM entries
WHERE world_id = ? AND sequence >= ?
ORDER BY sequence ASC LIMIT ?
`, worldID, int64(from), limit)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var (
			seq  int64
			data []byte
		)
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, storage.Record{WorldID: worldID, Sequence: uint64(seq), Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// LastSequence returns the highest stored sequence for a world.
func (s *Store) LastSequence(ctx context.Context, worldID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var last int64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM entries WHERE world_id = ?`, worldID,
	).Scan(&last); err != nil {
		return 0, fmt.Errorf("read last sequence: %w", err)
	}
	return uint64(last), nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
