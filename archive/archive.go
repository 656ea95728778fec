// Package archive writes and reads portable copies of a world's history:
// a zstd-compressed JSONL file whose first line is a header carrying the
// base state, followed by one event log entry per line.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/nathoo/worldcore/engine/eventlog"
	"github.com/nathoo/worldcore/engine/snapshot"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/storage"
	"github.com/nathoo/worldcore/types"
)

// Version is the archive format version written by Export.
const Version = 1

// BaseSnapshotID is the snapshot id Import stores the base state under.
const BaseSnapshotID = "genesis"

// maxLine bounds one JSONL line; the header carries a whole world.
const maxLine = 64 << 20

// Header is the first line of an archive.
type Header struct {
	Version      int               `json:"version"`
	WorldID      string            `json:"world_id"`
	BaseSequence uint64            `json:"base_sequence"`
	LastSequence uint64            `json:"last_sequence"`
	ExportedAt   time.Time         `json:"exported_at"`
	Base         *types.WorldState `json:"base"`
}

// Archive is a decoded archive held in memory.
type Archive struct {
	Header  Header
	Entries []types.EventLogEntry
}

// All yields the archived entries in order, shaped for eventlog.Fold.
func (a *Archive) All() iter.Seq2[types.EventLogEntry, error] {
	return func(yield func(types.EventLogEntry, error) bool) {
		for _, e := range a.Entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Export writes base and the entries that follow it to w. Entries must
// belong to base's world and continue gaplessly from base.Sequence.
func Export(ctx context.Context, w io.Writer, base *types.WorldState, entries iter.Seq2[types.EventLogEntry, error]) (Header, error) {
	h := Header{
		Version:      Version,
		WorldID:      base.WorldID,
		BaseSequence: base.Sequence,
		LastSequence: base.Sequence,
		ExportedAt:   time.Now().UTC(),
		Base:         base,
	}

	// Entries are buffered so the header can carry the final sequence.
	var body []types.EventLogEntry
	for entry, err := range entries {
		if err != nil {
			return h, err
		}
		if err := ctx.Err(); err != nil {
			return h, err
		}
		if entry.WorldID != h.WorldID {
			return h, fmt.Errorf("entry %d belongs to world %q, not %q", entry.Sequence, entry.WorldID, h.WorldID)
		}
		if entry.Sequence != h.LastSequence+1 {
			return h, fmt.Errorf("entry %d does not follow %d", entry.Sequence, h.LastSequence)
		}
		h.LastSequence = entry.Sequence
		body = append(body, entry)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return h, err
	}
	bw := bufio.NewWriterSize(enc, 128*1024)
	je := json.NewEncoder(bw)
	if err := je.Encode(h); err != nil {
		_ = enc.Close()
		return h, fmt.Errorf("write header: %w", err)
	}
	for _, entry := range body {
		if err := je.Encode(entry); err != nil {
			_ = enc.Close()
			return h, fmt.Errorf("write entry %d: %w", entry.Sequence, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return h, err
	}
	return h, enc.Close()
}

// ExportWorld archives a stored world from its genesis snapshot onward.
func ExportWorld(ctx context.Context, w io.Writer, store storage.Store, worldID string) (Header, error) {
	snap, err := store.SnapshotAtOrBefore(ctx, worldID, 0)
	if err != nil {
		return Header{}, fmt.Errorf("genesis snapshot for %q: %w", worldID, err)
	}
	base, _, err := snapshot.Decode(snap.Data)
	if err != nil {
		return Header{}, err
	}
	return Export(ctx, w, base, eventlog.Replay(ctx, store, worldID, base.Sequence+1, eventlog.DefaultPageSize))
}

// WriteFile exports a stored world to path, creating parent directories.
func WriteFile(ctx context.Context, path string, store storage.Store, worldID string) (Header, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Header{}, err
	}
	f, err := os.Create(path)
	if err != nil {
		return Header{}, err
	}
	h, err := ExportWorld(ctx, f, store, worldID)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return h, err
}

// Read decodes an archive and checks that its entries are gapless and
// agree with the header.
func Read(r io.Reader) (*Archive, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLine)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, errors.New("empty archive")
	}

	a := &Archive{}
	if err := json.Unmarshal(sc.Bytes(), &a.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if a.Header.Version != Version {
		return nil, fmt.Errorf("archive version %d: unsupported", a.Header.Version)
	}
	if a.Header.Base == nil || a.Header.Base.WorldID != a.Header.WorldID {
		return nil, errors.New("archive header has no base state for its world")
	}
	// Round-trip through a clone so decoded nil sets become empty.
	a.Header.Base = state.Clone(a.Header.Base)

	want := a.Header.BaseSequence + 1
	for sc.Scan() {
		entry, err := eventlog.Decode(sc.Bytes())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", len(a.Entries)+2, err)
		}
		if entry.Sequence != want {
			return nil, fmt.Errorf("archive gap: got %d, want %d", entry.Sequence, want)
		}
		a.Entries = append(a.Entries, entry)
		want++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if last := want - 1; last != a.Header.LastSequence {
		return nil, fmt.Errorf("archive truncated: ends at %d, header says %d", last, a.Header.LastSequence)
	}
	return a, nil
}

// ReadFile reads the archive at path.
func ReadFile(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Import writes an archive into a store that has never seen its world.
// The base becomes the world's genesis snapshot and the entries its log.
func Import(ctx context.Context, store storage.Store, a *Archive) error {
	worldID := a.Header.WorldID
	if _, err := store.LatestSnapshot(ctx, worldID); err == nil {
		return fmt.Errorf("world %q already has snapshots: %w", worldID, storage.ErrConflict)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if last, err := store.LastSequence(ctx, worldID); err != nil {
		return err
	} else if last != 0 {
		return fmt.Errorf("world %q already has %d entries: %w", worldID, last, storage.ErrConflict)
	}
	if a.Header.BaseSequence != 0 {
		return fmt.Errorf("archive starts at %d; only archives from genesis can be imported", a.Header.BaseSequence)
	}

	data, err := snapshot.Encode(a.Header.Base)
	if err != nil {
		return err
	}
	if err := store.PutSnapshot(ctx, storage.Snapshot{
		WorldID:   worldID,
		ID:        BaseSnapshotID,
		Label:     "imported",
		Sequence:  a.Header.Base.Sequence,
		Time:      a.Header.Base.Time,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	journal, err := eventlog.Open(ctx, store, worldID)
	if err != nil {
		return err
	}
	for _, entry := range a.Entries {
		if _, err := journal.Append(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// Verify folds the archive from its base with full outcome checks and
// returns the final state.
func Verify(ctx context.Context, a *Archive, defs *state.Defs) (*types.WorldState, error) {
	return eventlog.Fold(ctx, a.Header.Base, defs, a.All(), 0, true)
}
