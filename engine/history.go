package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/worldcore/engine/eventlog"
	"github.com/nathoo/worldcore/engine/snapshot"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/storage"
	"github.com/nathoo/worldcore/types"
)

// Checkpoint describes a stored snapshot.
type Checkpoint struct {
	ID        string
	Label     string
	Sequence  uint64
	Time      int64
	CreatedAt time.Time
}

// Replay rebuilds the world as it stood after entry upTo, starting from
// the nearest snapshot and verifying every entry on the way. upTo == 0
// means the latest committed entry. The live world is not touched.
func (e *Engine) Replay(ctx context.Context, upTo uint64) (*types.WorldState, error) {
	ctx, span := e.tracer.Start(ctx, "engine.replay", trace.WithAttributes(
		attribute.String("world.id", e.worldID),
		attribute.Int64("replay.up_to", int64(upTo)),
	))
	defer span.End()

	last := e.journal.Last()
	if upTo == 0 {
		upTo = last
	}
	if upTo > last {
		return nil, fmt.Errorf("world %s: sequence %d not committed yet (last %d)", e.worldID, upTo, last)
	}
	snap, err := e.backend.SnapshotAtOrBefore(ctx, e.worldID, upTo)
	if err != nil {
		return nil, fmt.Errorf("world %s: snapshot at or before %d: %w", e.worldID, upTo, err)
	}
	base, _, err := snapshot.Decode(snap.Data)
	if err != nil {
		return nil, err
	}
	return foldTo(ctx, e, base, upTo)
}

// Verify replays the whole log from genesis and checks the result against
// the live world. It returns the sequence that was verified.
func (e *Engine) Verify(ctx context.Context) (uint64, error) {
	live := e.store.Snapshot()
	snap, err := e.backend.SnapshotAtOrBefore(ctx, e.worldID, 0)
	if err != nil {
		return 0, fmt.Errorf("world %s: genesis snapshot: %w", e.worldID, err)
	}
	base, _, err := snapshot.Decode(snap.Data)
	if err != nil {
		return 0, err
	}
	replayed, err := foldTo(ctx, e, base, live.Sequence)
	if err != nil {
		return 0, err
	}
	want, err := state.Digest(live)
	if err != nil {
		return 0, err
	}
	got, err := state.Digest(replayed)
	if err != nil {
		return 0, err
	}
	if want != got {
		return 0, &eventlog.DivergenceError{Sequence: live.Sequence, Field: "world", Want: want, Got: got}
	}
	return live.Sequence, nil
}

func foldTo(ctx context.Context, e *Engine, base *types.WorldState, upTo uint64) (*types.WorldState, error) {
	if base.Sequence == upTo {
		return base, nil
	}
	if base.Sequence > upTo {
		return nil, errors.New("snapshot is past the requested sequence")
	}
	return eventlog.Fold(ctx, base, e.defs, e.journal.Replay(ctx, base.Sequence+1), upTo, true)
}

// Checkpoint stores a labelled snapshot of the current world.
func (e *Engine) Checkpoint(ctx context.Context, label string) (Checkpoint, error) {
	s := e.store.Snapshot()
	id := "cp_" + ulid.Make().String()
	if label == "" {
		label = fmt.Sprintf("turn %d", s.Sequence)
	}
	if err := e.writeSnapshot(ctx, s, id, label); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: %w", err)
	}
	return Checkpoint{ID: id, Label: label, Sequence: s.Sequence, Time: s.Time, CreatedAt: e.cfg.Now().UTC()}, nil
}

// Checkpoints lists every stored snapshot, genesis included, oldest first.
func (e *Engine) Checkpoints(ctx context.Context) ([]Checkpoint, error) {
	snaps, err := e.backend.ListSnapshots(ctx, e.worldID)
	if err != nil {
		return nil, err
	}
	out := make([]Checkpoint, len(snaps))
	for i, s := range snaps {
		out[i] = Checkpoint{ID: s.ID, Label: s.Label, Sequence: s.Sequence, Time: s.Time, CreatedAt: s.CreatedAt}
	}
	return out, nil
}

// CheckpointState decodes the snapshot with the given id.
func (e *Engine) CheckpointState(ctx context.Context, id string) (*types.WorldState, error) {
	snaps, err := e.backend.ListSnapshots(ctx, e.worldID)
	if err != nil {
		return nil, err
	}
	for _, s := range snaps {
		if s.ID != id {
			continue
		}
		return e.Replay(ctx, s.Sequence)
	}
	return nil, fmt.Errorf("checkpoint %q: %w", id, storage.ErrNotFound)
}

func traceAction(a types.Action) []trace.SpanStartOption {
	return []trace.SpanStartOption{trace.WithAttributes(
		attribute.String("action.kind", string(a.Kind)),
		attribute.String("player.id", a.PlayerID),
	)}
}
