package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nathoo/worldcore/engine/eventlog"
	"github.com/nathoo/worldcore/engine/random"
	"github.com/nathoo/worldcore/engine/resolve"
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/engine/snapshot"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/storage"
	"github.com/nathoo/worldcore/types"
)

type request struct {
	ctx    context.Context
	action types.Action
	reply  chan result
}

type result struct {
	outcome types.OutcomeRecord
	seq     uint64
	err     error
}

// commit hands an action to the writer and waits for its verdict. Once
// the writer has the action the caller waits for the answer even if ctx
// ends, so a committed action is never reported as failed.
func (e *Engine) commit(ctx context.Context, a types.Action) result {
	req := request{ctx: ctx, action: a, reply: make(chan result, 1)}
	select {
	case e.requests <- req:
	case <-ctx.Done():
		return result{err: ctx.Err()}
	case <-e.done:
		return result{err: ErrClosed}
	}
	select {
	case r := <-req.reply:
		return r
	case <-e.stopped:
		select {
		case r := <-req.reply:
			return r
		default:
			return result{err: ErrClosed}
		}
	}
}

// run is the writer loop. Channel order is log order.
func (e *Engine) run() {
	defer close(e.stopped)
	for {
		select {
		case <-e.done:
			e.drain()
			return
		case req := <-e.requests:
			req.reply <- e.apply(req)
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case req := <-e.requests:
			req.reply <- result{err: ErrClosed}
		default:
			return
		}
	}
}

// apply validates, resolves, persists and commits one action. Nothing is
// committed unless the log append succeeded.
func (e *Engine) apply(req request) result {
	ctx, span := e.tracer.Start(req.ctx, "engine.commit", traceAction(req.action)...)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return result{err: err}
	}
	if e.halted {
		if err := e.recover(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "halted")
			return result{err: fmt.Errorf("%w: %w", ErrHalted, err)}
		}
	}

	var (
		rej    *rules.Rejection
		next   *types.WorldState
		out    types.OutcomeRecord
		stream *random.Stream
		err    error
	)
	seq := e.journal.Next()
	e.store.Read(func(s *types.WorldState) {
		if s.Sequence+1 != seq {
			err = fmt.Errorf("state at %d but log expects %d", s.Sequence, seq)
			return
		}
		if rej = rules.Validate(s, e.defs, req.action); rej != nil {
			return
		}
		stream = random.NewStream(s.Seed, s.WorldID, s.Time, seq)
		next, out, err = resolve.Resolve(s, e.defs, req.action, stream, resolve.Options{Paranoid: e.cfg.Paranoid})
	})
	if rej != nil {
		span.SetAttributes(attribute.String("rejection.code", string(rej.Code)))
		return result{err: rej}
	}
	if err != nil {
		var inv *resolve.InvariantError
		if errors.As(err, &inv) {
			e.log.Printf("INVARIANT VIOLATION world=%s seq=%d kind=%s player=%s: %v",
				e.worldID, seq, inv.Kind, inv.PlayerID, inv.Problems)
		} else {
			e.log.Printf("resolve failed world=%s seq=%d: %v", e.worldID, seq, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return result{err: fmt.Errorf("%w: %w", ErrInvariant, err)}
	}

	digest, err := state.Digest(next)
	if err != nil {
		return result{err: fmt.Errorf("%w: digest: %w", ErrInvariant, err)}
	}
	entry := types.EventLogEntry{
		ID:         ulid.Make(),
		WorldID:    e.worldID,
		Sequence:   seq,
		WorldTime:  out.TimeAfter,
		RecordedAt: e.cfg.Now().UTC(),
		Action:     req.action,
		Outcome:    out,
		Seed:       stream.Material(),
		Digest:     digest,
	}

	// The append must not be abandoned halfway because the submitter went
	// away.
	durable := context.WithoutCancel(ctx)
	if _, err := e.journal.Append(durable, entry); err != nil {
		e.halt(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return result{err: fmt.Errorf("%w: %w", ErrHalted, err)}
	}
	e.store.Commit(next)
	span.SetAttributes(attribute.Int64("sequence", int64(seq)))

	if every := e.cfg.SnapshotEvery; every > 0 && seq%every == 0 {
		if err := e.writeSnapshot(durable, next, "snap_"+ulid.Make().String(), "auto"); err != nil {
			e.log.Printf("auto snapshot at %d: %v", seq, err)
		}
	}
	return result{outcome: out, seq: seq}
}

func (e *Engine) halt(err error) {
	e.halted = true
	e.haltErr = err
	e.log.Printf("world %s halted at sequence %d: %v", e.worldID, e.store.Sequence(), err)
}

// recover brings a halted world back once the store answers. The failed
// append may have reached the store after all, so the log is re-read and
// any entries past the in-memory state are folded in.
func (e *Engine) recover(ctx context.Context) error {
	if err := e.backend.Ping(ctx); err != nil {
		return err
	}
	if err := e.journal.Resync(ctx); err != nil {
		return err
	}
	cur := e.store.Snapshot()
	last := e.journal.Last()
	if last < cur.Sequence {
		return fmt.Errorf("store has %d entries but the world is at %d", last, cur.Sequence)
	}
	if last > cur.Sequence {
		next, err := eventlog.Fold(ctx, cur, e.defs, e.journal.Replay(ctx, cur.Sequence+1), last, true)
		if err != nil {
			return err
		}
		e.store.Commit(next)
	}
	e.log.Printf("world %s recovered at sequence %d after: %v", e.worldID, last, e.haltErr)
	e.halted = false
	e.haltErr = nil
	return nil
}

func (e *Engine) writeSnapshot(ctx context.Context, s *types.WorldState, id, label string) error {
	data, err := snapshot.Encode(s)
	if err != nil {
		return err
	}
	err = e.backend.PutSnapshot(ctx, storage.Snapshot{
		WorldID: e.worldID, ID: id, Label: label,
		Sequence: s.Sequence, Time: s.Time,
		Data: data, CreatedAt: e.cfg.Now().UTC(),
	})
	if err != nil {
		return err
	}
	e.log.Printf("snapshot %s (%s) at sequence %d", id, label, s.Sequence)
	return nil
}
