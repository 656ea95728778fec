// Package engine is the single authority over a world. It wires the
// orchestrator, rule engine, resolver, event log and state store into one
// commit path: every accepted action is validated, resolved, made durable
// and only then applied.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/worldcore/agent"
	"github.com/nathoo/worldcore/engine/dialogue"
	"github.com/nathoo/worldcore/engine/eventlog"
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/engine/snapshot"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/storage"
	"github.com/nathoo/worldcore/types"
)

var (
	// ErrHalted is returned while the world cannot reach its store. The
	// world accepts nothing until the store answers again.
	ErrHalted = errors.New("world halted")
	// ErrInvariant wraps a resolver invariant violation. The action was
	// aborted and state is unchanged.
	ErrInvariant = errors.New("invariant violation")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("world closed")
)

// GenesisID is the id of the snapshot written when a world is first opened.
const GenesisID = "genesis"

// Config tunes an Engine.
type Config struct {
	// SnapshotEvery writes a snapshot after every n committed entries.
	// Zero disables automatic snapshots.
	SnapshotEvery uint64
	// Paranoid re-validates inside the resolver and fails loudly on any
	// disagreement.
	Paranoid bool
	// QueueSize bounds the number of actions waiting for the writer.
	QueueSize int
	Logger    *log.Logger
	Tracer    trace.Tracer
	Now       func() time.Time
}

// Report is what a submitter gets back for an accepted action.
type Report struct {
	Action    types.Action
	Outcome   types.OutcomeRecord
	Sequence  uint64
	Narrative string
	// Text holds the world's own lines for the rules that fired.
	Text []string
	// Fallback is set when Narrative came from a template rather than the
	// narrator.
	Fallback bool
}

// Engine owns one world. All mutations go through a single writer
// goroutine; reads are served from clones.
type Engine struct {
	worldID string
	defs    *state.Defs
	backend storage.Store
	journal *eventlog.Journal
	store   *state.Store
	orch    *agent.Orchestrator
	cfg     Config
	log     *log.Logger
	tracer  trace.Tracer

	requests  chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the writer goroutine.
	halted  bool
	haltErr error
}

// Open loads a world from backend, or creates it from genesis when the
// backend has never seen it. The latest snapshot is restored and the log
// after it is folded with full verification, so a world whose log does
// not reproduce its recorded outcomes refuses to open.
func Open(ctx context.Context, worldID string, defs *state.Defs, genesis *types.WorldState, backend storage.Store, orch *agent.Orchestrator, cfg Config) (*Engine, error) {
	if orch == nil {
		return nil, errors.New("engine: nil orchestrator")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/nathoo/worldcore/engine")
	}

	base, err := loadBase(ctx, worldID, genesis, backend, cfg.Now)
	if err != nil {
		return nil, err
	}

	journal, err := eventlog.Open(ctx, backend, worldID)
	if err != nil {
		return nil, err
	}
	if journal.Last() < base.Sequence {
		return nil, fmt.Errorf("world %s: snapshot at %d is ahead of the log at %d", worldID, base.Sequence, journal.Last())
	}
	cur, err := eventlog.Fold(ctx, base, defs, journal.Replay(ctx, base.Sequence+1), journal.Last(), true)
	if err != nil {
		return nil, fmt.Errorf("world %s: restore: %w", worldID, err)
	}

	e := &Engine{
		worldID:  worldID,
		defs:     defs,
		backend:  backend,
		journal:  journal,
		store:    state.NewStore(cur),
		orch:     orch,
		cfg:      cfg,
		log:      cfg.Logger,
		tracer:   cfg.Tracer,
		requests: make(chan request, cfg.QueueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go e.run()
	e.log.Printf("world %s open at sequence %d (snapshot %d)", worldID, cur.Sequence, base.Sequence)
	return e, nil
}

// loadBase returns the latest snapshot's state, writing genesis first for
// a new world.
func loadBase(ctx context.Context, worldID string, genesis *types.WorldState, backend storage.Store, now func() time.Time) (*types.WorldState, error) {
	snap, err := backend.LatestSnapshot(ctx, worldID)
	if err == nil {
		s, _, err := snapshot.Decode(snap.Data)
		if err != nil {
			return nil, fmt.Errorf("world %s: snapshot %s: %w", worldID, snap.ID, err)
		}
		if s.WorldID != worldID {
			return nil, fmt.Errorf("world %s: snapshot %s belongs to %q", worldID, snap.ID, s.WorldID)
		}
		return s, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("world %s: latest snapshot: %w", worldID, err)
	}

	if genesis == nil || genesis.WorldID != worldID {
		return nil, fmt.Errorf("world %s: no snapshot and no matching genesis state", worldID)
	}
	if problems := state.CheckInvariants(genesis); len(problems) > 0 {
		return nil, fmt.Errorf("world %s: genesis state is inconsistent: %v", worldID, problems)
	}
	data, err := snapshot.Encode(genesis)
	if err != nil {
		return nil, err
	}
	err = backend.PutSnapshot(ctx, storage.Snapshot{
		WorldID: worldID, ID: GenesisID, Label: GenesisID,
		Sequence: genesis.Sequence, Time: genesis.Time,
		Data: data, CreatedAt: now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("world %s: write genesis: %w", worldID, err)
	}
	return state.Clone(genesis), nil
}

// WorldID returns the id of the world this engine owns.
func (e *Engine) WorldID() string { return e.worldID }

// Defs returns the world's static definitions.
func (e *Engine) Defs() *state.Defs { return e.defs }

// Sequence returns the sequence of the last committed action.
func (e *Engine) Sequence() uint64 { return e.store.Sequence() }

// State returns a deep copy of the current world.
func (e *Engine) State() *types.WorldState { return e.store.Snapshot() }

// View returns what playerID can perceive right now.
func (e *Engine) View(playerID string) (types.WorldView, error) {
	var (
		v   types.WorldView
		err error
	)
	e.store.Read(func(s *types.WorldState) {
		v, err = state.View(s, e.defs, playerID, dialogue.AvailableTopics)
	})
	return v, err
}

// SubmitText submits free text on behalf of playerID.
func (e *Engine) SubmitText(ctx context.Context, playerID, text string) (Report, error) {
	return e.SubmitAction(ctx, playerID, agent.Proposal{Text: text})
}

// SubmitAction runs a proposal through the whole pipeline. A rejected
// proposal returns a *rules.Rejection and leaves the world untouched. An
// accepted one is durable before SubmitAction returns; narration failures
// never undo it.
func (e *Engine) SubmitAction(ctx context.Context, playerID string, p agent.Proposal) (Report, error) {
	ctx, span := e.tracer.Start(ctx, "engine.submit", trace.WithAttributes(
		attribute.String("world.id", e.worldID),
		attribute.String("player.id", playerID),
	))
	defer span.End()

	report, err := e.submit(ctx, playerID, p)
	if err != nil {
		var rej *rules.Rejection
		if errors.As(err, &rej) {
			span.SetAttributes(attribute.String("rejection.code", string(rej.Code)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submit failed")
		}
		return report, err
	}
	span.SetAttributes(
		attribute.String("action.kind", string(report.Action.Kind)),
		attribute.Int64("sequence", int64(report.Sequence)),
		attribute.Bool("narrative.fallback", report.Fallback),
	)
	return report, nil
}

func (e *Engine) submit(ctx context.Context, playerID string, p agent.Proposal) (Report, error) {
	view, err := e.View(playerID)
	if errors.Is(err, state.ErrUnknownPlayer) {
		return Report{}, rules.Reject(rules.UnknownPlayer, "no player %q in this world", playerID)
	}
	if err != nil {
		return Report{}, err
	}

	a, err := e.orch.Propose(ctx, view, playerID, p)
	if err != nil {
		return Report{}, err
	}

	// Cheap early answer for the common case. The writer validates again
	// against whatever state is current when the action's turn comes.
	var rej *rules.Rejection
	e.store.Read(func(s *types.WorldState) {
		rej = rules.Validate(s, e.defs, a)
	})
	if rej != nil {
		return Report{Action: a}, rej
	}

	res := e.commit(ctx, a)
	if res.err != nil {
		return Report{Action: a}, res.err
	}

	report := Report{Action: a, Outcome: res.outcome, Sequence: res.seq, Text: authoredText(e.defs, res.outcome)}
	after, err := e.View(playerID)
	if err != nil {
		after = view
	}
	report.Narrative, report.Fallback = e.orch.Flavor(ctx, after, a, res.outcome)
	return report, nil
}

// Entries yields the committed log from sequence from onward.
func (e *Engine) Entries(ctx context.Context, from uint64) iter.Seq2[types.EventLogEntry, error] {
	return e.journal.Replay(ctx, from)
}

// Close stops the writer. Actions already queued are answered with
// ErrClosed. Close does not close the backend.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		<-e.stopped
		e.log.Printf("world %s closed at sequence %d", e.worldID, e.store.Sequence())
	})
	return nil
}
