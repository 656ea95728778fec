package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/nathoo/worldcore/engine/random"
	"github.com/nathoo/worldcore/engine/resolve"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// ErrDivergence is matched by every DivergenceError.
var ErrDivergence = errors.New("replay diverged from log")

// DivergenceError reports an entry whose re-resolution does not match
// what was recorded.
type DivergenceError struct {
	Sequence uint64
	Field    string
	Want     string
	Got      string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("entry %d: %s diverged (recorded %s, replayed %s)", e.Sequence, e.Field, e.Want, e.Got)
}

func (e *DivergenceError) Unwrap() error { return ErrDivergence }

// Apply re-resolves one entry on top of base. With verify set, the
// replayed outcome and state digest must match the recorded ones.
func Apply(base *types.WorldState, defs *state.Defs, entry types.EventLogEntry, verify bool) (*types.WorldState, error) {
	diverged := func(field, want, got string) error {
		return &DivergenceError{Sequence: entry.Sequence, Field: field, Want: want, Got: got}
	}
	if entry.Sequence != base.Sequence+1 {
		return nil, diverged("sequence", fmt.Sprint(base.Sequence+1), fmt.Sprint(entry.Sequence))
	}
	if entry.Seed.Root != base.Seed || entry.Seed.Time != base.Time || entry.Seed.Sequence != entry.Sequence {
		return nil, diverged("seed", fmt.Sprintf("%+v", entry.Seed),
			fmt.Sprintf("{Root:%d Time:%d Sequence:%d}", base.Seed, base.Time, entry.Sequence))
	}

	stream := random.FromSeed(base.WorldID, entry.Seed)
	next, outcome, err := resolve.Resolve(base, defs, entry.Action, stream, resolve.Options{})
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", entry.Sequence, err)
	}
	if !verify {
		return next, nil
	}

	if len(outcome.Draws) != entry.Seed.Draws {
		return nil, diverged("draws", fmt.Sprint(entry.Seed.Draws), fmt.Sprint(len(outcome.Draws)))
	}
	want, err := json.Marshal(entry.Outcome)
	if err != nil {
		return nil, err
	}
	got, err := json.Marshal(outcome)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want, got) {
		return nil, diverged("outcome", string(want), string(got))
	}
	digest, err := state.Digest(next)
	if err != nil {
		return nil, err
	}
	if digest != entry.Digest {
		return nil, diverged("digest", entry.Digest, digest)
	}
	return next, nil
}

// Fold applies entries to base in order and returns the resulting state.
// Entries past upTo are ignored; upTo == 0 folds everything. base is not
// modified.
func Fold(ctx context.Context, base *types.WorldState, defs *state.Defs, entries iter.Seq2[types.EventLogEntry, error], upTo uint64, verify bool) (*types.WorldState, error) {
	cur := state.Clone(base)
	for entry, err := range entries {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if upTo != 0 && entry.Sequence > upTo {
			break
		}
		next, err := Apply(cur, defs, entry, verify)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if upTo != 0 && cur.Sequence < upTo {
		return nil, fmt.Errorf("log ends at %d before requested sequence %d", cur.Sequence, upTo)
	}
	return cur, nil
}
