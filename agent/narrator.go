package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nathoo/worldcore/types"
)

// ErrAgentUnavailable is returned when the narrator does not answer in
// time or answers with an error. The orchestrator always recovers from it
// locally: committed outcomes are never undone by a narrator failure.
var ErrAgentUnavailable = errors.New("agent unavailable")

// SuggestRequest asks the narrator to turn free text the parser could not
// place into a structured proposal.
type SuggestRequest struct {
	View        types.WorldView
	Text        string
	Constraints []string
}

// NarrateRequest asks for prose describing a committed outcome.
type NarrateRequest struct {
	View    types.WorldView
	Outcome types.OutcomeRecord
	Intent  types.Intent
}

// Narrator is the external language model. It proposes and describes;
// it never decides.
type Narrator interface {
	// Suggest returns a JSON action proposal, or "" if it has none.
	Suggest(ctx context.Context, req SuggestRequest) (string, error)
	// Narrate returns prose for an outcome that has already been committed.
	Narrate(ctx context.Context, req NarrateRequest) (string, error)
}

// MockNarrator answers without a model. It never suggests anything and
// narrates by labelling the outcome.
type MockNarrator struct {
	// Delay is slept before every answer, honoring ctx.
	Delay time.Duration
}

func (m MockNarrator) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m MockNarrator) Suggest(ctx context.Context, req SuggestRequest) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	return "", nil
}

func (m MockNarrator) Narrate(ctx context.Context, req NarrateRequest) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	verdict := "fails"
	if req.Outcome.Success {
		verdict = "succeeds"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[mock] %s %s", req.Outcome.Kind, verdict)
	if len(req.Outcome.Changes) > 0 {
		fmt.Fprintf(&b, " (%d changes)", len(req.Outcome.Changes))
	}
	b.WriteString(" in ")
	b.WriteString(req.View.Location.Name)
	b.WriteString(".")
	return b.String(), nil
}
