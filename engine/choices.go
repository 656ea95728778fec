package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nathoo/worldcore/agent"
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// recentEvents is how much history the narrator sees when offering choices.
const recentEvents = 5

// Choices offers playerID a short list of actions the world would accept
// right now. fallback reports that the list was built without the
// narrator. Choices never changes the world; a chosen action still goes
// through SubmitAction and is validated again there.
func (e *Engine) Choices(ctx context.Context, playerID string) (choices []agent.Choice, fallback bool, err error) {
	view, err := e.View(playerID)
	if errors.Is(err, state.ErrUnknownPlayer) {
		return nil, false, rules.Reject(rules.UnknownPlayer, "no player %q in this world", playerID)
	}
	if err != nil {
		return nil, false, err
	}
	recent, err := e.recent(ctx, recentEvents)
	if err != nil {
		return nil, false, err
	}

	current := e.store.Snapshot()
	accept := func(a types.Action) bool { return rules.Validate(current, e.defs, a) == nil }
	choices, fallback = e.orch.Choices(ctx, view, recent, accept)
	return choices, fallback, nil
}

// recent summarizes the last n committed actions, oldest first.
func (e *Engine) recent(ctx context.Context, n uint64) ([]string, error) {
	seq := e.store.Sequence()
	if seq == 0 {
		return nil, nil
	}
	from := uint64(1)
	if seq > n {
		from = seq - n + 1
	}
	var out []string
	for entry, err := range e.Entries(ctx, from) {
		if err != nil {
			return nil, fmt.Errorf("read recent events: %w", err)
		}
		if entry.Sequence > seq {
			break
		}
		out = append(out, summarize(entry))
	}
	return out, nil
}

func summarize(entry types.EventLogEntry) string {
	verdict := "failed"
	if entry.Outcome.Success {
		verdict = "succeeded"
	}
	line := fmt.Sprintf("#%d %s: %s %s", entry.Sequence, entry.Action.PlayerID, entry.Action.Kind, verdict)
	if entry.Action.Intent != "" {
		line += fmt.Sprintf(" (%q)", entry.Action.Intent)
	}
	if len(entry.Outcome.Hooks) > 0 {
		line += ", then " + strings.Join(entry.Outcome.Hooks, ", ")
	}
	return line
}
