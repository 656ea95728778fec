// Package events matches emitted events against world handlers. Dispatch
// is a single pass: effects produced by handlers never raise further
// handlers.
package events

import (
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// Fired is one handler that matched one event.
type Fired struct {
	Event   string
	Handler int // index into Defs.Handlers
	Effects []types.Effect
}

// Hook is the outcome tag recorded for a fired handler.
func (f Fired) Hook() string { return "on:" + f.Event }

// Dispatch returns the handlers that fire for evts, in event order and
// then declaration order. Conditions are evaluated for the acting player
// against s as it stands after the action's own effects.
func Dispatch(evts []types.Event, s *types.WorldState, defs *state.Defs, playerID string) []Fired {
	var fired []Fired
	for _, ev := range evts {
		for i, h := range defs.Handlers {
			if h.EventType != ev.Type || !rules.EvalAllConditions(h.Conditions, s, playerID) {
				continue
			}
			fired = append(fired, Fired{Event: ev.Type, Handler: i, Effects: h.Effects})
		}
	}
	return fired
}

// Effects flattens the effects of fired handlers, keeping their order.
func Effects(fired []Fired) []types.Effect {
	var out []types.Effect
	for _, f := range fired {
		out = append(out, f.Effects...)
	}
	return out
}
