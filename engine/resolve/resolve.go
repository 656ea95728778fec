// Package resolve implements the Action Resolver: the per-kind state
// transitions that turn an accepted action into the next world state and
// an OutcomeRecord. Resolution works on a clone; the input state is never
// touched, so a failed resolution leaves nothing behind.
package resolve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/worldcore/engine/dialogue"
	"github.com/nathoo/worldcore/engine/effects"
	"github.com/nathoo/worldcore/engine/events"
	"github.com/nathoo/worldcore/engine/random"
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// InvariantError reports a transition that produced, or would produce, an
// inconsistent world. It means the rule engine and the resolver disagree,
// which is a defect rather than a player mistake.
type InvariantError struct {
	Kind     types.ActionKind
	PlayerID string
	Problems []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation resolving %s for %s: %s",
		e.Kind, e.PlayerID, strings.Join(e.Problems, "; "))
}

// Options tunes resolution.
type Options struct {
	// Paranoid re-runs rules.Validate before resolving and treats a
	// rejection as an invariant violation.
	Paranoid bool
}

// DrawsFor returns how many random draws an action kind consumes.
func DrawsFor(kind types.ActionKind) int {
	switch kind {
	case types.ActionMove, types.ActionWait:
		return 0
	default:
		return 1
	}
}

// plan is what a kind-specific transition wants applied.
type plan struct {
	effects []types.Effect
	chance  *types.Chance
	hooks   []string
	ctx     effects.Context
	ticks   int
	rolls   bool
}

// Resolve computes the next state and outcome for an accepted action. The
// stream must be keyed on the sequence this action will be logged under.
func Resolve(s *types.WorldState, defs *state.Defs, a types.Action, stream *random.Stream, opts Options) (*types.WorldState, types.OutcomeRecord, error) {
	fail := func(format string, args ...any) (*types.WorldState, types.OutcomeRecord, error) {
		return nil, types.OutcomeRecord{}, &InvariantError{
			Kind:     a.Kind,
			PlayerID: a.PlayerID,
			Problems: []string{fmt.Sprintf(format, args...)},
		}
	}

	// 1. Optional re-validation.
	if opts.Paranoid {
		if rej := rules.Validate(s, defs, a); rej != nil {
			return fail("accepted action fails validation: %s", rej.Error())
		}
	}
	if _, ok := s.Players[a.PlayerID]; !ok {
		return fail("no player %q", a.PlayerID)
	}

	// 2. Work on a private copy.
	next := state.Clone(s)
	timeBefore := next.Time

	// 3. Build the kind-specific plan.
	var (
		p   plan
		err error
	)
	switch a.Kind {
	case types.ActionMove:
		p, err = planMove(next, a)
	case types.ActionInteract:
		p, err = planInteract(next, defs, a)
	case types.ActionSpeak:
		p, err = planSpeak(next, defs, a)
	case types.ActionUseItem:
		p, err = planUseItem(next, defs, a)
	case types.ActionWait:
		p, err = planWait(a)
	case types.ActionCustom:
		p, err = planCustom(defs, a)
	default:
		err = fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if err != nil {
		return fail("%s", err.Error())
	}
	p.ctx.PlayerID = a.PlayerID

	// 4. Fixed draw accounting: rolling kinds draw exactly once, whether
	// or not their rule carries a chance.
	success := true
	effs := append([]types.Effect(nil), p.effects...)
	if p.rolls {
		roll := stream.Percent()
		if p.chance != nil {
			success = roll <= p.chance.Percent
			if success {
				effs = append(effs, p.chance.Success...)
			} else {
				effs = append(effs, p.chance.Failure...)
			}
		}
	}

	// 5. Apply effects.
	res := effects.Apply(next, effs, p.ctx)

	// 6. Dispatch events (single pass, handler effects are not re-dispatched).
	if fired := events.Dispatch(res.Events, next, defs, a.PlayerID); len(fired) > 0 {
		for _, f := range fired {
			p.hooks = append(p.hooks, f.Hook())
		}
		res.Merge(effects.Apply(next, events.Effects(fired), p.ctx))
	}

	// 7. Advance the clock and bookkeeping. Waiting moves only the clock.
	next.Time = timeBefore + int64(p.ticks)
	if a.Kind != types.ActionWait {
		pl := next.Players[a.PlayerID]
		pl.Turn++
		next.Players[a.PlayerID] = pl
	}
	next.Sequence = stream.Sequence()
	res.Changes = append(res.Changes, types.Change{
		Op: "advance_time", Entity: "world", Field: "time", Value: strconv.FormatInt(next.Time, 10),
	})

	draws := stream.Draws()
	if len(draws) != DrawsFor(a.Kind) {
		return fail("consumed %d draws, want %d", len(draws), DrawsFor(a.Kind))
	}

	// 8. Re-check world invariants.
	if problems := state.CheckInvariants(next); len(problems) > 0 {
		return nil, types.OutcomeRecord{}, &InvariantError{Kind: a.Kind, PlayerID: a.PlayerID, Problems: problems}
	}

	outcome := types.OutcomeRecord{
		Kind:       a.Kind,
		PlayerID:   a.PlayerID,
		Success:    success,
		Affected:   affected(a.PlayerID, p.ctx, res.Changes),
		Changes:    res.Changes,
		Draws:      draws,
		Hooks:      append(p.hooks, res.Hooks...),
		TimeBefore: timeBefore,
		TimeAfter:  next.Time,
	}
	if outcome.Hooks == nil {
		outcome.Hooks = []string{}
	}
	return next, outcome, nil
}

func planMove(s *types.WorldState, a types.Action) (plan, error) {
	p := s.Players[a.PlayerID]
	loc, ok := s.Locations[p.Location]
	if !ok {
		return plan{}, fmt.Errorf("player stands in unknown location %q", p.Location)
	}
	dest, ok := loc.Exits[a.Move.Direction]
	if !ok {
		return plan{}, fmt.Errorf("exit %q vanished from %s", a.Move.Direction, loc.ID)
	}
	if _, ok := s.Locations[dest]; !ok {
		return plan{}, fmt.Errorf("exit %q leads to unknown location %q", a.Move.Direction, dest)
	}
	return plan{
		effects: []types.Effect{{Type: "move_player", Params: map[string]any{"location": dest}}},
		hooks:   []string{"move:" + a.Move.Direction, "enter:" + dest},
		ctx:     effects.Context{Target: dest},
		ticks:   1,
	}, nil
}

func planInteract(s *types.WorldState, defs *state.Defs, a types.Action) (plan, error) {
	in := a.Interact
	ctx := effects.Context{Target: in.Target}
	if _, ok := defs.Items[in.Target]; ok {
		ctx.Item = in.Target
	}
	if _, ok := s.NPCs[in.Target]; ok {
		ctx.NPC = in.Target
	}
	base := plan{ctx: ctx, ticks: 1, rolls: true}

	if rule, ok := rules.FirstInteraction(s, defs, a.PlayerID, in.Target, in.Verb); ok {
		base.effects = rule.Effects
		base.chance = rule.Chance
		base.hooks = []string{"interaction:" + rule.ID}
		return base, nil
	}

	switch in.Verb {
	case "take":
		base.effects = []types.Effect{{Type: "give_item", Params: map[string]any{"item": in.Target}}}
	case "drop":
		base.effects = []types.Effect{{Type: "place_item", Params: map[string]any{"item": in.Target}}}
	case "examine":
	default:
		return plan{}, fmt.Errorf("no interaction for %s %s", in.Verb, in.Target)
	}
	base.hooks = []string{in.Verb + ":" + in.Target}
	return base, nil
}

func planSpeak(s *types.WorldState, defs *state.Defs, a types.Action) (plan, error) {
	sp := a.Speak
	base := plan{ctx: effects.Context{NPC: sp.NPC, Target: sp.NPC}, ticks: 1, rolls: true}

	if sp.Topic == "" && sp.Utterance != "" {
		base.hooks = []string{"chat:" + sp.NPC}
		return base, nil
	}
	key, topic, ok := dialogue.SelectTopic(s, defs, a.PlayerID, sp.NPC, sp.Topic)
	if !ok {
		return plan{}, fmt.Errorf("no available topic %q for %s", sp.Topic, sp.NPC)
	}
	base.effects = topic.Effects
	base.chance = topic.Chance
	base.hooks = []string{"topic:" + sp.NPC + ":" + key}
	return base, nil
}

func planUseItem(s *types.WorldState, defs *state.Defs, a types.Action) (plan, error) {
	u := a.UseItem
	use, ok := rules.FirstUse(s, defs, a.PlayerID, u.Item, u.Target)
	if !ok {
		return plan{}, fmt.Errorf("no usable rule for %s on %q", u.Item, u.Target)
	}
	effs := append([]types.Effect(nil), use.Effects...)
	if use.Consume {
		effs = append(effs, types.Effect{Type: "remove_item", Params: map[string]any{"item": u.Item}})
	}
	ctx := effects.Context{Item: u.Item, Target: u.Target}
	if _, ok := s.NPCs[u.Target]; ok {
		ctx.NPC = u.Target
	}
	return plan{
		effects: effs,
		chance:  use.Chance,
		hooks:   []string{"use:" + use.ID},
		ctx:     ctx,
		ticks:   1,
		rolls:   true,
	}, nil
}

func planWait(a types.Action) (plan, error) {
	if a.Wait.Ticks < 1 {
		return plan{}, fmt.Errorf("wait of %d ticks", a.Wait.Ticks)
	}
	return plan{ticks: a.Wait.Ticks, hooks: []string{"wait"}}, nil
}

func planCustom(defs *state.Defs, a types.Action) (plan, error) {
	c := a.Custom
	def, ok := defs.Customs[c.Name]
	if !ok {
		return plan{}, fmt.Errorf("unknown custom action %q", c.Name)
	}
	return plan{
		effects: def.Effects,
		chance:  def.Chance,
		hooks:   []string{"custom:" + c.Name},
		ctx: effects.Context{
			Target: c.Args["target"],
			Item:   c.Args["item"],
			NPC:    c.Args["npc"],
		},
		ticks: 1,
		rolls: true,
	}, nil
}

// affected lists every entity the action touched, sorted and unique.
func affected(playerID string, ctx effects.Context, changes []types.Change) []string {
	seen := map[string]bool{playerID: true}
	for _, id := range []string{ctx.Target, ctx.Item, ctx.NPC} {
		if id != "" {
			seen[id] = true
		}
	}
	for _, c := range changes {
		if c.Entity != "" && c.Entity != "world" {
			seen[c.Entity] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
