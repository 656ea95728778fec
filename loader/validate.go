package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/worldcore/engine/effects"
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// ValidationError collects all validation errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// refKind names which table a parameter key refers to.
type refKind int

const (
	refItem refKind = iota + 1
	refLocation
	refNPC
)

// paramRefs maps condition and effect parameter keys to what they name.
// open_exit's "target" is a location; everywhere else "target" is free.
var paramRefs = map[string]refKind{
	"item":     refItem,
	"location": refLocation,
	"npc":      refNPC,
}

type validator struct {
	w    *World
	errs []string
	// spawned holds npc ids that only exist once a spawn_npc effect runs.
	spawned map[string]bool
}

// validate checks the compiled world for referential integrity. Problems
// that stop the world from running are returned as a *ValidationError;
// the rest are appended to w.Warnings.
func validate(w *World) error {
	v := &validator{w: w, spawned: map[string]bool{}}
	v.collectSpawns()

	def := w.Defs.World
	g := w.Genesis
	if def.ID == "" {
		v.errorf("World.id is required")
	}
	if def.Title == "" {
		v.errorf("World.title is required")
	}
	if def.Start == "" {
		v.errorf("World.start is required")
	} else if _, ok := g.Locations[def.Start]; !ok {
		v.errorf("start location %q not found in defined locations", def.Start)
	}
	if def.MaxWait < 0 {
		v.errorf("World.max_wait must not be negative")
	}

	for _, locID := range state.SortedKeys(g.Locations) {
		loc := g.Locations[locID]
		for _, dir := range state.SortedKeys(loc.Guards) {
			if _, ok := loc.Exits[dir]; !ok {
				w.Warnings = append(w.Warnings, fmt.Sprintf("location %q guards %q which has no exit", locID, dir))
			}
			v.conditions(fmt.Sprintf("location %q guard %q", locID, dir), loc.Guards[dir])
		}
		v.conditions(fmt.Sprintf("location %q entry", locID), loc.Entry)
	}

	for _, npcID := range state.SortedKeys(g.NPCs) {
		if g.NPCs[npcID].Location == "" {
			w.Warnings = append(w.Warnings, fmt.Sprintf("npc %q has no location", npcID))
		}
	}
	for _, npcID := range state.SortedKeys(w.Defs.Topics) {
		if _, ok := g.NPCs[npcID]; !ok && !v.spawned[npcID] {
			v.errorf("topics defined for undefined npc %q", npcID)
		}
		topics := w.Defs.Topics[npcID]
		for _, key := range state.SortedKeys(topics) {
			where := fmt.Sprintf("npc %q topic %q", npcID, key)
			v.conditions(where, topics[key].Requires)
			v.effects(where, topics[key].Effects)
			v.chance(where, topics[key].Chance)
		}
	}

	for _, pid := range state.SortedKeys(g.Players) {
		for _, item := range g.Players[pid].Inventory {
			if _, ok := w.Defs.Items[item]; !ok {
				v.errorf("player %q carries undefined item %q", pid, item)
			}
		}
	}

	for _, in := range w.Defs.Interactions {
		where := fmt.Sprintf("interaction %q", in.ID)
		if in.Target == "" || in.Verb == "" {
			v.errorf("%s needs both target and verb", where)
		}
		if in.Location != "" {
			v.ref(where, refLocation, in.Location)
		}
		_, isItem := w.Defs.Items[in.Target]
		_, isNPC := g.NPCs[in.Target]
		if !isItem && !isNPC && in.Location == "" {
			w.Warnings = append(w.Warnings, fmt.Sprintf("%s targets %q which is no item or npc and has no location", where, in.Target))
		}
		v.conditions(where, in.Requires)
		v.effects(where, in.Effects)
		v.chance(where, in.Chance)
	}

	for _, u := range w.Defs.Uses {
		where := fmt.Sprintf("use %q", u.ID)
		v.ref(where, refItem, u.Item)
		v.conditions(where, u.Requires)
		v.effects(where, u.Effects)
		v.chance(where, u.Chance)
	}

	for _, name := range state.SortedKeys(w.Defs.Customs) {
		c := w.Defs.Customs[name]
		where := fmt.Sprintf("action %q", name)
		if c.Location != "" {
			v.ref(where, refLocation, c.Location)
		}
		v.conditions(where, c.Requires)
		v.effects(where, c.Effects)
		v.chance(where, c.Chance)
	}

	for _, h := range w.Defs.Handlers {
		where := fmt.Sprintf("handler %q", h.EventType)
		v.conditions(where, h.Conditions)
		v.effects(where, h.Effects)
	}

	// Genesis must already satisfy what every transition re-checks.
	for _, p := range state.CheckInvariants(g) {
		v.errorf("genesis: %s", p)
	}

	sort.Strings(w.Warnings)
	if len(v.errs) > 0 {
		return &ValidationError{Errors: v.errs}
	}
	return nil
}

func (v *validator) errorf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

func (v *validator) collectSpawns() {
	var walk func([]types.Effect)
	walk = func(effs []types.Effect) {
		for _, e := range effs {
			if e.Type != "spawn_npc" {
				continue
			}
			if id, ok := e.Params["npc"].(string); ok && !isTemplate(id) {
				v.spawned[id] = true
			}
		}
	}
	walkChance := func(c *types.Chance) {
		if c != nil {
			walk(c.Success)
			walk(c.Failure)
		}
	}
	d := v.w.Defs
	for _, in := range d.Interactions {
		walk(in.Effects)
		walkChance(in.Chance)
	}
	for _, u := range d.Uses {
		walk(u.Effects)
		walkChance(u.Chance)
	}
	for _, c := range d.Customs {
		walk(c.Effects)
		walkChance(c.Chance)
	}
	for _, topics := range d.Topics {
		for _, t := range topics {
			walk(t.Effects)
			walkChance(t.Chance)
		}
	}
	for _, h := range d.Handlers {
		walk(h.Effects)
	}
}

func (v *validator) conditions(where string, conds []types.Condition) {
	for _, c := range conds {
		if !rules.ConditionTypes[c.Type] {
			v.errorf("%s: unknown condition type %q", where, c.Type)
			continue
		}
		if c.Type == "not" {
			if c.Inner == nil {
				v.errorf("%s: Not() without a condition", where)
				continue
			}
			v.conditions(where, []types.Condition{*c.Inner})
			continue
		}
		v.params(where, "condition "+c.Type, c.Params)
	}
}

func (v *validator) effects(where string, effs []types.Effect) {
	for _, e := range effs {
		if !effects.Types[e.Type] {
			v.errorf("%s: unknown effect type %q", where, e.Type)
			continue
		}
		if e.Type == "spawn_npc" {
			// The npc is created here; only its location must exist.
			if loc, ok := e.Params["location"].(string); ok {
				v.ref(where+": effect spawn_npc", refLocation, loc)
			}
			continue
		}
		v.params(where, "effect "+e.Type, e.Params)
		if e.Type == "open_exit" {
			if target, ok := e.Params["target"].(string); ok {
				v.ref(where+": effect open_exit target", refLocation, target)
			}
		}
	}
}

func (v *validator) chance(where string, c *types.Chance) {
	if c == nil {
		return
	}
	if c.Percent < 0 || c.Percent > 100 {
		v.errorf("%s: chance percent %d outside 0..100", where, c.Percent)
	}
	v.effects(where+" on success", c.Success)
	v.effects(where+" on failure", c.Failure)
}

func (v *validator) params(where, what string, params map[string]any) {
	for _, key := range state.SortedKeys(params) {
		kind, ok := paramRefs[key]
		if !ok {
			continue
		}
		if id, ok := params[key].(string); ok {
			v.ref(where+": "+what, kind, id)
		}
	}
}

func (v *validator) ref(where string, kind refKind, id string) {
	// An empty location sends an npc offstage or drops at the actor's feet.
	if id == "" || isTemplate(id) {
		return
	}
	switch kind {
	case refItem:
		if _, ok := v.w.Defs.Items[id]; !ok {
			v.errorf("%s references undefined item %q", where, id)
		}
	case refLocation:
		if _, ok := v.w.Genesis.Locations[id]; !ok {
			v.errorf("%s references undefined location %q", where, id)
		}
	case refNPC:
		if _, ok := v.w.Genesis.NPCs[id]; !ok && !v.spawned[id] {
			v.errorf("%s references undefined npc %q", where, id)
		}
	}
}

// isTemplate returns true if the string contains a template variable.
func isTemplate(s string) bool {
	return strings.Contains(s, "{") && strings.Contains(s, "}")
}
