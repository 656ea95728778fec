package rules

import (
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// Visible reports whether target is an item the player carries or can see
// in their location, or an active NPC standing there.
func Visible(s *types.WorldState, playerID, target string) bool {
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	if state.Contains(p.Inventory, target) || state.ItemHere(s, p.Location, target) {
		return true
	}
	npc, ok := s.NPCs[target]
	return ok && npc.Active && npc.Location == p.Location
}

// IsFeature reports whether target is a fixed feature of a location, i.e.
// something only interactions scoped to that location refer to.
func IsFeature(defs *state.Defs, locationID, target string) bool {
	if _, ok := defs.Items[target]; ok {
		return false
	}
	for _, in := range defs.Interactions {
		if in.Target == target && in.Location == locationID {
			return true
		}
	}
	return false
}

// Known reports whether target names anything in the world at all.
func Known(s *types.WorldState, defs *state.Defs, target string) bool {
	if _, ok := defs.Items[target]; ok {
		return true
	}
	if _, ok := s.NPCs[target]; ok {
		return true
	}
	for _, in := range defs.Interactions {
		if in.Target == target {
			return true
		}
	}
	return false
}

// Interactions returns the interactions for verb on target that apply in
// a location, in source order.
func Interactions(defs *state.Defs, locationID, target, verb string) []types.Interaction {
	var out []types.Interaction
	for _, in := range defs.Interactions {
		if in.Target != target || in.Verb != verb {
			continue
		}
		if in.Location != "" && in.Location != locationID {
			continue
		}
		out = append(out, in)
	}
	return out
}

// FirstInteraction returns the first applicable interaction whose
// requirements hold for the player.
func FirstInteraction(s *types.WorldState, defs *state.Defs, playerID, target, verb string) (types.Interaction, bool) {
	loc := state.PlayerLocation(s, playerID)
	for _, in := range Interactions(defs, loc, target, verb) {
		if EvalAllConditions(in.Requires, s, playerID) {
			return in, true
		}
	}
	return types.Interaction{}, false
}

// Uses returns the item uses defined for item on target, in source order.
// An empty target only matches uses without a target.
func Uses(defs *state.Defs, item, target string) []types.ItemUse {
	var out []types.ItemUse
	for _, u := range defs.Uses {
		if u.Item == item && u.Target == target {
			out = append(out, u)
		}
	}
	return out
}

// FirstUse returns the first item use whose requirements hold.
func FirstUse(s *types.WorldState, defs *state.Defs, playerID, item, target string) (types.ItemUse, bool) {
	for _, u := range Uses(defs, item, target) {
		if EvalAllConditions(u.Requires, s, playerID) {
			return u, true
		}
	}
	return types.ItemUse{}, false
}
