package state

import "github.com/nathoo/worldcore/types"

// Clone returns a deep copy of a world. The copy shares no mutable memory
// with the original, so it can be handed to readers or mutated by the
// resolver freely.
func Clone(s *types.WorldState) *types.WorldState {
	if s == nil {
		return nil
	}
	out := *s
	out.Locations = make(map[string]types.Location, len(s.Locations))
	for id, loc := range s.Locations {
		out.Locations[id] = cloneLocation(loc)
	}
	out.NPCs = make(map[string]types.NPC, len(s.NPCs))
	for id, npc := range s.NPCs {
		npc.Tags = cloneStrings(npc.Tags)
		out.NPCs[id] = npc
	}
	out.Players = make(map[string]types.Player, len(s.Players))
	for id, p := range s.Players {
		p.Inventory = cloneStrings(p.Inventory)
		stats := make(map[string]int, len(p.Stats))
		for k, v := range p.Stats {
			stats[k] = v
		}
		p.Stats = stats
		out.Players[id] = p
	}
	out.Flags = make(map[string]bool, len(s.Flags))
	for k, v := range s.Flags {
		out.Flags[k] = v
	}
	return &out
}

func cloneLocation(loc types.Location) types.Location {
	exits := make(map[string]string, len(loc.Exits))
	for dir, target := range loc.Exits {
		exits[dir] = target
	}
	loc.Exits = exits
	if loc.Guards != nil {
		guards := make(map[string][]types.Condition, len(loc.Guards))
		for dir, conds := range loc.Guards {
			guards[dir] = CloneConditions(conds)
		}
		loc.Guards = guards
	}
	loc.Entry = CloneConditions(loc.Entry)
	loc.NPCs = cloneStrings(loc.NPCs)
	loc.Items = cloneStrings(loc.Items)
	return loc
}

// CloneConditions deep-copies a condition list, including params and
// negated inner conditions.
func CloneConditions(conds []types.Condition) []types.Condition {
	if conds == nil {
		return nil
	}
	out := make([]types.Condition, len(conds))
	for i, c := range conds {
		out[i] = cloneCondition(c)
	}
	return out
}

func cloneCondition(c types.Condition) types.Condition {
	if c.Params != nil {
		params := make(map[string]any, len(c.Params))
		for k, v := range c.Params {
			params[k] = v
		}
		c.Params = params
	}
	if c.Inner != nil {
		inner := cloneCondition(*c.Inner)
		c.Inner = &inner
	}
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
