// Package effects implements centralized state mutation via the Apply function.
// Every effect type is one atomic operation. No logic in effects.
package effects

import (
	"strconv"
	"strings"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// Relationship bounds for adjust_relationship.
const (
	MinRelationship = -100
	MaxRelationship = 100
)

// Types lists every effect type Apply understands.
var Types = map[string]bool{
	"set_flag":            true,
	"give_item":           true,
	"remove_item":         true,
	"place_item":          true,
	"move_npc":            true,
	"move_player":         true,
	"set_stat":            true,
	"inc_stat":            true,
	"set_mood":            true,
	"set_world_mood":      true,
	"adjust_relationship": true,
	"add_tag":             true,
	"remove_tag":          true,
	"open_exit":           true,
	"close_exit":          true,
	"activate_npc":        true,
	"deactivate_npc":      true,
	"spawn_npc":           true,
	"hook":                true,
	"emit_event":          true,
	"stop":                true,
}

// Context carries the acting player and resolved action references used
// for template substitution in effect params.
type Context struct {
	PlayerID string
	Target   string
	Item     string
	NPC      string
}

// Result collects what a batch of effects did.
type Result struct {
	Events  []types.Event
	Changes []types.Change
	Hooks   []string
	Stopped bool
}

// Merge appends another result's contents.
func (r *Result) Merge(o Result) {
	r.Events = append(r.Events, o.Events...)
	r.Changes = append(r.Changes, o.Changes...)
	r.Hooks = append(r.Hooks, o.Hooks...)
	r.Stopped = r.Stopped || o.Stopped
}

// Apply applies a list of effects to s, mutating it. s must be a working
// copy owned by the caller.
func Apply(s *types.WorldState, effects []types.Effect, ctx Context) Result {
	var r Result
	actor := ctx.PlayerID

	for _, eff := range effects {
		str := func(key string) string {
			v, _ := eff.Params[key].(string)
			return resolveTemplate(v, ctx)
		}

		switch eff.Type {
		case "set_flag":
			flag := str("flag")
			value, _ := eff.Params["value"].(bool)
			s.Flags[flag] = value
			r.change("set_flag", "world", flag, strconv.FormatBool(value))
			r.event("flag_changed", map[string]any{"flag": flag, "value": value})

		case "give_item":
			item := str("item")
			detachItem(s, item)
			p := s.Players[actor]
			p.Inventory = state.AddToSet(p.Inventory, item)
			s.Players[actor] = p
			r.change("give_item", actor, "inventory", item)
			r.event("item_taken", map[string]any{"item": item, "player": actor})

		case "remove_item":
			item := str("item")
			p := s.Players[actor]
			p.Inventory = state.RemoveFromSet(p.Inventory, item)
			s.Players[actor] = p
			r.change("remove_item", actor, "inventory", item)
			r.event("item_removed", map[string]any{"item": item, "player": actor})

		case "place_item":
			item := str("item")
			loc := str("location")
			if loc == "" {
				loc = s.Players[actor].Location
			}
			detachItem(s, item)
			l := s.Locations[loc]
			l.Items = state.AddToSet(l.Items, item)
			s.Locations[loc] = l
			r.change("place_item", loc, "items", item)
			r.event("item_dropped", map[string]any{"item": item, "location": loc})

		case "move_npc":
			npcID := str("npc")
			loc := str("location")
			npc, ok := s.NPCs[npcID]
			if !ok {
				continue
			}
			relocateNPC(s, &npc, loc)
			s.NPCs[npcID] = npc
			r.change("move_npc", npcID, "location", loc)
			r.event("npc_moved", map[string]any{"npc": npcID, "location": loc})

		case "move_player":
			loc := str("location")
			p := s.Players[actor]
			p.Location = loc
			s.Players[actor] = p
			r.change("move_player", actor, "location", loc)
			r.event("location_entered", map[string]any{"location": loc, "player": actor})

		case "set_stat":
			stat := str("stat")
			value := toInt(eff.Params["value"])
			s.Players[actor].Stats[stat] = value
			r.change("set_stat", actor, stat, strconv.Itoa(value))

		case "inc_stat":
			stat := str("stat")
			s.Players[actor].Stats[stat] += toInt(eff.Params["amount"])
			r.change("set_stat", actor, stat, strconv.Itoa(s.Players[actor].Stats[stat]))

		case "set_mood":
			npcID := str("npc")
			npc, ok := s.NPCs[npcID]
			if !ok {
				continue
			}
			npc.Mood = str("mood")
			s.NPCs[npcID] = npc
			r.change("set_mood", npcID, "mood", npc.Mood)
			r.event("mood_changed", map[string]any{"npc": npcID, "mood": npc.Mood})

		case "set_world_mood":
			s.Mood = str("mood")
			r.change("set_world_mood", "world", "mood", s.Mood)

		case "adjust_relationship":
			npcID := str("npc")
			npc, ok := s.NPCs[npcID]
			if !ok {
				continue
			}
			npc.Relationship = clamp(npc.Relationship+toInt(eff.Params["amount"]), MinRelationship, MaxRelationship)
			s.NPCs[npcID] = npc
			r.change("adjust_relationship", npcID, "relationship", strconv.Itoa(npc.Relationship))
			r.event("relationship_changed", map[string]any{"npc": npcID, "value": npc.Relationship})

		case "add_tag", "remove_tag":
			npcID := str("npc")
			npc, ok := s.NPCs[npcID]
			if !ok {
				continue
			}
			tag := str("tag")
			if eff.Type == "add_tag" {
				npc.Tags = state.AddToSet(npc.Tags, tag)
			} else {
				npc.Tags = state.RemoveFromSet(npc.Tags, tag)
			}
			s.NPCs[npcID] = npc
			r.change(eff.Type, npcID, "tags", tag)

		case "open_exit":
			locID := str("location")
			dir := str("direction")
			target := str("target")
			loc, ok := s.Locations[locID]
			if !ok {
				continue
			}
			loc.Exits[dir] = target
			s.Locations[locID] = loc
			r.change("open_exit", locID, dir, target)
			r.event("exit_opened", map[string]any{"location": locID, "direction": dir})

		case "close_exit":
			locID := str("location")
			dir := str("direction")
			loc, ok := s.Locations[locID]
			if !ok {
				continue
			}
			delete(loc.Exits, dir)
			delete(loc.Guards, dir)
			s.Locations[locID] = loc
			r.change("close_exit", locID, dir, "")
			r.event("exit_closed", map[string]any{"location": locID, "direction": dir})

		case "activate_npc", "deactivate_npc":
			npcID := str("npc")
			npc, ok := s.NPCs[npcID]
			if !ok {
				continue
			}
			npc.Active = eff.Type == "activate_npc"
			s.NPCs[npcID] = npc
			r.change(eff.Type, npcID, "active", strconv.FormatBool(npc.Active))

		case "spawn_npc":
			npcID := str("npc")
			loc := str("location")
			npc, ok := s.NPCs[npcID]
			if !ok {
				npc = types.NPC{ID: npcID, Name: str("name"), Tags: []string{}}
				if npc.Name == "" {
					npc.Name = npcID
				}
			}
			npc.Active = true
			relocateNPC(s, &npc, loc)
			s.NPCs[npcID] = npc
			r.change("spawn_npc", npcID, "location", loc)
			r.event("npc_spawned", map[string]any{"npc": npcID, "location": loc})

		case "hook":
			r.Hooks = append(r.Hooks, str("tag"))

		case "emit_event":
			r.event(str("event"), map[string]any{})

		case "stop":
			r.Stopped = true
			return r

		default:
			// Unknown effect types are ignored.
		}
	}

	return r
}

func (r *Result) change(op, entity, field, value string) {
	r.Changes = append(r.Changes, types.Change{Op: op, Entity: entity, Field: field, Value: value})
}

func (r *Result) event(typ string, data map[string]any) {
	r.Events = append(r.Events, types.Event{Type: typ, Data: data})
}

// detachItem removes an item from every location and inventory so it can
// be placed in exactly one new spot.
func detachItem(s *types.WorldState, item string) {
	for id, loc := range s.Locations {
		if state.Contains(loc.Items, item) {
			loc.Items = state.RemoveFromSet(loc.Items, item)
			s.Locations[id] = loc
		}
	}
	for id, p := range s.Players {
		if state.Contains(p.Inventory, item) {
			p.Inventory = state.RemoveFromSet(p.Inventory, item)
			s.Players[id] = p
		}
	}
}

// relocateNPC moves an NPC and keeps both location membership sets in step.
func relocateNPC(s *types.WorldState, npc *types.NPC, to string) {
	if from, ok := s.Locations[npc.Location]; ok {
		from.NPCs = state.RemoveFromSet(from.NPCs, npc.ID)
		s.Locations[npc.Location] = from
	}
	npc.Location = to
	if dest, ok := s.Locations[to]; ok {
		dest.NPCs = state.AddToSet(dest.NPCs, npc.ID)
		s.Locations[to] = dest
	}
}

// resolveTemplate handles {actor}, {target}, {item} and {npc} in effect params.
func resolveTemplate(s string, ctx Context) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return strings.NewReplacer(
		"{actor}", ctx.PlayerID,
		"{target}", ctx.Target,
		"{item}", ctx.Item,
		"{npc}", ctx.NPC,
	).Replace(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}
