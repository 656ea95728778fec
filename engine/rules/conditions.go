package rules

import (
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// ConditionTypes lists every condition type EvalCondition understands.
var ConditionTypes = map[string]bool{
	"has_item":        true,
	"flag_set":        true,
	"flag_not":        true,
	"flag_is":         true,
	"in_location":     true,
	"stat_gt":         true,
	"stat_lt":         true,
	"npc_at":          true,
	"npc_has_tag":     true,
	"npc_mood":        true,
	"relationship_gt": true,
	"relationship_lt": true,
	"not":             true,
}

// EvalCondition evaluates a single condition for the acting player.
func EvalCondition(c types.Condition, s *types.WorldState, playerID string) bool {
	switch c.Type {
	case "has_item":
		item, _ := c.Params["item"].(string)
		return state.HasItem(s, playerID, item)

	case "flag_set":
		flag, _ := c.Params["flag"].(string)
		return state.GetFlag(s, flag)

	case "flag_not":
		flag, _ := c.Params["flag"].(string)
		return !state.GetFlag(s, flag)

	case "flag_is":
		flag, _ := c.Params["flag"].(string)
		value, _ := c.Params["value"].(bool)
		return state.GetFlag(s, flag) == value

	case "in_location":
		loc, _ := c.Params["location"].(string)
		return state.PlayerLocation(s, playerID) == loc

	case "stat_gt":
		stat, _ := c.Params["stat"].(string)
		return s.Players[playerID].Stats[stat] > toInt(c.Params["value"])

	case "stat_lt":
		stat, _ := c.Params["stat"].(string)
		return s.Players[playerID].Stats[stat] < toInt(c.Params["value"])

	case "npc_at":
		npc, _ := c.Params["npc"].(string)
		loc, _ := c.Params["location"].(string)
		n, ok := s.NPCs[npc]
		return ok && n.Active && n.Location == loc

	case "npc_has_tag":
		npc, _ := c.Params["npc"].(string)
		tag, _ := c.Params["tag"].(string)
		n, ok := s.NPCs[npc]
		return ok && state.Contains(n.Tags, tag)

	case "npc_mood":
		npc, _ := c.Params["npc"].(string)
		mood, _ := c.Params["mood"].(string)
		return s.NPCs[npc].Mood == mood

	case "relationship_gt":
		npc, _ := c.Params["npc"].(string)
		return s.NPCs[npc].Relationship > toInt(c.Params["value"])

	case "relationship_lt":
		npc, _ := c.Params["npc"].(string)
		return s.NPCs[npc].Relationship < toInt(c.Params["value"])

	case "not":
		if c.Inner == nil {
			return true
		}
		return !EvalCondition(*c.Inner, s, playerID)

	default:
		return false
	}
}

// EvalAllConditions returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalAllConditions(conditions []types.Condition, s *types.WorldState, playerID string) bool {
	for _, c := range conditions {
		if !EvalCondition(c, s, playerID) {
			return false
		}
	}
	return true
}

// toInt converts an any value to int, handling float64 from JSON/Lua.
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
