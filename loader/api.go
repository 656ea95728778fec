package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerHelpers(L, conditionHelpers)
	registerHelpers(L, effectHelpers)
	registerSpecialHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// World { id = "...", title = "...", ... }
	L.SetGlobal("World", L.NewFunction(func(L *lua.LState) int {
		coll.world = L.CheckTable(1)
		return 0
	}))

	// Location "id" { ... }, Item "id" { ... } and so on are curried: the
	// first call takes the id and returns a function taking the table.
	curried := map[string]*[]rawDef{
		"Location":    &coll.locations,
		"Item":        &coll.items,
		"NPC":         &coll.npcs,
		"Player":      &coll.players,
		"Interaction": &coll.interactions,
		"Use":         &coll.uses,
		"Action":      &coll.actions,
	}
	for name, dst := range curried {
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			id := L.CheckString(1)
			L.Push(L.NewFunction(func(L *lua.LState) int {
				*dst = append(*dst, rawDef{id: id, table: L.CheckTable(1)})
				return 0
			}))
			return 1
		}))
	}

	// On("event_type", { conditions = {...}, effects = {...} })
	L.SetGlobal("On", L.NewFunction(func(L *lua.LState) int {
		eventType := L.CheckString(1)
		tbl := L.CheckTable(2)
		coll.handlers = append(coll.handlers, rawHandler{eventType: eventType, table: tbl})
		return 0
	}))
}

// helper describes a Lua function that builds a condition or effect table
// from positional arguments: HasItem("key") → {type="has_item", item="key"}.
type helper struct {
	name string
	typ  string
	args []string
}

var conditionHelpers = []helper{
	{"HasItem", "has_item", []string{"item"}},
	{"FlagSet", "flag_set", []string{"flag"}},
	{"FlagNot", "flag_not", []string{"flag"}},
	{"FlagIs", "flag_is", []string{"flag", "value"}},
	{"InLocation", "in_location", []string{"location"}},
	{"StatGt", "stat_gt", []string{"stat", "value"}},
	{"StatLt", "stat_lt", []string{"stat", "value"}},
	{"NPCAt", "npc_at", []string{"npc", "location"}},
	{"NPCHasTag", "npc_has_tag", []string{"npc", "tag"}},
	{"NPCMood", "npc_mood", []string{"npc", "mood"}},
	{"RelationshipGt", "relationship_gt", []string{"npc", "value"}},
	{"RelationshipLt", "relationship_lt", []string{"npc", "value"}},
}

var effectHelpers = []helper{
	{"SetFlag", "set_flag", []string{"flag", "value"}},
	{"GiveItem", "give_item", []string{"item"}},
	{"RemoveItem", "remove_item", []string{"item"}},
	{"PlaceItem", "place_item", []string{"item", "location"}},
	{"MoveNPC", "move_npc", []string{"npc", "location"}},
	{"MovePlayer", "move_player", []string{"location"}},
	{"SetStat", "set_stat", []string{"stat", "value"}},
	{"IncStat", "inc_stat", []string{"stat", "amount"}},
	{"SetMood", "set_mood", []string{"npc", "mood"}},
	{"SetWorldMood", "set_world_mood", []string{"mood"}},
	{"AdjustRelationship", "adjust_relationship", []string{"npc", "amount"}},
	{"AddTag", "add_tag", []string{"npc", "tag"}},
	{"RemoveTag", "remove_tag", []string{"npc", "tag"}},
	{"OpenExit", "open_exit", []string{"location", "direction", "target"}},
	{"CloseExit", "close_exit", []string{"location", "direction"}},
	{"ActivateNPC", "activate_npc", []string{"npc"}},
	{"DeactivateNPC", "deactivate_npc", []string{"npc"}},
	{"SpawnNPC", "spawn_npc", []string{"npc", "location", "name"}},
	{"Hook", "hook", []string{"tag"}},
	{"EmitEvent", "emit_event", []string{"event"}},
	{"Stop", "stop", nil},
}

func registerHelpers(L *lua.LState, helpers []helper) {
	for _, h := range helpers {
		L.SetGlobal(h.name, L.NewFunction(func(L *lua.LState) int {
			tbl := L.NewTable()
			tbl.RawSetString("type", lua.LString(h.typ))
			for i, key := range h.args {
				if v := L.Get(i + 1); v != lua.LNil {
					tbl.RawSetString(key, v)
				}
			}
			L.Push(tbl)
			return 1
		}))
	}
}

func registerSpecialHelpers(L *lua.LState) {
	// Not(condition)
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		inner := L.CheckTable(1)
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("not"))
		tbl.RawSetString("inner", inner)
		L.Push(tbl)
		return 1
	}))

	// Chance(percent, { success effects }, { failure effects })
	L.SetGlobal("Chance", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("percent", L.CheckNumber(1))
		if s, ok := L.Get(2).(*lua.LTable); ok {
			tbl.RawSetString("success", s)
		}
		if f, ok := L.Get(3).(*lua.LTable); ok {
			tbl.RawSetString("failure", f)
		}
		L.Push(tbl)
		return 1
	}))
}
