// Package loader loads Lua world content into Go structs at startup.
// The Lua VM is discarded after loading: zero Lua at runtime.
package loader

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// rawDef holds an id-keyed definition table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// rawHandler holds an event handler before compilation.
type rawHandler struct {
	eventType string
	table     *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getInt returns an integer field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return 0
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Sequential integer keys starting at 1 make an array.
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// tableToStringMap converts a Lua table to a map[string]string. The
// result is never nil.
func tableToStringMap(tbl *lua.LTable) map[string]string {
	m := map[string]string{}
	if tbl == nil {
		return m
	}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok1 := k.(lua.LString)
		vs, ok2 := v.(lua.LString)
		if ok1 && ok2 {
			m[string(ks)] = string(vs)
		}
	})
	return m
}

// tableToStrings converts an array table of strings to a slice.
func tableToStrings(tbl *lua.LTable) []string {
	var out []string
	if tbl == nil {
		return out
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// tableToSet converts an array table of strings to a sorted set. The
// result is never nil.
func tableToSet(tbl *lua.LTable) []string {
	set := []string{}
	for _, s := range tableToStrings(tbl) {
		set = state.AddToSet(set, s)
	}
	return set
}

// compile converts all collected Lua data into definitions and the
// genesis state.
func compile(coll *collector) (*World, error) {
	if coll.world == nil {
		return nil, fmt.Errorf("no World{} definition found")
	}
	def := compileWorldDef(coll.world)
	defs := &state.Defs{
		World:   def,
		Items:   map[string]types.ItemDef{},
		Customs: map[string]types.CustomDef{},
		Topics:  map[string]map[string]types.TopicDef{},
	}
	w := &World{Defs: defs, Genesis: state.NewWorld(def.ID, def.Seed)}
	g := w.Genesis
	g.Mood = def.Mood
	if flags := getTable(coll.world, "flags"); flags != nil {
		flags.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				g.Flags[string(ks)] = lua.LVAsBool(v)
			}
		})
	}

	for _, raw := range coll.locations {
		if _, dup := g.Locations[raw.id]; dup {
			return nil, fmt.Errorf("location %q defined twice", raw.id)
		}
		g.Locations[raw.id] = compileLocation(raw)
	}

	// Items are definitions; where they start is genesis state. An item
	// placed in an unknown location is left for validate to report.
	for _, raw := range coll.items {
		if _, dup := defs.Items[raw.id]; dup {
			return nil, fmt.Errorf("item %q defined twice", raw.id)
		}
		defs.Items[raw.id] = types.ItemDef{
			ID:          raw.id,
			Name:        nameOr(raw),
			Description: getString(raw.table, "description"),
			Portable:    getBool(raw.table, "portable", true),
		}
		if locID := getString(raw.table, "location"); locID != "" {
			if loc, ok := g.Locations[locID]; ok {
				loc.Items = state.AddToSet(loc.Items, raw.id)
				g.Locations[locID] = loc
			} else {
				w.Warnings = append(w.Warnings, fmt.Sprintf("item %q placed in undefined location %q", raw.id, locID))
			}
		}
	}

	for _, raw := range coll.npcs {
		if _, dup := g.NPCs[raw.id]; dup {
			return nil, fmt.Errorf("npc %q defined twice", raw.id)
		}
		npc := types.NPC{
			ID:           raw.id,
			Name:         nameOr(raw),
			Location:     getString(raw.table, "location"),
			Tags:         tableToSet(getTable(raw.table, "tags")),
			Mood:         getString(raw.table, "mood"),
			Relationship: getInt(raw.table, "relationship"),
			Behavior:     getString(raw.table, "behavior"),
			Active:       getBool(raw.table, "active", true),
		}
		g.NPCs[raw.id] = npc
		if loc, ok := g.Locations[npc.Location]; ok {
			loc.NPCs = state.AddToSet(loc.NPCs, raw.id)
			g.Locations[npc.Location] = loc
		}
		if topics := getTable(raw.table, "topics"); topics != nil {
			defs.Topics[raw.id] = compileTopics(topics)
		}
	}

	for _, raw := range coll.players {
		if _, dup := g.Players[raw.id]; dup {
			return nil, fmt.Errorf("player %q defined twice", raw.id)
		}
		p := types.Player{
			ID:        raw.id,
			Name:      nameOr(raw),
			Location:  getString(raw.table, "location"),
			Inventory: tableToSet(getTable(raw.table, "inventory")),
			Stats:     map[string]int{},
		}
		if p.Location == "" {
			p.Location = def.Start
		}
		if stats := getTable(raw.table, "stats"); stats != nil {
			stats.ForEach(func(k, v lua.LValue) {
				ks, ok1 := k.(lua.LString)
				n, ok2 := v.(lua.LNumber)
				if ok1 && ok2 {
					p.Stats[string(ks)] = int(n)
				}
			})
		}
		g.Players[raw.id] = p
	}

	ids := map[string]bool{}
	for _, raw := range coll.interactions {
		if ids[raw.id] {
			return nil, fmt.Errorf("interaction %q defined twice", raw.id)
		}
		ids[raw.id] = true
		t := raw.table
		defs.Interactions = append(defs.Interactions, types.Interaction{
			ID:       raw.id,
			Target:   getString(t, "target"),
			Verb:     getString(t, "verb"),
			Location: getString(t, "location"),
			Requires: compileConditions(getTable(t, "requires")),
			Effects:  compileEffects(getTable(t, "effects")),
			Chance:   compileChance(getTable(t, "chance")),
			Text:     getString(t, "text"),
		})
	}

	ids = map[string]bool{}
	for _, raw := range coll.uses {
		if ids[raw.id] {
			return nil, fmt.Errorf("use %q defined twice", raw.id)
		}
		ids[raw.id] = true
		t := raw.table
		defs.Uses = append(defs.Uses, types.ItemUse{
			ID:       raw.id,
			Item:     getString(t, "item"),
			Target:   getString(t, "target"),
			Requires: compileConditions(getTable(t, "requires")),
			Effects:  compileEffects(getTable(t, "effects")),
			Chance:   compileChance(getTable(t, "chance")),
			Consume:  getBool(t, "consume", false),
			Text:     getString(t, "text"),
		})
	}

	for _, raw := range coll.actions {
		if _, dup := defs.Customs[raw.id]; dup {
			return nil, fmt.Errorf("action %q defined twice", raw.id)
		}
		t := raw.table
		defs.Customs[raw.id] = types.CustomDef{
			Name:     raw.id,
			Params:   tableToStrings(getTable(t, "params")),
			Location: getString(t, "location"),
			Requires: compileConditions(getTable(t, "requires")),
			Effects:  compileEffects(getTable(t, "effects")),
			Chance:   compileChance(getTable(t, "chance")),
			Text:     getString(t, "text"),
		}
	}

	for _, raw := range coll.handlers {
		defs.Handlers = append(defs.Handlers, types.EventHandler{
			EventType:  raw.eventType,
			Conditions: compileConditions(getTable(raw.table, "conditions")),
			Effects:    compileEffects(getTable(raw.table, "effects")),
		})
	}

	return w, nil
}

func compileWorldDef(tbl *lua.LTable) types.WorldDef {
	return types.WorldDef{
		ID:      getString(tbl, "id"),
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Intro:   getString(tbl, "intro"),
		Start:   getString(tbl, "start"),
		Seed:    int64(getInt(tbl, "seed")),
		Rules:   getString(tbl, "rules"),
		Mood:    getString(tbl, "mood"),
		MaxWait: getInt(tbl, "max_wait"),
	}
}

func compileLocation(raw rawDef) types.Location {
	t := raw.table
	loc := types.Location{
		ID:          raw.id,
		Name:        nameOr(raw),
		Description: getString(t, "description"),
		Exits:       tableToStringMap(getTable(t, "exits")),
		Entry:       compileConditions(getTable(t, "entry")),
		NPCs:        []string{},
		Items:       []string{},
	}
	if guards := getTable(t, "guards"); guards != nil {
		loc.Guards = map[string][]types.Condition{}
		guards.ForEach(func(k, v lua.LValue) {
			dir, ok1 := k.(lua.LString)
			conds, ok2 := v.(*lua.LTable)
			if ok1 && ok2 {
				loc.Guards[string(dir)] = compileConditions(conds)
			}
		})
	}
	return loc
}

func compileTopics(tbl *lua.LTable) map[string]types.TopicDef {
	topics := map[string]types.TopicDef{}
	tbl.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		topicTbl, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		topics[string(key)] = types.TopicDef{
			Text:     getString(topicTbl, "text"),
			Requires: compileConditions(getTable(topicTbl, "requires")),
			Effects:  compileEffects(getTable(topicTbl, "effects")),
			Chance:   compileChance(getTable(topicTbl, "chance")),
		}
	})
	return topics
}

func compileChance(tbl *lua.LTable) *types.Chance {
	if tbl == nil {
		return nil
	}
	return &types.Chance{
		Percent: getInt(tbl, "percent"),
		Success: compileEffects(getTable(tbl, "success")),
		Failure: compileEffects(getTable(tbl, "failure")),
	}
}

func compileConditions(tbl *lua.LTable) []types.Condition {
	var conditions []types.Condition
	if tbl == nil {
		return conditions
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		if condTbl, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			conditions = append(conditions, compileCondition(condTbl))
		}
	}
	return conditions
}

func compileCondition(tbl *lua.LTable) types.Condition {
	condType := getString(tbl, "type")
	if condType == "not" {
		if innerTbl := getTable(tbl, "inner"); innerTbl != nil {
			inner := compileCondition(innerTbl)
			return types.Condition{Type: "not", Inner: &inner}
		}
	}
	return types.Condition{Type: condType, Params: params(tbl)}
}

func compileEffects(tbl *lua.LTable) []types.Effect {
	var effects []types.Effect
	if tbl == nil {
		return effects
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		if effTbl, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			effects = append(effects, types.Effect{Type: getString(effTbl, "type"), Params: params(effTbl)})
		}
	}
	return effects
}

// params collects every string-keyed field except "type".
func params(tbl *lua.LTable) map[string]any {
	p := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && ks != "type" {
			p[string(ks)] = toGoValue(v)
		}
	})
	return p
}

func nameOr(raw rawDef) string {
	if name := getString(raw.table, "name"); name != "" {
		return name
	}
	return raw.id
}

// sortedLuaFiles returns .lua files with world.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var worldFile string
	var others []string
	for _, f := range files {
		if f == "world.lua" {
			worldFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if worldFile != "" {
		return append([]string{worldFile}, others...)
	}
	return others
}
