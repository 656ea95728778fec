package loader

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

// newTestVM creates a sandboxed Lua VM with the API registered and a fresh collector.
func newTestVM() (*lua.LState, *collector) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	coll := &collector{}
	registerAPI(L, coll)
	return L, coll
}

func compileString(t *testing.T, src string) *World {
	t.Helper()
	L, coll := newTestVM()
	defer L.Close()
	if err := L.DoString(src); err != nil {
		t.Fatal(err)
	}
	w, err := compile(coll)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestCompileWorldDef(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()

	if err := L.DoString(`
		return {
			id = "w",
			title = "Test World",
			author = "Author",
			version = "1.0",
			start = "hall",
			intro = "Welcome!",
			seed = 7,
			max_wait = 3,
		}
	`); err != nil {
		t.Fatal(err)
	}

	def := compileWorldDef(L.CheckTable(-1))
	if def.ID != "w" || def.Title != "Test World" || def.Author != "Author" || def.Version != "1.0" {
		t.Errorf("def = %+v", def)
	}
	if def.Start != "hall" || def.Intro != "Welcome!" {
		t.Errorf("start %q intro %q", def.Start, def.Intro)
	}
	if def.Seed != 7 || def.MaxWait != 3 {
		t.Errorf("seed %d max_wait %d", def.Seed, def.MaxWait)
	}
}

func TestCompile_NoWorld(t *testing.T) {
	if _, err := compile(&collector{}); err == nil {
		t.Fatal("expected error without World{}")
	}
}

func TestCompile_LocationDefaults(t *testing.T) {
	w := compileString(t, `
		World { id = "w", start = "hall" }
		Location "hall" {}
	`)
	hall := w.Genesis.Locations["hall"]
	if hall.Name != "hall" {
		t.Errorf("Name = %q, want id as fallback", hall.Name)
	}
	if hall.Exits == nil || hall.NPCs == nil || hall.Items == nil {
		t.Errorf("collections should be allocated: %+v", hall)
	}
	if hall.Guards != nil {
		t.Errorf("Guards = %v, want nil", hall.Guards)
	}
}

func TestCompile_ItemsPlacedSorted(t *testing.T) {
	w := compileString(t, `
		World { id = "w", start = "hall" }
		Location "hall" {}
		Item "zither" { location = "hall" }
		Item "apple" { location = "hall" }
		Item "lost" { location = "attic" }
	`)
	items := w.Genesis.Locations["hall"].Items
	if len(items) != 2 || items[0] != "apple" || items[1] != "zither" {
		t.Errorf("hall items = %v", items)
	}
	if len(w.Warnings) != 1 {
		t.Errorf("warnings = %v", w.Warnings)
	}
	if _, ok := w.Defs.Items["lost"]; !ok {
		t.Error("misplaced item should still be defined")
	}
}

func TestCompile_NPCDefaults(t *testing.T) {
	w := compileString(t, `
		World { id = "w", start = "hall" }
		Location "hall" {}
		NPC "cat" { location = "hall" }
	`)
	cat := w.Genesis.NPCs["cat"]
	if !cat.Active || cat.Name != "cat" || cat.Tags == nil {
		t.Errorf("cat = %+v", cat)
	}
	if w.Genesis.Locations["hall"].NPCs[0] != "cat" {
		t.Error("cat missing from hall membership")
	}
	if _, ok := w.Defs.Topics["cat"]; ok {
		t.Error("npc without topics should have no topic table")
	}
}

func TestCompileConditions_AllTypes(t *testing.T) {
	w := compileString(t, `
		World { id = "w", start = "hall" }
		Location "hall" {
			entry = {
				HasItem("key"),
				FlagSet("a"),
				FlagNot("b"),
				FlagIs("c", true),
				InLocation("hall"),
				StatGt("hp", 3),
				StatLt("hp", 9),
				NPCAt("cat", "hall"),
				NPCHasTag("cat", "sleepy"),
				NPCMood("cat", "grumpy"),
				RelationshipGt("cat", 10),
				RelationshipLt("cat", 50),
				Not(FlagSet("d")),
			},
		}
	`)
	conds := w.Genesis.Locations["hall"].Entry
	want := []string{
		"has_item", "flag_set", "flag_not", "flag_is", "in_location",
		"stat_gt", "stat_lt", "npc_at", "npc_has_tag", "npc_mood",
		"relationship_gt", "relationship_lt", "not",
	}
	if len(conds) != len(want) {
		t.Fatalf("got %d conditions, want %d", len(conds), len(want))
	}
	for i, typ := range want {
		if conds[i].Type != typ {
			t.Errorf("condition %d type = %q, want %q", i, conds[i].Type, typ)
		}
	}
	if conds[3].Params["value"] != true {
		t.Errorf("flag_is value = %v", conds[3].Params["value"])
	}
	if conds[5].Params["value"] != 3 {
		t.Errorf("stat_gt value = %v", conds[5].Params["value"])
	}
	if conds[7].Params["npc"] != "cat" || conds[7].Params["location"] != "hall" {
		t.Errorf("npc_at params = %v", conds[7].Params)
	}
	inner := conds[12].Inner
	if inner == nil || inner.Type != "flag_set" || inner.Params["flag"] != "d" {
		t.Errorf("not inner = %+v", inner)
	}
}

func TestCompileEffects_AllTypes(t *testing.T) {
	w := compileString(t, `
		World { id = "w", start = "hall" }
		Location "hall" {}
		Action "everything" {
			effects = {
				SetFlag("a", true),
				GiveItem("key"),
				RemoveItem("key"),
				PlaceItem("key", "hall"),
				MoveNPC("cat", "hall"),
				MovePlayer("hall"),
				SetStat("hp", 5),
				IncStat("hp", -2),
				SetMood("cat", "calm"),
				SetWorldMood("bright"),
				AdjustRelationship("cat", 10),
				AddTag("cat", "fed"),
				RemoveTag("cat", "hungry"),
				OpenExit("hall", "up", "attic"),
				CloseExit("hall", "up"),
				ActivateNPC("cat"),
				DeactivateNPC("cat"),
				SpawnNPC("dog", "hall", "Dog"),
				Hook("bell"),
				EmitEvent("rang"),
				Stop(),
			},
		}
	`)
	effs := w.Defs.Customs["everything"].Effects
	want := []string{
		"set_flag", "give_item", "remove_item", "place_item", "move_npc",
		"move_player", "set_stat", "inc_stat", "set_mood", "set_world_mood",
		"adjust_relationship", "add_tag", "remove_tag", "open_exit", "close_exit",
		"activate_npc", "deactivate_npc", "spawn_npc", "hook", "emit_event", "stop",
	}
	if len(effs) != len(want) {
		t.Fatalf("got %d effects, want %d", len(effs), len(want))
	}
	for i, typ := range want {
		if effs[i].Type != typ {
			t.Errorf("effect %d type = %q, want %q", i, effs[i].Type, typ)
		}
	}
	open := effs[13].Params
	if open["location"] != "hall" || open["direction"] != "up" || open["target"] != "attic" {
		t.Errorf("open_exit params = %v", open)
	}
	if _, ok := effs[0].Params["type"]; ok {
		t.Error("type should not leak into params")
	}
	if len(effs[20].Params) != 0 {
		t.Errorf("stop params = %v", effs[20].Params)
	}
}

func TestCompileChance(t *testing.T) {
	w := compileString(t, `
		World { id = "w", start = "hall" }
		Location "hall" {}
		Interaction "flip" {
			target = "coin",
			verb = "flip",
			chance = Chance(50, { SetFlag("heads", true) }),
		}
	`)
	c := w.Defs.Interactions[0].Chance
	if c == nil || c.Percent != 50 || len(c.Success) != 1 || len(c.Failure) != 0 {
		t.Errorf("chance = %+v", c)
	}
	if w.Defs.Interactions[0].Effects != nil {
		t.Errorf("effects = %v, want none", w.Defs.Interactions[0].Effects)
	}
}

func TestCompileHandler(t *testing.T) {
	w := compileString(t, `
		World { id = "w", start = "hall" }
		Location "hall" {}
		On("door_opened", {
			conditions = { FlagNot("alarm") },
			effects = { SetFlag("alarm", true) },
		})
	`)
	if len(w.Defs.Handlers) != 1 {
		t.Fatalf("expected 1 handler, got %d", len(w.Defs.Handlers))
	}
	h := w.Defs.Handlers[0]
	if h.EventType != "door_opened" || len(h.Conditions) != 1 || len(h.Effects) != 1 {
		t.Errorf("handler = %+v", h)
	}
}

func TestCompile_DuplicateIDs(t *testing.T) {
	for _, src := range []string{
		`Item "a" {} Item "a" {}`,
		`NPC "a" {} NPC "a" {}`,
		`Player "a" {} Player "a" {}`,
		`Interaction "a" {} Interaction "a" {}`,
		`Use "a" {} Use "a" {}`,
		`Action "a" {} Action "a" {}`,
	} {
		L, coll := newTestVM()
		if err := L.DoString(`World { id = "w" } ` + src); err != nil {
			t.Fatal(err)
		}
		if _, err := compile(coll); err == nil {
			t.Errorf("expected duplicate error for %s", src)
		}
		L.Close()
	}
}
