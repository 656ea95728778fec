package rules

import (
	"testing"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

func testDefs() *state.Defs {
	hasLamp := types.Condition{Type: "has_item", Params: map[string]any{"item": "lamp"}}
	return &state.Defs{
		World: types.WorldDef{ID: "w1", Start: "cellar", MaxWait: 10},
		Items: map[string]types.ItemDef{
			"lamp":   {ID: "lamp", Name: "Lamp", Portable: true},
			"key":    {ID: "key", Name: "Key", Portable: true},
			"statue": {ID: "statue", Name: "Statue"},
			"coin":   {ID: "coin", Name: "Coin", Portable: true},
		},
		Interactions: []types.Interaction{
			{ID: "pull_lever", Target: "lever", Verb: "pull", Location: "hall",
				Chance: &types.Chance{Percent: 50}},
			{ID: "push_statue", Target: "statue", Verb: "push", Requires: []types.Condition{hasLamp}},
		},
		Uses: []types.ItemUse{
			{ID: "key_statue", Item: "key", Target: "statue"},
		},
		Customs: map[string]types.CustomDef{
			"pray": {Name: "pray", Location: "hall"},
			"sing": {Name: "sing", Params: []string{"song"}},
		},
		Topics: map[string]map[string]types.TopicDef{
			"elder": {
				"greeting": {Text: "Welcome."},
				"secret": {Text: "Psst.", Requires: []types.Condition{
					{Type: "flag_set", Params: map[string]any{"flag": "told"}},
				}},
			},
		},
	}
}

func testWorld() *types.WorldState {
	s := state.NewWorld("w1", 42)
	hasLamp := types.Condition{Type: "has_item", Params: map[string]any{"item": "lamp"}}
	s.Locations["cellar"] = types.Location{
		ID: "cellar", Name: "Cellar",
		Exits:  map[string]string{"east": "hall", "up": "tower"},
		Guards: map[string][]types.Condition{"up": {hasLamp}},
		NPCs:   []string{"ghost"},
		Items:  []string{"lamp"},
	}
	s.Locations["hall"] = types.Location{
		ID: "hall", Name: "Hall",
		Exits: map[string]string{"west": "cellar", "north": "vault"},
		NPCs:  []string{"elder"},
		Items: []string{"statue"},
	}
	s.Locations["tower"] = types.Location{ID: "tower", Exits: map[string]string{"down": "cellar"}, NPCs: []string{}, Items: []string{}}
	s.Locations["vault"] = types.Location{
		ID: "vault", Name: "Vault",
		Exits: map[string]string{"south": "hall"},
		Entry: []types.Condition{{Type: "flag_set", Params: map[string]any{"flag": "vault_unlocked"}}},
		NPCs:  []string{},
		Items: []string{"coin"},
	}
	s.NPCs["elder"] = types.NPC{ID: "elder", Name: "Elder", Location: "hall", Tags: []string{}, Active: true}
	s.NPCs["ghost"] = types.NPC{ID: "ghost", Name: "Ghost", Location: "cellar", Tags: []string{}, Active: false}
	s.Players["p1"] = types.Player{ID: "p1", Location: "cellar", Inventory: []string{"key"}, Stats: map[string]int{}}
	return s
}

func at(s *types.WorldState, loc string) *types.WorldState {
	p := s.Players["p1"]
	p.Location = loc
	s.Players["p1"] = p
	return s
}

func move(dir string) types.Action {
	return types.Action{Kind: types.ActionMove, PlayerID: "p1", Move: &types.MovePayload{Direction: dir}}
}

func interact(verb, target string) types.Action {
	return types.Action{Kind: types.ActionInteract, PlayerID: "p1", Interact: &types.InteractPayload{Verb: verb, Target: target}}
}

func speak(npc, topic, utterance string) types.Action {
	return types.Action{Kind: types.ActionSpeak, PlayerID: "p1", Speak: &types.SpeakPayload{NPC: npc, Topic: topic, Utterance: utterance}}
}

func use(item, target string) types.Action {
	return types.Action{Kind: types.ActionUseItem, PlayerID: "p1", UseItem: &types.UseItemPayload{Item: item, Target: target}}
}

func wait(ticks int) types.Action {
	return types.Action{Kind: types.ActionWait, PlayerID: "p1", Wait: &types.WaitPayload{Ticks: ticks}}
}

func custom(name string, args map[string]string) types.Action {
	return types.Action{Kind: types.ActionCustom, PlayerID: "p1", Custom: &types.CustomPayload{Name: name, Args: args}}
}

func TestValidate(t *testing.T) {
	withLamp := func(s *types.WorldState) *types.WorldState {
		loc := s.Locations["cellar"]
		loc.Items = state.RemoveFromSet(loc.Items, "lamp")
		s.Locations["cellar"] = loc
		p := s.Players["p1"]
		p.Inventory = state.AddToSet(p.Inventory, "lamp")
		s.Players["p1"] = p
		return s
	}
	told := func(s *types.WorldState) *types.WorldState {
		s.Flags["told"] = true
		return s
	}

	tests := []struct {
		name   string
		world  func() *types.WorldState
		action types.Action
		want   Code // "" means accept
	}{
		{"unknown player", testWorld, types.Action{Kind: types.ActionWait, PlayerID: "ghost", Wait: &types.WaitPayload{Ticks: 1}}, UnknownPlayer},
		{"two payloads", testWorld, types.Action{Kind: types.ActionWait, PlayerID: "p1", Wait: &types.WaitPayload{Ticks: 1}, Move: &types.MovePayload{Direction: "east"}}, MalformedAction},
		{"no payload", testWorld, types.Action{Kind: types.ActionWait, PlayerID: "p1"}, MalformedAction},
		{"payload mismatch", testWorld, types.Action{Kind: types.ActionMove, PlayerID: "p1", Wait: &types.WaitPayload{Ticks: 1}}, MalformedAction},
		{"unknown kind", testWorld, types.Action{Kind: "fly", PlayerID: "p1", Wait: &types.WaitPayload{Ticks: 1}}, MalformedAction},
		{"move missing direction", testWorld, move(""), MalformedAction},

		{"move through exit", testWorld, move("east"), ""},
		{"move no such exit", testWorld, move("south"), NoSuchExit},
		{"move guarded exit", testWorld, move("up"), ExitBlocked},
		{"move guarded exit with lamp", func() *types.WorldState { return withLamp(testWorld()) }, move("up"), ""},
		{"move into locked location", func() *types.WorldState { return at(testWorld(), "hall") }, move("north"), LocationLocked},

		{"take lamp", testWorld, interact("take", "lamp"), ""},
		{"take carried item", testWorld, interact("take", "key"), NothingHappens},
		{"take statue elsewhere", testWorld, interact("take", "statue"), TargetNotHere},
		{"take fixed statue", func() *types.WorldState { return at(testWorld(), "hall") }, interact("take", "statue"), NotPortable},
		{"take unknown thing", testWorld, interact("take", "dragon"), NoSuchTarget},
		{"take inactive npc", testWorld, interact("take", "ghost"), TargetNotHere},
		{"drop carried", testWorld, interact("drop", "key"), ""},
		{"drop not carried", testWorld, interact("drop", "lamp"), ItemNotOwned},
		{"examine", testWorld, interact("examine", "lamp"), ""},
		{"unhandled verb", testWorld, interact("kick", "lamp"), NothingHappens},
		{"feature here", func() *types.WorldState { return at(testWorld(), "hall") }, interact("pull", "lever"), ""},
		{"feature elsewhere", testWorld, interact("pull", "lever"), TargetNotHere},
		{"interaction requirements unmet", func() *types.WorldState { return at(testWorld(), "hall") }, interact("push", "statue"), RequirementsUnmet},
		{"interaction requirements met", func() *types.WorldState { return at(withLamp(testWorld()), "hall") }, interact("push", "statue"), ""},

		{"speak unknown npc", testWorld, speak("bob", "", ""), NoSuchTarget},
		{"speak inactive npc", testWorld, speak("ghost", "", ""), NPCInactive},
		{"speak absent npc", testWorld, speak("elder", "", ""), NPCNotHere},
		{"speak first topic", func() *types.WorldState { return at(testWorld(), "hall") }, speak("elder", "", ""), ""},
		{"speak named topic", func() *types.WorldState { return at(testWorld(), "hall") }, speak("elder", "greeting", ""), ""},
		{"speak unknown topic", func() *types.WorldState { return at(testWorld(), "hall") }, speak("elder", "weather", ""), NoSuchTopic},
		{"speak locked topic", func() *types.WorldState { return at(testWorld(), "hall") }, speak("elder", "secret", ""), TopicUnavailable},
		{"speak unlocked topic", func() *types.WorldState { return at(told(testWorld()), "hall") }, speak("elder", "secret", ""), ""},

		{"use item not owned", testWorld, use("coin", ""), ItemNotOwned},
		{"use with no rule", testWorld, use("key", ""), NothingHappens},
		{"use on distant target", testWorld, use("key", "statue"), TargetNotHere},
		{"use on target", func() *types.WorldState { return at(testWorld(), "hall") }, use("key", "statue"), ""},

		{"wait zero", testWorld, wait(0), InvalidWait},
		{"wait too long", testWorld, wait(11), InvalidWait},
		{"wait", testWorld, wait(3), ""},

		{"custom unknown", testWorld, custom("dance", nil), UnknownCustomAction},
		{"custom wrong place", testWorld, custom("pray", nil), RequirementsUnmet},
		{"custom right place", func() *types.WorldState { return at(testWorld(), "hall") }, custom("pray", nil), ""},
		{"custom missing arg", testWorld, custom("sing", nil), MalformedAction},
		{"custom with arg", testWorld, custom("sing", map[string]string{"song": "ballad"}), ""},
	}

	defs := testDefs()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rej := Validate(tt.world(), defs, tt.action)
			switch {
			case tt.want == "" && rej != nil:
				t.Fatalf("expected accept, got %v", rej)
			case tt.want != "" && rej == nil:
				t.Fatalf("expected %s, got accept", tt.want)
			case tt.want != "" && rej.Code != tt.want:
				t.Fatalf("expected %s, got %v", tt.want, rej)
			}
		})
	}
}

func TestValidate_Pure(t *testing.T) {
	s := at(testWorld(), "hall")
	defs := testDefs()
	before, err := state.Digest(s)
	if err != nil {
		t.Fatal(err)
	}

	actions := []types.Action{move("north"), interact("pull", "lever"), speak("elder", "", ""), custom("pray", nil), wait(2)}
	for _, a := range actions {
		first := Validate(s, defs, a)
		second := Validate(s, defs, a)
		if (first == nil) != (second == nil) || (first != nil && *first != *second) {
			t.Errorf("%s: verdicts differ: %v vs %v", a.Kind, first, second)
		}
	}

	after, _ := state.Digest(s)
	if before != after {
		t.Fatal("Validate mutated the world")
	}
}

func TestRejection_Error(t *testing.T) {
	rej := Reject(NoSuchExit, "you can't go %s from here", "south")
	if rej.Error() != "no_such_exit: you can't go south from here" {
		t.Errorf("Error() = %q", rej.Error())
	}
}

func TestMatch_InteractionsScopedToLocation(t *testing.T) {
	defs := testDefs()
	if got := Interactions(defs, "hall", "lever", "pull"); len(got) != 1 {
		t.Fatalf("expected lever interaction in hall, got %d", len(got))
	}
	if got := Interactions(defs, "cellar", "lever", "pull"); len(got) != 0 {
		t.Fatalf("lever interaction leaked into cellar")
	}
	if !IsFeature(defs, "hall", "lever") {
		t.Error("lever is a hall feature")
	}
	if IsFeature(defs, "hall", "statue") {
		t.Error("items are never features")
	}
}
