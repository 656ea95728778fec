package events

import (
	"testing"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

func testDefs() *state.Defs {
	return &state.Defs{
		Handlers: []types.EventHandler{
			{
				EventType: "item_taken",
				Conditions: []types.Condition{
					{Type: "flag_not", Params: map[string]any{"flag": "first_item"}},
				},
				Effects: []types.Effect{
					{Type: "set_flag", Params: map[string]any{"flag": "first_item", "value": true}},
				},
			},
			{
				EventType: "location_entered",
				Effects: []types.Effect{
					{Type: "hook", Params: map[string]any{"tag": "arrived"}},
				},
			},
			{
				EventType: "location_entered",
				Conditions: []types.Condition{
					{Type: "has_item", Params: map[string]any{"item": "lamp"}},
				},
				Effects: []types.Effect{
					{Type: "hook", Params: map[string]any{"tag": "lit"}},
				},
			},
		},
	}
}

func testWorld() *types.WorldState {
	s := state.NewWorld("w1", 1)
	s.Players["p1"] = types.Player{ID: "p1", Inventory: []string{"lamp"}, Stats: map[string]int{}}
	s.Players["p2"] = types.Player{ID: "p2", Inventory: []string{}, Stats: map[string]int{}}
	return s
}

func TestDispatch_MatchingHandler(t *testing.T) {
	fired := Dispatch([]types.Event{{Type: "item_taken"}}, testWorld(), testDefs(), "p1")
	if len(fired) != 1 || fired[0].Handler != 0 || fired[0].Hook() != "on:item_taken" {
		t.Fatalf("fired = %+v", fired)
	}
	if effs := Effects(fired); len(effs) != 1 || effs[0].Type != "set_flag" {
		t.Fatalf("expected one set_flag effect, got %+v", effs)
	}
}

func TestDispatch_ConditionFails(t *testing.T) {
	s := testWorld()
	s.Flags["first_item"] = true
	if fired := Dispatch([]types.Event{{Type: "item_taken"}}, s, testDefs(), "p1"); len(fired) != 0 {
		t.Fatalf("expected nothing to fire, got %+v", fired)
	}
}

func TestDispatch_ConditionsUseActor(t *testing.T) {
	evts := []types.Event{{Type: "location_entered"}}
	if got := len(Dispatch(evts, testWorld(), testDefs(), "p1")); got != 2 {
		t.Errorf("p1 carries the lamp, expected 2 handlers, got %d", got)
	}
	if got := len(Dispatch(evts, testWorld(), testDefs(), "p2")); got != 1 {
		t.Errorf("p2 has no lamp, expected 1 handler, got %d", got)
	}
}

func TestDispatch_NoMatch(t *testing.T) {
	if fired := Dispatch([]types.Event{{Type: "npc_moved"}}, testWorld(), testDefs(), "p1"); fired != nil {
		t.Fatalf("expected nothing to fire, got %+v", fired)
	}
	if Effects(nil) != nil {
		t.Error("Effects(nil) should be nil")
	}
}

func TestDispatch_OrderFollowsEvents(t *testing.T) {
	evts := []types.Event{{Type: "location_entered"}, {Type: "item_taken"}}
	fired := Dispatch(evts, testWorld(), testDefs(), "p1")
	if len(fired) != 3 {
		t.Fatalf("expected 3 handlers, got %d", len(fired))
	}
	if fired[0].Handler != 1 || fired[1].Handler != 2 || fired[2].Handler != 0 {
		t.Errorf("unexpected order: %+v", fired)
	}
	effs := Effects(fired)
	if effs[0].Type != "hook" || effs[2].Type != "set_flag" {
		t.Errorf("unexpected effect order: %+v", effs)
	}
}

func TestDispatch_RepeatedEvent(t *testing.T) {
	evts := []types.Event{{Type: "item_taken"}, {Type: "item_taken"}}
	if got := len(Dispatch(evts, testWorld(), testDefs(), "p1")); got != 2 {
		t.Errorf("each emission is matched on its own, got %d", got)
	}
}
