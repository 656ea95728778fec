package agent

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nathoo/worldcore/types"
)

func choiceTexts(cs []Choice) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}

func acceptAll(types.Action) bool { return true }

func TestChoices_FromView(t *testing.T) {
	o := newTestOrchestrator(t, Options{})

	got, fallback := o.Choices(context.Background(), testView(), nil, acceptAll)
	if !fallback {
		t.Error("expected fallback without a narrator")
	}
	want := []string{
		"go east",
		"go north",
		"ask Elder Mara about greeting",
		"ask Elder Mara about weather",
		"take rusty key",
		"take brass key",
		"take oil lamp",
		"pray",
		"wait",
	}
	if !reflect.DeepEqual(choiceTexts(got), want) {
		t.Fatalf("choices = %q, want %q", choiceTexts(got), want)
	}
	for _, c := range got {
		if c.Action.PlayerID != "p1" || c.Action.Intent != c.Text {
			t.Errorf("%q: player %q intent %q", c.Text, c.Action.PlayerID, c.Action.Intent)
		}
	}
	if a := got[3].Action; a.Kind != types.ActionSpeak || a.Speak.NPC != "elder" || a.Speak.Topic != "weather" {
		t.Errorf("ask choice = %s", describe(a))
	}
}

func TestChoices_AcceptFilters(t *testing.T) {
	o := newTestOrchestrator(t, Options{})

	// The lamp is fixed in place and the north exit is barred.
	accept := func(a types.Action) bool {
		switch a.Kind {
		case types.ActionInteract:
			return a.Interact.Target != "lamp"
		case types.ActionMove:
			return a.Move.Direction != "north"
		}
		return true
	}
	got, _ := o.Choices(context.Background(), testView(), nil, accept)
	for _, c := range got {
		if c.Text == "take oil lamp" || c.Text == "go north" {
			t.Errorf("rejected action offered: %q", c.Text)
		}
	}
	if len(got) != 7 {
		t.Errorf("got %d choices: %q", len(got), choiceTexts(got))
	}
}

func TestChoices_Capped(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	v := testView()
	for i := 0; i < 20; i++ {
		v.Location.Exits = append(v.Location.Exits, "passage")
	}
	got, _ := o.Choices(context.Background(), v, nil, acceptAll)
	if len(got) != MaxChoices {
		t.Errorf("got %d choices, want %d", len(got), MaxChoices)
	}
}

func TestChoices_FromNarrator(t *testing.T) {
	n := &scripted{choices: `[
		{"kind":"move","intent":"Slip out east","move":{"direction":"east"}},
		{"kind":"dance"},
		{"kind":"move","intent":"Climb","move":{"direction":"up"}},
		{"kind":"speak","speak":{"npc":"elder","topic":"weather"}}
	]`}
	o := newTestOrchestrator(t, Options{Narrator: n})

	accept := func(a types.Action) bool { return a.Kind != types.ActionMove || a.Move.Direction != "up" }
	got, fallback := o.Choices(context.Background(), testView(), []string{"#4 p1 move success"}, accept)
	if fallback {
		t.Fatal("unexpected fallback")
	}
	want := []string{"Slip out east", "speak"}
	if !reflect.DeepEqual(choiceTexts(got), want) {
		t.Fatalf("choices = %q, want %q", choiceTexts(got), want)
	}
	if got[0].Action.PlayerID != "p1" || got[0].Action.Intent != "Slip out east" {
		t.Errorf("first choice = %+v", got[0].Action)
	}
}

func TestChoices_NarratorFallsBack(t *testing.T) {
	tests := []struct {
		name string
		n    *scripted
	}{
		{"error", &scripted{err: errors.New("503")}},
		{"timeout", &scripted{choices: `[]`, delay: time.Second}},
		{"not an array", &scripted{choices: `{"kind":"wait","wait":{"ticks":1}}`}},
		{"empty", &scripted{choices: ""}},
		{"nothing acceptable", &scripted{choices: `[{"kind":"move","move":{"direction":"up"}}]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, Options{Narrator: tt.n, SuggestTimeout: 20 * time.Millisecond})
			accept := func(a types.Action) bool { return a.Kind != types.ActionMove || a.Move.Direction != "up" }

			got, fallback := o.Choices(context.Background(), testView(), nil, accept)
			if !fallback {
				t.Error("expected fallback")
			}
			if len(got) == 0 || got[0].Text != "go east" {
				t.Errorf("choices = %q", choiceTexts(got))
			}
		})
	}
}
