package agent

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/types"
)

func testView() types.WorldView {
	return types.WorldView{
		WorldID:  "w1",
		Title:    "Test Hamlet",
		Sequence: 4,
		Player:   types.Player{ID: "p1", Location: "hall"},
		Location: types.LocationView{
			ID: "hall", Name: "Great Hall", Description: "A long hall.",
			Exits: []string{"east", "north"},
			NPCs:  []types.NPCView{{ID: "elder", Name: "Elder Mara", Topics: []string{"greeting", "weather"}}},
			Items: []types.ItemView{
				{ID: "rusty_key", Name: "Rusty Key"},
				{ID: "brass_key", Name: "Brass Key"},
				{ID: "lamp", Name: "Oil Lamp"},
			},
		},
		Carrying: []types.ItemView{{ID: "coin", Name: "Silver Coin"}},
		Actions:  []types.ActionView{{Name: "pray"}, {Name: "whist", Params: []string{"partner"}}},
	}
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	im, err := DefaultIntents()
	if err != nil {
		t.Fatalf("DefaultIntents: %v", err)
	}
	o, err := New(im, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

// scripted is a narrator whose answers are set by the test.
type scripted struct {
	suggestion string
	narration  string
	choices    string
	err        error
	delay      time.Duration
	calls      atomic.Int32
}

func (s *scripted) answer(ctx context.Context, out string) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return out, s.err
}

func (s *scripted) Suggest(ctx context.Context, _ SuggestRequest) (string, error) {
	return s.answer(ctx, s.suggestion)
}

func (s *scripted) Narrate(ctx context.Context, _ NarrateRequest) (string, error) {
	return s.answer(ctx, s.narration)
}

func (s *scripted) Choose(ctx context.Context, _ ChoicesRequest) (string, error) {
	return s.answer(ctx, s.choices)
}

func TestPropose_FreeText(t *testing.T) {
	o := newTestOrchestrator(t, Options{})

	tests := []struct {
		input string
		want  types.Action
	}{
		{"n", types.Action{Kind: types.ActionMove, Move: &types.MovePayload{Direction: "north"}}},
		{"go e", types.Action{Kind: types.ActionMove, Move: &types.MovePayload{Direction: "east"}}},
		{"wait", types.Action{Kind: types.ActionWait, Wait: &types.WaitPayload{Ticks: 1}}},
		{"z 3", types.Action{Kind: types.ActionWait, Wait: &types.WaitPayload{Ticks: 3}}},
		{"take the lamp", types.Action{Kind: types.ActionInteract, Interact: &types.InteractPayload{Verb: "take", Target: "lamp"}}},
		{"pick up oil lamp", types.Action{Kind: types.ActionInteract, Interact: &types.InteractPayload{Verb: "take", Target: "lamp"}}},
		{"pull lever", types.Action{Kind: types.ActionInteract, Interact: &types.InteractPayload{Verb: "pull", Target: "lever"}}},
		{"talk to mara", types.Action{Kind: types.ActionSpeak, Speak: &types.SpeakPayload{NPC: "elder"}}},
		{"ask elder about weather", types.Action{Kind: types.ActionSpeak, Speak: &types.SpeakPayload{NPC: "elder", Topic: "weather"}}},
		{"say hello to mara", types.Action{Kind: types.ActionSpeak, Speak: &types.SpeakPayload{NPC: "elder", Utterance: "hello"}}},
		{"give coin to mara", types.Action{Kind: types.ActionUseItem, UseItem: &types.UseItemPayload{Item: "coin", Target: "elder"}}},
		{"use silver coin", types.Action{Kind: types.ActionUseItem, UseItem: &types.UseItemPayload{Item: "coin"}}},
		{"pray", types.Action{Kind: types.ActionCustom, Custom: &types.CustomPayload{Name: "pray", Args: map[string]string{}}}},
		{"whist mara", types.Action{Kind: types.ActionCustom, Custom: &types.CustomPayload{Name: "whist", Args: map[string]string{"partner": "elder"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := o.Propose(context.Background(), testView(), "p1", Proposal{Text: tt.input})
			if err != nil {
				t.Fatalf("Propose: %v", err)
			}
			if got.PlayerID != "p1" || got.Intent != tt.input {
				t.Errorf("player=%q intent=%q", got.PlayerID, got.Intent)
			}
			tt.want.PlayerID, tt.want.Intent = "p1", tt.input
			if !sameAction(got, tt.want) {
				t.Errorf("got %s, want %s", describe(got), describe(tt.want))
			}
		})
	}
}

func TestPropose_Rejections(t *testing.T) {
	o := newTestOrchestrator(t, Options{})

	tests := []struct {
		input string
		code  rules.Code
	}{
		{"", rules.UnrecognizedIntent},
		{"dance wildly", rules.UnrecognizedIntent},
		{"take key", rules.AmbiguousTarget},
		{"take", rules.UnrecognizedIntent},
		{"wait forever", rules.InvalidWait},
		{"talk", rules.UnrecognizedIntent},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := o.Propose(context.Background(), testView(), "p1", Proposal{Text: tt.input})
			var rej *rules.Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("expected rejection, got %v", err)
			}
			if rej.Code != tt.code {
				t.Errorf("code = %s, want %s (%s)", rej.Code, tt.code, rej.Detail)
			}
		})
	}
}

func TestPropose_UnknownNamePassesThrough(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	a, err := o.Propose(context.Background(), testView(), "p1", Proposal{Text: "open iron door"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Interact == nil || a.Interact.Target != "iron_door" {
		t.Errorf("got %s", describe(a))
	}
}

func TestPropose_JSON(t *testing.T) {
	o := newTestOrchestrator(t, Options{})

	a, err := o.Propose(context.Background(), testView(), "p1", Proposal{
		JSON: []byte(`{"kind":"speak","player_id":"someone_else","speak":{"npc":"elder","topic":"greeting"}}`),
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if a.PlayerID != "p1" {
		t.Errorf("player id not forced: %q", a.PlayerID)
	}
	if a.Speak == nil || a.Speak.Topic != "greeting" {
		t.Errorf("got %s", describe(a))
	}

	bad := []string{
		`not json`,
		`{"kind":"fly","move":{"direction":"up"}}`,
		`{"kind":"move","wait":{"ticks":1}}`,
		`{"kind":"move","move":{"direction":"up"},"wait":{"ticks":1}}`,
		`{"kind":"wait","wait":{"ticks":0}}`,
		`{"kind":"move","move":{"direction":"up"},"extra":true}`,
	}
	for _, raw := range bad {
		_, err := o.Propose(context.Background(), testView(), "p1", Proposal{JSON: []byte(raw)})
		var rej *rules.Rejection
		if !errors.As(err, &rej) || rej.Code != rules.MalformedProposal {
			t.Errorf("%s: expected malformed_proposal, got %v", raw, err)
		}
	}
}

func TestPropose_NarratorSuggests(t *testing.T) {
	n := &scripted{suggestion: `{"kind":"interact","interact":{"verb":"search","target":"rubble"}}`}
	o := newTestOrchestrator(t, Options{Narrator: n})

	a, err := o.Propose(context.Background(), testView(), "p1", Proposal{Text: "rummage around in the debris"})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if a.Kind != types.ActionInteract || a.Interact.Target != "rubble" || a.Intent != "rummage around in the debris" {
		t.Errorf("got %s", describe(a))
	}

	// Recognized text never reaches the narrator.
	before := n.calls.Load()
	if _, err := o.Propose(context.Background(), testView(), "p1", Proposal{Text: "n"}); err != nil {
		t.Fatal(err)
	}
	if n.calls.Load() != before {
		t.Error("narrator consulted for recognized text")
	}
}

func TestPropose_NarratorFailureFallsBackToRejection(t *testing.T) {
	for name, n := range map[string]*scripted{
		"error":    {err: errors.New("boom")},
		"timeout":  {delay: time.Second},
		"nothing":  {},
		"nonsense": {suggestion: `{"kind":"teleport"}`},
	} {
		t.Run(name, func(t *testing.T) {
			o := newTestOrchestrator(t, Options{Narrator: n, SuggestTimeout: 20 * time.Millisecond})
			_, err := o.Propose(context.Background(), testView(), "p1", Proposal{Text: "dance wildly"})
			var rej *rules.Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("expected rejection, got %v", err)
			}
		})
	}
}

func TestPropose_MalformedDetailIsPlayerFacing(t *testing.T) {
	tests := []struct {
		name       string
		proposal   Proposal
		suggestion string
	}{
		{name: "not json", proposal: Proposal{JSON: []byte(`{"kind":`)}},
		{name: "missing payload", proposal: Proposal{JSON: []byte(`{"kind":"move"}`)}},
		{name: "unknown kind", proposal: Proposal{JSON: []byte(`{"kind":"dance"}`)}},
		{name: "wrong field type", proposal: Proposal{JSON: []byte(`{"kind":"wait","wait":{"ticks":"three"}}`)}},
		{name: "suggested unknown kind", proposal: Proposal{Text: "boogie wildly"}, suggestion: `{"kind":"dance"}`},
		{name: "suggested garbage", proposal: Proposal{Text: "boogie wildly"}, suggestion: `sure! {"kind"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, Options{Narrator: &scripted{suggestion: tt.suggestion}})
			_, err := o.Propose(context.Background(), testView(), "p1", tt.proposal)
			var rej *rules.Rejection
			if !errors.As(err, &rej) || rej.Code != rules.MalformedProposal {
				t.Fatalf("expected malformed_proposal, got %v", err)
			}
			if rej.Detail != proposalDetail {
				t.Errorf("detail = %q, want %q", rej.Detail, proposalDetail)
			}
			for _, leak := range []string{"jsonschema", "http", "json:", "invalid character", "unexpected end", "proposal"} {
				if strings.Contains(rej.Detail, leak) {
					t.Errorf("detail %q contains %q", rej.Detail, leak)
				}
			}
		})
	}
}

func TestPropose_MalformedIsLogged(t *testing.T) {
	var logs strings.Builder
	o := newTestOrchestrator(t, Options{Logger: log.New(&logs, "", 0)})
	if _, err := o.Propose(context.Background(), testView(), "p1", Proposal{JSON: []byte(`{"kind":"move"}`)}); err == nil {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(logs.String(), "structured proposal from p1") || !strings.Contains(logs.String(), "schema") {
		t.Errorf("log = %q", logs.String())
	}
}

func TestFlavor(t *testing.T) {
	view := testView()
	a := types.Action{Kind: types.ActionInteract, PlayerID: "p1", Intent: "take the lamp",
		Interact: &types.InteractPayload{Verb: "take", Target: "lamp"}}
	out := types.OutcomeRecord{Kind: types.ActionInteract, PlayerID: "p1", Success: true}

	t.Run("narrator", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{Narrator: &scripted{narration: "The lamp is warm."}})
		text, fallback := o.Flavor(context.Background(), view, a, out)
		if fallback || text != "The lamp is warm." {
			t.Errorf("text=%q fallback=%v", text, fallback)
		}
	})

	t.Run("no narrator", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{})
		text, fallback := o.Flavor(context.Background(), view, a, out)
		if !fallback || text != "You take the oil lamp." {
			t.Errorf("text=%q fallback=%v", text, fallback)
		}
	})

	t.Run("slow narrator", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{
			Narrator:       &scripted{narration: "too late", delay: time.Second},
			NarrateTimeout: 20 * time.Millisecond,
		})
		start := time.Now()
		text, fallback := o.Flavor(context.Background(), view, a, out)
		if !fallback || text != "You take the oil lamp." {
			t.Errorf("text=%q fallback=%v", text, fallback)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Error("Flavor waited past its timeout")
		}
	})

	t.Run("failed outcome", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{})
		use := types.Action{Kind: types.ActionUseItem, PlayerID: "p1", UseItem: &types.UseItemPayload{Item: "coin", Target: "elder"}}
		text, _ := o.Flavor(context.Background(), view, use, types.OutcomeRecord{Kind: types.ActionUseItem})
		if text != "You try the silver coin, without luck." {
			t.Errorf("text=%q", text)
		}
	})
}

func TestMockNarrator(t *testing.T) {
	o := newTestOrchestrator(t, Options{Narrator: MockNarrator{}})

	_, err := o.Propose(context.Background(), testView(), "p1", Proposal{Text: "dance"})
	var rej *rules.Rejection
	if !errors.As(err, &rej) || rej.Code != rules.UnrecognizedIntent {
		t.Fatalf("expected unrecognized_intent, got %v", err)
	}

	text, fallback := o.Flavor(context.Background(), testView(),
		types.Action{Kind: types.ActionWait, Wait: &types.WaitPayload{Ticks: 1}},
		types.OutcomeRecord{Kind: types.ActionWait, Success: true})
	if fallback || !strings.HasPrefix(text, "[mock] wait succeeds") {
		t.Errorf("text=%q fallback=%v", text, fallback)
	}
}

func TestConstraints(t *testing.T) {
	got := strings.Join(Constraints(testView()), "\n")
	for _, want := range []string{
		"The player is in Great Hall (hall).",
		"The player carries: Silver Coin (coin).",
		"Exits: east, north.",
		"Elder Mara (elder) is here and will talk about greeting, weather.",
		"Special action available: whist (partner).",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("constraints missing %q:\n%s", want, got)
		}
	}
}

func TestParseIntents_Invalid(t *testing.T) {
	if _, err := ParseIntents([]byte("kinds:\n  fly: teleport\n")); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := ParseIntents([]byte("fallback:\n  move: \"{{.Broken\"\n")); err == nil {
		t.Error("expected error for broken template")
	}
	im, err := ParseIntents([]byte("kinds:\n  go: move\n"))
	if err != nil {
		t.Fatal(err)
	}
	if im.DefaultWait != 1 {
		t.Errorf("default wait = %d", im.DefaultWait)
	}
}

func sameAction(a, b types.Action) bool {
	return describe(a) == describe(b)
}

func describe(a types.Action) string {
	var b strings.Builder
	b.WriteString(string(a.Kind) + " " + a.PlayerID + " ")
	switch {
	case a.Move != nil:
		b.WriteString("move:" + a.Move.Direction)
	case a.Interact != nil:
		b.WriteString("interact:" + a.Interact.Verb + "/" + a.Interact.Target)
	case a.Speak != nil:
		b.WriteString("speak:" + a.Speak.NPC + "/" + a.Speak.Topic + "/" + a.Speak.Utterance)
	case a.UseItem != nil:
		b.WriteString("use:" + a.UseItem.Item + "/" + a.UseItem.Target)
	case a.Wait != nil:
		b.WriteString("wait:" + strings.Repeat("+", a.Wait.Ticks))
	case a.Custom != nil:
		b.WriteString("custom:" + a.Custom.Name)
		for _, k := range []string{"partner", "target", "item", "npc"} {
			if v, ok := a.Custom.Args[k]; ok {
				b.WriteString(" " + k + "=" + v)
			}
		}
	}
	return b.String()
}
