package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/worldcore/agent"
	"github.com/nathoo/worldcore/cli"
	"github.com/nathoo/worldcore/engine"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/storage/memory"
	"github.com/nathoo/worldcore/types"
)

func TestRoomDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"hall", "Hall"},
		{"great_hall", "Great Hall"},
		{"castle_gates", "Castle Gates"},
		{"tower_top", "Tower Top"},
		{"secret_passage", "Secret Passage"},
	}
	for _, tt := range tests {
		got := roomDisplayName(tt.id)
		if got != tt.want {
			t.Errorf("roomDisplayName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"You see: rusty key, old book.", kindYouSee},
		{"Exits: north, south, east.", kindExits},
		{"There are no obvious exits.", kindExits},
		{"[Checkpoint saved.]", kindSystem},
		{"[trace] #2 wait success=true time 0->1", kindTrace},
		{"You don't see that here.", kindError},
		{"You can't go that way.", kindError},
		{"You don't have that.", kindError},
		{"You don't know how to \"dance\".", kindError},
		{"A grand hall with stone walls.", kindRoomDesc},
		{"Taken.", kindRoomDesc},
		{"The Keeper is here, looking weary.", kindPresence},
		{"Also here: ben.", kindPresence},
		{"", kindRoomDesc},
		{"'Ah, the adventurer. I wondered when they'd send someone competent.'", kindDialogue},
	}
	for _, tt := range tests {
		got := classifyLine(tt.line)
		if got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestContainsQuotedSpeech(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"'Hello, adventurer. Welcome to the castle.'", true},
		{"It's a door.", false},            // short quote segment
		{"No quotes here.", false},         // no quotes at all
		{"'Hi'", false},                    // too short
		{"She says 'the crown is lost forever, you must find it.'", true},
	}
	for _, tt := range tests {
		got := containsQuotedSpeech(tt.line)
		if got != tt.want {
			t.Errorf("containsQuotedSpeech(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 80, "short"},
		{"hello world", 5, "hello\nworld"},
		{"The great hall stretches before you with its vaulted ceiling.", 30,
			"The great hall stretches\nbefore you with its vaulted\nceiling."},
		{"", 80, ""},
		{"one", 80, "one"},
		{"a b c d e", 3, "a b\nc d\ne"},
	}
	for _, tt := range tests {
		got := wordWrap(tt.text, tt.width)
		if got != tt.want {
			t.Errorf("wordWrap(%q, %d) =\n  %q\nwant:\n  %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestHistory_PushAndPrev(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")
	h.Push("take key")

	prev, ok := h.Prev()
	if !ok || prev != "take key" {
		t.Errorf("expected 'take key', got %q (ok=%v)", prev, ok)
	}

	prev, ok = h.Prev()
	if !ok || prev != "go north" {
		t.Errorf("expected 'go north', got %q (ok=%v)", prev, ok)
	}

	prev, ok = h.Prev()
	if !ok || prev != "look" {
		t.Errorf("expected 'look', got %q (ok=%v)", prev, ok)
	}

	// At oldest, stays there.
	prev, ok = h.Prev()
	if !ok || prev != "look" {
		t.Errorf("expected 'look' at boundary, got %q (ok=%v)", prev, ok)
	}
}

func TestHistory_Next(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")

	h.Prev() // "go north"
	h.Prev() // "look"

	next, ok := h.Next()
	if !ok || next != "go north" {
		t.Errorf("expected 'go north', got %q (ok=%v)", next, ok)
	}

	_, ok = h.Next()
	if ok {
		t.Error("expected false when past newest entry")
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	_, ok := h.Prev()
	if ok {
		t.Error("expected false on empty history")
	}
	_, ok = h.Next()
	if ok {
		t.Error("expected false on empty history")
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory(2)
	h.Push("a")
	h.Push("b")
	h.Push("c") // "a" evicted

	prev, _ := h.Prev()
	if prev != "c" {
		t.Errorf("expected 'c', got %q", prev)
	}
	prev, _ = h.Prev()
	if prev != "b" {
		t.Errorf("expected 'b', got %q", prev)
	}
	// "a" is gone.
	prev, _ = h.Prev()
	if prev != "b" {
		t.Errorf("expected 'b' at boundary, got %q", prev)
	}
}

func TestHistory_NoDuplicates(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("look") // skipped
	h.Push("look") // skipped

	if len(h.entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(h.entries))
	}
}

func TestHistory_SeedAndLen(t *testing.T) {
	h := NewHistory(3)
	h.Seed([]string{"look", "look", "north", "take key", "east"})
	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	prev, _ := h.Prev()
	if prev != "east" {
		t.Errorf("newest seeded = %q, want east", prev)
	}
	h.Prev()
	prev, _ = h.Prev()
	if prev != "north" {
		t.Errorf("oldest kept = %q, want north", prev)
	}
}

func TestHistory_ResetCursor(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")

	h.Prev() // "go north"
	h.ResetCursor()

	// After reset, Prev starts from the end again.
	prev, ok := h.Prev()
	if !ok || prev != "go north" {
		t.Errorf("expected 'go north' after reset, got %q", prev)
	}
}

// testDefs returns a two-room world for TUI testing.
func testDefs() *state.Defs {
	return &state.Defs{
		World: types.WorldDef{
			ID:      "tui",
			Title:   "Test World",
			Author:  "Test",
			Version: "1.0",
			Start:   "hall",
			Intro:   "Welcome to the test.",
			Seed:    8,
			MaxWait: 5,
		},
		Items: map[string]types.ItemDef{
			"key": {ID: "key", Name: "Rusty Key", Description: "An old key.", Portable: true},
		},
		Customs: map[string]types.CustomDef{},
		Topics:  map[string]map[string]types.TopicDef{},
	}
}

func testGenesis() *types.WorldState {
	g := state.NewWorld("tui", 8)
	g.Locations["great_hall"] = types.Location{ID: "great_hall", Description: "A grand hall.", Exits: map[string]string{"north": "garden"}, NPCs: []string{}, Items: []string{"key"}}
	g.Locations["garden"] = types.Location{ID: "garden", Name: "Garden", Description: "A peaceful garden.", Exits: map[string]string{"south": "great_hall"}, NPCs: []string{}, Items: []string{}}
	g.Players["p1"] = types.Player{ID: "p1", Location: "great_hall", Inventory: []string{}, Stats: map[string]int{}}
	return g
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	intents, err := agent.DefaultIntents()
	if err != nil {
		t.Fatal(err)
	}
	orch, err := agent.New(intents, agent.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defs := testDefs()
	defs.World.Start = "great_hall"
	eng, err := engine.Open(context.Background(), "tui", defs, testGenesis(), memory.New(), orch, engine.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	m := New(context.Background(), cli.NewSession(eng, "p1"))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

// enter types line into the input, presses enter, and feeds the session's
// reply back into the model.
func enter(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("enter %q: no command returned", line)
	}
	if !m.busy {
		t.Fatalf("enter %q: model not busy while submitting", line)
	}
	next, cmd = m.Update(cmd())
	return next.(Model), cmd
}

func rawText(m Model) string {
	var b strings.Builder
	for _, rl := range m.rawLines {
		b.WriteString(rl.text)
		b.WriteString("\n")
	}
	return b.String()
}

func TestModel_InitialOutput(t *testing.T) {
	m := newTestModel(t)
	msg := m.intro()()
	next, _ := m.Update(msg)
	m = next.(Model)

	out := rawText(m)
	for _, want := range []string{"Test World v1.0 by Test", "Welcome to the test.", "A grand hall.", "You see: rusty key."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestModel_EnterSubmitsCommand(t *testing.T) {
	m := newTestModel(t)
	m, _ = enter(t, m, "north")

	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
	out := rawText(m)
	if !strings.Contains(out, "north\n") || !strings.Contains(out, "A peaceful garden.") {
		t.Errorf("expected echoed input and garden description, got:\n%s", out)
	}
	if seq := m.session.Engine.Sequence(); seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}

	bar := m.renderStatusBar()
	for _, want := range []string{"Garden", "Exits: south", "T:1 #1"} {
		if !strings.Contains(bar, want) {
			t.Errorf("status bar %q missing %q", bar, want)
		}
	}
}

func TestModel_StatusBarFallsBackToDisplayName(t *testing.T) {
	m := newTestModel(t)
	m, _ = enter(t, m, "take key")

	bar := m.renderStatusBar()
	for _, want := range []string{"Great Hall", "Exits: north", "Inv: Rusty Key"} {
		if !strings.Contains(bar, want) {
			t.Errorf("status bar %q missing %q", bar, want)
		}
	}
}

func TestModel_RejectionStyledAsError(t *testing.T) {
	m := newTestModel(t)
	m, _ = enter(t, m, "up")

	var found bool
	for _, rl := range m.rawLines {
		if rl.text == "You can't go up from here." {
			found = true
			if rl.kind != kindError {
				t.Errorf("rejection kind = %v, want kindError", rl.kind)
			}
		}
	}
	if !found {
		t.Errorf("rejection missing from output:\n%s", rawText(m))
	}
}

func TestModel_MetaCommandsAreSystem(t *testing.T) {
	m := newTestModel(t)
	m, _ = enter(t, m, "/trace")

	last := m.rawLines[len(m.rawLines)-2]
	if !last.isSystem || last.text != "Trace output enabled." {
		t.Errorf("last line = %+v", last)
	}
	if !m.session.Trace {
		t.Error("expected trace enabled on the session")
	}
}

func TestModel_HelpMentionsNavigation(t *testing.T) {
	m := newTestModel(t)
	m, _ = enter(t, m, "/help")

	out := rawText(m)
	for _, want := range []string{"/checkpoint", "/verify", "look", "inventory", "PgUp/PgDn"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in help output", want)
		}
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t)
	m, cmd := enter(t, m, "/quit")
	if !m.quitting || cmd == nil {
		t.Fatal("expected quit")
	}
	if m.View() != "" {
		t.Error("expected empty view after quitting")
	}
}

func TestModel_HistoryKeys(t *testing.T) {
	m := newTestModel(t)
	m, _ = enter(t, m, "wait")
	m, _ = enter(t, m, "look")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.input.Value() != "look" {
		t.Errorf("after up: %q", m.input.Value())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.input.Value() != "wait" {
		t.Errorf("after up twice: %q", m.input.Value())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.input.Value() != "look" {
		t.Errorf("after down: %q", m.input.Value())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.input.Value() != "" {
		t.Errorf("after down past newest: %q", m.input.Value())
	}
}

func TestModel_BusyIgnoresEnter(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("wait")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil || !m.busy {
		t.Fatal("expected a pending submit")
	}

	m.input.SetValue("north")
	next, again := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if again != nil {
		t.Error("second enter while busy should not submit")
	}
	if m.input.Value() != "north" {
		t.Errorf("input = %q, want it kept while busy", m.input.Value())
	}

	next, _ = m.Update(cmd())
	m = next.(Model)
	if m.busy {
		t.Error("busy not cleared by the reply")
	}
	if seq := m.session.Engine.Sequence(); seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}
}

func TestModel_IntroSeedsHistoryFromLog(t *testing.T) {
	m := newTestModel(t)
	ctx := context.Background()
	for _, cmd := range []string{"wait", "north"} {
		if _, err := m.session.Engine.SubmitText(ctx, "p1", cmd); err != nil {
			t.Fatal(err)
		}
	}

	next, _ := m.Update(m.intro()())
	m = next.(Model)
	if m.history.Len() != 2 {
		t.Fatalf("history len = %d, want 2", m.history.Len())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.input.Value() != "north" {
		t.Errorf("after up: %q, want north", m.input.Value())
	}
}
