package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/nathoo/worldcore/agent"
	"github.com/nathoo/worldcore/engine"
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/types"
)

// Session is one player's seat at a world. It turns input lines into
// engine calls and engine results into display lines. The plain CLI and
// the TUI both drive a Session.
type Session struct {
	Engine *engine.Engine
	Player string
	Trace  bool

	lastCmd string
	choices []agent.Choice
}

// Reply is the display for one input line.
type Reply struct {
	Lines []string
	// System marks meta-command output.
	System bool
	// Rejected marks a game command the world refused.
	Rejected bool
	Quit     bool
}

// NewSession seats playerID in eng's world.
func NewSession(eng *engine.Engine, playerID string) *Session {
	return &Session{Engine: eng, Player: playerID}
}

// Intro returns the title, the world's intro text, and a description of
// where the player stands.
func (s *Session) Intro() []string {
	w := s.Engine.Defs().World
	title := w.Title
	if w.Version != "" {
		title += " v" + w.Version
	}
	if w.Author != "" {
		title += " by " + w.Author
	}
	lines := []string{title, ""}
	if w.Intro != "" {
		lines = append(lines, w.Intro, "")
	}
	return append(lines, s.look()...)
}

// Handle processes one input line.
func (s *Session) Handle(ctx context.Context, input string) Reply {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reply{}
	}

	// "again" / "g" repeats the last game command.
	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if s.lastCmd == "" {
			return Reply{Lines: []string{"Nothing to repeat."}, System: true}
		}
		input = s.lastCmd
		lower = strings.ToLower(input)
	}

	if strings.HasPrefix(input, "/") {
		return s.meta(ctx, input)
	}
	s.lastCmd = input

	// Looking around and checking pockets read the world; they are not
	// actions and never reach the log.
	switch lower {
	case "look", "l":
		return Reply{Lines: s.look()}
	case "inventory", "inv", "i":
		v, err := s.Engine.View(s.Player)
		if err != nil {
			return errorReply(err)
		}
		return Reply{Lines: Inventory(v)}
	}

	report, err := s.Engine.SubmitText(ctx, s.Player, input)
	if err != nil {
		return errorReply(err)
	}
	return s.reportReply(report)
}

func (s *Session) reportReply(report engine.Report) Reply {
	s.choices = nil
	var lines []string
	if report.Narrative != "" {
		lines = append(lines, report.Narrative)
	}
	lines = append(lines, report.Text...)
	if report.Outcome.Success && movedPlayer(report.Outcome) {
		lines = append(lines, "")
		lines = append(lines, s.look()...)
	}
	if s.Trace {
		lines = append(lines, TraceLines(report)...)
	}
	return Reply{Lines: lines}
}

// Recent returns up to n of the player's typed commands from the world's
// log, oldest first. Actions submitted without text are skipped.
func (s *Session) Recent(ctx context.Context, n int) ([]string, error) {
	var out []string
	for entry, err := range s.Engine.Entries(ctx, 1) {
		if err != nil {
			return nil, err
		}
		if entry.Action.PlayerID != s.Player || entry.Action.Intent == "" {
			continue
		}
		out = append(out, entry.Action.Intent)
		if len(out) > n {
			out = out[1:]
		}
	}
	return out, nil
}

func (s *Session) look() []string {
	v, err := s.Engine.View(s.Player)
	if err != nil {
		return []string{sentence(err.Error())}
	}
	return Describe(v)
}

// errorReply turns a submit error into display lines. Rejection details
// are written for players. Other errors get a fixed line; their detail is
// in the engine log.
func errorReply(err error) Reply {
	var rej *rules.Rejection
	switch {
	case errors.As(err, &rej):
		return Reply{Lines: []string{sentence(rej.Detail)}, Rejected: true}
	case errors.Is(err, engine.ErrHalted):
		return Reply{Lines: []string{"The world is paused while storage recovers. Try again shortly."}, System: true}
	case errors.Is(err, engine.ErrClosed):
		return Reply{Lines: []string{"The world has closed."}, System: true, Quit: true}
	case errors.Is(err, engine.ErrInvariant):
		return Reply{Lines: []string{"The world resists, and nothing changes."}, Rejected: true}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Reply{Lines: []string{"That took too long. Nothing changed."}, System: true}
	default:
		return Reply{Lines: []string{"Something went wrong. Nothing changed."}, System: true}
	}
}

// movedPlayer reports whether an outcome changed where its actor stands.
func movedPlayer(o types.OutcomeRecord) bool {
	if o.Kind == types.ActionMove {
		return true
	}
	for _, c := range o.Changes {
		if c.Entity == o.PlayerID && c.Field == "location" {
			return true
		}
	}
	return false
}

// Describe renders a location view the way the player sees it.
func Describe(v types.WorldView) []string {
	loc := v.Location
	lines := []string{loc.Name}
	if loc.Description != "" {
		lines = append(lines, loc.Description)
	}
	if len(loc.Items) > 0 {
		names := make([]string, len(loc.Items))
		for i, it := range loc.Items {
			names[i] = strings.ToLower(it.Name)
		}
		lines = append(lines, "You see: "+strings.Join(names, ", ")+".")
	}
	for _, npc := range loc.NPCs {
		line := npc.Name + " is here"
		if npc.Mood != "" {
			line += ", looking " + npc.Mood
		}
		lines = append(lines, line+".")
	}
	if len(loc.Players) > 0 {
		lines = append(lines, "Also here: "+strings.Join(loc.Players, ", ")+".")
	}
	if len(loc.Exits) > 0 {
		lines = append(lines, "Exits: "+strings.Join(loc.Exits, ", ")+".")
	} else {
		lines = append(lines, "There are no obvious exits.")
	}
	return lines
}

// Inventory renders what the player carries.
func Inventory(v types.WorldView) []string {
	if len(v.Carrying) == 0 {
		return []string{"You are empty-handed."}
	}
	lines := []string{"You are carrying:"}
	for _, it := range v.Carrying {
		lines = append(lines, "  "+it.Name)
	}
	return lines
}

// TraceLines renders the structured outcome behind a report.
func TraceLines(r engine.Report) []string {
	o := r.Outcome
	lines := []string{fmt.Sprintf("[trace] #%d %s success=%t time %d->%d",
		r.Sequence, o.Kind, o.Success, o.TimeBefore, o.TimeAfter)}
	for _, d := range o.Draws {
		lines = append(lines, fmt.Sprintf("[trace]   draw %d = %d", d.Index, d.Value))
	}
	for _, c := range o.Changes {
		lines = append(lines, fmt.Sprintf("[trace]   %s %s.%s = %s", c.Op, c.Entity, c.Field, c.Value))
	}
	if len(o.Hooks) > 0 {
		lines = append(lines, "[trace]   hooks: "+strings.Join(o.Hooks, ", "))
	}
	if r.Fallback {
		lines = append(lines, "[trace]   narrative from template")
	}
	return lines
}

// meta dispatches slash commands.
func (s *Session) meta(ctx context.Context, input string) Reply {
	parts := strings.Fields(input)
	cmd := parts[0]
	arg := strings.TrimSpace(strings.TrimPrefix(input, cmd))
	sys := func(lines ...string) Reply { return Reply{Lines: lines, System: true} }

	switch cmd {
	case "/quit", "/exit":
		return Reply{Lines: []string{"Goodbye."}, System: true, Quit: true}

	case "/help":
		return Reply{Lines: helpLines}

	case "/state":
		return sys(s.stateLines()...)

	case "/choices":
		choices, _, err := s.Engine.Choices(ctx, s.Player)
		if err != nil {
			return errorReply(err)
		}
		s.choices = choices
		if len(choices) == 0 {
			return sys("Nothing suggests itself.")
		}
		lines := make([]string, len(choices))
		for i, c := range choices {
			lines[i] = fmt.Sprintf("%d. %s", i+1, sentence(c.Text))
		}
		return sys(lines...)

	case "/choose":
		return s.choose(ctx, arg)

	case "/trace":
		s.Trace = !s.Trace
		if s.Trace {
			return sys("Trace output enabled.")
		}
		return sys("Trace output disabled.")

	case "/checkpoint":
		cp, err := s.Engine.Checkpoint(ctx, arg)
		if err != nil {
			return sys(fmt.Sprintf("Checkpoint failed: %v", err))
		}
		return sys(fmt.Sprintf("Checkpoint %s saved at sequence %d (%s).", cp.ID, cp.Sequence, cp.Label))

	case "/checkpoints":
		cps, err := s.Engine.Checkpoints(ctx)
		if err != nil {
			return sys(fmt.Sprintf("Listing checkpoints failed: %v", err))
		}
		if len(cps) == 0 {
			return sys("No checkpoints yet.")
		}
		lines := make([]string, len(cps))
		for i, cp := range cps {
			lines[i] = fmt.Sprintf("%s  seq %d  time %d  %s", cp.ID, cp.Sequence, cp.Time, cp.Label)
		}
		return sys(lines...)

	case "/replay":
		var upTo uint64
		if arg != "" {
			n, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return sys(fmt.Sprintf("Usage: /replay [sequence], got %q", arg))
			}
			upTo = n
		}
		st, err := s.Engine.Replay(ctx, upTo)
		if err != nil {
			return sys(fmt.Sprintf("Replay failed: %v", err))
		}
		p, ok := st.Players[s.Player]
		if !ok {
			return sys(fmt.Sprintf("At sequence %d (time %d) you had not arrived yet.", st.Sequence, st.Time))
		}
		return sys(fmt.Sprintf("At sequence %d (time %d) you were in %s carrying %d item(s).",
			st.Sequence, st.Time, st.Locations[p.Location].Name, len(p.Inventory)))

	case "/verify":
		seq, err := s.Engine.Verify(ctx)
		if err != nil {
			return sys(fmt.Sprintf("Verification failed: %v", err))
		}
		return sys(fmt.Sprintf("Replay of %d entries matches the live world.", seq))

	default:
		return sys(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
}

// choose submits one of the choices last listed by /choices.
func (s *Session) choose(ctx context.Context, arg string) Reply {
	if len(s.choices) == 0 {
		return Reply{Lines: []string{"Type /choices first."}, System: true}
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(s.choices) {
		return Reply{Lines: []string{fmt.Sprintf("Choose a number from 1 to %d.", len(s.choices))}, System: true}
	}
	raw, err := json.Marshal(s.choices[n-1].Action)
	if err != nil {
		return errorReply(err)
	}
	report, err := s.Engine.SubmitAction(ctx, s.Player, agent.Proposal{JSON: raw})
	if err != nil {
		return errorReply(err)
	}
	return s.reportReply(report)
}

func (s *Session) stateLines() []string {
	st := s.Engine.State()
	lines := []string{
		fmt.Sprintf("World: %s  sequence %d  time %d", st.WorldID, st.Sequence, st.Time),
	}
	if st.Mood != "" {
		lines = append(lines, "Mood: "+st.Mood)
	}
	if p, ok := st.Players[s.Player]; ok {
		lines = append(lines,
			fmt.Sprintf("Player: %s  turn %d  in %s", p.ID, p.Turn, p.Location),
			fmt.Sprintf("Inventory: %v", p.Inventory),
		)
		if len(p.Stats) > 0 {
			lines = append(lines, fmt.Sprintf("Stats: %v", p.Stats))
		}
	}
	if len(st.Flags) > 0 {
		var set []string
		for k, v := range st.Flags {
			if v {
				set = append(set, k)
			}
		}
		sort.Strings(set)
		lines = append(lines, "Flags: "+strings.Join(set, ", "))
	}
	return lines
}

var helpLines = []string{
	"System:",
	"  /checkpoint [label]  Save a named checkpoint",
	"  /checkpoints         List checkpoints",
	"  /replay [seq]        Rebuild the world as of a sequence",
	"  /verify              Replay the whole log against the live world",
	"  /choices             Suggest things to do here",
	"  /choose <n>          Do one of the suggested things",
	"  /state               Debug: dump current state",
	"  /trace               Toggle outcome trace output",
	"  /help                Show this help",
	"  /quit                Leave",
	"",
	"Game commands:",
	"  look (l)              Describe where you are",
	"  examine <thing> (x)   Look closely at something",
	"  go <dir>              Move (or just type n/s/e/w/u/d)",
	"  take/drop <item>      Pick something up or put it down",
	"  use <item> on <thing> Use an item on something",
	"  talk to <npc> about <topic>",
	"  inventory (i)         Check what you're carrying",
	"  wait [turns] (z)      Let time pass",
	"  again (g)             Repeat your last command",
}

// sentence capitalizes s and ends it with a period.
func sentence(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	out := string(r)
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out
}
