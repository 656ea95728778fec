package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/worldcore/cli"
)

// historySize bounds command history, including commands recalled from
// the world's log.
const historySize = 100

const navigationHelp = "Navigation: PgUp/PgDn to scroll, Up/Down for command history"

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
}

// Model is the Bubble Tea model for the worldcore TUI.
type Model struct {
	ctx     context.Context
	session *cli.Session

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated narrative lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	busy     bool // a command is with the engine; input waits
	quitting bool
}

// introMsg carries the opening lines and recalled history.
type introMsg struct {
	lines  []string
	recent []string
}

// replyMsg carries the session's answer to one input line.
type replyMsg struct {
	input string
	reply cli.Reply
}

// New creates a TUI model driving the given session.
func New(ctx context.Context, s *cli.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		ctx:     ctx,
		session: s,
		input:   ti,
		history: NewHistory(historySize),
	}
}

// Run starts the Bubble Tea program and blocks until the player quits or
// ctx is cancelled.
func Run(ctx context.Context, s *cli.Session) error {
	p := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init shows the intro and recalls the player's earlier commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.intro())
}

func (m Model) intro() tea.Cmd {
	return func() tea.Msg {
		// A log that cannot be read only costs the recalled history.
		recent, _ := m.session.Recent(m.ctx, historySize)
		return introMsg{lines: m.session.Intro(), recent: recent}
	}
}

// submit hands one line to the session off the UI goroutine. Narration
// can take as long as the narrator timeout.
func (m Model) submit(input string) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{input: input, reply: m.session.Handle(m.ctx, input)}
	}
}

// Update handles messages (key presses, window resize, session output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case introMsg:
		m.history.Seed(msg.recent)
		m.appendLines("", msg.lines, false, false)
		return m, nil

	case replyMsg:
		m.busy = false
		lines := msg.reply.Lines
		if msg.input == "/help" {
			lines = append(lines, "", navigationHelp)
		}
		m.appendLines(msg.input, lines, msg.reply.System, msg.reply.Rejected)
		if msg.reply.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	vpHeight := max(height-2, 1) // 1 status bar + 1 input line
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.viewport.KeyMap = viewportKeyMap()
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refreshViewport()
}

// handleKey deals with the keys the model owns. Anything else falls
// through to the text input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit, true

	case "enter":
		input := strings.TrimSpace(m.input.Value())
		if input == "" || m.busy {
			return m, nil, true
		}
		m.input.SetValue("")
		m.history.Push(input)
		m.busy = true
		return m, m.submit(input), true

	case "up":
		if prev, ok := m.history.Prev(); ok {
			m.input.SetValue(prev)
			m.input.CursorEnd()
		}
		return m, nil, true

	case "down":
		next, _ := m.history.Next()
		m.input.SetValue(next)
		m.input.CursorEnd()
		return m, nil, true

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}
	return m, nil, false
}

// appendLines adds one exchange to the transcript and refreshes the
// viewport.
func (m *Model) appendLines(input string, lines []string, system, rejected bool) {
	if input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: input, isInput: true})
	}
	for _, line := range lines {
		rl := rawLine{text: line, isSystem: system}
		switch {
		case rejected:
			rl.kind = kindError
		case !system:
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}
	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})
	m.refreshViewport()
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := max(m.width, 10)

	styled := make([]string, 0, len(m.rawLines))
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}
		wrapped := wordWrap(rl.text, width)
		switch {
		case rl.isInput:
			styled = append(styled, styledPlayerInput(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, render(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given display width, breaking at
// word boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}

	var b strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wLen := lipgloss.Width(word)
		switch {
		case i == 0:
			lineLen = wLen
		case lineLen+1+wLen > width:
			b.WriteByte('\n')
			lineLen = wLen
		default:
			b.WriteByte(' ')
			lineLen += 1 + wLen
		}
		b.WriteString(word)
	}
	return b.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
