package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindRoomDesc lineKind = iota
	kindYouSee
	kindExits
	kindPresence
	kindDialogue
	kindSystem
	kindError
	kindTrace
)

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleStatusBusy = styleStatusBar.
			Foreground(lipgloss.Color("214"))

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleHighlight = lipgloss.NewStyle().
			Bold(true)

	// kindStyles maps each line kind to how it renders.
	kindStyles = map[lineKind]lipgloss.Style{
		kindRoomDesc: lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		kindYouSee:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		kindExits:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		kindPresence: lipgloss.NewStyle().Foreground(lipgloss.Color("110")),
		kindDialogue: lipgloss.NewStyle().Foreground(lipgloss.Color("228")),
		kindSystem:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		kindError:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		kindTrace:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
)

// linePrefixes classifies lines by how they start. Order matters: the
// first match wins.
var linePrefixes = []struct {
	prefix string
	kind   lineKind
}{
	{"[trace]", kindTrace},
	{"You see:", kindYouSee},
	{"Exits:", kindExits},
	{"There are no obvious exits", kindExits},
	{"Also here:", kindPresence},
	{"You don't see", kindError},
	{"You can't", kindError},
	{"You don't have", kindError},
	{"You don't know how", kindError},
}

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") && !strings.HasPrefix(line, "[trace]") {
		return kindSystem
	}
	for _, p := range linePrefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.kind
		}
	}
	switch {
	case containsQuotedSpeech(line):
		return kindDialogue
	case strings.HasSuffix(line, " is here.") || strings.Contains(line, " is here, looking "):
		return kindPresence
	default:
		return kindRoomDesc
	}
}

// containsQuotedSpeech checks if a line contains NPC dialogue in single
// quotes. Apostrophes inside words are short segments and do not count.
func containsQuotedSpeech(line string) bool {
	inQuote := false
	quoteLen := 0
	for _, r := range line {
		if r == '\'' {
			if inQuote && quoteLen > 5 {
				return true
			}
			inQuote = !inQuote
			quoteLen = 0
		} else if inQuote {
			quoteLen++
		}
	}
	return false
}

// render styles an already wrapped line of the given kind.
func render(line string, kind lineKind) string {
	base := kindStyles[kind]
	if kind == kindYouSee {
		// Item names after the prefix stand out.
		const prefix = "You see: "
		if strings.HasPrefix(line, prefix) {
			return base.Render(prefix) + styleHighlight.Inherit(base).Render(line[len(prefix):])
		}
	}
	return base.Render(line)
}

// styledPlayerInput renders the echoed player input in green with "> " prefix.
func styledPlayerInput(input string) string {
	return stylePlayerInput.Render("> " + input)
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return kindStyles[kindSystem].Render("[" + text + "]")
}
