package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// roomDisplayName derives a human-readable name from a location ID.
// "great_hall" -> "Great Hall", "castle_gates" -> "Castle Gates".
func roomDisplayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// renderStatusBar produces a full-width inverted status line showing
// where the player stands and the world clock. The bar changes colour
// while a command is with the engine.
func (m Model) renderStatusBar() string {
	v, err := m.session.Engine.View(m.session.Player)
	if err != nil {
		return styleStatusBar.Width(m.width).Render(" " + err.Error())
	}

	roomName := v.Location.Name
	if roomName == "" {
		roomName = roomDisplayName(v.Location.ID)
	}
	left := fmt.Sprintf(" %s | Exits: %s", roomName, strings.Join(v.Location.Exits, ","))
	clock := fmt.Sprintf("T:%d #%d ", v.Time, v.Sequence)
	right := clock

	// Show inventory items if they fit, otherwise just count.
	if n := len(v.Carrying); n > 0 {
		names := make([]string, n)
		for i, it := range v.Carrying {
			names[i] = it.Name
		}
		candidate := fmt.Sprintf("Inv: %s | %s", strings.Join(names, ", "), clock)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		} else {
			right = fmt.Sprintf("Inv: %d | %s", n, clock)
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	if m.busy {
		return styleStatusBusy.Width(m.width).Render(bar)
	}
	return styleStatusBar.Width(m.width).Render(bar)
}
