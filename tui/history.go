// Package tui provides a Bubble Tea terminal UI for a worldcore player session.
package tui

// History is a bounded list of submitted commands with cursor-based
// navigation. The cursor sits at len(entries) when the player is typing
// fresh input.
type History struct {
	entries []string
	max     int
	cursor  int
}

// NewHistory creates a history holding at most max commands.
func NewHistory(max int) *History {
	return &History{entries: make([]string, 0, max), max: max}
}

// Seed loads earlier commands, oldest first, as if each had been pushed.
func (h *History) Seed(cmds []string) {
	for _, c := range cmds {
		h.Push(c)
	}
}

// Push adds a command. Consecutive duplicates are skipped. Pushing
// always returns the cursor to fresh input.
func (h *History) Push(cmd string) {
	if n := len(h.entries); n == 0 || h.entries[n-1] != cmd {
		h.entries = append(h.entries, cmd)
		if over := len(h.entries) - h.max; over > 0 {
			h.entries = h.entries[over:]
		}
	}
	h.cursor = len(h.entries)
}

// Prev steps to the older entry, stopping at the oldest. It reports false
// only when the history is empty.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next steps to the newer entry. Stepping past the newest returns to
// fresh input and reports false.
func (h *History) Next() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return "", false
	}
	return h.entries[h.cursor], true
}

// ResetCursor returns the cursor to fresh input.
func (h *History) ResetCursor() {
	h.cursor = len(h.entries)
}

// Len reports how many commands are held.
func (h *History) Len() int { return len(h.entries) }
