package engine

import (
	"strings"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// authoredText collects the lines world content wrote for the rules an
// outcome fired, in hook order. Failed outcomes carry none.
func authoredText(defs *state.Defs, o types.OutcomeRecord) []string {
	if !o.Success {
		return nil
	}
	var out []string
	add := func(text string) {
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	for _, hook := range o.Hooks {
		kind, rest, _ := strings.Cut(hook, ":")
		switch kind {
		case "interaction":
			for _, in := range defs.Interactions {
				if in.ID == rest {
					add(in.Text)
					break
				}
			}
		case "use":
			for _, u := range defs.Uses {
				if u.ID == rest {
					add(u.Text)
					break
				}
			}
		case "custom":
			add(defs.Customs[rest].Text)
		case "topic":
			npc, key, _ := strings.Cut(rest, ":")
			add(defs.Topics[npc][key].Text)
		case "examine":
			add(defs.Items[rest].Description)
		}
	}
	return out
}
