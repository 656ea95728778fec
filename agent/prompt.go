package agent

import (
	"fmt"
	"strings"

	"github.com/nathoo/worldcore/types"
)

const suggestSystemPrompt = `You turn a player's words into exactly one game action.
Reply with a single JSON object and nothing else. The object has a "kind"
of move, interact, speak, use_item, wait or custom, plus the matching
payload:
  {"kind":"move","move":{"direction":"north"}}
  {"kind":"interact","interact":{"verb":"open","target":"door"}}
  {"kind":"speak","speak":{"npc":"elder","topic":"weather"}}
  {"kind":"use_item","use_item":{"item":"key","target":"door"}}
  {"kind":"wait","wait":{"ticks":1}}
  {"kind":"custom","custom":{"name":"pray","args":{}}}
Use only ids that appear in the situation. If nothing fits, reply {}.
You do not decide whether the action works. The game does.`

const choicesSystemPrompt = `You offer the player of a text adventure a few things to do next.
Reply with a JSON array of up to six actions and nothing else. Each action
uses the same shape as a single proposal and carries an "intent": a short
imperative line the player will read, such as "Ask the elder about the
weather". Use only ids that appear in the situation. Prefer actions that
follow from what just happened. If nothing fits, reply [].`

const narrateSystemPrompt = `You narrate a text adventure in the second person.
Describe what just happened in two or three sentences. Never invent
outcomes: only describe the changes you are given. Keep to the mood of
the world.`

// Constraints lists the physical facts the narrator must respect, as
// plain sentences.
func Constraints(v types.WorldView) []string {
	out := []string{fmt.Sprintf("The player is in %s (%s).", v.Location.Name, v.Location.ID)}

	if len(v.Carrying) == 0 {
		out = append(out, "The player carries nothing.")
	} else {
		out = append(out, "The player carries: "+itemList(v.Carrying)+".")
	}
	if len(v.Location.Exits) > 0 {
		out = append(out, "Exits: "+strings.Join(v.Location.Exits, ", ")+".")
	} else {
		out = append(out, "There are no exits.")
	}
	if len(v.Location.Items) > 0 {
		out = append(out, "Items here: "+itemList(v.Location.Items)+".")
	}
	for _, n := range v.Location.NPCs {
		line := fmt.Sprintf("%s (%s) is here", n.Name, n.ID)
		if len(n.Topics) > 0 {
			line += " and will talk about " + strings.Join(n.Topics, ", ")
		}
		out = append(out, line+".")
	}
	for _, a := range v.Actions {
		line := "Special action available: " + a.Name
		if len(a.Params) > 0 {
			line += " (" + strings.Join(a.Params, ", ") + ")"
		}
		out = append(out, line+".")
	}
	return out
}

func itemList(items []types.ItemView) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s (%s)", it.Name, it.ID)
	}
	return strings.Join(parts, ", ")
}

func suggestPrompt(req SuggestRequest) string {
	var b strings.Builder
	writeWorld(&b, req.View)
	b.WriteString("Situation:\n")
	for _, c := range req.Constraints {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nThe player says: %q\n", req.Text)
	return b.String()
}

func choicesPrompt(req ChoicesRequest) string {
	var b strings.Builder
	writeWorld(&b, req.View)
	b.WriteString("Situation:\n")
	for _, c := range req.Constraints {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	if len(req.Recent) > 0 {
		b.WriteString("\nRecently:\n")
		for _, r := range req.Recent {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nShape of one action:\n")
	b.WriteString(`  {"kind":"move","intent":"Head north","move":{"direction":"north"}}`)
	b.WriteString("\n")
	return b.String()
}

func narratePrompt(req NarrateRequest) string {
	var b strings.Builder
	writeWorld(&b, req.View)
	fmt.Fprintf(&b, "Location: %s. %s\n", req.View.Location.Name, req.View.Location.Description)
	fmt.Fprintf(&b, "Player intent: %s %s %s\n", req.Intent.Verb, req.Intent.Object, req.Intent.Target)
	fmt.Fprintf(&b, "Action: %s, success: %t\n", req.Outcome.Kind, req.Outcome.Success)
	if len(req.Outcome.Changes) == 0 {
		b.WriteString("Nothing changed.\n")
	}
	for _, c := range req.Outcome.Changes {
		fmt.Fprintf(&b, "- %s %s %s %s\n", c.Op, c.Entity, c.Field, c.Value)
	}
	return b.String()
}

func writeWorld(b *strings.Builder, v types.WorldView) {
	if v.Title != "" {
		fmt.Fprintf(b, "World: %s\n", v.Title)
	}
	if v.Mood != "" {
		fmt.Fprintf(b, "Mood: %s\n", v.Mood)
	}
	if v.Rules != "" {
		fmt.Fprintf(b, "Rules: %s\n", v.Rules)
	}
}
