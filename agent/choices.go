package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nathoo/worldcore/types"
)

// MaxChoices bounds how many choices are offered at once.
const MaxChoices = 10

// Choice is one action offered to a player. Text is what the player
// reads; the action's Intent carries the same text.
type Choice struct {
	Text   string
	Action types.Action
}

// ChoicesRequest asks the narrator for a handful of things the player
// could do next.
type ChoicesRequest struct {
	View        types.WorldView
	Recent      []string
	Constraints []string
}

// Chooser is implemented by narrators that can offer choices. It returns
// a JSON array of action proposals whose "intent" is the line shown to
// the player.
type Chooser interface {
	Choose(ctx context.Context, req ChoicesRequest) (string, error)
}

// Choices offers the player in view a short list of actions. The narrator
// is asked first when it can choose; its proposals are decoded like any
// other and kept only if accept allows them. When the narrator is missing,
// failing or offers nothing acceptable, the list is built from the view
// and fallback is set. recent holds one line per recent world event,
// oldest first.
func (o *Orchestrator) Choices(ctx context.Context, view types.WorldView, recent []string, accept func(types.Action) bool) (choices []Choice, fallback bool) {
	if c, ok := o.opts.Narrator.(Chooser); ok {
		got, err := o.choose(ctx, c, view, recent, accept)
		if err != nil {
			o.log.Printf("choices for %s: %v", view.Player.ID, err)
		}
		if len(got) > 0 {
			return got, false
		}
	}
	return keep(situationChoices(view), accept), true
}

func (o *Orchestrator) choose(ctx context.Context, c Chooser, view types.WorldView, recent []string, accept func(types.Action) bool) ([]Choice, error) {
	ctx, span := o.tracer.Start(ctx, "agent.choices")
	defer span.End()

	cctx, cancel := context.WithTimeout(ctx, o.opts.SuggestTimeout)
	defer cancel()
	reply, err := c.Choose(cctx, ChoicesRequest{View: view, Recent: recent, Constraints: Constraints(view)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "choose failed")
		return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("choices reply is not a JSON array: %w", err)
	}

	var out []Choice
	for i, item := range raw {
		a, err := decodeProposal(o.schema, item, view.Player.ID)
		if err != nil {
			o.log.Printf("choice %d for %s dropped: %v", i, view.Player.ID, err)
			continue
		}
		text := strings.TrimSpace(a.Intent)
		if text == "" {
			text = string(a.Kind)
		}
		a.Intent = text
		out = append(out, Choice{Text: text, Action: a})
	}
	out = keep(out, accept)
	span.SetAttributes(attribute.Int("choices.offered", len(raw)), attribute.Int("choices.kept", len(out)))
	return out, nil
}

// situationChoices lists what the view makes obvious: every exit, every
// available topic, every item on the ground, the world's parameterless
// actions, and waiting.
func situationChoices(v types.WorldView) []Choice {
	pid := v.Player.ID
	var out []Choice
	add := func(text string, a types.Action) {
		a.PlayerID = pid
		a.Intent = text
		out = append(out, Choice{Text: text, Action: a})
	}

	for _, dir := range v.Location.Exits {
		add("go "+dir, types.Action{Kind: types.ActionMove, Move: &types.MovePayload{Direction: dir}})
	}
	for _, n := range v.Location.NPCs {
		if len(n.Topics) == 0 {
			add("talk to "+n.Name, types.Action{Kind: types.ActionSpeak, Speak: &types.SpeakPayload{NPC: n.ID}})
			continue
		}
		for _, topic := range n.Topics {
			add(fmt.Sprintf("ask %s about %s", n.Name, strings.ReplaceAll(topic, "_", " ")),
				types.Action{Kind: types.ActionSpeak, Speak: &types.SpeakPayload{NPC: n.ID, Topic: topic}})
		}
	}
	for _, it := range v.Location.Items {
		add("take "+strings.ToLower(it.Name),
			types.Action{Kind: types.ActionInteract, Interact: &types.InteractPayload{Verb: "take", Target: it.ID}})
	}
	for _, act := range v.Actions {
		if len(act.Params) == 0 {
			add(act.Name, types.Action{Kind: types.ActionCustom, Custom: &types.CustomPayload{Name: act.Name, Args: map[string]string{}}})
		}
	}
	add("wait", types.Action{Kind: types.ActionWait, Wait: &types.WaitPayload{Ticks: 1}})
	return out
}

func keep(choices []Choice, accept func(types.Action) bool) []Choice {
	out := make([]Choice, 0, len(choices))
	for _, c := range choices {
		if accept != nil && !accept(c.Action) {
			continue
		}
		out = append(out, c)
		if len(out) == MaxChoices {
			break
		}
	}
	return out
}
