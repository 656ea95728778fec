// Package agent sits between players, the narrator model and the engine.
// It coerces free text or structured proposals into one of the closed set
// of actions and produces flavor text for committed outcomes. It never
// mutates world state.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/worldcore/engine/names"
	"github.com/nathoo/worldcore/engine/parser"
	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/types"
)

// Proposal is what a player hands in: free text, or an action as JSON.
// JSON wins when both are set.
type Proposal struct {
	Text string
	JSON []byte
}

// Options configures an Orchestrator.
type Options struct {
	// Narrator is optional. Without one, unrecognized text is rejected and
	// every outcome gets fallback narration.
	Narrator       Narrator
	SuggestTimeout time.Duration
	NarrateTimeout time.Duration
	Logger         *log.Logger
	Tracer         trace.Tracer
}

const (
	DefaultSuggestTimeout = 3 * time.Second
	DefaultNarrateTimeout = 2 * time.Second
)

// Orchestrator turns proposals into actions and outcomes into prose.
// It is safe for concurrent use.
type Orchestrator struct {
	intents *IntentMap
	schema  *jsonschema.Schema
	opts    Options
	log     *log.Logger
	tracer  trace.Tracer
}

// New builds an orchestrator over an intent map.
func New(intents *IntentMap, opts Options) (*Orchestrator, error) {
	if intents == nil {
		return nil, errors.New("agent: nil intent map")
	}
	schema, err := compileProposalSchema()
	if err != nil {
		return nil, err
	}
	if opts.SuggestTimeout <= 0 {
		opts.SuggestTimeout = DefaultSuggestTimeout
	}
	if opts.NarrateTimeout <= 0 {
		opts.NarrateTimeout = DefaultNarrateTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/nathoo/worldcore/agent")
	}
	return &Orchestrator{intents: intents, schema: schema, opts: opts, log: logger, tracer: tracer}, nil
}

// Intents returns the intent map in use.
func (o *Orchestrator) Intents() *IntentMap { return o.intents }

// Propose coerces a proposal into an action for playerID. The returned
// action has a valid shape but has not been validated against the world.
func (o *Orchestrator) Propose(ctx context.Context, view types.WorldView, playerID string, p Proposal) (types.Action, error) {
	if len(p.JSON) > 0 {
		a, rej := o.decode(ctx, p.JSON, playerID, "structured")
		if rej != nil {
			return types.Action{}, rej
		}
		return a, nil
	}

	text := strings.TrimSpace(p.Text)
	intent := parser.Parse(text, &o.intents.Vocabulary)
	if intent.Verb == "" {
		return types.Action{}, rules.Reject(rules.UnrecognizedIntent, "say what you want to do")
	}

	a, rej := o.fromIntent(view, playerID, intent)
	if rej == nil {
		a.Intent = text
		return a, nil
	}
	if rej.Code != rules.UnrecognizedIntent || o.opts.Narrator == nil {
		return types.Action{}, rej
	}

	a, err := o.suggest(ctx, view, playerID, text)
	if err != nil {
		if errors.Is(err, ErrAgentUnavailable) {
			o.log.Printf("suggest for %q: %v", text, err)
			return types.Action{}, rej
		}
		return types.Action{}, err
	}
	a.Intent = text
	return a, nil
}

func (o *Orchestrator) suggest(ctx context.Context, view types.WorldView, playerID, text string) (types.Action, error) {
	ctx, span := o.tracer.Start(ctx, "agent.suggest")
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, o.opts.SuggestTimeout)
	defer cancel()
	reply, err := o.opts.Narrator.Suggest(sctx, SuggestRequest{View: view, Text: text, Constraints: Constraints(view)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggest failed")
		return types.Action{}, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}
	if strings.TrimSpace(reply) == "" {
		return types.Action{}, rules.Reject(rules.UnrecognizedIntent, "you're not sure how to %q", text)
	}
	a, rej := o.decode(ctx, []byte(reply), playerID, "suggested")
	if rej != nil {
		return types.Action{}, rej
	}
	span.SetAttributes(attribute.String("action.kind", string(a.Kind)))
	return a, nil
}

// decode turns a JSON proposal into an action. A bad document is logged
// and recorded on the current span; the player only gets a fixed sentence.
func (o *Orchestrator) decode(ctx context.Context, raw []byte, playerID, source string) (types.Action, *rules.Rejection) {
	a, err := decodeProposal(o.schema, raw, playerID)
	if err == nil {
		return a, nil
	}
	o.log.Printf("%s proposal from %s: %v", source, playerID, err)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetAttributes(attribute.String("agent.rejection", string(rules.MalformedProposal)))
	return types.Action{}, rules.Reject(rules.MalformedProposal, proposalDetail)
}

func (o *Orchestrator) fromIntent(view types.WorldView, playerID string, in types.Intent) (types.Action, *rules.Rejection) {
	a := types.Action{PlayerID: playerID}

	if custom, ok := customAction(view, in.Verb); ok {
		args := map[string]string{}
		values := []string{in.Object, in.Target}
		for i, param := range custom.Params {
			if i >= len(values) || values[i] == "" {
				break
			}
			id, rej := resolve(view, values[i])
			if rej != nil {
				return a, rej
			}
			args[param] = id
		}
		a.Kind = types.ActionCustom
		a.Custom = &types.CustomPayload{Name: custom.Name, Args: args}
		return a, nil
	}

	kind, ok := o.intents.KindFor(in.Verb)
	if !ok {
		return a, rules.Reject(rules.UnrecognizedIntent, "you don't know how to %q", in.Verb)
	}
	a.Kind = kind

	switch kind {
	case types.ActionMove:
		dir := in.Object
		if d, ok := o.intents.Direction(dir); ok {
			dir = d
		}
		if dir == "" {
			return a, rules.Reject(rules.UnrecognizedIntent, "go where?")
		}
		a.Move = &types.MovePayload{Direction: dir}

	case types.ActionWait:
		ticks := o.intents.DefaultWait
		if in.Object != "" {
			n, err := strconv.Atoi(in.Object)
			if err != nil {
				return a, rules.Reject(rules.InvalidWait, "wait how long? %q is not a number", in.Object)
			}
			ticks = n
		}
		a.Wait = &types.WaitPayload{Ticks: ticks}

	case types.ActionSpeak:
		if in.Object == "" {
			return a, rules.Reject(rules.UnrecognizedIntent, "%s to whom?", in.Verb)
		}
		sp, rej := speakPayload(view, in)
		if rej != nil {
			return a, rej
		}
		a.Speak = sp

	case types.ActionUseItem:
		if in.Object == "" {
			return a, rules.Reject(rules.UnrecognizedIntent, "%s what?", in.Verb)
		}
		item, rej := resolve(view, in.Object)
		if rej != nil {
			return a, rej
		}
		u := &types.UseItemPayload{Item: item}
		if in.Target != "" {
			if u.Target, rej = resolve(view, in.Target); rej != nil {
				return a, rej
			}
		}
		a.UseItem = u

	case types.ActionInteract:
		if in.Object == "" {
			return a, rules.Reject(rules.UnrecognizedIntent, "%s what?", in.Verb)
		}
		target, rej := resolve(view, in.Object)
		if rej != nil {
			return a, rej
		}
		a.Interact = &types.InteractPayload{Verb: in.Verb, Target: target}

	default:
		return a, rules.Reject(rules.UnrecognizedIntent, "you don't know how to %q", in.Verb)
	}
	return a, nil
}

// speakPayload handles "talk to elder", "ask elder about weather" and
// "say hello to elder". When the object is not someone present but the
// target is, the object is taken as the utterance.
func speakPayload(view types.WorldView, in types.Intent) (*types.SpeakPayload, *rules.Rejection) {
	npc, err := names.ResolveName(view, in.Object)
	var amb *names.AmbiguityError
	if errors.As(err, &amb) {
		return nil, rules.Reject(rules.AmbiguousTarget, "%s", amb.Error())
	}
	if err != nil && in.Target != "" {
		if alt, altErr := names.ResolveName(view, in.Target); altErr == nil {
			return &types.SpeakPayload{NPC: alt, Utterance: in.Object}, nil
		}
	}
	if err != nil {
		npc = names.Normalize(in.Object)
	}
	sp := &types.SpeakPayload{NPC: npc}
	if in.Target != "" {
		sp.Topic = names.Normalize(in.Target)
	}
	return sp, nil
}

// resolve maps a typed name to an entity id. Names that match nothing
// visible are passed through normalized so the rule engine can explain
// what is wrong with them.
func resolve(view types.WorldView, name string) (string, *rules.Rejection) {
	id, err := names.ResolveName(view, name)
	if err == nil {
		return id, nil
	}
	var amb *names.AmbiguityError
	if errors.As(err, &amb) {
		return "", rules.Reject(rules.AmbiguousTarget, "%s", amb.Error())
	}
	return names.Normalize(name), nil
}

func customAction(view types.WorldView, verb string) (types.ActionView, bool) {
	for _, a := range view.Actions {
		if a.Name == verb {
			return a, true
		}
	}
	return types.ActionView{}, false
}

// flavorData is what fallback templates see.
type flavorData struct {
	Outcome types.OutcomeRecord
	View    types.WorldView
	Intent  types.Intent
	Verb    string
	Item    string
	Target  string
}

// Flavor describes a committed outcome. It asks the narrator first and
// falls back to the configured template when the narrator is missing,
// slow or failing; fallback reports which one was used. Flavor never
// returns an error.
func (o *Orchestrator) Flavor(ctx context.Context, view types.WorldView, a types.Action, outcome types.OutcomeRecord) (text string, fallback bool) {
	intent := parser.Parse(a.Intent, &o.intents.Vocabulary)

	if o.opts.Narrator != nil {
		text, err := o.narrate(ctx, NarrateRequest{View: view, Outcome: outcome, Intent: intent})
		if err == nil && strings.TrimSpace(text) != "" {
			return text, false
		}
		if err != nil {
			o.log.Printf("narrate seq=%d: %v", view.Sequence, err)
		}
	}
	return o.render(view, a, outcome, intent), true
}

func (o *Orchestrator) narrate(ctx context.Context, req NarrateRequest) (string, error) {
	ctx, span := o.tracer.Start(ctx, "agent.narrate", trace.WithAttributes(
		attribute.String("action.kind", string(req.Outcome.Kind)),
	))
	defer span.End()

	nctx, cancel := context.WithTimeout(ctx, o.opts.NarrateTimeout)
	defer cancel()
	text, err := o.opts.Narrator.Narrate(nctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "narrate failed")
		return "", fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}
	return text, nil
}

// Fallback renders the canned narration for an outcome.
func (o *Orchestrator) Fallback(view types.WorldView, a types.Action, outcome types.OutcomeRecord) string {
	return o.render(view, a, outcome, parser.Parse(a.Intent, &o.intents.Vocabulary))
}

func (o *Orchestrator) render(view types.WorldView, a types.Action, outcome types.OutcomeRecord, intent types.Intent) string {
	data := flavorData{Outcome: outcome, View: view, Intent: intent, Verb: intent.Verb}
	switch {
	case a.Interact != nil:
		data.Verb, data.Target = a.Interact.Verb, displayName(view, a.Interact.Target)
	case a.Speak != nil:
		data.Target = displayName(view, a.Speak.NPC)
	case a.UseItem != nil:
		data.Item = displayName(view, a.UseItem.Item)
		data.Target = displayName(view, a.UseItem.Target)
	case a.Custom != nil:
		data.Verb = a.Custom.Name
	}

	var b strings.Builder
	if err := o.intents.template(a.Kind).Execute(&b, data); err != nil {
		o.log.Printf("fallback template %s: %v", a.Kind, err)
		return "Something happens."
	}
	return b.String()
}

// displayName prefers the name the player sees over the raw id.
func displayName(view types.WorldView, id string) string {
	if id == "" {
		return ""
	}
	for _, it := range view.Carrying {
		if it.ID == id {
			return strings.ToLower(it.Name)
		}
	}
	for _, it := range view.Location.Items {
		if it.ID == id {
			return strings.ToLower(it.Name)
		}
	}
	for _, n := range view.Location.NPCs {
		if n.ID == id {
			return n.Name
		}
	}
	return strings.ReplaceAll(id, "_", " ")
}
