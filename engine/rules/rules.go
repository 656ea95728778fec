// Package rules validates candidate actions against world state.
// Validation is a pure predicate: it never mutates state and never draws
// from the random stream.
package rules

import (
	"fmt"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// Code is a machine-readable rejection reason.
type Code string

const (
	UnknownPlayer       Code = "unknown_player"
	MalformedAction     Code = "malformed_action"
	UnrecognizedIntent  Code = "unrecognized_intent"
	MalformedProposal   Code = "malformed_proposal"
	NoSuchExit          Code = "no_such_exit"
	ExitBlocked         Code = "exit_blocked"
	LocationLocked      Code = "location_locked"
	UnknownLocation     Code = "unknown_location"
	NoSuchTarget        Code = "no_such_target"
	TargetNotHere       Code = "target_not_here"
	NothingHappens      Code = "nothing_happens"
	NotPortable         Code = "not_portable"
	RequirementsUnmet   Code = "requirements_unmet"
	ItemNotOwned        Code = "item_not_owned"
	NPCNotHere          Code = "npc_not_here"
	NPCInactive         Code = "npc_inactive"
	NoSuchTopic         Code = "no_such_topic"
	TopicUnavailable    Code = "topic_unavailable"
	InvalidWait         Code = "invalid_wait"
	UnknownCustomAction Code = "unknown_custom_action"
	AmbiguousTarget     Code = "ambiguous_target"
)

// Rejection is the verdict for an action that may not proceed. Detail is
// safe to show to a player.
type Rejection struct {
	Code   Code
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Detail)
}

// Reject builds a Rejection with a formatted detail.
func Reject(code Code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Validate returns nil if the action is legal in s, or the reason it is not.
func Validate(s *types.WorldState, defs *state.Defs, a types.Action) *Rejection {
	p, ok := s.Players[a.PlayerID]
	if !ok {
		return Reject(UnknownPlayer, "no player %q in this world", a.PlayerID)
	}
	if rej := CheckShape(a); rej != nil {
		return rej
	}

	switch a.Kind {
	case types.ActionMove:
		return validateMove(s, a.PlayerID, p, a.Move.Direction)
	case types.ActionInteract:
		return validateInteract(s, defs, a.PlayerID, p, a.Interact)
	case types.ActionSpeak:
		return validateSpeak(s, defs, a.PlayerID, p, a.Speak)
	case types.ActionUseItem:
		return validateUseItem(s, defs, a.PlayerID, p, a.UseItem)
	case types.ActionWait:
		return validateWait(defs, a.Wait.Ticks)
	case types.ActionCustom:
		return validateCustom(s, defs, a.PlayerID, p, a.Custom)
	}
	return Reject(MalformedAction, "unknown action kind %q", a.Kind)
}

// CheckShape verifies that exactly one payload is set, that it matches
// the kind, and that its required fields are present.
func CheckShape(a types.Action) *Rejection {
	set := 0
	for _, present := range []bool{
		a.Move != nil, a.Interact != nil, a.Speak != nil,
		a.UseItem != nil, a.Wait != nil, a.Custom != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return Reject(MalformedAction, "expected exactly one payload, got %d", set)
	}

	switch a.Kind {
	case types.ActionMove:
		if a.Move == nil {
			return mismatch(a.Kind)
		}
		if a.Move.Direction == "" {
			return Reject(MalformedAction, "move needs a direction")
		}
	case types.ActionInteract:
		if a.Interact == nil {
			return mismatch(a.Kind)
		}
		if a.Interact.Verb == "" || a.Interact.Target == "" {
			return Reject(MalformedAction, "interact needs a verb and a target")
		}
	case types.ActionSpeak:
		if a.Speak == nil {
			return mismatch(a.Kind)
		}
		if a.Speak.NPC == "" {
			return Reject(MalformedAction, "speak needs someone to speak to")
		}
	case types.ActionUseItem:
		if a.UseItem == nil {
			return mismatch(a.Kind)
		}
		if a.UseItem.Item == "" {
			return Reject(MalformedAction, "use needs an item")
		}
	case types.ActionWait:
		if a.Wait == nil {
			return mismatch(a.Kind)
		}
	case types.ActionCustom:
		if a.Custom == nil {
			return mismatch(a.Kind)
		}
		if a.Custom.Name == "" {
			return Reject(MalformedAction, "custom action needs a name")
		}
	default:
		return Reject(MalformedAction, "unknown action kind %q", a.Kind)
	}
	return nil
}

func mismatch(kind types.ActionKind) *Rejection {
	return Reject(MalformedAction, "payload does not match kind %q", kind)
}

func validateMove(s *types.WorldState, playerID string, p types.Player, dir string) *Rejection {
	loc := s.Locations[p.Location]
	target, ok := loc.Exits[dir]
	if !ok {
		return Reject(NoSuchExit, "you can't go %s from here", dir)
	}
	dest, ok := s.Locations[target]
	if !ok {
		return Reject(UnknownLocation, "the way %s leads nowhere", dir)
	}
	if !EvalAllConditions(loc.Guards[dir], s, playerID) {
		return Reject(ExitBlocked, "the way %s is blocked", dir)
	}
	if !EvalAllConditions(dest.Entry, s, playerID) {
		return Reject(LocationLocked, "%s is locked", displayName(dest))
	}
	return nil
}

func validateInteract(s *types.WorldState, defs *state.Defs, playerID string, p types.Player, in *types.InteractPayload) *Rejection {
	if rej := checkReachable(s, defs, playerID, p, in.Target); rej != nil {
		return rej
	}

	if cands := Interactions(defs, p.Location, in.Target, in.Verb); len(cands) > 0 {
		if _, ok := FirstInteraction(s, defs, playerID, in.Target, in.Verb); !ok {
			return Reject(RequirementsUnmet, "you can't %s that yet", in.Verb)
		}
		return nil
	}

	switch in.Verb {
	case "take":
		item, ok := defs.Items[in.Target]
		if !ok {
			return Reject(NothingHappens, "you can't take that")
		}
		if state.HasItem(s, playerID, in.Target) {
			return Reject(NothingHappens, "you already have that")
		}
		if !item.Portable {
			return Reject(NotPortable, "you can't carry that")
		}
		return nil
	case "drop":
		if !state.HasItem(s, playerID, in.Target) {
			return Reject(ItemNotOwned, "you don't have that")
		}
		return nil
	case "examine":
		return nil
	}
	return Reject(NothingHappens, "nothing happens when you %s that", in.Verb)
}

func validateSpeak(s *types.WorldState, defs *state.Defs, playerID string, p types.Player, sp *types.SpeakPayload) *Rejection {
	npc, ok := s.NPCs[sp.NPC]
	if !ok {
		return Reject(NoSuchTarget, "there is nobody called %q", sp.NPC)
	}
	if !npc.Active {
		return Reject(NPCInactive, "%s does not respond", npc.Name)
	}
	if npc.Location != p.Location {
		return Reject(NPCNotHere, "%s is not here", npc.Name)
	}

	topics := defs.Topics[sp.NPC]
	if sp.Topic != "" {
		topic, ok := topics[sp.Topic]
		if !ok {
			return Reject(NoSuchTopic, "%s knows nothing about %s", npc.Name, sp.Topic)
		}
		if !EvalAllConditions(topic.Requires, s, playerID) {
			return Reject(TopicUnavailable, "%s won't talk about %s right now", npc.Name, sp.Topic)
		}
		return nil
	}

	if sp.Utterance != "" {
		return nil
	}
	for _, topic := range topics {
		if EvalAllConditions(topic.Requires, s, playerID) {
			return nil
		}
	}
	return Reject(TopicUnavailable, "%s has nothing to say right now", npc.Name)
}

func validateUseItem(s *types.WorldState, defs *state.Defs, playerID string, p types.Player, u *types.UseItemPayload) *Rejection {
	if !state.HasItem(s, playerID, u.Item) {
		return Reject(ItemNotOwned, "you don't have that")
	}
	if u.Target != "" {
		if rej := checkReachable(s, defs, playerID, p, u.Target); rej != nil {
			return rej
		}
	}
	if len(Uses(defs, u.Item, u.Target)) == 0 {
		return Reject(NothingHappens, "nothing happens")
	}
	if _, ok := FirstUse(s, defs, playerID, u.Item, u.Target); !ok {
		return Reject(RequirementsUnmet, "that doesn't work yet")
	}
	return nil
}

func validateWait(defs *state.Defs, ticks int) *Rejection {
	if ticks < 1 || ticks > defs.MaxWait() {
		return Reject(InvalidWait, "you can wait between 1 and %d turns", defs.MaxWait())
	}
	return nil
}

func validateCustom(s *types.WorldState, defs *state.Defs, playerID string, p types.Player, c *types.CustomPayload) *Rejection {
	def, ok := defs.Customs[c.Name]
	if !ok {
		return Reject(UnknownCustomAction, "you don't know how to %s", c.Name)
	}
	if def.Location != "" && def.Location != p.Location {
		return Reject(RequirementsUnmet, "you can't %s here", c.Name)
	}
	for _, param := range def.Params {
		if c.Args[param] == "" {
			return Reject(MalformedAction, "%s needs %s", c.Name, param)
		}
	}
	if !EvalAllConditions(def.Requires, s, playerID) {
		return Reject(RequirementsUnmet, "you can't %s yet", c.Name)
	}
	return nil
}

// checkReachable distinguishes targets that do not exist from targets that
// exist somewhere else.
func checkReachable(s *types.WorldState, defs *state.Defs, playerID string, p types.Player, target string) *Rejection {
	if Visible(s, playerID, target) || IsFeature(defs, p.Location, target) {
		return nil
	}
	if Known(s, defs, target) {
		return Reject(TargetNotHere, "you don't see %q here", target)
	}
	return Reject(NoSuchTarget, "there is no %q", target)
}

func displayName(loc types.Location) string {
	if loc.Name != "" {
		return loc.Name
	}
	return loc.ID
}
