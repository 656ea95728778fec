// Package types defines the shared data structures for the worldcore engine.
// This package contains only type definitions: no logic and no methods.
package types

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Intent is the parsed representation of a free-text command.
type Intent struct {
	Verb   string
	Object string // optional
	Target string // optional
}

// Condition is a predicate evaluated against world state for an acting player.
type Condition struct {
	Type   string         `json:"type"`             // "has_item", "flag_set", "npc_at", etc.
	Params map[string]any `json:"params,omitempty"` // condition-specific parameters
	Inner  *Condition     `json:"inner,omitempty"`  // for Not(): the negated inner condition
}

// Effect is a single atomic state mutation instruction.
type Effect struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Event is emitted after effects are applied.
type Event struct {
	Type string
	Data map[string]any
}

// Chance splits a rule's effects on a percentage roll.
type Chance struct {
	Percent int      `json:"percent"`
	Success []Effect `json:"success,omitempty"`
	Failure []Effect `json:"failure,omitempty"`
}

// WorldDef holds world metadata from content files.
type WorldDef struct {
	ID      string
	Title   string
	Author  string
	Version string
	Intro   string
	Start   string // default location for players without one
	Seed    int64
	Rules   string // prose rules handed to narrative agents
	Mood    string
	MaxWait int
}

// ItemDef is the immutable definition of an item reference.
type ItemDef struct {
	ID          string
	Name        string
	Description string
	Portable    bool
}

// Interaction maps a verb on a target to effects.
type Interaction struct {
	ID       string
	Target   string
	Verb     string
	Location string // optional: only applies in this location
	Requires []Condition
	Effects  []Effect
	Chance   *Chance
	Text     string
}

// ItemUse maps using an item (optionally on a target) to effects.
type ItemUse struct {
	ID       string
	Item     string
	Target   string // empty: used on nothing in particular
	Requires []Condition
	Effects  []Effect
	Chance   *Chance
	Consume  bool
	Text     string
}

// CustomDef is a world-specific action available through the custom kind.
type CustomDef struct {
	Name     string
	Params   []string // required argument names
	Location string
	Requires []Condition
	Effects  []Effect
	Chance   *Chance
	Text     string
}

// TopicDef defines a single dialogue topic for an NPC.
type TopicDef struct {
	Text     string
	Requires []Condition
	Effects  []Effect
	Chance   *Chance
}

// EventHandler is a rule triggered by an event rather than an action.
type EventHandler struct {
	EventType  string
	Conditions []Condition
	Effects    []Effect
}

// WorldState is the canonical state of one world.
type WorldState struct {
	WorldID   string              `json:"world_id"`
	Seed      int64               `json:"seed"`
	Time      int64               `json:"time"`
	Sequence  uint64              `json:"sequence"`
	Mood      string              `json:"mood,omitempty"`
	Locations map[string]Location `json:"locations"`
	NPCs      map[string]NPC      `json:"npcs"`
	Players   map[string]Player   `json:"players"`
	Flags     map[string]bool     `json:"flags"`
}

// Location is a place in the world. NPCs and Items are sorted sets.
type Location struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Exits       map[string]string      `json:"exits"`            // direction → location id
	Guards      map[string][]Condition `json:"guards,omitempty"` // direction → conditions to pass
	Entry       []Condition            `json:"entry,omitempty"`  // conditions to enter at all
	NPCs        []string               `json:"npcs"`
	Items       []string               `json:"items"`
}

// NPC is a non-player character. NPCs are never deleted, only deactivated.
type NPC struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Location     string   `json:"location"`
	Tags         []string `json:"tags"`
	Mood         string   `json:"mood"`
	Relationship int      `json:"relationship"`
	Behavior     string   `json:"behavior,omitempty"`
	Active       bool     `json:"active"`
}

// Player holds one player's runtime state.
type Player struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Location  string         `json:"location"`
	Inventory []string       `json:"inventory"`
	Stats     map[string]int `json:"stats"`
	Turn      int            `json:"turn"`
}

// ActionKind is the closed set of action kinds.
type ActionKind string

const (
	ActionMove     ActionKind = "move"
	ActionInteract ActionKind = "interact"
	ActionSpeak    ActionKind = "speak"
	ActionUseItem  ActionKind = "use_item"
	ActionWait     ActionKind = "wait"
	ActionCustom   ActionKind = "custom"
)

// Action is a candidate or accepted action. Exactly one payload matching
// Kind is set.
type Action struct {
	Kind     ActionKind       `json:"kind"`
	PlayerID string           `json:"player_id"`
	Intent   string           `json:"intent"`
	Move     *MovePayload     `json:"move,omitempty"`
	Interact *InteractPayload `json:"interact,omitempty"`
	Speak    *SpeakPayload    `json:"speak,omitempty"`
	UseItem  *UseItemPayload  `json:"use_item,omitempty"`
	Wait     *WaitPayload     `json:"wait,omitempty"`
	Custom   *CustomPayload   `json:"custom,omitempty"`
}

type MovePayload struct {
	Direction string `json:"direction"`
}

type InteractPayload struct {
	Verb   string `json:"verb"`
	Target string `json:"target"`
}

type SpeakPayload struct {
	NPC       string `json:"npc"`
	Topic     string `json:"topic,omitempty"`
	Utterance string `json:"utterance,omitempty"`
}

type UseItemPayload struct {
	Item   string `json:"item"`
	Target string `json:"target,omitempty"`
}

type WaitPayload struct {
	Ticks int `json:"ticks"`
}

type CustomPayload struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// Change is one line of a state delta summary.
type Change struct {
	Op     string `json:"op"`
	Entity string `json:"entity"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Draw is one value consumed from the random stream.
type Draw struct {
	Index int    `json:"index"`
	Value uint64 `json:"value"`
}

// OutcomeRecord is the structured result of a resolved action. It never
// carries narrative text.
type OutcomeRecord struct {
	Kind       ActionKind `json:"kind"`
	PlayerID   string     `json:"player_id"`
	Success    bool       `json:"success"`
	Affected   []string   `json:"affected"`
	Changes    []Change   `json:"changes"`
	Draws      []Draw     `json:"draws"`
	Hooks      []string   `json:"hooks"`
	TimeBefore int64      `json:"time_before"`
	TimeAfter  int64      `json:"time_after"`
}

// SeedMaterial is everything needed to reproduce an action's random draws.
type SeedMaterial struct {
	Root     int64  `json:"root"`
	Time     int64  `json:"time"`
	Sequence uint64 `json:"sequence"`
	Draws    int    `json:"draws"`
}

// EventLogEntry is one accepted action in a world's history.
type EventLogEntry struct {
	ID         ulid.ULID     `json:"id"`
	WorldID    string        `json:"world_id"`
	Sequence   uint64        `json:"sequence"`
	WorldTime  int64         `json:"world_time"`
	RecordedAt time.Time     `json:"recorded_at"`
	Action     Action        `json:"action"`
	Outcome    OutcomeRecord `json:"outcome"`
	Seed       SeedMaterial  `json:"seed"`
	Digest     string        `json:"digest"`
}

// WorldView is the read-only projection of a world for one player.
type WorldView struct {
	WorldID  string       `json:"world_id"`
	Title    string       `json:"title"`
	Time     int64        `json:"time"`
	Sequence uint64       `json:"sequence"`
	Mood     string       `json:"mood,omitempty"`
	Rules    string       `json:"rules,omitempty"`
	Player   Player       `json:"player"`
	Location LocationView `json:"location"`
	Carrying []ItemView   `json:"carrying"`
	Actions  []ActionView `json:"actions"` // custom actions usable here
}

// LocationView is what a player can see of their current location.
type LocationView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Exits       []string   `json:"exits"`
	NPCs        []NPCView  `json:"npcs"`
	Items       []ItemView `json:"items"`
	Players     []string   `json:"players"`
}

// NPCView is the visible part of an NPC.
type NPCView struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Mood   string   `json:"mood"`
	Topics []string `json:"topics"`
}

// ActionView names a custom action and the arguments it needs.
type ActionView struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
}

// ItemView is the visible part of an item.
type ItemView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
