// Package state owns the canonical world state: query helpers, deep
// cloning, invariant checks, and the Store that holds the single
// authoritative copy per world.
package state

import (
	"sort"

	"github.com/nathoo/worldcore/types"
)

// DefaultMaxWait bounds wait actions when content does not set one.
const DefaultMaxWait = 10

// Defs holds the immutable world content loaded from Lua.
type Defs struct {
	World        types.WorldDef
	Items        map[string]types.ItemDef
	Interactions []types.Interaction
	Uses         []types.ItemUse
	Customs      map[string]types.CustomDef
	Topics       map[string]map[string]types.TopicDef // npc id → topic key → topic
	Handlers     []types.EventHandler
}

// MaxWait returns the largest tick count a single wait may request.
func (d *Defs) MaxWait() int {
	if d.World.MaxWait > 0 {
		return d.World.MaxWait
	}
	return DefaultMaxWait
}

// NewWorld creates an empty world with all maps allocated.
func NewWorld(worldID string, seed int64) *types.WorldState {
	return &types.WorldState{
		WorldID:   worldID,
		Seed:      seed,
		Locations: map[string]types.Location{},
		NPCs:      map[string]types.NPC{},
		Players:   map[string]types.Player{},
		Flags:     map[string]bool{},
	}
}

// GetFlag returns the value of a flag. Unset flags return false.
func GetFlag(s *types.WorldState, name string) bool {
	return s.Flags[name]
}

// HasItem returns true if the player carries the given item.
func HasItem(s *types.WorldState, playerID, itemID string) bool {
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	return Contains(p.Inventory, itemID)
}

// PlayerLocation returns the player's current location ID.
func PlayerLocation(s *types.WorldState, playerID string) string {
	return s.Players[playerID].Location
}

// ItemHere reports whether an item lies in the given location.
func ItemHere(s *types.WorldState, locationID, itemID string) bool {
	return Contains(s.Locations[locationID].Items, itemID)
}

// NPCHere reports whether an NPC is present in the given location.
func NPCHere(s *types.WorldState, locationID, npcID string) bool {
	return Contains(s.Locations[locationID].NPCs, npcID)
}

// PlayersAt returns the sorted IDs of players in a location.
func PlayersAt(s *types.WorldState, locationID string) []string {
	var ids []string
	for id, p := range s.Players {
		if p.Location == locationID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ItemLocation returns the location holding an item, or "" if the item
// is carried or nowhere.
func ItemLocation(s *types.WorldState, itemID string) string {
	for _, id := range SortedKeys(s.Locations) {
		if Contains(s.Locations[id].Items, itemID) {
			return id
		}
	}
	return ""
}

// Contains reports whether a sorted set holds id.
func Contains(set []string, id string) bool {
	i := sort.SearchStrings(set, id)
	return i < len(set) && set[i] == id
}

// AddToSet inserts id into a sorted set, keeping it sorted and unique.
func AddToSet(set []string, id string) []string {
	i := sort.SearchStrings(set, id)
	if i < len(set) && set[i] == id {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = id
	return set
}

// RemoveFromSet removes id from a sorted set if present.
func RemoveFromSet(set []string, id string) []string {
	i := sort.SearchStrings(set, id)
	if i < len(set) && set[i] == id {
		return append(set[:i], set[i+1:]...)
	}
	return set
}

// SortedKeys returns the keys of a string-keyed map in order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
