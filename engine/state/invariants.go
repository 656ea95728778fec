package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nathoo/worldcore/types"
)

// CheckInvariants returns every referential problem in a world, sorted.
// An empty result means every location reference resolves, membership
// sets agree with NPC locations, and no item is in two places at once.
func CheckInvariants(s *types.WorldState) []string {
	var problems []string

	for id, p := range s.Players {
		if _, ok := s.Locations[p.Location]; !ok {
			problems = append(problems, fmt.Sprintf("player %q is in unknown location %q", id, p.Location))
		}
	}

	for id, npc := range s.NPCs {
		if npc.Location == "" {
			continue
		}
		loc, ok := s.Locations[npc.Location]
		if !ok {
			problems = append(problems, fmt.Sprintf("npc %q is in unknown location %q", id, npc.Location))
			continue
		}
		if !Contains(loc.NPCs, id) {
			problems = append(problems, fmt.Sprintf("npc %q missing from location %q membership", id, npc.Location))
		}
	}

	holders := map[string]string{}
	for _, pid := range SortedKeys(s.Players) {
		for _, item := range s.Players[pid].Inventory {
			if prev, ok := holders[item]; ok {
				problems = append(problems, fmt.Sprintf("item %q is held by player %q and %s", item, pid, prev))
				continue
			}
			holders[item] = "player " + pid
		}
	}

	for _, locID := range SortedKeys(s.Locations) {
		loc := s.Locations[locID]
		for dir, target := range loc.Exits {
			if _, ok := s.Locations[target]; !ok {
				problems = append(problems, fmt.Sprintf("location %q exit %q points to unknown location %q", locID, dir, target))
			}
		}
		for _, npcID := range loc.NPCs {
			npc, ok := s.NPCs[npcID]
			if !ok {
				problems = append(problems, fmt.Sprintf("location %q lists unknown npc %q", locID, npcID))
			} else if npc.Location != locID {
				problems = append(problems, fmt.Sprintf("location %q lists npc %q which is in %q", locID, npcID, npc.Location))
			}
		}
		if !sort.StringsAreSorted(loc.NPCs) || !sort.StringsAreSorted(loc.Items) {
			problems = append(problems, fmt.Sprintf("location %q membership sets are not sorted", locID))
		}
		for _, item := range loc.Items {
			if prev, ok := holders[item]; ok {
				problems = append(problems, fmt.Sprintf("item %q is in location %q and %s", item, locID, prev))
				continue
			}
			holders[item] = "location " + locID
		}
	}

	sort.Strings(problems)
	return problems
}

// Digest returns a stable hash of a world. Two worlds with equal digests
// are equal for replay purposes.
func Digest(s *types.WorldState) (string, error) {
	b, err := json.Marshal(Clone(s))
	if err != nil {
		return "", fmt.Errorf("encoding state for digest: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
