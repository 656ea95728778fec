package state

import (
	"errors"

	"github.com/nathoo/worldcore/types"
)

// ErrUnknownPlayer is returned when a view is requested for a player the
// world does not know.
var ErrUnknownPlayer = errors.New("unknown player")

// TopicsFunc lists the topics an NPC will currently discuss with a player.
type TopicsFunc func(s *types.WorldState, defs *Defs, playerID, npcID string) []string

// View projects what one player can see: their own state, their current
// location with its visible occupants and items, and what they carry.
// topics may be nil, in which case NPC topic lists are left empty.
func View(s *types.WorldState, defs *Defs, playerID string, topics TopicsFunc) (types.WorldView, error) {
	p, ok := s.Players[playerID]
	if !ok {
		return types.WorldView{}, ErrUnknownPlayer
	}

	p.Inventory = cloneStrings(p.Inventory)
	stats := make(map[string]int, len(p.Stats))
	for k, v := range p.Stats {
		stats[k] = v
	}
	p.Stats = stats

	view := types.WorldView{
		WorldID:  s.WorldID,
		Title:    defs.World.Title,
		Time:     s.Time,
		Sequence: s.Sequence,
		Mood:     s.Mood,
		Rules:    defs.World.Rules,
		Player:   p,
		Carrying: itemViews(defs, p.Inventory),
	}

	loc := s.Locations[p.Location]
	lv := types.LocationView{
		ID:          loc.ID,
		Name:        loc.Name,
		Description: loc.Description,
		Exits:       SortedKeys(loc.Exits),
		Items:       itemViews(defs, loc.Items),
		NPCs:        []types.NPCView{},
	}
	for _, npcID := range loc.NPCs {
		npc := s.NPCs[npcID]
		if !npc.Active {
			continue
		}
		nv := types.NPCView{ID: npc.ID, Name: npc.Name, Mood: npc.Mood, Topics: []string{}}
		if topics != nil {
			nv.Topics = append(nv.Topics, topics(s, defs, playerID, npcID)...)
		}
		lv.NPCs = append(lv.NPCs, nv)
	}
	for _, other := range PlayersAt(s, p.Location) {
		if other != playerID {
			lv.Players = append(lv.Players, other)
		}
	}
	view.Location = lv

	view.Actions = []types.ActionView{}
	for _, name := range SortedKeys(defs.Customs) {
		c := defs.Customs[name]
		if c.Location == "" || c.Location == p.Location {
			view.Actions = append(view.Actions, types.ActionView{Name: name, Params: cloneStrings(c.Params)})
		}
	}

	return view, nil
}

func itemViews(defs *Defs, ids []string) []types.ItemView {
	out := make([]types.ItemView, 0, len(ids))
	for _, id := range ids {
		iv := types.ItemView{ID: id, Name: id}
		if def, ok := defs.Items[id]; ok {
			if def.Name != "" {
				iv.Name = def.Name
			}
			iv.Description = def.Description
		}
		out = append(out, iv)
	}
	return out
}
