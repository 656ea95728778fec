// Package dialogue implements the NPC topic system.
package dialogue

import (
	"sort"

	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// AvailableTopics returns the sorted topic keys whose conditions are met
// for the player.
func AvailableTopics(s *types.WorldState, defs *state.Defs, playerID, npcID string) []string {
	topics := defs.Topics[npcID]
	if topics == nil {
		return nil
	}

	var result []string
	for key, topic := range topics {
		if rules.EvalAllConditions(topic.Requires, s, playerID) {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result
}

// SelectTopic returns the topic for a key. An empty key picks the first
// available topic in sorted order. The bool is false if the topic does
// not exist or its conditions are not met.
func SelectTopic(s *types.WorldState, defs *state.Defs, playerID, npcID, key string) (string, types.TopicDef, bool) {
	if key == "" {
		available := AvailableTopics(s, defs, playerID, npcID)
		if len(available) == 0 {
			return "", types.TopicDef{}, false
		}
		key = available[0]
	}

	topic, ok := defs.Topics[npcID][key]
	if !ok {
		return "", types.TopicDef{}, false
	}
	if !rules.EvalAllConditions(topic.Requires, s, playerID) {
		return "", types.TopicDef{}, false
	}
	return key, topic, true
}
