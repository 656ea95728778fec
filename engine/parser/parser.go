// Package parser converts command strings into Intent structs.
// Intentionally dumb: no NLP, just pattern matching against a vocabulary
// that is loaded as configuration data.
package parser

import (
	"slices"
	"strings"

	"github.com/nathoo/worldcore/types"
)

// Vocabulary is the word lists the parser matches against.
type Vocabulary struct {
	// Directions maps every accepted spelling, including the full name,
	// to a canonical direction: "n" → "north", "north" → "north".
	Directions map[string]string `yaml:"directions"`
	// Verbs maps aliases to canonical verbs: "grab" → "take".
	Verbs map[string]string `yaml:"verbs"`
	// Phrases maps two-word verb phrases to a canonical verb: "pick up" → "take".
	Phrases map[string]string `yaml:"phrases"`
	// Prepositions split the object from the target.
	Prepositions []string `yaml:"prepositions"`
	// Articles are dropped.
	Articles []string `yaml:"articles"`
}

// Direction returns the canonical direction for a word.
func (v *Vocabulary) Direction(word string) (string, bool) {
	dir, ok := v.Directions[strings.ToLower(word)]
	return dir, ok
}

// Parse converts a raw command string into an Intent.
func Parse(input string, v *Vocabulary) types.Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.Intent{}
	}

	words := strings.Fields(strings.ToLower(input))

	// Direction shortcut: bare "n", "south", etc. → go <direction>
	if len(words) == 1 {
		if dir, ok := v.Direction(words[0]); ok {
			return types.Intent{Verb: "go", Object: dir}
		}
	}

	// Handle multi-word verb phrases before general parsing.
	if len(words) >= 2 {
		if verb, ok := v.Phrases[words[0]+" "+words[1]]; ok {
			words = append([]string{verb}, words[2:]...)
		}
	}

	// Apply verb aliases.
	if alias, ok := v.Verbs[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := stripArticles(words[1:], v.Articles)

	// Use the first preposition as a delimiter between object and target.
	object, target := splitOnPreposition(rest, v.Prepositions)

	return types.Intent{
		Verb:   verb,
		Object: object,
		Target: target,
	}
}

// stripArticles drops articles ("the", "a", "an") from the word list.
func stripArticles(words, articles []string) []string {
	return slices.DeleteFunc(slices.Clone(words), func(w string) bool {
		return slices.Contains(articles, w)
	})
}

// splitOnPreposition splits at the first preposition: the words before
// it name the object and the words after it the target. Without one,
// everything is the object.
func splitOnPreposition(words, prepositions []string) (object, target string) {
	i := slices.IndexFunc(words, func(w string) bool {
		return slices.Contains(prepositions, w)
	})
	if i < 0 {
		return strings.Join(words, " "), ""
	}
	return strings.Join(words[:i], " "), strings.Join(words[i+1:], " ")
}
