// Package names maps the names a player types to entity IDs, using only
// what that player can currently see.
package names

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nathoo/worldcore/types"
)

// Result holds the resolved entity IDs for an intent.
type Result struct {
	ObjectID string
	TargetID string
}

// AmbiguityError indicates multiple entities matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("which %s? (%s)", e.Name, strings.Join(e.Candidates, ", "))
}

// NotFoundError indicates no entity matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("you don't see %q here", e.Name)
}

// Resolve maps the object and target names of an intent to entity IDs.
// Empty names stay empty.
func Resolve(v types.WorldView, intent types.Intent) (Result, error) {
	var res Result
	for _, slot := range []struct {
		name string
		dst  *string
	}{
		{intent.Object, &res.ObjectID},
		{intent.Target, &res.TargetID},
	} {
		if slot.name == "" {
			continue
		}
		id, err := ResolveName(v, slot.name)
		if err != nil {
			return res, err
		}
		*slot.dst = id
	}
	return res, nil
}

// match strength, strongest first.
const (
	matchNone = iota
	matchWord // one word of the display name
	matchFull // whole display name, or the ID in typed form
	matchID   // the ID exactly as written
)

type visible struct {
	id, name string
}

// ResolveName resolves a single name to the ID of something visible:
// items on the ground, items carried, or NPCs present. Only the strongest
// kind of match counts, so "golden key" picks the Golden Key even when
// other keys are about.
func ResolveName(v types.WorldView, name string) (string, error) {
	query := strings.ToLower(strings.TrimSpace(name))

	best, matches := matchNone, []string(nil)
	for _, c := range visibleTo(v) {
		m := strength(c, name, query)
		switch {
		case m == matchNone || m < best:
			continue
		case m > best:
			best, matches = m, matches[:0]
		}
		if !slices.Contains(matches, c.id) {
			matches = append(matches, c.id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

func visibleTo(v types.WorldView) []visible {
	out := make([]visible, 0, len(v.Location.Items)+len(v.Carrying)+len(v.Location.NPCs))
	for _, it := range v.Location.Items {
		out = append(out, visible{it.ID, it.Name})
	}
	for _, it := range v.Carrying {
		out = append(out, visible{it.ID, it.Name})
	}
	for _, n := range v.Location.NPCs {
		out = append(out, visible{n.ID, n.Name})
	}
	return out
}

func strength(c visible, raw, query string) int {
	if c.id == raw {
		return matchID
	}
	display := strings.ToLower(c.name)
	if display == query || strings.ToLower(c.id) == Normalize(query) {
		return matchFull
	}
	if slices.Contains(strings.Fields(display), query) {
		return matchWord
	}
	return matchNone
}

// Normalize turns a typed name into the ID form used by content files,
// e.g. "Rusty Key" → "rusty_key".
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
