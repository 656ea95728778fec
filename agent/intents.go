package agent

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/worldcore/engine/parser"
	"github.com/nathoo/worldcore/types"
)

//go:embed intents.yaml
var defaultIntents []byte

// IntentMap is the configuration that turns free text into actions: the
// parser vocabulary, which canonical verbs map to which action kind, and
// the fallback narration per kind.
type IntentMap struct {
	parser.Vocabulary `yaml:",inline"`

	Kinds       map[string]types.ActionKind `yaml:"kinds"`
	DefaultWait int                         `yaml:"default_wait"`
	Fallback    map[string]string           `yaml:"fallback"`

	templates map[string]*template.Template
}

// DefaultIntents returns the built-in intent map.
func DefaultIntents() (*IntentMap, error) {
	return ParseIntents(defaultIntents)
}

// LoadIntents reads an intent map from a YAML file.
func LoadIntents(path string) (*IntentMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseIntents(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseIntents decodes and checks an intent map.
func ParseIntents(raw []byte) (*IntentMap, error) {
	var m IntentMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("intents: %w", err)
	}
	if m.DefaultWait < 1 {
		m.DefaultWait = 1
	}

	var bad []string
	for verb, kind := range m.Kinds {
		switch kind {
		case types.ActionMove, types.ActionInteract, types.ActionSpeak,
			types.ActionUseItem, types.ActionWait, types.ActionCustom:
		default:
			bad = append(bad, fmt.Sprintf("verb %q maps to unknown kind %q", verb, kind))
		}
	}

	m.templates = make(map[string]*template.Template, len(m.Fallback))
	for key, text := range m.Fallback {
		tmpl, err := template.New(key).Option("missingkey=zero").Parse(text)
		if err != nil {
			bad = append(bad, fmt.Sprintf("fallback %q: %v", key, err))
			continue
		}
		m.templates[key] = tmpl
	}
	if _, ok := m.templates["default"]; !ok {
		m.templates["default"] = template.Must(template.New("default").Parse("Something happens."))
	}

	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, fmt.Errorf("intents: %s", strings.Join(bad, "; "))
	}
	return &m, nil
}

// KindFor returns the action kind a canonical verb maps to.
func (m *IntentMap) KindFor(verb string) (types.ActionKind, bool) {
	kind, ok := m.Kinds[verb]
	return kind, ok
}

func (m *IntentMap) template(kind types.ActionKind) *template.Template {
	if t, ok := m.templates[string(kind)]; ok {
		return t
	}
	return m.templates["default"]
}
