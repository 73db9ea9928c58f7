package manifest

import (
	"fmt"
	"strings"
)

// Manifest is the ordered list of extension specs supplied by the host
// configuration. Declaration order is significant: the resolver uses it to
// break ties among independent extensions.
type Manifest struct {
	Extensions []ExtensionSpec `yaml:"extensions" json:"extensions"`
}

// ExtensionSpec declares a single extension: where it comes from, when it
// activates, and what it depends on.
type ExtensionSpec struct {
	Name    string         `yaml:"name" json:"name"`
	Source  string         `yaml:"source" json:"source"`
	Ref     string         `yaml:"ref,omitempty" json:"ref,omitempty"`
	Version string         `yaml:"version,omitempty" json:"version,omitempty"`
	Event   string         `yaml:"event,omitempty" json:"event,omitempty"`
	Depends []string       `yaml:"depends,omitempty" json:"depends,omitempty"`
	Build   string         `yaml:"build,omitempty" json:"build,omitempty"`
	Config  map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// TriggerKind discriminates activation predicates.
type TriggerKind int

const (
	// TriggerEager activates during the initial load pass.
	TriggerEager TriggerKind = iota
	// TriggerCommand activates when a named host command is invoked.
	TriggerCommand
	// TriggerFileType activates when a file of the given type is opened.
	TriggerFileType
	// TriggerKey activates when the given key chord is pressed.
	TriggerKey
)

// String returns a string representation of the trigger kind.
func (k TriggerKind) String() string {
	switch k {
	case TriggerEager:
		return "eager"
	case TriggerCommand:
		return "cmd"
	case TriggerFileType:
		return "ft"
	case TriggerKey:
		return "key"
	default:
		return "unknown"
	}
}

// Trigger is a parsed activation predicate.
type Trigger struct {
	Kind  TriggerKind
	Value string
}

// Eager reports whether the trigger activates at startup.
func (t Trigger) Eager() bool {
	return t.Kind == TriggerEager
}

// Trigger parses the spec's event field into a Trigger. The accepted forms
// are "" or "eager" (load at startup), "cmd:<name>", "ft:<filetype>", and
// "key:<chord>".
func (s *ExtensionSpec) Trigger() (Trigger, error) {
	ev := strings.TrimSpace(s.Event)
	if ev == "" || ev == "eager" {
		return Trigger{Kind: TriggerEager}, nil
	}

	kind, value, ok := strings.Cut(ev, ":")
	if !ok || value == "" {
		return Trigger{}, fmt.Errorf("extension %q: malformed event %q", s.Name, s.Event)
	}

	switch kind {
	case "cmd":
		return Trigger{Kind: TriggerCommand, Value: value}, nil
	case "ft":
		return Trigger{Kind: TriggerFileType, Value: value}, nil
	case "key":
		return Trigger{Kind: TriggerKey, Value: value}, nil
	default:
		return Trigger{}, fmt.Errorf("extension %q: unknown event kind %q", s.Name, kind)
	}
}

// Get returns the spec with the given name, or nil if absent.
func (m *Manifest) Get(name string) *ExtensionSpec {
	for i := range m.Extensions {
		if m.Extensions[i].Name == name {
			return &m.Extensions[i]
		}
	}
	return nil
}

// Names returns extension names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Extensions))
	for i, s := range m.Extensions {
		names[i] = s.Name
	}
	return names
}
