package manifest

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Manifest errors. All of them are fatal: a manifest that fails to load
// aborts the run before any filesystem or network I/O happens.
var (
	// ErrDuplicateName is returned when two specs declare the same name
	// with the same source.
	ErrDuplicateName = errors.New("duplicate extension name")

	// ErrConflictingSource is returned when two specs declare the same name
	// with different sources. There is no precedence rule; the manifest is
	// rejected outright.
	ErrConflictingSource = errors.New("conflicting sources for extension name")

	// ErrMissingName is returned when a spec has no name.
	ErrMissingName = errors.New("extension spec missing name")

	// ErrMissingSource is returned when a spec has no source locator.
	ErrMissingSource = errors.New("extension spec missing source")
)

// Load reads and parses a manifest file, then verifies its structural
// invariants. Schema validation is separate; see Validate.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses manifest YAML and verifies its structural invariants:
// every spec is named and sourced, names are unique, and no two specs
// claim the same name with different sources.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	sources := make(map[string]string, len(m.Extensions))
	for i := range m.Extensions {
		spec := &m.Extensions[i]

		if spec.Name == "" {
			return nil, fmt.Errorf("spec %d: %w", i, ErrMissingName)
		}
		if spec.Source == "" {
			return nil, fmt.Errorf("extension %q: %w", spec.Name, ErrMissingSource)
		}
		if _, err := spec.Trigger(); err != nil {
			return nil, err
		}

		if prev, seen := sources[spec.Name]; seen {
			if prev != spec.Source {
				return nil, fmt.Errorf("extension %q (%s vs %s): %w",
					spec.Name, prev, spec.Source, ErrConflictingSource)
			}
			return nil, fmt.Errorf("extension %q: %w", spec.Name, ErrDuplicateName)
		}
		sources[spec.Name] = spec.Source
	}

	return &m, nil
}
