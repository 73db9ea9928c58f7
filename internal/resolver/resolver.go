package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/loftpm/loft/internal/manifest"
)

// Resolution errors. Both are fatal and abort before any I/O.
var (
	// ErrUnknownDependency is returned when a spec depends on a name with
	// no spec in the manifest.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCyclicDependency is returned when the dependency graph contains
	// a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")
)

// Order computes the installation order for a manifest: every dependency
// precedes its dependents, and ties among independent extensions break by
// manifest declaration order. The input manifest is not modified.
func Order(m *manifest.Manifest) ([]manifest.ExtensionSpec, error) {
	index := make(map[string]int, len(m.Extensions))
	for i, spec := range m.Extensions {
		index[spec.Name] = i
	}

	// In-degree per extension, plus the reverse adjacency (dependents).
	indegree := make([]int, len(m.Extensions))
	dependents := make([][]int, len(m.Extensions))
	for i, spec := range m.Extensions {
		for _, dep := range spec.Depends {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("extension %q depends on %q: %w",
					spec.Name, dep, ErrUnknownDependency)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Kahn's algorithm with a declaration-ordered ready set so the output
	// is deterministic for a given manifest.
	ready := make([]int, 0, len(m.Extensions))
	for i := range m.Extensions {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]manifest.ExtensionSpec, 0, len(m.Extensions))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]

		order = append(order, m.Extensions[i])
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(m.Extensions) {
		return nil, fmt.Errorf("involving %s: %w", strings.Join(cycleMembers(m, indegree), ", "), ErrCyclicDependency)
	}

	return order, nil
}

// Dependents returns, for each extension name, the names that directly
// depend on it.
func Dependents(m *manifest.Manifest) map[string][]string {
	out := make(map[string][]string, len(m.Extensions))
	for _, spec := range m.Extensions {
		for _, dep := range spec.Depends {
			out[dep] = append(out[dep], spec.Name)
		}
	}
	return out
}

// cycleMembers names every extension still stuck with a nonzero in-degree,
// in declaration order. These are the nodes on or downstream of a cycle.
func cycleMembers(m *manifest.Manifest, indegree []int) []string {
	var names []string
	for i, spec := range m.Extensions {
		if indegree[i] > 0 {
			names = append(names, spec.Name)
		}
	}
	return names
}
