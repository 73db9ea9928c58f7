// Package lockfile persists the mapping from extension name to resolved
// ref so installs are reproducible across runs. The file is YAML with
// sorted keys, so it diffs cleanly under version control. It records
// intended versions; the store remains the source of truth for what is
// actually installed.
package lockfile

import (
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"
)

// FileName is the conventional lockfile name next to a manifest.
const FileName = "loft.lock"

// Lockfile maps extension names to resolved refs.
type Lockfile struct {
	path string
	refs map[string]string
}

// Load reads a lockfile, returning an empty lockfile if the file does not
// exist yet.
func Load(path string) (*Lockfile, error) {
	lf := &Lockfile{path: path, refs: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return lf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lockfile %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &lf.refs); err != nil {
		return nil, fmt.Errorf("parsing lockfile %s: %w", path, err)
	}
	return lf, nil
}

// Ref returns the locked ref for name, if any.
func (l *Lockfile) Ref(name string) (string, bool) {
	ref, ok := l.refs[name]
	return ref, ok
}

// Set records a resolved ref for name. The change is not persisted until
// Save is called.
func (l *Lockfile) Set(name, ref string) {
	l.refs[name] = ref
}

// Delete removes a name from the lockfile.
func (l *Lockfile) Delete(name string) {
	delete(l.refs, name)
}

// Names returns locked names in sorted order.
func (l *Lockfile) Names() []string {
	names := make([]string, 0, len(l.refs))
	for name := range l.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of locked entries.
func (l *Lockfile) Len() int {
	return len(l.refs)
}

// Save writes the lockfile with sorted keys via temp-file-then-rename.
func (l *Lockfile) Save() error {
	// Marshal a yaml.Node mapping so key order is stable.
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range l.Names() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: l.refs[name]},
		)
	}

	data, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing lockfile: %w", err)
	}
	return nil
}
