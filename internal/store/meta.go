package store

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// BuildStatus tracks the outcome of an extension's post-install build step.
type BuildStatus string

// Build statuses.
const (
	BuildPending BuildStatus = "pending"
	BuildOK      BuildStatus = "ok"
	BuildFailed  BuildStatus = "failed"
	BuildNone    BuildStatus = "none"
)

// InstalledExtension is the store's record of one installed extension.
// It is owned exclusively by the store and mutated only through store
// operations.
type InstalledExtension struct {
	Name        string      `yaml:"name"`
	Ref         string      `yaml:"ref"`
	Source      string      `yaml:"source"`
	Path        string      `yaml:"path"`
	InstalledAt time.Time   `yaml:"installed_at"`
	BuildStatus BuildStatus `yaml:"build_status"`
}

// Meta reads the metadata record for an installed extension.
func (s *Store) Meta(name string) (*InstalledExtension, error) {
	data, err := os.ReadFile(s.metaPath(name))
	if err != nil {
		return nil, fmt.Errorf("extension %q: %w", name, ErrNotInstalled)
	}

	var meta InstalledExtension
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", name, err)
	}
	return &meta, nil
}

// SetBuildStatus updates the build status in an extension's metadata.
func (s *Store) SetBuildStatus(name string, status BuildStatus) error {
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.Meta(name)
	if err != nil {
		return err
	}
	meta.BuildStatus = status
	return s.writeMeta(meta)
}

// writeMeta persists a metadata record with the same temp-then-rename
// discipline as source trees.
func (s *Store) writeMeta(meta *InstalledExtension) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", meta.Name, err)
	}

	path := s.metaPath(meta.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", meta.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing metadata for %s: %w", meta.Name, err)
	}
	return nil
}
