package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrNotInstalled is returned when a named extension has no source tree in
// the store.
var ErrNotInstalled = errors.New("extension not installed")

// Directory names under the store root.
const (
	extDir  = "ext"
	metaDir = "meta"
	tmpDir  = "tmp"
)

// Store is the on-disk area holding installed extension source trees and
// their metadata records. The layout on disk is the single source of truth
// for "is this extension installed"; the lockfile only records intent.
//
// Writes to the same extension name are serialized by a per-name lock.
// Writes to different names are safe concurrently because every visible
// mutation is a rename of a fully staged tree.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open initializes a store rooted at the given directory, creating the
// layout if it does not exist. Leftover staging directories from a previous
// crashed run are discarded.
func Open(root string) (*Store, error) {
	for _, d := range []string{extDir, metaDir, tmpDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", d, err)
		}
	}

	// Staged trees that never got renamed into place are garbage.
	entries, err := os.ReadDir(filepath.Join(root, tmpDir))
	if err == nil {
		for _, e := range entries {
			os.RemoveAll(filepath.Join(root, tmpDir, e.Name()))
		}
	}

	return &Store{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// StageDir creates and returns a fresh staging directory under the store
// root. Staging lives on the same filesystem as ext/, so the final rename
// in Put is atomic.
func (s *Store) StageDir() (string, error) {
	dir := filepath.Join(s.root, tmpDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

// DiscardStage removes a staging directory that will not be promoted.
func (s *Store) DiscardStage(dir string) {
	os.RemoveAll(dir)
}

// Put promotes a fully staged source tree to ext/<name> and records its
// metadata. The tree becomes visible in a single rename; a crash at any
// point leaves either the previous installation or the new one, never a
// partially written tree.
func (s *Store) Put(name, stagedDir string, meta *InstalledExtension) error {
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	dst := filepath.Join(s.root, extDir, name)

	// Move any existing tree aside first so the rename target is free.
	// The displaced tree is deleted after the swap succeeds.
	old := filepath.Join(s.root, tmpDir, uuid.NewString())
	displaced := false
	if _, err := os.Stat(dst); err == nil {
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("displacing previous installation of %s: %w", name, err)
		}
		displaced = true
	}

	if err := os.Rename(stagedDir, dst); err != nil {
		if displaced {
			os.Rename(old, dst) // best-effort restore
		}
		return fmt.Errorf("installing %s: %w", name, err)
	}
	if displaced {
		os.RemoveAll(old)
	}

	meta.Name = name
	meta.Path = dst
	if err := s.writeMeta(meta); err != nil {
		return err
	}
	return nil
}

// Path returns the on-disk path of an installed extension's source tree.
func (s *Store) Path(name string) (string, error) {
	dir := filepath.Join(s.root, extDir, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("extension %q: %w", name, ErrNotInstalled)
	}
	return dir, nil
}

// Installed reports whether the store holds a source tree for name.
func (s *Store) Installed(name string) bool {
	_, err := s.Path(name)
	return err == nil
}

// Remove deletes an extension's source tree and metadata.
func (s *Store) Remove(name string) error {
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Join(s.root, extDir, name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("extension %q: %w", name, ErrNotInstalled)
	}

	// Rename out of ext/ first so readers never observe a half-deleted tree.
	doomed := filepath.Join(s.root, tmpDir, uuid.NewString())
	if err := os.Rename(dir, doomed); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	os.RemoveAll(doomed)
	os.Remove(s.metaPath(name))
	return nil
}

// List returns metadata for every installed extension, sorted by name.
// Extensions with a source tree but unreadable metadata are listed with
// only the name and path populated.
func (s *Store) List() ([]*InstalledExtension, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, extDir))
	if err != nil {
		return nil, fmt.Errorf("reading store: %w", err)
	}

	var out []*InstalledExtension
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Meta(e.Name())
		if err != nil {
			meta = &InstalledExtension{
				Name: e.Name(),
				Path: filepath.Join(s.root, extDir, e.Name()),
			}
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) nameLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

func (s *Store) metaPath(name string) string {
	return filepath.Join(s.root, metaDir, name+".yaml")
}
