// Package snapshot tracks per-path locks and the last content known to be
// durably stored for each path.
package snapshot

import (
	"fmt"
	"sync"

	"filevc/internal/diff"
	"filevc/shared/types"
	"filevc/shared/utils"
)

// Store owns the lock table and the snapshot map. Locks have no owner and no
// queue: Lock either takes a free path or fails immediately.
type Store struct {
	mu        sync.Mutex
	locked    map[string]bool
	snapshots map[string]string
	engine    *diff.Engine
}

func NewStore(engine *diff.Engine) *Store {
	if engine == nil {
		engine = diff.NewEngine(3)
	}
	return &Store{
		locked:    make(map[string]bool),
		snapshots: make(map[string]string),
		engine:    engine,
	}
}

// Lock marks path as held and reports whether it was free. It never blocks.
func (s *Store) Lock(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked[path] {
		return false
	}
	s.locked[path] = true
	return true
}

// Unlock frees path whatever its state
func (s *Store) Unlock(path string) {
	s.mu.Lock()
	delete(s.locked, path)
	s.mu.Unlock()
}

func (s *Store) IsLocked(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked[path]
}

// Locked lists the held paths in sorted order
func (s *Store) Locked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return utils.SortedKeys(s.locked)
}

// SetSnapshot overwrites the stored content for path. Callers that need the
// update to line up with a write must hold the path lock themselves.
func (s *Store) SetSnapshot(path, content string) {
	s.mu.Lock()
	s.snapshots[path] = content
	s.mu.Unlock()
}

func (s *Store) Snapshot(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.snapshots[path]
	return content, ok
}

// Diff computes the change from the current snapshot of path (empty when
// there is none) to newContent. Identical content yields a nil change.
func (s *Store) Diff(path, newContent string) (*shared.Change, error) {
	current, _ := s.Snapshot(path)
	if current == newContent {
		return nil, nil
	}

	patch, err := s.engine.Diff(current, newContent).Unified(path)
	if err != nil {
		return nil, fmt.Errorf("computing diff for %s: %w", path, err)
	}

	return &shared.Change{
		Path:       path,
		Diff:       patch,
		NewContent: newContent,
	}, nil
}
