// Package staging holds uncommitted edits until they are committed as a version.
package staging

import (
	"slices"
	"sync"
	"time"

	"filevc/shared/types"
)

// Area keeps at most one pending change per path. Listing order is the order
// in which paths were first added; overwriting an entry keeps its position.
type Area struct {
	mu      sync.RWMutex
	pending map[string]*shared.PendingChange
	order   []string
	now     func() time.Time
}

func NewArea() *Area {
	return &Area{
		pending: make(map[string]*shared.PendingChange),
		now:     time.Now,
	}
}

// AddChange records content as the pending edit for path. The entry starts
// unstaged, so editing a staged path unstages it.
func (a *Area) AddChange(path, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.pending[path]; !ok {
		a.order = append(a.order, path)
	}
	a.pending[path] = &shared.PendingChange{
		Path:      path,
		Content:   content,
		Timestamp: a.now(),
		Staged:    false,
	}
}

// StageChange marks the pending edit for path as staged
func (a *Area) StageChange(path string) bool {
	return a.setStaged(path, true)
}

func (a *Area) UnstageChange(path string) bool {
	return a.setStaged(path, false)
}

func (a *Area) setStaged(path string, staged bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	change, ok := a.pending[path]
	if !ok {
		return false
	}
	change.Staged = staged
	return true
}

func (a *Area) PendingChanges() []shared.PendingChange {
	return a.list(func(shared.PendingChange) bool { return true })
}

func (a *Area) StagedChanges() []shared.PendingChange {
	return a.list(func(c shared.PendingChange) bool { return c.Staged })
}

func (a *Area) UnstagedChanges() []shared.PendingChange {
	return a.list(func(c shared.PendingChange) bool { return !c.Staged })
}

func (a *Area) list(keep func(shared.PendingChange) bool) []shared.PendingChange {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]shared.PendingChange, 0, len(a.order))
	for _, path := range a.order {
		change := *a.pending[path]
		if keep(change) {
			out = append(out, change)
		}
	}
	return out
}

// CommitChanges removes every staged entry and returns them as changes with
// no diff; the caller computes diffs against its snapshots and records the
// version under message.
func (a *Area) CommitChanges(message string) []shared.Change {
	a.mu.Lock()
	defer a.mu.Unlock()

	changes := make([]shared.Change, 0)
	remaining := a.order[:0]
	for _, path := range a.order {
		pending := a.pending[path]
		if !pending.Staged {
			remaining = append(remaining, path)
			continue
		}
		changes = append(changes, shared.Change{
			Path:       path,
			NewContent: pending.Content,
		})
		delete(a.pending, path)
	}
	clear(a.order[len(remaining):])
	a.order = remaining

	return changes
}

// DiscardChanges drops the pending edit for path, staged or not
func (a *Area) DiscardChanges(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.pending[path]; !ok {
		return
	}
	delete(a.pending, path)
	a.order = slices.DeleteFunc(a.order, func(p string) bool { return p == path })
}

// Restore puts back, staged, the entries a failed commit removed. A path that
// received a newer edit in the meantime keeps the newer edit.
func (a *Area) Restore(changes []shared.Change) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, change := range changes {
		if _, ok := a.pending[change.Path]; ok {
			continue
		}
		a.pending[change.Path] = &shared.PendingChange{
			Path:      change.Path,
			Content:   change.NewContent,
			Timestamp: a.now(),
			Staged:    true,
		}
		a.order = append(a.order, change.Path)
	}
}
