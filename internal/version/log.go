// Package version keeps the ordered history of committed change sets.
package version

import (
	"fmt"
	"sync"
	"time"

	"filevc/internal/diff"
	"filevc/internal/errors"
	"filevc/shared/types"

	"github.com/google/uuid"
)

// ErrEmptyVersion is returned by AddVersion when given no changes
var ErrEmptyVersion = errors.ValidationError("a version needs at least one change", nil)

// Log is an append-only sequence of versions; reverting truncates it to a prefix.
type Log struct {
	mu       sync.RWMutex
	versions []shared.Version
	engine   *diff.Engine
	now      func() time.Time
}

func NewLog(engine *diff.Engine) *Log {
	if engine == nil {
		engine = diff.NewEngine(3)
	}
	return &Log{
		engine: engine,
		now:    time.Now,
	}
}

// AddVersion appends a version holding changes and returns its id
func (l *Log) AddVersion(changes []shared.Change, description string) (string, error) {
	if len(changes) == 0 {
		return "", ErrEmptyVersion
	}

	v := shared.Version{
		ID:          uuid.New().String(),
		Timestamp:   l.now(),
		Changes:     append([]shared.Change(nil), changes...),
		Description: description,
	}

	l.mu.Lock()
	l.versions = append(l.versions, v)
	l.mu.Unlock()

	return v.ID, nil
}

// Versions returns the full history, oldest first
func (l *Log) Versions() []shared.Version {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]shared.Version, len(l.versions))
	for i, v := range l.versions {
		out[i] = v.Clone()
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.versions)
}

// Current returns the most recent version
func (l *Log) Current() (shared.Version, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.versions) == 0 {
		return shared.Version{}, false
	}
	return l.versions[len(l.versions)-1].Clone(), true
}

func (l *Log) Get(id string) (shared.Version, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := l.indexOf(id)
	if i < 0 {
		return shared.Version{}, errors.VersionNotFound(id)
	}
	return l.versions[i].Clone(), nil
}

// PlanRevert computes the changes that move current content back to what it
// was at version id, without touching the log. Versions after the target are
// walked newest first; each stored change is reverse-applied to its recorded
// content. One change is returned per stored change, in walk order.
func (l *Log) PlanRevert(id string) ([]shared.Change, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, changes, err := l.plan(id)
	return changes, err
}

// Truncate drops every version after id
func (l *Log) Truncate(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return errors.VersionNotFound(id)
	}
	l.truncate(i)
	return nil
}

// RevertToVersion plans the revert and, only when every reversal succeeded,
// truncates the log to end at id.
func (l *Log) RevertToVersion(id string) ([]shared.Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, changes, err := l.plan(id)
	if err != nil {
		return nil, err
	}
	l.truncate(i)
	return changes, nil
}

func (l *Log) plan(id string) (int, []shared.Change, error) {
	target := l.indexOf(id)
	if target < 0 {
		return -1, nil, errors.VersionNotFound(id)
	}

	changes := make([]shared.Change, 0)
	for i := len(l.versions) - 1; i > target; i-- {
		for _, change := range l.versions[i].Changes {
			previous, err := diff.Reverse(change.Diff, change.NewContent)
			if err != nil {
				return -1, nil, errors.PatchApplyFailure(change.Path, err)
			}

			patch, err := l.engine.Diff(change.NewContent, previous).Unified(change.Path)
			if err != nil {
				return -1, nil, errors.Internal(fmt.Sprintf("diffing revert of %s", change.Path), err)
			}

			changes = append(changes, shared.Change{
				Path:       change.Path,
				Diff:       patch,
				NewContent: previous,
			})
		}
	}

	return target, changes, nil
}

func (l *Log) truncate(i int) {
	clear(l.versions[i+1:])
	l.versions = l.versions[:i+1]
}

func (l *Log) indexOf(id string) int {
	for i, v := range l.versions {
		if v.ID == id {
			return i
		}
	}
	return -1
}
