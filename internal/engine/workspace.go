package engine

import (
	"context"
	"fmt"

	"filevc/internal/diff"
	"filevc/internal/errors"
	"filevc/internal/storage"
	"filevc/shared/types"

	"go.uber.org/zap"
)

// cleanOrRaw normalizes path for lookups. Invalid paths are returned
// unchanged and simply match nothing.
func cleanOrRaw(path string) string {
	if clean, err := storage.NormalizePath(path); err == nil {
		return clean
	}
	return path
}

// AddPending records an edit in the staging area without writing it.
func (e *Engine) AddPending(path, content string) error {
	path, err := storage.NormalizePath(path)
	if err != nil {
		return err
	}
	e.staging.AddChange(path, content)
	e.metrics.Pending(len(e.staging.PendingChanges()))
	return nil
}

func (e *Engine) Stage(path string) bool {
	return e.staging.StageChange(cleanOrRaw(path))
}

func (e *Engine) Unstage(path string) bool {
	return e.staging.UnstageChange(cleanOrRaw(path))
}

func (e *Engine) Discard(path string) {
	e.staging.DiscardChanges(cleanOrRaw(path))
	e.metrics.Pending(len(e.staging.PendingChanges()))
}

func (e *Engine) Pending() []shared.PendingChange  { return e.staging.PendingChanges() }
func (e *Engine) Staged() []shared.PendingChange   { return e.staging.StagedChanges() }
func (e *Engine) Unstaged() []shared.PendingChange { return e.staging.UnstagedChanges() }

func (e *Engine) Versions() []shared.Version { return e.log.Versions() }

func (e *Engine) CurrentVersion() (shared.Version, bool) { return e.log.Current() }

func (e *Engine) Version(id string) (shared.Version, error) { return e.log.Get(id) }

func (e *Engine) IsLocked(path string) bool { return e.locks.IsLocked(cleanOrRaw(path)) }

func (e *Engine) Locked() []string { return e.locks.Locked() }

// Unlock force-releases a path lock. Only operators should need this.
func (e *Engine) Unlock(path string) {
	path = cleanOrRaw(path)
	if e.locks.IsLocked(path) {
		e.logger.Warn("lock released by operator", zap.String("path", path))
	}
	e.locks.Unlock(path)
}

// SetSnapshot seeds the last-known content of path without writing it.
func (e *Engine) SetSnapshot(path, content string) error {
	path, err := storage.NormalizePath(path)
	if err != nil {
		return err
	}

	e.revertMu.RLock()
	defer e.revertMu.RUnlock()
	e.locks.SetSnapshot(path, content)
	return nil
}

func (e *Engine) Snapshot(path string) (string, bool) {
	return e.locks.Snapshot(cleanOrRaw(path))
}

// Preview computes the change an edit would make without taking the lock or
// writing anything.
func (e *Engine) Preview(path, content string) (*shared.Change, diff.Stats, error) {
	path, err := storage.NormalizePath(path)
	if err != nil {
		return nil, diff.Stats{}, err
	}

	previous, _ := e.locks.Snapshot(path)
	result := e.differ.Diff(previous, content)
	if result.Empty() {
		return nil, result.Stats, nil
	}

	patch, err := result.Unified(path)
	if err != nil {
		return nil, diff.Stats{}, errors.Internal("computing diff", err)
	}
	return &shared.Change{Path: path, Diff: patch, NewContent: content}, result.Stats, nil
}

// Load seeds snapshots for paths from the store's current content. The store
// must implement storage.Reader.
func (e *Engine) Load(ctx context.Context, paths ...string) error {
	reader, ok := e.store.(storage.Reader)
	if !ok {
		return errors.Internal("store does not support reads", nil)
	}

	e.revertMu.RLock()
	defer e.revertMu.RUnlock()

	for _, p := range paths {
		path, err := storage.NormalizePath(p)
		if err != nil {
			return err
		}
		if err := e.load(ctx, reader, path); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll seeds a snapshot for every path the store lists and returns how
// many were loaded.
func (e *Engine) LoadAll(ctx context.Context) (int, error) {
	lister, ok := e.store.(storage.Lister)
	if !ok {
		return 0, errors.Internal("store does not support listing", nil)
	}

	paths, err := lister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing store: %w", err)
	}
	if err := e.Load(ctx, paths...); err != nil {
		return 0, err
	}

	e.logger.Info("snapshots loaded", zap.Int("files", len(paths)))
	return len(paths), nil
}

func (e *Engine) load(ctx context.Context, reader storage.Reader, path string) error {
	if !e.locks.Lock(path) {
		return errors.LockConflict(path)
	}
	defer e.locks.Unlock(path)

	content, err := reader.Read(ctx, path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	e.locks.SetSnapshot(path, content)
	return nil
}
