// Package engine composes the lock and snapshot store, the version log and the
// staging area into the edit, commit and revert operations. It is the only
// component that writes to the durable store.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"filevc/internal/diff"
	"filevc/internal/errors"
	"filevc/internal/metrics"
	"filevc/internal/snapshot"
	"filevc/internal/staging"
	"filevc/internal/storage"
	"filevc/internal/version"
	"filevc/shared/types"

	"go.uber.org/zap"
)

// Engine holds the state of one workspace. Create one per project; nothing
// is shared between instances.
type Engine struct {
	store   storage.Writer
	differ  *diff.Engine
	locks   *snapshot.Store
	log     *version.Log
	staging *staging.Area
	logger  *zap.Logger
	metrics *metrics.Metrics

	// revertMu is held shared by edits and commits and exclusively by a
	// revert, so no version is appended while the log is being rewound.
	revertMu sync.RWMutex
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithDiffEngine(d *diff.Engine) Option {
	return func(e *Engine) {
		if d != nil {
			e.differ = d
		}
	}
}

func New(store storage.Writer, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		differ: diff.NewEngine(3),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.locks = snapshot.NewStore(e.differ)
	e.log = version.NewLog(e.differ)
	e.staging = staging.NewArea()
	return e
}

// ApplyFileEdit writes newContent to path and records it as a new version.
// It returns nil without writing when the content matches the snapshot.
func (e *Engine) ApplyFileEdit(ctx context.Context, path, newContent, description string) (*shared.Change, error) {
	path, err := storage.NormalizePath(path)
	if err != nil {
		return nil, err
	}

	e.revertMu.RLock()
	defer e.revertMu.RUnlock()

	return e.applyEdit(ctx, path, newContent, description, true)
}

// applyEdit runs one edit under the path lock. With record unset the
// snapshot still moves but no version is appended.
func (e *Engine) applyEdit(ctx context.Context, path, newContent, description string, record bool) (*shared.Change, error) {
	start := time.Now()

	if !e.locks.Lock(path) {
		e.metrics.Edit(metrics.OutcomeLockConflict, 0)
		e.logger.Warn("lock conflict", zap.String("path", path))
		return nil, errors.LockConflict(path)
	}
	defer e.locks.Unlock(path)

	change, err := e.locks.Diff(path, newContent)
	if err != nil {
		e.metrics.Edit(metrics.OutcomeError, 0)
		return nil, errors.Internal("computing diff", err)
	}
	if change == nil {
		e.metrics.Edit(metrics.OutcomeNoop, 0)
		e.logger.Debug("edit is a no-op", zap.String("path", path))
		return nil, nil
	}

	if err := e.store.Write(ctx, path, newContent); err != nil {
		e.metrics.Edit(metrics.OutcomeWriteFailure, 0)
		e.logger.Warn("write failed", zap.String("path", path), zap.Error(err))
		return nil, writeError(path, err)
	}

	e.locks.SetSnapshot(path, newContent)
	if record {
		id, err := e.log.AddVersion([]shared.Change{*change}, description)
		if err != nil {
			return nil, fmt.Errorf("recording version: %w", err)
		}
		e.metrics.VersionAdded()
		e.logger.Info("version added",
			zap.String("version_id", id),
			zap.String("path", path),
			zap.String("description", description),
		)
	}

	e.metrics.Edit(metrics.OutcomeApplied, time.Since(start).Seconds())
	return change, nil
}

// writeError keeps a store's refusal of the path itself as a validation
// error. Anything else is a write failure.
func writeError(path string, err error) error {
	if stderrors.Is(err, errors.ErrValidation) {
		return err
	}
	return errors.WriteFailure(path, err)
}

// restorePoint is the snapshot a path had before a write
type restorePoint struct {
	path    string
	content string
}

// RevertTo restores every file to its content as of versionID and drops the
// later versions. All reversals are computed and validated before anything
// is written; the log is truncated only after every write succeeded. If a
// write fails, the files already rewritten are put back and the log is kept.
func (e *Engine) RevertTo(ctx context.Context, versionID string) ([]shared.Change, error) {
	e.revertMu.Lock()
	defer e.revertMu.Unlock()

	changes, err := e.revertTo(ctx, versionID)
	e.metrics.Revert(err)
	return changes, err
}

func (e *Engine) revertTo(ctx context.Context, versionID string) ([]shared.Change, error) {
	changes, err := e.log.PlanRevert(versionID)
	if err != nil {
		return nil, err
	}

	description := "Reverted to version " + versionID
	var written []restorePoint
	// the replay diffs against the live snapshot, which may have moved since
	// the version was recorded; report what was actually written
	result := make([]shared.Change, 0, len(changes))
	for _, change := range changes {
		previous, _ := e.locks.Snapshot(change.Path)

		applied, err := e.applyEdit(ctx, change.Path, change.NewContent, description, false)
		if err != nil {
			e.undoReplay(ctx, written)
			return nil, fmt.Errorf("reverting to version %s: %w", versionID, err)
		}
		if applied == nil {
			result = append(result, change)
			continue
		}
		written = append(written, restorePoint{path: change.Path, content: previous})
		result = append(result, *applied)
	}

	if err := e.log.Truncate(versionID); err != nil {
		return nil, err
	}

	e.logger.Info("reverted",
		zap.String("version_id", versionID),
		zap.Int("changes", len(result)),
	)
	return result, nil
}

// undoReplay writes back the pre-revert content of every path a failed
// revert already rewrote, newest first.
func (e *Engine) undoReplay(ctx context.Context, written []restorePoint) {
	ctx = context.WithoutCancel(ctx)
	for i := len(written) - 1; i >= 0; i-- {
		point := written[i]
		if _, err := e.applyEdit(ctx, point.path, point.content, "", false); err != nil {
			e.logger.Error("restoring file after failed revert",
				zap.String("path", point.path),
				zap.Error(err),
			)
		}
	}
}

// Commit writes every staged change and records them as one version with
// message as its description. Nothing is written when any staged path is
// locked; a failed write puts back the files already written and returns the
// entries to the staging area.
func (e *Engine) Commit(ctx context.Context, message string) ([]shared.Change, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.ValidationError("commit message is required", nil)
	}

	e.revertMu.RLock()
	defer e.revertMu.RUnlock()

	changes, err := e.commit(ctx, message)
	e.metrics.Commit(err)
	e.metrics.Pending(len(e.staging.PendingChanges()))
	return changes, err
}

func (e *Engine) commit(ctx context.Context, message string) ([]shared.Change, error) {
	staged := e.staging.CommitChanges(message)
	if len(staged) == 0 {
		return []shared.Change{}, nil
	}

	paths := make([]string, 0, len(staged))
	for _, c := range staged {
		paths = append(paths, c.Path)
	}
	slices.Sort(paths)

	var held []string
	defer func() {
		for _, p := range held {
			e.locks.Unlock(p)
		}
	}()
	for _, p := range paths {
		if !e.locks.Lock(p) {
			e.staging.Restore(staged)
			e.logger.Warn("commit blocked by lock", zap.String("path", p))
			return nil, errors.LockConflict(p)
		}
		held = append(held, p)
	}

	changes := make([]shared.Change, 0, len(staged))
	var written []restorePoint
	for _, c := range staged {
		change, err := e.locks.Diff(c.Path, c.NewContent)
		if err != nil {
			e.undoWrites(ctx, written)
			e.staging.Restore(staged)
			return nil, errors.Internal("computing diff", err)
		}
		if change == nil {
			continue
		}

		previous, _ := e.locks.Snapshot(c.Path)
		if err := e.store.Write(ctx, c.Path, c.NewContent); err != nil {
			e.logger.Warn("commit write failed", zap.String("path", c.Path), zap.Error(err))
			e.undoWrites(ctx, written)
			e.staging.Restore(staged)
			return nil, writeError(c.Path, err)
		}
		written = append(written, restorePoint{path: c.Path, content: previous})
		changes = append(changes, *change)
	}

	for _, change := range changes {
		e.locks.SetSnapshot(change.Path, change.NewContent)
	}
	if len(changes) == 0 {
		return changes, nil
	}

	id, err := e.log.AddVersion(changes, message)
	if err != nil {
		return nil, fmt.Errorf("recording version: %w", err)
	}
	e.metrics.VersionAdded()
	e.logger.Info("committed",
		zap.String("version_id", id),
		zap.Int("changes", len(changes)),
		zap.String("message", message),
	)
	return changes, nil
}

// undoWrites restores store content for paths whose locks the caller holds
// and whose snapshots were not yet moved.
func (e *Engine) undoWrites(ctx context.Context, written []restorePoint) {
	ctx = context.WithoutCancel(ctx)
	for i := len(written) - 1; i >= 0; i-- {
		point := written[i]
		if err := e.store.Write(ctx, point.path, point.content); err != nil {
			e.logger.Error("restoring file after failed commit",
				zap.String("path", point.path),
				zap.Error(err),
			)
		}
	}
}
