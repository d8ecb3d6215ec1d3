// Package watch turns edits made directly in the workspace directory into
// pending changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filevc/internal/storage"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Sink receives the content of files changed outside the engine
type Sink interface {
	Snapshot(path string) (string, bool)
	AddPending(path, content string) error
}

// Watcher follows every directory under an FSStore root. Changed files are
// read after a quiet period and handed to the sink unless their content
// equals the engine's snapshot, which filters out the engine's own writes.
type Watcher struct {
	store    *storage.FSStore
	sink     Sink
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(store *storage.FSStore, sink Sink, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		store:    store,
		sink:     sink,
		watcher:  watcher,
		debounce: debounce,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}

	if err := w.addTree(store.Root()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("initializing watcher: %w", err)
	}
	return w, nil
}

// addTree registers dir and every non-ignored directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.store.Root() && w.store.Ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if w.ignored(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path, err := w.store.Rel(event.Name)
	if err != nil {
		w.logger.Debug("skipping path outside workspace", zap.String("name", event.Name))
		return
	}
	w.schedule(ctx, path)
}

// ignored reports paths inside ignored directories and store temp files
func (w *Watcher) ignored(name string) bool {
	rel, err := filepath.Rel(w.store.Root(), name)
	if err != nil {
		return true
	}
	if storage.IsTempFile(filepath.Base(rel)) {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.store.Ignored(part) {
			return true
		}
	}
	return false
}

// schedule (re)starts the quiet-period timer for path
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		w.capture(ctx, path)
	})
}

func (w *Watcher) capture(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	content, err := w.store.Read(ctx, path)
	if err != nil {
		w.logger.Debug("changed file not readable", zap.String("path", path), zap.Error(err))
		return
	}

	if snapshot, ok := w.sink.Snapshot(path); ok && snapshot == content {
		return
	}
	if err := w.sink.AddPending(path, content); err != nil {
		w.logger.Warn("recording pending change", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("external change detected", zap.String("path", path))
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing watcher", zap.Error(err))
	}
}
