package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"filevc/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu        sync.Mutex
	snapshots map[string]string
	pending   map[string]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		snapshots: make(map[string]string),
		pending:   make(map[string]string),
	}
}

func (s *recordingSink) Snapshot(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.snapshots[path]
	return content, ok
}

func (s *recordingSink) AddPending(path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[path] = content
	return nil
}

func (s *recordingSink) get(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.pending[path]
	return content, ok
}

func startWatcher(t *testing.T, sink Sink) (*storage.FSStore, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "node_modules"), 0755))

	store, err := storage.NewFSStore(root, []string{"node_modules"})
	require.NoError(t, err)

	w, err := New(store, sink, 10*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return store, store.Root()
}

func TestWatcher_ExternalWriteBecomesPending(t *testing.T) {
	sink := newRecordingSink()
	_, root := startWatcher(t, sink)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hand edited"), 0644))

	require.Eventually(t, func() bool {
		content, ok := sink.get("notes.txt")
		return ok && content == "hand edited"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewDirectoriesAreFollowed(t *testing.T) {
	sink := newRecordingSink()
	_, root := startWatcher(t, sink)

	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0755))
	// give the watcher a moment to register the directory
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package pkg"), 0644))

	require.Eventually(t, func() bool {
		_, ok := sink.get("pkg/a.go")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_SkipsSnapshotContentAndIgnoredDirs(t *testing.T) {
	sink := newRecordingSink()
	sink.snapshots["same.txt"] = "unchanged"
	store, root := startWatcher(t, sink)

	require.NoError(t, store.Write(context.Background(), "same.txt", "unchanged"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker.txt"), []byte("m"), 0644))

	require.Eventually(t, func() bool {
		_, ok := sink.get("marker.txt")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	_, ok := sink.get("same.txt")
	assert.False(t, ok)
	_, ok = sink.get("node_modules/dep.js")
	assert.False(t, ok)
}
