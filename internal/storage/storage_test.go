package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	vcerrors "filevc/internal/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newBadger(t *testing.T, compression CompressionOptions) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(setupTestDB(t), BadgerOptions{CacheSize: 16, Compression: compression})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStores_WriteReadList(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir(), []string{".git"})
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"badger": newBadger(t, DefaultCompressionOptions()),
		"fs":     fsStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Read(ctx, "docs/readme.md")
			assert.ErrorIs(t, err, ErrFileNotFound)

			require.NoError(t, store.Write(ctx, "docs/readme.md", "# hello\n"))
			require.NoError(t, store.Write(ctx, "main.go", "package main\r\n"))
			require.NoError(t, store.Write(ctx, "empty.txt", ""))

			got, err := store.Read(ctx, "docs/readme.md")
			require.NoError(t, err)
			assert.Equal(t, "# hello\n", got)

			got, err = store.Read(ctx, "main.go")
			require.NoError(t, err)
			assert.Equal(t, "package main\r\n", got)

			got, err = store.Read(ctx, "empty.txt")
			require.NoError(t, err)
			assert.Equal(t, "", got)

			require.NoError(t, store.Write(ctx, "main.go", "package other\n"))
			got, err = store.Read(ctx, "main.go")
			require.NoError(t, err)
			assert.Equal(t, "package other\n", got)

			paths, err := store.List(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"docs/readme.md", "main.go", "empty.txt"}, paths)
		})
	}
}

func TestStores_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fsStore, err := NewFSStore(t.TempDir(), nil)
	require.NoError(t, err)

	for _, store := range []Store{NewMemoryStore(), newBadger(t, DefaultCompressionOptions()), fsStore} {
		assert.ErrorIs(t, store.Write(ctx, "a.txt", "x"), context.Canceled)
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a.txt", want: "a.txt"},
		{in: "./dir//b.txt", want: "dir/b.txt"},
		{in: "dir\\c.txt", want: "dir/c.txt"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "../escape.txt", wantErr: true},
		{in: "dir/../../escape.txt", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "a\n+++ b/evil", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, vcerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a.txt", want: "a.txt"},
		{in: "/home/project/./src//a.txt", want: "/home/project/src/a.txt"},
		{in: "/home/project/src/../a.txt", want: "/home/project/a.txt"},
		{in: "dir\\c.txt", want: "dir/c.txt"},
		{in: "../shared/b.txt", want: "../shared/b.txt"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "/", wantErr: true},
		{in: "a\nb.txt", wantErr: true},
		{in: "a\rb.txt", wantErr: true},
		{in: "tab\there", wantErr: true},
		{in: "nul\x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, vcerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStores_AbsolutePaths(t *testing.T) {
	ctx := context.Background()

	badgerStore := newBadger(t, DefaultCompressionOptions())
	require.NoError(t, badgerStore.Write(ctx, "/home/project/a.txt", "abs"))
	got, err := badgerStore.Read(ctx, "/home/project//a.txt")
	require.NoError(t, err)
	assert.Equal(t, "abs", got)

	// a directory-backed store only holds paths under its root
	fsStore, err := NewFSStore(t.TempDir(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, fsStore.Write(ctx, "/home/project/a.txt", "abs"), vcerrors.ErrValidation)
	assert.ErrorIs(t, fsStore.Write(ctx, "../escape.txt", "x"), vcerrors.ErrValidation)
}

func TestBadgerStore_Compression(t *testing.T) {
	store := newBadger(t, CompressionOptions{MinSize: 64, Level: 2})
	ctx := context.Background()

	small := "tiny"
	large := strings.Repeat("compressible line of text\n", 200)

	require.NoError(t, store.Write(ctx, "small.txt", small))
	require.NoError(t, store.Write(ctx, "large.txt", large))

	rec, err := store.readRecord("small.txt")
	require.NoError(t, err)
	assert.False(t, rec.Compressed)

	rec, err = store.readRecord("large.txt")
	require.NoError(t, err)
	assert.True(t, rec.Compressed)
	assert.Less(t, len(rec.Data), len(large))
	assert.Equal(t, int64(len(large)), rec.Size)

	// bypass the cache so the compressed path is exercised
	store.cache.Purge()
	got, err := store.Read(ctx, "large.txt")
	require.NoError(t, err)
	assert.Equal(t, large, got)
}

func TestBadgerStore_DetectsCorruption(t *testing.T) {
	store := newBadger(t, DefaultCompressionOptions())
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "a.txt", "original"))

	rec, err := store.readRecord("a.txt")
	require.NoError(t, err)
	rec.Data = []byte("tampered")
	value, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(store.makeKey("a.txt"), value)
	}))

	store.cache.Purge()
	_, err = store.Read(ctx, "a.txt")
	assert.ErrorContains(t, err, "hash mismatch")
}

func TestFSStore_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root, []string{"node_modules"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "nested/dir/file.txt", "content"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "pkg", "index.js"), []byte("x"), 0644))

	data, err := os.ReadFile(filepath.Join(root, "nested", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "nested", "dir"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, IsTempFile(entries[0].Name()))

	paths, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nested/dir/file.txt"}, paths)

	assert.Error(t, store.Write(ctx, "../outside.txt", "nope"))
}

func TestMemoryStore_FailWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("disk full")

	store.FailWrites("a.txt", boom)
	assert.ErrorIs(t, store.Write(ctx, "a.txt", "x"), boom)
	assert.NoError(t, store.Write(ctx, "b.txt", "y"))
	assert.Equal(t, 1, store.Writes())

	store.FailWrites("a.txt", nil)
	assert.NoError(t, store.Write(ctx, "a.txt", "x"))
	assert.Equal(t, 2, store.Writes())
}
