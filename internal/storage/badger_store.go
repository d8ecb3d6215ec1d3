// internal/storage/badger_store.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"filevc/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

const filePrefix = "file"

// fileRecord is the value stored per path
type fileRecord struct {
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	UpdatedAt  time.Time `json:"updated_at"`
	Data       []byte    `json:"data"`
}

// BadgerOptions configures a BadgerStore
type BadgerOptions struct {
	CacheSize   int
	Compression CompressionOptions
}

// BadgerStore keeps file content in badger, zstd-compressed above a size
// threshold, with an LRU of decoded content in front of it.
type BadgerStore struct {
	db         *badger.DB
	prefix     string
	cache      *lru.Cache[string, string]
	compressor *compressor
}

// OpenBadger opens a database at dir, or an in-memory one when inMemory is set
func OpenBadger(dir string, inMemory bool) (*badger.DB, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func NewBadgerStore(db *badger.DB, opts BadgerOptions) (*BadgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}

	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	comp, err := newCompressor(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	return &BadgerStore{
		db:         db,
		prefix:     filePrefix,
		cache:      cache,
		compressor: comp,
	}, nil
}

func (s *BadgerStore) makeKey(path string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, path))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), s.prefix+":")
}

func (s *BadgerStore) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := NormalizePath(path)
	if err != nil {
		return err
	}

	raw := []byte(content)
	data, compressed := s.compressor.compress(path, raw)
	record := fileRecord{
		Path:       path,
		Hash:       utils.HashContent(raw),
		Size:       int64(len(raw)),
		Compressed: compressed,
		UpdatedAt:  time.Now(),
		Data:       data,
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.makeKey(path), value)
	}); err != nil {
		return fmt.Errorf("storing %s: %w", path, err)
	}

	s.cache.Add(path, content)
	return nil
}

func (s *BadgerStore) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := NormalizePath(path)
	if err != nil {
		return "", err
	}

	if content, ok := s.cache.Get(path); ok {
		return content, nil
	}

	record, err := s.readRecord(path)
	if err != nil {
		return "", err
	}

	raw := record.Data
	if record.Compressed {
		if raw, err = s.compressor.decompress(raw); err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if utils.HashContent(raw) != record.Hash {
		return "", fmt.Errorf("reading %s: content hash mismatch", path)
	}

	content := string(raw)
	s.cache.Add(path, content)
	return content, nil
}

func (s *BadgerStore) readRecord(path string) (fileRecord, error) {
	var record fileRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return record, ErrFileNotFound
	}
	if err != nil {
		return record, fmt.Errorf("reading %s: %w", path, err)
	}
	return record, nil
}

// List returns every stored path in key order
func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	var paths []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			paths = append(paths, s.stripPrefix(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return paths, nil
}

// Close releases the compressor. The database belongs to the caller.
func (s *BadgerStore) Close() error {
	s.compressor.close()
	return nil
}
