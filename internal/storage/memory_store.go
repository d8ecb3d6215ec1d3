package storage

import (
	"context"
	"sync"

	"filevc/shared/utils"
)

// MemoryStore keeps files in a map. Failures can be injected per path, which
// makes it the store of choice for engine tests.
type MemoryStore struct {
	mu       sync.RWMutex
	files    map[string]string
	failures map[string]error
	writes   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:    make(map[string]string),
		failures: make(map[string]error),
	}
}

// FailWrites makes every later Write to path return err; a nil err clears it
func (m *MemoryStore) FailWrites(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, path)
		return
	}
	m.failures[path] = err
}

func (m *MemoryStore) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[path]; err != nil {
		return err
	}
	m.files[path] = content
	m.writes++
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[path]
	if !ok {
		return "", ErrFileNotFound
	}
	return content, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return utils.SortedKeys(m.files), nil
}

// Writes counts successful writes
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
