package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tempPrefix = ".filevc-"

// FSStore writes files under a workspace root directory
type FSStore struct {
	root       string
	ignoreDirs map[string]bool
}

func NewFSStore(root string, ignoreDirs []string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	ignore := make(map[string]bool, len(ignoreDirs))
	for _, dir := range ignoreDirs {
		ignore[dir] = true
	}

	return &FSStore{root: abs, ignoreDirs: ignore}, nil
}

// Root is the absolute workspace directory
func (s *FSStore) Root() string {
	return s.root
}

// Ignored reports whether a directory name is skipped by List
func (s *FSStore) Ignored(name string) bool {
	return s.ignoreDirs[name]
}

// abs maps a store path under the root. Absolute and escaping paths are
// rejected here since only this store resolves paths against a directory.
func (s *FSStore) abs(path string) (string, string, error) {
	cleaned, err := CleanPath(path)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Write replaces the file atomically through a temp file and rename
func (s *FSStore) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, target, err := s.abs(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", rel, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", rel, err)
	}
	return nil
}

func (s *FSStore) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, target, err := s.abs(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("reading %s: %w", rel, err)
	}

	return string(data), nil
}

// Rel converts an absolute filesystem path under the root into a store path
func (s *FSStore) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", fmt.Errorf("getting relative path: %w", err)
	}
	return CleanPath(filepath.ToSlash(rel))
}

// List walks the root, skipping ignored directories and temp files
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.root && s.ignoreDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if IsTempFile(d.Name()) {
			return nil
		}

		rel, err := s.Rel(p)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	return paths, nil
}

// IsTempFile reports whether name is one of the store's in-flight temp files
func IsTempFile(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
