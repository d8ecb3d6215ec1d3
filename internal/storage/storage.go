// Package storage provides the durable file stores the engine writes through.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	"filevc/internal/errors"
)

// ErrFileNotFound is returned by Read for paths that were never written
var ErrFileNotFound = errors.NotFound("file not found")

// Writer is the only capability the engine needs on the edit path
type Writer interface {
	Write(ctx context.Context, path, content string) error
}

// Reader is used to seed snapshots from existing content
type Reader interface {
	Read(ctx context.Context, path string) (string, error)
}

// Lister enumerates every stored path
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

type Store interface {
	Writer
	Reader
	Lister
}

// NormalizePath gives every spelling of a path one identity: backslashes
// become slashes and the result is cleaned. Absolute paths stay absolute.
// Empty paths and paths with control characters are rejected, since a line
// break in a path would end up inside a patch header.
func NormalizePath(p string) (string, error) {
	if p == "" {
		return "", errors.ValidationError("path is required", nil)
	}
	if strings.IndexFunc(p, unicode.IsControl) >= 0 {
		return "", invalidPath(p)
	}
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if cleaned == "." || cleaned == "/" {
		return "", invalidPath(p)
	}
	return cleaned, nil
}

// CleanPath normalizes p to a slash-separated relative path and rejects paths
// that escape the store root. Stores backed by a directory use it.
func CleanPath(p string) (string, error) {
	cleaned, err := NormalizePath(p)
	if err != nil {
		return "", err
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", invalidPath(p)
	}
	return cleaned, nil
}

func invalidPath(p string) error {
	return errors.ValidationError(fmt.Sprintf("invalid path %q", p), map[string]string{"path": p})
}
