// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

func (t LineType) prefix() byte {
	switch t {
	case Addition:
		return '+'
	case Deletion:
		return '-'
	default:
		return ' '
	}
}

// Stats summarizes a diff
type Stats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Changes   int `json:"changes"`
}

// DiffResult contains the complete diff information
type DiffResult struct {
	Hunks []Hunk
	Stats Stats
}

// Hunk represents a continuous section of changes. Starts follow unified diff
// convention: 1-based, or the line before the hunk when the side is empty.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// SplitLines splits on '\n' only. Joining the result with "\n" gives back the
// input exactly, so a trailing newline shows up as a final empty line.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent string) *DiffResult {
	result := &DiffResult{}
	if oldContent == newContent {
		return result
	}

	script := e.editScript(SplitLines(oldContent), SplitLines(newContent))
	result.Hunks = e.groupHunks(script)

	for _, line := range script {
		switch line.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions

	return result
}

// Empty reports whether the two sides were identical
func (r *DiffResult) Empty() bool {
	return len(r.Hunks) == 0
}

// Unified renders the diff as a unified patch for name. An empty diff renders
// as the empty string.
func (r *DiffResult) Unified(name string) (string, error) {
	if r.Empty() {
		return "", nil
	}

	fd := &godiff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
	}
	for _, hunk := range r.Hunks {
		var body bytes.Buffer
		for _, line := range hunk.Lines {
			body.WriteByte(line.Type.prefix())
			body.WriteString(line.Content)
			body.WriteByte('\n')
		}
		fd.Hunks = append(fd.Hunks, &godiff.Hunk{
			OrigStartLine: int32(hunk.OldStart),
			OrigLines:     int32(hunk.OldLines),
			NewStartLine:  int32(hunk.NewStart),
			NewLines:      int32(hunk.NewLines),
			Body:          body.Bytes(),
		})
	}

	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("printing patch for %s: %w", name, err)
	}
	return string(out), nil
}
