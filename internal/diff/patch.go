package diff

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedPatch is returned when patch text cannot be parsed
	ErrMalformedPatch = errors.New("malformed patch")
	// ErrPatchMismatch is returned when a patch does not fit the content it is applied to
	ErrPatchMismatch = errors.New("patch does not match content")
)

// Parse reads the hunks of a single-file unified patch. Hunk bodies are read
// by the line counts in their headers, so a removed line that looks like a
// file header is still taken as body.
func Parse(patch string) ([]Hunk, error) {
	if patch == "" {
		return nil, nil
	}

	lines := strings.Split(patch, "\n")
	if n := len(lines); lines[n-1] == "" {
		lines = lines[:n-1]
	}

	i := 0
	for i < len(lines) && !strings.HasPrefix(lines[i], "@@ ") {
		if !strings.HasPrefix(lines[i], "--- ") && !strings.HasPrefix(lines[i], "+++ ") {
			return nil, fmt.Errorf("%w: unexpected header line %q", ErrMalformedPatch, lines[i])
		}
		i++
	}

	var hunks []Hunk
	for i < len(lines) {
		hunk, err := parseHunkHeader(lines[i])
		if err != nil {
			return nil, err
		}
		i++

		oldSeen, newSeen := 0, 0
		for oldSeen < hunk.OldLines || newSeen < hunk.NewLines {
			if i >= len(lines) {
				return nil, fmt.Errorf("%w: hunk at old line %d is truncated", ErrMalformedPatch, hunk.OldStart)
			}
			raw := lines[i]
			i++
			if raw == "" {
				return nil, fmt.Errorf("%w: empty body line", ErrMalformedPatch)
			}

			line := Line{Content: raw[1:]}
			switch raw[0] {
			case ' ':
				line.Type = Context
				oldSeen++
				newSeen++
			case '-':
				line.Type = Deletion
				oldSeen++
			case '+':
				line.Type = Addition
				newSeen++
			default:
				return nil, fmt.Errorf("%w: bad body line %q", ErrMalformedPatch, raw)
			}
			if oldSeen > hunk.OldLines || newSeen > hunk.NewLines {
				return nil, fmt.Errorf("%w: hunk body exceeds its header counts", ErrMalformedPatch)
			}
			hunk.Lines = append(hunk.Lines, line)
		}
		hunks = append(hunks, hunk)
	}

	return hunks, nil
}

func parseHunkHeader(line string) (Hunk, error) {
	bad := fmt.Errorf("%w: bad hunk header %q", ErrMalformedPatch, line)

	rest, ok := strings.CutPrefix(line, "@@ -")
	if !ok {
		return Hunk{}, bad
	}
	ranges, _, ok := strings.Cut(rest, " @@")
	if !ok {
		return Hunk{}, bad
	}
	oldRange, newRange, ok := strings.Cut(ranges, " +")
	if !ok {
		return Hunk{}, bad
	}

	var h Hunk
	var err error
	if h.OldStart, h.OldLines, err = parseRange(oldRange); err != nil {
		return Hunk{}, bad
	}
	if h.NewStart, h.NewLines, err = parseRange(newRange); err != nil {
		return Hunk{}, bad
	}
	return h, nil
}

// parseRange reads "start,count"; a missing count means one line.
func parseRange(r string) (int, int, error) {
	startText, countText, hasCount := strings.Cut(r, ",")
	start, err := strconv.Atoi(startText)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("bad range start %q", r)
	}
	if !hasCount {
		return start, 1, nil
	}
	count, err := strconv.Atoi(countText)
	if err != nil || count < 0 {
		return 0, 0, fmt.Errorf("bad range count %q", r)
	}
	return start, count, nil
}

// Apply forward-applies patch to content
func Apply(patch, content string) (string, error) {
	return apply(patch, content, false)
}

// Reverse applies patch backwards, turning its new side back into its old side
func Reverse(patch, content string) (string, error) {
	return apply(patch, content, true)
}

func apply(patch, content string, reverse bool) (string, error) {
	hunks, err := Parse(patch)
	if err != nil {
		return "", err
	}

	src := SplitLines(content)
	out := make([]string, 0, len(src))
	cursor := 0

	for _, hunk := range hunks {
		start, count := hunk.OldStart, hunk.OldLines
		if reverse {
			start, count = hunk.NewStart, hunk.NewLines
		}
		at := start - 1
		if count == 0 {
			at = start
		}
		if at < cursor || at > len(src) {
			return "", fmt.Errorf("%w: hunk at line %d is out of range", ErrPatchMismatch, start)
		}

		out = append(out, src[cursor:at]...)
		cursor = at

		for _, line := range hunk.Lines {
			typ := line.Type
			if reverse {
				switch typ {
				case Addition:
					typ = Deletion
				case Deletion:
					typ = Addition
				}
			}

			switch typ {
			case Addition:
				out = append(out, line.Content)
			default:
				if cursor >= len(src) || src[cursor] != line.Content {
					return "", fmt.Errorf("%w: line %d differs", ErrPatchMismatch, cursor+1)
				}
				if typ == Context {
					out = append(out, line.Content)
				}
				cursor++
			}
		}
	}

	out = append(out, src[cursor:]...)
	return strings.Join(out, "\n"), nil
}
