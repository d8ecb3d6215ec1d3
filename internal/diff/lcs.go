package diff

// maxSnakeDepth bounds the middle-snake search. A region that needs more
// edits than this from either end is emitted as one block of deletions
// followed by one block of additions, which still applies in both directions.
const maxSnakeDepth = 2048

// editScript returns the full line script turning oldLines into newLines.
func (e *Engine) editScript(oldLines, newLines []string) []Line {
	inOld, inNew := matchLines(oldLines, newLines)

	script := make([]Line, 0, len(oldLines)+len(newLines))
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && !inOld[i]:
			script = append(script, Line{Type: Deletion, Content: oldLines[i], OldNum: i + 1})
			i++
		case j < len(newLines) && !inNew[j]:
			script = append(script, Line{Type: Addition, Content: newLines[j], NewNum: j + 1})
			j++
		default:
			script = append(script, Line{Type: Context, Content: oldLines[i], OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		}
	}

	return script
}

// matcher marks the lines of a and b that belong to a common subsequence.
// Lines are interned to ints so comparisons are cheap. The search is Myers'
// linear-space bisection, so memory stays proportional to len(a)+len(b).
type matcher struct {
	a, b     []int
	inA, inB []bool
}

func matchLines(oldLines, newLines []string) ([]bool, []bool) {
	ids := make(map[string]int, len(oldLines))
	intern := func(lines []string) []int {
		out := make([]int, len(lines))
		for i, line := range lines {
			id, ok := ids[line]
			if !ok {
				id = len(ids)
				ids[line] = id
			}
			out[i] = id
		}
		return out
	}

	m := &matcher{
		a:   intern(oldLines),
		b:   intern(newLines),
		inA: make([]bool, len(oldLines)),
		inB: make([]bool, len(newLines)),
	}
	m.compare(0, len(m.a), 0, len(m.b))
	return m.inA, m.inB
}

func (m *matcher) compare(aLo, aHi, bLo, bHi int) {
	for aLo < aHi && bLo < bHi && m.a[aLo] == m.b[bLo] {
		m.inA[aLo], m.inB[bLo] = true, true
		aLo++
		bLo++
	}
	for aLo < aHi && bLo < bHi && m.a[aHi-1] == m.b[bHi-1] {
		aHi--
		bHi--
		m.inA[aHi], m.inB[bHi] = true, true
	}
	if aLo == aHi || bLo == bHi {
		return
	}

	x, y, ok := m.split(aLo, aHi, bLo, bHi)
	if !ok || (x == aLo && y == bLo) || (x == aHi && y == bHi) {
		return
	}
	m.compare(aLo, x, bLo, y)
	m.compare(x, aHi, y, bHi)
}

// split runs the forward and backward searches until they overlap and
// returns the point where they meet. ok is false when the regions share
// nothing or the search passed maxSnakeDepth.
func (m *matcher) split(aLo, aHi, bLo, bHi int) (x, y int, ok bool) {
	a, b := m.a[aLo:aHi], m.b[bLo:bHi]
	n, k := len(a), len(b)

	maxD := (n + k + 1) / 2
	offset := maxD
	size := 2*maxD + 2
	fwd := make([]int, size)
	bwd := make([]int, size)
	for i := range fwd {
		fwd[i], bwd[i] = -1, -1
	}
	fwd[offset+1], bwd[offset+1] = 0, 0

	delta := n - k
	front := delta%2 != 0
	var fStart, fEnd, bStart, bEnd int

	for d := 0; d < maxD && d <= maxSnakeDepth; d++ {
		for diag := -d + fStart; diag <= d-fEnd; diag += 2 {
			i := offset + diag
			var fx int
			if diag == -d || (diag != d && fwd[i-1] < fwd[i+1]) {
				fx = fwd[i+1]
			} else {
				fx = fwd[i-1] + 1
			}
			fy := fx - diag
			for fx < n && fy < k && a[fx] == b[fy] {
				fx++
				fy++
			}
			fwd[i] = fx

			switch {
			case fx > n:
				fEnd += 2
			case fy > k:
				fStart += 2
			case front:
				j := offset + delta - diag
				if j >= 0 && j < size && bwd[j] != -1 && fx >= n-bwd[j] {
					return aLo + fx, bLo + fy, true
				}
			}
		}

		for diag := -d + bStart; diag <= d-bEnd; diag += 2 {
			i := offset + diag
			var bx int
			if diag == -d || (diag != d && bwd[i-1] < bwd[i+1]) {
				bx = bwd[i+1]
			} else {
				bx = bwd[i-1] + 1
			}
			by := bx - diag
			for bx < n && by < k && a[n-bx-1] == b[k-by-1] {
				bx++
				by++
			}
			bwd[i] = bx

			switch {
			case bx > n:
				bEnd += 2
			case by > k:
				bStart += 2
			case !front:
				j := offset + delta - diag
				if j >= 0 && j < size && fwd[j] != -1 {
					fx := fwd[j]
					fy := fx - (j - offset)
					if fx >= n-bx {
						return aLo + fx, bLo + fy, true
					}
				}
			}
		}
	}

	return 0, 0, false
}

// groupHunks cuts the script into hunks with contextLines of surrounding
// context. Changes separated by at most twice the context share a hunk.
func (e *Engine) groupHunks(script []Line) []Hunk {
	var hunks []Hunk
	ctx := e.contextLines

	i := 0
	for i < len(script) {
		if script[i].Type == Context {
			i++
			continue
		}

		start := max(0, i-ctx)
		end := i
		for k := i + 1; k < len(script); k++ {
			if script[k].Type == Context {
				continue
			}
			if k-end-1 > 2*ctx {
				break
			}
			end = k
		}
		stop := min(len(script), end+ctx+1)

		hunks = append(hunks, newHunk(script, start, stop))
		i = stop
	}

	return hunks
}

func newHunk(script []Line, start, stop int) Hunk {
	oldBefore, newBefore := 0, 0
	for _, line := range script[:start] {
		if line.Type != Addition {
			oldBefore++
		}
		if line.Type != Deletion {
			newBefore++
		}
	}

	hunk := Hunk{
		Lines: append([]Line(nil), script[start:stop]...),
	}
	for _, line := range hunk.Lines {
		if line.Type != Addition {
			hunk.OldLines++
		}
		if line.Type != Deletion {
			hunk.NewLines++
		}
	}

	hunk.OldStart = oldBefore
	if hunk.OldLines > 0 {
		hunk.OldStart++
	}
	hunk.NewStart = newBefore
	if hunk.NewLines > 0 {
		hunk.NewStart++
	}
	return hunk
}
