package staging

import (
	"testing"

	"filevc/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(changes []shared.PendingChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Path)
	}
	return out
}

func TestArea_CommitStaged(t *testing.T) {
	a := NewArea()
	a.AddChange("x", "c1")
	require.True(t, a.StageChange("x"))

	changes := a.CommitChanges("m")
	require.Len(t, changes, 1)
	assert.Equal(t, "x", changes[0].Path)
	assert.Equal(t, "c1", changes[0].NewContent)
	assert.Empty(t, changes[0].Diff)

	assert.Empty(t, a.PendingChanges())
	assert.Empty(t, a.StagedChanges())
}

func TestArea_CommitLeavesUnstaged(t *testing.T) {
	a := NewArea()
	a.AddChange("a", "1")
	a.AddChange("b", "2")
	a.AddChange("c", "3")
	a.StageChange("a")
	a.StageChange("c")

	changes := a.CommitChanges("partial")
	require.Len(t, changes, 2)
	assert.Equal(t, "a", changes[0].Path)
	assert.Equal(t, "c", changes[1].Path)

	assert.Equal(t, []string{"b"}, paths(a.PendingChanges()))
	assert.Equal(t, []string{"b"}, paths(a.UnstagedChanges()))

	assert.Empty(t, a.CommitChanges("nothing staged"))
}

func TestArea_StageUnknownPath(t *testing.T) {
	a := NewArea()
	assert.False(t, a.StageChange("missing"))
	assert.False(t, a.UnstageChange("missing"))
}

func TestArea_Partitions(t *testing.T) {
	a := NewArea()
	a.AddChange("one", "1")
	a.AddChange("two", "2")
	a.AddChange("three", "3")

	require.True(t, a.StageChange("two"))
	assert.Equal(t, []string{"one", "two", "three"}, paths(a.PendingChanges()))
	assert.Equal(t, []string{"two"}, paths(a.StagedChanges()))
	assert.Equal(t, []string{"one", "three"}, paths(a.UnstagedChanges()))

	require.True(t, a.UnstageChange("two"))
	assert.Empty(t, a.StagedChanges())
}

func TestArea_EditUnstages(t *testing.T) {
	a := NewArea()
	a.AddChange("first", "1")
	a.AddChange("x", "old")
	require.True(t, a.StageChange("x"))

	a.AddChange("x", "new")

	pending := a.PendingChanges()
	require.Len(t, pending, 2)
	assert.Equal(t, "x", pending[1].Path, "overwrite keeps position")
	assert.Equal(t, "new", pending[1].Content)
	assert.False(t, pending[1].Staged)
}

func TestArea_Discard(t *testing.T) {
	a := NewArea()
	a.AddChange("y", "c2")
	a.StageChange("y")

	a.DiscardChanges("y")
	assert.Empty(t, a.PendingChanges())
	assert.Empty(t, a.StagedChanges())

	// discarding an unknown path is harmless
	a.DiscardChanges("y")
	assert.False(t, a.StageChange("y"))
}

func TestArea_ListingsAreCopies(t *testing.T) {
	a := NewArea()
	a.AddChange("x", "c1")

	pending := a.PendingChanges()
	pending[0].Staged = true
	pending[0].Content = "tampered"

	assert.Empty(t, a.StagedChanges())
	assert.Equal(t, "c1", a.PendingChanges()[0].Content)
}

func TestArea_Restore(t *testing.T) {
	a := NewArea()
	a.AddChange("x", "c1")
	a.AddChange("y", "c2")
	a.StageChange("x")
	a.StageChange("y")

	changes := a.CommitChanges("m")
	require.Len(t, changes, 2)

	// y was edited again before the restore
	a.AddChange("y", "newer")
	a.Restore(changes)

	staged := a.StagedChanges()
	require.Len(t, staged, 1)
	assert.Equal(t, "x", staged[0].Path)

	unstaged := a.UnstagedChanges()
	require.Len(t, unstaged, 1)
	assert.Equal(t, "newer", unstaged[0].Content)
}
