package version

import (
	"testing"

	"filevc/internal/diff"
	"filevc/internal/errors"
	"filevc/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(t *testing.T, path, old, updated string) shared.Change {
	t.Helper()
	patch, err := diff.NewEngine(3).Diff(old, updated).Unified(path)
	require.NoError(t, err)
	return shared.Change{Path: path, Diff: patch, NewContent: updated}
}

func TestLog_AddVersion(t *testing.T) {
	log := NewLog(nil)

	_, err := log.AddVersion(nil, "empty")
	assert.ErrorIs(t, err, ErrEmptyVersion)
	assert.Equal(t, 0, log.Len())

	_, ok := log.Current()
	assert.False(t, ok)

	id1, err := log.AddVersion([]shared.Change{change(t, "a.txt", "", "one")}, "first")
	require.NoError(t, err)
	id2, err := log.AddVersion([]shared.Change{change(t, "a.txt", "one", "two")}, "second")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	versions := log.Versions()
	require.Len(t, versions, 2)
	assert.Equal(t, id1, versions[0].ID)
	assert.Equal(t, "first", versions[0].Description)
	assert.Equal(t, id2, versions[1].ID)
	assert.False(t, versions[0].Timestamp.IsZero())

	current, ok := log.Current()
	require.True(t, ok)
	assert.Equal(t, id2, current.ID)
}

func TestLog_VersionsAreCopies(t *testing.T) {
	log := NewLog(nil)
	_, err := log.AddVersion([]shared.Change{change(t, "a.txt", "", "one")}, "first")
	require.NoError(t, err)

	versions := log.Versions()
	versions[0].Changes[0].NewContent = "tampered"
	versions[0].Description = "tampered"

	again := log.Versions()
	assert.Equal(t, "one", again[0].Changes[0].NewContent)
	assert.Equal(t, "first", again[0].Description)
}

func TestLog_RevertTruncates(t *testing.T) {
	log := NewLog(nil)

	v1, err := log.AddVersion([]shared.Change{change(t, "a.txt", "", "v1")}, "1")
	require.NoError(t, err)
	v2, err := log.AddVersion([]shared.Change{change(t, "a.txt", "v1", "v2")}, "2")
	require.NoError(t, err)
	_, err = log.AddVersion([]shared.Change{
		change(t, "a.txt", "v2", "v3"),
		change(t, "b.txt", "", "b"),
	}, "3")
	require.NoError(t, err)

	changes, err := log.RevertToVersion(v1)
	require.NoError(t, err)

	// newest version first, its changes in stored order, no dedup per path
	require.Len(t, changes, 3)
	assert.Equal(t, "a.txt", changes[0].Path)
	assert.Equal(t, "v2", changes[0].NewContent)
	assert.Equal(t, "b.txt", changes[1].Path)
	assert.Equal(t, "", changes[1].NewContent)
	assert.Equal(t, "a.txt", changes[2].Path)
	assert.Equal(t, "v1", changes[2].NewContent)

	// each revert change moves the newer content back
	back, err := diff.Apply(changes[0].Diff, "v3")
	require.NoError(t, err)
	assert.Equal(t, "v2", back)

	versions := log.Versions()
	require.Len(t, versions, 1)
	assert.Equal(t, v1, versions[0].ID)

	_, err = log.RevertToVersion(v2)
	assert.ErrorIs(t, err, errors.ErrVersionNotFound)
}

func TestLog_RevertToCurrentIsNoop(t *testing.T) {
	log := NewLog(nil)
	_, err := log.AddVersion([]shared.Change{change(t, "a.txt", "", "v1")}, "1")
	require.NoError(t, err)
	v2, err := log.AddVersion([]shared.Change{change(t, "a.txt", "v1", "v2")}, "2")
	require.NoError(t, err)

	changes, err := log.RevertToVersion(v2)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, 2, log.Len())
}

func TestLog_RevertUnknownVersion(t *testing.T) {
	log := NewLog(nil)
	_, err := log.AddVersion([]shared.Change{change(t, "a.txt", "", "v1")}, "1")
	require.NoError(t, err)

	_, err = log.RevertToVersion("missing")
	assert.ErrorIs(t, err, errors.ErrVersionNotFound)

	_, err = log.Get("missing")
	assert.ErrorIs(t, err, errors.ErrVersionNotFound)

	assert.ErrorIs(t, log.Truncate("missing"), errors.ErrVersionNotFound)
	assert.Equal(t, 1, log.Len())
}

func TestLog_RevertFailureKeepsLog(t *testing.T) {
	log := NewLog(nil)
	v1, err := log.AddVersion([]shared.Change{change(t, "a.txt", "", "v1")}, "1")
	require.NoError(t, err)
	_, err = log.AddVersion([]shared.Change{change(t, "a.txt", "v1", "v2")}, "2")
	require.NoError(t, err)

	corrupt := change(t, "b.txt", "x", "y")
	corrupt.NewContent = "changed behind our back"
	_, err = log.AddVersion([]shared.Change{corrupt}, "3")
	require.NoError(t, err)

	_, err = log.RevertToVersion(v1)
	assert.ErrorIs(t, err, errors.ErrPatchApplyFailure)
	assert.ErrorIs(t, err, diff.ErrPatchMismatch)
	assert.Equal(t, 3, log.Len())
}

func TestLog_PlanThenTruncate(t *testing.T) {
	log := NewLog(nil)
	v1, err := log.AddVersion([]shared.Change{change(t, "a.txt", "", "v1")}, "1")
	require.NoError(t, err)
	_, err = log.AddVersion([]shared.Change{change(t, "a.txt", "v1", "v2")}, "2")
	require.NoError(t, err)

	planned, err := log.PlanRevert(v1)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Equal(t, 2, log.Len(), "planning must not truncate")

	require.NoError(t, log.Truncate(v1))
	assert.Equal(t, 1, log.Len())
}
