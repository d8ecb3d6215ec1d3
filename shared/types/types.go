// Package shared holds the records passed between the engine's components.
package shared

import "time"

// Change is a single path's transition from its prior snapshot to NewContent.
// Diff is a unified patch; it is empty only for changes handed out by the
// staging area before the orchestrator has computed it.
type Change struct {
	Path       string `json:"path"`
	Diff       string `json:"diff"`
	NewContent string `json:"new_content"`
}

// Version is a named, timestamped group of changes committed together
type Version struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Changes     []Change  `json:"changes"`
	Description string    `json:"description"`
}

// PendingChange is an uncommitted edit held by the staging area
type PendingChange struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Staged    bool      `json:"staged"`
}

// Clone returns a deep copy of the version so callers cannot mutate history.
func (v Version) Clone() Version {
	v.Changes = append([]Change(nil), v.Changes...)
	return v
}
