package engine

import (
	"sync"
	"time"
)

// Status is the per-file sync result category.
type Status string

const (
	StatusCreated  Status = "created"
	StatusUpdated  Status = "updated"
	StatusSkipped  Status = "skipped"
	StatusConflict Status = "conflict"
	StatusFailed   Status = "failed"
)

// Skip reasons.
const (
	SkipUnchanged          = "unchanged"
	SkipNoMapping          = "no_mapping"
	SkipPushDisabled       = "push_disabled"
	SkipPullDisabled       = "pull_disabled"
	SkipMissingFrontmatter = "missing_frontmatter"
)

// Failure kinds.
const (
	FailFileNotFound = "file_not_found"
	FailConversion   = "conversion_error"
	FailRemoteAPI    = "remote_api_error"
)

// Outcome is the result of processing one file in a run. Exactly the fields
// relevant to Status are populated.
type Outcome struct {
	Path          string `json:"path"`
	Status        Status `json:"status"`
	PageID        string `json:"page_id,omitempty"`
	Reason        string `json:"reason,omitempty"`         // Skipped
	LocalHash     string `json:"local_hash,omitempty"`     // Conflict
	RemoteVersion int    `json:"remote_version,omitempty"` // Conflict
	ErrorKind     string `json:"error_kind,omitempty"`     // Failed
	Message       string `json:"message,omitempty"`        // Failed
}

// Report aggregates a run's outcomes. Add is safe for concurrent use; the
// read accessors are meant for after the run finishes.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Mode       string    `json:"mode"`
	Strategy   string    `json:"strategy"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Outcomes   []Outcome `json:"outcomes"`
	Warnings   []string  `json:"warnings,omitempty"`

	mu sync.Mutex
}

func (r *Report) add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, msg)
}

// Count returns the number of outcomes with the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Outcome returns the outcome recorded for path, if any.
func (r *Report) Outcome(path string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Path == path {
			return o, true
		}
	}
	return Outcome{}, false
}

// HasFailures reports whether any file failed or was left in conflict.
// It drives the process exit code.
func (r *Report) HasFailures() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed || o.Status == StatusConflict {
			return true
		}
	}
	return false
}
