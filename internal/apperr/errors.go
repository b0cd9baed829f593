// Package apperr defines the sentinel errors shared across docbridge.
package apperr

import "errors"

var (
	// ErrFileNotFound marks a local document that no longer resolves on disk.
	ErrFileNotFound = errors.New("file not found")
	// ErrConversion marks a Markdown construct that could not be mapped.
	ErrConversion = errors.New("conversion failed")
	// ErrRemoteAPI marks a failure reported by the wiki client.
	ErrRemoteAPI = errors.New("remote api error")
	// ErrVersionConflict marks a page update rejected because the expected
	// version was stale. Distinct from ErrRemoteAPI so the engine surfaces a
	// conflict instead of a plain failure.
	ErrVersionConflict = errors.New("stale page version")
	// ErrMappingCorrupt marks an unreadable mapping file. The store falls
	// back to empty and entries are rebuilt on the next successful sync.
	ErrMappingCorrupt = errors.New("mapping store corrupt")
	// ErrRunAborted is returned when the abort conflict strategy stops a run.
	ErrRunAborted = errors.New("run aborted on conflict")
)
