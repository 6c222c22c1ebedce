package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoManifest is returned when every extraction strategy is exhausted
	ErrNoManifest = errors.New("no manifest found")

	// ErrManifestExpired is reported when the engine explicitly rejects an expired manifest
	ErrManifestExpired = errors.New("manifest expired")

	// ErrPageUnavailable is returned when the embed page cannot be fetched
	ErrPageUnavailable = errors.New("page unavailable")

	// ErrDestinationCollision is returned when two tasks claim the same output path
	ErrDestinationCollision = errors.New("destination already claimed by another task")

	// ErrInvalidTransition is returned for a task state change that is not allowed
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrBatchCancelled marks tasks that never started because the batch was cancelled
	ErrBatchCancelled = errors.New("batch cancelled")
)

// ExtractionError reports that no strategy produced a usable manifest
type ExtractionError struct {
	Ref      ContentRef
	Attempts []Strategy
}

func (e *ExtractionError) Error() string {
	names := make([]string, len(e.Attempts))
	for i, s := range e.Attempts {
		names[i] = string(s)
	}
	return fmt.Sprintf("%s: %v (tried: %s)", e.Ref, ErrNoManifest, strings.Join(names, ", "))
}

func (e *ExtractionError) Unwrap() error {
	return ErrNoManifest
}

// DownloadErrorKind classifies executor failures
type DownloadErrorKind string

const (
	DownloadExecutionFailed DownloadErrorKind = "execution_failed"
	DownloadNoProgress      DownloadErrorKind = "no_progress"
	DownloadAlreadyExists   DownloadErrorKind = "already_exists"
)

// DownloadError is returned by a DownloadExecutor
type DownloadError struct {
	Kind   DownloadErrorKind
	Path   string
	Reason string
	Err    error
}

func (e *DownloadError) Error() string {
	switch e.Kind {
	case DownloadAlreadyExists:
		return fmt.Sprintf("destination already exists: %s", e.Path)
	case DownloadNoProgress:
		return fmt.Sprintf("engine produced no progress: %s", e.Reason)
	default:
		if e.Reason == "" && e.Err != nil {
			return fmt.Sprintf("download failed: %v", e.Err)
		}
		return fmt.Sprintf("download failed: %s", e.Reason)
	}
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// CatalogExpansionError reports that a season or series could not be expanded.
// It is fatal for the whole batch.
type CatalogExpansionError struct {
	Ref ContentRef
	Err error
}

func (e *CatalogExpansionError) Error() string {
	return fmt.Sprintf("failed to expand %s: %v", e.Ref, e.Err)
}

func (e *CatalogExpansionError) Unwrap() error {
	return e.Err
}

// ErrorKind maps an error to the short kind stored on a task
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var dlErr *DownloadError
	var extErr *ExtractionError
	switch {
	case errors.As(err, &dlErr):
		return string(dlErr.Kind)
	case errors.As(err, &extErr):
		return "extraction"
	case errors.Is(err, ErrPageUnavailable):
		return "page"
	case errors.Is(err, ErrDestinationCollision):
		return "collision"
	case errors.Is(err, ErrBatchCancelled):
		return "cancelled"
	default:
		return "internal"
	}
}
