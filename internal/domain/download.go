package domain

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the current state of a download task
type TaskState string

const (
	StateQueued      TaskState = "queued"
	StateExtracting  TaskState = "extracting"
	StateDownloading TaskState = "downloading"
	StateSucceeded   TaskState = "succeeded"
	StateFailed      TaskState = "failed"
)

// Quality presets understood by the executors; any positive integer is a target height
const (
	QualityBest  = "best"
	QualityWorst = "worst"
)

// DownloadTask is one (content, quality, language) download within a batch
type DownloadTask struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	BatchID       string     `json:"batch_id" gorm:"index"`
	Position      int        `json:"position"`
	Ref           ContentRef `json:"ref" gorm:"embedded;embeddedPrefix:ref_"`
	Quality       string     `json:"quality"`
	Lang          string     `json:"lang"`
	OutputFile    string     `json:"output_file,omitempty"`
	Destination   string     `json:"destination"`
	DisplayName   string     `json:"display_name,omitempty"`
	State         TaskState  `json:"state" gorm:"not null;index"`
	Progress      float64    `json:"progress"`
	ResolvedTrack string     `json:"resolved_track,omitempty"`
	ManifestURL   string     `json:"manifest_url,omitempty" gorm:"type:text"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Err error `json:"-" gorm:"-"`
}

// NewDownloadTask creates a queued task
func NewDownloadTask(ref ContentRef, quality, lang string) *DownloadTask {
	now := time.Now()
	return &DownloadTask{
		ID:        uuid.New().String(),
		Ref:       ref,
		Quality:   quality,
		Lang:      lang,
		State:     StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key returns the deduplication key of the task
func (t *DownloadTask) Key() string {
	return fmt.Sprintf("%s|%s|%s", t.Ref, t.Quality, t.Lang)
}

// Label returns the name shown on the progress surface
func (t *DownloadTask) Label() string {
	switch {
	case t.DisplayName != "":
		return t.DisplayName
	case t.Destination == "":
		return t.Ref.String()
	default:
		return filepath.Base(t.Destination)
	}
}

// AssignLabels gives every task of a batch a distinct label, so each task
// owns its own progress line. The file name is kept when it is unique, then
// the parent directory is added, then the 1-based position.
func AssignLabels(tasks []*DownloadTask) {
	used := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		label := t.Label()
		if used[label] && t.Destination != "" {
			label = filepath.Join(filepath.Base(filepath.Dir(t.Destination)), filepath.Base(t.Destination))
		}
		base := label
		for n := t.Position + 1; used[label]; n++ {
			label = fmt.Sprintf("%s #%d", base, n)
		}
		used[label] = true
		t.DisplayName = label
	}
}

// MarkExtracting moves a queued task into extraction
func (t *DownloadTask) MarkExtracting() error {
	if t.State != StateQueued {
		return t.transitionError(StateExtracting)
	}
	now := time.Now()
	t.State = StateExtracting
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkDownloading records the manifest and moves the task into downloading
func (t *DownloadTask) MarkDownloading(manifest *ManifestResult) error {
	if t.State != StateExtracting {
		return t.transitionError(StateDownloading)
	}
	t.State = StateDownloading
	t.Progress = 0
	if manifest != nil {
		t.ManifestURL = manifest.URL
		t.ResolvedTrack = manifest.ResolvedTrack
	}
	t.UpdatedAt = time.Now()
	return nil
}

// UpdateProgress records download progress. Progress never goes backwards.
func (t *DownloadTask) UpdateProgress(percent float64) bool {
	if t.State != StateDownloading {
		return false
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= t.Progress {
		return false
	}
	t.Progress = percent
	t.UpdatedAt = time.Now()
	return true
}

// MarkSucceeded marks a downloading task as succeeded
func (t *DownloadTask) MarkSucceeded() error {
	if t.State != StateDownloading {
		return t.transitionError(StateSucceeded)
	}
	now := time.Now()
	t.State = StateSucceeded
	t.Progress = 100
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkFailed marks a non-terminal task as failed
func (t *DownloadTask) MarkFailed(err error) error {
	if t.IsTerminal() {
		return t.transitionError(StateFailed)
	}
	if err == nil {
		err = fmt.Errorf("unknown failure")
	}
	now := time.Now()
	t.State = StateFailed
	t.Err = err
	t.ErrorKind = ErrorKind(err)
	t.ErrorMessage = err.Error()
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// IsTerminal checks if the task reached a terminal state
func (t *DownloadTask) IsTerminal() bool {
	return t.State == StateSucceeded || t.State == StateFailed
}

// Succeeded checks if the task finished successfully
func (t *DownloadTask) Succeeded() bool {
	return t.State == StateSucceeded
}

func (t *DownloadTask) transitionError(to TaskState) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
}

// ValidateState checks if a task state is valid
func ValidateState(state TaskState) bool {
	switch state {
	case StateQueued, StateExtracting, StateDownloading, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}
