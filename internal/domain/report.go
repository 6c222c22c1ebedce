package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskFailure is one failed task in a batch report
type TaskFailure struct {
	Position int    `json:"position"`
	TaskID   string `json:"task_id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// BatchReport aggregates the outcome of a batch run
type BatchReport struct {
	BatchID    string          `json:"batch_id"`
	Total      int             `json:"total"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Tasks      []*DownloadTask `json:"tasks"`
	Failures   []TaskFailure   `json:"failures"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`

	mu       sync.Mutex
	recorded map[string]bool
}

// NewBatchReport creates a report for tasks listed in input order
func NewBatchReport(batchID string, tasks []*DownloadTask) *BatchReport {
	return &BatchReport{
		BatchID:   batchID,
		Total:     len(tasks),
		Tasks:     tasks,
		StartedAt: time.Now(),
		recorded:  make(map[string]bool, len(tasks)),
	}
}

// Record counts a terminal task. Recording the same task twice is a no-op.
func (r *BatchReport) Record(task *DownloadTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !task.IsTerminal() {
		return fmt.Errorf("task %s is not terminal: %s", task.ID, task.State)
	}
	if r.recorded[task.ID] {
		return nil
	}
	r.recorded[task.ID] = true

	if task.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
	return nil
}

// Finalize builds the ordered failure list once every task is terminal
func (r *BatchReport) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Succeeded+r.Failed != r.Total {
		return fmt.Errorf("batch %s incomplete: %d succeeded + %d failed != %d total",
			r.BatchID, r.Succeeded, r.Failed, r.Total)
	}

	r.Failures = r.Failures[:0]
	for i, task := range r.Tasks {
		if task.Succeeded() {
			continue
		}
		r.Failures = append(r.Failures, TaskFailure{
			Position: i,
			TaskID:   task.ID,
			Label:    task.Label(),
			Kind:     task.ErrorKind,
			Reason:   task.ErrorMessage,
		})
	}
	r.FinishedAt = time.Now()
	return nil
}

// Duration returns how long the batch ran
func (r *BatchReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExitCode is 0 only when every task succeeded
func (r *BatchReport) ExitCode() int {
	if r.Total == 0 || r.Failed > 0 {
		return 1
	}
	return 0
}

// BatchRecord is the persisted summary of a batch run
type BatchRecord struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	Source     string     `json:"source"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Running    bool       `json:"running" gorm:"index"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewBatchRecord creates a running batch record
func NewBatchRecord(source string, total int) *BatchRecord {
	return &BatchRecord{
		ID:        uuid.New().String(),
		Source:    source,
		Total:     total,
		Running:   true,
		CreatedAt: time.Now(),
	}
}

// Complete copies the final counts from a report
func (b *BatchRecord) Complete(report *BatchReport) {
	b.Total = report.Total
	b.Succeeded = report.Succeeded
	b.Failed = report.Failed
	b.Running = false
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	b.FinishedAt = &finished
}
