package domain

// TaskRepository persists task and batch history
type TaskRepository interface {
	// SaveBatch creates or updates a batch record
	SaveBatch(batch *BatchRecord) error

	// FindBatch finds a batch by ID
	FindBatch(id string) (*BatchRecord, error)

	// ListBatches lists the most recent batches
	ListBatches(limit int) ([]*BatchRecord, error)

	// SaveTask creates or updates a task
	SaveTask(task *DownloadTask) error

	// FindByID finds a task by ID
	FindByID(id string) (*DownloadTask, error)

	// FindByBatch finds every task of a batch in input order
	FindByBatch(batchID string) ([]*DownloadTask, error)

	// FindAll finds tasks with optional filters
	FindAll(filters map[string]interface{}) ([]*DownloadTask, error)

	// GetStats returns task statistics
	GetStats() (*TaskStats, error)
}

// TaskStats represents task statistics
type TaskStats struct {
	Total       int64 `json:"total"`
	Queued      int64 `json:"queued"`
	Extracting  int64 `json:"extracting"`
	Downloading int64 `json:"downloading"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
}
