package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// filterColumns maps accepted FindAll filter keys to task columns
var filterColumns = map[string]string{
	"batch_id":       "batch_id",
	"state":          "state",
	"kind":           "ref_kind",
	"catalog_id":     "ref_catalog_id",
	"lang":           "lang",
	"quality":        "quality",
	"error_kind":     "error_kind",
	"resolved_track": "resolved_track",
}

// SQLiteTaskRepository implements TaskRepository using SQLite
type SQLiteTaskRepository struct {
	db *gorm.DB
}

// NewSQLiteTaskRepository creates a new SQLite repository
func NewSQLiteTaskRepository(dbPath string) (*SQLiteTaskRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Workers save concurrently; a single connection serializes writes
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&domain.BatchRecord{}, &domain.DownloadTask{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteTaskRepository{db: db}, nil
}

// SaveBatch creates or updates a batch record
func (r *SQLiteTaskRepository) SaveBatch(batch *domain.BatchRecord) error {
	return r.db.Save(batch).Error
}

// FindBatch finds a batch by ID. A missing batch returns nil, nil.
func (r *SQLiteTaskRepository) FindBatch(id string) (*domain.BatchRecord, error) {
	var batch domain.BatchRecord
	err := r.db.First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// ListBatches lists the most recent batches first
func (r *SQLiteTaskRepository) ListBatches(limit int) ([]*domain.BatchRecord, error) {
	var batches []*domain.BatchRecord
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&batches).Error
	return batches, err
}

// SaveTask creates or updates a task
func (r *SQLiteTaskRepository) SaveTask(task *domain.DownloadTask) error {
	return r.db.Save(task).Error
}

// FindByID finds a task by ID. A missing task returns nil, nil.
func (r *SQLiteTaskRepository) FindByID(id string) (*domain.DownloadTask, error) {
	var task domain.DownloadTask
	err := r.db.First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// FindByBatch finds every task of a batch in input order
func (r *SQLiteTaskRepository) FindByBatch(batchID string) ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	err := r.db.Where("batch_id = ?", batchID).Order("position ASC").Find(&tasks).Error
	return tasks, err
}

// FindAll finds tasks with optional filters, newest first
func (r *SQLiteTaskRepository) FindAll(filters map[string]interface{}) ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	query := r.db

	for key, value := range filters {
		column, ok := filterColumns[key]
		if !ok {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", column), value)
	}

	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// GetStats returns task statistics
func (r *SQLiteTaskRepository) GetStats() (*domain.TaskStats, error) {
	stats := &domain.TaskStats{}

	if err := r.db.Model(&domain.DownloadTask{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	stateCounts := []struct {
		State domain.TaskState
		Count int64
	}{}

	if err := r.db.Model(&domain.DownloadTask{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&stateCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range stateCounts {
		switch sc.State {
		case domain.StateQueued:
			stats.Queued = sc.Count
		case domain.StateExtracting:
			stats.Extracting = sc.Count
		case domain.StateDownloading:
			stats.Downloading = sc.Count
		case domain.StateSucceeded:
			stats.Succeeded = sc.Count
		case domain.StateFailed:
			stats.Failed = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteTaskRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
