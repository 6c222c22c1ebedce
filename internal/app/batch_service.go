package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/pkg/logger"
)

// ErrNoValidTasks is returned when a submission plans to zero tasks
var ErrNoValidTasks = errors.New("no valid tasks")

// ErrServiceStopped is returned by Submit after Stop
var ErrServiceStopped = errors.New("batch service stopped")

// SubmitRequest is one batch submitted to the server. Lines uses the batch
// file syntax; Entries are appended after the parsed lines.
type SubmitRequest struct {
	Source    string
	Lines     string
	Entries   []BatchEntry
	Parallel  int
	OutputDir string
	Quality   string
	Lang      string
}

// SubmitResult describes an accepted batch as it was when submitted.
// It holds copies, so it is safe to read while the batch runs.
type SubmitResult struct {
	Batch   domain.BatchRecord
	Tasks   []domain.DownloadTask
	Skipped []*LineError
}

// BatchService plans submitted batches and runs them in the background
type BatchService struct {
	planner      *Planner
	orchestrator *Orchestrator
	repo         domain.TaskRepository
	config       *domain.Config
	multiLogger  *logger.MultiLogger
	logger       *zap.Logger

	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	workerWg sync.WaitGroup
}

// NewBatchService creates a new batch service
func NewBatchService(
	planner *Planner,
	orchestrator *Orchestrator,
	repo domain.TaskRepository,
	config *domain.Config,
	multiLogger *logger.MultiLogger,
	logger *zap.Logger,
) *BatchService {
	return &BatchService{
		planner:      planner,
		orchestrator: orchestrator,
		repo:         repo,
		config:       config,
		multiLogger:  multiLogger,
		logger:       logger,
	}
}

// Start allows batches to be submitted. Running batches are cancelled when
// ctx is done or Stop is called.
func (s *BatchService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("batch service already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	if s.multiLogger != nil {
		s.multiLogger.LogBatchEvent("service_started")
	}
	return nil
}

// Stop cancels running batches and waits for them to be recorded
func (s *BatchService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("batch service not running")
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.workerWg.Wait()
	if s.multiLogger != nil {
		s.multiLogger.LogBatchEvent("service_stopped")
	}
	return nil
}

// IsRunning returns whether the service accepts batches
func (s *BatchService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until every submitted batch has finished
func (s *BatchService) Wait() {
	s.workerWg.Wait()
}

// Submit plans a batch, stores it and starts it in the background.
// Malformed lines are skipped and reported in the result; a
// CatalogExpansionError rejects the whole batch.
func (s *BatchService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	var entries []BatchEntry
	var skipped []*LineError
	if strings.TrimSpace(req.Lines) != "" {
		parsed, lineErrs, err := ParseBatch(strings.NewReader(req.Lines))
		if err != nil {
			return nil, err
		}
		entries, skipped = parsed, lineErrs
		for _, lineErr := range lineErrs {
			s.logger.Warn("Skipping malformed batch line",
				zap.Int("line", lineErr.Line),
				zap.String("text", lineErr.Text),
				zap.Error(lineErr.Err))
		}
	}
	entries = append(entries, req.Entries...)
	if len(entries) == 0 {
		return nil, ErrNoValidTasks
	}

	opts := PlanOptions{
		OutputDir: firstNonEmpty(req.OutputDir, s.config.Download.OutputDir),
		Quality:   firstNonEmpty(req.Quality, s.config.Download.DefaultQuality),
		Lang:      firstNonEmpty(req.Lang, s.config.Provider.DefaultLang),
	}
	tasks, err := s.planner.Plan(ctx, entries, opts)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrNoValidTasks
	}

	parallel := req.Parallel
	if parallel < 1 {
		parallel = s.config.Download.Parallel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrServiceStopped
	}

	batch := domain.NewBatchRecord(firstNonEmpty(req.Source, "api"), len(tasks))
	if err := s.repo.SaveBatch(batch); err != nil {
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}
	for _, task := range tasks {
		task.BatchID = batch.ID
		if err := s.repo.SaveTask(task); err != nil {
			return nil, fmt.Errorf("failed to save task: %w", err)
		}
	}

	if s.multiLogger != nil {
		s.multiLogger.LogBatchEvent("batch_submitted",
			zap.String("batch_id", batch.ID),
			zap.String("source", batch.Source),
			zap.Int("tasks", len(tasks)),
			zap.Int("skipped_lines", len(skipped)))
	}

	result := &SubmitResult{Batch: *batch, Tasks: make([]domain.DownloadTask, len(tasks)), Skipped: skipped}
	for i, task := range tasks {
		result.Tasks[i] = *task
	}

	runCtx := s.ctx
	s.workerWg.Add(1)
	go func() {
		defer s.workerWg.Done()
		report := s.orchestrator.Run(runCtx, batch, tasks, parallel)
		s.logger.Info("Background batch finished",
			zap.String("batch_id", batch.ID),
			zap.Int("exit_code", report.ExitCode()))
	}()

	return result, nil
}

// GetBatch returns a batch record and its tasks in input order
func (s *BatchService) GetBatch(id string) (*domain.BatchRecord, []*domain.DownloadTask, error) {
	batch, err := s.repo.FindBatch(id)
	if err != nil {
		return nil, nil, err
	}
	if batch == nil {
		return nil, nil, nil
	}
	tasks, err := s.repo.FindByBatch(id)
	if err != nil {
		return nil, nil, err
	}
	return batch, tasks, nil
}

// ListBatches lists the most recent batches
func (s *BatchService) ListBatches(limit int) ([]*domain.BatchRecord, error) {
	return s.repo.ListBatches(limit)
}

// GetTask retrieves a task by ID
func (s *BatchService) GetTask(id string) (*domain.DownloadTask, error) {
	return s.repo.FindByID(id)
}

// ListTasks lists tasks with optional filters
func (s *BatchService) ListTasks(filters map[string]interface{}) ([]*domain.DownloadTask, error) {
	return s.repo.FindAll(filters)
}

// GetStats returns task statistics
func (s *BatchService) GetStats() (*domain.TaskStats, error) {
	return s.repo.GetStats()
}
