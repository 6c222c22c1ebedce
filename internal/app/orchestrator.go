package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/pkg/logger"
	"go.uber.org/zap"
)

// BatchNotifier is told about every finished batch
type BatchNotifier interface {
	NotifyBatchCompleted(report *domain.BatchReport)
}

// OrchestratorDeps groups the collaborators of an Orchestrator.
// Repo, Events, Notifier and Sink are optional.
type OrchestratorDeps struct {
	Pages     domain.PageSource
	Extractor domain.ManifestExtractor
	Executor  domain.DownloadExecutor
	Repo      domain.TaskRepository
	Events    *logger.MultiLogger
	Notifier  BatchNotifier
	Sink      domain.ProgressSink
	Logger    *zap.Logger
}

// Orchestrator runs batches of download tasks on a fixed worker pool
type Orchestrator struct {
	pages     domain.PageSource
	extractor domain.ManifestExtractor
	executor  domain.DownloadExecutor
	repo      domain.TaskRepository
	events    *logger.MultiLogger
	notifier  BatchNotifier
	sink      domain.ProgressSink
	config    *domain.DownloadConfig
	logger    *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps OrchestratorDeps, config *domain.DownloadConfig) *Orchestrator {
	sink := deps.Sink
	if sink == nil {
		sink = domain.NopProgressSink{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		pages:     deps.Pages,
		extractor: deps.Extractor,
		executor:  deps.Executor,
		repo:      deps.Repo,
		events:    deps.Events,
		notifier:  deps.Notifier,
		sink:      sink,
		config:    config,
		logger:    log,
	}
}

// RunBatch runs tasks with at most concurrency in flight and returns the
// finalized report. Per-task errors are captured on the tasks.
func (o *Orchestrator) RunBatch(ctx context.Context, tasks []*domain.DownloadTask, concurrency int) *domain.BatchReport {
	return o.Run(ctx, domain.NewBatchRecord("", len(tasks)), tasks, concurrency)
}

// Run is RunBatch for a batch record created by the caller
func (o *Orchestrator) Run(ctx context.Context, batch *domain.BatchRecord, tasks []*domain.DownloadTask, concurrency int) *domain.BatchReport {
	if concurrency < 1 {
		concurrency = 1
	}

	batch.Total = len(tasks)
	report := domain.NewBatchReport(batch.ID, tasks)
	domain.AssignLabels(tasks)
	o.saveBatch(batch)
	for _, task := range tasks {
		task.BatchID = batch.ID
		o.saveTask(task)
		o.sink.Queued(task.Label())
	}

	o.logger.Info("Starting batch",
		zap.String("batch_id", batch.ID),
		zap.Int("tasks", len(tasks)),
		zap.Int("parallel", concurrency))
	o.batchEvent("batch_started",
		zap.String("batch_id", batch.ID),
		zap.String("source", batch.Source),
		zap.Int("total", len(tasks)),
		zap.Int("parallel", concurrency))

	jobs := make(chan int)
	results := make(chan int, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o.runTask(ctx, tasks[i])
				results <- i
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range tasks {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for i := range results {
		if err := report.Record(tasks[i]); err != nil {
			o.logger.Error("Failed to record task", zap.Error(err))
		}
	}

	// tasks never handed to a worker
	for _, task := range tasks {
		if !task.IsTerminal() {
			o.fail(task, fmt.Errorf("%w: %v", domain.ErrBatchCancelled, ctx.Err()))
		}
		report.Record(task)
	}

	if err := report.Finalize(); err != nil {
		o.logger.Error("Failed to finalize batch report", zap.Error(err))
	}
	batch.Complete(report)
	o.saveBatch(batch)

	o.logger.Info("Batch finished",
		zap.String("batch_id", batch.ID),
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration()))
	o.batchEvent("batch_completed",
		zap.String("batch_id", batch.ID),
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration()))

	if o.notifier != nil {
		o.notifier.NotifyBatchCompleted(report)
	}
	return report
}

// ResolveManifest fetches the content page and extracts its manifest
func (o *Orchestrator) ResolveManifest(ctx context.Context, ref domain.ContentRef, lang string) (*domain.ManifestResult, error) {
	page, err := o.pages.Fetch(ctx, ref, lang)
	if err != nil {
		return nil, err
	}
	manifest, err := o.extractor.Extract(ctx, page, ref, lang)
	if err != nil {
		return nil, err
	}
	if manifest.Downgraded() {
		o.logger.Warn("Requested audio track not offered, using fallback",
			zap.String("ref", ref.String()),
			zap.String("requested", lang),
			zap.String("resolved", manifest.ResolvedTrack))
	}
	return manifest, nil
}

func (o *Orchestrator) runTask(ctx context.Context, task *domain.DownloadTask) {
	key := task.Label()

	// rejected during planning
	if task.IsTerminal() {
		o.sink.Finished(key, task.Succeeded())
		return
	}
	if ctx.Err() != nil {
		o.fail(task, fmt.Errorf("%w: %v", domain.ErrBatchCancelled, ctx.Err()))
		return
	}

	o.sink.Started(key)
	if err := task.MarkExtracting(); err != nil {
		o.fail(task, err)
		return
	}
	o.saveTask(task)

	o.logger.Info("Processing task",
		zap.String("id", task.ID),
		zap.String("ref", task.Ref.String()),
		zap.String("lang", task.Lang),
		zap.String("quality", task.Quality))

	manifest, err := o.ResolveManifest(ctx, task.Ref, task.Lang)
	if err != nil {
		o.fail(task, err)
		return
	}

	if err := task.MarkDownloading(manifest); err != nil {
		o.fail(task, err)
		return
	}
	o.saveTask(task)

	req := domain.DownloadRequest{
		Key:         key,
		ManifestURL: manifest.URL,
		Destination: task.Destination,
		Quality:     task.Quality,
		Lang:        manifest.ResolvedTrack,
		Overwrite:   o.config != nil && o.config.Overwrite,
	}
	if err := o.executor.Run(ctx, req, &taskProgress{ProgressSink: o.sink, task: task}); err != nil {
		o.fail(task, err)
		return
	}

	if err := task.MarkSucceeded(); err != nil {
		o.fail(task, err)
		return
	}
	o.saveTask(task)
	o.sink.Finished(key, true)

	o.logger.Info("Task completed",
		zap.String("id", task.ID),
		zap.String("destination", task.Destination))
	o.batchEvent("task_succeeded",
		zap.String("batch_id", task.BatchID),
		zap.String("task_id", task.ID),
		zap.String("ref", task.Ref.String()),
		zap.String("destination", task.Destination))
}

func (o *Orchestrator) fail(task *domain.DownloadTask, err error) {
	if err := task.MarkFailed(err); err != nil {
		o.logger.Error("Failed to mark task failed", zap.String("id", task.ID), zap.Error(err))
	}
	o.saveTask(task)
	o.sink.Finished(task.Label(), false)

	o.logger.Warn("Task failed",
		zap.String("id", task.ID),
		zap.String("ref", task.Ref.String()),
		zap.String("kind", task.ErrorKind),
		zap.Error(err))
	o.batchEvent("task_failed",
		zap.String("batch_id", task.BatchID),
		zap.String("task_id", task.ID),
		zap.String("ref", task.Ref.String()),
		zap.String("kind", task.ErrorKind))
	if o.events != nil {
		o.events.LogAppError("Task failed",
			zap.String("batch_id", task.BatchID),
			zap.String("task_id", task.ID),
			zap.String("ref", task.Ref.String()),
			zap.String("destination", task.Destination),
			zap.String("kind", task.ErrorKind),
			zap.Error(err))
	}
}

func (o *Orchestrator) saveTask(task *domain.DownloadTask) {
	if o.repo == nil {
		return
	}
	if err := o.repo.SaveTask(task); err != nil {
		o.logger.Error("Failed to save task history", zap.String("id", task.ID), zap.Error(err))
	}
}

func (o *Orchestrator) saveBatch(batch *domain.BatchRecord) {
	if o.repo == nil {
		return
	}
	if err := o.repo.SaveBatch(batch); err != nil {
		o.logger.Error("Failed to save batch history", zap.String("id", batch.ID), zap.Error(err))
	}
}

func (o *Orchestrator) batchEvent(event string, fields ...zap.Field) {
	if o.events != nil {
		o.events.LogBatchEvent(event, fields...)
	}
}

// taskProgress mirrors percent events onto the task before forwarding them
type taskProgress struct {
	domain.ProgressSink
	task *domain.DownloadTask
}

func (p *taskProgress) Percent(key string, percent float64) {
	if p.task.UpdateProgress(percent) {
		p.ProgressSink.Percent(key, p.task.Progress)
	}
}
