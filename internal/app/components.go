package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/internal/infrastructure"
	"github.com/yourusername/vixsrc-go/pkg/logger"
)

// ComponentOptions adjusts how NewComponents wires the graph
type ComponentOptions struct {
	Sink         domain.ProgressSink // nil discards progress
	NoMetadata   bool                // skip the catalog even when a key is set
	ForceHistory bool                // open the history database even when disabled
}

// Components holds the collaborators shared by the CLI and the server
type Components struct {
	Config       *domain.Config
	Logger       *zap.Logger
	Events       *logger.MultiLogger
	Catalog      domain.Catalog
	Executor     *infrastructure.Executor
	Repo         domain.TaskRepository
	Planner      *Planner
	Orchestrator *Orchestrator

	closeRepo func() error
}

// NewComponents wires every collaborator from config
func NewComponents(config *domain.Config, log *zap.Logger, opts ComponentOptions) (*Components, error) {
	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event logger: %w", err)
	}

	c := &Components{
		Config: config,
		Logger: log,
		Events: events,
	}

	if config.Catalog.Enabled && !opts.NoMetadata {
		catalog, err := infrastructure.NewTMDBCatalog(&config.Catalog, log)
		switch {
		case errors.Is(err, infrastructure.ErrCatalogDisabled):
			log.Debug("Catalog metadata unavailable", zap.Error(err))
		case err != nil:
			events.Close()
			return nil, fmt.Errorf("failed to initialize catalog: %w", err)
		default:
			c.Catalog = catalog
		}
	}

	if config.History.Enabled || opts.ForceHistory {
		repo, err := infrastructure.NewSQLiteTaskRepository(config.History.DatabasePath)
		if err != nil {
			events.Close()
			return nil, fmt.Errorf("failed to initialize history: %w", err)
		}
		c.Repo = repo
		c.closeRepo = repo.Close
	}

	client := infrastructure.NewHTTPClient(&config.Provider)
	extractor, err := infrastructure.NewVixSrcExtractor(&config.Provider, client, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	c.Executor = infrastructure.NewExecutor(&config.Download, &config.Provider, events, log)

	deps := OrchestratorDeps{
		Pages:     infrastructure.NewHTTPPageSource(&config.Provider, client, log),
		Extractor: extractor,
		Executor:  c.Executor,
		Repo:      c.Repo,
		Events:    events,
		Sink:      opts.Sink,
		Logger:    log,
	}
	if config.Notification.Enabled {
		deps.Notifier = infrastructure.NewNotificationService(&config.Notification, log)
	}

	c.Planner = NewPlanner(c.Catalog, NewNamer(config.Naming, c.Catalog, log), log)
	c.Orchestrator = NewOrchestrator(deps, &config.Download)
	return c, nil
}

// Close releases the history database and the event log files
func (c *Components) Close() error {
	var errs []error
	if c.closeRepo != nil {
		errs = append(errs, c.closeRepo())
	}
	if c.Events != nil {
		errs = append(errs, c.Events.Close())
	}
	return errors.Join(errs...)
}
