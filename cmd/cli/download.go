package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vixsrc-go/internal/app"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/pkg/logger"
)

// downloadOptions mirrors the root command flags
type downloadOptions struct {
	Movie     int
	TV        int
	Season    int
	SeasonSet bool
	Episode   int
	Batch     string

	Parallel  int
	Quality   string
	Lang      string
	Output    string
	OutputDir string

	URLOnly          bool
	Timeout          int
	TMDBAPIKey       string
	NoMetadata       bool
	YTDLPConcurrency int
	Overwrite        bool
}

func (o downloadOptions) validate() error {
	sources := 0
	for _, set := range []bool{o.Movie != 0, o.TV != 0, o.Batch != ""} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return fmt.Errorf("specify one of --movie, --tv or --batch")
	case sources > 1:
		return fmt.Errorf("--movie, --tv and --batch are mutually exclusive")
	case o.Movie < 0 || o.TV < 0:
		return fmt.Errorf("ids must be positive")
	case o.Episode != 0 && !o.SeasonSet:
		return fmt.Errorf("--episode requires --season")
	case (o.SeasonSet || o.Episode != 0) && o.TV == 0:
		return fmt.Errorf("--season and --episode require --tv")
	case o.URLOnly && o.Batch != "":
		return fmt.Errorf("--url-only cannot be used with --batch")
	case o.URLOnly && o.TV != 0 && o.Episode == 0:
		return fmt.Errorf("--url-only needs a single movie or episode")
	case o.Output != "" && o.Batch != "":
		return fmt.Errorf("--output applies to single downloads, use the batch file output column instead")
	case o.Parallel < 0 || o.Timeout < 0 || o.YTDLPConcurrency < 0:
		return fmt.Errorf("--parallel, --timeout and --ytdlp-concurrency must not be negative")
	}
	return nil
}

// ref builds the requested content for --movie and --tv
func (o downloadOptions) ref() domain.ContentRef {
	switch {
	case o.Movie != 0:
		return domain.NewMovieRef(o.Movie)
	case o.Episode != 0:
		return domain.NewEpisodeRef(o.TV, o.Season, o.Episode)
	case o.SeasonSet:
		return domain.NewSeasonRef(o.TV, o.Season)
	default:
		return domain.NewSeriesRef(o.TV)
	}
}

// entries returns the requested entries and a label for the batch history
func (o downloadOptions) entries(log *zap.Logger, stderr io.Writer) ([]app.BatchEntry, string, error) {
	if o.Batch == "" {
		ref := o.ref()
		return []app.BatchEntry{{Ref: ref, Output: o.Output}}, ref.String(), nil
	}

	entries, lineErrs, err := app.ParseBatchFile(o.Batch)
	if err != nil {
		return nil, "", err
	}
	for _, lineErr := range lineErrs {
		log.Warn("Skipping malformed batch line",
			zap.Int("line", lineErr.Line),
			zap.String("text", lineErr.Text),
			zap.Error(lineErr.Err))
		fmt.Fprintf(stderr, "Skipping %v\n", lineErr)
	}
	return entries, o.Batch, nil
}

// applyOverrides copies explicit flags over the loaded configuration
func applyOverrides(config *domain.Config, o downloadOptions) {
	if o.Parallel > 0 {
		config.Download.Parallel = o.Parallel
	}
	if o.Quality != "" {
		config.Download.DefaultQuality = o.Quality
	}
	if o.Lang != "" {
		config.Provider.DefaultLang = o.Lang
	}
	if o.OutputDir != "" {
		config.Download.OutputDir = o.OutputDir
	}
	if o.Timeout > 0 {
		config.Provider.Timeout = time.Duration(o.Timeout) * time.Second
		config.Catalog.Timeout = config.Provider.Timeout
	}
	if o.TMDBAPIKey != "" {
		config.Catalog.APIKey = o.TMDBAPIKey
	}
	if o.YTDLPConcurrency > 0 {
		config.Download.FragmentConcurrency = o.YTDLPConcurrency
	}
	if o.Overwrite {
		config.Download.Overwrite = true
	}
}

// newLogger builds the console logger. The live progress display owns the
// terminal, so only warnings reach it unless --verbose is set.
func newLogger(config *domain.Config, interactive bool) (*zap.Logger, error) {
	level := config.Logging.Level
	switch {
	case verbose:
		level = "debug"
	case interactive:
		level = "warn"
	}
	return logger.New(logger.Config{
		Level:      level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
}

func runDownload(o downloadOptions) error {
	if err := o.validate(); err != nil {
		return err
	}

	if err := app.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(config, o)

	interactive := !o.URLOnly && app.IsInteractive(config.Progress.Mode, os.Stdout)
	log, err := newLogger(config, interactive)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	var renderer app.Renderer
	if interactive {
		renderer = app.NewTerminalRenderer(os.Stdout, config.Progress.RefreshInterval)
	} else {
		renderer = app.NewLogRenderer(log.Named("progress"), config.Progress.LogInterval)
	}
	reporter := app.NewProgressReporter(renderer)

	components, err := app.NewComponents(config, log, app.ComponentOptions{
		Sink:       reporter,
		NoMetadata: o.NoMetadata,
	})
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.URLOnly {
		return printManifestURL(ctx, components, o.ref(), config.Provider.DefaultLang)
	}

	entries, source, err := o.entries(log, os.Stderr)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return app.ErrNoValidTasks
	}

	tasks, err := components.Planner.Plan(ctx, entries, app.PlanOptions{
		OutputDir: config.Download.OutputDir,
		Quality:   config.Download.DefaultQuality,
		Lang:      config.Provider.DefaultLang,
	})
	if err != nil {
		var expErr *domain.CatalogExpansionError
		if errors.As(err, &expErr) {
			log.Error("Cannot expand request", zap.String("ref", expErr.Ref.String()), zap.Error(expErr.Err))
		}
		return err
	}
	if len(tasks) == 0 {
		return app.ErrNoValidTasks
	}

	engine, binary, err := components.Executor.Engine()
	if err != nil {
		return err
	}
	log.Debug("Using download engine", zap.String("engine", engine), zap.String("binary", binary))

	report := components.Orchestrator.Run(ctx, domain.NewBatchRecord(source, len(tasks)), tasks, config.Download.Parallel)
	reporter.Close()
	printSummary(os.Stdout, report)

	if report.ExitCode() != 0 {
		return errFailed
	}
	return nil
}

func printManifestURL(ctx context.Context, components *app.Components, ref domain.ContentRef, langs string) error {
	lang := strings.TrimSpace(strings.Split(langs, ",")[0])
	if lang == "" {
		lang = "en"
	}

	manifest, err := components.Orchestrator.ResolveManifest(ctx, ref, lang)
	if err != nil {
		return fmt.Errorf("%s: %w", ref, err)
	}

	components.Logger.Info("Manifest extracted",
		zap.String("ref", ref.String()),
		zap.String("strategy", string(manifest.Strategy)),
		zap.String("track", manifest.ResolvedTrack))
	fmt.Println(manifest.URL)
	return nil
}

func printSummary(w io.Writer, report *domain.BatchReport) {
	fmt.Fprintf(w, "\n%d/%d succeeded, %d failed in %s\n",
		report.Succeeded, report.Total, report.Failed, report.Duration().Round(time.Second))
	for _, failure := range report.Failures {
		fmt.Fprintf(w, "  ✗ #%d %s [%s] %s\n", failure.Position+1, failure.Label, failure.Kind, failure.Reason)
	}
}
