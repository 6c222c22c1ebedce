package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/internal/infrastructure"
	"go.uber.org/zap"
)

// ErrNoCatalog is the cause of expansion failures when no catalog is configured
var ErrNoCatalog = errors.New("season and series requests need catalog metadata (set TMDB_API_KEY)")

// PlanOptions carries the defaults applied to batch entries
type PlanOptions struct {
	OutputDir string
	Quality   string
	Lang      string
}

// Planner turns batch entries into concrete download tasks
type Planner struct {
	catalog domain.Catalog
	namer   *Namer
	logger  *zap.Logger
}

// NewPlanner creates a new planner. catalog may be nil.
func NewPlanner(catalog domain.Catalog, namer *Namer, logger *zap.Logger) *Planner {
	return &Planner{
		catalog: catalog,
		namer:   namer,
		logger:  logger,
	}
}

// Expand resolves season and series refs into episode refs.
// Movie and episode refs pass through unchanged.
func (p *Planner) Expand(ctx context.Context, ref domain.ContentRef) ([]domain.ContentRef, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if !ref.NeedsExpansion() {
		return []domain.ContentRef{ref}, nil
	}
	if p.catalog == nil {
		return nil, &domain.CatalogExpansionError{Ref: ref, Err: ErrNoCatalog}
	}

	seasons := []int{ref.Season}
	if ref.Kind == domain.KindSeries {
		show, err := p.catalog.Show(ctx, ref.CatalogID)
		if err != nil {
			return nil, &domain.CatalogExpansionError{Ref: ref, Err: err}
		}
		seasons = seasons[:0]
		for _, s := range show.Seasons {
			// season 0 holds specials
			if s > 0 {
				seasons = append(seasons, s)
			}
		}
	}

	var refs []domain.ContentRef
	for _, season := range seasons {
		episodes, err := p.catalog.Episodes(ctx, ref.CatalogID, season)
		if err != nil {
			return nil, &domain.CatalogExpansionError{Ref: ref, Err: fmt.Errorf("season %d: %w", season, err)}
		}
		for _, e := range episodes {
			refs = append(refs, domain.NewEpisodeRef(ref.CatalogID, season, e.Number))
		}
	}

	if len(refs) == 0 {
		return nil, &domain.CatalogExpansionError{Ref: ref, Err: errors.New("no episodes found")}
	}

	p.logger.Info("Expanded request",
		zap.String("ref", ref.String()),
		zap.Int("seasons", len(seasons)),
		zap.Int("episodes", len(refs)))

	return refs, nil
}

// Plan expands entries, splits language lists, drops duplicate
// (ref, quality, lang) tuples and assigns unique destinations. Tasks come
// back in input order. An explicit output that collides with an earlier task
// yields a task already marked Failed. Only expansion and validation errors
// are returned.
func (p *Planner) Plan(ctx context.Context, entries []BatchEntry, opts PlanOptions) ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	seen := make(map[string]bool)
	claimed := make(map[string]bool)

	for _, entry := range entries {
		quality := firstNonEmpty(entry.Quality, opts.Quality, domain.QualityBest)
		if !infrastructure.ValidQuality(quality) {
			return nil, fmt.Errorf("%s: invalid quality %q (use best, worst or a height such as 720)", entry.Ref, quality)
		}
		langs := splitLangs(firstNonEmpty(entry.Lang, opts.Lang, "en"))
		if len(langs) == 0 {
			return nil, fmt.Errorf("%s: empty language list", entry.Ref)
		}

		refs, err := p.Expand(ctx, entry.Ref)
		if err != nil {
			return nil, err
		}

		output := entry.Output
		if output != "" && len(refs) > 1 {
			p.logger.Warn("Ignoring explicit output for expanded request",
				zap.String("ref", entry.Ref.String()),
				zap.String("output", output))
			output = ""
		}

		for _, ref := range refs {
			for _, lang := range langs {
				task := domain.NewDownloadTask(ref, strings.ToLower(quality), lang)
				if seen[task.Key()] {
					p.logger.Warn("Skipping duplicate task",
						zap.String("key", task.Key()),
						zap.String("output", output))
					continue
				}
				seen[task.Key()] = true

				task.Position = len(tasks)
				task.OutputFile = output
				p.assignDestination(ctx, task, opts.OutputDir, len(langs) > 1, claimed)
				tasks = append(tasks, task)
			}
		}
	}

	domain.AssignLabels(tasks)
	return tasks, nil
}

func (p *Planner) assignDestination(ctx context.Context, task *domain.DownloadTask, outputDir string, multiLang bool, claimed map[string]bool) {
	if task.OutputFile != "" {
		dest := task.OutputFile
		if outputDir != "" && !filepath.IsAbs(dest) {
			dest = filepath.Join(outputDir, dest)
		}
		if multiLang {
			dest = insertSuffix(dest, task.Lang)
		}
		dest = filepath.Clean(dest)
		task.Destination = dest

		if claimed[dest] {
			p.logger.Warn("Rejecting task with colliding output",
				zap.String("ref", task.Ref.String()),
				zap.String("destination", dest))
			if err := task.MarkFailed(fmt.Errorf("%w: %s", domain.ErrDestinationCollision, dest)); err != nil {
				p.logger.Error("Failed to mark task failed", zap.String("id", task.ID), zap.Error(err))
			}
			return
		}
		claimed[dest] = true
		return
	}

	dest := filepath.Clean(filepath.Join(outputDir, p.namer.Path(ctx, task.Ref, outputDir)))
	if claimed[dest] {
		resolved := insertSuffix(dest, task.Lang)
		for n := 2; claimed[resolved]; n++ {
			resolved = insertSuffix(dest, strconv.Itoa(n))
		}
		p.logger.Debug("Resolved destination collision",
			zap.String("from", dest),
			zap.String("to", resolved))
		dest = resolved
	}
	claimed[dest] = true
	task.Destination = dest
}

// insertSuffix turns movie.mp4 into movie.<suffix>.mp4
func insertSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + suffix + ext
}

func splitLangs(s string) []string {
	var langs []string
	seen := make(map[string]bool)
	for _, l := range strings.Split(s, ",") {
		l = strings.TrimSpace(l)
		if l != "" && !seen[l] {
			seen[l] = true
			langs = append(langs, l)
		}
	}
	return langs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
