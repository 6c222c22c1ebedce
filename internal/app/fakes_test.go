package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/vixsrc-go/internal/domain"
)

var errNotFound = errors.New("not found")

// fakeCatalog serves canned metadata
type fakeCatalog struct {
	movies   map[int]*domain.MovieInfo
	shows    map[int]*domain.ShowInfo
	episodes map[[2]int][]domain.EpisodeInfo
	err      error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		movies: map[int]*domain.MovieInfo{
			550: {Title: "Fight Club", Year: "1999"},
		},
		shows: map[int]*domain.ShowInfo{
			60625: {Name: "Rick and Morty", Year: "2013", Seasons: []int{0, 1, 2}},
		},
		episodes: map[[2]int][]domain.EpisodeInfo{
			{60625, 0}: {{Number: 1, Name: "Special"}},
			{60625, 1}: {{Number: 1, Name: "Pilot"}, {Number: 2, Name: "Lawnmower Dog"}},
			{60625, 2}: {{Number: 1, Name: "A Rickle in Time"}},
			{60625, 4}: {{Number: 1, Name: "Edge of Tomorty: Rick, Die, Rickpeat"}},
		},
	}
}

func (c *fakeCatalog) Movie(_ context.Context, id int) (*domain.MovieInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	if m, ok := c.movies[id]; ok {
		return m, nil
	}
	return nil, errNotFound
}

func (c *fakeCatalog) Show(_ context.Context, id int) (*domain.ShowInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	if s, ok := c.shows[id]; ok {
		return s, nil
	}
	return nil, errNotFound
}

func (c *fakeCatalog) Episodes(_ context.Context, id, season int) ([]domain.EpisodeInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	if e, ok := c.episodes[[2]int{id, season}]; ok {
		return e, nil
	}
	return nil, errNotFound
}

// fakePageSource returns a page whose body encodes the ref; ids in fail are unavailable
type fakePageSource struct {
	fail  map[int]bool
	calls int32
}

func (p *fakePageSource) Fetch(_ context.Context, ref domain.ContentRef, lang string) (*domain.Page, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.fail[ref.CatalogID] {
		return nil, fmt.Errorf("%w: status 404", domain.ErrPageUnavailable)
	}
	return &domain.Page{URL: fmt.Sprintf("https://vixsrc.to/%d?lang=%s", ref.CatalogID, lang), Body: ref.String()}, nil
}

// fakeExtractor turns every page into a manifest; ids in noManifest fail extraction.
// offered restricts the tracks a page exposes.
type fakeExtractor struct {
	noManifest map[int]bool
	offered    []string
}

func (e *fakeExtractor) Extract(_ context.Context, page *domain.Page, ref domain.ContentRef, lang string) (*domain.ManifestResult, error) {
	if e.noManifest[ref.CatalogID] {
		return nil, &domain.ExtractionError{Ref: ref, Attempts: []domain.Strategy{domain.StrategyStructuredEmbed, domain.StrategyDirectPattern}}
	}
	resolved := lang
	if len(e.offered) > 0 {
		resolved = e.offered[0]
		for _, o := range e.offered {
			if o == lang {
				resolved = lang
			}
		}
	}
	return &domain.ManifestResult{
		URL:            fmt.Sprintf("https://vixsrc.to/playlist/%d?lang=%s", ref.CatalogID, resolved),
		AudioTrackHint: lang,
		ResolvedTrack:  resolved,
		Strategy:       domain.StrategyStructuredEmbed,
	}, nil
}

// fakeExecutor writes the destination file and records concurrency
type fakeExecutor struct {
	delay time.Duration

	mu        sync.Mutex
	order     []string
	running   int
	maxActive int
}

func (e *fakeExecutor) Run(ctx context.Context, req domain.DownloadRequest, sink domain.ProgressSink) error {
	if !req.Overwrite {
		if _, err := os.Stat(req.Destination); err == nil {
			return &domain.DownloadError{Kind: domain.DownloadAlreadyExists, Path: req.Destination}
		}
	}

	e.mu.Lock()
	e.running++
	if e.running > e.maxActive {
		e.maxActive = e.running
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running--
		e.order = append(e.order, req.Key)
		e.mu.Unlock()
	}()

	sink.Percent(req.Key, 50)
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return &domain.DownloadError{Kind: domain.DownloadExecutionFailed, Path: req.Destination, Reason: "cancelled", Err: ctx.Err()}
	}

	if err := os.WriteFile(req.Destination, []byte(req.ManifestURL), 0644); err != nil {
		return &domain.DownloadError{Kind: domain.DownloadExecutionFailed, Path: req.Destination, Reason: err.Error(), Err: err}
	}
	sink.Percent(req.Key, 100)
	return nil
}

func (e *fakeExecutor) completionOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// recordingSink keeps every progress event in arrival order
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) add(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Queued(key string)  { s.add("queued " + key) }
func (s *recordingSink) Started(key string) { s.add("started " + key) }
func (s *recordingSink) Percent(key string, p float64) {
	s.add(fmt.Sprintf("percent %s %.0f", key, p))
}
func (s *recordingSink) Finished(key string, ok bool) {
	s.add(fmt.Sprintf("finished %s %t", key, ok))
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}
