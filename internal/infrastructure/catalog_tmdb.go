package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	tmdb "github.com/cyruzin/golang-tmdb"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

// ErrCatalogDisabled is returned when no API key is configured
var ErrCatalogDisabled = errors.New("catalog disabled: no TMDB API key")

// tmdbAPIPath is the path prefix the TMDB client puts on every request
const tmdbAPIPath = "/3"

// TMDBCatalog implements domain.Catalog against the TMDB v3 REST API.
// Show and season lookups are memoized for the lifetime of the client.
type TMDBCatalog struct {
	client *tmdb.Client
	logger *zap.Logger

	mu       sync.Mutex
	shows    map[int]*domain.ShowInfo
	episodes map[[2]int][]domain.EpisodeInfo
}

// NewTMDBCatalog creates a new TMDB client
func NewTMDBCatalog(config *domain.CatalogConfig, logger *zap.Logger) (*TMDBCatalog, error) {
	if config.APIKey == "" {
		return nil, ErrCatalogDisabled
	}

	client, err := tmdb.Init(config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create TMDB client: %w", err)
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid catalog base url: %q", config.BaseURL)
	}
	client.SetClientConfig(http.Client{
		Timeout:   config.Timeout,
		Transport: &baseURLTransport{base: base, next: http.DefaultTransport},
	})

	return &TMDBCatalog{
		client:   client,
		logger:   logger,
		shows:    make(map[int]*domain.ShowInfo),
		episodes: make(map[[2]int][]domain.EpisodeInfo),
	}, nil
}

// baseURLTransport sends TMDB requests to the configured API root, so a
// proxy or a local test server can stand in for api.themoviedb.org
type baseURLTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.URL.Path = t.base.Path + strings.TrimPrefix(req.URL.Path, tmdbAPIPath)
	out.URL.RawPath = ""
	out.Host = ""
	return t.next.RoundTrip(out)
}

// Movie returns title and release year for a movie
func (c *TMDBCatalog) Movie(ctx context.Context, id int) (*domain.MovieInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("Catalog request", zap.String("kind", "movie"), zap.Int("id", id))
	movie, err := c.client.GetMovieDetails(id, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup movie %d: %w", id, err)
	}
	return &domain.MovieInfo{Title: movie.Title, Year: yearOf(movie.ReleaseDate)}, nil
}

// Show returns name, first air year and the season numbers that have episodes
func (c *TMDBCatalog) Show(ctx context.Context, id int) (*domain.ShowInfo, error) {
	c.mu.Lock()
	cached, ok := c.shows[id]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("Catalog request", zap.String("kind", "show"), zap.Int("id", id))
	show, err := c.client.GetTVDetails(id, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup show %d: %w", id, err)
	}

	info := &domain.ShowInfo{Name: show.Name, Year: yearOf(show.FirstAirDate)}
	for _, s := range show.Seasons {
		if s.EpisodeCount > 0 {
			info.Seasons = append(info.Seasons, int(s.SeasonNumber))
		}
	}
	sort.Ints(info.Seasons)

	c.mu.Lock()
	c.shows[id] = info
	c.mu.Unlock()
	return info, nil
}

// Episodes lists the episodes of one season in episode order
func (c *TMDBCatalog) Episodes(ctx context.Context, id, season int) ([]domain.EpisodeInfo, error) {
	key := [2]int{id, season}
	c.mu.Lock()
	cached, ok := c.episodes[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("Catalog request", zap.String("kind", "season"), zap.Int("id", id), zap.Int("season", season))
	details, err := c.client.GetTVSeasonDetails(id, season, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup show %d season %d: %w", id, season, err)
	}

	episodes := make([]domain.EpisodeInfo, 0, len(details.Episodes))
	for _, e := range details.Episodes {
		episodes = append(episodes, domain.EpisodeInfo{Number: int(e.EpisodeNumber), Name: e.Name})
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Number < episodes[j].Number })

	c.mu.Lock()
	c.episodes[key] = episodes
	c.mu.Unlock()
	return episodes, nil
}

func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}
