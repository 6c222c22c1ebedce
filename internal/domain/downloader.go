package domain

import "context"

// PageSource fetches the embed page for a piece of content
type PageSource interface {
	// Fetch returns the page for ref in the requested language
	Fetch(ctx context.Context, ref ContentRef, lang string) (*Page, error)
}

// ManifestExtractor recovers a manifest URL from an embed page
type ManifestExtractor interface {
	// Extract returns the first valid manifest found on the page
	Extract(ctx context.Context, page *Page, ref ContentRef, lang string) (*ManifestResult, error)
}

// DownloadRequest describes one engine invocation
type DownloadRequest struct {
	Key         string
	ManifestURL string
	Destination string
	Quality     string
	Lang        string
	Overwrite   bool
}

// DownloadExecutor drives an external engine to fetch a manifest into a file
type DownloadExecutor interface {
	// Run blocks until the engine exits or ctx is cancelled
	Run(ctx context.Context, req DownloadRequest, sink ProgressSink) error
}

// ProgressSink receives per-task progress events
type ProgressSink interface {
	Queued(key string)
	Started(key string)
	Percent(key string, percent float64)
	Finished(key string, ok bool)
}

// MovieInfo is catalog metadata for a movie
type MovieInfo struct {
	Title string
	Year  string
}

// ShowInfo is catalog metadata for a series
type ShowInfo struct {
	Name    string
	Year    string
	Seasons []int
}

// EpisodeInfo is catalog metadata for one episode
type EpisodeInfo struct {
	Number int
	Name   string
}

// Catalog resolves metadata and season/series listings
type Catalog interface {
	Movie(ctx context.Context, id int) (*MovieInfo, error)
	Show(ctx context.Context, id int) (*ShowInfo, error)
	Episodes(ctx context.Context, id, season int) ([]EpisodeInfo, error)
}

// NopProgressSink discards progress events
type NopProgressSink struct{}

func (NopProgressSink) Queued(string)           {}
func (NopProgressSink) Started(string)          {}
func (NopProgressSink) Percent(string, float64) {}
func (NopProgressSink) Finished(string, bool)   {}
