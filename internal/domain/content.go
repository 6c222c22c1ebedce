package domain

import (
	"fmt"
	"strconv"
)

// ContentKind identifies what a ContentRef points at
type ContentKind string

const (
	KindMovie   ContentKind = "movie"   // A single video
	KindEpisode ContentKind = "episode" // One episode of a series
	KindSeason  ContentKind = "season"  // Every episode of one season
	KindSeries  ContentKind = "series"  // Every episode of every season
)

// ContentRef identifies content by its external catalog ID.
// It is a value type; construct it with the New*Ref helpers.
type ContentRef struct {
	Kind      ContentKind `json:"kind" gorm:"not null"`
	CatalogID int         `json:"catalog_id" gorm:"not null;index"`
	Season    int         `json:"season,omitempty"`
	Episode   int         `json:"episode,omitempty"`
}

// NewMovieRef creates a reference to a single video
func NewMovieRef(id int) ContentRef {
	return ContentRef{Kind: KindMovie, CatalogID: id}
}

// NewEpisodeRef creates a reference to one episode
func NewEpisodeRef(id, season, episode int) ContentRef {
	return ContentRef{Kind: KindEpisode, CatalogID: id, Season: season, Episode: episode}
}

// NewSeasonRef creates a reference to a whole season
func NewSeasonRef(id, season int) ContentRef {
	return ContentRef{Kind: KindSeason, CatalogID: id, Season: season}
}

// NewSeriesRef creates a reference to a whole series
func NewSeriesRef(id int) ContentRef {
	return ContentRef{Kind: KindSeries, CatalogID: id}
}

// Validate checks that the reference is well formed for its kind
func (r ContentRef) Validate() error {
	if r.CatalogID <= 0 {
		return fmt.Errorf("invalid catalog id: %d", r.CatalogID)
	}

	switch r.Kind {
	case KindMovie, KindSeries:
		return nil
	case KindSeason:
		if r.Season < 0 {
			return fmt.Errorf("invalid season number: %d", r.Season)
		}
		return nil
	case KindEpisode:
		if r.Season < 0 {
			return fmt.Errorf("invalid season number: %d", r.Season)
		}
		if r.Episode < 1 {
			return fmt.Errorf("invalid episode number: %d", r.Episode)
		}
		return nil
	default:
		return fmt.Errorf("unknown content kind: %q", r.Kind)
	}
}

// IsTV reports whether the reference belongs to a series
func (r ContentRef) IsTV() bool {
	return r.Kind == KindEpisode || r.Kind == KindSeason || r.Kind == KindSeries
}

// NeedsExpansion reports whether the reference must be resolved into episodes
func (r ContentRef) NeedsExpansion() bool {
	return r.Kind == KindSeason || r.Kind == KindSeries
}

// String returns a short human readable label
func (r ContentRef) String() string {
	id := strconv.Itoa(r.CatalogID)
	switch r.Kind {
	case KindMovie:
		return "Movie " + id
	case KindEpisode:
		return fmt.Sprintf("TV %s S%02dE%02d", id, r.Season, r.Episode)
	case KindSeason:
		return fmt.Sprintf("TV %s S%02d", id, r.Season)
	case KindSeries:
		return "TV " + id
	default:
		return string(r.Kind) + " " + id
	}
}
