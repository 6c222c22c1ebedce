package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

func dottedConfig() domain.NamingConfig {
	return domain.NamingConfig{Style: domain.NamingDotted, Extension: "mp4", SeasonFolders: true}
}

func TestNamer_Movie(t *testing.T) {
	ctx := context.Background()
	n := NewNamer(dottedConfig(), newFakeCatalog(), zap.NewNop())

	assert.Equal(t, "Fight.Club.1999.mp4", n.Path(ctx, domain.NewMovieRef(550), ""))
	assert.Equal(t, "movie_27205.mp4", n.Path(ctx, domain.NewMovieRef(27205), ""))
}

func TestNamer_Episode(t *testing.T) {
	ctx := context.Background()
	n := NewNamer(dottedConfig(), newFakeCatalog(), zap.NewNop())
	ref := domain.NewEpisodeRef(60625, 4, 1)

	assert.Equal(t,
		filepath.Join("Rick.and.Morty.2013", "Season 04", "Rick.and.Morty.S04E01.Edge.of.Tomorty.Rick,.Die,.Rickpeat.mp4"),
		n.Path(ctx, ref, ""))

	// year is only part of the show folder without an output dir
	assert.Equal(t,
		filepath.Join("Rick.and.Morty", "Season 04", "Rick.and.Morty.S04E01.Edge.of.Tomorty.Rick,.Die,.Rickpeat.mp4"),
		n.Path(ctx, ref, "/media"))

	// unknown episode keeps the show and code
	assert.Equal(t,
		filepath.Join("Rick.and.Morty", "Season 07", "Rick.and.Morty.S07E03.mp4"),
		n.Path(ctx, domain.NewEpisodeRef(60625, 7, 3), "/media"))
}

func TestNamer_Fallbacks(t *testing.T) {
	ctx := context.Background()

	noCatalog := NewNamer(dottedConfig(), nil, zap.NewNop())
	assert.Equal(t, "tv_60625_s04e01.mp4", noCatalog.Path(ctx, domain.NewEpisodeRef(60625, 4, 1), ""))
	assert.Equal(t, "movie_550.mp4", noCatalog.Path(ctx, domain.NewMovieRef(550), ""))

	broken := newFakeCatalog()
	broken.err = errors.New("timeout")
	n := NewNamer(dottedConfig(), broken, zap.NewNop())
	assert.Equal(t, "tv_60625_s04e01.mp4", n.Path(ctx, domain.NewEpisodeRef(60625, 4, 1), ""))
}

func TestNamer_SlugStyle(t *testing.T) {
	ctx := context.Background()
	n := NewNamer(domain.NamingConfig{Style: domain.NamingSlug, Extension: ".mkv", SeasonFolders: true}, newFakeCatalog(), zap.NewNop())

	assert.Equal(t, "fight-club-1999.mkv", n.Path(ctx, domain.NewMovieRef(550), ""))
	assert.Equal(t,
		filepath.Join("rick-and-morty", "season-01", "rick-and-morty-s01e02-lawnmower-dog.mkv"),
		n.Path(ctx, domain.NewEpisodeRef(60625, 1, 2), "/media"))
}

func TestNamer_NoSeasonFolders(t *testing.T) {
	config := dottedConfig()
	config.SeasonFolders = false
	n := NewNamer(config, newFakeCatalog(), zap.NewNop())

	assert.Equal(t, "Rick.and.Morty.S01E01.Pilot.mp4", n.Path(context.Background(), domain.NewEpisodeRef(60625, 1, 1), ""))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"Fight Club", "Fight Club"},
		{`What/If: "Why?" <Now>|*`, "WhatIf Why Now"},
		{"  spaced   out  ", "spaced out"},
		{"...dots...", "dots"},
		{`back\slash`, "backslash"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeFilename(tt.input), tt.input)
	}
}
