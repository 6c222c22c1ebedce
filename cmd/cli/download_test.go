package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vixsrc-go/internal/domain"
)

func TestDownloadOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    downloadOptions
		wantErr string
	}{
		{"movie", downloadOptions{Movie: 550}, ""},
		{"series", downloadOptions{TV: 60625}, ""},
		{"season zero", downloadOptions{TV: 60625, SeasonSet: true}, ""},
		{"episode", downloadOptions{TV: 60625, Season: 4, SeasonSet: true, Episode: 1}, ""},
		{"batch", downloadOptions{Batch: "list.txt", Parallel: 3}, ""},
		{"url only movie", downloadOptions{Movie: 550, URLOnly: true}, ""},
		{"nothing requested", downloadOptions{}, "specify one of"},
		{"movie and tv", downloadOptions{Movie: 550, TV: 60625}, "mutually exclusive"},
		{"tv and batch", downloadOptions{TV: 60625, Batch: "list.txt"}, "mutually exclusive"},
		{"negative id", downloadOptions{Movie: -1}, "positive"},
		{"episode without season", downloadOptions{TV: 60625, Episode: 2}, "--episode requires --season"},
		{"season on movie", downloadOptions{Movie: 550, SeasonSet: true}, "require --tv"},
		{"url only batch", downloadOptions{Batch: "list.txt", URLOnly: true}, "--url-only"},
		{"url only season", downloadOptions{TV: 60625, Season: 1, SeasonSet: true, URLOnly: true}, "single movie or episode"},
		{"output with batch", downloadOptions{Batch: "list.txt", Output: "a.mp4"}, "--output"},
		{"negative parallel", downloadOptions{Movie: 550, Parallel: -2}, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDownloadOptions_Ref(t *testing.T) {
	assert.Equal(t, domain.NewMovieRef(550), downloadOptions{Movie: 550}.ref())
	assert.Equal(t, domain.NewSeriesRef(60625), downloadOptions{TV: 60625}.ref())
	assert.Equal(t, domain.NewSeasonRef(60625, 0), downloadOptions{TV: 60625, SeasonSet: true}.ref())
	assert.Equal(t, domain.NewEpisodeRef(60625, 4, 1), downloadOptions{TV: 60625, Season: 4, SeasonSet: true, Episode: 1}.ref())
}

func TestDownloadOptions_EntriesSingle(t *testing.T) {
	opts := downloadOptions{Movie: 550, Output: "fc.mp4"}

	entries, source, err := opts.entries(zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, domain.NewMovieRef(550), entries[0].Ref)
	assert.Equal(t, "fc.mp4", entries[0].Output)
	assert.Equal(t, "Movie 550", source)
}

func TestDownloadOptions_EntriesBatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("movie 550\nshow 1 2 3\ntv 60625 4 1 - it\n"), 0644))

	var stderr bytes.Buffer
	entries, source, err := downloadOptions{Batch: path}.entries(zap.NewNop(), &stderr)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, domain.NewMovieRef(550), entries[0].Ref)
	assert.Equal(t, domain.NewEpisodeRef(60625, 4, 1), entries[1].Ref)
	assert.Equal(t, "it", entries[1].Lang)
	assert.Equal(t, path, source)
	assert.Contains(t, stderr.String(), "line 2")
}

func TestDownloadOptions_EntriesMissingBatchFile(t *testing.T) {
	_, _, err := downloadOptions{Batch: filepath.Join(t.TempDir(), "missing.txt")}.entries(zap.NewNop(), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	config := &domain.Config{
		Provider: domain.ProviderConfig{DefaultLang: "en", Timeout: 30 * time.Second},
		Download: domain.DownloadConfig{Parallel: 1, DefaultQuality: "best", OutputDir: "/tmp/out", FragmentConcurrency: 5},
	}

	applyOverrides(config, downloadOptions{})
	assert.Equal(t, 1, config.Download.Parallel)
	assert.Equal(t, "best", config.Download.DefaultQuality)
	assert.Equal(t, 30*time.Second, config.Provider.Timeout)

	applyOverrides(config, downloadOptions{
		Parallel:         4,
		Quality:          "720",
		Lang:             "it,en",
		OutputDir:        "/srv/media",
		Timeout:          10,
		TMDBAPIKey:       "key",
		YTDLPConcurrency: 8,
		Overwrite:        true,
	})
	assert.Equal(t, 4, config.Download.Parallel)
	assert.Equal(t, "720", config.Download.DefaultQuality)
	assert.Equal(t, "it,en", config.Provider.DefaultLang)
	assert.Equal(t, "/srv/media", config.Download.OutputDir)
	assert.Equal(t, 10*time.Second, config.Provider.Timeout)
	assert.Equal(t, 10*time.Second, config.Catalog.Timeout)
	assert.Equal(t, "key", config.Catalog.APIKey)
	assert.Equal(t, 8, config.Download.FragmentConcurrency)
	assert.True(t, config.Download.Overwrite)
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	report := &domain.BatchReport{
		Total:     3,
		Succeeded: 2,
		Failed:    1,
		Failures: []domain.TaskFailure{
			{Position: 1, Label: "Movie 551 [en]", Kind: "page", Reason: "page returned 404"},
		},
		StartedAt:  start,
		FinishedAt: start.Add(65 * time.Second),
	}

	var out bytes.Buffer
	printSummary(&out, report)

	assert.Contains(t, out.String(), "2/3 succeeded, 1 failed in 1m5s")
	assert.Contains(t, out.String(), "  ✗ #2 Movie 551 [en] [page] page returned 404")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
