package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errFailed signals a non-zero exit whose cause was already reported
var errFailed = errors.New("failed")

var (
	configPath  string
	verbose     bool
	serverURL   string
	noAutoStart bool

	dlOpts downloadOptions

	rootCmd = &cobra.Command{
		Use:   "vixsrc",
		Short: "VixSrc downloader - fetch movies and episodes by TMDB id",
		Long: `Download movies and TV episodes from VixSrc by their TMDB ids.

Single items:
  vixsrc --movie 550
  vixsrc --tv 60625 --season 4 --episode 1 --lang it
Whole seasons or series (needs a TMDB API key):
  vixsrc --tv 60625 --season 4 -p 3
Batch files:
  vixsrc --batch list.txt --output-dir /media -p 3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dlOpts.SeasonSet = cmd.Flags().Changed("season")
			return runDownload(dlOpts)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./configs, ~/.vixsrc or /etc/vixsrc)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	flags := rootCmd.Flags()
	flags.IntVar(&dlOpts.Movie, "movie", 0, "TMDB movie id")
	flags.IntVar(&dlOpts.TV, "tv", 0, "TMDB series id")
	flags.IntVar(&dlOpts.Season, "season", 0, "Season number (with --tv)")
	flags.IntVar(&dlOpts.Episode, "episode", 0, "Episode number (with --tv and --season)")
	flags.StringVar(&dlOpts.Batch, "batch", "", "Batch file with one request per line")
	flags.IntVarP(&dlOpts.Parallel, "parallel", "p", 0, "Concurrent downloads (default from config)")
	flags.StringVarP(&dlOpts.Quality, "quality", "q", "", "best, worst or a target height such as 720")
	flags.StringVar(&dlOpts.Lang, "lang", "", "Audio language, comma separated for several (default from config)")
	flags.StringVarP(&dlOpts.Output, "output", "o", "", "Output file for a single download")
	flags.StringVarP(&dlOpts.OutputDir, "output-dir", "d", "", "Directory for generated file names")
	flags.BoolVar(&dlOpts.URLOnly, "url-only", false, "Print the manifest URL instead of downloading")
	flags.IntVar(&dlOpts.Timeout, "timeout", 0, "HTTP timeout in seconds")
	flags.StringVar(&dlOpts.TMDBAPIKey, "tmdb-api-key", "", "TMDB API key (default: TMDB_API_KEY)")
	flags.BoolVar(&dlOpts.NoMetadata, "no-metadata", false, "Skip TMDB lookups and use id based names")
	flags.IntVar(&dlOpts.YTDLPConcurrency, "ytdlp-concurrency", 0, "Concurrent fragment downloads per yt-dlp process")
	flags.BoolVar(&dlOpts.Overwrite, "overwrite", false, "Replace existing files")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
