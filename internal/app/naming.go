package app

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

var (
	invalidFilenameChars = strings.NewReplacer("<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "")
	whitespaceRe         = regexp.MustCompile(`\s+`)
)

// Namer generates output paths from catalog metadata.
// A nil catalog or a failed lookup yields the id based fallback names.
type Namer struct {
	config  domain.NamingConfig
	catalog domain.Catalog
	logger  *zap.Logger
}

// NewNamer creates a new namer
func NewNamer(config domain.NamingConfig, catalog domain.Catalog, logger *zap.Logger) *Namer {
	if config.Extension == "" {
		config.Extension = "mp4"
	}
	return &Namer{config: config, catalog: catalog, logger: logger}
}

// Extension returns the configured file extension without the dot
func (n *Namer) Extension() string {
	return strings.TrimPrefix(n.config.Extension, ".")
}

// Path returns the path of ref relative to outputDir
func (n *Namer) Path(ctx context.Context, ref domain.ContentRef, outputDir string) string {
	if ref.Kind == domain.KindEpisode {
		return n.episodePath(ctx, ref, outputDir)
	}
	return n.movieName(ctx, ref.CatalogID)
}

func (n *Namer) movieName(ctx context.Context, id int) string {
	fallback := fmt.Sprintf("movie_%d.%s", id, n.Extension())
	if n.catalog == nil {
		return fallback
	}

	info, err := n.catalog.Movie(ctx, id)
	if err != nil || info.Title == "" {
		n.logger.Warn("Movie metadata unavailable, using basic filename",
			zap.Int("catalog_id", id),
			zap.Error(err))
		return fallback
	}

	return n.join(info.Title, info.Year)
}

func (n *Namer) episodePath(ctx context.Context, ref domain.ContentRef, outputDir string) string {
	fallback := fmt.Sprintf("tv_%d_s%02de%02d.%s", ref.CatalogID, ref.Season, ref.Episode, n.Extension())
	if n.catalog == nil {
		return fallback
	}

	show, err := n.catalog.Show(ctx, ref.CatalogID)
	if err != nil || show.Name == "" {
		n.logger.Warn("Show metadata unavailable, using basic filename",
			zap.String("ref", ref.String()),
			zap.Error(err))
		return fallback
	}

	episodeName := ""
	if episodes, err := n.catalog.Episodes(ctx, ref.CatalogID, ref.Season); err == nil {
		for _, e := range episodes {
			if e.Number == ref.Episode {
				episodeName = e.Name
				break
			}
		}
	} else {
		n.logger.Debug("Episode metadata unavailable", zap.String("ref", ref.String()), zap.Error(err))
	}

	code := fmt.Sprintf("S%02dE%02d", ref.Season, ref.Episode)
	filename := n.join(show.Name, code, episodeName)
	if !n.config.SeasonFolders {
		return filename
	}

	showDir := n.words(show.Name)
	if outputDir == "" && show.Year != "" {
		showDir = n.words(show.Name, show.Year)
	}
	seasonDir := fmt.Sprintf("Season %02d", ref.Season)
	if n.config.Style == domain.NamingSlug {
		seasonDir = fmt.Sprintf("season-%02d", ref.Season)
	}

	return filepath.Join(showDir, seasonDir, filename)
}

// join builds a filename out of non-empty parts plus the extension
func (n *Namer) join(parts ...string) string {
	return n.words(parts...) + "." + n.Extension()
}

// words renders non-empty parts as one path element in the configured style
func (n *Namer) words(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if n.config.Style != domain.NamingSlug {
			p = SanitizeFilename(strings.ReplaceAll(SanitizeFilename(p), " ", "."))
		}
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if n.config.Style == domain.NamingSlug {
		return slug.Make(strings.Join(kept, " "))
	}
	return strings.Join(kept, ".")
}

// SanitizeFilename removes characters that are invalid in file names,
// collapses whitespace and trims surrounding spaces and dots
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.Replace(name)
	name = whitespaceRe.ReplaceAllString(name, " ")
	return strings.Trim(name, " .")
}
