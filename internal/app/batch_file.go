package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/internal/infrastructure"
)

// BatchEntry is one requested download before planning.
// Empty Output, Lang and Quality mean "use the default".
type BatchEntry struct {
	Line    int               `json:"line,omitempty"`
	Ref     domain.ContentRef `json:"ref"`
	Output  string            `json:"output,omitempty"`
	Lang    string            `json:"lang,omitempty"`
	Quality string            `json:"quality,omitempty"`
}

// LineError reports a malformed batch file line
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseBatchFile reads a batch file from disk
func ParseBatchFile(path string) ([]BatchEntry, []*LineError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer file.Close()
	return ParseBatch(file)
}

// ParseBatch parses the line-oriented batch format:
//
//	movie ID [OUTPUT] [LANG] [QUALITY]
//	tv ID SEASON EPISODE [OUTPUT] [LANG] [QUALITY]
//
// Blank lines and lines starting with # are ignored and "-" selects the
// default for an optional field. Malformed lines are returned as LineErrors
// and produce no entry.
func ParseBatch(r io.Reader) ([]BatchEntry, []*LineError, error) {
	var entries []BatchEntry
	var lineErrs []*LineError

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		entry, err := parseBatchLine(strings.Fields(text))
		if err != nil {
			lineErrs = append(lineErrs, &LineError{Line: lineNo, Text: text, Err: err})
			continue
		}
		entry.Line = lineNo
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	return entries, lineErrs, nil
}

func parseBatchLine(fields []string) (BatchEntry, error) {
	var entry BatchEntry
	var optional []string

	switch strings.ToLower(fields[0]) {
	case "movie":
		if len(fields) < 2 {
			return entry, fmt.Errorf("movie needs an ID")
		}
		if len(fields) > 5 {
			return entry, fmt.Errorf("too many fields for movie")
		}
		id, err := parsePositive(fields[1], "ID")
		if err != nil {
			return entry, err
		}
		entry.Ref = domain.NewMovieRef(id)
		optional = fields[2:]

	case "tv":
		if len(fields) < 4 {
			return entry, fmt.Errorf("tv needs ID, SEASON and EPISODE")
		}
		if len(fields) > 7 {
			return entry, fmt.Errorf("too many fields for tv")
		}
		id, err := parsePositive(fields[1], "ID")
		if err != nil {
			return entry, err
		}
		season, err := strconv.Atoi(fields[2])
		if err != nil || season < 0 {
			return entry, fmt.Errorf("invalid season %q", fields[2])
		}
		episode, err := parsePositive(fields[3], "episode")
		if err != nil {
			return entry, err
		}
		entry.Ref = domain.NewEpisodeRef(id, season, episode)
		optional = fields[4:]

	default:
		return entry, fmt.Errorf("unknown content type %q", fields[0])
	}

	targets := []*string{&entry.Output, &entry.Lang, &entry.Quality}
	for i, value := range optional {
		if value != "-" {
			*targets[i] = value
		}
	}

	if entry.Quality != "" && !infrastructure.ValidQuality(entry.Quality) {
		return entry, fmt.Errorf("invalid quality %q", entry.Quality)
	}

	return entry, entry.Ref.Validate()
}

func parsePositive(s, name string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}
