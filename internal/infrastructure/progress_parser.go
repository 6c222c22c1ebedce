package infrastructure

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	templateProgressRe = regexp.MustCompile(`PROGRESS:\s*(\d+(?:\.\d+)?)%`)
	nativeProgressRe   = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)
	ffmpegDurationRe   = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	ffmpegTimeRe       = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// ProgressParser turns engine output lines into monotonic percent values
type ProgressParser struct {
	percent        float64
	duration       float64
	lastDiagnostic string
}

// NewProgressParser creates a new parser
func NewProgressParser() *ProgressParser {
	return &ProgressParser{percent: -1}
}

// Feed consumes one output line. It returns the new percentage and true
// when the line advanced progress.
func (p *ProgressParser) Feed(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false
	}

	if m := templateProgressRe.FindStringSubmatch(line); m != nil {
		return p.advance(parseFloat(m[1]))
	}
	if m := nativeProgressRe.FindStringSubmatch(line); m != nil {
		return p.advance(parseFloat(m[1]))
	}
	if m := ffmpegDurationRe.FindStringSubmatch(line); m != nil {
		p.duration = clockSeconds(m[1], m[2], m[3])
	}
	if m := ffmpegTimeRe.FindStringSubmatch(line); m != nil {
		if p.duration > 0 {
			return p.advance(clockSeconds(m[1], m[2], m[3]) / p.duration * 100)
		}
		return 0, false
	}

	p.lastDiagnostic = line
	return 0, false
}

// Percent returns the highest percentage seen, or -1 before any progress
func (p *ProgressParser) Percent() float64 {
	return p.percent
}

// LastDiagnostic returns the last non-progress line
func (p *ProgressParser) LastDiagnostic() string {
	return p.lastDiagnostic
}

func (p *ProgressParser) advance(percent float64) (float64, bool) {
	if percent > 100 {
		percent = 100
	}
	if percent <= p.percent {
		return p.percent, false
	}
	p.percent = percent
	return percent, true
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func clockSeconds(h, m, s string) float64 {
	return parseFloat(h)*3600 + parseFloat(m)*60 + parseFloat(s)
}
