package domain

import "time"

// Strategy names an extraction strategy
type Strategy string

const (
	StrategyStructuredEmbed   Strategy = "structured_embed"
	StrategyDirectPattern     Strategy = "direct_pattern"
	StrategyEndpointDiscovery Strategy = "endpoint_discovery"
	StrategyIdentifier        Strategy = "identifier"
)

// Page is a fetched content embed page
type Page struct {
	URL  string
	Body string
}

// ManifestResult is the outcome of a successful extraction
type ManifestResult struct {
	URL            string     `json:"url"`
	AudioTrackHint string     `json:"audio_track_hint"`
	ResolvedTrack  string     `json:"resolved_track"`
	Expiry         time.Time  `json:"expiry,omitempty"`
	Strategy       Strategy   `json:"strategy"`
	Attempts       []Strategy `json:"attempts,omitempty"`
}

// Downgraded reports whether the page could not serve the requested audio track
func (m *ManifestResult) Downgraded() bool {
	return m.ResolvedTrack != m.AudioTrackHint
}

// Expired reports whether the manifest expiry has passed at the given time.
// A zero expiry never expires.
func (m *ManifestResult) Expired(now time.Time) bool {
	return !m.Expiry.IsZero() && now.After(m.Expiry)
}
