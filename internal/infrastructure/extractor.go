package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

var (
	playlistURLRe  = regexp.MustCompile(`url\s*:\s*['"]([^'"]+)['"]`)
	tokenRe        = regexp.MustCompile(`(?:^|[^\w'"])['"]?token['"]?\s*:\s*['"]([^'"]+)['"]`)
	expiresRe      = regexp.MustCompile(`(?:^|[^\w'"])['"]?expires['"]?\s*:\s*['"]?(\d+)['"]?`)
	asnRe          = regexp.MustCompile(`(?:^|[^\w'"])['"]?asn['"]?\s*:\s*['"]([^'"]*)['"]`)
	apiEndpointRe  = regexp.MustCompile(`["'](/api/[^"']+)["']`)
	videoIDRe      = regexp.MustCompile(`(?i)video[_-]?id["']?\s*[:=]\s*["']?(\d+)`)
	errExpiredLike = errors.New("manifest expiry already passed")
)

const (
	masterPlaylistMarker = "window.masterPlaylist"
	audioTracksMarker    = "window.audioTracks"
	maxEndpointBody      = 1 << 20
)

// VixSrcExtractor implements ManifestExtractor with an ordered strategy chain
type VixSrcExtractor struct {
	config   *domain.ProviderConfig
	baseURL  *url.URL
	client   *http.Client
	logger   *zap.Logger
	directRe *regexp.Regexp
	now      func() time.Time
}

// candidate is a manifest URL found by a strategy before normalization
type candidate struct {
	rawURL  string
	token   string
	expires string
	asn     string
}

type extractStrategy struct {
	name domain.Strategy
	find func(ctx context.Context, in *pageInput) (*candidate, error)
}

// pageInput is the parsed view of a page shared by all strategies
type pageInput struct {
	page    *domain.Page
	ref     domain.ContentRef
	doc     *goquery.Document
	scripts []string
	body     string
	tracks   []audioTrack
	pageLang string
}

type audioTrack struct {
	Lang     string `json:"lang"`
	Language string `json:"language"`
	Default  bool   `json:"default"`
}

func (t audioTrack) code() string {
	if t.Lang != "" {
		return t.Lang
	}
	return t.Language
}

// NewVixSrcExtractor creates a new extractor
func NewVixSrcExtractor(config *domain.ProviderConfig, client *http.Client, logger *zap.Logger) (*VixSrcExtractor, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid provider base url: %q", config.BaseURL)
	}

	directRe := regexp.MustCompile(`(?:https?:)?//` + regexp.QuoteMeta(base.Host) + `/playlist/(\d+)\?[^"'\s<>\\]*`)

	return &VixSrcExtractor{
		config:   config,
		baseURL:  base,
		client:   client,
		logger:   logger,
		directRe: directRe,
		now:      time.Now,
	}, nil
}

// SetClock replaces the time source used for expiry checks
func (e *VixSrcExtractor) SetClock(now func() time.Time) {
	e.now = now
}

func (e *VixSrcExtractor) strategies() []extractStrategy {
	return []extractStrategy{
		{domain.StrategyStructuredEmbed, e.findStructuredEmbed},
		{domain.StrategyDirectPattern, e.findDirectPattern},
		{domain.StrategyEndpointDiscovery, e.findViaEndpoint},
		{domain.StrategyIdentifier, e.findByIdentifier},
	}
}

// Extract runs the strategies in priority order and returns the first valid manifest
func (e *VixSrcExtractor) Extract(ctx context.Context, page *domain.Page, ref domain.ContentRef, lang string) (*domain.ManifestResult, error) {
	if page == nil || strings.TrimSpace(page.Body) == "" {
		return nil, &domain.ExtractionError{Ref: ref}
	}

	in := newPageInput(page, ref)

	var attempts []domain.Strategy
	for _, s := range e.strategies() {
		attempts = append(attempts, s.name)

		cand, err := s.find(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Debug("Extraction strategy failed",
				zap.String("ref", ref.String()),
				zap.String("strategy", string(s.name)),
				zap.Error(err))
			continue
		}
		if cand == nil {
			continue
		}

		result, err := e.normalize(cand, in, lang)
		if err != nil {
			e.logger.Debug("Rejected manifest candidate",
				zap.String("ref", ref.String()),
				zap.String("strategy", string(s.name)),
				zap.Error(err))
			continue
		}

		result.Strategy = s.name
		result.Attempts = attempts
		e.logger.Debug("Manifest extracted",
			zap.String("ref", ref.String()),
			zap.String("strategy", string(s.name)),
			zap.String("resolved_track", result.ResolvedTrack))
		return result, nil
	}

	return nil, &domain.ExtractionError{Ref: ref, Attempts: attempts}
}

func newPageInput(page *domain.Page, ref domain.ContentRef) *pageInput {
	body := strings.ReplaceAll(page.Body, "&amp;", "&")
	in := &pageInput{
		page: page,
		ref:  ref,
		body: strings.ReplaceAll(body, `\/`, "/"),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err == nil {
		in.doc = doc
		if lang, ok := doc.Find("html").First().Attr("lang"); ok {
			in.pageLang = strings.TrimSpace(lang)
		}
		doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			if text := s.Text(); strings.TrimSpace(text) != "" {
				in.scripts = append(in.scripts, text)
			}
		})
	}

	for _, script := range in.scripts {
		lit, ok := extractLiteral(script, audioTracksMarker, '[', ']')
		if !ok {
			continue
		}
		var tracks []audioTrack
		if decodeJSLiteral(lit, &tracks) == nil {
			in.tracks = tracks
		}
		break
	}

	return in
}

// findStructuredEmbed decodes the masterPlaylist object assigned in a script block
func (e *VixSrcExtractor) findStructuredEmbed(_ context.Context, in *pageInput) (*candidate, error) {
	for _, script := range in.scripts {
		lit, ok := extractLiteral(script, masterPlaylistMarker, '{', '}')
		if !ok {
			continue
		}

		cand := decodeMasterPlaylist(lit)
		if cand == nil {
			cand = scanMasterPlaylist(lit)
		}
		if cand == nil || cand.rawURL == "" || cand.token == "" || cand.expires == "" {
			return nil, fmt.Errorf("incomplete masterPlaylist object")
		}
		return cand, nil
	}
	return nil, nil
}

func decodeMasterPlaylist(lit string) *candidate {
	var obj struct {
		URL    string                 `json:"url"`
		Params map[string]interface{} `json:"params"`
	}

	if err := decodeJSLiteral(lit, &obj); err != nil {
		return nil
	}

	return &candidate{
		rawURL:  obj.URL,
		token:   paramString(obj.Params["token"]),
		expires: paramString(obj.Params["expires"]),
		asn:     paramString(obj.Params["asn"]),
	}
}

// scanMasterPlaylist reads the fields with patterns when the literal is not decodable
func scanMasterPlaylist(lit string) *candidate {
	m := playlistURLRe.FindStringSubmatch(lit)
	if m == nil {
		return nil
	}
	cand := &candidate{rawURL: m[1]}
	if t := tokenRe.FindStringSubmatch(lit); t != nil {
		cand.token = t[1]
	}
	if x := expiresRe.FindStringSubmatch(lit); x != nil {
		cand.expires = x[1]
	}
	if a := asnRe.FindStringSubmatch(lit); a != nil {
		cand.asn = a[1]
	}
	return cand
}

func paramString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// findDirectPattern looks for a fully signed playlist URL anywhere in the page
func (e *VixSrcExtractor) findDirectPattern(_ context.Context, in *pageInput) (*candidate, error) {
	for _, match := range e.directRe.FindAllString(in.body, -1) {
		u, err := url.Parse(match)
		if err != nil {
			continue
		}
		q := u.Query()
		if q.Get("token") == "" || q.Get("expires") == "" {
			continue
		}
		return &candidate{rawURL: match}, nil
	}
	return nil, nil
}

// findViaEndpoint queries the first API endpoint referenced by the page
func (e *VixSrcExtractor) findViaEndpoint(ctx context.Context, in *pageInput) (*candidate, error) {
	m := apiEndpointRe.FindStringSubmatch(in.body)
	if m == nil {
		return nil, nil
	}

	endpoint, err := e.baseURL.Parse(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", m[1], err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", in.page.URL)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint %s returned HTTP %d", endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEndpointBody))
	if err != nil {
		return nil, err
	}

	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("endpoint %s returned invalid json: %w", endpoint, err)
	}

	found := findManifestString(payload)
	if found == "" {
		return nil, nil
	}
	return &candidate{rawURL: found}, nil
}

// findManifestString walks a decoded JSON value in a stable order
func findManifestString(v interface{}) string {
	switch val := v.(type) {
	case string:
		if strings.Contains(val, "m3u8") || strings.Contains(val, "/playlist/") {
			return val
		}
	case []interface{}:
		for _, item := range val {
			if s := findManifestString(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := findManifestString(val[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

// findByIdentifier builds the playlist URL from an internal video id
func (e *VixSrcExtractor) findByIdentifier(_ context.Context, in *pageInput) (*candidate, error) {
	id := ""
	if m := videoIDRe.FindStringSubmatch(in.body); m != nil {
		id = m[1]
	} else if in.doc != nil {
		if attr, ok := in.doc.Find("[data-video-id]").First().Attr("data-video-id"); ok {
			if _, err := strconv.Atoi(attr); err == nil {
				id = attr
			}
		}
	}
	if id == "" {
		return nil, nil
	}

	return &candidate{rawURL: e.baseURL.String() + "/playlist/" + id}, nil
}

// normalize validates a candidate and fixes its query parameters
func (e *VixSrcExtractor) normalize(cand *candidate, in *pageInput, lang string) (*domain.ManifestResult, error) {
	u, err := e.baseURL.Parse(strings.TrimSpace(cand.rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid manifest url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid manifest url: %s", cand.rawURL)
	}

	q := u.Query()
	fill := func(key, fromCandidate string, re *regexp.Regexp) {
		if q.Get(key) != "" {
			return
		}
		if fromCandidate != "" {
			q.Set(key, fromCandidate)
			return
		}
		if m := re.FindStringSubmatch(in.body); m != nil && m[1] != "" {
			q.Set(key, m[1])
		}
	}
	fill("token", cand.token, tokenRe)
	fill("expires", cand.expires, expiresRe)
	fill("asn", cand.asn, asnRe)
	if q.Get("asn") == "" {
		q.Del("asn")
	}

	var expiry time.Time
	if raw := q.Get("expires"); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			expiry = time.Unix(secs, 0)
			if expiry.Before(e.now()) {
				return nil, errExpiredLike
			}
		}
	}

	resolved := resolveTrack(in.tracks, lang, q.Get("lang"), in.pageLang)

	q.Set("h", "1")
	if resolved != "" {
		q.Set("lang", resolved)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return &domain.ManifestResult{
		URL:            u.String(),
		AudioTrackHint: lang,
		ResolvedTrack:  resolved,
		Expiry:         expiry,
	}, nil
}

// resolveTrack picks the requested language when the page offers it and
// otherwise falls back to the page's default track. Without track metadata
// the first non-empty fallback (manifest lang, then <html lang>) is the default.
func resolveTrack(tracks []audioTrack, requested string, fallbacks ...string) string {
	def := ""
	for _, t := range tracks {
		if t.Default {
			def = t.code()
			break
		}
	}
	if def == "" && len(tracks) > 0 {
		def = tracks[0].code()
	}
	for _, f := range fallbacks {
		if def != "" {
			break
		}
		def = f
	}

	if requested == "" {
		return def
	}
	if def == "" {
		return requested
	}

	for _, t := range tracks {
		if sameLanguage(t.code(), requested) {
			return requested
		}
	}
	if sameLanguage(def, requested) {
		return requested
	}
	return def
}

func sameLanguage(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	base := func(s string) string {
		if i := strings.IndexAny(s, "-_"); i > 0 {
			return s[:i]
		}
		return s
	}
	return a != "" && b != "" && strings.EqualFold(base(a), base(b))
}
