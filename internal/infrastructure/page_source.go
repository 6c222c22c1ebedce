package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

const maxPageSize = 10 << 20

// NewHTTPClient creates the HTTP client shared by the page source and the extractor
func NewHTTPClient(config *domain.ProviderConfig) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: config.Timeout,
		Jar:     jar,
	}
}

// HTTPPageSource implements PageSource against the provider's embed pages
type HTTPPageSource struct {
	config *domain.ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPPageSource creates a new page source
func NewHTTPPageSource(config *domain.ProviderConfig, client *http.Client, logger *zap.Logger) *HTTPPageSource {
	return &HTTPPageSource{
		config: config,
		client: client,
		logger: logger,
	}
}

// EmbedURL builds the embed page URL for a movie or episode
func (s *HTTPPageSource) EmbedURL(ref domain.ContentRef, lang string) (string, error) {
	base := strings.TrimRight(s.config.BaseURL, "/")

	var path string
	switch ref.Kind {
	case domain.KindMovie:
		path = fmt.Sprintf("%s/movie/%d", base, ref.CatalogID)
	case domain.KindEpisode:
		path = fmt.Sprintf("%s/tv/%d/%d/%d", base, ref.CatalogID, ref.Season, ref.Episode)
	default:
		return "", fmt.Errorf("%s must be expanded before fetching", ref)
	}

	if lang == "" {
		return path, nil
	}
	return path + "?lang=" + url.QueryEscape(lang), nil
}

// Fetch downloads the embed page
func (s *HTTPPageSource) Fetch(ctx context.Context, ref domain.ContentRef, lang string) (*domain.Page, error) {
	pageURL, err := s.EmbedURL(ref, lang)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Referer", strings.TrimRight(s.config.BaseURL, "/")+"/")
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}

	s.logger.Debug("Fetching embed page", zap.String("ref", ref.String()), zap.String("url", pageURL))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", domain.ErrPageUnavailable, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", domain.ErrPageUnavailable, err)
	}

	return &domain.Page{URL: pageURL, Body: string(body)}, nil
}
