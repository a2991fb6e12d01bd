package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"callguard/internal/observability/metrics"
	pkgconfig "callguard/pkg/config"
	"callguard/pkg/resilience"
)

// PageConfig controls the page scraper's fetch limits.
type PageConfig struct {
	// Timeout bounds one page fetch end to end.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxBodySize caps the response body in bytes.
	// Default: 10MB
	MaxBodySize int64

	// MaxRedirects caps redirect hops; every hop is revalidated
	// against the private-IP policy.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs rejects URLs whose hostname resolves to loopback,
	// private, or link-local addresses. Page URLs come from scraped
	// feed content and are untrusted. Disable only in tests.
	// Default: true
	DenyPrivateIPs bool

	// MaxTextRunes trims extracted text to a rune budget. Zero keeps
	// the full text.
	// Default: 10000
	MaxTextRunes int
}

// DefaultPageConfig returns the default limits.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		MaxTextRunes:   10000,
	}
}

// Validate checks configuration correctness.
func (c *PageConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxBodySize < 1024 || c.MaxBodySize > 100*1024*1024 {
		return fmt.Errorf("max body size must be between 1KB and 100MB, got %d", c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	if c.MaxTextRunes < 0 || c.MaxTextRunes > 100000 {
		return fmt.Errorf("max text runes must be between 0 and 100000, got %d", c.MaxTextRunes)
	}
	return nil
}

// LoadPageConfigFromEnv loads page scraper limits from environment
// variables, falling back to defaults for unset or unparseable values.
//
// Environment variables:
//   - PAGE_FETCH_TIMEOUT: fetch timeout (e.g., "10s")
//   - PAGE_FETCH_MAX_BODY_SIZE: body cap in bytes
//   - PAGE_FETCH_MAX_REDIRECTS: redirect hop cap
//   - PAGE_FETCH_DENY_PRIVATE_IPS: private address policy
//   - PAGE_FETCH_MAX_TEXT_RUNES: extracted text budget
//
// Returns an error when the resulting configuration fails validation.
func LoadPageConfigFromEnv() (PageConfig, error) {
	defaults := DefaultPageConfig()

	cfg := PageConfig{
		Timeout:        pkgconfig.GetEnvDuration("PAGE_FETCH_TIMEOUT", defaults.Timeout),
		MaxBodySize:    int64(pkgconfig.GetEnvInt("PAGE_FETCH_MAX_BODY_SIZE", int(defaults.MaxBodySize))),
		MaxRedirects:   pkgconfig.GetEnvInt("PAGE_FETCH_MAX_REDIRECTS", defaults.MaxRedirects),
		DenyPrivateIPs: pkgconfig.GetEnvBool("PAGE_FETCH_DENY_PRIVATE_IPS", defaults.DenyPrivateIPs),
		MaxTextRunes:   pkgconfig.GetEnvInt("PAGE_FETCH_MAX_TEXT_RUNES", defaults.MaxTextRunes),
	}

	if err := cfg.Validate(); err != nil {
		return PageConfig{}, fmt.Errorf("invalid page fetch configuration: %w", err)
	}

	return cfg, nil
}

// Page is the readable content extracted from one web page.
type Page struct {
	// URL is the final URL after redirects.
	URL string

	// Title is the article title, from extraction or the title tag.
	Title string

	// Description is the page description from meta tags, or the
	// extraction excerpt when no tag is present.
	Description string

	// SiteName is the publishing site's name when the page declares
	// one.
	SiteName string

	// Text is the extracted readable text, trimmed to the configured
	// rune budget.
	Text string
}

// PageScraper fetches a web page and extracts its readable text and
// metadata. Every fetched URL and every redirect target is validated
// against the private-IP policy before it is touched.
type PageScraper struct {
	config PageConfig
	client *http.Client
	logger *slog.Logger
}

// NewPageScraper creates a scraper with its own hardened HTTP client.
// The redirect policy enforces the hop cap and revalidates each target.
func NewPageScraper(cfg PageConfig, logger *slog.Logger) *PageScraper {
	if logger == nil {
		logger = slog.Default()
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return &resilience.ValidationError{
					Field:   "url",
					Message: fmt.Sprintf("stopped after %d redirects", cfg.MaxRedirects),
				}
			}
			return validateScrapeURL(req.URL.String(), cfg.DenyPrivateIPs)
		},
	}

	return &PageScraper{config: cfg, client: client, logger: logger}
}

// Fetch retrieves the page and extracts its readable content.
func (s *PageScraper) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	key := PageDependencyKey(pageURL)

	if err := validateScrapeURL(pageURL, s.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &resilience.ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("invalid page URL: %v", err),
		}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordPageFetchFailed()
		// Redirect policy rejections come back wrapped in url.Error
		// with their classification intact; everything else is a
		// transport failure.
		var tagged interface{ Kind() resilience.Kind }
		if errors.As(err, &tagged) {
			return nil, err
		}
		return nil, &resilience.NetworkError{Op: "fetch page " + pageURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordPageFetchFailed()
		return nil, classifyStatus(key, resp, "page")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodySize+1))
	if err != nil {
		metrics.RecordPageFetchFailed()
		return nil, &resilience.NetworkError{Op: "read page body", Err: err}
	}
	if int64(len(body)) > s.config.MaxBodySize {
		metrics.RecordPageFetchFailed()
		return nil, &resilience.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("page body exceeds %d bytes", s.config.MaxBodySize),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !textualContent(contentType, body) {
		metrics.RecordPageFetchFailed()
		return nil, &resilience.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("page is not textual content (content type %q)", contentType),
		}
	}

	// Redirects may have moved us; resolve extraction against the
	// final URL.
	page, err := s.extract(resp.Request.URL, body)
	if err != nil {
		metrics.RecordPageFetchFailed()
		return nil, err
	}

	metrics.RecordPageFetchSuccess(len(body))
	s.logger.Debug("page fetched",
		slog.String("url", pageURL),
		slog.Int("bytes", len(body)),
		slog.Int("text_runes", utf8.RuneCountInString(page.Text)))

	return page, nil
}

// extract runs readability for the main text and goquery for document
// metadata over the same body.
func (s *PageScraper) extract(finalURL *url.URL, body []byte) (*Page, error) {
	article, err := readability.FromReader(bytes.NewReader(body), finalURL)
	if err != nil {
		return nil, &resilience.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("content extraction failed: %v", err),
		}
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		text = strings.TrimSpace(article.Content)
		if text != "" {
			s.logger.Debug("text extraction empty, using HTML content",
				slog.String("url", finalURL.String()))
		}
	}
	if text == "" {
		return nil, &resilience.ValidationError{
			Field:   "content",
			Message: "no readable content found",
		}
	}
	if s.config.MaxTextRunes > 0 {
		text = truncateRunes(text, s.config.MaxTextRunes)
	}

	page := &Page{
		URL:         finalURL.String(),
		Title:       article.Title,
		Description: article.Excerpt,
		SiteName:    article.SiteName,
		Text:        text,
	}

	if doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(body)); docErr == nil {
		if desc := pageDescription(doc); desc != "" {
			page.Description = desc
		}
		if page.Title == "" {
			page.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		if page.SiteName == "" {
			page.SiteName = metaContent(doc, "meta[property='og:site_name']")
		}
	}

	return page, nil
}

// pageDescription prefers the og:description meta tag over the plain
// description tag.
func pageDescription(doc *goquery.Document) string {
	if v := metaContent(doc, "meta[property='og:description']"); v != "" {
		return v
	}
	return metaContent(doc, "meta[name='description']")
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// textualContent reports whether the response looks like HTML or text.
// Servers occasionally omit the header; sniff the body then.
func textualContent(contentType string, body []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/xhtml+xml", mediaType == "application/xml":
		return true
	default:
		return false
	}
}
