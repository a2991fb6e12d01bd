package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"callguard/pkg/resilience"
)

// maxFeedBytes bounds how much of a feed response is read.
const maxFeedBytes = 10 * 1024 * 1024 // 10MB

// FeedItem is one entry scraped from an RSS or Atom feed.
type FeedItem struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// FeedScraper fetches and parses RSS and Atom feeds through an
// injected HTTP client. Feed URLs come from operator configuration and
// are trusted; page URLs discovered inside feed items are not, and go
// through the page scraper's validation instead.
type FeedScraper struct {
	client *http.Client
	limits *resilience.RateLimitTracker
	logger *slog.Logger
}

// NewFeedScraper creates a scraper.
//
// Parameters:
//   - client: HTTP client for feed requests; nil builds a default one
//   - limits: shared tracker receiving quota headers; may be nil
//   - logger: structured logger; nil uses slog.Default()
func NewFeedScraper(client *http.Client, limits *resilience.RateLimitTracker, logger *slog.Logger) *FeedScraper {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedScraper{client: client, limits: limits, logger: logger}
}

// Fetch retrieves the feed and returns its items. The response is
// fetched directly rather than through gofeed's URL helper so that
// status codes and rate-limit headers stay visible for classification.
func (f *FeedScraper) Fetch(ctx context.Context, feedURL string) ([]FeedItem, error) {
	key := FeedDependencyKey(feedURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &resilience.ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("invalid feed URL: %v", err),
		}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &resilience.NetworkError{Op: "fetch feed " + feedURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if f.limits != nil {
		if info, ok := rateLimitFromHeaders(key, resp.Header, time.Now()); ok {
			f.limits.Update(key, info)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(key, resp, "feed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, &resilience.NetworkError{Op: "read feed body", Err: err}
	}
	if len(body) > maxFeedBytes {
		return nil, &resilience.ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("feed body exceeds %d bytes", maxFeedBytes),
		}
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, &resilience.ServiceError{
			DependencyKey: key,
			Err:           fmt.Errorf("parse feed: %w", err),
		}
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}

		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}

		// Prefer the full content body, fall back to the summary.
		content := it.Content
		if content == "" {
			content = it.Description
		}

		items = append(items, FeedItem{
			Title:       it.Title,
			URL:         it.Link,
			Content:     content,
			PublishedAt: pubAt,
		})
	}

	f.logger.Debug("feed fetched",
		slog.String("url", feedURL),
		slog.String("feed_title", feed.Title),
		slog.Int("items", len(items)))

	return items, nil
}
