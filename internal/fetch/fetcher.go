// Package fetch retrieves and parses feed documents.
//
// The fetcher implements the [feed.Reader] contract: it performs the
// HTTP request with conditional-GET validators, enforces a global
// inter-request rate limit, and parses the body with gofeed. Failures are
// classified so the scheduler can log transport errors, bad statuses, and
// malformed bodies distinctly, though all of them take the backoff path.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/jfarrow/feedpoll/internal/feed"
)

// maxBodySize caps the feed document we are willing to read. Feeds larger
// than this are almost certainly not feeds.
const maxBodySize = 2 << 20 // 2MB

// connection pooling limits to prevent resource exhaustion when polling many sources
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

const (
	// DefaultTimeout bounds each feed request.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the minimum spacing between any two requests
	// issued by one fetcher, across all sources.
	DefaultRateLimit = time.Second

	// summaryLimit truncates content used as a fallback summary.
	summaryLimit = 500
)

// Classified fetch failures. All of them send the source into backoff;
// the distinction exists for logs and metrics.
var (
	// ErrHTTPStatus indicates the server answered with a non-2xx,
	// non-304 status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrMalformed indicates the body could not be parsed as a feed.
	ErrMalformed = errors.New("malformed feed document")
)

// userAgents is rotated across requests so a single UA string does not
// dominate any one server's logs.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (macOS; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Gecko/20100101 Firefox/89.0",
}

// Fetcher is a [feed.Reader] backed by a pooled HTTP client.
//
// The client applies per-request timeouts via context rather than a global
// client timeout. The connection pool is shared, read-mostly state that is
// safe for concurrent use; Fetch may be called from many poll workers at
// once.
type Fetcher struct {
	client  *http.Client
	parser  *gofeed.Parser
	limiter *rate.Limiter
	timeout time.Duration
	counter atomic.Uint64
}

// Option configures a [Fetcher].
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout. Defaults to [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRateLimit sets the minimum spacing between requests. Defaults to
// [DefaultRateLimit]. A zero or negative value disables the limiter.
func WithRateLimit(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			f.limiter = nil
		}
	}
}

// New creates a [Fetcher].
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Every(DefaultRateLimit), 1),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements [feed.Reader].
//
// The rate limiter is awaited before the request goes out, so a burst of
// due sources still reaches the network one request per rate-limit window.
// A 304 response short-circuits to NotModified with the cached validators
// untouched.
func (f *Fetcher) Fetch(ctx context.Context, url string, cached feed.Validators) (feed.FetchResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return feed.FetchResult{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return feed.FetchResult{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}
	if cached.LastModified != "" {
		req.Header.Set("If-Modified-Since", cached.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return feed.FetchResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return feed.FetchResult{NotModified: true, Validators: cached}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return feed.FetchResult{}, fmt.Errorf("%w: %d %s", ErrHTTPStatus, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return feed.FetchResult{}, fmt.Errorf("read body: %w", err)
	}

	doc, err := f.parser.ParseString(string(body))
	if err != nil {
		return feed.FetchResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	result := feed.FetchResult{
		Entries: convertItems(doc.Items),
		Validators: feed.Validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}
	if doc.UpdatedParsed != nil {
		result.FeedUpdated = *doc.UpdatedParsed
	}
	return result, nil
}

// Close releases idle pooled connections. The fetcher remains usable.
func (f *Fetcher) Close() {
	if transport, ok := f.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// nextUserAgent rotates through the user-agent list.
func (f *Fetcher) nextUserAgent() string {
	n := f.counter.Add(1)
	return userAgents[n%uint64(len(userAgents))]
}

// convertItems maps gofeed items to [feed.Entry] values. The Source
// field is left empty; the scheduler stamps it with the source name.
func convertItems(items []*gofeed.Item) []feed.Entry {
	now := time.Now().UTC()
	entries := make([]feed.Entry, 0, len(items))

	for _, item := range items {
		summary := item.Description
		if summary == "" && item.Content != "" {
			summary = truncate(item.Content, summaryLimit)
		}

		entries = append(entries, feed.Entry{
			Title:     item.Title,
			Link:      item.Link,
			Published: item.Published,
			Summary:   summary,
			Timestamp: now,
		})
	}
	return entries
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
// Rune-aware to avoid breaking UTF-8 sequences.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
}
