// Package fetch provides origin loaders for timing documents: an HTTP
// client for published content and a directory loader for local corpora.
// Both satisfy cache.Loader.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/lessoncast/readalong/internal/cache"
)

// Defaults for the HTTP loader.
const (
	DefaultTimeout           = 15 * time.Second
	DefaultMaxBytes          = 10_000_000
	DefaultRequestsPerMinute = 120
	defaultUserAgent         = "readalong/1.0"
)

// Exported errors.
var (
	// ErrNotFound means the origin has no timing document for the ID.
	ErrNotFound = errors.New("timing document not found")

	// ErrBadStatus means the origin answered with an unexpected status.
	ErrBadStatus = errors.New("unexpected HTTP status")

	// ErrTooLarge means the response body exceeded the size limit.
	ErrTooLarge = errors.New("response body too large")
)

// HTTPConfig holds configuration for the HTTP loader.
type HTTPConfig struct {
	// BaseURL is the directory-like URL timing documents live under,
	// e.g. https://cdn.example.com/timing/.
	BaseURL string

	// Timeout per request - defaults to 15s.
	Timeout time.Duration

	// MaxBytes caps the response body - defaults to 10MB, plenty for
	// timing JSON (a one hour narration is well under 1MB).
	MaxBytes int64

	// RequestsPerMinute limits origin traffic - defaults to 120.
	RequestsPerMinute int

	// UserAgent sent with each request.
	UserAgent string

	// Client overrides the default HTTP client. Mainly for tests.
	Client *http.Client

	// Logger for fetch diagnostics (optional).
	Logger *log.Logger
}

// HTTPLoader fetches timing documents over HTTP. Requests are rate
// limited so rapid lesson switching does not hammer the origin.
type HTTPLoader struct {
	base      *url.URL
	client    *http.Client
	limiter   *rate.Limiter
	maxBytes  int64
	userAgent string
	logger    *log.Logger
}

// NewHTTPLoader creates an HTTP loader serving documents below the
// configured base URL.
func NewHTTPLoader(config HTTPConfig) (*HTTPLoader, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid base URL %q: %w", config.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("fetch: base URL %q must be http or https", config.BaseURL)
	}

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)

	return &HTTPLoader{
		base:      base,
		client:    client,
		limiter:   limiter,
		maxBytes:  config.MaxBytes,
		userAgent: config.UserAgent,
		logger:    config.Logger,
	}, nil
}

// FetchTiming downloads the timing document for a content ID.
func (l *HTTPLoader) FetchTiming(ctx context.Context, contentID string) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch: rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.documentURL(contentID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch: timing %q: %w", contentID, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("fetch: timing %q: %w (%s)", contentID, ErrBadStatus, resp.Status)
	}

	// Fail fast when the origin announces an oversized body.
	if resp.ContentLength > 0 && resp.ContentLength > l.maxBytes {
		return nil, fmt.Errorf("fetch: timing %q: %w (content-length %d)",
			contentID, ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("fetch: timing %q: %w (>%d bytes)", contentID, ErrTooLarge, l.maxBytes)
	}

	l.logger.Debug("fetched timing document", "content", contentID, "bytes", len(data))
	return data, nil
}

// documentURL resolves the request URL for a content ID. IDs map to
// <base>/<id>.json unless they already carry an extension.
func (l *HTTPLoader) documentURL(contentID string) string {
	name := contentID
	if path.Ext(name) == "" {
		name += ".json"
	}
	return l.base.JoinPath(name).String()
}

var _ cache.Loader = (*HTTPLoader)(nil)
