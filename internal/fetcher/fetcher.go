package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
)

const (
	// DefaultUserAgent mimics a desktop Chrome on Linux
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/71.0.3578.98 Safari/537.36"

	defaultTimeout    = 20 * time.Second
	defaultRetryDelay = 5 * time.Second
)

// ErrPageNotFound is returned for 400 and 404 responses, which are never retried
var ErrPageNotFound = errors.New("page not found")

// Options configures a Fetcher
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// MaxRetries is the number of extra attempts after a retryable failure
	MaxRetries int
	// RetryDelay is doubled after every failed attempt
	RetryDelay time.Duration
	// AllowedDomains restricts fetching; empty allows any domain
	AllowedDomains []string
	Logger         *log.Logger
}

// Fetcher downloads pages with a colly collector
type Fetcher struct {
	collector  *colly.Collector
	maxRetries int
	retryDelay time.Duration
	logger     *log.Logger
}

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.URL, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// New creates a Fetcher
func New(opts Options) (*Fetcher, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	collectorOpts := []colly.CollectorOption{
		colly.UserAgent(opts.UserAgent),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
	}
	if len(opts.AllowedDomains) > 0 {
		collectorOpts = append(collectorOpts, colly.AllowedDomains(opts.AllowedDomains...))
	}

	c := colly.NewCollector(collectorOpts...)
	c.SetRequestTimeout(opts.Timeout)

	// One request at a time per domain, pacing itself is left to the caller
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("error setting limit rule: %w", err)
	}

	return &Fetcher{
		collector:  c,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}, nil
}

// Fetch returns the body of pageURL, retrying transient failures with exponential backoff
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	delay := f.retryDelay
	attempts := f.maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := f.fetchOnce(pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(err) || attempt == attempts {
			break
		}

		f.logger.Warn("Fetch failed, retrying", "url", pageURL, "attempt", attempt, "max_attempts", attempts, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("fetch %s: %w", pageURL, lastErr)
}

func (f *Fetcher) fetchOnce(pageURL string) ([]byte, error) {
	var (
		body    []byte
		errResp *StatusError
	)

	c := f.collector.Clone()

	c.OnRequest(func(r *colly.Request) {
		f.logger.Debug("Visiting", "url", r.URL)
	})

	c.OnResponse(func(r *colly.Response) {
		f.logger.Debug("Received response", "url", r.Request.URL, "status", r.StatusCode, "bytes", len(r.Body))
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		errResp = &StatusError{URL: pageURL, StatusCode: status, Err: err}
		if status == http.StatusBadRequest || status == http.StatusNotFound {
			errResp.Err = fmt.Errorf("%w: %v", ErrPageNotFound, err)
		}
	})

	err := c.Visit(pageURL)
	c.Wait()

	if errResp != nil {
		return nil, errResp
	}
	if err != nil {
		return nil, fmt.Errorf("error visiting page: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("error visiting page: empty response")
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrPageNotFound) {
		return false
	}
	// Filtered URLs and bad schemes fail identically on every attempt
	if errors.Is(err, colly.ErrForbiddenDomain) || errors.Is(err, colly.ErrMissingURL) || errors.Is(err, colly.ErrForbiddenURL) {
		return false
	}
	return true
}
