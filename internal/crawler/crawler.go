// Package crawler walks the search result pages of a listing site, turning
// each page into a partition of merged listings.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/itcaat/carlog/internal/fetcher"
	"github.com/itcaat/carlog/internal/models"
	"github.com/itcaat/carlog/internal/parser"
	"github.com/itcaat/carlog/internal/progress"
	"github.com/itcaat/carlog/internal/storage"
)

// Fetcher downloads one page
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Pacer blocks between requests
type Pacer interface {
	Wait(ctx context.Context) error
}

// Progress displays how far the crawl is
type Progress interface {
	Start(total int)
	Update(page int, note string)
	Stop(final string)
}

// Options configures a Crawler
type Options struct {
	// SearchURL is a page template containing fetcher.PagePlaceholder
	SearchURL       string
	ListingsPerPage int
	StartPage       int
	// MaxPages caps the pages visited; zero crawls up to the last page
	MaxPages int

	Fetcher  Fetcher
	Pacer    Pacer
	Sink     storage.Sink
	Progress Progress
	Logger   *log.Logger
	// Now stamps each page's reference date, time.Now when nil
	Now func() time.Time
}

// Crawler runs one crawl over the search pages
type Crawler struct {
	opts Options
}

// New validates opts and creates a Crawler
func New(opts Options) (*Crawler, error) {
	if err := fetcher.ValidateSearchURL(opts.SearchURL); err != nil {
		return nil, err
	}
	if opts.Fetcher == nil || opts.Pacer == nil || opts.Sink == nil {
		return nil, errors.New("crawler: fetcher, pacer and sink are required")
	}
	if opts.ListingsPerPage <= 0 {
		return nil, fmt.Errorf("crawler: listings per page must be positive, got %d", opts.ListingsPerPage)
	}
	if opts.StartPage < 1 {
		opts.StartPage = 1
	}
	if opts.MaxPages < 0 {
		opts.MaxPages = 0
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Crawler{opts: opts}, nil
}

// Run discovers the number of pages and processes them in order. A page that
// fails to fetch, extract or persist is logged and skipped. Run only returns an
// error when the listing count cannot be discovered or ctx ends.
func (c *Crawler) Run(ctx context.Context) (stats models.CrawlStats, err error) {
	start := time.Now()
	logger := c.opts.Logger
	defer func() { stats.Duration = time.Since(start) }()

	total, err := c.discover(ctx)
	if err != nil {
		return stats, err
	}
	stats.TotalListings = total
	stats.LastPage = parser.LastPage(total, c.opts.ListingsPerPage)
	logger.Info("Discovered listings", "total", total, "last_page", stats.LastPage)

	first, last := c.pageRange(stats.LastPage)
	if first > last {
		logger.Warn("Start page is past the last page", "start_page", first, "last_page", last)
		return stats, nil
	}

	c.opts.Progress.Start(last)
	for page := first; page <= last; page++ {
		c.opts.Progress.Update(page, "")

		if err := c.opts.Pacer.Wait(ctx); err != nil {
			c.opts.Progress.Stop("crawl interrupted")
			return stats, err
		}

		result, err := c.crawlPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				c.opts.Progress.Stop("crawl interrupted")
				return stats, ctx.Err()
			}
			logger.Error("Error on page", "page", page, "err", err)
			stats.PagesSkipped++
			continue
		}

		stats.PagesWritten++
		stats.Listings += len(result.Listings)
		stats.Issues += len(result.Issues)
	}
	c.opts.Progress.Stop(fmt.Sprintf("crawled %d pages, %d listings", stats.PagesWritten, stats.Listings))

	return stats, nil
}

func (c *Crawler) discover(ctx context.Context) (int, error) {
	url := fetcher.PageURL(c.opts.SearchURL, 1)
	body, err := c.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("discover listing count: %w", err)
	}
	total, err := parser.ParseListingCount(body)
	if err != nil {
		return 0, fmt.Errorf("discover listing count: %w", err)
	}
	return total, nil
}

func (c *Crawler) pageRange(lastPage int) (int, int) {
	first, last := c.opts.StartPage, lastPage
	if c.opts.MaxPages > 0 && first+c.opts.MaxPages-1 < last {
		last = first + c.opts.MaxPages - 1
	}
	return first, last
}

func (c *Crawler) crawlPage(ctx context.Context, page int) (*parser.PageResult, error) {
	logger := c.opts.Logger
	key := models.NewPartitionKey(c.opts.Now(), page)

	body, err := c.opts.Fetcher.Fetch(ctx, fetcher.PageURL(c.opts.SearchURL, page))
	if err != nil {
		return nil, err
	}

	result, err := parser.Extract(body, key)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	for _, issue := range result.Issues {
		logger.Debug("Extraction issue", "page", page, "source", issue.Source, "index", issue.Index, "field", issue.Field, "kind", issue.Kind, "err", issue.Err)
	}

	if err := c.opts.Sink.Write(ctx, result.Listings, key); err != nil {
		return nil, fmt.Errorf("write %s: %w", key, err)
	}

	logger.Info("Page stored", "page", page, "partition", key, "listings", len(result.Listings), "issues", len(result.Issues))
	return result, nil
}
