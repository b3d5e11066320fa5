package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/itcaat/carlog/internal/config"
	"github.com/itcaat/carlog/internal/crawler"
	"github.com/itcaat/carlog/internal/fetcher"
	"github.com/itcaat/carlog/internal/pacing"
	"github.com/itcaat/carlog/internal/progress"
	"github.com/itcaat/carlog/internal/report"
	"github.com/itcaat/carlog/internal/storage"
)

// CLI is the command line of carlog. Zero-valued flags fall back to the environment.
type CLI struct {
	Debug bool `help:"Enable debug logging"`

	Crawl   CrawlCmd   `cmd:"" default:"1" help:"Crawl the search pages and store every page as a partition"`
	Summary SummaryCmd `cmd:"" help:"Summarise the stored dataset"`
}

// CrawlCmd runs one crawl
type CrawlCmd struct {
	StartPage  int    `help:"First page to crawl" short:"s"`
	MaxPages   int    `help:"Maximum number of pages to crawl, 0 for all" short:"n"`
	Output     string `help:"Root directory of the parquet dataset" short:"o"`
	PgDSN      string `name:"pg-dsn" help:"Also mirror partitions into PostgreSQL"`
	NoProgress bool   `help:"Disable the progress spinner"`
}

// SummaryCmd prints a summary of the stored dataset
type SummaryCmd struct {
	Output string `help:"Root directory of the parquet dataset" short:"o"`
}

type runContext struct {
	ctx    context.Context
	cfg    *config.Config
	logger *log.Logger
	debug  bool
}

func (c *CrawlCmd) Run(rc *runContext) error {
	cfg := rc.cfg
	if c.StartPage > 0 {
		cfg.StartPage = c.StartPage
	}
	if c.MaxPages > 0 {
		cfg.MaxPages = c.MaxPages
	}
	if c.Output != "" {
		cfg.OutputPath = c.Output
	}
	if c.PgDSN != "" {
		cfg.PostgresDSN = c.PgDSN
	}
	if err := fetcher.ValidateSearchURL(cfg.BaseURL); err != nil {
		return err
	}

	f, err := fetcher.New(fetcher.Options{
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		AllowedDomains: []string{fetcher.Host(cfg.BaseURL)},
		Logger:         rc.logger,
	})
	if err != nil {
		return fmt.Errorf("error creating fetcher: %w", err)
	}

	sink, err := openSink(rc.ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	var prog crawler.Progress = progress.Nop{}
	if !c.NoProgress && !rc.debug {
		prog = progress.New(os.Stderr)
	}

	cr, err := crawler.New(crawler.Options{
		SearchURL:       cfg.BaseURL,
		ListingsPerPage: cfg.ListingsPerPage,
		StartPage:       cfg.StartPage,
		MaxPages:        cfg.MaxPages,
		Fetcher:         f,
		Pacer: pacing.New(pacing.Options{
			Mean:        cfg.SleepMean,
			StdDev:      cfg.SleepStdDev,
			Bias:        cfg.SleepBias,
			MinInterval: cfg.MinInterval,
		}),
		Sink:     sink,
		Progress: prog,
		Logger:   rc.logger,
	})
	if err != nil {
		return err
	}

	rc.logger.Info("Starting carlog crawl", "url", cfg.BaseURL, "output", cfg.OutputPath)
	stats, err := cr.Run(rc.ctx)
	rc.logger.Info("Crawl finished",
		"total_listings", stats.TotalListings,
		"last_page", stats.LastPage,
		"pages_written", stats.PagesWritten,
		"pages_skipped", stats.PagesSkipped,
		"listings", stats.Listings,
		"issues", stats.Issues,
		"duration", stats.Duration,
	)
	return err
}

func openSink(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	pq, err := storage.NewParquetSink(cfg.OutputPath)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresDSN == "" {
		return pq, nil
	}

	pg, err := storage.NewPostgresSink(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return storage.MultiSink{pq, pg}, nil
}

func (s *SummaryCmd) Run(rc *runContext) error {
	root := rc.cfg.OutputPath
	if s.Output != "" {
		root = s.Output
	}

	listings, err := storage.ReadDataset(root)
	if err != nil {
		return fmt.Errorf("error reading dataset: %w", err)
	}
	return report.Print(os.Stdout, report.Summarize(listings))
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("carlog"),
		kong.Description("Harvests vehicle listings from classifieds search pages into a partitioned parquet dataset."),
		kong.UsageOnError(),
	)

	cfg := config.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "carlog",
	})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.LogLevel)
		level = log.InfoLevel
	}
	if cli.Debug {
		level = log.DebugLevel
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(&runContext{ctx: ctx, cfg: cfg, logger: logger, debug: cli.Debug})
	if err != nil {
		logger.Error("carlog failed", "err", err)
		stop()
		os.Exit(1)
	}
}
