package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solutiontech/catalog-sync/internal/auth"
	"github.com/solutiontech/catalog-sync/internal/browser"
	"github.com/solutiontech/catalog-sync/internal/crawl"
	"github.com/solutiontech/catalog-sync/internal/deliver"
	"github.com/solutiontech/catalog-sync/internal/extract"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the supplier collection and deliver product batches",
	Long: `Walks the configured collection listing page by page, extracts every
product found behind it, normalizes the records, and posts them to the
delivery webhook in batches.

Examples:
  # Crawl with the configured defaults
  catalog-sync crawl

  # Preview what would be delivered without posting anything
  catalog-sync crawl --dry-run

  # Override the collection and page budget
  catalog-sync crawl --collection https://shop.example.com/collections/lasers --max-pages 3`,
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.String("collection", "", "collection listing URL (overrides config)")
	f.Int("max-pages", 0, "maximum listing pages to walk (0=use config)")
	f.Bool("dry-run", false, "extract and log but do not deliver")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if collection, _ := cmd.Flags().GetString("collection"); collection != "" {
		cfg.Supplier.CollectionURL = collection
	}
	if maxPages, _ := cmd.Flags().GetInt("max-pages"); maxPages > 0 {
		cfg.Crawl.MaxPages = maxPages
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if err := cfg.Validate("crawl"); err != nil {
		return err
	}
	if !dryRun && cfg.Deliver.WebhookURL == "" {
		return eris.New("crawl: deliver.webhook_url is required unless --dry-run")
	}

	session, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	runner := crawl.New(
		crawl.Config{
			CollectionURL:       cfg.Supplier.CollectionURL,
			MaxPages:            cfg.Crawl.MaxPages,
			Concurrency:         cfg.Crawl.Concurrency,
			RatePerSec:          cfg.Crawl.RatePerSec,
			ContinueOnPageError: cfg.Crawl.ContinueOnPageError,
			ScreenshotDir:       cfg.Crawl.ScreenshotDir,
			Mode:                crawl.DeliveryMode(cfg.Deliver.Mode),
			BatchSize:           cfg.Deliver.BatchSize,
			Source:              cfg.Supplier.Source,
			DefaultVendor:       cfg.Supplier.DefaultVendor,
			DryRun:              dryRun,
		},
		session,
		&extract.Extractor{DefaultCurrency: cfg.Normalize.DefaultCurrency},
		newDeliverClient(dryRun),
		auth.Credentials{
			Base:     cfg.Supplier.BaseURL,
			Email:    cfg.Supplier.Email,
			Password: cfg.Supplier.Password,
		},
	)

	report, err := runner.Run(ctx)
	if err != nil {
		return eris.Wrap(err, "crawl: run")
	}

	zap.L().Info("crawl: report",
		zap.String("run_id", report.RunID),
		zap.Int("pages_visited", report.PagesVisited),
		zap.Int("items_scraped", report.ItemsScraped),
		zap.Int("items_delivered", report.ItemsDelivered),
	)
	return nil
}

// newSession builds the configured page driver.
func newSession(ctx context.Context) (browser.Session, error) {
	opts := browser.Options{
		NavTimeout: time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
		UserAgent:  cfg.Browser.UserAgent,
		Headless:   cfg.Browser.Headless,
	}

	switch cfg.Browser.Driver {
	case "chromedp":
		return browser.NewChromeSession(ctx, opts)
	default:
		return browser.NewHTTPSession(opts)
	}
}

// newDeliverClient returns nil in dry-run mode, which the runner accepts.
func newDeliverClient(dryRun bool) *deliver.Client {
	if dryRun || cfg.Deliver.WebhookURL == "" {
		return nil
	}
	return deliver.NewClient(cfg.Deliver.WebhookURL,
		deliver.WithRetries(cfg.Deliver.Retries),
		deliver.WithBaseDelay(time.Duration(cfg.Deliver.BaseDelayMs)*time.Millisecond),
		deliver.WithTimeout(time.Duration(cfg.Deliver.TimeoutSecs)*time.Second),
	)
}
