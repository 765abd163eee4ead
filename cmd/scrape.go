package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solutiontech/catalog-sync/internal/auth"
	"github.com/solutiontech/catalog-sync/internal/deliver"
	"github.com/solutiontech/catalog-sync/internal/extract"
	"github.com/solutiontech/catalog-sync/internal/model"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <product-url>",
	Short: "Scrape a single product page and deliver it",
	Long: `Extracts one product record from the given page, applying the same
login, extraction, and normalization as a full crawl, then delivers it as a
batch of one. Useful for spot-checking a listing or re-sending one item.

Examples:
  catalog-sync scrape https://shop.example.com/products/tw7000
  catalog-sync scrape --dry-run https://shop.example.com/products/tw7000`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().Bool("dry-run", false, "extract and log but do not deliver")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	productURL := args[0]
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if err := cfg.Validate("scrape"); err != nil {
		return err
	}
	if !dryRun && cfg.Deliver.WebhookURL == "" {
		return eris.New("scrape: deliver.webhook_url is required unless --dry-run")
	}

	session, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	page, err := session.NewPage(ctx)
	if err != nil {
		return eris.Wrap(err, "scrape: open page")
	}
	defer func() { _ = page.Close() }()

	creds := auth.Credentials{
		Base:     cfg.Supplier.BaseURL,
		Email:    cfg.Supplier.Email,
		Password: cfg.Supplier.Password,
	}
	if err := auth.LoginIfNeeded(ctx, page, creds); err != nil {
		return eris.Wrap(err, "scrape: authenticate")
	}

	if err := page.Navigate(ctx, productURL); err != nil {
		return eris.Wrapf(err, "scrape: navigate %s", productURL)
	}

	extractor := &extract.Extractor{DefaultCurrency: cfg.Normalize.DefaultCurrency}
	product, err := extractor.Extract(ctx, page)
	if err != nil {
		return eris.Wrap(err, "scrape: extract")
	}
	if !product.Eligible() {
		return eris.Errorf("scrape: record from %s has no sku or positive price", productURL)
	}

	zap.L().Info("scrape: item ready",
		zap.String("sku", product.SKU),
		zap.String("title", product.Title),
		zap.String("price", product.Price),
	)

	if dryRun {
		zap.L().Info("scrape: dry run, not delivering")
		return nil
	}

	client := newDeliverClient(false)
	runID := deliver.NewRunID()
	batch := deliver.Envelope(cfg.Supplier.Source, runID, cfg.Supplier.DefaultVendor,
		[]model.CanonicalProduct{product})

	if _, err := client.PostJSON(ctx, batch); err != nil {
		return eris.Wrap(err, "scrape: deliver")
	}

	zap.L().Info("scrape: delivered", zap.String("run_id", runID))
	return nil
}
