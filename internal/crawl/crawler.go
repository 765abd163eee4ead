// Package crawl drives a catalog run: session establishment, sequential
// listing-page traversal, bounded-concurrency extraction fan-out, run-scoped
// deduplication, batching, and handoff to the delivery client.
package crawl

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/solutiontech/catalog-sync/internal/auth"
	"github.com/solutiontech/catalog-sync/internal/browser"
	"github.com/solutiontech/catalog-sync/internal/deliver"
	"github.com/solutiontech/catalog-sync/internal/extract"
	"github.com/solutiontech/catalog-sync/internal/model"
)

// DeliveryMode selects when batches are handed to the delivery client.
type DeliveryMode string

const (
	// ModeStream delivers each listing page's eligible items as one batch
	// right after that page's extractions settle. A mid-run crash keeps the
	// pages already posted.
	ModeStream DeliveryMode = "stream"
	// ModeCollect accumulates the whole run, dedups by sku-else-handle,
	// and delivers fixed-size chunks at the end. All-or-nothing risk
	// concentrates at the finish in exchange for global dedup.
	ModeCollect DeliveryMode = "collect"
)

// Config holds the run parameters.
type Config struct {
	CollectionURL string
	MaxPages      int
	Concurrency   int

	// ContinueOnPageError ends pagination gracefully instead of failing the
	// run when a listing page cannot be fetched. Product pages discovered
	// so far are still delivered.
	ContinueOnPageError bool

	// RatePerSec throttles listing-page navigations. Zero disables.
	RatePerSec float64

	ScreenshotDir string

	Mode          DeliveryMode
	BatchSize     int
	Source        string
	DefaultVendor string
	DryRun        bool
}

func (c *Config) applyDefaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Mode == "" {
		c.Mode = ModeStream
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
}

// Runner executes one crawl run.
type Runner struct {
	cfg       Config
	session   browser.Session
	extractor *extract.Extractor
	client    *deliver.Client
	creds     auth.Credentials
	limiter   *rate.Limiter
	runID     string
}

// New creates a Runner. client may be nil only in dry-run mode.
func New(cfg Config, session browser.Session, extractor *extract.Extractor, client *deliver.Client, creds auth.Credentials) *Runner {
	cfg.applyDefaults()

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &Runner{
		cfg:       cfg,
		session:   session,
		extractor: extractor,
		client:    client,
		creds:     creds,
		limiter:   rate.NewLimiter(limit, 1),
		runID:     deliver.NewRunID(),
	}
}

// itemResult is one extraction unit's outcome, reported back to the
// orchestrator over a channel so all bookkeeping stays single-owner.
type itemResult struct {
	url     string
	product model.CanonicalProduct
	err     error
}

// Run executes the crawl to completion or first fatal error. The report is
// valid in both cases.
func (r *Runner) Run(ctx context.Context) (model.Report, error) {
	report := model.Report{RunID: r.runID, DryRun: r.cfg.DryRun}

	if err := r.validate(); err != nil {
		return report, err
	}

	listing, err := r.session.NewPage(ctx)
	if err != nil {
		return report, eris.Wrap(err, "crawl: open listing page")
	}
	defer func() { _ = listing.Close() }()

	if err := auth.LoginIfNeeded(ctx, listing, r.creds); err != nil {
		return report, eris.Wrap(err, "crawl: authenticate")
	}

	seen := make(map[string]struct{})
	var collected []model.CanonicalProduct

	pageURL := r.cfg.CollectionURL
	for pageURL != "" && report.PagesVisited < r.cfg.MaxPages {
		if err := r.limiter.Wait(ctx); err != nil {
			return report, eris.Wrap(err, "crawl: rate limiter")
		}

		report.PagesVisited++
		zap.L().Info("crawl: listing page",
			zap.Int("page", report.PagesVisited),
			zap.String("url", pageURL),
		)

		doc, navErr := navigate(ctx, listing, pageURL)
		if navErr != nil {
			if r.cfg.ContinueOnPageError {
				zap.L().Warn("crawl: listing page failed, ending pagination",
					zap.String("url", pageURL),
					zap.Error(navErr),
				)
				break
			}
			return report, eris.Wrapf(navErr, "crawl: listing page %s", pageURL)
		}

		links := newLinks(extract.ProductLinks(doc, listing.URL()), seen)
		zap.L().Info("crawl: discovered product links", zap.Int("new", len(links)))

		var pageItems []model.CanonicalProduct
		for _, res := range r.extractAll(ctx, links) {
			if res.err != nil {
				report.ItemFailures++
				zap.L().Error("crawl: product page failed",
					zap.String("url", res.url),
					zap.Error(res.err),
				)
				continue
			}
			report.ItemsScraped++
			if !res.product.Eligible() {
				report.ItemsSkipped++
				zap.L().Warn("crawl: skipped item missing sku/price",
					zap.String("url", res.url),
					zap.String("title", res.product.Title),
				)
				continue
			}
			zap.L().Info("crawl: item ready",
				zap.String("sku", res.product.SKU),
				zap.String("price", res.product.Price),
			)
			pageItems = append(pageItems, res.product)
		}

		switch r.cfg.Mode {
		case ModeCollect:
			collected = append(collected, pageItems...)
		default:
			batchID := fmt.Sprintf("%s-p%d", r.runID, report.PagesVisited)
			delivered, err := r.deliverBatch(ctx, batchID, pageItems)
			if err != nil {
				return report, err
			}
			report.ItemsDelivered += delivered
		}

		pageURL = extract.NextPageURL(doc, listing.URL())
	}

	if r.cfg.Mode == ModeCollect {
		delivered, err := r.deliverCollected(ctx, collected)
		report.ItemsDelivered += delivered
		if err != nil {
			return report, err
		}
	}

	zap.L().Info("crawl: done",
		zap.String("run_id", report.RunID),
		zap.Int("pages_visited", report.PagesVisited),
		zap.Int("items_scraped", report.ItemsScraped),
		zap.Int("items_delivered", report.ItemsDelivered),
		zap.Int("items_skipped", report.ItemsSkipped),
		zap.Int("item_failures", report.ItemFailures),
		zap.Bool("dry_run", report.DryRun),
	)
	return report, nil
}

// validate fails fast on missing required configuration, before any network
// activity.
func (r *Runner) validate() error {
	if r.cfg.CollectionURL == "" {
		return eris.New("crawl: collection URL is required")
	}
	if r.client == nil && !r.cfg.DryRun {
		return eris.New("crawl: delivery endpoint is required unless dry-run")
	}
	return nil
}

// extractAll fans out over links with at most Concurrency pages open at
// once. Results come back over a channel; per-item failures are values, not
// errors, so one bad product page never cancels its siblings.
func (r *Runner) extractAll(ctx context.Context, links []string) []itemResult {
	if len(links) == 0 {
		return nil
	}

	results := make(chan itemResult, len(links))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for _, link := range links {
		link := link
		g.Go(func() error {
			product, err := r.extractOne(ctx, link)
			results <- itemResult{url: link, product: product, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]itemResult, 0, len(links))
	for res := range results {
		out = append(out, res)
	}
	return out
}

// extractOne opens its own page within the shared session, navigates, and
// extracts. The page is closed on every exit path; failures produce a
// best-effort screenshot artifact.
func (r *Runner) extractOne(ctx context.Context, link string) (model.CanonicalProduct, error) {
	page, err := r.session.NewPage(ctx)
	if err != nil {
		return model.CanonicalProduct{}, eris.Wrap(err, "crawl: open product page")
	}
	defer func() { _ = page.Close() }()

	if err := page.Navigate(ctx, link); err != nil {
		r.captureFailure(ctx, page)
		return model.CanonicalProduct{}, err
	}

	product, err := r.extractor.Extract(ctx, page)
	if err != nil {
		r.captureFailure(ctx, page)
		return model.CanonicalProduct{}, err
	}
	return product, nil
}

// deliverBatch posts one envelope, honoring dry-run. Returns the number of
// items counted as delivered.
func (r *Runner) deliverBatch(ctx context.Context, batchID string, items []model.CanonicalProduct) (int, error) {
	if len(items) == 0 {
		zap.L().Info("crawl: no valid items in batch", zap.String("batch_id", batchID))
		return 0, nil
	}
	if r.cfg.DryRun {
		zap.L().Info("crawl: dry-run, skipping delivery",
			zap.String("batch_id", batchID),
			zap.Int("would_deliver", len(items)),
		)
		return 0, nil
	}

	batch := deliver.Envelope(r.cfg.Source, batchID, r.cfg.DefaultVendor, items)
	zap.L().Info("crawl: posting batch",
		zap.String("batch_id", batchID),
		zap.Int("count", batch.Count),
	)
	if _, err := r.client.PostJSON(ctx, batch); err != nil {
		return 0, eris.Wrapf(err, "crawl: deliver batch %s", batchID)
	}
	return len(items), nil
}

// deliverCollected dedups the run's accumulated items by sku-else-handle and
// delivers them in fixed-size chunks.
func (r *Runner) deliverCollected(ctx context.Context, items []model.CanonicalProduct) (int, error) {
	unique := dedupItems(items)
	if r.cfg.DryRun {
		zap.L().Info("crawl: dry-run, skipping delivery",
			zap.Int("would_deliver", len(unique)),
		)
		return 0, nil
	}

	delivered := 0
	for _, batch := range deliver.Chunk(r.cfg.Source, r.runID, r.cfg.DefaultVendor, unique, r.cfg.BatchSize) {
		zap.L().Info("crawl: posting batch",
			zap.String("batch_id", batch.BatchID),
			zap.Int("index", batch.Index),
			zap.Int("total_batches", batch.TotalBatches),
			zap.Int("count", batch.Count),
		)
		if _, err := r.client.PostJSON(ctx, batch); err != nil {
			return delivered, eris.Wrapf(err, "crawl: deliver batch %s", batch.BatchID)
		}
		delivered += batch.Count
	}
	return delivered, nil
}

// navigate loads a listing page and parses its DOM in one step.
func navigate(ctx context.Context, page browser.Page, url string) (*goquery.Document, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return page.Document()
}

// newLinks filters already-seen product URLs and records the rest, keyed by
// canonical URL so a product reappearing on a later page is never extracted
// twice.
func newLinks(links []string, seen map[string]struct{}) []string {
	fresh := links[:0:0]
	for _, link := range links {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		fresh = append(fresh, link)
	}
	return fresh
}

// dedupItems keeps the first occurrence per dedup key, preserving order.
func dedupItems(items []model.CanonicalProduct) []model.CanonicalProduct {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, item := range items {
		key := item.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
