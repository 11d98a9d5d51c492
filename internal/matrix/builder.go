package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/ayam04/pos-scraper/internal/browser"
	"github.com/ayam04/pos-scraper/internal/catalog"
	"github.com/ayam04/pos-scraper/internal/config"
	"github.com/ayam04/pos-scraper/internal/nav"
	"github.com/ayam04/pos-scraper/internal/obstacle"
	"github.com/ayam04/pos-scraper/internal/ratelimit"
)

// loadFunc fetches one page and returns its rendered HTML. The production
// implementation drives a playwright page; tests inject scripted sequences.
type loadFunc func(ctx context.Context, pageURL string, timeout time.Duration) (string, error)

// Builder extracts one product's option space and the per-quantity pricing
// of every option combination.
type Builder struct {
	browser   *browser.Browser
	policy    *nav.Policy
	limiter   *ratelimit.AdaptiveRateLimiter
	detectors []obstacle.Detector
	logger    *slog.Logger

	minQuantity    int
	maxQuantity    int
	initialTimeout time.Duration
	variantTimeout time.Duration
	settle         time.Duration

	load loadFunc

	stats Stats
}

// Stats counts the combination space of the last run and how much of it
// had to be omitted.
type Stats struct {
	Combinations int
	Scraped      int
	Omitted      int
}

func NewBuilder(b *browser.Browser, cfg *config.Config) *Builder {
	limiter := ratelimit.NewAdaptiveRateLimiter(cfg.Extraction.VariantDelayMin, cfg.Extraction.VariantDelayMax)

	policy := nav.NewPolicy(cfg.Scraper.MaxRetries, limiter)
	policy.Backoff = nav.ExponentialBackoff(cfg.Scraper.BackoffBase)
	policy.Logger = slog.Default().With("component", "matrix")

	return &Builder{
		browser:        b,
		policy:         policy,
		limiter:        limiter,
		detectors:      obstacle.Defaults(),
		logger:         slog.Default().With("component", "matrix"),
		minQuantity:    cfg.Extraction.MinQuantity,
		maxQuantity:    cfg.Extraction.MaxQuantity,
		initialTimeout: cfg.Scraper.InitialTimeout,
		variantTimeout: cfg.Extraction.VariantTimeout,
		settle:         2 * time.Second,
	}
}

// Run extracts the product at productURL: descriptive fields, the declared
// option list, and one variant per option combination the page will price.
// The initial product load and a recognizable product shape are
// prerequisites and fail the run; a single combination that cannot be
// loaded or priced after retries is omitted from the result and counted,
// and the run carries on with the rest.
func (b *Builder) Run(ctx context.Context, productURL string) (*catalog.ExtractionResult, error) {
	parsed, err := url.Parse(productURL)
	if err != nil {
		return nil, fmt.Errorf("invalid product url %q: %w", productURL, err)
	}

	load := b.load
	if load == nil {
		page, err := b.browser.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		defer page.Close()
		load = b.pageLoader(page)
	}

	b.logger.Info("starting matrix extraction", "url", productURL)

	var html string
	err = b.policy.Do(ctx, "load product page", func(ctx context.Context) error {
		content, err := load(ctx, productURL, b.initialTimeout)
		if err != nil {
			return err
		}
		html = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	product := ParseProduct(html, parsed)
	if product.Title == "" {
		// the page loaded but does not look like a product page anymore
		return nil, &nav.StructuralError{Expected: "product title", URL: productURL}
	}
	b.logger.Info("product identified", "id", product.ID, "title", product.Title)

	axes := discoverOptions(html)
	if sparse(axes) {
		b.logger.Warn("dom discovery too sparse, substituting predefined option catalog",
			"discovered_axes", len(axes))
		axes = predefinedAxes()
	}
	for _, a := range axes {
		b.logger.Info("option resolved", "name", a.Name, "key", a.Key, "values", len(a.Values))
	}

	combos := combinations(axes)
	b.stats = Stats{Combinations: len(combos)}
	b.logger.Info("combination space enumerated", "combinations", len(combos))

	result := catalog.NewExtractionResult(productURL)
	result.Product = product
	for _, a := range axes {
		result.Options = append(result.Options, a.Option)
	}

	for i, combo := range combos {
		selection := selectionFor(axes, combo)
		target := variantURL(parsed, axes, combo)

		var variantHTML string
		err := b.policy.Do(ctx, fmt.Sprintf("load variant %d/%d", i+1, len(combos)), func(ctx context.Context) error {
			content, err := load(ctx, target, b.variantTimeout)
			if err != nil {
				return err
			}
			variantHTML = content
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			b.limiter.RecordError()
			b.stats.Omitted++
			b.logger.Warn("combination omitted",
				"combination", i+1, "selection", describe(selection), "error", err)
			continue
		}

		tiers := ParsePricing(variantHTML, b.minQuantity, b.maxQuantity)
		if len(tiers) == 0 {
			b.limiter.RecordError()
			b.stats.Omitted++
			b.logger.Warn("combination priced no tiers, omitted",
				"combination", i+1, "selection", describe(selection))
			continue
		}

		b.limiter.RecordSuccess()
		b.stats.Scraped++
		result.Variants = append(result.Variants, catalog.Variant{
			Available: true,
			Selection: selection,
			Pricing:   tiers,
		})
		b.logger.Info("combination scraped",
			"combination", i+1, "total", len(combos), "tiers", len(tiers))
	}

	if len(result.Variants) == 0 {
		// every combination was blocked or unpriced: fall back to whatever
		// the page prices in its current configuration. The option space
		// could not be confirmed, so it is dropped to keep selections total.
		if tiers := ParsePricing(html, b.minQuantity, b.maxQuantity); len(tiers) > 0 {
			b.logger.Warn("no combination priced, keeping the page's current configuration")
			result.Options = result.Options[:0]
			result.Variants = append(result.Variants, catalog.Variant{
				Available: true,
				Selection: catalog.Selection{},
				Pricing:   tiers,
			})
		}
	}

	if b.stats.Omitted > 0 {
		b.logger.Warn("result is missing combinations",
			"omitted", b.stats.Omitted, "scraped", b.stats.Scraped)
	}

	return result, nil
}

// Stats reports how the last run's combination space was covered.
func (b *Builder) Stats() Stats {
	return b.stats
}

func describe(selection catalog.Selection) string {
	keys := make([]string, 0, len(selection))
	for k := range selection {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+selection[k].Value)
	}
	return strings.Join(parts, ", ")
}

// pageLoader navigates the live page and snapshots its HTML once obstacles
// are cleared and the price table has had time to settle. A navigation that
// lands on a block interstitial comes back as ErrBlocked so the retry
// engine treats the load as transient.
func (b *Builder) pageLoader(page playwright.Page) loadFunc {
	return func(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
		if err := browser.Goto(page, pageURL, timeout); err != nil {
			return "", err
		}
		time.Sleep(b.settle)

		if b.browser.SoftBlocked(page) {
			return "", nav.ErrBlocked
		}

		obstacle.Clear(b.logger, page, b.detectors)
		b.browser.Humanize(page)

		// give the price table a moment to re-render for the new selection
		time.Sleep(b.settle)

		content, err := page.Content()
		if err != nil {
			return "", fmt.Errorf("failed to read page content: %w", err)
		}
		return content, nil
	}
}
