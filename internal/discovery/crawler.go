package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/playwright-community/playwright-go"

	"github.com/ayam04/pos-scraper/internal/browser"
	"github.com/ayam04/pos-scraper/internal/catalog"
	"github.com/ayam04/pos-scraper/internal/config"
	"github.com/ayam04/pos-scraper/internal/nav"
	"github.com/ayam04/pos-scraper/internal/obstacle"
	"github.com/ayam04/pos-scraper/internal/ratelimit"
)

// defaultResultEstimate bounds the crawl when the category page does not
// advertise a result count.
const defaultResultEstimate = 500

// loadFunc fetches one listing page and returns its rendered HTML. The
// production implementation drives a playwright page; tests inject scripted
// sequences.
type loadFunc func(ctx context.Context, pageURL string, timeout time.Duration) (string, error)

// Crawler walks a category listing page by page, harvesting every product
// and variant URL into one deduplicated set.
type Crawler struct {
	browser   *browser.Browser
	policy    *nav.Policy
	detectors []obstacle.Detector
	logger    *slog.Logger

	pageSize       int
	maxPages       int
	initialTimeout time.Duration
	pageTimeout    time.Duration
	settle         time.Duration

	load loadFunc
}

func NewCrawler(b *browser.Browser, cfg *config.Config) *Crawler {
	limiter := ratelimit.NewSimpleRateLimiter(cfg.Discovery.PageDelayMin, cfg.Discovery.PageDelayMax)

	policy := nav.NewPolicy(cfg.Scraper.MaxRetries, limiter)
	policy.Backoff = nav.LinearBackoff(cfg.Scraper.BackoffBase)
	policy.Logger = slog.Default().With("component", "discovery")

	return &Crawler{
		browser:        b,
		policy:         policy,
		detectors:      obstacle.Defaults(),
		logger:         slog.Default().With("component", "discovery"),
		pageSize:       cfg.Discovery.PageSize,
		maxPages:       cfg.Discovery.MaxPages,
		initialTimeout: cfg.Scraper.InitialTimeout,
		pageTimeout:    cfg.Scraper.PageTimeout,
		settle:         2 * time.Second,
	}
}

// Run crawls the category at categoryURL and returns the classified URL
// set. The initial page load is a prerequisite: if it cannot be completed
// within the retry budget the run fails and nothing is returned. Later
// listing pages are independent units; a page that fails is skipped with a
// warning and the crawl continues.
func (c *Crawler) Run(ctx context.Context, categoryURL string) (*catalog.DiscoveryResult, error) {
	base, err := url.Parse(categoryURL)
	if err != nil {
		return nil, fmt.Errorf("invalid category url %q: %w", categoryURL, err)
	}

	load := c.load
	if load == nil {
		page, err := c.browser.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		defer page.Close()
		load = c.pageLoader(page)
	}

	c.logger.Info("starting discovery crawl", "url", categoryURL)

	var html string
	err = c.policy.Do(ctx, "load category page", func(ctx context.Context) error {
		content, err := load(ctx, categoryURL, c.initialTimeout)
		if err != nil {
			return err
		}
		html = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	totalProducts := ProductCount(html)
	if totalProducts == 0 {
		c.logger.Warn("category advertises no result count, using estimate", "estimate", defaultResultEstimate)
		totalProducts = defaultResultEstimate
	}
	totalPages := (totalProducts + c.pageSize - 1) / c.pageSize
	if totalPages > c.maxPages {
		c.logger.Warn("page estimate exceeds safety ceiling, crawl will stop early",
			"estimated_pages", totalPages, "ceiling", c.maxPages)
		totalPages = c.maxPages
	}
	c.logger.Info("category sized", "products", totalProducts, "pages", totalPages)

	urls := mapset.NewSet[string]()
	merge := func(links []string) int {
		added := 0
		for _, link := range links {
			if urls.Add(link) {
				added++
			}
		}
		return added
	}

	added := merge(HarvestLinks(html, base))
	c.logger.Info("listing page scraped", "page", 1, "new_urls", added, "total_urls", urls.Cardinality())

	emptyHarvests := 0
	if added == 0 {
		emptyHarvests = 1
	}
	skipped := 0

	for pageNum := 1; pageNum < totalPages; pageNum++ {
		if emptyHarvests >= 2 {
			c.logger.Info("two consecutive harvests added nothing, stopping", "after_page", pageNum)
			break
		}

		pageURL := PageURL(categoryURL, pageNum*c.pageSize, c.pageSize)

		err := c.policy.Do(ctx, fmt.Sprintf("load category page %d", pageNum+1), func(ctx context.Context) error {
			content, err := load(ctx, pageURL, c.pageTimeout)
			if err != nil {
				return err
			}
			html = content
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// one listing page is an independent unit of work
			c.logger.Warn("skipping listing page", "page", pageNum+1, "error", err)
			skipped++
			continue
		}

		added := merge(HarvestLinks(html, base))
		if added == 0 {
			emptyHarvests++
		} else {
			emptyHarvests = 0
		}
		c.logger.Info("listing page scraped", "page", pageNum+1, "new_urls", added, "total_urls", urls.Cardinality())
	}

	if skipped > 0 {
		c.logger.Warn("listing pages skipped after retries", "skipped", skipped)
	}

	return c.assemble(categoryURL, urls), nil
}

func (c *Crawler) assemble(source string, urls mapset.Set[string]) *catalog.DiscoveryResult {
	all := urls.ToSlice()
	sort.Strings(all)

	result := catalog.NewDiscoveryResult(source)
	result.ProductURLs = all
	for _, u := range all {
		if catalog.Classify(u) == catalog.KindVariant {
			result.Stats.VariantURLs++
		} else {
			result.Stats.BaseProducts++
		}
	}
	result.Stats.TotalURLs = len(all)

	c.logger.Info("discovery complete",
		"total_urls", result.Stats.TotalURLs,
		"base_products", result.Stats.BaseProducts,
		"variant_urls", result.Stats.VariantURLs)

	return result
}

// pageLoader navigates the live page and snapshots its HTML once obstacles
// are cleared. A navigation that lands on a block interstitial comes back
// as ErrBlocked so the retry engine treats the load as transient.
func (c *Crawler) pageLoader(page playwright.Page) loadFunc {
	return func(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
		if err := browser.Goto(page, pageURL, timeout); err != nil {
			return "", err
		}
		time.Sleep(c.settle)

		if c.browser.SoftBlocked(page) {
			return "", nav.ErrBlocked
		}

		obstacle.Clear(c.logger, page, c.detectors)
		c.browser.Humanize(page)

		content, err := page.Content()
		if err != nil {
			return "", fmt.Errorf("failed to read page content: %w", err)
		}
		return content, nil
	}
}
