package matrix

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayam04/pos-scraper/internal/config"
	"github.com/ayam04/pos-scraper/internal/nav"
)

const productPage = "https://shop.test/en-us/cards?id=99&productGroupId=7"

// productFixture declares two discoverable axes: shape with 2 values and
// paper stock with 3, a 6-combination space.
const productFixture = `
<html><body>
<h1>Premium Business Cards</h1>
<div class="option-group">
  <div data-id="2001"><span>Rectangle</span></div>
  <div data-id="2002"><span>Square</span></div>
</div>
<div class="option-group">
  <div data-id="3001"><span>Gloss Cardstock</span></div>
  <div data-id="3002"><span>Matte Cardstock</span></div>
  <div data-id="3003"><span>Soft Touch Cardstock</span></div>
</div>
</body></html>`

const pricingFixture = `
<html><body><table>
  <tr><td>100</td><td>$24.99</td></tr>
  <tr><td>250</td><td>$37.25</td></tr>
</table></body></html>`

// scriptedLoader plays back canned HTML per URL; URLs it does not know
// return pricingFixture so every combination prices by default.
type scriptedLoader struct {
	pages map[string]string
	errs  map[string]error
	loads []string
}

func (s *scriptedLoader) load(_ context.Context, pageURL string, _ time.Duration) (string, error) {
	s.loads = append(s.loads, pageURL)
	if err, ok := s.errs[pageURL]; ok {
		return "", err
	}
	if html, ok := s.pages[pageURL]; ok {
		return html, nil
	}
	return pricingFixture, nil
}

func (s *scriptedLoader) loadsFor(pageURL string) int {
	n := 0
	for _, u := range s.loads {
		if u == pageURL {
			n++
		}
	}
	return n
}

func testBuilder(loader *scriptedLoader) *Builder {
	cfg := &config.Config{
		Scraper: config.ScraperConfig{
			MaxRetries:     3,
			BackoffBase:    time.Millisecond,
			InitialTimeout: time.Second,
			PageTimeout:    time.Second,
		},
		Extraction: config.ExtractionConfig{
			VariantTimeout: time.Second,
			MinQuantity:    50,
			MaxQuantity:    100000,
		},
	}
	b := NewBuilder(nil, cfg)
	b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	b.policy.Logger = b.logger
	b.load = loader.load
	return b
}

func TestRunFullMatrix(t *testing.T) {
	loader := &scriptedLoader{pages: map[string]string{productPage: productFixture}}
	b := testBuilder(loader)

	result, err := b.Run(context.Background(), productPage)

	require.NoError(t, err)
	assert.Equal(t, Stats{Combinations: 6, Scraped: 6, Omitted: 0}, b.Stats())

	require.Len(t, result.Options, 2)
	assert.Equal(t, "shape", result.Options[0].Key)
	assert.Equal(t, "paper_stock", result.Options[1].Key)

	require.Len(t, result.Variants, 6)
	first := result.Variants[0]
	assert.Equal(t, "Rectangle", first.Selection["shape"].Value)
	assert.Equal(t, "Gloss Cardstock", first.Selection["paper_stock"].Value)
	require.Len(t, first.Pricing, 2)
	assert.Equal(t, 100, first.Pricing[0].Quantity)

	assert.Equal(t, "Premium Business Cards", result.Product.Title)
	assert.Equal(t, "99", result.Product.ID)
	assert.Equal(t, "7", result.Product.ProductGroupID)

	assert.Empty(t, result.Validate())
}

func TestRunPartialVariantFailure(t *testing.T) {
	// Rectangle + Matte Cardstock never loads: 6 combinations, 5 variants
	failing := productPage + "&spf1=2001&spf3=3002"
	loader := &scriptedLoader{
		pages: map[string]string{productPage: productFixture},
		errs:  map[string]error{failing: errors.New("Timeout 45000ms exceeded")},
	}
	b := testBuilder(loader)

	result, err := b.Run(context.Background(), productPage)

	require.NoError(t, err, "one failing combination must not abort the run")
	assert.Equal(t, Stats{Combinations: 6, Scraped: 5, Omitted: 1}, b.Stats())
	assert.Equal(t, 3, loader.loadsFor(failing), "the combination gets its retry budget before omission")

	require.Len(t, result.Variants, 5)
	for _, v := range result.Variants {
		omitted := v.Selection["shape"].Value == "Rectangle" && v.Selection["paper_stock"].Value == "Matte Cardstock"
		assert.False(t, omitted, "the failed combination must be absent, not empty")
	}

	assert.Empty(t, result.Validate(), "a partial result still validates")
}

func TestRunOmitsCombinationWithNoTiers(t *testing.T) {
	unpriced := productPage + "&spf1=2002&spf3=3003"
	loader := &scriptedLoader{
		pages: map[string]string{
			productPage: productFixture,
			unpriced:    "<html><body><p>Out of stock</p></body></html>",
		},
	}
	b := testBuilder(loader)

	result, err := b.Run(context.Background(), productPage)

	require.NoError(t, err)
	assert.Equal(t, Stats{Combinations: 6, Scraped: 5, Omitted: 1}, b.Stats())
	assert.Len(t, result.Variants, 5)
}

func TestRunVariantOrderDeterministic(t *testing.T) {
	run := func() []string {
		loader := &scriptedLoader{pages: map[string]string{productPage: productFixture}}
		b := testBuilder(loader)
		result, err := b.Run(context.Background(), productPage)
		require.NoError(t, err)

		order := make([]string, len(result.Variants))
		for i, v := range result.Variants {
			order[i] = describe(v.Selection)
		}
		return order
	}

	assert.Equal(t, run(), run(), "two runs over identical declarations enumerate variants identically")
}

func TestRunFallsBackToCurrentConfiguration(t *testing.T) {
	// every combination times out; the product page itself shows pricing
	errs := make(map[string]error)
	for _, shape := range []string{"2001", "2002"} {
		for _, stock := range []string{"3001", "3002", "3003"} {
			errs[productPage+"&spf1="+shape+"&spf3="+stock] = errors.New("Timeout 45000ms exceeded")
		}
	}
	pricedProduct := strings.Replace(productFixture, "</body>",
		`<table><tr><td>100</td><td>$24.99</td></tr><tr><td>250</td><td>$37.25</td></tr></table></body>`, 1)
	loader := &scriptedLoader{
		pages: map[string]string{productPage: pricedProduct},
		errs:  errs,
	}
	b := testBuilder(loader)

	result, err := b.Run(context.Background(), productPage)

	require.NoError(t, err, "a fully blocked matrix must still yield the page's own pricing")
	assert.Equal(t, Stats{Combinations: 6, Scraped: 0, Omitted: 6}, b.Stats())

	require.Len(t, result.Variants, 1)
	assert.Empty(t, result.Variants[0].Selection)
	require.Len(t, result.Variants[0].Pricing, 2)
	assert.Equal(t, 100, result.Variants[0].Pricing[0].Quantity)
	assert.Empty(t, result.Options, "an unconfirmable option space is dropped so selections stay total")
	assert.Empty(t, result.Validate())
}

func TestRunFallsBackToPredefinedCatalog(t *testing.T) {
	// a product page with a title but no discoverable option values
	loader := &scriptedLoader{pages: map[string]string{
		productPage: "<html><body><h1>Premium Business Cards</h1></body></html>",
	}}
	b := testBuilder(loader)

	result, err := b.Run(context.Background(), productPage)

	require.NoError(t, err)
	assert.Equal(t, 12, b.Stats().Combinations)
	require.Len(t, result.Options, 3)
	assert.Equal(t, "shape", result.Options[0].Key)
	assert.Equal(t, "size", result.Options[1].Key)
	assert.Equal(t, "paper_stock", result.Options[2].Key)
	assert.Len(t, result.Variants, 12)
	assert.Empty(t, result.Validate())
}

func TestRunInitialLoadRetryExhaustion(t *testing.T) {
	loader := &scriptedLoader{
		errs: map[string]error{productPage: errors.New("Timeout 90000ms exceeded")},
	}
	b := testBuilder(loader)

	result, err := b.Run(context.Background(), productPage)

	require.Error(t, err, "the product page is a prerequisite for the whole run")
	assert.Nil(t, result)
	assert.Equal(t, 3, loader.loadsFor(productPage))

	var xe *nav.ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, "load product page", xe.Stage)
	assert.Equal(t, 3, xe.Attempts)
}

func TestRunStructuralMismatchIsFatal(t *testing.T) {
	loader := &scriptedLoader{pages: map[string]string{
		productPage: "<html><body><div>nothing that looks like a product</div></body></html>",
	}}
	b := testBuilder(loader)

	result, err := b.Run(context.Background(), productPage)

	require.Error(t, err)
	assert.Nil(t, result)

	var structural *nav.StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Equal(t, 1, loader.loadsFor(productPage), "a page-shape mismatch is not worth retrying")
}

func TestRunInvalidProductURL(t *testing.T) {
	b := testBuilder(&scriptedLoader{})

	result, err := b.Run(context.Background(), "https://shop.test/%zz")

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := &scriptedLoader{pages: map[string]string{productPage: productFixture}}
	b := testBuilder(loader)

	result, err := b.Run(ctx, productPage)

	require.Error(t, err, "a cancelled run must not report success")
	assert.Nil(t, result)
}

func TestDescribeIsStable(t *testing.T) {
	axes := syntheticAxes(2, 2)
	selection := selectionFor(axes, []int{1, 0})

	assert.Equal(t, describe(selection), describe(selection))
	assert.Equal(t, "shape=b, size=a", describe(selection))
}
