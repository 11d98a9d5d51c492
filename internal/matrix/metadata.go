package matrix

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayam04/pos-scraper/internal/catalog"
)

const maxProductImages = 5

var uomRe = regexp.MustCompile(`(?i)(\d+)\s*(cards?|units?|pieces?)`)

// ParseProduct extracts the product's descriptive fields from a rendered
// product page. The id and product-group id come from the URL's identifying
// parameters; everything read from the page is best effort and may stay
// empty. The configurator prices in US dollars only.
func ParseProduct(html string, pageURL *url.URL) catalog.Product {
	product := catalog.Product{
		Currency:  "USD",
		ImageURLs: make([]string, 0, maxProductImages),
		BaseUOM:   "unit",
	}
	if pageURL != nil {
		q := pageURL.Query()
		product.ID = q.Get("id")
		product.ProductGroupID = q.Get("productGroupId")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return product
	}

	product.Title = firstText(doc, "h1, .product-title, .page-title")
	product.Subtitle = firstText(doc, ".product-subtitle, .subtitle")
	product.Description = firstText(doc, `.product-description, [class*="description"]`)

	seen := make(map[string]bool)
	doc.Find(`.product-image img, .gallery img, [class*="product"] img`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok || src == "" || strings.HasPrefix(src, "data:") || seen[src] {
			return true
		}
		seen[src] = true
		product.ImageURLs = append(product.ImageURLs, src)
		return len(product.ImageURLs) < maxProductImages
	})

	if m := uomRe.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		product.BaseUOM = strings.TrimSuffix(strings.ToLower(m[2]), "s")
	}

	return product
}

func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
