package discovery

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayam04/pos-scraper/internal/catalog"
)

var (
	paginationCountRe = regexp.MustCompile(`of\s+([\d,]+)`)
	totalResultsRe    = regexp.MustCompile(`"totalResults"\s*:\s*(\d+)`)
	resultsLabelRe    = regexp.MustCompile(`(?i)([\d,]+)\s*(?:Results|Products|Items)`)
)

// swatchAttrs are the data attributes category tiles use to carry variant
// URLs on color and material swatches.
var swatchAttrs = []string{"data-url", "data-href", "data-swatch-url"}

// HarvestLinks extracts every candidate product URL from a rendered
// category page: product anchors plus swatch elements that carry product
// URLs in data attributes. Results are normalized against base and
// deduplicated within the page, in first-seen order.
func HarvestLinks(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	add := func(href string) {
		if !strings.Contains(href, "/p/") {
			return
		}
		normalized, ok := catalog.Normalize(href, base)
		if !ok || seen[normalized] {
			return
		}
		seen[normalized] = true
		links = append(links, normalized)
	}

	doc.Find(`a[href*="/p/"]`).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			add(href)
		}
	})

	doc.Find("[data-url], [data-href], [data-swatch-url]").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range swatchAttrs {
			if href, ok := sel.Attr(attr); ok && href != "" {
				add(href)
				break
			}
		}
	})

	return links
}

// ProductCount reads the category's advertised result total from the
// pagination header, the embedded search state, or a results label, in that
// order. Zero means no count could be found.
func ProductCount(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		pagination := doc.Find(".pagination").First().Text()
		if m := paginationCountRe.FindStringSubmatch(strings.ReplaceAll(pagination, ",", "")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}

	if m := totalResultsRe.FindStringSubmatch(html); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}

	if m := resultsLabelRe.FindStringSubmatch(html); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			return n
		}
	}

	return 0
}

// PageURL addresses one page of a category listing by offset, preserving
// whatever parameters the category URL already carries.
func PageURL(categoryURL string, start, size int) string {
	u, err := url.Parse(categoryURL)
	if err != nil {
		return categoryURL
	}
	q := u.Query()
	q.Set("start", strconv.Itoa(start))
	q.Set("sz", strconv.Itoa(size))
	u.RawQuery = q.Encode()
	return u.String()
}
