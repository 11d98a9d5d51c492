package matrix

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayam04/pos-scraper/internal/catalog"
)

var (
	rowQuantityRe  = regexp.MustCompile(`(\d{2,}|\d+,\d+)`)
	cellQuantityRe = regexp.MustCompile(`(\d+)`)
	priceRe        = regexp.MustCompile(`\$([\d,.]+)`)
)

// ParsePricing harvests the quantity/price rows a rendered variant page is
// showing. Two passes cover the layouts the configurator uses: labelled
// pricing rows anywhere on the page, and bare quantity/price cell pairs
// inside tables. Quantities outside [minQty, maxQty) and non-positive
// prices are discarded; a quantity the page repeats keeps its first-seen
// price. Tiers come back sorted ascending by quantity, with the unit price
// derived from the row total.
func ParsePricing(html string, minQty, maxQty int) []catalog.PriceTier {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	type rawTier struct {
		quantity int
		total    float64
	}
	var found []rawTier

	doc.Find(`tr, .pricing-row, .quantity-row, [class*="price-row"]`).Each(func(_ int, row *goquery.Selection) {
		text := row.Text()
		qty, ok := parseQuantity(rowQuantityRe, text)
		if !ok {
			return
		}
		total, ok := parsePrice(text)
		if !ok {
			return
		}
		found = append(found, rawTier{qty, total})
	})

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		cells := table.Find("td")
		cells.Each(func(i int, cell *goquery.Selection) {
			if i+1 >= cells.Length() {
				return
			}
			qty, ok := parseQuantity(cellQuantityRe, cell.Text())
			if !ok {
				return
			}
			total, ok := parsePrice(cells.Eq(i + 1).Text())
			if !ok {
				return
			}
			found = append(found, rawTier{qty, total})
		})
	})

	seen := make(map[int]bool)
	tiers := make([]catalog.PriceTier, 0, len(found))
	for _, raw := range found {
		if raw.quantity < minQty || raw.quantity >= maxQty || raw.total <= 0 {
			continue
		}
		if seen[raw.quantity] {
			continue
		}
		seen[raw.quantity] = true
		tiers = append(tiers, catalog.PriceTier{
			Quantity:   raw.quantity,
			UnitPrice:  catalog.Money{Amount: catalog.UnitPrice(raw.total, raw.quantity), Currency: "USD"},
			TotalPrice: catalog.Money{Amount: raw.total, Currency: "USD"},
		})
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Quantity < tiers[j].Quantity })
	return tiers
}

func parseQuantity(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parsePrice(text string) (float64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	cleaned := strings.TrimRight(strings.ReplaceAll(m[1], ",", ""), ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
