package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type PriceTier struct {
	Quantity   int   `json:"quantity"`
	UnitPrice  Money `json:"unit_price"`
	TotalPrice Money `json:"total_price"`
}

type OptionValue struct {
	Value string `json:"value"`
	ID    string `json:"id"`
}

type Option struct {
	Name   string        `json:"name"`
	Key    string        `json:"key"`
	Values []OptionValue `json:"values"`
}

// Selection maps an option key to the value chosen for it. A complete
// selection has exactly one entry per declared option.
type Selection map[string]OptionValue

type Variant struct {
	Available bool        `json:"available"`
	Selection Selection   `json:"selection"`
	Pricing   []PriceTier `json:"pricing"`
}

type Product struct {
	ID             string   `json:"id"`
	ProductGroupID string   `json:"product_group_id,omitempty"`
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle,omitempty"`
	Description    string   `json:"description,omitempty"`
	Currency       string   `json:"currency"`
	ImageURLs      []string `json:"image_urls"`
	BaseUOM        string   `json:"base_uom,omitempty"`
}

type ExtractionResult struct {
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
	Product   Product   `json:"product"`
	Options   []Option  `json:"options"`
	Variants  []Variant `json:"variants"`
}

type DiscoveryStats struct {
	TotalURLs    int `json:"total_urls"`
	BaseProducts int `json:"base_products"`
	VariantURLs  int `json:"variant_urls"`
}

type DiscoveryResult struct {
	Source      string         `json:"source"`
	CollectedAt time.Time      `json:"collected_at"`
	ProductURLs []string       `json:"product_urls"`
	Stats       DiscoveryStats `json:"stats"`
}

func NewDiscoveryResult(source string) *DiscoveryResult {
	return &DiscoveryResult{
		Source:      source,
		CollectedAt: time.Now().UTC().Truncate(time.Second),
		ProductURLs: make([]string, 0),
	}
}

func NewExtractionResult(sourceURL string) *ExtractionResult {
	return &ExtractionResult{
		SourceURL: sourceURL,
		ScrapedAt: time.Now().UTC().Truncate(time.Second),
		Options:   make([]Option, 0),
		Variants:  make([]Variant, 0),
	}
}

// UnitPrice derives the per-item price from a tier total, rounded to four
// decimal places.
func UnitPrice(total float64, quantity int) float64 {
	if quantity <= 0 {
		return 0
	}
	return math.Round(total/float64(quantity)*10000) / 10000
}

func (m *Money) IsValid() bool {
	return m.Amount > 0 && m.Currency != ""
}

// IsValid reports whether the tier is internally consistent. Unit prices are
// rounded to four decimals when derived from the total, so the product of
// unit price and quantity reconstructs the total only within a tolerance.
func (t *PriceTier) IsValid() bool {
	if t.Quantity <= 0 {
		return false
	}
	if !t.UnitPrice.IsValid() || !t.TotalPrice.IsValid() {
		return false
	}
	if t.UnitPrice.Currency != t.TotalPrice.Currency {
		return false
	}
	diff := math.Abs(t.UnitPrice.Amount*float64(t.Quantity) - t.TotalPrice.Amount)
	return diff <= 0.01+t.TotalPrice.Amount*0.005
}

func (o *Option) IsValid() bool {
	return o.Name != "" && o.Key != "" && o.Key == strings.ToLower(o.Key) && len(o.Values) > 0
}

func (r *DiscoveryResult) Validate() []string {
	var errors []string

	if r.Source == "" {
		errors = append(errors, "source is required")
	}
	if r.CollectedAt.IsZero() {
		errors = append(errors, "collected_at is required")
	}

	seen := make(map[string]bool, len(r.ProductURLs))
	base, variants := 0, 0
	for _, u := range r.ProductURLs {
		if seen[u] {
			errors = append(errors, fmt.Sprintf("duplicate product url: %s", u))
			continue
		}
		seen[u] = true
		if Classify(u) == KindVariant {
			variants++
		} else {
			base++
		}
	}

	if r.Stats.TotalURLs != len(r.ProductURLs) {
		errors = append(errors, fmt.Sprintf("total_urls %d does not match %d collected urls", r.Stats.TotalURLs, len(r.ProductURLs)))
	}
	if r.Stats.BaseProducts+r.Stats.VariantURLs != r.Stats.TotalURLs {
		errors = append(errors, "base_products and variant_urls do not sum to total_urls")
	}
	if r.Stats.BaseProducts != base || r.Stats.VariantURLs != variants {
		errors = append(errors, fmt.Sprintf("stats %d/%d disagree with reclassified counts %d/%d", r.Stats.BaseProducts, r.Stats.VariantURLs, base, variants))
	}

	return errors
}

func (r *ExtractionResult) Validate() []string {
	var errors []string

	if r.SourceURL == "" {
		errors = append(errors, "source_url is required")
	}
	if r.ScrapedAt.IsZero() {
		errors = append(errors, "scraped_at is required")
	}
	if r.Product.ID == "" {
		errors = append(errors, "product id is required")
	}
	if r.Product.Title == "" {
		errors = append(errors, "product title is required")
	}

	keys := make(map[string]bool, len(r.Options))
	for _, opt := range r.Options {
		if !opt.IsValid() {
			errors = append(errors, fmt.Sprintf("invalid option %q", opt.Key))
		}
		if keys[opt.Key] {
			errors = append(errors, fmt.Sprintf("duplicate option key: %s", opt.Key))
		}
		keys[opt.Key] = true
	}

	for i, v := range r.Variants {
		if len(v.Selection) != len(keys) {
			errors = append(errors, fmt.Sprintf("variant %d selects %d of %d options", i, len(v.Selection), len(keys)))
		}
		for key := range v.Selection {
			if !keys[key] {
				errors = append(errors, fmt.Sprintf("variant %d selects undeclared option %q", i, key))
			}
		}
		if len(v.Pricing) == 0 {
			errors = append(errors, fmt.Sprintf("variant %d has no pricing", i))
		}
		prev := 0
		for _, tier := range v.Pricing {
			if !tier.IsValid() {
				errors = append(errors, fmt.Sprintf("variant %d has an inconsistent tier at quantity %d", i, tier.Quantity))
			}
			if tier.Quantity <= prev {
				errors = append(errors, fmt.Sprintf("variant %d quantities are not strictly increasing", i))
				break
			}
			prev = tier.Quantity
		}
	}

	return errors
}
