package matrix

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayam04/pos-scraper/internal/catalog"
)

// axis is one configurable dimension together with the spf query parameter
// that selects a value for it on the product URL.
type axis struct {
	catalog.Option
	Param string
}

// axisSpecs names the dimension each spf parameter drives and the keywords
// whose presence marks a rendered element as one of its values. The
// declaration order here fixes the option order in the output.
var axisSpecs = []struct {
	param    string
	name     string
	key      string
	keywords []string
}{
	{"spf0", "Product Type", "product_type", []string{"standard", "die cut", "folded", "business cards"}},
	{"spf1", "Shape", "shape", []string{"rectangle", "square", "rounded", "corners"}},
	{"spf2", "Size", "size", []string{"x", "in", "inch", `"`, "'"}},
	{"spf3", "Material", "paper_stock", []string{"pt", "lb", "paper", "cardstock", "gloss", "matte"}},
}

var numericIDRe = regexp.MustCompile(`^\d+$`)

// discoverOptions scans the rendered product page for selectable option
// values. For each axis it collects leaf elements whose text matches the
// axis keywords and that carry a numeric identifier on themselves or a near
// ancestor. Axes that match nothing are dropped; order follows axisSpecs.
func discoverOptions(html string) []axis {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var axes []axis
	for _, spec := range axisSpecs {
		values := discoverValues(doc, spec.keywords)
		if len(values) == 0 {
			continue
		}
		axes = append(axes, axis{
			Option: catalog.Option{Name: spec.name, Key: spec.key, Values: values},
			Param:  spec.param,
		})
	}
	return axes
}

func discoverValues(doc *goquery.Document, keywords []string) []catalog.OptionValue {
	seen := make(map[string]bool)
	var values []catalog.OptionValue

	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if len(text) <= 2 || len(text) >= 100 {
			return
		}

		lower := strings.ToLower(text)
		matched := false
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		id := nearestNumericID(sel)
		if id == "" {
			return
		}

		key := text + "_" + id
		if seen[key] {
			return
		}
		seen[key] = true
		values = append(values, catalog.OptionValue{Value: text, ID: id})
	})

	return values
}

// nearestNumericID looks for a purely numeric data-id, data-value, or id
// attribute on the element or up to two of its ancestors. Values without a
// stable numeric id cannot be driven through the URL and are useless.
func nearestNumericID(sel *goquery.Selection) string {
	current := sel
	for i := 0; i < 3; i++ {
		if current.Length() == 0 {
			return ""
		}
		for _, attr := range []string{"data-id", "data-value", "id"} {
			if v, ok := current.Attr(attr); ok && numericIDRe.MatchString(v) {
				return v
			}
		}
		current = current.Parent()
	}
	return ""
}

// sparse reports whether DOM discovery found too little to be trusted:
// fewer than two axes or fewer than four values overall.
func sparse(axes []axis) bool {
	if len(axes) < 2 {
		return true
	}
	total := 0
	for _, a := range axes {
		total += len(a.Values)
	}
	return total < 4
}

// predefinedAxes is the configurator's known option catalog, substituted
// when DOM discovery comes back too sparse to enumerate a meaningful
// combination space.
func predefinedAxes() []axis {
	return []axis{
		{
			Option: catalog.Option{
				Name: "Shape",
				Key:  "shape",
				Values: []catalog.OptionValue{
					{Value: "Rectangle", ID: "1390"},
					{Value: "Rectangle | Rounded Corners", ID: "1399"},
				},
			},
			Param: "spf1",
		},
		{
			Option: catalog.Option{
				Name: "Size",
				Key:  "size",
				Values: []catalog.OptionValue{
					{Value: "2 x 3.5 in", ID: "1391"},
					{Value: "2 x 2 in", ID: "1406"},
				},
			},
			Param: "spf2",
		},
		{
			Option: catalog.Option{
				Name: "Paper stock",
				Key:  "paper_stock",
				Values: []catalog.OptionValue{
					{Value: "14pt Cardstock Gloss", ID: "1419"},
					{Value: "14pt Cardstock Matte", ID: "1420"},
					{Value: "14pt Cardstock High Gloss (UV)", ID: "1421"},
				},
			},
			Param: "spf3",
		},
	}
}

// combinations enumerates the cartesian product of the axes' values as
// index vectors, odometer style with the last axis fastest. The order is a
// pure function of the axis declaration order, so identical inputs always
// enumerate identically.
func combinations(axes []axis) [][]int {
	if len(axes) == 0 {
		return nil
	}
	total := 1
	for _, a := range axes {
		if len(a.Values) == 0 {
			return nil
		}
		total *= len(a.Values)
	}

	combos := make([][]int, 0, total)
	indices := make([]int, len(axes))
	for {
		combo := make([]int, len(indices))
		copy(combo, indices)
		combos = append(combos, combo)

		i := len(indices) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(axes[i].Values) {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			return combos
		}
	}
}

// selectionFor materializes one index vector as a key-to-value selection
// covering every axis.
func selectionFor(axes []axis, combo []int) catalog.Selection {
	selection := make(catalog.Selection, len(axes))
	for i, a := range axes {
		selection[a.Key] = a.Values[combo[i]]
	}
	return selection
}

// variantURL rebuilds the product URL with the combination's spf parameters
// set, preserving the identifying parameters the URL already carries.
func variantURL(base *url.URL, axes []axis, combo []int) string {
	q := base.Query()
	for i, a := range axes {
		q.Set(a.Param, a.Values[combo[i]].ID)
	}
	rebuilt := *base
	rebuilt.Fragment = ""
	rebuilt.RawQuery = q.Encode()
	return rebuilt.String()
}
