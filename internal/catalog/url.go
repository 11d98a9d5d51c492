package catalog

import (
	"net/url"
	"strings"
)

// Storefronts of this family address a configured product by appending
// dwvar_-prefixed query parameters to the base product URL. Presence of any
// such parameter is the structural rule separating variant URLs from base
// product URLs.
const variantParamPrefix = "dwvar_"

type URLKind int

const (
	KindBaseProduct URLKind = iota
	KindVariant
)

func (k URLKind) String() string {
	if k == KindVariant {
		return "variant"
	}
	return "base_product"
}

// Classify assigns a harvested URL to exactly one kind. It is a pure
// function of the URL string: the same input always yields the same kind,
// and unparseable input falls back to the base product kind rather than
// failing.
func Classify(rawURL string) URLKind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return KindBaseProduct
	}
	for key := range u.Query() {
		if strings.HasPrefix(key, variantParamPrefix) {
			return KindVariant
		}
	}
	return KindBaseProduct
}

// Normalize rewrites a harvested href onto the site origin, keeping only
// the components that identify the product: the path and any dwvar_
// variant-selector parameters. Tracking parameters and fragments are
// dropped, and surviving parameters are re-encoded in sorted key order so
// equal selections always produce equal strings. The second return is false
// for hrefs that cannot address a product page.
func Normalize(href string, base *url.URL) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}

	kept := url.Values{}
	for key, vals := range resolved.Query() {
		if strings.HasPrefix(key, variantParamPrefix) {
			kept[key] = vals
		}
	}

	normalized := url.URL{
		Scheme:   resolved.Scheme,
		Host:     resolved.Host,
		Path:     resolved.Path,
		RawQuery: kept.Encode(),
	}
	if base != nil {
		normalized.Scheme = base.Scheme
		normalized.Host = base.Host
	}
	return normalized.String(), true
}
