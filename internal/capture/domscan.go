package capture

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// urlAttrs maps element selectors to the attribute that may carry a URL.
var urlAttrs = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"link[href]", "href"},
	{"script[src]", "src"},
	{"iframe[src]", "src"},
	{"form[action]", "action"},
}

// extractCandidates pulls URL candidates out of a page snapshot. Relative
// references are resolved against base so markup like action="/checkout"
// still classifies. Payment links present in the DOM but never requested
// are only visible through this sweep.
func extractCandidates(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)

	for _, ua := range urlAttrs {
		doc.Find(ua.selector).Each(func(_ int, sel *goquery.Selection) {
			raw, ok := sel.Attr(ua.attr)
			if !ok || raw == "" {
				return
			}
			abs := resolveRef(base, raw)
			if abs == "" {
				return
			}
			if _, dup := seen[abs]; dup {
				return
			}
			seen[abs] = struct{}{}
			out = append(out, abs)
		})
	}

	return out
}

// resolveRef turns raw into an absolute http(s) URL, or "" when it cannot.
func resolveRef(base *url.URL, raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
