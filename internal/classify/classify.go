// Package classify decides whether URLs belong to payment processors and
// reduces hosts to their registrable domains.
package classify

import (
	"regexp"
	"strings"
)

// slugRE pulls the campaign slug out of a full GiveSendGo URL.
var slugRE = regexp.MustCompile(`(?i)givesendgo\.com/([^/?#]+)`)

// urlRE matches absolute URL-shaped strings embedded in arbitrary text,
// such as header values.
var urlRE = regexp.MustCompile(`(?i)https?://[^\s'";,]+`)

// DefaultPatterns returns the built-in payment-processor patterns. The
// trailing generic terms ("payment", "checkout", "card") over-match on
// purpose: this is a broad-net heuristic and false positives are acceptable.
func DefaultPatterns() []string {
	return []string{
		`stripe\.com`, `js\.stripe\.com`, `api\.stripe\.com`, `m\.stripe\.network`,
		`paypal\.com`, `paypalobjects\.com`, `braintreepayments?\.com`,
		`adyen\.com`, `checkout\.adyen\.com`, `squareup\.com`, `cash\.app`,
		`authorize\.net`, `cybersource`, `worldpay`, `worldpaygateway`,
		`globalpay`, `globalpayments`, `firstdata`, `fiserv`, `payeezy`,
		`klarna`, `afterpay`, `affirm`, `2checkout`, `verifone`, `checkout\.com`,
		`amazonpay`, `payments\.amazon`, `amazon\.com/ap`, `payoneer`,
		`bluepay`, `bluesnap`, `payline`, `chasepaymentech`, `ingenico`,
		`trustly`, `rapyd`, `payu`, `razorpay`, `mollie`, `bolt\.com`,
		`pay\.google`, `googleapis\.com/payments`, `apple-pay`,
		`apple\.com/apple-pay`, `shopify-payments`, `shopify`,
		`payment`, `checkout`, `card`,
	}
}

// Matcher classifies URLs against a compiled set of payment patterns.
type Matcher struct {
	re *regexp.Regexp
}

// NewMatcher compiles the given patterns into a matcher. Matching is
// case-insensitive. Patterns are regular expression fragments joined as
// alternatives.
func NewMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(patterns, "|"))
	if err != nil {
		return nil, err
	}
	return &Matcher{re: re}, nil
}

// MustMatcher compiles the built-in patterns. Panics only on a broken
// built-in list, which is a programming error.
func MustMatcher() *Matcher {
	m, err := NewMatcher(nil)
	if err != nil {
		panic(err)
	}
	return m
}

// IsPaymentURL reports whether the URL matches any payment pattern.
func (m *Matcher) IsPaymentURL(url string) bool {
	return m.re.MatchString(url)
}

// ExtractURLs returns all absolute URL-shaped substrings found in text.
func ExtractURLs(text string) []string {
	return urlRE.FindAllString(text, -1)
}

// ExtractSlug normalizes a campaign identifier. Full GiveSendGo URLs are
// reduced to the path segment after "givesendgo.com/", stopping at the
// first "/", "?" or "#". Anything else is returned trimmed, which makes
// the operation idempotent on already-extracted slugs.
func ExtractSlug(target string) string {
	if m := slugRE.FindStringSubmatch(target); m != nil {
		return m[1]
	}
	return strings.TrimSpace(target)
}
