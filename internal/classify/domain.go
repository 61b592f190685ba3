package classify

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Resolver reduces a hostname to its registrable domain (eTLD+1).
// Implementations must not fail on malformed hosts: the worst case is
// returning the input unchanged.
type Resolver interface {
	Resolve(host string) string
}

// NaiveResolver approximates the registrable domain as the last two
// dot-separated labels. Wrong for multi-label public suffixes such as
// co.uk, but it never needs suffix data.
type NaiveResolver struct{}

// Resolve implements Resolver.
func (NaiveResolver) Resolve(host string) string {
	host = normalizeHost(host)
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// PSLResolver resolves registrable domains against the public suffix list.
// Hosts the list rejects (unknown or private suffixes, bare labels) degrade
// to the naive last-two-labels answer.
type PSLResolver struct {
	fallback NaiveResolver
}

// Resolve implements Resolver.
func (r PSLResolver) Resolve(host string) string {
	host = normalizeHost(host)
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return r.fallback.Resolve(host)
	}
	return etld1
}

// NewResolver returns the resolver for the run: the PSL-backed one unless
// the naive variant is forced.
func NewResolver(naive bool) Resolver {
	if naive {
		return NaiveResolver{}
	}
	return PSLResolver{}
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}
