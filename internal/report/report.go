// Package report aggregates matched URLs into the console summary.
package report

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/paywatch/pmtproc/internal/classify"
)

// DomainCount is one row of the domain table.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Summary is the final aggregation of a run.
type Summary struct {
	UniqueURLs []string      `json:"unique_urls"`
	Domains    []DomainCount `json:"domains"`
}

// Build filters the raw match list to unique absolute URLs, resolves each
// to its registrable domain and tallies counts. The domain table is ordered
// by descending count; ties keep first-appearance order over the sorted
// URL list.
func Build(all []string, resolver classify.Resolver) *Summary {
	seen := make(map[string]struct{})
	unique := make([]string, 0, len(all))
	for _, u := range all {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}
	sort.Strings(unique)

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, raw := range unique {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		dom := resolver.Resolve(parsed.Hostname())
		if _, ok := counts[dom]; !ok {
			order = append(order, dom)
		}
		counts[dom]++
	}

	domains := make([]DomainCount, 0, len(order))
	for _, dom := range order {
		domains = append(domains, DomainCount{Domain: dom, Count: counts[dom]})
	}
	sort.SliceStable(domains, func(i, j int) bool { return domains[i].Count > domains[j].Count })

	return &Summary{UniqueURLs: unique, Domains: domains}
}

// Empty reports whether the run produced no matches.
func (s *Summary) Empty() bool {
	return len(s.UniqueURLs) == 0
}

// Render prints the summary sections, or the no-match notice, to w.
func (s *Summary) Render(w io.Writer) {
	if s.Empty() {
		fmt.Fprintln(w, "\nNo matching payment URLs captured. HAR saved for manual inspection.")
		return
	}

	fmt.Fprintln(w, "\n== Payment-processor domains detected ==")
	for _, d := range s.Domains {
		plural := "s"
		if d.Count == 1 {
			plural = ""
		}
		fmt.Fprintf(w, " • %s  (%d request%s)\n", d.Domain, d.Count, plural)
	}

	fmt.Fprintln(w, "\n== Matching request URLs ==")
	for _, u := range s.UniqueURLs {
		fmt.Fprintf(w, " • %s\n", u)
	}
}
