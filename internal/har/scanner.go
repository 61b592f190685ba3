package har

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/paywatch/pmtproc/internal/classify"
	"github.com/paywatch/pmtproc/internal/matches"
)

// Scanner re-reads a written HAR file for payment URLs the live listener
// may have missed: cached requests never re-issued on the wire, and URLs
// embedded in request or response header values (redirect Locations,
// referrer chains, CSP reports).
type Scanner struct {
	matcher *classify.Matcher
}

// NewScanner creates a scanner using the given payment matcher.
func NewScanner(matcher *classify.Matcher) *Scanner {
	return &Scanner{matcher: matcher}
}

// ScanFile parses the HAR at path and appends every payment match to rec.
// It returns the number of URLs appended. A parse failure is returned to
// the caller to report as a warning; it never aborts the run.
func (s *Scanner) ScanFile(path string, rec *matches.Recorder) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read har: %w", err)
	}

	var doc HAR
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse har: %w", err)
	}

	return s.scan(&doc, rec), nil
}

// scan walks every entry, classifying the request URL and any URL-shaped
// strings inside header values. Header values repeat heavily across
// entries, so already-processed values are skipped via a Bloom-fronted set.
func (s *Scanner) scan(doc *HAR, rec *matches.Recorder) int {
	seen := newValueSet(len(doc.Log.Entries) * 8)
	added := 0

	for _, entry := range doc.Log.Entries {
		if s.matcher.IsPaymentURL(entry.Request.URL) {
			rec.Add(entry.Request.URL)
			added++
		}
		added += s.scanHeaders(entry.Request.Headers, seen, rec)
		added += s.scanHeaders(entry.Response.Headers, seen, rec)
	}

	return added
}

func (s *Scanner) scanHeaders(headers []NameValue, seen *valueSet, rec *matches.Recorder) int {
	added := 0
	for _, h := range headers {
		if h.Value == "" || seen.has(h.Value) {
			continue
		}
		seen.add(h.Value)

		for _, u := range classify.ExtractURLs(h.Value) {
			if s.matcher.IsPaymentURL(u) {
				rec.Add(u)
				added++
			}
		}
	}
	return added
}

// valueSet is a Bloom-fronted string set: the filter answers the common
// "definitely new" case cheaply, the exact map confirms positives.
type valueSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newValueSet(estimated int) *valueSet {
	if estimated < 1000 {
		estimated = 1000
	}
	return &valueSet{
		filter: bloom.NewWithEstimates(uint(estimated), 0.001),
		exact:  make(map[string]struct{}),
	}
}

func (v *valueSet) has(s string) bool {
	if !v.filter.TestString(s) {
		return false
	}
	_, ok := v.exact[s]
	return ok
}

func (v *valueSet) add(s string) {
	v.filter.AddString(s)
	v.exact[s] = struct{}{}
}
