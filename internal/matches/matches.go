// Package matches collects payment-pattern hits from concurrent producers.
package matches

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Recorder is an append-only collection of matched URLs. Live-capture
// callbacks, the DOM sweep and the HAR post-scan all append to the same
// recorder; appends from concurrent producers are safe. Order of first
// discovery is preserved for reporting tie-breaks.
type Recorder struct {
	mu     sync.RWMutex
	urls   []string
	filter *bloom.BloomFilter
	exact  map[string]struct{} // confirms Bloom positives
}

// NewRecorder creates a recorder sized for the expected number of matches.
func NewRecorder(estimatedItems int) *Recorder {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}
	return &Recorder{
		urls:   make([]string, 0),
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add appends a matched URL and reports whether it was new.
func (r *Recorder) Add(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.urls = append(r.urls, url)

	if r.filter.TestString(url) {
		if _, ok := r.exact[url]; ok {
			return false
		}
	}
	r.filter.AddString(url)
	r.exact[url] = struct{}{}
	return true
}

// AddAll appends every URL in order.
func (r *Recorder) AddAll(urls []string) {
	for _, u := range urls {
		r.Add(u)
	}
}

// HasSeen reports whether a URL was recorded before.
func (r *Recorder) HasSeen(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.filter.TestString(url) {
		return false
	}
	_, ok := r.exact[url]
	return ok
}

// All returns a copy of every recorded URL, duplicates included, in
// append order.
func (r *Recorder) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.urls))
	copy(out, r.urls)
	return out
}

// Len returns the total number of recorded URLs, duplicates included.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.urls)
}

// UniqueCount returns the number of distinct recorded URLs.
func (r *Recorder) UniqueCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exact)
}
