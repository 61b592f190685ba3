package har

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

const creatorName = "pmtproc"

// Recorder assembles a HAR document from CDP Network events and writes it
// to disk exactly once. Handlers are invoked by the capture session's event
// loop; Flush may race with them from the teardown path, so all state is
// mutex-guarded.
type Recorder struct {
	mu      sync.Mutex
	path    string
	version string
	page    Page

	pending map[proto.NetworkRequestID]*pendingEntry
	order   []proto.NetworkRequestID

	flushOnce sync.Once
	flushErr  error
}

type pendingEntry struct {
	entry    Entry
	started  time.Duration // monotonic request time
	finished bool
}

// NewRecorder creates a recorder that will write to path. target names the
// single navigated page.
func NewRecorder(path, target, version string) *Recorder {
	return &Recorder{
		path:    path,
		version: version,
		page: Page{
			StartedDateTime: time.Now().UTC().Format(time.RFC3339Nano),
			ID:              "page_1",
			Title:           target,
			PageTimings:     PageTimings{OnContentLoad: -1, OnLoad: -1},
		},
		pending: make(map[proto.NetworkRequestID]*pendingEntry),
	}
}

// Path returns the output file path.
func (r *Recorder) Path() string {
	return r.path
}

// HandleRequest records an outgoing request.
func (r *Recorder) HandleRequest(e *proto.NetworkRequestWillBeSent) {
	if e == nil || e.Request == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[e.RequestID] = &pendingEntry{
		entry: Entry{
			StartedDateTime: e.WallTime.Time().UTC().Format(time.RFC3339Nano),
			Request: Request{
				Method:      e.Request.Method,
				URL:         e.Request.URL,
				HTTPVersion: "",
				Headers:     headerList(e.Request.Headers),
				QueryString: queryList(e.Request.URL),
				Cookies:     []NameValue{},
				HeadersSize: -1,
				BodySize:    -1,
			},
			Response: Response{
				Headers:     []NameValue{},
				HeadersSize: -1,
				BodySize:    -1,
			},
			Timings: Timings{Send: 0, Wait: -1, Receive: -1},
			Pageref: r.page.ID,
		},
		started: e.Timestamp.Duration(),
	}
	r.order = append(r.order, e.RequestID)
}

// HandleResponse fills in the response side of a pending entry.
func (r *Recorder) HandleResponse(e *proto.NetworkResponseReceived) {
	if e == nil || e.Response == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[e.RequestID]
	if !ok {
		return
	}

	p.entry.Response.Status = e.Response.Status
	p.entry.Response.StatusText = e.Response.StatusText
	p.entry.Response.HTTPVersion = e.Response.Protocol
	p.entry.Response.Headers = headerList(e.Response.Headers)
	p.entry.Response.Content.MimeType = e.Response.MIMEType
	p.entry.Timings.Wait = monotonicMillis(e.Timestamp.Duration() - p.started)

	if loc := headerValue(e.Response.Headers, "Location"); loc != "" {
		p.entry.Response.RedirectURL = loc
	}
}

// HandleFinished closes out a pending entry with its total time and size.
func (r *Recorder) HandleFinished(e *proto.NetworkLoadingFinished) {
	if e == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[e.RequestID]
	if !ok {
		return
	}

	p.finished = true
	p.entry.Time = monotonicMillis(e.Timestamp.Duration() - p.started)
	p.entry.Response.Content.Size = int64(e.EncodedDataLength)
	if p.entry.Timings.Wait >= 0 {
		p.entry.Timings.Receive = p.entry.Time - p.entry.Timings.Wait
	}
}

// HandleFailed closes out a pending entry that never completed.
func (r *Recorder) HandleFailed(e *proto.NetworkLoadingFailed) {
	if e == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[e.RequestID]
	if !ok {
		return
	}

	p.finished = true
	p.entry.Time = monotonicMillis(e.Timestamp.Duration() - p.started)
	if p.entry.Response.StatusText == "" {
		p.entry.Response.StatusText = e.ErrorText
	}
}

// EntryCount returns the number of recorded requests so far.
func (r *Recorder) EntryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Flush serializes the document and writes it to disk. Only the first call
// writes; every later call returns the first call's result. Entries still
// in flight are written with whatever was observed, so the file is valid
// JSON even when the browser died mid-transfer.
func (r *Recorder) Flush() error {
	r.flushOnce.Do(func() {
		r.flushErr = r.write()
	})
	return r.flushErr
}

func (r *Recorder) write() error {
	r.mu.Lock()
	doc := HAR{
		Log: Log{
			Version: "1.2",
			Creator: Creator{Name: creatorName, Version: r.version},
			Pages:   []Page{r.page},
			Entries: make([]Entry, 0, len(r.order)),
		},
	}
	for _, id := range r.order {
		if p, ok := r.pending[id]; ok {
			doc.Log.Entries = append(doc.Log.Entries, p.entry)
		}
	}
	r.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode har: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("write har: %w", err)
	}
	return nil
}

// headerList converts CDP headers into sorted HAR name/value pairs.
func headerList(h proto.NetworkHeaders) []NameValue {
	out := make([]NameValue, 0, len(h))
	for name, value := range h {
		out = append(out, NameValue{Name: name, Value: value.Str()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// headerValue looks up a header case-sensitively, then falls back to the
// lowercase form CDP uses for HTTP/2 responses.
func headerValue(h proto.NetworkHeaders, name string) string {
	if v, ok := h[name]; ok {
		return v.Str()
	}
	if v, ok := h[lower(name)]; ok {
		return v.Str()
	}
	return ""
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// queryList parses query parameters from a raw URL.
func queryList(raw string) []NameValue {
	out := []NameValue{}
	u, err := url.Parse(raw)
	if err != nil {
		return out
	}
	for name, values := range u.Query() {
		for _, v := range values {
			out = append(out, NameValue{Name: name, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func monotonicMillis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1000.0
}
