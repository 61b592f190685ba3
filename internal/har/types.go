// Package har records network traffic into HTTP Archive (HAR) 1.2 files
// and scans existing archives for payment-related URLs.
package har

// HAR is the root of a HAR 1.2 document.
type HAR struct {
	Log Log `json:"log"`
}

// Log holds the recorded pages and entries.
type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Pages   []Page  `json:"pages"`
	Entries []Entry `json:"entries"`
}

// Creator identifies the recording tool.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Page describes one top-level navigation.
type Page struct {
	StartedDateTime string      `json:"startedDateTime"`
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	PageTimings     PageTimings `json:"pageTimings"`
}

// PageTimings holds page-level timing marks. -1 means not available.
type PageTimings struct {
	OnContentLoad float64 `json:"onContentLoad"`
	OnLoad        float64 `json:"onLoad"`
}

// Entry is one request/response pair.
type Entry struct {
	StartedDateTime string   `json:"startedDateTime"`
	Time            float64  `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	Cache           struct{} `json:"cache"`
	Timings         Timings  `json:"timings"`
	Pageref         string   `json:"pageref,omitempty"`
}

// Request is the recorded request side of an entry.
type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	Cookies     []NameValue `json:"cookies"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

// Response is the recorded response side of an entry. Bodies are omitted;
// only Content.Size and Content.MimeType are kept.
type Response struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

// Content summarizes a response body without carrying it.
type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Timings holds per-entry phase timings in milliseconds.
type Timings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

// NameValue is a HAR name/value pair, used for headers, cookies and query
// string parameters.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
