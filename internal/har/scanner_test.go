package har

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paywatch/pmtproc/internal/classify"
	"github.com/paywatch/pmtproc/internal/matches"
)

func writeHAR(t *testing.T, doc HAR) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "scan.har")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanner_MatchesEntryURLs(t *testing.T) {
	path := writeHAR(t, HAR{Log: Log{
		Version: "1.2",
		Entries: []Entry{
			{Request: Request{URL: "https://api.stripe.com/v1/tokens"}},
			{Request: Request{URL: "https://example.com/about"}},
		},
	}})

	rec := matches.NewRecorder(10)
	s := NewScanner(classify.MustMatcher())

	added, err := s.ScanFile(path, rec)
	if err != nil {
		t.Fatalf("ScanFile() error = %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if !rec.HasSeen("https://api.stripe.com/v1/tokens") {
		t.Error("stripe URL should be recorded")
	}
	if rec.HasSeen("https://example.com/about") {
		t.Error("non-payment URL should not be recorded")
	}
}

func TestScanner_RecoversURLFromResponseHeader(t *testing.T) {
	// A redirect Location pointing at a payment domain that was never
	// requested directly must still be recovered.
	path := writeHAR(t, HAR{Log: Log{
		Version: "1.2",
		Entries: []Entry{
			{
				Request: Request{URL: "https://example.com/donate"},
				Response: Response{
					Status: 302,
					Headers: []NameValue{
						{Name: "Location", Value: "https://www.paypal.com/checkoutnow?token=abc"},
					},
				},
			},
		},
	}})

	rec := matches.NewRecorder(10)
	added, err := NewScanner(classify.MustMatcher()).ScanFile(path, rec)
	if err != nil {
		t.Fatalf("ScanFile() error = %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if !rec.HasSeen("https://www.paypal.com/checkoutnow?token=abc") {
		t.Error("header-embedded payment URL should be recorded")
	}
}

func TestScanner_ScansRequestHeaders(t *testing.T) {
	path := writeHAR(t, HAR{Log: Log{
		Entries: []Entry{
			{
				Request: Request{
					URL: "https://example.com/",
					Headers: []NameValue{
						{Name: "Referer", Value: "https://js.stripe.com/v3"},
					},
				},
			},
		},
	}})

	rec := matches.NewRecorder(10)
	if _, err := NewScanner(classify.MustMatcher()).ScanFile(path, rec); err != nil {
		t.Fatalf("ScanFile() error = %v", err)
	}
	if !rec.HasSeen("https://js.stripe.com/v3") {
		t.Error("request-header URL should be recorded")
	}
}

func TestScanner_RepeatedHeaderValuesCountedOnce(t *testing.T) {
	entry := Entry{
		Request: Request{
			URL: "https://example.com/a",
			Headers: []NameValue{
				{Name: "Referer", Value: "https://js.stripe.com/v3"},
			},
		},
	}
	path := writeHAR(t, HAR{Log: Log{Entries: []Entry{entry, entry, entry}}})

	rec := matches.NewRecorder(10)
	added, err := NewScanner(classify.MustMatcher()).ScanFile(path, rec)
	if err != nil {
		t.Fatalf("ScanFile() error = %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1 (identical header values are skipped after the first)", added)
	}
}

func TestScanner_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.har")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := matches.NewRecorder(10)
	if _, err := NewScanner(classify.MustMatcher()).ScanFile(path, rec); err == nil {
		t.Error("ScanFile() should report malformed JSON")
	}
	if rec.Len() != 0 {
		t.Error("nothing should be recorded from a malformed file")
	}
}

func TestScanner_MissingFile(t *testing.T) {
	rec := matches.NewRecorder(10)
	if _, err := NewScanner(classify.MustMatcher()).ScanFile(filepath.Join(t.TempDir(), "nope.har"), rec); err == nil {
		t.Error("ScanFile() should report a missing file")
	}
}

func TestScanner_MissingKeysTolerated(t *testing.T) {
	// Minimal documents with absent sections parse to zero values.
	path := filepath.Join(t.TempDir(), "sparse.har")
	if err := os.WriteFile(path, []byte(`{"log":{}}`), 0644); err != nil {
		t.Fatal(err)
	}

	rec := matches.NewRecorder(10)
	added, err := NewScanner(classify.MustMatcher()).ScanFile(path, rec)
	if err != nil {
		t.Fatalf("ScanFile() error = %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
}
