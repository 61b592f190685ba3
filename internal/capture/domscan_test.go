package capture

import (
	"net/url"
	"testing"
)

func TestExtractCandidates(t *testing.T) {
	base, _ := url.Parse("https://www.givesendgo.com/demo")
	html := `<html><head>
		<link href="/assets/app.css" rel="stylesheet">
		<script src="https://js.stripe.com/v3"></script>
	</head><body>
		<a href="https://www.paypal.com/checkoutnow">donate</a>
		<a href="/about">about</a>
		<a href="mailto:team@example.com">mail</a>
		<iframe src="//checkout.adyen.com/frame"></iframe>
		<form action="/payment/submit" method="post"></form>
	</body></html>`

	got := extractCandidates(html, base)

	want := map[string]bool{
		"https://www.givesendgo.com/assets/app.css":  true,
		"https://js.stripe.com/v3":                   true,
		"https://www.paypal.com/checkoutnow":         true,
		"https://www.givesendgo.com/about":           true,
		"https://checkout.adyen.com/frame":           true,
		"https://www.givesendgo.com/payment/submit":  true,
	}

	if len(got) != len(want) {
		t.Fatalf("extractCandidates returned %d URLs, want %d: %v", len(got), len(want), got)
	}
	for _, u := range got {
		if !want[u] {
			t.Errorf("unexpected candidate %q", u)
		}
	}
}

func TestExtractCandidates_SkipsNonHTTP(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	html := `<a href="javascript:void(0)">x</a><a href="tel:+15550100">y</a>`

	if got := extractCandidates(html, base); len(got) != 0 {
		t.Errorf("non-http schemes should be skipped, got %v", got)
	}
}

func TestExtractCandidates_Deduplicates(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	html := `<a href="/pay">a</a><a href="/pay">b</a>`

	got := extractCandidates(html, base)
	if len(got) != 1 {
		t.Errorf("duplicates should collapse, got %v", got)
	}
}

func TestExtractCandidates_MalformedHTML(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	// The HTML5 parser is forgiving; this must not panic.
	got := extractCandidates(`<a href="/x"<b>broken`, base)
	for _, u := range got {
		if u == "" {
			t.Error("empty candidate from malformed markup")
		}
	}
}
