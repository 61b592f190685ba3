package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/paywatch/pmtproc/internal/report"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AppendAndList(t *testing.T) {
	s := openStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	recs := []Record{
		{
			Slug:       "first",
			Target:     "https://www.givesendgo.com/first",
			HARPath:    "/tmp/pmtproc_first_monitor.har",
			StartedAt:  base,
			FinishedAt: base.Add(time.Minute),
			StopReason: "page closed",
			MatchCount: 3,
			Domains:    []report.DomainCount{{Domain: "stripe.com", Count: 3}},
		},
		{
			Slug:       "second",
			Target:     "https://www.givesendgo.com/second",
			HARPath:    "/tmp/pmtproc_second_monitor.har",
			StartedAt:  base.Add(time.Hour),
			FinishedAt: base.Add(time.Hour + time.Minute),
			StopReason: "operator interrupt",
		},
	}

	for _, r := range recs {
		if err := s.Append(r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() length = %d, want 2", len(got))
	}
	if got[0].Slug != "first" || got[1].Slug != "second" {
		t.Errorf("records out of chronological order: %v, %v", got[0].Slug, got[1].Slug)
	}
	if got[0].MatchCount != 3 {
		t.Errorf("MatchCount = %d, want 3", got[0].MatchCount)
	}
	if len(got[0].Domains) != 1 || got[0].Domains[0].Domain != "stripe.com" {
		t.Errorf("Domains = %v, want stripe.com", got[0].Domains)
	}
}

func TestStore_ListEmpty(t *testing.T) {
	s := openStore(t)

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() on empty store = %v, want empty", got)
	}
}
