package capture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paywatch/pmtproc/internal/classify"
	"github.com/paywatch/pmtproc/internal/matches"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		TargetURL:       "https://www.givesendgo.com/demo",
		HARPath:         filepath.Join(t.TempDir(), "pmtproc_demo_monitor.har"),
		UserAgent:       "test-agent",
		ViewportWidth:   1920,
		ViewportHeight:  1080,
		NavTimeout:      time.Second,
		PollInterval:    10 * time.Millisecond,
		DOMScanInterval: time.Hour,
		Headless:        true,
		Version:         "test",
	}
}

func TestTeardown_RunsOnce(t *testing.T) {
	cfg := testConfig(t)

	reaped := 0
	s := New(cfg, classify.MustMatcher(), matches.NewRecorder(10), nil, func() { reaped++ })

	// No browser was launched; teardown must still complete cleanly,
	// flush the HAR and be idempotent.
	s.teardown()
	s.teardown()

	if reaped != 1 {
		t.Errorf("reap invoked %d times, want exactly 1", reaped)
	}

	data, err := os.ReadFile(cfg.HARPath)
	if err != nil {
		t.Fatalf("HAR not written by teardown: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Errorf("HAR written by teardown is not valid JSON: %v", err)
	}
}

func TestTeardown_AfterEarlyFlush(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg, classify.MustMatcher(), matches.NewRecorder(10), nil, nil)

	// Simulate the page-close trigger flushing first.
	if err := s.harRec.Flush(); err != nil {
		t.Fatalf("early flush failed: %v", err)
	}
	s.teardown()

	if _, err := os.Stat(cfg.HARPath); err != nil {
		t.Errorf("HAR missing after teardown: %v", err)
	}
}

func TestSession_HARPath(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg, classify.MustMatcher(), matches.NewRecorder(10), nil, nil)

	if got := s.HARPath(); got != cfg.HARPath {
		t.Errorf("HARPath() = %q, want %q", got, cfg.HARPath)
	}
}
