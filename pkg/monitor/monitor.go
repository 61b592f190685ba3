// Package monitor is the public façade: it wires the reaper, the capture
// session, the HAR post-scan and the report into one run.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/paywatch/pmtproc/internal/capture"
	"github.com/paywatch/pmtproc/internal/classify"
	"github.com/paywatch/pmtproc/internal/har"
	"github.com/paywatch/pmtproc/internal/history"
	"github.com/paywatch/pmtproc/internal/logger"
	"github.com/paywatch/pmtproc/internal/matches"
	"github.com/paywatch/pmtproc/internal/reaper"
	"github.com/paywatch/pmtproc/internal/report"
)

// Version is stamped into HAR creator metadata.
const Version = "1.0.0"

// ErrHARNotWritten is returned when the session ended without producing a
// HAR file. It is the only condition (besides bad usage) that makes the
// process exit non-zero.
var ErrHARNotWritten = errors.New("expected HAR file was not created")

// Result summarizes one run.
type Result struct {
	Slug       string
	HARPath    string
	HARWritten bool
	StopReason string
	Summary    *report.Summary
	StartedAt  time.Time
	FinishedAt time.Time
}

// Monitor coordinates a full capture-and-report run.
type Monitor struct {
	config *Config
	log    *logger.Logger
	out    io.Writer
}

// New creates a Monitor from options.
func New(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		config: DefaultConfig(),
		out:    os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.log == nil {
		level := logger.InfoLevel
		if m.config.Debug || m.config.Verbose {
			level = logger.DebugLevel
		}
		m.log = logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stdout})
	}

	return m, nil
}

// Run executes the full lifecycle: reap, capture until the operator is
// done, post-scan the HAR, print the summary and record the run. The
// returned error is ErrHARNotWritten when no archive reached disk.
func (m *Monitor) Run(ctx context.Context) (*Result, error) {
	if err := m.config.Validate(); err != nil {
		return nil, err
	}

	matcher, err := classify.NewMatcher(m.config.Patterns)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &Result{
		Slug:      m.config.Slug(),
		HARPath:   m.config.HARPath(),
		StartedAt: time.Now(),
	}

	m.log.Infof("HAR will be saved to: %s", result.HARPath)

	// Start from a clean slate so stale engine processes from earlier
	// runs cannot interfere.
	r := reaper.New(m.config.ReaperPatterns, m.log)
	r.KillStale()

	rec := matches.NewRecorder(4096)

	session := capture.New(capture.Config{
		TargetURL:       m.config.TargetURL(),
		HARPath:         result.HARPath,
		UserAgent:       m.config.UserAgent,
		ViewportWidth:   m.config.ViewportWidth,
		ViewportHeight:  m.config.ViewportHeight,
		ExtraHeaders:    m.config.ExtraHeaders,
		NavTimeout:      m.config.NavTimeout,
		PollInterval:    m.config.PollInterval,
		DOMScanInterval: m.config.DOMScanInterval,
		Headless:        m.config.Headless,
		Version:         Version,
	}, matcher, rec, m.log, r.KillStale)

	m.log.Infof("Opening %s …", m.config.TargetURL())
	if err := session.Run(ctx); err != nil {
		m.log.Errorf("capture session failed: %v", err)
	}
	result.StopReason = session.StopReason()

	if st, err := os.Stat(result.HARPath); err == nil {
		result.HARWritten = true
		m.log.Infof("HAR successfully written → %s (%d bytes)", result.HARPath, st.Size())
	} else {
		m.log.Errorf("Expected HAR file '%s' was NOT created!", result.HARPath)
	}

	// Second pass: the archive sees traffic the live listener can miss,
	// such as cached responses and URLs inside header values.
	if result.HARWritten {
		scanner := har.NewScanner(matcher)
		if _, err := scanner.ScanFile(result.HARPath, rec); err != nil {
			m.log.Warnf("Could not parse HAR for extra matches: %v", err)
		}
	}

	result.Summary = report.Build(rec.All(), classify.NewResolver(m.config.NaiveDomains))
	result.Summary.Render(m.out)
	result.FinishedAt = time.Now()

	if m.config.History {
		m.recordRun(result)
	}

	if !result.HARWritten {
		return result, ErrHARNotWritten
	}
	return result, nil
}

// ScanHAR runs only the post-scan pass against an existing archive and
// prints the summary. Used by the scan subcommand and handy when a run was
// interrupted before reporting.
func (m *Monitor) ScanHAR(path string) (*report.Summary, error) {
	matcher, err := classify.NewMatcher(m.config.Patterns)
	if err != nil {
		return nil, err
	}

	rec := matches.NewRecorder(4096)
	if _, err := har.NewScanner(matcher).ScanFile(path, rec); err != nil {
		return nil, err
	}

	summary := report.Build(rec.All(), classify.NewResolver(m.config.NaiveDomains))
	summary.Render(m.out)
	return summary, nil
}

// History lists recorded runs from the ledger.
func (m *Monitor) History() ([]history.Record, error) {
	store, err := history.Open(m.config.HistoryFile())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.List()
}

// recordRun appends the run to the ledger. Ledger failures never affect
// the run outcome.
func (m *Monitor) recordRun(result *Result) {
	store, err := history.Open(m.config.HistoryFile())
	if err != nil {
		m.log.Warnf("history disabled for this run: %v", err)
		return
	}
	defer store.Close()

	rec := history.Record{
		Slug:       result.Slug,
		Target:     m.config.TargetURL(),
		HARPath:    result.HARPath,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		StopReason: result.StopReason,
	}
	if result.Summary != nil {
		rec.MatchCount = len(result.Summary.UniqueURLs)
		rec.Domains = result.Summary.Domains
	}

	if err := store.Append(rec); err != nil {
		m.log.Warnf("could not record run in history: %v", err)
	}
}
