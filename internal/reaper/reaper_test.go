package reaper

import (
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/process"
)

func TestDefaultPatterns(t *testing.T) {
	pats := DefaultPatterns()
	if len(pats) != 2 {
		t.Fatalf("DefaultPatterns() length = %d, want 2", len(pats))
	}
}

func TestKillStale_PrefersPkill(t *testing.T) {
	r := New(nil, nil)

	var pkillCalls []string
	r.lookPath = func(string) (string, error) { return "/usr/bin/pkill", nil }
	r.runPkill = func(pattern string) error {
		pkillCalls = append(pkillCalls, pattern)
		return errors.New("no process matched") // non-zero exit must be tolerated
	}
	r.processes = func() ([]*process.Process, error) {
		t.Error("process walk should not run when pkill is available")
		return nil, nil
	}

	r.KillStale()

	if len(pkillCalls) != len(DefaultPatterns()) {
		t.Errorf("pkill invoked %d times, want %d", len(pkillCalls), len(DefaultPatterns()))
	}
}

func TestKillStale_FallsBackToProcessWalk(t *testing.T) {
	r := New(nil, nil)

	walked := false
	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	r.runPkill = func(string) error {
		t.Error("pkill should not run when the utility is missing")
		return nil
	}
	r.processes = func() ([]*process.Process, error) {
		walked = true
		return nil, nil
	}

	r.KillStale()

	if !walked {
		t.Error("fallback process walk should run when pkill is missing")
	}
}

func TestKillStale_ToleratesListFailure(t *testing.T) {
	r := New(nil, nil)
	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	r.processes = func() ([]*process.Process, error) { return nil, errors.New("denied") }

	// Must not panic or propagate anything.
	r.KillStale()
}

func TestKillStale_SkipsInvalidPattern(t *testing.T) {
	r := New([]string{`[broken`}, nil)
	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	r.processes = func() ([]*process.Process, error) {
		t.Error("invalid pattern should be skipped before listing")
		return nil, nil
	}

	r.KillStale()
}
