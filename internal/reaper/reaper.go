// Package reaper terminates stray browser-engine processes left behind by
// earlier runs. Everything here is best-effort: a missing utility, a denied
// signal or an already-gone process never fails the run.
package reaper

import (
	"os/exec"
	"regexp"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/paywatch/pmtproc/internal/logger"
)

// DefaultPatterns identify leftover Chromium processes: the remote-debugging
// pipe flag set on engine processes driven over CDP, and the browser binary
// path used for library-downloaded engines.
func DefaultPatterns() []string {
	return []string{
		`chrome.*--remote-debugging-pipe`,
		`rod/browser.*chrom`,
	}
}

// Reaper kills processes whose command lines match its patterns.
type Reaper struct {
	patterns []string
	log      *logger.Logger

	// test seams
	lookPath  func(string) (string, error)
	runPkill  func(pattern string) error
	processes func() ([]*process.Process, error)
}

// New creates a reaper for the given command-line patterns.
func New(patterns []string, log *logger.Logger) *Reaper {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Reaper{
		patterns: patterns,
		log:      log.WithComponent("reaper"),
		lookPath: exec.LookPath,
		runPkill: func(pattern string) error {
			return exec.Command("pkill", "-9", "-f", pattern).Run()
		},
		processes: process.Processes,
	}
}

// KillStale makes a best-effort pass over every pattern. pkill is preferred
// when present; stripped environments without it fall back to walking the
// process table and delivering the kill signal directly.
func (r *Reaper) KillStale() {
	_, pkillErr := r.lookPath("pkill")

	for _, pat := range r.patterns {
		if pkillErr == nil {
			// pkill exits non-zero when nothing matched; that is not a failure.
			_ = r.runPkill(pat)
			continue
		}
		r.killByWalk(pat)
	}
}

// killByWalk lists processes and kills command-line matches.
func (r *Reaper) killByWalk(pattern string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return
	}

	procs, err := r.processes()
	if err != nil {
		return
	}

	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if !re.MatchString(cmdline) {
			continue
		}
		if err := p.Kill(); err == nil {
			r.log.Debugf("killed stale browser process pid=%d", p.Pid)
		}
	}
}
