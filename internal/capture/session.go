// Package capture owns the browser lifecycle: one headed browser, one
// page, HAR recording, live payment-URL matching and the three-trigger
// shutdown protocol.
package capture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"golang.org/x/time/rate"

	"github.com/paywatch/pmtproc/internal/classify"
	"github.com/paywatch/pmtproc/internal/har"
	"github.com/paywatch/pmtproc/internal/logger"
	"github.com/paywatch/pmtproc/internal/matches"
)

// Config holds everything a session needs. All values that used to be
// module-level constants in earlier incarnations of this tool (UA,
// viewport, poll interval) live here so tests can substitute them.
type Config struct {
	TargetURL       string
	HARPath         string
	UserAgent       string
	ViewportWidth   int
	ViewportHeight  int
	ExtraHeaders    map[string]string
	NavTimeout      time.Duration
	PollInterval    time.Duration
	DOMScanInterval time.Duration
	Headless        bool // headed by default; headless only for tests
	Version         string
}

// Session drives one browser, one page and one HAR file.
type Session struct {
	cfg     Config
	log     *logger.Logger
	matcher *classify.Matcher
	rec     *matches.Recorder
	harRec  *har.Recorder

	stop         *StopSignal
	launcher     *launcher.Launcher
	browser      *rod.Browser
	page         *rod.Page
	base         *url.URL
	logLimiter   *rate.Limiter
	teardownOnce sync.Once

	// reap is invoked at the end of teardown to collect straggler
	// browser processes.
	reap func()
}

// New creates a session. reap may be nil.
func New(cfg Config, matcher *classify.Matcher, rec *matches.Recorder, log *logger.Logger, reap func()) *Session {
	if log == nil {
		log = logger.NewDefault()
	}
	if reap == nil {
		reap = func() {}
	}
	return &Session{
		cfg:     cfg,
		log:     log,
		matcher: matcher,
		rec:     rec,
		harRec:  har.NewRecorder(cfg.HARPath, cfg.TargetURL, cfg.Version),
		stop:    NewStopSignal(),
		// At most a burst of 5 match lines, then one per 200ms, so a
		// busy page cannot flood the console.
		logLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		reap:       reap,
	}
}

// HARPath returns the session's HAR output path.
func (s *Session) HARPath() string {
	return s.harRec.Path()
}

// StopReason returns which trigger ended the session. Valid after Run.
func (s *Session) StopReason() string {
	return s.stop.Reason()
}

// Run executes the full lifecycle: launch, navigate, wait for one of the
// three termination triggers, then tear down exactly once. It returns an
// error only when the browser could not be started at all; navigation and
// teardown failures degrade per the error policy.
func (s *Session) Run(ctx context.Context) error {
	// Take ownership of the interrupt before the browser exists so the
	// engine process never sees a raw SIGINT ahead of the cleanup protocol.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := s.launch(); err != nil {
		return err
	}
	defer s.teardown()

	s.watchDisconnect()
	s.watchPageClose()

	if err := s.navigate(ctx); err != nil {
		s.log.Errorf("couldn't load page: %v", err)
	} else {
		s.log.Info("Page loaded. Do whatever you need, then simply close the window.")
		s.log.Info("Window is ready – close it when you're done … (Press CTRL-C to abort)")
		s.domSweep()
	}

	s.wait(ctx, sigCh)
	return nil
}

// launch starts a visible browser and opens the single page with the
// session's identity overrides applied.
func (s *Session) launch() error {
	s.launcher = launcher.New().Headless(s.cfg.Headless)

	controlURL, err := s.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	// Target events drive the page-close trigger.
	_ = proto.TargetSetDiscoverTargets{Discover: true}.Call(s.browser)

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	s.page = page

	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  s.cfg.ViewportWidth,
		Height: s.cfg.ViewportHeight,
	})

	if s.cfg.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{
			UserAgent: s.cfg.UserAgent,
		}.Call(page)
	}

	if len(s.cfg.ExtraHeaders) > 0 {
		headers := make(proto.NetworkHeaders)
		for k, v := range s.cfg.ExtraHeaders {
			headers[k] = gson.New(v)
		}
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(page)
	}

	_ = proto.NetworkEnable{}.Call(page)

	// One event loop feeds both the HAR recorder and the live matcher.
	// The listener only appends; it never blocks or alters a request.
	go s.page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			s.harRec.HandleRequest(e)
			if e.Request == nil {
				return
			}
			if s.matcher.IsPaymentURL(e.Request.URL) {
				if s.rec.Add(e.Request.URL) && s.logLimiter.Allow() {
					s.log.Debugf("payment request: %s", e.Request.URL)
				}
			}
		},
		func(e *proto.NetworkResponseReceived) { s.harRec.HandleResponse(e) },
		func(e *proto.NetworkLoadingFinished) { s.harRec.HandleFinished(e) },
		func(e *proto.NetworkLoadingFailed) { s.harRec.HandleFailed(e) },
	)()

	return nil
}

// watchDisconnect fires the stop signal when the browser connection drops:
// window closed at the OS level, crash, or an external kill.
func (s *Session) watchDisconnect() {
	events := s.browser.Event()
	go func() {
		for range events {
		}
		if !s.stop.IsSet() {
			s.log.Debug("browser disconnected")
		}
		s.stop.Set(ReasonDisconnected)
	}()
}

// watchPageClose fires the stop signal when the operator closes the tab.
// The HAR is flushed immediately so nothing is lost if the browser process
// goes away before teardown runs.
func (s *Session) watchPageClose() {
	wait := s.browser.EachEvent(func(e *proto.TargetTargetDestroyed) bool {
		return e.TargetID == s.page.TargetID
	})
	go func() {
		wait()
		if !s.stop.IsSet() {
			s.log.Debug("page closed – flushing HAR …")
			if err := s.harRec.Flush(); err != nil {
				s.log.Warnf("early HAR flush failed: %v", err)
			}
		}
		s.stop.Set(ReasonPageClosed)
	}()
}

// navigate loads the target and waits only for DOMContentLoaded; campaign
// pages keep loading trackers long after they are usable.
func (s *Session) navigate(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	s.base, _ = url.Parse(s.cfg.TargetURL)

	page := s.page.Context(navCtx)
	wait := page.WaitEvent(&proto.PageDomContentEventFired{})
	if err := page.Navigate(s.cfg.TargetURL); err != nil {
		return err
	}
	wait()
	return navCtx.Err()
}

// wait polls the stop signal on a short interval so an operator interrupt
// is observed promptly, and runs the periodic DOM sweep.
func (s *Session) wait(ctx context.Context, sigCh <-chan os.Signal) {
	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	domScan := time.NewTicker(s.cfg.DOMScanInterval)
	defer domScan.Stop()

	for {
		select {
		case <-s.stop.Done():
			return
		case <-sigCh:
			s.log.Warn("CTRL-C detected – shutting down …")
			s.stop.Set(ReasonInterrupt)
		case <-ctx.Done():
			s.stop.Set(ReasonCancelled)
		case <-domScan.C:
			s.domSweep()
		case <-poll.C:
		}
	}
}

// domSweep snapshots the page and classifies URL-bearing attributes.
// Best-effort: a closed or navigating page simply yields nothing.
func (s *Session) domSweep() {
	html, err := s.page.HTML()
	if err != nil {
		return
	}
	for _, candidate := range extractCandidates(html, s.base) {
		if s.matcher.IsPaymentURL(candidate) {
			s.rec.Add(candidate)
		}
	}
}

// teardown runs the shutdown sequence exactly once, whichever trigger
// fired. Further interrupts are masked so cleanup cannot be cut short,
// errors are swallowed so every step runs, and the HAR flush happens
// before the browser goes away.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		signal.Ignore(syscall.SIGINT)
		defer signal.Reset(syscall.SIGINT)

		s.log.Info("Flushing HAR and cleaning up …")

		if err := s.harRec.Flush(); err != nil {
			s.log.Errorf("HAR flush failed: %v", err)
		}

		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			_ = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
		}

		s.reap()
	})
}
