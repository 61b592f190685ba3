package capture

import "sync"

// Stop reasons reported by the three termination triggers.
const (
	ReasonPageClosed   = "page closed"
	ReasonDisconnected = "browser disconnected"
	ReasonInterrupt    = "operator interrupt"
	ReasonCancelled    = "context cancelled"
)

// StopSignal is a single-shot termination flag. Any of the three producers
// (page-close handler, disconnect watcher, interrupt loop) may set it;
// only the first set takes effect and records its reason. The transition is
// monotonic: once set it is never unset, and repeat sets are no-ops.
type StopSignal struct {
	once   sync.Once
	ch     chan struct{}
	reason string
}

// NewStopSignal creates an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{ch: make(chan struct{})}
}

// Set flips the signal. Safe to call from concurrent producers; the reason
// of the winning call is kept.
func (s *StopSignal) Set(reason string) {
	s.once.Do(func() {
		s.reason = reason
		close(s.ch)
	})
}

// Done returns a channel closed once the signal is set.
func (s *StopSignal) Done() <-chan struct{} {
	return s.ch
}

// IsSet reports whether the signal has been set.
func (s *StopSignal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Reason returns the winning producer's reason. Valid only after Done is
// closed; the close provides the ordering for the reason write.
func (s *StopSignal) Reason() string {
	return s.reason
}
