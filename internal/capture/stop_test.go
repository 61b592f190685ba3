package capture

import (
	"sync"
	"testing"
	"time"
)

func TestStopSignal_SetOnce(t *testing.T) {
	s := NewStopSignal()

	if s.IsSet() {
		t.Fatal("new signal should not be set")
	}

	s.Set(ReasonPageClosed)
	if !s.IsSet() {
		t.Fatal("signal should be set after Set")
	}

	// A second producer setting again must change nothing.
	s.Set(ReasonInterrupt)
	if got := s.Reason(); got != ReasonPageClosed {
		t.Errorf("Reason() = %q, want the first producer's %q", got, ReasonPageClosed)
	}
}

func TestStopSignal_DoneUnblocks(t *testing.T) {
	s := NewStopSignal()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Set(ReasonDisconnected)
	}()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() never unblocked")
	}

	if got := s.Reason(); got != ReasonDisconnected {
		t.Errorf("Reason() = %q, want %q", got, ReasonDisconnected)
	}
}

func TestStopSignal_ConcurrentProducers(t *testing.T) {
	s := NewStopSignal()

	var wg sync.WaitGroup
	reasons := []string{ReasonPageClosed, ReasonDisconnected, ReasonInterrupt}
	for _, r := range reasons {
		wg.Add(1)
		go func(r string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Set(r)
			}
		}(r)
	}
	wg.Wait()

	if !s.IsSet() {
		t.Fatal("signal should be set")
	}
	got := s.Reason()
	found := false
	for _, r := range reasons {
		if got == r {
			found = true
		}
	}
	if !found {
		t.Errorf("Reason() = %q, want one of %v", got, reasons)
	}
}
