package matches

import (
	"fmt"
	"sync"
	"testing"
)

func TestRecorder_Add(t *testing.T) {
	r := NewRecorder(10)

	if !r.Add("https://js.stripe.com/v3") {
		t.Error("first Add should report new")
	}
	if r.Add("https://js.stripe.com/v3") {
		t.Error("second Add of the same URL should report seen")
	}

	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2 (duplicates kept)", got)
	}
	if got := r.UniqueCount(); got != 1 {
		t.Errorf("UniqueCount() = %d, want 1", got)
	}
}

func TestRecorder_PreservesOrder(t *testing.T) {
	r := NewRecorder(10)
	r.AddAll([]string{"https://a.example/1", "https://b.example/2", "https://a.example/1"})

	all := r.All()
	want := []string{"https://a.example/1", "https://b.example/2", "https://a.example/1"}
	if len(all) != len(want) {
		t.Fatalf("All() length = %d, want %d", len(all), len(want))
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, all[i], want[i])
		}
	}
}

func TestRecorder_HasSeen(t *testing.T) {
	r := NewRecorder(10)

	if r.HasSeen("https://a.example/") {
		t.Error("HasSeen before Add should be false")
	}
	r.Add("https://a.example/")
	if !r.HasSeen("https://a.example/") {
		t.Error("HasSeen after Add should be true")
	}
}

func TestRecorder_ConcurrentProducers(t *testing.T) {
	r := NewRecorder(10000)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Add(fmt.Sprintf("https://example.com/p%d/%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	if got := r.Len(); got != 4000 {
		t.Errorf("Len() = %d, want 4000", got)
	}
	if got := r.UniqueCount(); got != 4000 {
		t.Errorf("UniqueCount() = %d, want 4000", got)
	}
}
