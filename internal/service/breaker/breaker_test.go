package breaker

import (
	"sync"
	"testing"
	"time"
)

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := New(cfg)
	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3})
	for i := 0; i < 2; i++ {
		b.RecordFailure("quotes", false)
		if !b.CanExecute("quotes") {
			t.Fatalf("failure %d: breaker should still be closed", i+1)
		}
	}
	b.RecordFailure("quotes", false)
	if b.CanExecute("quotes") {
		t.Fatalf("breaker should be open after threshold")
	}
	if b.State("quotes") != StateOpen {
		t.Fatalf("state = %s", b.State("quotes"))
	}
}

func TestRateLimitTripsFaster(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 5, RateLimitThreshold: 2})
	b.RecordFailure("quotes", true)
	if !b.CanExecute("quotes") {
		t.Fatalf("one rate-limit failure should not trip")
	}
	b.RecordFailure("quotes", true)
	if b.CanExecute("quotes") {
		t.Fatalf("two rate-limit failures must trip the breaker")
	}
}

func TestHalfOpenSingleTrial(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, Cooldown: 30 * time.Second})
	b.RecordFailure("series", false)
	if b.CanExecute("series") {
		t.Fatalf("breaker should be open")
	}

	*now = now.Add(31 * time.Second)
	if !b.CanExecute("series") {
		t.Fatalf("cooldown elapsed: one trial call must be permitted")
	}
	if b.State("series") != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", b.State("series"))
	}
	// exactly one trial: the next caller is rejected
	if b.CanExecute("series") {
		t.Fatalf("second call during trial must be rejected")
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Second})
	b.RecordFailure("series", false)
	*now = now.Add(2 * time.Second)
	if !b.CanExecute("series") {
		t.Fatalf("trial expected")
	}
	b.RecordSuccess("series")
	if b.State("series") != StateClosed {
		t.Fatalf("state = %s, want closed", b.State("series"))
	}
	if !b.CanExecute("series") {
		t.Fatalf("closed breaker must execute")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Second})
	b.RecordFailure("series", false)
	*now = now.Add(2 * time.Second)
	if !b.CanExecute("series") {
		t.Fatalf("trial expected")
	}
	b.RecordFailure("series", false)
	if b.State("series") != StateOpen {
		t.Fatalf("state = %s, want open", b.State("series"))
	}
	if b.CanExecute("series") {
		t.Fatalf("reopened breaker must fail fast before cooldown")
	}
}

func TestWindowResetsCount(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 3, Window: time.Minute})
	b.RecordFailure("quotes", false)
	b.RecordFailure("quotes", false)
	*now = now.Add(2 * time.Minute)
	b.RecordFailure("quotes", false)
	if !b.CanExecute("quotes") {
		t.Fatalf("failures outside window must not accumulate")
	}
}

func TestResourcesAreIndependent(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1})
	b.RecordFailure("quotes", false)
	if b.CanExecute("quotes") {
		t.Fatalf("quotes should be open")
	}
	if !b.CanExecute("series") {
		t.Fatalf("series breaker must be unaffected")
	}
}

func TestConcurrentReporting(t *testing.T) {
	b := New(Config{FailureThreshold: 100000})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.RecordFailure("quotes", false)
				b.CanExecute("quotes")
			}
		}()
	}
	wg.Wait()
	if b.State("quotes") != StateClosed {
		t.Fatalf("threshold never reached, state = %s", b.State("quotes"))
	}
}

func TestStateChangeHook(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Second})
	var mu sync.Mutex
	var seen []State
	b.OnStateChange(func(_ string, s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	b.RecordFailure("quotes", false)
	*now = now.Add(2 * time.Second)
	b.CanExecute("quotes")
	b.RecordSuccess("quotes")

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}
