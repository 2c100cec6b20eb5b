package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := newClock()
	b := NewBreaker(BreakerConfig{Name: "m", MaxFailures: 2, ResetTimeout: time.Minute, Now: clock.Now})

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
			t.Fatalf("call %d: err = %v, want errTest", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("fn must not run while open")
	}
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	clock := newClock()
	b := NewBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, Now: clock.Now})

	_ = b.Execute(func() error { return errTest })
	clock.Advance(time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %s, want half-open", b.State())
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newClock()
	b := NewBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, Now: clock.Now})

	_ = b.Execute(func() error { return errTest })
	clock.Advance(time.Minute)
	_ = b.Execute(func() error { return errTest })
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
}

func TestBreaker_IsFailureFiltersErrors(t *testing.T) {
	errThrottled := errors.New("throttled")
	b := NewBreaker(BreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, errThrottled) },
	})

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errThrottled }); !errors.Is(err, errThrottled) {
			t.Fatalf("err = %v, want errThrottled returned to caller", err)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, ignored errors must not open the breaker", b.State())
	}
}

func TestBreaker_NeutralErrorKeepsHalfOpen(t *testing.T) {
	clock := newClock()
	errThrottled := errors.New("throttled")
	b := NewBreaker(BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Minute,
		Now:          clock.Now,
		IsFailure:    func(err error) bool { return err != nil && !errors.Is(err, errThrottled) },
	})

	_ = b.Execute(func() error { return errTest })
	clock.Advance(time.Minute)

	if err := b.Execute(func() error { return errThrottled }); !errors.Is(err, errThrottled) {
		t.Fatalf("err = %v, want errThrottled", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %s, a throttled probe must not close the breaker", b.State())
	}

	called := false
	if err := b.Execute(func() error { called = true; return nil }); err != nil {
		t.Fatalf("second probe err = %v", err)
	}
	if !called {
		t.Fatal("neutral probe must free its half-open slot")
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreaker_NeutralErrorKeepsFailureCount(t *testing.T) {
	errThrottled := errors.New("throttled")
	b := NewBreaker(BreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		IsFailure:    func(err error) bool { return err != nil && !errors.Is(err, errThrottled) },
	})

	_ = b.Execute(func() error { return errTest })
	_ = b.Execute(func() error { return errThrottled })
	_ = b.Execute(func() error { return errTest })
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 2})

	_ = b.Execute(func() error { return errTest })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errTest })
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	_ = b.Execute(func() error { return errTest })
	b.Reset()
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreakerSet_ReusesPerKey(t *testing.T) {
	s := NewBreakerSet(BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	if s.Get("a") != s.Get("a") {
		t.Fatal("expected the same breaker for the same key")
	}
	_ = s.Get("a").Execute(func() error { return errTest })
	if s.Get("b").State() != StateClosed {
		t.Fatal("breakers for different keys must be independent")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
