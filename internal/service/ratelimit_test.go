package service

import (
	"context"
	"testing"
	"time"
)

// fakeClock lets tests advance the limiter's view of time manually.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestLimiter(clock *fakeClock) *InferenceLimiter {
	l := NewInferenceLimiter()
	l.now = clock.now
	return l
}

func TestInferenceLimiter_AllowsUpToMax(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := newTestLimiter(clock)

	for i := 0; i < inferenceMaxRequests; i++ {
		if !l.Admit() {
			t.Fatalf("request %d should be admitted", i+1)
		}
		l.Record()
	}

	if l.Admit() {
		t.Fatal("11th request within the window should be refused")
	}
}

func TestInferenceLimiter_OldestEntryAgesOut(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := newTestLimiter(clock)

	// First request, then the rest of the budget 30s later.
	l.Record()
	clock.advance(30 * time.Second)
	for i := 0; i < inferenceMaxRequests-1; i++ {
		l.Record()
	}

	if l.Admit() {
		t.Fatal("window is full, should refuse")
	}

	// 31s more: the first timestamp is now 61s old and ages out.
	clock.advance(31 * time.Second)
	if !l.Admit() {
		t.Fatal("oldest entry aged out, should admit again")
	}
}

func TestInferenceLimiter_WaitReturnsWhenCapacityFrees(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := newTestLimiter(clock)

	for i := 0; i < inferenceMaxRequests; i++ {
		l.Record()
	}

	// Each sleep advances the fake clock instead of blocking.
	slept := 0
	l.sleep = func(ctx context.Context, d time.Duration) error {
		slept++
		clock.advance(d)
		return nil
	}

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if slept == 0 {
		t.Fatal("Wait should have slept at least once on a full window")
	}
	if !l.Admit() {
		t.Fatal("window should have capacity after Wait returns")
	}
}

func TestInferenceLimiter_WaitImmediateWhenEmpty(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := newTestLimiter(clock)
	l.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("Wait should not sleep when the window has capacity")
		return nil
	}

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
}

func TestInferenceLimiter_WaitHonorsCancellation(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := newTestLimiter(clock)

	for i := 0; i < inferenceMaxRequests; i++ {
		l.Record()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("Wait on a cancelled context should return an error")
	}
}
