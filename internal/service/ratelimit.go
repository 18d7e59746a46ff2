package service

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// Conservative budget for audio-carrying inference requests.
	inferenceWindow      = time.Minute
	inferenceMaxRequests = 10

	// Wait slack past the oldest timestamp's expiry, and the longest single
	// sleep so the remaining wait is recomputed against fresh state.
	waitSlack    = 100 * time.Millisecond
	maxWaitSlice = 10 * time.Second
)

// InferenceLimiter is an in-memory sliding-window admission gate for calls
// to the inference service. One instance per process, injected into the
// review orchestrator. State is not persisted; it resets on restart.
type InferenceLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	window     time.Duration
	max        int
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewInferenceLimiter creates a limiter with the default 10-per-minute budget.
func NewInferenceLimiter() *InferenceLimiter {
	return &InferenceLimiter{
		window: inferenceWindow,
		max:    inferenceMaxRequests,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Admit reports whether a request may be issued right now, after discarding
// timestamps that have aged out of the window. Non-blocking.
func (l *InferenceLimiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked()
	return len(l.timestamps) < l.max
}

// Record registers a request against the window. Call once per issued request.
func (l *InferenceLimiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = append(l.timestamps, l.now())
}

// Wait blocks until the window has capacity or ctx is cancelled. Each sleep
// is bounded and the remaining wait is recomputed afterwards, so stale
// entries can never mask a full window.
func (l *InferenceLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.evictLocked()
		if len(l.timestamps) < l.max {
			l.mu.Unlock()
			return nil
		}
		oldest := l.timestamps[0]
		l.mu.Unlock()

		wait := l.window - l.now().Sub(oldest) + waitSlack
		if wait > maxWaitSlice {
			wait = maxWaitSlice
		}
		log.Printf("rate-limiter: window full, waiting %s", wait.Round(time.Second))
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// evictLocked drops timestamps older than the window. Caller holds mu.
func (l *InferenceLimiter) evictLocked() {
	cutoff := l.now().Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
