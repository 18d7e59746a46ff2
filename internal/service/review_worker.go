package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewWorker listens for PostgreSQL NOTIFY on the 'video_added' channel
// and batches newly imported videos into AI reviews. If an import drops 50
// videos at once, they drain through the orchestrator one at a time under
// its usual throttles.
type ReviewWorker struct {
	pool      *pgxpool.Pool
	reviewSvc *ReviewService
	cache     *CacheService
	batchMs   time.Duration

	mu      sync.Mutex
	pending map[string]struct{} // video IDs waiting for review
}

// NewReviewWorker creates a backlog review worker.
func NewReviewWorker(pool *pgxpool.Pool, reviewSvc *ReviewService, cache *CacheService) *ReviewWorker {
	return &ReviewWorker{
		pool:      pool,
		reviewSvc: reviewSvc,
		cache:     cache,
		batchMs:   30 * time.Second,
		pending:   make(map[string]struct{}),
	}
}

// Start begins listening for video_added notifications and processing batches.
func (w *ReviewWorker) Start(ctx context.Context) {
	log.Printf("review-worker: starting (batch window=%s)", w.batchMs)

	for {
		if err := w.listenLoop(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("review-worker: stopping (context cancelled)")
				return
			}
			log.Printf("review-worker: listen error, reconnecting in 5s: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				log.Println("review-worker: stopping (context cancelled)")
				return
			}
		}
	}
}

// listenLoop acquires a dedicated connection, LISTENs on video_added,
// and collects notifications into batched windows.
func (w *ReviewWorker) listenLoop(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, "LISTEN video_added")
	if err != nil {
		return err
	}
	log.Println("review-worker: listening on video_added")

	flushCtx, flushCancel := context.WithCancel(ctx)
	defer flushCancel()
	go w.flushLoop(flushCtx)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		videoID := notification.Payload
		if videoID == "" {
			continue
		}

		w.mu.Lock()
		w.pending[videoID] = struct{}{}
		w.mu.Unlock()
	}
}

// flushLoop periodically drains the pending set and reviews each video.
func (w *ReviewWorker) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(w.batchMs)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flush(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// flush drains the pending set and runs each video through the review
// pipeline. A failed video stays failed; the batch continues.
func (w *ReviewWorker) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	// Swap out the pending map
	batch := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	reviewed := 0
	for videoID := range batch {
		if _, err := w.reviewSvc.ReviewVideo(ctx, videoID); err != nil {
			log.Printf("review-worker: review error for %s: %v", videoID, err)
			continue
		}

		if w.cache != nil {
			if err := w.cache.InvalidateRating(ctx, videoID); err != nil {
				log.Printf("review-worker: cache invalidate error for %s: %v", videoID, err)
			}
		}

		reviewed++
	}

	if reviewed > 0 {
		log.Printf("review-worker: batch complete — %d videos reviewed (from %d notifications)",
			reviewed, len(batch))
	}
}
