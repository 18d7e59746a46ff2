package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

type RatingRepo struct {
	pool *pgxpool.Pool
}

func NewRatingRepo(pool *pgxpool.Pool) *RatingRepo {
	return &RatingRepo{pool: pool}
}

// SaveReview persists a scan run with its evidence and upserts the video's
// rating aggregate in a single transaction: either everything commits or
// nothing does. A new scan on an already-rated video replaces the aggregate
// fields and increments scans_count.
func (r *RatingRepo) SaveReview(ctx context.Context, scan model.ScanRun, agg model.RatingAggregate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	metricsJSON, err := json.Marshal(scan.QualityMetrics)
	if err != nil {
		return fmt.Errorf("marshal quality metrics: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO scan_runs (id, video_id, client_type, quality_metrics, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		scan.ID, scan.VideoID, scan.ClientType, metricsJSON, scan.CreatedAt)
	if err != nil {
		return err
	}

	for _, e := range scan.Evidence {
		_, err = tx.Exec(ctx, `
			INSERT INTO evidence_items (scan_run_id, axis_key, start_ms, end_ms, note)
			VALUES ($1, $2, $3, $4, $5)`,
			scan.ID, e.AxisKey, e.StartMs, e.EndMs, e.Note)
		if err != nil {
			return err
		}
	}

	scoresJSON, err := json.Marshal(agg.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	previewJSON, err := json.Marshal(agg.EvidencePreview)
	if err != nil {
		return fmt.Errorf("marshal evidence preview: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO rating_aggregates (video_id, age_rating, confidence, scores, evidence_preview, scans_count, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW())
		ON CONFLICT (video_id) DO UPDATE SET
			age_rating = EXCLUDED.age_rating,
			confidence = EXCLUDED.confidence,
			scores = EXCLUDED.scores,
			evidence_preview = EXCLUDED.evidence_preview,
			scans_count = rating_aggregates.scans_count + 1,
			last_updated_at = NOW()`,
		agg.VideoID, agg.AgeRating, agg.Confidence, scoresJSON, previewJSON)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetAggregate returns the current rating aggregate for a video, or nil when
// the video has never been scanned.
func (r *RatingRepo) GetAggregate(ctx context.Context, videoID string) (*model.RatingAggregate, error) {
	query := `
		SELECT video_id, age_rating, confidence, scores, evidence_preview, scans_count, last_updated_at
		FROM rating_aggregates
		WHERE video_id = $1`

	var agg model.RatingAggregate
	var scoresJSON, previewJSON []byte
	err := r.pool.QueryRow(ctx, query, videoID).Scan(
		&agg.VideoID, &agg.AgeRating, &agg.Confidence, &scoresJSON, &previewJSON,
		&agg.ScansCount, &agg.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(scoresJSON, &agg.Scores); err != nil {
		return nil, fmt.Errorf("unmarshal scores for %s: %w", videoID, err)
	}
	if len(previewJSON) > 0 {
		if err := json.Unmarshal(previewJSON, &agg.EvidencePreview); err != nil {
			return nil, fmt.Errorf("unmarshal evidence preview for %s: %w", videoID, err)
		}
	}
	return &agg, nil
}

// ListAggregates returns up to limit rating aggregates, most recently
// updated first. Used by the safe-list filter.
func (r *RatingRepo) ListAggregates(ctx context.Context, limit int) ([]model.RatingAggregate, error) {
	query := `
		SELECT video_id, age_rating, confidence, scores, evidence_preview, scans_count, last_updated_at
		FROM rating_aggregates
		ORDER BY last_updated_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggs []model.RatingAggregate
	for rows.Next() {
		var agg model.RatingAggregate
		var scoresJSON, previewJSON []byte
		err := rows.Scan(
			&agg.VideoID, &agg.AgeRating, &agg.Confidence, &scoresJSON, &previewJSON,
			&agg.ScansCount, &agg.LastUpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scoresJSON, &agg.Scores); err != nil {
			return nil, fmt.Errorf("unmarshal scores for %s: %w", agg.VideoID, err)
		}
		if len(previewJSON) > 0 {
			if err := json.Unmarshal(previewJSON, &agg.EvidencePreview); err != nil {
				return nil, fmt.Errorf("unmarshal evidence preview for %s: %w", agg.VideoID, err)
			}
		}
		aggs = append(aggs, agg)
	}
	return aggs, rows.Err()
}

// GetLatestAIScan returns the most recent AI scan run for a video, including
// its evidence, or nil when none exists.
func (r *RatingRepo) GetLatestAIScan(ctx context.Context, videoID string) (*model.ScanRun, error) {
	query := `
		SELECT id, video_id, client_type, quality_metrics, created_at
		FROM scan_runs
		WHERE video_id = $1 AND client_type = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var scan model.ScanRun
	var metricsJSON []byte
	err := r.pool.QueryRow(ctx, query, videoID, model.ClientAIGemini).Scan(
		&scan.ID, &scan.VideoID, &scan.ClientType, &metricsJSON, &scan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &scan.QualityMetrics); err != nil {
			return nil, fmt.Errorf("unmarshal quality metrics for scan %s: %w", scan.ID, err)
		}
	}

	evidenceQuery := `
		SELECT axis_key, start_ms, end_ms, note
		FROM evidence_items
		WHERE scan_run_id = $1
		ORDER BY start_ms NULLS LAST`

	rows, err := r.pool.Query(ctx, evidenceQuery, scan.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e model.EvidenceItem
		if err := rows.Scan(&e.AxisKey, &e.StartMs, &e.EndMs, &e.Note); err != nil {
			return nil, err
		}
		scan.Evidence = append(scan.Evidence, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &scan, nil
}

// SetScanTranscript merges the fetched transcript into a scan run's
// quality-metrics blob, where it serves as a cache for the aligner.
func (r *RatingRepo) SetScanTranscript(ctx context.Context, scanID string, transcript *model.Transcript) error {
	patch, err := json.Marshal(map[string]any{
		"transcript":         transcript.Segments,
		"transcriptLanguage": transcript.Language,
	})
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE scan_runs
		SET quality_metrics = COALESCE(quality_metrics, '{}'::jsonb) || $1::jsonb
		WHERE id = $2`,
		patch, scanID)
	return err
}

// RatingStats returns the rating distribution and scan totals.
func (r *RatingRepo) RatingStats(ctx context.Context) (map[model.AgeRating]int, int, int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT age_rating, COUNT(*)
		FROM rating_aggregates
		GROUP BY age_rating`)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	distribution := make(map[model.AgeRating]int)
	rated := 0
	for rows.Next() {
		var rating model.AgeRating
		var count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, 0, 0, err
		}
		distribution[rating] = count
		rated += count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	var totalScans int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scan_runs`).Scan(&totalScans); err != nil {
		return nil, 0, 0, err
	}

	return distribution, rated, totalScans, nil
}
