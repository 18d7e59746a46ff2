package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/service"
)

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

// FindVideo returns a single video by its internal ID.
func (r *VideoRepo) FindVideo(ctx context.Context, videoID string) (*model.Video, error) {
	query := `
		SELECT id, youtube_video_id, channel_id, title, description, duration_sec, created_at
		FROM videos
		WHERE id = $1`

	var v model.Video
	err := r.pool.QueryRow(ctx, query, videoID).Scan(
		&v.ID, &v.YouTubeVideoID, &v.ChannelID, &v.Title, &v.Description,
		&v.DurationSec, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", service.ErrVideoNotFound, videoID)
		}
		return nil, err
	}
	return &v, nil
}

// FindUnscanned returns up to limit videos that have no rating aggregate yet,
// newest first.
func (r *VideoRepo) FindUnscanned(ctx context.Context, limit int) ([]model.Video, error) {
	query := `
		SELECT v.id, v.youtube_video_id, v.channel_id, v.title, v.description, v.duration_sec, v.created_at
		FROM videos v
		LEFT JOIN rating_aggregates ra ON ra.video_id = v.id
		WHERE ra.video_id IS NULL
		ORDER BY v.created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []model.Video
	for rows.Next() {
		var v model.Video
		err := rows.Scan(
			&v.ID, &v.YouTubeVideoID, &v.ChannelID, &v.Title, &v.Description,
			&v.DurationSec, &v.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// CountVideos returns the total number of imported videos.
func (r *VideoRepo) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count)
	return count, err
}
