package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Store bundles the video and rating repositories into the single
// persistence surface the review orchestrator depends on.
type Store struct {
	*VideoRepo
	*RatingRepo
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		VideoRepo:  NewVideoRepo(pool),
		RatingRepo: NewRatingRepo(pool),
	}
}
