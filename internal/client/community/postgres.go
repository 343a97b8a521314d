package community

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carelinkhq/carelink/internal/dbx"
)

// PostgresVoteStore implements VoteStore directly against the feature_votes
// table. Open the handle with the pgx stdlib driver.
type PostgresVoteStore struct {
	db dbx.DBTX
}

func NewPostgresVoteStore(db dbx.DBTX) *PostgresVoteStore {
	return &PostgresVoteStore{db: db}
}

func (s *PostgresVoteStore) HasVote(ctx context.Context, featureID, userID string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM feature_votes WHERE feature_id = $1 AND user_id = $2
		 )`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, featureID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (s *PostgresVoteStore) Create(ctx context.Context, featureID, userID string) (bool, error) {
	query :=
		`INSERT INTO feature_votes (id, feature_id, user_id, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (feature_id, user_id) DO NOTHING
		 `

	res, err := s.db.ExecContext(ctx, query, uuid.NewString(), featureID, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
