package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/dbx"
)

// PostgresStore implements Store directly against the profiles table.
// Open the handle with the pgx stdlib driver.
type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	query :=
		`SELECT id, full_name, role, COALESCE(avatar_url, ''), created_at, updated_at
		 FROM profiles
		 WHERE id = $1
		 `

	profile := &models.Profile{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID, &profile.FullName, &profile.Role, &profile.AvatarURL,
		&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return profile, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, profile *models.Profile) error {
	query :=
		`INSERT INTO profiles (id, full_name, role, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), now(), now())
		 ON CONFLICT (id) DO UPDATE
		 SET full_name = excluded.full_name,
		     role = excluded.role,
		     avatar_url = excluded.avatar_url,
		     updated_at = now()
		 `

	_, err := s.db.ExecContext(ctx, query,
		profile.ID, profile.FullName, profile.Role, profile.AvatarURL)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetAvatar(ctx context.Context, userID, avatarURL string) error {
	query :=
		`UPDATE profiles SET avatar_url = $2, updated_at = now()
		 WHERE id = $1
		 `

	_, err := s.db.ExecContext(ctx, query, userID, avatarURL)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
