// Package profiles reads and writes the hosted profiles table keyed by user
// id. Two implementations exist: RESTStore speaks to the hosted table API
// the production app uses; PostgresStore goes straight at the database for
// deployments that bypass the hosted API.
package profiles

import (
	"context"

	"github.com/carelinkhq/carelink/internal/client/models"
)

// Store is the profile-table surface the session controller depends on.
//
// Contract:
//   - Get: point read by user id; returns (nil, nil) when no row exists
//     ("maybe single" semantics), an error only for transport failures.
//   - Upsert: create or replace the caller's profile row.
//   - SetAvatar: update only the avatar column for the given user.
//
// All methods must honor context cancellation/timeouts.
type Store interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	SetAvatar(ctx context.Context, userID, avatarURL string) error
}
