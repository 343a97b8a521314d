// Package community accesses the community feature-vote table. Votes are
// keyed by (feature id, user id); creating an existing vote is a no-op, never
// a duplicate row.
package community

import "context"

// VoteStore is the feature-upvote surface consumed during pending-action
// replay.
//
// Contract:
//   - HasVote: reports whether a vote row exists for (featureID, userID).
//   - Create: writes the vote with create-if-absent semantics; created is
//     false when the vote already existed.
type VoteStore interface {
	HasVote(ctx context.Context, featureID, userID string) (bool, error)
	Create(ctx context.Context, featureID, userID string) (created bool, err error)
}
