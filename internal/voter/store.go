package voter

import (
	"context"

	"ballotcore/pkg/domain"
)

// Store reads voter directory records. Unknown IDs return sentinel.ErrNotFound.
type Store interface {
	Find(ctx context.Context, id domain.VoterID) (Voter, error)
}
