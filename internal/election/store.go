package election

import (
	"context"

	"ballotcore/pkg/domain"
)

// Store reads election reference data. Unknown IDs return
// sentinel.ErrNotFound (optionally wrapped).
type Store interface {
	FindElection(ctx context.Context, id domain.ElectionID) (Election, error)
	FindCandidate(ctx context.Context, id domain.CandidateID) (Candidate, error)
	ListCandidates(ctx context.Context, electionID domain.ElectionID) ([]Candidate, error)
}
