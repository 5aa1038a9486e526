// Package store persists cast votes. Uniqueness per (voter, election) and
// per commitment is enforced by the store itself, not by callers; that is the
// load-bearing invariant under concurrent intake.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"ballotcore/internal/vote"
	"ballotcore/pkg/domain"
)

// CandidateCount is one row of the per-election tally read from the
// relational store.
type CandidateCount struct {
	CandidateID domain.CandidateID
	Count       int
}

// Store is implemented by the Postgres store and the in-memory double.
//
// TryInsert returns sentinel.ErrAlreadyUsed (wrapped) when the (voter,
// election) or commitment uniqueness constraint is hit, so the coordinator
// can recover idempotently instead of failing the voter.
//
// AttachLedgerReceipt is idempotent and never downgrades a confirmed vote.
type Store interface {
	TryInsert(ctx context.Context, v vote.Vote) error
	AttachLedgerReceipt(ctx context.Context, id domain.VoteID, tx common.Hash, status vote.LedgerStatus) error
	FindByID(ctx context.Context, id domain.VoteID) (vote.Vote, error)
	FindByCommitment(ctx context.Context, commitment common.Hash) (vote.Vote, error)
	FindByVoter(ctx context.Context, voterID domain.VoterID, electionID domain.ElectionID) (vote.Vote, error)
	ListByElection(ctx context.Context, electionID domain.ElectionID) ([]vote.Vote, error)
	CountByCandidate(ctx context.Context, electionID domain.ElectionID) ([]CandidateCount, error)
	// ListUnconfirmed returns votes whose ledger write is still owed
	// (pending or submitted), oldest first, for the reconciliation sweep.
	ListUnconfirmed(ctx context.Context, limit int) ([]vote.Vote, error)
}
