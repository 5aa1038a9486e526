package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ballotcore/internal/vote"
	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
)

type voterElection struct {
	voter    domain.VoterID
	election domain.ElectionID
}

// InMemory mirrors the Postgres store's semantics, including both uniqueness
// constraints, so coordinator tests exercise the same failure paths.
type InMemory struct {
	mu           sync.Mutex
	byID         map[domain.VoteID]vote.Vote
	byCommitment map[common.Hash]domain.VoteID
	byVoter      map[voterElection]domain.VoteID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:         make(map[domain.VoteID]vote.Vote),
		byCommitment: make(map[common.Hash]domain.VoteID),
		byVoter:      make(map[voterElection]domain.VoteID),
	}
}

func (s *InMemory) TryInsert(ctx context.Context, v vote.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voterElection{v.VoterID, v.ElectionID}
	if _, exists := s.byVoter[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byCommitment[v.Commitment]; exists {
		return sentinel.ErrAlreadyUsed
	}

	s.byID[v.ID] = v
	s.byCommitment[v.Commitment] = v.ID
	s.byVoter[key] = v.ID
	return nil
}

func (s *InMemory) AttachLedgerReceipt(ctx context.Context, id domain.VoteID, tx common.Hash, status vote.LedgerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.LedgerStatus == vote.LedgerConfirmed {
		return nil
	}
	v.LedgerTx = tx
	v.LedgerStatus = status
	s.byID[id] = v
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.VoteID) (vote.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return vote.Vote{}, sentinel.ErrNotFound
	}
	return v, nil
}

func (s *InMemory) FindByCommitment(ctx context.Context, commitment common.Hash) (vote.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCommitment[commitment]
	if !ok {
		return vote.Vote{}, sentinel.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *InMemory) FindByVoter(ctx context.Context, voterID domain.VoterID, electionID domain.ElectionID) (vote.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byVoter[voterElection{voterID, electionID}]
	if !ok {
		return vote.Vote{}, sentinel.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *InMemory) ListByElection(ctx context.Context, electionID domain.ElectionID) ([]vote.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []vote.Vote
	for _, v := range s.byID {
		if v.ElectionID == electionID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CountByCandidate(ctx context.Context, electionID domain.ElectionID) ([]CandidateCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.CandidateID]int)
	for _, v := range s.byID {
		if v.ElectionID == electionID {
			counts[v.CandidateID]++
		}
	}
	out := make([]CandidateCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, CandidateCount{CandidateID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (s *InMemory) ListUnconfirmed(ctx context.Context, limit int) ([]vote.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []vote.Vote
	for _, v := range s.byID {
		if v.LedgerStatus != vote.LedgerConfirmed {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
