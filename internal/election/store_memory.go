package election

import (
	"context"
	"sync"

	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
)

// InMemory holds election reference data for tests and development.
type InMemory struct {
	mu         sync.RWMutex
	elections  map[domain.ElectionID]Election
	candidates map[domain.CandidateID]Candidate
}

func NewInMemory() *InMemory {
	return &InMemory{
		elections:  make(map[domain.ElectionID]Election),
		candidates: make(map[domain.CandidateID]Candidate),
	}
}

// SeedElection registers an election and its candidates.
func (s *InMemory) SeedElection(e Election, candidates ...Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[e.ID] = e
	for _, c := range candidates {
		s.candidates[c.ID] = c
	}
}

func (s *InMemory) FindElection(ctx context.Context, id domain.ElectionID) (Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[id]
	if !ok {
		return Election{}, sentinel.ErrNotFound
	}
	return e, nil
}

func (s *InMemory) FindCandidate(ctx context.Context, id domain.CandidateID) (Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[id]
	if !ok {
		return Candidate{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemory) ListCandidates(ctx context.Context, electionID domain.ElectionID) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Candidate
	for _, c := range s.candidates {
		if c.ElectionID == electionID {
			out = append(out, c)
		}
	}
	return out, nil
}
