package voter

import (
	"context"
	"sync"

	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
)

// InMemory holds voter directory records for tests and development.
type InMemory struct {
	mu     sync.RWMutex
	voters map[domain.VoterID]Voter
}

func NewInMemory() *InMemory {
	return &InMemory{voters: make(map[domain.VoterID]Voter)}
}

// Seed registers a voter record.
func (s *InMemory) Seed(v Voter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters[v.ID] = v
}

func (s *InMemory) Find(ctx context.Context, id domain.VoterID) (Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voters[id]
	if !ok {
		return Voter{}, sentinel.ErrNotFound
	}
	return v, nil
}
