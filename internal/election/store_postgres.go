package election

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
)

// Postgres reads reference data written by the administration subsystem.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) FindElection(ctx context.Context, id domain.ElectionID) (Election, error) {
	query := `
		SELECT id, name, status, starts_at, ends_at, constituency_ids
		FROM elections
		WHERE id = $1
	`
	var (
		e      Election
		eID    uuid.UUID
		status string
		cons   []string
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(id)).
		Scan(&eID, &e.Name, &status, &e.StartsAt, &e.EndsAt, pq.Array(&cons))
	if err != nil {
		if err == sql.ErrNoRows {
			return Election{}, sentinel.ErrNotFound
		}
		return Election{}, fmt.Errorf("find election: %w", err)
	}
	e.ID = domain.ElectionID(eID)
	e.Status = Status(status)
	e.Constituencies = make([]domain.ConstituencyID, 0, len(cons))
	for _, raw := range cons {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return Election{}, fmt.Errorf("find election: bad constituency id %q: %w", raw, err)
		}
		e.Constituencies = append(e.Constituencies, domain.ConstituencyID(parsed))
	}
	return e, nil
}

func (s *Postgres) FindCandidate(ctx context.Context, id domain.CandidateID) (Candidate, error) {
	query := `
		SELECT id, election_id, constituency_id, name, party
		FROM candidates
		WHERE id = $1
	`
	var (
		c                 Candidate
		cID, eID, constID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(id)).
		Scan(&cID, &eID, &constID, &c.Name, &c.Party)
	if err != nil {
		if err == sql.ErrNoRows {
			return Candidate{}, sentinel.ErrNotFound
		}
		return Candidate{}, fmt.Errorf("find candidate: %w", err)
	}
	c.ID = domain.CandidateID(cID)
	c.ElectionID = domain.ElectionID(eID)
	c.ConstituencyID = domain.ConstituencyID(constID)
	return c, nil
}

func (s *Postgres) ListCandidates(ctx context.Context, electionID domain.ElectionID) ([]Candidate, error) {
	query := `
		SELECT id, election_id, constituency_id, name, party
		FROM candidates
		WHERE election_id = $1
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(electionID))
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c                 Candidate
			cID, eID, constID uuid.UUID
		)
		if err := rows.Scan(&cID, &eID, &constID, &c.Name, &c.Party); err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		c.ID = domain.CandidateID(cID)
		c.ElectionID = domain.ElectionID(eID)
		c.ConstituencyID = domain.ConstituencyID(constID)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return out, nil
}
