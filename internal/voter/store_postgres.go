package voter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
)

// Postgres reads the voter directory maintained by the identity subsystem.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Find(ctx context.Context, id domain.VoterID) (Voter, error) {
	query := `
		SELECT id, constituency_id, eligible, verified
		FROM voters
		WHERE id = $1
	`
	var (
		v            Voter
		vID, constID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(id)).
		Scan(&vID, &constID, &v.Eligible, &v.Verified)
	if err != nil {
		if err == sql.ErrNoRows {
			return Voter{}, sentinel.ErrNotFound
		}
		return Voter{}, fmt.Errorf("find voter: %w", err)
	}
	v.ID = domain.VoterID(vID)
	v.ConstituencyID = domain.ConstituencyID(constID)
	return v, nil
}
