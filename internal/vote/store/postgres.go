package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"ballotcore/internal/vote"
	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// Postgres persists votes with race-safe uniqueness: the UNIQUE constraints
// on (voter_id, election_id) and commitment decide concurrent same-voter
// races, not application checks.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) TryInsert(ctx context.Context, v vote.Vote) error {
	query := `
		INSERT INTO votes (id, voter_id, election_id, candidate_id, constituency_id,
			commitment, ledger_tx, ledger_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(v.ID),
		uuid.UUID(v.VoterID),
		uuid.UUID(v.ElectionID),
		uuid.UUID(v.CandidateID),
		uuid.UUID(v.ConstituencyID),
		v.Commitment.Hex(),
		nullableTx(v.LedgerTx),
		string(v.LedgerStatus),
		v.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert vote (%s): %w", pqErr.Constraint, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (s *Postgres) AttachLedgerReceipt(ctx context.Context, id domain.VoteID, tx common.Hash, status vote.LedgerStatus) error {
	// Confirmed receipts are final; re-attaching the same reference is a
	// no-op rather than an error.
	query := `
		UPDATE votes
		SET ledger_tx = $2, ledger_status = $3
		WHERE id = $1 AND ledger_status <> $4
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(id), tx.Hex(), string(status), string(vote.LedgerConfirmed))
	if err != nil {
		return fmt.Errorf("attach ledger receipt: %w", err)
	}
	return nil
}

const voteColumns = `id, voter_id, election_id, candidate_id, constituency_id,
	commitment, ledger_tx, ledger_status, created_at`

func (s *Postgres) FindByID(ctx context.Context, id domain.VoteID) (vote.Vote, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE id = $1`, uuid.UUID(id))
	return scanVote(row, "find vote by id")
}

func (s *Postgres) FindByCommitment(ctx context.Context, commitment common.Hash) (vote.Vote, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE commitment = $1`, commitment.Hex())
	return scanVote(row, "find vote by commitment")
}

func (s *Postgres) FindByVoter(ctx context.Context, voterID domain.VoterID, electionID domain.ElectionID) (vote.Vote, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE voter_id = $1 AND election_id = $2`,
		uuid.UUID(voterID), uuid.UUID(electionID))
	return scanVote(row, "find vote by voter")
}

func (s *Postgres) ListByElection(ctx context.Context, electionID domain.ElectionID) ([]vote.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE election_id = $1 ORDER BY created_at`,
		uuid.UUID(electionID))
	if err != nil {
		return nil, fmt.Errorf("list votes by election: %w", err)
	}
	return collectVotes(rows, "list votes by election")
}

func (s *Postgres) CountByCandidate(ctx context.Context, electionID domain.ElectionID) ([]CandidateCount, error) {
	query := `
		SELECT candidate_id, COUNT(*)
		FROM votes
		WHERE election_id = $1
		GROUP BY candidate_id
		ORDER BY COUNT(*) DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(electionID))
	if err != nil {
		return nil, fmt.Errorf("count votes by candidate: %w", err)
	}
	defer rows.Close()

	var out []CandidateCount
	for rows.Next() {
		var (
			id uuid.UUID
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("count votes by candidate: %w", err)
		}
		out = append(out, CandidateCount{CandidateID: domain.CandidateID(id), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count votes by candidate: %w", err)
	}
	return out, nil
}

func (s *Postgres) ListUnconfirmed(ctx context.Context, limit int) ([]vote.Vote, error) {
	query := `SELECT ` + voteColumns + `
		FROM votes
		WHERE ledger_status <> $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(vote.LedgerConfirmed), limit)
	if err != nil {
		return nil, fmt.Errorf("list unconfirmed votes: %w", err)
	}
	return collectVotes(rows, "list unconfirmed votes")
}

func nullableTx(tx common.Hash) sql.NullString {
	if tx == (common.Hash{}) {
		return sql.NullString{}
	}
	return sql.NullString{String: tx.Hex(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVote(row rowScanner, op string) (vote.Vote, error) {
	var (
		v                           vote.Vote
		id, voterID, electionID     uuid.UUID
		candidateID, constituencyID uuid.UUID
		commitmentHex               string
		ledgerTx                    sql.NullString
		status                      string
	)
	err := row.Scan(&id, &voterID, &electionID, &candidateID, &constituencyID,
		&commitmentHex, &ledgerTx, &status, &v.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return vote.Vote{}, sentinel.ErrNotFound
		}
		return vote.Vote{}, fmt.Errorf("%s: %w", op, err)
	}
	v.ID = domain.VoteID(id)
	v.VoterID = domain.VoterID(voterID)
	v.ElectionID = domain.ElectionID(electionID)
	v.CandidateID = domain.CandidateID(candidateID)
	v.ConstituencyID = domain.ConstituencyID(constituencyID)
	v.Commitment = common.HexToHash(commitmentHex)
	if ledgerTx.Valid {
		v.LedgerTx = common.HexToHash(ledgerTx.String)
	}
	v.LedgerStatus = vote.LedgerStatus(status)
	return v, nil
}

func collectVotes(rows *sql.Rows, op string) ([]vote.Vote, error) {
	defer rows.Close()
	var out []vote.Vote
	for rows.Next() {
		v, err := scanVote(rows, op)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
