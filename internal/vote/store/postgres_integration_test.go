//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ballotcore/internal/vote"
	"ballotcore/internal/vote/store"
	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
	"ballotcore/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres

	voterID        domain.VoterID
	electionID     domain.ElectionID
	candidateID    domain.CandidateID
	constituencyID domain.ConstituencyID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "votes", "candidates", "elections", "voters")
	s.Require().NoError(err)

	s.voterID = domain.VoterID(uuid.New())
	s.electionID = domain.ElectionID(uuid.New())
	s.candidateID = domain.CandidateID(uuid.New())
	s.constituencyID = domain.ConstituencyID(uuid.New())
	s.seedReferenceRows()
}

// seedReferenceRows satisfies the vote table's foreign keys. The reference
// tables are owned by the administration subsystem, so the store under test
// has no write path for them.
func (s *PostgresStoreSuite) seedReferenceRows() {
	ctx := context.Background()
	db := s.postgres.DB

	_, err := db.ExecContext(ctx,
		`INSERT INTO voters (id, constituency_id, eligible, verified) VALUES ($1, $2, TRUE, TRUE)`,
		uuid.UUID(s.voterID), uuid.UUID(s.constituencyID))
	s.Require().NoError(err)

	now := time.Now()
	_, err = db.ExecContext(ctx,
		`INSERT INTO elections (id, name, status, starts_at, ends_at, constituency_ids)
		 VALUES ($1, 'General Election', 'active', $2, $3, ARRAY[$4]::uuid[])`,
		uuid.UUID(s.electionID), now.Add(-time.Hour), now.Add(time.Hour), uuid.UUID(s.constituencyID))
	s.Require().NoError(err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO candidates (id, election_id, constituency_id, name, party)
		 VALUES ($1, $2, $3, 'Jordan Reyes', 'Unity')`,
		uuid.UUID(s.candidateID), uuid.UUID(s.electionID), uuid.UUID(s.constituencyID))
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newVote() vote.Vote {
	id := domain.VoteID(uuid.New())
	return vote.Vote{
		ID:             id,
		VoterID:        s.voterID,
		ElectionID:     s.electionID,
		CandidateID:    s.candidateID,
		ConstituencyID: s.constituencyID,
		Commitment:     crypto.Keccak256Hash([]byte(id.String())),
		LedgerStatus:   vote.LedgerPending,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	ctx := context.Background()
	v := s.newVote()
	s.Require().NoError(s.store.TryInsert(ctx, v))

	byID, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.Commitment, byID.Commitment)
	s.Equal(vote.LedgerPending, byID.LedgerStatus)
	s.Zero(byID.LedgerTx)

	byCommitment, err := s.store.FindByCommitment(ctx, v.Commitment)
	s.Require().NoError(err)
	s.Equal(v.ID, byCommitment.ID)

	byVoter, err := s.store.FindByVoter(ctx, s.voterID, s.electionID)
	s.Require().NoError(err)
	s.Equal(v.ID, byVoter.ID)
}

func (s *PostgresStoreSuite) TestFindMissingReturnsNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, domain.VoteID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentSameVoterInsert verifies that concurrent inserts for the same
// (voter, election) resolve to exactly one row via the unique constraint.
func (s *PostgresStoreSuite) TestConcurrentSameVoterInsert() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.TryInsert(ctx, s.newVote())
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflictCount.Add(1)
			default:
				s.T().Errorf("unexpected insert error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())

	votes, err := s.store.ListByElection(ctx, s.electionID)
	s.Require().NoError(err)
	s.Len(votes, 1)
}

func (s *PostgresStoreSuite) TestDuplicateCommitmentRejected() {
	ctx := context.Background()
	first := s.newVote()
	s.Require().NoError(s.store.TryInsert(ctx, first))

	// A second voter reusing the same commitment hits the commitment
	// constraint rather than the voter one.
	otherVoter := domain.VoterID(uuid.New())
	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO voters (id, constituency_id, eligible, verified) VALUES ($1, $2, TRUE, TRUE)`,
		uuid.UUID(otherVoter), uuid.UUID(s.constituencyID))
	s.Require().NoError(err)

	clash := s.newVote()
	clash.VoterID = otherVoter
	clash.Commitment = first.Commitment
	s.ErrorIs(s.store.TryInsert(ctx, clash), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestAttachLedgerReceipt() {
	ctx := context.Background()
	v := s.newVote()
	s.Require().NoError(s.store.TryInsert(ctx, v))

	tx := crypto.Keccak256Hash([]byte("tx"))
	s.Require().NoError(s.store.AttachLedgerReceipt(ctx, v.ID, tx, vote.LedgerConfirmed))

	stored, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(tx, stored.LedgerTx)
	s.Equal(vote.LedgerConfirmed, stored.LedgerStatus)

	// Confirmed is final: a later submitted receipt must not downgrade it.
	s.Require().NoError(s.store.AttachLedgerReceipt(ctx, v.ID, crypto.Keccak256Hash([]byte("late")), vote.LedgerSubmitted))
	stored, err = s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(tx, stored.LedgerTx)
	s.Equal(vote.LedgerConfirmed, stored.LedgerStatus)
}

func (s *PostgresStoreSuite) TestListUnconfirmed() {
	ctx := context.Background()

	pending := s.newVote()
	s.Require().NoError(s.store.TryInsert(ctx, pending))

	stats, err := s.store.CountByCandidate(ctx, s.electionID)
	s.Require().NoError(err)
	s.Require().Len(stats, 1)
	s.Equal(1, stats[0].Count)

	unconfirmed, err := s.store.ListUnconfirmed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(unconfirmed, 1)
	s.Equal(pending.ID, unconfirmed[0].ID)

	tx := crypto.Keccak256Hash([]byte("tx"))
	s.Require().NoError(s.store.AttachLedgerReceipt(ctx, pending.ID, tx, vote.LedgerConfirmed))

	unconfirmed, err = s.store.ListUnconfirmed(ctx, 10)
	s.Require().NoError(err)
	s.Empty(unconfirmed)
}
