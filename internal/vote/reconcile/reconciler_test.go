package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ballotcore/internal/commitment"
	"ballotcore/internal/ledger"
	"ballotcore/internal/vote"
	"ballotcore/internal/vote/store"
	"ballotcore/pkg/domain"
)

type SweeperSuite struct {
	suite.Suite
	ctx context.Context

	votes *store.InMemory
	lgr   *ledger.Memory
	sw    *Sweeper
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.ctx = context.Background()
	s.votes = store.NewInMemory()
	s.lgr = ledger.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.sw = New(s.votes, s.lgr, logger, WithBatchSize(10))
}

// insertPending stores a vote whose ledger write never happened.
func (s *SweeperSuite) insertPending() vote.Vote {
	nonce, err := commitment.NewNonce()
	require.NoError(s.T(), err)

	voterID := domain.VoterID(uuid.New())
	electionID := domain.ElectionID(uuid.New())
	candidateID := domain.CandidateID(uuid.New())
	digest, err := commitment.Compute(voterID, electionID, candidateID, nonce)
	require.NoError(s.T(), err)

	v := vote.Vote{
		ID:           domain.VoteID(uuid.New()),
		VoterID:      voterID,
		ElectionID:   electionID,
		CandidateID:  candidateID,
		Commitment:   digest,
		LedgerStatus: vote.LedgerPending,
		CreatedAt:    time.Now(),
	}
	require.NoError(s.T(), s.votes.TryInsert(s.ctx, v))
	return v
}

func (s *SweeperSuite) TestSweepAppendsPendingVote() {
	pending := s.insertPending()

	s.Require().NoError(s.sw.Sweep(s.ctx))

	recovered, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerConfirmed, recovered.LedgerStatus)
	s.NotZero(recovered.LedgerTx)

	// The stored commitment went to the ledger untouched.
	exists, err := s.lgr.Exists(s.ctx, pending.Commitment)
	s.Require().NoError(err)
	s.True(exists)
	s.Equal(1, s.lgr.Len())
}

func (s *SweeperSuite) TestSweepConfirmsVoteAlreadyOnLedger() {
	pending := s.insertPending()
	receipt, err := s.lgr.Append(s.ctx, pending.Commitment)
	s.Require().NoError(err)

	s.Require().NoError(s.sw.Sweep(s.ctx))

	recovered, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerConfirmed, recovered.LedgerStatus)
	s.Equal(receipt.TxHash, recovered.LedgerTx)
	s.Equal(1, s.lgr.Len())
}

func (s *SweeperSuite) TestSweepLeavesSubmittedForNextPass() {
	deferred := ledger.NewMemory(ledger.WithDeferredConfirmation())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := New(s.votes, deferred, logger)

	pending := s.insertPending()

	s.Require().NoError(sw.Sweep(s.ctx))
	mid, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerSubmitted, mid.LedgerStatus)

	deferred.Confirm(pending.Commitment)

	s.Require().NoError(sw.Sweep(s.ctx))
	final, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerConfirmed, final.LedgerStatus)
}

func (s *SweeperSuite) TestSweepDoesNotConfirmSubmittedLedgerEntry() {
	deferred := ledger.NewMemory(ledger.WithDeferredConfirmation())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := New(s.votes, deferred, logger)

	// The commitment is already on the ledger but only acknowledged as
	// submitted. Presence alone must not advance the vote to confirmed.
	pending := s.insertPending()
	receipt, err := deferred.Append(s.ctx, pending.Commitment)
	s.Require().NoError(err)

	s.Require().NoError(sw.Sweep(s.ctx))
	s.Require().NoError(sw.Sweep(s.ctx))

	held, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerSubmitted, held.LedgerStatus)
	s.Equal(receipt.TxHash, held.LedgerTx)

	deferred.Confirm(pending.Commitment)

	s.Require().NoError(sw.Sweep(s.ctx))
	final, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerConfirmed, final.LedgerStatus)
}

func (s *SweeperSuite) TestSweepBacksOffFailingLedger() {
	pending := s.insertPending()
	s.lgr.SetFailing(true)

	// First pass fails and schedules a retry well in the future.
	s.Require().NoError(s.sw.Sweep(s.ctx))
	s.lgr.SetFailing(false)

	// Second pass skips the commitment because its backoff has not elapsed.
	s.Require().NoError(s.sw.Sweep(s.ctx))
	skipped, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerPending, skipped.LedgerStatus)

	s.sw.clearRetryState(pending.Commitment)

	s.Require().NoError(s.sw.Sweep(s.ctx))
	recovered, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerConfirmed, recovered.LedgerStatus)
}

func (s *SweeperSuite) TestSweepStopsAfterMaxRetries() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// A long max delay keeps the exhausted entry inside its cooldown for
	// the duration of the test.
	sw := New(s.votes, s.lgr, logger, WithBackoff(time.Nanosecond, time.Hour, 2))

	pending := s.insertPending()
	s.lgr.SetFailing(true)

	for i := 0; i < 5; i++ {
		s.Require().NoError(sw.Sweep(s.ctx))
		time.Sleep(time.Millisecond)
	}

	sw.mu.Lock()
	state := sw.retries[pending.Commitment]
	sw.mu.Unlock()
	s.Require().NotNil(state)
	s.Equal(2, state.attempts)
}

func (s *SweeperSuite) TestSweepEvictsExhaustedRetryAfterCooldown() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := New(s.votes, s.lgr, logger, WithBackoff(time.Nanosecond, time.Nanosecond, 1))

	pending := s.insertPending()
	s.lgr.SetFailing(true)

	s.Require().NoError(sw.Sweep(s.ctx))
	sw.mu.Lock()
	s.Require().NotNil(sw.retries[pending.Commitment])
	sw.mu.Unlock()

	// Past the cooldown the entry is evicted and attempts resume, so a
	// healthy ledger picks the vote back up.
	time.Sleep(time.Millisecond)
	s.lgr.SetFailing(false)

	s.Require().NoError(sw.Sweep(s.ctx))

	recovered, err := s.votes.FindByID(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(vote.LedgerConfirmed, recovered.LedgerStatus)

	sw.mu.Lock()
	_, tracked := sw.retries[pending.Commitment]
	sw.mu.Unlock()
	s.False(tracked)
}

func (s *SweeperSuite) TestSweepHonoursBatchSize() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := New(s.votes, s.lgr, logger, WithBatchSize(2))

	for i := 0; i < 5; i++ {
		s.insertPending()
	}

	s.Require().NoError(sw.Sweep(s.ctx))
	s.Equal(2, s.lgr.Len())

	s.Require().NoError(sw.Sweep(s.ctx))
	s.Require().NoError(sw.Sweep(s.ctx))
	s.Equal(5, s.lgr.Len())
}

func (s *SweeperSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := New(s.votes, s.lgr, logger, WithInterval(time.Millisecond))

	pending := s.insertPending()

	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	s.Require().Eventually(func() bool {
		v, err := s.votes.FindByID(context.Background(), pending.ID)
		return err == nil && v.LedgerStatus == vote.LedgerConfirmed
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("sweeper did not stop on cancel")
	}
}
