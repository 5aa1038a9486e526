package store

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotcore/internal/vote"
	"ballotcore/pkg/domain"
	"ballotcore/pkg/sentinel"
)

func newVote(voterID domain.VoterID, electionID domain.ElectionID, createdAt time.Time) vote.Vote {
	id := domain.VoteID(uuid.New())
	return vote.Vote{
		ID:           id,
		VoterID:      voterID,
		ElectionID:   electionID,
		CandidateID:  domain.CandidateID(uuid.New()),
		Commitment:   crypto.Keccak256Hash([]byte(id.String())),
		LedgerStatus: vote.LedgerPending,
		CreatedAt:    createdAt,
	}
}

func TestTryInsertRejectsSameVoterAndElection(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	voterID := domain.VoterID(uuid.New())
	electionID := domain.ElectionID(uuid.New())

	first := newVote(voterID, electionID, time.Now())
	require.NoError(t, s.TryInsert(ctx, first))

	second := newVote(voterID, electionID, time.Now())
	err := s.TryInsert(ctx, second)
	require.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	// The losing row must not be visible anywhere.
	_, err = s.FindByID(ctx, second.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.FindByCommitment(ctx, second.Commitment)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestTryInsertAllowsSameVoterInAnotherElection(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	voterID := domain.VoterID(uuid.New())
	require.NoError(t, s.TryInsert(ctx, newVote(voterID, domain.ElectionID(uuid.New()), time.Now())))
	require.NoError(t, s.TryInsert(ctx, newVote(voterID, domain.ElectionID(uuid.New()), time.Now())))
}

func TestTryInsertRejectsDuplicateCommitment(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	first := newVote(domain.VoterID(uuid.New()), domain.ElectionID(uuid.New()), time.Now())
	require.NoError(t, s.TryInsert(ctx, first))

	clash := newVote(domain.VoterID(uuid.New()), domain.ElectionID(uuid.New()), time.Now())
	clash.Commitment = first.Commitment
	assert.ErrorIs(t, s.TryInsert(ctx, clash), sentinel.ErrAlreadyUsed)
}

func TestAttachLedgerReceipt(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	v := newVote(domain.VoterID(uuid.New()), domain.ElectionID(uuid.New()), time.Now())
	require.NoError(t, s.TryInsert(ctx, v))

	tx := crypto.Keccak256Hash([]byte("tx"))
	require.NoError(t, s.AttachLedgerReceipt(ctx, v.ID, tx, vote.LedgerConfirmed))

	stored, err := s.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, stored.LedgerTx)
	assert.Equal(t, vote.LedgerConfirmed, stored.LedgerStatus)
}

func TestAttachLedgerReceiptNeverDowngradesConfirmed(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	v := newVote(domain.VoterID(uuid.New()), domain.ElectionID(uuid.New()), time.Now())
	require.NoError(t, s.TryInsert(ctx, v))

	tx := crypto.Keccak256Hash([]byte("tx"))
	require.NoError(t, s.AttachLedgerReceipt(ctx, v.ID, tx, vote.LedgerConfirmed))
	require.NoError(t, s.AttachLedgerReceipt(ctx, v.ID, crypto.Keccak256Hash([]byte("late")), vote.LedgerSubmitted))

	stored, err := s.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, vote.LedgerConfirmed, stored.LedgerStatus)
	assert.Equal(t, tx, stored.LedgerTx)
}

func TestAttachLedgerReceiptUnknownVote(t *testing.T) {
	s := NewInMemory()
	err := s.AttachLedgerReceipt(context.Background(), domain.VoteID(uuid.New()), crypto.Keccak256Hash([]byte("tx")), vote.LedgerConfirmed)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListByElectionOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	electionID := domain.ElectionID(uuid.New())

	base := time.Now()
	late := newVote(domain.VoterID(uuid.New()), electionID, base.Add(time.Minute))
	early := newVote(domain.VoterID(uuid.New()), electionID, base)
	other := newVote(domain.VoterID(uuid.New()), domain.ElectionID(uuid.New()), base)
	require.NoError(t, s.TryInsert(ctx, late))
	require.NoError(t, s.TryInsert(ctx, early))
	require.NoError(t, s.TryInsert(ctx, other))

	votes, err := s.ListByElection(ctx, electionID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, early.ID, votes[0].ID)
	assert.Equal(t, late.ID, votes[1].ID)
}

func TestCountByCandidate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	electionID := domain.ElectionID(uuid.New())

	leader := domain.CandidateID(uuid.New())
	runnerUp := domain.CandidateID(uuid.New())
	for i := 0; i < 3; i++ {
		v := newVote(domain.VoterID(uuid.New()), electionID, time.Now())
		v.CandidateID = leader
		if i == 2 {
			v.CandidateID = runnerUp
		}
		require.NoError(t, s.TryInsert(ctx, v))
	}

	counts, err := s.CountByCandidate(ctx, electionID)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, leader, counts[0].CandidateID)
	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, 1, counts[1].Count)
}

func TestListUnconfirmed(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	electionID := domain.ElectionID(uuid.New())

	pending := newVote(domain.VoterID(uuid.New()), electionID, time.Now())
	require.NoError(t, s.TryInsert(ctx, pending))

	confirmed := newVote(domain.VoterID(uuid.New()), electionID, time.Now())
	require.NoError(t, s.TryInsert(ctx, confirmed))
	require.NoError(t, s.AttachLedgerReceipt(ctx, confirmed.ID, crypto.Keccak256Hash([]byte("tx")), vote.LedgerConfirmed))

	submitted := newVote(domain.VoterID(uuid.New()), electionID, time.Now())
	require.NoError(t, s.TryInsert(ctx, submitted))
	require.NoError(t, s.AttachLedgerReceipt(ctx, submitted.ID, crypto.Keccak256Hash([]byte("tx2")), vote.LedgerSubmitted))

	out, err := s.ListUnconfirmed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, v := range out {
		assert.NotEqual(t, confirmed.ID, v.ID)
	}

	limited, err := s.ListUnconfirmed(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
