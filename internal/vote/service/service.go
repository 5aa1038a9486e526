// Package service implements vote intake and verification. CastVote is the
// state machine Eligible -> Committed(DB) -> LedgerSubmitted ->
// LedgerConfirmed | LedgerFailed(Pending); the relational write is the
// durable source of record and the ledger write is pursued until confirmed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ballotcore/internal/audit"
	"ballotcore/internal/commitment"
	"ballotcore/internal/election"
	"ballotcore/internal/ledger"
	"ballotcore/internal/vote"
	"ballotcore/internal/vote/metrics"
	"ballotcore/internal/vote/store"
	"ballotcore/internal/voter"
	"ballotcore/pkg/domain"
	dErrors "ballotcore/pkg/domain-errors"
	"ballotcore/pkg/sentinel"
)

// Clock is injected for testability; defaults to time.Now.
type Clock func() time.Time

// Service coordinates the vote store, the ledger adapter, and the read-only
// reference data. All collaborators are injected at construction; nothing is
// lazily initialized at module level.
type Service struct {
	votes     store.Store
	ledger    ledger.Ledger
	elections election.Store
	voters    voter.Store
	metrics   *metrics.Metrics
	audit     *audit.Publisher
	logger    *slog.Logger
	clock     Clock
}

// Option configures a Service.
type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func New(votes store.Store, lgr ledger.Ledger, elections election.Store, voters voter.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		votes:     votes,
		ledger:    lgr,
		elections: elections,
		voters:    voters,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CastVote accepts one vote for (voter, election). Steps:
//
//  1. eligibility: voter verified and on the roll, election active and inside
//     its window, candidate standing in the voter's constituency. Failures
//     here are terminal (CodeIneligible).
//  2. fresh nonce, commitment over the canonical encoding.
//  3. race-safe insert; a duplicate resolves to the existing vote's
//     commitment, never a second row and never a fabricated hash.
//  4. ledger append; an unreachable ledger leaves the vote pending-ledger and
//     the request still succeeds, because the store write is authoritative.
func (s *Service) CastVote(ctx context.Context, voterID domain.VoterID, electionID domain.ElectionID, candidateID domain.CandidateID) (vote.CastResult, error) {
	v, cand, err := s.checkEligibility(ctx, voterID, electionID, candidateID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeIneligible) {
			s.incIneligible()
			s.emit(ctx, audit.Event{
				Action:     audit.ActionVoteIneligible,
				VoterID:    voterID.String(),
				ElectionID: electionID.String(),
				Reason:     err.Error(),
			})
		}
		return vote.CastResult{}, err
	}

	nonce, err := commitment.NewNonce()
	if err != nil {
		return vote.CastResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate nonce")
	}
	digest, err := commitment.Compute(voterID, electionID, candidateID, nonce)
	if err != nil {
		return vote.CastResult{}, err
	}

	record := vote.Vote{
		ID:             domain.VoteID(uuid.New()),
		VoterID:        voterID,
		ElectionID:     electionID,
		CandidateID:    cand.ID,
		ConstituencyID: v.ConstituencyID,
		Commitment:     digest,
		LedgerStatus:   vote.LedgerPending,
		CreatedAt:      s.clock(),
	}

	if err := s.votes.TryInsert(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return s.resolveDuplicate(ctx, voterID, electionID)
		}
		return vote.CastResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
	}
	s.incVotesCast()
	s.emit(ctx, audit.Event{
		Action:     audit.ActionVoteCast,
		VoterID:    voterID.String(),
		ElectionID: electionID.String(),
		Commitment: digest.Hex(),
	})

	// The vote is durable from here on. Client cancellation must not undo
	// it, so the receipt attach runs detached from the request's cancel.
	status := s.submitToLedger(context.WithoutCancel(ctx), record.ID, digest)

	return vote.CastResult{
		VoteID:       record.ID,
		Commitment:   digest,
		LedgerStatus: status,
		Nonce:        &nonce,
	}, nil
}

// checkEligibility validates the intake preconditions and returns the
// reference records needed downstream.
func (s *Service) checkEligibility(ctx context.Context, voterID domain.VoterID, electionID domain.ElectionID, candidateID domain.CandidateID) (voter.Voter, election.Candidate, error) {
	var cand election.Candidate

	v, err := s.voters.Find(ctx, voterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return v, cand, dErrors.New(dErrors.CodeIneligible, "voter is not on the roll")
		}
		return v, cand, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voter")
	}
	if !v.Eligible {
		return v, cand, dErrors.New(dErrors.CodeIneligible, "voter is not eligible to vote")
	}
	if !v.Verified {
		return v, cand, dErrors.New(dErrors.CodeIneligible, "voter identity has not been verified")
	}

	elec, err := s.elections.FindElection(ctx, electionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return v, cand, dErrors.New(dErrors.CodeIneligible, "election does not exist")
		}
		return v, cand, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
	}
	if !elec.AcceptsVotesAt(s.clock()) {
		return v, cand, dErrors.New(dErrors.CodeIneligible, "election is not accepting votes")
	}
	if !elec.Covers(v.ConstituencyID) {
		return v, cand, dErrors.New(dErrors.CodeIneligible, "election does not cover the voter's constituency")
	}

	cand, err = s.elections.FindCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return v, cand, dErrors.New(dErrors.CodeIneligible, "candidate does not exist")
		}
		return v, cand, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
	}
	if cand.ElectionID != electionID {
		return v, cand, dErrors.New(dErrors.CodeIneligible, "candidate is not standing in this election")
	}
	if cand.ConstituencyID != v.ConstituencyID {
		return v, cand, dErrors.New(dErrors.CodeIneligible, "candidate is not standing in the voter's constituency")
	}

	return v, cand, nil
}

// resolveDuplicate converts a uniqueness hit into an idempotent success
// carrying the previously stored commitment. A voter retrying a timed-out
// request must neither be told they did not vote nor be allowed to vote
// twice.
func (s *Service) resolveDuplicate(ctx context.Context, voterID domain.VoterID, electionID domain.ElectionID) (vote.CastResult, error) {
	existing, err := s.votes.FindByVoter(ctx, voterID, electionID)
	if err != nil {
		// The constraint fired but no row is visible for this voter: the
		// collision was on the commitment itself, which is effectively
		// unreachable with honest 256-bit digests.
		return vote.CastResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "vote exists but could not be loaded")
	}
	s.incDuplicates()
	s.emit(ctx, audit.Event{
		Action:     audit.ActionVoteDuplicate,
		VoterID:    voterID.String(),
		ElectionID: electionID.String(),
		Commitment: existing.Commitment.Hex(),
	})
	return vote.CastResult{
		VoteID:       existing.ID,
		Commitment:   existing.Commitment,
		LedgerStatus: existing.LedgerStatus,
		Duplicate:    true,
	}, nil
}

// submitToLedger appends the commitment and attaches the receipt. Any
// failure leaves the vote pending; the reconciliation sweep and verification
// lookups retry later with the same commitment (never a new nonce).
func (s *Service) submitToLedger(ctx context.Context, voteID domain.VoteID, digest common.Hash) vote.LedgerStatus {
	receipt, err := s.ledger.Append(ctx, digest)
	if err != nil {
		s.incLedgerFailures()
		s.logger.WarnContext(ctx, "ledger append failed, vote left pending",
			"vote_id", voteID.String(),
			"commitment", digest.Hex(),
			"error", err,
		)
		s.emit(ctx, audit.Event{
			Action:     audit.ActionLedgerPending,
			Commitment: digest.Hex(),
			Reason:     err.Error(),
		})
		return vote.LedgerPending
	}
	s.incLedgerSubmissions()

	status := vote.LedgerSubmitted
	if receipt.Status == ledger.StatusConfirmed {
		status = vote.LedgerConfirmed
	}
	if err := s.votes.AttachLedgerReceipt(ctx, voteID, receipt.TxHash, status); err != nil {
		s.logger.ErrorContext(ctx, "failed to attach ledger receipt",
			"vote_id", voteID.String(),
			"tx_hash", receipt.TxHash.Hex(),
			"error", err,
		)
		return vote.LedgerPending
	}
	if status == vote.LedgerConfirmed {
		s.emit(ctx, audit.Event{
			Action:     audit.ActionLedgerConfirmed,
			Commitment: digest.Hex(),
		})
	}
	return status
}

// Verify answers "was this vote recorded?" from a commitment alone; no voter
// identity is required, so the lookup itself stays anonymous. Store and
// ledger are queried concurrently; an unreachable ledger degrades the answer
// rather than failing it.
func (s *Service) Verify(ctx context.Context, digest common.Hash) (vote.VerifyResult, error) {
	var (
		stored        vote.Vote
		foundInStore  bool
		foundInLedger bool
		ledgerChecked bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.votes.FindByCommitment(gctx, digest)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to query vote store")
		}
		stored = v
		foundInStore = true
		return nil
	})
	g.Go(func() error {
		exists, err := s.ledger.Exists(gctx, digest)
		if err != nil {
			if errors.Is(err, sentinel.ErrUnavailable) {
				// Degraded answer: the ledger's state is unknown, which is
				// not the same as "not recorded".
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to query ledger")
		}
		ledgerChecked = true
		foundInLedger = exists
		return nil
	})
	if err := g.Wait(); err != nil {
		return vote.VerifyResult{}, err
	}

	// A pending vote that turns out to be on the ledger gets its receipt
	// repaired here, the earliest retry point after a failed append. Appends
	// are idempotent, so re-appending returns the original receipt with its
	// current status. Presence on the ledger alone is not confirmation: the
	// vote only advances as far as the receipt says it has.
	if foundInStore && foundInLedger && stored.LedgerStatus != vote.LedgerConfirmed {
		receipt, err := s.ledger.Append(ctx, digest)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to recover ledger receipt during verification",
				"vote_id", stored.ID.String(),
				"error", err,
			)
		} else {
			status := vote.LedgerSubmitted
			if receipt.Status == ledger.StatusConfirmed {
				status = vote.LedgerConfirmed
			}
			if err := s.votes.AttachLedgerReceipt(ctx, stored.ID, receipt.TxHash, status); err != nil {
				s.logger.WarnContext(ctx, "failed to repair ledger receipt during verification",
					"vote_id", stored.ID.String(),
					"error", err,
				)
			} else if status == vote.LedgerConfirmed {
				s.emit(ctx, audit.Event{
					Action:     audit.ActionLedgerConfirmed,
					Commitment: digest.Hex(),
				})
			}
		}
	}

	result := vote.VerifyResult{
		FoundInStore:  foundInStore,
		FoundInLedger: foundInLedger,
		LedgerChecked: ledgerChecked,
		Verified:      foundInStore && foundInLedger,
	}
	switch {
	case result.Verified:
		result.Status = vote.VerifyStatusVerified
	case foundInStore || foundInLedger:
		result.Status = vote.VerifyStatusPartial
	default:
		result.Status = vote.VerifyStatusNotFound
	}
	s.observeVerification(string(result.Status))
	return result, nil
}

// GetVote fetches a single vote record by ID.
func (s *Service) GetVote(ctx context.Context, id domain.VoteID) (vote.Vote, error) {
	v, err := s.votes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return vote.Vote{}, dErrors.New(dErrors.CodeNotFound, "vote not found")
		}
		return vote.Vote{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vote")
	}
	return v, nil
}

// ListByElection returns all votes recorded for an election.
func (s *Service) ListByElection(ctx context.Context, electionID domain.ElectionID) ([]vote.Vote, error) {
	votes, err := s.votes.ListByElection(ctx, electionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list votes")
	}
	return votes, nil
}

// CandidateTally is one line of the per-election statistics.
type CandidateTally struct {
	CandidateID domain.CandidateID
	Name        string
	Party       string
	Count       int
}

// Statistics reports per-candidate counts for an election from the
// relational store, enriched with candidate names.
type Statistics struct {
	ElectionID domain.ElectionID
	Total      int
	Tallies    []CandidateTally
}

func (s *Service) Statistics(ctx context.Context, electionID domain.ElectionID) (Statistics, error) {
	if _, err := s.elections.FindElection(ctx, electionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Statistics{}, dErrors.New(dErrors.CodeNotFound, "election not found")
		}
		return Statistics{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
	}

	counts, err := s.votes.CountByCandidate(ctx, electionID)
	if err != nil {
		return Statistics{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count votes")
	}

	stats := Statistics{ElectionID: electionID}
	for _, c := range counts {
		tally := CandidateTally{CandidateID: c.CandidateID, Count: c.Count}
		cand, err := s.elections.FindCandidate(ctx, c.CandidateID)
		if err != nil {
			// A counted vote referencing an unknown candidate means the
			// reference data is inconsistent; keep the count but make the
			// gap observable.
			s.logger.WarnContext(ctx, "candidate lookup failed for tally",
				"election_id", electionID.String(),
				"candidate_id", c.CandidateID.String(),
				"error", err,
			)
		} else {
			tally.Name = cand.Name
			tally.Party = cand.Party
		}
		stats.Tallies = append(stats.Tallies, tally)
		stats.Total += c.Count
	}
	return stats, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit != nil {
		s.audit.Emit(ctx, event)
	}
}

func (s *Service) incVotesCast() {
	if s.metrics != nil {
		s.metrics.IncrementVotesCast()
	}
}

func (s *Service) incDuplicates() {
	if s.metrics != nil {
		s.metrics.IncrementDuplicateCasts()
	}
}

func (s *Service) incIneligible() {
	if s.metrics != nil {
		s.metrics.IncrementIneligibleRejected()
	}
}

func (s *Service) incLedgerSubmissions() {
	if s.metrics != nil {
		s.metrics.IncrementLedgerSubmissions()
	}
}

func (s *Service) incLedgerFailures() {
	if s.metrics != nil {
		s.metrics.IncrementLedgerFailures()
	}
}

func (s *Service) observeVerification(status string) {
	if s.metrics != nil {
		s.metrics.ObserveVerification(status)
	}
}
