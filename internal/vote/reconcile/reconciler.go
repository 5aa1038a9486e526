// Package reconcile repairs the gap between the vote store and the ledger.
// Votes whose ledger write never completed are re-submitted in the
// background; votes already on the ledger get their receipts confirmed.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ballotcore/internal/audit"
	"ballotcore/internal/ledger"
	"ballotcore/internal/vote"
	"ballotcore/internal/vote/metrics"
	"ballotcore/internal/vote/store"
)

const (
	defaultInterval   = time.Minute
	defaultBatchSize  = 100
	defaultBaseDelay  = 30 * time.Second
	defaultMaxDelay   = 30 * time.Minute
	defaultMaxRetries = 10
)

// retryState tracks per-commitment backoff between sweeps. Attempts are
// capped; an exhausted entry is skipped for a cooldown and then evicted so
// attempts resume. Throughout, the vote stays visible through the pending
// gauge and verification responses.
type retryState struct {
	attempts  int
	nextRetry time.Time
}

// Sweeper periodically lists unconfirmed votes and pushes their stored
// commitments to the ledger. It never recomputes a commitment: the nonce
// belongs to the voter and regenerating it would change the digest.
type Sweeper struct {
	votes   store.Store
	ledger  ledger.Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher

	interval   time.Duration
	batchSize  int
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int

	mu      sync.Mutex
	retries map[common.Hash]*retryState
}

// Option configures a Sweeper.
type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithBackoff(base, max time.Duration, maxRetries int) Option {
	return func(s *Sweeper) {
		if base > 0 {
			s.baseDelay = base
		}
		if max > 0 {
			s.maxDelay = max
		}
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Sweeper) { s.audit = p }
}

func New(votes store.Store, lgr ledger.Ledger, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		votes:      votes,
		ledger:     lgr,
		logger:     logger,
		interval:   defaultInterval,
		batchSize:  defaultBatchSize,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		maxRetries: defaultMaxRetries,
		retries:    make(map[common.Hash]*retryState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "reconciliation sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one reconciliation pass. Exported so intake tests and an
// operator endpoint can trigger it directly.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.IncrementSweepRuns()
	}

	pending, err := s.votes.ListUnconfirmed(ctx, s.batchSize)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetPendingLedgerVotes(len(pending))
	}

	now := time.Now()
	var recovered int
	for _, v := range pending {
		if !s.shouldAttempt(v.Commitment, now) {
			continue
		}
		if s.reconcileOne(ctx, v) {
			recovered++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if recovered > 0 {
		s.logger.InfoContext(ctx, "reconciliation sweep recovered votes",
			"recovered", recovered,
			"scanned", len(pending),
		)
	}
	return nil
}

// reconcileOne pushes one vote towards confirmed. Appends are idempotent:
// for a commitment the ledger already holds, Append returns the original
// receipt including its current status, so a single call covers both the
// never-submitted and the submitted-but-unconfirmed cases. Only a receipt
// that says confirmed may confirm the vote; mere presence on the ledger is
// not evidence of confirmation. Returns true when the vote reached
// confirmed.
func (s *Sweeper) reconcileOne(ctx context.Context, v vote.Vote) bool {
	receipt, err := s.ledger.Append(ctx, v.Commitment)
	if err != nil {
		s.recordFailure(v.Commitment)
		return false
	}

	if receipt.Status != ledger.StatusConfirmed {
		// Submitted but not yet durable; pick it up next sweep.
		if err := s.votes.AttachLedgerReceipt(ctx, v.ID, receipt.TxHash, vote.LedgerSubmitted); err != nil {
			s.logger.WarnContext(ctx, "failed to record ledger submission",
				"vote_id", v.ID.String(), "error", err)
		}
		s.clearRetryState(v.Commitment)
		return false
	}

	if err := s.votes.AttachLedgerReceipt(ctx, v.ID, receipt.TxHash, vote.LedgerConfirmed); err != nil {
		s.logger.WarnContext(ctx, "failed to confirm recovered vote",
			"vote_id", v.ID.String(), "error", err)
		return false
	}
	s.clearRetryState(v.Commitment)
	if s.metrics != nil {
		s.metrics.IncrementSweepRecovered()
	}
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{
			Action:     audit.ActionSweepRecovered,
			Commitment: v.Commitment.Hex(),
		})
	}
	return true
}

func (s *Sweeper) shouldAttempt(c common.Hash, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.retries[c]
	if !ok {
		return true
	}
	if state.attempts >= s.maxRetries {
		// Exhausted entries are evicted after a cooldown of one maxDelay.
		// That bounds the map across long outages and grants the vote a
		// fresh round of attempts instead of abandoning it forever.
		if now.After(state.nextRetry.Add(s.maxDelay)) {
			delete(s.retries, c)
			return true
		}
		return false
	}
	return !now.Before(state.nextRetry)
}

func (s *Sweeper) recordFailure(c common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.retries[c]
	if !ok {
		state = &retryState{}
		s.retries[c] = state
	}
	state.attempts++
	delay := s.baseDelay << (state.attempts - 1)
	if delay > s.maxDelay || delay <= 0 {
		delay = s.maxDelay
	}
	state.nextRetry = time.Now().Add(delay)
}

func (s *Sweeper) clearRetryState(c common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.retries, c)
}
