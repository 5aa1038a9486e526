// Package handler is the thin HTTP layer over the vote service. It decodes
// requests, translates coded errors, and keeps business logic out of
// transport.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"ballotcore/internal/commitment"
	"ballotcore/internal/platform/metrics"
	"ballotcore/internal/platform/middleware"
	"ballotcore/internal/vote"
	"ballotcore/internal/vote/service"
	"ballotcore/pkg/domain"
	dErrors "ballotcore/pkg/domain-errors"
)

// Service defines what the handler needs from the vote service.
type Service interface {
	CastVote(ctx context.Context, voterID domain.VoterID, electionID domain.ElectionID, candidateID domain.CandidateID) (vote.CastResult, error)
	Verify(ctx context.Context, digest common.Hash) (vote.VerifyResult, error)
	GetVote(ctx context.Context, id domain.VoteID) (vote.Vote, error)
	ListByElection(ctx context.Context, electionID domain.ElectionID) ([]vote.Vote, error)
	Statistics(ctx context.Context, electionID domain.ElectionID) (service.Statistics, error)
}

// Handler handles vote intake, verification, and admin read endpoints.
type Handler struct {
	logger    *slog.Logger
	votes     Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
	// castLimiter wraps only the intake route; lookups stay unthrottled.
	castLimiter func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithCastLimiter installs a rate limiting middleware on the cast route.
func WithCastLimiter(limiter func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.castLimiter = limiter }
}

func New(votes Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		votes:     votes,
		metrics:   m,
		validator: validator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the vote routes. Verification is deliberately outside the
// auth chain: a lookup needs only the commitment, so demanding identity
// would break the anonymity of the check.
func (h *Handler) Register(r chi.Router) {
	base := chi.NewRouter()
	base.Use(middleware.Recovery(h.logger))
	base.Use(middleware.RequestID)
	base.Use(middleware.Logger(h.logger))
	base.Use(middleware.Timeout(30 * time.Second))
	base.Use(middleware.ContentTypeJSON)
	base.Use(middleware.LatencyMiddleware(h.metrics))

	base.Get("/votes/verify/{commitment}", h.handleVerify)

	base.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireVoter(h.validator, h.logger))
		if h.castLimiter != nil {
			authed.With(h.castLimiter).Post("/votes", h.handleCastVote)
		} else {
			authed.Post("/votes", h.handleCastVote)
		}
		authed.Get("/votes/{voteID}", h.handleGetVote)
		authed.Get("/votes/election/{electionID}", h.handleListByElection)
		authed.Get("/votes/statistics/{electionID}", h.handleStatistics)
	})

	r.Mount("/", base)
}

func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	voterID, err := domain.ParseVoterID(middleware.GetVoterID(ctx))
	if err != nil {
		// RequireVoter already validated the token; a bad voter_id claim
		// here means the identity service minted garbage.
		h.logger.ErrorContext(ctx, "invalid voter_id claim in validated token",
			"request_id", requestID,
			"error", err,
		)
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid voter identity"))
		return
	}

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	electionID, err := domain.ParseElectionID(req.ElectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	candidateID, err := domain.ParseCandidateID(req.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.votes.CastVote(ctx, voterID, electionID, candidateID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeIneligible) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.WarnContext(ctx, "vote rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			writeError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to cast vote",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, dErrors.New(dErrors.CodeInternal, "failed to cast vote"))
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		// The vote already existed; the voter gets the same receipt again.
		status = http.StatusOK
	}
	writeJSON(w, status, newCastVoteResponse(result))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	digest, err := commitment.ParseCommitment(chi.URLParam(r, "commitment"))
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.votes.Verify(r.Context(), digest)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "verification failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		writeError(w, dErrors.New(dErrors.CodeInternal, "verification failed"))
		return
	}
	writeJSON(w, http.StatusOK, newVerifyResponse(result))
}

func (h *Handler) handleGetVote(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseVoteID(chi.URLParam(r, "voteID"))
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := h.votes.GetVote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVoteResponse(v))
}

func (h *Handler) handleListByElection(w http.ResponseWriter, r *http.Request) {
	electionID, err := domain.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	votes, err := h.votes.ListByElection(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]VoteResponse, 0, len(votes))
	for _, v := range votes {
		out = append(out, newVoteResponse(v))
	}
	writeJSON(w, http.StatusOK, ListVotesResponse{ElectionID: electionID.String(), Votes: out})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	electionID, err := domain.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.votes.Statistics(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatisticsResponse(stats))
}
