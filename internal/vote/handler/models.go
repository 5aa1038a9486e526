package handler

import (
	"time"

	"ballotcore/internal/vote"
	"ballotcore/internal/vote/service"
)

type CastVoteRequest struct {
	ElectionID  string `json:"election_id"`
	CandidateID string `json:"candidate_id"`
}

type CastVoteResponse struct {
	VoteID       string `json:"vote_id"`
	Commitment   string `json:"commitment"`
	LedgerStatus string `json:"ledger_status"`
	Duplicate    bool   `json:"duplicate"`
	// Nonce is the voter's half of the commitment. It appears exactly once,
	// on the first successful cast, and is never retrievable again.
	Nonce string `json:"nonce,omitempty"`
}

func newCastVoteResponse(r vote.CastResult) CastVoteResponse {
	resp := CastVoteResponse{
		VoteID:       r.VoteID.String(),
		Commitment:   r.Commitment.Hex(),
		LedgerStatus: string(r.LedgerStatus),
		Duplicate:    r.Duplicate,
	}
	if r.Nonce != nil {
		resp.Nonce = r.Nonce.Hex()
	}
	return resp
}

type VerifyResponse struct {
	FoundInStore  bool   `json:"found_in_store"`
	FoundInLedger bool   `json:"found_in_ledger"`
	LedgerChecked bool   `json:"ledger_checked"`
	Verified      bool   `json:"verified"`
	Status        string `json:"status"`
}

func newVerifyResponse(r vote.VerifyResult) VerifyResponse {
	return VerifyResponse{
		FoundInStore:  r.FoundInStore,
		FoundInLedger: r.FoundInLedger,
		LedgerChecked: r.LedgerChecked,
		Verified:      r.Verified,
		Status:        string(r.Status),
	}
}

type VoteResponse struct {
	ID           string    `json:"id"`
	ElectionID   string    `json:"election_id"`
	CandidateID  string    `json:"candidate_id"`
	Commitment   string    `json:"commitment"`
	LedgerTx     string    `json:"ledger_tx,omitempty"`
	LedgerStatus string    `json:"ledger_status"`
	CreatedAt    time.Time `json:"created_at"`
}

func newVoteResponse(v vote.Vote) VoteResponse {
	resp := VoteResponse{
		ID:           v.ID.String(),
		ElectionID:   v.ElectionID.String(),
		CandidateID:  v.CandidateID.String(),
		Commitment:   v.Commitment.Hex(),
		LedgerStatus: string(v.LedgerStatus),
		CreatedAt:    v.CreatedAt,
	}
	if v.LedgerStatus != vote.LedgerPending {
		resp.LedgerTx = v.LedgerTx.Hex()
	}
	return resp
}

type ListVotesResponse struct {
	ElectionID string         `json:"election_id"`
	Votes      []VoteResponse `json:"votes"`
}

type CandidateTallyResponse struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Party       string `json:"party"`
	Count       int    `json:"count"`
}

type StatisticsResponse struct {
	ElectionID string                   `json:"election_id"`
	Total      int                      `json:"total"`
	Tallies    []CandidateTallyResponse `json:"tallies"`
}

func newStatisticsResponse(s service.Statistics) StatisticsResponse {
	tallies := make([]CandidateTallyResponse, 0, len(s.Tallies))
	for _, t := range s.Tallies {
		tallies = append(tallies, CandidateTallyResponse{
			CandidateID: t.CandidateID.String(),
			Name:        t.Name,
			Party:       t.Party,
			Count:       t.Count,
		})
	}
	return StatisticsResponse{
		ElectionID: s.ElectionID.String(),
		Total:      s.Total,
		Tallies:    tallies,
	}
}
