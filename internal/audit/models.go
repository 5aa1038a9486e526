// Package audit records vote lifecycle events. Events carry commitments and
// identifiers, never candidate choices, so the trail itself cannot leak a
// ballot.
package audit

import "time"

// Action labels what happened to a vote.
type Action string

const (
	ActionVoteCast        Action = "vote_cast"
	ActionVoteDuplicate   Action = "vote_duplicate"
	ActionVoteIneligible  Action = "vote_ineligible"
	ActionLedgerConfirmed Action = "ledger_confirmed"
	ActionLedgerPending   Action = "ledger_pending"
	ActionSweepRecovered  Action = "sweep_recovered"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	VoterID    string    `json:"voter_id,omitempty"`
	ElectionID string    `json:"election_id,omitempty"`
	Commitment string    `json:"commitment,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}
