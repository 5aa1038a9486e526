// Package vote owns the cast-vote record and the result types returned by
// the intake and verification services.
package vote

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ballotcore/internal/commitment"
	"ballotcore/pkg/domain"
)

// LedgerStatus tracks how far a vote's commitment has travelled towards the
// ledger. A pending vote is valid and durable in the relational store; the
// ledger write is still owed.
type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerSubmitted LedgerStatus = "submitted"
	LedgerConfirmed LedgerStatus = "confirmed"
)

// Vote is the core-owned record: exactly one per (voter, election), written
// once and never updated except to attach the ledger receipt.
type Vote struct {
	ID             domain.VoteID
	VoterID        domain.VoterID
	ElectionID     domain.ElectionID
	CandidateID    domain.CandidateID
	ConstituencyID domain.ConstituencyID
	Commitment     common.Hash
	LedgerTx       common.Hash
	LedgerStatus   LedgerStatus
	CreatedAt      time.Time
}

// CastResult is the voter-visible outcome of an intake request. Duplicate is
// set when the request hit an existing row and the stored commitment was
// returned instead of a new one.
type CastResult struct {
	VoteID       domain.VoteID
	Commitment   common.Hash
	LedgerStatus LedgerStatus
	Duplicate    bool
	// Nonce is only present on a first successful cast; it is the voter's
	// half of the commitment and is never stored.
	Nonce *commitment.Nonce
}

// VerifyStatus is the combined verdict of the two stores.
type VerifyStatus string

const (
	VerifyStatusVerified VerifyStatus = "verified"
	VerifyStatusPartial  VerifyStatus = "partial"
	VerifyStatusNotFound VerifyStatus = "not_found"
)

// VerifyResult reports each store's answer separately; Verified is only true
// when both agree. LedgerChecked is false when the ledger could not be
// reached, so a missing ledger entry can be told apart from an unknown one.
type VerifyResult struct {
	FoundInStore  bool
	FoundInLedger bool
	LedgerChecked bool
	Verified      bool
	Status        VerifyStatus
}
