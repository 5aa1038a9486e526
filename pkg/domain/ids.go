// Package domain holds typed identifiers shared across services. Wrapping
// uuid.UUID keeps voter, election, and candidate IDs from being swapped at
// call sites.
package domain

import (
	"github.com/google/uuid"

	dErrors "ballotcore/pkg/domain-errors"
)

type (
	VoterID        uuid.UUID
	ElectionID     uuid.UUID
	CandidateID    uuid.UUID
	ConstituencyID uuid.UUID
	VoteID         uuid.UUID
)

func (id VoterID) String() string        { return uuid.UUID(id).String() }
func (id ElectionID) String() string     { return uuid.UUID(id).String() }
func (id CandidateID) String() string    { return uuid.UUID(id).String() }
func (id ConstituencyID) String() string { return uuid.UUID(id).String() }
func (id VoteID) String() string         { return uuid.UUID(id).String() }

func (id VoterID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ElectionID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id CandidateID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, field+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be the nil UUID")
	}
	return parsed, nil
}

func ParseVoterID(raw string) (VoterID, error) {
	id, err := parseUUID(raw, "voter_id")
	return VoterID(id), err
}

func ParseElectionID(raw string) (ElectionID, error) {
	id, err := parseUUID(raw, "election_id")
	return ElectionID(id), err
}

func ParseCandidateID(raw string) (CandidateID, error) {
	id, err := parseUUID(raw, "candidate_id")
	return CandidateID(id), err
}

func ParseVoteID(raw string) (VoteID, error) {
	id, err := parseUUID(raw, "vote_id")
	return VoteID(id), err
}
