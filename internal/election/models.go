// Package election exposes read-only election and candidate reference data.
// The records are owned by the administration subsystem; the vote core only
// reads them to validate intake.
package election

import (
	"time"

	"ballotcore/pkg/domain"
)

// Status follows the administration subsystem's lifecycle.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Election struct {
	ID             domain.ElectionID
	Name           string
	Status         Status
	StartsAt       time.Time
	EndsAt         time.Time
	Constituencies []domain.ConstituencyID
}

// AcceptsVotesAt reports whether intake is open: status active and the clock
// inside the window.
func (e Election) AcceptsVotesAt(now time.Time) bool {
	if e.Status != StatusActive {
		return false
	}
	return !now.Before(e.StartsAt) && now.Before(e.EndsAt)
}

// Covers reports whether the election includes the given constituency.
func (e Election) Covers(constituency domain.ConstituencyID) bool {
	for _, c := range e.Constituencies {
		if c == constituency {
			return true
		}
	}
	return false
}

type Candidate struct {
	ID             domain.CandidateID
	ElectionID     domain.ElectionID
	ConstituencyID domain.ConstituencyID
	Name           string
	Party          string
}
