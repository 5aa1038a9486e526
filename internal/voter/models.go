// Package voter exposes the read-only voter directory maintained by the
// identity subsystem. The vote core consults it for eligibility only; it
// never writes voter records.
package voter

import "ballotcore/pkg/domain"

type Voter struct {
	ID             domain.VoterID
	ConstituencyID domain.ConstituencyID
	// Eligible is the roll's eligibility flag.
	Eligible bool
	// Verified is set after identity verification has confirmed the voter.
	Verified bool
}
