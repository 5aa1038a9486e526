// Package commitment computes the vote commitment: a Keccak-256 digest over a
// canonical encoding of (voter, election, candidate, nonce). The nonce keeps
// the digest unpredictable to observers who see only the public identifiers;
// it is handed to the voter as part of their receipt and never persisted.
package commitment

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"ballotcore/pkg/domain"
	dErrors "ballotcore/pkg/domain-errors"
)

// NonceSize is fixed so the canonical encoding has a stable width.
const NonceSize = 32

// Nonce is the per-vote secret; fresh for every cast, never reused.
type Nonce [NonceSize]byte

func (n Nonce) Hex() string { return hexutil.Encode(n[:]) }

// ParseNonce decodes a 0x-prefixed hex nonce, as presented on a receipt.
func ParseNonce(raw string) (Nonce, error) {
	var n Nonce
	b, err := hexutil.Decode(raw)
	if err != nil {
		return n, dErrors.Wrap(err, dErrors.CodeInvalidInput, "nonce is not valid hex")
	}
	if len(b) != NonceSize {
		return n, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("nonce must be %d bytes", NonceSize))
	}
	copy(n[:], b)
	return n, nil
}

// NewNonce draws a fresh nonce from the OS CSPRNG.
func NewNonce() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("generate nonce: %w", err)
	}
	return n, nil
}

// Compute derives the commitment for one vote. The encoding is fixed-width
// and fixed-order (voter 16 | election 16 | candidate 16 | nonce 32) so the
// digest is reproducible across processes and implementations.
func Compute(voterID domain.VoterID, electionID domain.ElectionID, candidateID domain.CandidateID, nonce Nonce) (common.Hash, error) {
	if voterID.IsZero() {
		return common.Hash{}, dErrors.New(dErrors.CodeInvalidInput, "voter_id must not be zero")
	}
	if electionID.IsZero() {
		return common.Hash{}, dErrors.New(dErrors.CodeInvalidInput, "election_id must not be zero")
	}
	if candidateID.IsZero() {
		return common.Hash{}, dErrors.New(dErrors.CodeInvalidInput, "candidate_id must not be zero")
	}
	if nonce == (Nonce{}) {
		return common.Hash{}, dErrors.New(dErrors.CodeInvalidInput, "nonce must not be zero")
	}

	buf := make([]byte, 0, 3*16+NonceSize)
	buf = appendUUID(buf, uuid.UUID(voterID))
	buf = appendUUID(buf, uuid.UUID(electionID))
	buf = appendUUID(buf, uuid.UUID(candidateID))
	buf = append(buf, nonce[:]...)

	return crypto.Keccak256Hash(buf), nil
}

// ParseCommitment decodes a 0x-prefixed 32-byte commitment from its hex form.
func ParseCommitment(raw string) (common.Hash, error) {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return common.Hash{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "commitment is not valid hex")
	}
	if len(b) != common.HashLength {
		return common.Hash{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("commitment must be %d bytes", common.HashLength))
	}
	return common.BytesToHash(b), nil
}

func appendUUID(buf []byte, id uuid.UUID) []byte {
	return append(buf, id[:]...)
}
