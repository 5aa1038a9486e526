// Package ledger abstracts the external append-only commitment ledger. The
// core only needs two operations from whatever ledger technology backs it:
// append a commitment and answer whether one exists.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Status distinguishes a write the ledger has accepted from one it has
// durably confirmed. Callers must see both states; collapsing them would
// hide the window where a vote is recorded locally but not yet on-ledger.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
)

// Receipt is the ledger's acknowledgement of an append.
type Receipt struct {
	TxHash common.Hash
	Status Status
}

// Ledger is implemented by the real RPC-backed adapter and the in-memory
// double. Selection happens once at construction in cmd/server; business
// logic never branches on which implementation it holds.
type Ledger interface {
	// Append records a commitment. Semantically idempotent: appending a
	// commitment the ledger already holds returns the existing entry's
	// receipt rather than creating (and charging for) a second one.
	// Unreachable ledger -> error wrapping sentinel.ErrUnavailable.
	Append(ctx context.Context, commitment common.Hash) (Receipt, error)

	// Exists reports whether a commitment has been recorded.
	Exists(ctx context.Context, commitment common.Hash) (bool, error)
}
