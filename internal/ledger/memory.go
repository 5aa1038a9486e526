package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ballotcore/pkg/sentinel"
)

// Memory is the in-process ledger double. Tests use it directly; cmd/server
// selects it via config for development, where the choice is logged loudly at
// startup rather than hidden behind a silent fallback.
type Memory struct {
	mu      sync.RWMutex
	entries map[common.Hash]Receipt

	// failing simulates an outage when set.
	failing bool
	// confirmImmediately controls whether appends report confirmed or
	// submitted, letting tests exercise both receipt states.
	confirmImmediately bool
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithDeferredConfirmation makes appends report StatusSubmitted; tests then
// call Confirm explicitly.
func WithDeferredConfirmation() MemoryOption {
	return func(m *Memory) { m.confirmImmediately = false }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:            make(map[common.Hash]Receipt),
		confirmImmediately: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Append(ctx context.Context, commitment common.Hash) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return Receipt{}, sentinel.ErrUnavailable
	}
	if existing, ok := m.entries[commitment]; ok {
		return existing, nil
	}

	status := StatusSubmitted
	if m.confirmImmediately {
		status = StatusConfirmed
	}
	receipt := Receipt{
		// Derive a stable pseudo transaction hash so repeated appends of the
		// same commitment return identical receipts.
		TxHash: crypto.Keccak256Hash(commitment.Bytes()),
		Status: status,
	}
	m.entries[commitment] = receipt
	return receipt, nil
}

func (m *Memory) Exists(ctx context.Context, commitment common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return false, sentinel.ErrUnavailable
	}
	_, ok := m.entries[commitment]
	return ok, nil
}

// Confirm upgrades a submitted entry to confirmed.
func (m *Memory) Confirm(commitment common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.entries[commitment]; ok {
		r.Status = StatusConfirmed
		m.entries[commitment] = r
	}
}

// SetFailing toggles simulated unavailability.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// Len reports how many distinct commitments the ledger holds.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
