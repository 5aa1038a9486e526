package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"ballotcore/pkg/sentinel"
)

const defaultCallTimeout = 10 * time.Second

// RPCClient talks JSON-RPC to the externally-owned ledger service. Each call
// runs under a bounded timeout; a timeout or transport failure surfaces as
// sentinel.ErrUnavailable so the coordinator can leave the vote pending
// instead of failing the cast.
type RPCClient struct {
	client      *rpc.Client
	callTimeout time.Duration
	logger      *slog.Logger
}

// appendResult mirrors the ledger service's ledger_append response.
type appendResult struct {
	TxHash    common.Hash `json:"txHash"`
	Confirmed bool        `json:"confirmed"`
	Duplicate bool        `json:"duplicate"`
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient)

// WithCallTimeout bounds each ledger call. Zero or negative values are ignored.
func WithCallTimeout(d time.Duration) RPCOption {
	return func(c *RPCClient) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// DialRPC connects to the ledger service at the given URL.
func DialRPC(ctx context.Context, url string, logger *slog.Logger, opts ...RPCOption) (*RPCClient, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	c := &RPCClient{
		client:      client,
		callTimeout: defaultCallTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Append submits a commitment for durable recording. The ledger's own
// uniqueness check makes re-submission safe: a duplicate response is treated
// as success for the existing entry.
func (c *RPCClient) Append(ctx context.Context, commitment common.Hash) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var result appendResult
	if err := c.client.CallContext(ctx, &result, "ledger_append", commitment); err != nil {
		c.logger.WarnContext(ctx, "ledger append failed",
			"commitment", commitment.Hex(),
			"error", err,
		)
		return Receipt{}, fmt.Errorf("ledger append: %w: %w", sentinel.ErrUnavailable, err)
	}

	status := StatusSubmitted
	if result.Confirmed {
		status = StatusConfirmed
	}
	if result.Duplicate {
		c.logger.InfoContext(ctx, "ledger already holds commitment",
			"commitment", commitment.Hex(),
			"tx_hash", result.TxHash.Hex(),
		)
	}
	return Receipt{TxHash: result.TxHash, Status: status}, nil
}

// Exists queries whether a commitment has been recorded.
func (c *RPCClient) Exists(ctx context.Context, commitment common.Hash) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var exists bool
	if err := c.client.CallContext(ctx, &exists, "ledger_exists", commitment); err != nil {
		return false, fmt.Errorf("ledger exists: %w: %w", sentinel.ErrUnavailable, err)
	}
	return exists, nil
}

// Close releases the underlying RPC connection.
func (c *RPCClient) Close() {
	c.client.Close()
}
