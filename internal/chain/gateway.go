// Package chain talks to an EVM network through the connected wallet's
// JSON-RPC provider: read-only contract calls, single transaction submission,
// and EIP-5792 atomic call batches.
package chain

import (
	"context"
	"math/big"
)

// Gateway defines the chain RPC interface the deposit subsystem consumes.
type Gateway interface {
	// Allowance reads the current ERC-20 spending allowance granted by owner
	// to spender on the given token contract.
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)

	// SendCalls submits a call batch atomically via wallet_sendCalls and
	// returns the batch identifier. The identifier is not a transaction hash.
	SendCalls(ctx context.Context, from string, chainID int64, calls []Call) (string, error)

	// CallsStatus queries the status of a previously submitted call batch.
	CallsStatus(ctx context.Context, batchID string) (*CallsStatus, error)

	// SendTransaction submits a single call via eth_sendTransaction and
	// returns the final transaction hash.
	SendTransaction(ctx context.Context, from string, call Call) (string, error)

	// TransactionReceipt retrieves the receipt for a transaction hash.
	// Returns (nil, nil) while the transaction is still pending.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// Call is one ABI-encoded contract call.
type Call struct {
	To    string // contract address, hex
	Data  []byte // ABI-encoded calldata
	Value *big.Int
}

// Receipt is the on-chain record of a finalized transaction.
type Receipt struct {
	TransactionHash string
	Success         bool // EVM-level status flag: true for 0x1, false for 0x0
	BlockNumber     int64
}

// CallsStatus statusCode values per EIP-5792. 100 means the batch is still
// pending; 200 means it is confirmed and receipts are available.
const (
	CallsStatusPending   = 100
	CallsStatusConfirmed = 200
)

// CallsStatus is the state of a submitted call batch.
type CallsStatus struct {
	StatusCode int
	Receipts   []Receipt
}

// Terminal reports whether the batch reached a final on-chain state:
// a confirmed status code with at least one receipt attached.
func (s *CallsStatus) Terminal() bool {
	return s != nil && s.StatusCode == CallsStatusConfirmed && len(s.Receipts) > 0
}
