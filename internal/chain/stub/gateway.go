// Package stub provides a scriptable in-memory chain.Gateway for tests.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"stablevault/internal/chain"
)

// ErrScripted is the default error injected by the Fail* helpers.
var ErrScripted = errors.New("scripted gateway failure")

// Gateway implements chain.Gateway for testing. All responses are scripted
// through the Set*/Fail* helpers; submissions are recorded for assertions.
// Safe for concurrent use (pollers run on background goroutines).
type Gateway struct {
	mu sync.Mutex

	allowances   map[string]*big.Int
	allowanceErr error

	batchSeq     int
	sendCallsErr error

	txSeq     int
	sendTxErr error

	// Scripted poll responses, consumed in order; the last element repeats
	// once the script is exhausted. A nil receipt element means "pending".
	statusScripts  map[string][]*chain.CallsStatus
	receiptScripts map[string][]*chain.Receipt

	// Recorded traffic.
	Batches        [][]chain.Call
	Transactions   []chain.Call
	AllowanceCalls int
	statusPolls    map[string]int
	receiptPolls   map[string]int
}

// NewGateway creates a new stub gateway.
func NewGateway() *Gateway {
	return &Gateway{
		allowances:     make(map[string]*big.Int),
		statusScripts:  make(map[string][]*chain.CallsStatus),
		receiptScripts: make(map[string][]*chain.Receipt),
		statusPolls:    make(map[string]int),
		receiptPolls:   make(map[string]int),
	}
}

var _ chain.Gateway = (*Gateway)(nil)

func allowanceKey(token, owner, spender string) string {
	return token + "|" + owner + "|" + spender
}

// SetAllowance scripts the allowance read for (token, owner, spender).
func (g *Gateway) SetAllowance(token, owner, spender string, amount *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowances[allowanceKey(token, owner, spender)] = amount
}

// FailAllowance makes every allowance read return an error.
func (g *Gateway) FailAllowance() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowanceErr = ErrScripted
}

// FailSendCalls makes batch submission fail, forcing the sequential fallback.
func (g *Gateway) FailSendCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendCallsErr = ErrScripted
}

// FailSendTransaction makes single-transaction submission fail.
func (g *Gateway) FailSendTransaction() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendTxErr = ErrScripted
}

// ScriptCallsStatus appends a wallet_getCallsStatus response for a batch id.
func (g *Gateway) ScriptCallsStatus(batchID string, status *chain.CallsStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusScripts[batchID] = append(g.statusScripts[batchID], status)
}

// ScriptReceipt appends a receipt poll response for a tx hash. A nil receipt
// scripts one "still pending" poll.
func (g *Gateway) ScriptReceipt(txHash string, receipt *chain.Receipt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.receiptScripts[txHash] = append(g.receiptScripts[txHash], receipt)
}

// StatusPolls returns how many times a batch id was polled.
func (g *Gateway) StatusPolls(batchID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusPolls[batchID]
}

// ReceiptPolls returns how many times a tx hash was polled.
func (g *Gateway) ReceiptPolls(txHash string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.receiptPolls[txHash]
}

// SentBatches returns the recorded batch submissions.
func (g *Gateway) SentBatches() [][]chain.Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]chain.Call(nil), g.Batches...)
}

// SentTransactions returns the recorded single-transaction submissions.
func (g *Gateway) SentTransactions() []chain.Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chain.Call(nil), g.Transactions...)
}

// Allowance returns the scripted allowance, defaulting to zero.
func (g *Gateway) Allowance(_ context.Context, token, owner, spender string) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.AllowanceCalls++
	if g.allowanceErr != nil {
		return nil, g.allowanceErr
	}
	if a, ok := g.allowances[allowanceKey(token, owner, spender)]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}

// SendCalls records the batch and returns a generated batch id.
func (g *Gateway) SendCalls(_ context.Context, _ string, _ int64, calls []chain.Call) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sendCallsErr != nil {
		return "", g.sendCallsErr
	}
	g.batchSeq++
	g.Batches = append(g.Batches, append([]chain.Call(nil), calls...))
	return fmt.Sprintf("batch-%d", g.batchSeq), nil
}

// CallsStatus pops the next scripted status for the batch, repeating the last
// one once the script is exhausted. Unscripted batches report pending.
func (g *Gateway) CallsStatus(_ context.Context, batchID string) (*chain.CallsStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.statusPolls[batchID]++
	script := g.statusScripts[batchID]
	if len(script) == 0 {
		return &chain.CallsStatus{StatusCode: chain.CallsStatusPending}, nil
	}
	next := script[0]
	if len(script) > 1 {
		g.statusScripts[batchID] = script[1:]
	}
	return next, nil
}

// SendTransaction records the call and returns a generated tx hash.
func (g *Gateway) SendTransaction(_ context.Context, _ string, call chain.Call) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sendTxErr != nil {
		return "", g.sendTxErr
	}
	g.txSeq++
	g.Transactions = append(g.Transactions, call)
	return fmt.Sprintf("0xtx%04d", g.txSeq), nil
}

// TransactionReceipt pops the next scripted receipt for the hash, repeating
// the last one once the script is exhausted. Unscripted hashes report pending.
func (g *Gateway) TransactionReceipt(_ context.Context, txHash string) (*chain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.receiptPolls[txHash]++
	script := g.receiptScripts[txHash]
	if len(script) == 0 {
		return nil, nil
	}
	next := script[0]
	if len(script) > 1 {
		g.receiptScripts[txHash] = script[1:]
	}
	return next, nil
}
