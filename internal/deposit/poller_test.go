package deposit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablevault/internal/chain"
	"stablevault/internal/chain/stub"
	"stablevault/internal/domain"
	"stablevault/internal/storage/memory"
)

func newTestPoller(gw *stub.Gateway, movements *memory.MovementStore, attempts int) *ConfirmationPoller {
	return NewConfirmationPoller(PollerOptions{
		Gateway:   gw,
		Movements: movements,
		Logger:    zerolog.Nop(),
		Attempts:  attempts,
		Interval:  time.Millisecond,
	})
}

func seedMovement(t *testing.T, store *memory.MovementStore, txRef string, path domain.SubmissionPath) *domain.Movement {
	t.Helper()
	return seedMovementAt(t, store, txRef, path, time.Now().UnixMilli())
}

func seedMovementAt(t *testing.T, store *memory.MovementStore, txRef string, path domain.SubmissionPath, now int64) *domain.Movement {
	t.Helper()
	m := &domain.Movement{
		ID:           "movement-" + txRef,
		InvestmentID: "investment-1",
		ProfileID:    "profile-1",
		Type:         domain.MovementTypeDeposit,
		Amount:       decimal.RequireFromString("150"),
		Token:        "USDC",
		TxHash:       txRef,
		Chain:        "base",
		Status:       domain.MovementStatusPending,
		Metadata: domain.MovementMetadata{
			VaultAddress:   testVault,
			InvestmentType: domain.InvestmentTypeVault,
			SubmissionPath: path,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Insert(context.Background(), m))
	return m
}

func TestConfirmationPoller_BatchConfirmRewritesTxHash(t *testing.T) {
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 10)

	m := seedMovement(t, movements, "batch-1", domain.SubmissionPathBatch)
	gw.ScriptCallsStatus("batch-1", &chain.CallsStatus{StatusCode: chain.CallsStatusPending})
	gw.ScriptCallsStatus("batch-1", &chain.CallsStatus{StatusCode: chain.CallsStatusPending})
	gw.ScriptCallsStatus("batch-1", &chain.CallsStatus{
		StatusCode: chain.CallsStatusConfirmed,
		Receipts:   []chain.Receipt{{TransactionHash: "0xabc123", Success: true, BlockNumber: 77}},
	})

	require.True(t, poller.Watch(domain.SubmissionResult{Path: domain.SubmissionPathBatch, BatchID: "batch-1"}, m.ID))
	poller.Wait()

	got, err := movements.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusConfirmed, got.Status)
	assert.Equal(t, "0xabc123", got.TxHash, "batch id is replaced by the receipt's transaction hash")
	assert.Equal(t, 3, gw.StatusPolls("batch-1"))
}

func TestConfirmationPoller_SequentialConfirmKeepsTxHash(t *testing.T) {
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 10)

	m := seedMovement(t, movements, "0xdeposit1", domain.SubmissionPathSequential)
	gw.ScriptReceipt("0xdeposit1", nil)
	gw.ScriptReceipt("0xdeposit1", &chain.Receipt{TransactionHash: "0xdeposit1", Success: true, BlockNumber: 88})

	require.True(t, poller.Watch(domain.SubmissionResult{Path: domain.SubmissionPathSequential, TxHash: "0xdeposit1"}, m.ID))
	poller.Wait()

	got, err := movements.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusConfirmed, got.Status)
	assert.Equal(t, "0xdeposit1", got.TxHash)
}

func TestConfirmationPoller_FailedReceiptMarksMovementFailed(t *testing.T) {
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 10)

	m := seedMovement(t, movements, "batch-1", domain.SubmissionPathBatch)
	gw.ScriptCallsStatus("batch-1", &chain.CallsStatus{
		StatusCode: chain.CallsStatusConfirmed,
		Receipts:   []chain.Receipt{{TransactionHash: "0xdead", Success: false, BlockNumber: 90}},
	})

	poller.Watch(domain.SubmissionResult{Path: domain.SubmissionPathBatch, BatchID: "batch-1"}, m.ID)
	poller.Wait()

	got, err := movements.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusFailed, got.Status)
	assert.Equal(t, "0xdead", got.TxHash)
}

func TestConfirmationPoller_BudgetExhaustedLeavesMovementPending(t *testing.T) {
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 5)

	m := seedMovement(t, movements, "batch-1", domain.SubmissionPathBatch)
	// Nothing scripted: every poll reports pending.

	poller.Watch(domain.SubmissionResult{Path: domain.SubmissionPathBatch, BatchID: "batch-1"}, m.ID)
	poller.Wait()

	got, err := movements.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusPending, got.Status, "exhaustion is not a failure")
	assert.Equal(t, "batch-1", got.TxHash)
	assert.Equal(t, 5, gw.StatusPolls("batch-1"), "polling stops at the attempt bound")
}

func TestConfirmationPoller_DuplicateWatchSuppressed(t *testing.T) {
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 50)

	m := seedMovement(t, movements, "batch-1", domain.SubmissionPathBatch)
	sub := domain.SubmissionResult{Path: domain.SubmissionPathBatch, BatchID: "batch-1"}

	assert.True(t, poller.Watch(sub, m.ID))
	assert.False(t, poller.Watch(sub, m.ID), "a movement is watched at most once at a time")

	gw.ScriptCallsStatus("batch-1", &chain.CallsStatus{
		StatusCode: chain.CallsStatusConfirmed,
		Receipts:   []chain.Receipt{{TransactionHash: "0xabc", Success: true, BlockNumber: 1}},
	})
	poller.Wait()

	assert.True(t, poller.Watch(sub, m.ID), "a finished movement can be watched again")
	poller.Wait()
}

func TestConfirmationPoller_TerminalMovementNotRewritten(t *testing.T) {
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 10)

	m := seedMovement(t, movements, "0xdeposit1", domain.SubmissionPathSequential)
	require.NoError(t, movements.CompleteTerminal(context.Background(), m.ID, "0xdeposit1", domain.MovementStatusConfirmed, time.Now().UnixMilli()))

	// A racing watch observing a failure afterwards must not rewrite the
	// already-terminal row.
	gw.ScriptReceipt("0xdeposit1", &chain.Receipt{TransactionHash: "0xother", Success: false, BlockNumber: 5})
	poller.Watch(domain.SubmissionResult{Path: domain.SubmissionPathSequential, TxHash: "0xdeposit1"}, m.ID)
	poller.Wait()

	got, err := movements.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusConfirmed, got.Status)
	assert.Equal(t, "0xdeposit1", got.TxHash)
}
