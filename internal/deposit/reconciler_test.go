package deposit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablevault/internal/chain"
	"stablevault/internal/chain/stub"
	"stablevault/internal/domain"
	"stablevault/internal/storage/memory"
)

func TestReconciler_RequeuesStalePendingMovements(t *testing.T) {
	ctx := context.Background()
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 10)
	rec := NewReconciler(movements, poller, time.Minute, zerolog.Nop())

	// Two movements pending from before this process started: one batch,
	// one sequential.
	backdate := time.Now().Add(-10 * time.Minute).UnixMilli()
	staleBatch := seedMovementAt(t, movements, "batch-9", domain.SubmissionPathBatch, backdate)
	staleSeq := seedMovementAt(t, movements, "0xold", domain.SubmissionPathSequential, backdate)

	gw.ScriptCallsStatus("batch-9", &chain.CallsStatus{
		StatusCode: chain.CallsStatusConfirmed,
		Receipts:   []chain.Receipt{{TransactionHash: "0xbatched", Success: true, BlockNumber: 50}},
	})
	gw.ScriptReceipt("0xold", &chain.Receipt{TransactionHash: "0xold", Success: true, BlockNumber: 51})

	requeued, err := rec.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, requeued)
	poller.Wait()

	gotBatch, err := movements.GetByID(ctx, staleBatch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusConfirmed, gotBatch.Status)
	assert.Equal(t, "0xbatched", gotBatch.TxHash, "requeued batch movement still gets its hash rewritten")

	gotSeq, err := movements.GetByID(ctx, staleSeq.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusConfirmed, gotSeq.Status)
	assert.Equal(t, "0xold", gotSeq.TxHash)
}

func TestReconciler_SkipsFreshAndTerminalMovements(t *testing.T) {
	ctx := context.Background()
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 10)
	rec := NewReconciler(movements, poller, time.Minute, zerolog.Nop())

	// Fresh pending movement: still inside the poller's own window.
	seedMovement(t, movements, "batch-1", domain.SubmissionPathBatch)

	// Old but already terminal.
	done := seedMovementAt(t, movements, "0xdone", domain.SubmissionPathSequential, time.Now().Add(-time.Hour).UnixMilli())
	require.NoError(t, movements.CompleteTerminal(ctx, done.ID, "0xdone", domain.MovementStatusConfirmed, time.Now().UnixMilli()))

	requeued, err := rec.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, requeued)
	poller.Wait()

	assert.Equal(t, 0, gw.StatusPolls("batch-1"))
	assert.Equal(t, 0, gw.ReceiptPolls("0xdone"))
}

func TestReconciler_SkipsAlreadyWatchedMovements(t *testing.T) {
	ctx := context.Background()
	gw := stub.NewGateway()
	movements := memory.NewMovementStore()
	poller := newTestPoller(gw, movements, 200)
	rec := NewReconciler(movements, poller, time.Minute, zerolog.Nop())

	stale := seedMovementAt(t, movements, "batch-1", domain.SubmissionPathBatch, time.Now().Add(-10*time.Minute).UnixMilli())

	sub := domain.SubmissionResult{Path: domain.SubmissionPathBatch, BatchID: "batch-1"}
	require.True(t, poller.Watch(sub, stale.ID))

	requeued, err := rec.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, requeued, "an in-flight watch is never doubled")

	gw.ScriptCallsStatus("batch-1", &chain.CallsStatus{
		StatusCode: chain.CallsStatusConfirmed,
		Receipts:   []chain.Receipt{{TransactionHash: "0xabc", Success: true, BlockNumber: 1}},
	})
	poller.Wait()
}
