package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablevault/internal/domain"
	"stablevault/internal/storage"
)

// seedInvestment inserts an investment row the movement can reference.
func seedInvestment(t *testing.T, store *InvestmentStore) *domain.Investment {
	t.Helper()
	inv, _, err := store.UpsertDeposit(context.Background(), testInvestment("p1", "0x"+uuid.NewString()[:8], "100.0", 1000))
	require.NoError(t, err)
	return inv
}

func testMovement(investmentID string, createdAt int64) *domain.Movement {
	return &domain.Movement{
		ID:           uuid.NewString(),
		InvestmentID: investmentID,
		ProfileID:    "p1",
		Type:         domain.MovementTypeDeposit,
		Amount:       decimal.RequireFromString("100.0"),
		Token:        "USDC",
		TxHash:       "batch-" + uuid.NewString()[:8],
		Chain:        "base",
		Status:       domain.MovementStatusPending,
		Metadata: domain.MovementMetadata{
			VaultAddress:      "0xvault",
			AdditionalDeposit: true,
			InvestmentType:    domain.InvestmentTypeVault,
			SubmissionPath:    domain.SubmissionPathBatch,
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMovementStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	invStore := NewInvestmentStore(pool)
	store := NewMovementStore(pool)
	ctx := context.Background()

	inv := seedInvestment(t, invStore)
	m := testMovement(inv.ID, 1000)
	require.NoError(t, store.Insert(ctx, m))

	got, err := store.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.TxHash, got.TxHash)
	assert.Equal(t, domain.MovementStatusPending, got.Status)
	assert.Equal(t, m.Metadata, got.Metadata, "metadata round-trips through JSONB")
	assert.True(t, got.Amount.Equal(m.Amount), "amount = %s", got.Amount)
}

func TestMovementStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	invStore := NewInvestmentStore(pool)
	store := NewMovementStore(pool)
	ctx := context.Background()

	inv := seedInvestment(t, invStore)
	m := testMovement(inv.ID, 1000)
	require.NoError(t, store.Insert(ctx, m))

	err := store.Insert(ctx, m)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestMovementStore_CompleteTerminal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	invStore := NewInvestmentStore(pool)
	store := NewMovementStore(pool)
	ctx := context.Background()

	inv := seedInvestment(t, invStore)
	m := testMovement(inv.ID, 1000)
	require.NoError(t, store.Insert(ctx, m))

	require.NoError(t, store.CompleteTerminal(ctx, m.ID, "0xfinal", domain.MovementStatusConfirmed, 2000))

	got, err := store.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusConfirmed, got.Status)
	assert.Equal(t, "0xfinal", got.TxHash)
	assert.EqualValues(t, 2000, got.UpdatedAt)

	// Terminal rows are immutable.
	err = store.CompleteTerminal(ctx, m.ID, "0xother", domain.MovementStatusFailed, 3000)
	assert.ErrorIs(t, err, storage.ErrTerminalStatus)

	got, err = store.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MovementStatusConfirmed, got.Status)
	assert.Equal(t, "0xfinal", got.TxHash)
}

func TestMovementStore_CompleteTerminal_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMovementStore(pool)
	ctx := context.Background()

	err := store.CompleteTerminal(ctx, uuid.NewString(), "0xhash", domain.MovementStatusConfirmed, 1000)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMovementStore_GetPendingOlderThan(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	invStore := NewInvestmentStore(pool)
	store := NewMovementStore(pool)
	ctx := context.Background()

	inv := seedInvestment(t, invStore)

	old := testMovement(inv.ID, 1000)
	fresh := testMovement(inv.ID, 9000)
	done := testMovement(inv.ID, 1000)
	require.NoError(t, store.Insert(ctx, old))
	require.NoError(t, store.Insert(ctx, fresh))
	require.NoError(t, store.Insert(ctx, done))
	require.NoError(t, store.CompleteTerminal(ctx, done.ID, "0xdone", domain.MovementStatusConfirmed, 1500))

	stale, err := store.GetPendingOlderThan(ctx, 5000)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestMovementStore_GetByInvestment(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	invStore := NewInvestmentStore(pool)
	store := NewMovementStore(pool)
	ctx := context.Background()

	inv := seedInvestment(t, invStore)
	first := testMovement(inv.ID, 1000)
	second := testMovement(inv.ID, 2000)
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	result, err := store.GetByInvestment(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, second.ID, result[0].ID, "most recent first")
}
