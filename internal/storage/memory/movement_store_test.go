package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"stablevault/internal/domain"
	"stablevault/internal/storage"
)

func newMovement(id, investmentID string, status domain.MovementStatus, createdAt int64) *domain.Movement {
	return &domain.Movement{
		ID:           id,
		InvestmentID: investmentID,
		ProfileID:    "p1",
		Type:         domain.MovementTypeDeposit,
		Amount:       decimal.RequireFromString("100.0"),
		Token:        "USDC",
		TxHash:       "batch-" + id,
		Chain:        "base",
		Status:       status,
		Metadata: domain.MovementMetadata{
			VaultAddress:   "0xvault",
			InvestmentType: domain.InvestmentTypeVault,
			SubmissionPath: domain.SubmissionPathBatch,
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMovementStore_InsertAndGet(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newMovement("m1", "i1", domain.MovementStatusPending, 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TxHash != "batch-m1" {
		t.Errorf("tx hash mismatch: got %s", got.TxHash)
	}
	if got.Metadata.VaultAddress != "0xvault" {
		t.Errorf("metadata mismatch: got %+v", got.Metadata)
	}
}

func TestMovementStore_DuplicateKey(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	m := newMovement("m1", "i1", domain.MovementStatusPending, 1000)
	if err := store.Insert(ctx, m); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.Insert(ctx, m)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestMovementStore_CompleteTerminal(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newMovement("m1", "i1", domain.MovementStatusPending, 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.CompleteTerminal(ctx, "m1", "0xfinalhash", domain.MovementStatusConfirmed, 2000)
	if err != nil {
		t.Fatalf("CompleteTerminal failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "m1")
	if got.Status != domain.MovementStatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
	if got.TxHash != "0xfinalhash" {
		t.Errorf("expected tx hash rewrite, got %s", got.TxHash)
	}
	if got.UpdatedAt != 2000 {
		t.Errorf("expected updated_at 2000, got %d", got.UpdatedAt)
	}
}

func TestMovementStore_CompleteTerminal_Immutable(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newMovement("m1", "i1", domain.MovementStatusPending, 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.CompleteTerminal(ctx, "m1", "0xhash", domain.MovementStatusConfirmed, 2000); err != nil {
		t.Fatalf("CompleteTerminal failed: %v", err)
	}

	// A second terminal write must be rejected and change nothing.
	err := store.CompleteTerminal(ctx, "m1", "0xother", domain.MovementStatusFailed, 3000)
	if !errors.Is(err, storage.ErrTerminalStatus) {
		t.Errorf("expected ErrTerminalStatus, got %v", err)
	}

	got, _ := store.GetByID(ctx, "m1")
	if got.Status != domain.MovementStatusConfirmed || got.TxHash != "0xhash" {
		t.Errorf("terminal movement was rewritten: %s %s", got.Status, got.TxHash)
	}
}

func TestMovementStore_CompleteTerminal_RejectsNonTerminal(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newMovement("m1", "i1", domain.MovementStatusPending, 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.CompleteTerminal(ctx, "m1", "0xhash", domain.MovementStatusPending, 2000)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMovementStore_GetPendingOlderThan(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	for _, m := range []*domain.Movement{
		newMovement("m1", "i1", domain.MovementStatusPending, 1000),
		newMovement("m2", "i1", domain.MovementStatusConfirmed, 1000),
		newMovement("m3", "i2", domain.MovementStatusPending, 5000),
		newMovement("m4", "i2", domain.MovementStatusPending, 2000),
	} {
		if err := store.Insert(ctx, m); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	stale, err := store.GetPendingOlderThan(ctx, 2000)
	if err != nil {
		t.Fatalf("GetPendingOlderThan failed: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("expected 2 stale movements, got %d", len(stale))
	}
	if stale[0].ID != "m1" || stale[1].ID != "m4" {
		t.Errorf("expected [m1 m4], got [%s %s]", stale[0].ID, stale[1].ID)
	}
}

func TestMovementStore_GetByInvestment(t *testing.T) {
	store := NewMovementStore()
	ctx := context.Background()

	for _, m := range []*domain.Movement{
		newMovement("m1", "i1", domain.MovementStatusConfirmed, 1000),
		newMovement("m2", "i1", domain.MovementStatusPending, 2000),
		newMovement("m3", "i2", domain.MovementStatusPending, 3000),
	} {
		if err := store.Insert(ctx, m); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByInvestment(ctx, "i1")
	if err != nil {
		t.Fatalf("GetByInvestment failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(result))
	}
	if result[0].ID != "m2" {
		t.Errorf("expected most recent first, got %s", result[0].ID)
	}
}
