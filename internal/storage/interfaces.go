package storage

import (
	"context"

	"stablevault/internal/domain"
)

// InvestmentStore provides access to investments storage.
//
// The store enforces the invariant that at most one investment per
// (profile_id, vault_address) pair is PENDING or ACTIVE at a time: additive
// deposits extend the open row inside UpsertDeposit rather than creating a
// second one.
type InvestmentStore interface {
	// UpsertDeposit merges a deposit intent into the open investment for
	// seed's (profile_id, vault_address) pair, atomically. If an open row
	// exists, its amount_invested is increased by seed.AmountInvested, its
	// APR is replaced by seed.APR and its status reset to PENDING; the
	// updated row is returned with merged=true. Otherwise seed is inserted
	// as-is and returned with merged=false.
	UpsertDeposit(ctx context.Context, seed *domain.Investment) (inv *domain.Investment, merged bool, err error)

	// GetByID retrieves an investment by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Investment, error)

	// GetByProfile retrieves all investments for a profile, most recent first.
	GetByProfile(ctx context.Context, profileID string) ([]*domain.Investment, error)

	// GetOpenByVault retrieves the most recent PENDING or ACTIVE investment
	// for (profile, vault). Returns ErrNotFound if none is open.
	GetOpenByVault(ctx context.Context, profileID, vaultAddress string) (*domain.Investment, error)

	// UpdateStatus sets the status and updated_at of an investment.
	// Returns ErrNotFound if the row does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.InvestmentStatus, updatedAt int64) error
}

// MovementStore provides access to movements storage.
type MovementStore interface {
	// Insert adds a new movement. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, m *domain.Movement) error

	// GetByID retrieves a movement by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Movement, error)

	// GetByInvestment retrieves all movements for an investment, most recent first.
	GetByInvestment(ctx context.Context, investmentID string) ([]*domain.Movement, error)

	// GetPendingOlderThan retrieves PENDING movements created at or before
	// cutoff (Unix ms), oldest first.
	GetPendingOlderThan(ctx context.Context, cutoff int64) ([]*domain.Movement, error)

	// CompleteTerminal writes the terminal outcome of a movement: tx_hash,
	// status and updated_at in one conditional update that only applies while
	// the current status is still PENDING. Returns ErrTerminalStatus if the
	// movement already reached a terminal status, ErrNotFound if it does not
	// exist, ErrInvalidInput if status is not terminal.
	CompleteTerminal(ctx context.Context, id, txHash string, status domain.MovementStatus, updatedAt int64) error
}
