package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stablevault/internal/domain"
	"stablevault/internal/storage"
)

// InvestmentStore implements storage.InvestmentStore using PostgreSQL.
//
// The one-open-investment-per-(profile, vault) invariant is enforced by a
// partial unique index on (profile_id, vault_address) WHERE status IN
// ('PENDING','ACTIVE'); UpsertDeposit merges through ON CONFLICT against that
// index, so concurrent deposit intents for the same pair cannot produce
// duplicate open rows or lost updates.
type InvestmentStore struct {
	pool *Pool
}

// NewInvestmentStore creates a new InvestmentStore.
func NewInvestmentStore(pool *Pool) *InvestmentStore {
	return &InvestmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InvestmentStore = (*InvestmentStore)(nil)

const investmentColumns = `
	id, profile_id, vault_address, name, type,
	amount_invested, apr, status, created_at, updated_at`

// UpsertDeposit merges a deposit intent into the open investment for seed's
// (profile, vault) pair, or inserts seed as a new row.
func (s *InvestmentStore) UpsertDeposit(ctx context.Context, seed *domain.Investment) (*domain.Investment, bool, error) {
	if seed == nil || seed.ID == "" || seed.ProfileID == "" || seed.VaultAddress == "" {
		return nil, false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO investments (
			id, profile_id, vault_address, name, type,
			amount_invested, apr, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (profile_id, vault_address) WHERE status IN ('PENDING', 'ACTIVE')
		DO UPDATE SET
			amount_invested = investments.amount_invested + EXCLUDED.amount_invested,
			apr             = EXCLUDED.apr,
			status          = 'PENDING',
			updated_at      = EXCLUDED.updated_at
		RETURNING` + investmentColumns + `, (xmax <> 0) AS merged
	`

	row := s.pool.QueryRow(ctx, query,
		seed.ID, seed.ProfileID, seed.VaultAddress, seed.Name, seed.Type,
		seed.AmountInvested, seed.APR, seed.Status, seed.CreatedAt, seed.UpdatedAt,
	)

	var inv domain.Investment
	var merged bool
	if err := row.Scan(
		&inv.ID, &inv.ProfileID, &inv.VaultAddress, &inv.Name, &inv.Type,
		&inv.AmountInvested, &inv.APR, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
		&merged,
	); err != nil {
		if isDuplicateKeyError(err) {
			return nil, false, storage.ErrDuplicateKey
		}
		return nil, false, fmt.Errorf("upsert investment deposit: %w", err)
	}

	return &inv, merged, nil
}

// GetByID retrieves an investment by its ID. Returns ErrNotFound if not exists.
func (s *InvestmentStore) GetByID(ctx context.Context, id string) (*domain.Investment, error) {
	query := `SELECT` + investmentColumns + ` FROM investments WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	inv, err := scanInvestment(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get investment by id: %w", err)
	}
	return inv, nil
}

// GetByProfile retrieves all investments for a profile, most recent first.
func (s *InvestmentStore) GetByProfile(ctx context.Context, profileID string) ([]*domain.Investment, error) {
	query := `
		SELECT` + investmentColumns + `
		FROM investments
		WHERE profile_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("get investments by profile: %w", err)
	}
	defer rows.Close()

	return scanInvestments(rows)
}

// GetOpenByVault retrieves the most recent PENDING or ACTIVE investment for
// (profile, vault). Returns ErrNotFound if none is open.
func (s *InvestmentStore) GetOpenByVault(ctx context.Context, profileID, vaultAddress string) (*domain.Investment, error) {
	query := `
		SELECT` + investmentColumns + `
		FROM investments
		WHERE profile_id = $1 AND vault_address = $2 AND status IN ('PENDING', 'ACTIVE')
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, profileID, vaultAddress)
	inv, err := scanInvestment(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open investment: %w", err)
	}
	return inv, nil
}

// UpdateStatus sets the status and updated_at of an investment.
func (s *InvestmentStore) UpdateStatus(ctx context.Context, id string, status domain.InvestmentStatus, updatedAt int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE investments SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update investment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanInvestment scans a single row into an Investment.
func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	var inv domain.Investment
	err := row.Scan(
		&inv.ID, &inv.ProfileID, &inv.VaultAddress, &inv.Name, &inv.Type,
		&inv.AmountInvested, &inv.APR, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// scanInvestments scans multiple rows into a slice of Investment.
func scanInvestments(rows pgx.Rows) ([]*domain.Investment, error) {
	var result []*domain.Investment

	for rows.Next() {
		var inv domain.Investment
		err := rows.Scan(
			&inv.ID, &inv.ProfileID, &inv.VaultAddress, &inv.Name, &inv.Type,
			&inv.AmountInvested, &inv.APR, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan investment row: %w", err)
		}
		result = append(result, &inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investment rows: %w", err)
	}

	return result, nil
}
