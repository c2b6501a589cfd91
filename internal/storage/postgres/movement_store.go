package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stablevault/internal/domain"
	"stablevault/internal/storage"
)

// MovementStore implements storage.MovementStore using PostgreSQL.
type MovementStore struct {
	pool *Pool
}

// NewMovementStore creates a new MovementStore.
func NewMovementStore(pool *Pool) *MovementStore {
	return &MovementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MovementStore = (*MovementStore)(nil)

const movementColumns = `
	id, investment_id, profile_id, type, amount, token,
	tx_hash, chain, status, metadata, created_at, updated_at`

// Insert adds a new movement. Returns ErrDuplicateKey if id exists.
func (s *MovementStore) Insert(ctx context.Context, m *domain.Movement) error {
	if m == nil || m.ID == "" || m.InvestmentID == "" {
		return storage.ErrInvalidInput
	}

	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal movement metadata: %w", err)
	}

	query := `
		INSERT INTO movements (
			id, investment_id, profile_id, type, amount, token,
			tx_hash, chain, status, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		m.ID, m.InvestmentID, m.ProfileID, m.Type, m.Amount, m.Token,
		m.TxHash, m.Chain, m.Status, meta, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// GetByID retrieves a movement by its ID. Returns ErrNotFound if not exists.
func (s *MovementStore) GetByID(ctx context.Context, id string) (*domain.Movement, error) {
	query := `SELECT` + movementColumns + ` FROM movements WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	m, err := scanMovement(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get movement by id: %w", err)
	}
	return m, nil
}

// GetByInvestment retrieves all movements for an investment, most recent first.
func (s *MovementStore) GetByInvestment(ctx context.Context, investmentID string) ([]*domain.Movement, error) {
	query := `
		SELECT` + movementColumns + `
		FROM movements
		WHERE investment_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, investmentID)
	if err != nil {
		return nil, fmt.Errorf("get movements by investment: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// GetPendingOlderThan retrieves PENDING movements created at or before cutoff,
// oldest first.
func (s *MovementStore) GetPendingOlderThan(ctx context.Context, cutoff int64) ([]*domain.Movement, error) {
	query := `
		SELECT` + movementColumns + `
		FROM movements
		WHERE status = 'PENDING' AND created_at <= $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get pending movements: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// CompleteTerminal writes tx_hash, status and updated_at, conditional on the
// movement still being PENDING.
func (s *MovementStore) CompleteTerminal(ctx context.Context, id, txHash string, status domain.MovementStatus, updatedAt int64) error {
	if !status.Terminal() {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE movements
		SET tx_hash = $2, status = $3, updated_at = $4
		WHERE id = $1 AND status = 'PENDING'
	`, id, txHash, status, updatedAt)
	if err != nil {
		return fmt.Errorf("complete movement: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish missing from already-terminal.
	var current domain.MovementStatus
	err = s.pool.QueryRow(ctx, `SELECT status FROM movements WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check movement status: %w", err)
	}
	return storage.ErrTerminalStatus
}

// scanMovement scans a single row into a Movement.
func scanMovement(row pgx.Row) (*domain.Movement, error) {
	var m domain.Movement
	var meta []byte

	err := row.Scan(
		&m.ID, &m.InvestmentID, &m.ProfileID, &m.Type, &m.Amount, &m.Token,
		&m.TxHash, &m.Chain, &m.Status, &meta, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal movement metadata: %w", err)
		}
	}

	return &m, nil
}

// scanMovements scans multiple rows into a slice of Movement.
func scanMovements(rows pgx.Rows) ([]*domain.Movement, error) {
	var result []*domain.Movement

	for rows.Next() {
		var m domain.Movement
		var meta []byte

		err := rows.Scan(
			&m.ID, &m.InvestmentID, &m.ProfileID, &m.Type, &m.Amount, &m.Token,
			&m.TxHash, &m.Chain, &m.Status, &meta, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan movement row: %w", err)
		}

		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal movement metadata: %w", err)
			}
		}

		result = append(result, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement rows: %w", err)
	}

	return result, nil
}
