package memory

import (
	"context"
	"sort"
	"sync"

	"stablevault/internal/domain"
	"stablevault/internal/storage"
)

// MovementStore is an in-memory implementation of storage.MovementStore.
type MovementStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Movement // keyed by id
}

// NewMovementStore creates a new in-memory movement store.
func NewMovementStore() *MovementStore {
	return &MovementStore{
		data: make(map[string]*domain.Movement),
	}
}

var _ storage.MovementStore = (*MovementStore)(nil)

// Insert adds a new movement. Returns ErrDuplicateKey if id exists.
func (s *MovementStore) Insert(_ context.Context, m *domain.Movement) error {
	if m == nil || m.ID == "" || m.InvestmentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.ID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *m
	s.data[m.ID] = &cp
	return nil
}

// GetByID retrieves a movement by its ID. Returns ErrNotFound if not exists.
func (s *MovementStore) GetByID(_ context.Context, id string) (*domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *m
	return &cp, nil
}

// GetByInvestment retrieves all movements for an investment, most recent first.
func (s *MovementStore) GetByInvestment(_ context.Context, investmentID string) ([]*domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Movement
	for _, m := range s.data {
		if m.InvestmentID == investmentID {
			cp := *m
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	return result, nil
}

// GetPendingOlderThan retrieves PENDING movements created at or before cutoff,
// oldest first.
func (s *MovementStore) GetPendingOlderThan(_ context.Context, cutoff int64) ([]*domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Movement
	for _, m := range s.data {
		if m.Status == domain.MovementStatusPending && m.CreatedAt <= cutoff {
			cp := *m
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// CompleteTerminal writes tx_hash, status and updated_at, conditional on the
// movement still being PENDING.
func (s *MovementStore) CompleteTerminal(_ context.Context, id, txHash string, status domain.MovementStatus, updatedAt int64) error {
	if !status.Terminal() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if m.Status.Terminal() {
		return storage.ErrTerminalStatus
	}

	m.TxHash = txHash
	m.Status = status
	m.UpdatedAt = updatedAt
	return nil
}
