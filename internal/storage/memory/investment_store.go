package memory

import (
	"context"
	"sort"
	"sync"

	"stablevault/internal/domain"
	"stablevault/internal/storage"
)

// InvestmentStore is an in-memory implementation of storage.InvestmentStore.
// The merge in UpsertDeposit is serialized under the store mutex, which gives
// the same atomicity the Postgres implementation gets from its upsert.
type InvestmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Investment // keyed by id
}

// NewInvestmentStore creates a new in-memory investment store.
func NewInvestmentStore() *InvestmentStore {
	return &InvestmentStore{
		data: make(map[string]*domain.Investment),
	}
}

var _ storage.InvestmentStore = (*InvestmentStore)(nil)

// UpsertDeposit merges a deposit intent into the open investment for seed's
// (profile, vault) pair, or inserts seed as a new row.
func (s *InvestmentStore) UpsertDeposit(_ context.Context, seed *domain.Investment) (*domain.Investment, bool, error) {
	if seed == nil || seed.ID == "" || seed.ProfileID == "" || seed.VaultAddress == "" {
		return nil, false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if open := s.openLocked(seed.ProfileID, seed.VaultAddress); open != nil {
		open.AmountInvested = open.AmountInvested.Add(seed.AmountInvested)
		open.APR = seed.APR
		open.Status = domain.InvestmentStatusPending
		open.UpdatedAt = seed.UpdatedAt
		cp := *open
		return &cp, true, nil
	}

	if _, exists := s.data[seed.ID]; exists {
		return nil, false, storage.ErrDuplicateKey
	}

	cp := *seed
	s.data[seed.ID] = &cp
	out := cp
	return &out, false, nil
}

// GetByID retrieves an investment by its ID. Returns ErrNotFound if not exists.
func (s *InvestmentStore) GetByID(_ context.Context, id string) (*domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *inv
	return &cp, nil
}

// GetByProfile retrieves all investments for a profile, most recent first.
func (s *InvestmentStore) GetByProfile(_ context.Context, profileID string) ([]*domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Investment
	for _, inv := range s.data {
		if inv.ProfileID == profileID {
			cp := *inv
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	return result, nil
}

// GetOpenByVault retrieves the most recent PENDING or ACTIVE investment for
// (profile, vault). Returns ErrNotFound if none is open.
func (s *InvestmentStore) GetOpenByVault(_ context.Context, profileID, vaultAddress string) (*domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := s.openLocked(profileID, vaultAddress)
	if open == nil {
		return nil, storage.ErrNotFound
	}

	cp := *open
	return &cp, nil
}

// UpdateStatus sets the status and updated_at of an investment.
func (s *InvestmentStore) UpdateStatus(_ context.Context, id string, status domain.InvestmentStatus, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	inv.Status = status
	inv.UpdatedAt = updatedAt
	return nil
}

// openLocked returns the most recently created open investment for
// (profile, vault), or nil. Caller must hold the mutex.
func (s *InvestmentStore) openLocked(profileID, vaultAddress string) *domain.Investment {
	var open *domain.Investment
	for _, inv := range s.data {
		if inv.ProfileID != profileID || inv.VaultAddress != vaultAddress || !inv.Status.Open() {
			continue
		}
		if open == nil || inv.CreatedAt > open.CreatedAt {
			open = inv
		}
	}
	return open
}
