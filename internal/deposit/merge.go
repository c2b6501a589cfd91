package deposit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stablevault/internal/domain"
	"stablevault/internal/observability"
	"stablevault/internal/storage"
)

// MergeResolver maps a deposit intent onto the investments ledger: an open
// investment for the (profile, vault) pair absorbs the deposit, otherwise a
// fresh row is created. The merge-or-create decision and the write happen in
// one atomic store operation, so two concurrent deposits for the same pair
// can never both create a row.
type MergeResolver struct {
	investments storage.InvestmentStore
	logger      zerolog.Logger
}

// NewMergeResolver creates a new MergeResolver.
func NewMergeResolver(investments storage.InvestmentStore, logger zerolog.Logger) *MergeResolver {
	return &MergeResolver{
		investments: investments,
		logger:      logger.With().Str("component", "merge").Logger(),
	}
}

// Resolve merges req into the ledger at time now (Unix ms) and returns the
// resulting investment row plus whether an existing open row absorbed it.
func (m *MergeResolver) Resolve(ctx context.Context, req DepositRequest, now int64) (*domain.Investment, bool, error) {
	seed := &domain.Investment{
		ID:             uuid.NewString(),
		ProfileID:      req.ProfileID,
		VaultAddress:   req.VaultAddress,
		Name:           req.Name,
		Type:           req.Type,
		AmountInvested: req.Amount,
		APR:            req.APR,
		Status:         domain.InvestmentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	inv, merged, err := m.investments.UpsertDeposit(ctx, seed)
	if err != nil {
		return nil, false, fmt.Errorf("upsert investment: %w", err)
	}
	observability.RecordInvestmentUpsert(merged)

	if merged {
		m.logger.Info().
			Str("investment_id", inv.ID).
			Str("profile_id", inv.ProfileID).
			Str("vault", inv.VaultAddress).
			Str("amount_invested", inv.AmountInvested.String()).
			Msg("merged additive deposit into open investment")
	} else {
		m.logger.Info().
			Str("investment_id", inv.ID).
			Str("profile_id", inv.ProfileID).
			Str("vault", inv.VaultAddress).
			Msg("created new investment")
	}
	return inv, merged, nil
}
