package deposit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stablevault/internal/domain"
	"stablevault/internal/observability"
	"stablevault/internal/storage"
)

// Orchestrator is the public entry point of the deposit flow. It composes
// the merge resolver, the submission strategy and the confirmation poller,
// and returns to the caller as soon as the on-chain submission succeeds;
// confirmation proceeds in the background against the movements ledger.
type Orchestrator struct {
	investments storage.InvestmentStore
	movements   storage.MovementStore
	merger      *MergeResolver
	strategy    *StrategySelector
	poller      *ConfirmationPoller
	token       domain.Token
	logger      zerolog.Logger
}

// Options configures an Orchestrator.
type Options struct {
	InvestmentStore storage.InvestmentStore
	MovementStore   storage.MovementStore
	Merger          *MergeResolver
	Strategy        *StrategySelector
	Poller          *ConfirmationPoller

	// Token is the stablecoin all deposits are denominated in.
	Token domain.Token

	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		investments: opts.InvestmentStore,
		movements:   opts.MovementStore,
		merger:      opts.Merger,
		strategy:    opts.Strategy,
		poller:      opts.Poller,
		token:       opts.Token,
		logger:      opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// DepositRequest is one user deposit intent.
type DepositRequest struct {
	ProfileID    string
	VaultAddress string
	Name         string
	Type         domain.InvestmentType
	Amount       decimal.Decimal
	APR          decimal.Decimal
}

// Validate checks the request fields the orchestrator depends on.
func (r DepositRequest) Validate() error {
	if r.ProfileID == "" {
		return fmt.Errorf("profile id is required")
	}
	if !domain.IsHexAddress(r.VaultAddress) {
		return fmt.Errorf("invalid vault address %q", r.VaultAddress)
	}
	if r.Amount.Sign() <= 0 {
		return fmt.Errorf("amount %s must be positive", r.Amount)
	}
	if r.Type == "" {
		return fmt.Errorf("investment type is required")
	}
	return nil
}

// DepositResult is the optimistic acknowledgment returned to the caller
// while confirmation is still pending.
type DepositResult struct {
	InvestmentID  string
	MovementID    string
	TxRef         string
	Path          domain.SubmissionPath
	InitialStatus domain.MovementStatus
	Merged        bool
}

// Deposit runs one deposit intent end to end: merge into the investments
// ledger, submit approve+deposit on-chain, record the pending movement and
// hand it to the confirmation poller. It returns as soon as the submission
// succeeds; the caller observes confirmation through the movement.
//
// Ledger write failures after a successful submission are logged, not
// surfaced: the on-chain effect is real and irreversible, and telling the
// user their deposit failed would be wrong.
func (o *Orchestrator) Deposit(ctx context.Context, signer domain.SignerContext, req DepositRequest) (*DepositResult, error) {
	if err := signer.Validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	amountBase, err := o.token.BaseUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	inv, merged, err := o.merger.Resolve(ctx, req, now)
	if err != nil {
		return nil, err
	}

	sub, err := o.strategy.Submit(ctx, signer, o.token, req.VaultAddress, amountBase)
	if err != nil {
		o.failInvestment(ctx, inv.ID)
		return nil, fmt.Errorf("submit deposit: %w", err)
	}

	movement := &domain.Movement{
		ID:           uuid.NewString(),
		InvestmentID: inv.ID,
		ProfileID:    req.ProfileID,
		Type:         domain.MovementTypeDeposit,
		Amount:       req.Amount,
		Token:        o.token.Symbol,
		TxHash:       sub.TxRef(),
		Chain:        o.token.Chain,
		Status:       domain.MovementStatusPending,
		Metadata: domain.MovementMetadata{
			VaultAddress:      req.VaultAddress,
			AdditionalDeposit: merged,
			InvestmentType:    req.Type,
			SubmissionPath:    sub.Path,
		},
		CreatedAt: nowMillis(),
		UpdatedAt: nowMillis(),
	}
	if err := o.movements.Insert(ctx, movement); err != nil {
		o.logger.Error().Err(err).
			Str("investment_id", inv.ID).
			Str("tx_ref", sub.TxRef()).
			Msg("failed to record movement after successful submission")
		observability.RecordLedgerWriteError("movement")
	}

	if err := o.investments.UpdateStatus(ctx, inv.ID, domain.InvestmentStatusActive, nowMillis()); err != nil {
		o.logger.Error().Err(err).
			Str("investment_id", inv.ID).
			Msg("failed to activate investment after successful submission")
		observability.RecordLedgerWriteError("investment")
	}

	o.poller.Watch(sub, movement.ID)

	o.logger.Info().
		Str("investment_id", inv.ID).
		Str("movement_id", movement.ID).
		Str("path", string(sub.Path)).
		Str("tx_ref", sub.TxRef()).
		Bool("merged", merged).
		Msg("deposit submitted")

	return &DepositResult{
		InvestmentID:  inv.ID,
		MovementID:    movement.ID,
		TxRef:         sub.TxRef(),
		Path:          sub.Path,
		InitialStatus: domain.MovementStatusPending,
		Merged:        merged,
	}, nil
}

// MovementStatus is the read-only status lookup the client polls after the
// optimistic Deposit return.
func (o *Orchestrator) MovementStatus(ctx context.Context, movementID string) (*domain.Movement, error) {
	return o.movements.GetByID(ctx, movementID)
}

// failInvestment marks the investment FAILED after the submission itself
// failed. Best effort only: failure to record the failure is swallowed.
func (o *Orchestrator) failInvestment(ctx context.Context, id string) {
	if err := o.investments.UpdateStatus(ctx, id, domain.InvestmentStatusFailed, nowMillis()); err != nil {
		o.logger.Error().Err(err).
			Str("investment_id", id).
			Msg("failed to mark investment failed")
		observability.RecordLedgerWriteError("investment")
	}
}
