package deposit

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"stablevault/internal/chain"
	"stablevault/internal/domain"
	"stablevault/internal/observability"
)

const (
	// How long the sequential path waits for the approval transaction to land
	// before giving up on the whole submission.
	defaultApprovalWait = 2 * time.Minute

	defaultApprovalPollInterval = 3 * time.Second
)

// StrategySelector submits an approve+deposit pair, preferring one atomic
// EIP-5792 batch and falling back to sequential single transactions when the
// wallet's provider does not support batching.
type StrategySelector struct {
	gateway   chain.Gateway
	allowance *AllowanceInspector
	logger    zerolog.Logger

	approvalWait         time.Duration
	approvalPollInterval time.Duration
}

// StrategyOptions configures a StrategySelector.
type StrategyOptions struct {
	Gateway   chain.Gateway
	Allowance *AllowanceInspector
	Logger    zerolog.Logger

	// ApprovalWait bounds how long the sequential path blocks on the approval
	// receipt. Zero means the default of 2 minutes.
	ApprovalWait time.Duration

	// ApprovalPollInterval is the receipt polling cadence. Zero means the
	// default of 3 seconds.
	ApprovalPollInterval time.Duration
}

// NewStrategySelector creates a new StrategySelector.
func NewStrategySelector(opts StrategyOptions) *StrategySelector {
	wait := opts.ApprovalWait
	if wait <= 0 {
		wait = defaultApprovalWait
	}
	interval := opts.ApprovalPollInterval
	if interval <= 0 {
		interval = defaultApprovalPollInterval
	}
	return &StrategySelector{
		gateway:              opts.Gateway,
		allowance:            opts.Allowance,
		logger:               opts.Logger.With().Str("component", "strategy").Logger(),
		approvalWait:         wait,
		approvalPollInterval: interval,
	}
}

// Submit pushes the approve+deposit pair for amount base units of token into
// vault on behalf of signer. The batch path is always attempted first; any
// batch failure triggers the sequential fallback. An error means both paths
// failed and nothing further should be recorded against the chain.
func (s *StrategySelector) Submit(ctx context.Context, signer domain.SignerContext, token domain.Token, vault string, amount *big.Int) (domain.SubmissionResult, error) {
	approve, err := chain.ApproveCall(token.Address, vault, amount)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("encode approve call: %w", err)
	}
	deposit, err := chain.DepositCall(vault, amount, signer.Address)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("encode deposit call: %w", err)
	}

	batchID, batchErr := s.gateway.SendCalls(ctx, signer.Address, signer.ChainID, []chain.Call{approve, deposit})
	if batchErr == nil {
		s.logger.Info().
			Str("batch_id", batchID).
			Str("vault", vault).
			Msg("submitted atomic call batch")
		observability.RecordSubmission(string(domain.SubmissionPathBatch))
		return domain.SubmissionResult{Path: domain.SubmissionPathBatch, BatchID: batchID}, nil
	}

	s.logger.Warn().Err(batchErr).
		Str("vault", vault).
		Msg("batch submission failed, falling back to sequential")
	observability.RecordBatchFallback()

	txHash, err := s.submitSequential(ctx, signer, token, vault, approve, deposit, amount)
	if err != nil {
		observability.RecordSubmissionFailure()
		return domain.SubmissionResult{}, fmt.Errorf("sequential fallback after batch failure (%v): %w", batchErr, err)
	}
	observability.RecordSubmission(string(domain.SubmissionPathSequential))
	return domain.SubmissionResult{Path: domain.SubmissionPathSequential, TxHash: txHash}, nil
}

// submitSequential runs the one-by-one path: approve first if the current
// allowance does not cover amount, block until the approval lands, then
// submit the deposit. The deposit call never goes out before the approval is
// confirmed on-chain.
func (s *StrategySelector) submitSequential(ctx context.Context, signer domain.SignerContext, token domain.Token, vault string, approve, deposit chain.Call, amount *big.Int) (string, error) {
	if s.allowance.NeedsApproval(ctx, token.Address, signer.Address, vault, amount) {
		observability.RecordApproval(true)
		approveHash, err := s.gateway.SendTransaction(ctx, signer.Address, approve)
		if err != nil {
			return "", fmt.Errorf("submit approval: %w", err)
		}
		s.logger.Info().
			Str("tx_hash", approveHash).
			Str("vault", vault).
			Msg("submitted approval, waiting for confirmation")
		if err := s.awaitApproval(ctx, approveHash); err != nil {
			return "", err
		}
	} else {
		observability.RecordApproval(false)
		s.logger.Info().
			Str("vault", vault).
			Msg("existing allowance sufficient, skipping approval")
	}

	depositHash, err := s.gateway.SendTransaction(ctx, signer.Address, deposit)
	if err != nil {
		return "", fmt.Errorf("submit deposit: %w", err)
	}
	s.logger.Info().
		Str("tx_hash", depositHash).
		Str("vault", vault).
		Msg("submitted sequential deposit")
	return depositHash, nil
}

// awaitApproval polls for the approval receipt until it lands, reverts, or
// the wait budget runs out.
func (s *StrategySelector) awaitApproval(ctx context.Context, txHash string) error {
	deadline := time.Now().Add(s.approvalWait)
	for {
		receipt, err := s.gateway.TransactionReceipt(ctx, txHash)
		if err != nil {
			return fmt.Errorf("poll approval receipt: %w", err)
		}
		if receipt != nil {
			if !receipt.Success {
				return fmt.Errorf("approval %s reverted on-chain", txHash)
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("approval %s not confirmed within %s", txHash, s.approvalWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.approvalPollInterval):
		}
	}
}
