// Package deposit implements the investment deposit flow: merge-or-create
// ledger resolution, batch-or-sequential on-chain submission, and eventual
// confirmation of pending movements.
package deposit

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"stablevault/internal/chain"
)

// AllowanceInspector decides whether the sequential path needs an approval
// transaction before the deposit call.
type AllowanceInspector struct {
	gateway chain.Gateway
	logger  zerolog.Logger
}

// NewAllowanceInspector creates a new AllowanceInspector.
func NewAllowanceInspector(gateway chain.Gateway, logger zerolog.Logger) *AllowanceInspector {
	return &AllowanceInspector{
		gateway: gateway,
		logger:  logger.With().Str("component", "allowance").Logger(),
	}
}

// NeedsApproval reports whether the owner's current allowance to spender on
// token covers amount. A failed allowance query degrades to true: issuing a
// redundant approval is safe, skipping a required one is not.
func (a *AllowanceInspector) NeedsApproval(ctx context.Context, token, owner, spender string, amount *big.Int) bool {
	current, err := a.gateway.Allowance(ctx, token, owner, spender)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("token", token).
			Str("owner", owner).
			Msg("allowance query failed, assuming approval needed")
		return true
	}
	return current.Cmp(amount) < 0
}
