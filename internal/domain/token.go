package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Token describes the stablecoin deposits are denominated in.
type Token struct {
	Symbol   string
	Address  string // token contract address, hex
	Decimals int32  // fixed decimal count, e.g. 6 for USDC
	Chain    string // chain name used in movement records, e.g. "base"
}

// BaseUnits converts a user-facing decimal amount to the token's integer
// smallest-unit representation. Amounts with more fractional digits than the
// token carries are rejected rather than rounded.
func (t Token) BaseUnits(amount decimal.Decimal) (*big.Int, error) {
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %s is negative", amount)
	}
	shifted := amount.Shift(t.Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s exceeds %s precision of %d decimals", amount, t.Symbol, t.Decimals)
	}
	return shifted.BigInt(), nil
}

// ParseAmount parses a user-facing amount string, requiring a positive value.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", s)
	}
	return d, nil
}
