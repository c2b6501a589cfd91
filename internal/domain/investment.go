package domain

import "github.com/shopspring/decimal"

// InvestmentType classifies how a position earns yield.
type InvestmentType string

const (
	InvestmentTypeVault   InvestmentType = "VAULT_BACKED"
	InvestmentTypeSavings InvestmentType = "SAVINGS"
)

// InvestmentStatus values. An investment starts PENDING, moves to ACTIVE on
// successful submission, and returns to PENDING when an additive deposit is
// merged in. FAILED is terminal for a given row; a fresh deposit intent
// creates a new row.
type InvestmentStatus string

const (
	InvestmentStatusPending InvestmentStatus = "PENDING"
	InvestmentStatusActive  InvestmentStatus = "ACTIVE"
	InvestmentStatusFailed  InvestmentStatus = "FAILED"
)

// Open reports whether the status counts against the one-open-investment-per
// (profile, vault) invariant.
func (s InvestmentStatus) Open() bool {
	return s == InvestmentStatusPending || s == InvestmentStatusActive
}

// Investment represents a user's position in one vault.
// Corresponds to the investments table.
type Investment struct {
	ID             string // PRIMARY KEY, uuid
	ProfileID      string
	VaultAddress   string // vault contract address, lowercase hex
	Name           string
	Type           InvestmentType
	AmountInvested decimal.Decimal // monotonic non-decreasing while open
	APR            decimal.Decimal // snapshot at creation/last extension
	Status         InvestmentStatus
	CreatedAt      int64 // Unix timestamp in milliseconds
	UpdatedAt      int64
}
