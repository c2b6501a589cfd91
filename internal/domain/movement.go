package domain

import "github.com/shopspring/decimal"

// MovementType classifies a ledger event against an investment.
type MovementType string

const (
	MovementTypeDeposit    MovementType = "DEPOSIT"
	MovementTypeWithdrawal MovementType = "WITHDRAWAL"
	MovementTypeReward     MovementType = "REWARD"
	MovementTypeFee        MovementType = "FEE"
)

// MovementStatus values. CONFIRMED and FAILED are terminal: once a movement
// reaches either, neither its status nor its tx_hash may be rewritten.
type MovementStatus string

const (
	MovementStatusPending   MovementStatus = "PENDING"
	MovementStatusConfirmed MovementStatus = "CONFIRMED"
	MovementStatusFailed    MovementStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s MovementStatus) Terminal() bool {
	return s == MovementStatusConfirmed || s == MovementStatusFailed
}

// MovementMetadata carries the deposit context the UI and the reconciler need
// when reading a movement back. Stored as JSONB.
type MovementMetadata struct {
	VaultAddress      string         `json:"vault_address"`
	AdditionalDeposit bool           `json:"additional_deposit"`
	InvestmentType    InvestmentType `json:"investment_type"`
	SubmissionPath    SubmissionPath `json:"submission_path"`
}

// Movement represents one discrete ledger event against an investment.
// Corresponds to the movements table.
//
// TxHash initially holds whatever reference the submission produced: a final
// transaction hash on the sequential path, or a batch identifier on the batch
// path. A batch identifier is rewritten to the receipt's transaction hash
// exactly once, in the same write that makes the status terminal.
type Movement struct {
	ID           string // PRIMARY KEY, uuid
	InvestmentID string
	ProfileID    string // denormalized for fast lookup
	Type         MovementType
	Amount       decimal.Decimal
	Token        string // token symbol, e.g. USDC
	TxHash       string
	Chain        string
	Status       MovementStatus
	Metadata     MovementMetadata
	CreatedAt    int64 // Unix timestamp in milliseconds
	UpdatedAt    int64
}
