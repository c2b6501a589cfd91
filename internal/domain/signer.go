package domain

import (
	"fmt"
	"strings"
)

// SignerContext identifies the connected wallet a deposit is submitted
// through. It is passed explicitly into the orchestrator per call; there is
// no process-wide wallet state.
type SignerContext struct {
	Address string // signer account address, hex
	ChainID int64
}

// Validate checks the signer context is usable for submission.
func (s SignerContext) Validate() error {
	if !IsHexAddress(s.Address) {
		return fmt.Errorf("invalid signer address %q", s.Address)
	}
	if s.ChainID <= 0 {
		return fmt.Errorf("invalid chain id %d", s.ChainID)
	}
	return nil
}

// IsHexAddress reports whether s is a well-formed 0x-prefixed 20-byte address.
func IsHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
