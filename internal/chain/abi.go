package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// 4-byte function selectors for the ERC-20 and ERC-4626 calls the deposit
// flow issues.
var (
	selectorApprove   = []byte{0x09, 0x5e, 0xa7, 0xb3} // approve(address,uint256)
	selectorAllowance = []byte{0xdd, 0x62, 0xed, 0x3e} // allowance(address,address)
	selectorDeposit   = []byte{0x6e, 0x55, 0x3f, 0x65} // deposit(uint256,address)
)

// ApproveCall encodes approve(spender, amount) against the token contract.
func ApproveCall(token, spender string, amount *big.Int) (Call, error) {
	spenderWord, err := addressWord(spender)
	if err != nil {
		return Call{}, err
	}
	data := make([]byte, 0, 4+64)
	data = append(data, selectorApprove...)
	data = append(data, spenderWord...)
	data = append(data, uintWord(amount)...)
	return Call{To: token, Data: data}, nil
}

// DepositCall encodes the ERC-4626 deposit(assets, receiver) against the
// vault contract.
func DepositCall(vault string, assets *big.Int, receiver string) (Call, error) {
	receiverWord, err := addressWord(receiver)
	if err != nil {
		return Call{}, err
	}
	data := make([]byte, 0, 4+64)
	data = append(data, selectorDeposit...)
	data = append(data, uintWord(assets)...)
	data = append(data, receiverWord...)
	return Call{To: vault, Data: data}, nil
}

// allowanceData encodes the calldata for allowance(owner, spender).
func allowanceData(owner, spender string) ([]byte, error) {
	ownerWord, err := addressWord(owner)
	if err != nil {
		return nil, err
	}
	spenderWord, err := addressWord(spender)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, 4+64)
	data = append(data, selectorAllowance...)
	data = append(data, ownerWord...)
	data = append(data, spenderWord...)
	return data, nil
}

// addressWord decodes a hex address into a left-padded 32-byte ABI word.
func addressWord(addr string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(addr), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(raw) != 20 {
		return nil, fmt.Errorf("address %q is %d bytes, want 20", addr, len(raw))
	}
	word := make([]byte, 32)
	copy(word[12:], raw)
	return word, nil
}

// uintWord encodes a non-negative integer into a left-padded 32-byte ABI word.
func uintWord(n *big.Int) []byte {
	word := make([]byte, 32)
	if n != nil {
		n.FillBytes(word)
	}
	return word
}
