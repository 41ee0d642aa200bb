package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress parses a hex address with or without the 0x prefix. The zero address is rejected.
func ParseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid EVM address format: %q", address)
	}

	addr := common.HexToAddress(address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address is not allowed: %q", address)
	}

	return addr, nil
}
