package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	chainsel "github.com/smartcontractkit/chain-selectors"
)

// ConfirmFunc waits for a transaction to be mined and returns its receipt. A reverted transaction
// is reported as an error.
type ConfirmFunc func(tx *types.Transaction) (*types.Receipt, error)

// OnchainClient is an EVM chain client.
// For EVM specifically we can use existing geth interface to abstract chain clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Chain is a connected EVM network together with the key that deploys to it.
type Chain struct {
	// Network is the name the chain was resolved from, e.g. "sepolia" or "hardhat".
	Network string
	ChainID *big.Int
	// Selector is zero for chains unknown to chain-selectors, such as forks with custom IDs.
	Selector uint64

	Client OnchainClient
	// Note the Sign function can be abstract supporting a variety of key storage mechanisms (e.g. KMS etc).
	DeployerKey *bind.TransactOpts
	Confirm     ConfirmFunc
}

// ChainSelector returns the chain selector of the chain
func (c Chain) ChainSelector() uint64 {
	return c.Selector
}

// Name returns the chain-selectors name of the chain, or the network name when the chain ID is
// not registered there.
func (c Chain) Name() string {
	if c.Selector != 0 {
		if info, ok := chainsel.ChainBySelector(c.Selector); ok && info.Name != "" {
			return info.Name
		}
	}

	return c.Network
}

// String returns "<network> (<chain id>)".
func (c Chain) String() string {
	id := "?"
	if c.ChainID != nil {
		id = c.ChainID.String()
	}

	return fmt.Sprintf("%s (%s)", c.Network, id)
}

// Deployer returns the address transactions are sent from.
func (c Chain) Deployer() common.Address {
	if c.DeployerKey == nil {
		return common.Address{}
	}

	return c.DeployerKey.From
}
