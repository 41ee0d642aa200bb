package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
)

// ConfirmFunctor creates the confirmation function of a chain.
type ConfirmFunctor interface {
	Generate(ctx context.Context, network string, client evm.OnchainClient, from common.Address) (evm.ConfirmFunc, error)
}

// ConfirmFuncGeth returns a ConfirmFunctor that polls the client for the receipt.
func ConfirmFuncGeth(waitMinedTimeout time.Duration, opts ...func(*confirmFuncGeth)) ConfirmFunctor {
	cf := &confirmFuncGeth{
		tickInterval:     1 * time.Second, // same as the hardcoded interval of bind.WaitMined
		waitMinedTimeout: waitMinedTimeout,
	}
	for _, o := range opts {
		o(cf)
	}

	return cf
}

func WithTickInterval(interval time.Duration) func(*confirmFuncGeth) {
	return func(o *confirmFuncGeth) {
		o.tickInterval = interval
	}
}

type confirmFuncGeth struct {
	tickInterval     time.Duration
	waitMinedTimeout time.Duration
}

func (g *confirmFuncGeth) Generate(
	ctx context.Context, network string, client evm.OnchainClient, from common.Address,
) (evm.ConfirmFunc, error) {
	return func(tx *types.Transaction) (*types.Receipt, error) {
		if tx == nil {
			return nil, fmt.Errorf("tx was nil, nothing to confirm on %s", network)
		}

		ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
		defer cancel()

		receipt, err := WaitMinedWithInterval(ctxTimeout, g.tickInterval, client, tx.Hash())
		if err != nil {
			return nil, fmt.Errorf("tx %s failed to confirm on %s: %w", tx.Hash().Hex(), network, err)
		}
		if receipt == nil {
			return nil, fmt.Errorf("receipt was nil for tx %s on %s", tx.Hash().Hex(), network)
		}

		if receipt.Status == types.ReceiptStatusFailed {
			return receipt, revertError(ctxTimeout, client, from, tx, receipt, network)
		}

		return receipt, nil
	}, nil
}

func revertError(
	ctx context.Context, caller ContractCaller, from common.Address, tx *types.Transaction, receipt *types.Receipt, network string,
) error {
	reason, err := getErrorReasonFromTx(ctx, caller, from, tx, receipt)
	if err == nil && reason != "" {
		return fmt.Errorf("tx %s reverted on %s: %s", tx.Hash().Hex(), network, reason)
	}

	return fmt.Errorf("tx %s reverted on %s, could not decode error reason", tx.Hash().Hex(), network)
}

// WaitMinedWithInterval polls for a receipt every tick. It is faster than bind.WaitMined on
// networks with instant blocks.
func WaitMinedWithInterval(ctx context.Context, tick time.Duration, b bind.DeployBackend, txHash common.Hash) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-queryTicker.C:
		}
	}
}
