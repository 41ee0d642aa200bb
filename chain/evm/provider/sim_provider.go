package provider

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
)

var (
	// simChainID is the chain ID of every simulated chain.
	simChainID = params.AllDevChainProtocolChanges.ChainID
	// prefundAmountWei is 1,000,000 ether.
	prefundAmountWei = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))
)

// SimChainProvider manages an in-memory chain backed by go-ethereum's simulated backend. Blocks
// are mined when a transaction is confirmed.
type SimChainProvider struct {
	t       *testing.T
	network string

	chain  *evm.Chain
	client *SimClient
}

func NewSimChainProvider(t *testing.T, network string) *SimChainProvider {
	t.Helper()

	return &SimChainProvider{t: t, network: network}
}

// Initialize creates the backend with a prefunded deployer account.
func (p *SimChainProvider) Initialize(_ context.Context) (evm.Chain, error) {
	if p.chain != nil {
		return *p.chain, nil
	}

	key, err := crypto.GenerateKey()
	require.NoError(p.t, err, "failed to generate deployer key")

	deployer, err := bind.NewKeyedTransactorWithChainID(key, simChainID)
	require.NoError(p.t, err)

	backend := simulated.NewBackend(types.GenesisAlloc{
		deployer.From: {Balance: prefundAmountWei},
	}, simulated.WithBlockGasLimit(50_000_000))
	p.t.Cleanup(func() { _ = backend.Close() })
	backend.Commit()

	client := NewSimClient(p.t, backend)
	p.client = client

	p.chain = &evm.Chain{
		Network:     p.network,
		ChainID:     simChainID,
		Client:      client,
		DeployerKey: deployer,
		Confirm: func(tx *types.Transaction) (*types.Receipt, error) {
			if tx == nil {
				return nil, fmt.Errorf("tx was nil, nothing to confirm on %s", p.network)
			}

			client.Commit()

			ctx, cancel := context.WithTimeout(p.t.Context(), 1*time.Minute)
			defer cancel()

			receipt, err := bind.WaitMined(ctx, client, tx)
			if err != nil {
				return nil, fmt.Errorf("tx %s failed to confirm on %s: %w", tx.Hash().Hex(), p.network, err)
			}
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, revertError(ctx, client, deployer.From, tx, receipt, p.network)
			}

			return receipt, nil
		},
	}

	return *p.chain, nil
}

// Client returns the simulated client. Initialize must be called first.
func (p *SimChainProvider) Client() *SimClient {
	return p.client
}

func (*SimChainProvider) Name() string {
	return "Simulated EVM Chain Provider"
}
