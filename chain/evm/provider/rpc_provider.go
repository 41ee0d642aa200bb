package provider

import (
	"context"
	"errors"
	"fmt"

	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/chain/evm/provider/rpcclient"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

// RPCChainProviderConfig holds the configuration to initialize the RPCChainProvider.
type RPCChainProviderConfig struct {
	// Required: A generator for the deployer key. Use TransactorFromRaw for a private key, or
	// TransactorFromKMS for a KMS key.
	DeployerTransactorGen SignerGenerator
	// Required: At least one RPC must be provided to connect to the EVM node.
	RPCs []rpcclient.RPC
	// Required: If in doubt, use ConfirmFuncGeth.
	ConfirmFunctor ConfirmFunctor
	// Optional: options applied to the underlying MultiClient.
	ClientOpts []func(client *rpcclient.MultiClient)
	// Optional: a production logger is created when nil.
	Logger logger.Logger
}

func (c RPCChainProviderConfig) validate() error {
	if c.DeployerTransactorGen == nil {
		return errors.New("deployer transactor generator is required")
	}
	if c.ConfirmFunctor == nil {
		return errors.New("confirm functor is required")
	}
	if len(c.RPCs) == 0 {
		return errors.New("at least one RPC is required")
	}

	return nil
}

// RPCChainProvider connects to an EVM network over JSON-RPC. The chain ID is read from the node.
type RPCChainProvider struct {
	network string
	config  RPCChainProviderConfig

	chain *evm.Chain
}

func NewRPCChainProvider(network string, config RPCChainProviderConfig) *RPCChainProvider {
	return &RPCChainProvider{
		network: network,
		config:  config,
	}
}

// Initialize dials the network and builds the chain. Later calls return the same chain.
func (p *RPCChainProvider) Initialize(ctx context.Context) (evm.Chain, error) {
	if p.chain != nil {
		return *p.chain, nil
	}

	if p.config.Logger == nil {
		lggr, err := logger.New()
		if err != nil {
			return evm.Chain{}, fmt.Errorf("failed to create default logger: %w", err)
		}
		p.config.Logger = lggr
	}

	if err := p.config.validate(); err != nil {
		return evm.Chain{}, fmt.Errorf("failed to validate provider config: %w", err)
	}

	client, err := rpcclient.NewMultiClient(p.config.Logger, rpcclient.RPCConfig{
		Network: p.network,
		RPCs:    p.config.RPCs,
	}, p.config.ClientOpts...)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to create multi-client: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to get chain ID of %s: %w", p.network, err)
	}

	var selector uint64
	details, err := chainsel.GetChainDetailsByChainIDAndFamily(chainID.String(), chainsel.FamilyEVM)
	if err != nil {
		p.config.Logger.Debugw("Chain ID is not registered in chain-selectors", "network", p.network, "chainID", chainID)
	} else {
		selector = details.ChainSelector
	}

	deployerKey, err := p.config.DeployerTransactorGen.Generate(chainID)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to generate deployer key: %w", err)
	}

	confirmFunc, err := p.config.ConfirmFunctor.Generate(ctx, p.network, client, deployerKey.From)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to generate confirm function: %w", err)
	}

	p.chain = &evm.Chain{
		Network:     p.network,
		ChainID:     chainID,
		Selector:    selector,
		Client:      client,
		DeployerKey: deployerKey,
		Confirm:     confirmFunc,
	}

	return *p.chain, nil
}

func (*RPCChainProvider) Name() string {
	return "EVM RPC Chain Provider"
}
