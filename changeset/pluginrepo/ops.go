package pluginrepo

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/operations"
)

type DeploySetupDeps struct {
	Chain evm.Chain
}

type DeploySetupInput struct {
	ContractName string `json:"contractName"`
	ArtifactPath string `json:"artifactPath"`
	// CodeHash pins the compiled bytecode, a recompiled contract is a new deployment.
	CodeHash common.Hash `json:"codeHash"`
}

type DeploySetupOutput struct {
	Address     common.Address `json:"address"`
	TxHash      common.Hash    `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
}

// DeploySetupOp deploys the plugin setup contract from its compiled artifact.
var DeploySetupOp = operations.NewOperation(
	"plugin-setup-deploy",
	semver.MustParse("1.0.0"),
	"Deploy the plugin setup contract",
	func(b operations.Bundle, deps DeploySetupDeps, in DeploySetupInput) (DeploySetupOutput, error) {
		artifact, err := osx.LoadArtifact(in.ArtifactPath)
		if err != nil {
			return DeploySetupOutput{}, operations.NewUnrecoverableError(err)
		}
		if got := artifact.CodeHash(); got != in.CodeHash {
			return DeploySetupOutput{}, operations.NewUnrecoverableError(
				fmt.Errorf("%w: %s has code hash %s, expected %s", ErrArtifactChanged, in.ArtifactPath, got.Hex(), in.CodeHash.Hex()))
		}

		res, err := artifact.Deploy(b.GetContext(), deps.Chain)
		if err != nil {
			return DeploySetupOutput{}, err
		}

		out := DeploySetupOutput{Address: res.Address, TxHash: res.Tx.Hash()}
		if res.Receipt != nil && res.Receipt.BlockNumber != nil {
			out.BlockNumber = res.Receipt.BlockNumber.Uint64()
		}
		b.Logger.Infof("Deployed %s on %s at %s (tx %s)", in.ContractName, deps.Chain, out.Address.Hex(), out.TxHash.Hex())

		return out, nil
	},
)

type CreateRepoDeps struct {
	Chain    evm.Chain
	Factory  RepoFactory
	Registry RepoRegistry
}

type CreateRepoInput struct {
	Factory      common.Address `json:"factory"`
	Subdomain    string         `json:"subdomain"`
	InitialOwner common.Address `json:"initialOwner"`
}

type CreateRepoOutput struct {
	Repo        common.Address `json:"repo"`
	TxHash      common.Hash    `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
}

// CreateRepoOp creates the plugin repo through the factory and reads its address from the
// registry's PluginRepoRegistered event.
var CreateRepoOp = operations.NewOperation(
	"plugin-repo-create",
	semver.MustParse("1.0.0"),
	"Create the plugin repo through the PluginRepoFactory",
	func(b operations.Bundle, deps CreateRepoDeps, in CreateRepoInput) (CreateRepoOutput, error) {
		opts, err := transactOpts(b.GetContext(), deps.Chain)
		if err != nil {
			return CreateRepoOutput{}, err
		}

		tx, err := deps.Factory.CreatePluginRepo(opts, in.Subdomain, in.InitialOwner)
		if err != nil {
			return CreateRepoOutput{}, fmt.Errorf("failed to send createPluginRepo(%q): %w", in.Subdomain, err)
		}

		receipt, err := deps.Chain.Confirm(tx)
		if err != nil {
			return CreateRepoOutput{}, fmt.Errorf("failed to confirm createPluginRepo(%q): %w", in.Subdomain, err)
		}

		ev, err := deps.Registry.ParsePluginRepoRegistered(receipt)
		if err != nil {
			return CreateRepoOutput{}, err
		}

		out := CreateRepoOutput{Repo: ev.PluginRepo, TxHash: tx.Hash()}
		if receipt.BlockNumber != nil {
			out.BlockNumber = receipt.BlockNumber.Uint64()
		}
		b.Logger.Infof("Created %q plugin repo at %s in block %d", ev.Subdomain, out.Repo.Hex(), out.BlockNumber)

		return out, nil
	},
)

type ReadImplementationInput struct {
	PluginSetup common.Address `json:"pluginSetup"`
}

type ReadImplementationOutput struct {
	Implementation common.Address `json:"implementation"`
}

// ReadImplementationOp reads the implementation a plugin setup installs. The value is fixed at
// setup deployment, so the result of a previous run stays valid.
var ReadImplementationOp = operations.NewOperation(
	"plugin-setup-read-implementation",
	semver.MustParse("1.0.0"),
	"Read the plugin implementation of a plugin setup",
	func(b operations.Bundle, deps SetupReader, in ReadImplementationInput) (ReadImplementationOutput, error) {
		impl, err := deps.Implementation(&bind.CallOpts{Context: b.GetContext()})
		if err != nil {
			return ReadImplementationOutput{}, fmt.Errorf("failed to read implementation of %s: %w", in.PluginSetup.Hex(), err)
		}

		return ReadImplementationOutput{Implementation: impl}, nil
	},
)
