package pluginrepo

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/deployment"
	"github.com/aragon/admin-plugin-deployments/deployment/queue"
	"github.com/aragon/admin-plugin-deployments/operations"
)

// DeploySetup deploys the plugin setup contract and records it in the deployments store.
func DeploySetup(env Env) (deployment.Deployment, error) {
	name := env.Settings.PluginSetupContractName
	env.Logger.Infof("Deploying %s on %s", name, env.Chain)

	path := env.Settings.Path(env.Settings.SetupArtifact)
	artifact, err := osx.LoadArtifact(path)
	if err != nil {
		return deployment.Deployment{}, err
	}

	report, err := operations.ExecuteOperation(env.bundle(), DeploySetupOp, DeploySetupDeps{Chain: env.Chain},
		DeploySetupInput{
			ContractName: name,
			ArtifactPath: path,
			CodeHash:     artifact.CodeHash(),
		})
	if err != nil {
		return deployment.Deployment{}, err
	}

	d := deployment.Deployment{
		Name:            name,
		Address:         report.Output.Address,
		Args:            []any{},
		TransactionHash: report.Output.TxHash,
		BlockNumber:     report.Output.BlockNumber,
	}
	if err = env.Deployments.Save(env.Network(), d); err != nil {
		return deployment.Deployment{}, err
	}

	return d, nil
}

// CreateRepo creates the plugin repo with the deployer as initial owner and records it in the
// plugin info file.
func CreateRepo(env Env) (CreateRepoOutput, error) {
	subdomain := env.Settings.PluginRepoENSSubdomain

	factoryAddr, err := env.Contracts.PluginRepoFactoryAddress(env.Network())
	if err != nil {
		return CreateRepoOutput{}, err
	}
	registryAddr, err := env.Contracts.PluginRepoRegistryAddress(env.Network())
	if err != nil {
		return CreateRepoOutput{}, err
	}

	binder := env.binder()
	report, err := operations.ExecuteOperation(env.bundle(), CreateRepoOp,
		CreateRepoDeps{
			Chain:    env.Chain,
			Factory:  binder.PluginRepoFactory(factoryAddr),
			Registry: binder.PluginRepoRegistry(registryAddr),
		},
		CreateRepoInput{
			Factory:      factoryAddr,
			Subdomain:    subdomain,
			InitialOwner: env.Chain.Deployer(),
		})
	if err != nil {
		return CreateRepoOutput{}, err
	}

	out := report.Output
	if err = env.PluginInfo.AddDeployedRepo(env.Network(), subdomain, out.Repo, []any{}, out.BlockNumber); err != nil {
		return CreateRepoOutput{}, err
	}

	return out, nil
}

// ConcludeRepo queues the repo proxy for verification with its constructor args: the repo
// implementation and the initialize calldata.
func ConcludeRepo(env Env) (queue.VerificationEntry, error) {
	env.Logger.Infof("Concluding %s plugin's repo deployment.", env.Settings.PluginContractName)

	repo, base, err := repoAndBase(env)
	if err != nil {
		return queue.VerificationEntry{}, err
	}

	initData, err := osx.PackInitialize(env.Chain.Deployer())
	if err != nil {
		return queue.VerificationEntry{}, fmt.Errorf("failed to encode initialize: %w", err)
	}

	return env.Queue.AddVerification(repo, base.Hex(), hexutil.Encode(initData))
}

// QueueUpgrade queues the upgrade of the repo proxy to the factory's current repo
// implementation for the managing DAO. With callData set, upgradeToAndCall is queued instead of
// upgradeTo.
func QueueUpgrade(env Env, callData []byte) (queue.Action, error) {
	env.Logger.Info("Upgrade the PluginRepo to the new implementation")

	repo, base, err := repoAndBase(env)
	if err != nil {
		return queue.Action{}, err
	}

	var data []byte
	if callData == nil {
		data, err = osx.PackUpgradeTo(base)
	} else {
		data, err = osx.PackUpgradeToAndCall(base, callData)
	}
	if err != nil {
		return queue.Action{}, fmt.Errorf("failed to encode upgrade: %w", err)
	}

	description := fmt.Sprintf("Upgrade the %s's PluginRepo (%s) to the new implementation (%s)",
		env.Settings.PluginContractName, repo.Hex(), base.Hex())

	return env.Queue.AddAction(repo, data, nil, description)
}

// repoAndBase returns the recorded repo and the implementation new repos are created with.
func repoAndBase(env Env) (common.Address, common.Address, error) {
	info, err := env.PluginInfo.Network(env.Network())
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	repo, err := info.RepoAddress()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("%s: %w", env.Network(), err)
	}

	factoryAddr, err := env.Contracts.PluginRepoFactoryAddress(env.Network())
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	base, err := env.binder().PluginRepoFactory(factoryAddr).PluginRepoBase(env.callOpts())
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("failed to read pluginRepoBase: %w", err)
	}

	return repo, base, nil
}
