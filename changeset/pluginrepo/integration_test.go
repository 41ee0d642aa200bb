package pluginrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragon/admin-plugin-deployments/chain/evm/provider"
	"github.com/aragon/admin-plugin-deployments/chain/evm/provider/rpcclient"
	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/deployment"
	"github.com/aragon/admin-plugin-deployments/deployment/plugininfo"
	"github.com/aragon/admin-plugin-deployments/deployment/queue"
	"github.com/aragon/admin-plugin-deployments/engine/config/network"
	"github.com/aragon/admin-plugin-deployments/engine/config/settings"
	"github.com/aragon/admin-plugin-deployments/operations"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

// TestCreateRepo_Fork creates a repo on a forked network, e.g. `anvil --fork-url <mainnet rpc>`.
//
//	FORK_RPC_URL             RPC of the fork
//	FORK_CONTRACTS_MANIFEST  framework contracts manifest covering FORK_NETWORK
//	FORK_NETWORK             forked framework network, mainnet by default
//	FORK_DEPLOYER_KEY        funded private key on the fork
func TestCreateRepo_Fork(t *testing.T) {
	t.Parallel()

	rpcURL := os.Getenv("FORK_RPC_URL")
	manifest := os.Getenv("FORK_CONTRACTS_MANIFEST")
	key := os.Getenv("FORK_DEPLOYER_KEY")
	if rpcURL == "" || manifest == "" || key == "" {
		t.Skip("FORK_RPC_URL, FORK_CONTRACTS_MANIFEST and FORK_DEPLOYER_KEY are required")
	}

	lggr := logger.Test(t)
	chain, err := provider.NewRPCChainProvider("hardhat", provider.RPCChainProviderConfig{
		DeployerTransactorGen: provider.TransactorFromRaw(key),
		RPCs:                  []rpcclient.RPC{{Name: "fork", URL: rpcURL}},
		ConfirmFunctor:        provider.ConfirmFuncGeth(2 * time.Minute),
		Logger:                lggr,
	}).Initialize(t.Context())
	require.NoError(t, err)

	contracts, err := network.Load(manifest, network.WithForkNetwork(os.Getenv("FORK_NETWORK")), network.WithLogger(lggr))
	require.NoError(t, err)

	s, err := settings.Parse(fmt.Appendf(nil, testSettings, 1, 1))
	require.NoError(t, err)
	s.PluginRepoENSSubdomain = fmt.Sprintf("admin-fork-%d", time.Now().UnixNano())

	dir := t.TempDir()
	env := Env{
		Logger:      lggr,
		GetContext:  t.Context,
		Reporter:    operations.NewMemoryReporter(),
		Chain:       chain,
		Settings:    s,
		Contracts:   contracts,
		PluginInfo:  plugininfo.NewStore(dir, lggr),
		Deployments: deployment.NewStore(filepath.Join(dir, "deployments")),
		Queue:       queue.New(dir, chain.Network, lggr),
	}

	out, err := CreateRepo(env)
	require.NoError(t, err)

	opts := &bind.CallOpts{Context: t.Context()}

	registryAddr, err := contracts.PluginRepoRegistryAddress(chain.Network)
	require.NoError(t, err)
	listed, err := osx.NewPluginRepoRegistry(registryAddr, chain.Client).Entries(opts, out.Repo)
	require.NoError(t, err)
	assert.True(t, listed)

	repo := osx.NewPluginRepo(out.Repo, chain.Client)
	for name, id := range osx.RepoCreatorPermissions {
		granted, err := repo.IsGranted(opts, out.Repo, chain.Deployer(), id, []byte{})
		require.NoError(t, err)
		assert.True(t, granted, name)
	}
}
