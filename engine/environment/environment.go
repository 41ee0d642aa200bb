// Package environment assembles everything the plugin repo changesets act on for one network from
// the deployer configuration.
package environment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/chain/evm/provider"
	"github.com/aragon/admin-plugin-deployments/chain/evm/provider/rpcclient"
	"github.com/aragon/admin-plugin-deployments/changeset/pluginrepo"
	"github.com/aragon/admin-plugin-deployments/deployment"
	"github.com/aragon/admin-plugin-deployments/deployment/ipfs"
	"github.com/aragon/admin-plugin-deployments/deployment/plugininfo"
	"github.com/aragon/admin-plugin-deployments/deployment/queue"
	cfgenv "github.com/aragon/admin-plugin-deployments/engine/config/env"
	"github.com/aragon/admin-plugin-deployments/engine/config/network"
	"github.com/aragon/admin-plugin-deployments/engine/config/settings"
	"github.com/aragon/admin-plugin-deployments/operations"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

// AnvilPrivateKey is the first pre-funded account of anvil and hardhat nodes.
const AnvilPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// LoadConfig holds the options of Load.
type LoadConfig struct {
	reporter           operations.Reporter
	chain              *evm.Chain
	uploader           ipfs.Uploader
	anvilKeyAsDeployer bool
}

// LoadOption modifies the LoadConfig.
type LoadOption func(*LoadConfig)

// WithReporter sets the operations reporter. By default local networks report to memory and the
// others to <reports_dir>/<network>.json.
func WithReporter(reporter operations.Reporter) LoadOption {
	return func(c *LoadConfig) {
		c.reporter = reporter
	}
}

// WithChain uses chain instead of dialing the configured RPCs.
func WithChain(chain evm.Chain) LoadOption {
	return func(c *LoadConfig) {
		c.chain = &chain
	}
}

// WithUploader replaces the IPFS client built from the config.
func WithUploader(u ipfs.Uploader) LoadOption {
	return func(c *LoadConfig) {
		c.uploader = u
	}
}

// WithAnvilKeyAsDeployer signs with AnvilPrivateKey on local networks when no key is configured.
func WithAnvilKeyAsDeployer() LoadOption {
	return func(c *LoadConfig) {
		c.anvilKeyAsDeployer = true
	}
}

// Load returns the changeset environment of networkName.
func Load(
	getCtx func() context.Context, lggr logger.Logger, cfg *cfgenv.Config, networkName string, opts ...LoadOption,
) (pluginrepo.Env, error) {
	lc := &LoadConfig{}
	for _, opt := range opts {
		opt(lc)
	}

	s, err := settings.Load(cfg.Paths.PluginSettings)
	if err != nil {
		return pluginrepo.Env{}, err
	}

	contracts, err := network.Load(cfg.Paths.ContractsManifest,
		network.WithForkNetwork(cfg.Network.ForkNetwork),
		network.WithLogger(lggr.Named("network")),
	)
	if err != nil {
		return pluginrepo.Env{}, err
	}

	var chain evm.Chain
	if lc.chain != nil {
		chain = *lc.chain
	} else {
		chain, err = LoadChain(getCtx(), lggr, cfg, networkName, lc.anvilKeyAsDeployer)
		if err != nil {
			return pluginrepo.Env{}, err
		}
	}

	reporter := lc.reporter
	if reporter == nil {
		reporter, err = newReporter(cfg, networkName)
		if err != nil {
			return pluginrepo.Env{}, err
		}
	}

	uploader := lc.uploader
	if uploader == nil {
		uploader, err = ipfs.NewClient(ipfs.ClientConfig{
			Endpoint: cfg.IPFS.Endpoint,
			Token:    cfg.IPFS.Token,
		}, lggr.Named("ipfs"))
		if err != nil {
			return pluginrepo.Env{}, err
		}
	}

	return pluginrepo.Env{
		Logger:      lggr.Named("pluginrepo"),
		GetContext:  getCtx,
		Reporter:    reporter,
		Chain:       chain,
		Settings:    s,
		Contracts:   contracts,
		PluginInfo:  plugininfo.NewStore(cfg.Paths.PluginInfoDir, lggr.Named("plugininfo")),
		Deployments: deployment.NewStore(cfg.Paths.DeploymentsDir),
		Queue:       queue.New(cfg.Paths.QueueDir, networkName, lggr.Named("queue")),
		Uploader:    uploader,
	}, nil
}

// LoadChain dials the configured RPCs of networkName with the configured deployer key.
func LoadChain(
	ctx context.Context, lggr logger.Logger, cfg *cfgenv.Config, networkName string, anvilKeyAsDeployer bool,
) (evm.Chain, error) {
	urls := cfg.RPCURLs(networkName)
	if len(urls) == 0 {
		return evm.Chain{}, fmt.Errorf("no RPC configured for network %s", networkName)
	}
	rpcs := make([]rpcclient.RPC, 0, len(urls))
	for i, url := range urls {
		rpcs = append(rpcs, rpcclient.RPC{Name: fmt.Sprintf("%s-%d", networkName, i), URL: url})
	}

	signerGen, err := signerGenerator(cfg.Onchain, networkName, anvilKeyAsDeployer)
	if err != nil {
		return evm.Chain{}, err
	}

	timeout := cfg.Onchain.EVM.ConfirmTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	chain, err := provider.NewRPCChainProvider(networkName, provider.RPCChainProviderConfig{
		DeployerTransactorGen: signerGen,
		RPCs:                  rpcs,
		ConfirmFunctor:        provider.ConfirmFuncGeth(timeout),
		ClientOpts: []func(client *rpcclient.MultiClient){
			rpcclient.WithRetryConfig(rpcclient.RetryConfig{
				Attempts:     5,
				Delay:        100 * time.Millisecond,
				Timeout:      30 * time.Second,
				DialAttempts: 5,
				DialDelay:    100 * time.Millisecond,
				DialTimeout:  5 * time.Second,
			}),
		},
		Logger: lggr.Named("rpc"),
	}).Initialize(ctx)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to initialize %s: %w", networkName, err)
	}
	lggr.Infow("Connected", "network", chain.String(), "deployer", chain.Deployer().Hex())

	return chain, nil
}

func signerGenerator(cfg cfgenv.OnchainConfig, networkName string, anvilKeyAsDeployer bool) (provider.SignerGenerator, error) {
	switch {
	case useKMS(cfg.KMS):
		return provider.TransactorFromKMS(cfg.KMS.KeyID, cfg.KMS.KeyRegion, cfg.KMS.AWSProfile)
	case cfg.EVM.DeployerKey != "":
		return provider.TransactorFromRaw(cfg.EVM.DeployerKey), nil
	case anvilKeyAsDeployer && network.IsLocal(networkName):
		// a fixed gas limit keeps estimation errors from hiding reverts on forks
		return provider.TransactorFromRaw(AnvilPrivateKey, provider.WithGasLimit(10_000_000)), nil
	default:
		return nil, errors.New("no deployer key or KMS key configured")
	}
}

func useKMS(cfg cfgenv.KMSConfig) bool {
	return cfg.KeyID != "" && cfg.KeyRegion != ""
}

func newReporter(cfg *cfgenv.Config, networkName string) (operations.Reporter, error) {
	if network.IsLocal(networkName) {
		return operations.NewMemoryReporter(), nil
	}

	return operations.NewFileReporter(ReportsPath(cfg, networkName))
}

// ReportsPath returns the file the operation reports of networkName are kept in.
func ReportsPath(cfg *cfgenv.Config, networkName string) string {
	return filepath.Join(cfg.Paths.ReportsDir, networkName+".json")
}
