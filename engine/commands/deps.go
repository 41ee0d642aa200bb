package commands

import (
	"context"

	"github.com/aragon/admin-plugin-deployments/changeset/pluginrepo"
	"github.com/aragon/admin-plugin-deployments/deployment"
	"github.com/aragon/admin-plugin-deployments/deployment/queue"
	cfgenv "github.com/aragon/admin-plugin-deployments/engine/config/env"
	"github.com/aragon/admin-plugin-deployments/engine/environment"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

// ConfigLoaderFunc reads the deployer configuration.
type ConfigLoaderFunc func(path string) (*cfgenv.Config, error)

// EnvLoaderFunc builds the changeset environment of a network.
type EnvLoaderFunc func(
	getCtx func() context.Context, lggr logger.Logger, cfg *cfgenv.Config, network string,
) (pluginrepo.Env, error)

// defaultEnvLoader dials the configured RPCs. Local networks fall back to the anvil key.
func defaultEnvLoader(
	getCtx func() context.Context, lggr logger.Logger, cfg *cfgenv.Config, network string,
) (pluginrepo.Env, error) {
	return environment.Load(getCtx, lggr, cfg, network, environment.WithAnvilKeyAsDeployer())
}

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values use production defaults.
type Deps struct {
	// Default: env.Load
	ConfigLoader ConfigLoaderFunc
	// Default: environment.Load with the anvil key on local networks
	EnvLoader EnvLoaderFunc

	SetupDeployer    func(pluginrepo.Env) (deployment.Deployment, error)
	RepoCreator      func(pluginrepo.Env) (pluginrepo.CreateRepoOutput, error)
	RepoConcluder    func(pluginrepo.Env) (queue.VerificationEntry, error)
	UpgradeQueuer    func(pluginrepo.Env, []byte) (queue.Action, error)
	VersionPublisher func(pluginrepo.Env) (pluginrepo.PublishOutput, error)
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = cfgenv.Load
	}
	if d.EnvLoader == nil {
		d.EnvLoader = defaultEnvLoader
	}
	if d.SetupDeployer == nil {
		d.SetupDeployer = pluginrepo.DeploySetup
	}
	if d.RepoCreator == nil {
		d.RepoCreator = pluginrepo.CreateRepo
	}
	if d.RepoConcluder == nil {
		d.RepoConcluder = pluginrepo.ConcludeRepo
	}
	if d.UpgradeQueuer == nil {
		d.UpgradeQueuer = pluginrepo.QueueUpgrade
	}
	if d.VersionPublisher == nil {
		d.VersionPublisher = pluginrepo.PublishVersion
	}
}
