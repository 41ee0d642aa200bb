// Package commands provides the osx-plugin CLI: deploying the plugin repo, publishing versions
// into it and inspecting what was recorded.
//
//	cmd, err := commands.NewCommand(commands.Config{Logger: lggr})
//	if err != nil {
//	    return err
//	}
//	return cmd.ExecuteContext(ctx)
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aragon/admin-plugin-deployments/changeset/pluginrepo"
	"github.com/aragon/admin-plugin-deployments/engine/commands/flags"
	"github.com/aragon/admin-plugin-deployments/engine/commands/text"
	cfgenv "github.com/aragon/admin-plugin-deployments/engine/config/env"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

var (
	rootShort = "Deploy and publish an Aragon OSx plugin"

	rootLong = text.LongDesc(`
		Deploys the plugin setup, creates the plugin repo through the framework's PluginRepoFactory
		and publishes versions into it.

		Framework contract addresses are read from the contracts manifest, results are recorded in
		plugin-info.json, the deployments directory and the verification and managing DAO queues.
	`)
)

// Config holds the configuration of the commands.
type Config struct {
	// Logger is the logger of the commands and the environments they load. Required.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// Validate checks that all required configuration fields are set.
func (c Config) Validate() error {
	if c.Logger == nil {
		return errors.New("commands.Config: missing required fields: Logger")
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates the osx-plugin root command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:           "osx-plugin",
		Short:         rootShort,
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRepoCmd(cfg))
	cmd.AddCommand(newVersionCmd(cfg))
	cmd.AddCommand(newInfoCmd(cfg))
	cmd.AddCommand(newQueueCmd(cfg))

	return cmd, nil
}

// loadConfig reads the file given by --config.
func loadConfig(cmd *cobra.Command, cfg Config) (*cfgenv.Config, error) {
	path := flags.MustString(cmd.Flags().GetString("config"))

	c, err := cfg.deps().ConfigLoader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	return c, nil
}

// loadEnv loads the changeset environment of the --network network.
func loadEnv(cmd *cobra.Command, cfg Config) (pluginrepo.Env, error) {
	c, err := loadConfig(cmd, cfg)
	if err != nil {
		return pluginrepo.Env{}, err
	}

	network := flags.MustString(cmd.Flags().GetString("network"))
	env, err := cfg.deps().EnvLoader(cmd.Context, cfg.Logger, c, network)
	if err != nil {
		return pluginrepo.Env{}, fmt.Errorf("failed to load environment %s: %w", network, err)
	}

	return env, nil
}

// envFlags adds the flags every command loading an environment needs.
func envFlags(cmd *cobra.Command) {
	flags.Network(cmd)
	flags.Config(cmd)
}
