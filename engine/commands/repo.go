package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/aragon/admin-plugin-deployments/engine/commands/flags"
	"github.com/aragon/admin-plugin-deployments/engine/commands/text"
)

var (
	repoShort = "Plugin repo operations"

	repoLong = text.LongDesc(`
		Commands for creating the plugin repo and preparing its upgrades.
	`)

	repoDeployShort = "Deploy the plugin setup and create the plugin repo"

	repoDeployLong = text.LongDesc(`
		Deploys the plugin setup contract, creates the plugin repo with the deployer as owner through
		the network's PluginRepoFactory and queues the repo proxy for verification.

		Steps already completed on the network are not sent again.
	`)

	repoDeployExample = text.Examples(`
		# Create the plugin repo on sepolia
		osx-plugin repo deploy --network sepolia

		# Against a local fork of mainnet
		NETWORK_NAME=mainnet osx-plugin repo deploy --network localhost
	`)

	repoConcludeShort = "Queue the plugin repo for verification"

	repoConcludeLong = text.LongDesc(`
		Queues the plugin repo proxy recorded in plugin-info.json for source verification, with the
		repo implementation and its initialize call as constructor arguments.
	`)

	repoUpgradeShort = "Queue the plugin repo upgrade for the managing DAO"

	repoUpgradeLong = text.LongDesc(`
		Queues an upgrade of the plugin repo proxy to the implementation the PluginRepoFactory
		currently creates repos with. The action is executed by the managing DAO, export it with
		"osx-plugin queue export".
	`)

	repoUpgradeExample = text.Examples(`
		# Queue upgradeTo
		osx-plugin repo upgrade --network mainnet

		# Queue upgradeToAndCall with a reinitialization call
		osx-plugin repo upgrade --network mainnet --call-data 0x8129fc1c
	`)
)

func newRepoCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: repoShort,
		Long:  repoLong,
	}

	cmd.AddCommand(newRepoDeployCmd(cfg))
	cmd.AddCommand(newRepoConcludeCmd(cfg))
	cmd.AddCommand(newRepoUpgradeCmd(cfg))

	return cmd
}

func newRepoDeployCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   repoDeployShort,
		Long:    repoDeployLong,
		Example: repoDeployExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepoDeploy(cmd, cfg, flags.MustBool(cmd.Flags().GetBool("skip-setup")))
		},
	}

	envFlags(cmd)
	cmd.Flags().Bool("skip-setup", false, "Do not deploy the plugin setup")

	return cmd
}

func runRepoDeploy(cmd *cobra.Command, cfg Config, skipSetup bool) error {
	deps := cfg.deps()

	env, err := loadEnv(cmd, cfg)
	if err != nil {
		return err
	}

	if !skipSetup {
		d, derr := deps.SetupDeployer(env)
		if derr != nil {
			return fmt.Errorf("failed to deploy %s: %w", env.Settings.PluginSetupContractName, derr)
		}
		cmd.Printf("✅ Deployed %s at %s in block %d\n", d.Name, d.Address.Hex(), d.BlockNumber)
	}

	out, err := deps.RepoCreator(env)
	if err != nil {
		return fmt.Errorf("failed to create the plugin repo on %s: %w", env.Network(), err)
	}
	cmd.Printf("✅ Created plugin repo %q at %s in block %d\n",
		env.Settings.PluginRepoENSSubdomain, out.Repo.Hex(), out.BlockNumber)

	entry, err := deps.RepoConcluder(env)
	if err != nil {
		return fmt.Errorf("failed to conclude the plugin repo on %s: %w", env.Network(), err)
	}
	cmd.Printf("✅ Queued %s for verification (%s)\n", entry.Address.Hex(), entry.ID)

	return nil
}

func newRepoConcludeCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conclude",
		Short: repoConcludeShort,
		Long:  repoConcludeLong,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnv(cmd, cfg)
			if err != nil {
				return err
			}

			entry, err := cfg.deps().RepoConcluder(env)
			if err != nil {
				return fmt.Errorf("failed to conclude the plugin repo on %s: %w", env.Network(), err)
			}
			cmd.Printf("✅ Queued %s for verification (%s)\n", entry.Address.Hex(), entry.ID)

			return nil
		},
	}

	envFlags(cmd)

	return cmd
}

func newRepoUpgradeCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "upgrade",
		Short:   repoUpgradeShort,
		Long:    repoUpgradeLong,
		Example: repoUpgradeExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var callData []byte
			if cmd.Flags().Changed("call-data") {
				raw := flags.MustString(cmd.Flags().GetString("call-data"))
				data, err := hexutil.Decode(raw)
				if err != nil {
					return fmt.Errorf("invalid --call-data %q: %w", raw, err)
				}
				callData = data
			}

			env, err := loadEnv(cmd, cfg)
			if err != nil {
				return err
			}

			action, err := cfg.deps().UpgradeQueuer(env, callData)
			if err != nil {
				return fmt.Errorf("failed to queue the plugin repo upgrade on %s: %w", env.Network(), err)
			}
			cmd.Printf("✅ Queued %q (%s)\n", action.Description, action.ID)

			return nil
		},
	}

	envFlags(cmd)
	cmd.Flags().String("call-data", "", "Hex encoded call to make after the upgrade, switches to upgradeToAndCall")

	return cmd
}
