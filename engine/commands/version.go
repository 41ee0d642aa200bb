package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aragon/admin-plugin-deployments/engine/commands/flags"
	"github.com/aragon/admin-plugin-deployments/engine/commands/text"
)

var (
	versionShort = "Plugin version operations"

	versionPublishShort = "Publish the configured version in the plugin repo"

	versionPublishLong = text.LongDesc(`
		Uploads the release and build metadata, creates the configured version in the plugin repo and
		records it in plugin-info.json.

		Builds missing before the configured one are created with the network's placeholder setup,
		so build numbers stay contiguous. Builds that already exist are left as they are.
	`)

	versionPublishExample = text.Examples(`
		# Publish the version of plugin-settings.toml on sepolia
		osx-plugin version publish --network sepolia

		# Deploy a new plugin setup first
		osx-plugin version publish --network sepolia --deploy-setup
	`)
)

func newVersionCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: versionShort,
	}

	cmd.AddCommand(newVersionPublishCmd(cfg))

	return cmd
}

func newVersionPublishCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "publish",
		Short:   versionPublishShort,
		Long:    versionPublishLong,
		Example: versionPublishExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersionPublish(cmd, cfg, flags.MustBool(cmd.Flags().GetBool("deploy-setup")))
		},
	}

	envFlags(cmd)
	cmd.Flags().Bool("deploy-setup", false, "Deploy the plugin setup before publishing")

	return cmd
}

func runVersionPublish(cmd *cobra.Command, cfg Config, deploySetup bool) error {
	deps := cfg.deps()

	env, err := loadEnv(cmd, cfg)
	if err != nil {
		return err
	}

	if deploySetup {
		d, derr := deps.SetupDeployer(env)
		if derr != nil {
			return fmt.Errorf("failed to deploy %s: %w", env.Settings.PluginSetupContractName, derr)
		}
		cmd.Printf("✅ Deployed %s at %s in block %d\n", d.Name, d.Address.Hex(), d.BlockNumber)
	}

	out, err := deps.VersionPublisher(env)
	if err != nil {
		return fmt.Errorf("failed to publish on %s: %w", env.Network(), err)
	}

	for _, v := range out.Populate.Versions {
		switch {
		case v.Skipped:
			cmd.Printf("  %s exists (setup %s)\n", v.Tag, v.PluginSetup.Hex())
		case v.Placeholder:
			cmd.Printf("  %s created as placeholder in block %d\n", v.Tag, v.BlockNumber)
		default:
			cmd.Printf("  %s created in block %d\n", v.Tag, v.BlockNumber)
		}
	}
	cmd.Printf("✅ Published %s as %s (implementation %s, release metadata %s, build metadata %s)\n",
		out.PluginSetup.Hex(), out.Tag, out.Implementation.Hex(), out.URIs.Release, out.URIs.Build)

	return nil
}
