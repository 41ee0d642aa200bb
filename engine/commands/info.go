package commands

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aragon/admin-plugin-deployments/deployment/plugininfo"
	"github.com/aragon/admin-plugin-deployments/engine/commands/flags"
	"github.com/aragon/admin-plugin-deployments/engine/commands/text"
)

var (
	infoShort = "Plugin info operations"

	infoShowShort = "Show the plugin repo and versions recorded for a network"

	infoShowLong = text.LongDesc(`
		Prints the plugin repo and every published build recorded in plugin-info.json for a
		network. Nothing is read from the chain.
	`)
)

func newInfoCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: infoShort,
	}

	cmd.AddCommand(newInfoShowCmd(cfg))

	return cmd
}

func newInfoShowCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: infoShowShort,
		Long:  infoShowLong,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}

			network := flags.MustString(cmd.Flags().GetString("network"))
			info, err := plugininfo.NewStore(c.Paths.PluginInfoDir, cfg.Logger).Network(network)
			if err != nil {
				return err
			}
			if info.Address == "" {
				return fmt.Errorf("no plugin repo recorded for %s", network)
			}

			cmd.Print(renderInfo(info))

			return nil
		},
	}

	envFlags(cmd)

	return cmd
}

func renderInfo(info *plugininfo.NetworkInfo) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s plugin repo %s (block %d)", info.Repo, info.Address, info.BlockNumberOfDeployment))
	t.AppendHeader(table.Row{"Version", "Setup", "Implementation", "Build metadata", "Release metadata", "Block"})

	for _, r := range slices.Sorted(maps.Keys(info.Releases)) {
		release := info.Releases[r]
		if release == nil {
			continue
		}
		for _, b := range slices.Sorted(maps.Keys(release.Builds)) {
			build := release.Builds[b]
			t.AppendRow(table.Row{
				fmt.Sprintf("v%d.%d", r, b),
				build.Setup.Address,
				build.Implementation.Address,
				build.BuildMetadataURI,
				release.ReleaseMetadataURI,
				build.BlockNumberOfPublication,
			})
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, AutoMerge: true},
	})
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)

	return t.Render() + "\n"
}
