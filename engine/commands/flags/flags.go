// Package flags holds the flags shared by several commands. Flags used by a single command are
// defined next to it.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultConfigFile is the deployer configuration read when --config is not given.
const DefaultConfigFile = "osx-plugin.yml"

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// Network adds the required --network/-n flag.
//
// Usage:
//
//	flags.Network(cmd)
//	// later in RunE:
//	network := flags.MustString(cmd.Flags().GetString("network"))
func Network(cmd *cobra.Command) {
	cmd.Flags().StringP("network", "n", "", "Deployment network, e.g. sepolia or hardhat (required)")
	_ = cmd.MarkFlagRequired("network")
}

// Config adds the --config/-c flag pointing at the deployer configuration file. A missing file
// is not an error, the configuration is then read from the environment.
func Config(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", DefaultConfigFile, "Deployer configuration file")
}

// Output adds the --out/-o flag for the output file path. An empty path means stdout.
// The hardhat style --outputPath spelling is accepted as well.
func Output(cmd *cobra.Command, defaultValue string) {
	cmd.Flags().StringP("out", "o", defaultValue, "Output file path")

	existingNormalize := cmd.Flags().GetNormalizeFunc()
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "outputPath" {
			return pflag.NormalizedName("out")
		}
		if existingNormalize != nil {
			return existingNormalize(f, name)
		}

		return pflag.NormalizedName(name)
	})
}
