// Package env loads the deployer configuration from a YAML file with environment overrides.
package env

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// KMSConfig is the configuration for the AWS KMS deployer key.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type KMSConfig struct {
	KeyID      string `mapstructure:"key_id" yaml:"key_id"`           // Secret: AWS KMS Key ID
	KeyRegion  string `mapstructure:"key_region" yaml:"key_region"`   // Secret: AWS KMS Key Region (e.g. us-west-1)
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"` // Optional shared credentials profile
}

// EVMConfig is the configuration for sending transactions.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type EVMConfig struct {
	DeployerKey    string        `mapstructure:"deployer_key" yaml:"deployer_key"` // Secret: The private key of the deployer account. Prefer to use KMS keys instead.
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
}

// OnchainConfig wraps the configuration for the onchain components.
type OnchainConfig struct {
	KMS KMSConfig `mapstructure:"kms" yaml:"kms"`
	EVM EVMConfig `mapstructure:"evm" yaml:"evm"`
}

// NetworkConfig selects the RPCs used per deployment network.
type NetworkConfig struct {
	// ForkNetwork is the framework network a local network forks.
	ForkNetwork string `mapstructure:"fork_network" yaml:"fork_network"`
	// RPCs maps a deployment network name to its RPC URLs, primary first.
	RPCs map[string][]string `mapstructure:"rpcs" yaml:"rpcs"`
	// RPCURL overrides the RPCs of whichever network is selected.
	RPCURL string `mapstructure:"rpc_url" yaml:"rpc_url"`
}

// IPFSConfig is the configuration of the metadata pinning service.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type IPFSConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Token    string `mapstructure:"token" yaml:"token"` // Secret: bearer token of the pinning service
}

// PathsConfig holds the working files of the deployer.
type PathsConfig struct {
	// ContractsManifest is the YAML address manifest of the framework contracts, generated from
	// activeContractsList of @aragon/osx-ethers. See package network.
	ContractsManifest string `mapstructure:"contracts_manifest" yaml:"contracts_manifest"`
	PluginSettings    string `mapstructure:"plugin_settings" yaml:"plugin_settings"`
	PluginInfoDir     string `mapstructure:"plugin_info_dir" yaml:"plugin_info_dir"`
	DeploymentsDir    string `mapstructure:"deployments_dir" yaml:"deployments_dir"`
	ReportsDir        string `mapstructure:"reports_dir" yaml:"reports_dir"`
	QueueDir          string `mapstructure:"queue_dir" yaml:"queue_dir"`
}

// Config wraps the entire configuration of the deployer.
type Config struct {
	Network  NetworkConfig `mapstructure:"network" yaml:"network"`
	Onchain  OnchainConfig `mapstructure:"onchain" yaml:"onchain"`
	IPFS     IPFSConfig    `mapstructure:"ipfs" yaml:"ipfs"`
	Paths    PathsConfig   `mapstructure:"paths" yaml:"paths"`
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
}

// RPCURLs returns the RPC URLs configured for network. The RPC_URL override wins over the file.
func (c *Config) RPCURLs(network string) []string {
	if c.Network.RPCURL != "" {
		return []string{c.Network.RPCURL}
	}

	// viper lower cases map keys
	for name, urls := range c.Network.RPCs {
		if strings.EqualFold(name, network) {
			return urls
		}
	}

	return nil
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	return v
}

var (
	defaults = map[string]any{
		"onchain.evm.confirm_timeout": "5m",
		"ipfs.endpoint":               "http://127.0.0.1:5001",
		"paths.contracts_manifest":    "osx-contracts.yaml",
		"paths.plugin_settings":       "plugin-settings.toml",
		"paths.plugin_info_dir":       ".",
		"paths.deployments_dir":       "deployments",
		"paths.reports_dir":           "reports",
		"paths.queue_dir":             ".",
		"log_level":                   "info",
	}

	// envBindings maps a config key to the environment variables that can provide it. The first
	// name is the preferred one, the others are legacy names of the hardhat setup.
	envBindings = map[string][]string{
		"network.fork_network":        {"NETWORK_FORK_NETWORK", "NETWORK_NAME"},
		"network.rpc_url":             {"NETWORK_RPC_URL", "RPC_URL"},
		"onchain.kms.key_id":          {"ONCHAIN_KMS_KEY_ID", "KMS_DEPLOYER_KEY_ID"},
		"onchain.kms.key_region":      {"ONCHAIN_KMS_KEY_REGION", "KMS_DEPLOYER_KEY_REGION"},
		"onchain.kms.aws_profile":     {"ONCHAIN_KMS_AWS_PROFILE"},
		"onchain.evm.deployer_key":    {"ONCHAIN_EVM_DEPLOYER_KEY", "ETH_KEY"},
		"onchain.evm.confirm_timeout": {"ONCHAIN_EVM_CONFIRM_TIMEOUT"},
		"ipfs.endpoint":               {"IPFS_ENDPOINT"},
		"ipfs.token":                  {"IPFS_TOKEN", "PUB_PINATA_JWT"},
		"paths.contracts_manifest":    {"PATHS_CONTRACTS_MANIFEST"},
		"paths.plugin_settings":       {"PATHS_PLUGIN_SETTINGS"},
		"paths.plugin_info_dir":       {"PATHS_PLUGIN_INFO_DIR"},
		"paths.deployments_dir":       {"PATHS_DEPLOYMENTS_DIR"},
		"paths.reports_dir":           {"PATHS_REPORTS_DIR"},
		"paths.queue_dir":             {"PATHS_QUEUE_DIR"},
		"log_level":                   {"LOG_LEVEL"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the env key to the start of the arguments
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
