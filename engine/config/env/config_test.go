package env

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileCfg is the config that is loaded from the testdata/config.yml file.
var fileCfg = &Config{
	Network: NetworkConfig{
		ForkNetwork: "sepolia",
		RPCs: map[string][]string{
			"sepolia":       {"https://sepolia.example.org", "https://sepolia-backup.example.org"},
			"polygonmumbai": {"https://mumbai.example.org"},
		},
	},
	Onchain: OnchainConfig{
		KMS: KMSConfig{
			KeyID:     "f1a2b3c4",
			KeyRegion: "us-west-1",
		},
		EVM: EVMConfig{
			DeployerKey:    "0xabc",
			ConfirmTimeout: 2 * time.Minute,
		},
	},
	IPFS: IPFSConfig{
		Endpoint: "https://ipfs.example.org",
		Token:    "secret",
	},
	Paths: PathsConfig{
		ContractsManifest: "config/osx-contracts.yaml",
		PluginSettings:    "plugin-settings.toml",
		PluginInfoDir:     "out",
		DeploymentsDir:    "deployments",
		ReportsDir:        "reports",
		QueueDir:          ".",
	},
	LogLevel: "debug",
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	got, err := Load(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, fileCfg, got)
	assert.Equal(t, fileCfg.Network.RPCs["sepolia"], got.RPCURLs("sepolia"))
	assert.Equal(t, []string{"https://mumbai.example.org"}, got.RPCURLs("polygonMumbai"))
	assert.Empty(t, got.RPCURLs("mainnet"))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ONCHAIN_EVM_DEPLOYER_KEY", "0x123")
	t.Setenv("NETWORK_RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("LOG_LEVEL", "warn")

	got, err := Load(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)

	assert.Equal(t, "0x123", got.Onchain.EVM.DeployerKey)
	assert.Equal(t, "warn", got.LogLevel)
	assert.Equal(t, []string{"http://127.0.0.1:8545"}, got.RPCURLs("sepolia"))
	assert.Equal(t, "f1a2b3c4", got.Onchain.KMS.KeyID)
}

func TestLoad_LegacyEnvVars(t *testing.T) {
	t.Setenv("NETWORK_NAME", "polygon")
	t.Setenv("ETH_KEY", "0xdef")
	t.Setenv("KMS_DEPLOYER_KEY_ID", "123")
	t.Setenv("PUB_PINATA_JWT", "jwt")

	got, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "polygon", got.Network.ForkNetwork)
	assert.Equal(t, "0xdef", got.Onchain.EVM.DeployerKey)
	assert.Equal(t, "123", got.Onchain.KMS.KeyID)
	assert.Equal(t, "jwt", got.IPFS.Token)
}

func TestLoad_PreferredOverLegacy(t *testing.T) {
	t.Setenv("NETWORK_FORK_NETWORK", "base")
	t.Setenv("NETWORK_NAME", "polygon")

	got, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "base", got.Network.ForkNetwork)
}

func TestLoadEnv_Defaults(t *testing.T) {
	t.Parallel()

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, got.Onchain.EVM.ConfirmTimeout)
	assert.Equal(t, "http://127.0.0.1:5001", got.IPFS.Endpoint)
	assert.Equal(t, "osx-contracts.yaml", got.Paths.ContractsManifest)
	assert.Equal(t, "info", got.LogLevel)
}
