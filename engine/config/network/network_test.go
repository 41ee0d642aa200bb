package network

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

func loadTestRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()

	r, err := Load(filepath.Join("testdata", "osx-contracts.yaml"), opts...)
	require.NoError(t, err)

	return r
}

func TestRegistry_ContractAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		forkNetwork string
		network     string
		contract    string
		want        common.Address
		wantErr     error
	}{
		{
			name:     "mapped network",
			network:  "mainnet",
			contract: PluginRepoFactory,
			want:     common.HexToAddress("0x1000000000000000000000000000000000000001"),
		},
		{
			name:     "renamed network",
			network:  "polygonMumbai",
			contract: PluginRepoFactory,
			want:     common.HexToAddress("0x3000000000000000000000000000000000000001"),
		},
		{
			name:     "local network defaults to mainnet",
			network:  "hardhat",
			contract: PluginRepoRegistry,
			want:     common.HexToAddress("0x1000000000000000000000000000000000000002"),
		},
		{
			name:        "local network uses fork override",
			forkNetwork: "sepolia",
			network:     "localhost",
			contract:    PluginRepoFactory,
			want:        common.HexToAddress("0x2000000000000000000000000000000000000001"),
		},
		{
			name:     "unknown network",
			network:  "solana",
			contract: PluginRepoFactory,
			wantErr:  ErrUnknownNetwork,
		},
		{
			name:     "mapped network without manifest entry",
			network:  "base",
			contract: PluginRepoFactory,
			wantErr:  ErrUnknownNetwork,
		},
		{
			name:     "missing contract",
			network:  "polygonMumbai",
			contract: PlaceholderSetup,
			wantErr:  ErrUnknownContract,
		},
		{
			name:     "zero address",
			network:  "sepolia",
			contract: PlaceholderSetup,
			wantErr:  ErrUnknownContract,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := loadTestRegistry(t, WithForkNetwork(tt.forkNetwork), WithLogger(logger.Test(t)))

			got, err := r.ContractAddress(tt.network, tt.contract)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, common.Address{}, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Shortcuts(t *testing.T) {
	t.Parallel()

	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	r := loadTestRegistry(t, WithLogger(lggr))

	factory, err := r.PluginRepoFactoryAddress("mainnet")
	require.NoError(t, err)
	registry, err := r.PluginRepoRegistryAddress("mainnet")
	require.NoError(t, err)
	placeholder, err := r.PlaceholderSetupAddress("coverage")
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x1000000000000000000000000000000000000001"), factory)
	assert.Equal(t, common.HexToAddress("0x1000000000000000000000000000000000000002"), registry)
	assert.Equal(t, common.HexToAddress("0x1000000000000000000000000000000000000003"), placeholder)

	require.Equal(t, 3, logs.Len())
	assert.Contains(t, logs.All()[2].Message, `for deployment testing on network "coverage"`)
}

func TestIsLocal(t *testing.T) {
	t.Parallel()

	for _, n := range []string{"localhost", "hardhat", "coverage"} {
		assert.True(t, IsLocal(n), n)
	}
	assert.False(t, IsLocal("mainnet"))
	assert.Contains(t, Networks(), "polygonMumbai")
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.ErrorContains(t, err, "failed to read contracts manifest")
	require.ErrorContains(t, err, "activeContractsList of @aragon/osx-ethers")

	r := NewRegistry(Manifest{})
	assert.Equal(t, DefaultForkNetwork, r.ForkNetwork())
	_, err = r.ContractAddress("mainnet", PluginRepoFactory)
	require.ErrorIs(t, err, ErrUnknownNetwork)
}
