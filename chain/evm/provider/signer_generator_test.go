package provider

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// hardhat account #0
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var testChainID = big.NewInt(31337)

func TestTransactorFromRaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		give         string
		opts         []GeneratorOption
		wantGasLimit uint64
		wantErr      string
	}{
		{
			name: "plain hex",
			give: testPrivateKey,
		},
		{
			name: "0x prefixed",
			give: "0x" + testPrivateKey,
		},
		{
			name:         "fixed gas limit",
			give:         testPrivateKey,
			opts:         []GeneratorOption{WithGasLimit(3_000_000)},
			wantGasLimit: 3_000_000,
		},
		{
			name:    "invalid key",
			give:    "not-a-key",
			wantErr: "failed to convert private key to ECDSA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := TransactorFromRaw(tt.give, tt.opts...).Generate(testChainID)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(testAddress), got.From)
			assert.Equal(t, tt.wantGasLimit, got.GasLimit)
		})
	}
}

func TestTransactorRandom_ReusesKey(t *testing.T) {
	t.Parallel()

	gen := TransactorRandom()

	first, err := gen.Generate(testChainID)
	require.NoError(t, err)
	second, err := gen.Generate(big.NewInt(1))
	require.NoError(t, err)

	assert.Equal(t, first.From, second.From)
	assert.NotEqual(t, common.Address{}, first.From)
}
