package queue

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/smartcontractkit/mcms"
	"github.com/smartcontractkit/mcms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

var (
	repoAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	baseAddr = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func TestQueue_Verifications(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	q := New(dir, "sepolia", logger.Test(t))

	entries, err := q.Verifications()
	require.NoError(t, err)
	assert.Empty(t, entries)

	first, err := q.AddVerification(repoAddr, baseAddr.Hex(), "0xc4d66de8")
	require.NoError(t, err)
	second, err := q.AddVerification(baseAddr)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// a fresh queue over the same directory sees both entries in order
	entries, err = New(dir, "sepolia", logger.Test(t)).Verifications()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, repoAddr, entries[0].Address)
	assert.Equal(t, []any{baseAddr.Hex(), "0xc4d66de8"}, entries[0].Args)
	assert.Equal(t, []any{}, entries[1].Args)

	// other networks have their own files
	entries, err = New(dir, "mainnet", logger.Test(t)).Verifications()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueue_Actions(t *testing.T) {
	t.Parallel()

	q := New(t.TempDir(), "sepolia", logger.Test(t))

	a1, err := q.AddAction(repoAddr, []byte{0x36, 0x59, 0xcf, 0xe6}, nil, "Upgrade the repo")
	require.NoError(t, err)
	a2, err := q.AddAction(repoAddr, nil, big.NewInt(5), "Second action")
	require.NoError(t, err)

	actions, err := q.Actions()
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, a1.ID, actions[0].ID)
	assert.Equal(t, a2.ID, actions[1].ID)
	assert.Equal(t, 0, actions[0].Value.Sign())
	assert.Equal(t, []byte{0x36, 0x59, 0xcf, 0xe6}, []byte(actions[0].Data))
	assert.Equal(t, "Second action", actions[1].Description)
	assert.Equal(t, int64(5), actions[1].Value.Int64())
	// ksuids sort by creation time
	assert.LessOrEqual(t, a1.ID[:4], a2.ID[:4])
}

func TestQueue_WriteTimelockProposal(t *testing.T) {
	t.Parallel()

	q := New(t.TempDir(), "sepolia", logger.Test(t))
	_, err := q.AddAction(repoAddr, []byte{0x01}, nil, "Upgrade the repo")
	require.NoError(t, err)
	_, err = q.AddAction(repoAddr, []byte{0x02}, nil, "Call the repo")
	require.NoError(t, err)

	cfg := ProposalConfig{
		ChainSelector:   chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector,
		TimelockAddress: common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		MCMAddress:      common.HexToAddress("0x00000000000000000000000000000000000000e2"),
		Delay:           time.Hour,
		ValidUntil:      time.Now().Add(72 * time.Hour),
	}

	var buf bytes.Buffer
	require.NoError(t, q.WriteTimelockProposal(&buf, cfg))

	proposal, err := mcms.NewTimelockProposal(&buf)
	require.NoError(t, err)
	assert.Equal(t, types.TimelockActionSchedule, proposal.Action)
	assert.Equal(t, "Upgrade the repo", proposal.Description)
	require.Len(t, proposal.Operations, 1)
	require.Len(t, proposal.Operations[0].Transactions, 2)
	assert.Equal(t, repoAddr.Hex(), proposal.Operations[0].Transactions[0].To)
	assert.Equal(t, []byte{0x02}, proposal.Operations[0].Transactions[1].Data)
	assert.JSONEq(t, `{"value": 0}`, string(proposal.Operations[0].Transactions[0].AdditionalFields))
}

func TestTimelockProposal_Invalid(t *testing.T) {
	t.Parallel()

	valid := ProposalConfig{
		ChainSelector:   chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector,
		TimelockAddress: common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		MCMAddress:      common.HexToAddress("0x00000000000000000000000000000000000000e2"),
		ValidUntil:      time.Now().Add(time.Hour),
	}
	action := Action{To: repoAddr, Value: new(big.Int), Description: "upgrade"}

	tests := []struct {
		name    string
		cfg     func(ProposalConfig) ProposalConfig
		actions []Action
		wantErr string
	}{
		{
			name:    "no selector",
			cfg:     func(c ProposalConfig) ProposalConfig { c.ChainSelector = 0; return c },
			actions: []Action{action},
			wantErr: "chain selector is required",
		},
		{
			name:    "no timelock",
			cfg:     func(c ProposalConfig) ProposalConfig { c.TimelockAddress = common.Address{}; return c },
			actions: []Action{action},
			wantErr: "timelock address is required",
		},
		{
			name:    "no actions",
			cfg:     func(c ProposalConfig) ProposalConfig { return c },
			wantErr: "no queued actions to propose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := TimelockProposal(tt.cfg(valid), tt.actions)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
