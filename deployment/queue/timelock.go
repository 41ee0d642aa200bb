package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/smartcontractkit/mcms"
	"github.com/smartcontractkit/mcms/types"
)

// ProposalConfig describes the MCMS timelock that schedules the queued actions.
type ProposalConfig struct {
	ChainSelector   uint64
	TimelockAddress common.Address
	MCMAddress      common.Address
	Delay           time.Duration
	ValidUntil      time.Time
	Description     string
}

func (c ProposalConfig) validate() error {
	if c.ChainSelector == 0 {
		return errors.New("chain selector is required")
	}
	if c.TimelockAddress == (common.Address{}) {
		return errors.New("timelock address is required")
	}
	if c.MCMAddress == (common.Address{}) {
		return errors.New("mcm address is required")
	}

	return nil
}

// TimelockProposal builds a schedule proposal carrying actions as a single batch, for managing
// authorities that execute through an MCMS timelock.
func TimelockProposal(cfg ProposalConfig, actions []Action) (*mcms.TimelockProposal, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid proposal config: %w", err)
	}
	if len(actions) == 0 {
		return nil, errors.New("no queued actions to propose")
	}

	selector := types.ChainSelector(cfg.ChainSelector)
	txs := make([]types.Transaction, 0, len(actions))
	for _, a := range actions {
		fields, err := json.Marshal(struct {
			Value json.Number `json:"value"`
		}{json.Number(a.Value.String())})
		if err != nil {
			return nil, err
		}

		txs = append(txs, types.Transaction{
			OperationMetadata: types.OperationMetadata{
				ContractType: "PluginRepo",
				Tags:         []string{a.ID},
			},
			To:               a.To.Hex(),
			Data:             a.Data,
			AdditionalFields: fields,
		})
	}

	description := cfg.Description
	if description == "" {
		description = actions[0].Description
	}

	proposal, err := mcms.NewTimelockProposalBuilder().
		SetVersion("v1").
		SetValidUntil(uint32(cfg.ValidUntil.Unix())). //nolint:gosec // G115: unix seconds fit until 2106
		SetDescription(description).
		SetAction(types.TimelockActionSchedule).
		SetDelay(types.NewDuration(cfg.Delay)).
		AddTimelockAddress(selector, cfg.TimelockAddress.Hex()).
		AddChainMetadata(selector, types.ChainMetadata{MCMAddress: cfg.MCMAddress.Hex()}).
		AddOperation(types.BatchOperation{
			ChainSelector: selector,
			Transactions:  txs,
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build timelock proposal: %w", err)
	}

	return proposal, nil
}

// WriteTimelockProposal writes the proposal for the queued actions to w.
func (q *Queue) WriteTimelockProposal(w io.Writer, cfg ProposalConfig) error {
	actions, err := q.Actions()
	if err != nil {
		return err
	}

	proposal, err := TimelockProposal(cfg, actions)
	if err != nil {
		return err
	}

	if err = mcms.WriteTimelockProposal(w, proposal); err != nil {
		return fmt.Errorf("failed to write timelock proposal: %w", err)
	}
	q.lggr.Infow("Exported managing DAO actions as timelock proposal",
		"network", q.network, "actions", len(actions))

	return nil
}
