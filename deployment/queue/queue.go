// Package queue keeps the side files of work left to others: contracts awaiting source
// verification and actions awaiting execution by the managing DAO.
package queue

import (
	"fmt"
	"math/big"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/segmentio/ksuid"

	"github.com/aragon/admin-plugin-deployments/internal/jsonutils"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

const (
	VerificationFileName = "verification-queue.json"
	ActionsFileName      = "managing-dao-actions.json"
)

// VerificationEntry is a contract to verify with its constructor args.
type VerificationEntry struct {
	ID      string         `json:"id"`
	Address common.Address `json:"address"`
	Args    []any          `json:"args"`
}

// Action is a call for the managing DAO to execute.
type Action struct {
	ID          string         `json:"id"`
	To          common.Address `json:"to"`
	Data        hexutil.Bytes  `json:"data"`
	Value       *big.Int       `json:"value"`
	Description string         `json:"description"`
}

// Queue appends to the side files of one network. Entries are never removed or rewritten.
type Queue struct {
	dir     string
	network string
	lggr    logger.Logger
}

func New(dir, network string, lggr logger.Logger) *Queue {
	return &Queue{dir: dir, network: network, lggr: lggr}
}

func (q *Queue) Network() string {
	return q.network
}

func (q *Queue) verificationPath() string {
	return filepath.Join(q.dir, q.network, VerificationFileName)
}

func (q *Queue) actionsPath() string {
	return filepath.Join(q.dir, q.network, ActionsFileName)
}

// AddVerification queues address for verification.
func (q *Queue) AddVerification(address common.Address, args ...any) (VerificationEntry, error) {
	if args == nil {
		args = []any{}
	}
	entry := VerificationEntry{
		ID:      ksuid.New().String(),
		Address: address,
		Args:    args,
	}

	if err := appendEntry(q.verificationPath(), entry); err != nil {
		return VerificationEntry{}, err
	}
	q.lggr.Infow("Queued contract verification", "network", q.network, "address", address.Hex(), "id", entry.ID)

	return entry, nil
}

// Verifications returns the queued verification entries in insertion order.
func (q *Queue) Verifications() ([]VerificationEntry, error) {
	return load[VerificationEntry](q.verificationPath())
}

// AddAction queues an action for the managing DAO. A nil value is stored as zero.
func (q *Queue) AddAction(to common.Address, data []byte, value *big.Int, description string) (Action, error) {
	if value == nil {
		value = new(big.Int)
	}
	if data == nil {
		data = []byte{}
	}
	action := Action{
		ID:          ksuid.New().String(),
		To:          to,
		Data:        data,
		Value:       value,
		Description: description,
	}

	if err := appendEntry(q.actionsPath(), action); err != nil {
		return Action{}, err
	}
	q.lggr.Infow("Queued managing DAO action", "network", q.network, "to", to.Hex(), "description", description, "id", action.ID)

	return action, nil
}

// Actions returns the queued managing DAO actions in insertion order.
func (q *Queue) Actions() ([]Action, error) {
	return load[Action](q.actionsPath())
}

func load[T any](path string) ([]T, error) {
	entries, _, err := jsonutils.LoadIfExists[[]T](path)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []T{}
	}

	return entries, nil
}

func appendEntry[T any](path string, entry T) error {
	entries, err := load[T](path)
	if err != nil {
		return err
	}

	if err = jsonutils.WriteFile(path, append(entries, entry)); err != nil {
		return fmt.Errorf("failed to write queue %s: %w", path, err)
	}

	return nil
}
