package osx

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PluginRepoFactory binds the framework's PluginRepoFactory.
type PluginRepoFactory struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewPluginRepoFactory(address common.Address, backend bind.ContractBackend) *PluginRepoFactory {
	return &PluginRepoFactory{
		address:  address,
		contract: bind.NewBoundContract(address, *PluginRepoFactoryABI, backend, backend, backend),
	}
}

func (f *PluginRepoFactory) Address() common.Address {
	return f.address
}

// PluginRepoBase returns the implementation new repo proxies point to.
func (f *PluginRepoFactory) PluginRepoBase(opts *bind.CallOpts) (common.Address, error) {
	return callAddress(f.contract, opts, "pluginRepoBase")
}

// PluginRepoRegistry returns the registry the factory registers repos in.
func (f *PluginRepoFactory) PluginRepoRegistry(opts *bind.CallOpts) (common.Address, error) {
	return callAddress(f.contract, opts, "pluginRepoRegistry")
}

// CreatePluginRepo sends createPluginRepo(subdomain, initialOwner).
func (f *PluginRepoFactory) CreatePluginRepo(
	opts *bind.TransactOpts, subdomain string, initialOwner common.Address,
) (*types.Transaction, error) {
	return f.contract.Transact(opts, "createPluginRepo", subdomain, initialOwner)
}

// PluginRepoRegistered is emitted by the registry when the factory creates a repo.
type PluginRepoRegistered struct {
	Subdomain  string
	PluginRepo common.Address
	Raw        types.Log
}

// PluginRepoRegistry binds the framework's PluginRepoRegistry.
type PluginRepoRegistry struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewPluginRepoRegistry(address common.Address, backend bind.ContractBackend) *PluginRepoRegistry {
	return &PluginRepoRegistry{
		address:  address,
		contract: bind.NewBoundContract(address, *PluginRepoRegistryABI, backend, backend, backend),
	}
}

func (r *PluginRepoRegistry) Address() common.Address {
	return r.address
}

// Entries reports whether repo is registered.
func (r *PluginRepoRegistry) Entries(opts *bind.CallOpts, repo common.Address) (bool, error) {
	var out []any
	if err := r.contract.Call(opts, &out, "entries", repo); err != nil {
		return false, err
	}

	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("entries: expected bool, got %T", out[0])
	}

	return ok, nil
}

// ParsePluginRepoRegistered returns the first PluginRepoRegistered event this registry emitted in
// receipt.
func (r *PluginRepoRegistry) ParsePluginRepoRegistered(receipt *types.Receipt) (*PluginRepoRegistered, error) {
	if receipt == nil {
		return nil, fmt.Errorf("PluginRepoRegistered: nil receipt: %w", ErrEventNotFound)
	}

	id := PluginRepoRegistryABI.Events["PluginRepoRegistered"].ID
	for _, l := range receipt.Logs {
		if l == nil || l.Address != r.address || len(l.Topics) == 0 || l.Topics[0] != id {
			continue
		}

		ev := new(PluginRepoRegistered)
		if err := r.contract.UnpackLog(ev, "PluginRepoRegistered", *l); err != nil {
			return nil, fmt.Errorf("failed to unpack PluginRepoRegistered: %w", err)
		}
		ev.Raw = *l

		return ev, nil
	}

	return nil, fmt.Errorf("PluginRepoRegistered in tx %s: %w", receipt.TxHash.Hex(), ErrEventNotFound)
}

func callAddress(c *bind.BoundContract, opts *bind.CallOpts, method string, args ...any) (common.Address, error) {
	var out []any
	if err := c.Call(opts, &out, method, args...); err != nil {
		return common.Address{}, err
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: expected address, got %T", method, out[0])
	}

	return addr, nil
}
