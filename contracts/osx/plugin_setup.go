package osx

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PluginSetup binds the implementation() getter every plugin setup exposes.
type PluginSetup struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewPluginSetup(address common.Address, backend bind.ContractCaller) *PluginSetup {
	return &PluginSetup{
		address:  address,
		contract: bind.NewBoundContract(address, *PluginSetupABI, backend, nil, nil),
	}
}

func (s *PluginSetup) Address() common.Address {
	return s.address
}

// Implementation returns the plugin implementation the setup clones or proxies.
func (s *PluginSetup) Implementation(opts *bind.CallOpts) (common.Address, error) {
	return callAddress(s.contract, opts, "implementation")
}
