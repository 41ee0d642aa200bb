// Package network resolves the addresses of the framework contracts a plugin is published against.
//
// Deployment network names (as used for RPCs and the plugin info file) map to framework network
// keys through a static table. Local test networks fork a live network, so they resolve to the
// fork network's addresses instead.
//
// The manifest is not bundled. Operators generate it from the activeContractsList export of the
// @aragon/osx-ethers package matching the deployed framework release, keeping the networks they
// publish to and the PluginRepoFactory, PluginRepoRegistry and PlaceholderSetup entries:
//
//	networks:
//	  mainnet:
//	    PluginRepoFactory: "0x..."
//	    PluginRepoRegistry: "0x..."
//	    PlaceholderSetup: "0x..."
package network

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

var (
	ErrUnknownNetwork  = errors.New("unknown network")
	ErrUnknownContract = errors.New("unknown contract")
)

// Framework contract names as they appear in the manifest.
const (
	PluginRepoFactory  = "PluginRepoFactory"
	PluginRepoRegistry = "PluginRepoRegistry"
	PlaceholderSetup   = "PlaceholderSetup"
)

// DefaultForkNetwork is the framework network local networks fork when none is configured.
const DefaultForkNetwork = "mainnet"

// networkNameMapping maps deployment network names to framework network keys.
var networkNameMapping = map[string]string{
	"mainnet":        "mainnet",
	"goerli":         "goerli",
	"sepolia":        "sepolia",
	"polygon":        "polygon",
	"polygonMumbai":  "mumbai",
	"base":           "base",
	"baseGoerli":     "baseGoerli",
	"arbitrum":       "arbitrum",
	"arbitrumGoerli": "arbitrumGoerli",
}

var localNetworks = []string{"localhost", "hardhat", "coverage"}

// IsLocal reports whether network is a local test network.
func IsLocal(network string) bool {
	return slices.Contains(localNetworks, network)
}

// Networks returns the deployment network names with a framework mapping, sorted.
func Networks() []string {
	return slices.Sorted(maps.Keys(networkNameMapping))
}

// Manifest is the YAML representation of the framework contract addresses.
type Manifest struct {
	// Networks maps a framework network key to contract names and their addresses.
	Networks map[string]map[string]string `yaml:"networks"`
}

// Registry holds the well-known framework contract addresses per framework network.
type Registry struct {
	contracts   map[string]map[string]string
	forkNetwork string
	lggr        logger.Logger
}

type RegistryOption func(*Registry)

// WithForkNetwork sets the framework network local networks resolve to. Empty keeps the default.
func WithForkNetwork(name string) RegistryOption {
	return func(r *Registry) {
		if name != "" {
			r.forkNetwork = name
		}
	}
}

func WithLogger(lggr logger.Logger) RegistryOption {
	return func(r *Registry) {
		r.lggr = lggr
	}
}

func NewRegistry(m Manifest, opts ...RegistryOption) *Registry {
	r := &Registry{
		contracts:   m.Networks,
		forkNetwork: DefaultForkNetwork,
		lggr:        logger.Nop(),
	}
	if r.contracts == nil {
		r.contracts = map[string]map[string]string{}
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Load reads a manifest file and returns its registry.
func Load(path string, opts ...RegistryOption) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read contracts manifest: %w "+
			"(generate it from activeContractsList of @aragon/osx-ethers)", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contracts manifest: %w", err)
	}

	var m Manifest
	if err = yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contracts manifest %s: %w", path, err)
	}

	return NewRegistry(m, opts...), nil
}

// ForkNetwork returns the framework network local networks resolve to.
func (r *Registry) ForkNetwork() string {
	return r.forkNetwork
}

// FrameworkNetwork returns the framework network key whose addresses network uses.
func (r *Registry) FrameworkNetwork(network string) (string, error) {
	if IsLocal(network) {
		return r.forkNetwork, nil
	}

	key, ok := networkNameMapping[network]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}

	return key, nil
}

// ContractAddress returns the address of a framework contract as deployed for network.
func (r *Registry) ContractAddress(network, contract string) (common.Address, error) {
	key, err := r.FrameworkNetwork(network)
	if err != nil {
		return common.Address{}, err
	}

	contracts, ok := r.contracts[key]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no framework contracts for %q", ErrUnknownNetwork, key)
	}

	raw, ok := contracts[contract]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on %q", ErrUnknownContract, contract, key)
	}

	addr, err := evm.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s on %q: %w", ErrUnknownContract, contract, key, err)
	}

	if IsLocal(network) {
		r.lggr.Infof("Using the %q %s address (%s) for deployment testing on network %q",
			key, contract, addr.Hex(), network)
	} else {
		r.lggr.Infof("Using the %s %s address (%s) for deployment", key, contract, addr.Hex())
	}

	return addr, nil
}

func (r *Registry) PluginRepoFactoryAddress(network string) (common.Address, error) {
	return r.ContractAddress(network, PluginRepoFactory)
}

func (r *Registry) PluginRepoRegistryAddress(network string) (common.Address, error) {
	return r.ContractAddress(network, PluginRepoRegistry)
}

func (r *Registry) PlaceholderSetupAddress(network string) (common.Address, error) {
	return r.ContractAddress(network, PlaceholderSetup)
}
