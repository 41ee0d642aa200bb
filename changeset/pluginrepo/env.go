// Package pluginrepo deploys the plugin setup, creates the plugin's repo, publishes versions into
// it and queues repo upgrades for the managing DAO.
//
// Every on-chain step is an operation, so a run recorded by a FileReporter can be resumed without
// sending the same transaction twice.
package pluginrepo

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/deployment"
	"github.com/aragon/admin-plugin-deployments/deployment/ipfs"
	"github.com/aragon/admin-plugin-deployments/deployment/plugininfo"
	"github.com/aragon/admin-plugin-deployments/deployment/queue"
	"github.com/aragon/admin-plugin-deployments/engine/config/network"
	"github.com/aragon/admin-plugin-deployments/engine/config/settings"
	"github.com/aragon/admin-plugin-deployments/operations"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

var (
	ErrUnsortedVersions            = errors.New("versions are not sorted in ascending release order starting at 1")
	ErrBuildConflict               = errors.New("build already exists with a different plugin setup")
	ErrVersionCreatedEventNotFound = errors.New("failed to get VersionCreated event log")
	ErrVersionMismatch             = errors.New("latest version of the release is behind the published version")
	ErrArtifactChanged             = errors.New("artifact changed since the deployment was planned")
)

// Repo is the part of a PluginRepo used to publish versions.
type Repo interface {
	Address() common.Address
	BuildCount(opts *bind.CallOpts, release uint8) (uint16, error)
	GetVersion(opts *bind.CallOpts, tag osx.VersionTag) (osx.Version, error)
	GetLatestVersion(opts *bind.CallOpts, release uint8) (osx.Version, error)
	CreateVersion(
		opts *bind.TransactOpts, release uint8, pluginSetup common.Address, buildMetadata, releaseMetadata []byte,
	) (*types.Transaction, error)
	ParseVersionCreated(receipt *types.Receipt) (*osx.VersionCreated, error)
}

// RepoFactory creates plugin repos.
type RepoFactory interface {
	Address() common.Address
	PluginRepoBase(opts *bind.CallOpts) (common.Address, error)
	CreatePluginRepo(opts *bind.TransactOpts, subdomain string, initialOwner common.Address) (*types.Transaction, error)
}

// RepoRegistry lists the repos created by the factory.
type RepoRegistry interface {
	Address() common.Address
	Entries(opts *bind.CallOpts, repo common.Address) (bool, error)
	ParsePluginRepoRegistered(receipt *types.Receipt) (*osx.PluginRepoRegistered, error)
}

// SetupReader reads the implementation a plugin setup installs.
type SetupReader interface {
	Implementation(opts *bind.CallOpts) (common.Address, error)
}

// Binder returns the contract bindings used by the changesets.
type Binder interface {
	PluginRepo(addr common.Address) Repo
	PluginRepoFactory(addr common.Address) RepoFactory
	PluginRepoRegistry(addr common.Address) RepoRegistry
	PluginSetup(addr common.Address) SetupReader
}

// OnchainBinder binds the contracts on a live chain.
type OnchainBinder struct {
	Backend bind.ContractBackend
}

func (b OnchainBinder) PluginRepo(addr common.Address) Repo {
	return osx.NewPluginRepo(addr, b.Backend)
}

func (b OnchainBinder) PluginRepoFactory(addr common.Address) RepoFactory {
	return osx.NewPluginRepoFactory(addr, b.Backend)
}

func (b OnchainBinder) PluginRepoRegistry(addr common.Address) RepoRegistry {
	return osx.NewPluginRepoRegistry(addr, b.Backend)
}

func (b OnchainBinder) PluginSetup(addr common.Address) SetupReader {
	return osx.NewPluginSetup(addr, b.Backend)
}

// Env is everything the changesets act on for one network.
type Env struct {
	Logger     logger.Logger
	GetContext func() context.Context
	Reporter   operations.Reporter

	Chain    evm.Chain
	Binder   Binder
	Settings *settings.Settings

	Contracts   *network.Registry
	PluginInfo  *plugininfo.Store
	Deployments *deployment.Store
	Queue       *queue.Queue
	Uploader    ipfs.Uploader
}

// Network returns the name of the network the env targets.
func (e Env) Network() string {
	return e.Chain.Network
}

func (e Env) bundle() operations.Bundle {
	return operations.NewBundle(e.GetContext, e.Logger, e.Reporter)
}

func (e Env) callOpts() *bind.CallOpts {
	return &bind.CallOpts{Context: e.GetContext()}
}

func (e Env) binder() Binder {
	if e.Binder != nil {
		return e.Binder
	}

	return OnchainBinder{Backend: e.Chain.Client}
}

// transactOpts returns a copy of the deployer key bound to ctx.
func transactOpts(ctx context.Context, chain evm.Chain) (*bind.TransactOpts, error) {
	if chain.DeployerKey == nil {
		return nil, errors.New("no deployer key configured for " + chain.String())
	}

	opts := *chain.DeployerKey
	opts.Context = ctx

	return &opts, nil
}
