package pluginrepo

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/deployment"
	"github.com/aragon/admin-plugin-deployments/deployment/plugininfo"
	"github.com/aragon/admin-plugin-deployments/deployment/queue"
	"github.com/aragon/admin-plugin-deployments/engine/config/network"
	"github.com/aragon/admin-plugin-deployments/engine/config/settings"
	"github.com/aragon/admin-plugin-deployments/operations"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

var (
	deployer         = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	repoAddr         = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	factoryAddr      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	registryAddr     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	placeholderAddr  = common.HexToAddress("0x0000000000000000000000000000000000000003")
	setupAddr        = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	otherSetupAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	implAddr         = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	repoBaseAddr     = common.HexToAddress("0x00000000000000000000000000000000000000e4")
	firstBlockNumber = uint64(100)
)

// fakeChain mines every transaction in its own block.
type fakeChain struct {
	nonce  uint64
	blocks map[common.Hash]uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{blocks: map[common.Hash]uint64{}}
}

func (c *fakeChain) newTx() *types.Transaction {
	tx := types.NewTx(&types.LegacyTx{Nonce: c.nonce, Gas: 21000, GasPrice: big.NewInt(1)})
	c.blocks[tx.Hash()] = firstBlockNumber + c.nonce
	c.nonce++

	return tx
}

func (c *fakeChain) confirm(tx *types.Transaction) (*types.Receipt, error) {
	block, ok := c.blocks[tx.Hash()]
	if !ok {
		return nil, fmt.Errorf("unknown tx %s", tx.Hash().Hex())
	}

	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(block),
	}, nil
}

func (c *fakeChain) toChain() evm.Chain {
	return evm.Chain{
		Network:     "sepolia",
		ChainID:     big.NewInt(11155111),
		DeployerKey: &bind.TransactOpts{From: deployer},
		Confirm:     c.confirm,
	}
}

type createVersionCall struct {
	Release         uint8
	PluginSetup     common.Address
	BuildMetadata   string
	ReleaseMetadata string
}

// fakeRepo keeps builds in memory the way a PluginRepo does.
type fakeRepo struct {
	chain  *fakeChain
	builds map[uint8][]common.Address
	events map[common.Hash]*osx.VersionCreated
	calls  []createVersionCall

	// dropEvents makes created versions emit no event.
	dropEvents bool
	readErr    error
	// latest overrides the tag getLatestVersion reports.
	latest *osx.VersionTag
}

func newFakeRepo(chain *fakeChain) *fakeRepo {
	return &fakeRepo{
		chain:  chain,
		builds: map[uint8][]common.Address{},
		events: map[common.Hash]*osx.VersionCreated{},
	}
}

func (r *fakeRepo) Address() common.Address {
	return repoAddr
}

func (r *fakeRepo) BuildCount(_ *bind.CallOpts, release uint8) (uint16, error) {
	if r.readErr != nil {
		return 0, r.readErr
	}

	return uint16(len(r.builds[release])), nil
}

func (r *fakeRepo) GetVersion(_ *bind.CallOpts, tag osx.VersionTag) (osx.Version, error) {
	builds := r.builds[tag.Release]
	if tag.Build == 0 || int(tag.Build) > len(builds) {
		return osx.Version{}, errors.New("execution reverted: VersionHashDoesNotExist")
	}

	return osx.Version{Tag: tag, PluginSetup: builds[tag.Build-1]}, nil
}

func (r *fakeRepo) GetLatestVersion(opts *bind.CallOpts, release uint8) (osx.Version, error) {
	v, err := r.GetVersion(opts, osx.VersionTag{Release: release, Build: uint16(len(r.builds[release]))})
	if err == nil && r.latest != nil {
		v.Tag = *r.latest
	}

	return v, err
}

func (r *fakeRepo) CreateVersion(
	_ *bind.TransactOpts, release uint8, pluginSetup common.Address, buildMetadata, releaseMetadata []byte,
) (*types.Transaction, error) {
	r.calls = append(r.calls, createVersionCall{
		Release:         release,
		PluginSetup:     pluginSetup,
		BuildMetadata:   string(buildMetadata),
		ReleaseMetadata: string(releaseMetadata),
	})
	r.builds[release] = append(r.builds[release], pluginSetup)

	tx := r.chain.newTx()
	if !r.dropEvents {
		r.events[tx.Hash()] = &osx.VersionCreated{
			Release:       release,
			Build:         uint16(len(r.builds[release])),
			PluginSetup:   pluginSetup,
			BuildMetadata: buildMetadata,
		}
	}

	return tx, nil
}

func (r *fakeRepo) ParseVersionCreated(receipt *types.Receipt) (*osx.VersionCreated, error) {
	ev, ok := r.events[receipt.TxHash]
	if !ok {
		return nil, osx.ErrEventNotFound
	}

	return ev, nil
}

type fakeFactory struct {
	chain    *fakeChain
	registry *fakeRegistry
	owners   map[string]common.Address
}

func (f *fakeFactory) Address() common.Address {
	return factoryAddr
}

func (f *fakeFactory) PluginRepoBase(*bind.CallOpts) (common.Address, error) {
	return repoBaseAddr, nil
}

func (f *fakeFactory) CreatePluginRepo(_ *bind.TransactOpts, subdomain string, owner common.Address) (*types.Transaction, error) {
	if _, ok := f.owners[subdomain]; ok {
		return nil, errors.New("execution reverted: ENSNodeNotAvailable")
	}
	f.owners[subdomain] = owner

	tx := f.chain.newTx()
	f.registry.events[tx.Hash()] = &osx.PluginRepoRegistered{Subdomain: subdomain, PluginRepo: repoAddr}

	return tx, nil
}

type fakeRegistry struct {
	events map[common.Hash]*osx.PluginRepoRegistered
}

func (r *fakeRegistry) Address() common.Address {
	return registryAddr
}

func (r *fakeRegistry) Entries(_ *bind.CallOpts, repo common.Address) (bool, error) {
	for _, ev := range r.events {
		if ev.PluginRepo == repo {
			return true, nil
		}
	}

	return false, nil
}

func (r *fakeRegistry) ParsePluginRepoRegistered(receipt *types.Receipt) (*osx.PluginRepoRegistered, error) {
	ev, ok := r.events[receipt.TxHash]
	if !ok {
		return nil, osx.ErrEventNotFound
	}

	return ev, nil
}

type fakeSetup struct {
	impl  common.Address
	fails int
	calls int
}

func (s *fakeSetup) Implementation(*bind.CallOpts) (common.Address, error) {
	s.calls++
	if s.fails > 0 {
		s.fails--
		return common.Address{}, errors.New("rpc unavailable")
	}

	return s.impl, nil
}

type fakeBinder struct {
	repo     *fakeRepo
	factory  *fakeFactory
	registry *fakeRegistry
	setup    *fakeSetup
}

func (b fakeBinder) PluginRepo(common.Address) Repo { return b.repo }
func (b fakeBinder) PluginRepoFactory(common.Address) RepoFactory { return b.factory }
func (b fakeBinder) PluginRepoRegistry(common.Address) RepoRegistry { return b.registry }
func (b fakeBinder) PluginSetup(common.Address) SetupReader { return b.setup }

// fakeUploader returns sequential content identifiers.
type fakeUploader struct {
	uploads [][]byte
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, data []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads = append(u.uploads, data)

	return fmt.Sprintf("Qm%d", len(u.uploads)), nil
}

type testEnv struct {
	Env
	chain    *fakeChain
	binder   fakeBinder
	uploader *fakeUploader
	dir      string
}

const testSettings = `plugin_contract_name = "Admin"
plugin_setup_contract_name = "AdminSetup"
plugin_repo_ens_subdomain = "admin"
setup_artifact = "AdminSetup.json"

[version]
release = %d
build = %d

[metadata]
release = "release-metadata.json"
build = "build-metadata.json"
`

func newTestEnv(t *testing.T, release uint8, build uint16) *testEnv {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin-settings.toml"),
		fmt.Appendf(nil, testSettings, release, build), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "release-metadata.json"),
		[]byte("{\n  \"name\": \"Admin\"\n}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build-metadata.json"),
		[]byte("{\n  \"ui\": {}\n}\n"), 0o600))

	s, err := settings.Load(filepath.Join(dir, "plugin-settings.toml"))
	require.NoError(t, err)

	lggr := logger.Test(t)
	chain := newFakeChain()
	registry := &fakeRegistry{events: map[common.Hash]*osx.PluginRepoRegistered{}}
	binder := fakeBinder{
		repo:     newFakeRepo(chain),
		factory:  &fakeFactory{chain: chain, registry: registry, owners: map[string]common.Address{}},
		registry: registry,
		setup:    &fakeSetup{impl: implAddr},
	}
	uploader := &fakeUploader{}

	contracts := network.NewRegistry(network.Manifest{Networks: map[string]map[string]string{
		"sepolia": {
			network.PluginRepoFactory:  factoryAddr.Hex(),
			network.PluginRepoRegistry: registryAddr.Hex(),
			network.PlaceholderSetup:   placeholderAddr.Hex(),
		},
	}}, network.WithLogger(lggr))

	return &testEnv{
		Env: Env{
			Logger:      lggr,
			GetContext:  t.Context,
			Reporter:    operations.NewMemoryReporter(),
			Chain:       chain.toChain(),
			Binder:      binder,
			Settings:    s,
			Contracts:   contracts,
			PluginInfo:  plugininfo.NewStore(dir, lggr),
			Deployments: deployment.NewStore(filepath.Join(dir, "deployments")),
			Queue:       queue.New(dir, "sepolia", lggr),
			Uploader:    uploader,
		},
		chain:    chain,
		binder:   binder,
		uploader: uploader,
		dir:      dir,
	}
}

// withRepo records the repo and the setup deployment, as CreateRepo and DeploySetup do.
func (e *testEnv) withRepo(t *testing.T) *testEnv {
	t.Helper()

	require.NoError(t, e.PluginInfo.AddDeployedRepo("sepolia", "admin", repoAddr, nil, 42))
	require.NoError(t, e.Deployments.Save("sepolia", deployment.Deployment{
		Name:        "AdminSetup",
		Address:     setupAddr,
		BlockNumber: 40,
	}))

	return e
}
