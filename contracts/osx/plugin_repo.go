package osx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrEventNotFound is returned when a receipt does not contain the expected event.
var ErrEventNotFound = errors.New("event not found in receipt")

// VersionTag identifies a build within a release. Both numbers start at 1.
type VersionTag struct {
	Release uint8  `json:"release"`
	Build   uint16 `json:"build"`
}

func (t VersionTag) String() string {
	return fmt.Sprintf("v%d.%d", t.Release, t.Build)
}

// Version is a published build as returned by the repo.
type Version struct {
	Tag           VersionTag
	PluginSetup   common.Address
	BuildMetadata []byte
}

// VersionCreated is the event a repo emits for every new build.
type VersionCreated struct {
	Release       uint8
	Build         uint16
	PluginSetup   common.Address
	BuildMetadata []byte
	Raw           types.Log
}

// PluginRepo binds a deployed PluginRepo proxy.
type PluginRepo struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewPluginRepo(address common.Address, backend bind.ContractBackend) *PluginRepo {
	return &PluginRepo{
		address:  address,
		contract: bind.NewBoundContract(address, *PluginRepoABI, backend, backend, backend),
	}
}

func (r *PluginRepo) Address() common.Address {
	return r.address
}

// BuildCount returns the number of builds published in release.
func (r *PluginRepo) BuildCount(opts *bind.CallOpts, release uint8) (uint16, error) {
	var out []any
	if err := r.contract.Call(opts, &out, "buildCount", release); err != nil {
		return 0, err
	}

	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("buildCount: expected *big.Int, got %T", out[0])
	}
	if !count.IsUint64() || count.Uint64() > 0xffff {
		return 0, fmt.Errorf("buildCount: %s does not fit a build number", count)
	}

	return uint16(count.Uint64()), nil
}

// GetVersion returns the build with the given tag. The call reverts for unknown tags.
func (r *PluginRepo) GetVersion(opts *bind.CallOpts, tag VersionTag) (Version, error) {
	return r.callVersion(opts, "getVersion", tag)
}

// GetLatestVersion returns the newest build of release.
func (r *PluginRepo) GetLatestVersion(opts *bind.CallOpts, release uint8) (Version, error) {
	return r.callVersion(opts, "getLatestVersion", release)
}

func (r *PluginRepo) callVersion(opts *bind.CallOpts, method string, arg any) (Version, error) {
	var out []any
	if err := r.contract.Call(opts, &out, method, arg); err != nil {
		return Version{}, err
	}

	v, err := toVersion(out[0])
	if err != nil {
		return Version{}, fmt.Errorf("%s: %w", method, err)
	}

	return v, nil
}

// toVersion converts an unpacked version tuple. abi.ConvertType panics on a shape mismatch.
func toVersion(in any) (v Version, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected result %T: %v", in, r)
		}
	}()

	converted, ok := abi.ConvertType(in, new(Version)).(*Version)
	if !ok {
		return Version{}, fmt.Errorf("unexpected result %T", in)
	}

	return *converted, nil
}

// IsGranted reports whether who holds permissionID on where, as managed by the repo.
func (r *PluginRepo) IsGranted(
	opts *bind.CallOpts, where, who common.Address, permissionID [32]byte, data []byte,
) (bool, error) {
	var out []any
	if err := r.contract.Call(opts, &out, "isGranted", where, who, permissionID, data); err != nil {
		return false, err
	}

	granted, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isGranted: expected bool, got %T", out[0])
	}

	return granted, nil
}

// CreateVersion sends createVersion. The repo assigns the next build number of release.
func (r *PluginRepo) CreateVersion(
	opts *bind.TransactOpts, release uint8, pluginSetup common.Address, buildMetadata, releaseMetadata []byte,
) (*types.Transaction, error) {
	return r.contract.Transact(opts, "createVersion", release, pluginSetup, nonNil(buildMetadata), nonNil(releaseMetadata))
}

// ParseVersionCreated returns the first VersionCreated event this repo emitted in receipt.
func (r *PluginRepo) ParseVersionCreated(receipt *types.Receipt) (*VersionCreated, error) {
	if receipt == nil {
		return nil, fmt.Errorf("VersionCreated: nil receipt: %w", ErrEventNotFound)
	}

	id := PluginRepoABI.Events["VersionCreated"].ID
	for _, l := range receipt.Logs {
		if l == nil || l.Address != r.address || len(l.Topics) == 0 || l.Topics[0] != id {
			continue
		}

		ev := new(VersionCreated)
		if err := r.contract.UnpackLog(ev, "VersionCreated", *l); err != nil {
			return nil, fmt.Errorf("failed to unpack VersionCreated: %w", err)
		}
		ev.Raw = *l

		return ev, nil
	}

	return nil, fmt.Errorf("VersionCreated in tx %s: %w", receipt.TxHash.Hex(), ErrEventNotFound)
}

// PackInitialize encodes initialize(initialOwner), the call a repo proxy is constructed with.
func PackInitialize(initialOwner common.Address) ([]byte, error) {
	return PluginRepoABI.Pack("initialize", initialOwner)
}

// PackUpgradeTo encodes upgradeTo(newImplementation).
func PackUpgradeTo(newImplementation common.Address) ([]byte, error) {
	return PluginRepoABI.Pack("upgradeTo", newImplementation)
}

// PackUpgradeToAndCall encodes upgradeToAndCall(newImplementation, data).
func PackUpgradeToAndCall(newImplementation common.Address, data []byte) ([]byte, error) {
	return PluginRepoABI.Pack("upgradeToAndCall", newImplementation, nonNil(data))
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}

	return b
}
