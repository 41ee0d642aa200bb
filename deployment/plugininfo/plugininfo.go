// Package plugininfo maintains plugin-info.json, the per-network record of the plugin repo and
// every version published into it.
package plugininfo

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/engine/config/network"
	"github.com/aragon/admin-plugin-deployments/internal/jsonutils"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

const (
	FileName        = "plugin-info.json"
	TestingFileName = "plugin-info-testing.json"
)

// ContractInfo describes a deployed contract.
type ContractInfo struct {
	Name                    string `json:"name"`
	Address                 string `json:"address"`
	Args                    []any  `json:"args"`
	BlockNumberOfDeployment uint64 `json:"blockNumberOfDeployment"`
}

// Build is a published build of a release.
type Build struct {
	Setup                    ContractInfo   `json:"setup"`
	Implementation           ContractInfo   `json:"implementation"`
	Helpers                  []ContractInfo `json:"helpers"`
	BuildMetadataURI         string         `json:"buildMetadataURI"`
	BlockNumberOfPublication uint64         `json:"blockNumberOfPublication"`
}

type Release struct {
	ReleaseMetadataURI string           `json:"releaseMetadataURI"`
	Builds             map[uint16]Build `json:"builds"`
}

// NetworkInfo is the record of one network. Fields are empty until the repo is deployed.
type NetworkInfo struct {
	Repo                    string             `json:"repo,omitempty"`
	Address                 string             `json:"address,omitempty"`
	Args                    []any              `json:"args"`
	BlockNumberOfDeployment uint64             `json:"blockNumberOfDeployment"`
	Releases                map[uint8]*Release `json:"releases,omitempty"`
}

// RepoAddress returns the deployed repo address, or an error when the repo is not deployed.
func (n *NetworkInfo) RepoAddress() (common.Address, error) {
	if n == nil || n.Address == "" {
		return common.Address{}, fmt.Errorf("no plugin repo recorded")
	}
	if !common.IsHexAddress(n.Address) {
		return common.Address{}, fmt.Errorf("invalid plugin repo address %q", n.Address)
	}

	return common.HexToAddress(n.Address), nil
}

// Info is the content of a plugin info file keyed by network name.
type Info map[string]*NetworkInfo

// MetadataURIs are the content URIs of a version's metadata.
type MetadataURIs struct {
	Release string
	Build   string
}

// Store reads and updates the plugin info files inside a directory. Updates only touch the keys
// they set: other networks, unknown keys and key order are kept as found in the file.
type Store struct {
	dir  string
	lggr logger.Logger
}

func NewStore(dir string, lggr logger.Logger) *Store {
	return &Store{dir: dir, lggr: lggr}
}

// Path returns the file used for network. Local test networks get their own file.
func (s *Store) Path(networkName string) string {
	if network.IsLocal(networkName) {
		return filepath.Join(s.dir, TestingFileName)
	}

	return filepath.Join(s.dir, FileName)
}

// Read returns the whole file content with an entry for networkName present. A missing or empty
// file yields an empty structure.
func (s *Store) Read(networkName string) (Info, error) {
	info, _, err := jsonutils.LoadIfExists[Info](s.Path(networkName))
	if err != nil {
		return nil, err
	}

	if info == nil {
		info = Info{}
	}
	if info[networkName] == nil {
		info[networkName] = &NetworkInfo{}
	}

	return info, nil
}

// Network returns the record of networkName.
func (s *Store) Network(networkName string) (*NetworkInfo, error) {
	info, err := s.Read(networkName)
	if err != nil {
		return nil, err
	}

	return info[networkName], nil
}

// AddDeployedRepo records the repo deployment of networkName.
func (s *Store) AddDeployedRepo(networkName, repoName string, address common.Address, args []any, block uint64) error {
	if args == nil {
		args = []any{}
	}

	return s.update(networkName, func(n *object) error {
		for _, f := range []struct {
			key   string
			value any
		}{
			{"repo", repoName},
			{"address", address.Hex()},
			{"args", args},
			{"blockNumberOfDeployment", block},
		} {
			if err := n.setValue(f.key, f.value); err != nil {
				return err
			}
		}

		return nil
	})
}

// AppendVersion records a published build, creating the release entry as needed. An existing
// entry for the same build is overwritten and the release metadata URI is always replaced.
func (s *Store) AppendVersion(
	networkName string,
	tag osx.VersionTag,
	uris MetadataURIs,
	publicationBlock uint64,
	setup, implementation ContractInfo,
	helpers []ContractInfo,
) error {
	if helpers == nil {
		helpers = []ContractInfo{}
	}
	build := Build{
		Setup:                    withArgs(setup),
		Implementation:           withArgs(implementation),
		Helpers:                  helpers,
		BuildMetadataURI:         uris.Build,
		BlockNumberOfPublication: publicationBlock,
	}
	releaseKey := strconv.Itoa(int(tag.Release))

	return s.update(networkName, func(n *object) error {
		releases, err := n.child("releases")
		if err != nil {
			return err
		}
		release, err := releases.child(releaseKey)
		if err != nil {
			return err
		}
		builds, err := release.child("builds")
		if err != nil {
			return err
		}

		if err = builds.setValue(strconv.Itoa(int(tag.Build)), build); err != nil {
			return err
		}
		if err = release.setValue("releaseMetadataURI", uris.Release); err != nil {
			return err
		}
		if err = release.setValue("builds", builds); err != nil {
			return err
		}
		if err = releases.setValue(releaseKey, release); err != nil {
			return err
		}

		return n.setValue("releases", releases)
	})
}

// update applies fn to the record of networkName and writes the file back.
func (s *Store) update(networkName string, fn func(n *object) error) error {
	path := s.Path(networkName)
	doc, _, err := jsonutils.LoadIfExists[object](path)
	if err != nil {
		return err
	}

	n, err := doc.child(networkName)
	if err != nil {
		return fmt.Errorf("invalid plugin info %s: %w", path, err)
	}
	if err = fn(n); err != nil {
		return fmt.Errorf("invalid plugin info %s: %w", path, err)
	}
	if err = doc.setValue(networkName, n); err != nil {
		return err
	}

	if err = jsonutils.WriteFile(path, doc); err != nil {
		return fmt.Errorf("failed to write plugin info %s: %w", path, err)
	}
	s.lggr.Infow("Updated plugin info", "network", networkName, "path", path)

	return nil
}

func withArgs(c ContractInfo) ContractInfo {
	if c.Args == nil {
		c.Args = []any{}
	}

	return c
}
