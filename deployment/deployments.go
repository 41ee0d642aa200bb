// Package deployment records the contracts deployed per network, one JSON file per contract under
// <dir>/<network>/<Name>.json, so later steps can find a contract and the block it was deployed in.
package deployment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aragon/admin-plugin-deployments/internal/jsonutils"
)

var ErrDeploymentNotFound = errors.New("no deployment recorded")

// Deployment is the record of a deployed contract.
type Deployment struct {
	Name            string         `json:"name"`
	Address         common.Address `json:"address"`
	Args            []any          `json:"args"`
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     uint64         `json:"blockNumber"`
}

// Store reads and writes deployment records inside a directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(network, name string) string {
	return filepath.Join(s.dir, network, name+".json")
}

// Save records d for network, replacing any previous deployment with the same name.
func (s *Store) Save(network string, d Deployment) error {
	if d.Name == "" {
		return errors.New("deployment name is required")
	}
	if d.Args == nil {
		d.Args = []any{}
	}

	if err := jsonutils.WriteFile(s.path(network, d.Name), d); err != nil {
		return fmt.Errorf("failed to save deployment %s on %s: %w", d.Name, network, err)
	}

	return nil
}

// Get returns the deployment of name on network.
func (s *Store) Get(network, name string) (Deployment, error) {
	d, ok, err := jsonutils.LoadIfExists[Deployment](s.path(network, name))
	if err != nil {
		return Deployment{}, err
	}
	if !ok {
		return Deployment{}, fmt.Errorf("%w: %s on %s", ErrDeploymentNotFound, name, network)
	}

	return d, nil
}

// List returns the names of the contracts deployed on network, sorted.
func (s *Store) List(network string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, network))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	slices.Sort(names)

	return names, nil
}
