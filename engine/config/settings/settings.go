// Package settings loads the description of the plugin being published.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Version is the (release, build) pair a publication targets.
type Version struct {
	Release uint8  `toml:"release"`
	Build   uint16 `toml:"build"`
}

// Metadata points at the JSON documents uploaded for a release and a build.
type Metadata struct {
	Release string `toml:"release"`
	Build   string `toml:"build"`
	// PlaceholderBuildCID, when set, is the build metadata of backfilled placeholder builds.
	PlaceholderBuildCID string `toml:"placeholder_build_cid"`
}

// Settings describes the plugin published by this repository.
type Settings struct {
	PluginContractName      string   `toml:"plugin_contract_name"`
	PluginSetupContractName string   `toml:"plugin_setup_contract_name"`
	PluginRepoENSSubdomain  string   `toml:"plugin_repo_ens_subdomain"`
	SetupArtifact           string   `toml:"setup_artifact"`
	Version                 Version  `toml:"version"`
	Metadata                Metadata `toml:"metadata"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// Load reads settings from a TOML file. Relative paths inside it resolve against its directory.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin settings: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plugin settings %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)

	return s, nil
}

// Parse decodes settings from TOML and validates them.
func Parse(data []byte) (*Settings, error) {
	s := &Settings{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode plugin settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks the fields every command relies on.
func (s *Settings) Validate() error {
	var errs []error
	if s.PluginContractName == "" {
		errs = append(errs, errors.New("plugin_contract_name is required"))
	}
	if s.PluginSetupContractName == "" {
		errs = append(errs, errors.New("plugin_setup_contract_name is required"))
	}
	if s.PluginRepoENSSubdomain == "" {
		errs = append(errs, errors.New("plugin_repo_ens_subdomain is required"))
	}
	if s.Version.Release == 0 || s.Version.Build == 0 {
		errs = append(errs, fmt.Errorf("version release and build start at 1, got v%d.%d",
			s.Version.Release, s.Version.Build))
	}

	return errors.Join(errs...)
}

// ReleaseMetadata returns the compacted release metadata JSON.
func (s *Settings) ReleaseMetadata() ([]byte, error) {
	return s.readJSON(s.Metadata.Release)
}

// BuildMetadata returns the compacted build metadata JSON.
func (s *Settings) BuildMetadata() ([]byte, error) {
	return s.readJSON(s.Metadata.Build)
}

// Path resolves p against the settings file directory.
func (s *Settings) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(s.dir, p)
}

func (s *Settings) readJSON(p string) ([]byte, error) {
	if p == "" {
		return nil, errors.New("metadata path is not set")
	}

	data, err := os.ReadFile(s.Path(p))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var buf bytes.Buffer
	if err = json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON %s: %w", p, err)
	}

	return buf.Bytes(), nil
}
