package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	s, err := Load(filepath.Join("testdata", "plugin-settings.toml"))
	require.NoError(t, err)

	assert.Equal(t, "Admin", s.PluginContractName)
	assert.Equal(t, "AdminSetup", s.PluginSetupContractName)
	assert.Equal(t, "admin", s.PluginRepoENSSubdomain)
	assert.Equal(t, Version{Release: 1, Build: 2}, s.Version)
	assert.Equal(t, filepath.Join("testdata", "artifacts", "AdminSetup.json"), s.Path(s.SetupArtifact))

	release, err := s.ReleaseMetadata()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Admin","description":"Grants a single address full control over the DAO","images":{}}`,
		string(release))
	assert.NotContains(t, string(release), "\n")

	build, err := s.BuildMetadata()
	require.NoError(t, err)
	assert.Contains(t, string(build), `"change":"Initial build."`)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		wantErr string
	}{
		{
			name:    "missing names",
			give:    "[version]\nrelease = 1\nbuild = 1\n",
			wantErr: "plugin_contract_name is required",
		},
		{
			name: "zero build",
			give: `plugin_contract_name = "Admin"
plugin_setup_contract_name = "AdminSetup"
plugin_repo_ens_subdomain = "admin"
[version]
release = 1
build = 0
`,
			wantErr: "version release and build start at 1, got v1.0",
		},
		{
			name:    "unknown field",
			give:    `plugin_name = "Admin"`,
			wantErr: "failed to decode plugin settings",
		},
		{
			name:    "release out of range",
			give:    "[version]\nrelease = 256\n",
			wantErr: "failed to decode plugin settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.give))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSettings_MissingMetadata(t *testing.T) {
	t.Parallel()

	s := &Settings{dir: t.TempDir()}
	_, err := s.ReleaseMetadata()
	require.ErrorContains(t, err, "metadata path is not set")

	s.Metadata.Build = "absent.json"
	_, err = s.BuildMetadata()
	require.ErrorContains(t, err, "failed to read metadata")
}
