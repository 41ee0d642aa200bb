package pluginrepo

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/operations"
	"github.com/aragon/admin-plugin-deployments/operations/optest"
)

func version(release uint8, build uint16, setup common.Address) LatestVersion {
	return LatestVersion{
		Tag:             osx.VersionTag{Release: release, Build: build},
		PluginSetup:     setup,
		ReleaseMetadata: "ipfs://release",
		BuildMetadata:   "ipfs://build",
	}
}

func TestValidateSorted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		versions []LatestVersion
		wantErr  string
	}{
		{
			name:     "single release",
			versions: []LatestVersion{version(1, 3, setupAddr)},
		},
		{
			name:     "consecutive releases",
			versions: []LatestVersion{version(1, 1, setupAddr), version(2, 4, setupAddr), version(3, 1, setupAddr)},
		},
		{
			name:    "empty",
			wantErr: "no versions",
		},
		{
			name:     "does not start at release 1",
			versions: []LatestVersion{version(2, 1, setupAddr)},
			wantErr:  "first release is 2",
		},
		{
			name:     "release gap",
			versions: []LatestVersion{version(1, 1, setupAddr), version(3, 1, setupAddr)},
			wantErr:  "release 3 follows release 1",
		},
		{
			name:     "descending",
			versions: []LatestVersion{version(1, 1, setupAddr), version(2, 1, setupAddr), version(1, 2, setupAddr)},
			wantErr:  "release 1 follows release 2",
		},
		{
			name:     "build 0",
			versions: []LatestVersion{version(1, 0, setupAddr)},
			wantErr:  "build of release 1 is 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateSorted(tt.versions)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrUnsortedVersions)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func newPopulateDeps() (PopulateDeps, *fakeRepo) {
	chain := newFakeChain()
	repo := newFakeRepo(chain)

	return PopulateDeps{Chain: chain.toChain(), Repo: repo, PlaceholderSetup: placeholderAddr}, repo
}

func TestPopulateSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		versions   []LatestVersion
		wantBuilds map[uint8][]common.Address
	}{
		{
			name:       "first build",
			versions:   []LatestVersion{version(1, 1, setupAddr)},
			wantBuilds: map[uint8][]common.Address{1: {setupAddr}},
		},
		{
			name:       "backfills placeholders",
			versions:   []LatestVersion{version(1, 3, setupAddr)},
			wantBuilds: map[uint8][]common.Address{1: {placeholderAddr, placeholderAddr, setupAddr}},
		},
		{
			name:     "several releases",
			versions: []LatestVersion{version(1, 2, otherSetupAddr), version(2, 3, setupAddr)},
			wantBuilds: map[uint8][]common.Address{
				1: {placeholderAddr, otherSetupAddr},
				2: {placeholderAddr, placeholderAddr, setupAddr},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			deps, repo := newPopulateDeps()

			report, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps,
				PopulateInput{Repo: repoAddr, Versions: tt.versions})
			require.NoError(t, err)
			assert.Equal(t, tt.wantBuilds, repo.builds)

			for _, v := range tt.versions {
				count, err := repo.BuildCount(nil, v.Tag.Release)
				require.NoError(t, err)
				assert.Equal(t, v.Tag.Build, count)
			}

			for _, call := range repo.calls {
				if call.PluginSetup == placeholderAddr {
					assert.Empty(t, call.BuildMetadata)
				} else {
					assert.Equal(t, "ipfs://build", call.BuildMetadata)
				}
				assert.Equal(t, "ipfs://release", call.ReleaseMetadata)
			}

			latest, ok := report.Output.Latest()
			require.True(t, ok)
			assert.Equal(t, tt.versions[len(tt.versions)-1].Tag, latest.Tag)
			assert.False(t, latest.Skipped)
			assert.NotZero(t, latest.BlockNumber)
		})
	}
}

func TestPopulateSequence_UnsortedSendsNothing(t *testing.T) {
	t.Parallel()

	deps, repo := newPopulateDeps()

	_, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps, PopulateInput{
		Repo:     repoAddr,
		Versions: []LatestVersion{version(1, 1, setupAddr), version(3, 1, setupAddr)},
	})
	require.ErrorIs(t, err, ErrUnsortedVersions)
	assert.Empty(t, repo.calls)
}

func TestPopulateSequence_ExtendsExistingRelease(t *testing.T) {
	t.Parallel()

	deps, repo := newPopulateDeps()
	b := optest.NewBundle(t)

	_, err := operations.ExecuteSequence(b, PopulateSequence, deps,
		PopulateInput{Repo: repoAddr, Versions: []LatestVersion{version(1, 1, setupAddr)}})
	require.NoError(t, err)

	report, err := operations.ExecuteSequence(b, PopulateSequence, deps,
		PopulateInput{Repo: repoAddr, Versions: []LatestVersion{version(1, 3, setupAddr)}})
	require.NoError(t, err)

	assert.Equal(t, []common.Address{setupAddr, placeholderAddr, setupAddr}, repo.builds[1])
	assert.Len(t, repo.calls, 3)

	require.Len(t, report.Output.Versions, 3)
	assert.True(t, report.Output.Versions[0].Skipped)
	assert.Equal(t, setupAddr, report.Output.Versions[0].PluginSetup)
	assert.False(t, report.Output.Versions[1].Skipped)
	assert.False(t, report.Output.Versions[2].Skipped)
}

func TestPopulateSequence_RerunSkipsExistingBuilds(t *testing.T) {
	t.Parallel()

	deps, repo := newPopulateDeps()
	in := PopulateInput{Repo: repoAddr, Versions: []LatestVersion{version(1, 2, setupAddr)}}

	_, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps, in)
	require.NoError(t, err)

	// a fresh reporter does not know the first run
	report, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps, in)
	require.NoError(t, err)

	assert.Len(t, repo.calls, 2)
	latest, ok := report.Output.Latest()
	require.True(t, ok)
	assert.True(t, latest.Skipped)
}

func TestPopulateSequence_BuildConflict(t *testing.T) {
	t.Parallel()

	deps, repo := newPopulateDeps()
	repo.builds[1] = []common.Address{otherSetupAddr}

	_, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps,
		PopulateInput{Repo: repoAddr, Versions: []LatestVersion{version(1, 1, setupAddr)}})
	require.ErrorIs(t, err, ErrBuildConflict)
	assert.Empty(t, repo.calls)
}

func TestPopulateSequence_MissingEvent(t *testing.T) {
	t.Parallel()

	deps, repo := newPopulateDeps()
	repo.dropEvents = true

	_, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps,
		PopulateInput{Repo: repoAddr, Versions: []LatestVersion{version(1, 2, setupAddr)}})
	require.ErrorIs(t, err, ErrVersionCreatedEventNotFound)
	require.ErrorIs(t, err, osx.ErrEventNotFound)

	// the first placeholder failed, nothing else was sent
	assert.Len(t, repo.calls, 1)
}

func TestPopulateSequence_PlaceholderBuildMetadata(t *testing.T) {
	t.Parallel()

	deps, repo := newPopulateDeps()
	deps.PlaceholderBuildMetadata = "ipfs://QmPlaceholder"

	_, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps,
		PopulateInput{Repo: repoAddr, Versions: []LatestVersion{version(1, 2, setupAddr)}})
	require.NoError(t, err)

	require.Len(t, repo.calls, 2)
	assert.Equal(t, "ipfs://QmPlaceholder", repo.calls[0].BuildMetadata)
	assert.Equal(t, "ipfs://build", repo.calls[1].BuildMetadata)
}

func TestPopulateSequence_RequiresPlaceholder(t *testing.T) {
	t.Parallel()

	deps, repo := newPopulateDeps()
	deps.PlaceholderSetup = common.Address{}

	_, err := operations.ExecuteSequence(optest.NewBundle(t), PopulateSequence, deps,
		PopulateInput{Repo: repoAddr, Versions: []LatestVersion{version(1, 1, setupAddr)}})
	require.ErrorContains(t, err, "placeholder setup address is required")
	assert.Empty(t, repo.calls)
}
