package pluginrepo

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/deployment/ipfs"
	"github.com/aragon/admin-plugin-deployments/deployment/plugininfo"
	"github.com/aragon/admin-plugin-deployments/operations"
)

// PublishOutput describes a published version.
type PublishOutput struct {
	Tag              osx.VersionTag
	URIs             plugininfo.MetadataURIs
	PluginSetup      common.Address
	Implementation   common.Address
	PublicationBlock uint64
	Populate         PopulateOutput
}

// PublishVersion uploads the version metadata, populates the repo up to the configured version
// and records the published build in the plugin info file.
func PublishVersion(env Env) (PublishOutput, error) {
	s := env.Settings
	tag := osx.VersionTag{Release: s.Version.Release, Build: s.Version.Build}
	env.Logger.Infof("Publishing %s as %s in the %q plugin repo", s.PluginSetupContractName, tag, s.PluginRepoENSSubdomain)

	uris, err := uploadMetadata(env)
	if err != nil {
		return PublishOutput{}, err
	}

	setup, err := env.Deployments.Get(env.Network(), s.PluginSetupContractName)
	if err != nil {
		return PublishOutput{}, err
	}

	info, err := env.PluginInfo.Network(env.Network())
	if err != nil {
		return PublishOutput{}, err
	}
	repoAddr, err := info.RepoAddress()
	if err != nil {
		return PublishOutput{}, fmt.Errorf("%s: %w", env.Network(), err)
	}

	placeholder, err := env.Contracts.PlaceholderSetupAddress(env.Network())
	if err != nil {
		return PublishOutput{}, err
	}

	binder := env.binder()
	repo := binder.PluginRepo(repoAddr)

	versions, err := previousReleases(env, repo, tag.Release)
	if err != nil {
		return PublishOutput{}, err
	}
	versions = append(versions, LatestVersion{
		Tag:             tag,
		PluginSetup:     setup.Address,
		ReleaseMetadata: uris.Release,
		BuildMetadata:   uris.Build,
	})

	deps := PopulateDeps{
		Chain:            env.Chain,
		Repo:             repo,
		PlaceholderSetup: placeholder,
	}
	if s.Metadata.PlaceholderBuildCID != "" {
		deps.PlaceholderBuildMetadata = ipfs.URI(s.Metadata.PlaceholderBuildCID)
	}

	b := env.bundle()
	populated, err := operations.ExecuteSequence(b, PopulateSequence, deps, PopulateInput{Repo: repoAddr, Versions: versions})
	if err != nil {
		return PublishOutput{}, err
	}
	created, ok := populated.Output.Latest()
	if !ok {
		return PublishOutput{}, fmt.Errorf("population of %s returned no version", tag)
	}

	latest, err := repo.GetLatestVersion(env.callOpts(), tag.Release)
	if err != nil {
		return PublishOutput{}, fmt.Errorf("failed to read latest version of release %d: %w", tag.Release, err)
	}
	if latest.Tag.Release != tag.Release || latest.Tag.Build < tag.Build {
		return PublishOutput{}, fmt.Errorf("%w: repo reports %s, published %s", ErrVersionMismatch, latest.Tag, tag)
	}
	if latest.Tag != tag {
		env.Logger.Warnf("Release %d already has later builds, latest is %s", tag.Release, latest.Tag)
	}

	impl, err := operations.ExecuteOperation(b, ReadImplementationOp, binder.PluginSetup(setup.Address),
		ReadImplementationInput{PluginSetup: setup.Address},
		operations.WithRetry[ReadImplementationInput, SetupReader]())
	if err != nil {
		return PublishOutput{}, err
	}

	block := created.BlockNumber
	if created.Skipped {
		block = recordedPublicationBlock(info, tag)
		if block == 0 {
			env.Logger.Warnf("%s already existed and no publication block is recorded, writing 0", tag)
		}
	}

	env.Logger.Infof("Published %s at %s in PluginRepo %s at %s at block %d.",
		s.PluginSetupContractName, setup.Address.Hex(), s.PluginRepoENSSubdomain, repoAddr.Hex(), block)

	err = env.PluginInfo.AppendVersion(env.Network(), tag, uris, block,
		plugininfo.ContractInfo{
			Name:                    s.PluginSetupContractName,
			Address:                 setup.Address.Hex(),
			BlockNumberOfDeployment: setup.BlockNumber,
		},
		plugininfo.ContractInfo{
			Name:                    s.PluginContractName,
			Address:                 impl.Output.Implementation.Hex(),
			BlockNumberOfDeployment: setup.BlockNumber,
		},
		nil,
	)
	if err != nil {
		return PublishOutput{}, err
	}

	return PublishOutput{
		Tag:              tag,
		URIs:             uris,
		PluginSetup:      setup.Address,
		Implementation:   impl.Output.Implementation,
		PublicationBlock: block,
		Populate:         populated.Output,
	}, nil
}

func uploadMetadata(env Env) (plugininfo.MetadataURIs, error) {
	release, err := env.Settings.ReleaseMetadata()
	if err != nil {
		return plugininfo.MetadataURIs{}, err
	}
	build, err := env.Settings.BuildMetadata()
	if err != nil {
		return plugininfo.MetadataURIs{}, err
	}

	ctx := env.GetContext()
	releaseCID, err := env.Uploader.Upload(ctx, release)
	if err != nil {
		return plugininfo.MetadataURIs{}, fmt.Errorf("failed to upload release metadata: %w", err)
	}
	buildCID, err := env.Uploader.Upload(ctx, build)
	if err != nil {
		return plugininfo.MetadataURIs{}, fmt.Errorf("failed to upload build metadata: %w", err)
	}

	uris := plugininfo.MetadataURIs{Release: ipfs.URI(releaseCID), Build: ipfs.URI(buildCID)}
	env.Logger.Infof("Uploaded release metadata: %s", uris.Release)
	env.Logger.Infof("Uploaded build metadata: %s", uris.Build)

	return uris, nil
}

// previousReleases returns the current latest build of every release before release, so that
// population keeps them as they are. Each of them must already have a build.
func previousReleases(env Env, repo Repo, release uint8) ([]LatestVersion, error) {
	versions := make([]LatestVersion, 0, release)
	for r := uint8(1); r < release; r++ {
		count, err := repo.BuildCount(env.callOpts(), r)
		if err != nil {
			return nil, fmt.Errorf("failed to read build count of release %d: %w", r, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: release %d has no build, publish it before release %d",
				ErrUnsortedVersions, r, release)
		}

		existing, err := repo.GetVersion(env.callOpts(), osx.VersionTag{Release: r, Build: count})
		if err != nil {
			return nil, fmt.Errorf("failed to read v%d.%d: %w", r, count, err)
		}
		versions = append(versions, LatestVersion{Tag: existing.Tag, PluginSetup: existing.PluginSetup})
	}

	return versions, nil
}

func recordedPublicationBlock(info *plugininfo.NetworkInfo, tag osx.VersionTag) uint64 {
	release, ok := info.Releases[tag.Release]
	if !ok || release == nil {
		return 0
	}

	return release.Builds[tag.Build].BlockNumberOfPublication
}
