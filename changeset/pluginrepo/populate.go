package pluginrepo

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/contracts/osx"
	"github.com/aragon/admin-plugin-deployments/operations"
)

// LatestVersion is the newest build wanted for a release.
type LatestVersion struct {
	Tag         osx.VersionTag `json:"tag"`
	PluginSetup common.Address `json:"pluginSetup"`
	// Metadata are content URIs, sent to the repo as their UTF-8 bytes.
	ReleaseMetadata string `json:"releaseMetadata"`
	BuildMetadata   string `json:"buildMetadata"`
}

// ValidateSorted checks that versions start at release 1 and each entry targets the next release.
func ValidateSorted(versions []LatestVersion) error {
	if len(versions) == 0 {
		return fmt.Errorf("%w: no versions", ErrUnsortedVersions)
	}
	if versions[0].Tag.Release != 1 {
		return fmt.Errorf("%w: first release is %d", ErrUnsortedVersions, versions[0].Tag.Release)
	}

	for i := 1; i < len(versions); i++ {
		prev, next := versions[i-1].Tag, versions[i].Tag
		if int(next.Release) != int(prev.Release)+1 {
			return fmt.Errorf("%w: release %d follows release %d", ErrUnsortedVersions, next.Release, prev.Release)
		}
	}

	for _, v := range versions {
		if v.Tag.Build == 0 {
			return fmt.Errorf("%w: build of release %d is 0", ErrUnsortedVersions, v.Tag.Release)
		}
	}

	return nil
}

// PopulateDeps are the dependencies of the population routine.
type PopulateDeps struct {
	Chain evm.Chain
	Repo  Repo
	// PlaceholderSetup is the shared setup of backfilled builds.
	PlaceholderSetup common.Address
	// PlaceholderBuildMetadata is the build metadata URI of backfilled builds, empty by default.
	PlaceholderBuildMetadata string
}

// CreateVersionInput is one build to create.
type CreateVersionInput struct {
	Repo            common.Address `json:"repo"`
	Tag             osx.VersionTag `json:"tag"`
	PluginSetup     common.Address `json:"pluginSetup"`
	ReleaseMetadata string         `json:"releaseMetadata"`
	BuildMetadata   string         `json:"buildMetadata"`
	// Placeholder builds that already exist are kept whatever their setup.
	Placeholder bool `json:"placeholder"`
}

type CreateVersionOutput struct {
	Tag         osx.VersionTag `json:"tag"`
	PluginSetup common.Address `json:"pluginSetup"`
	Placeholder bool           `json:"placeholder"`
	// Skipped is set when the build already existed and no transaction was sent.
	Skipped     bool        `json:"skipped"`
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
}

// CreateVersionOp creates one build in a repo. The build must be the next build of its release,
// so builds stay contiguous.
var CreateVersionOp = operations.NewOperation(
	"plugin-repo-create-version",
	semver.MustParse("1.0.0"),
	"Create a build in the plugin repo",
	func(b operations.Bundle, deps PopulateDeps, in CreateVersionInput) (CreateVersionOutput, error) {
		out := CreateVersionOutput{Tag: in.Tag, PluginSetup: in.PluginSetup, Placeholder: in.Placeholder}
		ctx := b.GetContext()
		callOpts := &bind.CallOpts{Context: ctx}

		count, err := deps.Repo.BuildCount(callOpts, in.Tag.Release)
		if err != nil {
			return out, fmt.Errorf("failed to read build count of release %d: %w", in.Tag.Release, err)
		}

		if count >= in.Tag.Build {
			existing, verr := deps.Repo.GetVersion(callOpts, in.Tag)
			if verr != nil {
				return out, fmt.Errorf("failed to read %s: %w", in.Tag, verr)
			}
			if !in.Placeholder && existing.PluginSetup != in.PluginSetup {
				return out, operations.NewUnrecoverableError(fmt.Errorf("%w: %s has setup %s, want %s",
					ErrBuildConflict, in.Tag, existing.PluginSetup.Hex(), in.PluginSetup.Hex()))
			}
			b.Logger.Infof("Build %d of release %d already exists with setup %s, skipping",
				in.Tag.Build, in.Tag.Release, existing.PluginSetup.Hex())
			out.PluginSetup = existing.PluginSetup
			out.Skipped = true

			return out, nil
		}
		if count+1 != in.Tag.Build {
			return out, operations.NewUnrecoverableError(fmt.Errorf(
				"build %d of release %d cannot follow build %d", in.Tag.Build, in.Tag.Release, count))
		}

		opts, err := transactOpts(ctx, deps.Chain)
		if err != nil {
			return out, err
		}

		tx, err := deps.Repo.CreateVersion(opts, in.Tag.Release, in.PluginSetup,
			[]byte(in.BuildMetadata), []byte(in.ReleaseMetadata))
		if err != nil {
			return out, fmt.Errorf("failed to send createVersion for %s: %w", in.Tag, err)
		}
		b.Logger.Infof("Creating build for release %d with tx %s", in.Tag.Release, tx.Hash().Hex())

		receipt, err := deps.Chain.Confirm(tx)
		if err != nil {
			return out, fmt.Errorf("failed to confirm createVersion for %s: %w", in.Tag, err)
		}

		ev, err := deps.Repo.ParseVersionCreated(receipt)
		if err != nil {
			return out, fmt.Errorf("%w: tx %s: %w", ErrVersionCreatedEventNotFound, tx.Hash().Hex(), err)
		}
		if ev.Release != in.Tag.Release || ev.Build != in.Tag.Build {
			return out, fmt.Errorf("repo created v%d.%d instead of %s", ev.Release, ev.Build, in.Tag)
		}

		b.Logger.Infof("Created build %d for release %d with setup address: %s, with build metadata %s "+
			"and release metadata %s", ev.Build, ev.Release, ev.PluginSetup.Hex(), in.BuildMetadata, in.ReleaseMetadata)

		out.TxHash = tx.Hash()
		if receipt.BlockNumber != nil {
			out.BlockNumber = receipt.BlockNumber.Uint64()
		}

		return out, nil
	},
)

// PopulateInput lists the newest wanted build of every release of a repo.
type PopulateInput struct {
	Repo     common.Address  `json:"repo"`
	Versions []LatestVersion `json:"versions"`
}

type PopulateOutput struct {
	// Versions holds one entry per build handled, placeholders included, in creation order.
	Versions []CreateVersionOutput `json:"versions"`
}

// Latest returns the entry of the last requested build.
func (o PopulateOutput) Latest() (CreateVersionOutput, bool) {
	for i := len(o.Versions) - 1; i >= 0; i-- {
		if !o.Versions[i].Placeholder {
			return o.Versions[i], true
		}
	}

	return CreateVersionOutput{}, false
}

// PopulateSequence fills every release up to its requested build. Missing builds before the
// requested one are created with the placeholder setup, builds that already exist are kept.
var PopulateSequence = operations.NewSequence(
	"plugin-repo-populate",
	semver.MustParse("1.0.0"),
	"Populate the plugin repo up to the requested builds",
	func(b operations.Bundle, deps PopulateDeps, in PopulateInput) (PopulateOutput, error) {
		out := PopulateOutput{Versions: []CreateVersionOutput{}}
		if err := ValidateSorted(in.Versions); err != nil {
			return out, err
		}
		if deps.PlaceholderSetup == (common.Address{}) {
			return out, errors.New("placeholder setup address is required")
		}

		for _, v := range in.Versions {
			for build := uint16(1); build < v.Tag.Build; build++ {
				report, err := operations.ExecuteOperation(b, CreateVersionOp, deps, CreateVersionInput{
					Repo:            in.Repo,
					Tag:             osx.VersionTag{Release: v.Tag.Release, Build: build},
					PluginSetup:     deps.PlaceholderSetup,
					ReleaseMetadata: v.ReleaseMetadata,
					BuildMetadata:   deps.PlaceholderBuildMetadata,
					Placeholder:     true,
				})
				if err != nil {
					return out, err
				}
				out.Versions = append(out.Versions, report.Output)
			}

			report, err := operations.ExecuteOperation(b, CreateVersionOp, deps, CreateVersionInput{
				Repo:            in.Repo,
				Tag:             v.Tag,
				PluginSetup:     v.PluginSetup,
				ReleaseMetadata: v.ReleaseMetadata,
				BuildMetadata:   v.BuildMetadata,
			})
			if err != nil {
				return out, err
			}
			out.Versions = append(out.Versions, report.Output)
		}

		return out, nil
	},
)
