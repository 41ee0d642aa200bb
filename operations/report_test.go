package operations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReporter(t *testing.T) {
	t.Parallel()

	def := Definition{ID: "create-version", Version: semver.MustParse("1.0.0")}
	child := NewReport(def, 1, 2, nil)
	failed := NewReport(def, 2, 0, errors.New("reverted"))
	parent := NewReport(Definition{ID: "populate", Version: semver.MustParse("1.0.0")}, 1, 2, nil, child.ID)

	r := NewMemoryReporter(WithReports([]Report[any, any]{genericReport(child)}))
	require.NoError(t, r.AddReport(genericReport(failed)))
	require.NoError(t, r.AddReport(genericReport(parent)))

	reports, err := r.GetReports()
	require.NoError(t, err)
	assert.Len(t, reports, 3)

	got, err := r.GetReport(failed.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Err)
	assert.Equal(t, "reverted", got.Err.Error())

	_, err = r.GetReport("missing")
	require.ErrorIs(t, err, ErrReportNotFound)

	exec, err := r.GetExecutionReports(parent.ID)
	require.NoError(t, err)
	require.Len(t, exec, 2)
	assert.Equal(t, child.ID, exec[0].ID)
	assert.Equal(t, parent.ID, exec[1].ID)

	orphan := NewReport(def, 3, 4, nil, "missing")
	require.NoError(t, r.AddReport(genericReport(orphan)))
	_, err = r.GetExecutionReports(orphan.ID)
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestRecentReporter(t *testing.T) {
	t.Parallel()

	base := NewMemoryReporter(WithReports([]Report[any, any]{
		genericReport(NewReport(Definition{ID: "old"}, 0, 0, nil)),
	}))
	recent := NewRecentReporter(base)

	fresh := genericReport(NewReport(Definition{ID: "new"}, 1, 1, nil))
	require.NoError(t, recent.AddReport(fresh))

	all, err := recent.GetReports()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, []Report[any, any]{fresh}, recent.GetRecentReports())
}

func TestTypeReport(t *testing.T) {
	t.Parallel()

	stored := Report[any, any]{
		ID:     "1",
		Input:  map[string]any{"repo": "0x01", "release": float64(1), "build": float64(2)},
		Output: map[string]any{"txHash": "0xabc"},
	}

	typed, ok := typeReport[buildInput, buildOutput](stored)
	require.True(t, ok)
	assert.Equal(t, buildInput{Repo: "0x01", Release: 1, Build: 2}, typed.Input)
	assert.Equal(t, buildOutput{TxHash: "0xabc"}, typed.Output)

	_, ok = typeReport[buildInput, int](stored)
	assert.False(t, ok)
}

func TestLoadReports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	reports, err := LoadReports(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, reports)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = LoadReports(bad)
	require.ErrorContains(t, err, "failed to unmarshal reports")
}
