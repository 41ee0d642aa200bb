package jsonutils

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WriteFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		givePath string
		giveObj  any
		want     string
		wantErr  string
	}{
		{
			name:     "success",
			givePath: "valid.json",
			giveObj:  map[string]string{"key": "value"},
			want:     "{\n  \"key\": \"value\"\n}\n",
		},
		{
			name:     "success: creates directories",
			givePath: filepath.Join("nested", "dir", "valid.json"),
			giveObj:  []int{1},
			want:     "[\n  1\n]\n",
		},
		{
			name:     "failure: cannot marshal JSON",
			givePath: "invalid.json",
			giveObj:  make(chan int),
			wantErr:  "json: unsupported type: chan int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rootDir := t.TempDir()

			err := WriteFile(filepath.Join(rootDir, tt.givePath), tt.giveObj)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)

				b, err := os.ReadFile(filepath.Join(rootDir, tt.givePath))
				require.NoError(t, err)

				assert.Equal(t, tt.want, string(b))
			}
		})
	}
}

func Test_LoadJSON(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"valid.json":   {Data: []byte(`{"key": "value"}`)},
		"invalid.json": {Data: []byte(`invalid`)},
	}

	tests := []struct {
		name    string
		give    string
		want    map[string]string
		wantErr string
	}{
		{
			name: "success",
			give: "valid.json",
			want: map[string]string{"key": "value"},
		},
		{
			name:    "failure: cannot read path",
			give:    "notfound.json",
			wantErr: "failed to read notfound.json",
		},
		{
			name:    "failure: cannot unmarshal JSON",
			give:    "invalid.json",
			wantErr: "failed to unmarshal JSON at path invalid.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := LoadFromFS[map[string]string](fsys, tt.give)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_LoadIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"key":"value"}`), 0o600))
	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{`), 0o600))

	_, ok, err := LoadIfExists[map[string]string](filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = LoadIfExists[map[string]string](empty)
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := LoadIfExists[map[string]string](valid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"key": "value"}, got)

	_, _, err = LoadIfExists[map[string]string](invalid)
	require.ErrorContains(t, err, "failed to unmarshal JSON at path")
}
