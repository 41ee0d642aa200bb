package jsonutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile marshals data into 2-space indented JSON with a trailing newline and writes it at
// path, creating parent directories as needed. The file is rewritten as a whole.
func WriteFile(path string, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, append(b, '\n'), 0o644) //nolint:gosec // G306: side files are committed alongside the contracts
}

// LoadFromFS loads a JSON file from the filesystem, instantiates and unmarshals it into T.
func LoadFromFS[T any](fsys fs.ReadFileFS, path string) (T, error) {
	var v T

	f, err := fsys.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err = json.Unmarshal(f, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal JSON at path %s: %w", path, err)
	}

	return v, nil
}

// LoadIfExists unmarshals the JSON file at path into T. A missing or empty file yields the zero
// value of T and false.
func LoadIfExists[T any](path string) (T, bool, error) {
	var v T

	f, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(f) == 0 {
		return v, false, nil
	}

	if err = json.Unmarshal(f, &v); err != nil {
		return v, false, fmt.Errorf("failed to unmarshal JSON at path %s: %w", path, err)
	}

	return v, true, nil
}
