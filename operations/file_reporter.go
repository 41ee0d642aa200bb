package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aragon/admin-plugin-deployments/internal/jsonutils"
)

// FileReporter is a MemoryReporter that rewrites a JSON file after every added report, so an
// interrupted run can be resumed by a later one pointed at the same file.
type FileReporter struct {
	*MemoryReporter
	path string
}

// NewFileReporter loads the reports stored at path, if any, and returns a reporter that persists
// to it.
func NewFileReporter(path string) (*FileReporter, error) {
	reports, err := LoadReports(path)
	if err != nil {
		return nil, err
	}

	return &FileReporter{
		MemoryReporter: NewMemoryReporter(WithReports(reports)),
		path:           path,
	}, nil
}

// Path returns the file the reporter writes to.
func (r *FileReporter) Path() string {
	return r.path
}

func (r *FileReporter) AddReport(report Report[any, any]) error {
	if err := r.MemoryReporter.AddReport(report); err != nil {
		return err
	}

	reports, err := r.GetReports()
	if err != nil {
		return err
	}

	return saveReports(r.path, reports)
}

// LoadReports reads reports written by a FileReporter. A missing file yields no reports.
func LoadReports(path string) ([]Report[any, any], error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Report[any, any]{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reports %s: %w", path, err)
	}

	var raw []Report[json.RawMessage, json.RawMessage]
	if err = json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reports %s: %w", path, err)
	}

	reports := make([]Report[any, any], 0, len(raw))
	for _, r := range raw {
		reports = append(reports, r.ToGenericReport())
	}

	return reports, nil
}

func saveReports(path string, reports []Report[any, any]) error {
	return jsonutils.WriteFile(path, reports)
}
