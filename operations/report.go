package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report records one execution of an operation or sequence.
type Report[IN, OUT any] struct {
	ID        string       `json:"id"`
	Def       Definition   `json:"definition"`
	Output    OUT          `json:"output"`
	Input     IN           `json:"input"`
	Timestamp *time.Time   `json:"timestamp"`
	Err       *ReportError `json:"error"`
	// IDs of the reports produced while running a sequence. Empty for operations.
	ChildOperationReports []string `json:"childOperationReports"`
}

// ToGenericReport drops the type parameters of the report.
func (r Report[IN, OUT]) ToGenericReport() Report[any, any] {
	return genericReport(r)
}

// SequenceReport is the report of a sequence plus the reports of everything it executed,
// children first.
type SequenceReport[IN, OUT any] struct {
	Report[IN, OUT]

	ExecutionReports []Report[any, any]
}

// NewReport creates a report with a fresh ID and the current time.
func NewReport[IN, OUT any](
	def Definition, input IN, output OUT, err error, childReportsID ...string,
) Report[IN, OUT] {
	now := time.Now().UTC()
	r := Report[IN, OUT]{
		ID:                    uuid.New().String(),
		Def:                   def,
		Output:                output,
		Input:                 input,
		Timestamp:             &now,
		ChildOperationReports: childReportsID,
	}
	if err != nil {
		r.Err = &ReportError{Message: err.Error()}
	}

	return r
}

// ReportError is the marshalable form of an execution error.
type ReportError struct {
	Message string `json:"message"`
}

func (o ReportError) Error() string {
	return o.Message
}

var ErrReportNotFound = errors.New("report not found")

// Reporter stores reports.
type Reporter interface {
	GetReport(id string) (Report[any, any], error)
	GetReports() ([]Report[any, any], error)
	AddReport(report Report[any, any]) error
	GetExecutionReports(reportID string) ([]Report[any, any], error)
}

// MemoryReporter keeps reports in memory. It is safe for concurrent use.
type MemoryReporter struct {
	reports []Report[any, any]
	mu      sync.RWMutex
}

type MemoryReporterOption func(*MemoryReporter)

// WithReports seeds the reporter, typically with reports of an earlier run.
func WithReports(reports []Report[any, any]) MemoryReporterOption {
	return func(mr *MemoryReporter) {
		mr.reports = reports
	}
}

func NewMemoryReporter(options ...MemoryReporterOption) *MemoryReporter {
	reporter := &MemoryReporter{}
	for _, opt := range options {
		opt(reporter)
	}

	return reporter
}

func (e *MemoryReporter) AddReport(report Report[any, any]) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reports = append(e.reports, report)

	return nil
}

// GetReports returns a copy of all reports in insertion order.
func (e *MemoryReporter) GetReports() ([]Report[any, any], error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reports := make([]Report[any, any], len(e.reports))
	copy(reports, e.reports)

	return reports, nil
}

func (e *MemoryReporter) GetReport(id string) (Report[any, any], error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return findReport(e.reports, id)
}

// GetExecutionReports returns the report with the given ID preceded by all of its descendants.
func (e *MemoryReporter) GetExecutionReports(reportID string) ([]Report[any, any], error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return collectExecutionReports(e.reports, reportID)
}

func findReport(reports []Report[any, any], id string) (Report[any, any], error) {
	for _, r := range reports {
		if r.ID == id {
			return r, nil
		}
	}

	return Report[any, any]{}, fmt.Errorf("report_id %s: %w", id, ErrReportNotFound)
}

func collectExecutionReports(reports []Report[any, any], rootID string) ([]Report[any, any], error) {
	var (
		out  []Report[any, any]
		seen = map[string]bool{}
		walk func(id string) error
	)
	walk = func(id string) error {
		if seen[id] {
			return nil
		}
		seen[id] = true

		r, err := findReport(reports, id)
		if err != nil {
			return err
		}
		for _, child := range r.ChildOperationReports {
			if err := walk(child); err != nil {
				return err
			}
		}
		out = append(out, r)

		return nil
	}

	if err := walk(rootID); err != nil {
		return nil, err
	}

	return out, nil
}

// RecentReporter forwards to another Reporter and remembers what was added through it. A
// sequence uses it to learn which reports its handler produced.
type RecentReporter struct {
	Reporter
	recentReports []Report[any, any]
	mu            sync.RWMutex
}

func NewRecentReporter(reporter Reporter) *RecentReporter {
	return &RecentReporter{
		Reporter:      reporter,
		recentReports: []Report[any, any]{},
	}
}

func (e *RecentReporter) AddReport(report Report[any, any]) error {
	if err := e.Reporter.AddReport(report); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.recentReports = append(e.recentReports, report)

	return nil
}

// GetRecentReports returns the reports added since the reporter was created.
func (e *RecentReporter) GetRecentReports() []Report[any, any] {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Report[any, any], len(e.recentReports))
	copy(out, e.recentReports)

	return out
}

func genericReport[IN, OUT any](r Report[IN, OUT]) Report[any, any] {
	return Report[any, any]{
		ID:                    r.ID,
		Def:                   r.Def,
		Output:                r.Output,
		Input:                 r.Input,
		Timestamp:             r.Timestamp,
		Err:                   r.Err,
		ChildOperationReports: r.ChildOperationReports,
	}
}

// typeReport converts a report loaded as Report[any, any] back to its concrete types. A JSON round
// trip turns structs into maps and numbers into float64, so both sides are re-decoded.
func typeReport[IN, OUT any](r Report[any, any]) (Report[IN, OUT], bool) {
	var input IN
	if !redecode(r.Input, &input) {
		return Report[IN, OUT]{}, false
	}

	var output OUT
	if !redecode(r.Output, &output) {
		return Report[IN, OUT]{}, false
	}

	return Report[IN, OUT]{
		ID:                    r.ID,
		Def:                   r.Def,
		Output:                output,
		Input:                 input,
		Timestamp:             r.Timestamp,
		Err:                   r.Err,
		ChildOperationReports: r.ChildOperationReports,
	}, true
}

func redecode(src any, dst any) bool {
	data, err := json.Marshal(src)
	if err != nil {
		return false
	}

	return json.Unmarshal(data, dst) == nil
}
