package operations

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/avast/retry-go/v4"

	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

var ErrNotSerializable = errors.New("data cannot be safely written to disk without data lost, " +
	"avoid type that can't be serialized")

// ExecuteConfig is the configuration for the ExecuteOperation function.
type ExecuteConfig[IN, DEP any] struct {
	retryConfig RetryConfig[IN, DEP]
}

type ExecuteOption[IN, DEP any] func(*ExecuteConfig[IN, DEP])

// RetryConfig controls whether and how an operation is retried.
type RetryConfig[IN, DEP any] struct {
	Enabled bool
	Policy  RetryPolicy
	// InputHook returns the input for the next attempt.
	InputHook func(attempt uint, err error, input IN, deps DEP) IN
}

// RetryPolicy defines the arguments to control the retry behavior.
type RetryPolicy struct {
	MaxAttempts uint
}

func (p RetryPolicy) options() []retry.Option {
	return []retry.Option{
		retry.Attempts(p.MaxAttempts),
	}
}

func newDisabledRetryConfig[IN, DEP any]() RetryConfig[IN, DEP] {
	return RetryConfig[IN, DEP]{
		Enabled: false,
		Policy: RetryPolicy{
			MaxAttempts: 5,
		},
	}
}

// WithRetry enables the default retry policy. Only use it on operations without side effects.
func WithRetry[IN, DEP any]() ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig.Enabled = true
	}
}

// WithRetryInput enables the default retry policy and rewrites the input before each retry.
func WithRetryInput[IN, DEP any](hook func(attempt uint, err error, input IN, deps DEP) IN) ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig.Enabled = true
		c.retryConfig.InputHook = hook
	}
}

// WithRetryConfig sets a custom retry configuration.
func WithRetryConfig[IN, DEP any](config RetryConfig[IN, DEP]) ExecuteOption[IN, DEP] {
	return func(c *ExecuteConfig[IN, DEP]) {
		c.retryConfig = config
	}
}

// ExecuteOperation executes an operation with the given input and dependencies and records a
// report. If a successful report for the same definition and input exists, its output is returned
// without executing the handler and no new report is added.
//
// Input and output must survive a JSON round trip, otherwise ErrNotSerializable is returned.
func ExecuteOperation[IN, OUT, DEP any](
	b Bundle,
	operation *Operation[IN, OUT, DEP],
	deps DEP,
	input IN,
	opts ...ExecuteOption[IN, DEP],
) (Report[IN, OUT], error) {
	if !IsSerializable(b.Logger, input) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s input: %w", operation.def.ID, ErrNotSerializable)
	}

	if prev, found := loadPreviousSuccessfulReport[IN, OUT](b, operation.def, input); found {
		b.Logger.Infow("Operation already executed. Returning previous result",
			"id", operation.def.ID, "version", operation.def.Version, "report_id", prev.ID)

		return prev, nil
	}

	cfg := &ExecuteConfig[IN, DEP]{retryConfig: newDisabledRetryConfig[IN, DEP]()}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		output OUT
		err    error
	)
	if cfg.retryConfig.Enabled {
		attemptInput := input
		retryOpts := append(cfg.retryConfig.Policy.options(),
			retry.Context(b.GetContext()),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(attempt uint, err error) {
				b.Logger.Infow("Operation failed. Retrying...",
					"operation", operation.def.ID, "attempt", attempt, "error", err)

				if cfg.retryConfig.InputHook != nil {
					attemptInput = cfg.retryConfig.InputHook(attempt, err, attemptInput, deps)
				}
			}),
		)

		output, err = retry.DoWithData(func() (OUT, error) {
			return operation.execute(b, deps, attemptInput)
		}, retryOpts...)
	} else {
		output, err = operation.execute(b, deps, input)
	}

	if err == nil && !IsSerializable(b.Logger, output) {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s output: %w", operation.def.ID, ErrNotSerializable)
	}

	report := NewReport(operation.def, input, output, err)
	if rerr := b.reporter.AddReport(genericReport(report)); rerr != nil {
		return Report[IN, OUT]{}, rerr
	}

	if err != nil {
		return report, err
	}

	return report, nil
}

// ExecuteSequence executes a sequence and returns its report together with the reports of every
// operation it executed. Previous successful runs with the same input are returned as is.
func ExecuteSequence[IN, OUT, DEP any](
	b Bundle, sequence *Sequence[IN, OUT, DEP], deps DEP, input IN,
) (SequenceReport[IN, OUT], error) {
	if !IsSerializable(b.Logger, input) {
		return SequenceReport[IN, OUT]{}, fmt.Errorf("sequence %s input: %w", sequence.def.ID, ErrNotSerializable)
	}

	if prev, found := loadPreviousSuccessfulReport[IN, OUT](b, sequence.def, input); found {
		executionReports, err := b.reporter.GetExecutionReports(prev.ID)
		if err != nil {
			return SequenceReport[IN, OUT]{}, err
		}
		b.Logger.Infow("Sequence already executed. Returning previous result",
			"id", sequence.def.ID, "version", sequence.def.Version, "report_id", prev.ID)

		return SequenceReport[IN, OUT]{prev, executionReports}, nil
	}

	b.Logger.Infow("Executing sequence",
		"id", sequence.def.ID, "version", sequence.def.Version, "description", sequence.def.Description)

	recent := NewRecentReporter(b.reporter)
	seqBundle := Bundle{
		Logger:          b.Logger,
		GetContext:      b.GetContext,
		reporter:        recent,
		reportHashCache: b.reportHashCache,
	}

	output, err := sequence.handler(seqBundle, deps, input)
	if errors.Is(err, ErrNotSerializable) {
		return SequenceReport[IN, OUT]{}, err
	}
	if err == nil && !IsSerializable(b.Logger, output) {
		return SequenceReport[IN, OUT]{}, fmt.Errorf("sequence %s output: %w", sequence.def.ID, ErrNotSerializable)
	}

	children := recent.GetRecentReports()
	childIDs := make([]string, 0, len(children))
	for _, r := range children {
		childIDs = append(childIDs, r.ID)
	}

	report := NewReport(sequence.def, input, output, err, childIDs...)
	if rerr := b.reporter.AddReport(genericReport(report)); rerr != nil {
		return SequenceReport[IN, OUT]{}, rerr
	}

	executionReports, rerr := b.reporter.GetExecutionReports(report.ID)
	if rerr != nil {
		return SequenceReport[IN, OUT]{}, rerr
	}

	return SequenceReport[IN, OUT]{report, executionReports}, err
}

// NewUnrecoverableError marks err as final so a retrying operation stops immediately.
func NewUnrecoverableError(err error) error {
	return retry.Unrecoverable(err)
}

// IsSerializable reports whether v survives a JSON round trip unchanged. Unexported struct fields
// and funcs do not.
func IsSerializable(lggr logger.Logger, v any) bool {
	if v == nil {
		return true
	}

	data, err := json.Marshal(v)
	if err != nil {
		lggr.Errorw("Failed to marshal value", "error", err)
		return false
	}

	rt := reflect.TypeOf(v)
	decoded := reflect.New(rt)
	if err = json.Unmarshal(data, decoded.Interface()); err != nil {
		lggr.Errorw("Failed to unmarshal value", "type", rt.String(), "error", err)
		return false
	}

	if !reflect.DeepEqual(v, decoded.Elem().Interface()) {
		lggr.Errorw("Value changed after a JSON round trip", "type", rt.String())
		return false
	}

	return true
}

func loadPreviousSuccessfulReport[IN, OUT any](b Bundle, def Definition, input IN) (Report[IN, OUT], bool) {
	reports, err := b.reporter.GetReports()
	if err != nil {
		b.Logger.Errorw("Failed to get reports", "error", err)
		return Report[IN, OUT]{}, false
	}

	want, err := uniqueHash(b.reportHashCache, def, input)
	if err != nil {
		b.Logger.Errorw("Failed to hash execution", "id", def.ID, "error", err)
		return Report[IN, OUT]{}, false
	}

	for _, r := range reports {
		if r.Err != nil {
			continue
		}

		got, err := uniqueHash(b.reportHashCache, r.Def, r.Input)
		if err != nil {
			b.Logger.Errorw("Failed to hash stored report", "report_id", r.ID, "error", err)
			continue
		}
		if got != want {
			continue
		}

		typed, ok := typeReport[IN, OUT](r)
		if !ok {
			b.Logger.Debugw("Stored report does not match the expected types", "report_id", r.ID)
			continue
		}

		return typed, true
	}

	return Report[IN, OUT]{}, false
}

// uniqueHash hashes the definition and the JSON form of the input. Inputs loaded from disk hash
// the same as the typed inputs they were created from.
func uniqueHash(cache interface {
	Load(key any) (any, bool)
	Store(key, value any)
}, def Definition, input any) (string, error) {
	version := ""
	if def.Version != nil {
		version = def.Version.String()
	}

	// struct fields marshal in declaration order, maps in key order
	raw, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	var normalized any
	if err = json.Unmarshal(raw, &normalized); err != nil {
		return "", err
	}

	data, err := json.Marshal(struct {
		ID      string `json:"id"`
		Version string `json:"version"`
		Input   any    `json:"input"`
	}{def.ID, version, normalized})
	if err != nil {
		return "", err
	}

	key := string(data)
	if cache != nil {
		if h, ok := cache.Load(key); ok {
			return h.(string), nil
		}
	}

	sum := sha256.Sum256(data)
	h := hex.EncodeToString(sum[:])
	if cache != nil {
		cache.Store(key, h)
	}

	return h, nil
}
