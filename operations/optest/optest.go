// Package optest provides helpers for testing operations and sequences.
package optest

import (
	"testing"

	"github.com/aragon/admin-plugin-deployments/operations"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

// NewBundle returns a bundle with a test logger and an empty memory reporter.
func NewBundle(t *testing.T) operations.Bundle {
	t.Helper()

	return operations.NewBundle(t.Context, logger.Test(t), operations.NewMemoryReporter())
}
