package runner

import (
	"fmt"
	"strings"
)

// ConfigError reports options that cannot describe a valid run. No workload
// code has executed when it is returned.
type ConfigError struct {
	Issues []string
}

func (e *ConfigError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid run configuration: " + e.Issues[0]
	}
	return fmt.Sprintf("invalid run configuration:\n  - %s", strings.Join(e.Issues, "\n  - "))
}

// SetupError wraps a failure of Workload.Setup or of building a worker.
// No bench iteration has run when it is returned.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// TeardownError wraps a failure while closing workers or running
// Workload.Teardown. The Result returned alongside it is complete.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown failed: %v", e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }
