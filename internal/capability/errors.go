package capability

import (
	"fmt"
	"strings"
	"time"
)

// ManifestError reports a structural defect in the manifest: a duplicate
// capability name, a dangling dependency reference, or a malformed
// configuration key. It is detected at load time and aborts before any
// resolution.
type ManifestError struct {
	Capability string
	Detail     string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest: capability %q: %s", e.Capability, e.Detail)
}

// DisabledDependencyError reports that an enabled capability depends, directly
// or transitively, on a disabled one.
type DisabledDependencyError struct {
	Capability string
	Dependency string
}

func (e *DisabledDependencyError) Error() string {
	return fmt.Sprintf("capability %q depends on disabled capability %q", e.Capability, e.Dependency)
}

// CyclicDependencyError reports a dependency cycle. Path lists the capability
// names in traversal order with the first name repeated at the end.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

// InstantiationError wraps a factory or start failure for a capability.
type InstantiationError struct {
	Capability string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("start capability %q: %v", e.Capability, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

// TimeoutError reports that a capability start or stop exceeded its budget.
// During startup it triggers the same rollback path as an InstantiationError.
type TimeoutError struct {
	Capability string
	Op         string // "start" or "stop"
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("capability %q: %s exceeded %s timeout", e.Capability, e.Op, e.Timeout)
}

// TeardownError wraps a capability teardown failure. Teardown errors are
// collected, never fatal to sibling teardown attempts.
type TeardownError struct {
	Capability string
	Err        error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("stop capability %q: %v", e.Capability, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// StartError aggregates the original startup failure with any teardown errors
// encountered while rolling back already-started capabilities.
type StartError struct {
	// Cause is the instantiation or timeout error that triggered rollback.
	Cause error

	// Teardown holds errors collected while rolling back, in teardown order.
	Teardown []error
}

func (e *StartError) Error() string {
	if len(e.Teardown) == 0 {
		return e.Cause.Error()
	}
	parts := make([]string, 0, len(e.Teardown)+1)
	parts = append(parts, e.Cause.Error())
	for _, te := range e.Teardown {
		parts = append(parts, "rollback: "+te.Error())
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the cause and the rollback errors to errors.Is/As.
func (e *StartError) Unwrap() []error {
	errs := make([]error, 0, len(e.Teardown)+1)
	errs = append(errs, e.Cause)
	errs = append(errs, e.Teardown...)
	return errs
}
