// Package merr implements the error taxonomy described for the agent:
// validation, parse, I/O, runtime-warning and child-failure errors.
package merr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Each wraps an entity name and an optional cause so
// callers can errors.Is against the kind while still logging details.
var (
	// ErrValidation marks a configuration violating a data-model invariant.
	ErrValidation = errors.New("validation error")
	// ErrParse marks a malformed document or value surfaced by a codec.
	ErrParse = errors.New("parse error")
	// ErrIO marks a failed filesystem operation.
	ErrIO = errors.New("io error")
	// ErrChildFailure marks a Task invocation that exited non-zero or was signalled.
	ErrChildFailure = errors.New("child failure")
)

// Validation wraps ErrValidation with the offending entity's name.
func Validation(entity, reason string) error {
	return fmt.Errorf("%s: %w: %s", entity, ErrValidation, reason)
}

// Parse wraps ErrParse with the source location or field that failed.
func Parse(where string, cause error) error {
	return fmt.Errorf("%s: %w: %v", where, ErrParse, cause)
}

// IO wraps ErrIO with the path that failed.
func IO(path string, cause error) error {
	return fmt.Errorf("%s: %w: %v", path, ErrIO, cause)
}

// ChildFailure wraps ErrChildFailure with the task/action name and status.
func ChildFailure(action string, status int) error {
	return fmt.Errorf("%s: %w: status=%d", action, ErrChildFailure, status)
}

// Aggregate collects multiple validation errors so a config load can
// report every offending entity at once instead of bailing on the first.
type Aggregate struct {
	errs []error
}

// Add appends err to the aggregate. A nil err is a no-op.
func (a *Aggregate) Add(err error) {
	if err != nil {
		a.errs = append(a.errs, err)
	}
}

// Addf is a convenience wrapper that formats and appends as a Validation error.
func (a *Aggregate) Addf(entity, format string, args ...any) {
	a.Add(Validation(entity, fmt.Sprintf(format, args...)))
}

// Len reports how many errors have been collected.
func (a *Aggregate) Len() int { return len(a.errs) }

// ErrOrNil returns nil if no errors were added, else itself as an error.
func (a *Aggregate) ErrOrNil() error {
	if len(a.errs) == 0 {
		return nil
	}
	return a
}

// Error implements the error interface, joining every collected message.
func (a *Aggregate) Error() string {
	return errors.Join(a.errs...).Error()
}

// Unwrap exposes the individual errors for errors.Is/As traversal.
func (a *Aggregate) Unwrap() []error { return a.errs }
