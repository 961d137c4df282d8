package harness

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DuplicateNameError is returned when a suite name is registered twice or a
// suite declares two cases with the same name.
type DuplicateNameError struct {
	Kind  string // "suite" or "case"
	Name  string
	Suite string // owning suite, for case duplicates
}

func (e *DuplicateNameError) Error() string {
	if e.Kind == "case" {
		return fmt.Sprintf("duplicate case name %q in suite %q", e.Name, e.Suite)
	}
	return fmt.Sprintf("duplicate suite name %q", e.Name)
}

// PreconditionError reports that a suite's precondition did not complete.
// The case is Errored and none of its steps run.
type PreconditionError struct {
	Suite string
	Cause error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %v", e.Cause)
}

func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

// ActionTimeoutError reports a step whose target operation did not settle
// within the step timeout.
type ActionTimeoutError struct {
	Step    int
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *ActionTimeoutError) Error() string {
	return fmt.Sprintf("step %d (%s): no stable state within %s", e.Step, e.Op, e.Timeout)
}

func (e *ActionTimeoutError) Unwrap() error {
	return e.Err
}

// AssertionFailure reports an expectation mismatch. It is fatal to the
// case, never to the process.
type AssertionFailure struct {
	Step     int
	Check    string
	Expected string
	Actual   string

	// Position is the offending element of a sequence check, or -1.
	Position int
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("step %d (%s): expected %s, got %s", e.Step, e.Check, e.Expected, e.Actual)
}

// StepError reports a step whose target operation failed for a reason
// other than a timeout (element missing, navigation refused).
type StepError struct {
	Step int
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// InfrastructureError reports that the target itself is unusable. It is the
// only failure that escapes a case: it aborts the whole suite.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure during %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// CancelledError reports a case interrupted by run cancellation or by its
// suite being aborted. Cause carries why.
type CancelledError struct {
	Step  int
	Cause error
}

func (e *CancelledError) Error() string {
	var infra *InfrastructureError
	if errors.As(e.Cause, &infra) {
		return fmt.Sprintf("suite aborted: %v", infra)
	}
	if e.Cause != nil && !errors.Is(e.Cause, context.Canceled) {
		return fmt.Sprintf("cancelled: %v", e.Cause)
	}
	return "cancelled"
}

// Unwrap reports context.Canceled, not Cause: only the case that hit the
// infrastructure failure counts as one.
func (e *CancelledError) Unwrap() error {
	return context.Canceled
}

// IsInfrastructure reports whether err carries an InfrastructureError.
func IsInfrastructure(err error) bool {
	var ie *InfrastructureError
	return errors.As(err, &ie)
}

// IsAssertionFailure reports whether err carries an AssertionFailure.
func IsAssertionFailure(err error) bool {
	var af *AssertionFailure
	return errors.As(err, &af)
}

// VerdictFor converts a case error into its verdict. A nil error passes.
func VerdictFor(err error) Verdict {
	if err == nil {
		return Passed()
	}

	var (
		cancelled *CancelledError
		infra     *InfrastructureError
		pre       *PreconditionError
		af        *AssertionFailure
		timeout   *ActionTimeoutError
		stepErr   *StepError
	)
	switch {
	case errors.As(err, &cancelled):
		return Errored(cancelled.Error())
	case errors.As(err, &pre):
		return Errored(pre.Error())
	case errors.As(err, &infra):
		return Errored(infra.Error())
	case errors.As(err, &af):
		v := Failed(af.Error(), af.Step)
		v.Expected = af.Expected
		v.Actual = af.Actual
		return v
	case errors.As(err, &timeout):
		return Failed(timeout.Error(), timeout.Step)
	case errors.As(err, &stepErr):
		return Failed(stepErr.Error(), stepErr.Step)
	default:
		return Errored(err.Error())
	}
}
