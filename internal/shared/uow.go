package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UnitOfWork runs a sequence of independent datastore writes that should
// appear atomic to the user but are not backed by a datastore transaction
// (group edits across a visit, plan creation with N installment inserts).
// Every step is attempted; failures are collected rather than aborting the
// sequence, and only failed steps are re-run on Retry. A partial failure is
// always surfaced, never swallowed.
type UnitOfWork struct {
	label string
	steps []uowStep
}

type uowStep struct {
	name string
	fn   func(context.Context) error
	done bool
}

// NewUnitOfWork constructs a unit of work with a label used in error text.
func NewUnitOfWork(label string) *UnitOfWork {
	return &UnitOfWork{label: label}
}

// Add registers a named step.
func (u *UnitOfWork) Add(name string, fn func(context.Context) error) {
	u.steps = append(u.steps, uowStep{name: name, fn: fn})
}

// Run attempts every not-yet-completed step in order and returns a
// PartialError listing the ones that failed, or nil when all succeeded.
func (u *UnitOfWork) Run(ctx context.Context) error {
	var failed []StepFailure
	for i := range u.steps {
		step := &u.steps[i]
		if step.done {
			continue
		}
		if err := step.fn(ctx); err != nil {
			failed = append(failed, StepFailure{Step: step.name, Err: err})
			continue
		}
		step.done = true
	}
	if len(failed) == 0 {
		return nil
	}
	return &PartialError{Label: u.label, Failures: failed, Attempted: len(u.steps)}
}

// Retry re-runs only the steps that have not completed.
func (u *UnitOfWork) Retry(ctx context.Context) error {
	return u.Run(ctx)
}

// Pending reports how many steps have not completed.
func (u *UnitOfWork) Pending() int {
	n := 0
	for _, s := range u.steps {
		if !s.done {
			n++
		}
	}
	return n
}

// StepFailure pairs a step name with its error.
type StepFailure struct {
	Step string
	Err  error
}

// PartialError reports which steps of a multi-write sequence failed.
type PartialError struct {
	Label     string
	Failures  []StepFailure
	Attempted int
}

func (e *PartialError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Step)
	}
	return fmt.Sprintf("%s: %d/%d writes failed (%s)", e.Label, len(e.Failures), e.Attempted, strings.Join(names, ", "))
}

// Unwrap exposes the first underlying error for errors.Is checks.
func (e *PartialError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Err
}

// AsPartialError extracts a PartialError when err carries one.
func AsPartialError(err error) (*PartialError, bool) {
	var pe *PartialError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
