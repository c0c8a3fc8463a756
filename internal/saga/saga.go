// Package saga runs short multi-step workflows whose steps cannot share a
// database transaction. Each step may register a compensation; when a
// later step fails, the compensations of the completed steps run in
// reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"
)

// Step is one action of a saga. Compensate may be nil when the action has
// nothing to undo.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga is an ordered list of steps. The zero value is ready to use.
type Saga struct {
	name  string
	steps []Step
}

func New(name string) *Saga {
	return &Saga{name: name}
}

// Add appends a step and returns s for chaining.
func (s *Saga) Add(name string, action, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Action: action, Compensate: compensate})
	return s
}

// StepError reports the step that failed and any compensation failures.
type StepError struct {
	Saga       string
	Step       string
	Err        error
	Compensate []error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("saga %s: step %s: %v", e.Saga, e.Step, e.Err)
	if len(e.Compensate) > 0 {
		msg += fmt.Sprintf(" (compensation: %v)", errors.Join(e.Compensate...))
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// Run executes the steps in order. On the first failure it compensates the
// steps that already completed, newest first, and returns a *StepError
// wrapping the failure. Compensations run with a context that is not
// cancelled together with ctx, so a timed out request still cleans up.
func (s *Saga) Run(ctx context.Context) error {
	for i, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.rollback(ctx, i, st.Name, err)
		}
		if err := st.Action(ctx); err != nil {
			return s.rollback(ctx, i, st.Name, err)
		}
	}
	return nil
}

func (s *Saga) rollback(ctx context.Context, failed int, step string, cause error) error {
	se := &StepError{Saga: s.name, Step: step, Err: cause}
	cctx := context.WithoutCancel(ctx)
	for i := failed - 1; i >= 0; i-- {
		c := s.steps[i].Compensate
		if c == nil {
			continue
		}
		if err := c(cctx); err != nil {
			se.Compensate = append(se.Compensate, fmt.Errorf("%s: %w", s.steps[i].Name, err))
		}
	}
	return se
}
