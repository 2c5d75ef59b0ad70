// Package step runs a named goal through an ordered list of independent
// strategies. The first strategy that succeeds wins; when every strategy
// fails the step fails once, with a single diagnostic capture.
package step

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// A Strategy is one self-contained way of reaching a step's goal.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context) error
}

type funcStrategy struct {
	name string
	fn   func(ctx context.Context) error
}

func (s funcStrategy) Name() string                      { return s.name }
func (s funcStrategy) Attempt(ctx context.Context) error { return s.fn(ctx) }

// NewStrategy wraps fn as a named Strategy.
func NewStrategy(name string, fn func(ctx context.Context) error) Strategy {
	return funcStrategy{name: name, fn: fn}
}

// Step is a named goal backed by an ordered list of strategies.
type Step struct {
	Name       string
	Strategies []Strategy
	// Timeout bounds each single attempt. Zero means the executor default.
	Timeout time.Duration
	// Tag names the diagnostic artifact. Defaults to Name.
	Tag string
}

func (s Step) tag() string {
	if s.Tag != "" {
		return s.Tag
	}
	return s.Name
}

// Attempt records the error of one failed strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// StepFailure is returned when all strategies of a step are exhausted.
type StepFailure struct {
	Step     string
	Tag      string
	Artifact string
	Attempts []Attempt
	// Cause is set when the failure did not come from strategy attempts,
	// e.g. a step without strategies.
	Cause error
}

func (f *StepFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "step %s failed", f.Step)
	if f.Cause != nil {
		fmt.Fprintf(&b, ": %v", f.Cause)
	}
	for _, a := range f.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Strategy, a.Err)
	}
	if f.Artifact != "" {
		fmt.Fprintf(&b, " (diagnostic: %s)", f.Artifact)
	}
	return b.String()
}

func (f *StepFailure) Unwrap() error { return f.Cause }

// AsFailure extracts a *StepFailure from err.
func AsFailure(err error) (*StepFailure, bool) {
	var f *StepFailure
	ok := errors.As(err, &f)
	return f, ok
}

// ErrNoStrategies is the cause of a failure for a step without strategies.
var ErrNoStrategies = errors.New("step has no strategies")

// FirstOf combines strategies into one that tries them in order and
// succeeds with the first that does. It is meant for sub-actions such as
// opening a dropdown, where a failure of the whole must not be captured
// separately.
func FirstOf(name string, strategies ...Strategy) Strategy {
	return NewStrategy(name, func(ctx context.Context) error {
		var errs []error
		for _, s := range strategies {
			err := s.Attempt(ctx)
			if err == nil {
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			if ctx.Err() != nil {
				break
			}
		}
		if len(errs) == 0 {
			return ErrNoStrategies
		}
		return errors.Join(errs...)
	})
}
