package step

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/theeshop/listingbot/internal/log"
)

const (
	DefaultAttemptTimeout = 5 * time.Second
	DefaultSettleDelay    = 200 * time.Millisecond
)

// Executor runs steps. The zero value is usable: it uses the default
// timeouts and skips diagnostics.
type Executor struct {
	Capturer Capturer
	// Settle is the pause after a successful strategy that gives the UI
	// time to react before the next step starts.
	Settle time.Duration
	// Isolate runs after every failed attempt so that the next strategy
	// does not inherit focus or other state from it. Its error is ignored.
	Isolate func(ctx context.Context) error
	// Timeout is used for steps that do not set their own.
	Timeout time.Duration
	// Sleep replaces the pause used between actions. Defaults to the
	// package level Sleep.
	Sleep func(ctx context.Context, d time.Duration)
}

// SettleDelay is the pause after a successful action.
func (e *Executor) SettleDelay() time.Duration {
	if e.Settle > 0 {
		return e.Settle
	}
	return DefaultSettleDelay
}

func (e *Executor) timeout(s Step) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultAttemptTimeout
}

// Pause blocks for d or until ctx is done.
func (e *Executor) Pause(ctx context.Context, d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(ctx, d)
		return
	}
	Sleep(ctx, d)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Execute tries the strategies of s in order and returns nil on the first
// success. Strategies after the winning one are never invoked. If all of them
// fail, the capturer is called once and a *StepFailure is returned.
func (e *Executor) Execute(ctx context.Context, s Step) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("step", s.Name))
	if len(s.Strategies) == 0 {
		return e.Fail(ctx, s.Name, s.tag(), nil, ErrNoStrategies)
	}

	attempts := make([]Attempt, 0, len(s.Strategies))
	for i, st := range s.Strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Strategy: st.Name(), Err: err})
			break
		}
		err := e.attempt(ctx, s, st)
		if err == nil {
			logger.Debug(fmt.Sprintf("strategy %d (%s) succeeded", i, st.Name()))
			e.Pause(ctx, e.SettleDelay())
			return nil
		}
		logger.Debug(fmt.Sprintf("strategy %d (%s) failed: %v", i, st.Name(), err))
		attempts = append(attempts, Attempt{Strategy: st.Name(), Err: err})
		if e.Isolate != nil {
			_ = e.Isolate(ctx)
		}
	}
	return e.Fail(ctx, s.Name, s.tag(), attempts, nil)
}

func (e *Executor) attempt(ctx context.Context, s Step, st Strategy) (err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout(s))
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return st.Attempt(attemptCtx)
}

// Fail captures diagnostics for tag and builds the terminal failure. It is
// exported for components that exhaust their own fallbacks outside of
// Execute, like the dropdown selector.
func (e *Executor) Fail(ctx context.Context, name, tag string, attempts []Attempt, cause error) *StepFailure {
	f := &StepFailure{Step: name, Tag: tag, Attempts: attempts, Cause: cause}
	logger := log.LoggerFromContext(ctx).With(slog.String("step", name))
	if e.Capturer != nil {
		// the run context may already be done, the snapshot should still be taken
		capCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		path, err := e.Capturer.Capture(capCtx, tag)
		if err != nil {
			logger.Warn(fmt.Sprintf("failed to capture diagnostics: %v", err))
		} else {
			f.Artifact = path
		}
	}
	logger.Error(f.Error())
	return f
}
