package step

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) strategy(name string, err error) Strategy {
	return NewStrategy(name, func(ctx context.Context) error {
		r.calls = append(r.calls, name)
		return err
	})
}

type countingCapturer struct {
	tags []string
}

func (c *countingCapturer) Capture(ctx context.Context, tag string) (string, error) {
	c.tags = append(c.tags, tag)
	return "diag/" + tag + ".png", nil
}

func newTestExecutor(c Capturer) (*Executor, *[]time.Duration) {
	var pauses []time.Duration
	e := &Executor{
		Capturer: c,
		Sleep: func(ctx context.Context, d time.Duration) {
			pauses = append(pauses, d)
		},
	}
	return e, &pauses
}

func TestExecuteShortCircuitsOnFirstSuccess(t *testing.T) {
	for winner := 0; winner < 4; winner++ {
		rec := &recorder{}
		strategies := make([]Strategy, 4)
		names := []string{"s1", "s2", "s3", "s4"}
		for i, n := range names {
			var err error
			if i != winner {
				err = errors.New("nope")
			}
			strategies[i] = rec.strategy(n, err)
		}
		capt := &countingCapturer{}
		e, pauses := newTestExecutor(capt)

		err := e.Execute(context.Background(), Step{Name: "TitleFill", Strategies: strategies})

		require.NoError(t, err)
		assert.Equal(t, names[:winner+1], rec.calls)
		assert.Empty(t, capt.tags)
		assert.Equal(t, []time.Duration{DefaultSettleDelay}, *pauses)
	}
}

func TestExecuteAllFailCapturesOnce(t *testing.T) {
	rec := &recorder{}
	capt := &countingCapturer{}
	e, pauses := newTestExecutor(capt)

	err := e.Execute(context.Background(), Step{
		Name: "TitleFill",
		Tag:  "title_fill_error",
		Strategies: []Strategy{
			rec.strategy("by-label", errors.New("no label")),
			rec.strategy("by-xpath", errors.New("no xpath")),
		},
	})

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "TitleFill", f.Step)
	assert.Equal(t, "title_fill_error", f.Tag)
	assert.Equal(t, "diag/title_fill_error.png", f.Artifact)
	assert.Len(t, f.Attempts, 2)
	assert.Equal(t, []string{"title_fill_error"}, capt.tags)
	assert.Equal(t, []string{"by-label", "by-xpath"}, rec.calls)
	assert.Empty(t, *pauses)
	assert.Contains(t, f.Error(), "by-xpath: no xpath")
}

func TestExecuteTagDefaultsToName(t *testing.T) {
	capt := &countingCapturer{}
	e, _ := newTestExecutor(capt)

	err := e.Execute(context.Background(), Step{Name: "DescriptionFill", Strategies: []Strategy{
		NewStrategy("x", func(ctx context.Context) error { return errors.New("x") }),
	}})

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "DescriptionFill", f.Tag)
	assert.Equal(t, []string{"DescriptionFill"}, capt.tags)
}

func TestExecuteTimesOutSlowStrategyAndContinues(t *testing.T) {
	e, _ := newTestExecutor(nil)
	var secondRan bool

	err := e.Execute(context.Background(), Step{
		Name:    "Slow",
		Timeout: 20 * time.Millisecond,
		Strategies: []Strategy{
			NewStrategy("hangs", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}),
			NewStrategy("fast", func(ctx context.Context) error {
				secondRan = true
				return nil
			}),
		},
	})

	require.NoError(t, err)
	assert.True(t, secondRan)
}

func TestExecuteIsolatesAfterEachFailure(t *testing.T) {
	e, _ := newTestExecutor(nil)
	isolations := 0
	e.Isolate = func(ctx context.Context) error {
		isolations++
		return errors.New("ignored")
	}

	err := e.Execute(context.Background(), Step{Name: "S", Strategies: []Strategy{
		NewStrategy("a", func(ctx context.Context) error { return errors.New("a") }),
		NewStrategy("b", func(ctx context.Context) error { return errors.New("b") }),
		NewStrategy("c", func(ctx context.Context) error { return nil }),
	}})

	require.NoError(t, err)
	assert.Equal(t, 2, isolations)
}

func TestExecuteRecoversPanickingStrategy(t *testing.T) {
	e, _ := newTestExecutor(nil)

	err := e.Execute(context.Background(), Step{Name: "S", Strategies: []Strategy{
		NewStrategy("boom", func(ctx context.Context) error { panic("nil locator") }),
		NewStrategy("ok", func(ctx context.Context) error { return nil }),
	}})

	assert.NoError(t, err)
}

func TestExecuteWithoutStrategies(t *testing.T) {
	capt := &countingCapturer{}
	e, _ := newTestExecutor(capt)

	err := e.Execute(context.Background(), Step{Name: "Empty"})

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrNoStrategies)
	assert.Equal(t, []string{"Empty"}, capt.tags)
	assert.Equal(t, "Empty", f.Step)
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	capt := &countingCapturer{}
	e, _ := newTestExecutor(capt)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Execute(ctx, Step{Name: "S", Strategies: []Strategy{rec.strategy("a", nil)}})

	_, ok := AsFailure(err)
	assert.True(t, ok)
	assert.Empty(t, rec.calls)
	assert.Len(t, capt.tags, 1)
}

func TestCaptureErrorLeavesArtifactEmpty(t *testing.T) {
	e, _ := newTestExecutor(CaptureFunc(func(ctx context.Context, tag string) (string, error) {
		return "", errors.New("no page")
	}))

	err := e.Execute(context.Background(), Step{Name: "S", Strategies: []Strategy{
		NewStrategy("a", func(ctx context.Context) error { return errors.New("a") }),
	}})

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Empty(t, f.Artifact)
}

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	Sleep(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFirstOf(t *testing.T) {
	rec := &recorder{}
	s := FirstOf("open",
		rec.strategy("combobox", errors.New("missing")),
		rec.strategy("label", nil),
		rec.strategy("xpath", nil),
	)
	assert.Equal(t, "open", s.Name())
	require.NoError(t, s.Attempt(context.Background()))
	assert.Equal(t, []string{"combobox", "label"}, rec.calls)

	err := FirstOf("open", rec.strategy("a", errors.New("x"))).Attempt(context.Background())
	assert.ErrorContains(t, err, "a: x")
	assert.ErrorIs(t, FirstOf("empty").Attempt(context.Background()), ErrNoStrategies)
}
