// Package workflow drives the listing editor from category search to a
// filled form. Each state is a step whose strategies are alternative ways
// of reaching the same goal; the first step that fails aborts the run.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/dropdown"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/overlay"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/step"
	"github.com/theeshop/listingbot/internal/utils"
)

const DefaultCreateURL = "https://www.etsy.com/your/shops/me/listing-editor/create"

type Config struct {
	CreateURL string
	// StepTimeout bounds a single strategy attempt.
	StepTimeout time.Duration
	// Settle is the pause after every successful step.
	Settle time.Duration
	// PhotoSettle gives uploaded thumbnails time to render.
	PhotoSettle time.Duration
	// HoldOpen keeps the finished form on screen before returning.
	HoldOpen time.Duration
}

// Workflow creates one listing on one page. It is not safe for concurrent
// use and cannot be resumed; start a new Run instead.
type Workflow struct {
	Account  string
	Page     browser.Page
	Exec     *step.Executor
	Selector *dropdown.Selector
	Overlay  *overlay.Dismisser
	Config   Config
	// RunID names the next run. A random id is used when empty.
	RunID    string

	modal *browser.Query
}

// New wires the step executor, dropdown selector and overlay dismisser to
// page. capt receives failures and the final snapshot.
func New(account string, page browser.Page, capt step.Capturer, cfg Config) *Workflow {
	if cfg.CreateURL == "" {
		cfg.CreateURL = DefaultCreateURL
	}
	if cfg.PhotoSettle == 0 {
		cfg.PhotoSettle = 1500 * time.Millisecond
	}
	exec := &step.Executor{
		Capturer: capt,
		Settle:   cfg.Settle,
		Timeout:  cfg.StepTimeout,
		Isolate: func(ctx context.Context) error {
			return browser.Blur(ctx, page)
		},
	}
	return &Workflow{
		Account:  account,
		Page:     page,
		Exec:     exec,
		Selector: dropdown.New(page, exec, product.WhenMadeOrder),
		Overlay:  overlay.New(page),
		Config:   cfg,
	}
}

type stage struct {
	state State
	skip  func(in product.Input) bool
	run   func(ctx context.Context, in product.Input) error
}

func (w *Workflow) stages() []stage {
	return []stage{
		{CategorySearch, nil, w.categorySearch},
		{CategorySelectFirstSuggestion, nil, w.selectFirstSuggestion},
		{ConfirmCategory, nil, w.confirmCategory},
		{AboutWhoMade, func(in product.Input) bool { return in.WhoMade == "" }, w.aboutWhoMade},
		{AboutWhatIsIt, nil, w.aboutWhatIsIt},
		{AboutWhenMade, func(in product.Input) bool { return in.WhenMade == "" }, w.aboutWhenMade},
		{AboutContinue, nil, w.aboutContinue},
		{TitleFill, func(in product.Input) bool { return in.Title == "" }, w.titleFill},
		{PhotoUpload, func(in product.Input) bool { return len(in.ImagePaths()) == 0 }, w.photoUpload},
		{DescriptionFill, func(in product.Input) bool { return in.Description == "" }, w.descriptionFill},
		{Done, nil, w.finish},
	}
}

// Run walks the states in order. It returns as soon as a step fails; the
// failure carries the state name and the diagnostic artifact.
func (w *Workflow) Run(ctx context.Context, in product.Input) Outcome {
	out := Outcome{RunID: w.RunID, Account: w.Account, StartedAt: time.Now()}
	if out.RunID == "" {
		out.RunID = uuid.NewString()
	}
	logger := log.LoggerFromContext(ctx).With(slog.String("account", w.Account), slog.String("run", out.RunID))
	ctx = log.ContextWithLogger(ctx, logger)
	w.modal = nil

	if err := in.Validate(); err != nil {
		out.Failure = &step.StepFailure{Step: "Validate", Tag: "validate", Cause: err}
		logger.Error(fmt.Sprintf("invalid input: %v", err))
		out.FinishedAt = time.Now()
		return out
	}

	logger.Info(fmt.Sprintf("creating listing %q in category %q", utils.ShortenString(in.Title, 40), in.CategoryQuery))
	for _, s := range w.stages() {
		if s.skip != nil && s.skip(in) {
			logger.Debug(fmt.Sprintf("skipping state %s", s.state))
			out.Skipped = append(out.Skipped, s.state)
			continue
		}
		logger.Debug(fmt.Sprintf("entering state %s", s.state))
		if err := s.run(ctx, in); err != nil {
			f, ok := step.AsFailure(err)
			if !ok {
				f = w.Exec.Fail(ctx, string(s.state), string(s.state), nil, err)
			}
			out.Failure = f
			out.FinishedAt = time.Now()
			logger.Error(fmt.Sprintf("aborted in state %s", s.state))
			return out
		}
		out.Visited = append(out.Visited, s.state)
		if s.state == Done {
			out.Snapshot = w.snapshot(ctx, "after")
		}
	}
	out.FinishedAt = time.Now()
	logger.Info("listing form filled")
	if w.Config.HoldOpen > 0 {
		logger.Info(fmt.Sprintf("keeping the page open for %v", w.Config.HoldOpen))
		w.Exec.Pause(ctx, w.Config.HoldOpen)
	}
	return out
}

func (w *Workflow) click(name string, q browser.Query) step.Strategy {
	return step.NewStrategy(name, func(ctx context.Context) error {
		return w.Page.Click(ctx, q)
	})
}

func (w *Workflow) fill(name string, q browser.Query, value string) step.Strategy {
	return step.NewStrategy(name, func(ctx context.Context) error {
		return w.Page.Fill(ctx, q, value)
	})
}

func (w *Workflow) check(name string, q browser.Query) step.Strategy {
	return step.NewStrategy(name, func(ctx context.Context) error {
		if err := w.Page.ScrollIntoView(ctx, q); err != nil {
			return err
		}
		return w.Page.Check(ctx, q)
	})
}

// snapshot captures the page outside of any failure. Errors are only logged.
func (w *Workflow) snapshot(ctx context.Context, tag string) string {
	if w.Exec.Capturer == nil {
		return ""
	}
	path, err := w.Exec.Capturer.Capture(ctx, tag)
	if err != nil {
		log.LoggerFromContext(ctx).Warn(fmt.Sprintf("failed to take %s snapshot: %v", tag, err))
		return ""
	}
	return path
}
