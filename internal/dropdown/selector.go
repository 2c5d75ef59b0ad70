// Package dropdown picks an option from a listbox-like control. It first
// navigates the open panel with the keyboard by index and falls back to
// finding the option by its text, scrolling inside the panel.
package dropdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/step"
	"github.com/theeshop/listingbot/internal/utils"
)

const (
	DefaultMaxScrolls = 10
	DefaultScrollBy   = 300
)

// Panels locate the option panel opened last.
var Panels = []browser.Query{
	browser.CSS("[role='listbox']:not([aria-hidden='true'])").LastMatch(),
	browser.XPath("(//*[@role='listbox' or contains(@class,'wt-popover') or contains(@class,'menu')])[last()]"),
}

var (
	errOptionNotFound = errors.New("option not found")
	errNotSelected    = errors.New("keyboard selection did not take")
)

// shownJS reads the text a control displays for its current value.
const shownJS = `el => {
	if (el.tagName === 'SELECT') { const o = el.options[el.selectedIndex]; return o ? o.text : ''; }
	if ('value' in el && el.tagName !== 'BUTTON' && el.value) { return String(el.value); }
	return el.innerText || el.textContent || '';
}`

// IndexOf returns the position of label in order, comparing normalized
// text. Unknown labels yield 0.
func IndexOf(order []string, label string) int {
	want := utils.NormalizeSpace(label)
	for i, o := range order {
		if strings.EqualFold(o, want) {
			return i
		}
	}
	return 0
}

type Selector struct {
	Page browser.Page
	// Executor paces the key presses and records the failure.
	Executor *step.Executor
	// Order is the option order used by SelectLabel.
	Order []string
	// Tag names the diagnostics of a failed selection. The name of the
	// open strategy is used when empty.
	Tag string
	// Shown locate the control displaying the selected option. When one of
	// them has text, a keyboard selection must match the label or the
	// option is searched by text instead.
	Shown      []browser.Query
	MaxScrolls int
	ScrollBy   int
	// PanelWait bounds the lookup of each panel candidate.
	PanelWait time.Duration
}

func New(page browser.Page, exec *step.Executor, order []string) *Selector {
	return &Selector{Page: page, Executor: exec, Order: order}
}

func (s *Selector) exec() *step.Executor {
	if s.Executor == nil {
		s.Executor = &step.Executor{}
	}
	return s.Executor
}

// SelectLabel selects label, taking its keyboard index from s.Order. A
// label missing from s.Order is selected at index 0 without confirmation.
func (s *Selector) SelectLabel(ctx context.Context, open step.Strategy, label string) error {
	known := slices.ContainsFunc(s.Order, func(o string) bool {
		return strings.EqualFold(o, utils.NormalizeSpace(label))
	})
	return s.sel(ctx, open, IndexOf(s.Order, label), label, known)
}

// Select runs open and picks the option at index, confirming with Enter.
// If the keyboard cannot be used, or Shown still displays another value
// afterwards, the option is searched by label instead. When open fails or
// both paths fail, diagnostics are captured once under s.Tag and a
// *step.StepFailure is returned.
func (s *Selector) Select(ctx context.Context, open step.Strategy, index int, label string) error {
	return s.sel(ctx, open, index, label, true)
}

func (s *Selector) sel(ctx context.Context, open step.Strategy, index int, label string, confirm bool) error {
	name := open.Name()
	tag := s.Tag
	if tag == "" {
		tag = name
	}
	logger := log.LoggerFromContext(ctx).With(slog.String("step", name))
	e := s.exec()

	if err := open.Attempt(ctx); err != nil {
		return e.Fail(ctx, name, tag, []step.Attempt{{Strategy: "open", Err: err}}, nil)
	}
	e.Pause(ctx, 200*time.Millisecond)

	kerr := s.keyboard(ctx, index)
	if kerr == nil && confirm {
		kerr = s.confirm(ctx, label)
		if kerr != nil {
			// Enter closed the panel on the wrong option
			if err := open.Attempt(ctx); err != nil {
				logger.Debug(fmt.Sprintf("failed to reopen the option panel: %v", err))
			}
			e.Pause(ctx, 200*time.Millisecond)
		}
	}
	if kerr == nil {
		logger.Debug(fmt.Sprintf("selected option %d (%s) with the keyboard", index, label))
		e.Pause(ctx, e.SettleDelay())
		return nil
	}
	logger.Debug(fmt.Sprintf("keyboard selection failed: %v", kerr))

	verr := s.visual(ctx, label)
	if verr == nil {
		logger.Debug(fmt.Sprintf("selected option %q by text", label))
		e.Pause(ctx, e.SettleDelay())
		return nil
	}
	return e.Fail(ctx, name, tag, []step.Attempt{
		{Strategy: "keyboard", Err: kerr},
		{Strategy: "visual", Err: verr},
	}, nil)
}

// shown returns the text of the first Shown control that can be read.
func (s *Selector) shown(ctx context.Context) (string, bool) {
	wait := s.PanelWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	for _, q := range s.Shown {
		var text string
		readCtx, cancel := context.WithTimeout(ctx, wait)
		err := s.Page.EvaluateOn(readCtx, q, shownJS, &text)
		cancel()
		if err == nil {
			return utils.NormalizeSpace(text), true
		}
	}
	return "", false
}

// confirm checks that the control shows label. Controls without Shown,
// or showing no text at all, cannot be checked and pass.
func (s *Selector) confirm(ctx context.Context, label string) error {
	text, ok := s.shown(ctx)
	if !ok || text == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(text), strings.ToLower(utils.NormalizeSpace(label))) {
		return nil
	}
	return fmt.Errorf("%w: control shows %q, want %q", errNotSelected, text, label)
}

func (s *Selector) keyboard(ctx context.Context, index int) error {
	e := s.exec()
	if err := s.Page.Press(ctx, browser.KeyHome); err != nil {
		return err
	}
	e.Pause(ctx, 100*time.Millisecond)
	for range index {
		if err := s.Page.Press(ctx, browser.KeyArrowDown); err != nil {
			return err
		}
		e.Pause(ctx, 50*time.Millisecond)
	}
	if err := s.Page.Press(ctx, browser.KeyEnter); err != nil {
		return err
	}
	e.Pause(ctx, 150*time.Millisecond)
	return nil
}

func (s *Selector) panel(ctx context.Context) (browser.Query, error) {
	wait := s.PanelWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	var errs []error
	for _, q := range Panels {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		err := s.Page.WaitVisible(waitCtx, q)
		cancel()
		if err == nil {
			return q, nil
		}
		errs = append(errs, err)
	}
	return browser.Query{}, fmt.Errorf("no open option panel: %w", errors.Join(errs...))
}

func (s *Selector) visual(ctx context.Context, label string) error {
	logger := log.LoggerFromContext(ctx)
	e := s.exec()
	panel, err := s.panel(ctx)
	if err != nil {
		return err
	}
	maxScrolls := s.MaxScrolls
	if maxScrolls <= 0 {
		maxScrolls = DefaultMaxScrolls
	}
	scrollBy := s.ScrollBy
	if scrollBy <= 0 {
		scrollBy = DefaultScrollBy
	}
	for scrolls := 0; ; scrolls++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		html, err := s.Page.OuterHTML(ctx, panel)
		if err != nil {
			logger.Debug(fmt.Sprintf("failed to read option panel: %v", err))
		} else if path, ok, err := FindOption(html, label); err != nil {
			logger.Debug(fmt.Sprintf("failed to parse option panel: %v", err))
		} else if ok {
			opt := browser.CSS(path).In(panel)
			if err := s.Page.ScrollIntoView(ctx, opt); err != nil {
				logger.Debug(fmt.Sprintf("failed to scroll option into view: %v", err))
			}
			err := s.Page.Click(ctx, opt)
			if err == nil {
				return nil
			}
			logger.Debug(fmt.Sprintf("failed to click option %s: %v", path, err))
		}
		if scrolls == maxScrolls {
			return fmt.Errorf("%w after %d scrolls: %q", errOptionNotFound, maxScrolls, label)
		}
		fn := fmt.Sprintf("el => { el.scrollBy(0, %d); return el.scrollTop; }", scrollBy)
		if err := s.Page.EvaluateOn(ctx, panel, fn, nil); err != nil {
			_ = s.Page.Press(ctx, "PageDown")
		}
		e.Pause(ctx, 120*time.Millisecond)
	}
}
