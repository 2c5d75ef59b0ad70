package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/step"
)

func (w *Workflow) categorySearch(ctx context.Context, in product.Input) error {
	err := w.Exec.Execute(ctx, step.Step{
		Name: string(CategorySearch),
		Tag:  "category_input_error",
		Strategies: []step.Strategy{
			step.NewStrategy("open-editor", func(ctx context.Context) error {
				return w.Page.Navigate(ctx, w.Config.CreateURL)
			}),
		},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return err
	}
	// the category modal sometimes opens with a delay
	w.Exec.Pause(ctx, 500*time.Millisecond)
	err = w.Exec.Execute(ctx, step.Step{
		Name: string(CategorySearch),
		Tag:  "category_input_error",
		Strategies: []step.Strategy{
			w.fill("placeholder", categoryInput, in.CategoryQuery),
			w.fill("absolute-xpath", categoryInputAbsolute, in.CategoryQuery),
		},
	})
	if err != nil {
		return err
	}
	w.Exec.Pause(ctx, 400*time.Millisecond)
	return nil
}

func (w *Workflow) selectFirstSuggestion(ctx context.Context, in product.Input) error {
	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := w.Page.WaitVisible(waitCtx, suggestionPanel); err != nil {
		log.LoggerFromContext(ctx).Debug(fmt.Sprintf("no suggestion panel showed up: %v", err))
	}
	cancel()
	err := w.Exec.Execute(ctx, step.Step{
		Name: string(CategorySelectFirstSuggestion),
		Tag:  "category_select_error",
		Strategies: []step.Strategy{
			step.NewStrategy("keyboard", func(ctx context.Context) error {
				if err := w.Page.Press(ctx, browser.KeyArrowDown); err != nil {
					return err
				}
				w.Exec.Pause(ctx, 100*time.Millisecond)
				return w.Page.Press(ctx, browser.KeyEnter)
			}),
			w.click("first-option", firstOption),
			w.click("first-listbox-entry", firstListboxEntry),
			w.click("first-dropdown-entry", firstDropdownEntry),
		},
	})
	if err != nil {
		return err
	}
	// the continue button is enabled shortly after the selection
	w.Exec.Pause(ctx, 300*time.Millisecond)
	return nil
}

func (w *Workflow) confirmCategory(ctx context.Context, in product.Input) error {
	err := w.Exec.Execute(ctx, step.Step{
		Name: string(ConfirmCategory),
		Tag:  "category_continue_error",
		Strategies: []step.Strategy{
			step.NewStrategy("continue-button", func(ctx context.Context) error {
				return w.clickRepeatedly(ctx, continueButton, 8)
			}),
			w.click("absolute-xpath", continueButtonAbsolute),
		},
		Timeout: 15 * time.Second,
	})
	if err != nil {
		return err
	}
	w.Exec.Pause(ctx, 400*time.Millisecond)
	if log.Debug {
		w.snapshot(ctx, "after_category")
	}
	return nil
}

// clickRepeatedly tries to click q up to n times, pressing Enter in between
// since a focused button sometimes reacts to the key but not to the click.
func (w *Workflow) clickRepeatedly(ctx context.Context, q browser.Query, n int) error {
	var err error
	for range n {
		clickCtx, cancel := context.WithTimeout(ctx, time.Second)
		err = w.Page.Click(clickCtx, q)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = w.Page.Press(ctx, browser.KeyEnter)
		w.Exec.Pause(ctx, 250*time.Millisecond)
	}
	return fmt.Errorf("%s did not become clickable: %w", q, err)
}

// ensureModal locates the about modal once per run. Its failure is
// reported under the state that needed the modal.
func (w *Workflow) ensureModal(ctx context.Context, state State) (browser.Query, error) {
	if w.modal != nil {
		return *w.modal, nil
	}
	var found browser.Query
	waitFor := func(name string, q browser.Query) step.Strategy {
		return step.NewStrategy(name, func(ctx context.Context) error {
			if err := w.Page.WaitVisible(ctx, q); err != nil {
				return err
			}
			found = q
			return nil
		})
	}
	err := w.Exec.Execute(ctx, step.Step{
		Name: string(state),
		Tag:  "about_modal_not_visible",
		Strategies: []step.Strategy{
			waitFor("heading-dialog", aboutModal),
			waitFor("visible-dialog", anyVisibleDialog),
		},
	})
	if err != nil {
		return browser.Query{}, err
	}
	w.modal = &found
	// lower controls have to be reachable
	if err := w.Page.EvaluateOn(ctx, found, `el => { el.scrollTo({top: 0}); return true; }`, nil); err != nil {
		log.LoggerFromContext(ctx).Debug(fmt.Sprintf("failed to scroll modal to top: %v", err))
	}
	return found, nil
}

func (w *Workflow) radio(ctx context.Context, state State, tag, label string) error {
	modal, err := w.ensureModal(ctx, state)
	if err != nil {
		return err
	}
	return w.Exec.Execute(ctx, step.Step{
		Name: string(state),
		Tag:  tag,
		Strategies: []step.Strategy{
			w.click("label-xpath", radioLabel(modal, label)),
			w.check("by-label", browser.Label(label).In(modal)),
			w.click("by-text", browser.Text(label).In(modal)),
			w.check("radio-input", radioInput(modal, label)),
		},
	})
}

func (w *Workflow) aboutWhoMade(ctx context.Context, in product.Input) error {
	label, ok := in.WhoMade.Label()
	if !ok {
		return fmt.Errorf("unknown who_made %q", in.WhoMade)
	}
	return w.radio(ctx, AboutWhoMade, "about_who_made_error", label)
}

func (w *Workflow) aboutWhatIsIt(ctx context.Context, in product.Input) error {
	return w.radio(ctx, AboutWhatIsIt, "about_what_is_it_error", in.WhatIsItLabel())
}

func (w *Workflow) aboutWhenMade(ctx context.Context, in product.Input) error {
	modal, err := w.ensureModal(ctx, AboutWhenMade)
	if err != nil {
		return err
	}
	var openers []step.Strategy
	for i, q := range whenMadeOpeners(modal) {
		openers = append(openers, w.click(fmt.Sprintf("opener-%d", i), q))
	}
	open := step.FirstOf(string(AboutWhenMade), openers...)
	w.Selector.Tag = "about_when_made_error"
	w.Selector.Shown = whenMadeOpeners(modal)
	return w.Selector.SelectLabel(ctx, open, product.WhenMadeLabel(in.WhenMade))
}

func (w *Workflow) aboutContinue(ctx context.Context, in product.Input) error {
	modal, err := w.ensureModal(ctx, AboutContinue)
	if err != nil {
		return err
	}
	var strategies []step.Strategy
	for i, q := range aboutContinueButtons(modal) {
		strategies = append(strategies, step.NewStrategy(fmt.Sprintf("continue-%d", i), func(ctx context.Context) error {
			err := w.Page.Click(ctx, q)
			if err != nil {
				_ = w.Page.Press(ctx, browser.KeyEnter)
			}
			return err
		}))
	}
	err = w.Exec.Execute(ctx, step.Step{
		Name:       string(AboutContinue),
		Tag:        "about_continue_error",
		Strategies: strategies,
	})
	if err != nil {
		return err
	}
	w.Exec.Pause(ctx, 400*time.Millisecond)
	// closing the modal may leave the page scroll-locked
	w.Overlay.Dismiss(ctx)
	return nil
}

func (w *Workflow) titleFill(ctx context.Context, in product.Input) error {
	return w.Exec.Execute(ctx, step.Step{
		Name: string(TitleFill),
		Tag:  "title_fill_error",
		Strategies: []step.Strategy{
			w.fill("by-label", titleLabel, in.Title),
			w.fill("following-input", titleFollowing, in.Title),
		},
	})
}

func (w *Workflow) photoUpload(ctx context.Context, in product.Input) error {
	logger := log.LoggerFromContext(ctx)
	for _, a := range photoAnchors {
		scrollCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := w.Page.ScrollIntoView(scrollCtx, a)
		cancel()
		if err == nil {
			w.Exec.Pause(ctx, 100*time.Millisecond)
			break
		}
		logger.Debug(fmt.Sprintf("photo anchor %s not found: %v", a, err))
	}
	paths := in.ImagePaths()
	var strategies []step.Strategy
	for i, q := range photoFileInputs {
		strategies = append(strategies, step.NewStrategy(fmt.Sprintf("file-input-%d", i), func(ctx context.Context) error {
			return w.Page.SetFiles(ctx, q, paths)
		}))
	}
	err := w.Exec.Execute(ctx, step.Step{
		Name:       string(PhotoUpload),
		Tag:        "photo_upload_error",
		Strategies: strategies,
	})
	if err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("uploaded %d photo(s)", len(paths)))
	w.Exec.Pause(ctx, w.Config.PhotoSettle)
	return nil
}

func (w *Workflow) descriptionFill(ctx context.Context, in product.Input) error {
	return w.Exec.Execute(ctx, step.Step{
		Name: string(DescriptionFill),
		Tag:  "description_fill_error",
		Strategies: []step.Strategy{
			w.fill("by-label", descriptionLabel, in.Description),
			w.fill("by-placeholder", descriptionHint, in.Description),
			w.fill("following-field", descriptionXPath, in.Description),
		},
	})
}

const scrollStepJS = `(() => {
	const max = document.body.scrollHeight || document.documentElement.scrollHeight;
	if (window.scrollY + window.innerHeight >= max - 2) { return true; }
	window.scrollBy(0, 600);
	return false;
})()`

// finish scrolls through the form so that lazily rendered sections load.
func (w *Workflow) finish(ctx context.Context, in product.Input) error {
	for range 100 {
		var bottom bool
		if err := w.Page.Evaluate(ctx, scrollStepJS, &bottom); err != nil {
			log.LoggerFromContext(ctx).Debug(fmt.Sprintf("failed to scroll: %v", err))
			break
		}
		if bottom {
			break
		}
		w.Exec.Pause(ctx, 60*time.Millisecond)
	}
	return nil
}
