// Package overlay closes transient dialogs and undoes the scroll lock they
// leave on the document.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/step"
)

const (
	DefaultRounds = 4
	DefaultPause  = 200 * time.Millisecond
)

// Dialogs matches open modal dialogs.
var Dialogs = browser.CSS("div[role='dialog']:not([aria-hidden='true'])")

const restoreScrollJS = `(() => {
	for (const el of [document.documentElement, document.body]) {
		if (!el) { continue; }
		el.style.overflow = 'auto';
		el.style.removeProperty('position');
		el.classList.remove('no-scroll', 'wt-no-scroll', 'overlay-lock', 'wt-overlay-open');
	}
	window.scrollTo(0, 0);
	return true;
})()`

// Dismisser presses Escape while dialogs are open, for a bounded number of
// rounds, and then restores page scrolling. Dismiss never fails and can be
// called any number of times.
type Dismisser struct {
	Page   browser.Page
	Rounds int
	Pause  time.Duration
	// Sleep replaces the pause between rounds.
	Sleep func(ctx context.Context, d time.Duration)
}

func New(page browser.Page) *Dismisser {
	return &Dismisser{Page: page}
}

func (d *Dismisser) rounds() int {
	if d.Rounds > 0 {
		return d.Rounds
	}
	return DefaultRounds
}

func (d *Dismisser) pause(ctx context.Context) {
	p := d.Pause
	if p <= 0 {
		p = DefaultPause
	}
	if d.Sleep != nil {
		d.Sleep(ctx, p)
		return
	}
	step.Sleep(ctx, p)
}

func (d *Dismisser) Dismiss(ctx context.Context) {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "overlay"))
	for i := 0; i < d.rounds(); i++ {
		n, err := d.Page.Count(ctx, Dialogs)
		if err != nil {
			logger.Debug(fmt.Sprintf("failed to count dialogs: %v", err))
			break
		}
		if n == 0 {
			break
		}
		logger.Debug(fmt.Sprintf("%d dialog(s) open, pressing escape (round %d)", n, i+1))
		if err := d.Page.Press(ctx, browser.KeyEscape); err != nil {
			logger.Debug(fmt.Sprintf("failed to press escape: %v", err))
			break
		}
		d.pause(ctx)
	}
	if err := d.Page.Evaluate(ctx, restoreScrollJS, nil); err != nil {
		logger.Warn("failed to restore scrolling", slog.String("err", err.Error()))
	}
}
