// Package browser abstracts the browser automation library behind a small
// Page interface. Two drivers are available, one based on chromedp and one
// based on playwright. Both launch Chromium with a persistent profile
// directory so that logins survive between runs.
package browser

import (
	"context"
	"fmt"
)

// Key names understood by Page.Press.
const (
	KeyEscape    = "Escape"
	KeyEnter     = "Enter"
	KeyArrowDown = "ArrowDown"
	KeyHome      = "Home"
	KeyEnd       = "End"
	KeyTab       = "Tab"
)

// A Page is a single browser tab. Every method honors the deadline of ctx.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Count returns the number of elements matching q without waiting.
	Count(ctx context.Context, q Query) (int, error)
	// WaitVisible blocks until q resolves to a visible element.
	WaitVisible(ctx context.Context, q Query) error
	Click(ctx context.Context, q Query) error
	// Fill replaces the content of an input, textarea or contenteditable.
	Fill(ctx context.Context, q Query, value string) error
	// Check checks a checkbox or radio button, doing nothing if it already is.
	Check(ctx context.Context, q Query) error
	SetFiles(ctx context.Context, q Query, paths []string) error
	// Press sends a key to the focused element.
	Press(ctx context.Context, key string) error
	ScrollIntoView(ctx context.Context, q Query) error
	// Evaluate runs a JavaScript expression in the page and decodes its
	// JSON result into res, which may be nil.
	Evaluate(ctx context.Context, expr string, res any) error
	// EvaluateOn calls the JavaScript function fn with the element q
	// resolves to and decodes the result into res, which may be nil.
	EvaluateOn(ctx context.Context, q Query, fn string, res any) error
	OuterHTML(ctx context.Context, q Query) (string, error)
	// Content returns the serialized document.
	Content(ctx context.Context) (string, error)
	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// A Driver opens pages backed by a persistent browser profile.
type Driver interface {
	// Open launches a browser on profileDir and returns its first tab.
	Open(ctx context.Context, profileDir string) (Page, error)
	// Stop releases driver wide resources. It is called once no page
	// opened by the driver is in use anymore.
	Stop() error
}

// Options configure the browser launched by a Driver.
type Options struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// ExecPath overrides the browser binary.
	ExecPath string
	// Args are added to the default launch flags.
	Args []string
}

// DefaultArgs are passed to every launched browser. They hide the
// automation banner and silence first-run and session-restore prompts.
var DefaultArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--no-default-browser-check",
	"--disable-notifications",
	"--start-maximized",
	"--disable-session-crashed-bubble",
	"--restore-last-session=false",
	"--no-first-run",
	"--disable-features=InfiniteSessionRestore,TranslateUI",
}

func (o Options) args() []string {
	return append(append([]string{}, DefaultArgs...), o.Args...)
}

const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// NewDriver returns the driver registered under name.
func NewDriver(name string, opts Options) (Driver, error) {
	switch name {
	case DriverChromedp, "":
		return NewChromeDriver(opts), nil
	case DriverPlaywright:
		return NewPlaywrightDriver(opts), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", name)
	}
}

// Blur removes focus from the active element.
func Blur(ctx context.Context, p Page) error {
	return p.Evaluate(ctx, `(() => { const el = document.activeElement; if (el && el.blur) { el.blur(); } return true; })()`, nil)
}
