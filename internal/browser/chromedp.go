package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/theeshop/listingbot/internal/log"
)

//go:embed resolver.js
var resolverJS string

const (
	markAttr = "data-lb-target"
	// used when the caller did not bound the lookup
	defaultLookupTimeout = 10 * time.Second
	pollInterval         = 100 * time.Millisecond
)

var keys = map[string]string{
	KeyEscape:    kb.Escape,
	KeyEnter:     kb.Enter,
	KeyArrowDown: kb.ArrowDown,
	KeyHome:      kb.Home,
	KeyEnd:       kb.End,
	KeyTab:       kb.Tab,
}

// ChromeDriver drives Chromium through the DevTools protocol. Every page
// gets its own browser process since a profile directory can only be used
// by one process at a time.
type ChromeDriver struct {
	opts Options
}

func NewChromeDriver(opts Options) *ChromeDriver {
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = 1920, 1080
	}
	return &ChromeDriver{opts: opts}
}

func (d *ChromeDriver) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		chromedp.WindowSize(d.opts.WindowWidth, d.opts.WindowHeight),
		chromedp.Flag("headless", d.opts.Headless),
		chromedp.Flag("enable-automation", false),
	)
	for _, a := range d.opts.args() {
		name, value, found := strings.Cut(strings.TrimPrefix(a, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	if d.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(d.opts.UserAgent))
	}
	if d.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(d.opts.ExecPath))
	}
	return opts
}

func (d *ChromeDriver) Open(ctx context.Context, profileDir string) (Page, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("driver", DriverChromedp), slog.String("profile", profileDir))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), d.allocatorOptions(profileDir)...)
	tab, cancelTab := chromedp.NewContext(allocCtx)
	p := &chromePage{
		tab: tab,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}
	// The first Run allocates the browser and binds its process to the
	// context it is given, so it has to be the tab itself. ctx only aborts
	// the start.
	stop := context.AfterFunc(ctx, p.cancel)
	err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		if !log.Debug {
			return nil
		}
		_, product, _, userAgent, _, err := cdpbrowser.GetVersion().Do(ctx)
		if err != nil {
			logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
			return nil
		}
		logger.Debug(fmt.Sprintf("chrome version: product=%s, userAgent=%s", product, userAgent))
		return nil
	}))
	if !stop() {
		err = ctx.Err()
	}
	if err != nil {
		p.cancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	logger.Debug("browser started")
	return p, nil
}

// Stop is a no-op, closing a page shuts down its browser.
func (d *ChromeDriver) Stop() error { return nil }

type chromePage struct {
	tab    context.Context
	cancel context.CancelFunc
	seq    atomic.Uint64
}

// run executes actions on the tab, bounded by the deadline and
// cancellation of ctx. The browser must already be running: contexts
// derived from the tab only cancel the actions, not the browser.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func resolverCall(q Query, token, mode string) (string, error) {
	arg, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s)(%s, %q, %q)", strings.TrimSpace(resolverJS), arg, token, mode), nil
}

// resolve polls until q matches, marks the element with a unique attribute
// and returns a CSS selector for it.
func (p *chromePage) resolve(ctx context.Context, q Query) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultLookupTimeout)
		defer cancel()
	}
	token := strconv.FormatUint(p.seq.Add(1), 10)
	script, err := resolverCall(q, token, "mark")
	if err != nil {
		return "", err
	}
	for {
		var found bool
		if err := p.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
			return "", fmt.Errorf("%s: %w", q, err)
		}
		if found {
			return fmt.Sprintf(`[%s="%s"]`, markAttr, token), nil
		}
		t := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", fmt.Errorf("%s: %w", q, ErrNotFound)
		case <-t.C:
		}
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) Count(ctx context.Context, q Query) (int, error) {
	script, err := resolverCall(q, "", "count")
	if err != nil {
		return 0, err
	}
	var n int
	if err := p.run(ctx, chromedp.Evaluate(script, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, q Query) error {
	_, err := p.resolve(ctx, q)
	return err
}

func (p *chromePage) Click(ctx context.Context, q Query) error {
	sel, err := p.resolve(ctx, q)
	if err != nil {
		return err
	}
	return p.run(ctx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (p *chromePage) Fill(ctx context.Context, q Query, value string) error {
	sel, err := p.resolve(ctx, q)
	if err != nil {
		return err
	}
	reset := elementCall(sel, `el => {
		if ('value' in el) { el.value = ''; } else { el.textContent = ''; }
		el.dispatchEvent(new Event('input', { bubbles: true }));
		return true;
	}`)
	var ok bool
	return p.run(ctx,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.Evaluate(reset, &ok),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Check(ctx context.Context, q Query) error {
	sel, err := p.resolve(ctx, q)
	if err != nil {
		return err
	}
	var checked bool
	if err := p.run(ctx, chromedp.Evaluate(elementCall(sel, `el => el.checked === true`), &checked)); err != nil {
		return err
	}
	if checked {
		return nil
	}
	// styled radios often hide the input itself
	err = p.run(ctx, chromedp.Evaluate(elementCall(sel, `el => { el.click(); return el.checked === true; }`), &checked))
	if err != nil {
		return err
	}
	if !checked {
		return fmt.Errorf("%s: element did not become checked", q)
	}
	return nil
}

func (p *chromePage) SetFiles(ctx context.Context, q Query, paths []string) error {
	sel, err := p.resolve(ctx, q)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.SetUploadFiles(sel, paths, chromedp.ByQuery))
}

func (p *chromePage) Press(ctx context.Context, key string) error {
	k, ok := keys[key]
	if !ok {
		k = key
	}
	return p.run(ctx, chromedp.KeyEvent(k))
}

func (p *chromePage) ScrollIntoView(ctx context.Context, q Query) error {
	sel, err := p.resolve(ctx, q)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.ScrollIntoView(sel, chromedp.ByQuery))
}

func (p *chromePage) Evaluate(ctx context.Context, expr string, res any) error {
	if res == nil {
		var discard any
		res = &discard
	}
	return p.run(ctx, chromedp.Evaluate(expr, res))
}

func (p *chromePage) EvaluateOn(ctx context.Context, q Query, fn string, res any) error {
	sel, err := p.resolve(ctx, q)
	if err != nil {
		return err
	}
	return p.Evaluate(ctx, elementCall(sel, fn), res)
}

func (p *chromePage) OuterHTML(ctx context.Context, q Query) (string, error) {
	sel, err := p.resolve(ctx, q)
	if err != nil {
		return "", err
	}
	var html string
	err = p.run(ctx, chromedp.OuterHTML(sel, &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var body string
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return body, err
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// elementCall builds an expression applying the function fn to the element
// matched by the CSS selector sel.
func elementCall(sel, fn string) string {
	quoted, _ := json.Marshal(sel)
	return fmt.Sprintf("(%s)(document.querySelector(%s))", fn, quoted)
}
