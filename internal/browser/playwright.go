package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/theeshop/listingbot/internal/log"
)

// PlaywrightDriver drives Chromium through a playwright server. The server
// is started with the first page and shared by all pages until Stop.
type PlaywrightDriver struct {
	opts Options
	mu   sync.Mutex
	pw   *playwright.Playwright
}

func NewPlaywrightDriver(opts Options) *PlaywrightDriver {
	return &PlaywrightDriver{opts: opts}
}

func (d *PlaywrightDriver) launchOptions() playwright.BrowserTypeLaunchPersistentContextOptions {
	o := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:        playwright.Bool(d.opts.Headless),
		Args:            d.opts.args(),
		AcceptDownloads: playwright.Bool(true),
		Timeout:         playwright.Float(30000),
	}
	if d.opts.WindowWidth > 0 && d.opts.WindowHeight > 0 {
		o.Viewport = &playwright.Size{Width: d.opts.WindowWidth, Height: d.opts.WindowHeight}
	} else {
		// follow the OS window, which is maximized
		o.NoViewport = playwright.Bool(true)
	}
	if d.opts.UserAgent != "" {
		o.UserAgent = playwright.String(d.opts.UserAgent)
	}
	if d.opts.ExecPath != "" {
		o.ExecutablePath = playwright.String(d.opts.ExecPath)
	}
	return o
}

func (d *PlaywrightDriver) Open(ctx context.Context, profileDir string) (Page, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("driver", DriverPlaywright), slog.String("profile", profileDir))
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
		d.pw = pw
	}
	bctx, err := d.pw.Chromium.LaunchPersistentContext(profileDir, d.launchOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to launch persistent context: %w", err)
	}
	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	logger.Debug("browser started")
	return &pwPage{bctx: bctx, page: page}, nil
}

func (d *PlaywrightDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pw == nil {
		return nil
	}
	err := d.pw.Stop()
	d.pw = nil
	return err
}

type pwPage struct {
	bctx playwright.BrowserContext
	page playwright.Page
}

// timeout converts the deadline of ctx into a playwright timeout in
// milliseconds. Nil leaves playwright's default in place.
func timeout(ctx context.Context) *float64 {
	dl, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := float64(time.Until(dl).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

// match builds a locator for all elements matching q.
func (p *pwPage) match(q Query) playwright.Locator {
	var l playwright.Locator
	exact := playwright.Bool(q.Exact)
	if q.Scope == nil {
		switch q.By {
		case ByLabel:
			l = p.page.GetByLabel(q.Value, playwright.PageGetByLabelOptions{Exact: exact})
		case ByPlaceholder:
			l = p.page.GetByPlaceholder(q.Value, playwright.PageGetByPlaceholderOptions{Exact: exact})
		case ByRole:
			o := playwright.PageGetByRoleOptions{Exact: exact}
			if q.Name != "" {
				o.Name = q.Name
			}
			l = p.page.GetByRole(playwright.AriaRole(q.Value), o)
		case ByText:
			l = p.page.GetByText(q.Value, playwright.PageGetByTextOptions{Exact: exact})
		case ByXPath:
			l = p.page.Locator("xpath=" + q.Value)
		default:
			l = p.page.Locator(q.Value)
		}
	} else {
		scope := p.locator(*q.Scope)
		switch q.By {
		case ByLabel:
			l = scope.GetByLabel(q.Value, playwright.LocatorGetByLabelOptions{Exact: exact})
		case ByPlaceholder:
			l = scope.GetByPlaceholder(q.Value, playwright.LocatorGetByPlaceholderOptions{Exact: exact})
		case ByRole:
			o := playwright.LocatorGetByRoleOptions{Exact: exact}
			if q.Name != "" {
				o.Name = q.Name
			}
			l = scope.GetByRole(playwright.AriaRole(q.Value), o)
		case ByText:
			l = scope.GetByText(q.Value, playwright.LocatorGetByTextOptions{Exact: exact})
		case ByXPath:
			l = scope.Locator("xpath=" + q.Value)
		default:
			l = scope.Locator(q.Value)
		}
	}
	if q.Has != nil {
		l = l.Filter(playwright.LocatorFilterOptions{Has: p.match(*q.Has)})
	}
	if !q.Hidden {
		l = l.Locator("visible=true")
	}
	return l
}

// locator narrows the matches of q to the single element it resolves to.
func (p *pwPage) locator(q Query) playwright.Locator {
	if q.Last {
		return p.match(q).Last()
	}
	return p.match(q).First()
}

func (p *pwPage) Navigate(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeout(ctx),
	})
	return err
}

func (p *pwPage) Count(ctx context.Context, q Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.match(q).Count()
}

func (p *pwPage) WaitVisible(ctx context.Context, q Query) error {
	err := p.locator(q).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("%s: %w: %v", q, ErrNotFound, err)
	}
	return nil
}

func (p *pwPage) Click(ctx context.Context, q Query) error {
	return p.locator(q).Click(playwright.LocatorClickOptions{Timeout: timeout(ctx)})
}

func (p *pwPage) Fill(ctx context.Context, q Query, value string) error {
	return p.locator(q).Fill(value, playwright.LocatorFillOptions{Timeout: timeout(ctx)})
}

func (p *pwPage) Check(ctx context.Context, q Query) error {
	return p.locator(q).Check(playwright.LocatorCheckOptions{Timeout: timeout(ctx)})
}

func (p *pwPage) SetFiles(ctx context.Context, q Query, paths []string) error {
	return p.locator(q).SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{Timeout: timeout(ctx)})
}

func (p *pwPage) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().Press(key)
}

func (p *pwPage) ScrollIntoView(ctx context.Context, q Query) error {
	return p.locator(q).ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: timeout(ctx)})
}

func (p *pwPage) Evaluate(ctx context.Context, expr string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := p.page.Evaluate(expr)
	if err != nil {
		return err
	}
	return decode(v, res)
}

func (p *pwPage) EvaluateOn(ctx context.Context, q Query, fn string, res any) error {
	v, err := p.locator(q).Evaluate(fn, nil, playwright.LocatorEvaluateOptions{Timeout: timeout(ctx)})
	if err != nil {
		return err
	}
	return decode(v, res)
}

func (p *pwPage) OuterHTML(ctx context.Context, q Query) (string, error) {
	var html string
	err := p.EvaluateOn(ctx, q, `el => el.outerHTML`, &html)
	return html, err
}

func (p *pwPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *pwPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeout(ctx)})
}

func (p *pwPage) Close() error {
	return p.bctx.Close()
}

// decode copies the loosely typed result of an evaluation into res.
func decode(v any, res any) error {
	if res == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}
