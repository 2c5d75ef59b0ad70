package browser

import (
	"context"
	"fmt"
	"sync"
)

// MockPage is an in-memory Page. Elements exist once added and every
// interaction is recorded. The On* hooks let tests react to interactions,
// e.g. closing a dialog when Escape is pressed. Hooks run without the page
// lock held so they may call back into the page.
type MockPage struct {
	mu       sync.Mutex
	elements map[string]int
	html     map[string]string
	values   map[string]string
	files    map[string][]string
	checked  map[string]bool
	calls    []string
	keys     []string
	shots    int
	closed   bool
	url      string
	content  string

	OnPress      func(key string)
	OnClick      func(q Query) error
	OnEvaluate   func(expr string) (any, error)
	OnEvaluateOn func(q Query, fn string) (any, error)
	OnHTML       func(q Query) (string, error)
	// ScreenshotErr makes Screenshot fail.
	ScreenshotErr error
	// PressErr makes Press fail.
	PressErr error
}

func NewMockPage() *MockPage {
	return &MockPage{
		elements: map[string]int{},
		html:     map[string]string{},
		values:   map[string]string{},
		files:    map[string][]string{},
		checked:  map[string]bool{},
		content:  "<html><head></head><body></body></html>",
	}
}

// Add makes queries resolvable.
func (m *MockPage) Add(qs ...Query) *MockPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		if m.elements[q.String()] == 0 {
			m.elements[q.String()] = 1
		}
	}
	return m
}

func (m *MockPage) SetCount(q Query, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elements[q.String()] = n
}

func (m *MockPage) Remove(q Query) {
	m.SetCount(q, 0)
}

// SetHTML adds q and sets the markup returned by OuterHTML.
func (m *MockPage) SetHTML(q Query, html string) {
	m.Add(q)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.html[q.String()] = html
}

func (m *MockPage) SetContent(html string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = html
}

func (m *MockPage) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

func (m *MockPage) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.keys...)
}

func (m *MockPage) Value(q Query) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[q.String()]
}

func (m *MockPage) Files(q Query) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[q.String()]
}

func (m *MockPage) Checked(q Query) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checked[q.String()]
}

func (m *MockPage) Screenshots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shots
}

func (m *MockPage) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockPage) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// use checks that q is present and records the call under the lock.
func (m *MockPage) use(ctx context.Context, verb string, q Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.elements[q.String()] == 0 {
		return fmt.Errorf("%s: %w", q, ErrNotFound)
	}
	m.calls = append(m.calls, verb+" "+q.String())
	return nil
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
	m.calls = append(m.calls, "navigate "+url)
	return nil
}

func (m *MockPage) Count(ctx context.Context, q Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elements[q.String()], nil
}

func (m *MockPage) WaitVisible(ctx context.Context, q Query) error {
	return m.use(ctx, "wait", q)
}

func (m *MockPage) Click(ctx context.Context, q Query) error {
	if err := m.use(ctx, "click", q); err != nil {
		return err
	}
	if m.OnClick != nil {
		return m.OnClick(q)
	}
	return nil
}

func (m *MockPage) Fill(ctx context.Context, q Query, value string) error {
	if err := m.use(ctx, "fill", q); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[q.String()] = value
	return nil
}

func (m *MockPage) Check(ctx context.Context, q Query) error {
	if err := m.use(ctx, "check", q); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked[q.String()] = true
	return nil
}

func (m *MockPage) SetFiles(ctx context.Context, q Query, paths []string) error {
	if err := m.use(ctx, "setfiles", q); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[q.String()] = append([]string{}, paths...)
	return nil
}

func (m *MockPage) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.PressErr != nil {
		return m.PressErr
	}
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.calls = append(m.calls, "press "+key)
	m.mu.Unlock()
	if m.OnPress != nil {
		m.OnPress(key)
	}
	return nil
}

func (m *MockPage) ScrollIntoView(ctx context.Context, q Query) error {
	return m.use(ctx, "scroll", q)
}

func (m *MockPage) Evaluate(ctx context.Context, expr string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.calls = append(m.calls, "evaluate")
	m.mu.Unlock()
	if m.OnEvaluate == nil {
		return nil
	}
	v, err := m.OnEvaluate(expr)
	if err != nil {
		return err
	}
	return decode(v, res)
}

func (m *MockPage) EvaluateOn(ctx context.Context, q Query, fn string, res any) error {
	if err := m.use(ctx, "evaluate-on", q); err != nil {
		return err
	}
	if m.OnEvaluateOn == nil {
		return nil
	}
	v, err := m.OnEvaluateOn(q, fn)
	if err != nil {
		return err
	}
	return decode(v, res)
}

func (m *MockPage) OuterHTML(ctx context.Context, q Query) (string, error) {
	if m.OnHTML != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return m.OnHTML(q)
	}
	if err := m.use(ctx, "html", q); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.html[q.String()], nil
}

func (m *MockPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content, nil
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	if m.ScreenshotErr != nil {
		return nil, m.ScreenshotErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shots++
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (m *MockPage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockDriver hands out MockPages and records how it was used.
type MockDriver struct {
	mu     sync.Mutex
	opened []string
	pages  []*MockPage
	stops  int

	// NewPage builds the page for a profile. Defaults to NewMockPage.
	NewPage func(profileDir string) *MockPage
	OpenErr error
}

func (d *MockDriver) Open(ctx context.Context, profileDir string) (Page, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	p := NewMockPage()
	if d.NewPage != nil {
		p = d.NewPage(profileDir)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, profileDir)
	d.pages = append(d.pages, p)
	return p, nil
}

func (d *MockDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *MockDriver) Opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.opened...)
}

func (d *MockDriver) Pages() []*MockPage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockPage{}, d.pages...)
}

func (d *MockDriver) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}
