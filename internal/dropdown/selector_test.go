package dropdown

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/step"
)

type captures struct{ tags []string }

func (c *captures) Capture(ctx context.Context, tag string) (string, error) {
	c.tags = append(c.tags, tag)
	return "diag/" + tag + ".png", nil
}

func newTestSelector(page *browser.MockPage) (*Selector, *captures) {
	c := &captures{}
	exec := &step.Executor{
		Capturer: c,
		Sleep:    func(context.Context, time.Duration) {},
	}
	s := New(page, exec, product.WhenMadeOrder)
	s.PanelWait = 10 * time.Millisecond
	return s, c
}

func opener(page *browser.MockPage, q browser.Query) step.Strategy {
	return step.NewStrategy("AboutWhenMade", func(ctx context.Context) error {
		return page.Click(ctx, q)
	})
}

var whenMadeButton = browser.Role("combobox", "When was it made?")

func countKeys(keys []string, key string) int {
	n := 0
	for _, k := range keys {
		if k == key {
			n++
		}
	}
	return n
}

func TestSelectLabelPressesArrowDownIndexTimes(t *testing.T) {
	for k, label := range product.WhenMadeOrder {
		page := browser.NewMockPage().Add(whenMadeButton)
		s, c := newTestSelector(page)

		err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), label)

		require.NoError(t, err, label)
		keys := page.Keys()
		assert.Equal(t, k, countKeys(keys, browser.KeyArrowDown), label)
		assert.Equal(t, browser.KeyHome, keys[0])
		assert.Equal(t, browser.KeyEnter, keys[len(keys)-1])
		assert.Empty(t, c.tags)
	}
}

func TestSelectUnknownLabelDefaultsToFirst(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	s, _ := newTestSelector(page)

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "Sometime long ago")

	require.NoError(t, err)
	assert.Equal(t, []string{browser.KeyHome, browser.KeyEnter}, page.Keys())
}

func TestSelectFallsBackToVisualMatch(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	page.PressErr = errors.New("focus intercepted")
	panel := Panels[0]
	page.SetHTML(panel, `<ul role="listbox"><li>2020 - 2025</li><li>2010 - 2019</li></ul>`)
	option := browser.CSS(":scope > li:nth-child(2)").In(panel)
	page.Add(option)
	s, c := newTestSelector(page)

	err := s.Select(context.Background(), opener(page, whenMadeButton), 2, "2010 - 2019")

	require.NoError(t, err)
	assert.Contains(t, page.Calls(), "click "+option.String())
	assert.Empty(t, c.tags)
}

func TestSelectScrollsPanelUntilOptionAppears(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	page.PressErr = errors.New("focus intercepted")
	panel := Panels[0]
	page.Add(panel)
	scrolls := 0
	page.OnEvaluateOn = func(q browser.Query, fn string) (any, error) {
		if strings.Contains(fn, "scrollBy(0, 300)") {
			scrolls++
		}
		return scrolls * 300, nil
	}
	page.OnHTML = func(q browser.Query) (string, error) {
		if scrolls < 3 {
			return `<div role="listbox"><div role="option">1900s</div></div>`, nil
		}
		return `<div role="listbox"><div role="option">1950s</div></div>`, nil
	}
	option := browser.CSS(":scope > div:nth-child(1)").In(panel)
	page.Add(option)
	s, _ := newTestSelector(page)

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "1950s")

	require.NoError(t, err)
	assert.Equal(t, 3, scrolls)
}

func TestSelectFailureIsCapturedOnceAndBounded(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	page.PressErr = errors.New("focus intercepted")
	panel := Panels[0]
	page.SetHTML(panel, `<ul role="listbox"><li>1900s</li></ul>`)
	s, c := newTestSelector(page)

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "1990s")

	f, ok := step.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "AboutWhenMade", f.Step)
	assert.Equal(t, "diag/AboutWhenMade.png", f.Artifact)
	assert.Equal(t, []string{"AboutWhenMade"}, c.tags)
	scrolls := slices.DeleteFunc(page.Calls(), func(call string) bool { return !strings.HasPrefix(call, "evaluate-on") })
	assert.Len(t, scrolls, DefaultMaxScrolls)
}

func countCalls(calls []string, call string) int {
	n := 0
	for _, c := range calls {
		if c == call {
			n++
		}
	}
	return n
}

func TestSelectConfirmsKeyboardSelection(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	page.OnEvaluateOn = func(q browser.Query, fn string) (any, error) {
		if fn == shownJS {
			return " 2010 -  2019 ", nil
		}
		return nil, nil
	}
	s, c := newTestSelector(page)
	s.Shown = []browser.Query{whenMadeButton}

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "2010 - 2019")

	require.NoError(t, err)
	assert.Equal(t, 1, countCalls(page.Calls(), "click "+whenMadeButton.String()))
	assert.Equal(t, 2, countKeys(page.Keys(), browser.KeyArrowDown))
	assert.Empty(t, c.tags)
}

func TestSelectFallsBackWhenKeyboardSelectionDidNotTake(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	// the host page swallowed the keys, the control still shows its prompt
	page.OnEvaluateOn = func(q browser.Query, fn string) (any, error) {
		if fn == shownJS {
			return "When did you make it?", nil
		}
		return nil, nil
	}
	panel := Panels[0]
	page.SetHTML(panel, `<ul role="listbox"><li>2020 - 2025</li><li>2010 - 2019</li></ul>`)
	option := browser.CSS(":scope > li:nth-child(2)").In(panel)
	page.Add(option)
	s, c := newTestSelector(page)
	s.Shown = []browser.Query{whenMadeButton}

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "2010 - 2019")

	require.NoError(t, err)
	assert.Equal(t, browser.KeyEnter, page.Keys()[len(page.Keys())-1])
	// reopened after Enter closed the panel
	assert.Equal(t, 2, countCalls(page.Calls(), "click "+whenMadeButton.String()))
	assert.Contains(t, page.Calls(), "click "+option.String())
	assert.Empty(t, c.tags)
}

func TestSelectUnknownLabelIsNotConfirmed(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	page.OnEvaluateOn = func(q browser.Query, fn string) (any, error) {
		return "Made To Order", nil
	}
	s, c := newTestSelector(page)
	s.Shown = []browser.Query{whenMadeButton}

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "Sometime long ago")

	require.NoError(t, err)
	assert.Equal(t, []string{browser.KeyHome, browser.KeyEnter}, page.Keys())
	assert.Empty(t, c.tags)
}

func TestSelectFailureUsesTag(t *testing.T) {
	page := browser.NewMockPage().Add(whenMadeButton)
	page.PressErr = errors.New("focus intercepted")
	s, c := newTestSelector(page)
	s.Tag = "about_when_made_error"

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "1990s")

	f, ok := step.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "AboutWhenMade", f.Step)
	assert.Equal(t, "about_when_made_error", f.Tag)
	assert.Equal(t, "diag/about_when_made_error.png", f.Artifact)
	assert.Equal(t, []string{"about_when_made_error"}, c.tags)
}

func TestSelectOpenFailure(t *testing.T) {
	page := browser.NewMockPage()
	s, c := newTestSelector(page)

	err := s.SelectLabel(context.Background(), opener(page, whenMadeButton), "1990s")

	f, ok := step.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "open", f.Attempts[0].Strategy)
	assert.ErrorIs(t, f.Attempts[0].Err, browser.ErrNotFound)
	assert.Empty(t, page.Keys())
	assert.Len(t, c.tags, 1)
}

func TestIndexOf(t *testing.T) {
	assert.Equal(t, 0, IndexOf(product.WhenMadeOrder, "Made To Order"))
	assert.Equal(t, 6, IndexOf(product.WhenMadeOrder, " 1990s "))
	assert.Equal(t, 1, IndexOf(product.WhenMadeOrder, "2020  -  2025"))
	assert.Equal(t, 0, IndexOf(product.WhenMadeOrder, "unknown"))
	assert.Equal(t, 0, IndexOf(nil, "1990s"))
}
