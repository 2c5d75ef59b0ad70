package browser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryString(t *testing.T) {
	tests := []struct {
		q    Query
		want string
	}{
		{Label("Title"), "label=Title"},
		{Role("button", "Continue"), `role=button[name="Continue"]`},
		{Role("option", "").LastMatch(), "role=option:last"},
		{CSS("input[type='file']").IncludeHidden(), "css=input[type='file']:hidden"},
		{
			XPath(".//label").In(Role("dialog", "").With(Role("heading", "Next"))),
			`role=dialog[has=role=heading[name="Next"]] >> xpath=.//label`,
		},
		{Text("Photos").Exactly(), "text=Photos[exact]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.q.String())
	}
}

func TestQueryBuildersCopy(t *testing.T) {
	base := Label("Title")
	scoped := base.In(CSS("form"))
	assert.Nil(t, base.Scope)
	require.NotNil(t, scoped.Scope)
	assert.Equal(t, "form", scoped.Scope.Value)
}

func TestResolverCallEmbedsQuery(t *testing.T) {
	script, err := resolverCall(Role("button", "Continue"), "7", "mark")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(script, "((function (query, token, mode)"))
	assert.Contains(t, script, `{"by":"role","value":"button","name":"Continue"}, "7", "mark")`)
}

func TestElementCallQuotesSelector(t *testing.T) {
	got := elementCall(`[data-lb-target="3"]`, "el => el.outerHTML")
	assert.Equal(t, `(el => el.outerHTML)(document.querySelector("[data-lb-target=\"3\"]"))`, got)
}

func TestNewDriver(t *testing.T) {
	d, err := NewDriver(DriverChromedp, Options{})
	require.NoError(t, err)
	assert.IsType(t, &ChromeDriver{}, d)
	d, err = NewDriver(DriverPlaywright, Options{})
	require.NoError(t, err)
	assert.IsType(t, &PlaywrightDriver{}, d)
	_, err = NewDriver("selenium", Options{})
	assert.Error(t, err)
}

func TestOptionsArgsDoNotAlias(t *testing.T) {
	o := Options{Args: []string{"--lang=en-US"}}
	args := o.args()
	assert.Equal(t, len(DefaultArgs)+1, len(args))
	args[0] = "changed"
	assert.NotEqual(t, "changed", DefaultArgs[0])
}

func TestMockPage(t *testing.T) {
	ctx := context.Background()
	p := NewMockPage()
	title := Label("Title")

	err := p.Fill(ctx, title, "Mug")
	assert.True(t, errors.Is(err, ErrNotFound))

	p.Add(title)
	require.NoError(t, p.Fill(ctx, title, "Mug"))
	assert.Equal(t, "Mug", p.Value(title))

	var pressed []string
	p.OnPress = func(key string) { pressed = append(pressed, key) }
	require.NoError(t, p.Press(ctx, KeyEnter))
	assert.Equal(t, []string{KeyEnter}, pressed)
	assert.Equal(t, []string{"fill label=Title", "press Enter"}, p.Calls())

	p.OnEvaluate = func(expr string) (any, error) { return map[string]any{"n": 3}, nil }
	var res struct{ N int }
	require.NoError(t, p.Evaluate(ctx, "x", &res))
	assert.Equal(t, 3, res.N)
}
