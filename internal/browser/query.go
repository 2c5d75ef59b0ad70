package browser

import (
	"errors"
	"fmt"
	"strings"
)

// By selects how a Query matches elements.
type By string

const (
	ByLabel       By = "label"
	ByPlaceholder By = "placeholder"
	ByRole        By = "role"
	ByText        By = "text"
	ByCSS         By = "css"
	ByXPath       By = "xpath"
)

// ErrNotFound is returned when a query does not resolve to an element.
var ErrNotFound = errors.New("element not found")

// A Query locates an element independently of the driver. Text matching is
// case-insensitive and whitespace-normalized; Exact turns substring matching
// into equality. Unless Hidden is set only visible elements match.
type Query struct {
	By    By     `json:"by"`
	Value string `json:"value"`
	// Name is the accessible name for ByRole queries.
	Name  string `json:"name,omitempty"`
	Exact bool   `json:"exact,omitempty"`
	// Scope restricts the search to the descendants of the element it
	// resolves to.
	Scope *Query `json:"scope,omitempty"`
	// Has keeps only matches that contain an element matching it.
	Has    *Query `json:"has,omitempty"`
	Last   bool   `json:"last,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

func Label(text string) Query       { return Query{By: ByLabel, Value: text} }
func Placeholder(text string) Query { return Query{By: ByPlaceholder, Value: text} }
func Text(text string) Query        { return Query{By: ByText, Value: text} }
func CSS(selector string) Query     { return Query{By: ByCSS, Value: selector} }
func XPath(expr string) Query       { return Query{By: ByXPath, Value: expr} }

// Role matches elements by ARIA role and, if name is not empty, by
// accessible name.
func Role(role, name string) Query { return Query{By: ByRole, Value: role, Name: name} }

// In returns a copy of q scoped to the element scope resolves to.
func (q Query) In(scope Query) Query {
	q.Scope = &scope
	return q
}

// With returns a copy of q that only matches elements containing inner.
func (q Query) With(inner Query) Query {
	q.Has = &inner
	return q
}

// LastMatch returns a copy of q that picks the last match instead of the first.
func (q Query) LastMatch() Query {
	q.Last = true
	return q
}

// IncludeHidden returns a copy of q that also matches invisible elements,
// e.g. file inputs hidden behind a drop zone.
func (q Query) IncludeHidden() Query {
	q.Hidden = true
	return q
}

// Exactly returns a copy of q with exact text matching.
func (q Query) Exactly() Query {
	q.Exact = true
	return q
}

func (q Query) String() string {
	var b strings.Builder
	if q.Scope != nil {
		b.WriteString(q.Scope.String())
		b.WriteString(" >> ")
	}
	fmt.Fprintf(&b, "%s=%s", q.By, q.Value)
	if q.Name != "" {
		fmt.Fprintf(&b, "[name=%q]", q.Name)
	}
	if q.Exact {
		b.WriteString("[exact]")
	}
	if q.Has != nil {
		fmt.Fprintf(&b, "[has=%s]", q.Has)
	}
	if q.Last {
		b.WriteString(":last")
	}
	if q.Hidden {
		b.WriteString(":hidden")
	}
	return b.String()
}
