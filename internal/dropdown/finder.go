package dropdown

import (
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/theeshop/listingbot/internal/utils"
)

// heuristics are tried in order on the panel markup. The last one only
// considers leaves so that a wrapper whose whole text equals the label
// does not shadow the option itself.
var heuristics = []struct {
	selector string
	leaf     bool
}{
	{"[role='option']", false},
	{"li", false},
	{"div, span, button", true},
}

// FindOption searches the outer HTML of an option panel for an element
// whose normalized text equals label. It returns a CSS selector relative to
// the panel element.
func FindOption(panelHTML, label string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(panelHTML))
	if err != nil {
		return "", false, err
	}
	root := doc.Find("body").Children().First()
	if root.Length() == 0 {
		return "", false, nil
	}
	want := utils.NormalizeSpace(label)
	for _, h := range heuristics {
		var match *goquery.Selection
		root.Find(h.selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if h.leaf && s.Children().Length() > 0 {
				return true
			}
			if strings.EqualFold(utils.NormalizeSpace(s.Text()), want) {
				match = s
				return false
			}
			return true
		})
		if match != nil {
			return cssPath(root, match), true, nil
		}
	}
	return "", false, nil
}

func cssPath(root, s *goquery.Selection) string {
	var parts []string
	for n := s; n.Length() > 0 && !n.IsSelection(root); n = n.Parent() {
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", goquery.NodeName(n), n.Index()+1))
	}
	slices.Reverse(parts)
	return ":scope > " + strings.Join(parts, " > ")
}
