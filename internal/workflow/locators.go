package workflow

import (
	"fmt"
	"strings"

	"github.com/theeshop/listingbot/internal/browser"
)

const aboutHeading = "Next, tell us about your listing"

// Locators of the listing editor. Absolute paths are last resorts for
// portals that render without labels.
var (
	categoryInput         = browser.Placeholder("Search for a category")
	categoryInputAbsolute = browser.XPath("/html/body/div[7]/div[2]/div[2]/div[2]/div[2]/div[1]/div[2]/div[1]/input")

	suggestionPanel    = browser.CSS("[role='option'], [role='listbox']")
	firstOption        = browser.Role("option", "")
	firstListboxEntry  = browser.XPath("(//div[@role='listbox']//div | //ul[@role='listbox']//li)[1]")
	firstDropdownEntry = browser.XPath("(//div[contains(@class,'dropdown') or contains(@class,'popover') or contains(@class,'menu')]//div)[1]")

	continueButton         = browser.Role("button", "Continue")
	continueButtonAbsolute = browser.XPath("/html/body/div[7]/div[2]/div[2]/div[2]/div[3]/div/button")

	aboutModal       = browser.Role("dialog", "").With(browser.Role("heading", aboutHeading))
	anyVisibleDialog = browser.CSS("div[role='dialog']:not([aria-hidden='true'])")
	whenMadeQuestion = "When was it made?"

	titleLabel     = browser.Label("Title")
	titleFollowing = browser.XPath("//label[contains(., 'Title')]/following::*[self::input or self::textarea][1]")

	descriptionLabel = browser.Label("Description")
	descriptionHint  = browser.Placeholder("Describe")
	descriptionXPath = browser.XPath("//label[contains(., 'Description')]/following::*[self::textarea or self::div[@contenteditable='true']][1]")

	photoAnchors    = []browser.Query{browser.Text("Photos").Exactly(), browser.Text("Photos and video"), browser.Text("Add up to 10 photos")}
	photoFileInputs = []browser.Query{
		browser.CSS("input[type='file'][multiple]").IncludeHidden(),
		browser.CSS("input[type='file'][accept*='image']").IncludeHidden(),
		browser.CSS("input[type='file']").IncludeHidden(),
		browser.XPath("//input[@type='file' and @multiple]").IncludeHidden(),
		browser.XPath("//div[contains(@class,'photo') or contains(@class,'drop')]/descendant::input[@type='file']").IncludeHidden(),
	}
)

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

func radioLabel(modal browser.Query, label string) browser.Query {
	return browser.XPath(fmt.Sprintf(".//label[normalize-space()[contains(., %s)]]", xpathLiteral(label))).In(modal)
}

func radioInput(modal browser.Query, label string) browser.Query {
	return browser.XPath(fmt.Sprintf(".//label[contains(., %s)]/descendant-or-self::label//input[@type='radio']", xpathLiteral(label))).In(modal).IncludeHidden()
}

func whenMadeOpeners(modal browser.Query) []browser.Query {
	return []browser.Query{
		browser.Role("combobox", whenMadeQuestion).In(modal),
		browser.Label(whenMadeQuestion).In(modal),
		browser.XPath(".//label[contains(., 'When was it made?')]/following-sibling::*[self::div or self::button]//button").In(modal),
		browser.XPath(".//button[contains(., 'When did you make it?')]").In(modal),
	}
}

func aboutContinueButtons(modal browser.Query) []browser.Query {
	return []browser.Query{
		browser.Role("button", "Continue").In(modal),
		browser.Text("Continue").In(modal),
		browser.XPath(".//button[contains(., 'Continue')]").In(modal),
	}
}
