// Package page extracts plan price candidates from regional pricing pages.
package page

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// Layout describes the markup of a plan picker. The defaults match the service's current pages;
// tests and alternate sites inject their own.
type Layout struct {
	// SectionSelector finds containers that carry the plan-group attribute.
	SectionSelector string
	SectionAttr     string
	// ClassSectionSelector lists the containers inspected for MonthlyClass and YearlyClass.
	ClassSectionSelector string
	MonthlyClass         *regexp.Regexp
	YearlyClass          *regexp.Regexp
	CardSelector         string
	NameSelector         string
	PriceSelector        string

	// GenericSelector and GenericClass pick the elements inspected by the fallback scan.
	GenericSelector      string
	GenericClass         *regexp.Regexp
	MaxGenericElements   int
	MaxMatchesPerElement int
	// MaxTextLength bounds how much text the fallback scan will treat as a single price.
	MaxTextLength int
	// MaxHeadingLength bounds plan names taken from a heading near a price.
	MaxHeadingLength int
	// MaxSiblingLength bounds sibling text searched for tier keywords.
	MaxSiblingLength int
	SiblingWindow    int
}

// DefaultLayout returns the layout of the service's plan picker.
func DefaultLayout() Layout {
	return Layout{
		SectionSelector:      "section[data-plan-group]",
		SectionAttr:          "data-plan-group",
		ClassSectionSelector: "section",
		MonthlyClass:         regexp.MustCompile(`(?i)max-plan-picker-group-monthly`),
		YearlyClass:          regexp.MustCompile(`(?i)max-plan-picker-group-yearly`),
		CardSelector:         "div.max-plan-picker-group__card",
		NameSelector:         "h3",
		PriceSelector:        "h4",
		GenericSelector:      "div, span, p",
		GenericClass:         regexp.MustCompile(`(?i)price|cost|plan`),
		MaxGenericElements:   10,
		MaxMatchesPerElement: 3,
		MaxTextLength:        200,
		MaxHeadingLength:     50,
		MaxSiblingLength:     100,
		SiblingWindow:        5,
	}
}

// HasPlanMarkup reports whether doc contains plan cards or plan-group sections.
func (l Layout) HasPlanMarkup(doc *goquery.Document) bool {
	if doc == nil {
		return false
	}
	if doc.Find(l.SectionSelector).Length() > 0 || doc.Find(l.CardSelector).Length() > 0 {
		return true
	}
	found := false
	doc.Find(l.ClassSectionSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		found = l.MonthlyClass.MatchString(class) || l.YearlyClass.MatchString(class)
		return !found
	})
	return found
}

// HasPriceText reports whether text contains something shaped like a price.
func HasPriceText(text string) bool {
	return pricePresence.MatchString(text)
}
