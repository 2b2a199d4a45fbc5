package page

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

// Strategy names, reported in parse results and metrics.
const (
	StrategyAttributeSections = "attribute_sections"
	StrategyClassSections     = "class_sections"
	StrategyGenericScan       = "generic_scan"
)

// Strategy extracts raw price candidates from a parsed page.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, country string) []pricing.RawPriceCandidate
}

// AttributeSections reads cards from containers tagged with an explicit plan-group attribute.
type AttributeSections struct {
	layout Layout
}

// NewAttributeSections builds the attribute strategy.
func NewAttributeSections(layout Layout) *AttributeSections {
	return &AttributeSections{layout: layout}
}

// Name implements Strategy.
func (s *AttributeSections) Name() string { return StrategyAttributeSections }

// Extract implements Strategy.
func (s *AttributeSections) Extract(doc *goquery.Document, country string) []pricing.RawPriceCandidate {
	var out []pricing.RawPriceCandidate
	doc.Find(s.layout.SectionSelector).Each(func(_ int, sec *goquery.Selection) {
		raw, _ := sec.Attr(s.layout.SectionAttr)
		group := pricing.ParsePlanGroup(strings.ToLower(strings.TrimSpace(raw)))
		for _, card := range cards(sec, s.layout) {
			out = append(out, pricing.RawPriceCandidate{
				Country:        country,
				Section:        group,
				SectionTrusted: true,
				Label:          card.name,
				PriceText:      card.price,
				Strategy:       StrategyAttributeSections,
			})
		}
	})
	return out
}

// ClassSections reads cards from containers whose class names mark them monthly or yearly.
type ClassSections struct {
	layout Layout
}

// NewClassSections builds the class-name strategy.
func NewClassSections(layout Layout) *ClassSections {
	return &ClassSections{layout: layout}
}

// Name implements Strategy.
func (s *ClassSections) Name() string { return StrategyClassSections }

// Extract implements Strategy. Monthly sections are read before yearly ones.
func (s *ClassSections) Extract(doc *goquery.Document, country string) []pricing.RawPriceCandidate {
	var out []pricing.RawPriceCandidate
	for _, section := range []struct {
		group pricing.PlanGroup
		re    *regexp.Regexp
	}{
		{pricing.PlanGroupMonthly, s.layout.MonthlyClass},
		{pricing.PlanGroupYearly, s.layout.YearlyClass},
	} {
		if section.re == nil {
			continue
		}
		doc.Find(s.layout.ClassSectionSelector).FilterFunction(func(_ int, sel *goquery.Selection) bool {
			class, _ := sel.Attr("class")
			return section.re.MatchString(class)
		}).Each(func(_ int, sec *goquery.Selection) {
			for _, card := range cards(sec, s.layout) {
				if card.name == "" {
					continue
				}
				out = append(out, pricing.RawPriceCandidate{
					Country:   country,
					Section:   section.group,
					Label:     card.name,
					PriceText: card.price,
					Strategy:  StrategyClassSections,
				})
			}
		})
	}
	return out
}

type planCard struct {
	name  string
	price string
}

// cards returns every card under sec that has both a name and a price element.
func cards(sec *goquery.Selection, layout Layout) []planCard {
	var out []planCard
	sec.Find(layout.CardSelector).Each(func(_ int, card *goquery.Selection) {
		name := card.Find(layout.NameSelector).First()
		price := card.Find(layout.PriceSelector).First()
		if name.Length() == 0 || price.Length() == 0 {
			return
		}
		out = append(out, planCard{name: text(name), price: text(price)})
	})
	return out
}

var (
	pricePresence = regexp.MustCompile(`(?:[€$£¥₹₱₪₨₦₵₡₺]|zł)\s*[\d,.]|\d+[\d,.]*\s*(?:[€$£¥₹₱₪₨₦₵₡₺]|zł)|[\d,.]+\s*(?:zł|Kč|Ft|kr|TL)`)
	priceMatch    = regexp.MustCompile(`(\d+[,.]?\d*)\s*(zł|€|\$|£|¥|₹|₱|₪|₨|₦|₵|₡|₺|Kč|Ft|kr|TL)(/(?:mies|mes|month|rok|year|año))?`)
)

// siblingTiers are the tier words recognized in text next to a price. Order matters: the first
// keyword found wins.
var siblingTiers = []struct {
	keyword string
	tier    string
}{
	{"podstawowy", "Basic"}, {"basic", "Basic"}, {"basis", "Basic"}, {"temel", "Basic"},
	{"standardowy", "Standard"}, {"standard", "Standard"}, {"standart", "Standard"},
	{"premium", "Premium"}, {"prémium", "Premium"}, {"en üst", "Premium"},
	{"ultimate", "Ultimate"}, {"platino", "Ultimate"}, {"último", "Ultimate"},
}

const headingSelector = "h1, h2, h3, h4, h5, h6"

const siblingSelector = "div, h1, h2, h3, h4, h5, h6, span, p"

// GenericScan is the last resort: it regex-scans elements whose class suggests pricing and
// guesses the plan name from the surrounding markup.
type GenericScan struct {
	layout Layout
	tables *pricing.Tables
}

// NewGenericScan builds the fallback strategy.
func NewGenericScan(layout Layout, tables *pricing.Tables) *GenericScan {
	return &GenericScan{layout: layout, tables: tables}
}

// Name implements Strategy.
func (s *GenericScan) Name() string { return StrategyGenericScan }

// Extract implements Strategy.
func (s *GenericScan) Extract(doc *goquery.Document, country string) []pricing.RawPriceCandidate {
	elems := doc.Find(s.layout.GenericSelector).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return s.layout.GenericClass != nil && s.layout.GenericClass.MatchString(class)
	})

	var out []pricing.RawPriceCandidate
	for i := 0; i < elems.Length() && i < s.layout.MaxGenericElements; i++ {
		elem := elems.Eq(i)
		body := text(elem)
		if !pricePresence.MatchString(body) {
			continue
		}

		matches := priceMatch.FindAllStringSubmatch(body, -1)
		if len(matches) == 0 {
			// No number-then-symbol pair: treat a short block as one price and stop.
			if utf8.RuneCountInString(body) < s.layout.MaxTextLength && pricing.ParseAmount(body) > 0 {
				out = append(out, s.candidate(country, "", body))
				break
			}
			continue
		}

		if len(matches) > s.layout.MaxMatchesPerElement {
			matches = matches[:s.layout.MaxMatchesPerElement]
		}
		for _, m := range matches {
			priceText := m[1] + " " + m[2] + m[3]
			amount := pricing.ParseAmount(priceText)
			if amount <= 0 {
				continue
			}
			name, ok := s.planName(elem, country, amount)
			if !ok {
				continue
			}
			out = append(out, s.candidate(country, name, priceText))
		}
	}
	return out
}

func (s *GenericScan) candidate(country, label, priceText string) pricing.RawPriceCandidate {
	return pricing.RawPriceCandidate{
		Country:   country,
		Section:   pricing.PlanGroupUnknown,
		Label:     label,
		PriceText: priceText,
		Strategy:  StrategyGenericScan,
	}
}

// planName guesses the plan a price belongs to. It reports false for amounts that are known not to
// be plan prices.
func (s *GenericScan) planName(elem *goquery.Selection, country string, amount float64) (string, bool) {
	if heading := elem.Parent().Find(headingSelector).First(); heading.Length() > 0 {
		if t := text(heading); t != "" && utf8.RuneCountInString(t) < s.layout.MaxHeadingLength {
			return t, true
		}
	}

	if tier := s.siblingTier(elem); tier != "" {
		return tier, true
	}

	if s.tables != nil {
		tier, skipped := s.tables.TierForPrice(country, amount)
		if skipped {
			return "", false
		}
		if tier != "" {
			return tier, true
		}
	}

	class, _ := elem.Attr("class")
	class = strings.ToLower(class)
	switch {
	case strings.Contains(class, "basic"):
		return "Basic", true
	case strings.Contains(class, "standard"):
		return "Standard", true
	case strings.Contains(class, "premium"), strings.Contains(class, "ultimate"):
		return "Premium", true
	}
	return "", true
}

// siblingTier looks for a tier keyword in the nearest preceding, then following, siblings.
func (s *GenericScan) siblingTier(elem *goquery.Selection) string {
	var siblings []*goquery.Selection
	collect := func(sel *goquery.Selection) {
		sel.EachWithBreak(func(i int, sib *goquery.Selection) bool {
			if i >= s.layout.SiblingWindow {
				return false
			}
			siblings = append(siblings, sib)
			return true
		})
	}
	collect(elem.PrevAllFiltered(siblingSelector))
	collect(elem.NextAllFiltered(siblingSelector))

	for _, sib := range siblings {
		t := strings.ToLower(text(sib))
		if utf8.RuneCountInString(t) >= s.layout.MaxSiblingLength {
			continue
		}
		for _, kw := range siblingTiers {
			if strings.Contains(t, kw.keyword) {
				return kw.tier
			}
		}
	}
	return ""
}

// text returns the element's text with whitespace collapsed.
func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
