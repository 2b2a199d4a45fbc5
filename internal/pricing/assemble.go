package pricing

import (
	"regexp"
	"strings"
)

// twelveTimes matches the "12x $4.99" instalment notation: a monthly unit price shown with its
// annual multiplier.
var twelveTimes = regexp.MustCompile(`(?i)\b12\s*[x×]`)

// Assemble builds a PlanRecord from one candidate. It reports false when the candidate carries no
// positive price and must be discarded.
func (t *Tables) Assemble(c RawPriceCandidate) (PlanRecord, bool) {
	text := strings.TrimSpace(c.PriceText)
	instalment := twelveTimes.MatchString(text)

	var price float64
	if instalment {
		price = ParseAmount(twelveTimes.ReplaceAllString(text, " "))
	} else {
		price = ParseAmount(text)
	}
	if price <= 0 {
		return PlanRecord{}, false
	}

	rec := PlanRecord{
		Country:      strings.ToUpper(strings.TrimSpace(c.Country)),
		PlanName:     t.NormalizePlanName(c.Label),
		OriginalName: strings.TrimSpace(c.Label),
		Bundle:       c.Section == PlanGroupBundle,
		Currency:     t.DetectCurrency(text, c.Country),
		PriceText:    text,
	}

	switch {
	case instalment:
		rec.PlanGroup = PlanGroupYearly
		rec.PriceNumber = round2(price * 12)
		rec.MonthlyPrice = price
	default:
		rec.PlanGroup = t.resolveGroup(c, text, price)
		rec.PriceNumber = price
		rec.MonthlyPrice = price
		if rec.PlanGroup == PlanGroupYearly {
			rec.MonthlyPrice = round2(price / 12)
		}
	}
	rec.Label = rec.PlanGroup.Label()
	return rec, true
}

// resolveGroup picks the cadence for a candidate. Attribute-tagged monthly and yearly sections are
// authoritative; otherwise the classifier decides and the section is only a fallback.
func (t *Tables) resolveGroup(c RawPriceCandidate, text string, price float64) PlanGroup {
	if c.SectionTrusted && (c.Section == PlanGroupMonthly || c.Section == PlanGroupYearly) {
		return c.Section
	}
	g, _ := t.ClassifyCycle(text, price, c.Country)
	if g == PlanGroupUnknown && c.Section != "" {
		return c.Section
	}
	return g
}
