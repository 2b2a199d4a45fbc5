package pricing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ClassifyCycle infers the billing cadence of a price from its text, its magnitude and the
// country it was listed in. The first signal that resolves wins; unknown is a valid answer.
func (t *Tables) ClassifyCycle(text string, price float64, country string) (PlanGroup, string) {
	lowered := strings.ToLower(text)
	for _, kw := range t.monthlyKeywords {
		if containsKeyword(lowered, kw) {
			return PlanGroupMonthly, LabelMonthly
		}
	}
	for _, kw := range t.yearlyKeywords {
		if containsKeyword(lowered, kw) {
			return PlanGroupYearly, LabelYearly
		}
	}

	r := t.Range(country)
	switch {
	case price <= r.MonthlyMax:
		return PlanGroupMonthly, LabelMonthly
	case price >= r.YearlyMin:
		return PlanGroupYearly, LabelYearly
	case price > r.MonthlyMax*8:
		return PlanGroupYearly, LabelYearly
	}

	if p, ok := t.points[strings.ToLower(country)]; ok {
		if price >= p.monthlyMin && price <= p.monthlyMax {
			return PlanGroupMonthly, LabelMonthly
		}
		if price >= p.yearlyMin && (p.yearlyMax == 0 || price <= p.yearlyMax) {
			return PlanGroupYearly, LabelYearly
		}
	}
	return PlanGroupUnknown, LabelUnknown
}

// containsKeyword matches short ASCII keywords ("an", "ay") as whole words only; everything else
// is a plain substring match.
func containsKeyword(text, kw string) bool {
	if !isShortASCIIWord(kw) {
		return strings.Contains(text, kw)
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		from = end
	}
	return false
}

func isShortASCIIWord(s string) bool {
	if len(s) == 0 || len(s) > 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
