package pricing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DetectCurrency resolves the ISO currency of a price. A known country wins over any symbol in
// the text, then symbols are tried longest first, then the base currency is returned.
func (t *Tables) DetectCurrency(price, country string) string {
	if c, ok := t.CountryCurrency(country); ok {
		return c
	}
	for _, s := range t.symbols {
		if containsSymbol(price, s.symbol) {
			return s.code
		}
	}
	return t.Base
}

// containsSymbol reports whether sym occurs in text. Alphabetic codes such as "L" or "RM" must not
// be glued to other letters, so "Plan" does not read as lempira.
func containsSymbol(text, sym string) bool {
	if !isAlpha(sym) {
		return strings.Contains(text, sym)
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], sym)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(sym)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !unicode.IsLetter(before)) && (end == len(text) || !unicode.IsLetter(after)) {
			return true
		}
		from = start + 1
	}
	return false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
