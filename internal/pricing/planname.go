package pricing

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizePlanName maps a localized plan label to a canonical tier name. The result is never
// empty and normalizing it again returns it unchanged.
func (t *Tables) NormalizePlanName(label string) string {
	cleaned := strings.ToLower(strings.TrimSpace(label))
	if cleaned == "" {
		return UnknownPlan
	}
	if c, ok := t.canonical[cleaned]; ok {
		return c
	}

	cleaned = t.cleanLabel(cleaned)
	if cleaned == "" {
		return UnknownPlan
	}
	if tier, ok := t.nameIndex[cleaned]; ok {
		return tier
	}
	for _, e := range t.names {
		if strings.Contains(cleaned, e.key) || strings.Contains(e.key, cleaned) {
			return e.tier
		}
	}

	// Casers keep state between calls and must not be shared.
	caser := cases.Title(language.Und)
	words := strings.Fields(cleaned)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// cleanLabel strips punctuation and brand words from both ends until nothing changes.
func (t *Tables) cleanLabel(s string) string {
	for {
		prev := s
		s = strings.Join(strings.Fields(stripPunctuation(s)), " ")
		for _, w := range t.stripWords {
			s = trimWord(s, w)
		}
		if s == prev {
			return s
		}
	}
}

// trimWord removes w from either end of s when it stands as a whole word.
func trimWord(s, w string) string {
	if s == w {
		return ""
	}
	if strings.HasPrefix(s, w+" ") {
		s = strings.TrimSpace(s[len(w):])
	}
	if strings.HasSuffix(s, " "+w) {
		s = strings.TrimSpace(s[:len(s)-len(w)])
	}
	return s
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) || unicode.IsSpace(r) || r == '_' {
			return r
		}
		return ' '
	}, s)
}
