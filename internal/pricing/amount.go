package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Digit groups separated by (possibly non-breaking or thin) spaces, e.g. "₡3 990" or "1 234,56".
	spaceGroupedDigits = regexp.MustCompile(`\d+(?:[\s\x{00A0}\x{2009}\x{202F}]+\d+)+(?:[.,]\d+)?`)
	numericRun         = regexp.MustCompile(`[\d,.]+`)
	digit              = regexp.MustCompile(`\d`)
	groupSpaces        = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "\f", "", "\v", "", "\u00a0", "", "\u2009", "", "\u202f", "")
)

// ParseAmount extracts the numeric price from a localized price string.
// It returns 0 when no usable number is present and never fails.
func ParseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	if m := spaceGroupedDigits.FindString(s); m != "" {
		return parseNumber(groupSpaces.Replace(m))
	}

	longest := ""
	for _, run := range numericRun.FindAllString(s, -1) {
		if len(run) > len(longest) {
			longest = run
		}
	}
	if !digit.MatchString(longest) {
		return 0
	}
	return parseNumber(longest)
}

// parseNumber resolves which of ',' and '.' is the decimal separator and parses the result.
func parseNumber(raw string) float64 {
	cleaned := raw
	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		cleaned = resolveSingleSeparator(cleaned, ",")
	case hasDot:
		cleaned = resolveSingleSeparator(cleaned, ".")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// resolveSingleSeparator treats sep as a decimal point only for "a<sep>bb" shapes.
func resolveSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) == 2 && len(parts[1]) <= 2 {
		return strings.Replace(s, sep, ".", 1)
	}
	return strings.ReplaceAll(s, sep, "")
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
