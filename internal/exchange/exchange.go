// Package exchange converts plan prices into a target currency and ranks them.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

// ErrMissingRate is returned when a rate table lacks a currency a caller requires.
var ErrMissingRate = errors.New("exchange: missing rate")

// Rates maps a currency code to its price relative to a base currency (base itself is 1).
type Rates map[string]float64

// Rate returns the usable rate for code. Non-positive entries count as missing.
func (r Rates) Rate(code string) (float64, bool) {
	v, ok := r[strings.ToUpper(code)]
	if !ok || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Require checks that every code is convertible against base.
func (r Rates) Require(base string, codes ...string) error {
	var missing []string
	for _, c := range codes {
		if strings.EqualFold(c, base) {
			continue
		}
		if _, ok := r.Rate(c); !ok {
			missing = append(missing, strings.ToUpper(c))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRate, strings.Join(missing, ", "))
	}
	return nil
}

// Convert moves amount from one currency to another through base. It reports false when a leg of
// the conversion has no rate or the amount is not positive.
func Convert(amount float64, from, to string, rates Rates, base string) (float64, bool) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	from, to, base = strings.ToUpper(from), strings.ToUpper(to), strings.ToUpper(base)

	switch {
	case from == to:
		return amount, true
	case from == base:
		r, ok := rates.Rate(to)
		if !ok {
			return 0, false
		}
		return amount * r, true
	case to == base:
		r, ok := rates.Rate(from)
		if !ok {
			return 0, false
		}
		return amount / r, true
	}

	rf, okFrom := rates.Rate(from)
	rt, okTo := rates.Rate(to)
	if !okFrom || !okTo {
		return 0, false
	}
	return amount / rf * rt, true
}

// RateProvider fetches the latest rates relative to base.
type RateProvider interface {
	Latest(ctx context.Context, base string) (Rates, error)
}

// FileRates reads rates from a JSON file, either a flat {"EUR": 0.9} object or an
// OpenExchangeRates-style document with a "rates" member.
type FileRates struct {
	Path string
}

// Latest implements RateProvider.
func (f FileRates) Latest(_ context.Context, base string) (Rates, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read rates file: %w", err)
	}
	return DecodeRates(data, base)
}

// DecodeRates parses either supported rates document.
func DecodeRates(data []byte, base string) (Rates, error) {
	var wrapped struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Rates) > 0 {
		if wrapped.Base != "" && !strings.EqualFold(wrapped.Base, base) {
			return nil, fmt.Errorf("rates are based on %s, want %s", wrapped.Base, base)
		}
		return normalize(wrapped.Rates), nil
	}

	var flat map[string]float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("decode rates: %w: document is empty", ErrMissingRate)
	}
	return normalize(flat), nil
}

func normalize(in map[string]float64) Rates {
	out := make(Rates, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
