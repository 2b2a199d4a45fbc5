package exchange

import (
	"sort"
	"strings"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/metrics"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

// ConvertedPlanRecord is a PlanRecord priced in the target currency. The source record is
// copied, never modified.
type ConvertedPlanRecord struct {
	pricing.PlanRecord
	CountryName    string `json:"country_name"`
	TargetCurrency string `json:"target_currency"`
	// TargetPrice is nil when a rate for either leg of the conversion is missing.
	TargetPrice        *float64 `json:"target_price"`
	TargetMonthlyPrice *float64 `json:"target_monthly_price"`
	ExchangeRateUsed   *float64 `json:"exchange_rate_used"`
	Rank               int      `json:"rank,omitempty"`
}

// Converter prices records in Target using rates relative to Base.
type Converter struct {
	Base   string
	Target string
}

// NewConverter returns a converter for the given currencies.
func NewConverter(base, target string) *Converter {
	if base == "" {
		base = pricing.BaseCurrency
	}
	return &Converter{Base: strings.ToUpper(base), Target: strings.ToUpper(target)}
}

// Convert prices a single record. A missing rate leaves the target fields nil.
func (c *Converter) Convert(rec pricing.PlanRecord, countryName string, rates Rates) ConvertedPlanRecord {
	out := ConvertedPlanRecord{
		PlanRecord:     rec,
		CountryName:    countryName,
		TargetCurrency: c.Target,
	}
	if v, ok := Convert(rec.PriceNumber, rec.Currency, c.Target, rates, c.Base); ok {
		out.TargetPrice = ptr(round2(v))
	} else {
		metrics.ObserveConversionMiss(rec.Currency)
	}
	if v, ok := Convert(rec.MonthlyPrice, rec.Currency, c.Target, rates, c.Base); ok {
		out.TargetMonthlyPrice = ptr(round2(v))
	}

	rateCode := rec.Currency
	if strings.EqualFold(rec.Currency, c.Base) {
		rateCode = c.Target
	}
	if r, ok := rates.Rate(rateCode); ok {
		out.ExchangeRateUsed = ptr(r)
	}
	return out
}

// ConvertRecords prices every record; it never stops on a missing rate.
func (c *Converter) ConvertRecords(records []pricing.PlanRecord, countryName string, rates Rates) []ConvertedPlanRecord {
	out := make([]ConvertedPlanRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, c.Convert(rec, countryName, rates))
	}
	return out
}

// ConvertSnapshot prices every plan of every country, ordered by country code.
func (c *Converter) ConvertSnapshot(snap crawler.Snapshot, rates Rates) []ConvertedPlanRecord {
	var out []ConvertedPlanRecord
	for _, code := range snap.Codes() {
		cs := snap[code]
		out = append(out, c.ConvertRecords(cs.Plans, cs.CountryName, rates)...)
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}

// Category selects the records a ranking considers.
type Category string

// Built-in ranking categories.
const (
	CategoryAll     Category = "all"
	CategoryMonthly Category = "monthly"
	CategoryYearly  Category = "yearly"
	CategoryBundle  Category = "bundle"
)

const tierPrefix = "tier:"

// TierCategory ranks a single plan tier.
func TierCategory(tier string) Category {
	return Category(tierPrefix + tier)
}

// Key is the category as used in report keys, e.g. "tier_standard".
func (c Category) Key() string {
	if tier, ok := strings.CutPrefix(string(c), tierPrefix); ok {
		return "tier_" + strings.ReplaceAll(strings.ToLower(tier), " ", "_")
	}
	return string(c)
}

// Matches reports whether rec belongs to the category.
func (c Category) Matches(rec ConvertedPlanRecord) bool {
	switch c {
	case CategoryAll:
		return true
	case CategoryMonthly:
		return rec.PlanGroup == pricing.PlanGroupMonthly
	case CategoryYearly:
		return rec.PlanGroup == pricing.PlanGroupYearly
	case CategoryBundle:
		return rec.Bundle || rec.PlanGroup == pricing.PlanGroupBundle
	}
	if tier, ok := strings.CutPrefix(string(c), tierPrefix); ok {
		return strings.EqualFold(rec.PlanName, tier)
	}
	return false
}

// Rank returns up to limit records of the category, cheapest monthly equivalent first. Yearly
// plans compare on TargetMonthlyPrice (annual price / 12), not on their annual total. Records
// without a converted price sort last; ties break on country code then plan name. A limit of zero
// or less returns every match.
func Rank(records []ConvertedPlanRecord, cat Category, limit int) []ConvertedPlanRecord {
	matched := make([]ConvertedPlanRecord, 0, len(records))
	for _, r := range records {
		if cat.Matches(r) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.TargetMonthlyPrice == nil && b.TargetMonthlyPrice != nil:
			return false
		case a.TargetMonthlyPrice != nil && b.TargetMonthlyPrice == nil:
			return true
		case a.TargetMonthlyPrice != nil && *a.TargetMonthlyPrice != *b.TargetMonthlyPrice:
			return *a.TargetMonthlyPrice < *b.TargetMonthlyPrice
		case a.Country != b.Country:
			return a.Country < b.Country
		default:
			return a.PlanName < b.PlanName
		}
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	for i := range matched {
		matched[i].Rank = i + 1
	}
	return matched
}
