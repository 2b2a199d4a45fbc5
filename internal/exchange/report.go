package exchange

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
)

// ReportOptions configures BuildReport.
type ReportOptions struct {
	Base     string
	Target   string
	TopN     int
	Provider string
	Now      time.Time
}

// Metadata summarizes a conversion run.
type Metadata struct {
	GeneratedAt         time.Time `json:"generated_at"`
	TotalCountries      int       `json:"total_countries"`
	SuccessfulCountries int       `json:"successful_countries"`
	FailedCountries     int       `json:"failed_countries"`
	TotalPlans          int       `json:"total_plans"`
	ConversionMisses    int       `json:"conversion_misses"`
	BaseCurrency        string    `json:"base_currency"`
	TargetCurrency      string    `json:"target_currency"`
	ExchangeAPI         string    `json:"exchange_api,omitempty"`
	TargetRate          float64   `json:"target_rate"`
}

// Ranking is one "cheapest N" list.
type Ranking struct {
	Category    Category              `json:"-"`
	Description string                `json:"description"`
	UpdatedAt   string                `json:"updated_at"`
	Data        []ConvertedPlanRecord `json:"data"`
}

// CountryReport is the converted view of one country.
type CountryReport struct {
	CountryName string                `json:"country_name"`
	Plans       []ConvertedPlanRecord `json:"plans"`
	TotalPlans  int                   `json:"total_plans"`
}

// Report is the converter's output document.
type Report struct {
	Metadata  Metadata
	TopN      int
	Rankings  []Ranking
	Countries map[string]CountryReport
}

// MarshalJSON flattens the report into a single object: "_metadata", one
// "_top_<n>_cheapest_<category>" member per ranking, then one member per country code.
func (r Report) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Rankings)+len(r.Countries)+1)
	doc["_metadata"] = r.Metadata
	for _, rk := range r.Rankings {
		doc[r.RankingKey(rk.Category)] = rk
	}
	for code, c := range r.Countries {
		doc[code] = c
	}
	return json.Marshal(doc)
}

// RankingKey is the document member name of a category's ranking.
func (r Report) RankingKey(c Category) string {
	return fmt.Sprintf("_top_%d_cheapest_%s", r.TopN, c.Key())
}

// Ranking returns the ranking for a category, if the report has one.
func (r Report) Ranking(c Category) (Ranking, bool) {
	for _, rk := range r.Rankings {
		if rk.Category == c {
			return rk, true
		}
	}
	return Ranking{}, false
}

// BuildReport converts a snapshot and ranks it. Countries whose plans all lack a converted price
// count as failed; their records are still listed with null target prices.
func BuildReport(snap crawler.Snapshot, rates Rates, opts ReportOptions) Report {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	conv := NewConverter(opts.Base, opts.Target)

	report := Report{
		TopN:      opts.TopN,
		Countries: make(map[string]CountryReport, len(snap)),
		Metadata: Metadata{
			GeneratedAt:    opts.Now,
			TotalCountries: len(snap),
			BaseCurrency:   conv.Base,
			TargetCurrency: conv.Target,
			ExchangeAPI:    opts.Provider,
		},
	}
	if r, ok := rates.Rate(conv.Target); ok {
		report.Metadata.TargetRate = r
	}

	var all []ConvertedPlanRecord
	for _, code := range snap.Codes() {
		cs := snap[code]
		converted := conv.ConvertRecords(cs.Plans, cs.CountryName, rates)
		priced := 0
		for _, rec := range converted {
			if rec.TargetPrice != nil {
				priced++
			} else {
				report.Metadata.ConversionMisses++
			}
		}
		if priced == 0 {
			report.Metadata.FailedCountries++
		} else {
			report.Metadata.SuccessfulCountries++
		}
		if len(converted) > 0 {
			report.Countries[strings.ToUpper(code)] = CountryReport{CountryName: cs.CountryName, Plans: converted, TotalPlans: len(converted)}
		}
		all = append(all, converted...)
	}
	report.Metadata.TotalPlans = len(all)

	updated := opts.Now.Format("2006-01-02")
	for _, cat := range Categories(all) {
		report.Rankings = append(report.Rankings, Ranking{
			Category:    cat,
			Description: describe(cat, opts.TopN),
			UpdatedAt:   updated,
			Data:        Rank(all, cat, opts.TopN),
		})
	}
	return report
}

// Categories lists the built-in categories followed by one per plan tier present in records,
// tiers sorted by name.
func Categories(records []ConvertedPlanRecord) []Category {
	cats := []Category{CategoryAll, CategoryMonthly, CategoryYearly, CategoryBundle}
	seen := make(map[string]bool)
	var tiers []string
	for _, r := range records {
		if !seen[r.PlanName] {
			seen[r.PlanName] = true
			tiers = append(tiers, r.PlanName)
		}
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		cats = append(cats, TierCategory(t))
	}
	return cats
}

func describe(c Category, n int) string {
	switch c {
	case CategoryAll:
		return fmt.Sprintf("Top %d cheapest plans (all types)", n)
	case CategoryMonthly:
		return fmt.Sprintf("Top %d cheapest monthly plans", n)
	case CategoryYearly:
		return fmt.Sprintf("Top %d cheapest yearly plans", n)
	case CategoryBundle:
		return fmt.Sprintf("Top %d cheapest bundle plans", n)
	}
	return fmt.Sprintf("Top %d cheapest %s plans", n, strings.TrimPrefix(string(c), tierPrefix))
}
