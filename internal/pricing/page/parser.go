package page

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

// Result is the outcome of parsing one page.
type Result struct {
	Records []pricing.PlanRecord
	Summary string
	// Strategy names the strategy that produced Records; empty when nothing was parsed.
	Strategy string
}

// Parser runs extraction strategies in order and assembles the first non-empty result.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	tables     *pricing.Tables
	strategies []Strategy
}

// NewParser builds a parser with the attribute, class and generic strategies for layout.
func NewParser(tables *pricing.Tables, layout Layout) *Parser {
	return NewParserWithStrategies(tables,
		NewAttributeSections(layout),
		NewClassSections(layout),
		NewGenericScan(layout, tables),
	)
}

// NewParserWithStrategies builds a parser with a custom strategy order.
func NewParserWithStrategies(tables *pricing.Tables, strategies ...Strategy) *Parser {
	if tables == nil {
		tables = pricing.DefaultTables()
	}
	return &Parser{tables: tables, strategies: strategies}
}

// Parse returns the plan records found in html and a human-readable summary. It never panics; on
// failure the records are empty and the summary says why.
func (p *Parser) Parse(html, country string) ([]pricing.PlanRecord, string) {
	res := p.ParseDetailed(html, country)
	return res.Records, res.Summary
}

// ParseDetailed is Parse plus the name of the strategy that matched.
func (p *Parser) ParseDetailed(html, country string) (res Result) {
	cc := strings.ToLower(strings.TrimSpace(country))
	defer func() {
		if r := recover(); r != nil {
			res = Result{Summary: fmt.Sprintf("%s: parse error: %v", strings.ToUpper(cc), r)}
		}
	}()

	if strings.TrimSpace(html) == "" {
		return Result{Summary: fmt.Sprintf("%s: empty page", strings.ToUpper(cc))}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{Summary: fmt.Sprintf("%s: parse error: %v", strings.ToUpper(cc), err)}
	}

	for _, s := range p.strategies {
		records := p.assemble(s.Extract(doc, cc))
		if len(records) > 0 {
			return Result{Records: records, Summary: Summarize(cc, records), Strategy: s.Name()}
		}
	}
	return Result{Summary: fmt.Sprintf("%s: no prices parsed", strings.ToUpper(cc))}
}

type dedupKey struct {
	country string
	group   pricing.PlanGroup
	name    string
	price   string
}

// assemble turns candidates into records, dropping unpriced and repeated ones.
func (p *Parser) assemble(candidates []pricing.RawPriceCandidate) []pricing.PlanRecord {
	seen := make(map[dedupKey]struct{}, len(candidates))
	out := make([]pricing.PlanRecord, 0, len(candidates))
	for _, c := range candidates {
		rec, ok := p.assembleOne(c)
		if !ok {
			continue
		}
		key := dedupKey{country: rec.Country, group: rec.PlanGroup, name: rec.PlanName, price: rec.PriceText}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// assembleOne isolates a single malformed candidate from its siblings.
func (p *Parser) assembleOne(c pricing.RawPriceCandidate) (rec pricing.PlanRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rec, ok = pricing.PlanRecord{}, false
		}
	}()
	return p.tables.Assemble(c)
}

// Summarize renders records as a short report: a header line then one line per plan.
func Summarize(country string, records []pricing.PlanRecord) string {
	cc := strings.ToUpper(country)
	if len(records) == 0 {
		return fmt.Sprintf("%s: no prices parsed", cc)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s subscription prices:", cc)
	for _, r := range records {
		fmt.Fprintf(&b, "\n- %s (%s): %s", r.PlanName, r.Label, r.PriceText)
	}
	return b.String()
}
