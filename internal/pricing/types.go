// Package pricing turns scraped, localized price text into canonical plan records.
//
// Everything in this package is pure: no I/O, no logging and no shared mutable state. The
// lookup tables live in an immutable Tables value that callers build once and share.
package pricing

// PlanGroup is the billing cadence of a plan.
type PlanGroup string

// Billing cadences. Bundle marks a section whose cadence could not be inferred.
const (
	PlanGroupMonthly PlanGroup = "monthly"
	PlanGroupYearly  PlanGroup = "yearly"
	PlanGroupBundle  PlanGroup = "bundle"
	PlanGroupUnknown PlanGroup = "unknown"
)

// Cadence labels used in reports.
const (
	LabelMonthly = "Monthly"
	LabelYearly  = "Yearly"
	LabelUnknown = "Unknown cycle"
)

// UnknownPlan is returned when a plan label cleans down to nothing.
const UnknownPlan = "Unknown Plan"

// ParsePlanGroup maps a raw section attribute value to a PlanGroup.
func ParsePlanGroup(raw string) PlanGroup {
	switch PlanGroup(raw) {
	case PlanGroupMonthly, PlanGroupYearly, PlanGroupBundle:
		return PlanGroup(raw)
	default:
		return PlanGroupUnknown
	}
}

// Label returns the report label for the cadence.
func (g PlanGroup) Label() string {
	switch g {
	case PlanGroupMonthly:
		return LabelMonthly
	case PlanGroupYearly:
		return LabelYearly
	default:
		return LabelUnknown
	}
}

// RawPriceCandidate is one (label, price) pair found on a page. It is never persisted.
type RawPriceCandidate struct {
	Country string
	// Section is the cadence implied by the page structure the card was found in.
	Section PlanGroup
	// SectionTrusted is set when Section came from an explicit plan-group attribute.
	SectionTrusted bool
	Label          string
	PriceText      string
	Strategy       string
}

// PlanRecord is the canonical, immutable result for one plan of one country.
type PlanRecord struct {
	Country      string    `json:"country_code"`
	PlanName     string    `json:"name"`
	OriginalName string    `json:"original_name"`
	PlanGroup    PlanGroup `json:"plan_group"`
	Bundle       bool      `json:"bundle,omitempty"`
	Label        string    `json:"label"`
	Currency     string    `json:"currency"`
	PriceText    string    `json:"price"`
	// PriceNumber is the annual total for yearly plans and the face value otherwise.
	PriceNumber  float64 `json:"price_number"`
	MonthlyPrice float64 `json:"monthly_price"`
}
