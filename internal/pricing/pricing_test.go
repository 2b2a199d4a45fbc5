package pricing

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCurrency(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()
	tests := []struct {
		name    string
		price   string
		country string
		want    string
	}{
		{name: "country table beats generic dollar", price: "$100", country: "hk", want: "HKD"},
		{name: "country table is case insensitive", price: "$100", country: "MX", want: "MXN"},
		{name: "dollarized country", price: "$5.99", country: "ec", want: "USD"},
		{name: "euro correction wins", price: "5,99 лв", country: "bg", want: "EUR"},
		{name: "euro symbol", price: "€5,99", want: "EUR"},
		{name: "prefixed dollar before bare dollar", price: "HK$88", want: "HKD"},
		{name: "real", price: "R$ 29,90", want: "BRL"},
		{name: "peruvian sol", price: "S/. 29.90", want: "PEN"},
		{name: "ringgit glued to digits", price: "RM14.90", want: "MYR"},
		{name: "letter code inside a word is ignored", price: "Plan 5", want: "USD"},
		{name: "zloty", price: "29,99 zł", country: "xx", want: "PLN"},
		{name: "koruna", price: "199 Kč", want: "CZK"},
		{name: "forint", price: "1.290 Ft", want: "HUF"},
		{name: "krona", price: "59 kr", want: "SEK"},
		{name: "pound", price: "£4.99", country: "gb", want: "GBP"},
		{name: "bare number falls back to base", price: "100", want: BaseCurrency},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tables.DetectCurrency(tt.price, tt.country))
		})
	}
}

func TestNormalizePlanName(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()
	tests := []struct {
		in   string
		want string
	}{
		{in: "Estándar", want: "Standard"},
		{in: "HBO Max Standard", want: "Standard"},
		{in: "Standard - HBO Max", want: "Standard"},
		{in: "Plan Básico con anuncios", want: "Basic"},
		{in: "Mobile!", want: "Mobile"},
		{in: "Premium (4K)", want: "Premium"},
		{in: "Platino", want: "Ultimate"},
		{in: "Máximo", want: "Ultimate"},
		{in: "Maximo", want: "Ultimate"},
		{in: "高級", want: "Ultimate"},
		{in: "高级", want: "Premium"},
		{in: "มาตรฐาน", want: "Standard"},
		{in: "Podstawowy", want: "Basic"},
		{in: "Max", want: "Max"},
		{in: "max", want: "Max"},
		{in: "Platinum", want: "Platinum"},
		{in: "HBO Max", want: UnknownPlan},
		{in: "Plan", want: UnknownPlan},
		{in: "", want: UnknownPlan},
		{in: "   ", want: UnknownPlan},
		{in: "Gold Tier", want: "Gold Tier"},
		{in: "HBO Max: Extra Member", want: "Extra Member"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tables.NormalizePlanName(tt.in))
		})
	}
}

func TestNormalizePlanNameIdempotent(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()
	inputs := []string{
		"Estándar", "HBO Max", "Max", "Unknown Plan", "unknown plan", "Gold Tier", "extra   member",
		"Premium (4K)", "básico con anuncios", "Plan Plan Max", "hbo max hbo", "12x", "!!!", "Straße",
		"mudah alih", "en üst", "premium plan subscription",
	}
	for _, tier := range tables.Tiers() {
		inputs = append(inputs, tier)
	}

	for _, in := range inputs {
		once := tables.NormalizePlanName(in)
		assert.NotEmpty(t, once, in)
		assert.Equal(t, once, tables.NormalizePlanName(once), in)
	}
}

func TestClassifyCycle(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()
	tests := []struct {
		name      string
		text      string
		price     float64
		country   string
		wantGroup PlanGroup
		wantLabel string
	}{
		{name: "english month keyword", text: "$5.99/month", price: 5.99, country: "us", wantGroup: PlanGroupMonthly, wantLabel: LabelMonthly},
		{name: "spanish month keyword", text: "$4.99/mes", price: 4.99, country: "mx", wantGroup: PlanGroupMonthly, wantLabel: LabelMonthly},
		{name: "french year keyword", text: "59,99 € par an", price: 59.99, country: "fr", wantGroup: PlanGroupYearly, wantLabel: LabelYearly},
		{name: "turkish month keyword", text: "229,99 TL ayda", price: 229.99, country: "tr", wantGroup: PlanGroupMonthly, wantLabel: LabelMonthly},
		{name: "polish year keyword", text: "299 zł/rok", price: 299, country: "pl", wantGroup: PlanGroupYearly, wantLabel: LabelYearly},
		{name: "chinese month keyword", text: "HK$88/月", price: 88, country: "hk", wantGroup: PlanGroupMonthly, wantLabel: LabelMonthly},
		{name: "short keyword inside word is ignored", text: "bayar 50", price: 50, country: "id", wantGroup: PlanGroupUnknown, wantLabel: LabelUnknown},
		{name: "default range monthly", text: "€9,99", price: 9.99, country: "es", wantGroup: PlanGroupMonthly, wantLabel: LabelMonthly},
		{name: "default range yearly", text: "€99,99", price: 209.99, country: "es", wantGroup: PlanGroupYearly, wantLabel: LabelYearly},
		{name: "default gap is unknown", text: "€149,99", price: 149.99, country: "es", wantGroup: PlanGroupUnknown, wantLabel: LabelUnknown},
		{name: "turkish range yearly", text: "1.999 TL", price: 1999, country: "tr", wantGroup: PlanGroupYearly, wantLabel: LabelYearly},
		{name: "hungarian point rule monthly", text: "2.990 Ft", price: 2990, country: "hu", wantGroup: PlanGroupMonthly, wantLabel: LabelMonthly},
		{name: "czech point rule yearly", text: "1.800 Kč", price: 1800, country: "cz", wantGroup: PlanGroupYearly, wantLabel: LabelYearly},
		{name: "polish gap is unknown", text: "150 zł", price: 150, country: "pl", wantGroup: PlanGroupUnknown, wantLabel: LabelUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			group, label := tables.ClassifyCycle(tt.text, tt.price, tt.country)
			require.Equal(t, tt.wantGroup, group)
			require.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()
	tests := []struct {
		name      string
		candidate RawPriceCandidate
		want      PlanRecord
	}{
		{
			name:      "trusted monthly section",
			candidate: RawPriceCandidate{Country: "es", Section: PlanGroupMonthly, SectionTrusted: true, Label: "Estándar", PriceText: "€5,99"},
			want: PlanRecord{
				Country: "ES", PlanName: "Standard", OriginalName: "Estándar", PlanGroup: PlanGroupMonthly,
				Label: LabelMonthly, Currency: "EUR", PriceText: "€5,99", PriceNumber: 5.99, MonthlyPrice: 5.99,
			},
		},
		{
			name:      "trusted yearly section divides by twelve",
			candidate: RawPriceCandidate{Country: "es", Section: PlanGroupYearly, SectionTrusted: true, Label: "Premium", PriceText: "€99,99"},
			want: PlanRecord{
				Country: "ES", PlanName: "Premium", OriginalName: "Premium", PlanGroup: PlanGroupYearly,
				Label: LabelYearly, Currency: "EUR", PriceText: "€99,99", PriceNumber: 99.99, MonthlyPrice: 8.33,
			},
		},
		{
			name:      "bundle instalment notation",
			candidate: RawPriceCandidate{Section: PlanGroupBundle, SectionTrusted: true, Label: "Max + Disney", PriceText: "12x $4.99/mes"},
			want: PlanRecord{
				PlanName: "Disney", OriginalName: "Max + Disney", PlanGroup: PlanGroupYearly, Bundle: true,
				Label: LabelYearly, Currency: "USD", PriceText: "12x $4.99/mes", PriceNumber: 59.88, MonthlyPrice: 4.99,
			},
		},
		{
			name:      "bundle unresolved keeps bundle group",
			candidate: RawPriceCandidate{Country: "es", Section: PlanGroupBundle, SectionTrusted: true, Label: "Standard", PriceText: "€149,99"},
			want: PlanRecord{
				Country: "ES", PlanName: "Standard", OriginalName: "Standard", PlanGroup: PlanGroupBundle, Bundle: true,
				Label: LabelUnknown, Currency: "EUR", PriceText: "€149,99", PriceNumber: 149.99, MonthlyPrice: 149.99,
			},
		},
		{
			name:      "untrusted section defers to classifier",
			candidate: RawPriceCandidate{Country: "es", Section: PlanGroupMonthly, Label: "Premium", PriceText: "€249,99"},
			want: PlanRecord{
				Country: "ES", PlanName: "Premium", OriginalName: "Premium", PlanGroup: PlanGroupYearly,
				Label: LabelYearly, Currency: "EUR", PriceText: "€249,99", PriceNumber: 249.99, MonthlyPrice: 20.83,
			},
		},
		{
			name:      "untrusted section is the fallback",
			candidate: RawPriceCandidate{Country: "es", Section: PlanGroupMonthly, Label: "Premium", PriceText: "€149,99"},
			want: PlanRecord{
				Country: "ES", PlanName: "Premium", OriginalName: "Premium", PlanGroup: PlanGroupMonthly,
				Label: LabelMonthly, Currency: "EUR", PriceText: "€149,99", PriceNumber: 149.99, MonthlyPrice: 149.99,
			},
		},
		{
			name:      "generic candidate unknown cadence",
			candidate: RawPriceCandidate{Country: " es", Section: PlanGroupUnknown, Label: "", PriceText: " 149,99 € "},
			want: PlanRecord{
				Country: "ES", PlanName: UnknownPlan, PlanGroup: PlanGroupUnknown,
				Label: LabelUnknown, Currency: "EUR", PriceText: "149,99 €", PriceNumber: 149.99, MonthlyPrice: 149.99,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tables.Assemble(tt.candidate)
			require.True(t, ok)
			require.Equal(t, tt.want.PlanGroup, got.PlanGroup)
			require.InDelta(t, tt.want.PriceNumber, got.PriceNumber, 1e-9)
			require.InDelta(t, tt.want.MonthlyPrice, got.MonthlyPrice, 1e-9)
			got.PriceNumber, got.MonthlyPrice = tt.want.PriceNumber, tt.want.MonthlyPrice
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAssembleDiscardsNonPositivePrices(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()
	for _, text := range []string{"Free", "", "$0.00", "12x"} {
		_, ok := tables.Assemble(RawPriceCandidate{Country: "us", Section: PlanGroupMonthly, Label: "Basic", PriceText: text})
		assert.False(t, ok, text)
	}
}

func TestAssembleMonthlyPriceInvariant(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()
	texts := []string{"$5.99", "€99,99", "2.499 zł", "12 × 39,90 TL", "1.290 Ft", "€149,99", "$239.88"}
	sections := []PlanGroup{PlanGroupMonthly, PlanGroupYearly, PlanGroupBundle, PlanGroupUnknown}

	for _, text := range texts {
		for _, section := range sections {
			for _, trusted := range []bool{true, false} {
				rec, ok := tables.Assemble(RawPriceCandidate{Country: "pl", Section: section, SectionTrusted: trusted, Label: "Basic", PriceText: text})
				require.True(t, ok)
				require.Positive(t, rec.PriceNumber)
				require.NotEmpty(t, rec.PlanName)
				if rec.PlanGroup == PlanGroupYearly && !twelveTimes.MatchString(text) {
					require.InDelta(t, round2(rec.PriceNumber/12), rec.MonthlyPrice, 1e-9)
				}
				if rec.PlanGroup != PlanGroupYearly {
					require.InDelta(t, rec.PriceNumber, rec.MonthlyPrice, 1e-9)
				}
			}
		}
	}
}

func TestDefaultTables(t *testing.T) {
	t.Parallel()

	tables := DefaultTables()

	cc, ok := tables.CountryCurrency("ro")
	require.True(t, ok)
	require.Equal(t, "EUR", cc)
	_, ok = tables.CountryCurrency("zz")
	require.False(t, ok)

	for i := 1; i < len(tables.symbols); i++ {
		require.GreaterOrEqual(t,
			utf8.RuneCountInString(tables.symbols[i-1].symbol),
			utf8.RuneCountInString(tables.symbols[i].symbol))
	}
	require.Equal(t, "$", tables.symbols[len(tables.symbols)-1].symbol)

	require.Equal(t, []string{"Mobile", "Standard", "Ultimate", "Premium", "Basic", "Max", "Platinum"}, tables.Tiers())
	require.Equal(t, PriceRange{MonthlyMax: 30, YearlyMin: 200}, tables.Range("us"))
	require.Equal(t, PriceRange{MonthlyMax: 1000, YearlyMin: 5000}, tables.Range("HU"))

	tier, skipped := tables.TierForPrice("tr", 229.9)
	require.False(t, skipped)
	require.Equal(t, "Standard", tier)
	_, skipped = tables.TierForPrice("tr", 459.8)
	require.True(t, skipped)
}

func TestPlanGroup(t *testing.T) {
	t.Parallel()

	require.Equal(t, PlanGroupBundle, ParsePlanGroup("bundle"))
	require.Equal(t, PlanGroupUnknown, ParsePlanGroup("weekly"))
	require.Equal(t, LabelYearly, PlanGroupYearly.Label())
	require.Equal(t, LabelUnknown, PlanGroupBundle.Label())
}
