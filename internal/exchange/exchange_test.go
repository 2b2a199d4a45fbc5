package exchange

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

var testRates = Rates{"EUR": 0.9, "CNY": 7.2, "TRY": 32, "BAD": 0}

func TestConvert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		amount   float64
		from, to string
		want     float64
		ok       bool
	}{
		{name: "two hop", amount: 10, from: "EUR", to: "CNY", want: 80, ok: true},
		{name: "passthrough", amount: 12.5, from: "cny", to: "CNY", want: 12.5, ok: true},
		{name: "from base", amount: 2, from: "USD", to: "CNY", want: 14.4, ok: true},
		{name: "to base", amount: 9, from: "EUR", to: "USD", want: 10, ok: true},
		{name: "missing source", amount: 10, from: "XOF", to: "CNY", ok: false},
		{name: "missing target", amount: 10, from: "EUR", to: "JPY", ok: false},
		{name: "zero rate counts as missing", amount: 10, from: "BAD", to: "CNY", ok: false},
		{name: "non positive amount", amount: 0, from: "EUR", to: "CNY", ok: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Convert(tc.amount, tc.from, tc.to, testRates, "USD")
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestRatesRequire(t *testing.T) {
	t.Parallel()

	require.NoError(t, testRates.Require("USD", "usd", "EUR", "CNY"))
	err := testRates.Require("USD", "EUR", "XOF", "BAD")
	require.ErrorIs(t, err, ErrMissingRate)
	require.ErrorContains(t, err, "XOF, BAD")
}

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	conv := NewConverter("", "cny")
	rec := pricing.PlanRecord{
		Country: "es", PlanName: "Standard", PlanGroup: pricing.PlanGroupYearly,
		Currency: "EUR", PriceText: "120 €", PriceNumber: 120, MonthlyPrice: 10,
	}

	got := conv.Convert(rec, "Spain", testRates)
	require.Equal(t, rec, got.PlanRecord)
	require.Equal(t, "CNY", got.TargetCurrency)
	require.Equal(t, "Spain", got.CountryName)
	require.NotNil(t, got.TargetPrice)
	require.NotNil(t, got.TargetMonthlyPrice)
	require.NotNil(t, got.ExchangeRateUsed)
	assert.InDelta(t, 960, *got.TargetPrice, 1e-9)
	assert.InDelta(t, 80, *got.TargetMonthlyPrice, 1e-9)
	assert.InDelta(t, 0.9, *got.ExchangeRateUsed, 1e-9)

	missing := rec
	missing.Currency = "XOF"
	got = conv.Convert(missing, "Spain", testRates)
	require.Nil(t, got.TargetPrice)
	require.Nil(t, got.TargetMonthlyPrice)
	require.Nil(t, got.ExchangeRateUsed)

	fromBase := rec
	fromBase.Currency = "USD"
	got = conv.Convert(fromBase, "Spain", testRates)
	require.NotNil(t, got.ExchangeRateUsed)
	assert.InDelta(t, 7.2, *got.ExchangeRateUsed, 1e-9)
}

func converted(country, plan string, group pricing.PlanGroup, monthly *float64) ConvertedPlanRecord {
	return ConvertedPlanRecord{
		PlanRecord:         pricing.PlanRecord{Country: country, PlanName: plan, PlanGroup: group},
		TargetMonthlyPrice: monthly,
		TargetPrice:        monthly,
	}
}

func TestRank(t *testing.T) {
	t.Parallel()

	records := []ConvertedPlanRecord{
		converted("tr", "Standard", pricing.PlanGroupMonthly, ptr(30)),
		converted("es", "Standard", pricing.PlanGroupMonthly, nil),
		converted("pl", "Basic", pricing.PlanGroupYearly, ptr(20)),
		converted("ar", "Standard", pricing.PlanGroupMonthly, ptr(30)),
		converted("ar", "Basic", pricing.PlanGroupMonthly, ptr(30)),
	}

	all := Rank(records, CategoryAll, 0)
	require.Len(t, all, 5)
	order := make([]string, 0, len(all))
	for i, r := range all {
		require.Equal(t, i+1, r.Rank)
		order = append(order, r.Country+"/"+r.PlanName)
	}
	require.Equal(t, []string{"pl/Basic", "ar/Basic", "ar/Standard", "tr/Standard", "es/Standard"}, order)

	monthly := Rank(records, CategoryMonthly, 2)
	require.Len(t, monthly, 2)
	require.Equal(t, "ar", monthly[0].Country)

	tier := Rank(records, TierCategory("basic"), 10)
	require.Len(t, tier, 2)

	empty := Rank(records, CategoryBundle, 10)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	require.Zero(t, records[0].Rank, "input records must not be modified")
}

func TestCategoryKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "monthly", CategoryMonthly.Key())
	require.Equal(t, "tier_standard", TierCategory("Standard").Key())
	require.Equal(t, "tier_unknown_plan", TierCategory("Unknown Plan").Key())
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	snap := crawler.Snapshot{
		"ES": {CountryCode: "ES", CountryName: "Spain", Success: true, Plans: []pricing.PlanRecord{
			{Country: "ES", PlanName: "Standard", PlanGroup: pricing.PlanGroupMonthly, Currency: "EUR", PriceNumber: 10, MonthlyPrice: 10},
			{Country: "ES", PlanName: "Standard", PlanGroup: pricing.PlanGroupYearly, Currency: "EUR", PriceNumber: 100, MonthlyPrice: 8.33},
		}},
		"TR": {CountryCode: "TR", CountryName: "Turkey", Success: true, Plans: []pricing.PlanRecord{
			{Country: "TR", PlanName: "Basic", PlanGroup: pricing.PlanGroupMonthly, Currency: "TRY", PriceNumber: 160, MonthlyPrice: 160},
		}},
		"sn": {CountryCode: "SN", CountryName: "Senegal", Success: true, Plans: []pricing.PlanRecord{
			{Country: "SN", PlanName: "Basic", PlanGroup: pricing.PlanGroupMonthly, Currency: "XOF", PriceNumber: 3000, MonthlyPrice: 3000},
		}},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := BuildReport(snap, testRates, ReportOptions{Target: "CNY", TopN: 2, Provider: "file", Now: now})

	md := report.Metadata
	require.Equal(t, 3, md.TotalCountries)
	require.Equal(t, 2, md.SuccessfulCountries)
	require.Equal(t, 1, md.FailedCountries)
	require.Equal(t, 4, md.TotalPlans)
	require.Equal(t, 1, md.ConversionMisses)
	require.Equal(t, "USD", md.BaseCurrency)
	require.InDelta(t, 7.2, md.TargetRate, 1e-9)

	all, ok := report.Ranking(CategoryAll)
	require.True(t, ok)
	require.Len(t, all.Data, 2)
	require.Equal(t, "TR", all.Data[0].Country)
	require.Equal(t, "2026-03-01", all.UpdatedAt)

	_, ok = report.Ranking(TierCategory("Standard"))
	require.True(t, ok)
	require.Contains(t, report.Countries, "SN")

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{
		"_metadata", "_top_2_cheapest_all", "_top_2_cheapest_monthly", "_top_2_cheapest_yearly",
		"_top_2_cheapest_bundle", "_top_2_cheapest_tier_basic", "_top_2_cheapest_tier_standard",
		"ES", "TR", "SN",
	} {
		require.Contains(t, doc, key)
	}
	require.JSONEq(t, `[]`, string(mustField(t, doc["_top_2_cheapest_bundle"], "data")))
}

func mustField(t *testing.T, raw json.RawMessage, field string) json.RawMessage {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &obj))
	return obj[field]
}

func TestDecodeRates(t *testing.T) {
	t.Parallel()

	rates, err := DecodeRates([]byte(`{"base":"USD","rates":{"eur":0.9}}`), "USD")
	require.NoError(t, err)
	require.Equal(t, Rates{"EUR": 0.9}, rates)

	rates, err = DecodeRates([]byte(`{"CNY":7.2}`), "USD")
	require.NoError(t, err)
	require.Equal(t, Rates{"CNY": 7.2}, rates)

	_, err = DecodeRates([]byte(`{"base":"EUR","rates":{"USD":1.1}}`), "USD")
	require.ErrorContains(t, err, "based on EUR")

	_, err = DecodeRates([]byte(`{}`), "USD")
	require.ErrorIs(t, err, ErrMissingRate)

	_, err = DecodeRates([]byte(`not json`), "USD")
	require.Error(t, err)
}

func TestFileRates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base":"USD","rates":{"CNY":7.2}}`), 0o600))

	rates, err := FileRates{Path: path}.Latest(context.Background(), "USD")
	require.NoError(t, err)
	require.Equal(t, Rates{"CNY": 7.2}, rates)

	_, err = FileRates{Path: filepath.Join(t.TempDir(), "missing.json")}.Latest(context.Background(), "USD")
	require.Error(t, err)
}
