package pricing

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// BaseCurrency is the fallback currency and the pivot of rate tables.
const BaseCurrency = "USD"

// symbolCode pairs a currency symbol or code as it appears in price text with its ISO code.
type symbolCode struct {
	symbol string
	code   string
}

// nameEntry maps a lower-cased localized tier word to its canonical tier.
type nameEntry struct {
	key  string
	tier string
}

// PriceRange bounds the plausible monthly and yearly price magnitudes for a country.
type PriceRange struct {
	MonthlyMax float64
	YearlyMin  float64
}

// pointRule lists the price bands observed for countries whose tiers the range check misreads.
type pointRule struct {
	monthlyMin, monthlyMax float64
	// yearlyMax of zero means unbounded.
	yearlyMin, yearlyMax float64
}

// Tables holds every static lookup the pricing core needs. It is built once and never mutated.
type Tables struct {
	Base             string
	countryCurrency  map[string]string
	symbols          []symbolCode
	names            []nameEntry
	nameIndex        map[string]string
	canonical        map[string]string
	stripWords       []string
	monthlyKeywords  []string
	yearlyKeywords   []string
	ranges           map[string]PriceRange
	defaultRange     PriceRange
	points           map[string]pointRule
	tierPriceHints   map[string]map[float64]string
	tierPriceSkipped map[string]map[float64]bool
}

// DefaultTables returns the lookup tables for the streaming service's regional price pages.
func DefaultTables() *Tables {
	t := &Tables{
		Base:            BaseCurrency,
		countryCurrency: countryCurrencies(),
		symbols:         sortedSymbols(currencySymbols),
		names:           planNames,
		stripWords:      []string{"hbo max", "max", "hbo", "plan", "subscription", "abonnement", "suscripción", "suscripcion", "assinatura", "abonament", "předplatné"},
		monthlyKeywords: monthlyKeywords,
		yearlyKeywords:  yearlyKeywords,
		defaultRange:    PriceRange{MonthlyMax: 30, YearlyMin: 200},
		ranges: map[string]PriceRange{
			"tr": {MonthlyMax: 500, YearlyMin: 1500},
			"hu": {MonthlyMax: 1000, YearlyMin: 5000},
			"cz": {MonthlyMax: 500, YearlyMin: 2000},
			"pl": {MonthlyMax: 100, YearlyMin: 200},
			"dk": {MonthlyMax: 200, YearlyMin: 800},
			"no": {MonthlyMax: 200, YearlyMin: 800},
			"se": {MonthlyMax: 200, YearlyMin: 800},
			"bg": {MonthlyMax: 30, YearlyMin: 200},
			"ro": {MonthlyMax: 50, YearlyMin: 400},
			"hr": {MonthlyMax: 15, YearlyMin: 100},
		},
		points: map[string]pointRule{
			"tr": {monthlyMin: 200, monthlyMax: 400, yearlyMin: 2000, yearlyMax: 4000},
			"hu": {monthlyMin: 500, monthlyMax: 4000, yearlyMin: 5000},
			"cz": {monthlyMin: 100, monthlyMax: 600, yearlyMin: 1500},
			"pl": {monthlyMin: 20, monthlyMax: 80, yearlyMin: 200},
			"dk": {monthlyMin: 50, monthlyMax: 200, yearlyMin: 500},
			"no": {monthlyMin: 50, monthlyMax: 200, yearlyMin: 500},
			"se": {monthlyMin: 50, monthlyMax: 200, yearlyMin: 500},
		},
		tierPriceHints: map[string]map[float64]string{
			"tr": {229.9: "Standard", 2299: "Standard", 299.9: "Premium", 2999: "Premium"},
		},
		tierPriceSkipped: map[string]map[float64]bool{
			"tr": {459.8: true, 599.8: true},
		},
	}

	t.nameIndex = make(map[string]string, len(t.names))
	t.canonical = make(map[string]string)
	for _, e := range t.names {
		t.nameIndex[e.key] = e.tier
		t.canonical[strings.ToLower(e.tier)] = e.tier
	}
	t.canonical[strings.ToLower(UnknownPlan)] = UnknownPlan
	return t
}

// CountryCurrency returns the configured currency for a country code.
func (t *Tables) CountryCurrency(country string) (string, bool) {
	c, ok := t.countryCurrency[strings.ToLower(country)]
	return c, ok
}

// Range returns the monthly/yearly magnitude bounds for a country.
func (t *Tables) Range(country string) PriceRange {
	if r, ok := t.ranges[strings.ToLower(country)]; ok {
		return r
	}
	return t.defaultRange
}

// TierForPrice returns the tier a known price point identifies in a country. Skipped reports
// price points that are savings amounts rather than plan prices.
func (t *Tables) TierForPrice(country string, price float64) (tier string, skipped bool) {
	cc := strings.ToLower(country)
	if t.tierPriceSkipped[cc][round2(price)] {
		return "", true
	}
	return t.tierPriceHints[cc][round2(price)], false
}

// Tiers lists the canonical tier names in the dictionary's declared order, without duplicates.
func (t *Tables) Tiers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range t.names {
		if !seen[e.tier] {
			seen[e.tier] = true
			out = append(out, e.tier)
		}
	}
	return out
}

// TierKeywords returns the lower-cased dictionary keys, used to spot plan names in free text.
func (t *Tables) TierKeywords() []string {
	out := make([]string, 0, len(t.names))
	for _, e := range t.names {
		out = append(out, e.key)
	}
	return out
}

func sortedSymbols(in []symbolCode) []symbolCode {
	out := make([]symbolCode, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i].symbol) > utf8.RuneCountInString(out[j].symbol)
	})
	return out
}

// countryCurrencies flattens the regional groups. Later groups override earlier ones.
func countryCurrencies() map[string]string {
	groups := []map[string]string{
		{
			"my": "MYR", "sg": "SGD", "th": "THB", "id": "IDR", "ph": "PHP",
			"hk": "HKD", "tw": "TWD", "au": "AUD", "us": "USD",
		},
		{
			"co": "COP", "cr": "CRC", "gt": "GTQ", "pe": "PEN", "uy": "UYU",
			"mx": "MXN", "hn": "HNL", "ni": "NIO", "pa": "PAB", "ar": "ARS",
			"bo": "BOB", "do": "DOP", "ec": "USD", "sv": "USD", "py": "PYG",
			"cl": "CLP", "br": "BRL", "gy": "GYD", "ve": "VES",
		},
		{
			"pl": "PLN", "cz": "CZK", "hu": "HUF", "tr": "TRY", "dk": "DKK",
			"no": "NOK", "se": "SEK", "fi": "EUR", "es": "EUR", "fr": "EUR",
			"be": "EUR", "pt": "EUR", "nl": "EUR", "hr": "EUR", "me": "EUR",
			"sk": "EUR", "si": "EUR", "ad": "EUR", "gp": "EUR", "ba": "BAM",
		},
		{
			"ai": "XCD", "aw": "USD", "cw": "USD", "ky": "USD", "gd": "USD",
			"jm": "JMD", "sr": "SRD", "tt": "TTD", "ht": "HTG", "ms": "XCD",
			"vc": "USD",
		},
		// Observed pricing on the regional pages is in euros despite the local currency.
		{"bg": "EUR", "rs": "EUR", "mk": "EUR", "md": "EUR", "ro": "EUR"},
	}
	out := make(map[string]string)
	for _, g := range groups {
		for k, v := range g {
			out[k] = v
		}
	}
	return out
}

var currencySymbols = []symbolCode{
	{"US$", "USD"}, {"USD", "USD"},
	{"S$", "SGD"}, {"SGD", "SGD"},
	{"HK$", "HKD"}, {"HKD", "HKD"},
	{"A$", "AUD"}, {"AUD", "AUD"},
	{"C$", "CAD"}, {"CA$", "CAD"},
	{"MX$", "MXN"},
	{"NZ$", "NZD"},
	{"NT$", "TWD"},
	{"R$", "BRL"},
	{"RD$", "DOP"},
	{"€", "EUR"}, {"EUR", "EUR"},
	{"£", "GBP"}, {"GBP", "GBP"},
	{"¥", "JPY"}, {"￥", "JPY"}, {"JPY", "JPY"},
	{"₹", "INR"}, {"INR", "INR"},
	{"₱", "PHP"}, {"PHP", "PHP"},
	{"₪", "ILS"},
	{"₨", "PKR"},
	{"₦", "NGN"},
	{"₵", "GHS"},
	{"₡", "CRC"},
	{"₩", "KRW"},
	{"₴", "UAH"},
	{"₽", "RUB"},
	{"₺", "TRY"}, {"TRY", "TRY"},
	{"zł", "PLN"}, {"PLN", "PLN"},
	{"Kč", "CZK"}, {"CZK", "CZK"},
	{"Ft", "HUF"}, {"HUF", "HUF"},
	{"TL", "TRY"},
	{"CHF", "CHF"},
	{"NOK", "NOK"},
	{"SEK", "SEK"},
	{"DKK", "DKK"},
	{"RM", "MYR"}, {"MYR", "MYR"},
	{"฿", "THB"}, {"THB", "THB"},
	{"Rp", "IDR"}, {"IDR", "IDR"},
	{"S/.", "PEN"},
	{"L", "HNL"},
	{"Gs", "PYG"},
	{"Q", "GTQ"},
	{"kr", "SEK"},
	{"$", "USD"},
}

var planNames = []nameEntry{
	{"mobile", "Mobile"},
	{"standard", "Standard"},
	{"ultimate", "Ultimate"},
	{"premium", "Premium"},
	{"basic", "Basic"},
	{"max", "Max"},
	{"móvil", "Mobile"},
	{"movil", "Mobile"},
	{"estándar", "Standard"},
	{"estandar", "Standard"},
	{"último", "Ultimate"},
	{"ultimo", "Ultimate"},
	{"máximo", "Ultimate"},
	{"maximo", "Ultimate"},
	{"platino", "Ultimate"},
	{"básico", "Basic"},
	{"basico", "Basic"},
	{"básico con anuncios", "Basic"},
	{"basico con anuncios", "Basic"},
	{"móvel", "Mobile"},
	{"movel", "Mobile"},
	{"padrão", "Standard"},
	{"padrao", "Standard"},
	{"supremo", "Ultimate"},
	{"ultime", "Ultimate"},
	{"de base", "Basic"},
	{"base", "Basic"},
	{"mobil", "Mobile"},
	{"ultimativ", "Ultimate"},
	{"basis", "Basic"},
	{"grund", "Basic"},
	{"di base", "Basic"},
	{"mobiel", "Mobile"},
	{"standaard", "Standard"},
	{"ultiem", "Ultimate"},
	{"mobilny", "Mobile"},
	{"standardowy", "Standard"},
	{"najwyższy", "Ultimate"},
	{"podstawowy", "Basic"},
	{"mobilní", "Mobile"},
	{"standardní", "Standard"},
	{"ultimátní", "Ultimate"},
	{"základní", "Basic"},
	{"prémium", "Premium"},
	{"végső", "Ultimate"},
	{"alap", "Basic"},
	{"standart", "Standard"},
	{"en üst", "Ultimate"},
	{"temel", "Basic"},
	{"手机", "Mobile"},
	{"移动", "Mobile"},
	{"标准", "Standard"},
	{"高级", "Premium"},
	{"至尊", "Ultimate"},
	{"终极", "Ultimate"},
	{"基础", "Basic"},
	{"基本", "Basic"},
	{"標準", "Standard"},
	{"高級", "Ultimate"},
	{"手機", "Mobile"},
	{"移動", "Mobile"},
	{"基礎", "Basic"},
	{"終極", "Ultimate"},
	{"mudah alih", "Mobile"},
	{"muktamad", "Ultimate"},
	{"asas", "Basic"},
	{"มือถือ", "Mobile"},
	{"มาตรฐาน", "Standard"},
	{"พรีเมียม", "Premium"},
	{"สูงสุด", "Ultimate"},
	{"พื้นฐาน", "Basic"},
	{"standar", "Standard"},
	{"tertinggi", "Ultimate"},
	{"dasar", "Basic"},
	{"karaniwan", "Standard"},
	{"pinakamataas", "Ultimate"},
	{"pangunahing", "Basic"},
	{"mob", "Mobile"},
	{"std", "Standard"},
	{"prem", "Premium"},
	{"ult", "Ultimate"},
	{"bas", "Basic"},
	{"platinum", "Platinum"},
}

var monthlyKeywords = []string{
	"month", "/month", "monthly", "per month",
	"mes", "mensual", "por mes",
	"mês", "mensal", "por mês",
	"mois", "mensuel", "par mois",
	"mese", "mensile", "al mese",
	"monat", "monatlich", "pro monat",
	"maand", "maandelijks", "per maand",
	"miesiąc", "miesięczny", "mies", "miesięcznie",
	"měsíc", "měsíčně", "/měs",
	"hó", "hónap", "havonta",
	"måned", "månedlig", "pr måned",
	"månad", "månadsvis", "per månad",
	"kuu", "kuukausittain",
	"ay", "aylık", "ayda",
	"месяц", "в месяц",
	"月", "每月",
	"bulan", "sebulan", "/bln",
	"เดือน",
	"buwan", "kada buwan",
}

var yearlyKeywords = []string{
	"year", "yearly", "annual", "per year", "annually",
	"año", "anual", "por año", "anualmente",
	"ano", "por ano",
	"an", "année", "annuel", "par an",
	"anno", "annuale", "all'anno",
	"jahr", "jährlich", "pro jahr",
	"jaar", "jaarlijks", "per jaar",
	"rok", "roczny", "rocznie",
	"ročně",
	"év", "évente",
	"år", "årlig", "pr år", "om året",
	"vuosi", "vuosittain",
	"yıl", "yıllık", "yılda",
	"год", "в год", "годовой",
	"年", "每年",
	"tahun", "setahun", "/thn",
	"ปี",
	"taon", "bawat taon",
}
