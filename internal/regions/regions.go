// Package regions maps country codes to the localized pricing pages of the streaming site.
package regions

import (
	"sort"
	"strings"
)

// DefaultBaseURL is the site every regional path is resolved against.
const DefaultBaseURL = "https://www.hbomax.com"

// paths lists the locale variants tried for a country, in order.
var paths = map[string][]string{
	"my": {"/my/en", "/my/zh", "/my/ms"},
	"hk": {"/hk/en", "/hk/zh"},
	"ph": {"/ph/en", "/ph/tl"},
	"tw": {"/tw/en", "/tw/zh"},
	"id": {"/id/en", "/id/id"},
	"sg": {"/sg/en", "/sg/ms"},
	"th": {"/th/en", "/th/th"},

	"co": {"/co/es"}, "cr": {"/cr/es"}, "gt": {"/gt/es"}, "pe": {"/pe/es"},
	"uy": {"/uy/es"}, "mx": {"/mx/es"}, "hn": {"/hn/es"}, "ni": {"/ni/es"},
	"pa": {"/pa/es"}, "ar": {"/ar/es"}, "bo": {"/bo/es"}, "do": {"/do/es"},
	"ec": {"/ec/es"}, "sv": {"/sv/es"}, "py": {"/py/es"}, "cl": {"/cl/es"},
	"ve": {"/ve/es"},
	"br": {"/br/pt"},

	"jm": {"/jm/en"}, "ms": {"/ms/en"}, "ai": {"/ai/en"}, "ag": {"/ag/en"},
	"aw": {"/aw/en"}, "bs": {"/bs/en"}, "bb": {"/bb/en"}, "bz": {"/bz/en"},
	"vg": {"/vg/en"}, "ky": {"/ky/en"}, "cw": {"/cw/en"}, "dm": {"/dm/en"},
	"gd": {"/gd/en"}, "gy": {"/gy/en"}, "ht": {"/ht/en"}, "kn": {"/kn/en"},
	"lc": {"/lc/en"}, "vc": {"/vc/en"}, "sr": {"/sr/en"}, "tt": {"/tt/en"},
	"tc": {"/tc/en"},
	"gp": {"/gp/en", "/gp/fr"},

	"us": {"/us/en", "/us/es"},
	"au": {"/au/en"},

	"ad": {"/ad/en", "/ad/es"},
	"ba": {"/ba/en", "/ba/hr"},
	"bg": {"/bg/en", "/bg/bg"},
	"hr": {"/hr/en", "/hr/hr"},
	"cz": {"/cz/cs"},
	"hu": {"/hu/hu"},
	"mk": {"/mk/en", "/mk/mk"},
	"md": {"/md/en", "/md/ro"},
	"me": {"/me/en", "/me/sr"},
	"ro": {"/ro/en", "/ro/ro"},
	"rs": {"/rs/en", "/rs/sr"},
	"sk": {"/sk/en", "/sk/sk"},
	"si": {"/si/en", "/si/sl"},
	"dk": {"/dk/da"},
	"fi": {"/fi/en", "/fi/fi"},
	"no": {"/no/no"},
	"se": {"/se/sv"},
	"es": {"/es/en", "/es/es"},
	"fr": {"/fr/en", "/fr/fr"},
	"be": {"/be/en", "/be/nl", "/be/fr"},
	"pt": {"/pt/en", "/pt/pt"},
	"nl": {"/nl/en", "/nl/nl"},
	"pl": {"/pl/pl"},
	"tr": {"/tr/en", "/tr/tr"},
	"al": {"/al/en", "/al/sq"},
	"am": {"/am/en", "/am/hy"},
	"cy": {"/cy/en", "/cy/el"},
	"ee": {"/ee/en", "/ee/et"},
	"ge": {"/ge/en", "/ge/ka"},
	"is": {"/is/en", "/is/is"},
	"kz": {"/kz/en", "/kz/kk"},
	"kg": {"/kg/en", "/kg/ky"},
	"lv": {"/lv/en", "/lv/lv"},
	"lt": {"/lt/en", "/lt/lt"},
	"mt": {"/mt/en", "/mt/mt"},
	"tj": {"/tj/en", "/tj/tg"},
}

var names = map[string]string{
	"my": "Malaysia", "hk": "Hong Kong", "ph": "Philippines", "tw": "Taiwan",
	"id": "Indonesia", "sg": "Singapore", "th": "Thailand", "co": "Colombia",
	"cr": "Costa Rica", "gt": "Guatemala", "pe": "Peru", "uy": "Uruguay",
	"mx": "Mexico", "hn": "Honduras", "ni": "Nicaragua", "pa": "Panama",
	"ar": "Argentina", "bo": "Bolivia", "do": "Dominican Republic", "ec": "Ecuador",
	"sv": "El Salvador", "py": "Paraguay", "cl": "Chile", "br": "Brazil",
	"jm": "Jamaica", "ms": "Montserrat", "ai": "Anguilla", "ag": "Antigua and Barbuda",
	"aw": "Aruba", "bs": "Bahamas", "bb": "Barbados", "bz": "Belize",
	"vg": "British Virgin Islands", "ky": "Cayman Islands", "cw": "Curacao",
	"dm": "Dominica", "gd": "Grenada", "gy": "Guyana", "ht": "Haiti",
	"kn": "Saint Kitts and Nevis", "lc": "Saint Lucia", "vc": "Saint Vincent and the Grenadines",
	"sr": "Suriname", "tt": "Trinidad and Tobago", "tc": "Turks and Caicos Islands",
	"us": "United States", "au": "Australia", "ad": "Andorra", "ba": "Bosnia and Herzegovina",
	"bg": "Bulgaria", "hr": "Croatia", "cz": "Czech Republic", "hu": "Hungary",
	"mk": "North Macedonia", "md": "Moldova", "me": "Montenegro", "ro": "Romania",
	"rs": "Serbia", "sk": "Slovakia", "si": "Slovenia", "dk": "Denmark",
	"fi": "Finland", "no": "Norway", "se": "Sweden", "es": "Spain",
	"fr": "France", "be": "Belgium", "pt": "Portugal", "nl": "Netherlands",
	"pl": "Poland", "tr": "Turkey",
	"al": "Albania", "am": "Armenia", "cy": "Cyprus", "ee": "Estonia",
	"ge": "Georgia", "is": "Iceland", "kz": "Kazakhstan", "kg": "Kyrgyzstan",
	"lv": "Latvia", "lt": "Lithuania", "mt": "Malta", "tj": "Tajikistan",
	"gp": "Guadeloupe", "ve": "Venezuela",
}

// Codes returns every mapped country code, sorted.
func Codes() []string {
	out := make([]string, 0, len(paths))
	for cc := range paths {
		out = append(out, cc)
	}
	sort.Strings(out)
	return out
}

// Known reports whether the country has a static path mapping.
func Known(cc string) bool {
	_, ok := paths[strings.ToLower(cc)]
	return ok
}

// Name returns the English country name, or the upper-cased code when unmapped.
func Name(cc string) string {
	if n, ok := names[strings.ToLower(cc)]; ok {
		return n
	}
	return strings.ToUpper(cc)
}

// URLs returns the candidate pricing URLs for a country in the order they should be tried.
// Unmapped countries get the bare country path followed by a Spanish locale fallback.
func URLs(base, cc string) []string {
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	cc = strings.ToLower(strings.TrimSpace(cc))
	if cc == "" {
		return nil
	}

	ps, ok := paths[cc]
	if !ok {
		return []string{base + "/" + cc + "/", base + "/" + cc + "/es"}
	}
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, base+p)
	}
	return out
}

// Normalize lower-cases, trims and de-duplicates country codes, preserving order. An empty input
// selects every mapped country.
func Normalize(codes []string) []string {
	if len(codes) == 0 {
		return Codes()
	}
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
