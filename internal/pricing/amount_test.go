package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "dollar decimal", in: "$5.99", want: 5.99},
		{name: "comma decimal", in: "5,99 €", want: 5.99},
		{name: "european thousands", in: "1.234,56", want: 1234.56},
		{name: "us thousands", in: "1,234.56", want: 1234.56},
		{name: "three digit fraction is thousands", in: "2.499 zł", want: 2499},
		{name: "space grouped", in: "₡3 990", want: 3990},
		{name: "nbsp grouped", in: "₡3\u00a0990", want: 3990},
		{name: "thin space grouped with decimals", in: "1\u2009234,56 Ft", want: 1234.56},
		{name: "longest run wins", in: "2 planes desde $12.99", want: 12.99},
		{name: "comma thousands", in: "COP 16,900", want: 16900},
		{name: "multiple dots", in: "1.234.567", want: 1234567},
		{name: "integer", in: "229 TL", want: 229},
		{name: "trailing separator", in: "5.", want: 5},
		{name: "no digits", in: "free", want: 0},
		{name: "only separators", in: ",.,", want: 0},
		{name: "empty", in: "", want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.InDelta(t, tt.want, ParseAmount(tt.in), 1e-9)
		})
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 59.88, round2(4.99*12), 1e-9)
	require.InDelta(t, 1.25, round2(14.99/12), 1e-9)
	require.InDelta(t, 0, round2(0.001), 1e-9)
}

func FuzzParseAmount(f *testing.F) {
	for _, seed := range []string{"$5.99", "5,99 €", "1.234,56", "₡3 990", "12x $4.99/mes", "", "..,,"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		got := ParseAmount(in)
		if got < 0 || got != got {
			t.Fatalf("ParseAmount(%q) = %v", in, got)
		}
	})
}
