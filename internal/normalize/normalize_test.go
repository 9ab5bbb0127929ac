package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"dot decimal", "1.17", 1.17},
		{"comma decimal", "1,17", 1.17},
		{"comma decimal short", "10,5", 10.5},
		{"eu grouping", "1.234,56", 1234.56},
		{"us grouping", "1,234.56", 1234.56},
		{"thousands comma", "10,000", 10000},
		{"eu grouped with decimal", "10.000,50", 10000.50},
		{"long comma decimal", "205857,60", 205857.60},
		{"repeated groups", "1.234.567", 1234567},
		{"negative", "-42,5", -42.5},
		{"embedded text", "Total: 99,10 per unit", 99.10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseNumber(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParseNumberRejectsNonNumeric(t *testing.T) {
	for _, in := range []string{"", "   ", "n/a", "Included", "-"} {
		_, err := ParseNumber(in)
		var parseErr *ParseError
		require.Error(t, err, "input %q", in)
		require.ErrorAs(t, err, &parseErr)
	}
}

func TestParseNumberRoundTrip(t *testing.T) {
	for _, x := range []float64{0.5, 1.17, 10.5, 1234.56, 617572.80, -99.1, 10000} {
		got, err := ParseNumber(FormatNumber(x))
		require.NoError(t, err)
		assert.Equal(t, x, got)
	}
}

func TestParseCurrencyAmount(t *testing.T) {
	cases := map[string]float64{
		"USD 617,572.80": 617572.80,
		"$205,857.60":    205857.60,
		"EUR 617.572,80": 617572.80,
		"USD 205857,60":  205857.60,
		"€ 99,10":        99.10,
	}
	for in, want := range cases {
		got, err := ParseCurrencyAmount(in)
		require.NoError(t, err, "input %q", in)
		assert.InDelta(t, want, got, 1e-9, "input %q", in)
	}
}

func TestParseCurrencyCode(t *testing.T) {
	assert.Equal(t, "USD", ParseCurrencyCode("USD 617,572.80", "USD"))
	assert.Equal(t, "EUR", ParseCurrencyCode("EUR 99.10", "USD"))
	assert.Equal(t, "EUR", ParseCurrencyCode("€ 99,10", "USD"))
	assert.Equal(t, "GBP", ParseCurrencyCode("£12.00", "USD"))
	assert.Equal(t, "USD", ParseCurrencyCode("1234.56", "USD"))
	assert.Equal(t, "", ParseCurrencyCode("", "USD"))
}

func TestParsePercent(t *testing.T) {
	got, err := ParsePercent("60.00%")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got)

	got, err = ParsePercent("-5%")
	require.NoError(t, err)
	assert.Equal(t, -5.0, got)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("12/30/2025", []string{"01/02/2006", "01/02/06"})
	require.NoError(t, err)
	assert.Equal(t, "2025-12-30", got)

	_, err = ParseDate("30.12.2025", []string{"01/02/2006"})
	assert.Error(t, err)
}

func TestSplitTermRange(t *testing.T) {
	start, end := SplitTermRange("12/31/2025 - 12/30/2028")
	assert.Equal(t, "12/31/2025", start)
	assert.Equal(t, "12/30/2028", end)

	start, end = SplitTermRange("36 months")
	assert.Empty(t, start)
	assert.Empty(t, end)
}

func TestCleanSingleLine(t *testing.T) {
	assert.Equal(t, "NK-EGRESS-DIP Spain", CleanSingleLine(" NK-EGRESS-DIP \n Spain "))
}
