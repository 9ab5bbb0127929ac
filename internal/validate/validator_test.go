package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/entity"
)

func testDoc() *entity.Document {
	return &entity.Document{
		FileName: "quote.pdf",
		Pages: []entity.Page{
			{
				Number: 1,
				Words:  []entity.Word{{Index: 1, Text: "TOTAL:"}},
				Tables: []entity.RawTableCell{{TableIndex: 1, RowIndex: 1, ColIndex: 1, Text: "x"}},
			},
		},
	}
}

func testSummary(total, lineTotal, overall *float64) *entity.BusinessSummary {
	s := &entity.BusinessSummary{
		File: "quote.pdf",
		Fields: map[string]entity.SummaryField{
			"quote_number": {Name: "quote_number", Raw: "Q-1"},
			"total_raw":    {Name: "total_raw", Raw: "$1.00"},
		},
		TotalValue:        total,
		LineItemsTotal:    lineTotal,
		OverallTotalValue: overall,
	}
	return s
}

func findByKind(findings []entity.ValidationFinding, kind string) (entity.ValidationFinding, bool) {
	for _, f := range findings {
		if f.Kind == kind {
			return f, true
		}
	}
	return entity.ValidationFinding{}, false
}

func TestToleranceBandClassification(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Validation.Tolerance = 0.01
	cfg.Validation.ErrorTolerance = 1.00

	cases := []struct {
		name     string
		computed float64
		status   constants.FindingStatus
		severity constants.Severity
	}{
		{"exact", 1000.00, constants.StatusPass, constants.SeverityError},
		{"at_tolerance", 1000.01, constants.StatusPass, constants.SeverityError},
		{"warn_band", 1000.50, constants.StatusFail, constants.SeverityWarning},
		{"at_error_tolerance", 1001.00, constants.StatusFail, constants.SeverityWarning},
		{"beyond_error", 1001.01, constants.StatusFail, constants.SeverityError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := New(cfg, nil)
			findings := v.Validate(testDoc(),
				[]entity.LineItem{{Index: 1, SKU: "A", NetTotal: entity.Float(tc.computed)}},
				testSummary(entity.Float(1000.00), entity.Float(tc.computed), entity.Float(1000.00)))
			f, ok := findByKind(findings, constants.KindTotalVsLineItems)
			require.True(t, ok)
			assert.Equal(t, tc.status, f.Status)
			assert.Equal(t, tc.severity, f.Severity)
		})
	}
}

func TestRelativeToleranceWidensBands(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Validation.Tolerance = 0.01
	cfg.Validation.ErrorTolerance = 0.01
	cfg.Validation.RelativeTolerance = 0.001 // 0.1% of the parsed total

	v := New(cfg, nil)
	// diff of 0.90 on a 1000.00 total: within 0.01 + 1.00.
	findings := v.Validate(testDoc(), nil,
		testSummary(entity.Float(1000.00), entity.Float(999.10), entity.Float(1000.00)))
	f, ok := findByKind(findings, constants.KindTotalVsLineItems)
	require.True(t, ok)
	assert.Equal(t, constants.StatusPass, f.Status)
}

func TestMissingTotalsFailReconciliation(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	v := New(cfg, nil)

	findings := v.Validate(testDoc(), nil, testSummary(nil, nil, nil))
	f, ok := findByKind(findings, constants.KindTotalVsLineItems)
	require.True(t, ok)
	assert.Equal(t, constants.StatusFail, f.Status)
	assert.Equal(t, constants.SeverityError, f.Severity)
	assert.Contains(t, f.Observed, "none")

	f, ok = findByKind(findings, constants.KindTotalVsOverall)
	require.True(t, ok)
	assert.Equal(t, constants.StatusFail, f.Status)
}

func TestRowArithmeticFinding(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	v := New(cfg, nil)

	items := []entity.LineItem{
		{Index: 1, SKU: "OK", UnitsQty: "2", NetUnitPrice: entity.Float(10), NetTotal: entity.Float(20)},
		{Index: 2, SKU: "BAD", UnitsQty: "2", NetUnitPrice: entity.Float(10), NetTotal: entity.Float(25),
			Source: entity.Provenance{File: "quote.pdf", Page: 1, TableIndex: 1}},
	}
	findings := v.Validate(testDoc(), items,
		testSummary(entity.Float(45), entity.Float(45), entity.Float(45)))

	f, ok := findByKind(findings, constants.KindRowArithmetic)
	require.True(t, ok)
	assert.Equal(t, constants.StatusFail, f.Status)
	assert.Contains(t, f.Observed, "item 2")
	require.Len(t, f.Refs, 1)
	assert.Equal(t, 1, f.Refs[0].Page)
}

func TestCurrencyMixFinding(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Validation.CheckCurrencyMix = true
	v := New(cfg, nil)

	items := []entity.LineItem{
		{Index: 1, Currency: "USD", NetTotal: entity.Float(1)},
		{Index: 2, Currency: "EUR", NetTotal: entity.Float(1)},
	}
	findings := v.Validate(testDoc(), items,
		testSummary(entity.Float(2), entity.Float(2), entity.Float(2)))
	f, ok := findByKind(findings, constants.KindCurrencyMix)
	require.True(t, ok)
	assert.Equal(t, constants.SeverityWarning, f.Severity)
	assert.Equal(t, "USD,EUR", f.Observed)
}

func TestRequiredFieldFindings(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	v := New(cfg, nil)

	summary := &entity.BusinessSummary{File: "quote.pdf", Fields: map[string]entity.SummaryField{}}
	findings := v.Validate(testDoc(), nil, summary)

	var missing []string
	for _, f := range findings {
		if f.Kind == constants.KindMissingField {
			missing = append(missing, f.Expected)
		}
	}
	assert.Equal(t, []string{"quote_number", "total_raw"}, missing)
}

func TestDegradedPageFinding(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	v := New(cfg, nil)

	doc := testDoc()
	doc.Pages = append(doc.Pages, entity.Page{Number: 2, Degraded: true, DegradedCause: "ocr timeout"})
	findings := v.Validate(doc, nil, testSummary(entity.Float(1), entity.Float(1), entity.Float(1)))

	f, ok := findByKind(findings, constants.KindCaptureDegraded)
	require.True(t, ok)
	assert.Equal(t, constants.StatusFail, f.Status)
	assert.Equal(t, constants.SeverityWarning, f.Severity)
	assert.Equal(t, "ocr timeout", f.Observed)
}

func TestFindingsOrderedBySeverity(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	v := New(cfg, nil)

	findings := v.Validate(testDoc(), nil, testSummary(entity.Float(1), entity.Float(1), entity.Float(1)))
	last := -1
	for _, f := range findings {
		rank := constants.SeverityRank(f.Severity)
		require.GreaterOrEqual(t, rank, last)
		last = rank
	}
	// The informational link rule always lands last.
	assert.Equal(t, constants.KindLinkCapture, findings[len(findings)-1].Kind)
}
