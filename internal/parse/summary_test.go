package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/entity"
)

func summaryDoc() *entity.Document {
	page1 := "Quote #: Q-220053\nExpiration Date: 10/31/2025\nSubscription Period: 12 Months\nPayment Method: Bank Transfer"
	page2 := "TOTAL: $4,800.00 per year\nTOTAL: $850.00 per year\nOverall Total: $850.00"
	return &entity.Document{
		FileName: "quote.pdf",
		Pages: []entity.Page{
			{
				Number: 1,
				Text:   page1,
				Lines: []entity.Line{
					{Index: 1, Text: "Quote #: Q-220053"},
					{Index: 2, Text: "Expiration Date: 10/31/2025"},
				},
			},
			{
				Number: 2,
				Text:   page2,
				Lines: []entity.Line{
					{Index: 1, Text: "TOTAL: $4,800.00 per year"},
					{Index: 2, Text: "TOTAL: $850.00 per year"},
					{Index: 3, Text: "Overall Total: $850.00"},
				},
			},
		},
	}
}

func TestSummaryExtractsConfiguredFields(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	parser := NewParser(cfg, nil)

	items := []entity.LineItem{{NetTotal: entity.Float(850)}}
	summary := parser.Summary(summaryDoc(), items)

	assert.Equal(t, "Q-220053", summary.QuoteNumber)
	assert.Equal(t, "10/31/2025", summary.ExpirationDate)
	assert.Equal(t, "2025-10-31", summary.ExpirationDateISO)
	assert.Equal(t, "12 Months", summary.Field("subscription_period"))
	assert.Equal(t, "Bank Transfer", summary.Field("payment_method"))
	assert.Equal(t, "USD", summary.Currency)

	// total_raw is last-match-wins, so the later per-section total wins.
	assert.Equal(t, "$850.00", summary.TotalRaw)
	require.NotNil(t, summary.TotalValue)
	assert.InDelta(t, 850.0, *summary.TotalValue, 1e-9)
	require.NotNil(t, summary.OverallTotalValue)
	assert.InDelta(t, 850.0, *summary.OverallTotalValue, 1e-9)
	require.NotNil(t, summary.LineItemsTotal)
	assert.InDelta(t, 850.0, *summary.LineItemsTotal, 1e-9)
}

func TestSummaryFieldProvenance(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	parser := NewParser(cfg, nil)

	summary := parser.Summary(summaryDoc(), nil)

	quote := summary.Fields["quote_number"]
	assert.Equal(t, "quote.pdf", quote.Source.File)
	assert.Equal(t, 1, quote.Source.Page)
	assert.Equal(t, 1, quote.Source.LineIndex)

	total := summary.Fields["total_raw"]
	assert.Equal(t, 2, total.Source.Page)

	assert.Nil(t, summary.LineItemsTotal)
}

func TestSummaryDirectorFields(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	parser := NewParser(cfg, nil)

	doc := summaryDoc()
	doc.Pages[1].Tables = gridCells(1, [][]string{
		{"Regional Director", "Email", "", "Payment Terms"},
		{"Jo Vance", "jo.vance@vendor.example", "", "Net 30"},
	})
	summary := parser.Summary(doc, nil)

	assert.Equal(t, "Jo Vance", summary.Field("regional_director"))
	assert.Equal(t, "jo.vance@vendor.example", summary.Field("regional_director_email"))
	assert.Equal(t, "Net 30", summary.Field("payment_terms"))
	assert.Equal(t, 2, summary.Fields["regional_director"].Source.Page)
	assert.Equal(t, 2, summary.Fields["regional_director"].Source.RowIndex)
}

func TestSummaryMissingFieldsStayAbsent(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	parser := NewParser(cfg, nil)

	doc := &entity.Document{
		FileName: "empty.pdf",
		Pages:    []entity.Page{{Number: 1, Text: "nothing to see"}},
	}
	summary := parser.Summary(doc, nil)
	_, ok := summary.Fields["quote_number"]
	assert.False(t, ok)
	assert.Empty(t, summary.QuoteNumber)
	assert.Empty(t, summary.TotalRaw)
	assert.Nil(t, summary.TotalValue)
}
