package entity

// Provenance points a derived entity back to the raw location it was
// extracted from. Indices are arena-style so entities stay serializable and
// comparable across process boundaries.
type Provenance struct {
	File       string `json:"file"`
	Page       int    `json:"page,omitempty"`
	TableIndex int    `json:"table_index,omitempty"`
	RowIndex   int    `json:"row_index,omitempty"`
	// RowIndexes lists every raw row merged into this entity when it spans
	// continuation rows.
	RowIndexes []int `json:"row_indexes,omitempty"`
	LineIndex  int   `json:"line_index,omitempty"`
}

// LineItem is one parsed product/service row of a quote.
type LineItem struct {
	Index       int    `json:"item_index"`
	ServiceName string `json:"service_name,omitempty"`
	SKU         string `json:"sku,omitempty"`
	UnitsQty    string `json:"units_qty,omitempty"`
	TermStart   string `json:"term_start,omitempty"`
	TermEnd     string `json:"term_end,omitempty"`

	ListUnitPriceRaw string `json:"list_unit_price_raw,omitempty"`
	DiscountPctRaw   string `json:"discount_pct_raw,omitempty"`
	NetUnitPriceRaw  string `json:"net_unit_price_raw,omitempty"`
	NetTotalRaw      string `json:"net_total_raw,omitempty"`

	ListUnitPrice *float64 `json:"list_unit_price_value,omitempty"`
	DiscountPct   *float64 `json:"discount_pct_value,omitempty"`
	NetUnitPrice  *float64 `json:"net_unit_price_value,omitempty"`
	NetTotal      *float64 `json:"net_total_value,omitempty"`

	Currency                string `json:"currency,omitempty"`
	DescriptionContinuation string `json:"description_continuation,omitempty"`
	// SectionIndex groups items belonging to the same quote option when a
	// document carries several alternative pricing sections.
	SectionIndex int        `json:"quote_section_index"`
	Source       Provenance `json:"source"`
}

// SummaryField is one extracted business summary value with its audit trail.
type SummaryField struct {
	Name   string     `json:"name"`
	Raw    string     `json:"raw"`
	Value  *float64   `json:"value,omitempty"`
	Source Provenance `json:"source"`
}

// BusinessSummary is the document-level key-value map of totals, dates and
// identifiers, plus derived reconciliation values.
type BusinessSummary struct {
	File   string                  `json:"file"`
	Fields map[string]SummaryField `json:"fields"`

	QuoteNumber       string   `json:"quote_number,omitempty"`
	ExpirationDate    string   `json:"expiration_date,omitempty"`
	ExpirationDateISO string   `json:"expiration_date_iso,omitempty"`
	Currency          string   `json:"currency,omitempty"`
	TotalRaw          string   `json:"total_raw,omitempty"`
	TotalValue        *float64 `json:"total_value,omitempty"`
	OverallTotalRaw   string   `json:"overall_total_raw,omitempty"`
	OverallTotalValue *float64 `json:"overall_total_value,omitempty"`
	LineItemsTotal    *float64 `json:"line_items_total_value,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// Field returns the raw text of a named summary field, or "".
func (s *BusinessSummary) Field(name string) string {
	if s.Fields == nil {
		return ""
	}
	return s.Fields[name].Raw
}

// Float is a small helper for optional numeric fields.
func Float(v float64) *float64 { return &v }
