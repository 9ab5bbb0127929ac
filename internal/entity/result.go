package entity

// DocumentResult is everything one document contributed to a batch. A fatal
// per-document failure leaves Document nil and Error set; the sibling
// documents of the batch are unaffected.
type DocumentResult struct {
	FileName string              `json:"file"`
	Path     string              `json:"path"`
	Document *Document           `json:"-"`
	Items    []LineItem          `json:"line_items_parsed"`
	Summary  *BusinessSummary    `json:"business_summary,omitempty"`
	Findings []ValidationFinding `json:"validation_report"`
	// StrictBlocked marks a document whose error-severity findings block
	// workbook and template output under strict mode. JSON output still
	// carries the best-effort extraction.
	StrictBlocked bool   `json:"strict_blocked,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Blocked reports whether the document may contribute to workbook and
// template output.
func (r *DocumentResult) Blocked() bool {
	return r.StrictBlocked || r.Error != ""
}
