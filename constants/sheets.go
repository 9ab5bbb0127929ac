package constants

// Audit workbook sheet names. Order here is the order sheets appear in the
// workbook; text_chars is inserted after text_words when the char layer is on.
const (
	SheetDocumentMetadata = "document_metadata"
	SheetPages            = "pages"
	SheetTextLines        = "text_lines"
	SheetTextWords        = "text_words"
	SheetTextChars        = "text_chars"
	SheetTablesRaw        = "tables_raw"
	SheetLineItems        = "line_items_parsed"
	SheetLinks            = "links"
	SheetImages           = "images"
	SheetBusinessSummary  = "business_summary"
	SheetValidationReport = "validation_report"
)

// AuditSheets returns the ordered sheet list for an audit workbook.
func AuditSheets(includeCharLayer bool) []string {
	sheets := []string{
		SheetDocumentMetadata,
		SheetPages,
		SheetTextLines,
		SheetTextWords,
		SheetTablesRaw,
		SheetLineItems,
		SheetLinks,
		SheetImages,
		SheetBusinessSummary,
		SheetValidationReport,
	}
	if includeCharLayer {
		withChars := make([]string, 0, len(sheets)+1)
		withChars = append(withChars, sheets[:4]...)
		withChars = append(withChars, SheetTextChars)
		withChars = append(withChars, sheets[4:]...)
		return withChars
	}
	return sheets
}
