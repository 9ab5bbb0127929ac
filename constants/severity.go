package constants

// Severity classifies a validation finding.
type Severity string

// Stable values (these exact strings appear in reports and JSON output).
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// SeverityRank orders severities for deterministic reporting (lowest first).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// FindingStatus is the pass/fail outcome of a single validation rule.
type FindingStatus string

const (
	StatusPass FindingStatus = "PASS"
	StatusFail FindingStatus = "FAIL"
)

// StatusOf maps a boolean rule outcome to its report status.
func StatusOf(ok bool) FindingStatus {
	if ok {
		return StatusPass
	}
	return StatusFail
}

// Finding kinds emitted by the validator and the pipeline.
const (
	KindPagePresence     = "page_presence"
	KindWordPresence     = "word_presence"
	KindWordCoverage     = "word_coverage_per_page"
	KindTablePresence    = "table_presence"
	KindLineItemPresence = "line_item_presence"
	KindTotalVsLineItems = "total_vs_line_items"
	KindTotalVsOverall   = "total_vs_overall_total"
	KindRowArithmetic    = "row_arithmetic"
	KindCurrencyMix      = "currency_consistency"
	KindMissingField     = "missing_field"
	KindLinkCapture      = "link_capture"
	KindCaptureDegraded  = "capture_degraded"
	KindProcessingError  = "processing_error"
)
