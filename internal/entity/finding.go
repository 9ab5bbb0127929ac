package entity

import (
	"sort"

	"github.com/quotestack/quote-extractor/constants"
)

// ValidationFinding is one reconciliation or consistency result. Findings are
// append-only for a document and reference entities without mutating them.
type ValidationFinding struct {
	File     string                  `json:"file"`
	Kind     string                  `json:"rule_id"`
	Severity constants.Severity      `json:"severity"`
	Status   constants.FindingStatus `json:"status"`
	Observed string                  `json:"observed_value,omitempty"`
	Expected string                  `json:"expected_value,omitempty"`
	Message  string                  `json:"details"`
	Refs     []Provenance            `json:"refs,omitempty"`
}

// Failed reports whether the finding is a failed check.
func (f ValidationFinding) Failed() bool {
	return f.Status == constants.StatusFail
}

// SortFindings orders findings by (severity, discovery order) so reports are
// deterministic for identical inputs.
func SortFindings(findings []ValidationFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return constants.SeverityRank(findings[i].Severity) < constants.SeverityRank(findings[j].Severity)
	})
}

// HasBlockingError reports whether any error-severity finding failed, which
// in strict mode aborts output generation for the document.
func HasBlockingError(findings []ValidationFinding) bool {
	for _, f := range findings {
		if f.Severity == constants.SeverityError && f.Failed() {
			return true
		}
	}
	return false
}
