// Package validate cross-checks parsed results against independently computed
// sums and the configured invariants, producing a deterministic report of
// findings. A failed error-severity finding blocks output generation for the
// document when strict mode is on; the report itself is always produced.
package validate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/entity"
	"github.com/quotestack/quote-extractor/internal/normalize"
)

// Validator runs the reconciliation rules for one document.
type Validator struct {
	cfg    *config.ExtractionConfig
	logger *slog.Logger
}

func New(cfg *config.ExtractionConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{cfg: cfg, logger: logger}
}

// Validate runs every configured rule and returns the findings ordered by
// (severity, discovery order).
func (v *Validator) Validate(doc *entity.Document, items []entity.LineItem, summary *entity.BusinessSummary) []entity.ValidationFinding {
	r := &report{file: doc.FileName}

	r.add(constants.KindPagePresence, constants.SeverityError, len(doc.Pages) > 0,
		fmt.Sprintf("%d", len(doc.Pages)), ">0", "At least one page must be captured.", nil)

	wordCount := 0
	var zeroWordPages []string
	for i := range doc.Pages {
		wordCount += len(doc.Pages[i].Words)
		if len(doc.Pages[i].Words) == 0 {
			zeroWordPages = append(zeroWordPages, fmt.Sprintf("%d", doc.Pages[i].Number))
		}
	}
	r.add(constants.KindWordPresence, constants.SeverityWarning, wordCount > 0,
		fmt.Sprintf("%d", wordCount), ">0", "Word layer should not be empty.", nil)
	r.add(constants.KindWordCoverage, constants.SeverityWarning, len(zeroWordPages) == 0,
		strings.Join(zeroWordPages, ","), "none", "Each page should have at least one extracted word.", nil)

	cellCount := 0
	for i := range doc.Pages {
		cellCount += len(doc.Pages[i].Tables)
	}
	r.add(constants.KindTablePresence, constants.SeverityError, cellCount > 0,
		fmt.Sprintf("%d", cellCount), ">0", "At least one table cell expected for quote-style documents.", nil)

	r.add(constants.KindLineItemPresence, constants.SeverityError, len(items) > 0,
		fmt.Sprintf("%d", len(items)), ">0", "At least one parsed line item expected.", nil)

	v.checkTotals(r, summary)
	if v.cfg.Validation.CheckRowMath {
		v.checkRowArithmetic(r, items)
	}
	if v.cfg.Validation.CheckCurrencyMix {
		v.checkCurrencyMix(r, items)
	}
	v.checkRequiredFields(r, summary)

	for i := range doc.Pages {
		page := &doc.Pages[i]
		if page.Degraded {
			r.add(constants.KindCaptureDegraded, constants.SeverityWarning, false,
				page.DegradedCause, "",
				fmt.Sprintf("Page %d capture degraded; available text was kept.", page.Number),
				[]entity.Provenance{{File: doc.FileName, Page: page.Number}})
		}
	}

	linkCount := 0
	for i := range doc.Pages {
		linkCount += len(doc.Pages[i].Links)
	}
	r.add(constants.KindLinkCapture, constants.SeverityInfo, true,
		fmt.Sprintf("%d", linkCount), "n/a", "Link extraction is informational and non-blocking.", nil)

	entity.SortFindings(r.findings)
	v.logger.Debug("validate.done",
		"file", doc.FileName, "findings", len(r.findings), "blocking", entity.HasBlockingError(r.findings))
	return r.findings
}

type report struct {
	file     string
	findings []entity.ValidationFinding
}

func (r *report) add(kind string, severity constants.Severity, ok bool, observed, expected, message string, refs []entity.Provenance) {
	r.findings = append(r.findings, entity.ValidationFinding{
		File:     r.file,
		Kind:     kind,
		Severity: severity,
		Status:   constants.StatusOf(ok),
		Observed: observed,
		Expected: expected,
		Message:  message,
		Refs:     refs,
	})
}

// checkTotals compares the parsed grand total against the recomputed line
// item sum and against the overall total, classifying each difference into
// the configured tolerance bands.
func (v *Validator) checkTotals(r *report, summary *entity.BusinessSummary) {
	v.compareAmounts(r, constants.KindTotalVsLineItems,
		summary.TotalValue, summary.LineItemsTotal,
		"TOTAL should reconcile with the sum of parsed line item net totals.")
	v.compareAmounts(r, constants.KindTotalVsOverall,
		summary.TotalValue, summary.OverallTotalValue,
		"TOTAL and Overall Total should match.")
}

func (v *Validator) compareAmounts(r *report, kind string, parsed, computed *float64, message string) {
	if parsed == nil || computed == nil {
		r.add(kind, constants.SeverityError, false,
			fmt.Sprintf("parsed=%s, computed=%s", floatOrNone(parsed), floatOrNone(computed)),
			"both numeric",
			"Unable to reconcile because at least one value is missing.", nil)
		return
	}
	diff := decimal.NewFromFloat(*parsed).Sub(decimal.NewFromFloat(*computed)).Abs()
	severity, ok := v.classify(diff, *parsed)
	r.add(kind, severity, ok, diff.String(), v.bandLabel(*parsed), message, nil)
}

// classify places an absolute difference into the configured bands: within
// the base tolerance the check passes; within the error tolerance it fails as
// a warning; beyond it fails as an error. RelativeTolerance widens both bands
// proportionally to the parsed value.
func (v *Validator) classify(diff decimal.Decimal, parsed float64) (constants.Severity, bool) {
	warnBand, errBand := v.bands(parsed)
	if diff.LessThanOrEqual(warnBand) {
		return constants.SeverityError, true
	}
	if diff.LessThanOrEqual(errBand) {
		return constants.SeverityWarning, false
	}
	return constants.SeverityError, false
}

func (v *Validator) bands(parsed float64) (warn, err decimal.Decimal) {
	widen := decimal.Zero
	if v.cfg.Validation.RelativeTolerance > 0 {
		widen = decimal.NewFromFloat(parsed).Abs().
			Mul(decimal.NewFromFloat(v.cfg.Validation.RelativeTolerance))
	}
	warn = decimal.NewFromFloat(v.cfg.Validation.Tolerance).Add(widen)
	err = decimal.NewFromFloat(v.cfg.Validation.ErrorTolerance).Add(widen)
	return warn, err
}

func (v *Validator) bandLabel(parsed float64) string {
	warn, _ := v.bands(parsed)
	return "<= " + warn.String()
}

// checkRowArithmetic verifies quantity x net unit price against the row's net
// total for every item carrying all three values.
func (v *Validator) checkRowArithmetic(r *report, items []entity.LineItem) {
	for i := range items {
		item := &items[i]
		if item.NetUnitPrice == nil || item.NetTotal == nil {
			continue
		}
		qty, err := normalize.ParseNumber(item.UnitsQty)
		if err != nil {
			continue
		}
		expected := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(*item.NetUnitPrice))
		diff := expected.Sub(decimal.NewFromFloat(*item.NetTotal)).Abs()
		severity, ok := v.classify(diff, *item.NetTotal)
		if ok {
			continue
		}
		r.add(constants.KindRowArithmetic, severity, false,
			fmt.Sprintf("item %d: qty*unit=%s, net_total=%s", item.Index, expected.String(), floatOrNone(item.NetTotal)),
			v.bandLabel(*item.NetTotal),
			"Quantity times net unit price should match the row's net total.",
			[]entity.Provenance{item.Source})
	}
}

func (v *Validator) checkCurrencyMix(r *report, items []entity.LineItem) {
	seen := map[string]bool{}
	var currencies []string
	for i := range items {
		cur := items[i].Currency
		if cur == "" || seen[cur] {
			continue
		}
		seen[cur] = true
		currencies = append(currencies, cur)
	}
	if len(currencies) <= 1 {
		return
	}
	r.add(constants.KindCurrencyMix, constants.SeverityWarning, false,
		strings.Join(currencies, ","), "single currency",
		"Line items mix currencies.", nil)
}

// checkRequiredFields reports every configured required field that matched
// zero times. A missing optional field is not a finding.
func (v *Validator) checkRequiredFields(r *report, summary *entity.BusinessSummary) {
	required := map[string]bool{}
	for _, name := range v.cfg.Validation.RequiredFields {
		required[name] = true
	}
	for name, rule := range v.cfg.FieldPatterns {
		if rule.Required {
			required[name] = true
		}
	}
	var missing []string
	for name := range required {
		if summary.Field(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}
	// Deterministic order regardless of map iteration.
	sort.Strings(missing)
	for _, name := range missing {
		r.add(constants.KindMissingField, constants.SeverityError, false,
			"", name, fmt.Sprintf("Required field %q matched zero times.", name), nil)
	}
}

func floatOrNone(v *float64) string {
	if v == nil {
		return "none"
	}
	return decimal.NewFromFloat(*v).String()
}
