package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotestack/quote-extractor/internal/entity"
	"github.com/quotestack/quote-extractor/internal/normalize"
	"github.com/quotestack/quote-extractor/internal/tables"
)

// Summary extracts the document-level business fields from the full text and
// the interpreted tables. Field patterns follow first-match-wins order unless
// the rule opts into last-match-wins, which fields near the document end
// (grand totals) need when a quote repeats per-section totals.
func (p *Parser) Summary(doc *entity.Document, items []entity.LineItem) *entity.BusinessSummary {
	fullText := doc.FullText()
	summary := &entity.BusinessSummary{
		File:   doc.FileName,
		Fields: map[string]entity.SummaryField{},
	}

	for name, rule := range p.cfg.FieldPatterns {
		raw, ok := matchField(fullText, rule.Compiled(), rule.LastMatchWins)
		if !ok {
			continue
		}
		field := entity.SummaryField{
			Name:   name,
			Raw:    raw,
			Source: p.lineRef(doc, raw, rule.LastMatchWins),
		}
		// Only amount-bearing fields get a parsed numeric value.
		if strings.HasSuffix(name, "_raw") {
			if v, err := normalize.ParseCurrencyAmount(raw); err == nil {
				field.Value = entity.Float(v)
			}
		}
		summary.Fields[name] = field
	}

	p.applyDirectorFields(doc, summary)

	summary.QuoteNumber = summary.Field("quote_number")
	summary.ExpirationDate = summary.Field("expiration_date")
	if iso, err := normalize.ParseDate(summary.ExpirationDate, p.cfg.Normalization.DateInputLayouts); err == nil {
		summary.ExpirationDateISO = iso
	}

	summary.TotalRaw = summary.Field("total_raw")
	summary.OverallTotalRaw = summary.Field("overall_total_raw")
	if v, err := normalize.ParseCurrencyAmount(summary.TotalRaw); err == nil {
		summary.TotalValue = entity.Float(v)
	}
	if v, err := normalize.ParseCurrencyAmount(summary.OverallTotalRaw); err == nil {
		summary.OverallTotalValue = entity.Float(v)
	}
	summary.Currency = normalize.ParseCurrencyCode(
		firstNonEmpty(summary.TotalRaw, summary.OverallTotalRaw),
		p.cfg.Normalization.CurrencyDefault,
	)
	summary.LineItemsTotal = LineItemsTotal(items)

	p.logger.Debug("parse.summary.done",
		"file", doc.FileName, "fields", len(summary.Fields), "currency", summary.Currency)
	return summary
}

// LineItemsTotal sums the parsed net totals. Decimal arithmetic keeps the
// reconciliation comparison free of float drift. Nil when there are no items.
func LineItemsTotal(items []entity.LineItem) *float64 {
	if len(items) == 0 {
		return nil
	}
	sum := decimal.Zero
	for i := range items {
		if items[i].NetTotal != nil {
			sum = sum.Add(decimal.NewFromFloat(*items[i].NetTotal))
		}
	}
	v, _ := sum.Float64()
	return entity.Float(v)
}

func matchField(text string, patterns []*regexp.Regexp, lastWins bool) (string, bool) {
	for _, re := range patterns {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		match := matches[0]
		if lastWins {
			match = matches[len(matches)-1]
		}
		if len(match) > 1 {
			return strings.TrimSpace(match[1]), true
		}
		return strings.TrimSpace(match[0]), true
	}
	return "", false
}

// lineRef locates the text line carrying an extracted value so the summary
// field stays traceable. Last-match-wins fields are searched from the end.
func (p *Parser) lineRef(doc *entity.Document, raw string, fromEnd bool) entity.Provenance {
	ref := entity.Provenance{File: doc.FileName}
	if raw == "" {
		return ref
	}
	if fromEnd {
		for pi := len(doc.Pages) - 1; pi >= 0; pi-- {
			page := &doc.Pages[pi]
			for li := len(page.Lines) - 1; li >= 0; li-- {
				if strings.Contains(page.Lines[li].Text, raw) {
					ref.Page = page.Number
					ref.LineIndex = page.Lines[li].Index
					return ref
				}
			}
		}
		return ref
	}
	for pi := range doc.Pages {
		page := &doc.Pages[pi]
		for li := range page.Lines {
			if strings.Contains(page.Lines[li].Text, raw) {
				ref.Page = page.Number
				ref.LineIndex = page.Lines[li].Index
				return ref
			}
		}
	}
	return ref
}

// applyDirectorFields reads the contact block that quote footers render as a
// two-row table: a label row naming the regional director and payment terms,
// then a value row with name, email and terms cells.
func (p *Parser) applyDirectorFields(doc *entity.Document, summary *entity.BusinessSummary) {
	for pi := range doc.Pages {
		page := &doc.Pages[pi]
		for _, grid := range tables.Grids(page.Tables) {
			rows := tables.Interpret(grid)
			for ri, row := range rows {
				text := strings.ToLower(row.Joined())
				if !strings.Contains(text, "regional director") || !strings.Contains(text, "payment terms") {
					continue
				}
				if ri+1 >= len(rows) {
					continue
				}
				next := rows[ri+1]
				if len(next.Cells) < 4 {
					continue
				}
				src := entity.Provenance{
					File:       doc.FileName,
					Page:       page.Number,
					TableIndex: grid.TableIndex,
					RowIndex:   next.RowIndexes[0],
				}
				setField(summary, "regional_director", normalize.CleanCell(next.Cells[0]), src)
				setField(summary, "regional_director_email", normalize.CleanCell(next.Cells[1]), src)
				setField(summary, "payment_terms", normalize.CleanCell(next.Cells[3]), src)
				return
			}
		}
	}
}

func setField(summary *entity.BusinessSummary, name, raw string, src entity.Provenance) {
	if raw == "" {
		return
	}
	summary.Fields[name] = entity.SummaryField{Name: name, Raw: raw, Source: src}
}
