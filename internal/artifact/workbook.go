// Package artifact assembles the batch output: the multi-sheet audit workbook
// and the JSON payload mirroring the same entities. Sheet columns and row
// order are fixed so identical inputs produce identical artifacts.
package artifact

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/entity"
)

var sheetColumns = map[string][]string{
	constants.SheetDocumentMetadata: {
		"file", "path", "pages", "creator", "producer", "creation_date", "is_encrypted", "parse_timestamp",
	},
	constants.SheetPages: {
		"file", "page", "width", "height", "rotation", "text_chars", "word_count",
		"line_count", "table_count", "image_count", "link_count", "used_ocr",
	},
	constants.SheetTextLines: {
		"file", "page", "line_index", "x0", "top", "x1", "bottom", "text",
	},
	constants.SheetTextWords: {
		"file", "page", "word_index", "x0", "top", "x1", "bottom", "text", "source",
	},
	constants.SheetTextChars: {
		"file", "page", "char_index", "x0", "top", "x1", "bottom", "text", "fontname", "size", "source",
	},
	constants.SheetTablesRaw: {
		"file", "page", "table_index", "row_index", "col_index", "cell_text",
	},
	constants.SheetLineItems: {
		"file", "item_index", "service_name", "sku", "units_qty", "term_start", "term_end",
		"list_unit_price_raw", "discount_pct_raw", "net_unit_price_raw", "net_total_raw",
		"description_continuation", "list_unit_price_value", "discount_pct_value",
		"net_unit_price_value", "net_total_value", "currency", "quote_section_index",
	},
	constants.SheetLinks: {
		"file", "page", "link_index", "uri", "rect_x0", "rect_y0", "rect_x1", "rect_y1",
	},
	constants.SheetImages: {
		"file", "page", "image_index", "x0", "top", "x1", "bottom", "width", "height", "bits", "colorspace",
	},
	constants.SheetBusinessSummary: {
		"file", "quote_number", "expiration_date", "subscription_period", "payment_method",
		"total_raw", "total_value", "currency", "overall_total_raw", "overall_total_value",
		"payment_year_1_raw", "payment_year_2_raw", "payment_year_3_raw",
		"regional_director", "regional_director_email", "payment_terms",
		"line_items_total_value", "expiration_date_iso", "error",
	},
	constants.SheetValidationReport: {
		"file", "rule_id", "severity", "status", "observed_value", "expected_value", "details",
	},
}

// Workbook renders the audit workbook for a batch. Documents blocked by
// strict mode contribute only their metadata, summary error and findings.
func Workbook(results []entity.DocumentResult, includeCharLayer bool, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := excelize.NewFile()
	defer f.Close()

	sheets := constants.AuditSheets(includeCharLayer)
	for _, sheet := range sheets {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		headers := sheetColumns[sheet]
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheets[0]); err == nil {
		f.SetActiveSheet(idx)
	}

	rowCursor := map[string]int{}
	write := func(sheet string, values []any) {
		row := rowCursor[sheet]
		if row == 0 {
			row = 2
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		rowCursor[sheet] = row + 1
	}

	rows := 0
	for i := range results {
		r := &results[i]
		write(constants.SheetDocumentMetadata, metadataRow(r))
		if r.Summary != nil {
			write(constants.SheetBusinessSummary, summaryRow(r))
		}
		for _, finding := range r.Findings {
			write(constants.SheetValidationReport, findingRow(finding))
		}
		if r.Document == nil || r.Blocked() {
			continue
		}

		doc := r.Document
		for pi := range doc.Pages {
			page := &doc.Pages[pi]
			write(constants.SheetPages, pageRow(doc.FileName, page))
			for _, line := range page.Lines {
				write(constants.SheetTextLines, []any{
					doc.FileName, page.Number, line.Index, line.X0, line.Top, line.X1, line.Bottom, line.Text,
				})
			}
			for _, word := range page.Words {
				write(constants.SheetTextWords, []any{
					doc.FileName, page.Number, word.Index, word.X0, word.Top, word.X1, word.Bottom, word.Text, word.Source,
				})
			}
			if includeCharLayer {
				for _, ch := range page.Chars {
					write(constants.SheetTextChars, []any{
						doc.FileName, page.Number, ch.Index, ch.X0, ch.Top, ch.X1, ch.Bottom,
						ch.Text, ch.FontName, ch.Size, ch.Source,
					})
				}
			}
			for _, cell := range page.Tables {
				write(constants.SheetTablesRaw, []any{
					doc.FileName, page.Number, cell.TableIndex, cell.RowIndex, cell.ColIndex, cell.Text,
				})
			}
			for _, link := range page.Links {
				write(constants.SheetLinks, []any{
					doc.FileName, page.Number, link.Index, link.URI, link.RectX0, link.RectY0, link.RectX1, link.RectY1,
				})
			}
			for _, img := range page.Images {
				write(constants.SheetImages, []any{
					doc.FileName, page.Number, img.Index, img.X0, img.Top, img.X1, img.Bottom,
					img.Width, img.Height, img.Bits, img.Colorspace,
				})
			}
		}
		for _, item := range r.Items {
			write(constants.SheetLineItems, itemRow(doc.FileName, item))
			rows++
		}
	}

	_ = f.SetColWidth(constants.SheetDocumentMetadata, "A", "B", 36)
	_ = f.SetColWidth(constants.SheetLineItems, "B", "C", 28)
	_ = f.SetColWidth(constants.SheetBusinessSummary, "A", "A", 28)
	_ = f.SetColWidth(constants.SheetValidationReport, "G", "G", 56)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("artifact.workbook.ok", "documents", len(results), "item_rows", rows)
	return buf.Bytes(), nil
}

func metadataRow(r *entity.DocumentResult) []any {
	if r.Document == nil {
		return []any{r.FileName, r.Path, nil, nil, nil, nil, nil, nil}
	}
	m := r.Document.Metadata
	return []any{
		r.FileName, r.Path, r.Document.PageCount, m.Creator, m.Producer,
		m.CreationDate, m.Encrypted, m.ParsedAt,
	}
}

func pageRow(file string, page *entity.Page) []any {
	return []any{
		file, page.Number, page.Width, page.Height, page.Rotation, page.TextDensity,
		len(page.Words), len(page.Lines), len(page.Tables), len(page.Images), len(page.Links),
		page.UsedOCR,
	}
}

func itemRow(file string, item entity.LineItem) []any {
	return []any{
		file, item.Index, item.ServiceName, item.SKU, item.UnitsQty, item.TermStart, item.TermEnd,
		item.ListUnitPriceRaw, item.DiscountPctRaw, item.NetUnitPriceRaw, item.NetTotalRaw,
		item.DescriptionContinuation, opt(item.ListUnitPrice), opt(item.DiscountPct),
		opt(item.NetUnitPrice), opt(item.NetTotal), item.Currency, item.SectionIndex,
	}
}

func summaryRow(r *entity.DocumentResult) []any {
	s := r.Summary
	return []any{
		s.File, s.QuoteNumber, s.ExpirationDate, s.Field("subscription_period"), s.Field("payment_method"),
		s.TotalRaw, opt(s.TotalValue), s.Currency, s.OverallTotalRaw, opt(s.OverallTotalValue),
		s.Field("payment_year_1_raw"), s.Field("payment_year_2_raw"), s.Field("payment_year_3_raw"),
		s.Field("regional_director"), s.Field("regional_director_email"), s.Field("payment_terms"),
		opt(s.LineItemsTotal), s.ExpirationDateISO, s.Error,
	}
}

func findingRow(f entity.ValidationFinding) []any {
	return []any{
		f.File, f.Kind, string(f.Severity), string(f.Status), f.Observed, f.Expected, f.Message,
	}
}

func opt(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
