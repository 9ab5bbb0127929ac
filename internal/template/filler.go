// Package template maps parsed line items into a pre-existing spreadsheet
// template. Only the mapped fillable columns are touched; every other cell,
// style and formula of the template is preserved. The caller supplies the
// financial parameters: a currency conversion rate and a margin percentage
// applied to each purchase price.
package template

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/quotestack/quote-extractor/internal/common"
	"github.com/quotestack/quote-extractor/internal/entity"
	"github.com/quotestack/quote-extractor/internal/normalize"
)

const (
	DefaultSheet = "QuoteExportResults"
	// headerScanLimit bounds the auto-detection scan.
	headerScanLimit = 50
)

// Defined names the template may provide for live pricing formulas. When both
// are present, Salesprice cells are written as formulas referencing them so
// the workbook recomputes when the inputs change.
const (
	definedNameEuroRate = "EuroRate"
	definedNameMargin   = "MarginPercent"
)

var targetHeaders = []string{
	"Date",
	"Expires",
	"ExpectedClose",
	"Item",
	"Quantity",
	"Salesprice",
	"Salesdiscount",
	"Purchaseprice",
	"PurchaseDiscount",
	"ContractStart",
	"ContractEnd",
	"Serial#Supported",
	"Rebate",
	"Opportunity",
	"Memo (Line)",
	"Quote ID (Line)",
}

var headerNumberFormats = map[string]string{
	"Quantity":         "0",
	"Salesprice":       "0.00",
	"Salesdiscount":    "0.00%",
	"Purchaseprice":    "0.00",
	"PurchaseDiscount": "0.00%",
}

var headerAliases = map[string][]string{
	"Date":             {"date"},
	"Expires":          {"expires"},
	"ExpectedClose":    {"expectedclose"},
	"Item":             {"item"},
	"Quantity":         {"quantity", "qty"},
	"Salesprice":       {"salesprice", "sales_price", "sales price"},
	"Salesdiscount":    {"salesdiscount", "sales_discount", "sales discount"},
	"Purchaseprice":    {"purchaseprice", "purchase_price", "purchase price"},
	"PurchaseDiscount": {"purchasediscount", "purchase_discount", "purchase discount"},
	"ContractStart":    {"contractstart", "contract_start", "contract start"},
	"ContractEnd":      {"contractend", "contract_end", "contract end"},
	"Serial#Supported": {"serialsupported", "serial", "serialnumbersupported"},
	"Rebate":           {"rebate"},
	"Opportunity":      {"opportunity"},
	"Memo (Line)":      {"memoline", "memo"},
	"Quote ID (Line)":  {"quoteidline", "quoteid", "quote id"},
}

var (
	headerCleaner   = regexp.MustCompile(`[^a-z0-9]+`)
	creationDateRe  = regexp.MustCompile(`D:(\d{4})(\d{2})(\d{2})`)
	quantityPattern = regexp.MustCompile(`[-+]?[0-9][0-9,]*(?:\.[0-9]+)?`)
)

// DocumentInput is one processed document's contribution to the template.
type DocumentInput struct {
	Metadata entity.Metadata
	Summary  *entity.BusinessSummary
	Items    []entity.LineItem
}

// Options steers a single fill run.
type Options struct {
	TemplatePath string
	OutputPath   string
	SheetName    string
	// HeaderRow overrides auto-detection when > 0.
	HeaderRow int
	// DataStartRow overrides the default of HeaderRow+1 when > 0.
	DataStartRow  int
	EuroRate      float64
	MarginPercent *float64
}

// Result reports what the fill wrote, mirrored into the JSON artifact.
type Result struct {
	TemplatePath  string  `json:"template_path"`
	OutputPath    string  `json:"template_output_path"`
	SheetName     string  `json:"sheet_name"`
	RowsWritten   int     `json:"rows_written"`
	Capacity      int     `json:"capacity"`
	EuroRate      float64 `json:"euro_rate"`
	MarginPercent float64 `json:"margin_percent"`
	HeaderRow     int     `json:"header_row"`
	DataStartRow  int     `json:"data_start_row"`
	LiveFormulas  bool    `json:"live_formulas"`
}

// Filler fills one template workbook per run.
type Filler struct {
	logger *slog.Logger
}

func NewFiller(logger *slog.Logger) *Filler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filler{logger: logger}
}

// Fill opens the template, locates the header and data region, and writes one
// row per billable line item. EuroRate must be strictly positive and
// MarginPercent must be set; both are caller inputs with no defaults.
func (fl *Filler) Fill(docs []DocumentInput, opts Options) (*Result, error) {
	if opts.EuroRate <= 0 {
		return nil, common.TemplateErrorf("euro_rate must be greater than 0, got %v", opts.EuroRate)
	}
	if opts.MarginPercent == nil {
		return nil, common.TemplateError("margin_percent must be provided", nil)
	}
	sheet := opts.SheetName
	if sheet == "" {
		sheet = DefaultSheet
	}

	f, err := excelize.OpenFile(opts.TemplatePath)
	if err != nil {
		return nil, common.TemplateError(fmt.Sprintf("open template %s", opts.TemplatePath), err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, common.TemplateErrorf("template sheet not found: %s", sheet)
	}

	sheetRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, common.TemplateError("read template rows", err)
	}
	headerRow, columns, err := resolveHeaderRow(sheetRows, opts.HeaderRow)
	if err != nil {
		return nil, err
	}
	dataStart := opts.DataStartRow
	if dataStart <= 0 {
		dataStart = headerRow + 1
	}
	if dataStart <= headerRow {
		return nil, common.TemplateErrorf("data_start_row (%d) must be greater than header_row (%d)", dataStart, headerRow)
	}

	margin := *opts.MarginPercent
	rows := buildRows(docs, opts.EuroRate, margin)
	capacity := len(sheetRows) - dataStart + 1
	if capacity < 0 {
		capacity = 0
	}
	if len(rows) > capacity {
		return nil, common.TemplateErrorf("template row capacity exceeded: %d rows required, capacity is %d", len(rows), capacity)
	}

	liveFormulas := hasDefinedNames(f)

	// Clear old data in the mapped columns only, leaving the rest of the
	// template untouched.
	for rowIdx := dataStart; rowIdx <= len(sheetRows); rowIdx++ {
		for _, colIdx := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx, rowIdx)
			if err := f.SetCellValue(sheet, cell, nil); err != nil {
				return nil, common.TemplateError("clear template cell", err)
			}
		}
	}

	styles := map[string]int{}
	for offset, row := range rows {
		rowIdx := dataStart + offset
		for header, colIdx := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx, rowIdx)
			value := row.values[header]

			if header == "Salesprice" && liveFormulas && row.purchasePrice != nil {
				purchaseCell, _ := excelize.CoordinatesToCellName(columns["Purchaseprice"], rowIdx)
				formula := fmt.Sprintf("%s*%s*(1+%s/100)", purchaseCell, definedNameEuroRate, definedNameMargin)
				if err := f.SetCellFormula(sheet, cell, formula); err != nil {
					return nil, common.TemplateError("write price formula", err)
				}
			} else if value != nil {
				if err := f.SetCellValue(sheet, cell, value); err != nil {
					return nil, common.TemplateError("write template cell", err)
				}
			}

			if format, ok := headerNumberFormats[header]; ok && (value != nil || header == "Salesprice") {
				styleID, err := numberStyle(f, styles, format)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
					return nil, common.TemplateError("style template cell", err)
				}
			}
		}
	}

	if err := f.SaveAs(opts.OutputPath); err != nil {
		return nil, common.TemplateError(fmt.Sprintf("save template output %s", opts.OutputPath), err)
	}

	result := &Result{
		TemplatePath:  opts.TemplatePath,
		OutputPath:    opts.OutputPath,
		SheetName:     sheet,
		RowsWritten:   len(rows),
		Capacity:      capacity,
		EuroRate:      opts.EuroRate,
		MarginPercent: margin,
		HeaderRow:     headerRow,
		DataStartRow:  dataStart,
		LiveFormulas:  liveFormulas,
	}
	fl.logger.Info("template.fill.done",
		"sheet", sheet, "rows", result.RowsWritten, "capacity", capacity, "live_formulas", liveFormulas)
	return result, nil
}

type templateRow struct {
	values        map[string]any
	purchasePrice *float64
}

// buildRows flattens every document's billable items into template rows.
// "Included" lines and zero-amount rows are dropped.
func buildRows(docs []DocumentInput, euroRate, marginPercent float64) []templateRow {
	var rows []templateRow
	for _, doc := range docs {
		var quoteID, expiration, creation string
		if doc.Summary != nil {
			quoteID = doc.Summary.QuoteNumber
			expiration = doc.Summary.ExpirationDate
		}
		creation = parseCreationDate(doc.Metadata.CreationDate)

		for i := range doc.Items {
			item := &doc.Items[i]
			purchase := priceOf(item.NetUnitPrice, item.NetUnitPriceRaw)
			list := priceOf(item.ListUnitPrice, item.ListUnitPriceRaw)
			netTotal := priceOf(item.NetTotal, item.NetTotalRaw)
			if shouldSkip(item, list, netTotal) {
				continue
			}

			sales := AdjustedPrice(purchase, euroRate, marginPercent)
			row := templateRow{
				purchasePrice: purchase,
				values: map[string]any{
					"Date":             nilIfEmpty(creation),
					"Expires":          nilIfEmpty(expiration),
					"ExpectedClose":    nilIfEmpty(expiration),
					"Item":             nilIfEmpty(normalize.CleanSingleLine(item.SKU)),
					"Quantity":         parseQuantity(item.UnitsQty),
					"Salesprice":       floatValue(sales),
					"Salesdiscount":    floatValue(salesDiscount(list, purchase, euroRate, marginPercent)),
					"Purchaseprice":    floatValue(purchase),
					"PurchaseDiscount": floatValue(discountFraction(item.DiscountPct, item.DiscountPctRaw)),
					"ContractStart":    nilIfEmpty(item.TermStart),
					"ContractEnd":      nilIfEmpty(item.TermEnd),
					"Serial#Supported": nil,
					"Rebate":           nil,
					"Opportunity":      nilIfEmpty(quoteID),
					"Memo (Line)":      nil,
					"Quote ID (Line)":  nilIfEmpty(quoteID),
				},
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// AdjustedPrice converts a purchase unit price into the selling price:
// purchase * euro_rate * (1 + margin/100). A negative margin is a discount.
func AdjustedPrice(purchase *float64, euroRate, marginPercent float64) *float64 {
	if purchase == nil {
		return nil
	}
	value := decimal.NewFromFloat(*purchase).
		Mul(decimal.NewFromFloat(euroRate)).
		Mul(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(marginPercent).Div(decimal.NewFromInt(100))))
	v, _ := value.Round(6).Float64()
	return entity.Float(v)
}

// salesDiscount derives the discount fraction between the vendor list price
// and our converted cost: 1 - ((purchase/rate)*(1+margin/100))/list.
func salesDiscount(list, purchase *float64, euroRate, marginPercent float64) *float64 {
	if list == nil || purchase == nil || *list == 0 || euroRate <= 0 {
		return nil
	}
	cost := decimal.NewFromFloat(*purchase).
		Div(decimal.NewFromFloat(euroRate)).
		Mul(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(marginPercent).Div(decimal.NewFromInt(100))))
	value := decimal.NewFromFloat(1).Sub(cost.Div(decimal.NewFromFloat(*list)))
	v, _ := value.Round(6).Float64()
	return entity.Float(v)
}

func discountFraction(pct *float64, raw string) *float64 {
	if pct != nil {
		v, _ := decimal.NewFromFloat(*pct).Div(decimal.NewFromInt(100)).Round(6).Float64()
		return entity.Float(v)
	}
	if raw == "" {
		return nil
	}
	parsed, err := normalize.ParsePercent(raw)
	if err != nil {
		return nil
	}
	v, _ := decimal.NewFromFloat(parsed).Div(decimal.NewFromInt(100)).Round(6).Float64()
	return entity.Float(v)
}

// shouldSkip drops non-billable lines: "Included" items and zero-amount rows
// with no usable price.
func shouldSkip(item *entity.LineItem, list, netTotal *float64) bool {
	if strings.EqualFold(strings.TrimSpace(item.NetUnitPriceRaw), "included") {
		return true
	}
	if netTotal != nil && abs(*netTotal) <= 1e-9 {
		if list == nil || abs(*list) <= 1e-9 {
			return true
		}
	}
	return false
}

func resolveHeaderRow(sheetRows [][]string, override int) (int, map[string]int, error) {
	if override > 0 && override <= len(sheetRows) {
		columns := matchHeaders(sheetRows[override-1])
		if len(columns) == len(targetHeaders) {
			return override, columns, nil
		}
	}

	limit := len(sheetRows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	bestRow := 0
	var best map[string]int
	for rowIdx := 1; rowIdx <= limit; rowIdx++ {
		columns := matchHeaders(sheetRows[rowIdx-1])
		if len(columns) > len(best) {
			best = columns
			bestRow = rowIdx
		}
		if len(columns) == len(targetHeaders) {
			return rowIdx, columns, nil
		}
	}

	var missing []string
	for _, name := range targetHeaders {
		if _, ok := best[name]; !ok {
			missing = append(missing, name)
		}
	}
	if bestRow > 0 {
		return 0, nil, common.TemplateErrorf(
			"template headers not fully found, best match row=%d, missing: %s", bestRow, strings.Join(missing, ", "))
	}
	return 0, nil, common.TemplateErrorf("template headers not found, missing: %s", strings.Join(missing, ", "))
}

// matchHeaders maps target header names to 1-based column indexes by
// normalized alias comparison.
func matchHeaders(row []string) map[string]int {
	columns := map[string]int{}
	for colIdx, value := range row {
		normalized := normalizeHeader(value)
		if normalized == "" {
			continue
		}
		for _, target := range targetHeaders {
			if _, taken := columns[target]; taken {
				continue
			}
			for _, alias := range headerAliases[target] {
				if normalized == normalizeHeader(alias) {
					columns[target] = colIdx + 1
					break
				}
			}
		}
	}
	return columns
}

func normalizeHeader(s string) string {
	return headerCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

func hasDefinedNames(f *excelize.File) bool {
	foundRate, foundMargin := false, false
	for _, name := range f.GetDefinedName() {
		switch name.Name {
		case definedNameEuroRate:
			foundRate = true
		case definedNameMargin:
			foundMargin = true
		}
	}
	return foundRate && foundMargin
}

func numberStyle(f *excelize.File, cache map[string]int, format string) (int, error) {
	if id, ok := cache[format]; ok {
		return id, nil
	}
	id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return 0, common.TemplateError("create number style", err)
	}
	cache[format] = id
	return id, nil
}

// parseCreationDate reads a PDF "D:YYYYMMDD..." timestamp into m/d/Y form.
func parseCreationDate(raw string) string {
	m := creationDateRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	t, err := time.Parse("20060102", m[1]+m[2]+m[3])
	if err != nil {
		return ""
	}
	return t.Format("01/02/2006")
}

// parseQuantity yields an int when the value is integral, matching how the
// template's Quantity column is formatted.
func parseQuantity(raw string) any {
	m := quantityPattern.FindString(strings.ReplaceAll(raw, "\n", " "))
	if m == "" {
		return nil
	}
	v, err := normalize.ParseNumber(m)
	if err != nil {
		return nil
	}
	if v == float64(int64(v)) {
		return int64(v)
	}
	return v
}

func priceOf(value *float64, raw string) *float64 {
	if value != nil {
		return value
	}
	if raw == "" {
		return nil
	}
	v, err := normalize.ParseCurrencyAmount(raw)
	if err != nil {
		return nil
	}
	return entity.Float(v)
}

func floatValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
