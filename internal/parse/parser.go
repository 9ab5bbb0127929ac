// Package parse turns captured document layers into structured line items and
// business summary fields, driven by the extraction configuration. Table rows
// are the primary strategy; pages without a usable table fall back to regex
// rules over their text lines. Every extracted value keeps a provenance
// reference into the raw layers.
package parse

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/entity"
	"github.com/quotestack/quote-extractor/internal/normalize"
	"github.com/quotestack/quote-extractor/internal/tables"
)

var headerNormalizer = regexp.MustCompile(`[^a-z0-9]+`)

// Parser applies the configured field and line item rules to a captured
// document.
type Parser struct {
	cfg    *config.ExtractionConfig
	logger *slog.Logger
}

func NewParser(cfg *config.ExtractionConfig, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{cfg: cfg, logger: logger}
}

// columnMap maps a column role name to a cell index within a logical row.
type columnMap map[string]int

// roleOrder is the positional fallback layout used when no header row was
// detected but a row carries at least MinColumns cells.
var roleOrder = []string{
	"service_name",
	"sku",
	"units_qty",
	"term",
	"list_unit_price",
	"discount_pct",
	"net_unit_price",
	"net_total",
}

// LineItems parses product rows from every table of every page, keeping
// parser state (active column map, open item, section index) across table and
// page boundaries because quotes routinely split one logical table over
// several pages.
func (p *Parser) LineItems(doc *entity.Document) []entity.LineItem {
	st := &itemState{
		file:         doc.FileName,
		sectionIndex: 1,
		defaultCur:   p.cfg.Normalization.CurrencyDefault,
	}

	for i := range doc.Pages {
		page := &doc.Pages[i]
		consumed := false
		for _, grid := range tables.Grids(page.Tables) {
			for _, row := range tables.Interpret(grid) {
				if row.IsEmpty() {
					continue
				}
				if p.consumeRow(st, page.Number, grid.TableIndex, row) {
					consumed = true
				}
			}
		}
		// Pages without tables, and pages whose tables all failed the shape
		// check (contact blocks, decorative grids), go through the text rules.
		if !consumed {
			st.items = append(st.items, p.textFallback(doc.FileName, page)...)
		}
	}

	for i := range st.items {
		st.items[i].Index = i + 1
	}
	p.logger.Debug("parse.line_items.done",
		"file", doc.FileName, "items", len(st.items), "sections", st.sectionIndex)
	return st.items
}

type itemState struct {
	file         string
	items        []entity.LineItem
	current      *entity.LineItem
	sectionIndex int
	sectionItems bool
	columns      columnMap
	defaultCur   string
}

// consumeRow feeds one logical row into the item state machine. It reports
// whether the row was recognized as quote-table content; rows of tables that
// fail the shape check fall through unrecognized so the caller can apply the
// text fallback to the page.
func (p *Parser) consumeRow(st *itemState, pageNumber, tableIndex int, row tables.LogicalRow) bool {
	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = normalize.CleanCell(c)
	}

	if detected := p.detectColumnMap(cells); detected != nil {
		st.columns = detected
		return true
	}
	if p.isHeaderRow(cells) {
		return true
	}

	fields := map[string]string{}
	switch {
	case st.columns != nil:
		for role, idx := range st.columns {
			if idx >= 0 && idx < len(cells) {
				fields[role] = cells[idx]
			}
		}
	case len(cells) >= p.cfg.LineItemRules.MinColumns:
		// Positional mapping needs a row wide enough to carry every role;
		// narrower rows belong to some other table on the page.
		for i, role := range roleOrder {
			if i < len(cells) {
				fields[role] = cells[i]
			}
		}
	}

	netTotalRaw := fields["net_total"]
	serviceName := fields["service_name"]
	sku := fields["sku"]

	// Section total rows carry only the trailing amount. They close the open
	// item and advance the quote section counter.
	if netTotalRaw != "" && allEmpty(fields, "service_name", "sku", "units_qty", "term",
		"list_unit_price", "discount_pct", "net_unit_price") {
		st.current = nil
		if st.sectionItems {
			st.sectionIndex++
			st.sectionItems = false
		}
		return true
	}

	nonEmpty := nonEmptyCells(cells)
	if st.current != nil && len(nonEmpty) == 1 {
		appendContinuation(st.current, nonEmpty[0], row.RowIndexes)
		return true
	}

	nameOnly := serviceName != "" && allEmpty(fields, "sku", "units_qty", "term",
		"list_unit_price", "discount_pct", "net_unit_price", "net_total")
	if nameOnly && st.current != nil {
		appendContinuation(st.current, serviceName, row.RowIndexes)
		return true
	}

	hasPricing := fields["list_unit_price"] != "" || fields["net_unit_price"] != "" || netTotalRaw != ""
	if sku != "" && hasPricing {
		termStart, termEnd := normalize.SplitTermRange(fields["term"])
		item := entity.LineItem{
			Index:            len(st.items) + 1,
			ServiceName:      serviceName,
			SKU:              sku,
			UnitsQty:         fields["units_qty"],
			TermStart:        termStart,
			TermEnd:          termEnd,
			ListUnitPriceRaw: fields["list_unit_price"],
			DiscountPctRaw:   fields["discount_pct"],
			NetUnitPriceRaw:  fields["net_unit_price"],
			NetTotalRaw:      netTotalRaw,
			ListUnitPrice:    money(fields["list_unit_price"]),
			DiscountPct:      percent(fields["discount_pct"]),
			NetUnitPrice:     money(fields["net_unit_price"]),
			NetTotal:         money(netTotalRaw),
			Currency:         normalize.ParseCurrencyCode(firstNonEmpty(netTotalRaw, fields["list_unit_price"]), st.defaultCur),
			SectionIndex:     st.sectionIndex,
			Source: entity.Provenance{
				File:       st.file,
				Page:       pageNumber,
				TableIndex: tableIndex,
				RowIndexes: append([]int(nil), row.RowIndexes...),
			},
		}
		st.items = append(st.items, item)
		st.current = &st.items[len(st.items)-1]
		st.sectionItems = true
		return true
	}

	// Remaining text rows after an open item are wrapped description detail.
	if serviceName != "" && st.current != nil {
		appendContinuation(st.current, serviceName, row.RowIndexes)
		return true
	}
	return false
}

// detectColumnMap recognizes a header row by matching each cell's normalized
// text against the configured column aliases. A usable map needs both
// identity columns (name and sku) and at least one pricing column.
func (p *Parser) detectColumnMap(cells []string) columnMap {
	mapping := columnMap{}
	for idx, cell := range cells {
		normalized := normalizeHeaderText(cell)
		if normalized == "" {
			continue
		}
		for role, aliases := range p.cfg.LineItemRules.ColumnAliases {
			if _, taken := mapping[role]; taken {
				continue
			}
			for _, alias := range aliases {
				if strings.Contains(normalized, alias) {
					mapping[role] = idx
					break
				}
			}
		}
	}

	_, hasName := mapping["service_name"]
	_, hasSKU := mapping["sku"]
	hasPricing := false
	for _, role := range []string{"list_unit_price", "net_unit_price", "net_total"} {
		if _, ok := mapping[role]; ok {
			hasPricing = true
			break
		}
	}
	if hasName && hasSKU && hasPricing {
		return mapping
	}
	return nil
}

// isHeaderRow drops repeated header banners that reappear on page breaks.
func (p *Parser) isHeaderRow(cells []string) bool {
	text := strings.ToLower(strings.Join(nonEmptyCells(cells), " "))
	if text == "" {
		return false
	}
	expected := p.cfg.LineItemRules.HeaderContains
	if len(expected) >= 2 &&
		strings.Contains(text, strings.ToLower(expected[0])) &&
		strings.Contains(text, strings.ToLower(expected[1])) {
		return true
	}
	return strings.Contains(text, "service/product name") &&
		(strings.Contains(text, "code/sku") || strings.Contains(text, "sku"))
}

// textFallback applies the configured regex rules to the text lines of a page
// without a usable table. Patterns use named groups matching the line item
// roles (sku, description, qty, unit_price, total).
func (p *Parser) textFallback(file string, page *entity.Page) []entity.LineItem {
	rules := p.cfg.LineItemRules.CompiledFallback()
	if len(rules) == 0 {
		return nil
	}
	var items []entity.LineItem
	for _, line := range page.Lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		for _, re := range rules {
			match := re.FindStringSubmatch(text)
			if match == nil {
				continue
			}
			groups := map[string]string{}
			for i, name := range re.SubexpNames() {
				if name != "" && i < len(match) {
					groups[name] = strings.TrimSpace(match[i])
				}
			}
			if groups["sku"] == "" {
				continue
			}
			item := entity.LineItem{
				SKU:              groups["sku"],
				ServiceName:      groups["description"],
				UnitsQty:         groups["qty"],
				ListUnitPriceRaw: groups["unit_price"],
				NetTotalRaw:      groups["total"],
				ListUnitPrice:    money(groups["unit_price"]),
				NetTotal:         money(groups["total"]),
				Currency:         normalize.ParseCurrencyCode(firstNonEmpty(groups["total"], groups["unit_price"]), p.cfg.Normalization.CurrencyDefault),
				SectionIndex:     1,
				Source: entity.Provenance{
					File:      file,
					Page:      page.Number,
					LineIndex: line.Index,
				},
			}
			items = append(items, item)
			break
		}
	}
	return items
}

// appendContinuation folds wrapped description text into the open item and
// extends its provenance with the contributing raw rows.
func appendContinuation(item *entity.LineItem, text string, rowIndexes []int) {
	if item.DescriptionContinuation == "" {
		item.DescriptionContinuation = text
	} else {
		item.DescriptionContinuation += "\n" + text
	}
	item.Source.RowIndexes = append(item.Source.RowIndexes, rowIndexes...)
}

func normalizeHeaderText(s string) string {
	return strings.TrimSpace(headerNormalizer.ReplaceAllString(strings.ToLower(s), " "))
}

func allEmpty(fields map[string]string, roles ...string) bool {
	for _, role := range roles {
		if fields[role] != "" {
			return false
		}
	}
	return true
}

func nonEmptyCells(cells []string) []string {
	var out []string
	for _, c := range cells {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func money(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := normalize.ParseCurrencyAmount(raw)
	if err != nil {
		return nil
	}
	return entity.Float(v)
}

func percent(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := normalize.ParsePercent(raw)
	if err != nil {
		return nil
	}
	return entity.Float(v)
}
