// Package config loads the per-vendor extraction rules. The configuration is
// a closed schema: the recognized sections are field_patterns, table_settings,
// line_item_rules, normalization, validation and ocr. Files are YAML, merged
// over compiled-in defaults and schema-validated at load time; a violation is
// a fatal configuration error raised before any document is processed.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/quotestack/quote-extractor/internal/common"
)

// FieldPattern is one configured business summary field rule.
type FieldPattern struct {
	Patterns []string `yaml:"patterns" json:"patterns"`
	Required bool     `yaml:"required" json:"required"`
	// LastMatchWins selects the last occurrence instead of the first, for
	// fields expected near the end of a document (e.g. grand total).
	LastMatchWins bool `yaml:"last_match_wins" json:"last_match_wins"`

	compiled []*regexp.Regexp
}

// Compiled returns the compiled regular expressions for this field.
func (f *FieldPattern) Compiled() []*regexp.Regexp { return f.compiled }

// TableSettings steers raw table extraction in the capture layer.
type TableSettings struct {
	VerticalStrategy   string `yaml:"vertical_strategy" json:"vertical_strategy"`
	HorizontalStrategy string `yaml:"horizontal_strategy" json:"horizontal_strategy"`
}

// LineItemRules configures table-based line item parsing and its text
// fallback.
type LineItemRules struct {
	// HeaderContains lists the labels a header row should carry, used by the
	// shape check that decides whether a table is usable.
	HeaderContains []string `yaml:"header_contains" json:"header_contains"`
	// ColumnAliases maps a column role (sku, description, quantity,
	// unit_price, total, ...) to the header substrings identifying it.
	ColumnAliases map[string][]string `yaml:"column_aliases" json:"column_aliases"`
	MinColumns    int                 `yaml:"min_columns" json:"min_columns"`
	// TextFallbackPatterns are regex rules applied to text lines of pages
	// without a usable table. Each pattern uses named capture groups matching
	// line item fields (sku, qty, unit_price, total, description).
	TextFallbackPatterns []string `yaml:"text_fallback_patterns" json:"text_fallback_patterns"`

	compiledFallback []*regexp.Regexp
}

// CompiledFallback returns the compiled text fallback rules.
func (r *LineItemRules) CompiledFallback() []*regexp.Regexp { return r.compiledFallback }

// Normalization configures locale handling.
type Normalization struct {
	CurrencyDefault  string   `yaml:"currency_default" json:"currency_default"`
	DateInputLayouts []string `yaml:"date_input_layouts" json:"date_input_layouts"`
}

// Validation configures the reconciliation tolerance bands. A mismatch above
// ErrorTolerance fails with error severity; one above Tolerance but within
// ErrorTolerance is a warning.
type Validation struct {
	Tolerance      float64 `yaml:"money_tolerance" json:"money_tolerance"`
	ErrorTolerance float64 `yaml:"money_error_tolerance" json:"money_error_tolerance"`
	// RelativeTolerance, when set, widens the absolute bands by
	// value*RelativeTolerance.
	RelativeTolerance float64  `yaml:"relative_tolerance" json:"relative_tolerance"`
	RequiredFields    []string `yaml:"required_fields" json:"required_fields"`
	CheckRowMath      bool     `yaml:"check_row_arithmetic" json:"check_row_arithmetic"`
	CheckCurrencyMix  bool     `yaml:"check_currency_consistency" json:"check_currency_consistency"`
}

// OCR configures the capture layer's fallback decision.
type OCR struct {
	MinNativeTextChars int `yaml:"min_native_text_chars" json:"min_native_text_chars"`
	DPI                int `yaml:"dpi" json:"dpi"`
	// PageTimeoutSeconds bounds a single render-and-OCR call.
	PageTimeoutSeconds int `yaml:"page_timeout_seconds" json:"page_timeout_seconds"`
}

// ExtractionConfig is immutable after Load and shared read-only by all
// pipeline components.
type ExtractionConfig struct {
	FieldPatterns map[string]*FieldPattern `yaml:"field_patterns" json:"field_patterns"`
	TableSettings TableSettings            `yaml:"table_settings" json:"table_settings"`
	LineItemRules LineItemRules            `yaml:"line_item_rules" json:"line_item_rules"`
	Normalization Normalization            `yaml:"normalization" json:"normalization"`
	Validation    Validation               `yaml:"validation" json:"validation"`
	OCR           OCR                      `yaml:"ocr" json:"ocr"`
}

// Default returns the compiled-in vendor configuration.
func Default() *ExtractionConfig {
	return &ExtractionConfig{
		FieldPatterns: map[string]*FieldPattern{
			"quote_number":        {Patterns: []string{`Quote\s*#:\s*([A-Z0-9\-]+)`}, Required: true},
			"expiration_date":     {Patterns: []string{`Expiration Date:\s*([0-9]{1,2}/[0-9]{1,2}/[0-9]{4})`}},
			"subscription_period": {Patterns: []string{`Subscription Period:\s*([^\n\r]+)`}},
			"payment_method":      {Patterns: []string{`Payment Method:\s*([^\n\r]+)`}},
			"total_raw":           {Patterns: []string{`TOTAL:\s*([A-Z$][A-Z$\s0-9,.\-]+)`}, Required: true, LastMatchWins: true},
			"overall_total_raw":   {Patterns: []string{`Overall Total:\s*([$A-Z\s0-9,.\-]+)`}, LastMatchWins: true},
			"payment_year_1_raw":  {Patterns: []string{`Payment Year 1:\s*([$0-9,.\-]+)`}},
			"payment_year_2_raw":  {Patterns: []string{`Payment Year 2:\s*([$0-9,.\-]+)`}},
			"payment_year_3_raw":  {Patterns: []string{`Payment Year 3:\s*([$0-9,.\-]+)`}},
			"payment_terms":       {Patterns: []string{`\b(Net\s*[0-9]+)\b`}},
		},
		TableSettings: TableSettings{
			VerticalStrategy:   "lines",
			HorizontalStrategy: "lines",
		},
		LineItemRules: LineItemRules{
			HeaderContains: []string{
				"Service/Product Name",
				"Code/SKU",
				"List Unit Price",
				"Net Total",
			},
			ColumnAliases: map[string][]string{
				"service_name":    {"service product name", "product name", "description"},
				"sku":             {"service product code sku", "product code sku", "code sku", "product code", "sku"},
				"units_qty":       {"units quantity", "quantity", "units", "qty"},
				"term":            {"term"},
				"list_unit_price": {"list unit price"},
				"discount_pct":    {"discount"},
				"net_unit_price":  {"net unit price"},
				"net_total":       {"net total"},
			},
			MinColumns: 8,
			TextFallbackPatterns: []string{
				`^(?P<sku>[A-Z][A-Z0-9\-]{3,})\s+(?P<description>.+?)\s+(?P<qty>[0-9][0-9,.]*)\s+(?P<unit_price>[$€£]?[0-9][0-9,.]*)\s+(?P<total>[$€£]?[0-9][0-9,.]*)$`,
			},
		},
		Normalization: Normalization{
			CurrencyDefault:  "USD",
			DateInputLayouts: []string{"01/02/2006", "01/02/06"},
		},
		Validation: Validation{
			Tolerance:      0.01,
			ErrorTolerance: 0.01,
			RequiredFields: []string{"quote_number", "total_raw"},
			CheckRowMath:   true,
		},
		OCR: OCR{
			MinNativeTextChars: 50,
			DPI:                300,
			PageTimeoutSeconds: 60,
		},
	}
}

// Load reads an optional YAML file over the defaults, validates the raw
// document against the configuration schema, and compiles every pattern.
// A missing path yields the defaults; a malformed file is a ConfigError.
func Load(path string) (*ExtractionConfig, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				raw = nil
			} else {
				return nil, common.ConfigError(fmt.Sprintf("read config %s", path), err)
			}
		}
		if len(raw) > 0 {
			if err := validateSchema(raw); err != nil {
				return nil, common.ConfigError(fmt.Sprintf("config %s violates schema", path), err)
			}
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, common.ConfigError(fmt.Sprintf("parse config %s", path), err)
			}
		}
	}
	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// compile precompiles every configured pattern and checks closed-schema
// invariants that the JSON schema cannot express.
func (c *ExtractionConfig) compile() error {
	for name, field := range c.FieldPatterns {
		if field == nil || len(field.Patterns) == 0 {
			return common.ConfigError(fmt.Sprintf("field_patterns.%s has no patterns", name), nil)
		}
		field.compiled = field.compiled[:0]
		for _, p := range field.Patterns {
			re, err := regexp.Compile(`(?m)` + p)
			if err != nil {
				return common.ConfigError(fmt.Sprintf("field_patterns.%s: bad pattern %q", name, p), err)
			}
			field.compiled = append(field.compiled, re)
		}
	}
	c.LineItemRules.compiledFallback = nil
	for _, p := range c.LineItemRules.TextFallbackPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return common.ConfigError(fmt.Sprintf("line_item_rules: bad fallback pattern %q", p), err)
		}
		c.LineItemRules.compiledFallback = append(c.LineItemRules.compiledFallback, re)
	}
	if c.Validation.Tolerance < 0 || c.Validation.ErrorTolerance < 0 {
		return common.ConfigError("validation tolerances must be >= 0", nil)
	}
	if c.Validation.ErrorTolerance < c.Validation.Tolerance {
		return common.ConfigError("money_error_tolerance must be >= money_tolerance", nil)
	}
	if c.OCR.MinNativeTextChars < 0 {
		return common.ConfigError("ocr.min_native_text_chars must be >= 0", nil)
	}
	for _, field := range c.Validation.RequiredFields {
		if _, ok := c.FieldPatterns[field]; !ok {
			return common.ConfigError(fmt.Sprintf("validation.required_fields references unknown field %q", field), nil)
		}
	}
	return nil
}
