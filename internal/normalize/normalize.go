// Package normalize provides locale-tolerant parsing of numeric, currency,
// percentage and date literals found in quote documents. The same rules are
// used by the line-item parser and by request-level input validation so a
// literal is never interpreted two different ways.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	moneyPattern       = regexp.MustCompile(`(?i)([$€£]|USD|EUR|GBP)?\s*([-+]?[0-9][0-9.,]*)`)
	numberTokenPattern = regexp.MustCompile(`[-+]?[0-9][0-9.,]*`)
	termRangePattern   = regexp.MustCompile(`([0-9]{1,2}/[0-9]{1,2}/[0-9]{2,4})\s*-\s*([0-9]{1,2}/[0-9]{1,2}/[0-9]{2,4})`)
)

// ParseError is a typed failure for empty or non-numeric input. Parsing never
// silently yields zero.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Raw, e.Reason)
}

func parseErr(raw, reason string) *ParseError {
	return &ParseError{Raw: raw, Reason: reason}
}

// ParseNumber parses a numeric literal that may use either comma-decimal or
// dot-decimal convention. When both separators are present the right-most one
// is the decimal point. A lone comma is a decimal point unless the token looks
// like thousands grouping (1-3 digit head not starting with zero, 3-digit tail).
func ParseNumber(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, parseErr(raw, "empty input")
	}
	token := numberTokenPattern.FindString(strings.ReplaceAll(raw, "\n", " "))
	if token == "" {
		return 0, parseErr(raw, "no numeric token")
	}
	normalized, ok := normalizeToken(token)
	if !ok {
		return 0, parseErr(raw, "not a number")
	}
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, parseErr(raw, "not a number")
	}
	return value, nil
}

// ParseCurrencyAmount strips an optional currency symbol or code before
// parsing the numeric amount.
func ParseCurrencyAmount(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, parseErr(raw, "empty input")
	}
	text := strings.ReplaceAll(raw, "\n", " ")
	candidate := text
	if m := moneyPattern.FindStringSubmatch(text); m != nil {
		candidate = m[2]
	}
	return ParseNumber(candidate)
}

// ParsePercent parses the first numeric token of a percentage cell, e.g.
// "60.00%" -> 60.
func ParsePercent(raw string) (float64, error) {
	return ParseNumber(raw)
}

// ParseCurrencyCode detects a currency code from a raw amount string, falling
// back to def when no known symbol or code is present.
func ParseCurrencyCode(raw, def string) string {
	if raw == "" {
		return ""
	}
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "USD") || strings.Contains(raw, "$"):
		return "USD"
	case strings.Contains(upper, "EUR") || strings.Contains(raw, "€"):
		return "EUR"
	case strings.Contains(upper, "GBP") || strings.Contains(raw, "£"):
		return "GBP"
	}
	return def
}

// ParseDate tries each configured layout and returns the date in ISO form.
func ParseDate(raw string, layouts []string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", parseErr(raw, "empty input")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", parseErr(raw, "no layout matched")
}

// SplitTermRange splits a "m/d/yyyy - m/d/yyyy" subscription term into its
// start and end dates. Both results are empty when the input does not match.
func SplitTermRange(raw string) (start, end string) {
	m := termRangePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// FormatNumber renders a float the way ParseNumber will read it back.
func FormatNumber(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// CleanCell trims a raw table cell, returning "" for nil-equivalent content.
func CleanCell(raw string) string {
	return strings.TrimSpace(raw)
}

// CleanSingleLine collapses newlines and repeated whitespace into single
// spaces.
func CleanSingleLine(raw string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(raw, "\n", " ")), " ")
}

// normalizeToken rewrites a numeric token into strconv-compatible form,
// resolving comma/dot separator ambiguity.
func normalizeToken(token string) (string, bool) {
	cleaned := strings.NewReplacer(" ", "", " ", "", "'", "").Replace(strings.TrimSpace(token))
	if cleaned == "" {
		return "", false
	}

	sign := ""
	if cleaned[0] == '+' || cleaned[0] == '-' {
		sign = string(cleaned[0])
		cleaned = cleaned[1:]
	}
	if !strings.ContainsAny(cleaned, "0123456789") {
		return "", false
	}

	commas := strings.Count(cleaned, ",")
	dots := strings.Count(cleaned, ".")
	switch {
	case commas > 0 && dots > 0:
		// Right-most separator is the decimal point, the other is grouping.
		decimal := "."
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			decimal = ","
		}
		if decimal == "," {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case commas > 0:
		cleaned = normalizeSingleSeparator(cleaned, ",")
	case dots > 0:
		cleaned = normalizeSingleSeparator(cleaned, ".")
	}

	normalized := sign + cleaned
	switch normalized {
	case "", "+", "-", ".", "+.", "-.":
		return "", false
	}
	return normalized, true
}

// normalizeSingleSeparator resolves a token containing only one separator
// kind: grouped 3-digit runs collapse to an integer, otherwise the last
// separator becomes the decimal point.
func normalizeSingleSeparator(value, sep string) string {
	parts := strings.Split(value, sep)
	if len(parts) == 1 {
		return value
	}

	if len(parts) > 2 {
		if allThreeDigitGroups(parts[1:]) {
			return strings.Join(parts, "")
		}
		head := strings.Join(parts[:len(parts)-1], "")
		tail := parts[len(parts)-1]
		if tail == "" {
			return head
		}
		return head + "." + tail
	}

	head, tail := parts[0], parts[1]
	if head == "" || tail == "" {
		return head + tail
	}
	if len(tail) == 3 && len(head) <= 3 && head[0] != '0' {
		// Thousands grouping, e.g. "10,000".
		return head + tail
	}
	return head + "." + tail
}

func allThreeDigitGroups(parts []string) bool {
	for _, part := range parts {
		if len(part) != 3 {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
