package parse

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quotestack/quote-extractor/internal/entity"
)

// SelectForTotal narrows multi-section quotes down to the section whose net
// totals sum to the parsed grand total within tolerance. Quotes that present
// several alternative pricing options repeat the line item table once per
// option; only one option is the accepted one, and the grand total names it.
// With a single section, no parsed total, or no section matching, every item
// is kept. Item indexes are renumbered either way.
func SelectForTotal(items []entity.LineItem, total *float64, tolerance float64) []entity.LineItem {
	if len(items) == 0 {
		return nil
	}

	sections := map[int][]entity.LineItem{}
	order := []int{}
	for _, item := range items {
		section := item.SectionIndex
		if section < 1 {
			section = 1
		}
		if _, seen := sections[section]; !seen {
			order = append(order, section)
		}
		sections[section] = append(sections[section], item)
	}

	if len(sections) <= 1 || total == nil {
		return reindex(items)
	}

	target := decimal.NewFromFloat(*total)
	tol := decimal.NewFromFloat(tolerance)
	type candidate struct {
		diff    decimal.Decimal
		section int
	}
	var matched []candidate
	for _, section := range order {
		sum := decimal.Zero
		for _, item := range sections[section] {
			if item.NetTotal != nil {
				sum = sum.Add(decimal.NewFromFloat(*item.NetTotal))
			}
		}
		diff := target.Sub(sum).Abs()
		if diff.LessThanOrEqual(tol) {
			matched = append(matched, candidate{diff: diff, section: section})
		}
	}
	if len(matched) == 0 {
		return reindex(items)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].diff.Equal(matched[j].diff) {
			return matched[i].diff.LessThan(matched[j].diff)
		}
		return matched[i].section < matched[j].section
	})
	return reindex(sections[matched[0].section])
}

func reindex(items []entity.LineItem) []entity.LineItem {
	out := make([]entity.LineItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}
