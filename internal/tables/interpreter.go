// Package tables turns raw table cell grids into logical rows. Wrapped
// continuation rows are folded into their parent row and ragged grids are
// padded so columns never shift.
package tables

import (
	"sort"
	"strings"

	"github.com/quotestack/quote-extractor/internal/entity"
)

// Grid is one detected table rebuilt from the flat raw cell layer.
type Grid struct {
	TableIndex int
	Rows       [][]string
}

// LogicalRow is one interpreted row. RowIndexes lists every raw row merged
// into it, in source order, so each cell stays traceable.
type LogicalRow struct {
	Cells      []string
	RowIndexes []int
}

// Grids regroups a page's flat raw cells into row-major grids, one per
// table index, padding missing trailing cells as empty strings.
func Grids(cells []entity.RawTableCell) []Grid {
	if len(cells) == 0 {
		return nil
	}
	type key struct{ table, row, col int }
	byPos := make(map[key]string, len(cells))
	maxRow := map[int]int{}
	maxCol := map[int]int{}
	for _, c := range cells {
		byPos[key{c.TableIndex, c.RowIndex, c.ColIndex}] = c.Text
		if c.RowIndex > maxRow[c.TableIndex] {
			maxRow[c.TableIndex] = c.RowIndex
		}
		if c.ColIndex > maxCol[c.TableIndex] {
			maxCol[c.TableIndex] = c.ColIndex
		}
	}

	indexes := make([]int, 0, len(maxRow))
	for t := range maxRow {
		indexes = append(indexes, t)
	}
	sort.Ints(indexes)

	grids := make([]Grid, 0, len(indexes))
	for _, t := range indexes {
		grid := Grid{TableIndex: t}
		for r := 1; r <= maxRow[t]; r++ {
			row := make([]string, maxCol[t])
			for col := 1; col <= maxCol[t]; col++ {
				row[col-1] = byPos[key{t, r, col}]
			}
			grid.Rows = append(grid.Rows, row)
		}
		grids = append(grids, grid)
	}
	return grids
}

// Interpret merges continuation rows (empty leading cell) into the preceding
// logical row, concatenating cell text per column with a newline. Ragged rows
// are padded with empty cells so every declared column index appears in every
// output row. A grid with zero columns yields zero rows.
func Interpret(grid Grid) []LogicalRow {
	cols := 0
	for _, row := range grid.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return nil
	}

	var out []LogicalRow
	for idx, raw := range grid.Rows {
		row := make([]string, cols)
		for i := 0; i < cols && i < len(raw); i++ {
			row[i] = strings.TrimSpace(raw[i])
		}
		rowNumber := idx + 1

		if len(out) > 0 && isContinuation(row) {
			parent := &out[len(out)-1]
			for i, text := range row {
				if text == "" {
					continue
				}
				if parent.Cells[i] == "" {
					parent.Cells[i] = text
				} else {
					parent.Cells[i] = parent.Cells[i] + "\n" + text
				}
			}
			parent.RowIndexes = append(parent.RowIndexes, rowNumber)
			continue
		}
		out = append(out, LogicalRow{Cells: row, RowIndexes: []int{rowNumber}})
	}
	return out
}

// isContinuation reports whether a normalized row is a visual wrap of the row
// above it: its leading cell is blank and it carries text somewhere before
// the final column. Rows whose only content is the trailing amount column are
// section totals, not wraps, and stay standalone.
func isContinuation(row []string) bool {
	if len(row) < 2 || row[0] != "" {
		return false
	}
	for _, cell := range row[1 : len(row)-1] {
		if cell != "" {
			return true
		}
	}
	return false
}

// IsEmpty reports whether a logical row carries no text at all.
func (r LogicalRow) IsEmpty() bool {
	for _, cell := range r.Cells {
		if cell != "" {
			return false
		}
	}
	return true
}

// Joined returns the row's non-empty cells joined for fuzzy header matching.
func (r LogicalRow) Joined() string {
	var parts []string
	for _, cell := range r.Cells {
		if cell != "" {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, " ")
}
