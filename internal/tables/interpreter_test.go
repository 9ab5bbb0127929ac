package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotestack/quote-extractor/internal/entity"
)

func cell(table, row, col int, text string) entity.RawTableCell {
	return entity.RawTableCell{TableIndex: table, RowIndex: row, ColIndex: col, Text: text}
}

func TestGridsRebuildsCompleteGrid(t *testing.T) {
	cells := []entity.RawTableCell{
		cell(1, 1, 1, "SKU"),
		cell(1, 1, 2, "Qty"),
		cell(1, 2, 1, "NK-1"),
		cell(1, 2, 2, "10"),
		// Second table, ragged: row 2 only declares column 1.
		cell(2, 1, 1, "a"),
		cell(2, 1, 2, "b"),
		cell(2, 2, 1, "c"),
	}
	grids := Grids(cells)
	require.Len(t, grids, 2)

	assert.Equal(t, 1, grids[0].TableIndex)
	assert.Equal(t, [][]string{{"SKU", "Qty"}, {"NK-1", "10"}}, grids[0].Rows)
	// The undeclared trailing cell appears as empty rather than shifting.
	assert.Equal(t, [][]string{{"a", "b"}, {"c", ""}}, grids[1].Rows)
}

func TestGridsEmptyInput(t *testing.T) {
	assert.Nil(t, Grids(nil))
}

func TestInterpretMergesContinuationRows(t *testing.T) {
	grid := Grid{Rows: [][]string{
		{"Name", "SKU", "Qty", "Net Total"},
		{"Private Access", "NK-PA", "100", "5,000.00"},
		{"", "renewal term", "", ""},
		{"", "expires 2028", "", ""},
		{"Egress", "NK-EGRESS", "10", "900.00"},
	}}
	rows := Interpret(grid)
	require.Len(t, rows, 3)

	assert.Equal(t, []int{1}, rows[0].RowIndexes)
	assert.Equal(t, "Private Access", rows[1].Cells[0])
	assert.Equal(t, "NK-PA\nrenewal term\nexpires 2028", rows[1].Cells[1])
	assert.Equal(t, []int{2, 3, 4}, rows[1].RowIndexes)
	assert.Equal(t, "NK-EGRESS", rows[2].Cells[1])
}

func TestInterpretRowAndColumnInvariants(t *testing.T) {
	grid := Grid{Rows: [][]string{
		{"a", "b", "c"},
		{"", "wrap", ""},
		{"d", "e", "f"},
		{"g"},
	}}
	rows := Interpret(grid)
	// 3 non-continuation raw rows -> 3 logical rows.
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row.Cells, 3)
	}
}

func TestInterpretKeepsTrailingEmptyColumn(t *testing.T) {
	grid := Grid{Rows: [][]string{
		{"x", "1", ""},
		{"y", "2", ""},
	}}
	rows := Interpret(grid)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Len(t, row.Cells, 3)
		assert.Equal(t, "", row.Cells[2])
	}
}

func TestInterpretTotalRowStaysStandalone(t *testing.T) {
	grid := Grid{Rows: [][]string{
		{"Egress", "NK-EGRESS", "10", "900.00"},
		{"", "", "", "900.00"},
	}}
	rows := Interpret(grid)
	require.Len(t, rows, 2)
	assert.Equal(t, "900.00", rows[1].Cells[3])
	assert.True(t, rows[1].Cells[0] == "" && rows[1].Cells[1] == "")
}

func TestInterpretZeroColumns(t *testing.T) {
	assert.Nil(t, Interpret(Grid{}))
	assert.Nil(t, Interpret(Grid{Rows: [][]string{{}, {}}}))
}

func TestLogicalRowHelpers(t *testing.T) {
	row := LogicalRow{Cells: []string{"", "a", "", "b"}}
	assert.False(t, row.IsEmpty())
	assert.Equal(t, "a b", row.Joined())
	assert.True(t, LogicalRow{Cells: []string{"", ""}}.IsEmpty())
}
