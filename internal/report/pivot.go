package report

import (
	"sort"

	"ticketreport/internal/domain"
)

// KeyFunc extracts a pivot key from a record.
type KeyFunc func(domain.Record) string

func ByTechnician(r domain.Record) string { return r.Technician }

// ByAge keys on the age metric; unknown ages share the empty bucket.
func ByAge(r domain.Record) string { return r.AgeLabel() }

// PivotTable counts records per (row, column) pair. RowKeys and ColumnKeys
// are in display order and always end with the Grand Total margin.
type PivotTable struct {
	ColumnKeys []string
	RowKeys    []string
	Cells      map[string]map[string]int
}

func (p PivotTable) Value(row, col string) int {
	return p.Cells[row][col]
}

// Total is the bottom-right margin cell: the number of records counted.
func (p PivotTable) Total() int {
	return p.Value(domain.GrandTotal, domain.GrandTotal)
}

// BuildPivot counts records by (rowKey, colKey) and appends Grand Total
// margins. Columns keep first-seen order; rows are sorted by their total,
// largest first, ties by label. Both margins are pinned last.
func BuildPivot(records []domain.Record, rowKey, colKey KeyFunc) PivotTable {
	counts := make(map[string]map[string]int)
	var rows, cols []string
	seenRow := make(map[string]bool)
	seenCol := make(map[string]bool)

	for _, rec := range records {
		r, c := marginSafe(rowKey(rec), "technician"), marginSafe(colKey(rec), "value")
		if !seenRow[r] {
			seenRow[r] = true
			rows = append(rows, r)
			counts[r] = make(map[string]int)
		}
		if !seenCol[c] {
			seenCol[c] = true
			cols = append(cols, c)
		}
		counts[r][c]++
	}

	// Margins.
	colTotals := make(map[string]int, len(cols)+1)
	grand := 0
	for _, r := range rows {
		rowTotal := 0
		for _, c := range cols {
			n := counts[r][c]
			rowTotal += n
			colTotals[c] += n
		}
		counts[r][domain.GrandTotal] = rowTotal
		grand += rowTotal
	}
	colTotals[domain.GrandTotal] = grand
	counts[domain.GrandTotal] = colTotals

	return PivotTable{
		ColumnKeys: orderColumns(cols),
		RowKeys:    orderRows(rows, counts),
		Cells:      counts,
	}
}

// marginSafe renames a key that collides with the margin label so the
// record is still counted.
func marginSafe(key, kind string) string {
	if key == domain.GrandTotal {
		return key + " (" + kind + ")"
	}
	return key
}

func orderColumns(cols []string) []string {
	out := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		if c != domain.GrandTotal {
			out = append(out, c)
		}
	}
	return append(out, domain.GrandTotal)
}

func orderRows(rows []string, counts map[string]map[string]int) []string {
	out := make([]string, 0, len(rows)+1)
	for _, r := range rows {
		if r != domain.GrandTotal {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := counts[out[i]][domain.GrandTotal], counts[out[j]][domain.GrandTotal]
		if ti != tj {
			return ti > tj
		}
		return out[i] < out[j]
	})
	return append(out, domain.GrandTotal)
}
