// Package render turns report data into styled xlsx workbooks. It owns every
// visual decision; callers hand it ordered rows and never touch cells.
package render

import (
	"bytes"
	"fmt"
	"log"
	"strconv"
	"unicode/utf8"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"

	"ticketreport/internal/domain"
	"ticketreport/internal/report"
)

const (
	DetailSheet  = "Filtered Data"
	SummarySheet = "Pivot Summary"

	headerFill    = "FFF200"
	highlightFill = "C6EFCE"

	defaultRowHeight      = 60
	defaultMaxColumnWidth = 40
)

type Style struct {
	RowHeight      float64
	MaxColumnWidth float64
}

func (s Style) withDefaults() Style {
	if s.RowHeight <= 0 {
		s.RowHeight = defaultRowHeight
	}
	if s.MaxColumnWidth <= 0 {
		s.MaxColumnWidth = defaultMaxColumnWidth
	}
	return s
}

type styles struct {
	header    int
	body      int
	bold      int
	highlight int
}

func newStyles(f *excelize.File) (styles, error) {
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: center,
	}); err != nil {
		return s, err
	}
	if s.body, err = f.NewStyle(&excelize.Style{Alignment: center}); err != nil {
		return s, err
	}
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Alignment: center}); err != nil {
		return s, err
	}
	if s.highlight, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{highlightFill}, Pattern: 1},
		Alignment: center,
	}); err != nil {
		return s, err
	}
	return s, nil
}

// WriteReport writes the detail rows and the pivot summary to path.
func WriteReport(path string, detail domain.Dataset, pivot report.PivotTable, style Style) error {
	style = style.withDefaults()
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("creating styles: %w", err)
	}
	if err := f.SetSheetName(f.GetSheetName(0), DetailSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	if err := writeTable(f, DetailSheet, DetailRows(detail), st, style); err != nil {
		return fmt.Errorf("writing %s: %w", DetailSheet, err)
	}
	if err := writeTable(f, SummarySheet, SummaryRows(pivot), st, style); err != nil {
		return fmt.Errorf("writing %s: %w", SummarySheet, err)
	}
	if err := boldMargins(f, pivot, st); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := save(f, path); err != nil {
		return err
	}
	log.Printf("render report path=%s detail_rows=%d technicians=%d", path, detail.Len(), len(pivot.RowKeys)-1)
	return nil
}

// DetailRows lays out the detail sheet: one header row, then a row per record.
func DetailRows(ds domain.Dataset) [][]any {
	cols := ds.Columns
	if len(cols) == 0 {
		cols = domain.DetailColumns
	}
	rows := make([][]any, 0, len(ds.Records)+1)
	rows = append(rows, stringsToAny(cols))
	for _, rec := range ds.Records {
		row := make([]any, len(cols))
		for i, col := range cols {
			if col == domain.ColSLA && rec.Age != nil {
				row[i] = *rec.Age
				continue
			}
			row[i] = rec.Field(col)
		}
		rows = append(rows, row)
	}
	return rows
}

// SummaryRows lays out the pivot: technician label column, one column per
// age bucket, margins last.
func SummaryRows(p report.PivotTable) [][]any {
	header := make([]any, 0, len(p.ColumnKeys)+1)
	header = append(header, domain.ColTechnician)
	for _, c := range p.ColumnKeys {
		header = append(header, bucketHeader(c))
	}
	rows := [][]any{header}
	for _, r := range p.RowKeys {
		row := make([]any, 0, len(p.ColumnKeys)+1)
		row = append(row, r)
		for _, c := range p.ColumnKeys {
			row = append(row, p.Value(r, c))
		}
		rows = append(rows, row)
	}
	return rows
}

func bucketHeader(key string) any {
	if n, err := strconv.Atoi(key); err == nil {
		return n
	}
	return key
}

func writeTable(f *excelize.File, sheet string, rows [][]any, st styles, style Style) error {
	widths := make([]int, 0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		if err := f.SetRowHeight(sheet, i+1, style.RowHeight); err != nil {
			return err
		}
		for j, v := range row {
			for len(widths) <= j {
				widths = append(widths, 0)
			}
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[j] {
				widths[j] = n
			}
		}
	}
	if len(widths) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(widths), len(rows))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, st.body); err != nil {
		return err
	}
	headerEnd, _ := excelize.CoordinatesToCellName(len(widths), 1)
	if err := f.SetCellStyle(sheet, "A1", headerEnd, st.header); err != nil {
		return err
	}
	for j, w := range widths {
		name, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, columnWidth(w, style.MaxColumnWidth)); err != nil {
			return err
		}
	}
	return nil
}

func columnWidth(maxLen int, limit float64) float64 {
	return min(float64(maxLen+2), limit)
}

// boldMargins emphasises the Grand Total row and column of the summary.
func boldMargins(f *excelize.File, p report.PivotTable, st styles) error {
	lastCol := len(p.ColumnKeys) + 1
	lastRow := len(p.RowKeys) + 1
	rowStart, _ := excelize.CoordinatesToCellName(1, lastRow)
	rowEnd, _ := excelize.CoordinatesToCellName(lastCol, lastRow)
	if err := f.SetCellStyle(SummarySheet, rowStart, rowEnd, st.bold); err != nil {
		return err
	}
	colStart, _ := excelize.CoordinatesToCellName(lastCol, 2)
	return f.SetCellStyle(SummarySheet, colStart, rowEnd, st.bold)
}

func save(f *excelize.File, path string) error {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return &domain.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
