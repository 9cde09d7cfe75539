package render

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"

	"ticketreport/internal/domain"
	"ticketreport/internal/ingest"
)

// ApplyRemarks writes the reconciled remarks of the rows listed in changed
// back into the target artifact. Only those remark cells are touched; every
// other cell keeps its original text. Workbook rows are also highlighted.
func ApplyRemarks(path string, target domain.Dataset, changed map[string]bool) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return applyWorkbookRemarks(path, target, changed)
	default:
		return applyCSVRemarks(path, target, changed)
	}
}

// remarkColumns finds the identifier and remark columns of a header row.
// A missing column is reported as -1.
func remarkColumns(header []string) (idCol, remarkCol int) {
	idCol, remarkCol = -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case domain.ColCaseNumber:
			idCol = i
		case domain.ColRemarks:
			remarkCol = i
		}
	}
	return idCol, remarkCol
}

func remarksByID(target domain.Dataset) map[string]string {
	remarks := make(map[string]string, len(target.Records))
	for _, rec := range target.Records {
		remarks[rec.CaseNumber] = rec.Remarks
	}
	return remarks
}

func applyWorkbookRemarks(path string, target domain.Dataset, changed map[string]bool) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	sheet := ingest.ResolveSheet(f, DetailSheet)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return &domain.IOError{Op: "read", Path: path, Err: err}
	}
	if len(rows) == 0 {
		return nil
	}

	idCol, remarkCol := remarkColumns(rows[0])
	if idCol < 0 {
		return &domain.SchemaError{Artifact: path, Missing: []string{domain.ColCaseNumber}}
	}
	width := len(rows[0])
	if remarkCol < 0 {
		remarkCol = width
		width++
		cell, _ := excelize.CoordinatesToCellName(remarkCol+1, 1)
		if err := f.SetCellValue(sheet, cell, domain.ColRemarks); err != nil {
			return &domain.IOError{Op: "write", Path: path, Err: err}
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("creating styles: %w", err)
	}

	remarks := remarksByID(target)

	highlighted := 0
	for i := 1; i < len(rows); i++ {
		if idCol >= len(rows[i]) {
			continue
		}
		id := strings.TrimSpace(rows[i][idCol])
		if id == "" || !changed[id] {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(remarkCol+1, i+1)
		if err := f.SetCellValue(sheet, cell, remarks[id]); err != nil {
			return &domain.IOError{Op: "write", Path: path, Err: err}
		}
		start, _ := excelize.CoordinatesToCellName(1, i+1)
		end, _ := excelize.CoordinatesToCellName(width, i+1)
		if err := f.SetCellStyle(sheet, start, end, st.highlight); err != nil {
			return &domain.IOError{Op: "write", Path: path, Err: err}
		}
		highlighted++
	}

	if err := save(f, path); err != nil {
		return err
	}
	log.Printf("render remarks path=%s sheet=%s highlighted=%d", path, sheet, highlighted)
	return nil
}

func applyCSVRemarks(path string, target domain.Dataset, changed map[string]bool) error {
	table, err := ingest.ReadCSVTable(path)
	if err != nil {
		return err
	}
	idCol, remarkCol := remarkColumns(table.Header)
	if idCol < 0 {
		return &domain.SchemaError{Artifact: path, Missing: []string{domain.ColCaseNumber}}
	}
	if remarkCol < 0 {
		remarkCol = len(table.Header)
		table.Header = append(table.Header, domain.ColRemarks)
	}

	remarks := remarksByID(target)
	updated := 0
	for i, row := range table.Rows {
		if idCol >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		if id == "" || !changed[id] {
			continue
		}
		for len(row) <= remarkCol {
			row = append(row, "")
		}
		row[remarkCol] = remarks[id]
		table.Rows[i] = row
		updated++
	}

	data, err := table.Encode()
	if err != nil {
		return &domain.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	log.Printf("render remarks path=%s encoding=%s updated=%d", path, table.Encoding, updated)
	return nil
}
