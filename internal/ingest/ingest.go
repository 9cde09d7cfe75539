// Package ingest loads ticket snapshots from CSV exports and report workbooks.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"ticketreport/internal/domain"
)

// DetailSheet is the sheet name the report writer uses for ticket rows.
const DetailSheet = "Filtered Data"

var errNotUTF8 = errors.New("input is not valid UTF-8")

type decoder struct {
	name string
	enc  encoding.Encoding // nil means UTF-8
}

// Tried in order; the first one that decodes and parses wins.
var fallbackChain = []decoder{
	{name: "utf-8"},
	{name: "latin1", enc: charmap.ISO8859_1},
	{name: "cp1252", enc: charmap.Windows1252},
}

// ReadFile loads a snapshot, picking the reader from the file extension.
func ReadFile(path string) (domain.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadWorkbook(path, DetailSheet)
	default:
		return ReadCSV(path)
	}
}

// ReadCSV reads an export, retrying the decode with each fallback
// encoding. A single IOError is returned if every attempt fails.
func ReadCSV(path string) (domain.Dataset, error) {
	table, err := ReadCSVTable(path)
	if err != nil {
		return domain.Dataset{}, err
	}
	ds := buildDataset(table.Header, table.Rows)
	log.Printf("ingest csv path=%s encoding=%s rows=%d", path, table.Encoding, ds.Len())
	return ds, nil
}

// CSVTable is a CSV file as raw cells, along with how it was encoded, so it
// can be written back without touching cells nobody changed.
type CSVTable struct {
	Header   []string
	Rows     [][]string
	Encoding string
	BOM      bool
	CRLF     bool

	enc encoding.Encoding
}

// ReadCSVTable decodes path with the fallback chain and returns its cells verbatim.
func ReadCSVTable(path string) (CSVTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CSVTable{}, &domain.IOError{Op: "read", Path: path, Err: err}
	}

	var attempts []string
	for _, dec := range fallbackChain {
		table, err := decodeCSV(data, dec)
		if err == nil {
			return table, nil
		}
		attempts = append(attempts, fmt.Sprintf("%s: %v", dec.name, err))
	}
	return CSVTable{}, &domain.IOError{
		Op:   "decode",
		Path: path,
		Err:  fmt.Errorf("all encodings failed (%s)", strings.Join(attempts, "; ")),
	}
}

// Encode renders the table as CSV in the encoding it was read with.
// Characters the encoding cannot represent are replaced.
func (t CSVTable) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = t.CRLF
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if t.enc != nil {
		var err error
		if out, err = encoding.ReplaceUnsupported(t.enc.NewEncoder()).Bytes(out); err != nil {
			return nil, err
		}
	}
	if t.BOM {
		out = append([]byte(utf8BOM), out...)
	}
	return out, nil
}

const utf8BOM = "\xef\xbb\xbf"

func decodeCSV(data []byte, dec decoder) (CSVTable, error) {
	text := data
	if dec.enc == nil {
		if !utf8.Valid(data) {
			return CSVTable{}, errNotUTF8
		}
	} else {
		decoded, err := dec.enc.NewDecoder().Bytes(data)
		if err != nil {
			return CSVTable{}, err
		}
		text = decoded
	}
	bom := bytes.HasPrefix(text, []byte(utf8BOM))
	text = bytes.TrimPrefix(text, []byte(utf8BOM))
	header, rows, err := parseTable(bytes.NewReader(text))
	if err != nil {
		return CSVTable{}, err
	}
	return CSVTable{
		Header:   header,
		Rows:     rows,
		Encoding: dec.name,
		BOM:      bom,
		CRLF:     bytes.Contains(text, []byte("\r\n")),
		enc:      dec.enc,
	}, nil
}

// ParseCSV builds a dataset from already-decoded CSV text.
func ParseCSV(r io.Reader) (domain.Dataset, error) {
	header, rows, err := parseTable(r)
	if err != nil {
		return domain.Dataset{}, err
	}
	return buildDataset(header, rows), nil
}

func parseTable(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty file")
		}
		return nil, nil, fmt.Errorf("unable to read header: %w", err)
	}
	var rows [][]string
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("unable to read CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// ReadWorkbook loads the named sheet, or the first sheet when it does not exist.
func ReadWorkbook(path, sheet string) (domain.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Dataset{}, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	name := ResolveSheet(f, sheet)
	if name == "" {
		return domain.Dataset{}, &domain.IOError{Op: "read", Path: path, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return domain.Dataset{}, &domain.IOError{Op: "read", Path: path, Err: err}
	}
	if len(rows) == 0 {
		return domain.Dataset{}, nil
	}
	ds := buildDataset(rows[0], rows[1:])
	log.Printf("ingest workbook path=%s sheet=%s rows=%d", path, name, ds.Len())
	return ds, nil
}

// ResolveSheet returns want when the workbook has it, else the first sheet name.
func ResolveSheet(f *excelize.File, want string) string {
	if want != "" {
		if idx, err := f.GetSheetIndex(want); err == nil && idx >= 0 {
			return want
		}
	}
	list := f.GetSheetList()
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func buildDataset(header []string, rows [][]string) domain.Dataset {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}
	ds := domain.Dataset{Columns: cols}
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		var rec domain.Record
		for i, col := range cols {
			if col == "" {
				continue
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			rec.SetField(col, val)
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
