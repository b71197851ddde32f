// Package ingest reads ERP spreadsheet exports, detects their layout and
// decodes them into domain rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Sheet is one worksheet as raw cell text.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is a fully read spreadsheet file.
type Workbook struct {
	Name   string
	Sheets []Sheet
}

// First returns the first sheet, which carries the main table.
func (w *Workbook) First() (Sheet, bool) {
	if w == nil || len(w.Sheets) == 0 {
		return Sheet{}, false
	}
	return w.Sheets[0], true
}

// OpenWorkbook reads the workbook at path.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadWorkbook(filepath.Base(path), f)
}

// ReadWorkbook reads every sheet of an xlsx stream. Files named *.csv are
// read as a single sheet; legacy *.xls files are rejected.
func ReadWorkbook(name string, r io.Reader) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return readCSV(name, r)
	case ".xls":
		return nil, fmt.Errorf("%s is a legacy .xls workbook, save it as .xlsx or .csv", name)
	}

	opts := excelize.Options{RawCellValue: true}
	f, err := excelize.OpenReader(r, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", name)
	}

	wb := &Workbook{Name: name, Sheets: make([]Sheet, 0, len(sheets))}
	for _, sheet := range sheets {
		rows, err := f.Rows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
		}
		s := Sheet{Name: sheet}
		for rows.Next() {
			record, err := rows.Columns(opts)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read row from %s: %w", name, err)
			}
			s.Rows = append(s.Rows, record)
		}
		if err := rows.Error(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating rows in %s: %w", name, err)
		}
		rows.Close()
		wb.Sheets = append(wb.Sheets, s)
	}
	return wb, nil
}

// readCSV accepts UTF-8 or Windows-1252 exports separated by ';' or ','.
func readCSV(name string, r io.Reader) (*Workbook, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var src io.Reader
	if utf8.Valid(body) {
		src = bytes.NewReader(body)
	} else {
		src = charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(body))
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = sniffDelimiter(body)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv %s: %w", name, err)
	}
	return &Workbook{Name: name, Sheets: []Sheet{{Name: strings.TrimSuffix(name, filepath.Ext(name)), Rows: records}}}, nil
}

func sniffDelimiter(body []byte) rune {
	line := body
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		line = body[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
