package source

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is raw tabular content: a header row and the data rows under it.
// Rows may be shorter or longer than the header.
type Table struct {
	Header   []string
	Rows     [][]string
	Encoding string
}

// ReadTable reads a .csv or .xlsx file. CSV bytes go through Decode so legacy
// encodings are tolerated.
func ReadTable(path, fallbackEncoding string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	case ".csv", ".txt", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: read %s", path)
		}
		text, enc, err := Decode(data, fallbackEncoding)
		if err != nil {
			return nil, eris.Wrapf(err, "source: %s", path)
		}
		t, err := ParseCSV(strings.NewReader(text))
		if err != nil {
			return nil, eris.Wrapf(err, "source: %s", path)
		}
		t.Encoding = enc
		return t, nil
	default:
		return nil, eris.Errorf("source: unsupported file type %q", filepath.Ext(path))
	}
}

// ParseCSV reads a header row followed by data rows. Quotes are handled
// leniently and ragged rows are allowed. Only lines with no delimiter and no
// content are skipped; a delimiter-only line such as ",,," is a row whose
// fields are all null.
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("source: empty file, no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "source: read header")
	}

	t := &Table{Header: trimAll(header)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "source: read row")
		}
		if emptyLine(record) {
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook; its first row is the header.
// Blank rows between data rows are kept; blank rows after the last data row
// are formatting leftovers and are dropped.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("source: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("source: %s: empty sheet, no header row", path)
	}

	t := &Table{Header: trimAll(rowToStrings(sheet.Rows[0])), Encoding: "xlsx"}
	last := 0
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		t.Rows = append(t.Rows, cells)
		if !blankRow(cells) {
			last = len(t.Rows)
		}
	}
	t.Rows = t.Rows[:last]
	return t, nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// emptyLine reports whether a CSV record came from a line holding nothing
// but whitespace.
func emptyLine(record []string) bool {
	return len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "")
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadRecords returns every row of a CSV file, header included, decoded with
// the same UTF-8-or-fallback rule as ReadTable.
func ReadRecords(path, fallbackEncoding string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}
	text, _, err := Decode(data, fallbackEncoding)
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s", path)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse %s", path)
	}
	return records, nil
}
