package attach

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// jsonNumber matches cell text that can be emitted as a JSON number verbatim.
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

type field struct {
	key   string
	value any
}

// record is one spreadsheet row keyed by header, in column order.
type record []field

func (r record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, f.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, f.value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type sheet struct {
	name    string
	records []record
}

// workbook serializes as an object keyed by sheet name, in sheet order.
type workbook []sheet

func (w workbook) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, s.name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		recs := s.records
		if recs == nil {
			recs = []record{}
		}
		if err := writeJSON(&buf, recs); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSON encodes v without HTML escaping so workbook text survives as typed.
func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// WorkbookJSON loads every sheet of the workbook at path and renders it as
// one indented JSON document: {"Sheet": [{"Header": value, ...}, ...]}.
// The first row of each sheet is the header row.
func WorkbookJSON(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var wb workbook
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("sheet %q: %w", name, err)
		}
		wb = append(wb, sheet{name: name, records: sheetRecords(rows)})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(wb); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func sheetRecords(rows [][]string) []record {
	if len(rows) == 0 {
		return nil
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	headers := headerNames(rows[0], width)

	var out []record
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(record, width)
		for i := 0; i < width; i++ {
			var v any
			if i < len(row) {
				v = cellValue(row[i])
			}
			rec[i] = field{key: headers[i], value: v}
		}
		out = append(out, rec)
	}
	return out
}

// headerNames fills blank header cells with "Unnamed: N" and suffixes
// repeated names with ".1", ".2", ... skipping any suffix that is already a
// header of its own, so every key in a record is distinct.
func headerNames(row []string, width int) []string {
	raw := make([]string, width)
	given := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		n := ""
		if i < len(row) {
			n = strings.TrimSpace(row[i])
		}
		if n == "" {
			n = "Unnamed: " + strconv.Itoa(i)
		}
		raw[i] = n
		given[n] = true
	}

	names := make([]string, width)
	used := make(map[string]bool, width)
	counts := make(map[string]int, width)
	for i, n := range raw {
		name := n
		for c := counts[n] + 1; used[name]; c++ {
			name = n + "." + strconv.Itoa(c)
			counts[n] = c
			if given[name] {
				name = n
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellValue(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if jsonNumber.MatchString(s) {
		return json.Number(s)
	}
	return s
}
