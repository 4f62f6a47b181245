package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when a file extension is not one of the
// supported catalog encodings.
var ErrUnsupportedFormat = errors.New("unsupported file format, please upload CSV, JSON, or Excel")

// Format identifies a catalog file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// SupportedExtensions lists the file extensions accepted by Load.
var SupportedExtensions = []string{".csv", ".json", ".xlsx", ".xls"}

// FormatFromName picks the encoding from a file name's extension.
func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Load reads a raw (not yet normalized) table from r, choosing the decoder
// from the extension of name.
func Load(name string, r io.Reader) (*Table, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return loadCSV(r)
	case FormatJSON:
		return loadJSON(r)
	case FormatXLSX:
		return loadXLSX(r)
	default:
		return loadXLS(r)
	}
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Load(filepath.Base(path), f)
}

// LoadUploaded loads a file and normalizes it in one step.
func LoadUploaded(name string, r io.Reader) (*Table, error) {
	t, err := Load(name, r)
	if err != nil {
		return nil, err
	}
	return Normalize(t), nil
}

func loadCSV(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	grid, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return tableFromGrid(grid), nil
}

func loadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return tableFromGrid(grid), nil
}

func loadXLS(r io.Reader) (t *Table, err error) {
	// the xls reader panics on some malformed workbooks
	defer func() {
		if rec := recover(); rec != nil {
			t, err = nil, fmt.Errorf("failed to read xls: %v", rec)
		}
	}()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read xls: %w", err)
	}
	wb, err := xls.OpenReader(bytes.NewReader(b), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return &Table{}, nil
	}

	var grid [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		grid = append(grid, cells)
	}
	return tableFromGrid(grid), nil
}

// tableFromGrid treats the first row as the header. Blank header cells get
// positional names and fully empty rows are skipped.
func tableFromGrid(grid [][]string) *Table {
	if len(grid) == 0 {
		return &Table{}
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i)
		}
		header[i] = h
	}

	t := &Table{Columns: header}
	for _, rec := range grid[1:] {
		if lo.EveryBy(rec, func(c string) bool { return strings.TrimSpace(c) == "" }) {
			continue
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = parseCell(rec[i])
			} else {
				row[h] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// parseCell infers a scalar type for a text cell: empty → nil, then integer,
// then float, otherwise the trimmed string.
func parseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func loadJSON(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	b = bytes.TrimSpace(bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF}))
	if len(b) == 0 {
		return &Table{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	switch b[0] {
	case '[':
		return decodeRecordArray(dec)
	case '{':
		keys, obj, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		if isColumnOriented(keys, obj) {
			return tableFromColumns(keys, obj), nil
		}
		return &Table{Columns: keys, Rows: []Row{obj}}, nil
	default:
		return nil, fmt.Errorf("failed to parse json: expected an array of records or an object")
	}
}

func decodeRecordArray(dec *json.Decoder) (*Table, error) {
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}

	t := &Table{}
	seen := make(map[string]bool)
	for dec.More() {
		keys, rec, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}
	return t, nil
}

// decodeObject reads one JSON object keeping its key order.
func decodeObject(dec *json.Decoder) ([]string, Row, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("failed to parse json: expected a record object, got %v", tok)
	}

	var keys []string
	row := make(Row)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse json: %w", err)
		}
		key, _ := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("failed to parse json value for %q: %w", key, err)
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = convertNumbers(v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("failed to parse json: %w", err)
	}
	return keys, row, nil
}

// convertNumbers replaces json.Number values with int64 or float64.
func convertNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = convertNumbers(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = convertNumbers(inner)
		}
		return t
	}
	return v
}

// isColumnOriented reports whether obj looks like {column: {index: value}}
// with integer index keys. A single record whose fields are all objects does
// not qualify.
func isColumnOriented(keys []string, obj Row) bool {
	if len(keys) == 0 {
		return false
	}
	return lo.EveryBy(keys, func(k string) bool {
		col, ok := obj[k].(map[string]any)
		if !ok {
			return false
		}
		for idx := range col {
			if _, err := strconv.Atoi(idx); err != nil {
				return false
			}
		}
		return true
	})
}

func tableFromColumns(keys []string, obj Row) *Table {
	indexSet := make(map[string]bool)
	for _, k := range keys {
		for idx := range obj[k].(map[string]any) {
			indexSet[idx] = true
		}
	}
	index := lo.Keys(indexSet)
	slices.SortFunc(index, func(a, b string) int {
		ai, aErr := strconv.Atoi(a)
		bi, bErr := strconv.Atoi(b)
		if aErr == nil && bErr == nil {
			return ai - bi
		}
		return strings.Compare(a, b)
	})

	t := &Table{Columns: keys, Rows: make([]Row, len(index))}
	for i, idx := range index {
		row := make(Row, len(keys))
		for _, k := range keys {
			row[k] = obj[k].(map[string]any)[idx]
		}
		t.Rows[i] = row
	}
	return t
}
