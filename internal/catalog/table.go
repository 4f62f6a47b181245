// Package catalog loads product catalogs from tabular files, normalizes their
// columns to a canonical schema, and renders per-category summaries suitable
// for use as LLM prompt context.
package catalog

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Canonical column names.
const (
	ColumnCategory    = "category"
	ColumnPrice       = "price"
	ColumnRating      = "rating"
	ColumnRatingRate  = "rating_rate"
	ColumnRatingCount = "rating_count"
	ColumnCount       = "count"
	ColumnTitle       = "title"
)

// Row is a single product record keyed by column name.
type Row map[string]any

// Table is an ordered collection of rows with an explicit column order.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable creates a table from records, taking column order from the
// first-seen key order of the records. Map key order is not stable in Go,
// so keys of each record are appended in sorted order.
func NewTable(records []map[string]any) *Table {
	t := &Table{Rows: make([]Row, 0, len(records))}
	seen := make(map[string]bool)
	for _, rec := range records {
		keys := slices.Sorted(maps.Keys(rec))
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, Row(maps.Clone(rec)))
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	return slices.Contains(t.Columns, name)
}

// Values returns the values of a column in row order. Missing cells are nil.
func (t *Table) Values(name string) []any {
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out
}

// Clone returns a deep-enough copy: rows are copied, nested values are shared.
func (t *Table) Clone() *Table {
	if t == nil {
		return &Table{}
	}
	c := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = maps.Clone(r)
	}
	return c
}

// renameColumn renames a column in place, keeping its position.
func (t *Table) renameColumn(from, to string) {
	idx := slices.Index(t.Columns, from)
	if idx < 0 {
		return
	}
	t.Columns[idx] = to
	for _, r := range t.Rows {
		if v, ok := r[from]; ok {
			r[to] = v
			delete(r, from)
		}
	}
}

// dropColumn removes a column and its cells.
func (t *Table) dropColumn(name string) {
	t.Columns = slices.DeleteFunc(t.Columns, func(c string) bool { return c == name })
	for _, r := range t.Rows {
		delete(r, name)
	}
}

// setColumn writes values into a column, appending it if it does not exist.
func (t *Table) setColumn(name string, values []any) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	for i, r := range t.Rows {
		r[name] = values[i]
	}
}

// Equal reports whether two tables have identical columns and cell values.
func (t *Table) Equal(o *Table) bool {
	if t.Len() != o.Len() || !slices.Equal(t.Columns, o.Columns) {
		return false
	}
	for i := range t.Rows {
		for _, c := range t.Columns {
			if fmt.Sprint(t.Rows[i][c]) != fmt.Sprint(o.Rows[i][c]) {
				return false
			}
		}
	}
	return true
}

// toFloat64 coerces a cell to a float. Non-numeric and non-finite cells
// yield false.
func toFloat64(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt64 coerces a cell to an integer, truncating floats.
func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// categoryKey renders a category cell as a grouping key. Missing and empty
// categories are skipped by the caller.
func categoryKey(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		if math.IsNaN(t) {
			return "", false
		}
		return formatFloat(t), true
	}
	return fmt.Sprint(v), true
}

// formatFloat renders a float the way pandas prints one: shortest
// representation, integral values keep a trailing ".0", exponent form only
// below 1e-4 or from 1e16 up.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		return s + ".0"
	}
	return s
}
