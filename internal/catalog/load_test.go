package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const fakeStoreJSON = `[
    {
        "id": 1,
        "title": "Backpack",
        "price": 109.95,
        "category": "men's clothing",
        "rating": {"rate": 3.9, "count": 120}
    },
    {
        "id": 2,
        "title": "Slim Fit T-Shirt",
        "price": 22.3,
        "category": "men's clothing",
        "rating": {"rate": 4.1, "count": 259}
    },
    {
        "id": 3,
        "title": "Bracelet",
        "price": 695,
        "category": "jewelery",
        "rating": {"rate": 4.6, "count": 400}
    }
]`

func TestFormatFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"products.csv", FormatCSV, false},
		{"products.JSON", FormatJSON, false},
		{"sheet.xlsx", FormatXLSX, false},
		{"legacy.XLS", FormatXLS, false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load("products.parquet", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "products.parquet")
}

func TestLoad_JSONRecords(t *testing.T) {
	tbl, err := Load("products.json", strings.NewReader(fakeStoreJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "title", "price", "category", "rating"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, int64(1), tbl.Rows[0]["id"])
	assert.Equal(t, 109.95, tbl.Rows[0]["price"])
	assert.Equal(t, int64(695), tbl.Rows[2]["price"])
	assert.Equal(t, map[string]any{"rate": 3.9, "count": int64(120)}, tbl.Rows[0]["rating"])
}

func TestLoadUploaded_JSONEndToEnd(t *testing.T) {
	tbl, err := LoadUploaded("products.json", strings.NewReader(fakeStoreJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "title", "price", "category", "rating_rate", "rating_count"}, tbl.Columns)

	context := GenerateContext(tbl)
	assert.Equal(t, "Product Category Summary:\n\n"+
		"- men's clothing: 2 items, Average Price: $66.13, Average Rating: 4.0\n"+
		"- jewelery: 1 items, Average Price: $695.0, Average Rating: 4.6", context)
}

func TestLoad_JSONColumnOriented(t *testing.T) {
	doc := `{"category": {"0": "A", "1": "B", "10": "C", "2": "A"}, "price": {"0": 1, "1": 2, "10": 3, "2": 4}}`

	tbl, err := Load("cols.json", strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"category", "price"}, tbl.Columns)
	assert.Equal(t, []any{"A", "B", "A", "C"}, tbl.Values("category"))
	assert.Equal(t, []any{int64(1), int64(2), int64(4), int64(3)}, tbl.Values("price"))
}

func TestLoad_JSONSingleRecord(t *testing.T) {
	tbl, err := Load("one.json", strings.NewReader(`{"product_category": "B", "price": 5, "average_rating": 3}`))
	require.NoError(t, err)

	out := Normalize(tbl)
	assert.Equal(t, Row{"category": "B", "price": int64(5), "rating_rate": int64(3)}, out.Rows[0])
}

func TestLoad_JSONSingleRecordWithObjectFields(t *testing.T) {
	tbl, err := Load("one.json", strings.NewReader(`{"rating": {"rate": 4, "count": 2}}`))
	require.NoError(t, err)

	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"rating"}, tbl.Columns)

	out := Normalize(tbl)
	assert.Equal(t, []string{"rating_rate", "rating_count"}, out.Columns)
	assert.Equal(t, Row{"rating_rate": 4.0, "rating_count": int64(2)}, out.Rows[0])
}

func TestLoad_JSONErrors(t *testing.T) {
	_, err := Load("bad.json", strings.NewReader(`"just a string"`))
	assert.Error(t, err)

	_, err = Load("bad.json", strings.NewReader(`[1, 2, 3]`))
	assert.Error(t, err)

	_, err = Load("bad.json", strings.NewReader(`[{"a": 1}`))
	assert.Error(t, err)
}

func TestLoad_JSONEmpty(t *testing.T) {
	tbl, err := Load("empty.json", strings.NewReader("  "))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestLoad_CSV(t *testing.T) {
	doc := "\xEF\xBB\xBFproduct_category,price,average_rating,title\n" +
		"shoes,10,4.5,Runner\n" +
		",,,\n" +
		"hats,5.25,,Cap\n" +
		"shoes,20\n"

	tbl, err := Load("upload.csv", strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"product_category", "price", "average_rating", "title"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, int64(10), tbl.Rows[0]["price"])
	assert.Equal(t, 5.25, tbl.Rows[1]["price"])
	assert.Nil(t, tbl.Rows[1]["average_rating"])
	assert.Nil(t, tbl.Rows[2]["title"])

	context := GenerateContext(Normalize(tbl))
	assert.Contains(t, context, "- shoes: 2 items, Average Price: $15.0, Average Rating: 4.5")
	assert.Contains(t, context, "- hats: 1 items, Average Price: $5.25, Average Rating: N/A")
}

func TestLoad_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"category", "price", "rating"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"toys", 12.5, 4}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"toys", 7.5, 5}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := LoadUploaded("catalog.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, []string{"category", "price", "rating_rate"}, tbl.Columns)
	assert.Equal(t, "Product Category Summary:\n\n- toys: 2 items, Average Price: $10.0, Average Rating: 4.5",
		GenerateContext(tbl))
}

func TestLoad_XLSCorrupt(t *testing.T) {
	_, err := Load("legacy.xls", strings.NewReader("definitely not a workbook"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(path, []byte(fakeStoreJSON), 0644))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseCell(t *testing.T) {
	assert.Nil(t, parseCell("   "))
	assert.Equal(t, int64(42), parseCell("42"))
	assert.Equal(t, 4.2, parseCell(" 4.2 "))
	assert.Equal(t, "abc", parseCell("abc"))
}
