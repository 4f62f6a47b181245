package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopinsight/shopinsight/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const productsBody = `[
  {"id": 1, "title": "Fjällräven Backpack", "price": 109.95, "category": "men's clothing", "rating": {"rate": 3.9, "count": 120}},
  {"id": 2, "title": "Gold Ring", "price": 168, "category": "jewelery", "rating": {"rate": 3.9, "count": 70}}
]`

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := newServer(t, http.StatusOK, productsBody)
	core, logs := observer.New(zap.InfoLevel)

	products, err := New(srv.Client(), zap.New(core)).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Fjällräven Backpack", products[0]["title"])

	statusLogs := logs.FilterMessage("fetched products").All()
	require.Len(t, statusLogs, 1)
	assert.Equal(t, int64(http.StatusOK), statusLogs[0].ContextMap()["status"])

	titleLogs := logs.FilterMessage("first product").All()
	require.Len(t, titleLogs, 1)
	assert.Equal(t, "Fjällräven Backpack", titleLogs[0].ContextMap()["title"])
}

func TestFetch_BadStatus(t *testing.T) {
	srv := newServer(t, http.StatusServiceUnavailable, "try later")

	_, err := New(srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "try later")
}

func TestFetch_BadJSON(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"not": "an array"}`)

	_, err := New(srv.Client(), nil).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "failed to decode products")
}

func TestFetch_Cancelled(t *testing.T) {
	srv := newServer(t, http.StatusOK, productsBody)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.Client(), nil).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSave_FormatsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "products.json")

	err := Save(path, []map[string]any{{"title": "Fjällräven <Backpack>", "price": 1.5}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expected := "[\n    {\n        \"price\": 1.5,\n        \"title\": \"Fjällräven <Backpack>\"\n    }\n]"
	assert.Equal(t, expected, string(data))
}

func TestFetchAndSaveThenLoadSnapshot(t *testing.T) {
	srv := newServer(t, http.StatusOK, productsBody)
	path := filepath.Join(t.TempDir(), "products.json")

	n, err := New(srv.Client(), nil).FetchAndSave(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tbl, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.HasColumn(catalog.ColumnRatingRate))
	assert.False(t, tbl.HasColumn(catalog.ColumnRating))

	context := catalog.GenerateContext(tbl)
	assert.True(t, strings.HasPrefix(context, catalog.SummaryHeader))
	assert.Contains(t, context, "- men's clothing: 1 items, Average Price: $109.95, Average Rating: 3.9")
}

func TestLoadSnapshot_Missing(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
