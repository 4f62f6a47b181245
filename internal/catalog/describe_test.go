package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	tbl := &Table{
		Columns: []string{"category", "price", "rating_rate"},
		Rows: []Row{
			{"category": "b", "price": 1.0},
			{"category": "a", "price": 2.0},
			{"category": "a", "price": 3.0},
			{"category": nil, "price": 4.0},
			{"category": "c", "price": "n/a"},
		},
	}

	d := Describe(tbl)

	assert.True(t, d.HasRating)
	assert.Equal(t, []CategoryCount{
		{Category: "a", Count: 2},
		{Category: "b", Count: 1},
		{Category: "c", Count: 1},
	}, d.CategoryCounts)

	require.NotNil(t, d.Prices)
	assert.Equal(t, 4, d.Prices.Count)
	assert.InDelta(t, 2.5, d.Prices.Mean, 1e-9)
	assert.InDelta(t, 1.2909944, d.Prices.Std, 1e-6)
	assert.Equal(t, 1.0, d.Prices.Min)
	assert.InDelta(t, 1.75, d.Prices.P25, 1e-9)
	assert.InDelta(t, 2.5, d.Prices.P50, 1e-9)
	assert.InDelta(t, 3.25, d.Prices.P75, 1e-9)
	assert.Equal(t, 4.0, d.Prices.Max)
}

func TestDescribe_SingleValueHasNaNStd(t *testing.T) {
	d := Describe(&Table{
		Columns: []string{"price"},
		Rows:    []Row{{"price": int64(7)}},
	})

	require.NotNil(t, d.Prices)
	assert.True(t, math.IsNaN(d.Prices.Std))
	assert.Equal(t, 7.0, d.Prices.P50)
	assert.Empty(t, d.CategoryCounts)
}

func TestDescribe_MissingColumns(t *testing.T) {
	d := Describe(&Table{Columns: []string{"title"}, Rows: []Row{{"title": "x"}}})

	assert.Nil(t, d.Prices)
	assert.Nil(t, d.CategoryCounts)
	assert.False(t, d.HasRating)
}
