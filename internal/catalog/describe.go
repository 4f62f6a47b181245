package catalog

import (
	"math"
	"slices"

	"github.com/samber/lo"
)

// PriceStats mirrors the usual descriptive statistics of a numeric column.
type PriceStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	Max   float64 `json:"max"`
}

// Description is an overview of a normalized catalog used by the summary
// command: how many products per category and how prices are distributed.
type Description struct {
	CategoryCounts []CategoryCount `json:"category_counts"`
	Prices         *PriceStats     `json:"prices,omitempty"`
	HasRating      bool            `json:"has_rating"`
}

// CategoryCount is a single value count of the category column.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Describe computes value counts and price statistics. Columns that are
// absent simply leave their part of the description empty.
func Describe(t *Table) *Description {
	d := &Description{HasRating: t.HasColumn(ColumnRatingRate)}

	if t.HasColumn(ColumnCategory) {
		type seen struct {
			count, first int
		}
		counts := make(map[string]*seen)
		for i, r := range t.Rows {
			key, ok := categoryKey(r[ColumnCategory])
			if !ok {
				continue
			}
			if s, ok := counts[key]; ok {
				s.count++
				continue
			}
			counts[key] = &seen{count: 1, first: i}
		}
		keys := lo.Keys(counts)
		slices.SortFunc(keys, func(a, b string) int {
			if counts[a].count != counts[b].count {
				return counts[b].count - counts[a].count
			}
			return counts[a].first - counts[b].first
		})
		d.CategoryCounts = lo.Map(keys, func(k string, _ int) CategoryCount {
			return CategoryCount{Category: k, Count: counts[k].count}
		})
	}

	if t.HasColumn(ColumnPrice) {
		var prices []float64
		for _, v := range t.Values(ColumnPrice) {
			if f, ok := toFloat64(v); ok {
				prices = append(prices, f)
			}
		}
		if len(prices) > 0 {
			d.Prices = describeValues(prices)
		}
	}

	return d
}

func describeValues(values []float64) *PriceStats {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	n := float64(len(sorted))
	mean := lo.Sum(sorted) / n

	std := math.NaN()
	if len(sorted) > 1 {
		var ss float64
		for _, v := range sorted {
			ss += (v - mean) * (v - mean)
		}
		std = math.Sqrt(ss / (n - 1))
	}

	return &PriceStats{
		Count: len(sorted),
		Mean:  mean,
		Std:   std,
		Min:   sorted[0],
		P25:   quantile(sorted, 0.25),
		P50:   quantile(sorted, 0.50),
		P75:   quantile(sorted, 0.75),
		Max:   sorted[len(sorted)-1],
	}
}

// quantile uses linear interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
