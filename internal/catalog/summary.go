package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SummaryHeader is the first line of every rendered summary.
const SummaryHeader = "Product Category Summary:"

// notAvailable is rendered in place of an average that cannot be computed.
const notAvailable = "N/A"

// MissingColumnError reports a column the summary needs but the table lacks.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("'%s' column not found in the dataset.", e.Column)
}

// CategoryStats holds the aggregates for one category.
type CategoryStats struct {
	Category  string              `json:"category"`
	ItemCount int                 `json:"item_count"`
	AvgPrice  decimal.NullDecimal `json:"avg_price"`
	AvgRating decimal.NullDecimal `json:"avg_rating"`
}

// Summary is the per-category aggregate of a normalized table, ordered by
// descending item count with ties kept in first-seen order.
type Summary struct {
	Categories []CategoryStats `json:"categories"`
	HasRating  bool            `json:"has_rating"`
}

// TotalItems returns the number of rows that carried a category.
func (s *Summary) TotalItems() int {
	return lo.SumBy(s.Categories, func(c CategoryStats) int { return c.ItemCount })
}

// Summarize aggregates a normalized table per category. It returns a
// *MissingColumnError when category or price is absent.
func Summarize(t *Table) (*Summary, error) {
	if !t.HasColumn(ColumnCategory) {
		return nil, &MissingColumnError{Column: ColumnCategory}
	}
	if !t.HasColumn(ColumnPrice) {
		return nil, &MissingColumnError{Column: ColumnPrice}
	}

	type acc struct {
		stats                 CategoryStats
		firstSeen             int
		priceSum, ratingSum   decimal.Decimal
		priceSeen, ratingSeen int
	}

	hasRating := t.HasColumn(ColumnRatingRate)
	groups := make(map[string]*acc)
	for i, r := range t.Rows {
		key, ok := categoryKey(r[ColumnCategory])
		if !ok {
			continue
		}
		g, exists := groups[key]
		if !exists {
			g = &acc{stats: CategoryStats{Category: key}, firstSeen: i}
			groups[key] = g
		}
		g.stats.ItemCount++
		if p, ok := toFloat64(r[ColumnPrice]); ok {
			g.priceSum = g.priceSum.Add(decimal.NewFromFloat(p))
			g.priceSeen++
		}
		if hasRating {
			if rate, ok := toFloat64(r[ColumnRatingRate]); ok {
				g.ratingSum = g.ratingSum.Add(decimal.NewFromFloat(rate))
				g.ratingSeen++
			}
		}
	}

	ordered := lo.Values(groups)
	slices.SortFunc(ordered, func(a, b *acc) int {
		if a.stats.ItemCount != b.stats.ItemCount {
			return b.stats.ItemCount - a.stats.ItemCount
		}
		return a.firstSeen - b.firstSeen
	})

	summary := &Summary{HasRating: hasRating}
	for _, g := range ordered {
		g.stats.AvgPrice = mean(g.priceSum, g.priceSeen)
		if hasRating {
			g.stats.AvgRating = mean(g.ratingSum, g.ratingSeen)
		}
		summary.Categories = append(summary.Categories, g.stats)
	}
	return summary, nil
}

func mean(sum decimal.Decimal, n int) decimal.NullDecimal {
	if n == 0 {
		return decimal.NullDecimal{}
	}
	avg := sum.Div(decimal.NewFromInt(int64(n))).Round(2)
	return decimal.NullDecimal{Decimal: avg, Valid: true}
}

// String renders the summary as prompt context.
func (s *Summary) String() string {
	lines := []string{SummaryHeader + "\n"}
	for _, c := range s.Categories {
		lines = append(lines, fmt.Sprintf(
			"- %s: %d items, Average Price: $%s, Average Rating: %s",
			c.Category, c.ItemCount, formatAverage(c.AvgPrice), formatAverage(c.AvgRating),
		))
	}
	return strings.Join(lines, "\n")
}

func formatAverage(d decimal.NullDecimal) string {
	if !d.Valid {
		return notAvailable
	}
	return formatFloat(d.Decimal.InexactFloat64())
}

// GenerateContext renders the summary of a normalized table as prompt
// context. It always returns a usable string: missing columns and unexpected
// failures are reported as a one-line warning instead of an error.
func GenerateContext(t *Table) (context string) {
	defer func() {
		if r := recover(); r != nil {
			context = fmt.Sprintf("⚠️ Error generating context: %v", r)
		}
	}()

	summary, err := Summarize(t)
	if err != nil {
		var missing *MissingColumnError
		if errors.As(err, &missing) {
			return "⚠️ " + missing.Error()
		}
		return fmt.Sprintf("⚠️ Error generating context: %v", err)
	}
	return summary.String()
}
