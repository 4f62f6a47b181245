package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rivo/uniseg"
	"github.com/shopinsight/shopinsight/internal/catalog"
)

// padRight pads s with spaces to width terminal cells. Category names come
// from user files, so widths are measured per grapheme cluster.
func padRight(s string, width int) string {
	w := uniseg.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// RenderDescription renders category counts and price statistics as two
// aligned tables.
func RenderDescription(d *catalog.Description) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Category counts") + "\n")
	if len(d.CategoryCounts) == 0 {
		b.WriteString(DimStyle.Render("  no category column") + "\n")
	} else {
		width := len("category")
		for _, c := range d.CategoryCounts {
			width = max(width, uniseg.StringWidth(c.Category))
		}
		b.WriteString("  " + DimStyle.Render(padRight("category", width)+"  count") + "\n")
		for _, c := range d.CategoryCounts {
			b.WriteString("  " + padRight(c.Category, width) + "  " + humanize.Comma(int64(c.Count)) + "\n")
		}
	}

	b.WriteString("\n" + TitleStyle.Render("Price statistics") + "\n")
	if d.Prices == nil {
		b.WriteString(DimStyle.Render("  no numeric prices") + "\n")
		return b.String()
	}
	p := d.Prices
	rows := []struct {
		label string
		value string
	}{
		{"count", humanize.Comma(int64(p.Count))},
		{"mean", formatStat(p.Mean)},
		{"std", formatStat(p.Std)},
		{"min", formatStat(p.Min)},
		{"25%", formatStat(p.P25)},
		{"50%", formatStat(p.P50)},
		{"75%", formatStat(p.P75)},
		{"max", formatStat(p.Max)},
	}
	for _, r := range rows {
		b.WriteString("  " + DimStyle.Render(padRight(r.label, 6)) + r.value + "\n")
	}
	if !d.HasRating {
		b.WriteString("\n" + DimStyle.Render("no rating column, averages will omit ratings") + "\n")
	}
	return b.String()
}

func formatStat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return fmt.Sprintf("%.2f", f)
}
