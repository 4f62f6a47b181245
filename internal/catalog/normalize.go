package catalog

// RatingShape classifies how a table carries rating information.
type RatingShape string

const (
	// RatingShapeNested means a rating column holds {rate, count} objects.
	RatingShapeNested RatingShape = "nested"
	// RatingShapeFlat means rating values are scalars, either under "rating"
	// or already under "rating_rate".
	RatingShapeFlat RatingShape = "flat"
	// RatingShapeNone means the table has no rating information.
	RatingShapeNone RatingShape = "none"
)

// aliasColumns maps alternate column names found in uploaded files to their
// canonical names. Order matters only for readability.
var aliasColumns = []struct{ from, to string }{
	{"product_category", ColumnCategory},
	{"average_rating", ColumnRatingRate},
	{"number_of_items", ColumnCount},
}

// DetectRatingShape inspects the table once and classifies its rating columns.
func DetectRatingShape(t *Table) RatingShape {
	if t.HasColumn(ColumnRating) {
		for _, r := range t.Rows {
			if _, ok := r[ColumnRating].(map[string]any); ok {
				return RatingShapeNested
			}
		}
		return RatingShapeFlat
	}
	if t.HasColumn(ColumnRatingRate) || t.HasColumn("average_rating") {
		return RatingShapeFlat
	}
	return RatingShapeNone
}

// Normalize returns a copy of t with canonical column names. Nested ratings
// are flattened into rating_rate and rating_count, a plain rating column
// becomes rating_rate, and known aliases are renamed. The input is not
// modified and Normalize is idempotent.
func Normalize(t *Table) *Table {
	out := t.Clone()

	switch DetectRatingShape(out) {
	case RatingShapeNested:
		flattenNestedRating(out)
	case RatingShapeFlat:
		if out.HasColumn(ColumnRating) && !out.HasColumn(ColumnRatingRate) {
			out.renameColumn(ColumnRating, ColumnRatingRate)
		}
	case RatingShapeNone:
	}

	for _, a := range aliasColumns {
		if out.HasColumn(a.from) && !out.HasColumn(a.to) {
			out.renameColumn(a.from, a.to)
		}
	}

	return out
}

// flattenNestedRating projects rating.rate and rating.count into their own
// columns. Values that are not objects become nil.
func flattenNestedRating(t *Table) {
	rates := make([]any, len(t.Rows))
	counts := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		nested, ok := r[ColumnRating].(map[string]any)
		if !ok {
			continue
		}
		if f, ok := toFloat64(nested["rate"]); ok {
			rates[i] = f
		}
		if n, ok := toInt64(nested["count"]); ok {
			counts[i] = n
		}
	}
	t.setColumn(ColumnRatingRate, rates)
	t.setColumn(ColumnRatingCount, counts)
	t.dropColumn(ColumnRating)
}
