package query

import (
	"fmt"
	"strings"

	"terrascope/server/internal/models"
)

// Sort fields accepted by the listing endpoint.
const (
	FieldPrice           = "price"
	FieldM2              = "m2"
	FieldCreatedAt       = "created_at"
	FieldPricePerSqmDiff = "price_per_sqm_diff_percent"
	FieldSalePriceDiff   = "sale_price_diff_percent"
)

// Sort selects the ordering of a listing query.
type Sort struct {
	Field     string
	Direction string
}

// DefaultSort surfaces the most undervalued listings first, which is the
// whole point of the product.
var DefaultSort = Sort{Field: FieldPricePerSqmDiff, Direction: "asc"}

// sortColumns maps recognized sort fields to their ORDER BY column. Price
// is absent here because it needs currency normalization, see OrderBy.
var sortColumns = map[string]string{
	FieldM2:              "m2",
	FieldCreatedAt:       "created_at",
	FieldPricePerSqmDiff: "price_per_sqm_diff_percent",
	FieldSalePriceDiff:   "sale_price_diff_percent",
}

// OrderBy returns the ORDER BY expression for the requested sort.
// gsPerUSD is the divisor that puts guarani prices on the same scale as
// dollar prices. Unrecognized field/direction combinations fall back to
// the default ordering silently; id ASC breaks ties so pagination stays
// stable.
func OrderBy(s Sort, gsPerUSD float64) string {
	dir, ok := normalizeDirection(s.Direction)
	if !ok {
		return OrderBy(DefaultSort, gsPerUSD)
	}

	var expr string
	switch {
	case s.Field == FieldPrice:
		expr = NormalizedPrice(gsPerUSD)
	default:
		col, known := sortColumns[s.Field]
		if !known {
			return OrderBy(DefaultSort, gsPerUSD)
		}
		expr = col
	}

	return fmt.Sprintf("%s %s, id ASC", expr, dir)
}

// NormalizedPrice is the SQL expression that puts guarani prices on the
// reference-currency scale, so a Gs. 1,600,000 plot compares as 200
// against a USD 100 one rather than swamping it.
func NormalizedPrice(gsPerUSD float64) string {
	if gsPerUSD <= 0 {
		gsPerUSD = 8000
	}
	return fmt.Sprintf("(CASE WHEN currency = '%s' THEN price / %g ELSE price END)",
		models.LocalCurrency, gsPerUSD)
}

func normalizeDirection(direction string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "asc", "":
		return "ASC", true
	case "desc":
		return "DESC", true
	default:
		return "", false
	}
}
