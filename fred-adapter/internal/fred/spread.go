package fred

import (
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

// Spread returns minuend - subtrahend on the dates where both series have a
// value. Dates follow the minuend's order; every other date is left out.
// The difference is taken in decimal so 5.0 - 4.8 comes out as 0.2.
func Spread(minuend, subtrahend model.Series) model.Series {
	rhs := subtrahend.Lookup()

	var out model.Series
	seen := make(map[string]bool)
	for i, d := range minuend.Dates {
		a := minuend.Values[i]
		if !a.Valid || seen[d] {
			continue
		}
		b, ok := rhs[d]
		if !ok {
			continue
		}
		seen[d] = true
		diff := decimal.NewFromFloat(a.Float64).Sub(decimal.NewFromFloat(b))
		out.Append(d, null.FloatFrom(diff.InexactFloat64()))
	}
	return out
}
