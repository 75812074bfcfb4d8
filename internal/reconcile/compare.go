package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/quotes/calc"
)

// Tolerance is the relative deviation allowed between an expected value and
// the engine's output: 0.01 percent.
var Tolerance = decimal.RequireFromString("0.0001")

// Mismatch is one expectation the engine output failed to meet.
type Mismatch struct {
	Product  string          `json:"product,omitempty"`
	Field    string          `json:"field"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Reason   string          `json:"reason,omitempty"`
}

// Report summarizes a reconciliation run.
type Report struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// OK reports whether every expectation matched within tolerance.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Compare checks every expectation in the reference against the calculation
// result. Values match when the absolute difference stays within Tolerance
// relative to the expected value; an expected zero requires an exact zero.
func Compare(ref *Reference, result *calc.QuoteResult) *Report {
	byName := make(map[string]calc.ProductResult, len(result.Products))
	for _, p := range result.Products {
		byName[p.ProductName] = p
	}

	report := &Report{}
	for _, exp := range ref.Expectations {
		report.Checked++
		actual, err := lookup(exp, result, byName)
		if err != nil {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Product: exp.Product, Field: exp.Field, Expected: exp.Value, Reason: err.Error(),
			})
			continue
		}
		if !withinTolerance(exp.Value, actual) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Product: exp.Product, Field: exp.Field, Expected: exp.Value, Actual: actual,
			})
		}
	}
	return report
}

func lookup(exp Expectation, result *calc.QuoteResult, byName map[string]calc.ProductResult) (decimal.Decimal, error) {
	if exp.Product == "" {
		return quoteFields[exp.Field](result), nil
	}
	product, ok := byName[exp.Product]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no product named %q in calculation", exp.Product)
	}
	return productFields[exp.Field](product), nil
}

func withinTolerance(expected, actual decimal.Decimal) bool {
	if expected.IsZero() {
		return actual.IsZero()
	}
	diff := expected.Sub(actual).Abs()
	return diff.LessThanOrEqual(expected.Abs().Mul(Tolerance))
}
