// Package billing holds the arithmetic core of the back office: numeric
// coercion for stringly-typed payload fields, line-item totals, margin
// calculation, cross-bill consolidation, and case/bottle splitting. Everything
// here is a pure function over in-memory records; persistence lives in the
// handler packages.
package billing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToNumber coerces a heterogeneous value (string, float64, int, json.Number,
// nil) into a float64. Unparsable or missing values become 0, silent
// zero-coalescing is the universal policy, no error is ever raised.
func ToNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	case bool:
		return 0
	default:
		return 0
	}
}

// Flex is a float64 that unmarshals from either a JSON number or a numeric
// string, applying the same zero-coalescing policy as ToNumber. Bill payloads
// historically carry price/qty/case fields as strings or numbers
// interchangeably, so every monetary or quantity field in a request body uses
// this type.
type Flex float64

func (f *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		*f = Flex(ToNumber(s))
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		*f = 0
		return nil
	}
	*f = Flex(ToNumber(n))
	return nil
}

// Round2 rounds to 2 decimals. Applied only when presenting a final figure;
// accumulation always runs on unrounded values so repeated recomputation does
// not compound rounding error.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PricedLine is any line item carrying a unit price and a quantity.
type PricedLine interface {
	LinePrice() float64
	LineQty() float64
}

// SumProductTotal returns the unrounded sum of price x qty over all lines.
func SumProductTotal[L PricedLine](lines []L) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.LinePrice() * l.LineQty()
	}
	return total
}

// AdjustmentRowTotal computes the stored per-row total of a discount-style
// adjustment (case count x per-case rate). When either factor is missing the
// row total is 0; the row still exists, it just contributes nothing.
func AdjustmentRowTotal(caseCount, perCaseRate float64) float64 {
	if caseCount == 0 || perCaseRate == 0 {
		return 0
	}
	return caseCount * perCaseRate
}

// TotaledRow is any adjustment row carrying a precomputed total.
type TotaledRow interface {
	RowTotal() float64
}

// SumAdjustmentTotal sums the stored row totals of discount / free-issue /
// expired-stock adjustments. Rows whose total was never computed coerce to 0.
func SumAdjustmentTotal[R TotaledRow](rows []R) float64 {
	total := 0.0
	for _, r := range rows {
		total += r.RowTotal()
	}
	return total
}

// LineMargin returns the margin contributed by one line. When either the
// retail price or the cost (database) price is missing or zero, the margin is
// forced to 0: an unknown cost must never be treated as a free cost, and a
// missing retail price must never produce a negative margin.
func LineMargin(retailPrice, dbPrice, qty float64) float64 {
	if retailPrice == 0 || dbPrice == 0 {
		return 0
	}
	return (retailPrice - dbPrice) * qty
}

// MarginLine is a line item that knows its retail price, cost price and qty.
type MarginLine interface {
	MarginRetail() float64
	MarginCost() float64
	LineQty() float64
}

// SumMargin aggregates LineMargin over all lines.
func SumMargin[L MarginLine](lines []L) float64 {
	total := 0.0
	for _, l := range lines {
		total += LineMargin(l.MarginRetail(), l.MarginCost(), l.LineQty())
	}
	return total
}

// EffectiveMargin applies the cached-value-wins policy: a persisted non-zero
// total margin takes precedence over recomputation, and a stale cache is
// never invalidated automatically.
func EffectiveMargin(stored float64, recompute func() float64) float64 {
	if stored != 0 {
		return stored
	}
	return recompute()
}

// GrandTotal computes a bill's payable amount: product total minus every
// adjustment total minus the percentage discount taken on the product total.
func GrandTotal(productTotal, discountTotal, freeIssueTotal, expireTotal, percentageDiscount float64) float64 {
	return productTotal - discountTotal - freeIssueTotal - expireTotal - productTotal*percentageDiscount/100
}
