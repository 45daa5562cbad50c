package billing

import (
	"sort"
	"strconv"
)

// ConsolidationLine is one order line item feeding a loading-sheet unit:
// a (product, option) pair with a quantity and, optionally, the
// bottles-per-case divisor that line was tagged with.
type ConsolidationLine struct {
	ProductID      string
	OptionID       string
	Qty            float64
	BottlesPerCase *int
}

// ConsolidatedProduct is one (option, product) group summed across every
// contributing bill. BottlesPerCase, CaseCount and ExtraBottles are nil when
// no divisor was chosen: the "N/A" state, distinct from a zero-case split.
type ConsolidatedProduct struct {
	OptionID       string  `json:"option_id"`
	ProductID      string  `json:"product_id"`
	TotalQty       float64 `json:"total_qty"`
	BottlesPerCase *int    `json:"bottles_per_case"`
	CaseCount      *int    `json:"case_count"`
	ExtraBottles   *int    `json:"extra_bottles"`
}

// Consolidate groups line items from any number of bills by option, then by
// product within each option, summing quantities across all contributing
// lines. The bottles-per-case divisor of a group is taken from the FIRST
// encountered line in that group; later conflicting values are silently
// discarded. First-wins is required behavior, not an accident of iteration:
// callers rely on the divisor of the earliest bill in the sheet.
//
// Summed quantities are therefore commutative across bill order, but the
// chosen divisor legitimately is not.
func Consolidate(lines []ConsolidationLine) []ConsolidatedProduct {
	type key struct{ optionID, productID string }
	groups := map[key]*ConsolidatedProduct{}
	var order []key

	for _, l := range lines {
		k := key{l.OptionID, l.ProductID}
		g, ok := groups[k]
		if !ok {
			g = &ConsolidatedProduct{OptionID: l.OptionID, ProductID: l.ProductID}
			groups[k] = g
			order = append(order, k)
		}
		g.TotalQty += l.Qty
		if g.BottlesPerCase == nil && l.BottlesPerCase != nil {
			bpc := *l.BottlesPerCase
			g.BottlesPerCase = &bpc
		}
	}

	out := make([]ConsolidatedProduct, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if split := SplitCases(g.TotalQty, g.BottlesPerCase); split != nil {
			g.CaseCount = &split.Cases
			g.ExtraBottles = &split.ExtraBottles
		}
		out = append(out, *g)
	}
	SortByOptionSize(out)
	return out
}

// CaseSplit is a flat bottle quantity converted into whole cases plus
// remainder bottles.
type CaseSplit struct {
	Cases        int
	ExtraBottles int
}

// AllowedDivisors is the enumerated set of bottles-per-case values offered to
// operators. The computation itself accepts any positive divisor.
var AllowedDivisors = []int{9, 12, 15, 24, 30}

// ValidDivisor reports whether n is one of the offered bottles-per-case values.
func ValidDivisor(n int) bool {
	for _, d := range AllowedDivisors {
		if n == d {
			return true
		}
	}
	return false
}

// SplitCases divides a summed bottle quantity by a bottles-per-case divisor.
// A nil or non-positive divisor yields nil, the N/A sentinel. Callers must
// branch on nil rather than treat it as a zero-case split.
func SplitCases(totalQty float64, bottlesPerCase *int) *CaseSplit {
	if bottlesPerCase == nil || *bottlesPerCase <= 0 {
		return nil
	}
	qty := int(totalQty)
	return &CaseSplit{
		Cases:        qty / *bottlesPerCase,
		ExtraBottles: qty % *bottlesPerCase,
	}
}

// OptionSizePrefix parses the leading integer of an option ID ("200ML" -> 200).
// Options without a numeric prefix sort after all numeric ones.
func OptionSizePrefix(optionID string) (int, bool) {
	i := 0
	for i < len(optionID) && optionID[i] >= '0' && optionID[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(optionID[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortByOptionSize orders consolidated groups by the numeric prefix embedded
// in the option ID ("200ML" before "500ML"), keeping products within the same
// option in product-ID order.
func SortByOptionSize(groups []ConsolidatedProduct) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].OptionID != groups[j].OptionID {
			return optionLess(groups[i].OptionID, groups[j].OptionID)
		}
		return groups[i].ProductID < groups[j].ProductID
	})
}

// SortWaterLast orders like SortByOptionSize but forces the option named
// exactly "WATER" to the end regardless of any numeric prefix. Only the bill
// review screen uses this ordering.
func SortWaterLast(groups []ConsolidatedProduct) {
	sort.SliceStable(groups, func(i, j int) bool {
		iw, jw := groups[i].OptionID == "WATER", groups[j].OptionID == "WATER"
		if iw != jw {
			return jw
		}
		if groups[i].OptionID != groups[j].OptionID {
			return optionLess(groups[i].OptionID, groups[j].OptionID)
		}
		return groups[i].ProductID < groups[j].ProductID
	})
}

func optionLess(a, b string) bool {
	na, oka := OptionSizePrefix(a)
	nb, okb := OptionSizePrefix(b)
	if oka && okb {
		if na != nb {
			return na < nb
		}
		return a < b
	}
	if oka != okb {
		return oka
	}
	return a < b
}
