package billing

import (
	"testing"
)

func intp(n int) *int { return &n }

func TestSplitCases(t *testing.T) {
	if got := SplitCases(10, nil); got != nil {
		t.Errorf("nil divisor must yield the N/A sentinel, got %+v", got)
	}
	if got := SplitCases(10, intp(0)); got != nil {
		t.Errorf("zero divisor must yield the N/A sentinel, got %+v", got)
	}
	if got := SplitCases(10, intp(3)); got == nil || got.Cases != 3 || got.ExtraBottles != 1 {
		t.Errorf("SplitCases(10,3) = %+v, want {3 1}", got)
	}
	if got := SplitCases(0, intp(5)); got == nil || got.Cases != 0 || got.ExtraBottles != 0 {
		t.Errorf("SplitCases(0,5) = %+v, want {0 0}", got)
	}
}

func TestValidDivisor(t *testing.T) {
	for _, d := range []int{9, 12, 15, 24, 30} {
		if !ValidDivisor(d) {
			t.Errorf("%d should be an allowed divisor", d)
		}
	}
	for _, d := range []int{0, 1, 10, 13, -12} {
		if ValidDivisor(d) {
			t.Errorf("%d should not be an allowed divisor", d)
		}
	}
}

func TestConsolidateSumsAcrossBills(t *testing.T) {
	// Two bills both containing option 200ML / product P1, only the first
	// tagging a divisor.
	billA := []ConsolidationLine{{ProductID: "P1", OptionID: "200ML", Qty: 10, BottlesPerCase: intp(12)}}
	billB := []ConsolidationLine{{ProductID: "P1", OptionID: "200ML", Qty: 15}}

	got := Consolidate(append(billA, billB...))
	if len(got) != 1 {
		t.Fatalf("expected 1 group, got %d", len(got))
	}
	g := got[0]
	if g.TotalQty != 25 {
		t.Errorf("total qty = %v, want 25", g.TotalQty)
	}
	if g.BottlesPerCase == nil || *g.BottlesPerCase != 12 {
		t.Errorf("bottles per case = %v, want 12", g.BottlesPerCase)
	}
	if g.CaseCount == nil || *g.CaseCount != 2 || g.ExtraBottles == nil || *g.ExtraBottles != 1 {
		t.Errorf("split = %v/%v, want 2/1", g.CaseCount, g.ExtraBottles)
	}
}

func TestConsolidateFirstDivisorWins(t *testing.T) {
	billA := []ConsolidationLine{{ProductID: "P1", OptionID: "200ML", Qty: 10, BottlesPerCase: intp(12)}}
	billB := []ConsolidationLine{{ProductID: "P1", OptionID: "200ML", Qty: 15, BottlesPerCase: intp(24)}}

	ab := Consolidate(append(append([]ConsolidationLine{}, billA...), billB...))
	ba := Consolidate(append(append([]ConsolidationLine{}, billB...), billA...))

	// Summed quantities are commutative across bill order.
	if ab[0].TotalQty != 25 || ba[0].TotalQty != 25 {
		t.Errorf("qty must be order independent: %v vs %v", ab[0].TotalQty, ba[0].TotalQty)
	}
	// The divisor legitimately is not: first encountered wins, later
	// conflicting values are dropped.
	if *ab[0].BottlesPerCase != 12 {
		t.Errorf("A-first divisor = %d, want 12", *ab[0].BottlesPerCase)
	}
	if *ba[0].BottlesPerCase != 24 {
		t.Errorf("B-first divisor = %d, want 24", *ba[0].BottlesPerCase)
	}
}

func TestConsolidateGroupsByOptionThenProduct(t *testing.T) {
	lines := []ConsolidationLine{
		{ProductID: "P2", OptionID: "500ML", Qty: 4},
		{ProductID: "P1", OptionID: "200ML", Qty: 10},
		{ProductID: "P2", OptionID: "200ML", Qty: 6},
		{ProductID: "P1", OptionID: "200ML", Qty: 5},
	}
	got := Consolidate(lines)
	if len(got) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(got))
	}
	// Numeric prefix ordering: 200ML before 500ML; products ordered within.
	wantOrder := []struct {
		option, product string
		qty             float64
	}{
		{"200ML", "P1", 15},
		{"200ML", "P2", 6},
		{"500ML", "P2", 4},
	}
	for i, w := range wantOrder {
		if got[i].OptionID != w.option || got[i].ProductID != w.product || got[i].TotalQty != w.qty {
			t.Errorf("group %d = %s/%s qty %v, want %s/%s qty %v",
				i, got[i].OptionID, got[i].ProductID, got[i].TotalQty, w.option, w.product, w.qty)
		}
	}
}

func TestSortWaterLast(t *testing.T) {
	groups := []ConsolidatedProduct{
		{OptionID: "WATER", ProductID: "P9"},
		{OptionID: "500ML", ProductID: "P2"},
		{OptionID: "200ML", ProductID: "P1"},
	}
	SortWaterLast(groups)
	if groups[0].OptionID != "200ML" || groups[1].OptionID != "500ML" || groups[2].OptionID != "WATER" {
		t.Errorf("unexpected order: %s, %s, %s", groups[0].OptionID, groups[1].OptionID, groups[2].OptionID)
	}

	// WATER stays last even against options with no numeric prefix.
	groups = []ConsolidatedProduct{
		{OptionID: "WATER", ProductID: "P9"},
		{OptionID: "SODA", ProductID: "P3"},
	}
	SortWaterLast(groups)
	if groups[len(groups)-1].OptionID != "WATER" {
		t.Errorf("WATER must sort last, got %s", groups[len(groups)-1].OptionID)
	}
}

func TestOptionSizePrefix(t *testing.T) {
	if n, ok := OptionSizePrefix("200ML"); !ok || n != 200 {
		t.Errorf("200ML -> %d %v", n, ok)
	}
	if n, ok := OptionSizePrefix("1500ML"); !ok || n != 1500 {
		t.Errorf("1500ML -> %d %v", n, ok)
	}
	if _, ok := OptionSizePrefix("WATER"); ok {
		t.Error("WATER has no numeric prefix")
	}
}
