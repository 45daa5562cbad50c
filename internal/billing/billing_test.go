package billing

import (
	"encoding/json"
	"testing"
)

func TestToNumber(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 12.5, 12.5},
		{"int", 7, 7},
		{"numeric string", "50", 50},
		{"decimal string", " 10.25 ", 10.25},
		{"empty string", "", 0},
		{"garbage string", "abc", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"json.Number", json.Number("3.5"), 3.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ToNumber(c.in); got != c.want {
				t.Errorf("ToNumber(%v) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestFlexUnmarshal(t *testing.T) {
	var payload struct {
		Price Flex `json:"price"`
		Qty   Flex `json:"qty"`
		Rate  Flex `json:"rate"`
		Empty Flex `json:"empty"`
	}
	body := `{"price":"100","qty":5,"rate":"","empty":null}`
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Price != 100 {
		t.Errorf("price = %v, want 100", payload.Price)
	}
	if payload.Qty != 5 {
		t.Errorf("qty = %v, want 5", payload.Qty)
	}
	if payload.Rate != 0 || payload.Empty != 0 {
		t.Errorf("empty/null fields should coerce to 0, got %v %v", payload.Rate, payload.Empty)
	}
}

type testLine struct {
	price, qty float64
}

func (l testLine) LinePrice() float64 { return l.price }
func (l testLine) LineQty() float64   { return l.qty }

func TestSumProductTotal(t *testing.T) {
	lines := []testLine{
		{price: 100, qty: 5},
		{price: 33.333, qty: 3},
	}
	got := SumProductTotal(lines)
	want := 100*5 + 33.333*3
	if got != want {
		t.Errorf("SumProductTotal = %v, want unrounded %v", got, want)
	}
	if Round2(got) != 599.99 {
		t.Errorf("Round2 = %v, want 599.99", Round2(got))
	}
}

type testAdj struct{ total float64 }

func (a testAdj) RowTotal() float64 { return a.total }

func TestSumAdjustmentTotal(t *testing.T) {
	rows := []testAdj{
		{total: AdjustmentRowTotal(2, 50)},
		{total: AdjustmentRowTotal(0, 50)}, // missing case count -> contributes 0
		{total: AdjustmentRowTotal(3, 0)},  // missing rate -> contributes 0
	}
	if got := SumAdjustmentTotal(rows); got != 100 {
		t.Errorf("SumAdjustmentTotal = %v, want 100", got)
	}
}

func TestLineMargin(t *testing.T) {
	cases := []struct {
		name               string
		retail, cost, qty  float64
		want               float64
	}{
		{"normal", 150, 120, 10, 300},
		{"zero cost forces zero", 150, 0, 10, 0},
		{"zero retail forces zero", 0, 120, 10, 0},
		{"both zero", 0, 0, 5, 0},
		{"negative spread allowed when both known", 100, 120, 2, -40},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := LineMargin(c.retail, c.cost, c.qty); got != c.want {
				t.Errorf("LineMargin(%v,%v,%v) = %v, want %v", c.retail, c.cost, c.qty, got, c.want)
			}
		})
	}
}

func TestEffectiveMargin(t *testing.T) {
	recomputed := false
	got := EffectiveMargin(250, func() float64 { recomputed = true; return 999 })
	if got != 250 || recomputed {
		t.Errorf("stored margin must win without recompute, got %v (recomputed=%v)", got, recomputed)
	}
	got = EffectiveMargin(0, func() float64 { return 42 })
	if got != 42 {
		t.Errorf("zero stored margin must fall back to recompute, got %v", got)
	}
}

func TestGrandTotal(t *testing.T) {
	// Bill with one 100x5 line and a 2-case discount at 50/case.
	product := SumProductTotal([]testLine{{price: 100, qty: 5}})
	if Round2(product) != 500.00 {
		t.Fatalf("product total = %v, want 500.00", Round2(product))
	}
	discount := SumAdjustmentTotal([]testAdj{{total: AdjustmentRowTotal(2, 50)}})
	if discount != 100.00 {
		t.Fatalf("discount total = %v, want 100.00", discount)
	}
	if got := Round2(GrandTotal(product, discount, 0, 0, 0)); got != 400.00 {
		t.Errorf("grand total = %v, want 400.00", got)
	}
	// 10% percentage discount on top.
	if got := Round2(GrandTotal(product, discount, 0, 0, 10)); got != 350.00 {
		t.Errorf("grand total with 10%% = %v, want 350.00", got)
	}
}
