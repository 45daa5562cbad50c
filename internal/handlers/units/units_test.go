package units

import (
	"database/sql"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/testutil"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

func newTestHandler(t *testing.T) (*Handler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })
	h := &Handler{DB: db, Hub: websocket.NewHub(), NextID: testNextID(db)}
	return h, db
}

func testNextID(db *sql.DB) NextIDFunc {
	return func(prefix, table string, digits int) string {
		var maxID sql.NullString
		db.QueryRow("SELECT id FROM "+table+" WHERE id LIKE ? ORDER BY id DESC LIMIT 1", prefix+"-%").Scan(&maxID)
		next := 1
		if maxID.Valid {
			parts := strings.Split(maxID.String, "-")
			if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
				next = n + 1
			}
		}
		return fmt.Sprintf("%s-%0*d", prefix, digits, next)
	}
}

type seedLine struct {
	productID, optionID string
	price, qty          float64
}

func seedBillWithLines(t *testing.T, db *sql.DB, id, billNo string, margin float64, lines ...seedLine) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO bills (id, bill_no, customer_id, outlet_name, address, contact, sales_ref, ref_contact,
		create_date, percentage_discount, print_status, total_margin, created_by, created_at, updated_at)
		VALUES (?, ?, '', 'Test Outlet', '', '', '', '', '2026-08-01', 0, 0, ?, 'admin', '2026-08-01 10:00:00', '2026-08-01 10:00:00')`,
		id, billNo, margin)
	if err != nil {
		t.Fatalf("Failed to seed bill: %v", err)
	}
	for _, l := range lines {
		_, err := db.Exec("INSERT INTO bill_lines (bill_id, product_id, option_id, price, qty) VALUES (?, ?, ?, ?, ?)",
			id, l.productID, l.optionID, l.price, l.qty)
		if err != nil {
			t.Fatalf("Failed to seed bill line: %v", err)
		}
	}
}

func assignCase(t *testing.T, db *sql.DB, option string, bpc int) {
	t.Helper()
	if _, err := db.Exec("INSERT INTO bottle_case_assignments (option_name, bottles_per_case) VALUES (?, ?)", option, bpc); err != nil {
		t.Fatalf("Failed to seed case assignment: %v", err)
	}
}

func createUnit(t *testing.T, h *Handler, billIDs ...string) models.Unit {
	t.Helper()
	body := map[string]interface{}{
		"date":        "2026-08-05",
		"driver_name": "Kamal",
		"route":       "Colombo North",
		"bill_ids":    billIDs,
	}
	req := testutil.AuthedJSONRequest("POST", "/api/v1/units", body, "")
	w := httptest.NewRecorder()
	h.CreateUnit(w, req)
	testutil.AssertStatus(t, w, 200)
	var u models.Unit
	testutil.DecodeEnvelope(t, w, &u)
	return u
}

func TestCreateUnit_ConsolidatesAcrossBills(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 500)
	assignCase(t, db, "500ML", 12)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0, seedLine{"PRD-001", "500ML", 220, 13})
	seedBillWithLines(t, db, "BILL-0002", "INV00002", 0, seedLine{"PRD-001", "500ML", 220, 12})

	u := createUnit(t, h, "BILL-0001", "BILL-0002")

	if u.ID != "UNIT-001" {
		t.Errorf("Expected id UNIT-001, got %s", u.ID)
	}
	if u.UnitID != "UNIT1" {
		t.Errorf("Expected label UNIT1, got %s", u.UnitID)
	}
	if len(u.Consolidated) != 1 {
		t.Fatalf("Expected 1 consolidated group, got %d", len(u.Consolidated))
	}
	c := u.Consolidated[0]
	if c.TotalQty != 25 {
		t.Errorf("Expected total 25 bottles, got %v", c.TotalQty)
	}
	// 25 bottles at 12 per case: 2 cases, 1 extra
	if c.BottlesPerCase == nil || *c.BottlesPerCase != 12 {
		t.Fatalf("Expected bottles per case 12, got %v", c.BottlesPerCase)
	}
	if *c.CaseCount != 2 || *c.ExtraBottles != 1 {
		t.Errorf("Expected 2 cases + 1 extra, got %d/%d", *c.CaseCount, *c.ExtraBottles)
	}

	u2 := createUnit(t, h, "BILL-0001")
	if u2.UnitID != "UNIT2" {
		t.Errorf("Expected second label UNIT2, got %s", u2.UnitID)
	}
}

func TestCreateUnit_UnassignedOptionIsNA(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-003", "Drinking Water", "WATER", 90, 70, 500)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0, seedLine{"PRD-003", "WATER", 90, 40})

	u := createUnit(t, h, "BILL-0001")

	if len(u.Consolidated) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(u.Consolidated))
	}
	c := u.Consolidated[0]
	if c.BottlesPerCase != nil || c.CaseCount != nil || c.ExtraBottles != nil {
		t.Errorf("Expected nil split for unassigned option, got %+v", c)
	}
}

func TestCreateUnit_SortsByOptionSize(t *testing.T) {
	h, db := newTestHandler(t)
	assignCase(t, db, "200ML", 24)
	assignCase(t, db, "500ML", 12)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0,
		seedLine{"PRD-001", "500ML", 220, 10},
		seedLine{"PRD-001", "200ML", 120, 10},
	)

	u := createUnit(t, h, "BILL-0001")

	if len(u.Consolidated) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(u.Consolidated))
	}
	if u.Consolidated[0].OptionID != "200ML" || u.Consolidated[1].OptionID != "500ML" {
		t.Errorf("Expected 200ML before 500ML, got %s, %s", u.Consolidated[0].OptionID, u.Consolidated[1].OptionID)
	}
}

func TestCreateUnit_MarginFromStoredBills(t *testing.T) {
	h, db := newTestHandler(t)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 400, seedLine{"PRD-001", "500ML", 220, 10})
	seedBillWithLines(t, db, "BILL-0002", "INV00002", 150, seedLine{"PRD-001", "500ML", 220, 5})

	u := createUnit(t, h, "BILL-0001", "BILL-0002")

	if u.TotalMargin != 550 {
		t.Errorf("Expected unit margin 550 from stored bill margins, got %v", u.TotalMargin)
	}
}

func TestCreateUnit_RejectsMissingBill(t *testing.T) {
	h, _ := newTestHandler(t)

	body := map[string]interface{}{
		"date":     "2026-08-05",
		"bill_ids": []string{"BILL-9999"},
	}
	req := testutil.AuthedJSONRequest("POST", "/api/v1/units", body, "")
	w := httptest.NewRecorder()
	h.CreateUnit(w, req)
	testutil.AssertStatus(t, w, 400)

	body["bill_ids"] = []string{}
	w = httptest.NewRecorder()
	h.CreateUnit(w, testutil.AuthedJSONRequest("POST", "/api/v1/units", body, ""))
	testutil.AssertStatus(t, w, 400)
}

func TestUpdateUnit_RebuildsConsolidation(t *testing.T) {
	h, db := newTestHandler(t)
	assignCase(t, db, "500ML", 12)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0, seedLine{"PRD-001", "500ML", 220, 13})
	seedBillWithLines(t, db, "BILL-0002", "INV00002", 0, seedLine{"PRD-001", "500ML", 220, 12})

	u := createUnit(t, h, "BILL-0001", "BILL-0002")

	body := map[string]interface{}{
		"date":        "2026-08-06",
		"driver_name": "Nimal",
		"route":       "Kandy",
		"bill_ids":    []string{"BILL-0001"},
	}
	req := testutil.AuthedJSONRequest("PUT", "/api/v1/units/"+u.ID, body, "")
	w := httptest.NewRecorder()
	h.UpdateUnit(w, req, u.ID)
	testutil.AssertStatus(t, w, 200)

	var updated models.Unit
	testutil.DecodeEnvelope(t, w, &updated)
	if len(updated.BillIDs) != 1 || updated.BillIDs[0] != "BILL-0001" {
		t.Errorf("Expected bill set replaced, got %v", updated.BillIDs)
	}
	if updated.Consolidated[0].TotalQty != 13 {
		t.Errorf("Expected rebuilt total 13, got %v", updated.Consolidated[0].TotalQty)
	}
}

func TestUpdateCaseSplit(t *testing.T) {
	h, db := newTestHandler(t)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0, seedLine{"PRD-003", "WATER", 90, 40})
	u := createUnit(t, h, "BILL-0001")

	// Invalid divisor
	body := map[string]interface{}{"option_id": "WATER", "product_id": "PRD-003", "bottles_per_case": 10}
	req := testutil.AuthedJSONRequest("PUT", "/api/v1/units/"+u.ID+"/case-split", body, "")
	w := httptest.NewRecorder()
	h.UpdateCaseSplit(w, req, u.ID)
	testutil.AssertStatus(t, w, 400)

	// 40 bottles at 15 per case: 2 cases, 10 extra
	body["bottles_per_case"] = 15
	w = httptest.NewRecorder()
	h.UpdateCaseSplit(w, testutil.AuthedJSONRequest("PUT", "/api/v1/units/"+u.ID+"/case-split", body, ""), u.ID)
	testutil.AssertStatus(t, w, 200)

	var updated models.Unit
	testutil.DecodeEnvelope(t, w, &updated)
	c := updated.Consolidated[0]
	if c.BottlesPerCase == nil || *c.BottlesPerCase != 15 || *c.CaseCount != 2 || *c.ExtraBottles != 10 {
		t.Errorf("Expected 15/2/10 split, got %+v", c)
	}

	// Unknown group
	body["option_id"] = "XL"
	w = httptest.NewRecorder()
	h.UpdateCaseSplit(w, testutil.AuthedJSONRequest("PUT", "/api/v1/units/"+u.ID+"/case-split", body, ""), u.ID)
	testutil.AssertStatus(t, w, 404)
}

func TestReviewLifecycle(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 500)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0, seedLine{"PRD-001", "500ML", 220, 20})
	u := createUnit(t, h, "BILL-0001")

	// First GET materializes the review with loading from the bills
	req := testutil.AuthedRequest("GET", "/api/v1/units/"+u.ID+"/review", nil, "")
	w := httptest.NewRecorder()
	h.GetReview(w, req, u.ID)
	testutil.AssertStatus(t, w, 200)

	var rv models.BillReview
	testutil.DecodeEnvelope(t, w, &rv)
	if rv.IsSaved {
		t.Error("Expected new review unsaved")
	}
	if len(rv.Lines) != 1 {
		t.Fatalf("Expected 1 review line, got %d", len(rv.Lines))
	}
	line := rv.Lines[0]
	if float64(line.LoadingQty) != 20 || float64(line.UnloadingBT) != 0 || line.SaleBT != 20 {
		t.Errorf("Expected loading 20, unloading 0, sale 20, got %+v", line)
	}

	// Save with unloading counts
	body := map[string]interface{}{
		"lines": []map[string]interface{}{
			{"id": line.ID, "unloading_bt": 5},
		},
	}
	w = httptest.NewRecorder()
	h.SaveReview(w, testutil.AuthedJSONRequest("PUT", "/api/v1/units/"+u.ID+"/review", body, ""), u.ID)
	testutil.AssertStatus(t, w, 200)

	testutil.DecodeEnvelope(t, w, &rv)
	if !rv.IsSaved {
		t.Error("Expected review saved")
	}
	line = rv.Lines[0]
	if line.SaleBT != 15 || line.SalesValue != 3300 {
		t.Errorf("Expected sale 15 worth 3300, got %v/%v", line.SaleBT, line.SalesValue)
	}

	// Sale summary written: 15 sold, margin (220-180)*15
	var saleQty, margin float64
	db.QueryRow("SELECT sale_qty, margin FROM sale_summaries WHERE unit_id = ?", u.ID).Scan(&saleQty, &margin)
	if saleQty != 15 || margin != 600 {
		t.Errorf("Expected summary 15/600, got %v/%v", saleQty, margin)
	}

	// A saved review rejects another save
	w = httptest.NewRecorder()
	h.SaveReview(w, testutil.AuthedJSONRequest("PUT", "/api/v1/units/"+u.ID+"/review", body, ""), u.ID)
	testutil.AssertStatus(t, w, 400)

	// Reopen, adjust, save again replaces the summary
	w = httptest.NewRecorder()
	h.ReopenReview(w, testutil.AuthedRequest("POST", "/api/v1/units/"+u.ID+"/review/reopen", nil, ""), u.ID)
	testutil.AssertStatus(t, w, 200)

	body["lines"] = []map[string]interface{}{{"id": line.ID, "unloading_bt": 8}}
	w = httptest.NewRecorder()
	h.SaveReview(w, testutil.AuthedJSONRequest("PUT", "/api/v1/units/"+u.ID+"/review", body, ""), u.ID)
	testutil.AssertStatus(t, w, 200)

	var count int
	db.QueryRow("SELECT COUNT(*) FROM sale_summaries WHERE unit_id = ?", u.ID).Scan(&count)
	if count != 1 {
		t.Errorf("Expected summary replaced, got %d rows", count)
	}
	db.QueryRow("SELECT sale_qty FROM sale_summaries WHERE unit_id = ?", u.ID).Scan(&saleQty)
	if saleQty != 12 {
		t.Errorf("Expected sale qty 12 after resave, got %v", saleQty)
	}
}

func TestReopenReview_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.ReopenReview(w, testutil.AuthedRequest("POST", "/api/v1/units/UNIT-999/review/reopen", nil, ""), "UNIT-999")
	testutil.AssertStatus(t, w, 404)
}

func TestReview_WaterSortsLast(t *testing.T) {
	h, db := newTestHandler(t)
	assignCase(t, db, "200ML", 24)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0,
		seedLine{"PRD-003", "WATER", 90, 10},
		seedLine{"PRD-001", "200ML", 120, 10},
	)
	u := createUnit(t, h, "BILL-0001")

	w := httptest.NewRecorder()
	h.GetReview(w, testutil.AuthedRequest("GET", "/api/v1/units/"+u.ID+"/review", nil, ""), u.ID)
	var rv models.BillReview
	testutil.DecodeEnvelope(t, w, &rv)

	if len(rv.Consolidated) != 2 {
		t.Fatalf("Expected 2 consolidated groups, got %d", len(rv.Consolidated))
	}
	if rv.Consolidated[1].OptionID != "WATER" {
		t.Errorf("Expected WATER last on the review screen, got %v", rv.Consolidated[1].OptionID)
	}
}

func TestPrintUnit_RendersNA(t *testing.T) {
	h, db := newTestHandler(t)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0, seedLine{"PRD-003", "WATER", 90, 40})
	u := createUnit(t, h, "BILL-0001")

	req := testutil.AuthedRequest("GET", "/api/v1/units/"+u.ID+"/print", nil, "")
	w := httptest.NewRecorder()
	h.PrintUnit(w, req, u.ID)
	testutil.AssertStatus(t, w, 200)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected text/html, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "N/A") {
		t.Error("Expected N/A for the unassigned option")
	}
}

func TestDeleteUnit(t *testing.T) {
	h, db := newTestHandler(t)
	seedBillWithLines(t, db, "BILL-0001", "INV00001", 0, seedLine{"PRD-001", "500ML", 220, 5})
	u := createUnit(t, h, "BILL-0001")

	w := httptest.NewRecorder()
	h.DeleteUnit(w, testutil.AuthedRequest("DELETE", "/api/v1/units/"+u.ID, nil, ""), u.ID)
	testutil.AssertStatus(t, w, 200)

	var count int
	db.QueryRow("SELECT COUNT(*) FROM unit_products WHERE unit_id = ?", u.ID).Scan(&count)
	if count != 0 {
		t.Errorf("Expected consolidated rows to cascade, got %d", count)
	}

	w = httptest.NewRecorder()
	h.DeleteUnit(w, testutil.AuthedRequest("DELETE", "/api/v1/units/"+u.ID, nil, ""), u.ID)
	testutil.AssertStatus(t, w, 404)
}
