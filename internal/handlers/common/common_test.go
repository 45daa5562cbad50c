package common

import (
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/testutil"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

func newTestHandler(t *testing.T) (*Handler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })
	return &Handler{DB: db, Hub: websocket.NewHub()}, db
}

func seedBill(t *testing.T, db *sql.DB, id, billNo, date string, price, qty float64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO bills (id, bill_no, outlet_name, create_date, created_by) VALUES (?, ?, 'Test Outlet', ?, 'admin')`,
		id, billNo, date)
	if err != nil {
		t.Fatalf("Failed to seed bill: %v", err)
	}
	if _, err := db.Exec("INSERT INTO bill_lines (bill_id, product_id, option_id, price, qty) VALUES (?, 'PRD-001', '500ML', ?, ?)",
		id, price, qty); err != nil {
		t.Fatalf("Failed to seed bill line: %v", err)
	}
}

func seedPayment(t *testing.T, db *sql.DB, number, billID, date string, amount float64) {
	t.Helper()
	_, err := db.Exec("INSERT INTO payments (payment_number, bill_id, payment_date, amount, created_by) VALUES (?, ?, ?, ?, 'admin')",
		number, billID, date, amount)
	if err != nil {
		t.Fatalf("Failed to seed payment: %v", err)
	}
}

func TestDashboard(t *testing.T) {
	h, db := newTestHandler(t)
	today := time.Now().Format("2006-01-02")
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 500)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "200ML", 120, 100, 30)
	seedBill(t, db, "BILL-0001", "INV00001", today, 220, 10)
	seedPayment(t, db, "PAY-2026-0001", "BILL-0001", today, 250)

	w := httptest.NewRecorder()
	h.Dashboard(w, testutil.AuthedRequest("GET", "/api/v1/dashboard", nil, ""))
	testutil.AssertStatus(t, w, 200)

	var d map[string]interface{}
	testutil.DecodeEnvelope(t, w, &d)

	if d["bill_count"].(float64) != 1 || d["bills_today"].(float64) != 1 {
		t.Errorf("Expected 1 bill counted today, got %v/%v", d["bill_count"], d["bills_today"])
	}
	if d["product_count"].(float64) != 1 {
		t.Errorf("Expected 1 product, got %v", d["product_count"])
	}
	if d["total_stock"].(float64) != 530 {
		t.Errorf("Expected total stock 530, got %v", d["total_stock"])
	}
	// Only the 30-bottle option sits under the default threshold of 50
	if d["low_stock_count"].(float64) != 1 {
		t.Errorf("Expected 1 low stock option, got %v", d["low_stock_count"])
	}
	if d["payments_today"].(float64) != 250 {
		t.Errorf("Expected payments today 250, got %v", d["payments_today"])
	}
	if d["total_outstanding"].(float64) != 1950 {
		t.Errorf("Expected outstanding 1950, got %v", d["total_outstanding"])
	}
}

func TestOutstandingReport_SkipsSettledBills(t *testing.T) {
	h, db := newTestHandler(t)
	seedBill(t, db, "BILL-0001", "INV00001", "2026-08-01", 220, 10)
	seedBill(t, db, "BILL-0002", "INV00002", "2026-08-02", 100, 5)
	seedPayment(t, db, "PAY-2026-0001", "BILL-0002", "2026-08-10", 500)

	w := httptest.NewRecorder()
	h.OutstandingReport(w, testutil.AuthedRequest("GET", "/api/v1/reports/outstanding", nil, ""))
	testutil.AssertStatus(t, w, 200)

	var items []map[string]interface{}
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("Expected 1 outstanding bill, got %d", len(items))
	}
	if items[0]["bill_no"] != "INV00001" || items[0]["balance"].(float64) != 2200 {
		t.Errorf("Expected INV00001 with balance 2200, got %v", items[0])
	}
}

func TestProductMarginsReport(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 500)

	w := httptest.NewRecorder()
	h.ProductMarginsReport(w, testutil.AuthedRequest("GET", "/api/v1/reports/product-margins", nil, ""))
	testutil.AssertStatus(t, w, 200)

	var items []map[string]interface{}
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("Expected 1 margin row, got %d", len(items))
	}
	if items[0]["margin"].(float64) != 40 {
		t.Errorf("Expected per-bottle margin 40, got %v", items[0]["margin"])
	}
}

func TestLowStockReport_DefaultThreshold(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 500)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "200ML", 120, 100, 30)

	w := httptest.NewRecorder()
	h.LowStockReport(w, testutil.AuthedRequest("GET", "/api/v1/reports/low-stock", nil, ""))
	testutil.AssertStatus(t, w, 200)

	var items []map[string]interface{}
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("Expected 1 low stock row, got %d", len(items))
	}
	if items[0]["option_name"] != "200ML" || items[0]["threshold"].(float64) != 50 {
		t.Errorf("Expected 200ML under default threshold 50, got %v", items[0])
	}
}

func TestLowStockReport_ConfiguredThreshold(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 30)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "200ML", 120, 100, 10)
	if _, err := db.Exec("INSERT INTO app_settings (key, value) VALUES ('low_stock_threshold', '20')"); err != nil {
		t.Fatalf("Failed to set threshold: %v", err)
	}

	w := httptest.NewRecorder()
	h.LowStockReport(w, testutil.AuthedRequest("GET", "/api/v1/reports/low-stock", nil, ""))

	var items []map[string]interface{}
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("Expected 1 row under threshold 20, got %d", len(items))
	}
	if items[0]["option_name"] != "200ML" {
		t.Errorf("Expected only 200ML, got %v", items[0]["option_name"])
	}
}

func TestSaleSummaryReport_UnitFilter(t *testing.T) {
	h, db := newTestHandler(t)
	db.Exec(`INSERT INTO sale_summaries (unit_id, option_id, product_id, loading_qty, sale_qty, sales_value, margin)
		VALUES ('UNIT-001', '500ML', 'PRD-001', 20, 15, 3300, 600)`)
	db.Exec(`INSERT INTO sale_summaries (unit_id, option_id, product_id, loading_qty, sale_qty, sales_value, margin)
		VALUES ('UNIT-002', '200ML', 'PRD-001', 10, 10, 1200, 200)`)

	w := httptest.NewRecorder()
	h.SaleSummaryReport(w, testutil.AuthedRequest("GET", "/api/v1/reports/sale-summary", nil, ""))
	var items []models.SaleSummaryRow
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 2 {
		t.Fatalf("Expected 2 rows unfiltered, got %d", len(items))
	}

	w = httptest.NewRecorder()
	h.SaleSummaryReport(w, testutil.AuthedRequest("GET", "/api/v1/reports/sale-summary?unit_id=UNIT-001", nil, ""))
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 1 || items[0].UnitID != "UNIT-001" || items[0].Margin != 600 {
		t.Errorf("Expected single UNIT-001 row with margin 600, got %+v", items)
	}
}

func TestExportStock_CSV(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 500)

	w := httptest.NewRecorder()
	h.ExportStock(w, testutil.AuthedRequest("GET", "/api/v1/export/stock", nil, ""))
	testutil.AssertStatus(t, w, 200)

	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %s", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Product ID") || !strings.Contains(body, "Pepsi") {
		t.Errorf("Expected header and product row in CSV, got %q", body)
	}
	if !strings.Contains(body, "40.00") {
		t.Error("Expected derived margin column in CSV")
	}
}

func TestExportBills_XLSX(t *testing.T) {
	h, db := newTestHandler(t)
	seedBill(t, db, "BILL-0001", "INV00001", "2026-08-01", 220, 10)

	w := httptest.NewRecorder()
	h.ExportBills(w, testutil.AuthedRequest("GET", "/api/v1/export/bills?format=xlsx", nil, ""))
	testutil.AssertStatus(t, w, 200)

	want := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if ct := w.Header().Get("Content-Type"); ct != want {
		t.Errorf("Expected xlsx content type, got %s", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("Expected non-empty workbook")
	}
}

func TestCreateUser(t *testing.T) {
	h, db := newTestHandler(t)

	body := map[string]interface{}{"username": "sampath", "password": "longenough1", "display_name": "Sampath"}
	w := httptest.NewRecorder()
	h.CreateUser(w, testutil.AuthedJSONRequest("POST", "/api/v1/users", body, ""))
	testutil.AssertStatus(t, w, 200)

	var u models.User
	testutil.DecodeEnvelope(t, w, &u)
	if u.Role != "user" {
		t.Errorf("Expected default role user, got %s", u.Role)
	}
	if u.Active != 1 {
		t.Errorf("Expected new user active, got %d", u.Active)
	}

	var hash string
	db.QueryRow("SELECT password_hash FROM users WHERE username = 'sampath'").Scan(&hash)
	if hash == "" || hash == "longenough1" {
		t.Error("Expected stored password to be hashed")
	}

	// Duplicate username
	w = httptest.NewRecorder()
	h.CreateUser(w, testutil.AuthedJSONRequest("POST", "/api/v1/users", body, ""))
	testutil.AssertStatus(t, w, 400)
}

func TestCreateUser_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	bad := []map[string]interface{}{
		{"username": "", "password": "longenough1"},
		{"username": "shortpw", "password": "short"},
		{"username": "badrole", "password": "longenough1", "role": "superadmin"},
	}
	for i, body := range bad {
		w := httptest.NewRecorder()
		h.CreateUser(w, testutil.AuthedJSONRequest("POST", "/api/v1/users", body, ""))
		if w.Code != 400 {
			t.Errorf("Case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestUpdateUser_DeactivationKillsSessions(t *testing.T) {
	h, db := newTestHandler(t)
	userID := testutil.CreateTestUser(t, db, "kasun", "longenough1", "user", true)
	testutil.CreateTestSessionSimple(t, db, userID)

	zero := 0
	body := map[string]interface{}{"active": &zero}
	w := httptest.NewRecorder()
	h.UpdateUser(w, testutil.AuthedJSONRequest("PUT", "/api/v1/users/2", body, ""), "2")
	testutil.AssertStatus(t, w, 200)

	var sessions int
	db.QueryRow("SELECT COUNT(*) FROM sessions WHERE user_id = ?", userID).Scan(&sessions)
	if sessions != 0 {
		t.Errorf("Expected sessions removed on deactivation, got %d", sessions)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.UpdateUser(w, testutil.AuthedJSONRequest("PUT", "/api/v1/users/99", map[string]interface{}{"role": "admin"}, ""), "99")
	testutil.AssertStatus(t, w, 404)
}

func TestDeleteUser(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.CreateTestUser(t, db, "kasun", "longenough1", "user", true)

	// The seeded admin cannot be removed
	w := httptest.NewRecorder()
	h.DeleteUser(w, testutil.AuthedRequest("DELETE", "/api/v1/users/1", nil, ""), "1")
	testutil.AssertStatus(t, w, 400)

	w = httptest.NewRecorder()
	h.DeleteUser(w, testutil.AuthedRequest("DELETE", "/api/v1/users/2", nil, ""), "2")
	testutil.AssertStatus(t, w, 200)

	w = httptest.NewRecorder()
	h.DeleteUser(w, testutil.AuthedRequest("DELETE", "/api/v1/users/2", nil, ""), "2")
	testutil.AssertStatus(t, w, 404)
}

func TestGenerateLowStockNotifications(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.SeedProduct(t, db, "PRD-001", "Pepsi", "500ML", 220, 180, 30)

	h.GenerateNotifications()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM notifications WHERE type = 'low_stock'").Scan(&count)
	if count != 1 {
		t.Fatalf("Expected 1 low stock notification, got %d", count)
	}

	// Unread notification suppresses a duplicate
	h.GenerateNotifications()
	db.QueryRow("SELECT COUNT(*) FROM notifications WHERE type = 'low_stock'").Scan(&count)
	if count != 1 {
		t.Errorf("Expected no duplicate while unread, got %d", count)
	}

	// Once read, a persisting condition flags again
	var id int
	db.QueryRow("SELECT id FROM notifications WHERE type = 'low_stock'").Scan(&id)
	db.Exec("UPDATE notifications SET read_at = CURRENT_TIMESTAMP WHERE id = ?", id)
	h.GenerateNotifications()
	db.QueryRow("SELECT COUNT(*) FROM notifications WHERE type = 'low_stock'").Scan(&count)
	if count != 2 {
		t.Errorf("Expected re-notification after read, got %d", count)
	}
}

func TestGenerateOverdueNotifications(t *testing.T) {
	h, db := newTestHandler(t)
	old := time.Now().AddDate(0, 0, -20).Format("2006-01-02")
	seedBill(t, db, "BILL-0001", "INV00001", old, 220, 10)
	seedBill(t, db, "BILL-0002", "INV00002", old, 100, 5)
	seedPayment(t, db, "PAY-2026-0001", "BILL-0002", old, 500)

	h.GenerateNotifications()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM notifications WHERE type = 'overdue_bill'").Scan(&count)
	if count != 1 {
		t.Fatalf("Expected 1 overdue notification, got %d", count)
	}
	var recordID string
	db.QueryRow("SELECT record_id FROM notifications WHERE type = 'overdue_bill'").Scan(&recordID)
	if recordID != "BILL-0001" {
		t.Errorf("Expected overdue flag on BILL-0001, got %s", recordID)
	}

	// An existing flag is never duplicated, even unread
	h.GenerateNotifications()
	db.QueryRow("SELECT COUNT(*) FROM notifications WHERE type = 'overdue_bill'").Scan(&count)
	if count != 1 {
		t.Errorf("Expected no duplicate overdue flag, got %d", count)
	}
}

func TestNotificationReadFlow(t *testing.T) {
	h, db := newTestHandler(t)
	db.Exec("INSERT INTO notifications (type, title) VALUES ('low_stock', 'Low stock: Pepsi 500ML')")
	db.Exec("INSERT INTO notifications (type, title) VALUES ('overdue_bill', 'Overdue balance: INV00001')")

	w := httptest.NewRecorder()
	h.ListNotifications(w, testutil.AuthedRequest("GET", "/api/v1/notifications?unread=true", nil, ""))
	var items []models.Notification
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 2 {
		t.Fatalf("Expected 2 unread, got %d", len(items))
	}

	w = httptest.NewRecorder()
	h.MarkNotificationRead(w, testutil.AuthedRequest("POST", "/api/v1/notifications/1/read", nil, ""), "1")
	testutil.AssertStatus(t, w, 200)

	// Marking twice is a 404, the row is no longer unread
	w = httptest.NewRecorder()
	h.MarkNotificationRead(w, testutil.AuthedRequest("POST", "/api/v1/notifications/1/read", nil, ""), "1")
	testutil.AssertStatus(t, w, 404)

	w = httptest.NewRecorder()
	h.MarkAllNotificationsRead(w, testutil.AuthedRequest("POST", "/api/v1/notifications/read-all", nil, ""))
	testutil.AssertStatus(t, w, 200)

	w = httptest.NewRecorder()
	h.ListNotifications(w, testutil.AuthedRequest("GET", "/api/v1/notifications?unread=true", nil, ""))
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 0 {
		t.Errorf("Expected no unread after read-all, got %d", len(items))
	}
}

func TestListAudit_Filters(t *testing.T) {
	h, db := newTestHandler(t)
	db.Exec("INSERT INTO audit_log (username, action, module, record_id, summary) VALUES ('admin', 'create', 'bills', 'BILL-0001', 'Created bill INV00001')")
	db.Exec("INSERT INTO audit_log (username, action, module, record_id, summary) VALUES ('kasun', 'update', 'products', 'PRD-001', 'Updated product')")
	db.Exec("INSERT INTO audit_log (username, action, module, record_id, summary) VALUES ('admin', 'delete', 'bills', 'BILL-0002', 'Deleted bill INV00002')")

	w := httptest.NewRecorder()
	h.ListAudit(w, testutil.AuthedRequest("GET", "/api/v1/audit", nil, ""))
	var items []models.AuditEntry
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(items))
	}
	// Newest first
	if items[0].RecordID != "BILL-0002" {
		t.Errorf("Expected newest entry first, got %s", items[0].RecordID)
	}

	w = httptest.NewRecorder()
	h.ListAudit(w, testutil.AuthedRequest("GET", "/api/v1/audit?module=bills&username=admin", nil, ""))
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 2 {
		t.Errorf("Expected 2 admin bill entries, got %d", len(items))
	}

	w = httptest.NewRecorder()
	h.ListAudit(w, testutil.AuthedRequest("GET", "/api/v1/audit?limit=1", nil, ""))
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 1 {
		t.Errorf("Expected limit applied, got %d", len(items))
	}
}
