// Package testutil provides shared helpers for handler tests: an in-memory
// SQLite database with the full schema, seeded auth, and envelope decoding.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// SetupTestDB creates a standard in-memory SQLite database for testing
// with foreign keys enabled and all tables created.
var testDBCounter int64

func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	// A shared-cache named memory DB is required: with a plain ":memory:"
	// DSN every pooled connection opens its own empty database, so nested
	// queries issued while iterating rows see no tables.
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	testDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}

	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	createTables(t, testDB)
	seedAdminUser(t, testDB)

	return testDB
}

func createTables(t *testing.T, db *sql.DB) {
	t.Helper()
	tables := []struct {
		name string
		ddl  string
	}{
		{"users", `CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT,
			role TEXT DEFAULT 'user',
			active INTEGER DEFAULT 1,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
		{"sessions", `CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			last_activity DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`},
		{"products", `CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status INTEGER DEFAULT 1 CHECK(status IN (0,1)),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"product_options", `CREATE TABLE IF NOT EXISTS product_options (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			name TEXT NOT NULL,
			retail_price REAL DEFAULT 0,
			db_price REAL DEFAULT 0,
			stock REAL DEFAULT 0 CHECK(stock >= 0),
			UNIQUE(product_id, name),
			FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
		)`},
		{"customers", `CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			outlet_name TEXT NOT NULL,
			address TEXT DEFAULT '',
			contact_number TEXT DEFAULT '',
			sales_ref_name TEXT DEFAULT '',
			ref_contact_number TEXT DEFAULT '',
			status INTEGER DEFAULT 1 CHECK(status IN (0,1)),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"categories", `CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status INTEGER DEFAULT 1 CHECK(status IN (0,1)),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"bottle_case_assignments", `CREATE TABLE IF NOT EXISTS bottle_case_assignments (
			option_name TEXT PRIMARY KEY,
			bottles_per_case INTEGER NOT NULL CHECK(bottles_per_case IN (9,12,15,24,30))
		)`},
		{"bills", `CREATE TABLE IF NOT EXISTS bills (
			id TEXT PRIMARY KEY,
			bill_no TEXT NOT NULL UNIQUE,
			customer_id TEXT DEFAULT '',
			outlet_name TEXT DEFAULT '',
			address TEXT DEFAULT '',
			contact TEXT DEFAULT '',
			sales_ref TEXT DEFAULT '',
			ref_contact TEXT DEFAULT '',
			create_date TEXT DEFAULT '',
			percentage_discount REAL DEFAULT 0 CHECK(percentage_discount BETWEEN 0 AND 100),
			print_status INTEGER DEFAULT 0,
			total_margin REAL DEFAULT 0,
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"bill_lines", `CREATE TABLE IF NOT EXISTS bill_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bill_id TEXT NOT NULL,
			product_id TEXT DEFAULT '',
			option_id TEXT DEFAULT '',
			price REAL DEFAULT 0,
			qty REAL DEFAULT 0,
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`},
		{"bill_adjustments", `CREATE TABLE IF NOT EXISTS bill_adjustments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bill_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('discount','free_issue','expire')),
			option_id TEXT DEFAULT '',
			case_count REAL DEFAULT 0,
			per_case_rate REAL DEFAULT 0,
			total REAL DEFAULT 0,
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`},
		{"manual_bills", `CREATE TABLE IF NOT EXISTS manual_bills (
			id TEXT PRIMARY KEY,
			bill_no TEXT NOT NULL UNIQUE,
			outlet_name TEXT DEFAULT '',
			address TEXT DEFAULT '',
			contact TEXT DEFAULT '',
			create_date TEXT DEFAULT '',
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"manual_bill_lines", `CREATE TABLE IF NOT EXISTS manual_bill_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			manual_bill_id TEXT NOT NULL,
			product_id TEXT DEFAULT '',
			option_id TEXT DEFAULT '',
			price REAL DEFAULT 0,
			qty REAL DEFAULT 0,
			FOREIGN KEY (manual_bill_id) REFERENCES manual_bills(id) ON DELETE CASCADE
		)`},
		{"bill_store_status", `CREATE TABLE IF NOT EXISTS bill_store_status (
			bill_id TEXT PRIMARY KEY,
			is_stored_out INTEGER DEFAULT 0,
			is_stored_in INTEGER DEFAULT 0,
			stored_out_at DATETIME,
			stored_in_at DATETIME,
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`},
		{"my_bills", `CREATE TABLE IF NOT EXISTS my_bills (
			bill_id TEXT NOT NULL,
			username TEXT NOT NULL,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (bill_id, username),
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`},
		{"stock_movements", `CREATE TABLE IF NOT EXISTS stock_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			option_id TEXT NOT NULL,
			bill_id TEXT DEFAULT '',
			delta REAL NOT NULL,
			reason TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"payments", `CREATE TABLE IF NOT EXISTS payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			payment_number TEXT NOT NULL UNIQUE,
			bill_id TEXT NOT NULL,
			bill_no TEXT DEFAULT '',
			outlet_name TEXT DEFAULT '',
			amount REAL NOT NULL CHECK(amount > 0),
			payment_date TEXT DEFAULT '',
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`},
		{"units", `CREATE TABLE IF NOT EXISTS units (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL UNIQUE,
			date TEXT DEFAULT '',
			driver_name TEXT DEFAULT '',
			route TEXT DEFAULT '',
			total_margin REAL DEFAULT 0,
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"unit_bills", `CREATE TABLE IF NOT EXISTS unit_bills (
			unit_id TEXT NOT NULL,
			bill_id TEXT NOT NULL,
			PRIMARY KEY (unit_id, bill_id),
			FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
		)`},
		{"unit_products", `CREATE TABLE IF NOT EXISTS unit_products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL,
			option_id TEXT DEFAULT '',
			product_id TEXT DEFAULT '',
			total_qty REAL DEFAULT 0,
			bottles_per_case INTEGER,
			case_count INTEGER,
			extra_bottles INTEGER,
			FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
		)`},
		{"bill_reviews", `CREATE TABLE IF NOT EXISTS bill_reviews (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL UNIQUE,
			is_saved INTEGER DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
		)`},
		{"bill_review_lines", `CREATE TABLE IF NOT EXISTS bill_review_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			review_id INTEGER NOT NULL,
			bill_id TEXT DEFAULT '',
			product_id TEXT DEFAULT '',
			option_id TEXT DEFAULT '',
			price REAL DEFAULT 0,
			loading_qty REAL DEFAULT 0,
			unloading_bt REAL DEFAULT 0,
			sale_bt REAL DEFAULT 0,
			sales_value REAL DEFAULT 0,
			FOREIGN KEY (review_id) REFERENCES bill_reviews(id) ON DELETE CASCADE
		)`},
		{"sale_summaries", `CREATE TABLE IF NOT EXISTS sale_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL,
			option_id TEXT DEFAULT '',
			product_id TEXT DEFAULT '',
			loading_qty REAL DEFAULT 0,
			sale_qty REAL DEFAULT 0,
			sales_value REAL DEFAULT 0,
			margin REAL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"audit_log", `CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT '',
			action TEXT NOT NULL,
			module TEXT DEFAULT '',
			record_id TEXT DEFAULT '',
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"notifications", `CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			severity TEXT DEFAULT 'info',
			title TEXT NOT NULL,
			message TEXT,
			record_id TEXT,
			module TEXT,
			read_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"app_settings", `CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT DEFAULT ''
		)`},
	}

	for _, tbl := range tables {
		if _, err := db.Exec(tbl.ddl); err != nil {
			t.Fatalf("Failed to create %s table: %v", tbl.name, err)
		}
	}
}

func seedAdminUser(t *testing.T, db *sql.DB) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash admin password: %v", err)
	}
	_, err = db.Exec(`INSERT INTO users (username, password_hash, display_name, role) VALUES (?, ?, ?, ?)`,
		"admin", string(hash), "Administrator", "admin")
	if err != nil {
		t.Fatalf("Failed to create default admin user: %v", err)
	}
}

// CreateTestUser creates a test user with the given credentials.
func CreateTestUser(t *testing.T, db *sql.DB, username, password, role string, active bool) int {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	activeInt := 0
	if active {
		activeInt = 1
	}

	result, err := db.Exec(
		"INSERT INTO users (username, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, ?)",
		username, string(hash), username+" Display", role, activeInt,
	)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	id, _ := result.LastInsertId()
	return int(id)
}

// CreateTestSessionSimple creates a session token for the given user with default 24h expiry.
func CreateTestSessionSimple(t *testing.T, db *sql.DB, userID int) string {
	t.Helper()
	token := "test-session-token-" + time.Now().Format("20060102150405.000000")
	expiresAt := time.Now().Add(24 * time.Hour)

	_, err := db.Exec(
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	return token
}

// LoginAdmin returns a session token for the default admin user.
func LoginAdmin(t *testing.T, db *sql.DB) string {
	t.Helper()
	var adminID int
	err := db.QueryRow("SELECT id FROM users WHERE username = 'admin'").Scan(&adminID)
	if err != nil {
		t.Fatalf("Failed to find admin user: %v", err)
	}
	return CreateTestSessionSimple(t, db, adminID)
}

// LoginUser creates a regular user and returns their session token.
func LoginUser(t *testing.T, db *sql.DB, username string) string {
	t.Helper()
	userID := CreateTestUser(t, db, username, "password", "user", true)
	return CreateTestSessionSimple(t, db, userID)
}

// AuthedRequest creates an authenticated HTTP request with a session cookie.
func AuthedRequest(method, path string, body []byte, sessionToken string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: "pepsi_session", Value: sessionToken})
	}

	return req
}

// AuthedJSONRequest creates an authenticated HTTP request with JSON content type.
func AuthedJSONRequest(method, path string, body interface{}, sessionToken string) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}

	req := AuthedRequest(method, path, bodyBytes, sessionToken)
	req.Header.Set("Content-Type", "application/json")

	return req
}

// SeedProduct inserts a product with one option and returns the option row id.
func SeedProduct(t *testing.T, db *sql.DB, productID, name, optionName string, retail, cost, stock float64) int {
	t.Helper()
	_, err := db.Exec(`INSERT OR IGNORE INTO products (id, name, status) VALUES (?, ?, 1)`, productID, name)
	if err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	res, err := db.Exec(`INSERT INTO product_options (product_id, name, retail_price, db_price, stock) VALUES (?, ?, ?, ?, ?)`,
		productID, optionName, retail, cost, stock)
	if err != nil {
		t.Fatalf("Failed to seed product option: %v", err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

// SeedCustomer inserts an active customer.
func SeedCustomer(t *testing.T, db *sql.DB, id, outlet string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO customers (id, outlet_name, address, contact_number, status) VALUES (?, ?, '', '', 1)`,
		id, outlet)
	if err != nil {
		t.Fatalf("Failed to seed customer: %v", err)
	}
}

// OptionStock returns the current stock for a (product, option) pair.
func OptionStock(t *testing.T, db *sql.DB, productID, optionName string) float64 {
	t.Helper()
	var stock float64
	err := db.QueryRow(`SELECT stock FROM product_options WHERE product_id = ? AND name = ?`,
		productID, optionName).Scan(&stock)
	if err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	return stock
}

// DecodeAPIResponse decodes an APIResponse from a ResponseRecorder.
func DecodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode API response: %v", err)
	}
	return response
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an API response envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}
