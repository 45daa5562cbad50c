package main

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations()
}

func runMigrations() error {
	catalogTables := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status INTEGER DEFAULT 1 CHECK(status IN (0,1)),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS product_options (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			name TEXT NOT NULL,
			retail_price REAL DEFAULT 0,
			db_price REAL DEFAULT 0,
			stock REAL DEFAULT 0 CHECK(stock >= 0),
			UNIQUE(product_id, name),
			FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			outlet_name TEXT NOT NULL,
			address TEXT DEFAULT '',
			contact_number TEXT DEFAULT '',
			sales_ref_name TEXT DEFAULT '',
			ref_contact_number TEXT DEFAULT '',
			status INTEGER DEFAULT 1 CHECK(status IN (0,1)),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status INTEGER DEFAULT 1 CHECK(status IN (0,1)),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bottle_case_assignments (
			option_name TEXT PRIMARY KEY,
			bottles_per_case INTEGER NOT NULL CHECK(bottles_per_case IN (9,12,15,24,30))
		)`,
	}
	for _, t := range catalogTables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("catalog migration: %w", err)
		}
	}

	billingTables := []string{
		`CREATE TABLE IF NOT EXISTS bills (
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
		)`,
		`CREATE TABLE IF NOT EXISTS bill_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bill_id TEXT NOT NULL,
			product_id TEXT DEFAULT '',
			option_id TEXT DEFAULT '',
			price REAL DEFAULT 0,
			qty REAL DEFAULT 0,
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS bill_adjustments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bill_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('discount','free_issue','expire')),
			option_id TEXT DEFAULT '',
			case_count REAL DEFAULT 0,
			per_case_rate REAL DEFAULT 0,
			total REAL DEFAULT 0,
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS manual_bills (
			id TEXT PRIMARY KEY,
			bill_no TEXT NOT NULL UNIQUE,
			outlet_name TEXT DEFAULT '',
			address TEXT DEFAULT '',
			contact TEXT DEFAULT '',
			create_date TEXT DEFAULT '',
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS manual_bill_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			manual_bill_id TEXT NOT NULL,
			product_id TEXT DEFAULT '',
			option_id TEXT DEFAULT '',
			price REAL DEFAULT 0,
			qty REAL DEFAULT 0,
			FOREIGN KEY (manual_bill_id) REFERENCES manual_bills(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS bill_store_status (
			bill_id TEXT PRIMARY KEY,
			is_stored_out INTEGER DEFAULT 0,
			is_stored_in INTEGER DEFAULT 0,
			stored_out_at DATETIME,
			stored_in_at DATETIME,
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS my_bills (
			bill_id TEXT NOT NULL,
			username TEXT NOT NULL,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (bill_id, username),
			FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			option_id TEXT NOT NULL,
			bill_id TEXT DEFAULT '',
			delta REAL NOT NULL,
			reason TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, t := range billingTables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("billing migration: %w", err)
		}
	}

	paymentTables := []string{
		`CREATE TABLE IF NOT EXISTS payments (
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
		)`,
	}
	for _, t := range paymentTables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("payment migration: %w", err)
		}
	}

	unitTables := []string{
		`CREATE TABLE IF NOT EXISTS units (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL UNIQUE,
			date TEXT DEFAULT '',
			driver_name TEXT DEFAULT '',
			route TEXT DEFAULT '',
			total_margin REAL DEFAULT 0,
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS unit_bills (
			unit_id TEXT NOT NULL,
			bill_id TEXT NOT NULL,
			PRIMARY KEY (unit_id, bill_id),
			FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS unit_products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL,
			option_id TEXT DEFAULT '',
			product_id TEXT DEFAULT '',
			total_qty REAL DEFAULT 0,
			bottles_per_case INTEGER,
			case_count INTEGER,
			extra_bottles INTEGER,
			FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS bill_reviews (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL UNIQUE,
			is_saved INTEGER DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS bill_review_lines (
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
		)`,
		`CREATE TABLE IF NOT EXISTS sale_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL,
			option_id TEXT DEFAULT '',
			product_id TEXT DEFAULT '',
			loading_qty REAL DEFAULT 0,
			sale_qty REAL DEFAULT 0,
			sales_value REAL DEFAULT 0,
			margin REAL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, t := range unitTables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("unit migration: %w", err)
		}
	}

	ambientTables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT,
			role TEXT DEFAULT 'user',
			active INTEGER DEFAULT 1,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			last_activity DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT '',
			action TEXT NOT NULL,
			module TEXT DEFAULT '',
			record_id TEXT DEFAULT '',
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			severity TEXT DEFAULT 'info',
			title TEXT NOT NULL,
			message TEXT,
			record_id TEXT,
			module TEXT,
			read_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT DEFAULT ''
		)`,
	}
	for _, t := range ambientTables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("ambient migration: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_bill_lines_bill_id ON bill_lines(bill_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bill_adjustments_bill_id ON bill_adjustments(bill_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_bill_id ON payments(bill_id)`,
		`CREATE INDEX IF NOT EXISTS idx_unit_bills_bill_id ON unit_bills(bill_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_option ON stock_movements(product_id, option_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_summaries_unit ON sale_summaries(unit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_options_product ON product_options(product_id)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("index migration: %w", err)
		}
	}

	// Columns added after initial release. Safe to re-run.
	alterMigrations := []string{
		`ALTER TABLE bills ADD COLUMN updated_at DATETIME DEFAULT CURRENT_TIMESTAMP`,
		`ALTER TABLE units ADD COLUMN route TEXT DEFAULT ''`,
		`ALTER TABLE payments ADD COLUMN created_by TEXT DEFAULT ''`,
	}
	for _, m := range alterMigrations {
		if _, err := db.Exec(m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				log.Printf("Migration warning: %v\nSQL: %s", err, m)
			}
		}
	}

	return nil
}

func seedDB() {
	// Always ensure admin user exists
	var userCount int
	db.QueryRow("SELECT COUNT(*) FROM users WHERE username = 'admin'").Scan(&userCount)
	if userCount == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash admin password: %v", err)
		} else {
			db.Exec("INSERT INTO users (username, password_hash, display_name, role) VALUES (?, ?, ?, ?)",
				"admin", string(hash), "Administrator", "admin")
		}
	}

	// Seed clerk user
	var clerkCount int
	db.QueryRow("SELECT COUNT(*) FROM users WHERE username = 'clerk'").Scan(&clerkCount)
	if clerkCount == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
		if err == nil {
			db.Exec("INSERT INTO users (username, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, 1)",
				"clerk", string(hash), "Billing Clerk", "user")
		}
	}

	// Check if already seeded
	var count int
	db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count)
	if count > 0 {
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")

	// Products with per-size options
	db.Exec(`INSERT INTO products (id,name,status,created_at) VALUES (?,?,1,?)`, "PRD-001", "Pepsi", now)
	db.Exec(`INSERT INTO products (id,name,status,created_at) VALUES (?,?,1,?)`, "PRD-002", "Mirinda", now)
	db.Exec(`INSERT INTO products (id,name,status,created_at) VALUES (?,?,1,?)`, "PRD-003", "Drinking Water", now)

	options := []struct {
		product string
		name    string
		retail  float64
		cost    float64
		stock   float64
	}{
		{"PRD-001", "200ML", 120, 100, 500},
		{"PRD-001", "500ML", 220, 180, 300},
		{"PRD-001", "1.5L", 380, 320, 150},
		{"PRD-002", "200ML", 120, 100, 400},
		{"PRD-002", "500ML", 220, 180, 250},
		{"PRD-003", "WATER", 90, 70, 600},
	}
	for _, o := range options {
		db.Exec(`INSERT INTO product_options (product_id,name,retail_price,db_price,stock) VALUES (?,?,?,?,?)`,
			o.product, o.name, o.retail, o.cost, o.stock)
	}

	// Case sizes per option
	db.Exec(`INSERT INTO bottle_case_assignments (option_name,bottles_per_case) VALUES ('200ML',24)`)
	db.Exec(`INSERT INTO bottle_case_assignments (option_name,bottles_per_case) VALUES ('500ML',12)`)
	db.Exec(`INSERT INTO bottle_case_assignments (option_name,bottles_per_case) VALUES ('1.5L',9)`)
	db.Exec(`INSERT INTO bottle_case_assignments (option_name,bottles_per_case) VALUES ('WATER',15)`)

	// Customers
	db.Exec(`INSERT INTO customers (id,outlet_name,address,contact_number,sales_ref_name,ref_contact_number,status,created_at) VALUES (?,?,?,?,?,?,1,?)`,
		"CUS-001", "City Grocers", "14 Main St, Colombo", "0771234567", "Sunil", "0779876543", now)
	db.Exec(`INSERT INTO customers (id,outlet_name,address,contact_number,sales_ref_name,ref_contact_number,status,created_at) VALUES (?,?,?,?,?,?,1,?)`,
		"CUS-002", "Lakeside Mart", "3 Lake Rd, Kandy", "0712223334", "Priya", "0715556667", now)

	// Categories
	db.Exec(`INSERT INTO categories (id,name,status,created_at) VALUES (?,?,1,?)`, "CAT-001", "Soft Drinks", now)
	db.Exec(`INSERT INTO categories (id,name,status,created_at) VALUES (?,?,1,?)`, "CAT-002", "Water", now)

	// App settings
	db.Exec(`INSERT INTO app_settings (key,value) VALUES ('company_name','AT Distribution')`)
	db.Exec(`INSERT INTO app_settings (key,value) VALUES ('low_stock_threshold','50')`)
}

// ID generation helpers
func nextID(prefix string, table string, digits int) string {
	pattern := prefix + "-%"
	var maxID sql.NullString
	db.QueryRow("SELECT id FROM "+table+" WHERE id LIKE ? ORDER BY id DESC LIMIT 1", pattern).Scan(&maxID)

	next := 1
	if maxID.Valid {
		parts := strings.Split(maxID.String, "-")
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s-%0*d", prefix, digits, next)
}

func ns(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func sp(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
