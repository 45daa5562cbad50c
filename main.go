package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/handlers/bills"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/handlers/catalog"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/handlers/common"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/handlers/payments"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/handlers/units"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

var companyName string

func main() {
	configPath := flag.String("config", "pepsi.yaml", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *configPath != "pepsi.yaml")
	if err != nil {
		log.Fatal("Config load failed: ", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if v := os.Getenv("PEPSI_COMPANY_NAME"); v != "" {
		cfg.CompanyName = v
	}
	companyName = cfg.CompanyName

	if err := initDB(cfg.DBPath); err != nil {
		log.Fatal("DB init failed:", err)
	}
	seedDB()
	db.Exec("INSERT INTO app_settings (key, value) VALUES ('company_name', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", companyName)

	hub := websocket.NewHub()

	catalogH := &catalog.Handler{DB: db, Hub: hub, NextID: nextID}
	billsH := &bills.Handler{DB: db, Hub: hub, NextID: nextID}
	paymentsH := &payments.Handler{DB: db, Hub: hub, BillBalance: billsH.BillBalance}
	unitsH := &units.Handler{DB: db, Hub: hub, NextID: nextID}
	commonH := &common.Handler{DB: db, Hub: hub}

	// Start background notification generator (run once after short delay, then every 5 min)
	go func() {
		time.Sleep(5 * time.Second)
		commonH.GenerateNotifications()
		for {
			time.Sleep(5 * time.Minute)
			commonH.GenerateNotifications()
		}
	}()

	mux := http.NewServeMux()

	// Auth routes
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogin(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogout(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		handleMe(w, r)
	})

	// Live updates
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.Handle(hub, w, r)
	})

	// API routes - using a simple router
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		// Print routes serve HTML; everything else is JSON.
		if !strings.HasSuffix(path, "/print") {
			w.Header().Set("Content-Type", "application/json")
		}

		switch {
		// Dashboard
		case path == "dashboard" && r.Method == "GET":
			commonH.Dashboard(w, r)

		// Products
		case parts[0] == "products" && len(parts) == 1 && r.Method == "GET":
			catalogH.ListProducts(w, r)
		case parts[0] == "products" && len(parts) == 1 && r.Method == "POST":
			catalogH.CreateProduct(w, r)
		case parts[0] == "products" && len(parts) == 2 && r.Method == "GET":
			catalogH.GetProduct(w, r, parts[1])
		case parts[0] == "products" && len(parts) == 2 && r.Method == "PUT":
			catalogH.UpdateProduct(w, r, parts[1])
		case parts[0] == "products" && len(parts) == 2 && r.Method == "DELETE":
			catalogH.DeleteProduct(w, r, parts[1])

		// Customers
		case parts[0] == "customers" && len(parts) == 1 && r.Method == "GET":
			catalogH.ListCustomers(w, r)
		case parts[0] == "customers" && len(parts) == 1 && r.Method == "POST":
			catalogH.CreateCustomer(w, r)
		case parts[0] == "customers" && len(parts) == 2 && r.Method == "GET":
			catalogH.GetCustomer(w, r, parts[1])
		case parts[0] == "customers" && len(parts) == 2 && r.Method == "PUT":
			catalogH.UpdateCustomer(w, r, parts[1])
		case parts[0] == "customers" && len(parts) == 2 && r.Method == "DELETE":
			catalogH.DeleteCustomer(w, r, parts[1])

		// Categories
		case parts[0] == "categories" && len(parts) == 1 && r.Method == "GET":
			catalogH.ListCategories(w, r)
		case parts[0] == "categories" && len(parts) == 1 && r.Method == "POST":
			catalogH.CreateCategory(w, r)
		case parts[0] == "categories" && len(parts) == 2 && r.Method == "PUT":
			catalogH.UpdateCategory(w, r, parts[1])
		case parts[0] == "categories" && len(parts) == 2 && r.Method == "DELETE":
			catalogH.DeleteCategory(w, r, parts[1])

		// Bottle/case assignments
		case parts[0] == "case-assignments" && len(parts) == 1 && r.Method == "GET":
			catalogH.ListCaseAssignments(w, r)
		case parts[0] == "case-assignments" && len(parts) == 2 && r.Method == "PUT":
			catalogH.PutCaseAssignment(w, r, parts[1])
		case parts[0] == "case-assignments" && len(parts) == 2 && r.Method == "DELETE":
			catalogH.DeleteCaseAssignment(w, r, parts[1])

		// Bills
		case parts[0] == "bills" && len(parts) == 1 && r.Method == "GET":
			billsH.ListBills(w, r)
		case parts[0] == "bills" && len(parts) == 1 && r.Method == "POST":
			billsH.CreateBill(w, r)
		case parts[0] == "bills" && len(parts) == 2 && r.Method == "GET":
			billsH.GetBill(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 2 && r.Method == "PUT":
			billsH.UpdateBill(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 2 && r.Method == "DELETE":
			billsH.DeleteBill(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 3 && parts[2] == "print" && r.Method == "GET":
			billsH.PrintBill(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 3 && parts[2] == "print-status" && r.Method == "PUT":
			billsH.SetPrintStatus(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 3 && parts[2] == "store-out" && r.Method == "POST":
			billsH.StoreOut(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 3 && parts[2] == "store-in" && r.Method == "POST":
			billsH.StoreIn(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 3 && parts[2] == "store-status" && r.Method == "GET":
			billsH.GetStoreStatus(w, r, parts[1])
		case parts[0] == "bills" && len(parts) == 3 && parts[2] == "balance" && r.Method == "GET":
			billsH.GetBalance(w, r, parts[1])

		// My bills
		case parts[0] == "my-bills" && len(parts) == 1 && r.Method == "GET":
			billsH.ListMyBills(w, r)
		case parts[0] == "my-bills" && len(parts) == 1 && r.Method == "POST":
			billsH.AddMyBill(w, r)
		case parts[0] == "my-bills" && len(parts) == 2 && r.Method == "DELETE":
			billsH.RemoveMyBill(w, r, parts[1])

		// Manual bills
		case parts[0] == "manual-bills" && len(parts) == 1 && r.Method == "GET":
			billsH.ListManualBills(w, r)
		case parts[0] == "manual-bills" && len(parts) == 1 && r.Method == "POST":
			billsH.CreateManualBill(w, r)
		case parts[0] == "manual-bills" && len(parts) == 2 && r.Method == "GET":
			billsH.GetManualBill(w, r, parts[1])
		case parts[0] == "manual-bills" && len(parts) == 2 && r.Method == "PUT":
			billsH.UpdateManualBill(w, r, parts[1])
		case parts[0] == "manual-bills" && len(parts) == 2 && r.Method == "DELETE":
			billsH.DeleteManualBill(w, r, parts[1])

		// Payments
		case parts[0] == "payments" && len(parts) == 1 && r.Method == "GET":
			paymentsH.ListPayments(w, r)
		case parts[0] == "payments" && len(parts) == 1 && r.Method == "POST":
			paymentsH.CreatePayment(w, r)
		case parts[0] == "payments" && len(parts) == 2 && r.Method == "DELETE":
			paymentsH.DeletePayment(w, r, parts[1])

		// Units
		case parts[0] == "units" && len(parts) == 1 && r.Method == "GET":
			unitsH.ListUnits(w, r)
		case parts[0] == "units" && len(parts) == 1 && r.Method == "POST":
			unitsH.CreateUnit(w, r)
		case parts[0] == "units" && len(parts) == 2 && r.Method == "GET":
			unitsH.GetUnit(w, r, parts[1])
		case parts[0] == "units" && len(parts) == 2 && r.Method == "PUT":
			unitsH.UpdateUnit(w, r, parts[1])
		case parts[0] == "units" && len(parts) == 2 && r.Method == "DELETE":
			unitsH.DeleteUnit(w, r, parts[1])
		case parts[0] == "units" && len(parts) == 3 && parts[2] == "print" && r.Method == "GET":
			unitsH.PrintUnit(w, r, parts[1])
		case parts[0] == "units" && len(parts) == 3 && parts[2] == "case-split" && r.Method == "PUT":
			unitsH.UpdateCaseSplit(w, r, parts[1])
		case parts[0] == "units" && len(parts) == 3 && parts[2] == "review" && r.Method == "GET":
			unitsH.GetReview(w, r, parts[1])
		case parts[0] == "units" && len(parts) == 3 && parts[2] == "review" && r.Method == "PUT":
			unitsH.SaveReview(w, r, parts[1])
		case parts[0] == "units" && len(parts) == 4 && parts[2] == "review" && parts[3] == "reopen" && r.Method == "POST":
			unitsH.ReopenReview(w, r, parts[1])

		// Reports
		case parts[0] == "reports" && len(parts) == 2 && parts[1] == "outstanding":
			commonH.OutstandingReport(w, r)
		case parts[0] == "reports" && len(parts) == 2 && parts[1] == "product-margins":
			commonH.ProductMarginsReport(w, r)
		case parts[0] == "reports" && len(parts) == 2 && parts[1] == "low-stock":
			commonH.LowStockReport(w, r)
		case parts[0] == "reports" && len(parts) == 2 && parts[1] == "sale-summary":
			commonH.SaleSummaryReport(w, r)

		// Exports
		case parts[0] == "export" && len(parts) == 2 && parts[1] == "bills":
			commonH.ExportBills(w, r)
		case parts[0] == "export" && len(parts) == 2 && parts[1] == "stock":
			commonH.ExportStock(w, r)
		case parts[0] == "export" && len(parts) == 2 && parts[1] == "payments":
			commonH.ExportPayments(w, r)
		case parts[0] == "export" && len(parts) == 2 && parts[1] == "sale-summary":
			commonH.ExportSaleSummary(w, r)

		// Notifications
		case parts[0] == "notifications" && len(parts) == 1 && r.Method == "GET":
			commonH.ListNotifications(w, r)
		case parts[0] == "notifications" && len(parts) == 2 && parts[1] == "read-all" && r.Method == "POST":
			commonH.MarkAllNotificationsRead(w, r)
		case parts[0] == "notifications" && len(parts) == 3 && parts[2] == "read" && r.Method == "POST":
			commonH.MarkNotificationRead(w, r, parts[1])

		// Audit
		case parts[0] == "audit" && len(parts) == 1 && r.Method == "GET":
			commonH.ListAudit(w, r)

		// Users
		case parts[0] == "users" && len(parts) == 1 && r.Method == "GET":
			commonH.ListUsers(w, r)
		case parts[0] == "users" && len(parts) == 1 && r.Method == "POST":
			commonH.CreateUser(w, r)
		case parts[0] == "users" && len(parts) == 2 && r.Method == "PUT":
			commonH.UpdateUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 2 && r.Method == "DELETE":
			commonH.DeleteUser(w, r, parts[1])

		default:
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Pepsi back office starting on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, logging(requireAuth(requireRBAC(mux)))))
}
