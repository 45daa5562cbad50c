package common

import (
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// Dashboard handles GET /api/v1/dashboard. One round trip for the landing
// page counters.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	today := time.Now().Format("2006-01-02")

	var billCount, customerCount, productCount, unitCount int
	h.DB.QueryRow("SELECT COUNT(*) FROM bills").Scan(&billCount)
	h.DB.QueryRow("SELECT COUNT(*) FROM customers WHERE status = 1").Scan(&customerCount)
	h.DB.QueryRow("SELECT COUNT(*) FROM products WHERE status = 1").Scan(&productCount)
	h.DB.QueryRow("SELECT COUNT(*) FROM units").Scan(&unitCount)

	var billsToday int
	h.DB.QueryRow("SELECT COUNT(*) FROM bills WHERE create_date = ?", today).Scan(&billsToday)

	var paymentsToday float64
	h.DB.QueryRow("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_date = ?", today).Scan(&paymentsToday)

	var totalStock float64
	h.DB.QueryRow("SELECT COALESCE(SUM(stock), 0) FROM product_options").Scan(&totalStock)

	var lowStockCount int
	threshold := h.lowStockThreshold()
	h.DB.QueryRow("SELECT COUNT(*) FROM product_options WHERE stock <= ?", threshold).Scan(&lowStockCount)

	outstanding := h.totalOutstanding()

	response.JSON(w, map[string]interface{}{
		"bill_count":        billCount,
		"bills_today":       billsToday,
		"customer_count":    customerCount,
		"product_count":     productCount,
		"unit_count":        unitCount,
		"payments_today":    billing.Round2(paymentsToday),
		"total_stock":       totalStock,
		"low_stock_count":   lowStockCount,
		"total_outstanding": billing.Round2(outstanding),
	})
}

func (h *Handler) lowStockThreshold() float64 {
	var raw string
	h.DB.QueryRow("SELECT value FROM app_settings WHERE key = 'low_stock_threshold'").Scan(&raw)
	threshold := billing.ToNumber(raw)
	if threshold == 0 {
		threshold = 50
	}
	return threshold
}

// totalOutstanding sums every bill's balance. Balances are derived, never
// stored, so this walks bills with their adjustments and payments.
func (h *Handler) totalOutstanding() float64 {
	rows, err := h.DB.Query("SELECT id, percentage_discount FROM bills")
	if err != nil {
		return 0
	}
	defer rows.Close()

	var total float64
	for rows.Next() {
		var id string
		var pct float64
		rows.Scan(&id, &pct)
		total += h.billBalance(id, pct)
	}
	return total
}

func (h *Handler) billBalance(billID string, pct float64) float64 {
	var product float64
	h.DB.QueryRow("SELECT COALESCE(SUM(price * qty), 0) FROM bill_lines WHERE bill_id = ?", billID).Scan(&product)

	var discount, freeIssue, expire float64
	h.DB.QueryRow("SELECT COALESCE(SUM(total), 0) FROM bill_adjustments WHERE bill_id = ? AND kind = 'discount'", billID).Scan(&discount)
	h.DB.QueryRow("SELECT COALESCE(SUM(total), 0) FROM bill_adjustments WHERE bill_id = ? AND kind = 'free_issue'", billID).Scan(&freeIssue)
	h.DB.QueryRow("SELECT COALESCE(SUM(total), 0) FROM bill_adjustments WHERE bill_id = ? AND kind = 'expire'", billID).Scan(&expire)

	var paid float64
	h.DB.QueryRow("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE bill_id = ?", billID).Scan(&paid)

	return billing.GrandTotal(product, discount, freeIssue, expire, pct) - paid
}
