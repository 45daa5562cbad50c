package common

import (
	"net/http"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// OutstandingReport handles GET /api/v1/reports/outstanding. Lists bills
// with a non-zero balance, oldest first.
func (h *Handler) OutstandingReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query("SELECT id, bill_no, outlet_name, create_date, percentage_discount FROM bills ORDER BY create_date, bill_no")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	type outstandingRow struct {
		BillID     string  `json:"bill_id"`
		BillNo     string  `json:"bill_no"`
		OutletName string  `json:"outlet_name"`
		CreateDate string  `json:"create_date"`
		Balance    float64 `json:"balance"`
	}
	items := []outstandingRow{}
	for rows.Next() {
		var row outstandingRow
		var pct float64
		rows.Scan(&row.BillID, &row.BillNo, &row.OutletName, &row.CreateDate, &pct)
		balance := h.billBalance(row.BillID, pct)
		if balance <= 0 {
			continue
		}
		row.Balance = billing.Round2(balance)
		items = append(items, row)
	}
	response.JSON(w, items)
}

// ProductMarginsReport handles GET /api/v1/reports/product-margins. Derived
// per-bottle margin for every option; options missing either price report
// zero.
func (h *Handler) ProductMarginsReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT p.id, p.name, o.name, o.retail_price, o.db_price, o.stock
		FROM product_options o JOIN products p ON p.id = o.product_id
		WHERE p.status = 1 ORDER BY p.name, o.name`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	type marginRow struct {
		ProductID   string  `json:"product_id"`
		ProductName string  `json:"product_name"`
		OptionName  string  `json:"option_name"`
		RetailPrice float64 `json:"retail_price"`
		DBPrice     float64 `json:"db_price"`
		Margin      float64 `json:"margin"`
		Stock       float64 `json:"stock"`
	}
	items := []marginRow{}
	for rows.Next() {
		var row marginRow
		rows.Scan(&row.ProductID, &row.ProductName, &row.OptionName, &row.RetailPrice, &row.DBPrice, &row.Stock)
		row.Margin = billing.Round2(billing.LineMargin(row.RetailPrice, row.DBPrice, 1))
		items = append(items, row)
	}
	response.JSON(w, items)
}

// LowStockReport handles GET /api/v1/reports/low-stock.
func (h *Handler) LowStockReport(w http.ResponseWriter, r *http.Request) {
	threshold := h.lowStockThreshold()
	rows, err := h.DB.Query(`SELECT p.id, p.name, o.name, o.stock
		FROM product_options o JOIN products p ON p.id = o.product_id
		WHERE o.stock <= ? ORDER BY o.stock, p.name`, threshold)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	type lowStockRow struct {
		ProductID   string  `json:"product_id"`
		ProductName string  `json:"product_name"`
		OptionName  string  `json:"option_name"`
		Stock       float64 `json:"stock"`
		Threshold   float64 `json:"threshold"`
	}
	items := []lowStockRow{}
	for rows.Next() {
		var row lowStockRow
		rows.Scan(&row.ProductID, &row.ProductName, &row.OptionName, &row.Stock)
		row.Threshold = threshold
		items = append(items, row)
	}
	response.JSON(w, items)
}

// SaleSummaryReport handles GET /api/v1/reports/sale-summary. Rows come
// from saved unloading reviews; an optional unit filter narrows to one run.
func (h *Handler) SaleSummaryReport(w http.ResponseWriter, r *http.Request) {
	unitID := r.URL.Query().Get("unit_id")

	query := "SELECT id, unit_id, option_id, product_id, loading_qty, sale_qty, sales_value, margin, created_at FROM sale_summaries"
	var args []interface{}
	if unitID != "" {
		query += " WHERE unit_id = ?"
		args = append(args, unitID)
	}
	query += " ORDER BY created_at DESC, option_id"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.SaleSummaryRow{}
	for rows.Next() {
		var s models.SaleSummaryRow
		rows.Scan(&s.ID, &s.UnitID, &s.OptionID, &s.ProductID, &s.LoadingQty, &s.SaleQty, &s.SalesValue, &s.Margin, &s.CreatedAt)
		s.SalesValue = billing.Round2(s.SalesValue)
		s.Margin = billing.Round2(s.Margin)
		items = append(items, s)
	}
	response.JSON(w, items)
}
