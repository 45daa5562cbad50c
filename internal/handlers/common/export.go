package common

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
)

// ExportBills handles GET /api/v1/export/bills?format=csv|xlsx.
func (h *Handler) ExportBills(w http.ResponseWriter, r *http.Request) {
	format := exportFormat(r)

	rows, err := h.DB.Query("SELECT id, bill_no, outlet_name, create_date, percentage_discount, created_by FROM bills ORDER BY bill_no")
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"Bill No", "Outlet", "Date", "Grand Total", "Paid", "Balance", "Created By"}
	var data [][]string
	for rows.Next() {
		var id, billNo, outlet, date, createdBy string
		var pct float64
		rows.Scan(&id, &billNo, &outlet, &date, &pct, &createdBy)

		balance := h.billBalance(id, pct)
		var paid float64
		h.DB.QueryRow("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE bill_id = ?", id).Scan(&paid)
		grand := balance + paid

		data = append(data, []string{
			billNo, outlet, date,
			fmt.Sprintf("%.2f", billing.Round2(grand)),
			fmt.Sprintf("%.2f", billing.Round2(paid)),
			fmt.Sprintf("%.2f", billing.Round2(balance)),
			createdBy,
		})
	}

	if format == "xlsx" {
		ExportExcel(w, "Bills", headers, data)
	} else {
		ExportCSV(w, "bills.csv", headers, data)
	}
}

// ExportStock handles GET /api/v1/export/stock?format=csv|xlsx.
func (h *Handler) ExportStock(w http.ResponseWriter, r *http.Request) {
	format := exportFormat(r)

	rows, err := h.DB.Query(`SELECT p.id, p.name, o.name, o.retail_price, o.db_price, o.stock
		FROM product_options o JOIN products p ON p.id = o.product_id ORDER BY p.name, o.name`)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"Product ID", "Product", "Option", "Retail Price", "DB Price", "Margin", "Stock"}
	var data [][]string
	for rows.Next() {
		var id, name, option string
		var retail, cost, stock float64
		rows.Scan(&id, &name, &option, &retail, &cost, &stock)
		margin := billing.Round2(billing.LineMargin(retail, cost, 1))
		data = append(data, []string{
			id, name, option,
			fmt.Sprintf("%.2f", retail), fmt.Sprintf("%.2f", cost),
			fmt.Sprintf("%.2f", margin), fmt.Sprintf("%.0f", stock),
		})
	}

	if format == "xlsx" {
		ExportExcel(w, "Stock", headers, data)
	} else {
		ExportCSV(w, "stock.csv", headers, data)
	}
}

// ExportPayments handles GET /api/v1/export/payments?format=csv|xlsx.
func (h *Handler) ExportPayments(w http.ResponseWriter, r *http.Request) {
	format := exportFormat(r)

	rows, err := h.DB.Query("SELECT payment_number, bill_no, outlet_name, amount, payment_date, created_by FROM payments ORDER BY created_at DESC")
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"Payment No", "Bill No", "Outlet", "Amount", "Date", "Created By"}
	var data [][]string
	for rows.Next() {
		var number, billNo, outlet, date, createdBy string
		var amount float64
		rows.Scan(&number, &billNo, &outlet, &amount, &date, &createdBy)
		data = append(data, []string{number, billNo, outlet, fmt.Sprintf("%.2f", amount), date, createdBy})
	}

	if format == "xlsx" {
		ExportExcel(w, "Payments", headers, data)
	} else {
		ExportCSV(w, "payments.csv", headers, data)
	}
}

// ExportSaleSummary handles GET /api/v1/export/sale-summary?format=csv|xlsx.
func (h *Handler) ExportSaleSummary(w http.ResponseWriter, r *http.Request) {
	format := exportFormat(r)
	unitID := r.URL.Query().Get("unit_id")

	query := "SELECT unit_id, option_id, product_id, loading_qty, sale_qty, sales_value, margin FROM sale_summaries"
	var args []interface{}
	if unitID != "" {
		query += " WHERE unit_id = ?"
		args = append(args, unitID)
	}
	query += " ORDER BY created_at DESC, option_id"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"Unit", "Option", "Product", "Loading Qty", "Sale Qty", "Sales Value", "Margin"}
	var data [][]string
	for rows.Next() {
		var unit, option, product string
		var loading, sale, value, margin float64
		rows.Scan(&unit, &option, &product, &loading, &sale, &value, &margin)
		data = append(data, []string{
			unit, option, product,
			fmt.Sprintf("%.0f", loading), fmt.Sprintf("%.0f", sale),
			fmt.Sprintf("%.2f", billing.Round2(value)), fmt.Sprintf("%.2f", billing.Round2(margin)),
		})
	}

	if format == "xlsx" {
		ExportExcel(w, "SaleSummary", headers, data)
	} else {
		ExportCSV(w, "sale_summary.csv", headers, data)
	}
}

func exportFormat(r *http.Request) string {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	return format
}

// ExportCSV writes data to CSV format.
func ExportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

// ExportExcel writes data to Excel format.
func ExportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+i)))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%s%d", string(rune('A'+colIdx)), rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 15)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(sheetName)))

	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
		return
	}
}
