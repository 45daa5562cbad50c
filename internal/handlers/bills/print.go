package bills

import (
	"html/template"
	"net/http"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

var billTemplate = template.Must(template.New("bill").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Bill {{.Bill.BillNo}}</title>
<style>
body { font-family: sans-serif; margin: 24px; }
h1 { font-size: 18px; }
table { border-collapse: collapse; width: 100%; margin-top: 12px; }
th, td { border: 1px solid #444; padding: 4px 8px; font-size: 13px; text-align: left; }
.totals td { font-weight: bold; }
.meta { font-size: 13px; }
</style>
</head>
<body>
<h1>{{.CompanyName}} Invoice {{.Bill.BillNo}}</h1>
<div class="meta">
<p>Outlet: {{.Bill.OutletName}}<br>
Address: {{.Bill.Address}}<br>
Contact: {{.Bill.Contact}}<br>
Sales Ref: {{.Bill.SalesRef}} ({{.Bill.RefContact}})<br>
Date: {{.Bill.CreateDate}}</p>
</div>
<table>
<tr><th>Product</th><th>Option</th><th>Price</th><th>Qty</th><th>Total</th></tr>
{{range .Lines}}
<tr><td>{{.ProductID}}</td><td>{{.OptionID}}</td><td>{{printf "%.2f" .Price}}</td><td>{{printf "%.0f" .Qty}}</td><td>{{printf "%.2f" .Total}}</td></tr>
{{end}}
<tr class="totals"><td colspan="4">Product Total</td><td>{{printf "%.2f" .Bill.ProductTotal}}</td></tr>
<tr><td colspan="4">Discounts</td><td>-{{printf "%.2f" .Bill.DiscountTotal}}</td></tr>
<tr><td colspan="4">Free Issues</td><td>-{{printf "%.2f" .Bill.FreeIssueTotal}}</td></tr>
<tr><td colspan="4">Expires</td><td>-{{printf "%.2f" .Bill.ExpireTotal}}</td></tr>
{{if .Bill.PercentageDiscount}}<tr><td colspan="4">Percentage Discount</td><td>{{printf "%.1f" .Bill.PercentageDiscount}}%</td></tr>{{end}}
<tr class="totals"><td colspan="4">Grand Total</td><td>{{printf "%.2f" .Bill.GrandTotal}}</td></tr>
<tr class="totals"><td colspan="4">Balance</td><td>{{printf "%.2f" .Bill.Balance}}</td></tr>
</table>
</body>
</html>`))

type printLine struct {
	ProductID string
	OptionID  string
	Price     float64
	Qty       float64
	Total     float64
}

type printData struct {
	CompanyName string
	Bill        *models.Bill
	Lines       []printLine
}

// PrintBill handles GET /api/v1/bills/:id/print. Returns the invoice as a
// standalone HTML document for the browser print dialog.
func (h *Handler) PrintBill(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.loadBill(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}

	var companyName string
	h.DB.QueryRow("SELECT value FROM app_settings WHERE key = 'company_name'").Scan(&companyName)
	if companyName == "" {
		companyName = "AT Distribution"
	}

	data := printData{CompanyName: companyName, Bill: b}
	for _, l := range b.Lines {
		price := float64(l.Price)
		qty := float64(l.Qty)
		data.Lines = append(data.Lines, printLine{
			ProductID: l.ProductID,
			OptionID:  l.OptionID,
			Price:     price,
			Qty:       qty,
			Total:     price * qty,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := billTemplate.Execute(w, data); err != nil {
		response.Err(w, err.Error(), 500)
	}
}

// SetPrintStatus handles PUT /api/v1/bills/:id/print-status. Marks the bill
// printed (or unprinted) for the bill list filter.
func (h *Handler) SetPrintStatus(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		PrintStatus int `json:"print_status"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if body.PrintStatus != 0 && body.PrintStatus != 1 {
		response.Err(w, "print_status must be 0 or 1", 400)
		return
	}

	res, err := h.DB.Exec("UPDATE bills SET print_status = ? WHERE id = ?", body.PrintStatus, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "bills", id, "Changed print status")
	h.broadcast("bill", id, "update")
	response.JSON(w, map[string]interface{}{"id": id, "print_status": body.PrintStatus})
}
