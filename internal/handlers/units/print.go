package units

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

var loadingSheetTemplate = template.Must(template.New("loading_sheet").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Loading Sheet {{.Unit.UnitID}}</title>
<style>
body { font-family: sans-serif; margin: 24px; }
h1 { font-size: 18px; }
table { border-collapse: collapse; width: 100%; margin-top: 12px; }
th, td { border: 1px solid #444; padding: 4px 8px; font-size: 13px; text-align: left; }
.meta { font-size: 13px; }
</style>
</head>
<body>
<h1>Loading Sheet {{.Unit.UnitID}}</h1>
<div class="meta">
<p>Date: {{.Unit.Date}}<br>
Driver: {{.Unit.DriverName}}<br>
Route: {{.Unit.Route}}<br>
Bills: {{.BillCount}}</p>
</div>
<table>
<tr><th>Option</th><th>Product</th><th>Total Bottles</th><th>Bottles/Case</th><th>Cases</th><th>Extra Bottles</th></tr>
{{range .Rows}}
<tr><td>{{.OptionID}}</td><td>{{.ProductID}}</td><td>{{.TotalQty}}</td><td>{{.BottlesPerCase}}</td><td>{{.Cases}}</td><td>{{.Extra}}</td></tr>
{{end}}
</table>
</body>
</html>`))

type sheetRow struct {
	OptionID       string
	ProductID      string
	TotalQty       string
	BottlesPerCase string
	Cases          string
	Extra          string
}

// PrintUnit handles GET /api/v1/units/:id/print. Groups without a case
// assignment render as N/A rather than a zero split.
func (h *Handler) PrintUnit(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.loadUnit(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}

	rows := make([]sheetRow, 0, len(u.Consolidated))
	for _, c := range u.Consolidated {
		row := sheetRow{
			OptionID:       c.OptionID,
			ProductID:      c.ProductID,
			TotalQty:       fmt.Sprintf("%.0f", c.TotalQty),
			BottlesPerCase: "N/A",
			Cases:          "N/A",
			Extra:          "N/A",
		}
		if c.BottlesPerCase != nil {
			row.BottlesPerCase = fmt.Sprintf("%d", *c.BottlesPerCase)
		}
		if c.CaseCount != nil {
			row.Cases = fmt.Sprintf("%d", *c.CaseCount)
		}
		if c.ExtraBottles != nil {
			row.Extra = fmt.Sprintf("%d", *c.ExtraBottles)
		}
		rows = append(rows, row)
	}

	data := struct {
		Unit      interface{}
		BillCount int
		Rows      []sheetRow
	}{u, len(u.BillIDs), rows}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loadingSheetTemplate.Execute(w, data); err != nil {
		response.Err(w, err.Error(), 500)
	}
}
