package catalog

import (
	"net/http"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
)

// ListCaseAssignments handles GET /api/v1/case-assignments. These are the
// default bottles-per-case values offered when splitting loading totals.
func (h *Handler) ListCaseAssignments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query("SELECT option_name, bottles_per_case FROM bottle_case_assignments ORDER BY option_name")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.CaseAssignment
	for rows.Next() {
		var a models.CaseAssignment
		rows.Scan(&a.OptionName, &a.BottlesPerCase)
		items = append(items, a)
	}
	if items == nil {
		items = []models.CaseAssignment{}
	}
	response.JSON(w, items)
}

// PutCaseAssignment handles PUT /api/v1/case-assignments/:option. Creates or
// replaces the default divisor for one option.
func (h *Handler) PutCaseAssignment(w http.ResponseWriter, r *http.Request, optionName string) {
	var a models.CaseAssignment
	if err := response.DecodeBody(r, &a); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	a.OptionName = optionName

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "option_name", a.OptionName)
	if !billing.ValidDivisor(a.BottlesPerCase) {
		ve.Add("bottles_per_case", "must be one of 9, 12, 15, 24, 30")
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	_, err := h.DB.Exec(`INSERT INTO bottle_case_assignments (option_name, bottles_per_case) VALUES (?, ?)
		ON CONFLICT(option_name) DO UPDATE SET bottles_per_case = excluded.bottles_per_case`,
		a.OptionName, a.BottlesPerCase)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "case_assignments", a.OptionName, "Set bottles per case")
	h.broadcast("case_assignment", a.OptionName, "update")
	response.JSON(w, a)
}

// DeleteCaseAssignment handles DELETE /api/v1/case-assignments/:option.
func (h *Handler) DeleteCaseAssignment(w http.ResponseWriter, r *http.Request, optionName string) {
	res, err := h.DB.Exec("DELETE FROM bottle_case_assignments WHERE option_name = ?", optionName)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "case_assignments", optionName, "Removed bottles per case")
	h.broadcast("case_assignment", optionName, "delete")
	response.JSON(w, map[string]string{"deleted": optionName})
}
