package units

import (
	"net/http"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// UpdateCaseSplit handles PUT /api/v1/units/:id/case-split. The operator
// picks bottles-per-case for one consolidated group and the case/bottle
// split is recomputed from the stored total.
func (h *Handler) UpdateCaseSplit(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		OptionID       string `json:"option_id"`
		ProductID      string `json:"product_id"`
		BottlesPerCase int    `json:"bottles_per_case"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if body.OptionID == "" || body.ProductID == "" {
		response.Err(w, "option_id and product_id are required", 400)
		return
	}
	if !billing.ValidDivisor(body.BottlesPerCase) {
		response.Err(w, "bottles_per_case must be one of 9, 12, 15, 24, 30", 400)
		return
	}

	var totalQty float64
	err := h.DB.QueryRow("SELECT total_qty FROM unit_products WHERE unit_id = ? AND option_id = ? AND product_id = ?",
		id, body.OptionID, body.ProductID).Scan(&totalQty)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}

	split := billing.SplitCases(totalQty, &body.BottlesPerCase)
	_, err = h.DB.Exec(`UPDATE unit_products SET bottles_per_case = ?, case_count = ?, extra_bottles = ?
		WHERE unit_id = ? AND option_id = ? AND product_id = ?`,
		body.BottlesPerCase, split.Cases, split.ExtraBottles, id, body.OptionID, body.ProductID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "units", id, "Adjusted case split for "+body.OptionID)
	h.broadcast("unit", id, "update")
	h.GetUnit(w, r, id)
}
