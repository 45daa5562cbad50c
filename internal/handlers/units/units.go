package units

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
)

// ListUnits handles GET /api/v1/units with an optional date filter.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	query := "SELECT id FROM units"
	var args []interface{}
	if date != "" {
		query += " WHERE date = ?"
		args = append(args, date)
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		rows.Scan(&id)
		ids = append(ids, id)
	}

	items := make([]models.Unit, 0, len(ids))
	for _, id := range ids {
		u, err := h.loadUnit(id)
		if err != nil {
			continue
		}
		items = append(items, *u)
	}
	response.JSON(w, items)
}

// GetUnit handles GET /api/v1/units/:id.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.loadUnit(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, u)
}

func (h *Handler) loadUnit(id string) (*models.Unit, error) {
	var u models.Unit
	err := h.DB.QueryRow("SELECT id, unit_id, date, driver_name, route, total_margin, created_by, created_at FROM units WHERE id = ?", id).
		Scan(&u.ID, &u.UnitID, &u.Date, &u.DriverName, &u.Route, &u.TotalMargin, &u.CreatedBy, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.TotalMargin = billing.Round2(u.TotalMargin)

	billRows, err := h.DB.Query("SELECT bill_id FROM unit_bills WHERE unit_id = ? ORDER BY bill_id", id)
	if err != nil {
		return nil, err
	}
	defer billRows.Close()
	u.BillIDs = []string{}
	for billRows.Next() {
		var billID string
		billRows.Scan(&billID)
		u.BillIDs = append(u.BillIDs, billID)
	}

	u.Consolidated, err = h.loadConsolidated(id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *Handler) loadConsolidated(unitID string) ([]billing.ConsolidatedProduct, error) {
	rows, err := h.DB.Query(`SELECT option_id, product_id, total_qty, bottles_per_case, case_count, extra_bottles
		FROM unit_products WHERE unit_id = ?`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []billing.ConsolidatedProduct{}
	for rows.Next() {
		var c billing.ConsolidatedProduct
		if err := rows.Scan(&c.OptionID, &c.ProductID, &c.TotalQty, &c.BottlesPerCase, &c.CaseCount, &c.ExtraBottles); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	billing.SortByOptionSize(items)
	return items, rows.Err()
}

// consolidateBills pulls every line from the given bills and produces the
// grouped totals with their case splits.
func (h *Handler) consolidateBills(billIDs []string) ([]billing.ConsolidatedProduct, error) {
	var lines []billing.ConsolidationLine
	for _, billID := range billIDs {
		rows, err := h.DB.Query("SELECT product_id, option_id, qty FROM bill_lines WHERE bill_id = ? ORDER BY id", billID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var l billing.ConsolidationLine
			if err := rows.Scan(&l.ProductID, &l.OptionID, &l.Qty); err != nil {
				rows.Close()
				return nil, err
			}
			l.BottlesPerCase = h.caseDefault(l.OptionID)
			lines = append(lines, l)
		}
		rows.Close()
	}

	consolidated := billing.Consolidate(lines)
	for i := range consolidated {
		split := billing.SplitCases(consolidated[i].TotalQty, consolidated[i].BottlesPerCase)
		if split != nil {
			consolidated[i].CaseCount = &split.Cases
			consolidated[i].ExtraBottles = &split.ExtraBottles
		}
	}
	billing.SortByOptionSize(consolidated)
	return consolidated, nil
}

type unitRequest struct {
	Date       string   `json:"date"`
	DriverName string   `json:"driver_name"`
	Route      string   `json:"route"`
	BillIDs    []string `json:"bill_ids"`
}

func (h *Handler) validateUnitBills(ve *validation.ValidationErrors, billIDs []string) {
	if len(billIDs) == 0 {
		ve.Add("bill_ids", "at least one bill is required")
		return
	}
	for _, billID := range billIDs {
		var exists int
		h.DB.QueryRow("SELECT COUNT(*) FROM bills WHERE id = ?", billID).Scan(&exists)
		if exists == 0 {
			ve.Add("bill_ids", "bill "+billID+" does not exist")
		}
	}
}

// CreateUnit handles POST /api/v1/units. The chosen bills are consolidated
// and the grouped totals persisted with the unit. The unit's margin is the
// sum of its bills' margins, captured at creation.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.ValidateDate(ve, "date", req.Date)
	h.validateUnitBills(ve, req.BillIDs)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	consolidated, err := h.consolidateBills(req.BillIDs)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	var totalMargin float64
	for _, billID := range req.BillIDs {
		totalMargin += h.billMargin(billID)
	}

	id := h.NextID("UNIT", "units", 3)
	createdBy := audit.GetUsername(h.DB, r)
	now := time.Now().Format("2006-01-02 15:04:05")

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	label, err := nextUnitLabel(tx)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	if _, err := tx.Exec(`INSERT INTO units (id, unit_id, date, driver_name, route, total_margin, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, label, req.Date, req.DriverName, req.Route, totalMargin, createdBy, now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for _, billID := range req.BillIDs {
		if _, err := tx.Exec("INSERT INTO unit_bills (unit_id, bill_id) VALUES (?, ?)", id, billID); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := insertConsolidated(tx, id, consolidated); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.LogAudit(h.DB, h.Hub, createdBy, "create", "units", id, "Created unit "+label)
	h.broadcast("unit", id, "create")

	u, err := h.loadUnit(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, u)
}

func insertConsolidated(tx *sql.Tx, unitID string, items []billing.ConsolidatedProduct) error {
	for _, c := range items {
		if _, err := tx.Exec(`INSERT INTO unit_products (unit_id, option_id, product_id, total_qty, bottles_per_case, case_count, extra_bottles)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			unitID, c.OptionID, c.ProductID, c.TotalQty, intOrNull(c.BottlesPerCase), intOrNull(c.CaseCount), intOrNull(c.ExtraBottles)); err != nil {
			return err
		}
	}
	return nil
}

func intOrNull(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// UpdateUnit handles PUT /api/v1/units/:id. Changing the bill set rebuilds
// the consolidation, dropping any operator case-split overrides.
func (h *Handler) UpdateUnit(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM units WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	var req unitRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.ValidateDate(ve, "date", req.Date)
	h.validateUnitBills(ve, req.BillIDs)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	consolidated, err := h.consolidateBills(req.BillIDs)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	var totalMargin float64
	for _, billID := range req.BillIDs {
		totalMargin += h.billMargin(billID)
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE units SET date = ?, driver_name = ?, route = ?, total_margin = ? WHERE id = ?",
		req.Date, req.DriverName, req.Route, totalMargin, id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("DELETE FROM unit_bills WHERE unit_id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for _, billID := range req.BillIDs {
		if _, err := tx.Exec("INSERT INTO unit_bills (unit_id, bill_id) VALUES (?, ?)", id, billID); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if _, err := tx.Exec("DELETE FROM unit_products WHERE unit_id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := insertConsolidated(tx, id, consolidated); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "units", id, "Updated unit")
	h.broadcast("unit", id, "update")
	h.GetUnit(w, r, id)
}

// DeleteUnit handles DELETE /api/v1/units/:id. Joined rows cascade.
func (h *Handler) DeleteUnit(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("DELETE FROM units WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "units", id, "Deleted unit")
	h.broadcast("unit", id, "delete")
	response.JSON(w, map[string]string{"deleted": id})
}
