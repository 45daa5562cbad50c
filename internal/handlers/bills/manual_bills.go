package bills

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
)

// Manual bills are operator-entered invoices outside the normal stock flow.
// They get their own number sequence and never touch stock counters.

// ListManualBills handles GET /api/v1/manual-bills.
func (h *Handler) ListManualBills(w http.ResponseWriter, r *http.Request) {
	outlet := r.URL.Query().Get("outlet")

	query := "SELECT id FROM manual_bills"
	var args []interface{}
	if outlet != "" {
		query += " WHERE outlet_name LIKE ?"
		args = append(args, "%"+outlet+"%")
	}
	query += " ORDER BY bill_no DESC"

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

	items := make([]models.ManualBill, 0, len(ids))
	for _, id := range ids {
		m, err := h.loadManualBill(id)
		if err != nil {
			continue
		}
		items = append(items, *m)
	}
	response.JSON(w, items)
}

// GetManualBill handles GET /api/v1/manual-bills/:id.
func (h *Handler) GetManualBill(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.loadManualBill(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, m)
}

func (h *Handler) loadManualBill(id string) (*models.ManualBill, error) {
	var m models.ManualBill
	err := h.DB.QueryRow("SELECT id, bill_no, outlet_name, address, contact, create_date, created_by, created_at FROM manual_bills WHERE id = ?", id).
		Scan(&m.ID, &m.BillNo, &m.OutletName, &m.Address, &m.Contact, &m.CreateDate, &m.CreatedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB.Query("SELECT id, manual_bill_id, product_id, option_id, price, qty FROM manual_bill_lines WHERE manual_bill_id = ? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m.Lines = []models.BillLine{}
	for rows.Next() {
		var l models.BillLine
		rows.Scan(&l.ID, &l.BillID, &l.ProductID, &l.OptionID, &l.Price, &l.Qty)
		m.Lines = append(m.Lines, l)
	}

	m.Total = billing.Round2(billing.SumProductTotal(m.Lines))
	return &m, nil
}

// CreateManualBill handles POST /api/v1/manual-bills.
func (h *Handler) CreateManualBill(w http.ResponseWriter, r *http.Request) {
	var m models.ManualBill
	if err := response.DecodeBody(r, &m); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "outlet_name", m.OutletName)
	validation.ValidateDate(ve, "create_date", m.CreateDate)
	for i, l := range m.Lines {
		validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("lines[%d].qty", i), float64(l.Qty))
		validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("lines[%d].price", i), float64(l.Price))
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	if m.CreateDate == "" {
		m.CreateDate = time.Now().Format("2006-01-02")
	}

	m.ID = h.NextID("MBILL", "manual_bills", 4)
	m.CreatedBy = audit.GetUsername(h.DB, r)
	now := time.Now().Format("2006-01-02 15:04:05")

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	m.BillNo, err = nextManualBillNo(tx, "MB")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	if _, err := tx.Exec(`INSERT INTO manual_bills (id, bill_no, outlet_name, address, contact, create_date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.BillNo, m.OutletName, m.Address, m.Contact, m.CreateDate, m.CreatedBy, now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for _, l := range m.Lines {
		if _, err := tx.Exec("INSERT INTO manual_bill_lines (manual_bill_id, product_id, option_id, price, qty) VALUES (?, ?, ?, ?, ?)",
			m.ID, l.ProductID, l.OptionID, float64(l.Price), float64(l.Qty)); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.LogAudit(h.DB, h.Hub, m.CreatedBy, "create", "manual_bills", m.ID, "Created manual bill "+m.BillNo)
	h.broadcast("manual_bill", m.ID, "create")

	out, err := h.loadManualBill(m.ID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, out)
}

// UpdateManualBill handles PUT /api/v1/manual-bills/:id.
func (h *Handler) UpdateManualBill(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM manual_bills WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	var m models.ManualBill
	if err := response.DecodeBody(r, &m); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "outlet_name", m.OutletName)
	validation.ValidateDate(ve, "create_date", m.CreateDate)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE manual_bills SET outlet_name = ?, address = ?, contact = ?, create_date = ? WHERE id = ?",
		m.OutletName, m.Address, m.Contact, m.CreateDate, id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("DELETE FROM manual_bill_lines WHERE manual_bill_id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for _, l := range m.Lines {
		if _, err := tx.Exec("INSERT INTO manual_bill_lines (manual_bill_id, product_id, option_id, price, qty) VALUES (?, ?, ?, ?, ?)",
			id, l.ProductID, l.OptionID, float64(l.Price), float64(l.Qty)); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "manual_bills", id, "Updated manual bill")
	h.broadcast("manual_bill", id, "update")
	h.GetManualBill(w, r, id)
}

// DeleteManualBill handles DELETE /api/v1/manual-bills/:id.
func (h *Handler) DeleteManualBill(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("DELETE FROM manual_bills WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "manual_bills", id, "Deleted manual bill")
	h.broadcast("manual_bill", id, "delete")
	response.JSON(w, map[string]string{"deleted": id})
}
