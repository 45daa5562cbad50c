package bills

import (
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// ListMyBills handles GET /api/v1/my-bills. Bookmarks belong to the
// session user.
func (h *Handler) ListMyBills(w http.ResponseWriter, r *http.Request) {
	username := audit.GetUsername(h.DB, r)

	rows, err := h.DB.Query(`SELECT m.bill_id, m.username, m.added_at, b.bill_no, b.outlet_name
		FROM my_bills m JOIN bills b ON b.id = m.bill_id
		WHERE m.username = ? ORDER BY m.added_at DESC`, username)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.MyBill
	for rows.Next() {
		var m models.MyBill
		rows.Scan(&m.BillID, &m.Username, &m.AddedAt, &m.BillNo, &m.Outlet)
		items = append(items, m)
	}
	if items == nil {
		items = []models.MyBill{}
	}
	response.JSON(w, items)
}

// AddMyBill handles POST /api/v1/my-bills. Adding the same bill twice is a
// no-op.
func (h *Handler) AddMyBill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BillID string `json:"bill_id"`
	}
	if err := response.DecodeBody(r, &body); err != nil || body.BillID == "" {
		response.Err(w, "bill_id is required", 400)
		return
	}

	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM bills WHERE id = ?", body.BillID).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	now := time.Now().Format("2006-01-02 15:04:05")
	_, err := h.DB.Exec("INSERT OR IGNORE INTO my_bills (bill_id, username, added_at) VALUES (?, ?, ?)",
		body.BillID, username, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.broadcast("my_bill", body.BillID, "create")
	response.JSON(w, models.MyBill{BillID: body.BillID, Username: username, AddedAt: now})
}

// RemoveMyBill handles DELETE /api/v1/my-bills/:billID.
func (h *Handler) RemoveMyBill(w http.ResponseWriter, r *http.Request, billID string) {
	username := audit.GetUsername(h.DB, r)
	res, err := h.DB.Exec("DELETE FROM my_bills WHERE bill_id = ? AND username = ?", billID, username)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	h.broadcast("my_bill", billID, "delete")
	response.JSON(w, map[string]string{"deleted": billID})
}
