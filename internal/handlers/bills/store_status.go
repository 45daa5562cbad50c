package bills

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// getStoreStatus reads the two-phase store flags for a bill, defaulting to
// both false when no row exists yet.
func (h *Handler) getStoreStatus(billID string) (models.StoreStatus, error) {
	s := models.StoreStatus{BillID: billID}
	var out, in int
	var outAt, inAt sql.NullString
	err := h.DB.QueryRow("SELECT is_stored_out, is_stored_in, stored_out_at, stored_in_at FROM bill_store_status WHERE bill_id = ?", billID).
		Scan(&out, &in, &outAt, &inAt)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	s.IsStoredOut = out == 1
	s.IsStoredIn = in == 1
	if outAt.Valid {
		s.StoredOutAt = &outAt.String
	}
	if inAt.Valid {
		s.StoredInAt = &inAt.String
	}
	return s, nil
}

// GetStoreStatus handles GET /api/v1/bills/:id/store-status.
func (h *Handler) GetStoreStatus(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM bills WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}
	s, err := h.getStoreStatus(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, s)
}

// StoreOut handles POST /api/v1/bills/:id/store-out. Marks goods issued from
// the store. Rejected when the bill is already out.
func (h *Handler) StoreOut(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM bills WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}
	s, err := h.getStoreStatus(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if s.IsStoredOut && !s.IsStoredIn {
		response.Err(w, "bill is already stored out", 400)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	_, err = h.DB.Exec(`INSERT INTO bill_store_status (bill_id, is_stored_out, is_stored_in, stored_out_at, stored_in_at)
		VALUES (?, 1, 0, ?, NULL)
		ON CONFLICT(bill_id) DO UPDATE SET is_stored_out = 1, is_stored_in = 0, stored_out_at = excluded.stored_out_at, stored_in_at = NULL`,
		id, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "bills", id, "Stored out")
	h.broadcast("bill_store_status", id, "update")
	s, _ = h.getStoreStatus(id)
	response.JSON(w, s)
}

// StoreIn handles POST /api/v1/bills/:id/store-in. Marks returned goods
// received back. Requires a prior store-out and rejects a second store-in.
func (h *Handler) StoreIn(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM bills WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}
	s, err := h.getStoreStatus(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if !s.IsStoredOut {
		response.Err(w, "bill has not been stored out", 400)
		return
	}
	if s.IsStoredIn {
		response.Err(w, "bill is already stored in", 400)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	_, err = h.DB.Exec("UPDATE bill_store_status SET is_stored_in = 1, stored_in_at = ? WHERE bill_id = ?", now, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "bills", id, "Stored in")
	h.broadcast("bill_store_status", id, "update")
	s, _ = h.getStoreStatus(id)
	response.JSON(w, s)
}
