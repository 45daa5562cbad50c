package common

import (
	"net/http"
	"strconv"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// ListAudit handles GET /api/v1/audit with module, username, and record
// filters, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	username := r.URL.Query().Get("username")
	recordID := r.URL.Query().Get("record_id")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	query := "SELECT id, username, action, module, record_id, summary, created_at FROM audit_log"
	var conditions []string
	var args []interface{}
	if module != "" {
		conditions = append(conditions, "module = ?")
		args = append(args, module)
	}
	if username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, username)
	}
	if recordID != "" {
		conditions = append(conditions, "record_id = ?")
		args = append(args, recordID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.CreatedAt)
		items = append(items, e)
	}
	if items == nil {
		items = []models.AuditEntry{}
	}
	response.JSON(w, items)
}
