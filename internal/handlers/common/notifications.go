package common

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// ListNotifications handles GET /api/v1/notifications. unread=true narrows
// to unread.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread")

	query := "SELECT id, type, severity, title, message, record_id, module, read_at, created_at FROM notifications"
	if unread == "true" {
		query += " WHERE read_at IS NULL"
	}
	query += " ORDER BY created_at DESC LIMIT 100"

	rows, err := h.DB.Query(query)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.Notification
	for rows.Next() {
		var n models.Notification
		var message, recordID, module, readAt sql.NullString
		rows.Scan(&n.ID, &n.Type, &n.Severity, &n.Title, &message, &recordID, &module, &readAt, &n.CreatedAt)
		if message.Valid {
			n.Message = &message.String
		}
		if recordID.Valid {
			n.RecordID = &recordID.String
		}
		if module.Valid {
			n.Module = &module.String
		}
		if readAt.Valid {
			n.ReadAt = &readAt.String
		}
		items = append(items, n)
	}
	if items == nil {
		items = []models.Notification{}
	}
	response.JSON(w, items)
}

// MarkNotificationRead handles POST /api/v1/notifications/:id/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request, id string) {
	now := time.Now().Format("2006-01-02 15:04:05")
	res, err := h.DB.Exec("UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL", now, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}
	h.broadcast("notification", id, "update")
	response.JSON(w, map[string]string{"read": id})
}

// MarkAllNotificationsRead handles POST /api/v1/notifications/read-all.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := h.DB.Exec("UPDATE notifications SET read_at = ? WHERE read_at IS NULL", now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.broadcast("notification", "all", "update")
	response.JSON(w, map[string]string{"read": "all"})
}

// GenerateNotifications scans for overdue balances and low stock and writes
// a notification for each condition not already flagged. Run periodically
// from the server's background loop.
func (h *Handler) GenerateNotifications() {
	h.generateOverdueNotifications()
	h.generateLowStockNotifications()
}

func (h *Handler) generateOverdueNotifications() {
	cutoff := time.Now().AddDate(0, 0, -14).Format("2006-01-02")
	rows, err := h.DB.Query("SELECT id, bill_no, outlet_name, percentage_discount FROM bills WHERE create_date <= ?", cutoff)
	if err != nil {
		log.Printf("notifications: overdue scan: %v", err)
		return
	}
	defer rows.Close()

	type candidate struct {
		id, billNo, outlet string
		pct                float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		rows.Scan(&c.id, &c.billNo, &c.outlet, &c.pct)
		candidates = append(candidates, c)
	}

	for _, c := range candidates {
		if h.billBalance(c.id, c.pct) <= 0 {
			continue
		}
		var exists int
		h.DB.QueryRow("SELECT COUNT(*) FROM notifications WHERE type = 'overdue_bill' AND record_id = ?", c.id).Scan(&exists)
		if exists > 0 {
			continue
		}
		msg := "Bill " + c.billNo + " for " + c.outlet + " has an outstanding balance past 14 days"
		h.DB.Exec(`INSERT INTO notifications (type, severity, title, message, record_id, module)
			VALUES ('overdue_bill', 'warning', ?, ?, ?, 'bills')`,
			"Overdue balance: "+c.billNo, msg, c.id)
		h.broadcast("notification", c.id, "create")
	}
}

func (h *Handler) generateLowStockNotifications() {
	threshold := h.lowStockThreshold()
	rows, err := h.DB.Query(`SELECT p.id, p.name, o.name, o.stock
		FROM product_options o JOIN products p ON p.id = o.product_id
		WHERE o.stock <= ?`, threshold)
	if err != nil {
		log.Printf("notifications: low stock scan: %v", err)
		return
	}
	defer rows.Close()

	type candidate struct {
		productID, name, option string
		stock                   float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		rows.Scan(&c.productID, &c.name, &c.option, &c.stock)
		candidates = append(candidates, c)
	}

	for _, c := range candidates {
		recordID := c.productID + "/" + c.option
		var exists int
		h.DB.QueryRow("SELECT COUNT(*) FROM notifications WHERE type = 'low_stock' AND record_id = ? AND read_at IS NULL", recordID).Scan(&exists)
		if exists > 0 {
			continue
		}
		msg := c.name + " " + c.option + " is low on stock"
		h.DB.Exec(`INSERT INTO notifications (type, severity, title, message, record_id, module)
			VALUES ('low_stock', 'warning', ?, ?, ?, 'products')`,
			"Low stock: "+c.name+" "+c.option, msg, recordID)
		h.broadcast("notification", recordID, "create")
	}
}
