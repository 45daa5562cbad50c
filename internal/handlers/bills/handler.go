// Package bills implements invoice handlers: CRUD with atomic stock
// adjustment, printable documents, store out/in tracking, per-user
// bookmarks, and manual bills.
package bills

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

// NextIDFunc generates a sequential ID with the given prefix and table.
type NextIDFunc func(prefix, table string, digits int) string

// Handler holds dependencies for bill handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	NextID NextIDFunc
}

func (h *Handler) broadcast(recordType, id, action string) {
	if h.Hub != nil {
		h.Hub.BroadcastUpdate(recordType, id, action)
	}
}

// nextBillNo allocates the next invoice number inside the caller's
// transaction so concurrent saves cannot collide.
func nextBillNo(tx *sql.Tx, prefix string) (string, error) {
	var last sql.NullString
	err := tx.QueryRow("SELECT bill_no FROM bills WHERE bill_no LIKE ? ORDER BY bill_no DESC LIMIT 1", prefix+"%").Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}
	next := 1
	if last.Valid {
		if n, err := strconv.Atoi(strings.TrimPrefix(last.String, prefix)); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%05d", prefix, next), nil
}

// nextManualBillNo allocates the next manual bill number within a transaction.
func nextManualBillNo(tx *sql.Tx, prefix string) (string, error) {
	var last sql.NullString
	err := tx.QueryRow("SELECT bill_no FROM manual_bills WHERE bill_no LIKE ? ORDER BY bill_no DESC LIMIT 1", prefix+"%").Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}
	next := 1
	if last.Valid {
		if n, err := strconv.Atoi(strings.TrimPrefix(last.String, prefix)); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%05d", prefix, next), nil
}
