// Package catalog implements product, customer, category, and bottle/case
// assignment handlers.
package catalog

import (
	"database/sql"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

// NextIDFunc generates a sequential ID with the given prefix and table.
type NextIDFunc func(prefix, table string, digits int) string

// Handler holds dependencies for catalog handlers.
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
