// Package common implements shared surfaces: dashboard, reports, exports,
// notifications, audit listing, and user administration.
package common

import (
	"database/sql"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

// Handler holds dependencies for common handlers.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

func (h *Handler) broadcast(recordType, id, action string) {
	if h.Hub != nil {
		h.Hub.BroadcastUpdate(recordType, id, action)
	}
}
