// Package audit records user actions to the audit_log table and pushes
// live notifications for them over the websocket hub.
package audit

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

// Hub is the subset of the websocket hub used by the audit logger.
type Hub interface {
	BroadcastUpdate(recordType, recordID, action string)
}

// LogAudit writes an audit log entry. Errors are logged but not propagated;
// an audit failure never fails the underlying operation.
func LogAudit(db *sql.DB, hub Hub, username, action, module, recordID, summary string) {
	now := time.Now().Format("2006-01-02 15:04:05")
	_, err := db.Exec(`INSERT INTO audit_log (username, action, module, record_id, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		username, action, module, recordID, summary, now)
	if err != nil {
		log.Printf("audit log error: %v", err)
		return
	}
	if hub != nil {
		hub.BroadcastUpdate("audit", recordID, action)
	}
}

// GetUsername resolves the logged-in username from the session cookie.
// Returns "system" when no valid session is present so background and
// unauthenticated writes still carry an attribution.
func GetUsername(db *sql.DB, r *http.Request) string {
	cookie, err := r.Cookie("pepsi_session")
	if err != nil || cookie.Value == "" {
		return "system"
	}
	var username string
	err = db.QueryRow(`SELECT u.username FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`,
		cookie.Value, time.Now().Format("2006-01-02 15:04:05")).Scan(&username)
	if err != nil {
		return "system"
	}
	return username
}

var _ Hub = (*websocket.Hub)(nil)
