package common

import (
	"database/sql"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
)

// Admin-only user management. The router gates these behind the admin role.

// ListUsers handles GET /api/v1/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query("SELECT id, username, COALESCE(display_name, ''), role, active, COALESCE(last_login, ''), created_at FROM users ORDER BY username")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.User
	for rows.Next() {
		var u models.User
		rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Active, &u.LastLogin, &u.CreatedAt)
		items = append(items, u)
	}
	if items == nil {
		items = []models.User{}
	}
	response.JSON(w, items)
}

type userRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      *int   `json:"active"`
}

// CreateUser handles POST /api/v1/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "username", req.Username)
	if len(req.Password) < 8 {
		ve.Add("password", "must be at least 8 characters")
	}
	if req.Role == "" {
		req.Role = "user"
	}
	validation.ValidateEnum(ve, "role", req.Role, []string{"admin", "user"})
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	res, err := h.DB.Exec("INSERT INTO users (username, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, 1)",
		req.Username, string(hash), req.DisplayName, req.Role)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			response.Err(w, "username already exists", 400)
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}
	id, _ := res.LastInsertId()

	actor := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, actor, "create", "users", req.Username, "Created user")
	response.JSON(w, models.User{ID: int(id), Username: req.Username, DisplayName: req.DisplayName, Role: req.Role, Active: 1})
}

// UpdateUser handles PUT /api/v1/users/:id. Password changes only when a new
// one is supplied.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request, id string) {
	var username string
	if err := h.DB.QueryRow("SELECT username FROM users WHERE id = ?", id).Scan(&username); err != nil {
		response.Err(w, "not found", 404)
		return
	}

	var req userRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	if req.Role != "" {
		validation.ValidateEnum(ve, "role", req.Role, []string{"admin", "user"})
	}
	if req.Password != "" && len(req.Password) < 8 {
		ve.Add("password", "must be at least 8 characters")
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	if req.DisplayName != "" {
		h.DB.Exec("UPDATE users SET display_name = ? WHERE id = ?", req.DisplayName, id)
	}
	if req.Role != "" {
		h.DB.Exec("UPDATE users SET role = ? WHERE id = ?", req.Role, id)
	}
	if req.Active != nil {
		h.DB.Exec("UPDATE users SET active = ? WHERE id = ?", *req.Active, id)
		// Deactivation kills existing sessions.
		if *req.Active == 0 {
			h.DB.Exec("DELETE FROM sessions WHERE user_id = ?", id)
		}
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		h.DB.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hash), id)
	}

	actor := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, actor, "update", "users", username, "Updated user")

	var u models.User
	var lastLogin sql.NullString
	err := h.DB.QueryRow("SELECT id, username, COALESCE(display_name, ''), role, active, last_login, created_at FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Active, &lastLogin, &u.CreatedAt)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.String
	}
	response.JSON(w, u)
}

// DeleteUser handles DELETE /api/v1/users/:id. The admin account cannot be
// removed.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request, id string) {
	var username string
	if err := h.DB.QueryRow("SELECT username FROM users WHERE id = ?", id).Scan(&username); err != nil {
		response.Err(w, "not found", 404)
		return
	}
	if username == "admin" {
		response.Err(w, "cannot delete the admin user", 400)
		return
	}

	if _, err := h.DB.Exec("DELETE FROM users WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	actor := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, actor, "delete", "users", username, "Deleted user")
	response.JSON(w, map[string]string{"deleted": username})
}
