package catalog

import (
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
)

// ListCategories handles GET /api/v1/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	query := "SELECT id, name, status, created_at FROM categories"
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY name"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		var c models.Category
		rows.Scan(&c.ID, &c.Name, &c.Status, &c.CreatedAt)
		items = append(items, c)
	}
	if items == nil {
		items = []models.Category{}
	}
	response.JSON(w, items)
}

// CreateCategory handles POST /api/v1/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if err := response.DecodeBody(r, &c); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", c.Name)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	c.ID = h.NextID("CAT", "categories", 3)
	c.Status = 1
	now := time.Now().Format("2006-01-02 15:04:05")
	_, err := h.DB.Exec("INSERT INTO categories (id, name, status, created_at) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.Status, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	c.CreatedAt = now
	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "create", "categories", c.ID, "Created category "+c.Name)
	h.broadcast("category", c.ID, "create")
	response.JSON(w, c)
}

// UpdateCategory handles PUT /api/v1/categories/:id.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM categories WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	var c models.Category
	if err := response.DecodeBody(r, &c); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", c.Name)
	validation.ValidateStatusFlag(ve, "status", c.Status)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	_, err := h.DB.Exec("UPDATE categories SET name = ?, status = ? WHERE id = ?", c.Name, c.Status, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "categories", id, "Updated category "+c.Name)
	h.broadcast("category", id, "update")

	c.ID = id
	response.JSON(w, c)
}

// DeleteCategory handles DELETE /api/v1/categories/:id.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "categories", id, "Deleted category")
	h.broadcast("category", id, "delete")
	response.JSON(w, map[string]string{"deleted": id})
}
