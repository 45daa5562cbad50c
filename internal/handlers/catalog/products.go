package catalog

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
)

// ListProducts handles GET /api/v1/products. status=1 filters to active.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	query := "SELECT id, name, status, created_at FROM products"
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

	var items []models.Product
	for rows.Next() {
		var p models.Product
		rows.Scan(&p.ID, &p.Name, &p.Status, &p.CreatedAt)
		p.Options = h.getOptions(p.ID)
		items = append(items, p)
	}
	if items == nil {
		items = []models.Product{}
	}
	response.JSON(w, items)
}

// GetProduct handles GET /api/v1/products/:id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request, id string) {
	var p models.Product
	err := h.DB.QueryRow("SELECT id, name, status, created_at FROM products WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.Status, &p.CreatedAt)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	p.Options = h.getOptions(id)
	response.JSON(w, p)
}

func (h *Handler) getOptions(productID string) []models.ProductOption {
	rows, err := h.DB.Query("SELECT id, product_id, name, retail_price, db_price, stock FROM product_options WHERE product_id = ? ORDER BY id", productID)
	if err != nil {
		return []models.ProductOption{}
	}
	defer rows.Close()
	var options []models.ProductOption
	for rows.Next() {
		var o models.ProductOption
		rows.Scan(&o.ID, &o.ProductID, &o.Name, &o.RetailPrice, &o.DBPrice, &o.Stock)
		options = append(options, o)
	}
	if options == nil {
		options = []models.ProductOption{}
	}
	return options
}

func validateProduct(ve *validation.ValidationErrors, p *models.Product) {
	validation.RequireField(ve, "name", p.Name)
	validation.ValidateStatusFlag(ve, "status", p.Status)
	for i, o := range p.Options {
		if o.Name == "" {
			ve.Add(fmt.Sprintf("options[%d].name", i), "is required")
		}
		validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("options[%d].retail_price", i), float64(o.RetailPrice))
		validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("options[%d].db_price", i), float64(o.DBPrice))
		validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("options[%d].stock", i), float64(o.Stock))
		validation.ValidateMaxPrice(ve, fmt.Sprintf("options[%d].retail_price", i), float64(o.RetailPrice))
	}
}

// CreateProduct handles POST /api/v1/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if err := response.DecodeBody(r, &p); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	// New products start active; deactivation happens through update.
	p.Status = 1

	ve := &validation.ValidationErrors{}
	validateProduct(ve, &p)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	p.ID = h.NextID("PRD", "products", 3)
	now := time.Now().Format("2006-01-02 15:04:05")

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO products (id, name, status, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.Status, now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for _, o := range p.Options {
		if _, err := tx.Exec("INSERT INTO product_options (product_id, name, retail_price, db_price, stock) VALUES (?, ?, ?, ?, ?)",
			p.ID, o.Name, float64(o.RetailPrice), float64(o.DBPrice), float64(o.Stock)); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	p.CreatedAt = now
	p.Options = h.getOptions(p.ID)
	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "create", "products", p.ID, "Created product "+p.Name)
	h.broadcast("product", p.ID, "create")
	response.JSON(w, p)
}

// UpdateProduct handles PUT /api/v1/products/:id. The option list in the
// payload replaces the stored one: options are matched by name, removed
// names are deleted, and stock is set to the payload value.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM products WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	var p models.Product
	if err := response.DecodeBody(r, &p); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validateProduct(ve, &p)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE products SET name = ?, status = ? WHERE id = ?", p.Name, p.Status, id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	keep := make([]interface{}, 0, len(p.Options)+1)
	keep = append(keep, id)
	placeholders := ""
	for _, o := range p.Options {
		if placeholders != "" {
			placeholders += ","
		}
		placeholders += "?"
		keep = append(keep, o.Name)

		res, err := tx.Exec("UPDATE product_options SET retail_price = ?, db_price = ?, stock = ? WHERE product_id = ? AND name = ?",
			float64(o.RetailPrice), float64(o.DBPrice), float64(o.Stock), id, o.Name)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.Exec("INSERT INTO product_options (product_id, name, retail_price, db_price, stock) VALUES (?, ?, ?, ?, ?)",
				id, o.Name, float64(o.RetailPrice), float64(o.DBPrice), float64(o.Stock)); err != nil {
				response.Err(w, err.Error(), 500)
				return
			}
		}
	}
	delQuery := "DELETE FROM product_options WHERE product_id = ?"
	if placeholders != "" {
		delQuery += " AND name NOT IN (" + placeholders + ")"
	}
	if _, err := tx.Exec(delQuery, keep...); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "products", id, "Updated product "+p.Name)
	h.broadcast("product", id, "update")
	h.GetProduct(w, r, id)
}

// DeleteProduct handles DELETE /api/v1/products/:id. Options cascade.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("DELETE FROM products WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "products", id, "Deleted product")
	h.broadcast("product", id, "delete")
	response.JSON(w, map[string]string{"deleted": id})
}

// MarginForOption reports the derived per-bottle margin. Zero when either
// price is missing.
func MarginForOption(o models.ProductOption) float64 {
	return billing.LineMargin(float64(o.RetailPrice), float64(o.DBPrice), 1)
}
