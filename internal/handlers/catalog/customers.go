package catalog

import (
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
)

// ListCustomers handles GET /api/v1/customers. status=1 filters to active
// outlets, the default view used by the billing screen.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	outlet := r.URL.Query().Get("outlet")

	query := "SELECT id, outlet_name, address, contact_number, sales_ref_name, ref_contact_number, status, created_at FROM customers"
	var conditions []string
	var args []interface{}
	if status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}
	if outlet != "" {
		conditions = append(conditions, "outlet_name LIKE ?")
		args = append(args, "%"+outlet+"%")
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY outlet_name"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.Customer
	for rows.Next() {
		var c models.Customer
		rows.Scan(&c.ID, &c.OutletName, &c.Address, &c.ContactNumber, &c.SalesRefName, &c.RefContactNumber, &c.Status, &c.CreatedAt)
		items = append(items, c)
	}
	if items == nil {
		items = []models.Customer{}
	}
	response.JSON(w, items)
}

// GetCustomer handles GET /api/v1/customers/:id.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request, id string) {
	var c models.Customer
	err := h.DB.QueryRow("SELECT id, outlet_name, address, contact_number, sales_ref_name, ref_contact_number, status, created_at FROM customers WHERE id = ?", id).
		Scan(&c.ID, &c.OutletName, &c.Address, &c.ContactNumber, &c.SalesRefName, &c.RefContactNumber, &c.Status, &c.CreatedAt)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, c)
}

// CreateCustomer handles POST /api/v1/customers.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if err := response.DecodeBody(r, &c); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "outlet_name", c.OutletName)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	c.ID = h.NextID("CUS", "customers", 3)
	c.Status = 1
	now := time.Now().Format("2006-01-02 15:04:05")
	_, err := h.DB.Exec(`INSERT INTO customers (id, outlet_name, address, contact_number, sales_ref_name, ref_contact_number, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OutletName, c.Address, c.ContactNumber, c.SalesRefName, c.RefContactNumber, c.Status, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	c.CreatedAt = now
	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "create", "customers", c.ID, "Created customer "+c.OutletName)
	h.broadcast("customer", c.ID, "create")
	response.JSON(w, c)
}

// UpdateCustomer handles PUT /api/v1/customers/:id.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM customers WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	var c models.Customer
	if err := response.DecodeBody(r, &c); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "outlet_name", c.OutletName)
	validation.ValidateStatusFlag(ve, "status", c.Status)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	_, err := h.DB.Exec(`UPDATE customers SET outlet_name = ?, address = ?, contact_number = ?, sales_ref_name = ?, ref_contact_number = ?, status = ? WHERE id = ?`,
		c.OutletName, c.Address, c.ContactNumber, c.SalesRefName, c.RefContactNumber, c.Status, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "customers", id, "Updated customer "+c.OutletName)
	h.broadcast("customer", id, "update")
	h.GetCustomer(w, r, id)
}

// DeleteCustomer handles DELETE /api/v1/customers/:id.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.DB.Exec("DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "customers", id, "Deleted customer")
	h.broadcast("customer", id, "delete")
	response.JSON(w, map[string]string{"deleted": id})
}
