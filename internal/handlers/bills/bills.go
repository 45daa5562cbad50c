package bills

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

// ListBills handles GET /api/v1/bills. Supports outlet, customer, date and
// print status filters. Every row carries its computed totals and balance.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	outlet := r.URL.Query().Get("outlet")
	customerID := r.URL.Query().Get("customer_id")
	date := r.URL.Query().Get("date")
	printStatus := r.URL.Query().Get("print_status")

	query := "SELECT id FROM bills"
	var conditions []string
	var args []interface{}
	if outlet != "" {
		conditions = append(conditions, "outlet_name LIKE ?")
		args = append(args, "%"+outlet+"%")
	}
	if customerID != "" {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, customerID)
	}
	if date != "" {
		conditions = append(conditions, "create_date = ?")
		args = append(args, date)
	}
	if printStatus != "" {
		conditions = append(conditions, "print_status = ?")
		args = append(args, printStatus)
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY bill_no DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		rows.Scan(&id)
		ids = append(ids, id)
	}

	items := make([]models.Bill, 0, len(ids))
	for _, id := range ids {
		b, err := h.loadBill(id)
		if err != nil {
			continue
		}
		items = append(items, *b)
	}
	response.JSON(w, items)
}

// GetBill handles GET /api/v1/bills/:id.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.loadBill(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, b)
}

// loadBill reads a bill with its lines and adjustments and fills in the
// derived totals.
func (h *Handler) loadBill(id string) (*models.Bill, error) {
	var b models.Bill
	err := h.DB.QueryRow(`SELECT id, bill_no, customer_id, outlet_name, address, contact, sales_ref, ref_contact,
		create_date, percentage_discount, print_status, total_margin, created_by, created_at FROM bills WHERE id = ?`, id).
		Scan(&b.ID, &b.BillNo, &b.CustomerID, &b.OutletName, &b.Address, &b.Contact, &b.SalesRef, &b.RefContact,
			&b.CreateDate, &b.PercentageDiscount, &b.PrintStatus, &b.TotalMargin, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB.Query("SELECT id, bill_id, product_id, option_id, price, qty FROM bill_lines WHERE bill_id = ? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	b.Lines = []models.BillLine{}
	for rows.Next() {
		var l models.BillLine
		rows.Scan(&l.ID, &l.BillID, &l.ProductID, &l.OptionID, &l.Price, &l.Qty)
		b.Lines = append(b.Lines, l)
	}

	adjRows, err := h.DB.Query("SELECT id, bill_id, kind, option_id, case_count, per_case_rate, total FROM bill_adjustments WHERE bill_id = ? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer adjRows.Close()
	b.Discounts = []models.BillAdjustment{}
	b.FreeIssues = []models.BillAdjustment{}
	b.Expires = []models.BillAdjustment{}
	for adjRows.Next() {
		var a models.BillAdjustment
		adjRows.Scan(&a.ID, &a.BillID, &a.Kind, &a.OptionID, &a.CaseCount, &a.PerCaseRate, &a.Total)
		switch a.Kind {
		case models.AdjustmentDiscount:
			b.Discounts = append(b.Discounts, a)
		case models.AdjustmentFreeIssue:
			b.FreeIssues = append(b.FreeIssues, a)
		case models.AdjustmentExpire:
			b.Expires = append(b.Expires, a)
		}
	}

	var paid float64
	h.DB.QueryRow("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE bill_id = ?", id).Scan(&paid)

	h.computeTotals(&b, paid)
	return &b, nil
}

// computeTotals fills the derived fields. Intermediate sums stay unrounded;
// rounding happens only on the values handed to the client.
func (h *Handler) computeTotals(b *models.Bill, paid float64) {
	product := billing.SumProductTotal(b.Lines)
	discount := billing.SumAdjustmentTotal(b.Discounts)
	freeIssue := billing.SumAdjustmentTotal(b.FreeIssues)
	expire := billing.SumAdjustmentTotal(b.Expires)
	grand := billing.GrandTotal(product, discount, freeIssue, expire, float64(b.PercentageDiscount))

	b.ProductTotal = billing.Round2(product)
	b.DiscountTotal = billing.Round2(discount)
	b.FreeIssueTotal = billing.Round2(freeIssue)
	b.ExpireTotal = billing.Round2(expire)
	b.GrandTotal = billing.Round2(grand)
	b.Balance = billing.Round2(grand - paid)
	b.TotalMargin = billing.Round2(billing.EffectiveMargin(b.TotalMargin, func() float64 { return h.marginFromCatalog(b.Lines) }))
}

// marginFromCatalog recomputes a bill's margin from current option prices.
// Lines without a matching option contribute zero, as do options missing
// either price.
func (h *Handler) marginFromCatalog(lines []models.BillLine) float64 {
	var total float64
	for _, l := range lines {
		var retail, cost float64
		err := h.DB.QueryRow("SELECT retail_price, db_price FROM product_options WHERE product_id = ? AND name = ?",
			l.ProductID, l.OptionID).Scan(&retail, &cost)
		if err != nil {
			continue
		}
		total += billing.LineMargin(retail, cost, billing.ToNumber(l.Qty))
	}
	return total
}

func validateBill(ve *validation.ValidationErrors, b *models.Bill) {
	if b.CustomerID == "" {
		validation.RequireField(ve, "outlet_name", b.OutletName)
	}
	validation.ValidateDate(ve, "create_date", b.CreateDate)
	validation.ValidatePercentage(ve, "percentage_discount", float64(b.PercentageDiscount))
	if len(b.Lines) == 0 {
		ve.Add("lines", "at least one line is required")
	}
	for i, l := range b.Lines {
		if l.ProductID == "" {
			ve.Add(fmt.Sprintf("lines[%d].product_id", i), "is required")
		}
		if l.OptionID == "" {
			ve.Add(fmt.Sprintf("lines[%d].option_id", i), "is required")
		}
		validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("lines[%d].qty", i), float64(l.Qty))
		validation.ValidateMaxQuantity(ve, fmt.Sprintf("lines[%d].qty", i), float64(l.Qty))
		validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("lines[%d].price", i), float64(l.Price))
	}
	for _, group := range [][]models.BillAdjustment{b.Discounts, b.FreeIssues, b.Expires} {
		for i, a := range group {
			validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("adjustments[%d].case", i), float64(a.CaseCount))
			validation.ValidateNonNegativeFloat(ve, fmt.Sprintf("adjustments[%d].per_case_rate", i), float64(a.PerCaseRate))
		}
	}
}

// resolveCustomer copies outlet details from the customer record when a
// customer id is supplied.
func (h *Handler) resolveCustomer(b *models.Bill) error {
	if b.CustomerID == "" {
		return nil
	}
	return h.DB.QueryRow("SELECT outlet_name, address, contact_number, sales_ref_name, ref_contact_number FROM customers WHERE id = ?", b.CustomerID).
		Scan(&b.OutletName, &b.Address, &b.Contact, &b.SalesRef, &b.RefContact)
}

// CreateBill handles POST /api/v1/bills. The bill write and the stock
// decrement for every line commit in one transaction.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var b models.Bill
	if err := response.DecodeBody(r, &b); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validateBill(ve, &b)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	if err := h.resolveCustomer(&b); err != nil {
		response.Err(w, "customer not found", 400)
		return
	}
	if b.CreateDate == "" {
		b.CreateDate = time.Now().Format("2006-01-02")
	}

	b.ID = h.NextID("BILL", "bills", 4)
	b.CreatedBy = audit.GetUsername(h.DB, r)
	now := time.Now().Format("2006-01-02 15:04:05")

	// Margin is captured once at save time from current catalog prices.
	b.TotalMargin = billing.Round2(h.marginFromCatalog(b.Lines))

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	b.BillNo, err = nextBillNo(tx, "INV")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	if _, err := tx.Exec(`INSERT INTO bills (id, bill_no, customer_id, outlet_name, address, contact, sales_ref, ref_contact,
		create_date, percentage_discount, print_status, total_margin, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		b.ID, b.BillNo, b.CustomerID, b.OutletName, b.Address, b.Contact, b.SalesRef, b.RefContact,
		b.CreateDate, float64(b.PercentageDiscount), b.TotalMargin, b.CreatedBy, now, now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	var stockLines []billLineQty
	for _, l := range b.Lines {
		if _, err := tx.Exec("INSERT INTO bill_lines (bill_id, product_id, option_id, price, qty) VALUES (?, ?, ?, ?, ?)",
			b.ID, l.ProductID, l.OptionID, float64(l.Price), float64(l.Qty)); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		stockLines = append(stockLines, billLineQty{ProductID: l.ProductID, OptionID: l.OptionID, Qty: float64(l.Qty)})
	}

	groups := []struct {
		kind string
		rows []models.BillAdjustment
	}{
		{models.AdjustmentDiscount, b.Discounts},
		{models.AdjustmentFreeIssue, b.FreeIssues},
		{models.AdjustmentExpire, b.Expires},
	}
	for _, g := range groups {
		for _, a := range g.rows {
			total := billing.AdjustmentRowTotal(float64(a.CaseCount), float64(a.PerCaseRate))
			if _, err := tx.Exec("INSERT INTO bill_adjustments (bill_id, kind, option_id, case_count, per_case_rate, total) VALUES (?, ?, ?, ?, ?, ?)",
				b.ID, g.kind, a.OptionID, float64(a.CaseCount), float64(a.PerCaseRate), total); err != nil {
				response.Err(w, err.Error(), 500)
				return
			}
		}
	}

	if err := consumeStock(tx, b.ID, "bill_create", stockLines); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.LogAudit(h.DB, h.Hub, b.CreatedBy, "create", "bills", b.ID, "Created bill "+b.BillNo)
	h.broadcast("bill", b.ID, "create")

	out, err := h.loadBill(b.ID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, out)
}

// UpdateBill handles PUT /api/v1/bills/:id. Stock consumed by the stored
// lines is restored first, then the new lines are applied, all in one
// transaction. The persisted margin is left untouched.
func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request, id string) {
	var b models.Bill
	if err := response.DecodeBody(r, &b); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validateBill(ve, &b)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	if err := h.resolveCustomer(&b); err != nil {
		response.Err(w, "customer not found", 400)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM bills WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	oldLines, err := storedLines(tx, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := restoreStock(tx, id, "bill_edit_restore", oldLines); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := tx.Exec(`UPDATE bills SET customer_id = ?, outlet_name = ?, address = ?, contact = ?, sales_ref = ?,
		ref_contact = ?, create_date = ?, percentage_discount = ?, updated_at = ? WHERE id = ?`,
		b.CustomerID, b.OutletName, b.Address, b.Contact, b.SalesRef, b.RefContact,
		b.CreateDate, float64(b.PercentageDiscount), now, id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	if _, err := tx.Exec("DELETE FROM bill_lines WHERE bill_id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("DELETE FROM bill_adjustments WHERE bill_id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	var stockLines []billLineQty
	for _, l := range b.Lines {
		if _, err := tx.Exec("INSERT INTO bill_lines (bill_id, product_id, option_id, price, qty) VALUES (?, ?, ?, ?, ?)",
			id, l.ProductID, l.OptionID, float64(l.Price), float64(l.Qty)); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		stockLines = append(stockLines, billLineQty{ProductID: l.ProductID, OptionID: l.OptionID, Qty: float64(l.Qty)})
	}

	groups := []struct {
		kind string
		rows []models.BillAdjustment
	}{
		{models.AdjustmentDiscount, b.Discounts},
		{models.AdjustmentFreeIssue, b.FreeIssues},
		{models.AdjustmentExpire, b.Expires},
	}
	for _, g := range groups {
		for _, a := range g.rows {
			total := billing.AdjustmentRowTotal(float64(a.CaseCount), float64(a.PerCaseRate))
			if _, err := tx.Exec("INSERT INTO bill_adjustments (bill_id, kind, option_id, case_count, per_case_rate, total) VALUES (?, ?, ?, ?, ?, ?)",
				id, g.kind, a.OptionID, float64(a.CaseCount), float64(a.PerCaseRate), total); err != nil {
				response.Err(w, err.Error(), 500)
				return
			}
		}
	}

	if err := consumeStock(tx, id, "bill_edit_apply", stockLines); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "bills", id, "Updated bill")
	h.broadcast("bill", id, "update")
	h.GetBill(w, r, id)
}

// DeleteBill handles DELETE /api/v1/bills/:id. Stock is credited back once;
// deleting a bill that no longer exists returns 404 and credits nothing.
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM bills WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	lines, err := storedLines(tx, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := restoreStock(tx, id, "bill_delete", lines); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("DELETE FROM bills WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "bills", id, "Deleted bill")
	h.broadcast("bill", id, "delete")
	response.JSON(w, map[string]string{"deleted": id})
}

// BillBalance reports a bill's grand total and outstanding balance. Used by
// the payments handler to cap payment amounts.
func (h *Handler) BillBalance(billID string) (float64, float64, error) {
	b, err := h.loadBill(billID)
	if err != nil {
		return 0, 0, err
	}
	return b.GrandTotal, b.Balance, nil
}

// GetBalance handles GET /api/v1/bills/:id/balance. The balance is always
// recomputed from the bill total and its payments.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.loadBill(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, map[string]interface{}{
		"bill_id":     b.ID,
		"bill_no":     b.BillNo,
		"grand_total": b.GrandTotal,
		"paid":        billing.Round2(b.GrandTotal - b.Balance),
		"balance":     b.Balance,
	})
}
