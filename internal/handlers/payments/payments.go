// Package payments implements payment recording against bills. The balance
// is always recomputed from the bill total and the payment ledger.
package payments

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/validation"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

// NextIDFunc generates a sequential ID with the given prefix and table.
type NextIDFunc func(prefix, table string, digits int) string

// BillBalanceFunc returns a bill's grand total and current balance.
type BillBalanceFunc func(billID string) (grandTotal, balance float64, err error)

// Handler holds dependencies for payment handlers.
type Handler struct {
	DB          *sql.DB
	Hub         *websocket.Hub
	BillBalance BillBalanceFunc
}

func (h *Handler) broadcast(recordType, id, action string) {
	if h.Hub != nil {
		h.Hub.BroadcastUpdate(recordType, id, action)
	}
}

// ListPayments handles GET /api/v1/payments with bill, outlet, and date
// filters.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	billID := r.URL.Query().Get("bill_id")
	outlet := r.URL.Query().Get("outlet")
	date := r.URL.Query().Get("date")

	query := "SELECT id, payment_number, bill_id, bill_no, outlet_name, amount, payment_date, created_by, created_at FROM payments"
	var conditions []string
	var args []interface{}
	if billID != "" {
		conditions = append(conditions, "bill_id = ?")
		args = append(args, billID)
	}
	if outlet != "" {
		conditions = append(conditions, "outlet_name LIKE ?")
		args = append(args, "%"+outlet+"%")
	}
	if date != "" {
		conditions = append(conditions, "payment_date = ?")
		args = append(args, date)
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var items []models.Payment
	for rows.Next() {
		var p models.Payment
		rows.Scan(&p.ID, &p.PaymentNumber, &p.BillID, &p.BillNo, &p.OutletName, &p.Amount, &p.PaymentDate, &p.CreatedBy, &p.CreatedAt)
		items = append(items, p)
	}
	if items == nil {
		items = []models.Payment{}
	}
	response.JSON(w, items)
}

// CreatePayment handles POST /api/v1/payments. A payment that exceeds the
// bill's outstanding balance is rejected.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var p models.Payment
	if err := response.DecodeBody(r, &p); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "bill_id", p.BillID)
	validation.ValidatePositiveFloat(ve, "amount", float64(p.Amount))
	validation.ValidateDate(ve, "payment_date", p.PaymentDate)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	var billNo, outletName string
	err := h.DB.QueryRow("SELECT bill_no, outlet_name FROM bills WHERE id = ?", p.BillID).Scan(&billNo, &outletName)
	if err != nil {
		response.Err(w, "bill not found", 404)
		return
	}

	_, balance, err := h.BillBalance(p.BillID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	amount := billing.Round2(float64(p.Amount))
	if amount > balance {
		response.Err(w, "payment exceeds outstanding balance", 400)
		return
	}

	if p.PaymentDate == "" {
		p.PaymentDate = time.Now().Format("2006-01-02")
	}
	p.BillNo = billNo
	p.OutletName = outletName
	p.PaymentNumber = h.nextPaymentNumber()
	p.CreatedBy = audit.GetUsername(h.DB, r)
	now := time.Now().Format("2006-01-02 15:04:05")

	res, err := h.DB.Exec(`INSERT INTO payments (payment_number, bill_id, bill_no, outlet_name, amount, payment_date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PaymentNumber, p.BillID, p.BillNo, p.OutletName, amount, p.PaymentDate, p.CreatedBy, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	id, _ := res.LastInsertId()
	p.ID = int(id)
	p.CreatedAt = now

	audit.LogAudit(h.DB, h.Hub, p.CreatedBy, "create", "payments", p.PaymentNumber, "Recorded payment for "+billNo)
	h.broadcast("payment", p.PaymentNumber, "create")
	response.JSON(w, p)
}

func (h *Handler) nextPaymentNumber() string {
	year := time.Now().Format("2006")
	prefix := "PAY-" + year + "-"
	var last sql.NullString
	h.DB.QueryRow("SELECT payment_number FROM payments WHERE payment_number LIKE ? ORDER BY payment_number DESC LIMIT 1", prefix+"%").Scan(&last)
	next := 1
	if last.Valid {
		if n, err := strconv.Atoi(strings.TrimPrefix(last.String, prefix)); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next)
}

// DeletePayment handles DELETE /api/v1/payments/:id. Removing a payment
// restores the bill's balance implicitly since balance is derived.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request, id string) {
	var billNo string
	if err := h.DB.QueryRow("SELECT bill_no FROM payments WHERE id = ?", id).Scan(&billNo); err != nil {
		response.Err(w, "not found", 404)
		return
	}

	if _, err := h.DB.Exec("DELETE FROM payments WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "delete", "payments", id, "Deleted payment for "+billNo)
	h.broadcast("payment", id, "delete")
	response.JSON(w, map[string]string{"deleted": id})
}
