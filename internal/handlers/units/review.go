package units

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/audit"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/models"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/response"
)

// ensureReview returns the review row id for a unit, creating the review
// with one line per bill line on first access. Loading quantities come from
// the bills; unloading starts at zero so sale equals loading until counted.
func (h *Handler) ensureReview(unitID string) (int, error) {
	var reviewID int
	err := h.DB.QueryRow("SELECT id FROM bill_reviews WHERE unit_id = ?", unitID).Scan(&reviewID)
	if err == nil {
		return reviewID, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	tx, err := h.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().Format("2006-01-02 15:04:05")
	res, err := tx.Exec("INSERT INTO bill_reviews (unit_id, is_saved, updated_at) VALUES (?, 0, ?)", unitID, now)
	if err != nil {
		return 0, err
	}
	id64, _ := res.LastInsertId()
	reviewID = int(id64)

	rows, err := tx.Query(`SELECT l.bill_id, l.product_id, l.option_id, l.price, l.qty
		FROM bill_lines l JOIN unit_bills ub ON ub.bill_id = l.bill_id
		WHERE ub.unit_id = ? ORDER BY l.bill_id, l.id`, unitID)
	if err != nil {
		return 0, err
	}
	type seedLine struct {
		billID, productID, optionID string
		price, qty                  float64
	}
	var seeds []seedLine
	for rows.Next() {
		var s seedLine
		if err := rows.Scan(&s.billID, &s.productID, &s.optionID, &s.price, &s.qty); err != nil {
			rows.Close()
			return 0, err
		}
		seeds = append(seeds, s)
	}
	rows.Close()

	for _, s := range seeds {
		if _, err := tx.Exec(`INSERT INTO bill_review_lines (review_id, bill_id, product_id, option_id, price, loading_qty, unloading_bt, sale_bt, sales_value)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			reviewID, s.billID, s.productID, s.optionID, s.price, s.qty, s.qty, s.qty*s.price); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return reviewID, nil
}

func (h *Handler) loadReview(unitID string) (*models.BillReview, error) {
	reviewID, err := h.ensureReview(unitID)
	if err != nil {
		return nil, err
	}

	var rv models.BillReview
	var saved int
	err = h.DB.QueryRow("SELECT id, unit_id, is_saved, updated_at FROM bill_reviews WHERE id = ?", reviewID).
		Scan(&rv.ID, &rv.UnitID, &saved, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rv.IsSaved = saved == 1

	rows, err := h.DB.Query(`SELECT id, bill_id, product_id, option_id, price, loading_qty, unloading_bt, sale_bt, sales_value
		FROM bill_review_lines WHERE review_id = ? ORDER BY id`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rv.Lines = []models.BillReviewLine{}
	for rows.Next() {
		var l models.BillReviewLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.ProductID, &l.OptionID, &l.Price, &l.LoadingQty, &l.UnloadingBT, &l.SaleBT, &l.SalesValue); err != nil {
			return nil, err
		}
		l.UnitID = unitID
		l.SalesValue = billing.Round2(l.SalesValue)
		rv.Lines = append(rv.Lines, l)
	}

	// The review screen lists water after everything else.
	consolidated, err := h.loadConsolidated(unitID)
	if err != nil {
		return nil, err
	}
	billing.SortWaterLast(consolidated)
	rv.Consolidated = consolidated
	return &rv, nil
}

// GetReview handles GET /api/v1/units/:id/review.
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request, unitID string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM units WHERE id = ?", unitID).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}
	rv, err := h.loadReview(unitID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, rv)
}

// SaveReview handles PUT /api/v1/units/:id/review. Records unloading counts,
// derives sale quantities and values, marks the review saved, and writes the
// unit's sale summary. A saved review rejects further saves until reopened.
func (h *Handler) SaveReview(w http.ResponseWriter, r *http.Request, unitID string) {
	var exists int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM units WHERE id = ?", unitID).Scan(&exists); err != nil || exists == 0 {
		response.Err(w, "not found", 404)
		return
	}

	var body struct {
		Lines []struct {
			ID          int          `json:"id"`
			UnloadingBT billing.Flex `json:"unloading_bt"`
		} `json:"lines"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	reviewID, err := h.ensureReview(unitID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	var saved int
	h.DB.QueryRow("SELECT is_saved FROM bill_reviews WHERE id = ?", reviewID).Scan(&saved)
	if saved == 1 {
		response.Err(w, "review already saved", 400)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	for _, in := range body.Lines {
		var loading, price float64
		err := tx.QueryRow("SELECT loading_qty, price FROM bill_review_lines WHERE id = ? AND review_id = ?", in.ID, reviewID).
			Scan(&loading, &price)
		if err != nil {
			response.Err(w, "review line not found", 400)
			return
		}
		unloading := float64(in.UnloadingBT)
		saleBT := loading - unloading
		if _, err := tx.Exec("UPDATE bill_review_lines SET unloading_bt = ?, sale_bt = ?, sales_value = ? WHERE id = ?",
			unloading, saleBT, saleBT*price, in.ID); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := tx.Exec("UPDATE bill_reviews SET is_saved = 1, updated_at = ? WHERE id = ?", now, reviewID); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := h.writeSaleSummary(tx, unitID, reviewID, now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "bill_reviews", unitID, "Saved unloading review")
	h.broadcast("bill_review", unitID, "update")

	rv, err := h.loadReview(unitID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, rv)
}

// writeSaleSummary replaces the unit's sale summary rows with aggregates of
// the review lines, grouped per option and product. Margin comes from
// current catalog prices against the sold quantity.
func (h *Handler) writeSaleSummary(tx *sql.Tx, unitID string, reviewID int, now string) error {
	if _, err := tx.Exec("DELETE FROM sale_summaries WHERE unit_id = ?", unitID); err != nil {
		return err
	}

	rows, err := tx.Query(`SELECT option_id, product_id, SUM(loading_qty), SUM(sale_bt), SUM(sales_value)
		FROM bill_review_lines WHERE review_id = ?
		GROUP BY option_id, product_id`, reviewID)
	if err != nil {
		return err
	}
	type agg struct {
		optionID, productID  string
		loading, sale, value float64
	}
	var aggs []agg
	for rows.Next() {
		var a agg
		if err := rows.Scan(&a.optionID, &a.productID, &a.loading, &a.sale, &a.value); err != nil {
			rows.Close()
			return err
		}
		aggs = append(aggs, a)
	}
	rows.Close()

	for _, a := range aggs {
		var retail, cost float64
		tx.QueryRow("SELECT retail_price, db_price FROM product_options WHERE product_id = ? AND name = ?",
			a.productID, a.optionID).Scan(&retail, &cost)
		margin := billing.LineMargin(retail, cost, a.sale)
		if _, err := tx.Exec(`INSERT INTO sale_summaries (unit_id, option_id, product_id, loading_qty, sale_qty, sales_value, margin, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			unitID, a.optionID, a.productID, a.loading, a.sale, a.value, margin, now); err != nil {
			return err
		}
	}
	return nil
}

// ReopenReview handles POST /api/v1/units/:id/review/reopen. Clears the
// saved flag so the review can be edited and saved again.
func (h *Handler) ReopenReview(w http.ResponseWriter, r *http.Request, unitID string) {
	res, err := h.DB.Exec("UPDATE bill_reviews SET is_saved = 0 WHERE unit_id = ?", unitID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "not found", 404)
		return
	}

	username := audit.GetUsername(h.DB, r)
	audit.LogAudit(h.DB, h.Hub, username, "update", "bill_reviews", unitID, "Reopened unloading review")
	h.broadcast("bill_review", unitID, "update")
	response.JSON(w, map[string]interface{}{"unit_id": unitID, "is_saved": false})
}
