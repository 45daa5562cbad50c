// Package units implements loading-sheet units: bills grouped for a delivery
// run, their consolidated product totals, case/bottle splits, the unloading
// review, and the sale summary written when a review is saved.
package units

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/websocket"
)

// NextIDFunc generates a sequential ID with the given prefix and table.
type NextIDFunc func(prefix, table string, digits int) string

// Handler holds dependencies for unit handlers.
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

// nextUnitLabel allocates the next display label ("UNIT1", "UNIT2", ...).
// The numeric suffix is unpadded, matching the labels drivers know.
func nextUnitLabel(tx *sql.Tx) (string, error) {
	rows, err := tx.Query("SELECT unit_id FROM units WHERE unit_id LIKE 'UNIT%'")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	max := 0
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(label, "UNIT")); err == nil && n > max {
			max = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("UNIT%d", max+1), nil
}

// caseDefault looks up the configured bottles-per-case for an option name.
// Returns nil when no assignment exists, the N/A state.
func (h *Handler) caseDefault(optionName string) *int {
	var bpc int
	err := h.DB.QueryRow("SELECT bottles_per_case FROM bottle_case_assignments WHERE option_name = ?", optionName).Scan(&bpc)
	if err != nil {
		return nil
	}
	return &bpc
}

// billMargin returns a bill's margin, preferring the value captured at save
// time and recomputing from catalog prices only when none was stored.
func (h *Handler) billMargin(billID string) float64 {
	var stored float64
	h.DB.QueryRow("SELECT total_margin FROM bills WHERE id = ?", billID).Scan(&stored)

	var recomputed float64
	rows, err := h.DB.Query(`SELECT l.qty, COALESCE(o.retail_price, 0), COALESCE(o.db_price, 0)
		FROM bill_lines l
		LEFT JOIN product_options o ON o.product_id = l.product_id AND o.name = l.option_id
		WHERE l.bill_id = ?`, billID)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var qty, retail, cost float64
			rows.Scan(&qty, &retail, &cost)
			recomputed += billing.LineMargin(retail, cost, qty)
		}
	}
	return billing.EffectiveMargin(stored, func() float64 { return recomputed })
}
