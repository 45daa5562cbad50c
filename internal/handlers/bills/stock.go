package bills

import (
	"database/sql"
	"time"
)

// adjustStock applies a signed delta to the keyed stock counter for one
// (product, option) pair and records the movement. Stock never goes below
// zero; the applied delta is clamped. Lines whose option row does not exist
// are skipped, matching how unknown catalog entries behave elsewhere.
func adjustStock(tx *sql.Tx, productID, optionName, billID string, delta float64, reason string) error {
	if delta == 0 {
		return nil
	}
	res, err := tx.Exec(`UPDATE product_options SET stock = MAX(0, stock + ?) WHERE product_id = ? AND name = ?`,
		delta, productID, optionName)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	_, err = tx.Exec(`INSERT INTO stock_movements (product_id, option_id, bill_id, delta, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		productID, optionName, billID, delta, reason, now)
	return err
}

// billLineQty is the minimal line shape the stock helpers need.
type billLineQty struct {
	ProductID string
	OptionID  string
	Qty       float64
}

// restoreStock credits every line's quantity back to its option counter.
func restoreStock(tx *sql.Tx, billID, reason string, lines []billLineQty) error {
	for _, l := range lines {
		if err := adjustStock(tx, l.ProductID, l.OptionID, billID, l.Qty, reason); err != nil {
			return err
		}
	}
	return nil
}

// consumeStock debits every line's quantity from its option counter.
func consumeStock(tx *sql.Tx, billID, reason string, lines []billLineQty) error {
	for _, l := range lines {
		if err := adjustStock(tx, l.ProductID, l.OptionID, billID, -l.Qty, reason); err != nil {
			return err
		}
	}
	return nil
}

// storedLines reads the persisted line quantities for a bill, used to
// restore stock before an edit or delete.
func storedLines(tx *sql.Tx, billID string) ([]billLineQty, error) {
	rows, err := tx.Query("SELECT product_id, option_id, qty FROM bill_lines WHERE bill_id = ?", billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []billLineQty
	for rows.Next() {
		var l billLineQty
		if err := rows.Scan(&l.ProductID, &l.OptionID, &l.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
