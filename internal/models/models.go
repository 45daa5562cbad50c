package models

import (
	"github.com/Amanthakeshan2000/AT-Pepsi-System-sub000/internal/billing"
)

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Product is a sellable product with one row per size/variant option.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    int             `json:"status"`
	CreatedAt string          `json:"created_at"`
	Options   []ProductOption `json:"options"`
}

// ProductOption is a product variant ("200ML", "500ML", "WATER") carrying its
// own prices and stock counter. Margin per unit is always derived from
// retail_price - db_price, never stored.
type ProductOption struct {
	ID          int          `json:"id"`
	ProductID   string       `json:"product_id"`
	Name        string       `json:"name"`
	RetailPrice billing.Flex `json:"retail_price"`
	DBPrice     billing.Flex `json:"db_price"`
	Stock       billing.Flex `json:"stock"`
}

// Customer is a retail outlet.
type Customer struct {
	ID               string `json:"id"`
	OutletName       string `json:"outlet_name"`
	Address          string `json:"address"`
	ContactNumber    string `json:"contact_number"`
	SalesRefName     string `json:"sales_ref_name"`
	RefContactNumber string `json:"ref_contact_number"`
	Status           int    `json:"status"`
	CreatedAt        string `json:"created_at"`
}

// Category groups products; status 0/1 is an active flag filtered at query time.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    int    `json:"status"`
	CreatedAt string `json:"created_at"`
}

// BillLine is one product option sold on a bill. Price and qty arrive as
// strings or numbers interchangeably and coerce through billing.Flex.
type BillLine struct {
	ID        int          `json:"id"`
	BillID    string       `json:"bill_id"`
	ProductID string       `json:"product_id"`
	OptionID  string       `json:"option_id"`
	Price     billing.Flex `json:"price"`
	Qty       billing.Flex `json:"qty"`
}

func (l BillLine) LinePrice() float64 { return float64(l.Price) }
func (l BillLine) LineQty() float64   { return float64(l.Qty) }

// Adjustment kinds.
const (
	AdjustmentDiscount  = "discount"
	AdjustmentFreeIssue = "free_issue"
	AdjustmentExpire    = "expire"
)

// BillAdjustment is a case-based bill adjustment (discount, free issue, or
// expired-stock return). Total is computed at write time from case count x
// per-case rate and stored on the row; a row missing either factor stores 0.
type BillAdjustment struct {
	ID          int          `json:"id"`
	BillID      string       `json:"bill_id"`
	Kind        string       `json:"kind"`
	OptionID    string       `json:"option_id"`
	CaseCount   billing.Flex `json:"case"`
	PerCaseRate billing.Flex `json:"per_case_rate"`
	Total       billing.Flex `json:"total"`
}

func (a BillAdjustment) RowTotal() float64 { return float64(a.Total) }

// Bill is a customer order. The computed fields are presentation values,
// rounded at render time only.
type Bill struct {
	ID                 string           `json:"id"`
	BillNo             string           `json:"bill_no"`
	CustomerID         string           `json:"customer_id"`
	OutletName         string           `json:"outlet_name"`
	Address            string           `json:"address"`
	Contact            string           `json:"contact"`
	SalesRef           string           `json:"sales_ref"`
	RefContact         string           `json:"ref_contact"`
	CreateDate         string           `json:"create_date"`
	PercentageDiscount billing.Flex     `json:"percentage_discount"`
	PrintStatus        int              `json:"print_status"`
	TotalMargin        float64          `json:"total_margin"`
	CreatedBy          string           `json:"created_by"`
	CreatedAt          string           `json:"created_at"`
	Lines              []BillLine       `json:"lines"`
	Discounts          []BillAdjustment `json:"discounts"`
	FreeIssues         []BillAdjustment `json:"free_issues"`
	Expires            []BillAdjustment `json:"expires"`

	ProductTotal   float64 `json:"product_total"`
	DiscountTotal  float64 `json:"discount_total"`
	FreeIssueTotal float64 `json:"free_issue_total"`
	ExpireTotal    float64 `json:"expire_total"`
	GrandTotal     float64 `json:"grand_total"`
	Balance        float64 `json:"balance"`
}

// ManualBill is an operator-entered bill outside the normal stock flow.
type ManualBill struct {
	ID         string     `json:"id"`
	BillNo     string     `json:"bill_no"`
	OutletName string     `json:"outlet_name"`
	Address    string     `json:"address"`
	Contact    string     `json:"contact"`
	CreateDate string     `json:"create_date"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  string     `json:"created_at"`
	Lines      []BillLine `json:"lines"`
	Total      float64    `json:"total"`
}

// Unit is a consolidated grouping of bills assigned to one driver/route for
// loading. TotalMargin is cached at creation; a stored non-zero value always
// wins over recomputation.
type Unit struct {
	ID           string                        `json:"id"`
	UnitID       string                        `json:"unit_id"`
	Date         string                        `json:"date"`
	DriverName   string                        `json:"driver_name"`
	Route        string                        `json:"route"`
	TotalMargin  float64                       `json:"total_margin"`
	CreatedBy    string                        `json:"created_by"`
	CreatedAt    string                        `json:"created_at"`
	BillIDs      []string                      `json:"bill_ids"`
	Bills        []Bill                        `json:"bills,omitempty"`
	Consolidated []billing.ConsolidatedProduct `json:"consolidated_products"`
}

// BillReviewLine is one bill line enriched with unloading counts after the
// route returns: sale bottles = loaded - unloaded, valued at the bill price.
type BillReviewLine struct {
	ID          int          `json:"id"`
	UnitID      string       `json:"unit_id"`
	BillID      string       `json:"bill_id"`
	ProductID   string       `json:"product_id"`
	OptionID    string       `json:"option_id"`
	Price       billing.Flex `json:"price"`
	LoadingQty  billing.Flex `json:"loading_qty"`
	UnloadingBT billing.Flex `json:"unloading_bt"`
	SaleBT      float64      `json:"sale_bt"`
	SalesValue  float64      `json:"sales_value"`
}

// BillReview is the unloading review of a unit. One review exists per unit;
// IsSaved gates re-saving until the review is explicitly reopened.
type BillReview struct {
	ID           int                           `json:"id"`
	UnitID       string                        `json:"unit_id"`
	IsSaved      bool                          `json:"is_saved"`
	UpdatedAt    string                        `json:"updated_at"`
	Lines        []BillReviewLine              `json:"lines"`
	Consolidated []billing.ConsolidatedProduct `json:"consolidated_products"`
}

// Payment is a partial or full settlement against a bill. Balances are never
// stored: balance = bill grand total - sum of payments, always recomputed.
type Payment struct {
	ID            int          `json:"id"`
	PaymentNumber string       `json:"payment_number"`
	BillID        string       `json:"bill_id"`
	BillNo        string       `json:"bill_no"`
	OutletName    string       `json:"outlet_name"`
	Amount        billing.Flex `json:"amount"`
	PaymentDate   string       `json:"payment_date"`
	CreatedBy     string       `json:"created_by"`
	CreatedAt     string       `json:"created_at"`
}

// MyBill is a per-user bill bookmark.
type MyBill struct {
	BillID   string `json:"bill_id"`
	Username string `json:"username"`
	AddedAt  string `json:"added_at"`
	BillNo   string `json:"bill_no,omitempty"`
	Outlet   string `json:"outlet_name,omitempty"`
}

// CaseAssignment is the global default bottles-per-case divisor for an option.
type CaseAssignment struct {
	OptionName     string `json:"option_name"`
	BottlesPerCase int    `json:"bottles_per_case"`
}

// StoreStatus tracks the two-phase store-out / store-in flags of a bill.
type StoreStatus struct {
	BillID      string  `json:"bill_id"`
	IsStoredOut bool    `json:"is_stored_out"`
	IsStoredIn  bool    `json:"is_stored_in"`
	StoredOutAt *string `json:"stored_out_at"`
	StoredInAt  *string `json:"stored_in_at"`
}

// SaleSummaryRow is one persisted line of a unit's sale summary, written when
// its review is saved.
type SaleSummaryRow struct {
	ID         int     `json:"id"`
	UnitID     string  `json:"unit_id"`
	OptionID   string  `json:"option_id"`
	ProductID  string  `json:"product_id"`
	LoadingQty float64 `json:"loading_qty"`
	SaleQty    float64 `json:"sale_qty"`
	SalesValue float64 `json:"sales_value"`
	Margin     float64 `json:"margin"`
	CreatedAt  string  `json:"created_at"`
}

// StockMovement records every stock delta applied to a product option.
type StockMovement struct {
	ID        int     `json:"id"`
	ProductID string  `json:"product_id"`
	OptionID  string  `json:"option_id"`
	BillID    string  `json:"bill_id"`
	Delta     float64 `json:"delta"`
	Reason    string  `json:"reason"`
	CreatedAt string  `json:"created_at"`
}

// Notification is a server-generated alert row.
type Notification struct {
	ID        int     `json:"id"`
	Type      string  `json:"type"`
	Severity  string  `json:"severity"`
	Title     string  `json:"title"`
	Message   *string `json:"message"`
	RecordID  *string `json:"record_id"`
	Module    *string `json:"module"`
	ReadAt    *string `json:"read_at"`
	CreatedAt string  `json:"created_at"`
}

// AuditEntry is one audit log row.
type AuditEntry struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// User is an application account.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      int    `json:"active"`
	LastLogin   string `json:"last_login,omitempty"`
	CreatedAt   string `json:"created_at"`
}
