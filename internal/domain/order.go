package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusDelivered OrderStatus = "delivered"
)

// ParseOrderStatus accepts any casing of a known status label
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(s))) {
	case OrderStatusPending:
		return OrderStatusPending, true
	case OrderStatusApproved:
		return OrderStatusApproved, true
	case OrderStatusDelivered:
		return OrderStatusDelivered, true
	}
	return "", false
}

func (s OrderStatus) String() string {
	return string(s)
}

// Next returns the only status an order may advance to from s.
// Delivered is terminal.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderStatusPending:
		return OrderStatusApproved, true
	case OrderStatusApproved:
		return OrderStatusDelivered, true
	}
	return "", false
}

// CanAdvanceTo reports whether moving from s to next is a legal single step
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	want, ok := s.Next()
	return ok && want == next
}

// Order is a vendor's request for a quantity of a product
type Order struct {
	ID         int64           `json:"id" db:"id"`
	VendorID   int64           `json:"vendor_id" db:"vendor_id"`
	ProductID  int64           `json:"product_id" db:"product_id"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`
	Status     OrderStatus     `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Column bounds of the orders table
const QuantityScale = 3

var (
	// MaxQuantity is the largest value a NUMERIC(12,3) quantity holds
	MaxQuantity = decimal.New(999999999999, -QuantityScale)
	// MaxOrderTotal is the largest value a NUMERIC(14,2) total holds
	MaxOrderTotal = decimal.New(99999999999999, -2)
)

// ValidQuantity reports whether q is positive and fits the quantity column
func ValidQuantity(q decimal.Decimal) (decimal.Decimal, bool) {
	if !q.IsPositive() {
		return decimal.Decimal{}, false
	}
	return FitDecimal(q, QuantityScale, MaxQuantity)
}

// OrderTotal prices a quantity at a unit price, rounded to cents
func OrderTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}
