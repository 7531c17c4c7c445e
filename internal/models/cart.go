package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one item in a user's cart. Name, category and unit price are
// a snapshot of the catalog item taken when the line was first added.
type CartLine struct {
	ID              uuid.UUID        `json:"id"`
	UserID          string           `json:"-"`
	ServiceID       uuid.UUID        `json:"serviceId"`
	ServiceName     string           `json:"serviceName"`
	ServiceCategory *string          `json:"serviceCategory"`
	Quantity        int              `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unitPrice"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Subtotal returns unit price times quantity, or zero when no price was captured.
func (l *CartLine) Subtotal() decimal.Decimal {
	if l.UnitPrice == nil {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal sums line subtotals. An empty cart totals zero.
func CartTotal(lines []*CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemSnapshot is the subset of a catalog item that the cart copies.
type ItemSnapshot struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category *string         `json:"category"`
	Price    decimal.Decimal `json:"price"`
}
