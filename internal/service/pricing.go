package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

const ratingScale = 1

// FoldRating adds one rating to a running mean of count ratings. The result
// is rounded half-up to one decimal place.
func FoldRating(rating decimal.Decimal, count int, value int) (decimal.Decimal, int) {
	total := rating.Mul(decimal.NewFromInt(int64(count))).Add(decimal.NewFromInt(int64(value)))
	next := count + 1
	// Round breaks ties away from zero, i.e. half-up for ratings.
	return total.Div(decimal.NewFromInt(int64(next))).Round(ratingScale), next
}

// BuildOrder copies cart lines into a completed order. A line without a
// captured price contributes zero.
func BuildOrder(userID string, lines []*models.CartLine, now time.Time) *models.Order {
	order := &models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      models.OrderStatusCompleted,
		TotalAmount: models.CartTotal(lines),
		Items:       make([]models.OrderLine, 0, len(lines)),
		CreatedAt:   now,
	}

	for _, l := range lines {
		price := decimal.Zero
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		}
		order.Items = append(order.Items, models.OrderLine{
			ID:          uuid.New(),
			ServiceID:   l.ServiceID,
			ServiceName: l.ServiceName,
			Quantity:    l.Quantity,
			UnitPrice:   price,
		})
	}
	return order
}
