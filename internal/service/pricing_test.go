package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

func TestFoldRating(t *testing.T) {
	tests := []struct {
		name      string
		rating    string
		count     int
		value     int
		want      string
		wantCount int
	}{
		{"first rating", "0", 0, 5, "5", 1},
		{"second rating", "5", 1, 3, "4", 2},
		{"rounds half up", "4", 1, 5, "4.5", 2},
		{"rounds to one decimal", "4.5", 2, 5, "4.7", 3},
		{"third of two", "1", 2, 2, "1.3", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, count := FoldRating(decimal.RequireFromString(tt.rating), tt.count, tt.value)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

func TestFoldRating_Sequence(t *testing.T) {
	rating, count := decimal.Zero, 0
	for _, v := range []int{5, 3} {
		rating, count = FoldRating(rating, count, v)
	}
	assert.Equal(t, "4", rating.String())
	assert.Equal(t, 2, count)
}

func TestBuildOrder(t *testing.T) {
	fifty := decimal.NewFromInt(50)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	lines := []*models.CartLine{
		{ServiceID: uuid.New(), ServiceName: "Boat tour", Quantity: 2, UnitPrice: &fifty},
		{ServiceID: uuid.New(), ServiceName: PlaceholderServiceName, Quantity: 3},
	}

	order := BuildOrder("user-1", lines, now)

	assert.Equal(t, "100", order.TotalAmount.String())
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, now, order.CreatedAt)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[1].UnitPrice.IsZero())
	assert.Equal(t, lines[0].ServiceID, order.Items[0].ServiceID)
}
