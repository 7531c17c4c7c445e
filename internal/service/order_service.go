package service

import (
	"context"
	"fmt"

	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

// Checkout turns the user's cart into a completed order and empties the cart
// in one transaction. An empty cart fails with errors.ErrInvalidState.
func (s *CartService) Checkout(ctx context.Context, userID string) (*models.Order, error) {
	s.logger.WithField("user_id", userID).Info("Checking out cart")

	order, err := s.orders.Checkout(ctx, userID, func(lines []*models.CartLine) (*models.Order, error) {
		return BuildOrder(userID, lines, s.now()), nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrInvalidState) {
			metrics.CheckoutsTotal.WithLabelValues(metrics.ResultEmpty).Inc()
			return nil, fmt.Errorf("cart is empty: %w", err)
		}
		metrics.CheckoutsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, err
	}

	s.invalidate(ctx, userID)

	metrics.CheckoutsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.OrderAmountTotal.Add(order.TotalAmount.InexactFloat64())

	if s.eventPublisher != nil && s.config.Features.EnableEvents {
		if err := s.eventPublisher.PublishOrderCompleted(ctx, order); err != nil {
			// Log but don't fail
			s.logger.WithFields(logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			}).Error("Failed to publish order completed event")
		}
	}

	s.logger.WithFields(logging.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount.StringFixed(2),
	}).Info("Checkout completed")

	return order, nil
}

// OrderHistory returns the user's orders, newest first.
func (s *CartService) OrderHistory(ctx context.Context, userID string) ([]*models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}
