package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

// OrderEventPublisher announces completed orders.
type OrderEventPublisher interface {
	PublishOrderCompleted(ctx context.Context, order *models.Order) error
}

// ReviewEventPublisher announces review lifecycle changes.
type ReviewEventPublisher interface {
	PublishReviewCreated(ctx context.Context, review *models.Review) error
	PublishReviewUpdated(ctx context.Context, review *models.Review) error
	PublishReviewDeleted(ctx context.Context, review *models.Review) error
}
