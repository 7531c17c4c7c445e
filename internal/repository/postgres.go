package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

var _ OrderRepository = (*PostgresOrderRepository)(nil)

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logging.New("order-repository"),
	}
}

// Checkout converts the user's cart into an order atomically. The cart rows
// stay locked until commit, so a concurrent checkout of the same cart sees
// it empty and fails with ErrInvalidState.
func (r *PostgresOrderRepository) Checkout(ctx context.Context, userID string, build OrderBuilder) (*models.Order, error) {
	var order *models.Order

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 ORDER BY created_at, id FOR UPDATE`, userID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		lines, err := scanCartLines(rows)
		rows.Close()
		if err != nil {
			return fmt.Errorf("scan cart: %w", err)
		}

		if len(lines) == 0 {
			return errors.ErrInvalidState
		}

		order, err = build(lines)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, total_amount, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
			order.ID, order.UserID, order.TotalAmount, order.Status, order.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range order.Items {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, position, service_id, service_name, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, item.ID, order.ID, i, item.ServiceID, item.ServiceName, item.Quantity, item.UnitPrice)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errors.ErrInvalidState) {
			r.logger.WithFields(logging.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Error("Checkout failed")
		}
		return nil, err
	}

	r.logger.WithFields(logging.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount.StringFixed(2),
		"items":    len(order.Items),
	}).Info("Order created successfully")

	return order, nil
}

// ListByUser returns the user's orders newest first, each with its lines.
func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, total_amount, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to list orders")
		return nil, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	byID := make(map[uuid.UUID]*models.Order)
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Items = make([]models.OrderLine, 0)
		orders = append(orders, &o)
		byID[o.ID] = &o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.service_id, oi.service_name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1
		ORDER BY oi.order_id, oi.position
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var line models.OrderLine
		var orderID uuid.UUID
		var name sql.NullString
		if err := itemRows.Scan(&line.ID, &orderID, &line.ServiceID, &name, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		line.ServiceName = name.String
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, line)
		}
	}
	return orders, itemRows.Err()
}
