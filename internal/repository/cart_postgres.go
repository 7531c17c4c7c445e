package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

const cartColumns = `id, user_id, service_id, service_name, service_category, quantity, unit_price, created_at, updated_at`

var _ CartRepository = (*PostgresCartRepository)(nil)

// PostgresCartRepository implements CartRepository using PostgreSQL.
type PostgresCartRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewPostgresCartRepository creates a new PostgreSQL cart repository.
func NewPostgresCartRepository(db *sql.DB) *PostgresCartRepository {
	return &PostgresCartRepository{
		db:     db,
		logger: logging.New("cart-repository"),
	}
}

func (r *PostgresCartRepository) ListByUser(ctx context.Context, userID string) ([]*models.CartLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to list cart")
		return nil, err
	}
	defer rows.Close()

	return scanCartLines(rows)
}

func (r *PostgresCartRepository) FindByUserAndService(ctx context.Context, userID string, serviceID uuid.UUID) (*models.CartLine, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 AND service_id = $2`, userID, serviceID)

	line, err := scanCartLine(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	return line, err
}

func (r *PostgresCartRepository) IncrementQuantity(ctx context.Context, userID string, lineID uuid.UUID, delta int) (*models.CartLine, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE cart_items
		SET quantity = quantity + $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+cartColumns,
		lineID, userID, delta, time.Now().UTC(),
	)

	line, err := scanCartLine(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	return line, err
}

// Upsert relies on the (user_id, service_id) unique constraint so concurrent
// adds of the same service accumulate on one line.
func (r *PostgresCartRepository) Upsert(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, user_id, service_id, service_name, service_category, quantity, unit_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, service_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING `+cartColumns,
		line.ID, line.UserID, line.ServiceID, line.ServiceName, line.ServiceCategory,
		line.Quantity, line.UnitPrice, line.CreatedAt, line.UpdatedAt,
	)

	stored, err := scanCartLine(row)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"user_id":    line.UserID,
			"service_id": line.ServiceID,
			"error":      err.Error(),
		}).Error("Failed to upsert cart line")
		return nil, err
	}
	return stored, nil
}

func (r *PostgresCartRepository) UpdateQuantity(ctx context.Context, userID string, lineID uuid.UUID, quantity int) (*models.CartLine, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE cart_items
		SET quantity = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+cartColumns,
		lineID, userID, quantity, time.Now().UTC(),
	)

	line, err := scanCartLine(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	return line, err
}

func (r *PostgresCartRepository) Delete(ctx context.Context, userID string, lineID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, lineID, userID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCartRepository) DeleteByUser(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	r.logger.WithFields(logging.Fields{
		"user_id": userID,
		"removed": n,
	}).Info("Cart cleared")
	return nil
}

// Total treats lines without a captured price as zero.
func (r *PostgresCartRepository) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(COALESCE(unit_price, 0) * quantity), 0) FROM cart_items WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func scanCartLines(rows *sql.Rows) ([]*models.CartLine, error) {
	lines := make([]*models.CartLine, 0)
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanCartLine(row rowScanner) (*models.CartLine, error) {
	var line models.CartLine
	var name sql.NullString
	err := row.Scan(
		&line.ID,
		&line.UserID,
		&line.ServiceID,
		&name,
		&line.ServiceCategory,
		&line.Quantity,
		&line.UnitPrice,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	line.ServiceName = name.String
	return &line, nil
}
