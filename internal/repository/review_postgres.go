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

const reviewColumns = `id, service_id, user_id, username, rating, comment, created_at, updated_at`

var _ ReviewRepository = (*PostgresReviewRepository)(nil)

// PostgresReviewRepository implements ReviewRepository using PostgreSQL.
type PostgresReviewRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewPostgresReviewRepository creates a new PostgreSQL review repository.
func NewPostgresReviewRepository(db *sql.DB) *PostgresReviewRepository {
	return &PostgresReviewRepository{
		db:     db,
		logger: logging.New("review-repository"),
	}
}

// Create maps a unique violation on (service_id, user_id) to ErrConflict.
func (r *PostgresReviewRepository) Create(ctx context.Context, review *models.Review) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, service_id, user_id, username, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, review.ID, review.ServiceID, review.UserID, review.Username, review.Rating,
		review.Comment, review.CreatedAt, review.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("review for service %s: %w", review.ServiceID, errors.ErrConflict)
	}
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"service_id": review.ServiceID,
			"user_id":    review.UserID,
			"error":      err.Error(),
		}).Error("Failed to create review")
		return err
	}
	return nil
}

func (r *PostgresReviewRepository) Exists(ctx context.Context, serviceID uuid.UUID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE service_id = $1 AND user_id = $2)`, serviceID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *PostgresReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	review, err := scanReview(r.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	return review, err
}

func (r *PostgresReviewRepository) ListByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Review, error) {
	return r.query(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE service_id = $1 ORDER BY created_at DESC`, serviceID)
}

func (r *PostgresReviewRepository) ListByUser(ctx context.Context, userID string) ([]*models.Review, error) {
	return r.query(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// Update only touches a review owned by review.UserID.
func (r *PostgresReviewRepository) Update(ctx context.Context, review *models.Review) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET rating = $3, comment = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
	`, review.ID, review.UserID, review.Rating, review.Comment, review.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *PostgresReviewRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// Stats returns the per-star distribution and mean for a service. A service
// without reviews yields zeroes.
func (r *PostgresReviewRepository) Stats(ctx context.Context, serviceID uuid.UUID) (*models.ReviewStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rating, COUNT(*) FROM reviews WHERE service_id = $1 GROUP BY rating`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.ReviewStats{ServiceID: serviceID.String()}
	var sum int64
	for rows.Next() {
		var rating int
		var count int64
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, err
		}
		stats.SetStarCount(rating, count)
		stats.TotalReviews += count
		sum += int64(rating) * count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalReviews > 0 {
		stats.AverageRating = float64(sum) / float64(stats.TotalReviews)
	}
	return stats, nil
}

func (r *PostgresReviewRepository) query(ctx context.Context, query string, arg any) ([]*models.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		r.logger.WithField("error", err.Error()).Error("Failed to query reviews")
		return nil, err
	}
	defer rows.Close()

	reviews := make([]*models.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func scanReview(row rowScanner) (*models.Review, error) {
	var review models.Review
	var username, comment sql.NullString
	err := row.Scan(
		&review.ID,
		&review.ServiceID,
		&review.UserID,
		&username,
		&review.Rating,
		&comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	review.Username = username.String
	review.Comment = comment.String
	return &review, nil
}
