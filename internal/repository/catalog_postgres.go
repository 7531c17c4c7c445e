package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

const catalogColumns = `
	id, provider_id, name, description, price, category, city, country_code,
	rating, rating_count, latitude, longitude, transport_type,
	departure_time, arrival_time, route_description, created_at, updated_at`

var _ CatalogRepository = (*PostgresCatalogRepository)(nil)

// PostgresCatalogRepository implements CatalogRepository using PostgreSQL.
type PostgresCatalogRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewPostgresCatalogRepository creates a new PostgreSQL catalog repository.
func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		db:     db,
		logger: logging.New("catalog-repository"),
	}
}

func (r *PostgresCatalogRepository) List(ctx context.Context) ([]*models.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM services ORDER BY created_at DESC`
	return r.queryItems(ctx, query)
}

// Search matches term case-insensitively against name, description,
// category and city.
func (r *PostgresCatalogRepository) Search(ctx context.Context, term string) ([]*models.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + `
		FROM services
		WHERE name ILIKE $1 OR description ILIKE $1 OR category ILIKE $1 OR city ILIKE $1
		ORDER BY created_at DESC`
	return r.queryItems(ctx, query, "%"+term+"%")
}

func (r *PostgresCatalogRepository) ListByProvider(ctx context.Context, providerID string) ([]*models.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM services WHERE provider_id = $1 ORDER BY created_at DESC`
	return r.queryItems(ctx, query, providerID)
}

func (r *PostgresCatalogRepository) ListByCategory(ctx context.Context, category string) ([]*models.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM services WHERE LOWER(category) = LOWER($1) ORDER BY created_at DESC`
	return r.queryItems(ctx, query, category)
}

// GetByID loads a listing with its images and questions.
func (r *PostgresCatalogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM services WHERE id = $1`

	item, err := scanCatalogItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"service_id": id,
			"error":      err.Error(),
		}).Error("Failed to fetch service")
		return nil, err
	}

	if err := r.attachImages(ctx, []*models.CatalogItem{item}); err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Questions = questions

	return item, nil
}

// Create inserts the listing and its images in one transaction.
func (r *PostgresCatalogRepository) Create(ctx context.Context, item *models.CatalogItem) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO services (
				id, provider_id, name, description, price, category, city, country_code,
				rating, rating_count, latitude, longitude, transport_type,
				departure_time, arrival_time, route_description, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`
		_, err := tx.ExecContext(ctx, query,
			item.ID, item.ProviderID, item.Name, item.Description, item.Price,
			item.Category, item.City, item.CountryCode, item.Rating, item.RatingCount,
			item.Latitude, item.Longitude, item.TransportType,
			item.DepartureTime, item.ArrivalTime, item.RouteDescription,
			item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
		return insertImages(ctx, tx, item.ID, item.Images)
	})
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"provider_id": item.ProviderID,
			"error":       err.Error(),
		}).Error("Failed to create service")
		return err
	}

	r.logger.WithFields(logging.Fields{
		"service_id":  item.ID,
		"provider_id": item.ProviderID,
	}).Info("Service created")
	return nil
}

func (r *PostgresCatalogRepository) Update(ctx context.Context, item *models.CatalogItem) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE services
			SET name = $3, description = $4, price = $5, category = $6, city = $7,
			    country_code = $8, latitude = $9, longitude = $10, transport_type = $11,
			    departure_time = $12, arrival_time = $13, route_description = $14,
			    updated_at = $15
			WHERE id = $1 AND provider_id = $2
		`
		result, err := tx.ExecContext(ctx, query,
			item.ID, item.ProviderID, item.Name, item.Description, item.Price,
			item.Category, item.City, item.CountryCode, item.Latitude, item.Longitude,
			item.TransportType, item.DepartureTime, item.ArrivalTime,
			item.RouteDescription, item.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update service: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return errors.ErrNotFound
		}

		if item.Images == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM service_images WHERE service_id = $1`, item.ID); err != nil {
			return fmt.Errorf("clear images: %w", err)
		}
		return insertImages(ctx, tx, item.ID, item.Images)
	})
}

func (r *PostgresCatalogRepository) Delete(ctx context.Context, id uuid.UUID, providerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1 AND provider_id = $2`, id, providerID)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"service_id": id,
			"error":      err.Error(),
		}).Error("Failed to delete service")
		return err
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return errors.ErrNotFound
	}

	r.logger.WithField("service_id", id).Info("Service deleted")
	return nil
}

// UpdateRating locks the row so concurrent folds serialise.
func (r *PostgresCatalogRepository) UpdateRating(ctx context.Context, id uuid.UUID, fold RatingFold) (decimal.Decimal, int, error) {
	var rating decimal.Decimal
	var count int

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT rating, rating_count FROM services WHERE id = $1 FOR UPDATE`, id,
		).Scan(&rating, &count)
		if err == sql.ErrNoRows {
			return errors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock service: %w", err)
		}

		rating, count = fold(rating, count)

		_, err = tx.ExecContext(ctx,
			`UPDATE services SET rating = $2, rating_count = $3, updated_at = $4 WHERE id = $1`,
			id, rating, count, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("store rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, 0, err
	}

	r.logger.WithFields(logging.Fields{
		"service_id":   id,
		"rating":       rating.String(),
		"rating_count": count,
	}).Info("Rating updated")
	return rating, count, nil
}

func (r *PostgresCatalogRepository) AddQuestion(ctx context.Context, q *models.Question) error {
	query := `
		INSERT INTO service_questions (id, service_id, user_id, question, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM services WHERE id = $2)
	`
	result, err := r.db.ExecContext(ctx, query, q.ID, q.ServiceID, q.UserID, q.Question, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCatalogRepository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, string, error) {
	query := `
		SELECT q.id, q.service_id, q.user_id, q.question, q.answer, q.answered_at, q.created_at,
		       s.provider_id
		FROM service_questions q
		JOIN services s ON s.id = q.service_id
		WHERE q.id = $1
	`
	var q models.Question
	var providerID string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&q.ID, &q.ServiceID, &q.UserID, &q.Question, &q.Answer, &q.AnsweredAt, &q.CreatedAt,
		&providerID,
	)
	if err == sql.ErrNoRows {
		return nil, "", errors.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return &q, providerID, nil
}

func (r *PostgresCatalogRepository) AnswerQuestion(ctx context.Context, q *models.Question) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE service_questions SET answer = $2, answered_at = $3 WHERE id = $1`,
		q.ID, q.Answer, q.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("answer question: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCatalogRepository) queryItems(ctx context.Context, query string, args ...any) ([]*models.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithField("error", err.Error()).Error("Failed to query services")
		return nil, err
	}
	defer rows.Close()

	items := make([]*models.CatalogItem, 0)
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachImages(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// attachImages loads images for all items with a single query.
func (r *PostgresCatalogRepository) attachImages(ctx context.Context, items []*models.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*models.CatalogItem, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		item.Images = make([]models.ServiceImage, 0)
		byID[item.ID] = item
		ids = append(ids, item.ID.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, service_id, image_url, image_base64, is_primary
		FROM service_images
		WHERE service_id = ANY($1::uuid[])
		ORDER BY is_primary DESC, created_at
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img models.ServiceImage
		var serviceID uuid.UUID
		if err := rows.Scan(&img.ID, &serviceID, &img.ImageURL, &img.ImageBase64, &img.IsPrimary); err != nil {
			return err
		}
		if item, ok := byID[serviceID]; ok {
			item.Images = append(item.Images, img)
		}
	}
	return rows.Err()
}

func (r *PostgresCatalogRepository) listQuestions(ctx context.Context, serviceID uuid.UUID) ([]models.Question, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, service_id, user_id, question, answer, answered_at, created_at
		FROM service_questions
		WHERE service_id = $1
		ORDER BY created_at
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := make([]models.Question, 0)
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.ServiceID, &q.UserID, &q.Question, &q.Answer, &q.AnsweredAt, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func insertImages(ctx context.Context, tx *sql.Tx, serviceID uuid.UUID, images []models.ServiceImage) error {
	for _, img := range images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO service_images (id, service_id, image_url, image_base64, is_primary) VALUES ($1, $2, $3, $4, $5)`,
			img.ID, serviceID, img.ImageURL, img.ImageBase64, img.IsPrimary,
		)
		if err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
	}
	return nil
}

func scanCatalogItem(row rowScanner) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := row.Scan(
		&item.ID,
		&item.ProviderID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.Category,
		&item.City,
		&item.CountryCode,
		&item.Rating,
		&item.RatingCount,
		&item.Latitude,
		&item.Longitude,
		&item.TransportType,
		&item.DepartureTime,
		&item.ArrivalTime,
		&item.RouteDescription,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
