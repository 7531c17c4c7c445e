package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

// ErrCacheMiss is returned by caches when no entry is stored for a key.
var ErrCacheMiss = stderrors.New("cache miss")

// ErrCacheStale is returned by CartCache.Set when the cart was invalidated
// after the caller read its version.
var ErrCacheStale = stderrors.New("cache entry stale")

// RatingFold computes the next aggregate from the current one.
type RatingFold func(rating decimal.Decimal, count int) (decimal.Decimal, int)

// OrderBuilder turns the locked cart lines into the order to persist.
type OrderBuilder func(lines []*models.CartLine) (*models.Order, error)

// CatalogRepository stores listings together with their images and questions.
type CatalogRepository interface {
	List(ctx context.Context) ([]*models.CatalogItem, error)
	Search(ctx context.Context, term string) ([]*models.CatalogItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	ListByProvider(ctx context.Context, providerID string) ([]*models.CatalogItem, error)
	ListByCategory(ctx context.Context, category string) ([]*models.CatalogItem, error)
	Create(ctx context.Context, item *models.CatalogItem) error
	// Update rewrites the row owned by item.ProviderID. Images are replaced
	// only when item.Images is non-nil.
	Update(ctx context.Context, item *models.CatalogItem) error
	Delete(ctx context.Context, id uuid.UUID, providerID string) error
	// UpdateRating applies fold to the locked row and returns the stored result.
	UpdateRating(ctx context.Context, id uuid.UUID, fold RatingFold) (decimal.Decimal, int, error)
	AddQuestion(ctx context.Context, q *models.Question) error
	// GetQuestion returns the question and the provider owning its service.
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, string, error)
	AnswerQuestion(ctx context.Context, q *models.Question) error
}

// CartRepository stores cart lines. Every method scoped by user treats a
// line owned by someone else as absent.
type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.CartLine, error)
	FindByUserAndService(ctx context.Context, userID string, serviceID uuid.UUID) (*models.CartLine, error)
	IncrementQuantity(ctx context.Context, userID string, lineID uuid.UUID, delta int) (*models.CartLine, error)
	// Upsert inserts the line, or adds its quantity to an existing line for
	// the same (user, service) pair.
	Upsert(ctx context.Context, line *models.CartLine) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, userID string, lineID uuid.UUID, quantity int) (*models.CartLine, error)
	Delete(ctx context.Context, userID string, lineID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID string) error
	Total(ctx context.Context, userID string) (decimal.Decimal, error)
}

// OrderRepository persists orders produced by checkout.
type OrderRepository interface {
	// Checkout locks the user's cart, persists the order produced by build and
	// empties the cart, all in one transaction. An empty cart yields
	// errors.ErrInvalidState and no writes.
	Checkout(ctx context.Context, userID string, build OrderBuilder) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Order, error)
}

// ReviewRepository stores reviews, unique per (service, user).
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	Exists(ctx context.Context, serviceID uuid.UUID, userID string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Review, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id uuid.UUID, userID string) error
	Stats(ctx context.Context, serviceID uuid.UUID) (*models.ReviewStats, error)
}

// ProfileRepository stores user profiles keyed by identity subject.
type ProfileRepository interface {
	GetBySubject(ctx context.Context, subjectID string) (*models.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	Save(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error)
	DeleteBySubject(ctx context.Context, subjectID string) error
}

// CartCache caches a user's cart lines. Readers take Version before loading
// the cart and pass it to Set; writers call Invalidate after committing.
type CartCache interface {
	Get(ctx context.Context, userID string) ([]*models.CartLine, error)
	Version(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, version int64, lines []*models.CartLine) error
	Invalidate(ctx context.Context, userID string) error
}
