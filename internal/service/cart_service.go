package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/clients"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
	"golang.org/x/sync/singleflight"
)

// PlaceholderServiceName is stored when the catalog cannot supply a snapshot.
const PlaceholderServiceName = "Service"

const cartReadTimeout = 5 * time.Second

// CartService handles cart and checkout business logic.
type CartService struct {
	carts          repository.CartRepository
	orders         repository.OrderRepository
	cache          repository.CartCache
	catalog        clients.CatalogClient
	eventPublisher OrderEventPublisher
	config         *config.Config
	sfg            singleflight.Group
	now            func() time.Time
	logger         *logrus.Entry
}

// NewCartService creates a new cart service. cache and eventPublisher may be nil.
func NewCartService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	cache repository.CartCache,
	catalog clients.CatalogClient,
	eventPublisher OrderEventPublisher,
	cfg *config.Config,
) *CartService {
	return &CartService{
		carts:          carts,
		orders:         orders,
		cache:          cache,
		catalog:        catalog,
		eventPublisher: eventPublisher,
		config:         cfg,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logging.New("cart-service"),
	}
}

func (s *CartService) cachingEnabled() bool {
	return s.cache != nil && s.config.Features.EnableCartCaching
}

// GetCart returns the user's lines, oldest first. Concurrent misses for the
// same user share one database read, which runs detached from any single
// caller's context.
func (s *CartService) GetCart(ctx context.Context, userID string) ([]*models.CartLine, error) {
	if !s.cachingEnabled() {
		return s.carts.ListByUser(ctx, userID)
	}

	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartReadTimeout)
		defer cancel()
		return s.readThrough(readCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*models.CartLine), nil
	}
}

func (s *CartService) readThrough(ctx context.Context, userID string) ([]*models.CartLine, error) {
	lines, err := s.cache.Get(ctx, userID)
	if err == nil {
		metrics.CartCacheLookupsTotal.WithLabelValues(metrics.ResultHit).Inc()
		return lines, nil
	}
	metrics.CartCacheLookupsTotal.WithLabelValues(metrics.ResultMiss).Inc()
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Cart cache read failed")
	}

	// The version is taken before the read so a write committed meanwhile
	// makes the Set below a no-op.
	version, verErr := s.cache.Version(ctx, userID)

	lines, err = s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if verErr != nil {
		s.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   verErr.Error(),
		}).Warn("Cart cache version read failed")
		return lines, nil
	}

	if err := s.cache.Set(ctx, userID, version, lines); err != nil && !errors.Is(err, repository.ErrCacheStale) {
		s.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Failed to cache cart")
	}
	return lines, nil
}

// Total returns the sum of line subtotals, zero for an empty cart.
func (s *CartService) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.carts.Total(ctx, userID)
}

// AddItem adds quantity of a catalog item to the cart. Re-adding an item
// already in the cart increments its line.
func (s *CartService) AddItem(ctx context.Context, userID string, serviceID uuid.UUID, quantity int) (*models.CartLine, error) {
	if err := validateAddQuantity(quantity); err != nil {
		return nil, err
	}

	existing, err := s.carts.FindByUserAndService(ctx, userID, serviceID)
	switch {
	case err == nil:
		line, err := s.carts.IncrementQuantity(ctx, userID, existing.ID, quantity)
		if err == nil {
			s.invalidate(ctx, userID)
			return line, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		// Removed concurrently; fall through to insert.
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	line := s.newLine(ctx, userID, serviceID, quantity)
	stored, err := s.carts.Upsert(ctx, line)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)

	s.logger.WithFields(logging.Fields{
		"user_id":    userID,
		"service_id": serviceID,
		"quantity":   stored.Quantity,
	}).Info("Item added to cart")

	return stored, nil
}

// newLine builds a line from the catalog snapshot, or a placeholder when the
// catalog is unavailable.
func (s *CartService) newLine(ctx context.Context, userID string, serviceID uuid.UUID, quantity int) *models.CartLine {
	now := s.now()
	line := &models.CartLine{
		ID:          uuid.New(),
		UserID:      userID,
		ServiceID:   serviceID,
		ServiceName: PlaceholderServiceName,
		Quantity:    quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	snapshot, ok := s.catalog.FetchItemSnapshot(ctx, serviceID)
	if !ok {
		price := decimal.Zero
		line.UnitPrice = &price
		return line
	}

	if snapshot.Name != "" {
		line.ServiceName = snapshot.Name
	}
	line.ServiceCategory = snapshot.Category
	price := snapshot.Price
	line.UnitPrice = &price
	return line
}

// SetQuantity sets a line's quantity. A quantity of zero or less removes the
// line and returns nil.
func (s *CartService) SetQuantity(ctx context.Context, userID string, lineID uuid.UUID, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		if err := s.RemoveItem(ctx, userID, lineID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	line, err := s.carts.UpdateQuantity(ctx, userID, lineID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return line, nil
}

// RemoveItem deletes one line. Lines owned by other users are reported as
// not found.
func (s *CartService) RemoveItem(ctx context.Context, userID string, lineID uuid.UUID) error {
	if err := s.carts.Delete(ctx, userID, lineID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Clear removes every line of the user's cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	if !s.cachingEnabled() {
		return
	}
	// The write is committed; a cancelled request must not skip this.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartReadTimeout)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Failed to invalidate cart cache")
	}
}
