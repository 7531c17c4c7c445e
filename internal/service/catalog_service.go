package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/clients"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
	"golang.org/x/sync/errgroup"
)

const defaultEnrichTimeout = 2 * time.Second

// RatingSummary is the catalog aggregate after a rating was applied.
type RatingSummary struct {
	ServiceID   uuid.UUID       `json:"serviceId"`
	Rating      decimal.Decimal `json:"rating"`
	RatingCount int             `json:"ratingCount"`
}

// CatalogService handles catalog listings, ratings and questions.
type CatalogService struct {
	repo          repository.CatalogRepository
	enricher      clients.EnrichmentClient
	enrichTimeout time.Duration
	now           func() time.Time
	logger        *logrus.Entry
}

// NewCatalogService creates a new catalog service. enricher may be nil.
func NewCatalogService(repo repository.CatalogRepository, enricher clients.EnrichmentClient, enrichTimeout time.Duration) *CatalogService {
	if enrichTimeout <= 0 {
		enrichTimeout = defaultEnrichTimeout
	}
	return &CatalogService{
		repo:          repo,
		enricher:      enricher,
		enrichTimeout: enrichTimeout,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logging.New("catalog-service"),
	}
}

// List returns every listing, or those matching filter when it is not blank.
func (s *CatalogService) List(ctx context.Context, filter string) ([]*models.CatalogItem, error) {
	if filter = strings.TrimSpace(filter); filter != "" {
		return s.repo.Search(ctx, filter)
	}
	return s.repo.List(ctx)
}

// GetByID returns a listing enriched with country and weather data. Both
// lookups run concurrently and are bounded by the enrichment timeout; a
// failed lookup leaves its field empty.
func (s *CatalogService) GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.enricher == nil {
		return item, nil
	}

	ectx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	var g errgroup.Group
	if item.CountryCode != nil && *item.CountryCode != "" {
		code := *item.CountryCode
		g.Go(func() error {
			item.CountryInfo = s.enricher.CountryInfo(ectx, code)
			return nil
		})
	}
	if item.City != nil && *item.City != "" {
		city, code := *item.City, ""
		if item.CountryCode != nil {
			code = *item.CountryCode
		}
		g.Go(func() error {
			item.WeatherInfo = s.enricher.WeatherInfo(ectx, city, code)
			return nil
		})
	}
	_ = g.Wait()

	return item, nil
}

func (s *CatalogService) ListByProvider(ctx context.Context, providerID string) ([]*models.CatalogItem, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

func (s *CatalogService) ListByCategory(ctx context.Context, category string) ([]*models.CatalogItem, error) {
	return s.repo.ListByCategory(ctx, category)
}

// Create stores a new listing owned by providerID. The first image URL
// becomes the primary image.
func (s *CatalogService) Create(ctx context.Context, providerID string, in *models.CatalogItemInput) (*models.CatalogItem, error) {
	if err := ValidateCatalogItemInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	item := &models.CatalogItem{
		ID:          uuid.New(),
		ProviderID:  providerID,
		Rating:      decimal.Zero,
		RatingCount: 0,
		Questions:   make([]models.Question, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyInput(item, in)
	item.Images = imagesFromURLs(in.ImageURLs)

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Update replaces the editable fields of a listing owned by providerID.
// Listings of other providers are reported as not found.
func (s *CatalogService) Update(ctx context.Context, providerID string, id uuid.UUID, in *models.CatalogItemInput) (*models.CatalogItem, error) {
	if err := ValidateCatalogItemInput(in); err != nil {
		return nil, err
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.ProviderID != providerID {
		return nil, errors.ErrNotFound
	}

	applyInput(item, in)
	item.UpdatedAt = s.now()

	// Images are only replaced when the body carries the field.
	images := item.Images
	item.Images = nil
	if in.ImageURLs != nil {
		item.Images = imagesFromURLs(in.ImageURLs)
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	if item.Images == nil {
		item.Images = images
	}

	s.logger.WithFields(logging.Fields{
		"service_id":  id,
		"provider_id": providerID,
	}).Info("Service updated")
	return item, nil
}

func (s *CatalogService) Delete(ctx context.Context, providerID string, id uuid.UUID) error {
	return s.repo.Delete(ctx, id, providerID)
}

// UpdateRating folds one rating into the listing's running mean.
func (s *CatalogService) UpdateRating(ctx context.Context, id uuid.UUID, value int) (*RatingSummary, error) {
	if err := validateRating(value); err != nil {
		return nil, err
	}

	rating, count, err := s.repo.UpdateRating(ctx, id, func(current decimal.Decimal, n int) (decimal.Decimal, int) {
		return FoldRating(current, n, value)
	})
	if err != nil {
		return nil, err
	}

	return &RatingSummary{ServiceID: id, Rating: rating, RatingCount: count}, nil
}

// ApplyRating is UpdateRating for callers that only need the outcome.
func (s *CatalogService) ApplyRating(ctx context.Context, id uuid.UUID, value int) error {
	_, err := s.UpdateRating(ctx, id, value)
	return err
}

// AskQuestion attaches a question to an existing listing.
func (s *CatalogService) AskQuestion(ctx context.Context, userID string, in *models.QuestionInput) (*models.Question, error) {
	serviceID, err := ParseID("serviceId", in.ServiceID)
	if err != nil {
		return nil, err
	}
	if err := validateQuestionText("question", in.Question); err != nil {
		return nil, err
	}

	q := &models.Question{
		ID:        uuid.New(),
		ServiceID: serviceID,
		UserID:    userID,
		Question:  strings.TrimSpace(in.Question),
		CreatedAt: s.now(),
	}
	if err := s.repo.AddQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// AnswerQuestion records the listing owner's answer.
func (s *CatalogService) AnswerQuestion(ctx context.Context, providerID string, questionID uuid.UUID, answer string) (*models.Question, error) {
	if err := validateQuestionText("answer", answer); err != nil {
		return nil, err
	}

	q, owner, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if owner != providerID {
		return nil, errors.ErrNotFound
	}

	text := strings.TrimSpace(answer)
	answeredAt := s.now()
	q.Answer = &text
	q.AnsweredAt = &answeredAt

	if err := s.repo.AnswerQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func applyInput(item *models.CatalogItem, in *models.CatalogItemInput) {
	item.Name = strings.TrimSpace(in.Name)
	item.Description = in.Description
	item.Price = in.Price
	item.Category = in.Category
	item.City = in.City
	item.CountryCode = upperPtr(in.CountryCode)
	item.Latitude = in.Latitude
	item.Longitude = in.Longitude
	item.TransportType = in.TransportType
	item.DepartureTime = in.DepartureTime
	item.ArrivalTime = in.ArrivalTime
	item.RouteDescription = in.RouteDescription
}

func imagesFromURLs(urls []string) []models.ServiceImage {
	images := make([]models.ServiceImage, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		url := u
		images = append(images, models.ServiceImage{
			ID:        uuid.New(),
			ImageURL:  &url,
			IsPrimary: len(images) == 0,
		})
	}
	return images
}

func upperPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*s))
	return &v
}
