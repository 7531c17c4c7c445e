package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/clients"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
)

const defaultNotifyTimeout = 3 * time.Second

// ReviewService handles review business logic.
type ReviewService struct {
	reviews        repository.ReviewRepository
	notifier       clients.RatingNotifier
	eventPublisher ReviewEventPublisher
	config         *config.Config
	notifyTimeout  time.Duration
	inflight       sync.WaitGroup
	now            func() time.Time
	logger         *logrus.Entry
}

// NewReviewService creates a new review service. notifier and eventPublisher
// may be nil.
func NewReviewService(
	reviews repository.ReviewRepository,
	notifier clients.RatingNotifier,
	eventPublisher ReviewEventPublisher,
	cfg *config.Config,
) *ReviewService {
	timeout := cfg.CatalogService.Timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &ReviewService{
		reviews:        reviews,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		config:         cfg,
		notifyTimeout:  timeout,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logging.New("review-service"),
	}
}

// SubmitReview stores a review and forwards its rating to the catalog in the
// background. A second review of the same service by the same user fails
// with errors.ErrConflict.
func (s *ReviewService) SubmitReview(ctx context.Context, principal models.Principal, in *models.ReviewInput) (*models.Review, error) {
	serviceID, err := ValidateReviewInput(in)
	if err != nil {
		return nil, err
	}

	exists, err := s.reviews.Exists(ctx, serviceID, principal.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("user already reviewed service %s: %w", serviceID, errors.ErrConflict)
	}

	now := s.now()
	review := &models.Review{
		ID:        uuid.New(),
		ServiceID: serviceID,
		UserID:    principal.UserID,
		Username:  principal.Username,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	s.logger.WithFields(logging.Fields{
		"review_id":  review.ID,
		"service_id": serviceID,
		"rating":     review.Rating,
	}).Info("Review created")

	// On the kafka transport the rating notification is the created event.
	if s.config.Features.RatingTransport != config.RatingTransportKafka {
		s.publish(ctx, review, s.publishCreated)
	}

	s.inflight.Add(1)
	go s.notifyCatalog(review)

	return review, nil
}

// notifyCatalog runs detached from the request; failures are only logged.
func (s *ReviewService) notifyCatalog(review *models.Review) {
	defer s.inflight.Done()

	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	transport := s.config.Features.RatingTransport
	if err := s.notifier.NotifyRating(ctx, review); err != nil {
		metrics.RatingNotificationsTotal.WithLabelValues(transport, metrics.ResultFailure).Inc()
		s.logger.WithFields(logging.Fields{
			"review_id":  review.ID,
			"service_id": review.ServiceID,
			"transport":  transport,
			"error":      err.Error(),
		}).Error("Failed to update catalog rating")
		return
	}

	metrics.RatingNotificationsTotal.WithLabelValues(transport, metrics.ResultSuccess).Inc()
}

// Wait blocks until background rating notifications have finished.
func (s *ReviewService) Wait() {
	s.inflight.Wait()
}

// UpdateReview changes rating and comment of the caller's own review. The
// catalog aggregate keeps the rating submitted at creation.
func (s *ReviewService) UpdateReview(ctx context.Context, userID string, id uuid.UUID, in *models.ReviewInput) (*models.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	if len(in.Comment) > maxCommentLength {
		return nil, errors.NewValidationError("comment", "is too long")
	}

	review, err := s.ownedReview(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	review.Rating = in.Rating
	review.Comment = in.Comment
	review.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}

	s.publish(ctx, review, s.publishUpdated)
	return review, nil
}

// DeleteReview removes the caller's own review.
func (s *ReviewService) DeleteReview(ctx context.Context, userID string, id uuid.UUID) error {
	review, err := s.ownedReview(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.reviews.Delete(ctx, id, userID); err != nil {
		return err
	}

	s.publish(ctx, review, s.publishDeleted)
	return nil
}

func (s *ReviewService) ownedReview(ctx context.Context, userID string, id uuid.UUID) (*models.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, errors.ErrNotFound
	}
	return review, nil
}

func (s *ReviewService) publishCreated(ctx context.Context, r *models.Review) error {
	return s.eventPublisher.PublishReviewCreated(ctx, r)
}

func (s *ReviewService) publishUpdated(ctx context.Context, r *models.Review) error {
	return s.eventPublisher.PublishReviewUpdated(ctx, r)
}

func (s *ReviewService) publishDeleted(ctx context.Context, r *models.Review) error {
	return s.eventPublisher.PublishReviewDeleted(ctx, r)
}

func (s *ReviewService) publish(ctx context.Context, review *models.Review, fn func(context.Context, *models.Review) error) {
	if s.eventPublisher == nil || !s.config.Features.EnableEvents {
		return
	}
	if err := fn(ctx, review); err != nil {
		s.logger.WithFields(logging.Fields{
			"review_id": review.ID,
			"error":     err.Error(),
		}).Error("Failed to publish review event")
	}
}

func (s *ReviewService) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

// ListByService returns a service's reviews, newest first.
func (s *ReviewService) ListByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Review, error) {
	return s.reviews.ListByService(ctx, serviceID)
}

func (s *ReviewService) ListByUser(ctx context.Context, userID string) ([]*models.Review, error) {
	return s.reviews.ListByUser(ctx, userID)
}

func (s *ReviewService) Stats(ctx context.Context, serviceID uuid.UUID) (*models.ReviewStats, error) {
	return s.reviews.Stats(ctx, serviceID)
}
