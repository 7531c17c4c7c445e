package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

var alice = models.Principal{UserID: "user-alice", Username: "alice"}

type reviewFixture struct {
	svc       *ReviewService
	repo      *fakeReviewRepo
	notifier  *mockRatingNotifier
	publisher *mockReviewPublisher
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := &reviewFixture{
		repo:      newFakeReviewRepo(),
		notifier:  &mockRatingNotifier{},
		publisher: &mockReviewPublisher{},
	}
	f.publisher.On("PublishReviewCreated", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewReviewService(f.repo, f.notifier, f.publisher, testConfig())
	return f
}

func TestSubmitReview_NotifiesCatalog(t *testing.T) {
	f := newReviewFixture(t)
	serviceID := uuid.New()
	f.notifier.On("NotifyRating", mock.Anything, mock.MatchedBy(func(r *models.Review) bool {
		return r.ServiceID == serviceID && r.Rating == 4
	})).Return(nil)

	review, err := f.svc.SubmitReview(context.Background(), alice, &models.ReviewInput{
		ServiceID: serviceID.String(),
		Rating:    4,
		Comment:   "Lovely views",
	})
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, "alice", review.Username)
	assert.Equal(t, alice.UserID, review.UserID)
	f.notifier.AssertExpectations(t)
}

func TestSubmitReview_NotifyFailureIsAbsorbed(t *testing.T) {
	f := newReviewFixture(t)
	f.notifier.On("NotifyRating", mock.Anything, mock.Anything).Return(stderrors.New("catalog down"))

	review, err := f.svc.SubmitReview(context.Background(), alice, &models.ReviewInput{
		ServiceID: uuid.NewString(),
		Rating:    5,
	})
	f.svc.Wait()

	require.NoError(t, err)
	assert.NotNil(t, review)
	f.notifier.AssertNumberOfCalls(t, "NotifyRating", 1)
}

func TestSubmitReview_NotificationOutlivesRequest(t *testing.T) {
	f := newReviewFixture(t)
	f.notifier.On("NotifyRating", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			assert.NoError(t, ctx.Err())
		}).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.svc.SubmitReview(ctx, alice, &models.ReviewInput{ServiceID: uuid.NewString(), Rating: 3})
	cancel()
	require.NoError(t, err)

	f.svc.Wait()
	f.notifier.AssertExpectations(t)
}

func TestSubmitReview_PublishesCreatedEvent(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		want      int
	}{
		{"http transport", config.RatingTransportHTTP, 1},
		// The kafka notifier already emits review.created.
		{"kafka transport", config.RatingTransportKafka, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReviewFixture(t)
			cfg := testConfig()
			cfg.Features.RatingTransport = tt.transport
			f.svc = NewReviewService(f.repo, f.notifier, f.publisher, cfg)
			f.notifier.On("NotifyRating", mock.Anything, mock.Anything).Return(nil)

			_, err := f.svc.SubmitReview(context.Background(), alice, &models.ReviewInput{ServiceID: uuid.NewString(), Rating: 5})
			require.NoError(t, err)
			f.svc.Wait()

			f.publisher.AssertNumberOfCalls(t, "PublishReviewCreated", tt.want)
			f.notifier.AssertNumberOfCalls(t, "NotifyRating", 1)
		})
	}
}

func TestSubmitReview_WithoutPublisher(t *testing.T) {
	notifier := &mockRatingNotifier{}
	notifier.On("NotifyRating", mock.Anything, mock.Anything).Return(nil)
	svc := NewReviewService(newFakeReviewRepo(), notifier, nil, testConfig())

	_, err := svc.SubmitReview(context.Background(), alice, &models.ReviewInput{ServiceID: uuid.NewString(), Rating: 4})
	require.NoError(t, err)
	svc.Wait()
	notifier.AssertExpectations(t)
}

func TestSubmitReview_Duplicate(t *testing.T) {
	f := newReviewFixture(t)
	f.notifier.On("NotifyRating", mock.Anything, mock.Anything).Return(nil)
	in := &models.ReviewInput{ServiceID: uuid.NewString(), Rating: 5}

	_, err := f.svc.SubmitReview(context.Background(), alice, in)
	require.NoError(t, err)

	_, err = f.svc.SubmitReview(context.Background(), alice, in)
	assert.ErrorIs(t, err, errors.ErrConflict)

	f.svc.Wait()
	f.notifier.AssertNumberOfCalls(t, "NotifyRating", 1)
}

func TestSubmitReview_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input models.ReviewInput
		field string
	}{
		{"missing service", models.ReviewInput{Rating: 3}, "serviceId"},
		{"bad service id", models.ReviewInput{ServiceID: "nope", Rating: 3}, "serviceId"},
		{"rating too low", models.ReviewInput{ServiceID: uuid.NewString(), Rating: 0}, "rating"},
		{"rating too high", models.ReviewInput{ServiceID: uuid.NewString(), Rating: 6}, "rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReviewFixture(t)
			_, err := f.svc.SubmitReview(context.Background(), alice, &tt.input)

			v, ok := errors.IsValidation(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, v.Field)
			f.notifier.AssertNotCalled(t, "NotifyRating", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateReview(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	f.notifier.On("NotifyRating", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishReviewUpdated", mock.Anything, mock.Anything).Return(nil)

	review, err := f.svc.SubmitReview(ctx, alice, &models.ReviewInput{ServiceID: uuid.NewString(), Rating: 2})
	require.NoError(t, err)
	f.svc.Wait()

	updated, err := f.svc.UpdateReview(ctx, alice.UserID, review.ID, &models.ReviewInput{Rating: 4, Comment: "Better second time"})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)

	_, err = f.svc.UpdateReview(ctx, "user-bob", review.ID, &models.ReviewInput{Rating: 1})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Edits leave the catalog aggregate alone.
	f.notifier.AssertNumberOfCalls(t, "NotifyRating", 1)
	f.publisher.AssertNumberOfCalls(t, "PublishReviewUpdated", 1)
}

func TestDeleteReview(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	f.notifier.On("NotifyRating", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishReviewDeleted", mock.Anything, mock.Anything).Return(nil)

	review, err := f.svc.SubmitReview(ctx, alice, &models.ReviewInput{ServiceID: uuid.NewString(), Rating: 2})
	require.NoError(t, err)
	f.svc.Wait()

	assert.ErrorIs(t, f.svc.DeleteReview(ctx, "user-bob", review.ID), errors.ErrNotFound)
	require.NoError(t, f.svc.DeleteReview(ctx, alice.UserID, review.ID))

	_, err = f.svc.GetReview(ctx, review.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	f.publisher.AssertNumberOfCalls(t, "PublishReviewDeleted", 1)
}

func TestReviewQueries(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	f.notifier.On("NotifyRating", mock.Anything, mock.Anything).Return(nil)

	serviceID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, rating := range []int{5, 3} {
		at := base.Add(time.Duration(i) * time.Hour)
		f.svc.now = func() time.Time { return at }
		user := models.Principal{UserID: uuid.NewString(), Username: "user"}
		_, err := f.svc.SubmitReview(ctx, user, &models.ReviewInput{ServiceID: serviceID.String(), Rating: rating})
		require.NoError(t, err)
	}
	f.svc.Wait()

	reviews, err := f.svc.ListByService(ctx, serviceID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, 3, reviews[0].Rating, "newest first")

	stats, err := f.svc.Stats(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalReviews)
	assert.InDelta(t, 4.0, stats.AverageRating, 0.001)
	assert.Equal(t, int64(1), stats.FiveStars)
	assert.Equal(t, int64(1), stats.ThreeStars)

	empty, err := f.svc.Stats(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.AverageRating)
	assert.Zero(t, empty.TotalReviews)
}
