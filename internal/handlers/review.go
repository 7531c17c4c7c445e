package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

type ReviewService interface {
	SubmitReview(ctx context.Context, principal models.Principal, in *models.ReviewInput) (*models.Review, error)
	UpdateReview(ctx context.Context, userID string, id uuid.UUID, in *models.ReviewInput) (*models.Review, error)
	DeleteReview(ctx context.Context, userID string, id uuid.UUID) error
	GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListByService(ctx context.Context, serviceID uuid.UUID) ([]*models.Review, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Review, error)
	Stats(ctx context.Context, serviceID uuid.UUID) (*models.ReviewStats, error)
}

var _ ReviewService = (*service.ReviewService)(nil)

// ReviewHandlers serves /reviews.
type ReviewHandlers struct {
	reviews ReviewService
}

func NewReviewHandlers(reviews ReviewService) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews}
}

// Register mounts public reads on public and writes on authed.
func (h *ReviewHandlers) Register(public, authed *gin.RouterGroup) {
	public.GET("/reviews/service/:serviceId", h.ListByService)
	public.GET("/reviews/user/:userId", h.ListByUser)
	public.GET("/reviews/stats/:serviceId", h.Stats)
	authed.GET("/reviews/my-reviews", h.MyReviews)
	public.GET("/reviews/:id", h.GetReview)

	authed.POST("/reviews", h.Create)
	authed.PUT("/reviews/:id", h.Update)
	authed.DELETE("/reviews/:id", h.Delete)
}

func (h *ReviewHandlers) ListByService(c *gin.Context) {
	serviceID, ok := pathID(c, "serviceId")
	if !ok {
		return
	}
	reviews, err := h.reviews.ListByService(c.Request.Context(), serviceID)
	respondReviews(c, reviews, err)
}

func (h *ReviewHandlers) ListByUser(c *gin.Context) {
	reviews, err := h.reviews.ListByUser(c.Request.Context(), c.Param("userId"))
	respondReviews(c, reviews, err)
}

// MyReviews handles GET /reviews/my-reviews
func (h *ReviewHandlers) MyReviews(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	reviews, err := h.reviews.ListByUser(c.Request.Context(), p.UserID)
	respondReviews(c, reviews, err)
}

func respondReviews(c *gin.Context, reviews []*models.Review, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	if reviews == nil {
		reviews = []*models.Review{}
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandlers) GetReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	review, err := h.reviews.GetReview(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *ReviewHandlers) Stats(c *gin.Context) {
	serviceID, ok := pathID(c, "serviceId")
	if !ok {
		return
	}
	stats, err := h.reviews.Stats(c.Request.Context(), serviceID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Create handles POST /reviews
func (h *ReviewHandlers) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in models.ReviewInput
	if !bindJSON(c, &in) {
		return
	}

	review, err := h.reviews.SubmitReview(c.Request.Context(), p, &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// Update handles PUT /reviews/:id
func (h *ReviewHandlers) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in models.ReviewInput
	if !bindJSON(c, &in) {
		return
	}

	review, err := h.reviews.UpdateReview(c.Request.Context(), p.UserID, id, &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// Delete handles DELETE /reviews/:id
func (h *ReviewHandlers) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.reviews.DeleteReview(c.Request.Context(), p.UserID, id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
