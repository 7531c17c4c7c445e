package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/clients"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

const maxAnswerBytes = 64 << 10

type CatalogService interface {
	List(ctx context.Context, filter string) ([]*models.CatalogItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	ListByProvider(ctx context.Context, providerID string) ([]*models.CatalogItem, error)
	ListByCategory(ctx context.Context, category string) ([]*models.CatalogItem, error)
	Create(ctx context.Context, providerID string, in *models.CatalogItemInput) (*models.CatalogItem, error)
	Update(ctx context.Context, providerID string, id uuid.UUID, in *models.CatalogItemInput) (*models.CatalogItem, error)
	Delete(ctx context.Context, providerID string, id uuid.UUID) error
	UpdateRating(ctx context.Context, id uuid.UUID, value int) (*service.RatingSummary, error)
	AskQuestion(ctx context.Context, userID string, in *models.QuestionInput) (*models.Question, error)
	AnswerQuestion(ctx context.Context, providerID string, questionID uuid.UUID, answer string) (*models.Question, error)
}

var _ CatalogService = (*service.CatalogService)(nil)

// CatalogHandlers serves /services and /questions.
type CatalogHandlers struct {
	catalog CatalogService
}

func NewCatalogHandlers(catalog CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Register mounts the catalog routes. internal guards the rating endpoint
// called by the review service.
func (h *CatalogHandlers) Register(public, authed *gin.RouterGroup, internal gin.HandlerFunc) {
	public.GET("/services", h.List)
	authed.GET("/services/my-services", h.MyServices)
	public.GET("/services/category/:category", h.ListByCategory)
	public.GET("/services/provider/:providerId", h.ListByProvider)
	public.GET("/services/:id", h.Get)
	public.PUT("/services/:id/rating", internal, h.UpdateRating)

	provider := middleware.RequireRole(middleware.RoleProvider)
	authed.POST("/services", provider, h.Create)
	authed.PUT("/services/:id", provider, h.Update)
	authed.DELETE("/services/:id", provider, h.Delete)

	authed.POST("/questions", h.AskQuestion)
	authed.PUT("/questions/:id/answer", provider, h.AnswerQuestion)
}

// List handles GET /services?filter=
func (h *CatalogHandlers) List(c *gin.Context) {
	items, err := h.catalog.List(c.Request.Context(), c.Query("filter"))
	respondItems(c, items, err)
}

// Get handles GET /services/:id
func (h *CatalogHandlers) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.catalog.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CatalogHandlers) ListByCategory(c *gin.Context) {
	items, err := h.catalog.ListByCategory(c.Request.Context(), c.Param("category"))
	respondItems(c, items, err)
}

func (h *CatalogHandlers) ListByProvider(c *gin.Context) {
	items, err := h.catalog.ListByProvider(c.Request.Context(), c.Param("providerId"))
	respondItems(c, items, err)
}

// MyServices handles GET /services/my-services
func (h *CatalogHandlers) MyServices(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	items, err := h.catalog.ListByProvider(c.Request.Context(), p.UserID)
	respondItems(c, items, err)
}

func respondItems(c *gin.Context, items []*models.CatalogItem, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	if items == nil {
		items = []*models.CatalogItem{}
	}
	c.JSON(http.StatusOK, items)
}

// Create handles POST /services
func (h *CatalogHandlers) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in models.CatalogItemInput
	if !bindJSON(c, &in) {
		return
	}

	item, err := h.catalog.Create(c.Request.Context(), p.UserID, &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Update handles PUT /services/:id
func (h *CatalogHandlers) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in models.CatalogItemInput
	if !bindJSON(c, &in) {
		return
	}

	item, err := h.catalog.Update(c.Request.Context(), p.UserID, id, &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete handles DELETE /services/:id
func (h *CatalogHandlers) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), p.UserID, id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateRating handles PUT /services/:id/rating. The body is the bare rating
// value or {"rating": n}.
func (h *CatalogHandlers) UpdateRating(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req clients.RatingRequest
	if !bindJSON(c, &req) {
		return
	}

	summary, err := h.catalog.UpdateRating(c.Request.Context(), id, req.Rating)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AskQuestion handles POST /questions
func (h *CatalogHandlers) AskQuestion(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in models.QuestionInput
	if !bindJSON(c, &in) {
		return
	}

	q, err := h.catalog.AskQuestion(c.Request.Context(), p.UserID, &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// AnswerQuestion handles PUT /questions/:id/answer. The body is either
// {"answer": "..."}, a JSON string, or plain text.
func (h *CatalogHandlers) AnswerQuestion(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAnswerBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	q, err := h.catalog.AnswerQuestion(c.Request.Context(), p.UserID, id, decodeAnswer(raw))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func decodeAnswer(raw []byte) string {
	var body struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		return body.Answer
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
