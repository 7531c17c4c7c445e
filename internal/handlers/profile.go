package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

type ProfileService interface {
	GetMe(ctx context.Context, subjectID string) (*models.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	Upsert(ctx context.Context, subjectID string, in *models.UserProfileInput) (*models.UserProfile, error)
	DeleteMe(ctx context.Context, subjectID string) error
}

var _ ProfileService = (*service.ProfileService)(nil)

// ProfileHandlers serves /users.
type ProfileHandlers struct {
	profiles ProfileService
}

func NewProfileHandlers(profiles ProfileService) *ProfileHandlers {
	return &ProfileHandlers{profiles: profiles}
}

func (h *ProfileHandlers) Register(public, authed *gin.RouterGroup) {
	authed.GET("/users/me", h.GetMe)
	authed.DELETE("/users/me", h.DeleteMe)
	authed.POST("/users/profile", h.Upsert)
	public.GET("/users/:username", h.GetByUsername)
}

func (h *ProfileHandlers) GetMe(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	profile, err := h.profiles.GetMe(c.Request.Context(), p.UserID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandlers) GetByUsername(c *gin.Context) {
	profile, err := h.profiles.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Upsert handles POST /users/profile
func (h *ProfileHandlers) Upsert(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in models.UserProfileInput
	if !bindJSON(c, &in) {
		return
	}

	profile, err := h.profiles.Upsert(c.Request.Context(), p.UserID, &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandlers) DeleteMe(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.profiles.DeleteMe(c.Request.Context(), p.UserID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
