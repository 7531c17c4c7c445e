package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

var errorLogger = logging.New("handlers")

// handleError maps service errors to HTTP responses. Unknown errors are
// logged and answered with a generic 500.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	if v, ok := errors.IsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": v.Message,
			"field": v.Field,
		})
		return
	}

	switch {
	case errors.Is(err, errors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errors.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, errors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		errorLogger.WithFields(logging.Fields{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// principal returns the caller, writing a 401 when there is none.
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		handleError(c, errors.ErrUnauthorized)
	}
	return p, ok
}

// pathID parses the named path parameter as a UUID, writing a 400 on failure.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := service.ParseID(name, c.Param(name))
	if err != nil {
		handleError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}
