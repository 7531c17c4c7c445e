package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/service"
)

// CartService is the cart and checkout behaviour the HTTP layer needs.
type CartService interface {
	GetCart(ctx context.Context, userID string) ([]*models.CartLine, error)
	Total(ctx context.Context, userID string) (decimal.Decimal, error)
	AddItem(ctx context.Context, userID string, serviceID uuid.UUID, quantity int) (*models.CartLine, error)
	SetQuantity(ctx context.Context, userID string, lineID uuid.UUID, quantity int) (*models.CartLine, error)
	RemoveItem(ctx context.Context, userID string, lineID uuid.UUID) error
	Clear(ctx context.Context, userID string) error
	Checkout(ctx context.Context, userID string) (*models.Order, error)
	OrderHistory(ctx context.Context, userID string) ([]*models.Order, error)
}

var _ CartService = (*service.CartService)(nil)

// CartHandlers serves /cart.
type CartHandlers struct {
	cart CartService
}

func NewCartHandlers(cart CartService) *CartHandlers {
	return &CartHandlers{cart: cart}
}

// Register mounts the cart routes on a group that already requires a user.
func (h *CartHandlers) Register(rg *gin.RouterGroup) {
	cart := rg.Group("/cart")
	cart.GET("", h.GetCart)
	cart.GET("/total", h.GetTotal)
	cart.POST("/items", h.AddItem)
	cart.PUT("/items/:id", h.UpdateQuantity)
	cart.DELETE("/items/:id", h.RemoveItem)
	cart.DELETE("", h.Clear)
	cart.POST("/checkout", h.Checkout)
	cart.GET("/orders", h.OrderHistory)
}

// GetCart handles GET /cart
func (h *CartHandlers) GetCart(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	lines, err := h.cart.GetCart(c.Request.Context(), p.UserID)
	if err != nil {
		handleError(c, err)
		return
	}
	if lines == nil {
		lines = []*models.CartLine{}
	}
	c.JSON(http.StatusOK, lines)
}

// GetTotal handles GET /cart/total
func (h *CartHandlers) GetTotal(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	total, err := h.cart.Total(c.Request.Context(), p.UserID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}

// AddItem handles POST /cart/items?serviceId=&quantity=
func (h *CartHandlers) AddItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	serviceID, err := service.ParseID("serviceId", c.Query("serviceId"))
	if err != nil {
		handleError(c, err)
		return
	}
	quantity, err := queryInt(c, "quantity", 1)
	if err != nil {
		handleError(c, err)
		return
	}

	line, err := h.cart.AddItem(c.Request.Context(), p.UserID, serviceID, quantity)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

// UpdateQuantity handles PUT /cart/items/:id?quantity=
// A quantity of zero or less removes the line and answers 204.
func (h *CartHandlers) UpdateQuantity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	lineID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if c.Query("quantity") == "" {
		handleError(c, errors.NewValidationError("quantity", "quantity is required"))
		return
	}
	quantity, err := queryInt(c, "quantity", 0)
	if err != nil {
		handleError(c, err)
		return
	}

	line, err := h.cart.SetQuantity(c.Request.Context(), p.UserID, lineID, quantity)
	if err != nil {
		handleError(c, err)
		return
	}
	if line == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, line)
}

// RemoveItem handles DELETE /cart/items/:id
func (h *CartHandlers) RemoveItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	lineID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.cart.RemoveItem(c.Request.Context(), p.UserID, lineID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /cart
func (h *CartHandlers) Clear(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.cart.Clear(c.Request.Context(), p.UserID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Checkout handles POST /cart/checkout
func (h *CartHandlers) Checkout(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	order, err := h.cart.Checkout(c.Request.Context(), p.UserID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// OrderHistory handles GET /cart/orders
func (h *CartHandlers) OrderHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	orders, err := h.cart.OrderHistory(c.Request.Context(), p.UserID)
	if err != nil {
		handleError(c, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(name, "must be an integer")
	}
	return n, nil
}
