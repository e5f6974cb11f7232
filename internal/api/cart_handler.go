package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
)

// CartHandler handles the caller's cart. Routes are mounted behind VerifyToken.
type CartHandler struct {
	carts core.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts core.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// GetCart handles GET /cart.
func (h *CartHandler) GetCart(c *gin.Context) {
	h.respond(c, func(uid string) (*cart.Cart, error) {
		return h.carts.Get(c.Request.Context(), uid)
	})
}

// AddItem handles POST /cart/items.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req models.AddCartItemRequest
	if !bindJSON(c, &req, nil) {
		return
	}
	h.respond(c, func(uid string) (*cart.Cart, error) {
		return h.carts.Add(c.Request.Context(), uid, req.ProductID)
	})
}

// UpdateItem handles PUT /cart/items/:id.
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if !bindJSON(c, &req, nil) {
		return
	}
	h.respond(c, func(uid string) (*cart.Cart, error) {
		return h.carts.UpdateQuantity(c.Request.Context(), uid, c.Param("id"), *req.Quantity)
	})
}

// RemoveItem handles DELETE /cart/items/:id.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	h.respond(c, func(uid string) (*cart.Cart, error) {
		return h.carts.Remove(c.Request.Context(), uid, c.Param("id"))
	})
}

// Checkout handles POST /cart/checkout.
func (h *CartHandler) Checkout(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	if caller == nil {
		respondError(c, core.Unauthenticated("Authentication required"))
		return
	}
	summary, err := h.carts.Checkout(c.Request.Context(), caller.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *CartHandler) respond(c *gin.Context, op func(uid string) (*cart.Cart, error)) {
	caller := middleware.CallerFrom(c)
	if caller == nil {
		respondError(c, core.Unauthenticated("Authentication required"))
		return
	}
	ct, err := op(caller.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(ct))
}
