package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
)

// ProductHandler handles catalog endpoints, public reads and admin writes.
type ProductHandler struct {
	products core.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products core.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// ListProducts handles GET /products.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Category: c.Query("category"),
		Cursor:   c.Query("cursor"),
	}
	if v := c.Query("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, core.InvalidArgument("featured must be true or false"))
			return
		}
		filter.Featured = &featured
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			respondError(c, core.InvalidArgument("limit must be between 1 and 100"))
			return
		}
		filter.Limit = limit
	}

	page, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetProduct handles GET /products/:id.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateProduct handles POST /admin/products.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if !bindJSON(c, &req, h.authorize(c)) {
		return
	}
	p, err := h.products.Create(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProduct handles PUT /admin/products/:id.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req models.UpdateProductRequest
	if !bindJSON(c, &req, h.authorize(c)) {
		return
	}
	p, err := h.products.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProduct handles DELETE /admin/products/:id.
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReplaceImage handles PUT /admin/products/:id/image with a multipart "image" file.
func (h *ProductHandler) ReplaceImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		respondError(c, core.InvalidArgument("An image file is required"))
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(c, core.InvalidArgument("Only image uploads are accepted"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, core.Internal("Error reading upload", err))
		return
	}
	defer f.Close()

	p, err := h.products.ReplaceImage(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), fh.Filename, contentType, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) authorize(c *gin.Context) func(context.Context) error {
	return func(ctx context.Context) error {
		return h.products.Authorize(ctx, middleware.CallerFrom(c))
	}
}
