package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
)

// AdminHandler handles the admin dashboard endpoints.
type AdminHandler struct {
	admin core.AdminUserService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin core.AdminUserService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Analytics handles GET /admin/analytics.
func (h *AdminHandler) Analytics(c *gin.Context) {
	a, err := h.admin.Analytics(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateProfile handles PUT /admin/profile.
func (h *AdminHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateAdminProfileRequest
	authorize := func(ctx context.Context) error {
		return h.admin.Authorize(ctx, middleware.CallerFrom(c), "update their admin profile")
	}
	if !bindJSON(c, &req, authorize) {
		return
	}
	marker, err := h.admin.UpdateAdminProfile(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, marker)
}
