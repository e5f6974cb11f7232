package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/session"
)

// UserHandler handles user-profile related API endpoints.
type UserHandler struct {
	userService core.UserService
	checker     core.AdminChecker
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, checker core.AdminChecker) *UserHandler {
	return &UserHandler{userService: us, checker: checker}
}

// SyncProfile handles POST /users/sync. Clients call it after every sign-in.
func (h *UserHandler) SyncProfile(c *gin.Context) {
	profile, err := h.userService.SyncProfile(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetCurrentUserProfile handles GET /users/me.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	if caller == nil {
		respondError(c, core.Unauthenticated("Authentication required"))
		return
	}
	profile, err := h.userService.GetProfile(c.Request.Context(), caller.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetSession handles GET /users/me/session. It resolves the caller the same way
// the client session tracker does, with admin status read server-side.
func (h *UserHandler) GetSession(c *gin.Context) {
	var id *models.Identity
	if caller := middleware.CallerFrom(c); caller != nil {
		id = &models.Identity{
			UID:         caller.UID,
			Email:       caller.Email,
			DisplayName: caller.DisplayName,
			PhotoURL:    caller.PhotoURL,
		}
	}
	c.JSON(http.StatusOK, session.Resolve(c.Request.Context(), h.checker, id))
}
