package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
)

const msgInvalidData = "Request body must be a JSON object whose data member matches the operation"

// CallableHandler serves the admin user-management callables.
type CallableHandler struct {
	admin core.AdminUserService
}

// NewCallableHandler creates a new CallableHandler.
func NewCallableHandler(admin core.AdminUserService) *CallableHandler {
	return &CallableHandler{admin: admin}
}

// ListUsers handles POST /callable/listUsers.
func (h *CallableHandler) ListUsers(c *gin.Context) {
	var req models.ListUsersRequest
	if !h.bind(c, &req, "list users") {
		return
	}
	res, err := h.admin.ListUsers(c.Request.Context(), middleware.CallerFrom(c), req)
	respondCallable(c, res, err)
}

// CreateUser handles POST /callable/createUser.
func (h *CallableHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !h.bind(c, &req, "create users") {
		return
	}
	res, err := h.admin.CreateUser(c.Request.Context(), middleware.CallerFrom(c), req)
	respondCallable(c, res, err)
}

// UpdateUser handles POST /callable/updateUser.
func (h *CallableHandler) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if !h.bind(c, &req, "update users") {
		return
	}
	res, err := h.admin.UpdateUser(c.Request.Context(), middleware.CallerFrom(c), req)
	respondCallable(c, res, err)
}

// DeleteUser handles POST /callable/deleteUser.
func (h *CallableHandler) DeleteUser(c *gin.Context) {
	var req models.DeleteUserRequest
	if !h.bind(c, &req, "delete users") {
		return
	}
	res, err := h.admin.DeleteUser(c.Request.Context(), middleware.CallerFrom(c), req)
	respondCallable(c, res, err)
}

// bind decodes the "data" member of a callable body into dst. An empty body
// or a null data member leaves dst at its zero value. A body that does not
// decode is answered with the caller's authorization error for action, if
// any, before it is reported as invalid.
func (h *CallableHandler) bind(c *gin.Context, dst interface{}, action string) bool {
	var env CallableRequest
	err := c.ShouldBindJSON(&env)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err == nil && (len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null"))) {
		return true
	}
	if err == nil {
		err = json.Unmarshal(env.Data, dst)
	}
	if err == nil {
		return true
	}
	if authErr := h.admin.Authorize(c.Request.Context(), middleware.CallerFrom(c), action); authErr != nil {
		respondError(c, authErr)
		return false
	}
	respondError(c, core.InvalidArgument(msgInvalidData))
	return false
}

func respondCallable(c *gin.Context, result interface{}, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CallableResponse{Result: result})
}
