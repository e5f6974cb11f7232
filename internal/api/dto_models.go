package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/money"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Status  core.Code `json:"status"`
	Message string    `json:"message"`
}

// ErrorResponse wraps ErrorBody the way callable clients expect it.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// CallableRequest is the body of a callable invocation.
type CallableRequest struct {
	Data json.RawMessage `json:"data"`
}

// CallableResponse is the body of a successful callable invocation.
type CallableResponse struct {
	Result interface{} `json:"result"`
}

// CartResponse is a cart with its derived totals.
type CartResponse struct {
	Items          []cart.Item `json:"items"`
	TotalItems     int         `json:"totalItems"`
	TotalPrice     int64       `json:"totalPrice"`
	TotalFormatted string      `json:"totalFormatted"`
	Currency       string      `json:"currency"`
}

func newCartResponse(c *cart.Cart) CartResponse {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return CartResponse{
		Items:          items,
		TotalItems:     c.TotalItems(),
		TotalPrice:     c.TotalPrice(),
		TotalFormatted: money.Format(c.TotalPrice()),
		Currency:       money.Currency,
	}
}

// httpStatus maps an error code to the HTTP status of the response.
func httpStatus(code core.Code) int {
	switch code {
	case core.CodeInvalidArgument, core.CodeFailedPrecondition:
		return http.StatusBadRequest
	case core.CodeUnauthenticated:
		return http.StatusUnauthorized
	case core.CodePermissionDenied:
		return http.StatusForbidden
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeAlreadyExists:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err as an error envelope. Untyped errors become INTERNAL
// with a generic message; the original is kept on the Gin context for the
// request logger.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	code := core.CodeOf(err)
	c.AbortWithStatusJSON(httpStatus(code), ErrorResponse{Error: ErrorBody{Status: code, Message: core.MessageOf(err)}})
}
