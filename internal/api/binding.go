package api

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/example/storefront/internal/core"
)

var fieldNamesOnce sync.Once

// useJSONFieldNames makes gin's validator report fields by their json names,
// matching the messages the services produce.
func useJSONFieldNames() {
	fieldNamesOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(core.JSONFieldName)
		}
	})
}

// bindJSON binds and validates the request body into dst. When binding fails
// and authorize is set, an authorization error is reported instead of the
// payload error.
func bindJSON(c *gin.Context, dst interface{}, authorize func(context.Context) error) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	if authorize != nil {
		if authErr := authorize(c.Request.Context()); authErr != nil {
			respondError(c, authErr)
			return false
		}
	}
	respondError(c, core.BindingError(err))
	return false
}
