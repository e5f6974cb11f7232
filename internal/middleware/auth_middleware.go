package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/models"
)

// callerKey is the Gin context key holding the verified *models.Caller.
const callerKey = "caller"

// TokenVerifier verifies bearer ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*identity.VerifiedToken, error)
}

// AuthMiddleware provides Gin middleware for Firebase token authentication.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("AuthMiddleware requires a non-nil TokenVerifier")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// VerifyToken rejects requests without a valid bearer token.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		idToken, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthenticated(c, "Authorization header format must be 'Bearer {token}'")
			return
		}
		if !m.authenticate(c, idToken) {
			return
		}
		c.Next()
	}
}

// OptionalToken attaches the caller when a bearer token is present. Requests
// without one continue anonymously so that the handler can answer with its own
// error; a present but invalid token is still rejected.
func (m *AuthMiddleware) OptionalToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		idToken, ok := bearerToken(header)
		if !ok {
			abortUnauthenticated(c, "Authorization header format must be 'Bearer {token}'")
			return
		}
		if !m.authenticate(c, idToken) {
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context, idToken string) bool {
	token, err := m.verifier.VerifyIDToken(c.Request.Context(), idToken)
	if err != nil {
		m.logger.Warn("Error verifying Firebase ID token",
			zap.String("request_id", GetRequestID(c.Request.Context())),
			zap.Error(err),
		)
		abortUnauthenticated(c, "Invalid or expired authentication token")
		return false
	}

	caller := &models.Caller{UID: token.UID, Claims: token.Claims}
	if email, ok := token.Claims["email"].(string); ok {
		caller.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		caller.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		caller.PhotoURL = picture
	}
	c.Set(callerKey, caller)
	return true
}

// CallerFrom returns the caller attached by the auth middleware, or nil.
func CallerFrom(c *gin.Context) *models.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*models.Caller)
	return caller
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(core.CodeUnauthenticated, msg))
}

// errorBody matches the error envelope written by the API handlers.
func errorBody(code core.Code, msg string) gin.H {
	return gin.H{"error": gin.H{"status": code, "message": msg}}
}
