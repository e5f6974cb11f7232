package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/middleware"
)

// Services groups the services the routes dispatch to.
type Services struct {
	Admin    core.AdminUserService
	Users    core.UserService
	Products core.ProductService
	Carts    core.CartService
	Checker  core.AdminChecker
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (request id, logging, recovery, CORS) is applied in main.
// Admin-only routes are not gated here; every admin operation checks the
// caller in the service layer.
func SetupRoutes(router *gin.Engine, logger *zap.Logger, verifier middleware.TokenVerifier, svc Services) {
	useJSONFieldNames()
	authMW := middleware.NewAuthMiddleware(verifier, logger)

	callableHandler := NewCallableHandler(svc.Admin)
	adminHandler := NewAdminHandler(svc.Admin)
	userHandler := NewUserHandler(svc.Users, svc.Checker)
	productHandler := NewProductHandler(svc.Products)
	cartHandler := NewCartHandler(svc.Carts)

	apiV1 := router.Group("/api/v1")
	{
		callable := apiV1.Group("/callable", authMW.OptionalToken())
		{
			callable.POST("/listUsers", callableHandler.ListUsers)
			callable.POST("/createUser", callableHandler.CreateUser)
			callable.POST("/updateUser", callableHandler.UpdateUser)
			callable.POST("/deleteUser", callableHandler.DeleteUser)
		}

		products := apiV1.Group("/products")
		{
			products.GET("", productHandler.ListProducts)
			products.GET("/:id", productHandler.GetProduct)
		}

		users := apiV1.Group("/users", authMW.VerifyToken())
		{
			users.POST("/sync", userHandler.SyncProfile)
			users.GET("/me", userHandler.GetCurrentUserProfile)
			users.GET("/me/session", userHandler.GetSession)
		}

		carts := apiV1.Group("/cart", authMW.VerifyToken())
		{
			carts.GET("", cartHandler.GetCart)
			carts.POST("/items", cartHandler.AddItem)
			carts.PUT("/items/:id", cartHandler.UpdateItem)
			carts.DELETE("/items/:id", cartHandler.RemoveItem)
			carts.POST("/checkout", cartHandler.Checkout)
		}

		admin := apiV1.Group("/admin", authMW.VerifyToken())
		{
			admin.POST("/products", productHandler.CreateProduct)
			admin.PUT("/products/:id", productHandler.UpdateProduct)
			admin.DELETE("/products/:id", productHandler.DeleteProduct)
			admin.PUT("/products/:id/image", productHandler.ReplaceImage)
			admin.GET("/analytics", adminHandler.Analytics)
			admin.PUT("/profile", adminHandler.UpdateProfile)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Storefront backend is healthy."})
	})
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	logger.Info("API routes configured successfully under /api/v1, /health and /ping.")
}
