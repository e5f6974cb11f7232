package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/core"
	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/firebase"
	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/pkg/cache"
	"github.com/example/storefront/pkg/messagequeue"
)

func main() {
	// --- 1. Configuration and logger ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	var zapLogger *zap.Logger
	if strings.ToLower(appConfig.GinMode) == "release" {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Firebase (Auth, Firestore, Storage) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	clients, err := firebase.Init(initCtx, appConfig)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	defer clients.Close()
	zapLogger.Info("Firebase Admin SDK initialized", zap.String("projectID", appConfig.FirebaseProjectID))

	// --- 3. Repositories and identity provider ---
	idp := identity.NewProvider(clients.Auth)
	userRepo := db.NewFirestoreUserRepository(clients.Firestore)
	adminRepo := db.NewFirestoreAdminRepository(clients.Firestore)
	productRepo := db.NewFirestoreProductRepository(clients.Firestore, zapLogger)
	auditRepo := db.NewFirestoreAuditRepository(clients.Firestore)

	checker, err := core.NewAdminChecker(appConfig.AdminSource, idp, adminRepo, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Invalid admin source", zap.Error(err))
	}

	// --- 4. Optional infrastructure: Redis, RabbitMQ, object storage ---
	var cartStore cart.Store = cart.NewMemoryStore()
	var productCache cache.Cache
	if appConfig.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(initCtx, cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		cartStore = cart.NewRedisStore(rdb, appConfig.CartTTL)
		productCache = cache.NewRedisCache(rdb, "")
		zapLogger.Info("Redis connected", zap.String("address", appConfig.RedisAddr))
	} else {
		zapLogger.Warn("REDIS_ADDR not set: carts are kept in memory and the product cache is disabled")
	}

	var publisher core.EventPublisher
	if appConfig.RabbitMQURL != "" {
		mq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mq.Close()
		publisher = events.NewPublisher(mq, appConfig.EventsQueue)
		zapLogger.Info("User events enabled", zap.String("queue", appConfig.EventsQueue))
	} else {
		zapLogger.Warn("RABBITMQ_URL not set: user events are disabled")
	}

	var images core.ImageStore
	if clients.Bucket != nil {
		images = storage.NewImageStore(clients.Bucket, clients.BucketName)
	} else {
		zapLogger.Warn("FIREBASE_STORAGE_BUCKET not set: product image uploads are disabled")
	}

	// --- 5. Services ---
	auditService := core.NewAuditService(auditRepo)
	timeout := appConfig.DownstreamTimeout

	productService := core.NewProductService(core.ProductDeps{
		Repo:     productRepo,
		Images:   images,
		Cache:    productCache,
		CacheTTL: appConfig.ProductCacheTTL,
		Checker:  checker,
		Audit:    auditService,
	}, timeout, zapLogger)

	services := api.Services{
		Admin: core.NewAdminUserService(core.AdminDeps{
			Identity: idp,
			Users:    userRepo,
			Admins:   adminRepo,
			Products: productRepo,
			Checker:  checker,
			Audit:    auditService,
			Events:   publisher,
		}, timeout, zapLogger),
		Users:    core.NewUserService(idp, userRepo, adminRepo, timeout, zapLogger),
		Products: productService,
		Carts:    core.NewCartService(cartStore, productService, zapLogger),
		Checker:  checker,
	}

	// --- 6. HTTP engine and middleware ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured.")
	}

	api.SetupRoutes(router, zapLogger, idp, services)

	// --- 7. Serve with graceful shutdown ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}
