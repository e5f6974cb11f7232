package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/firebase"
)

// seed loads a YAML catalog into the products collection.
func main() {
	path := flag.String("file", "data/catalog.yaml", "catalog file to load")
	flag.Parse()

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load application configuration", zap.Error(err))
	}

	f, err := os.Open(*path)
	if err != nil {
		zapLogger.Fatal("Failed to open catalog", zap.String("file", *path), zap.Error(err))
	}
	entries, err := catalog.Load(f)
	f.Close()
	if err != nil {
		zapLogger.Fatal("Invalid catalog", zap.String("file", *path), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	clients, err := firebase.Init(ctx, appConfig)
	if err != nil {
		zapLogger.Fatal("Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	defer clients.Close()

	repo := db.NewFirestoreProductRepository(clients.Firestore, zapLogger)
	ids, err := catalog.Seed(ctx, repo, entries, zapLogger)
	if err != nil {
		zapLogger.Error("Seeding stopped", zap.Int("created", len(ids)), zap.Error(err))
		return
	}
	zapLogger.Info("Catalog seeded", zap.Int("products", len(ids)))
}
