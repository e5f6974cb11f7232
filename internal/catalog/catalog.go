// Package catalog loads product catalogs from YAML and seeds them into the
// product repository.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/money"
)

// Entry is one product in a catalog file. Price is in naira.
type Entry struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	Category    string  `yaml:"category"`
	Stock       int     `yaml:"stock"`
	Featured    bool    `yaml:"featured"`
	ImageURL    string  `yaml:"imageUrl"`
}

// File is the top-level document of a catalog file.
type File struct {
	Products []Entry `yaml:"products"`
}

// Load decodes and validates a catalog.
func Load(r io.Reader) ([]Entry, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	for i, e := range f.Products {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("product %d (%q): %w", i, e.Name, err)
		}
	}
	return f.Products, nil
}

func (e Entry) validate() error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return fmt.Errorf("name is required")
	case strings.TrimSpace(e.Description) == "":
		return fmt.Errorf("description is required")
	case strings.TrimSpace(e.Category) == "":
		return fmt.Errorf("category is required")
	case e.Price < 0:
		return fmt.Errorf("price must not be negative")
	case e.Stock < 0:
		return fmt.Errorf("stock must not be negative")
	}
	return nil
}

// Product converts the entry into a catalog document with prices in kobo.
func (e Entry) Product(now time.Time) *models.Product {
	return &models.Product{
		Name:        e.Name,
		Description: e.Description,
		Price:       money.ToMinor(e.Price),
		Category:    e.Category,
		Stock:       e.Stock,
		Featured:    e.Featured,
		ImageURL:    e.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Seed creates every entry in repo and returns the new ids in order. It stops
// at the first failure.
func Seed(ctx context.Context, repo db.ProductRepository, entries []Entry, logger *zap.Logger) ([]string, error) {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		id, err := repo.Create(ctx, e.Product(time.Now().UTC()))
		if err != nil {
			return ids, fmt.Errorf("failed to create %q: %w", e.Name, err)
		}
		logger.Info("Seeded product", zap.String("productID", id), zap.String("name", e.Name))
		ids = append(ids, id)
	}
	return ids, nil
}
