package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/example/storefront/internal/models"
)

const (
	DefaultProductPageSize = 10
	MaxProductPageSize     = 100
)

// firestoreProductRepository implements ProductRepository using Firestore.
type firestoreProductRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreProductRepository creates a new instance of firestoreProductRepository.
func NewFirestoreProductRepository(client *firestore.Client, logger *zap.Logger) ProductRepository {
	return &firestoreProductRepository{client: client, logger: logger}
}

// List returns products ordered by createdAt descending. filter.Cursor is the
// ID of the last product of the previous page.
func (r *firestoreProductRepository) List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultProductPageSize
	}
	if limit > MaxProductPageSize {
		limit = MaxProductPageSize
	}

	col := r.client.Collection(productsCollection)
	query := col.Query
	if filter.Category != "" {
		query = query.Where("category", "==", filter.Category)
	}
	if filter.Featured != nil {
		query = query.Where("featured", "==", *filter.Featured)
	}
	query = query.OrderBy("createdAt", firestore.Desc).Limit(limit)

	if filter.Cursor != "" {
		startAfterSnap, err := col.Doc(filter.Cursor).Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cursor product '%s': %w", filter.Cursor, mapError(err))
		}
		query = query.StartAfter(startAfterSnap)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	page := &models.ProductPage{Products: []*models.Product{}}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate products: %w", err)
		}

		var p models.Product
		if err := doc.DataTo(&p); err != nil {
			r.logger.Warn("Skipping undecodable product", zap.String("productID", doc.Ref.ID), zap.Error(err))
			continue
		}
		p.ID = doc.Ref.ID
		page.Products = append(page.Products, &p)
	}

	if len(page.Products) == limit {
		page.NextCursor = page.Products[len(page.Products)-1].ID
	}
	return page, nil
}

func (r *firestoreProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("product ID cannot be empty: %w", ErrNotFound)
	}
	snap, err := r.client.Collection(productsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get product '%s': %w", id, mapError(err))
	}
	var p models.Product
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode product '%s': %w", id, err)
	}
	p.ID = snap.Ref.ID
	return &p, nil
}

// Create stores product under a generated ID and returns it.
func (r *firestoreProductRepository) Create(ctx context.Context, product *models.Product) (string, error) {
	ref := r.client.Collection(productsCollection).NewDoc()
	if _, err := ref.Create(ctx, product); err != nil {
		return "", fmt.Errorf("failed to create product '%s': %w", product.Name, mapError(err))
	}
	product.ID = ref.ID
	return ref.ID, nil
}

func (r *firestoreProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: time.Now().UTC()}}
	if patch.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *patch.Name})
	}
	if patch.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: *patch.Description})
	}
	if patch.Price != nil {
		updates = append(updates, firestore.Update{Path: "price", Value: *patch.Price})
	}
	if patch.Category != nil {
		updates = append(updates, firestore.Update{Path: "category", Value: *patch.Category})
	}
	if patch.Stock != nil {
		updates = append(updates, firestore.Update{Path: "stock", Value: *patch.Stock})
	}
	if patch.Featured != nil {
		updates = append(updates, firestore.Update{Path: "featured", Value: *patch.Featured})
	}
	if patch.ImageURL != nil {
		updates = append(updates, firestore.Update{Path: "imageUrl", Value: *patch.ImageURL})
	}
	if patch.ImagePath != nil {
		updates = append(updates, firestore.Update{Path: "imagePath", Value: *patch.ImagePath})
	}

	if _, err := r.client.Collection(productsCollection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update product '%s': %w", id, mapError(err))
	}
	return nil
}

func (r *firestoreProductRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(productsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete product '%s': %w", id, mapError(err))
	}
	return nil
}

func (r *firestoreProductRepository) Count(ctx context.Context) (int64, error) {
	n, err := countDocuments(ctx, r.client.Collection(productsCollection).Query)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// ReserveStock checks every product in qty and decrements its stock in a single
// transaction. Nothing is written if any product is missing or short.
func (r *firestoreProductRepository) ReserveStock(ctx context.Context, qty map[string]int) (map[string]int64, error) {
	if len(qty) == 0 {
		return map[string]int64{}, nil
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	col := r.client.Collection(productsCollection)
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = col.Doc(id)
	}

	var prices map[string]int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		// The function may run more than once; only the last attempt counts.
		prices = make(map[string]int64, len(ids))
		for i, snap := range snaps {
			if !snap.Exists() {
				return fmt.Errorf("product '%s': %w", ids[i], ErrNotFound)
			}
			var p models.Product
			if err := snap.DataTo(&p); err != nil {
				return fmt.Errorf("failed to decode product '%s': %w", ids[i], err)
			}
			if want := qty[ids[i]]; p.Stock < want {
				return fmt.Errorf("product '%s' has %d in stock, %d requested: %w", ids[i], p.Stock, want, ErrInsufficientStock)
			}
			prices[ids[i]] = p.Price
		}
		now := time.Now().UTC()
		for i, ref := range refs {
			if err := tx.Update(ref, []firestore.Update{
				{Path: "stock", Value: firestore.Increment(-qty[ids[i]])},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("stock reservation failed: %w", mapError(err))
	}
	return prices, nil
}
