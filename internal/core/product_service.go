package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/pkg/cache"
)

const productCacheKeyPrefix = "product:"

const (
	auditProductCreate = "PRODUCT_CREATE"
	auditProductUpdate = "PRODUCT_UPDATE"
	auditProductDelete = "PRODUCT_DELETE"
	auditProductImage  = "PRODUCT_IMAGE_REPLACE"
)

// productService implements the ProductService interface. Reads by ID go
// through the cache when one is configured.
type productService struct {
	repo     db.ProductRepository
	images   ImageStore
	cache    cache.Cache
	cacheTTL time.Duration
	checker  AdminChecker
	effects  sideEffects
	timeout  time.Duration
	logger   *zap.Logger
}

// ProductDeps groups the collaborators of the product service. Images and
// Cache are optional.
type ProductDeps struct {
	Repo     db.ProductRepository
	Images   ImageStore
	Cache    cache.Cache
	CacheTTL time.Duration
	Checker  AdminChecker
	Audit    AuditService
}

// NewProductService creates a new ProductService instance.
func NewProductService(deps ProductDeps, timeout time.Duration, logger *zap.Logger) ProductService {
	return &productService{
		repo:     deps.Repo,
		images:   deps.Images,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		checker:  deps.Checker,
		effects:  sideEffects{audit: deps.Audit, timeout: timeout, logger: logger},
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *productService) List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	if filter.Limit < 0 || filter.Limit > db.MaxProductPageSize {
		return nil, InvalidArgument("limit must be between 1 and 100")
	}
	var page *models.ProductPage
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		page, err = s.repo.List(ctx, filter)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, InvalidArgument("Invalid cursor")
		}
		s.logger.Error("listProducts failed", zap.String("category", filter.Category), zap.Error(err))
		return nil, Internal("Error fetching products", err)
	}
	return page, nil
}

func (s *productService) Get(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := s.cached(ctx, id); ok {
		return p, nil
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, p)
	return p, nil
}

func (s *productService) load(ctx context.Context, id string) (*models.Product, error) {
	var p *models.Product
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		p, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, NotFound("Product not found")
		}
		s.logger.Error("getProduct failed", zap.String("productID", id), zap.Error(err))
		return nil, Internal("Error fetching product", err)
	}
	return p, nil
}

// Authorize rejects callers that may not change the catalog.
func (s *productService) Authorize(ctx context.Context, caller *models.Caller) error {
	return requireAdmin(ctx, s.checker, s.timeout, caller, "manage products")
}

func (s *productService) Create(ctx context.Context, caller *models.Caller, req models.CreateProductRequest) (*models.Product, error) {
	if err := s.Authorize(ctx, caller); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		Featured:    req.Featured,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := call(ctx, s.timeout, func(ctx context.Context) error {
		_, err := s.repo.Create(ctx, p)
		return err
	})
	if err != nil {
		s.logger.Error("createProduct failed", zap.String("name", req.Name), zap.Error(err))
		return nil, Internal("Error adding product", err)
	}

	s.effects.audited(ctx, caller, auditProductCreate, "product", p.ID, map[string]interface{}{"name": p.Name})
	return p, nil
}

func (s *productService) Update(ctx context.Context, caller *models.Caller, id string, req models.UpdateProductRequest) (*models.Product, error) {
	if err := s.Authorize(ctx, caller); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	patch := models.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		Featured:    req.Featured,
		ImageURL:    req.ImageURL,
	}
	if err := s.patch(ctx, id, patch, "updateProduct", "Error updating product"); err != nil {
		return nil, err
	}

	s.effects.audited(ctx, caller, auditProductUpdate, "product", id, nil)
	return s.load(ctx, id)
}

func (s *productService) patch(ctx context.Context, id string, patch models.ProductPatch, op, msg string) error {
	err := call(ctx, s.timeout, func(ctx context.Context) error { return s.repo.Update(ctx, id, patch) })
	s.forget(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return NotFound("Product not found")
		}
		s.logger.Error(op+" failed", zap.String("productID", id), zap.Error(err))
		return Internal(msg, err)
	}
	return nil
}

// Delete removes the product image, best effort, then the document.
func (s *productService) Delete(ctx context.Context, caller *models.Caller, id string) error {
	if err := s.Authorize(ctx, caller); err != nil {
		return err
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	s.dropImage(ctx, existing.ImagePath)

	err = call(ctx, s.timeout, func(ctx context.Context) error { return s.repo.Delete(ctx, id) })
	s.forget(ctx, id)
	if err != nil {
		s.logger.Error("deleteProduct failed", zap.String("productID", id), zap.Error(err))
		return Internal("Error deleting product", err)
	}

	s.effects.audited(ctx, caller, auditProductDelete, "product", id, map[string]interface{}{"name": existing.Name})
	return nil
}

// ReplaceImage uploads a new image, points the product at it and then deletes
// the previous object.
func (s *productService) ReplaceImage(ctx context.Context, caller *models.Caller, id, filename, contentType string, r io.Reader) (*models.Product, error) {
	if err := s.Authorize(ctx, caller); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, FailedPrecondition("Image storage is not configured")
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var img *models.StoredImage
	err = call(ctx, s.timeout, func(ctx context.Context) (err error) {
		img, err = s.images.Upload(ctx, filename, contentType, r)
		return err
	})
	if err != nil {
		s.logger.Error("uploadImage failed", zap.String("productID", id), zap.Error(err))
		return nil, Internal("Error uploading image", err)
	}

	if err := s.patch(ctx, id, models.ProductPatch{ImageURL: &img.URL, ImagePath: &img.Path}, "replaceImage", "Error updating product"); err != nil {
		s.dropImage(ctx, img.Path)
		return nil, err
	}
	s.dropImage(ctx, existing.ImagePath)

	s.effects.audited(ctx, caller, auditProductImage, "product", id, map[string]interface{}{"path": img.Path})
	return s.load(ctx, id)
}

func (s *productService) Reserve(ctx context.Context, qty map[string]int) (map[string]int64, error) {
	var prices map[string]int64
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		prices, err = s.repo.ReserveStock(ctx, qty)
		return err
	})

	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	s.forget(ctx, ids...)

	switch {
	case err == nil:
		return prices, nil
	case errors.Is(err, db.ErrInsufficientStock):
		return nil, FailedPrecondition("Insufficient stock for one or more items")
	case errors.Is(err, db.ErrNotFound):
		return nil, NotFound("A product in the cart is no longer available")
	}
	s.logger.Error("reserveStock failed", zap.Int("lines", len(qty)), zap.Error(err))
	return nil, Internal("Error reserving stock", err)
}

func (s *productService) dropImage(ctx context.Context, path string) {
	if s.images == nil || path == "" {
		return
	}
	err := call(detached(ctx), s.timeout, func(ctx context.Context) error { return s.images.Delete(ctx, path) })
	if err != nil {
		s.logger.Warn("Failed to delete product image", zap.String("path", path), zap.Error(err))
	}
}

func (s *productService) cached(ctx context.Context, id string) (*models.Product, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, productCacheKeyPrefix+id)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Product cache read failed", zap.String("productID", id), zap.Error(err))
		}
		return nil, false
	}
	cp := cachedProduct{Product: &models.Product{}}
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		s.logger.Warn("Discarding corrupt cached product", zap.String("productID", id), zap.Error(err))
		s.forget(ctx, id)
		return nil, false
	}
	cp.Product.ImagePath = cp.ImagePath
	return cp.Product, true
}

// cachedProduct carries the fields hidden from JSON responses.
type cachedProduct struct {
	*models.Product
	ImagePath string `json:"imagePath,omitempty"`
}

func (s *productService) remember(ctx context.Context, p *models.Product) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(cachedProduct{Product: p, ImagePath: p.ImagePath})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, productCacheKeyPrefix+p.ID, data, s.cacheTTL); err != nil {
		s.logger.Warn("Product cache write failed", zap.String("productID", p.ID), zap.Error(err))
	}
}

func (s *productService) forget(ctx context.Context, ids ...string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productCacheKeyPrefix + id
	}
	if err := s.cache.Delete(detached(ctx), keys...); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.Strings("productIDs", ids), zap.Error(err))
	}
}
