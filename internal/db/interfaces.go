package db

import (
	"context"
	"time"

	"github.com/example/storefront/internal/models"
)

// UserRepository defines the interface for user profile storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, uid string) (*models.UserProfile, error)
	Create(ctx context.Context, profile *models.UserProfile) error
	// Update applies patch to an existing profile. When expected is set the write
	// only succeeds if the document was last written at that instant.
	Update(ctx context.Context, uid string, patch models.UserPatch, expected *time.Time) error
	Delete(ctx context.Context, uid string) error
	Count(ctx context.Context) (int64, error)
}

// AdminRepository defines the interface for admin marker documents.
type AdminRepository interface {
	Exists(ctx context.Context, uid string) (bool, error)
	Get(ctx context.Context, uid string) (*models.AdminMarker, error)
	// Put creates the marker; an existing marker is left as is.
	Put(ctx context.Context, marker *models.AdminMarker) error
	// Delete removes the marker; a missing marker is not an error.
	Delete(ctx context.Context, uid string) error
	UpdateProfile(ctx context.Context, uid, name, email string) error
}

// ProductRepository defines the interface for catalog storage operations.
type ProductRepository interface {
	List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) (string, error) // Returns new product ID
	Update(ctx context.Context, id string, patch models.ProductPatch) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	// ReserveStock decrements stock for every id in qty inside one transaction
	// and returns the unit prices read in that transaction.
	ReserveStock(ctx context.Context, qty map[string]int) (map[string]int64, error)
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}
