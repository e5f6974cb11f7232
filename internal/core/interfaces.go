package core

import (
	"context"
	"io"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/models"
)

// IdentityProvider is the subset of the authentication backend the services use.
type IdentityProvider interface {
	GetUser(ctx context.Context, uid string) (*models.Identity, error)
	CreateUser(ctx context.Context, email, password, displayName string) (*models.Identity, error)
	UpdateUser(ctx context.Context, uid string, upd models.IdentityUpdate) error
	DeleteUser(ctx context.Context, uid string) error
	// SetAdminClaim sets the "admin" custom claim, keeping other claims intact.
	SetAdminClaim(ctx context.Context, uid string, admin bool) error
	ListUsers(ctx context.Context, pageSize int, pageToken string) ([]*models.Identity, string, error)
}

// AdminChecker decides whether uid is an administrator. It never fails: any
// lookup error yields false.
type AdminChecker interface {
	IsAdmin(ctx context.Context, uid string) bool
}

// ImageStore stores product images.
type ImageStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (*models.StoredImage, error)
	Delete(ctx context.Context, path string) error
}

// EventPublisher publishes user lifecycle events.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, evt models.UserEvent) error
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
}

// AdminUserService implements the admin callables.
type AdminUserService interface {
	ListUsers(ctx context.Context, caller *models.Caller, req models.ListUsersRequest) (*models.ListUsersResult, error)
	CreateUser(ctx context.Context, caller *models.Caller, req models.CreateUserRequest) (*models.CreateUserResult, error)
	UpdateUser(ctx context.Context, caller *models.Caller, req models.UpdateUserRequest) (*models.MessageResult, error)
	DeleteUser(ctx context.Context, caller *models.Caller, req models.DeleteUserRequest) (*models.MessageResult, error)
	UpdateAdminProfile(ctx context.Context, caller *models.Caller, req models.UpdateAdminProfileRequest) (*models.AdminMarker, error)
	Analytics(ctx context.Context, caller *models.Caller) (*models.Analytics, error)
	// Authorize runs the admin check of an operation on its own. action
	// completes "Only admins can ...". Transports call it before reporting a
	// malformed payload so that only admins learn about request shapes.
	Authorize(ctx context.Context, caller *models.Caller, action string) error
}

// UserService handles the caller's own profile.
type UserService interface {
	SyncProfile(ctx context.Context, caller *models.Caller) (*models.UserProfile, error)
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
}

// ProductService handles the catalog. Mutations require an admin caller.
type ProductService interface {
	List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, caller *models.Caller, req models.CreateProductRequest) (*models.Product, error)
	Update(ctx context.Context, caller *models.Caller, id string, req models.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, caller *models.Caller, id string) error
	ReplaceImage(ctx context.Context, caller *models.Caller, id, filename, contentType string, r io.Reader) (*models.Product, error)
	// Reserve decrements stock for every product in qty, all or nothing, and
	// returns the current unit price of each reserved product.
	Reserve(ctx context.Context, qty map[string]int) (map[string]int64, error)
	// Authorize runs the admin check shared by the catalog mutations.
	Authorize(ctx context.Context, caller *models.Caller) error
}

// CartService handles the caller's cart.
type CartService interface {
	Get(ctx context.Context, uid string) (*cart.Cart, error)
	Add(ctx context.Context, uid, productID string) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, uid, productID string, quantity int) (*cart.Cart, error)
	Remove(ctx context.Context, uid, productID string) (*cart.Cart, error)
	Checkout(ctx context.Context, uid string) (*models.CheckoutSummary, error)
}
