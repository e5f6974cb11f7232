package models

import "time"

// ListUsersRequest is the payload of the listUsers callable.
type ListUsersRequest struct {
	PageSize  int    `json:"pageSize,omitempty" binding:"omitempty,min=1,max=1000"`
	PageToken string `json:"pageToken,omitempty"`
}

// UserSummary is one entry of the listUsers result.
type UserSummary struct {
	UID          string                 `json:"uid"`
	Email        string                 `json:"email"`
	DisplayName  string                 `json:"displayName,omitempty"`
	CustomClaims map[string]interface{} `json:"customClaims"`
}

// ListUsersResult is the result of the listUsers callable.
type ListUsersResult struct {
	Users         []UserSummary `json:"users"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// CreateUserRequest is the payload of the createUser callable.
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"displayName" binding:"required,min=2"`
	IsAdmin     bool   `json:"isAdmin"`
}

// CreateUserResult is the result of the createUser callable.
type CreateUserResult struct {
	UID string `json:"uid"`
}

// UpdateUserRequest is the payload of the updateUser callable.
// Pointers distinguish "not provided" from zero values.
type UpdateUserRequest struct {
	UID                string     `json:"uid" binding:"required"`
	Email              *string    `json:"email,omitempty" binding:"omitempty,email"`
	DisplayName        *string    `json:"displayName,omitempty" binding:"omitempty,min=2"`
	PhotoURL           *string    `json:"photoURL,omitempty" binding:"omitempty,url"`
	IsAdmin            *bool      `json:"isAdmin,omitempty"`
	ExpectedUpdateTime *time.Time `json:"expectedUpdateTime,omitempty"`
}

// DeleteUserRequest is the payload of the deleteUser callable.
type DeleteUserRequest struct {
	UID string `json:"uid" binding:"required"`
}

// MessageResult is returned by callables that only report success.
type MessageResult struct {
	Message string `json:"message"`
}

// UpdateAdminProfileRequest updates the caller's admin marker document.
type UpdateAdminProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// CreateProductRequest is the body of POST /admin/products. Price is in kobo.
type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Price       int64  `json:"price" binding:"min=0"`
	Category    string `json:"category" binding:"required"`
	Stock       int    `json:"stock" binding:"min=0"`
	Featured    bool   `json:"featured"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// UpdateProductRequest is the body of PUT /admin/products/:id.
type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,min=1"`
	Description *string `json:"description,omitempty" binding:"omitempty,min=1"`
	Price       *int64  `json:"price,omitempty" binding:"omitempty,min=0"`
	Category    *string `json:"category,omitempty" binding:"omitempty,min=1"`
	Stock       *int    `json:"stock,omitempty" binding:"omitempty,min=0"`
	Featured    *bool   `json:"featured,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

// AddCartItemRequest is the body of POST /cart/items.
type AddCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// UpdateCartItemRequest is the body of PUT /cart/items/:productId.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}
