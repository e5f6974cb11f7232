package models

import "time"

// Product is a catalog document in the "products" collection.
// Price is stored in kobo; conversion to naira happens only at display time.
type Product struct {
	ID          string    `json:"id" firestore:"-"`
	Name        string    `json:"name" firestore:"name"`
	Description string    `json:"description" firestore:"description"`
	Price       int64     `json:"price" firestore:"price"`
	Category    string    `json:"category" firestore:"category"`
	Stock       int       `json:"stock" firestore:"stock"`
	Featured    bool      `json:"featured" firestore:"featured"`
	ImageURL    string    `json:"imageUrl" firestore:"imageUrl"`
	ImagePath   string    `json:"-" firestore:"imagePath,omitempty"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// ProductPatch lists the product fields to change. Nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *int64
	Category    *string
	Stock       *int
	Featured    *bool
	ImageURL    *string
	ImagePath   *string
}

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Category string
	Featured *bool
	Limit    int
	Cursor   string // ID of the last product of the previous page
}

// ProductPage is one page of a catalog listing.
type ProductPage struct {
	Products   []*Product `json:"products"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// StoredImage describes an object written to the storage bucket.
type StoredImage struct {
	Path string
	URL  string
}

// Analytics is the admin dashboard summary.
type Analytics struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalProducts int64 `json:"totalProducts"`
}

// CheckoutLine is one reserved cart line.
type CheckoutLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
}

// CheckoutSummary is returned by the checkout stub. Amounts are kobo.
type CheckoutSummary struct {
	Items          []CheckoutLine `json:"items"`
	TotalItems     int            `json:"totalItems"`
	TotalPrice     int64          `json:"totalPrice"`
	TotalFormatted string         `json:"totalFormatted"`
	Currency       string         `json:"currency"`
}
