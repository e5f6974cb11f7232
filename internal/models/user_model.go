package models

import "time"

// UserProfile is the profile document stored in the "users" collection.
// The document ID is the Firebase Auth UID.
type UserProfile struct {
	UID         string     `json:"uid" firestore:"-"`
	Email       string     `json:"email" firestore:"email"`
	DisplayName string     `json:"displayName,omitempty" firestore:"displayName"`
	PhotoURL    string     `json:"photoURL,omitempty" firestore:"photoURL"`
	IsAdmin     bool       `json:"isAdmin" firestore:"isAdmin"` // mirror of the "admin" custom claim
	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" firestore:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" firestore:"lastLoginAt,omitempty"`

	// UpdateTime is the Firestore write time of the snapshot this profile was read from.
	// Callers pass it back as a precondition for conditional updates.
	UpdateTime time.Time `json:"updateTime" firestore:"-"`
}

// UserPatch lists the profile fields to change. Nil fields are left untouched.
type UserPatch struct {
	Email       *string
	DisplayName *string
	PhotoURL    *string
	IsAdmin     *bool
	LastLoginAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.DisplayName == nil && p.PhotoURL == nil && p.IsAdmin == nil && p.LastLoginAt == nil
}

// AdminMarker is a document in the "admins" collection. Its existence marks the
// UID as an administrator.
type AdminMarker struct {
	UID       string    `json:"uid" firestore:"-"`
	Email     string    `json:"email" firestore:"email"`
	Name      string    `json:"name,omitempty" firestore:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// Identity is an identity record owned by the identity provider.
type Identity struct {
	UID          string                 `json:"uid"`
	Email        string                 `json:"email"`
	DisplayName  string                 `json:"displayName,omitempty"`
	PhotoURL     string                 `json:"photoURL,omitempty"`
	Disabled     bool                   `json:"disabled,omitempty"`
	CustomClaims map[string]interface{} `json:"customClaims"`
}

// AdminClaim reports whether the identity carries admin == true.
func (i *Identity) AdminClaim() bool {
	if i == nil || i.CustomClaims == nil {
		return false
	}
	v, ok := i.CustomClaims["admin"].(bool)
	return ok && v
}

// Caller is the verified identity attached to a request by the transport layer.
type Caller struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	Claims      map[string]interface{}
}

// IdentityUpdate lists identity-provider fields to change. Nil fields are left untouched.
type IdentityUpdate struct {
	Email       *string
	DisplayName *string
	PhotoURL    *string
}

// Empty reports whether the update changes nothing.
func (u IdentityUpdate) Empty() bool {
	return u.Email == nil && u.DisplayName == nil && u.PhotoURL == nil
}
