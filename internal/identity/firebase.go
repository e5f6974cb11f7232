// Package identity adapts the Firebase Auth admin client to the services.
package identity

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"

	"github.com/example/storefront/internal/models"
)

// DefaultPageSize matches the Firebase listUsers default.
const DefaultPageSize = 1000

var (
	ErrUserNotFound = errors.New("identity: user not found")
	ErrEmailExists  = errors.New("identity: email already exists")
)

// VerifiedToken is the result of verifying a bearer ID token.
type VerifiedToken struct {
	UID    string
	Claims map[string]interface{}
}

// Provider implements the identity operations over a Firebase Auth client.
type Provider struct {
	client *auth.Client
}

// NewProvider wraps client.
func NewProvider(client *auth.Client) *Provider {
	return &Provider{client: client}
}

// VerifyIDToken checks a Firebase ID token.
func (p *Provider) VerifyIDToken(ctx context.Context, idToken string) (*VerifiedToken, error) {
	tok, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &VerifiedToken{UID: tok.UID, Claims: tok.Claims}, nil
}

func (p *Provider) GetUser(ctx context.Context, uid string) (*models.Identity, error) {
	u, err := p.client.GetUser(ctx, uid)
	if err != nil {
		return nil, mapError(fmt.Sprintf("get user %q", uid), err)
	}
	return fromRecord(u), nil
}

func (p *Provider) CreateUser(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)
	u, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return nil, mapError("create user", err)
	}
	return fromRecord(u), nil
}

func (p *Provider) UpdateUser(ctx context.Context, uid string, upd models.IdentityUpdate) error {
	if upd.Empty() {
		return nil
	}
	params := &auth.UserToUpdate{}
	if upd.Email != nil {
		params = params.Email(*upd.Email)
	}
	if upd.DisplayName != nil {
		params = params.DisplayName(*upd.DisplayName)
	}
	if upd.PhotoURL != nil {
		params = params.PhotoURL(*upd.PhotoURL)
	}
	if _, err := p.client.UpdateUser(ctx, uid, params); err != nil {
		return mapError(fmt.Sprintf("update user %q", uid), err)
	}
	return nil
}

func (p *Provider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		return mapError(fmt.Sprintf("delete user %q", uid), err)
	}
	return nil
}

// SetAdminClaim rewrites the custom claims with admin set, preserving the rest.
func (p *Provider) SetAdminClaim(ctx context.Context, uid string, admin bool) error {
	u, err := p.client.GetUser(ctx, uid)
	if err != nil {
		return mapError(fmt.Sprintf("get user %q", uid), err)
	}
	claims := make(map[string]interface{}, len(u.CustomClaims)+1)
	for k, v := range u.CustomClaims {
		claims[k] = v
	}
	claims["admin"] = admin
	if err := p.client.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return mapError(fmt.Sprintf("set claims for %q", uid), err)
	}
	return nil
}

// ListUsers returns one page of users and the token of the next page ("" at the end).
func (p *Provider) ListUsers(ctx context.Context, pageSize int, pageToken string) ([]*models.Identity, string, error) {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	pager := iterator.NewPager(p.client.Users(ctx, ""), pageSize, pageToken)

	var records []*auth.ExportedUserRecord
	next, err := pager.NextPage(&records)
	if err != nil {
		return nil, "", fmt.Errorf("list users: %w", err)
	}

	out := make([]*models.Identity, 0, len(records))
	for _, r := range records {
		out = append(out, fromRecord(r.UserRecord))
	}
	return out, next, nil
}

func fromRecord(u *auth.UserRecord) *models.Identity {
	id := &models.Identity{
		Disabled:     u.Disabled,
		CustomClaims: u.CustomClaims,
	}
	if u.UserInfo != nil {
		id.UID = u.UID
		id.Email = u.Email
		id.DisplayName = u.DisplayName
		id.PhotoURL = u.PhotoURL
	}
	return id
}

func mapError(op string, err error) error {
	switch {
	case auth.IsUserNotFound(err):
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	case auth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%s: %w", op, ErrEmailExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}
