package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/db"
)

// Admin sources accepted by NewAdminChecker.
const (
	AdminSourceClaim  = "claim"
	AdminSourceMarker = "marker"
)

// ClaimChecker reads the "admin" custom claim from the identity provider.
// This is the source of truth for admin status.
type ClaimChecker struct {
	identity IdentityProvider
	logger   *zap.Logger
}

func NewClaimChecker(identity IdentityProvider, logger *zap.Logger) *ClaimChecker {
	return &ClaimChecker{identity: identity, logger: logger}
}

func (c *ClaimChecker) IsAdmin(ctx context.Context, uid string) bool {
	if uid == "" {
		return false
	}
	id, err := c.identity.GetUser(ctx, uid)
	if err != nil {
		c.logger.Warn("Admin claim lookup failed, denying", zap.String("uid", uid), zap.Error(err))
		return false
	}
	return id.AdminClaim()
}

// MarkerChecker treats the existence of admins/{uid} as admin status. Markers
// are written by the same code paths that write the claim.
type MarkerChecker struct {
	admins db.AdminRepository
	logger *zap.Logger
}

func NewMarkerChecker(admins db.AdminRepository, logger *zap.Logger) *MarkerChecker {
	return &MarkerChecker{admins: admins, logger: logger}
}

func (c *MarkerChecker) IsAdmin(ctx context.Context, uid string) bool {
	if uid == "" {
		return false
	}
	ok, err := c.admins.Exists(ctx, uid)
	if err != nil {
		c.logger.Warn("Admin marker lookup failed, denying", zap.String("uid", uid), zap.Error(err))
		return false
	}
	return ok
}

// NewAdminChecker returns the checker selected by source.
func NewAdminChecker(source string, identity IdentityProvider, admins db.AdminRepository, logger *zap.Logger) (AdminChecker, error) {
	switch strings.ToLower(source) {
	case "", AdminSourceClaim:
		return NewClaimChecker(identity, logger), nil
	case AdminSourceMarker:
		return NewMarkerChecker(admins, logger), nil
	}
	return nil, fmt.Errorf("unknown admin source %q", source)
}
