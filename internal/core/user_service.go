package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/models"
)

// userService implements the UserService interface.
type userService struct {
	identity IdentityProvider
	users    db.UserRepository
	admins   db.AdminRepository
	timeout  time.Duration
	logger   *zap.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(identity IdentityProvider, users db.UserRepository, admins db.AdminRepository, timeout time.Duration, logger *zap.Logger) UserService {
	return &userService{
		identity: identity,
		users:    users,
		admins:   admins,
		timeout:  timeout,
		logger:   logger,
	}
}

// SyncProfile creates the caller's profile on first login or refreshes it on
// later ones. isAdmin and the admin marker are re-mirrored from the admin claim.
func (s *userService) SyncProfile(ctx context.Context, caller *models.Caller) (*models.UserProfile, error) {
	if caller == nil || caller.UID == "" {
		return nil, Unauthenticated(msgUnauthenticated)
	}
	uid := caller.UID

	var id *models.Identity
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		id, err = s.identity.GetUser(ctx, uid)
		return err
	})
	if err != nil {
		s.logger.Error("syncProfile: identity lookup failed", zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error syncing profile", err)
	}
	isAdmin := id.AdminClaim()
	now := time.Now().UTC()

	err = call(ctx, s.timeout, func(ctx context.Context) error {
		_, err := s.users.GetByID(ctx, uid)
		if errors.Is(err, db.ErrNotFound) {
			err = s.users.Create(ctx, &models.UserProfile{
				UID:         uid,
				Email:       id.Email,
				DisplayName: id.DisplayName,
				PhotoURL:    id.PhotoURL,
				IsAdmin:     isAdmin,
				CreatedAt:   now,
				UpdatedAt:   now,
				LastLoginAt: &now,
			})
			if !errors.Is(err, db.ErrAlreadyExists) {
				return err
			}
			// Lost a race with a concurrent first login; fall through to update.
		} else if err != nil {
			return err
		}
		return s.users.Update(ctx, uid, models.UserPatch{
			Email:       nonEmpty(id.Email),
			DisplayName: nonEmpty(id.DisplayName),
			PhotoURL:    nonEmpty(id.PhotoURL),
			IsAdmin:     &isAdmin,
			LastLoginAt: &now,
		}, nil)
	})
	if err != nil {
		s.logger.Error("syncProfile: profile write failed", zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error syncing profile", err)
	}

	err = call(ctx, s.timeout, func(ctx context.Context) error {
		if isAdmin {
			return s.admins.Put(ctx, &models.AdminMarker{UID: uid, Email: id.Email, Name: id.DisplayName, CreatedAt: now})
		}
		return s.admins.Delete(ctx, uid)
	})
	if err != nil {
		s.logger.Warn("syncProfile: admin marker out of date", zap.String("uid", uid), zap.Bool("isAdmin", isAdmin), zap.Error(err))
	}

	return s.GetProfile(ctx, uid)
}

// GetProfile returns the profile document of uid.
func (s *userService) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		profile, err = s.users.GetByID(ctx, uid)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, NotFound("User profile not found")
		}
		s.logger.Error("getProfile failed", zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error fetching profile", err)
	}
	return profile, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
