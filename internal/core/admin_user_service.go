package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/models"
)

const msgUnauthenticated = "The function must be called while authenticated."

const (
	auditUserCreate         = "USER_CREATE"
	auditUserUpdate         = "USER_UPDATE"
	auditUserDelete         = "USER_DELETE"
	auditAdminProfileUpdate = "ADMIN_PROFILE_UPDATE"
)

// AdminDeps groups the collaborators of the admin service.
type AdminDeps struct {
	Identity IdentityProvider
	Users    db.UserRepository
	Admins   db.AdminRepository
	Products db.ProductRepository
	Checker  AdminChecker
	Audit    AuditService
	Events   EventPublisher
}

// adminUserService implements the admin callables. Every operation first
// authenticates and authorizes the caller and mutates nothing otherwise.
//
// The "admin" custom claim is the source of truth. users.isAdmin and the
// admins/{uid} marker are written only here, right after the claim.
type adminUserService struct {
	identity IdentityProvider
	users    db.UserRepository
	admins   db.AdminRepository
	products db.ProductRepository
	checker  AdminChecker
	effects  sideEffects
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAdminUserService creates a new AdminUserService instance.
func NewAdminUserService(deps AdminDeps, timeout time.Duration, logger *zap.Logger) AdminUserService {
	return &adminUserService{
		identity: deps.Identity,
		users:    deps.Users,
		admins:   deps.Admins,
		products: deps.Products,
		checker:  deps.Checker,
		effects:  sideEffects{audit: deps.Audit, events: deps.Events, timeout: timeout, logger: logger},
		timeout:  timeout,
		logger:   logger,
	}
}

// requireAdmin rejects callers that are not signed in or not administrators.
// action completes the sentence "Only admins can ...".
func requireAdmin(ctx context.Context, checker AdminChecker, timeout time.Duration, caller *models.Caller, action string) error {
	if caller == nil || caller.UID == "" {
		return Unauthenticated(msgUnauthenticated)
	}
	var ok bool
	_ = call(ctx, timeout, func(ctx context.Context) error {
		ok = checker.IsAdmin(ctx, caller.UID)
		return nil
	})
	if !ok {
		return PermissionDenied(fmt.Sprintf("Only admins can %s.", action))
	}
	return nil
}

// Authorize reports whether caller may perform action.
func (s *adminUserService) Authorize(ctx context.Context, caller *models.Caller, action string) error {
	return requireAdmin(ctx, s.checker, s.timeout, caller, action)
}

func (s *adminUserService) ListUsers(ctx context.Context, caller *models.Caller, req models.ListUsersRequest) (*models.ListUsersResult, error) {
	if err := requireAdmin(ctx, s.checker, s.timeout, caller, "list users"); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var (
		users []*models.Identity
		next  string
	)
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		users, next, err = s.identity.ListUsers(ctx, req.PageSize, req.PageToken)
		return err
	})
	if err != nil {
		s.logger.Error("listUsers failed", zap.String("caller", caller.UID), zap.Error(err))
		return nil, Internal("Error listing users", err)
	}

	result := &models.ListUsersResult{Users: make([]models.UserSummary, 0, len(users)), NextPageToken: next}
	for _, u := range users {
		result.Users = append(result.Users, models.UserSummary{
			UID:          u.UID,
			Email:        u.Email,
			DisplayName:  u.DisplayName,
			CustomClaims: u.CustomClaims,
		})
	}
	return result, nil
}

// CreateUser creates the identity, sets its admin claim, then writes the profile
// and the admin marker. A failure after the identity exists deletes it again.
func (s *adminUserService) CreateUser(ctx context.Context, caller *models.Caller, req models.CreateUserRequest) (*models.CreateUserResult, error) {
	if err := requireAdmin(ctx, s.checker, s.timeout, caller, "create users"); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var created *models.Identity
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		created, err = s.identity.CreateUser(ctx, req.Email, req.Password, req.DisplayName)
		return err
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return nil, AlreadyExists("A user with this email already exists")
		}
		s.logger.Error("createUser failed", zap.String("email", req.Email), zap.Error(err))
		return nil, Internal("Error creating user", err)
	}
	uid := created.UID
	now := time.Now().UTC()

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"set admin claim", func(ctx context.Context) error {
			return s.identity.SetAdminClaim(ctx, uid, req.IsAdmin)
		}},
		{"create profile", func(ctx context.Context) error {
			return s.users.Create(ctx, &models.UserProfile{
				UID:         uid,
				Email:       req.Email,
				DisplayName: req.DisplayName,
				IsAdmin:     req.IsAdmin,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}},
		{"sync admin marker", func(ctx context.Context) error {
			return s.syncMarker(ctx, uid, req.Email, req.DisplayName, req.IsAdmin)
		}},
	}
	for _, step := range steps {
		if err := call(ctx, s.timeout, step.run); err != nil {
			s.logger.Error("createUser step failed, rolling back",
				zap.String("step", step.name), zap.String("uid", uid), zap.Error(err))
			s.rollbackCreate(ctx, uid)
			return nil, Internal("Error creating user", err)
		}
	}

	isAdmin := req.IsAdmin
	s.effects.audited(ctx, caller, auditUserCreate, "user", uid, map[string]interface{}{"email": req.Email, "isAdmin": isAdmin})
	s.effects.published(ctx, models.UserEvent{
		Type:        models.UserEventCreated,
		UID:         uid,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IsAdmin:     &isAdmin,
		ActorUID:    caller.UID,
		OccurredAt:  now,
	})
	return &models.CreateUserResult{UID: uid}, nil
}

func (s *adminUserService) rollbackCreate(ctx context.Context, uid string) {
	ctx = detached(ctx)
	if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.admins.Delete(ctx, uid) }); err != nil {
		s.logger.Warn("rollback: failed to delete admin marker", zap.String("uid", uid), zap.Error(err))
	}
	if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.users.Delete(ctx, uid) }); err != nil {
		s.logger.Warn("rollback: failed to delete profile", zap.String("uid", uid), zap.Error(err))
	}
	err := call(ctx, s.timeout, func(ctx context.Context) error { return s.identity.DeleteUser(ctx, uid) })
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		s.logger.Error("rollback: orphan identity left behind", zap.String("uid", uid), zap.Error(err))
	}
}

// UpdateUser changes the identity record and its admin claim first, then the
// profile mirror, then the admin marker. When the profile write fails the
// identity is restored to its previous state.
func (s *adminUserService) UpdateUser(ctx context.Context, caller *models.Caller, req models.UpdateUserRequest) (*models.MessageResult, error) {
	if err := requireAdmin(ctx, s.checker, s.timeout, caller, "update users"); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	uid := req.UID

	var prev *models.Identity
	err := call(ctx, s.timeout, func(ctx context.Context) (err error) {
		prev, err = s.identity.GetUser(ctx, uid)
		return err
	})
	if err != nil {
		return nil, s.updateFailure(uid, "load identity", err)
	}

	upd := models.IdentityUpdate{Email: req.Email, DisplayName: req.DisplayName, PhotoURL: req.PhotoURL}
	if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.identity.UpdateUser(ctx, uid, upd) }); err != nil {
		return nil, s.updateFailure(uid, "update identity", err)
	}
	if req.IsAdmin != nil {
		if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.identity.SetAdminClaim(ctx, uid, *req.IsAdmin) }); err != nil {
			s.restoreIdentity(ctx, prev, upd, nil)
			return nil, s.updateFailure(uid, "set admin claim", err)
		}
	}

	patch := models.UserPatch{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		IsAdmin:     req.IsAdmin,
	}
	if err := call(ctx, s.timeout, func(ctx context.Context) error {
		return s.users.Update(ctx, uid, patch, req.ExpectedUpdateTime)
	}); err != nil {
		s.restoreIdentity(ctx, prev, upd, req.IsAdmin)
		return nil, s.updateFailure(uid, "update profile", err)
	}

	if req.IsAdmin != nil {
		email, name := prev.Email, prev.DisplayName
		if req.Email != nil {
			email = *req.Email
		}
		if req.DisplayName != nil {
			name = *req.DisplayName
		}
		if err := call(ctx, s.timeout, func(ctx context.Context) error {
			return s.syncMarker(ctx, uid, email, name, *req.IsAdmin)
		}); err != nil {
			s.restoreIdentity(ctx, prev, upd, req.IsAdmin)
			s.restoreProfile(ctx, prev, patch)
			return nil, s.updateFailure(uid, "sync admin marker", err)
		}
	}

	s.effects.audited(ctx, caller, auditUserUpdate, "user", uid, patchDetails(req))
	s.effects.published(ctx, models.UserEvent{
		Type:       models.UserEventUpdated,
		UID:        uid,
		Email:      deref(req.Email),
		IsAdmin:    req.IsAdmin,
		ActorUID:   caller.UID,
		OccurredAt: time.Now().UTC(),
	})
	return &models.MessageResult{Message: "User updated successfully"}, nil
}

func (s *adminUserService) updateFailure(uid, step string, err error) error {
	switch {
	case errors.Is(err, identity.ErrUserNotFound), errors.Is(err, db.ErrNotFound):
		return NotFound("User not found")
	case errors.Is(err, identity.ErrEmailExists):
		return AlreadyExists("A user with this email already exists")
	case errors.Is(err, db.ErrConflict):
		return FailedPrecondition("User was modified by someone else, reload and try again")
	}
	s.logger.Error("updateUser failed", zap.String("step", step), zap.String("uid", uid), zap.Error(err))
	return Internal("Error updating user", err)
}

// restoreIdentity puts back the identity fields in upd and, if claimChanged is
// set, the previous admin claim.
func (s *adminUserService) restoreIdentity(ctx context.Context, prev *models.Identity, upd models.IdentityUpdate, claimChanged *bool) {
	ctx = detached(ctx)
	var back models.IdentityUpdate
	if upd.Email != nil {
		back.Email = &prev.Email
	}
	if upd.DisplayName != nil {
		back.DisplayName = &prev.DisplayName
	}
	if upd.PhotoURL != nil {
		back.PhotoURL = &prev.PhotoURL
	}
	if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.identity.UpdateUser(ctx, prev.UID, back) }); err != nil {
		s.logger.Error("rollback: failed to restore identity fields", zap.String("uid", prev.UID), zap.Error(err))
	}
	if claimChanged != nil {
		wasAdmin := prev.AdminClaim()
		if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.identity.SetAdminClaim(ctx, prev.UID, wasAdmin) }); err != nil {
			s.logger.Error("rollback: admin claim and profile diverge", zap.String("uid", prev.UID), zap.Bool("claim", *claimChanged), zap.Error(err))
		}
	}
}

// restoreProfile reverts the fields set in patch. The profile mirrors the
// identity, so the identity's previous values are written back.
func (s *adminUserService) restoreProfile(ctx context.Context, prev *models.Identity, patch models.UserPatch) {
	ctx = detached(ctx)
	var back models.UserPatch
	if patch.Email != nil {
		back.Email = &prev.Email
	}
	if patch.DisplayName != nil {
		back.DisplayName = &prev.DisplayName
	}
	if patch.PhotoURL != nil {
		back.PhotoURL = &prev.PhotoURL
	}
	if patch.IsAdmin != nil {
		wasAdmin := prev.AdminClaim()
		back.IsAdmin = &wasAdmin
	}
	if back.Empty() {
		return
	}
	if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.users.Update(ctx, prev.UID, back, nil) }); err != nil {
		s.logger.Error("rollback: profile and admin claim diverge", zap.String("uid", prev.UID), zap.Error(err))
	}
}

// DeleteUser removes the identity, the profile and the admin marker. A missing
// identity is tolerated so a retry can finish an interrupted delete.
func (s *adminUserService) DeleteUser(ctx context.Context, caller *models.Caller, req models.DeleteUserRequest) (*models.MessageResult, error) {
	if err := requireAdmin(ctx, s.checker, s.timeout, caller, "delete users"); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	uid := req.UID

	err := call(ctx, s.timeout, func(ctx context.Context) error { return s.identity.DeleteUser(ctx, uid) })
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		s.logger.Error("deleteUser failed", zap.String("step", "delete identity"), zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error deleting user", err)
	}

	if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.users.Delete(ctx, uid) }); err != nil {
		s.logger.Error("deleteUser: orphan profile left behind", zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error deleting user", err)
	}
	if err := call(ctx, s.timeout, func(ctx context.Context) error { return s.admins.Delete(ctx, uid) }); err != nil {
		s.logger.Error("deleteUser: orphan admin marker left behind", zap.String("uid", uid), zap.Error(err))
		return nil, Internal("Error deleting user", err)
	}

	s.effects.audited(ctx, caller, auditUserDelete, "user", uid, nil)
	s.effects.published(ctx, models.UserEvent{
		Type:       models.UserEventDeleted,
		UID:        uid,
		ActorUID:   caller.UID,
		OccurredAt: time.Now().UTC(),
	})
	return &models.MessageResult{Message: "User deleted successfully"}, nil
}

// UpdateAdminProfile updates the caller's own admin marker, creating it when
// the caller is an admin by claim but has no marker yet.
func (s *adminUserService) UpdateAdminProfile(ctx context.Context, caller *models.Caller, req models.UpdateAdminProfileRequest) (*models.AdminMarker, error) {
	if err := requireAdmin(ctx, s.checker, s.timeout, caller, "update their admin profile"); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	err := call(ctx, s.timeout, func(ctx context.Context) error {
		err := s.admins.UpdateProfile(ctx, caller.UID, req.Name, req.Email)
		if errors.Is(err, db.ErrNotFound) {
			return s.admins.Put(ctx, &models.AdminMarker{
				UID:       caller.UID,
				Email:     req.Email,
				Name:      req.Name,
				CreatedAt: time.Now().UTC(),
			})
		}
		return err
	})
	if err != nil {
		s.logger.Error("updateAdminProfile failed", zap.String("uid", caller.UID), zap.Error(err))
		return nil, Internal("Error updating admin profile", err)
	}

	var marker *models.AdminMarker
	err = call(ctx, s.timeout, func(ctx context.Context) (err error) {
		marker, err = s.admins.Get(ctx, caller.UID)
		return err
	})
	if err != nil {
		s.logger.Error("updateAdminProfile reload failed", zap.String("uid", caller.UID), zap.Error(err))
		return nil, Internal("Error updating admin profile", err)
	}

	s.effects.audited(ctx, caller, auditAdminProfileUpdate, "admin", caller.UID, map[string]interface{}{"name": req.Name, "email": req.Email})
	return marker, nil
}

// Analytics counts users and products concurrently.
func (s *adminUserService) Analytics(ctx context.Context, caller *models.Caller) (*models.Analytics, error) {
	if err := requireAdmin(ctx, s.checker, s.timeout, caller, "view analytics"); err != nil {
		return nil, err
	}

	var out models.Analytics
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return call(ctx, s.timeout, func(ctx context.Context) (err error) {
			out.TotalUsers, err = s.users.Count(ctx)
			return err
		})
	})
	eg.Go(func() error {
		return call(ctx, s.timeout, func(ctx context.Context) (err error) {
			out.TotalProducts, err = s.products.Count(ctx)
			return err
		})
	})
	if err := eg.Wait(); err != nil {
		s.logger.Error("analytics failed", zap.Error(err))
		return nil, Internal("Error fetching analytics", err)
	}
	return &out, nil
}

// syncMarker keeps admins/{uid} in lockstep with the admin claim.
func (s *adminUserService) syncMarker(ctx context.Context, uid, email, name string, admin bool) error {
	if admin {
		return s.admins.Put(ctx, &models.AdminMarker{UID: uid, Email: email, Name: name, CreatedAt: time.Now().UTC()})
	}
	return s.admins.Delete(ctx, uid)
}

func patchDetails(req models.UpdateUserRequest) map[string]interface{} {
	d := map[string]interface{}{}
	if req.Email != nil {
		d["email"] = *req.Email
	}
	if req.DisplayName != nil {
		d["displayName"] = *req.DisplayName
	}
	if req.PhotoURL != nil {
		d["photoURL"] = *req.PhotoURL
	}
	if req.IsAdmin != nil {
		d["isAdmin"] = *req.IsAdmin
	}
	return d
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
