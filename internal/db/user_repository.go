package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/example/storefront/internal/models"
)

// firestoreUserRepository implements the UserRepository interface using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

// Create adds a new profile document. The UID is the document ID.
func (r *firestoreUserRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	if profile.UID == "" {
		return errors.New("user ID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(profile.UID).Create(ctx, profile)
	if err != nil {
		return fmt.Errorf("failed to create user with ID '%s': %w", profile.UID, mapError(err))
	}
	return nil
}

// GetByID retrieves a profile document by UID.
func (r *firestoreUserRepository) GetByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	if uid == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", uid, mapError(err))
	}

	var profile models.UserProfile
	if err := docSnap.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", uid, err)
	}
	profile.UID = docSnap.Ref.ID
	profile.UpdateTime = docSnap.UpdateTime
	return &profile, nil
}

// Update patches an existing profile document. The document must exist.
func (r *firestoreUserRepository) Update(ctx context.Context, uid string, patch models.UserPatch, expected *time.Time) error {
	if uid == "" {
		return errors.New("user ID cannot be empty for Update operation")
	}

	updates := []firestore.Update{{Path: "updatedAt", Value: time.Now().UTC()}}
	if patch.Email != nil {
		updates = append(updates, firestore.Update{Path: "email", Value: *patch.Email})
	}
	if patch.DisplayName != nil {
		updates = append(updates, firestore.Update{Path: "displayName", Value: *patch.DisplayName})
	}
	if patch.PhotoURL != nil {
		updates = append(updates, firestore.Update{Path: "photoURL", Value: *patch.PhotoURL})
	}
	if patch.IsAdmin != nil {
		updates = append(updates, firestore.Update{Path: "isAdmin", Value: *patch.IsAdmin})
	}
	if patch.LastLoginAt != nil {
		updates = append(updates, firestore.Update{Path: "lastLoginAt", Value: *patch.LastLoginAt})
	}

	// Update fails with NotFound on a missing document; LastUpdateTime adds the
	// optimistic concurrency check on top of that.
	var preconds []firestore.Precondition
	if expected != nil {
		preconds = append(preconds, firestore.LastUpdateTime(*expected))
	}

	_, err := r.client.Collection(usersCollection).Doc(uid).Update(ctx, updates, preconds...)
	if err != nil {
		return fmt.Errorf("failed to update user with ID '%s': %w", uid, mapError(err))
	}
	return nil
}

// Delete removes a profile document. Deleting a missing document succeeds.
func (r *firestoreUserRepository) Delete(ctx context.Context, uid string) error {
	if uid == "" {
		return errors.New("user ID cannot be empty for Delete operation")
	}
	if _, err := r.client.Collection(usersCollection).Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete user with ID '%s': %w", uid, mapError(err))
	}
	return nil
}

func (r *firestoreUserRepository) Count(ctx context.Context) (int64, error) {
	n, err := countDocuments(ctx, r.client.Collection(usersCollection).Query)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
