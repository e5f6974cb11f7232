package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/example/storefront/internal/models"
)

// firestoreAdminRepository stores admin markers in the "admins" collection.
type firestoreAdminRepository struct {
	client *firestore.Client
}

// NewFirestoreAdminRepository creates a new instance of firestoreAdminRepository.
func NewFirestoreAdminRepository(client *firestore.Client) AdminRepository {
	return &firestoreAdminRepository{client: client}
}

func (r *firestoreAdminRepository) Exists(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, nil
	}
	_, err := r.client.Collection(adminsCollection).Doc(uid).Get(ctx)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get admin marker '%s': %w", uid, err)
	}
	return true, nil
}

func (r *firestoreAdminRepository) Get(ctx context.Context, uid string) (*models.AdminMarker, error) {
	snap, err := r.client.Collection(adminsCollection).Doc(uid).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin marker '%s': %w", uid, mapError(err))
	}
	var m models.AdminMarker
	if err := snap.DataTo(&m); err != nil {
		return nil, fmt.Errorf("failed to decode admin marker '%s': %w", uid, err)
	}
	m.UID = snap.Ref.ID
	return &m, nil
}

func (r *firestoreAdminRepository) Put(ctx context.Context, marker *models.AdminMarker) error {
	if marker.UID == "" {
		return errors.New("admin marker UID cannot be empty")
	}
	_, err := r.client.Collection(adminsCollection).Doc(marker.UID).Create(ctx, marker)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("failed to create admin marker '%s': %w", marker.UID, err)
	}
	return nil
}

func (r *firestoreAdminRepository) Delete(ctx context.Context, uid string) error {
	if _, err := r.client.Collection(adminsCollection).Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete admin marker '%s': %w", uid, mapError(err))
	}
	return nil
}

func (r *firestoreAdminRepository) UpdateProfile(ctx context.Context, uid, name, email string) error {
	_, err := r.client.Collection(adminsCollection).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "name", Value: name},
		{Path: "email", Value: email},
	})
	if err != nil {
		return fmt.Errorf("failed to update admin profile '%s': %w", uid, mapError(err))
	}
	return nil
}
