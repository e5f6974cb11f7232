package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/example/storefront/internal/models"
)

type firestoreAuditRepository struct {
	client *firestore.Client
}

// NewFirestoreAuditRepository creates an AuditRepository writing to "auditLogs".
func NewFirestoreAuditRepository(client *firestore.Client) AuditRepository {
	return &firestoreAuditRepository{client: client}
}

// Create stores logEntry under a generated ID. Timestamp is set server-side.
func (r *firestoreAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	ref := r.client.Collection(auditCollection).NewDoc()
	if _, err := ref.Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log '%s': %w", logEntry.Action, err)
	}
	return nil
}
