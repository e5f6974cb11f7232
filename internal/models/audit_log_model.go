package models

import "time"

// AuditLog represents an audit trail event.
type AuditLog struct {
	ID         string                 `json:"id" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	UserID     string                 `json:"userId" firestore:"userId"` // who performed the action
	Action     string                 `json:"action" firestore:"action"` // e.g. "USER_CREATE", "PRODUCT_DELETE"
	TargetType string                 `json:"targetType,omitempty" firestore:"targetType,omitempty"`
	TargetID   string                 `json:"targetId,omitempty" firestore:"targetId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}

// UserEvent is published to the message queue after an admin user mutation.
type UserEvent struct {
	Type        string    `json:"type"` // "user.created", "user.updated", "user.deleted"
	UID         string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	IsAdmin     *bool     `json:"isAdmin,omitempty"`
	ActorUID    string    `json:"actorUid"`
	OccurredAt  time.Time `json:"occurredAt"`
}

const (
	UserEventCreated = "user.created"
	UserEventUpdated = "user.updated"
	UserEventDeleted = "user.deleted"
)
