package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/models"
)

// DefaultDownstreamTimeout bounds every call to the identity provider, the
// document store and object storage when no timeout is configured.
const DefaultDownstreamTimeout = 10 * time.Second

// call runs fn with a context bounded by d.
func call(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		d = DefaultDownstreamTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// detached returns a context that survives cancellation of ctx, for cleanup work
// that must run after the caller has gone away.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// sideEffects performs best-effort audit logging and event publishing. Failures
// are logged and never propagated.
type sideEffects struct {
	audit   AuditService
	events  EventPublisher
	timeout time.Duration
	logger  *zap.Logger
}

func (e sideEffects) audited(ctx context.Context, actor *models.Caller, action, targetType, targetID string, details map[string]interface{}) {
	if e.audit == nil {
		return
	}
	entry := models.AuditLog{
		UserID:     actor.UID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	}
	err := call(detached(ctx), e.timeout, func(ctx context.Context) error {
		return e.audit.CreateAuditLog(ctx, entry)
	})
	if err != nil {
		e.logger.Warn("Failed to write audit log", zap.String("action", action), zap.String("targetID", targetID), zap.Error(err))
	}
}

func (e sideEffects) published(ctx context.Context, evt models.UserEvent) {
	if e.events == nil {
		return
	}
	err := call(detached(ctx), e.timeout, func(ctx context.Context) error {
		return e.events.PublishUserEvent(ctx, evt)
	})
	if err != nil {
		e.logger.Warn("Failed to publish user event", zap.String("type", evt.Type), zap.String("uid", evt.UID), zap.Error(err))
	}
}
