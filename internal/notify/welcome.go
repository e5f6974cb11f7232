// Package notify turns user lifecycle events into e-mail.
package notify

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/events"
	"github.com/example/storefront/internal/models"
)

// Sender delivers one e-mail.
type Sender interface {
	Send(recipient, subject, body string) error
}

// Welcomer sends a welcome e-mail for every user.created event.
type Welcomer struct {
	sender Sender
	logger *zap.Logger
}

// NewWelcomer creates a Welcomer.
func NewWelcomer(sender Sender, logger *zap.Logger) *Welcomer {
	return &Welcomer{sender: sender, logger: logger}
}

// Handle is a messagequeue.Handler. Malformed messages are dropped; a send
// failure is returned so that the delivery is retried.
func (w *Welcomer) Handle(_ context.Context, body []byte) error {
	evt, err := events.Decode(body)
	if err != nil {
		w.logger.Warn("Dropping malformed user event", zap.Error(err))
		return nil
	}
	if evt.Type != models.UserEventCreated {
		return nil
	}
	if evt.Email == "" {
		w.logger.Info("Skipping welcome mail, user has no email", zap.String("uid", evt.UID))
		return nil
	}

	if err := w.sender.Send(evt.Email, "Welcome to the store", welcomeBody(evt)); err != nil {
		return fmt.Errorf("welcome mail to %s: %w", evt.UID, err)
	}
	w.logger.Info("Welcome mail sent", zap.String("uid", evt.UID))
	return nil
}

func welcomeBody(evt models.UserEvent) string {
	name := evt.DisplayName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("<html><body><p>Hi %s,</p><p>Your account has been created. You can now sign in with %s.</p></body></html>",
		html.EscapeString(name), html.EscapeString(evt.Email))
}
