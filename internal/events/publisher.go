// Package events publishes and decodes user lifecycle events on the message queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/pkg/messagequeue"
)

// DefaultQueue is the queue user events go to when none is configured.
const DefaultQueue = "user-events"

// Publisher sends UserEvents as JSON to one queue.
type Publisher struct {
	mq    messagequeue.MessageQueue
	queue string
}

// NewPublisher creates a Publisher writing to queue.
func NewPublisher(mq messagequeue.MessageQueue, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{mq: mq, queue: queue}
}

func (p *Publisher) PublishUserEvent(ctx context.Context, evt models.UserEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}
	return p.mq.Publish(ctx, p.queue, body)
}

// Decode parses a message body produced by Publisher.
func Decode(body []byte) (models.UserEvent, error) {
	var evt models.UserEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return evt, fmt.Errorf("malformed user event: %w", err)
	}
	if evt.Type == "" || evt.UID == "" {
		return evt, fmt.Errorf("user event missing type or uid")
	}
	return evt, nil
}
