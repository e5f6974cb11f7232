package messagequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	// retryHeader counts how many times a delivery has been republished.
	retryHeader = "x-retry-count"
	// maxDeliveryAttempts bounds handler runs per message before it is
	// rejected without requeue, which dead-letters it when the queue has a
	// dead-letter exchange and drops it otherwise.
	maxDeliveryAttempts = 5
	retryBaseDelay      = time.Second
	retryMaxDelay       = 30 * time.Second
)

// RabbitMQService implements the MessageQueue interface using RabbitMQ.
type RabbitMQService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger

	mu       sync.Mutex // amqp.Channel is not safe for concurrent publishing
	declared map[string]bool
}

// NewRabbitMQServiceConfig contains options for creating a new RabbitMQService.
type NewRabbitMQServiceConfig struct {
	URL string
}

// NewRabbitMQService creates a new instance of RabbitMQService.
func NewRabbitMQService(cfg NewRabbitMQServiceConfig, logger *zap.Logger) (*RabbitMQService, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	logger.Info("Connected to RabbitMQ")
	return &RabbitMQService{conn: conn, channel: ch, logger: logger, declared: map[string]bool{}}, nil
}

func (s *RabbitMQService) declare(queueName string) error {
	if s.declared[queueName] {
		return nil
	}
	_, err := s.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	s.declared[queueName] = true
	return nil
}

// Publish sends a persistent JSON message to a durable queue.
func (s *RabbitMQService) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.publish(queueName, body, nil)
}

func (s *RabbitMQService) publish(queueName string, body []byte, headers amqp.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.declare(queueName); err != nil {
		return err
	}
	err := s.channel.Publish(
		"",        // exchange
		queueName, // routing key (queue name)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			Headers:      headers,
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Consume reads the queue with manual acks. A failed delivery is republished
// to the back of the queue after an exponential backoff, carrying its attempt
// count in a header. After maxDeliveryAttempts it is rejected without requeue.
func (s *RabbitMQService) Consume(ctx context.Context, queueName string, handler Handler) error {
	s.mu.Lock()
	err := s.declare(queueName)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	msgs, err := s.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer for queue %s: %w", queueName, err)
	}

	s.logger.Info("Waiting for messages", zap.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := handler(ctx, d.Body); err != nil {
				if !s.retry(ctx, queueName, d, err) {
					return nil
				}
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// retry settles a failed delivery. It returns false when ctx ended while
// waiting, in which case the delivery is requeued as is.
func (s *RabbitMQService) retry(ctx context.Context, queueName string, d amqp.Delivery, cause error) bool {
	attempt := retryCount(d.Headers) + 1
	if attempt >= maxDeliveryAttempts {
		s.logger.Error("Handler failed, giving up on message",
			zap.String("queue", queueName), zap.Int("attempts", attempt), zap.Error(cause))
		_ = d.Nack(false, false)
		return true
	}

	delay := retryDelay(attempt)
	s.logger.Warn("Handler failed, retrying",
		zap.String("queue", queueName), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(cause))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return false
	case <-t.C:
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(attempt)
	if err := s.publish(queueName, d.Body, headers); err != nil {
		s.logger.Error("Failed to republish message, requeueing", zap.String("queue", queueName), zap.Error(err))
		_ = d.Nack(false, true)
		return true
	}
	_ = d.Ack(false)
	return true
}

// retryCount reads the attempt header. AMQP tables decode integers into
// several widths depending on the publisher.
func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	}
	return 0
}

// retryDelay is the wait before the given attempt: base * 2^(attempt-1), capped.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := retryBaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

// Close closes the RabbitMQ channel and connection.
func (s *RabbitMQService) Close() error {
	var lastErr error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			lastErr = err
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
