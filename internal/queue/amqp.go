package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contentforge/contentforge/shared/rabbitmq"
)

// pollInterval is how often ReceiveOne re-checks an empty queue while
// waiting out the long-poll window.
const pollInterval = 500 * time.Millisecond

// AMQP implements Client on top of a RabbitMQ work queue with a
// dead-letter retry queue providing the visibility window.
type AMQP struct {
	client      *rabbitmq.Client
	logger      *slog.Logger
	receiveWait time.Duration
}

// NewAMQP wraps an established RabbitMQ client. receiveWait bounds how
// long ReceiveOne polls before reporting an empty queue.
func NewAMQP(client *rabbitmq.Client, receiveWait time.Duration, logger *slog.Logger) *AMQP {
	return &AMQP{
		client:      client,
		logger:      logger,
		receiveWait: receiveWait,
	}
}

// Enqueue publishes the message body onto the work queue.
func (q *AMQP) Enqueue(ctx context.Context, body []byte) error {
	if err := q.client.Publish(ctx, body); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// ReceiveOne polls the work queue until a message arrives, the wait
// window elapses, or ctx is canceled.
func (q *AMQP) ReceiveOne(ctx context.Context) (*Delivery, error) {
	deadline := time.Now().Add(q.receiveWait)

	for {
		body, tag, redelivered, ok, err := q.client.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to receive message: %w", err)
		}
		if ok {
			q.logger.Debug("Message received",
				slog.Uint64("delivery_tag", tag),
				slog.Bool("redelivered", redelivered),
			)
			return &Delivery{Body: body, Tag: tag, Redelivered: redelivered}, nil
		}

		if time.Now().After(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Acknowledge settles the delivery with the broker.
func (q *AMQP) Acknowledge(d *Delivery) error {
	if err := q.client.Ack(d.Tag); err != nil {
		return fmt.Errorf("failed to acknowledge delivery: %w", err)
	}
	return nil
}

// Retain rejects the delivery into the retry queue; the broker routes
// it back onto the work queue after the visibility timeout.
func (q *AMQP) Retain(d *Delivery) error {
	if err := q.client.Reject(d.Tag); err != nil {
		return fmt.Errorf("failed to retain delivery: %w", err)
	}
	return nil
}

// Healthy reports whether the underlying broker connection is live.
func (q *AMQP) Healthy() bool {
	return q.client.IsConnected()
}

// ApproximateDepth reports the ready-message count of the work queue.
func (q *AMQP) ApproximateDepth(_ context.Context) (int, error) {
	depth, err := q.client.Depth()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}
