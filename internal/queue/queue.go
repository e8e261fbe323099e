package queue

import (
	"context"
)

// Delivery is one received-but-unsettled message. Tag identifies the
// delivery to the broker for Acknowledge/Retain.
type Delivery struct {
	Body        []byte
	Tag         uint64
	Redelivered bool
}

// Client is the capability abstraction over a durable, at-least-once
// message queue. The same message may be received more than once if it
// is not acknowledged before the visibility window elapses; consumers
// must be idempotent.
type Client interface {
	// Enqueue submits a message body. Failure is a hard error surfaced
	// to the caller.
	Enqueue(ctx context.Context, body []byte) error

	// ReceiveOne blocks cooperatively up to the configured wait and
	// returns at most one delivery, or nil when the queue stayed empty.
	// A transient error is for the caller to retry with backoff, never
	// to treat as "no message available".
	ReceiveOne(ctx context.Context) (*Delivery, error)

	// Acknowledge settles a delivery, removing the message for good.
	Acknowledge(d *Delivery) error

	// Retain gives a delivery back so the queue redelivers it after the
	// visibility timeout.
	Retain(d *Delivery) error

	// ApproximateDepth returns the approximate number of messages
	// waiting on the queue.
	ApproximateDepth(ctx context.Context) (int, error)

	// Healthy reports whether the transport still holds a live
	// connection to the broker.
	Healthy() bool
}
