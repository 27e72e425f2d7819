package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseNotFound is returned by Release when the lease is unknown or already expired
var ErrLeaseNotFound = errors.New("lease not found")

// Message one received message and the lease that holds it
type Message struct {
	Body               string    `json:"body"`
	ReceiptToken       string    `json:"receiptToken"`
	VisibilityDeadline time.Time `json:"visibilityDeadline"` // Zero when the provider does not report it
}

// QueueProvider work queue provider interface
// At-least-once delivery with visibility-timeout leases.
// Implementations: Redis, SQS, in-memory.
type QueueProvider interface {
	// Send enqueues one message
	Send(ctx context.Context, body string) error

	// Receive leases up to maxMessages, waiting up to wait for the first one.
	// An empty result with nil error means nothing arrived within wait.
	Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]*Message, error)

	// Delete acknowledges a leased message. Deleting an expired lease is not an error;
	// the message has already been made visible again and will be redelivered.
	Delete(ctx context.Context, receiptToken string) error

	// Close closes queue connection
	Close() error
}

// LeaseReleaser is implemented by queues that can hand a lease back early
type LeaseReleaser interface {
	// Release makes a leased message visible again immediately
	Release(ctx context.Context, receiptToken string) error
}

// QueueStats queue statistics (memory/redis providers)
type QueueStats struct {
	Name         string `json:"name"`
	PendingCount int    `json:"pendingCount"`
	LeasedCount  int    `json:"leasedCount"`
}
