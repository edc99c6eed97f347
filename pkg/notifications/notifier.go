// Package notifications publishes lifecycle events to the external
// notification dispatcher over Kafka. Publication is fire and forget
// from the caller's point of view: the core never blocks a lifecycle
// operation on delivery and never retries beyond the publisher's own
// bounded backoff.
package notifications

import "context"

// Notifier is the boundary this core publishes through. Implementations
// must be safe for concurrent use.
type Notifier interface {
	Publish(ctx context.Context, msg *Message) error
}

// Noop is a Notifier that discards every message. Used in tests and in
// deployments without a broker configured.
type Noop struct{}

// Publish implements Notifier.
func (Noop) Publish(ctx context.Context, msg *Message) error {
	return nil
}
