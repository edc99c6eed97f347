package notifications

import (
	"time"

	"github.com/iancoleman/strcase"
)

// EventType classifies a lifecycle notification.
type EventType string

// EventTypeFor derives an event type key from a free-form event name,
// normalized to snake_case.
func EventTypeFor(name string) EventType {
	return EventType(strcase.ToSnake(name))
}

// Canonical lifecycle event keys, derived once from their event names
// so producers and the dispatcher agree on the wire form.
var (
	EventReviewRequested    = EventTypeFor("ReviewRequested")
	EventReviewCompleted    = EventTypeFor("ReviewCompleted")
	EventDocumentEffective  = EventTypeFor("DocumentEffective")
	EventBlockingDependents = EventTypeFor("BlockingDependents")
	EventDocumentObsoleted  = EventTypeFor("DocumentObsoleted")
)

// Message is the envelope published for every lifecycle event. The
// dispatcher consuming these is an external collaborator; this core
// only publishes, fire and forget.
type Message struct {
	// Message metadata.
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Context.
	DocumentID string `json:"document_id,omitempty"`
	FamilyID   string `json:"family_id,omitempty"`
	Version    string `json:"version,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`

	// Notification targets: opaque identity tokens resolved by the
	// external identity provider.
	Recipients []string `json:"recipients,omitempty"`

	// Event payload for dispatcher-side template rendering.
	Context map[string]any `json:"context,omitempty"`

	// Retry tracking, set by consumers.
	RetryCount  int       `json:"retry_count,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastRetryAt time.Time `json:"last_retry_at,omitempty"`
}

// PartitionKey groups related messages onto one partition so all
// notifications about the same document family stay ordered.
func (m *Message) PartitionKey() string {
	if m.FamilyID != "" {
		return "family:" + m.FamilyID
	}
	if m.DocumentID != "" {
		return "doc:" + m.DocumentID
	}
	return m.ID
}
