package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionKey(t *testing.T) {
	t.Run("family id wins", func(t *testing.T) {
		msg := &Message{ID: "m1", DocumentID: "d1", FamilyID: "f1"}
		assert.Equal(t, "family:f1", msg.PartitionKey())
	})

	t.Run("document id next", func(t *testing.T) {
		msg := &Message{ID: "m1", DocumentID: "d1"}
		assert.Equal(t, "doc:d1", msg.PartitionKey())
	})

	t.Run("falls back to message id", func(t *testing.T) {
		msg := &Message{ID: "m1"}
		assert.Equal(t, "m1", msg.PartitionKey())
	})
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, EventType("review_requested"), EventTypeFor("ReviewRequested"))
	assert.Equal(t, EventType("blocking_dependents"), EventTypeFor("blocking dependents"))

	// The published event keys are derived through the same
	// normalization; pin the wire form of each.
	assert.Equal(t, EventType("review_requested"), EventReviewRequested)
	assert.Equal(t, EventType("review_completed"), EventReviewCompleted)
	assert.Equal(t, EventType("document_effective"), EventDocumentEffective)
	assert.Equal(t, EventType("blocking_dependents"), EventBlockingDependents)
	assert.Equal(t, EventType("document_obsoleted"), EventDocumentObsoleted)
}

func TestMessageJSON(t *testing.T) {
	msg := &Message{
		ID:         "m1",
		Type:       EventReviewRequested,
		Timestamp:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		DocumentID: "d1",
		FamilyID:   "f1",
		Version:    "01.00",
		Recipients: []string{"reviewer-7"},
		Context:    map[string]any{"title": "Quality Policy"},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg.Type, decoded.Type)
	assert.Equal(t, msg.Recipients, decoded.Recipients)
	assert.Equal(t, "Quality Policy", decoded.Context["title"])

	// Omitted retry fields should not appear on the wire.
	assert.NotContains(t, string(data), "retry_count")
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Publish(context.Background(), &Message{ID: "m1"}))
}
