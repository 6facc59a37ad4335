package domain

import (
	"encoding/json"
	"time"
)

const TopicSchemaEvents = "schema-events"

const (
	EventSchemaRegistered = "schema.registered"
	EventSchemaDeleted    = "schema.deleted"
)

// EventEnvelope is the wire form of a registry change notification delivered
// through the outbox.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	TenantID   string          `json:"tenant_id"`
	SchemaID   string          `json:"schema_id"`
	Provider   string          `json:"provider,omitempty"`
	SchemaType SchemaType      `json:"schema_type,omitempty"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// OutboxEvent is a persisted, not-yet-delivered envelope. Enqueued in the
// same transaction as the registry change, drained by the dispatcher.
type OutboxEvent struct {
	ID            int64
	EventID       string
	TenantID      string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
