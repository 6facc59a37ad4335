package events

import (
	"context"
	"log"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
)

// LogPublisher is the default sink when no webhook is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	log.Printf("outbox publish topic=%s event_id=%s event_type=%s tenant=%s schema=%s", topic, event.EventID, event.EventType, event.TenantID, event.SchemaID)
	return nil
}
