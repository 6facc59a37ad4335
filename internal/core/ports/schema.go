package ports

import (
	"context"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
)

// SchemaRepository persists schema documents per tenant. Upsert and Delete
// enqueue the given change event in the same transaction as the write, so a
// stored change and its outbox notification never diverge.
type SchemaRepository interface {
	Upsert(ctx context.Context, tenantID string, rec domain.SchemaRecord, event domain.EventEnvelope) (domain.SchemaRecord, error)
	Get(ctx context.Context, tenantID, schemaID string) (domain.SchemaRecord, error)
	List(ctx context.Context, tenantID string, filter domain.SchemaListFilter) ([]domain.SchemaRecord, error)
	Delete(ctx context.Context, tenantID, schemaID string, event domain.EventEnvelope) (bool, error)
}
