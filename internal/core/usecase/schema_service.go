package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
	"github.com/atvirokodosprendimai/credschema/internal/core/ports"
)

// SchemaService owns the registry of credential-form schema documents.
// Parsed documents are cached per tenant/schema_id; Register and Delete
// invalidate the cache entry once their write has committed.
type SchemaService struct {
	repo  ports.SchemaRepository
	cache sync.Map // key: "tenantID/schemaID" → *domain.SchemaDocument
}

func NewSchemaService(repo ports.SchemaRepository) *SchemaService {
	return &SchemaService{repo: repo}
}

// Register parses raw (JSON or YAML), verifies the embedded schema block
// compiles as a JSON Schema document, and upserts the canonical form under
// schemaID. The registry change event is enqueued atomically with the write.
func (s *SchemaService) Register(ctx context.Context, tenantID, schemaID string, raw []byte, actor string) (domain.SchemaRecord, error) {
	doc, err := domain.ParseDocument(raw)
	if err != nil {
		return domain.SchemaRecord{}, err
	}
	if doc.SchemaID != schemaID {
		return domain.SchemaRecord{}, &domain.ErrMalformedSchema{
			Reason: fmt.Sprintf("document schema_id %q does not match %q", doc.SchemaID, schemaID),
		}
	}
	if err := compilable(doc.SchemaJSON); err != nil {
		return domain.SchemaRecord{}, &domain.ErrMalformedSchema{
			Reason: fmt.Sprintf("schema block is not a valid json schema: %v", err),
		}
	}

	canonical, err := doc.CanonicalJSON()
	if err != nil {
		return domain.SchemaRecord{}, fmt.Errorf("canonicalize document: %w", err)
	}

	rec, err := s.repo.Upsert(ctx, tenantID, domain.SchemaRecord{
		SchemaID:   doc.SchemaID,
		Provider:   doc.Provider,
		SchemaType: doc.SchemaType,
		Document:   canonical,
	}, changeEvent(domain.EventSchemaRegistered, tenantID, doc.SchemaID, doc.Provider, doc.SchemaType, actor))
	if err != nil {
		return domain.SchemaRecord{}, err
	}
	// Invalidate after the commit: a concurrent Load during the write can
	// re-cache the previous document, which dropping earlier would miss.
	s.cache.Delete(cacheKey(tenantID, doc.SchemaID))
	return rec, nil
}

func (s *SchemaService) Get(ctx context.Context, tenantID, schemaID string) (domain.SchemaRecord, error) {
	if err := domain.ValidateSchemaID(schemaID); err != nil {
		return domain.SchemaRecord{}, err
	}
	return s.repo.Get(ctx, tenantID, schemaID)
}

func (s *SchemaService) List(ctx context.Context, tenantID string, filter domain.SchemaListFilter) ([]domain.SchemaRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.repo.List(ctx, tenantID, filter)
}

func (s *SchemaService) Delete(ctx context.Context, tenantID, schemaID, actor string) (bool, error) {
	if err := domain.ValidateSchemaID(schemaID); err != nil {
		return false, err
	}
	deleted, err := s.repo.Delete(ctx, tenantID, schemaID,
		changeEvent(domain.EventSchemaDeleted, tenantID, schemaID, "", "", actor))
	if err != nil {
		return false, err
	}
	s.cache.Delete(cacheKey(tenantID, schemaID))
	return deleted, nil
}

// Load returns the parsed form of a stored document, caching it until the
// next Register or Delete for the same schema id.
func (s *SchemaService) Load(ctx context.Context, tenantID, schemaID string) (*domain.SchemaDocument, error) {
	if err := domain.ValidateSchemaID(schemaID); err != nil {
		return nil, err
	}
	key := cacheKey(tenantID, schemaID)
	if cached, ok := s.cache.Load(key); ok {
		return cached.(*domain.SchemaDocument), nil
	}

	rec, err := s.repo.Get(ctx, tenantID, schemaID)
	if err != nil {
		return nil, err
	}
	doc, err := domain.ParseDocument(rec.Document)
	if err != nil {
		return nil, fmt.Errorf("stored schema %s: %w", schemaID, err)
	}
	s.cache.Store(key, doc)
	return doc, nil
}

func cacheKey(tenantID, schemaID string) string {
	return tenantID + "/" + schemaID
}

func changeEvent(eventType, tenantID, schemaID, provider string, schemaType domain.SchemaType, actor string) domain.EventEnvelope {
	return domain.EventEnvelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		TenantID:   tenantID,
		SchemaID:   schemaID,
		Provider:   provider,
		SchemaType: schemaType,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

// compilable returns an error if block is not a valid JSON Schema document.
// Field-level checks do not go through the compiled schema; this only rejects
// structural garbage the loader's own invariants cannot see.
func compilable(block json.RawMessage) error {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(block)); err != nil {
		return err
	}
	_, err := compiler.Compile("schema.json")
	return err
}
