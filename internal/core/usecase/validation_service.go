package usecase

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
	"github.com/atvirokodosprendimai/credschema/internal/core/ports"
)

// ValidationService checks candidate records against registered schemas.
// The generate_id policy lives here: fields with that format are populated
// by the configured generator (UUIDv4 unless overridden) and are therefore
// not the caller's to supply.
type ValidationService struct {
	schemas *SchemaService
	audit   ports.ValidationAuditRepository
	gen     func() string
}

type ValidationOption func(*ValidationService)

// WithIDGenerator replaces the generator used for generate_id fields.
// Passing nil disables generation entirely, which makes generate_id fields
// behave like ordinary user-supplied ones.
func WithIDGenerator(gen func() string) ValidationOption {
	return func(s *ValidationService) {
		s.gen = gen
	}
}

func NewValidationService(schemas *SchemaService, audit ports.ValidationAuditRepository, opts ...ValidationOption) *ValidationService {
	s := &ValidationService{schemas: schemas, audit: audit, gen: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks raw against the schema and returns every violation at
// once. The outcome is appended to the audit trail best-effort; an audit
// write failure never fails the validation call.
func (s *ValidationService) Validate(ctx context.Context, tenantID, schemaID string, raw json.RawMessage, actor string) (domain.ValidationResult, error) {
	doc, err := s.schemas.Load(ctx, tenantID, schemaID)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	record, err := domain.DecodeRecord(raw)
	if err != nil {
		return domain.ValidationResult{}, err
	}

	result := doc.Check(record, domain.CheckOptions{AllowGenerated: s.gen != nil})

	s.recordAudit(ctx, tenantID, schemaID, actor, result)

	return result, nil
}

// Defaults returns the pre-fill values declared by the schema.
func (s *ValidationService) Defaults(ctx context.Context, tenantID, schemaID string) (map[string]any, error) {
	doc, err := s.schemas.Load(ctx, tenantID, schemaID)
	if err != nil {
		return nil, err
	}
	return doc.Defaults(), nil
}

// Fill validates raw and, when it passes, returns the record with every
// absent or empty generate_id field populated. On a failing result the
// record is returned nil so callers cannot forward a half-checked map.
func (s *ValidationService) Fill(ctx context.Context, tenantID, schemaID string, raw json.RawMessage, actor string) (map[string]any, domain.ValidationResult, error) {
	doc, err := s.schemas.Load(ctx, tenantID, schemaID)
	if err != nil {
		return nil, domain.ValidationResult{}, err
	}
	record, err := domain.DecodeRecord(raw)
	if err != nil {
		return nil, domain.ValidationResult{}, err
	}

	result := doc.Check(record, domain.CheckOptions{AllowGenerated: s.gen != nil})

	s.recordAudit(ctx, tenantID, schemaID, actor, result)

	if !result.Valid {
		return nil, result, nil
	}
	return doc.Fill(record, s.gen), result, nil
}

func (s *ValidationService) recordAudit(ctx context.Context, tenantID, schemaID, actor string, result domain.ValidationResult) {
	if s.audit == nil {
		return
	}
	err := s.audit.Insert(ctx, domain.ValidationAudit{
		TenantID:       tenantID,
		SchemaID:       schemaID,
		Actor:          actor,
		Valid:          result.Valid,
		ViolationCount: len(result.Violations),
		At:             time.Now().UTC(),
	})
	if err != nil {
		log.Printf("validation audit insert failed: %v", err)
	}
}
