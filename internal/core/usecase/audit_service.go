package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
	"github.com/atvirokodosprendimai/credschema/internal/core/ports"
)

// AuditService exposes the validation trail for inspection.
type AuditService struct {
	repo ports.ValidationAuditRepository
}

func NewAuditService(repo ports.ValidationAuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) List(ctx context.Context, filter domain.ValidationAuditFilter) ([]domain.ValidationAudit, error) {
	if filter.SchemaID != "" {
		if err := domain.ValidateSchemaID(filter.SchemaID); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.repo.List(ctx, filter)
}
