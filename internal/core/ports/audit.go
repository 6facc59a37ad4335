package ports

import (
	"context"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
)

type ValidationAuditRepository interface {
	Insert(ctx context.Context, entry domain.ValidationAudit) error
	List(ctx context.Context, filter domain.ValidationAuditFilter) ([]domain.ValidationAudit, error)
}
