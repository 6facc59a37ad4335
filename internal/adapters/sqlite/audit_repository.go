package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/credschema/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
)

type validationAuditModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID       string    `gorm:"column:tenant_id;not null"`
	SchemaID       string    `gorm:"column:schema_id;not null"`
	Actor          string    `gorm:"column:actor;not null"`
	Valid          bool      `gorm:"column:valid;not null"`
	ViolationCount int       `gorm:"column:violation_count;not null"`
	At             time.Time `gorm:"column:at;not null"`
}

func (validationAuditModel) TableName() string {
	return "validation_audit"
}

type ValidationAuditRepository struct {
	db *gormsqlite.DB
}

func NewValidationAuditRepository(db *gormsqlite.DB) *ValidationAuditRepository {
	return &ValidationAuditRepository{db: db}
}

func (r *ValidationAuditRepository) Insert(ctx context.Context, entry domain.ValidationAudit) error {
	model := validationAuditModel{
		TenantID:       entry.TenantID,
		SchemaID:       entry.SchemaID,
		Actor:          entry.Actor,
		Valid:          entry.Valid,
		ViolationCount: entry.ViolationCount,
		At:             entry.At,
	}
	if model.At.IsZero() {
		model.At = time.Now().UTC()
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("insert validation audit: %w", err)
	}
	return nil
}

func (r *ValidationAuditRepository) List(ctx context.Context, filter domain.ValidationAuditFilter) ([]domain.ValidationAudit, error) {
	var rows []validationAuditModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&validationAuditModel{}).Where("tenant_id = ?", filter.TenantID)
		if filter.SchemaID != "" {
			query = query.Where("schema_id = ?", filter.SchemaID)
		}
		if filter.OnlyFailed {
			query = query.Where("valid = ?", false)
		}
		if filter.AfterID > 0 {
			query = query.Where("id < ?", filter.AfterID)
		}
		return query.Order("id DESC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list validation audit: %w", err)
	}

	result := make([]domain.ValidationAudit, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.ValidationAudit{
			ID:             row.ID,
			TenantID:       row.TenantID,
			SchemaID:       row.SchemaID,
			Actor:          row.Actor,
			Valid:          row.Valid,
			ViolationCount: row.ViolationCount,
			At:             row.At,
		})
	}
	return result, nil
}
