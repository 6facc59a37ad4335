package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/credschema/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type schemaDocumentModel struct {
	TenantID     string    `gorm:"column:tenant_id;primaryKey"`
	SchemaID     string    `gorm:"column:schema_id;primaryKey"`
	Provider     string    `gorm:"column:provider;not null"`
	SchemaType   string    `gorm:"column:schema_type;not null"`
	DocumentJSON string    `gorm:"column:document_json;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (schemaDocumentModel) TableName() string {
	return "schema_documents"
}

// SchemaRepository stores schema documents and enqueues their change events
// in the same write transaction.
type SchemaRepository struct {
	db *gormsqlite.DB
}

func NewSchemaRepository(db *gormsqlite.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func (r *SchemaRepository) Upsert(ctx context.Context, tenantID string, rec domain.SchemaRecord, event domain.EventEnvelope) (domain.SchemaRecord, error) {
	now := time.Now().UTC()
	model := schemaDocumentModel{
		TenantID:     tenantID,
		SchemaID:     rec.SchemaID,
		Provider:     rec.Provider,
		SchemaType:   string(rec.SchemaType),
		DocumentJSON: string(rec.Document),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var out domain.SchemaRecord
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "schema_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider", "schema_type", "document_json", "updated_at"}),
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("upsert schema document: %w", err)
		}

		if err := enqueueEvent(tx, event); err != nil {
			return err
		}

		var saved schemaDocumentModel
		if err := tx.Where("tenant_id = ? AND schema_id = ?", tenantID, rec.SchemaID).First(&saved).Error; err != nil {
			return fmt.Errorf("load upserted schema document: %w", err)
		}
		out = toSchemaRecord(saved)
		return nil
	})
	if err != nil {
		return domain.SchemaRecord{}, err
	}
	return out, nil
}

func (r *SchemaRepository) Get(ctx context.Context, tenantID, schemaID string) (domain.SchemaRecord, error) {
	var model schemaDocumentModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("tenant_id = ? AND schema_id = ?", tenantID, schemaID).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SchemaRecord{}, domain.ErrNotFound
		}
		return domain.SchemaRecord{}, fmt.Errorf("get schema document: %w", err)
	}
	return toSchemaRecord(model), nil
}

func (r *SchemaRepository) List(ctx context.Context, tenantID string, filter domain.SchemaListFilter) ([]domain.SchemaRecord, error) {
	var models []schemaDocumentModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&schemaDocumentModel{}).Where("tenant_id = ?", tenantID)
		if filter.Provider != "" {
			query = query.Where("provider = ?", filter.Provider)
		}
		if filter.SchemaType != "" {
			query = query.Where("schema_type = ?", string(filter.SchemaType))
		}
		if filter.AfterID != "" {
			query = query.Where("schema_id > ?", filter.AfterID)
		}
		return query.Order("schema_id ASC").Limit(filter.Limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list schema documents: %w", err)
	}

	records := make([]domain.SchemaRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toSchemaRecord(model))
	}
	return records, nil
}

func (r *SchemaRepository) Delete(ctx context.Context, tenantID, schemaID string, event domain.EventEnvelope) (bool, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("tenant_id = ? AND schema_id = ?", tenantID, schemaID).Delete(&schemaDocumentModel{})
		if res.Error != nil {
			return fmt.Errorf("delete schema document: %w", res.Error)
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return enqueueEvent(tx, event)
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func enqueueEvent(tx *gormsqlite.Tx, event domain.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	model := outboxEventModel{
		EventID:       event.EventID,
		TenantID:      event.TenantID,
		Topic:         domain.TopicSchemaEvents,
		PayloadJSON:   string(payload),
		Status:        "pending",
		Attempts:      0,
		NextAttemptAt: time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.Create(&model).Error; err != nil {
		return fmt.Errorf("enqueue change event: %w", err)
	}
	return nil
}

func toSchemaRecord(model schemaDocumentModel) domain.SchemaRecord {
	return domain.SchemaRecord{
		SchemaID:   model.SchemaID,
		Provider:   model.Provider,
		SchemaType: domain.SchemaType(model.SchemaType),
		Document:   json.RawMessage(model.DocumentJSON),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}
