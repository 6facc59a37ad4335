package domain

import "time"

// ValidationAudit is one row of the validation trail: who validated what
// against which schema, and how it went.
type ValidationAudit struct {
	ID             int64     `json:"id"`
	TenantID       string    `json:"tenant_id"`
	SchemaID       string    `json:"schema_id"`
	Actor          string    `json:"actor"`
	Valid          bool      `json:"valid"`
	ViolationCount int       `json:"violation_count"`
	At             time.Time `json:"at"`
}

type ValidationAuditFilter struct {
	TenantID   string
	SchemaID   string
	OnlyFailed bool
	AfterID    int64
	Limit      int
}
