package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSchemaID = errors.New("invalid schema id")
	ErrInvalidRecord   = errors.New("record must be a json object")
	ErrNotFound        = errors.New("not found")
)

// ErrMalformedSchema is returned by ParseDocument when a schema document is
// structurally invalid. Loading aborts on the first defect found.
type ErrMalformedSchema struct {
	Reason string
}

func (e *ErrMalformedSchema) Error() string {
	return "malformed schema: " + e.Reason
}

// ErrSchemaViolation carries a failing ValidationResult through an error
// chain for callers that treat a failed validation as fatal (the CLI, bulk
// ingestion). The HTTP validate endpoint returns the result directly instead.
type ErrSchemaViolation struct {
	Violations []Violation
}

func (e *ErrSchemaViolation) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "schema validation failed: " + strings.Join(msgs, "; ")
}
