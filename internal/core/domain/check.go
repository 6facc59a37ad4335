package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// ConstraintKind names the constraint a violation was raised for.
type ConstraintKind string

const (
	ConstraintMissingField ConstraintKind = "missing_field"
	ConstraintUnknownField ConstraintKind = "unknown_field"
	ConstraintTypeMismatch ConstraintKind = "type_mismatch"
	ConstraintTooShort     ConstraintKind = "too_short"
)

type Violation struct {
	Field      string         `json:"field"`
	Constraint ConstraintKind `json:"constraint"`
	Message    string         `json:"message"`
}

// ValidationResult reports the outcome of checking one record against one
// schema document. Violations are ordered deterministically: declared fields
// in schema order first, undeclared record keys last, lexicographically.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Err converts a failing result into *ErrSchemaViolation; a passing result
// yields nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ErrSchemaViolation{Violations: r.Violations}
}

// CheckOptions tunes policy decisions the schema document itself leaves open.
type CheckOptions struct {
	// AllowGenerated treats an absent or empty generate_id field as
	// system-populated rather than missing. Callers set this when they have
	// a generator wired (see Fill); without one the field is checked like
	// any other.
	AllowGenerated bool
}

// Check validates record against the document and aggregates every violation
// instead of stopping at the first. The document is never mutated, so Check
// is idempotent and safe to call concurrently.
func (d *SchemaDocument) Check(record map[string]any, opts CheckOptions) ValidationResult {
	var violations []Violation

	for _, name := range d.fieldOrder() {
		spec := d.Properties[name]
		value, present := record[name]

		if !present {
			if d.isRequired(name) && !(opts.AllowGenerated && spec.Format == FormatGenerateID) {
				violations = append(violations, Violation{
					Field:      name,
					Constraint: ConstraintMissingField,
					Message:    fmt.Sprintf("required field %q is missing", name),
				})
			}
			continue
		}

		if opts.AllowGenerated && spec.Format == FormatGenerateID && isEmptyValue(value) {
			continue
		}

		if !spec.Type.Matches(value) {
			violations = append(violations, Violation{
				Field:      name,
				Constraint: ConstraintTypeMismatch,
				Message:    fmt.Sprintf("field %q must be of type %s", name, spec.Type),
			})
			continue
		}

		if spec.MinLength != nil {
			if s, ok := value.(string); ok && utf8.RuneCountInString(s) < *spec.MinLength {
				violations = append(violations, Violation{
					Field:      name,
					Constraint: ConstraintTooShort,
					Message:    fmt.Sprintf("field %q must be at least %d characters", name, *spec.MinLength),
				})
			}
		}
	}

	var unknown []string
	for name := range record {
		if _, ok := d.Properties[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		violations = append(violations, Violation{
			Field:      name,
			Constraint: ConstraintUnknownField,
			Message:    fmt.Sprintf("field %q is not declared in the schema", name),
		})
	}

	return ValidationResult{Valid: len(violations) == 0, Violations: violations}
}

// Defaults returns the declared default per field that has one, for
// pre-filling forms. The returned map is fresh on every call.
func (d *SchemaDocument) Defaults() map[string]any {
	out := make(map[string]any)
	for name, spec := range d.Properties {
		if spec.Default != nil {
			out[name] = spec.Default
		}
	}
	return out
}

// Fill returns a copy of record where every absent or empty generate_id
// field has been populated by gen. The input record is left untouched.
func (d *SchemaDocument) Fill(record map[string]any, gen func() string) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	if gen == nil {
		return out
	}
	for name, spec := range d.Properties {
		if spec.Format != FormatGenerateID {
			continue
		}
		if v, present := out[name]; present && !isEmptyValue(v) {
			continue
		}
		out[name] = gen()
	}
	return out
}

// DecodeRecord parses a candidate record from raw JSON, preserving numeric
// precision via json.Number so integer declarations can be checked exactly.
func DecodeRecord(raw json.RawMessage) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var record map[string]any
	if err := decoder.Decode(&record); err != nil {
		return nil, ErrInvalidRecord
	}
	// Decoding null succeeds and leaves the map nil.
	if record == nil {
		return nil, ErrInvalidRecord
	}
	return record, nil
}

// fieldOrder returns declared fields in schema order, with any fields the
// order list omits appended lexicographically.
func (d *SchemaDocument) fieldOrder() []string {
	seen := make(map[string]bool, len(d.Order))
	order := make([]string, 0, len(d.Properties))
	for _, name := range d.Order {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	var rest []string
	for name := range d.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func (d *SchemaDocument) isRequired(name string) bool {
	for _, r := range d.Required {
		if r == name {
			return true
		}
	}
	return false
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
