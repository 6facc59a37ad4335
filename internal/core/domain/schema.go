package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaType is the closed set of document kinds the registry accepts.
type SchemaType string

const (
	SchemaTypeSecret         SchemaType = "SECRET"
	SchemaTypeTrustingSecret SchemaType = "TRUSTING_SECRET"
)

func ParseSchemaType(tag string) (SchemaType, error) {
	switch SchemaType(tag) {
	case SchemaTypeSecret, SchemaTypeTrustingSecret:
		return SchemaType(tag), nil
	}
	return "", fmt.Errorf("unknown schema type %q", tag)
}

var schemaIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:/-]+$`)

func ValidateSchemaID(id string) error {
	if id == "" || !schemaIDPattern.MatchString(id) {
		return ErrInvalidSchemaID
	}
	return nil
}

// SchemaDocument is a parsed, immutable credential-form schema. It is built
// once by ParseDocument and never mutated afterwards, so concurrent reads
// need no locking.
type SchemaDocument struct {
	Name       string
	Version    string
	Provider   string
	SchemaID   string
	SchemaType SchemaType
	Order      []string
	Required   []string
	Properties map[string]FieldSpec

	// SchemaJSON is the embedded schema block re-encoded as canonical JSON,
	// kept for meta-validation and for returning the block verbatim.
	SchemaJSON json.RawMessage
}

// SchemaRecord is the stored form of a document: the raw canonical JSON plus
// the columns the registry filters on.
type SchemaRecord struct {
	SchemaID   string
	Provider   string
	SchemaType SchemaType
	Document   json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SchemaListFilter narrows a registry listing. AfterID is keyset pagination
// on schema_id.
type SchemaListFilter struct {
	Provider   string
	SchemaType SchemaType
	AfterID    string
	Limit      int
}

type documentWire struct {
	Name       string         `yaml:"name" json:"name"`
	Version    string         `yaml:"version" json:"version"`
	Provider   string         `yaml:"provider" json:"provider"`
	SchemaID   string         `yaml:"schema_id" json:"schema_id"`
	SchemaType string         `yaml:"schema_type" json:"schema_type"`
	Schema     map[string]any `yaml:"schema" json:"schema"`
}

// blockWire is the typed view of the schema block. The block is stored with
// all of its keys; this struct only names the ones the validator interprets.
type blockWire struct {
	Type       string              `json:"type"`
	Order      []string            `json:"order"`
	Required   []string            `json:"required"`
	Properties map[string]specWire `json:"properties"`
}

type specWire struct {
	Type      string `json:"type"`
	Format    string `json:"format"`
	Title     string `json:"title"`
	MinLength *int   `json:"minLength"`
	Default   any    `json:"default"`
	Markdown  string `json:"markdown"`
}

// ParseDocument loads a schema document from raw JSON or YAML bytes. Every
// structural defect is reported as *ErrMalformedSchema; a document that
// parses is guaranteed to satisfy all invariants (closed type tags, order
// and required referencing declared fields, defaults matching their type).
func ParseDocument(raw []byte) (*SchemaDocument, error) {
	var wire documentWire
	if err := yaml.Unmarshal(raw, &wire); err != nil {
		return nil, &ErrMalformedSchema{Reason: fmt.Sprintf("decode document: %v", err)}
	}

	if wire.Name == "" {
		return nil, &ErrMalformedSchema{Reason: "missing top-level key: name"}
	}
	if wire.Version == "" {
		return nil, &ErrMalformedSchema{Reason: "missing top-level key: version"}
	}
	if wire.Provider == "" {
		return nil, &ErrMalformedSchema{Reason: "missing top-level key: provider"}
	}
	if wire.SchemaID == "" {
		return nil, &ErrMalformedSchema{Reason: "missing top-level key: schema_id"}
	}
	if err := ValidateSchemaID(wire.SchemaID); err != nil {
		return nil, &ErrMalformedSchema{Reason: fmt.Sprintf("invalid schema_id %q", wire.SchemaID)}
	}
	if wire.SchemaType == "" {
		return nil, &ErrMalformedSchema{Reason: "missing top-level key: schema_type"}
	}
	schemaType, err := ParseSchemaType(wire.SchemaType)
	if err != nil {
		return nil, &ErrMalformedSchema{Reason: err.Error()}
	}
	if wire.Schema == nil {
		return nil, &ErrMalformedSchema{Reason: "missing top-level key: schema"}
	}

	// The block keeps every key it was authored with; the typed view below
	// only extracts what the validator interprets.
	schemaJSON, err := json.Marshal(wire.Schema)
	if err != nil {
		return nil, &ErrMalformedSchema{Reason: fmt.Sprintf("encode schema block: %v", err)}
	}
	var block blockWire
	if err := json.Unmarshal(schemaJSON, &block); err != nil {
		return nil, &ErrMalformedSchema{Reason: fmt.Sprintf("decode schema block: %v", err)}
	}

	if block.Type != "" && block.Type != "object" {
		return nil, &ErrMalformedSchema{Reason: fmt.Sprintf("schema block type must be object, got %q", block.Type)}
	}
	if len(block.Properties) == 0 {
		return nil, &ErrMalformedSchema{Reason: "schema block declares no properties"}
	}

	props := make(map[string]FieldSpec, len(block.Properties))
	for name, sw := range block.Properties {
		spec, err := parseFieldSpec(name, sw)
		if err != nil {
			return nil, err
		}
		props[name] = spec
	}

	for _, name := range block.Order {
		if _, ok := props[name]; !ok {
			return nil, &ErrMalformedSchema{Reason: fmt.Sprintf("order references unknown field %q", name)}
		}
	}
	for _, name := range block.Required {
		if _, ok := props[name]; !ok {
			return nil, &ErrMalformedSchema{Reason: fmt.Sprintf("required references unknown field %q", name)}
		}
	}

	return &SchemaDocument{
		Name:       wire.Name,
		Version:    wire.Version,
		Provider:   wire.Provider,
		SchemaID:   wire.SchemaID,
		SchemaType: schemaType,
		Order:      block.Order,
		Required:   block.Required,
		Properties: props,
		SchemaJSON: schemaJSON,
	}, nil
}

func parseFieldSpec(name string, sw specWire) (FieldSpec, error) {
	fieldType, err := ParseFieldType(sw.Type)
	if err != nil {
		return FieldSpec{}, &ErrMalformedSchema{Reason: fmt.Sprintf("field %q: %v", name, err)}
	}
	format, err := ParseFieldFormat(sw.Format)
	if err != nil {
		return FieldSpec{}, &ErrMalformedSchema{Reason: fmt.Sprintf("field %q: %v", name, err)}
	}
	if sw.MinLength != nil {
		if *sw.MinLength < 0 {
			return FieldSpec{}, &ErrMalformedSchema{Reason: fmt.Sprintf("field %q: minLength must be non-negative", name)}
		}
		if fieldType != TypeString {
			return FieldSpec{}, &ErrMalformedSchema{Reason: fmt.Sprintf("field %q: minLength only applies to string fields", name)}
		}
	}
	if sw.Default != nil && !fieldType.Matches(sw.Default) {
		return FieldSpec{}, &ErrMalformedSchema{Reason: fmt.Sprintf("field %q: default does not match declared type %s", name, fieldType)}
	}
	return FieldSpec{
		Type:      fieldType,
		Format:    format,
		Title:     sw.Title,
		MinLength: sw.MinLength,
		Default:   sw.Default,
		Markdown:  sw.Markdown,
	}, nil
}

// CanonicalJSON re-encodes the full document as JSON for storage, so YAML
// submissions round-trip through the same representation as JSON ones. The
// schema block is carried verbatim, extra keywords included.
func (d *SchemaDocument) CanonicalJSON() (json.RawMessage, error) {
	return json.Marshal(struct {
		Name       string          `json:"name"`
		Version    string          `json:"version"`
		Provider   string          `json:"provider"`
		SchemaID   string          `json:"schema_id"`
		SchemaType string          `json:"schema_type"`
		Schema     json.RawMessage `json:"schema"`
	}{
		Name:       d.Name,
		Version:    d.Version,
		Provider:   d.Provider,
		SchemaID:   d.SchemaID,
		SchemaType: string(d.SchemaType),
		Schema:     d.SchemaJSON,
	})
}
