package domain

import (
	"errors"
	"strings"
	"testing"
)

// controlTowerYAML mirrors the AWS Control Tower credential form document
// used throughout the tests.
const controlTowerYAML = `
name: AWS Control Tower
version: "1.0"
provider: aws
schema_id: aws-control-tower-secret
schema_type: SECRET
schema:
  type: object
  order:
    - aws_access_key_id
    - aws_secret_access_key
    - role_name
    - external_id
  required:
    - aws_access_key_id
    - aws_secret_access_key
    - role_name
    - external_id
  properties:
    aws_access_key_id:
      title: AWS Access Key ID
      type: string
      minLength: 4
    aws_secret_access_key:
      title: AWS Secret Access Key
      type: string
      format: password
      minLength: 4
    role_name:
      title: Role Name
      type: string
      minLength: 4
      default: SpaceONERole
    external_id:
      title: External ID
      type: string
      format: generate_id
      markdown: "[Setup guide](https://docs.example.com/control-tower)"
`

func mustParseControlTower(t *testing.T) *SchemaDocument {
	t.Helper()
	doc, err := ParseDocument([]byte(controlTowerYAML))
	if err != nil {
		t.Fatalf("parse control tower document: %v", err)
	}
	return doc
}

func TestParseDocumentControlTower(t *testing.T) {
	doc := mustParseControlTower(t)

	if doc.SchemaID != "aws-control-tower-secret" {
		t.Fatalf("unexpected schema_id: %s", doc.SchemaID)
	}
	if doc.SchemaType != SchemaTypeSecret {
		t.Fatalf("unexpected schema_type: %s", doc.SchemaType)
	}
	if doc.Provider != "aws" {
		t.Fatalf("unexpected provider: %s", doc.Provider)
	}
	if len(doc.Order) != 4 || len(doc.Required) != 4 || len(doc.Properties) != 4 {
		t.Fatalf("unexpected shape: order=%d required=%d properties=%d", len(doc.Order), len(doc.Required), len(doc.Properties))
	}

	roleName := doc.Properties["role_name"]
	if roleName.Type != TypeString {
		t.Fatalf("role_name type: %s", roleName.Type)
	}
	if roleName.MinLength == nil || *roleName.MinLength != 4 {
		t.Fatalf("role_name minLength: %v", roleName.MinLength)
	}
	if roleName.Default != "SpaceONERole" {
		t.Fatalf("role_name default: %v", roleName.Default)
	}

	externalID := doc.Properties["external_id"]
	if externalID.Format != FormatGenerateID {
		t.Fatalf("external_id format: %s", externalID.Format)
	}
	if externalID.Markdown == "" {
		t.Fatal("external_id markdown lost in parsing")
	}

	secret := doc.Properties["aws_secret_access_key"]
	if secret.Format != FormatPassword {
		t.Fatalf("aws_secret_access_key format: %s", secret.Format)
	}
}

func TestParseDocumentAcceptsJSON(t *testing.T) {
	raw := `{
		"name": "Minimal",
		"version": "1.0",
		"provider": "test",
		"schema_id": "minimal",
		"schema_type": "SECRET",
		"schema": {
			"type": "object",
			"properties": {"token": {"type": "string", "title": "Token"}},
			"required": ["token"]
		}
	}`
	doc, err := ParseDocument([]byte(raw))
	if err != nil {
		t.Fatalf("parse json document: %v", err)
	}
	if doc.Properties["token"].Type != TypeString {
		t.Fatalf("token type: %s", doc.Properties["token"].Type)
	}
	if doc.Properties["token"].Format != FormatPlain {
		t.Fatalf("token format should default to plain, got %s", doc.Properties["token"].Format)
	}
}

func TestParseDocumentMissingTopLevelKeys(t *testing.T) {
	cases := map[string]string{
		"missing name":        `{"version":"1","provider":"p","schema_id":"x","schema_type":"SECRET","schema":{"properties":{"a":{"type":"string"}}}}`,
		"missing version":     `{"name":"x","provider":"p","schema_id":"x","schema_type":"SECRET","schema":{"properties":{"a":{"type":"string"}}}}`,
		"missing provider":    `{"name":"x","version":"1","schema_id":"x","schema_type":"SECRET","schema":{"properties":{"a":{"type":"string"}}}}`,
		"missing schema_id":   `{"name":"x","version":"1","provider":"p","schema_type":"SECRET","schema":{"properties":{"a":{"type":"string"}}}}`,
		"missing schema_type": `{"name":"x","version":"1","provider":"p","schema_id":"x","schema":{"properties":{"a":{"type":"string"}}}}`,
		"missing schema":      `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument([]byte(raw))
			var malformed *ErrMalformedSchema
			if !errors.As(err, &malformed) {
				t.Fatalf("expected ErrMalformedSchema, got %v", err)
			}
		})
	}
}

func TestParseDocumentRequiredReferencesUnknownField(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET",
		"schema":{"properties":{"a":{"type":"string"}},"required":["a","ghost"]}}`
	_, err := ParseDocument([]byte(raw))
	var malformed *ErrMalformedSchema
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}
	if !strings.Contains(malformed.Reason, "ghost") {
		t.Fatalf("reason should name the unknown field: %s", malformed.Reason)
	}
}

func TestParseDocumentOrderReferencesUnknownField(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET",
		"schema":{"properties":{"a":{"type":"string"}},"order":["ghost"]}}`
	_, err := ParseDocument([]byte(raw))
	var malformed *ErrMalformedSchema
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}
}

func TestParseDocumentRejectsUnknownTypeTag(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET",
		"schema":{"properties":{"a":{"type":"varchar"}}}}`
	_, err := ParseDocument([]byte(raw))
	var malformed *ErrMalformedSchema
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ErrMalformedSchema for open type tag, got %v", err)
	}
}

func TestParseDocumentRejectsUnknownFormat(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET",
		"schema":{"properties":{"a":{"type":"string","format":"carrier-pigeon"}}}}`
	_, err := ParseDocument([]byte(raw))
	var malformed *ErrMalformedSchema
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}
}

func TestParseDocumentRejectsDefaultTypeMismatch(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET",
		"schema":{"properties":{"a":{"type":"string","default":42}}}}`
	_, err := ParseDocument([]byte(raw))
	var malformed *ErrMalformedSchema
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}
}

func TestParseDocumentRejectsNegativeMinLength(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET",
		"schema":{"properties":{"a":{"type":"string","minLength":-1}}}}`
	_, err := ParseDocument([]byte(raw))
	var malformed *ErrMalformedSchema
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}
}

func TestParseDocumentRejectsUnknownSchemaType(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"PUBLIC",
		"schema":{"properties":{"a":{"type":"string"}}}}`
	_, err := ParseDocument([]byte(raw))
	var malformed *ErrMalformedSchema
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}
}

func TestParseDocumentKeepsExtraSchemaKeywords(t *testing.T) {
	raw := `{"name":"x","version":"1","provider":"p","schema_id":"x","schema_type":"SECRET",
		"schema":{"properties":{"a":{"type":"string","pattern":"^AKIA"}}}}`
	doc, err := ParseDocument([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(string(doc.SchemaJSON), "pattern") {
		t.Fatalf("schema block dropped authored keywords: %s", doc.SchemaJSON)
	}
}

func TestCanonicalJSONRoundTrips(t *testing.T) {
	doc := mustParseControlTower(t)
	canonical, err := doc.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	again, err := ParseDocument(canonical)
	if err != nil {
		t.Fatalf("reparse canonical form: %v", err)
	}
	if again.SchemaID != doc.SchemaID || len(again.Properties) != len(doc.Properties) {
		t.Fatalf("canonical round trip changed the document: %+v", again)
	}
	if again.Properties["role_name"].Default != "SpaceONERole" {
		t.Fatalf("default lost in round trip: %v", again.Properties["role_name"].Default)
	}
}

func TestValidateSchemaID(t *testing.T) {
	if err := ValidateSchemaID("aws-control-tower-secret"); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
	for _, id := range []string{"", "has space", "semi;colon"} {
		if err := ValidateSchemaID(id); !errors.Is(err, ErrInvalidSchemaID) {
			t.Fatalf("expected ErrInvalidSchemaID for %q, got %v", id, err)
		}
	}
}
