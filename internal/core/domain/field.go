package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// FieldType is the closed set of value types a schema field may declare.
// Unknown type tags are rejected at load time rather than silently accepted.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

func ParseFieldType(tag string) (FieldType, error) {
	switch FieldType(tag) {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray:
		return FieldType(tag), nil
	}
	return "", fmt.Errorf("unknown field type %q", tag)
}

// FieldFormat is a rendering/population hint attached to a field.
type FieldFormat string

const (
	FormatPlain      FieldFormat = "plain"
	FormatPassword   FieldFormat = "password"
	FormatGenerateID FieldFormat = "generate_id"
)

func ParseFieldFormat(tag string) (FieldFormat, error) {
	if tag == "" {
		return FormatPlain, nil
	}
	switch FieldFormat(tag) {
	case FormatPlain, FormatPassword, FormatGenerateID:
		return FieldFormat(tag), nil
	}
	return "", fmt.Errorf("unknown field format %q", tag)
}

// FieldSpec describes a single named input slot in a schema document.
type FieldSpec struct {
	Type      FieldType
	Format    FieldFormat
	Title     string
	MinLength *int
	Default   any
	Markdown  string
}

// Matches reports whether v conforms to the declared field type. Values may
// come from encoding/json (with UseNumber) or from a YAML document, so both
// json.Number and native Go numerics are accepted.
func (t FieldType) Matches(v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		return isNumeric(v)
	case TypeInteger:
		return isIntegral(v)
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	}
	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64, int32, uint64:
		return true
	}
	return false
}

func isIntegral(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := n.Int64()
		return err == nil
	case float64:
		return n == math.Trunc(n)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case int, int64, int32, uint64:
		return true
	}
	return false
}
