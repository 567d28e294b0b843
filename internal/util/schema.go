package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// CreateSchema creates a JSON schema from a Go struct using reflection.
// Field names follow the json tag; a "description" tag becomes the property
// description and an "enum" tag (comma separated) restricts string values.
// Non-pointer fields without omitempty are required.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t == nil {
		return emptyObjectSchema()
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return emptyObjectSchema()
	}

	properties := make(map[string]any)
	required := make([]any, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := typeSchema(field.Type)

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if enum := field.Tag.Get("enum"); enum != "" {
			values := make([]any, 0)
			for _, v := range strings.Split(enum, ",") {
				values = append(values, strings.TrimSpace(v))
			}
			fieldSchema["enum"] = values
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && !isPointer(field.Type) {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// DecodeArgs converts loosely typed tool arguments into a typed value by way
// of a JSON round trip.
func DecodeArgs(args map[string]any, out any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}

	return nil
}

func emptyObjectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// typeSchema returns the JSON schema fragment for a Go type.
func typeSchema(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	s := map[string]any{"type": getJSONType(t)}

	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		s["items"] = typeSchema(t.Elem())
	}

	return s
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isPointer checks if a type is a pointer.
func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr
}
