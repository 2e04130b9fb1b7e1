//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool generates JSON-Schema declarations for typed tool inputs
// and outputs.
package tool

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
)

// GenerateJSONSchema derives a JSON schema from a reflect.Type. Struct
// fields honor `json` tags for naming and optionality and `jsonschema`
// tags for description, enum, and required overrides. Pointers unwrap to
// their element type; self-referential types degrade to a plain object
// schema rather than recursing forever.
func GenerateJSONSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	return generateSchema(t, make(map[reflect.Type]bool))
}

func generateSchema(t reflect.Type, visiting map[reflect.Type]bool) *tool.Schema {
	switch t.Kind() {
	case reflect.Ptr:
		return generateSchema(t.Elem(), visiting)
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{Type: "array", Items: generateSchema(t.Elem(), visiting)}
	case reflect.Map:
		return &tool.Schema{Type: "object", AdditionalProperties: generateSchema(t.Elem(), visiting)}
	case reflect.Struct:
		if visiting[t] {
			return &tool.Schema{Type: "object"}
		}
		visiting[t] = true
		defer delete(visiting, t)
		return generateStructSchema(t, visiting)
	case reflect.Interface:
		// Accept anything.
		return &tool.Schema{}
	default:
		return &tool.Schema{Type: "object"}
	}
}

func generateStructSchema(t reflect.Type, visiting map[reflect.Type]bool) *tool.Schema {
	schema := &tool.Schema{Type: "object", Properties: map[string]*tool.Schema{}}
	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := parseJSONTag(field)
		if skip {
			continue
		}
		fieldSchema := generateSchema(field.Type, visiting)
		requiredByTag, err := applySchemaTag(field.Type, field.Tag, fieldSchema)
		if err != nil {
			log.Errorf("jsonschema tag on field %s: %v", name, err)
		}
		if (field.Type.Kind() != reflect.Ptr && !omitEmpty) || requiredByTag {
			required = append(required, name)
		}
		schema.Properties[name] = fieldSchema
	}
	if len(required) > 0 {
		schema.Required = required
	}
	return schema
}

// parseJSONTag resolves the field's wire name and optionality from its
// json tag.
func parseJSONTag(field reflect.StructField) (name string, omitEmpty, skip bool) {
	name = field.Name
	tag := field.Tag.Get("json")
	if tag == "" {
		return name, false, false
	}
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// applySchemaTag applies `jsonschema:"description=...,enum=...,required"`
// settings to the field schema. Enum values are converted to the field's
// Go type; unsupported enum kinds fail.
func applySchemaTag(fieldType reflect.Type, tag reflect.StructTag, schema *tool.Schema) (requiredByTag bool, err error) {
	raw := tag.Get("jsonschema")
	if raw == "" {
		return false, nil
	}
	for _, item := range strings.Split(raw, ",") {
		switch {
		case item == "required":
			requiredByTag = true
		case strings.HasPrefix(item, "description="):
			schema.Description = strings.TrimPrefix(item, "description=")
		case strings.HasPrefix(item, "enum="):
			value, convErr := convertEnumValue(fieldType, strings.TrimPrefix(item, "enum="))
			if convErr != nil {
				return requiredByTag, convErr
			}
			schema.Enum = append(schema.Enum, value)
		}
	}
	return requiredByTag, nil
}

func convertEnumValue(t reflect.Type, raw string) (any, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("enum value %q is not an integer", raw)
		}
		return v, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("enum value %q is not an unsigned integer", raw)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("enum value %q is not a number", raw)
		}
		return v, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("enum value %q is not a boolean", raw)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum unsupported for kind %s", t.Kind())
	}
}
