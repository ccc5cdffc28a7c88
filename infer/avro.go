package infer

import (
	"encoding/json"
	"fmt"

	"github.com/streamlens/streamlens/model"
)

var avroPrimitiveKinds = map[string]model.TypeKind{
	"string":  model.KindString,
	"bytes":   model.KindString,
	"int":     model.KindInteger,
	"long":    model.KindLong,
	"float":   model.KindFloat,
	"double":  model.KindDouble,
	"boolean": model.KindBoolean,
}

// FromAvroSchema parses an Avro schema document (.avsc) into the normalized
// schema model. Only the record/array/map/null-union subset every producer
// schema in practice uses is supported; anything else is an error and the
// caller falls through to the next inference source.
func FromAvroSchema(data []byte) (*model.FieldSchema, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse avro schema: %w", err)
	}
	schema, err := avroType("", doc)
	if err != nil {
		return nil, err
	}
	if schema.Kind != model.KindRecord {
		return nil, fmt.Errorf("avro schema root is not a record")
	}
	return schema, nil
}

func avroType(name string, doc interface{}) (*model.FieldSchema, error) {
	switch typed := doc.(type) {
	case string:
		return avroPrimitive(name, typed)
	case []interface{}:
		// Unions: only the canonical 2-arm null union is modeled.
		var nonNull []interface{}
		sawNull := false
		for _, arm := range typed {
			if text, ok := arm.(string); ok && text == "null" {
				sawNull = true
				continue
			}
			nonNull = append(nonNull, arm)
		}
		if sawNull && len(nonNull) == 1 {
			inner, err := avroType(name, nonNull[0])
			if err != nil {
				return nil, err
			}
			return model.Nullable(inner), nil
		}
		return nil, fmt.Errorf("unsupported avro union with %d non-null arms", len(nonNull))
	case map[string]interface{}:
		kind, _ := typed["type"].(string)
		switch kind {
		case "record":
			recordName, _ := typed["name"].(string)
			record := model.NewRecord(recordName)
			if name != "" {
				record.Name = name
			}
			fields, _ := typed["fields"].([]interface{})
			for _, raw := range fields {
				fieldDoc, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				fieldName, _ := fieldDoc["name"].(string)
				field, err := avroType(fieldName, fieldDoc["type"])
				if err != nil {
					return nil, err
				}
				field.Name = fieldName
				record.AddField(field)
			}
			return record, nil
		case "array":
			elem, err := avroType(name, typed["items"])
			if err != nil {
				return nil, err
			}
			return &model.FieldSchema{Name: name, Kind: model.KindArray, Elem: elem}, nil
		case "map":
			elem, err := avroType(name, typed["values"])
			if err != nil {
				return nil, err
			}
			return &model.FieldSchema{Name: name, Kind: model.KindMap, Elem: elem}, nil
		default:
			return avroPrimitive(name, kind)
		}
	}
	return nil, fmt.Errorf("unsupported avro schema node %T", doc)
}

func avroPrimitive(name, typeName string) (*model.FieldSchema, error) {
	kind, ok := avroPrimitiveKinds[typeName]
	if !ok {
		return nil, fmt.Errorf("unsupported avro type %q", typeName)
	}
	return &model.FieldSchema{Name: name, Kind: kind}, nil
}
