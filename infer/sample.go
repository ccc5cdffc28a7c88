package infer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/streamlens/streamlens/model"
)

// FromSample infers a record schema from a sample JSON document. Object keys
// are emitted in sorted order so inference is deterministic; JSON carries no
// declaration order to preserve.
func FromSample(name string, data []byte) (*model.FieldSchema, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to parse sample data: %w", err)
	}
	object, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("sample data is not a JSON object")
	}
	if name == "" {
		name = "Sample"
	}
	return recordFromObject(name, object), nil
}

func recordFromObject(name string, object map[string]interface{}) *model.FieldSchema {
	record := model.NewRecord(name)
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		record.AddField(schemaFromValue(key, object[key]))
	}
	return record
}

func schemaFromValue(name string, value interface{}) *model.FieldSchema {
	switch typed := value.(type) {
	case nil:
		// A null sample value pins neither type nor shape; default to a
		// nullable string.
		return model.Nullable(&model.FieldSchema{Name: name, Kind: model.KindString})
	case bool:
		return &model.FieldSchema{Name: name, Kind: model.KindBoolean}
	case string:
		return &model.FieldSchema{Name: name, Kind: model.KindString}
	case json.Number:
		if isIntegral(typed) {
			return &model.FieldSchema{Name: name, Kind: model.KindLong}
		}
		return &model.FieldSchema{Name: name, Kind: model.KindDouble}
	case []interface{}:
		elem := &model.FieldSchema{Name: name, Kind: model.KindString}
		if len(typed) > 0 {
			elem = schemaFromValue(name, typed[0])
		}
		return &model.FieldSchema{Name: name, Kind: model.KindArray, Elem: elem}
	case map[string]interface{}:
		record := recordFromObject(capitalize(name), typed)
		record.Name = name
		return record
	}
	return &model.FieldSchema{Name: name, Kind: model.KindString}
}

func isIntegral(number json.Number) bool {
	text := number.String()
	return !strings.ContainsAny(text, ".eE")
}

func capitalize(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
