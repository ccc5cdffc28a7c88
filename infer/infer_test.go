package infer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/infer"
	"github.com/streamlens/streamlens/model"
)

func TestFromSample(t *testing.T) {
	sample := `{
  "id": "ord-1",
  "email": "jo@example.com",
  "order_total": 12.5,
  "count": 3,
  "tags": ["new", "priority"],
  "customer": {"city": "Berlin"},
  "note": null
}`

	schema, err := infer.FromSample("Order", []byte(sample))
	require.NoError(t, err)
	require.Equal(t, model.KindRecord, schema.Kind)
	assert.Equal(t, "Order", schema.RecordName)

	// Keys are emitted in sorted order: JSON has no declaration order.
	var names []string
	for _, field := range schema.Fields {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"count", "customer", "email", "id", "note", "order_total", "tags"}, names)

	assert.Equal(t, model.KindLong, schema.GetField("count").Kind)
	assert.Equal(t, model.KindDouble, schema.GetField("order_total").Kind)
	assert.Equal(t, model.KindString, schema.GetField("email").Kind)

	tags := schema.GetField("tags")
	require.Equal(t, model.KindArray, tags.Kind)
	assert.Equal(t, model.KindString, tags.Elem.Kind)

	customer := schema.GetField("customer")
	require.Equal(t, model.KindRecord, customer.Kind)
	assert.Equal(t, model.KindString, customer.GetField("city").Kind)

	note := schema.GetField("note")
	require.Equal(t, model.KindUnion, note.Kind)
	assert.True(t, note.DefaultNull)
}

func TestFromSampleLargeInteger(t *testing.T) {
	// 2^60 does not fit in a float64 mantissa; json.Number must preserve it
	// as an integral long.
	schema, err := infer.FromSample("Event", []byte(`{"offset": 1152921504606846976}`))
	require.NoError(t, err)
	assert.Equal(t, model.KindLong, schema.GetField("offset").Kind)
}

func TestFromSampleRejectsNonObject(t *testing.T) {
	_, err := infer.FromSample("Event", []byte(`[1, 2, 3]`))
	assert.Error(t, err)
	_, err = infer.FromSample("Event", []byte(`not json`))
	assert.Error(t, err)
}

func TestEngine_InferDeclaredType(t *testing.T) {
	modelFile := &model.SourceFile{
		Path:      "/repo/src/Order.java",
		Ecosystem: model.EcosystemJava,
		Content: []byte(`public class Order {
    private String id;
    private double total;
}`),
	}
	site := model.CallSite{
		ID:        "cs1",
		Ecosystem: model.EcosystemJava,
		Path:      "/repo/src/Publisher.java",
		TypeRef:   "Order",
	}

	schema, warnings := infer.New().Infer(context.Background(), site, []*model.SourceFile{modelFile})
	assert.Empty(t, warnings)
	require.NotNil(t, schema)
	assert.Equal(t, "cs1", schema.CallSiteID)
	assert.Equal(t, model.ProvenanceDeclaredType, schema.Provenance)
	assert.Equal(t, "unvalidated", schema.Validation)
	require.NotNil(t, schema.Root)
	assert.Equal(t, model.KindDouble, schema.Root.GetField("total").Kind)
}

func TestEngine_InferFromSampleFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "orders.sample.json"),
		[]byte(`{"id": "ord-1", "total": 10.5}`), 0o644))

	site := model.CallSite{
		ID:        "cs1",
		Ecosystem: model.EcosystemPython,
		Path:      filepath.Join(dir, "publisher.py"),
		Topic:     "orders",
	}

	schema, warnings := infer.New().Infer(context.Background(), site, nil)
	assert.Empty(t, warnings)
	require.NotNil(t, schema)
	assert.Equal(t, model.ProvenanceInferredFromSample, schema.Provenance)
	assert.Equal(t, model.KindDouble, schema.Root.GetField("total").Kind)
}

func TestFromAvroSchema(t *testing.T) {
	document := `{
  "type": "record",
  "name": "Order",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "total", "type": "double"},
    {"name": "note", "type": ["null", "string"], "default": null},
    {"name": "tags", "type": {"type": "array", "items": "string"}},
    {"name": "customer", "type": {
      "type": "record", "name": "Customer",
      "fields": [{"name": "email", "type": "string"}]
    }}
  ]
}`

	schema, err := infer.FromAvroSchema([]byte(document))
	require.NoError(t, err)
	require.Equal(t, model.KindRecord, schema.Kind)
	assert.Equal(t, "Order", schema.RecordName)
	require.Len(t, schema.Fields, 5)

	assert.Equal(t, model.KindString, schema.GetField("id").Kind)
	assert.Equal(t, model.KindDouble, schema.GetField("total").Kind)

	note := schema.GetField("note")
	require.Equal(t, model.KindUnion, note.Kind)
	assert.Equal(t, model.KindString, note.Elem.Kind)

	tags := schema.GetField("tags")
	require.Equal(t, model.KindArray, tags.Kind)
	assert.Equal(t, model.KindString, tags.Elem.Kind)

	customer := schema.GetField("customer")
	require.Equal(t, model.KindRecord, customer.Kind)
	assert.Equal(t, model.KindString, customer.GetField("email").Kind)
}

func TestFromAvroSchemaRejectsNonRecord(t *testing.T) {
	_, err := infer.FromAvroSchema([]byte(`"string"`))
	assert.Error(t, err)
	_, err = infer.FromAvroSchema([]byte(`{"type": "enum", "name": "Color", "symbols": ["RED"]}`))
	assert.Error(t, err)
}

func TestEngine_InferExistingSchemaFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "orders.avsc"),
		[]byte(`{"type": "record", "name": "Order", "fields": [{"name": "id", "type": "string"}]}`), 0o644))

	site := model.CallSite{
		ID:        "cs1",
		Ecosystem: model.EcosystemJava,
		Path:      filepath.Join(dir, "Publisher.java"),
		Topic:     "orders",
	}

	schema, warnings := infer.New().Infer(context.Background(), site, nil)
	assert.Empty(t, warnings)
	require.NotNil(t, schema)
	assert.Equal(t, model.ProvenanceExistingSchemaFile, schema.Provenance)
	assert.Equal(t, model.FormatAvro, schema.Format)
	assert.Equal(t, model.KindString, schema.Root.GetField("id").Kind)
}

func TestEngine_InferUnresolvable(t *testing.T) {
	site := model.CallSite{
		ID:        "cs1",
		Ecosystem: model.EcosystemJava,
		Path:      filepath.Join(t.TempDir(), "Publisher.java"),
		TypeRef:   "Order",
	}

	schema, warnings := infer.New().Infer(context.Background(), site, nil)
	assert.Nil(t, schema)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnTypeUnresolvable, warnings[0].Kind)
}
