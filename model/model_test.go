package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/model"
)

func TestFingerprint(t *testing.T) {
	a := model.Fingerprint(model.RoleProducer, "/repo/src/Main.java", 10)
	assert.Equal(t, a, model.Fingerprint(model.RoleProducer, "/repo/src/Main.java", 10))
	assert.Len(t, a, 16)

	assert.NotEqual(t, a, model.Fingerprint(model.RoleProducer, "/repo/src/Main.java", 11))
	assert.NotEqual(t, a, model.Fingerprint(model.RoleConsumer, "/repo/src/Main.java", 10))
	assert.NotEqual(t, a, model.Fingerprint(model.RoleProducer, "/repo/src/Other.java", 10))
}

func TestNullable(t *testing.T) {
	wrapped := model.Nullable(&model.FieldSchema{Name: "note", Kind: model.KindString})
	require.Equal(t, model.KindUnion, wrapped.Kind)
	assert.True(t, wrapped.Nullable)
	assert.True(t, wrapped.DefaultNull)
	assert.Equal(t, model.KindString, wrapped.Elem.Kind)

	// Wrapping twice must not nest unions.
	again := model.Nullable(wrapped)
	assert.Same(t, wrapped, again)
}

func TestFieldSchema_AddFieldKeepsNamesUnique(t *testing.T) {
	record := model.NewRecord("Order")
	record.AddField(&model.FieldSchema{Name: "id", Kind: model.KindString})
	record.AddField(&model.FieldSchema{Name: "total", Kind: model.KindDouble})
	record.AddField(&model.FieldSchema{Name: "id", Kind: model.KindLong})

	require.Len(t, record.Fields, 2)
	assert.Equal(t, model.KindLong, record.GetField("id").Kind)
	assert.Equal(t, "id", record.Fields[0].Name)
}

func TestFieldSchema_Walk(t *testing.T) {
	record := model.NewRecord("Order")
	nested := model.NewRecord("Customer")
	nested.Name = "customer"
	nested.AddField(&model.FieldSchema{Name: "email", Kind: model.KindString})
	record.AddField(nested)
	record.AddField(&model.FieldSchema{
		Name: "tags", Kind: model.KindArray,
		Elem: &model.FieldSchema{Kind: model.KindString},
	})

	var visited int
	record.Walk(func(*model.FieldSchema) { visited++ })
	assert.Equal(t, 5, visited) // root, customer, email, tags, tags elem
}

func TestTagSet_MarshalJSONSorted(t *testing.T) {
	var tags model.TagSet
	tags.Add(model.TagSensitive, model.TagPII)

	data, err := json.Marshal(tags)
	require.NoError(t, err)
	assert.JSONEq(t, `["PII", "SENSITIVE"]`, string(data))
}
