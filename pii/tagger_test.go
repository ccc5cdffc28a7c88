package pii_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/catalog"
	"github.com/streamlens/streamlens/model"
	"github.com/streamlens/streamlens/pii"
)

func newTagger(t *testing.T) *pii.Tagger {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	return pii.New(cat)
}

func orderSchema() *model.SchemaModel {
	root := model.NewRecord("Order")
	root.AddField(&model.FieldSchema{Name: "id", Kind: model.KindString})
	root.AddField(&model.FieldSchema{Name: "email", Kind: model.KindString})
	root.AddField(&model.FieldSchema{Name: "order_total", Kind: model.KindDouble})

	customer := model.NewRecord("Customer")
	customer.Name = "customer"
	customer.AddField(&model.FieldSchema{Name: "firstName", Kind: model.KindString})
	customer.AddField(&model.FieldSchema{Name: "ssn", Kind: model.KindString})
	root.AddField(customer)

	return &model.SchemaModel{CallSiteID: "cs1", Root: root}
}

func TestTagger_Tag(t *testing.T) {
	tagger := newTagger(t)
	schema := tagger.Tag(orderSchema())

	assert.True(t, schema.Root.GetField("email").Tags.Has(model.TagPII))
	assert.Empty(t, schema.Root.GetField("id").Tags)
	assert.Empty(t, schema.Root.GetField("order_total").Tags)

	customer := schema.Root.GetField("customer")
	require.NotNil(t, customer)
	assert.True(t, customer.GetField("firstName").Tags.Has(model.TagPII))
	ssn := customer.GetField("ssn")
	assert.True(t, ssn.Tags.Has(model.TagPII))
	assert.True(t, ssn.Tags.Has(model.TagSensitive))
}

func TestTagger_TagNormalizesSeparators(t *testing.T) {
	tagger := newTagger(t)
	root := model.NewRecord("Payload")
	root.AddField(&model.FieldSchema{Name: "Customer_Email", Kind: model.KindString})
	root.AddField(&model.FieldSchema{Name: "phone-number", Kind: model.KindString})
	schema := tagger.Tag(&model.SchemaModel{Root: root})

	assert.True(t, schema.Root.GetField("Customer_Email").Tags.Has(model.TagPII))
	assert.True(t, schema.Root.GetField("phone-number").Tags.Has(model.TagPII))
}

func TestTagger_TagIdempotent(t *testing.T) {
	tagger := newTagger(t)
	schema := tagger.Tag(orderSchema())

	snapshot := func() map[string]int {
		counts := map[string]int{}
		schema.Root.Walk(func(field *model.FieldSchema) {
			counts[field.Name] = len(field.Tags)
		})
		return counts
	}

	before := snapshot()
	tagger.Tag(schema)
	assert.Equal(t, before, snapshot())
}

func TestTagger_TagNilSchema(t *testing.T) {
	tagger := newTagger(t)
	assert.Nil(t, tagger.Tag(nil))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "snake case", in: "order_total", want: "ordertotal"},
		{name: "camel case", in: "orderTotal", want: "ordertotal"},
		{name: "kebab case", in: "order-total", want: "ordertotal"},
		{name: "dotted", in: "customer.email", want: "customeremail"},
		{name: "already plain", in: "email", want: "email"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pii.Normalize(tc.in))
		})
	}
}
