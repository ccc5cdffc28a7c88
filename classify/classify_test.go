package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/catalog"
	"github.com/streamlens/streamlens/classify"
	"github.com/streamlens/streamlens/model"
)

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	return classify.New(cat)
}

func someSchema() *model.SchemaModel {
	root := model.NewRecord("Order")
	root.AddField(&model.FieldSchema{Name: "id", Kind: model.KindString})
	return &model.SchemaModel{CallSiteID: "cs1", Root: root}
}

func TestClassifier_Classify(t *testing.T) {
	classifier := newClassifier(t)

	tests := []struct {
		name   string
		site   model.CallSite
		schema *model.SchemaModel
		want   model.Category
	}{
		{
			name: "registry url with managed serializer",
			site: model.CallSite{
				SchemaRegistryURL: "http://localhost:8081",
				Serializer:        "KafkaAvroSerializer",
			},
			schema: someSchema(),
			want:   model.CategoryA,
		},
		{
			name:   "no registry integration",
			site:   model.CallSite{Serializer: "StringSerializer"},
			schema: someSchema(),
			want:   model.CategoryB,
		},
		{
			name: "auto register wins over everything",
			site: model.CallSite{
				AutoRegister:      true,
				CustomSerializer:  true,
				SchemaRegistryURL: "http://localhost:8081",
				Serializer:        "KafkaAvroSerializer",
			},
			schema: nil,
			want:   model.CategoryC,
		},
		{
			name:   "no schema inferable",
			site:   model.CallSite{},
			schema: nil,
			want:   model.CategoryD,
		},
		{
			name:   "empty schema counts as uninferable",
			site:   model.CallSite{},
			schema: &model.SchemaModel{},
			want:   model.CategoryD,
		},
		{
			name: "custom serializer beats registry url",
			site: model.CallSite{
				CustomSerializer:  true,
				SchemaRegistryURL: "http://localhost:8081",
			},
			schema: someSchema(),
			want:   model.CategoryE,
		},
		{
			name: "registry url with plain serializer",
			site: model.CallSite{
				SchemaRegistryURL: "http://localhost:8081",
				Serializer:        "StringSerializer",
			},
			schema: someSchema(),
			want:   model.CategoryB,
		},
		{
			name: "unknown topic still classifies",
			site: model.CallSite{
				Topic:             model.TopicUnknown,
				SchemaRegistryURL: "http://localhost:8081",
				Serializer:        "KafkaAvroSerializer",
			},
			schema: someSchema(),
			want:   model.CategoryA,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := classifier.Classify(tc.site, tc.schema)
			assert.Equal(t, tc.want, result.Category)
		})
	}
}

func TestClassifier_RationaleRecordsEveryCondition(t *testing.T) {
	classifier := newClassifier(t)
	site := model.CallSite{
		ID:                "cs1",
		Topic:             "orders",
		App:               "billing",
		CustomSerializer:  true,
		SchemaRegistryURL: "http://localhost:8081",
		Serializer:        "KafkaAvroSerializer",
	}

	result := classifier.Classify(site, someSchema())
	assert.Equal(t, "cs1", result.CallSiteID)
	assert.Equal(t, "orders", result.Topic)
	assert.Equal(t, model.CategoryE, result.Category)

	// Every guard evaluation appears in the rationale, held or not, and
	// exactly one is marked as the deciding match.
	require.Len(t, result.Rationale, 5)
	matched := 0
	for _, condition := range result.Rationale {
		if condition.Matched {
			matched++
			assert.True(t, condition.Held)
			assert.Equal(t, "custom serializer bypasses registry", condition.Name)
		}
	}
	assert.Equal(t, 1, matched)
}

func TestClassifier_Deterministic(t *testing.T) {
	classifier := newClassifier(t)
	site := model.CallSite{ID: "cs1", SchemaRegistryURL: "http://localhost:8081", Serializer: "AvroSerializer"}

	first := classifier.Classify(site, someSchema())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, classifier.Classify(site, someSchema()))
	}
}
