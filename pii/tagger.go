// Package pii tags schema fields with data-sensitivity markers by heuristic
// field-name matching. Tagging is heuristic by design: false positives are
// expected and corrected by a human reviewer downstream, never by the tagger.
package pii

import (
	"strings"

	"github.com/streamlens/streamlens/catalog"
	"github.com/streamlens/streamlens/model"
)

// Tagger applies the catalog's PII rules to schema trees.
type Tagger struct {
	catalog *catalog.Catalog
}

// New creates a Tagger over the given catalog.
func New(cat *catalog.Catalog) *Tagger {
	return &Tagger{catalog: cat}
}

// Tag unions matched tags into every field of the schema tree, nested
// records included. Tag is idempotent: tag sets, not lists, absorb repeated
// application.
func (t *Tagger) Tag(schema *model.SchemaModel) *model.SchemaModel {
	if schema == nil || schema.Root == nil {
		return schema
	}
	schema.Root.Walk(func(field *model.FieldSchema) {
		tags := t.catalog.PIITags(Normalize(field.Name))
		if len(tags) > 0 {
			field.Tags.Add(tags...)
		}
	})
	return schema
}

var separatorReplacer = strings.NewReplacer("_", "", "-", "", ".", "", " ", "")

// Normalize canonicalizes a field name for rule matching: lowercased with
// separators stripped, so order_total, orderTotal and order-total all
// normalize to ordertotal.
func Normalize(name string) string {
	return separatorReplacer.Replace(strings.ToLower(name))
}
