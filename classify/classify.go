// Package classify maps producer call sites to the five-way risk
// classification via an explicit ordered decision table.
package classify

import (
	"github.com/streamlens/streamlens/catalog"
	"github.com/streamlens/streamlens/model"
)

// rule is one guard/result pair of the decision table.
type rule struct {
	name     string
	category model.Category
	guard    func(c *Classifier, site model.CallSite, schema *model.SchemaModel) bool
}

// rules is evaluated top to bottom; the first guard that holds decides the
// category. The ordering is a documented contract: the raw signals are
// independently settable booleans, so categories are not mutually exclusive
// without it.
var rules = []rule{
	{
		name:     "auto-register-schemas enabled",
		category: model.CategoryC,
		guard: func(_ *Classifier, site model.CallSite, _ *model.SchemaModel) bool {
			return site.AutoRegister
		},
	},
	{
		name:     "custom serializer bypasses registry",
		category: model.CategoryE,
		guard: func(_ *Classifier, site model.CallSite, _ *model.SchemaModel) bool {
			return site.CustomSerializer
		},
	},
	{
		name:     "schema inference failed",
		category: model.CategoryD,
		guard: func(_ *Classifier, _ model.CallSite, schema *model.SchemaModel) bool {
			return schema == nil || schema.Root == nil
		},
	},
	{
		name:     "registry URL with managed serializer",
		category: model.CategoryA,
		guard: func(c *Classifier, site model.CallSite, _ *model.SchemaModel) bool {
			if site.SchemaRegistryURL == "" {
				return false
			}
			_, registryAware := c.catalog.SerializerFormat(site.Serializer)
			return registryAware
		},
	},
	{
		name:     "no registry integration",
		category: model.CategoryB,
		guard: func(_ *Classifier, _ model.CallSite, _ *model.SchemaModel) bool {
			return true
		},
	},
}

// Classifier assigns risk categories to producer call sites.
type Classifier struct {
	catalog *catalog.Catalog
}

// New creates a Classifier over the given catalog.
func New(cat *catalog.Catalog) *Classifier {
	return &Classifier{catalog: cat}
}

// Classify evaluates the decision table for one producer call site. The
// schema may be nil when inference failed. Every guard is evaluated and
// recorded in the rationale, not only the one that matched, so results stay
// auditable. Classification never depends on topic resolution.
func (c *Classifier) Classify(site model.CallSite, schema *model.SchemaModel) model.ClassificationResult {
	result := model.ClassificationResult{
		CallSiteID: site.ID,
		Topic:      site.Topic,
		App:        site.App,
	}
	decided := false
	for _, r := range rules {
		held := r.guard(c, site, schema)
		condition := model.Condition{Name: r.name, Held: held}
		if held && !decided {
			condition.Matched = true
			result.Category = r.category
			decided = true
		}
		result.Rationale = append(result.Rationale, condition)
	}
	return result
}
