package model

import (
	"encoding/json"
	"sort"
)

// TypeKind enumerates the normalized semantic types every source ecosystem
// converges on. Container kinds carry their element schema in FieldSchema.
type TypeKind string

const (
	KindString  TypeKind = "string"
	KindInteger TypeKind = "integer"
	KindLong    TypeKind = "long"
	KindFloat   TypeKind = "float"
	KindDouble  TypeKind = "double"
	KindBoolean TypeKind = "boolean"
	KindArray   TypeKind = "array"
	KindMap     TypeKind = "map"
	KindRecord  TypeKind = "record"
	KindUnion   TypeKind = "union"
)

// PIITag is a data-sensitivity tag attached to schema fields.
type PIITag string

const (
	TagPII       PIITag = "PII"
	TagPrivate   PIITag = "PRIVATE"
	TagSensitive PIITag = "SENSITIVE"
	TagPHI       PIITag = "PHI"
	TagPublic    PIITag = "PUBLIC"
)

// TagSet is a set of PII tags. Set semantics keep tagging idempotent.
type TagSet map[PIITag]bool

// Add unions the given tags into the set, allocating on first use.
func (s *TagSet) Add(tags ...PIITag) {
	if *s == nil {
		*s = make(TagSet, len(tags))
	}
	for _, tag := range tags {
		(*s)[tag] = true
	}
}

// Has reports whether the set contains the tag.
func (s TagSet) Has(tag PIITag) bool { return s[tag] }

// MarshalJSON renders the set as a sorted tag list.
func (s TagSet) MarshalJSON() ([]byte, error) {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)
	return json.Marshal(tags)
}

// FieldSchema is one node of the normalized schema tree.
//
// Invariants: a record's field names are unique within that record; a union is
// only ever the 2-arm null/non-null wrapper produced by Nullable.
type FieldSchema struct {
	Name     string   `json:"name,omitempty"`
	Kind     TypeKind `json:"kind"`
	Nullable bool     `json:"nullable,omitempty"`
	Tags     TagSet   `json:"tags,omitempty"`

	// Elem is the element schema for arrays and maps, and the non-null arm
	// for unions. Map keys are always strings in the modeled ecosystems.
	Elem *FieldSchema `json:"elem,omitempty"`

	// RecordName and Fields are populated for KindRecord only. Field order
	// is declaration order, which positional formats depend on.
	RecordName string         `json:"recordName,omitempty"`
	Fields     []*FieldSchema `json:"fields,omitempty"`

	// DefaultNull marks a union carrying an explicit null default, required
	// for schema-evolution correctness of optional fields.
	DefaultNull bool `json:"defaultNull,omitempty"`

	// Warning carries an inference annotation, e.g. an unmapped source type
	// degraded to string.
	Warning string `json:"warning,omitempty"`

	fieldIndex map[string]int
}

// AddField appends a field to a record schema, replacing any previous field
// of the same name to keep record field names unique.
func (f *FieldSchema) AddField(field *FieldSchema) {
	if f.fieldIndex == nil {
		f.fieldIndex = make(map[string]int)
	}
	if idx, ok := f.fieldIndex[field.Name]; ok {
		f.Fields[idx] = field
		return
	}
	f.Fields = append(f.Fields, field)
	f.fieldIndex[field.Name] = len(f.Fields) - 1
}

// GetField retrieves a record field by name.
func (f *FieldSchema) GetField(name string) *FieldSchema {
	if f.fieldIndex == nil {
		return nil
	}
	if idx, ok := f.fieldIndex[name]; ok && idx < len(f.Fields) {
		return f.Fields[idx]
	}
	return nil
}

// Nullable wraps a schema into the canonical 2-arm null/non-null union with a
// default-null marker. Wrapping an already nullable schema is a no-op.
func Nullable(schema *FieldSchema) *FieldSchema {
	if schema.Kind == KindUnion {
		return schema
	}
	return &FieldSchema{
		Name:        schema.Name,
		Kind:        KindUnion,
		Nullable:    true,
		DefaultNull: true,
		Elem:        schema,
	}
}

// NewRecord creates an empty record schema.
func NewRecord(name string) *FieldSchema {
	return &FieldSchema{Name: name, Kind: KindRecord, RecordName: name}
}

// Walk visits the field and every nested field depth-first. Union and
// container element schemas are traversed through.
func (f *FieldSchema) Walk(visit func(*FieldSchema)) {
	visit(f)
	if f.Elem != nil {
		f.Elem.Walk(visit)
	}
	for _, field := range f.Fields {
		field.Walk(visit)
	}
}

// Provenance records where a schema model came from.
type Provenance string

const (
	ProvenanceDeclaredType       Provenance = "declared-type"
	ProvenanceInferredFromSample Provenance = "inferred-from-sample"
	ProvenanceExistingSchemaFile Provenance = "existing-schema-file"
)

// Format is the target serialization format hint for a schema.
type Format string

const (
	FormatAvro     Format = "avro"
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
	FormatUnknown  Format = "unknown"
)

// SchemaModel is the inferred schema for one call site: a top-level record
// plus provenance and a target-format hint. The PII tagger is the only
// mutator; downstream consumers read it immutably.
type SchemaModel struct {
	CallSiteID string       `json:"callSiteID"`
	Root       *FieldSchema `json:"root"`
	Provenance Provenance   `json:"provenance"`
	Format     Format       `json:"format"`

	// Validation reflects the external collaborator outcome; defaults to
	// "unvalidated" when no validator is configured.
	Validation string `json:"validation"`
}
