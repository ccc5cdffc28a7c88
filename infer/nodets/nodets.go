// Package nodets extracts normalized record schemas from TypeScript
// interface and type-alias declarations.
package nodets

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tssitter "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/streamlens/streamlens/model"
)

// tsScalarKinds maps TypeScript type names to the normalized type enum.
// number is double on the wire; bigint is the only integral numeric type.
var tsScalarKinds = map[string]model.TypeKind{
	"string":  model.KindString,
	"number":  model.KindDouble,
	"bigint":  model.KindLong,
	"boolean": model.KindBoolean,
	"Date":    model.KindString,
}

// Extractor converts TypeScript data-model declarations into record schemas.
type Extractor struct{}

// New creates a TypeScript schema extractor.
func New() *Extractor { return &Extractor{} }

// ExtractType returns the schema of the named interface or object type
// alias. Optional properties (name?) become nullable unions.
func (e *Extractor) ExtractType(src []byte, typeName string) (*model.FieldSchema, []model.Warning, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(tssitter.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse source: %w", err)
	}

	root := tree.RootNode()
	bodyNode := findObjectType(root, src, typeName)
	if bodyNode == nil {
		return nil, nil, fmt.Errorf("type %s not declared in source", typeName)
	}

	b := &builder{src: src, root: root}
	schema := b.record(bodyNode, typeName, map[string]bool{typeName: true})
	return schema, b.warnings, nil
}

type builder struct {
	src      []byte
	root     *sitter.Node
	warnings []model.Warning
}

// record converts an object type body into a record schema.
func (b *builder) record(bodyNode *sitter.Node, name string, visited map[string]bool) *model.FieldSchema {
	record := model.NewRecord(name)
	for i := uint32(0); i < bodyNode.NamedChildCount(); i++ {
		property := bodyNode.NamedChild(int(i))
		if property.Type() != "property_signature" {
			continue
		}
		nameNode := property.ChildByFieldName("name")
		typeNode := property.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		// The type field is a type_annotation wrapping the actual type.
		actual := typeNode
		if typeNode.Type() == "type_annotation" && typeNode.NamedChildCount() > 0 {
			actual = typeNode.NamedChild(0)
		}

		schema := b.mapType(actual.Content(b.src), visited)
		schema.Name = nameNode.Content(b.src)
		if isOptional(property) {
			schema = model.Nullable(schema)
		}
		record.AddField(schema)
	}
	return record
}

// mapType converts a TypeScript type expression to the normalized schema
// model.
func (b *builder) mapType(typeText string, visited map[string]bool) *model.FieldSchema {
	typeText = strings.TrimSpace(typeText)

	// Unions: T | null and T | undefined collapse to the canonical null
	// union; richer unions are not modeled.
	if strings.Contains(typeText, "|") {
		parts := strings.Split(typeText, "|")
		var nonNull []string
		sawNull := false
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "null" || part == "undefined" {
				sawNull = true
				continue
			}
			nonNull = append(nonNull, part)
		}
		if sawNull && len(nonNull) == 1 {
			return model.Nullable(b.mapType(nonNull[0], visited))
		}
	}

	if strings.HasSuffix(typeText, "[]") {
		elem := b.mapType(strings.TrimSuffix(typeText, "[]"), visited)
		return &model.FieldSchema{Kind: model.KindArray, Elem: elem}
	}
	if base, args, ok := splitGeneric(typeText); ok {
		switch base {
		case "Array", "Set", "ReadonlyArray":
			return &model.FieldSchema{Kind: model.KindArray, Elem: b.mapType(args[0], visited)}
		case "Record", "Map":
			if len(args) == 2 {
				return &model.FieldSchema{Kind: model.KindMap, Elem: b.mapType(args[1], visited)}
			}
		}
	}

	if kind, ok := tsScalarKinds[typeText]; ok {
		return &model.FieldSchema{Kind: kind}
	}

	if !visited[typeText] {
		if bodyNode := findObjectType(b.root, b.src, typeText); bodyNode != nil {
			visited[typeText] = true
			return b.record(bodyNode, typeText, visited)
		}
	}

	b.warnings = append(b.warnings, model.Warning{
		Kind:   model.WarnUnknownFieldType,
		Detail: fmt.Sprintf("unmapped TypeScript type %s treated as string", typeText),
	})
	return &model.FieldSchema{Kind: model.KindString, Warning: "unmapped source type " + typeText}
}

// findObjectType locates the object-type body of a named interface or type
// alias.
func findObjectType(node *sitter.Node, src []byte, typeName string) *sitter.Node {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		switch child.Type() {
		case "interface_declaration":
			nameNode := child.ChildByFieldName("name")
			bodyNode := child.ChildByFieldName("body")
			if nameNode != nil && bodyNode != nil && nameNode.Content(src) == typeName {
				return bodyNode
			}
		case "type_alias_declaration":
			nameNode := child.ChildByFieldName("name")
			valueNode := child.ChildByFieldName("value")
			if nameNode != nil && valueNode != nil &&
				nameNode.Content(src) == typeName && valueNode.Type() == "object_type" {
				return valueNode
			}
		}
		if found := findObjectType(child, src, typeName); found != nil {
			return found
		}
	}
	return nil
}

// isOptional reports whether the property carries the ? marker.
func isOptional(property *sitter.Node) bool {
	for i := 0; i < int(property.ChildCount()); i++ {
		if property.Child(i).Type() == "?" {
			return true
		}
	}
	return false
}

func splitGeneric(typeText string) (string, []string, bool) {
	open := strings.Index(typeText, "<")
	if open == -1 || !strings.HasSuffix(typeText, ">") {
		return "", nil, false
	}
	base := strings.TrimSpace(typeText[:open])
	inner := typeText[open+1 : len(typeText)-1]

	var args []string
	depth, start := 0, 0
	for i, ch := range inner {
		switch ch {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(inner[start:]))
	return base, args, true
}
