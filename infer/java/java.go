// Package java extracts normalized record schemas from Java class and record
// declarations.
package java

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	javasitter "github.com/smacker/go-tree-sitter/java"

	"github.com/streamlens/streamlens/model"
)

// javaScalarKinds maps Java scalar type names to the normalized type enum.
var javaScalarKinds = map[string]model.TypeKind{
	"int": model.KindInteger, "Integer": model.KindInteger,
	"short": model.KindInteger, "Short": model.KindInteger,
	"byte": model.KindInteger, "Byte": model.KindInteger,
	"long": model.KindLong, "Long": model.KindLong,
	"float": model.KindFloat, "Float": model.KindFloat,
	"double": model.KindDouble, "Double": model.KindDouble,
	"BigDecimal": model.KindDouble,
	"boolean": model.KindBoolean, "Boolean": model.KindBoolean,
	"char": model.KindString, "Character": model.KindString,
	"String": model.KindString, "CharSequence": model.KindString,
	"UUID": model.KindString, "Instant": model.KindString,
	"LocalDate": model.KindString, "LocalDateTime": model.KindString,
	"Date": model.KindString,
}

// nullableAnnotations marks a field as optional regardless of its type.
var nullableAnnotations = []string{"@Nullable", "@javax.annotation.Nullable"}

// Extractor converts Java data-model declarations into record schemas.
type Extractor struct{}

// New creates a Java schema extractor.
func New() *Extractor { return &Extractor{} }

// ExtractType returns the schema of the named class or record, or an error
// when the source does not declare it.
func (e *Extractor) ExtractType(src []byte, typeName string) (*model.FieldSchema, []model.Warning, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javasitter.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse source: %w", err)
	}

	root := tree.RootNode()
	node := findTypeDeclaration(root, src, typeName)
	if node == nil {
		return nil, nil, fmt.Errorf("type %s not declared in source", typeName)
	}

	b := &builder{src: src, root: root}
	schema := b.record(node, typeName, map[string]bool{typeName: true})
	return schema, b.warnings, nil
}

type builder struct {
	src      []byte
	root     *sitter.Node
	warnings []model.Warning
}

// record converts a class or record declaration into a record schema,
// preserving field declaration order.
func (b *builder) record(node *sitter.Node, name string, visited map[string]bool) *model.FieldSchema {
	record := model.NewRecord(name)

	// Java records declare their components as constructor-style parameters.
	if node.Type() == "record_declaration" {
		if params := node.ChildByFieldName("parameters"); params != nil {
			for i := uint32(0); i < params.NamedChildCount(); i++ {
				param := params.NamedChild(int(i))
				if param.Type() != "formal_parameter" {
					continue
				}
				typeNode := param.ChildByFieldName("type")
				nameNode := param.ChildByFieldName("name")
				if typeNode == nil || nameNode == nil {
					continue
				}
				record.AddField(b.field(nameNode.Content(b.src), typeNode.Content(b.src), false, visited))
			}
		}
		return record
	}

	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return record
	}
	for i := uint32(0); i < bodyNode.NamedChildCount(); i++ {
		child := bodyNode.NamedChild(int(i))
		if child.Type() != "field_declaration" {
			continue
		}
		if isStatic(child) {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		declaratorNode := child.ChildByFieldName("declarator")
		if typeNode == nil || declaratorNode == nil {
			continue
		}
		nameNode := declaratorNode.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		record.AddField(b.field(
			nameNode.Content(b.src),
			typeNode.Content(b.src),
			hasNullableAnnotation(child, b.src),
			visited,
		))
	}
	return record
}

// field maps one declared field, wrapping optional fields into the canonical
// null union.
func (b *builder) field(name, typeText string, annotatedNullable bool, visited map[string]bool) *model.FieldSchema {
	schema := b.mapType(typeText, visited)
	schema.Name = name
	if annotatedNullable {
		return model.Nullable(schema)
	}
	return schema
}

// mapType converts a Java type expression to the normalized schema model.
// Unmapped types degrade to string with a warning rather than failing the
// inference.
func (b *builder) mapType(typeText string, visited map[string]bool) *model.FieldSchema {
	typeText = strings.TrimSpace(typeText)

	if strings.HasSuffix(typeText, "[]") {
		elem := b.mapType(strings.TrimSuffix(typeText, "[]"), visited)
		return &model.FieldSchema{Kind: model.KindArray, Elem: elem}
	}

	if base, args, ok := splitGeneric(typeText); ok {
		switch base {
		case "Optional":
			return model.Nullable(b.mapType(args[0], visited))
		case "List", "Set", "Collection", "Iterable", "ArrayList", "LinkedList":
			return &model.FieldSchema{Kind: model.KindArray, Elem: b.mapType(args[0], visited)}
		case "Map", "HashMap", "TreeMap":
			if len(args) == 2 {
				return &model.FieldSchema{Kind: model.KindMap, Elem: b.mapType(args[1], visited)}
			}
		}
	}

	simple := simpleName(typeText)
	if kind, ok := javaScalarKinds[simple]; ok {
		return &model.FieldSchema{Kind: kind}
	}

	// A class declared in the same compilation unit becomes a nested record.
	if !visited[simple] {
		if node := findTypeDeclaration(b.root, b.src, simple); node != nil {
			visited[simple] = true
			return b.record(node, simple, visited)
		}
	}

	b.warnings = append(b.warnings, model.Warning{
		Kind:   model.WarnUnknownFieldType,
		Detail: fmt.Sprintf("unmapped Java type %s treated as string", typeText),
	})
	return &model.FieldSchema{Kind: model.KindString, Warning: "unmapped source type " + typeText}
}

// findTypeDeclaration walks the AST for a class or record declaration with
// the given name, descending into nested class bodies.
func findTypeDeclaration(node *sitter.Node, src []byte, typeName string) *sitter.Node {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		switch child.Type() {
		case "class_declaration", "record_declaration":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil && nameNode.Content(src) == typeName {
				return child
			}
		}
		if found := findTypeDeclaration(child, src, typeName); found != nil {
			return found
		}
	}
	return nil
}

func isStatic(fieldNode *sitter.Node) bool {
	if fieldNode.NamedChildCount() == 0 || fieldNode.NamedChild(0).Type() != "modifiers" {
		return false
	}
	modifiers := fieldNode.NamedChild(0)
	for i := uint32(0); i < modifiers.NamedChildCount(); i++ {
		if modifiers.NamedChild(int(i)).Type() == "static" {
			return true
		}
	}
	return false
}

func hasNullableAnnotation(fieldNode *sitter.Node, src []byte) bool {
	if fieldNode.NamedChildCount() == 0 || fieldNode.NamedChild(0).Type() != "modifiers" {
		return false
	}
	text := fieldNode.NamedChild(0).Content(src)
	for _, annotation := range nullableAnnotations {
		if strings.Contains(text, annotation) {
			return true
		}
	}
	return false
}

// splitGeneric decomposes Foo<A, B> into its base name and top-level type
// arguments.
func splitGeneric(typeText string) (string, []string, bool) {
	open := strings.Index(typeText, "<")
	if open == -1 || !strings.HasSuffix(typeText, ">") {
		return "", nil, false
	}
	base := simpleName(strings.TrimSpace(typeText[:open]))
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

func simpleName(qualified string) string {
	if idx := strings.LastIndex(qualified, "."); idx != -1 {
		return qualified[idx+1:]
	}
	return qualified
}
