// Package python extracts normalized record schemas from Python class and
// dataclass declarations.
package python

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	pythonsitter "github.com/smacker/go-tree-sitter/python"

	"github.com/streamlens/streamlens/model"
)

// pythonScalarKinds maps Python annotation names to the normalized type enum.
// Python ints are arbitrary precision, so they map to long.
var pythonScalarKinds = map[string]model.TypeKind{
	"str":      model.KindString,
	"int":      model.KindLong,
	"float":    model.KindDouble,
	"bool":     model.KindBoolean,
	"bytes":    model.KindString,
	"datetime": model.KindString,
	"date":     model.KindString,
	"time":     model.KindString,
	"Decimal":  model.KindDouble,
	"UUID":     model.KindString,
}

// Extractor converts Python data-model declarations into record schemas.
type Extractor struct{}

// New creates a Python schema extractor.
func New() *Extractor { return &Extractor{} }

// ExtractType returns the schema of the named class, reading annotated class
// attributes in declaration order. Dataclasses and plain annotated classes
// look identical at this level.
func (e *Extractor) ExtractType(src []byte, typeName string) (*model.FieldSchema, []model.Warning, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(pythonsitter.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse source: %w", err)
	}

	root := tree.RootNode()
	node := findClassDefinition(root, src, typeName)
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

func (b *builder) record(classNode *sitter.Node, name string, visited map[string]bool) *model.FieldSchema {
	record := model.NewRecord(name)
	bodyNode := classNode.ChildByFieldName("body")
	if bodyNode == nil {
		return record
	}
	for i := uint32(0); i < bodyNode.NamedChildCount(); i++ {
		statement := bodyNode.NamedChild(int(i))
		if statement.Type() != "expression_statement" || statement.NamedChildCount() == 0 {
			continue
		}
		assignment := statement.NamedChild(0)
		if assignment.Type() != "assignment" {
			continue
		}
		leftNode := assignment.ChildByFieldName("left")
		typeNode := assignment.ChildByFieldName("type")
		if leftNode == nil || typeNode == nil || leftNode.Type() != "identifier" {
			continue
		}

		fieldName := leftNode.Content(b.src)
		schema := b.mapType(typeNode.Content(b.src), visited)
		schema.Name = fieldName
		if defaultsToNone(assignment, b.src) {
			schema = model.Nullable(schema)
		}
		record.AddField(schema)
	}
	return record
}

// mapType converts a Python type annotation to the normalized schema model.
func (b *builder) mapType(annotation string, visited map[string]bool) *model.FieldSchema {
	annotation = strings.TrimSpace(annotation)

	// PEP 604 unions: T | None.
	if strings.Contains(annotation, "|") {
		parts := strings.Split(annotation, "|")
		var nonNull []string
		sawNone := false
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "None" {
				sawNone = true
				continue
			}
			nonNull = append(nonNull, part)
		}
		if sawNone && len(nonNull) == 1 {
			return model.Nullable(b.mapType(nonNull[0], visited))
		}
	}

	if base, args, ok := splitSubscript(annotation); ok {
		switch base {
		case "Optional":
			return model.Nullable(b.mapType(args[0], visited))
		case "Union":
			var nonNull []string
			sawNone := false
			for _, arg := range args {
				if arg == "None" {
					sawNone = true
					continue
				}
				nonNull = append(nonNull, arg)
			}
			if sawNone && len(nonNull) == 1 {
				return model.Nullable(b.mapType(nonNull[0], visited))
			}
		case "List", "list", "Sequence", "Set", "set", "FrozenSet", "Tuple", "tuple":
			return &model.FieldSchema{Kind: model.KindArray, Elem: b.mapType(args[0], visited)}
		case "Dict", "dict", "Mapping", "MutableMapping":
			if len(args) == 2 {
				return &model.FieldSchema{Kind: model.KindMap, Elem: b.mapType(args[1], visited)}
			}
		}
	}

	simple := simpleName(annotation)
	if kind, ok := pythonScalarKinds[simple]; ok {
		return &model.FieldSchema{Kind: kind}
	}

	if !visited[simple] {
		if node := findClassDefinition(b.root, b.src, simple); node != nil {
			visited[simple] = true
			return b.record(node, simple, visited)
		}
	}

	b.warnings = append(b.warnings, model.Warning{
		Kind:   model.WarnUnknownFieldType,
		Detail: fmt.Sprintf("unmapped Python annotation %s treated as string", annotation),
	})
	return &model.FieldSchema{Kind: model.KindString, Warning: "unmapped source type " + annotation}
}

// findClassDefinition locates a class by name, descending through decorated
// definitions and nested classes.
func findClassDefinition(node *sitter.Node, src []byte, typeName string) *sitter.Node {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		if child.Type() == "class_definition" {
			if nameNode := child.ChildByFieldName("name"); nameNode != nil && nameNode.Content(src) == typeName {
				return child
			}
		}
		if found := findClassDefinition(child, src, typeName); found != nil {
			return found
		}
	}
	return nil
}

// defaultsToNone reports whether the annotated attribute carries an explicit
// null default, either `= None` or `field(default=None)`.
func defaultsToNone(assignment *sitter.Node, src []byte) bool {
	rightNode := assignment.ChildByFieldName("right")
	if rightNode == nil {
		return false
	}
	text := rightNode.Content(src)
	return text == "None" || strings.Contains(text, "default=None")
}

// splitSubscript decomposes Foo[A, B] into its base name and top-level
// arguments.
func splitSubscript(annotation string) (string, []string, bool) {
	open := strings.Index(annotation, "[")
	if open == -1 || !strings.HasSuffix(annotation, "]") {
		return "", nil, false
	}
	base := simpleName(strings.TrimSpace(annotation[:open]))
	inner := annotation[open+1 : len(annotation)-1]

	var args []string
	depth, start := 0, 0
	for i, ch := range inner {
		switch ch {
		case '[':
			depth++
		case ']':
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
