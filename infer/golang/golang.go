// Package golang extracts normalized record schemas from Go struct
// declarations. Target trees are arbitrary checkouts that need not build, so
// extraction uses the tree-sitter grammar rather than the go/types loader.
package golang

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	golangsitter "github.com/smacker/go-tree-sitter/golang"

	"github.com/streamlens/streamlens/model"
)

// goScalarKinds maps Go type names to the normalized type enum. int maps to
// long because it is 64-bit on every deployment target that matters here.
var goScalarKinds = map[string]model.TypeKind{
	"string": model.KindString,
	"int":    model.KindLong, "int64": model.KindLong,
	"uint": model.KindLong, "uint64": model.KindLong,
	"int32": model.KindInteger, "int16": model.KindInteger, "int8": model.KindInteger,
	"uint32": model.KindInteger, "uint16": model.KindInteger, "uint8": model.KindInteger,
	"byte": model.KindInteger, "rune": model.KindInteger,
	"float32": model.KindFloat,
	"float64": model.KindDouble,
	"bool":    model.KindBoolean,
	"Time":    model.KindString, "Duration": model.KindString,
}

// Extractor converts Go struct declarations into record schemas.
type Extractor struct{}

// New creates a Go schema extractor.
func New() *Extractor { return &Extractor{} }

// ExtractType returns the schema of the named struct. Field names follow the
// json struct tag when present, matching what actually goes on the wire.
func (e *Extractor) ExtractType(src []byte, typeName string) (*model.FieldSchema, []model.Warning, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golangsitter.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse source: %w", err)
	}

	root := tree.RootNode()
	structNode := findStructType(root, src, typeName)
	if structNode == nil {
		return nil, nil, fmt.Errorf("type %s not declared in source", typeName)
	}

	b := &builder{src: src, root: root}
	schema := b.record(structNode, typeName, map[string]bool{typeName: true})
	return schema, b.warnings, nil
}

type builder struct {
	src      []byte
	root     *sitter.Node
	warnings []model.Warning
}

// record converts a struct_type node into a record schema.
func (b *builder) record(structNode *sitter.Node, name string, visited map[string]bool) *model.FieldSchema {
	record := model.NewRecord(name)
	var fieldList *sitter.Node
	for i := uint32(0); i < structNode.NamedChildCount(); i++ {
		if child := structNode.NamedChild(int(i)); child.Type() == "field_declaration_list" {
			fieldList = child
			break
		}
	}
	if fieldList == nil {
		return record
	}

	for i := uint32(0); i < fieldList.NamedChildCount(); i++ {
		declaration := fieldList.NamedChild(int(i))
		if declaration.Type() != "field_declaration" {
			continue
		}
		typeNode := declaration.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		tag := structTag(declaration, b.src)

		// One declaration may carry several names: A, B string.
		for j := uint32(0); j < declaration.NamedChildCount(); j++ {
			nameNode := declaration.NamedChild(int(j))
			if nameNode.Type() != "field_identifier" {
				continue
			}
			fieldName := nameNode.Content(b.src)
			schema := b.mapType(typeNode.Content(b.src), visited)
			if jsonName, omitEmpty := jsonTagName(tag); jsonName != "" {
				fieldName = jsonName
				if omitEmpty {
					schema = model.Nullable(schema)
				}
			}
			schema.Name = fieldName
			record.AddField(schema)
		}
	}
	return record
}

// mapType converts a Go type expression to the normalized schema model.
func (b *builder) mapType(typeText string, visited map[string]bool) *model.FieldSchema {
	typeText = strings.TrimSpace(typeText)

	switch {
	case strings.HasPrefix(typeText, "*"):
		return model.Nullable(b.mapType(typeText[1:], visited))
	case typeText == "[]byte":
		return &model.FieldSchema{Kind: model.KindString}
	case strings.HasPrefix(typeText, "[]"):
		return &model.FieldSchema{Kind: model.KindArray, Elem: b.mapType(typeText[2:], visited)}
	case strings.HasPrefix(typeText, "map["):
		if closing := strings.Index(typeText, "]"); closing != -1 {
			return &model.FieldSchema{Kind: model.KindMap, Elem: b.mapType(typeText[closing+1:], visited)}
		}
	}

	simple := simpleName(typeText)
	if kind, ok := goScalarKinds[simple]; ok {
		return &model.FieldSchema{Kind: kind}
	}

	if !visited[simple] {
		if structNode := findStructType(b.root, b.src, simple); structNode != nil {
			visited[simple] = true
			return b.record(structNode, simple, visited)
		}
	}

	b.warnings = append(b.warnings, model.Warning{
		Kind:   model.WarnUnknownFieldType,
		Detail: fmt.Sprintf("unmapped Go type %s treated as string", typeText),
	})
	return &model.FieldSchema{Kind: model.KindString, Warning: "unmapped source type " + typeText}
}

// findStructType locates `type <name> struct {...}` and returns the
// struct_type node.
func findStructType(node *sitter.Node, src []byte, typeName string) *sitter.Node {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		if child.Type() == "type_spec" {
			nameNode := child.ChildByFieldName("name")
			typeNode := child.ChildByFieldName("type")
			if nameNode != nil && typeNode != nil &&
				nameNode.Content(src) == typeName && typeNode.Type() == "struct_type" {
				return typeNode
			}
		}
		if found := findStructType(child, src, typeName); found != nil {
			return found
		}
	}
	return nil
}

func structTag(declaration *sitter.Node, src []byte) reflect.StructTag {
	tagNode := declaration.ChildByFieldName("tag")
	if tagNode == nil {
		return ""
	}
	return reflect.StructTag(strings.Trim(tagNode.Content(src), "`"))
}

// jsonTagName returns the wire name from a json struct tag and whether the
// field is marked omitempty.
func jsonTagName(tag reflect.StructTag) (string, bool) {
	value, ok := tag.Lookup("json")
	if !ok {
		return "", false
	}
	parts := strings.Split(value, ",")
	name := parts[0]
	if name == "-" {
		return "", false
	}
	omitEmpty := false
	for _, option := range parts[1:] {
		if option == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

func simpleName(qualified string) string {
	if idx := strings.LastIndex(qualified, "."); idx != -1 {
		return qualified[idx+1:]
	}
	return qualified
}
