// Package dotnet extracts normalized record schemas from C# class and record
// declarations.
package dotnet

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/streamlens/streamlens/model"
)

// csharpScalarKinds maps C# type names to the normalized type enum.
var csharpScalarKinds = map[string]model.TypeKind{
	"string": model.KindString, "String": model.KindString,
	"char": model.KindString, "Guid": model.KindString,
	"DateTime": model.KindString, "DateTimeOffset": model.KindString,
	"TimeSpan": model.KindString, "DateOnly": model.KindString,
	"int": model.KindInteger, "uint": model.KindInteger,
	"short": model.KindInteger, "ushort": model.KindInteger,
	"byte": model.KindInteger, "sbyte": model.KindInteger,
	"long": model.KindLong, "ulong": model.KindLong,
	"float": model.KindFloat,
	"double": model.KindDouble, "decimal": model.KindDouble,
	"bool": model.KindBoolean,
}

// Extractor converts C# data-model declarations into record schemas.
type Extractor struct{}

// New creates a C# schema extractor.
func New() *Extractor { return &Extractor{} }

// ExtractType returns the schema of the named class or record. Properties
// and instance fields are read in declaration order; positional record
// parameters count as properties.
func (e *Extractor) ExtractType(src []byte, typeName string) (*model.FieldSchema, []model.Warning, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())

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

func (b *builder) record(node *sitter.Node, name string, visited map[string]bool) *model.FieldSchema {
	record := model.NewRecord(name)

	// Positional record parameters: record Order(string Id, double Total);
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint32(0); i < params.NamedChildCount(); i++ {
			param := params.NamedChild(int(i))
			if param.Type() != "parameter" {
				continue
			}
			typeNode := param.ChildByFieldName("type")
			nameNode := param.ChildByFieldName("name")
			if typeNode == nil || nameNode == nil {
				continue
			}
			record.AddField(b.field(nameNode.Content(b.src), typeNode.Content(b.src), visited))
		}
	}

	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return record
	}
	for i := uint32(0); i < bodyNode.NamedChildCount(); i++ {
		child := bodyNode.NamedChild(int(i))
		switch child.Type() {
		case "property_declaration":
			typeNode := child.ChildByFieldName("type")
			nameNode := child.ChildByFieldName("name")
			if typeNode == nil || nameNode == nil {
				continue
			}
			record.AddField(b.field(nameNode.Content(b.src), typeNode.Content(b.src), visited))
		case "field_declaration":
			if isStatic(child, b.src) {
				continue
			}
			for j := uint32(0); j < child.NamedChildCount(); j++ {
				declaration := child.NamedChild(int(j))
				if declaration.Type() != "variable_declaration" {
					continue
				}
				typeNode := declaration.ChildByFieldName("type")
				if typeNode == nil {
					continue
				}
				for k := uint32(0); k < declaration.NamedChildCount(); k++ {
					declarator := declaration.NamedChild(int(k))
					if declarator.Type() != "variable_declarator" {
						continue
					}
					nameNode := declarator.ChildByFieldName("name")
					if nameNode == nil && declarator.NamedChildCount() > 0 {
						nameNode = declarator.NamedChild(0)
					}
					if nameNode == nil {
						continue
					}
					record.AddField(b.field(nameNode.Content(b.src), typeNode.Content(b.src), visited))
				}
			}
		}
	}
	return record
}

func (b *builder) field(name, typeText string, visited map[string]bool) *model.FieldSchema {
	schema := b.mapType(typeText, visited)
	schema.Name = name
	return schema
}

// mapType converts a C# type expression to the normalized schema model.
// Nullable reference/value syntax (T?) becomes the canonical null union.
func (b *builder) mapType(typeText string, visited map[string]bool) *model.FieldSchema {
	typeText = strings.TrimSpace(typeText)

	if strings.HasSuffix(typeText, "?") {
		return model.Nullable(b.mapType(strings.TrimSuffix(typeText, "?"), visited))
	}
	if strings.HasSuffix(typeText, "[]") {
		elem := b.mapType(strings.TrimSuffix(typeText, "[]"), visited)
		return &model.FieldSchema{Kind: model.KindArray, Elem: elem}
	}

	if base, args, ok := splitGeneric(typeText); ok {
		switch base {
		case "Nullable":
			return model.Nullable(b.mapType(args[0], visited))
		case "List", "IList", "IEnumerable", "ICollection", "IReadOnlyList", "HashSet", "ISet":
			return &model.FieldSchema{Kind: model.KindArray, Elem: b.mapType(args[0], visited)}
		case "Dictionary", "IDictionary", "IReadOnlyDictionary":
			if len(args) == 2 {
				return &model.FieldSchema{Kind: model.KindMap, Elem: b.mapType(args[1], visited)}
			}
		}
	}

	simple := simpleName(typeText)
	if kind, ok := csharpScalarKinds[simple]; ok {
		return &model.FieldSchema{Kind: kind}
	}

	if !visited[simple] {
		if node := findTypeDeclaration(b.root, b.src, simple); node != nil {
			visited[simple] = true
			return b.record(node, simple, visited)
		}
	}

	b.warnings = append(b.warnings, model.Warning{
		Kind:   model.WarnUnknownFieldType,
		Detail: fmt.Sprintf("unmapped C# type %s treated as string", typeText),
	})
	return &model.FieldSchema{Kind: model.KindString, Warning: "unmapped source type " + typeText}
}

func findTypeDeclaration(node *sitter.Node, src []byte, typeName string) *sitter.Node {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		switch child.Type() {
		case "class_declaration", "record_declaration", "struct_declaration":
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

func isStatic(node *sitter.Node, src []byte) bool {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		if child.Type() == "modifier" && child.Content(src) == "static" {
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
