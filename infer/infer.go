// Package infer resolves the value schema for a call site: from the declared
// data-model type when one is referenced, otherwise from a co-located sample
// data file. Ecosystem-specific extraction converges on the normalized
// FieldSchema model.
package infer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/streamlens/streamlens/infer/dotnet"
	"github.com/streamlens/streamlens/infer/golang"
	"github.com/streamlens/streamlens/infer/java"
	"github.com/streamlens/streamlens/infer/nodets"
	"github.com/streamlens/streamlens/infer/python"
	"github.com/streamlens/streamlens/model"
)

// Extractor locates a named type declaration in source and returns its
// normalized record schema. Implementations are per ecosystem.
type Extractor interface {
	// ExtractType returns the schema of the named type, or an error when the
	// source does not declare it. Warnings carry degraded mappings (unknown
	// source types demoted to string).
	ExtractType(src []byte, typeName string) (*model.FieldSchema, []model.Warning, error)
}

// Engine resolves schema models for call sites.
type Engine struct {
	extractors map[model.Ecosystem]Extractor
}

// New creates an Engine with extractors for all supported ecosystems.
func New() *Engine {
	return &Engine{
		extractors: map[model.Ecosystem]Extractor{
			model.EcosystemJava:   java.New(),
			model.EcosystemPython: python.New(),
			model.EcosystemDotNet: dotnet.New(),
			model.EcosystemGo:     golang.New(),
			model.EcosystemNodeTS: nodets.New(),
		},
	}
}

// Infer produces a schema model for the call site. Resolution order: the
// declared type located among the scope's files, then a checked-in Avro
// schema next to the call site, then a co-located sample JSON file. When
// nothing succeeds Infer returns a nil
// model and a TypeUnresolvable warning; the caller records the producer as a
// Category D candidate. Inference failure is never an error.
func (e *Engine) Infer(ctx context.Context, site model.CallSite, scopeFiles []*model.SourceFile) (*model.SchemaModel, []model.Warning) {
	var warnings []model.Warning

	if site.TypeRef != "" {
		schema, typeWarnings := e.fromDeclaredType(site, scopeFiles)
		warnings = append(warnings, typeWarnings...)
		if schema != nil {
			return &model.SchemaModel{
				CallSiteID: site.ID,
				Root:       schema,
				Provenance: model.ProvenanceDeclaredType,
				Format:     model.FormatUnknown,
				Validation: "unvalidated",
			}, warnings
		}
	}

	if schema := e.fromSchemaFile(site); schema != nil {
		return &model.SchemaModel{
			CallSiteID: site.ID,
			Root:       schema,
			Provenance: model.ProvenanceExistingSchemaFile,
			Format:     model.FormatAvro,
			Validation: "unvalidated",
		}, warnings
	}

	if schema := e.fromSample(site); schema != nil {
		return &model.SchemaModel{
			CallSiteID: site.ID,
			Root:       schema,
			Provenance: model.ProvenanceInferredFromSample,
			Format:     model.FormatUnknown,
			Validation: "unvalidated",
		}, warnings
	}

	detail := "no declared type or sample data resolvable"
	if site.TypeRef != "" {
		detail = fmt.Sprintf("type %s not found in scope", site.TypeRef)
	}
	warnings = append(warnings, model.Warning{
		Kind: model.WarnTypeUnresolvable, Path: site.Path, Detail: detail,
	})
	return nil, warnings
}

// fromDeclaredType searches the scope's sources for the referenced type. The
// call-site file is tried first, then remaining files in path order so
// resolution stays deterministic.
func (e *Engine) fromDeclaredType(site model.CallSite, scopeFiles []*model.SourceFile) (*model.FieldSchema, []model.Warning) {
	extractor := e.extractors[site.Ecosystem]
	if extractor == nil {
		return nil, nil
	}
	typeName := simpleTypeName(site.TypeRef)

	candidates := make([]*model.SourceFile, 0, len(scopeFiles))
	for _, file := range scopeFiles {
		if file.Ecosystem != site.Ecosystem {
			continue
		}
		if !bytes.Contains(file.Content, []byte(typeName)) {
			continue
		}
		candidates = append(candidates, file)
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].Path == site.Path {
			return true
		}
		if candidates[b].Path == site.Path {
			return false
		}
		return candidates[a].Path < candidates[b].Path
	})

	var warnings []model.Warning
	for _, file := range candidates {
		schema, fileWarnings, err := extractor.ExtractType(file.Content, typeName)
		if err != nil {
			continue
		}
		for i := range fileWarnings {
			if fileWarnings[i].Path == "" {
				fileWarnings[i].Path = file.Path
			}
		}
		warnings = append(warnings, fileWarnings...)
		return schema, warnings
	}
	return nil, warnings
}

// fromSchemaFile looks for a checked-in Avro schema (.avsc) next to the call
// site. An existing schema beats re-deriving one from samples.
func (e *Engine) fromSchemaFile(site model.CallSite) *model.FieldSchema {
	dir := filepath.Dir(site.Path)
	var candidates []string
	if site.TypeRef != "" {
		candidates = append(candidates, filepath.Join(dir, strings.ToLower(simpleTypeName(site.TypeRef))+".avsc"))
	}
	if site.Topic != "" && site.Topic != model.TopicUnknown {
		candidates = append(candidates, filepath.Join(dir, site.Topic+".avsc"))
	}
	if matches, err := filepath.Glob(filepath.Join(dir, "*.avsc")); err == nil {
		sort.Strings(matches)
		candidates = append(candidates, matches...)
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		schema, err := FromAvroSchema(data)
		if err != nil {
			continue
		}
		return schema
	}
	return nil
}

// fromSample looks for sample JSON next to the call site: a file named after
// the referenced type or topic, or any single *.sample.json in the same
// directory.
func (e *Engine) fromSample(site model.CallSite) *model.FieldSchema {
	dir := filepath.Dir(site.Path)
	var candidates []string
	if site.TypeRef != "" {
		base := strings.ToLower(simpleTypeName(site.TypeRef))
		candidates = append(candidates,
			filepath.Join(dir, base+".json"),
			filepath.Join(dir, base+".sample.json"),
		)
	}
	if site.Topic != "" && site.Topic != model.TopicUnknown {
		candidates = append(candidates, filepath.Join(dir, site.Topic+".sample.json"))
	}
	if matches, err := filepath.Glob(filepath.Join(dir, "*.sample.json")); err == nil {
		sort.Strings(matches)
		candidates = append(candidates, matches...)
	}

	name := simpleTypeName(site.TypeRef)
	if name == "" {
		name = site.Topic
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		schema, err := FromSample(name, data)
		if err != nil {
			continue
		}
		return schema
	}
	return nil
}

// simpleTypeName strips any package or namespace qualifier.
func simpleTypeName(qualified string) string {
	if idx := strings.LastIndex(qualified, "."); idx != -1 {
		return qualified[idx+1:]
	}
	return qualified
}
