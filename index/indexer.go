// Package index walks a source tree, partitions it into manifest-rooted scan
// scopes and classifies files by ecosystem for the downstream scanners.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/afs"

	"github.com/streamlens/streamlens/catalog"
	"github.com/streamlens/streamlens/model"
)

// DefaultMaxFileSize bounds how much of a single file the indexer will load.
// Larger files degrade to a skipped-file warning.
const DefaultMaxFileSize = 2 << 20

// defaultExcludes covers vendor trees and build output across the supported
// ecosystems.
var defaultExcludes = []string{
	".git", "node_modules", "vendor", "target", "build", "out",
	"dist", "bin", "obj", "__pycache__", ".venv", "venv",
}

// testFilePatterns matches per-ecosystem test sources skipped when the
// indexer is configured to skip tests.
var testFilePatterns = []string{"*_test.go", "*Test.java", "*Tests.cs", "test_*.py", "*.spec.ts", "*.test.ts"}

// configExtensions are non-source files still indexed within a scope so the
// whole-tree flag scans can see serializer configuration.
var configExtensions = map[string]bool{
	".properties": true, ".yaml": true, ".yml": true, ".json": true,
	".toml": true, ".env": true, ".conf": true, ".ini": true, ".xml": true,
}

// Scope is one manifest-rooted subtree scanned independently. Monorepos with
// several manifests partition into several scopes; no state crosses scopes.
type Scope struct {
	Root      string          `json:"root"`
	Ecosystem model.Ecosystem `json:"ecosystem"`
	Name      string          `json:"name,omitempty"`
	Manifest  string          `json:"manifest"`
}

// entry is one indexed file; content is loaded lazily during Walk.
type entry struct {
	path  string
	scope *Scope
}

// Index is the immutable result of indexing a root directory. Walk may be
// called any number of times; each call restarts the sequence.
type Index struct {
	Root     string
	Scopes   []*Scope
	Warnings []model.Warning

	entries     []entry
	fs          afs.Service
	maxFileSize int64
}

// Indexer builds an Index for a root directory.
type Indexer struct {
	catalog     *catalog.Catalog
	fs          afs.Service
	excludes    []string
	skipTests   bool
	maxFileSize int64
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithExcludes adds exclusion globs matched against directory and file names.
func WithExcludes(globs ...string) Option {
	return func(i *Indexer) {
		i.excludes = append(i.excludes, globs...)
	}
}

// WithSkipTests controls whether test sources are indexed.
func WithSkipTests(skip bool) Option {
	return func(i *Indexer) {
		i.skipTests = skip
	}
}

// WithMaxFileSize overrides the per-file size budget in bytes.
func WithMaxFileSize(limit int64) Option {
	return func(i *Indexer) {
		i.maxFileSize = limit
	}
}

// New creates an Indexer using the catalog's manifest tables.
func New(cat *catalog.Catalog, options ...Option) *Indexer {
	indexer := &Indexer{
		catalog:     cat,
		fs:          afs.New(),
		excludes:    append([]string{}, defaultExcludes...),
		skipTests:   true,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, option := range options {
		option(indexer)
	}
	return indexer
}

// Index walks the tree under root and partitions it into scan scopes. The
// optional scopePath restricts indexing to a subdirectory of root. An
// unreadable root is the only fatal failure; everything else degrades to
// warnings on the returned Index.
func (i *Indexer) Index(ctx context.Context, root string, scopePath string) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("unreadable root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	start := absRoot
	if scopePath != "" {
		start = filepath.Join(absRoot, scopePath)
		if _, err := os.Stat(start); err != nil {
			return nil, fmt.Errorf("unreadable scope path %s: %w", scopePath, err)
		}
	}

	result := &Index{Root: absRoot, fs: i.fs, maxFileSize: i.maxFileSize}
	i.walkDir(ctx, start, nil, result)

	sort.Slice(result.Scopes, func(a, b int) bool {
		return result.Scopes[a].Root < result.Scopes[b].Root
	})
	return result, nil
}

// walkDir recurses through dir, tracking the innermost enclosing scope. A
// manifest of a different ecosystem in a nested directory opens a new scope
// that overrides the parent for everything below it.
func (i *Indexer) walkDir(ctx context.Context, dir string, scope *Scope, result *Index) {
	if ctx.Err() != nil {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		result.Warnings = append(result.Warnings, model.Warning{
			Kind: model.WarnFileUnreadable, Path: dir, Detail: err.Error(),
		})
		return
	}

	if detected := i.detectScope(dir, entries); detected != nil {
		scope = detected
		result.Scopes = append(result.Scopes, detected)
	}

	var subdirs []string
	for _, item := range entries {
		name := item.Name()
		if i.excluded(name) {
			continue
		}
		if item.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		if i.skipTests && isTestFile(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if scope == nil {
			if i.sourceExtension(name) {
				result.Warnings = append(result.Warnings, model.Warning{
					Kind: model.WarnEcosystemUndetermined, Path: path,
					Detail: "no recognized build manifest above this file",
				})
			}
			continue
		}
		if i.indexable(scope.Ecosystem, name) {
			result.entries = append(result.entries, entry{path: path, scope: scope})
		}
	}

	for _, name := range subdirs {
		i.walkDir(ctx, filepath.Join(dir, name), scope, result)
	}
}

// detectScope inspects directory entries for a build manifest. When several
// manifests coexist in one directory the lexicographically first decides, so
// partitioning stays deterministic.
func (i *Indexer) detectScope(dir string, entries []os.DirEntry) *Scope {
	var names []string
	for _, item := range entries {
		if !item.IsDir() {
			names = append(names, item.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		ecosystem := i.catalog.EcosystemForManifest(name)
		if !ecosystem.Known() {
			continue
		}
		manifest := filepath.Join(dir, name)
		return &Scope{
			Root:      dir,
			Ecosystem: ecosystem,
			Name:      projectName(manifest, ecosystem),
			Manifest:  manifest,
		}
	}
	return nil
}

func (i *Indexer) excluded(name string) bool {
	for _, pattern := range i.excludes {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// sourceExtension reports whether any supported ecosystem claims the file's
// extension.
func (i *Indexer) sourceExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, ecosystem := range []model.Ecosystem{
		model.EcosystemJava, model.EcosystemPython, model.EcosystemDotNet,
		model.EcosystemGo, model.EcosystemNodeTS,
	} {
		if ruleset := i.catalog.Ruleset(ecosystem); ruleset != nil && ruleset.HasExtension(ext) {
			return true
		}
	}
	return false
}

// indexable accepts scope-ecosystem sources plus config files needed by the
// flag scans.
func (i *Indexer) indexable(ecosystem model.Ecosystem, name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if configExtensions[ext] {
		return true
	}
	ruleset := i.catalog.Ruleset(ecosystem)
	return ruleset != nil && ruleset.HasExtension(ext)
}

func isTestFile(name string) bool {
	for _, pattern := range testFilePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// Walk streams indexed files to fn, loading content lazily. The sequence is
// restartable: each call begins at the first entry. Unreadable or oversized
// files are skipped and returned as warnings. Walk stops early when ctx is
// cancelled or fn returns an error.
func (x *Index) Walk(ctx context.Context, fn func(file *model.SourceFile) error) ([]model.Warning, error) {
	var warnings []model.Warning
	for _, item := range x.entries {
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
		info, err := os.Stat(item.path)
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind: model.WarnFileUnreadable, Path: item.path, Detail: err.Error(),
			})
			continue
		}
		if info.Size() > x.maxFileSize {
			warnings = append(warnings, model.Warning{
				Kind: model.WarnFileTooLarge, Path: item.path,
				Detail: fmt.Sprintf("%d bytes exceeds budget of %d", info.Size(), x.maxFileSize),
			})
			continue
		}
		content, err := x.fs.DownloadWithURL(ctx, item.path)
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind: model.WarnFileUnreadable, Path: item.path, Detail: err.Error(),
			})
			continue
		}
		file := &model.SourceFile{
			Path:      item.path,
			Ecosystem: item.scope.Ecosystem,
			ScopeRoot: item.scope.Root,
			Content:   content,
		}
		if err := fn(file); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

// Files loads every indexed file eagerly. Intended for tests and small trees;
// production callers should prefer Walk.
func (x *Index) Files(ctx context.Context) ([]*model.SourceFile, []model.Warning, error) {
	var files []*model.SourceFile
	warnings, err := x.Walk(ctx, func(file *model.SourceFile) error {
		files = append(files, file)
		return nil
	})
	return files, warnings, err
}

// ScopeFor returns the innermost scope containing path, nil when outside all
// scopes.
func (x *Index) ScopeFor(path string) *Scope {
	var best *Scope
	for _, scope := range x.Scopes {
		if path == scope.Root || strings.HasPrefix(path, scope.Root+string(filepath.Separator)) {
			if best == nil || len(scope.Root) > len(best.Root) {
				best = scope
			}
		}
	}
	return best
}
