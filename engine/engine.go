// Package engine orchestrates a full scan: indexing, call-site scanning,
// schema inference, PII tagging and producer classification, with files
// processed concurrently and results aggregated order-independently.
package engine

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/streamlens/streamlens/catalog"
	"github.com/streamlens/streamlens/classify"
	"github.com/streamlens/streamlens/index"
	"github.com/streamlens/streamlens/infer"
	"github.com/streamlens/streamlens/model"
	"github.com/streamlens/streamlens/pii"
	"github.com/streamlens/streamlens/registry"
	"github.com/streamlens/streamlens/scanner"
)

// DefaultConcurrency bounds the file-scan worker pool.
const DefaultConcurrency = 8

// Report is the full scan output handed to external renderers as plain
// in-memory data: no serialization format is mandated here.
type Report struct {
	Root            string                       `json:"root"`
	Scopes          []*index.Scope               `json:"scopes"`
	CallSites       []model.CallSite             `json:"callSites"`
	Schemas         []*model.SchemaModel         `json:"schemas"`
	Classifications []model.ClassificationResult `json:"classifications"`
	Flags           []model.FlagOccurrence       `json:"flags,omitempty"`
	Warnings        []model.Warning              `json:"warnings,omitempty"`

	// Validated is false when no external validator was configured and all
	// schemas carry the unvalidated status.
	Validated bool `json:"validated"`
}

// Engine wires the scan pipeline together.
type Engine struct {
	catalog     *catalog.Catalog
	scanner     *scanner.Scanner
	inferrer    *infer.Engine
	tagger      *pii.Tagger
	classifier  *classify.Classifier
	validator   registry.Validator
	logger      *zap.Logger
	concurrency int
	scopePath   string

	indexerOptions []index.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger; the default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConcurrency bounds the scan worker pool.
func WithConcurrency(workers int) Option {
	return func(e *Engine) {
		if workers > 0 {
			e.concurrency = workers
		}
	}
}

// WithValidator plugs in the external schema-validation collaborator.
func WithValidator(validator registry.Validator) Option {
	return func(e *Engine) {
		e.validator = validator
	}
}

// WithScopePath restricts scanning to a subdirectory of the root.
func WithScopePath(path string) Option {
	return func(e *Engine) {
		e.scopePath = path
	}
}

// WithIndexerOptions forwards options to the source indexer.
func WithIndexerOptions(options ...index.Option) Option {
	return func(e *Engine) {
		e.indexerOptions = append(e.indexerOptions, options...)
	}
}

// New creates an Engine, loading the pattern catalog.
func New(options ...Option) (*Engine, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		catalog:     cat,
		scanner:     scanner.New(cat),
		inferrer:    infer.New(),
		tagger:      pii.New(cat),
		classifier:  classify.New(cat),
		logger:      zap.NewNop(),
		concurrency: DefaultConcurrency,
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// scopeState accumulates per-scope findings during the concurrent pass.
// Scopes are independent: nothing here crosses scope boundaries.
type scopeState struct {
	files []*model.SourceFile
	sites []model.CallSite
	flags []model.FlagOccurrence

	// Scope-level configuration findings keep the path they came from so the
	// winner is the lexicographically first file, not the first goroutine.
	registryURL     string
	registryURLPath string
	serializer      string
	serializerPath  string
}

// Scan runs the full pipeline under root. Only an unreadable root is fatal;
// every other failure degrades to a warning on the report. The scan is
// cooperatively cancellable between file boundaries.
func (e *Engine) Scan(ctx context.Context, root string) (*Report, error) {
	cat := e.catalog
	indexer := index.New(cat, e.indexerOptions...)
	idx, err := indexer.Index(ctx, root, e.scopePath)
	if err != nil {
		return nil, err
	}

	report := &Report{Root: idx.Root, Scopes: idx.Scopes}
	report.Warnings = append(report.Warnings, idx.Warnings...)

	scopeNames := make(map[string]string, len(idx.Scopes))
	for _, scope := range idx.Scopes {
		scopeNames[scope.Root] = scope.Name
	}

	// Concurrent per-file scan. Files are independent; aggregation under a
	// single mutex keeps the merge order-independent, and deterministic
	// sorting below removes any trace of discovery order.
	var mu sync.Mutex
	states := map[string]*scopeState{}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	walkWarnings, walkErr := idx.Walk(groupCtx, func(file *model.SourceFile) error {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			sites, warnings := e.scanner.ScanFile(file, scopeNames[file.ScopeRoot])
			flags := e.scanner.ScanFlags(file)
			registryURL := e.scanner.RegistryURL(file)
			serializer := e.scanner.RegistrySerializer(file)

			mu.Lock()
			defer mu.Unlock()
			state := states[file.ScopeRoot]
			if state == nil {
				state = &scopeState{}
				states[file.ScopeRoot] = state
			}
			state.files = append(state.files, file)
			state.sites = append(state.sites, sites...)
			state.flags = append(state.flags, flags...)
			if registryURL != "" && (state.registryURLPath == "" || file.Path < state.registryURLPath) {
				state.registryURL, state.registryURLPath = registryURL, file.Path
			}
			if serializer != "" && (state.serializerPath == "" || file.Path < state.serializerPath) {
				state.serializer, state.serializerPath = serializer, file.Path
			}
			report.Warnings = append(report.Warnings, warnings...)
			return nil
		})
		return nil
	})
	waitErr := group.Wait()
	if walkErr != nil {
		return nil, walkErr
	}
	if waitErr != nil {
		return nil, waitErr
	}
	report.Warnings = append(report.Warnings, walkWarnings...)

	e.mergeScopes(report, states)

	if err := e.resolveSchemas(ctx, report, states); err != nil {
		return nil, err
	}

	e.logger.Info("scan complete",
		zap.String("root", report.Root),
		zap.Int("scopes", len(report.Scopes)),
		zap.Int("callSites", len(report.CallSites)),
		zap.Int("warnings", len(report.Warnings)))
	return report, nil
}

// mergeScopes finalizes per-scope findings: configuration discovered in one
// file of a scope (registry URL, serializer class in properties) applies to
// the scope's call sites, flags associate with their nearest call site, and
// the aggregate is sorted deterministically by topic then location.
func (e *Engine) mergeScopes(report *Report, states map[string]*scopeState) {
	var scopeRoots []string
	for root := range states {
		scopeRoots = append(scopeRoots, root)
	}
	sort.Strings(scopeRoots)

	for _, root := range scopeRoots {
		state := states[root]
		sort.Slice(state.files, func(a, b int) bool {
			return state.files[a].Path < state.files[b].Path
		})
		sort.Slice(state.sites, func(a, b int) bool {
			if state.sites[a].Path != state.sites[b].Path {
				return state.sites[a].Path < state.sites[b].Path
			}
			return state.sites[a].Line < state.sites[b].Line
		})

		for i := range state.sites {
			site := &state.sites[i]
			if site.SchemaRegistryURL == "" {
				site.SchemaRegistryURL = state.registryURL
			}
			if site.Serializer == "" && !site.CustomSerializer {
				site.Serializer = state.serializer
			}
		}
		state.flags = scanner.AssociateFlags(state.flags, state.sites)

		report.CallSites = append(report.CallSites, state.sites...)
		report.Flags = append(report.Flags, state.flags...)
	}

	sort.Slice(report.CallSites, func(a, b int) bool {
		if report.CallSites[a].Topic != report.CallSites[b].Topic {
			return report.CallSites[a].Topic < report.CallSites[b].Topic
		}
		if report.CallSites[a].Path != report.CallSites[b].Path {
			return report.CallSites[a].Path < report.CallSites[b].Path
		}
		return report.CallSites[a].Line < report.CallSites[b].Line
	})
	sort.Slice(report.Flags, func(a, b int) bool {
		if report.Flags[a].Path != report.Flags[b].Path {
			return report.Flags[a].Path < report.Flags[b].Path
		}
		return report.Flags[a].Line < report.Flags[b].Line
	})
}

// resolveSchemas infers, tags, optionally validates and classifies every
// producer call site. Inference failures classify as Category D; a missing
// validator is a recognized degraded mode, not an error.
func (e *Engine) resolveSchemas(ctx context.Context, report *Report, states map[string]*scopeState) error {
	validator := e.validator
	if validator == nil {
		report.Warnings = append(report.Warnings, model.Warning{
			Kind:   model.WarnValidatorUnavailable,
			Detail: "no external validator configured; schemas are unvalidated",
		})
	} else {
		report.Validated = true
	}

	for i := range report.CallSites {
		if err := ctx.Err(); err != nil {
			return err
		}
		site := report.CallSites[i]
		if site.Role != model.RoleProducer {
			continue
		}

		var scopeFiles []*model.SourceFile
		if state := states[site.ScopeRoot]; state != nil {
			scopeFiles = state.files
		}
		schema, warnings := e.inferrer.Infer(ctx, site, scopeFiles)
		report.Warnings = append(report.Warnings, warnings...)

		if schema != nil {
			if format, ok := e.catalog.SerializerFormat(site.Serializer); ok {
				schema.Format = format
			}
			e.tagger.Tag(schema)
			if validator != nil {
				e.validate(ctx, report, schema, site)
			}
			report.Schemas = append(report.Schemas, schema)
		}
		report.Classifications = append(report.Classifications, e.classifier.Classify(site, schema))
	}

	sort.Slice(report.Classifications, func(a, b int) bool {
		if report.Classifications[a].Topic != report.Classifications[b].Topic {
			return report.Classifications[a].Topic < report.Classifications[b].Topic
		}
		return report.Classifications[a].CallSiteID < report.Classifications[b].CallSiteID
	})
	return nil
}

// validate runs the external collaborator, degrading failures to warnings.
func (e *Engine) validate(ctx context.Context, report *Report, schema *model.SchemaModel, site model.CallSite) {
	verdict, err := e.validator.Validate(ctx, schema, site.Topic)
	if err != nil {
		report.Warnings = append(report.Warnings, model.Warning{
			Kind: model.WarnValidatorUnavailable, Path: site.Path, Detail: err.Error(),
		})
		schema.Validation = string(registry.VerdictUnvalidated)
		return
	}
	schema.Validation = string(verdict)

	findings, err := e.validator.Lint(ctx, schema)
	if err != nil {
		report.Warnings = append(report.Warnings, model.Warning{
			Kind: model.WarnValidatorUnavailable, Path: site.Path, Detail: err.Error(),
		})
		return
	}
	for _, finding := range findings {
		report.Warnings = append(report.Warnings, model.Warning{
			Kind: model.WarnSchemaLint, Path: site.Path,
			Detail: filepath.Base(site.Path) + ": " + finding,
		})
	}
}
