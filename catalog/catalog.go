// Package catalog holds the versioned detection rule tables driving the
// call-site scanner, the PII tagger and the classifier. Rules are plain data
// loaded from an embedded YAML document; the catalog is read-only after Load
// and safe for concurrent use.
package catalog

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/streamlens/streamlens/model"
)

//go:embed patterns.yaml
var patternsYAML []byte

// Ruleset is the compiled detection rule table for one ecosystem.
type Ruleset struct {
	Ecosystem    model.Ecosystem
	Manifests    []string // manifest file names, may contain globs (*.csproj)
	Extensions   []string
	Dependencies []*regexp.Regexp
	Producers    []*regexp.Regexp
	Consumers    []*regexp.Regexp
	Topics       []*regexp.Regexp // each with one capture group for the literal topic
	TypeRefs     []*regexp.Regexp // each with one capture group for the value type name
	CustomHints  []*regexp.Regexp
}

// HasExtension reports whether the ruleset covers the given file extension.
func (r *Ruleset) HasExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, candidate := range r.Extensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

// PIIRule maps a normalized-field-name pattern to the tags it implies.
type PIIRule struct {
	Pattern *regexp.Regexp
	Tags    []model.PIITag
}

// Catalog is the full compiled rule catalog.
type Catalog struct {
	rulesets map[model.Ecosystem]*Ruleset

	registryAware     map[string]model.Format // lowercased serializer name -> format
	plainSerializers  map[string]bool
	serializerPattern *regexp.Regexp

	registryURL      *regexp.Regexp
	autoRegister     *regexp.Regexp
	useLatestVersion *regexp.Regexp

	pii []PIIRule
}

type rawEcosystem struct {
	Manifests    []string `yaml:"manifests"`
	Extensions   []string `yaml:"extensions"`
	Dependencies []string `yaml:"dependencies"`
	Producers    []string `yaml:"producers"`
	Consumers    []string `yaml:"consumers"`
	Topics       []string `yaml:"topics"`
	TypeRefs     []string `yaml:"typeRefs"`
}

type rawCatalog struct {
	Ecosystems  map[string]rawEcosystem `yaml:"ecosystems"`
	Serializers struct {
		RegistryAware map[string]string `yaml:"registryAware"`
		Plain         []string          `yaml:"plain"`
	} `yaml:"serializers"`
	CustomSerializerHints map[string][]string `yaml:"customSerializerHints"`
	ConfigKeys            struct {
		RegistryURL      string `yaml:"registryURL"`
		AutoRegister     string `yaml:"autoRegister"`
		UseLatestVersion string `yaml:"useLatestVersion"`
	} `yaml:"configKeys"`
	PII []struct {
		Pattern string   `yaml:"pattern"`
		Tags    []string `yaml:"tags"`
	} `yaml:"pii"`
}

// Load parses and compiles the embedded rule tables.
func Load() (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(patternsYAML, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pattern catalog: %w", err)
	}

	c := &Catalog{
		rulesets:         map[model.Ecosystem]*Ruleset{},
		registryAware:    map[string]model.Format{},
		plainSerializers: map[string]bool{},
	}

	for name, eco := range raw.Ecosystems {
		ecosystem := model.Ecosystem(name)
		if !ecosystem.Known() {
			return nil, fmt.Errorf("pattern catalog names unknown ecosystem %q", name)
		}
		ruleset := &Ruleset{
			Ecosystem:  ecosystem,
			Manifests:  eco.Manifests,
			Extensions: lowercase(eco.Extensions),
		}
		var err error
		if ruleset.Dependencies, err = compileAll(eco.Dependencies); err != nil {
			return nil, fmt.Errorf("%s dependencies: %w", name, err)
		}
		if ruleset.Producers, err = compileAll(eco.Producers); err != nil {
			return nil, fmt.Errorf("%s producers: %w", name, err)
		}
		if ruleset.Consumers, err = compileAll(eco.Consumers); err != nil {
			return nil, fmt.Errorf("%s consumers: %w", name, err)
		}
		if ruleset.Topics, err = compileAll(eco.Topics); err != nil {
			return nil, fmt.Errorf("%s topics: %w", name, err)
		}
		if ruleset.TypeRefs, err = compileAll(eco.TypeRefs); err != nil {
			return nil, fmt.Errorf("%s typeRefs: %w", name, err)
		}
		if ruleset.CustomHints, err = compileAll(raw.CustomSerializerHints[name]); err != nil {
			return nil, fmt.Errorf("%s customSerializerHints: %w", name, err)
		}
		c.rulesets[ecosystem] = ruleset
	}

	var serializerNames []string
	for name, format := range raw.Serializers.RegistryAware {
		c.registryAware[strings.ToLower(name)] = model.Format(format)
		serializerNames = append(serializerNames, regexp.QuoteMeta(name))
	}
	for _, name := range raw.Serializers.Plain {
		c.plainSerializers[strings.ToLower(name)] = true
		serializerNames = append(serializerNames, regexp.QuoteMeta(name))
	}
	// Longest alternative first so KafkaAvroSerializer wins over AvroSerializer.
	sort.Slice(serializerNames, func(i, j int) bool {
		return len(serializerNames[i]) > len(serializerNames[j])
	})
	var err error
	c.serializerPattern, err = compile(`\b(` + strings.Join(serializerNames, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("serializer names: %w", err)
	}

	if c.registryURL, err = compile(raw.ConfigKeys.RegistryURL); err != nil {
		return nil, fmt.Errorf("configKeys.registryURL: %w", err)
	}
	if c.autoRegister, err = compile(raw.ConfigKeys.AutoRegister); err != nil {
		return nil, fmt.Errorf("configKeys.autoRegister: %w", err)
	}
	if c.useLatestVersion, err = compile(raw.ConfigKeys.UseLatestVersion); err != nil {
		return nil, fmt.Errorf("configKeys.useLatestVersion: %w", err)
	}

	for _, rule := range raw.PII {
		pattern, err := compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", rule.Pattern, err)
		}
		tags := make([]model.PIITag, 0, len(rule.Tags))
		for _, tag := range rule.Tags {
			tags = append(tags, model.PIITag(tag))
		}
		c.pii = append(c.pii, PIIRule{Pattern: pattern, Tags: tags})
	}

	return c, nil
}

// Ruleset returns the rule table for an ecosystem, nil when unsupported.
func (c *Catalog) Ruleset(ecosystem model.Ecosystem) *Ruleset {
	return c.rulesets[ecosystem]
}

// EcosystemForManifest maps a manifest file name to its ecosystem, using glob
// matching for patterns such as *.csproj. Returns EcosystemUnknown when the
// name is not a recognized manifest.
func (c *Catalog) EcosystemForManifest(filename string) model.Ecosystem {
	for ecosystem, ruleset := range c.rulesets {
		for _, pattern := range ruleset.Manifests {
			if matched, _ := filepath.Match(pattern, filename); matched {
				return ecosystem
			}
		}
	}
	return model.EcosystemUnknown
}

// FindSerializer locates a known serializer identifier in the given content,
// returning its canonical name. A registry-aware name anywhere in the content
// wins over plain ones: key/value serializer pairs routinely configure a
// plain key serializer ahead of the registry-aware value serializer.
func (c *Catalog) FindSerializer(content []byte) (string, bool) {
	matches := c.serializerPattern.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, match := range matches {
		name := string(match[1])
		if _, registryAware := c.registryAware[strings.ToLower(name)]; registryAware {
			return name, true
		}
	}
	return string(matches[0][1]), true
}

// SerializerFormat resolves a registry-aware serializer identifier to its
// wire format. The second result is false for plain or unknown serializers.
func (c *Catalog) SerializerFormat(name string) (model.Format, bool) {
	format, ok := c.registryAware[strings.ToLower(name)]
	return format, ok
}

// IsPlainSerializer reports whether the identifier names a serializer that
// never integrates with a schema registry.
func (c *Catalog) IsPlainSerializer(name string) bool {
	return c.plainSerializers[strings.ToLower(name)]
}

// RegistryURLIn extracts the first schema-registry URL configured in content.
func (c *Catalog) RegistryURLIn(content []byte) string {
	match := c.registryURL.FindSubmatch(content)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// FlagPattern returns the compiled pattern for a whole-tree flag scan.
func (c *Catalog) FlagPattern(kind model.FlagKind) *regexp.Regexp {
	switch kind {
	case model.FlagAutoRegister:
		return c.autoRegister
	case model.FlagUseLatestVersion:
		return c.useLatestVersion
	}
	return nil
}

// PIITags returns the union of tags implied by a normalized field name.
func (c *Catalog) PIITags(normalized string) []model.PIITag {
	var tags []model.PIITag
	for _, rule := range c.pii {
		if rule.Pattern.MatchString(normalized) {
			tags = append(tags, rule.Tags...)
		}
	}
	return tags
}

// compile builds a case-insensitive regexp; patterns in the catalog never
// assume a specific source formatting style.
func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)` + pattern)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		expr, err := compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, expr)
	}
	return compiled, nil
}

func lowercase(values []string) []string {
	result := make([]string, len(values))
	for i, value := range values {
		result[i] = strings.ToLower(value)
	}
	return result
}
