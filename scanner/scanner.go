// Package scanner applies the pattern catalog to indexed source files and
// emits normalized producer/consumer call-site records plus whole-tree
// registry-flag occurrences.
package scanner

import (
	"bytes"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/streamlens/streamlens/catalog"
	"github.com/streamlens/streamlens/model"
)

// matchWindow bounds how far past a call-site match the scanner looks for
// the topic literal and value-type reference of the same invocation.
const matchWindow = 400

// Scanner locates Kafka call sites in source files.
type Scanner struct {
	catalog *catalog.Catalog
}

// New creates a Scanner over the given catalog.
func New(cat *catalog.Catalog) *Scanner {
	return &Scanner{catalog: cat}
}

// ScanFile applies the ecosystem's rule table to one source file and returns
// zero or more call sites. Partial or ambiguous matches degrade per call
// site: a dynamically computed topic yields TopicUnknown with a warning and
// never fails the rest of the file.
func (s *Scanner) ScanFile(file *model.SourceFile, app string) ([]model.CallSite, []model.Warning) {
	ruleset := s.catalog.Ruleset(file.Ecosystem)
	if ruleset == nil || !ruleset.HasExtension(strings.ToLower(filepath.Ext(file.Path))) {
		return nil, nil
	}

	var sites []model.CallSite
	var warnings []model.Warning

	serializer, custom := s.detectSerializer(file.Ecosystem, file.Content)
	registryURL := s.catalog.RegistryURLIn(file.Content)

	producerOffsets := matchOffsets(ruleset.Producers, file.Content)
	consumerOffsets := matchOffsets(ruleset.Consumers, file.Content)
	// A file-wide literal may only back a lone call site; with several sites
	// it could belong to a sibling invocation, so each site then stands on
	// its own window.
	soleSite := len(producerOffsets)+len(consumerOffsets) == 1

	for _, scan := range []struct {
		role    model.Role
		offsets []int
	}{
		{role: model.RoleProducer, offsets: producerOffsets},
		{role: model.RoleConsumer, offsets: consumerOffsets},
	} {
		for _, offset := range scan.offsets {
			line := lineAt(file.Content, offset)
			window := windowAt(file.Content, offset)

			topic := firstCapture(ruleset.Topics, window)
			if topic == "" && soleSite {
				topic = firstCapture(ruleset.Topics, file.Content)
			}
			if topic == "" {
				topic = model.TopicUnknown
				warnings = append(warnings, model.Warning{
					Kind: model.WarnAmbiguousTopic, Path: file.Path,
					Detail: "topic is not a string literal at line " + strconv.Itoa(line),
				})
			}

			typeRef := firstCapture(ruleset.TypeRefs, window)
			if typeRef == "" && soleSite {
				typeRef = firstCapture(ruleset.TypeRefs, file.Content)
			}

			sites = append(sites, model.CallSite{
				ID:                model.Fingerprint(scan.role, file.Path, line),
				Role:              scan.role,
				Ecosystem:         file.Ecosystem,
				Path:              file.Path,
				Line:              line,
				ScopeRoot:         file.ScopeRoot,
				App:               app,
				Topic:             topic,
				Serializer:        serializer,
				CustomSerializer:  custom,
				SchemaRegistryURL: registryURL,
				TypeRef:           typeRef,
			})
		}
	}
	return sites, warnings
}

// detectSerializer resolves serializer information for a file following the
// catalog precedence: an explicit registry-aware serializer class wins over
// custom-serializer evidence, which wins over nothing.
func (s *Scanner) detectSerializer(ecosystem model.Ecosystem, content []byte) (string, bool) {
	if name, ok := s.catalog.FindSerializer(content); ok {
		if _, registryAware := s.catalog.SerializerFormat(name); registryAware {
			return name, false
		}
		// A plain serializer combined with hand-rolled encoding marks a
		// custom serializer; a plain serializer alone is just plain.
		if s.matchesCustomHint(ecosystem, content) {
			return name, true
		}
		return name, false
	}
	if s.matchesCustomHint(ecosystem, content) {
		return "", true
	}
	return "", false
}

func (s *Scanner) matchesCustomHint(ecosystem model.Ecosystem, content []byte) bool {
	ruleset := s.catalog.Ruleset(ecosystem)
	if ruleset == nil {
		return false
	}
	for _, hint := range ruleset.CustomHints {
		if hint.Match(content) {
			return true
		}
	}
	return false
}

// ScanFlags records every occurrence of the registry-behaviour flags in one
// file, source or configuration alike.
func (s *Scanner) ScanFlags(file *model.SourceFile) []model.FlagOccurrence {
	var occurrences []model.FlagOccurrence
	for _, kind := range []model.FlagKind{model.FlagAutoRegister, model.FlagUseLatestVersion} {
		pattern := s.catalog.FlagPattern(kind)
		if pattern == nil {
			continue
		}
		for _, match := range pattern.FindAllIndex(file.Content, -1) {
			occurrences = append(occurrences, model.FlagOccurrence{
				Kind: kind,
				Path: file.Path,
				Line: lineAt(file.Content, match[0]),
			})
		}
	}
	return occurrences
}

// RegistryURL extracts a schema-registry URL configured anywhere in the file.
func (s *Scanner) RegistryURL(file *model.SourceFile) string {
	return s.catalog.RegistryURLIn(file.Content)
}

// RegistrySerializer reports a registry-aware serializer configured in the
// file (e.g. value.serializer in a properties file), empty when none.
func (s *Scanner) RegistrySerializer(file *model.SourceFile) string {
	if name, ok := s.catalog.FindSerializer(file.Content); ok {
		if _, registryAware := s.catalog.SerializerFormat(name); registryAware {
			return name
		}
	}
	return ""
}

// AssociateFlags links each flag occurrence to the nearest call site of the
// same scope by directory proximity: the call site sharing the longest
// directory prefix wins, ties broken by the lexicographically smaller path.
// Producer sites associated with an auto-register occurrence get their
// AutoRegister flag set; use-latest-version likewise.
func AssociateFlags(occurrences []model.FlagOccurrence, sites []model.CallSite) []model.FlagOccurrence {
	associated := make([]model.FlagOccurrence, len(occurrences))
	for i, occurrence := range occurrences {
		associated[i] = occurrence
		best := -1
		bestLen := -1
		for j := range sites {
			shared := commonDirPrefix(occurrence.Path, sites[j].Path)
			if shared > bestLen || (shared == bestLen && best >= 0 && sites[j].Path < sites[best].Path) {
				best, bestLen = j, shared
			}
		}
		if best < 0 {
			continue
		}
		associated[i].CallSiteID = sites[best].ID
		switch occurrence.Kind {
		case model.FlagAutoRegister:
			sites[best].AutoRegister = true
		case model.FlagUseLatestVersion:
			sites[best].UseLatestVersion = true
		}
	}
	return associated
}

// commonDirPrefix counts the shared leading directory elements of two paths.
func commonDirPrefix(a, b string) int {
	dirsA := strings.Split(filepath.Dir(a), string(filepath.Separator))
	dirsB := strings.Split(filepath.Dir(b), string(filepath.Separator))
	shared := 0
	for shared < len(dirsA) && shared < len(dirsB) && dirsA[shared] == dirsB[shared] {
		shared++
	}
	return shared
}

// matchOffsets collects the match start offsets of all patterns, one offset
// per source line so overlapping patterns do not duplicate a call site.
func matchOffsets(patterns []*regexp.Regexp, content []byte) []int {
	seen := map[int]int{} // line -> earliest offset
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllIndex(content, -1) {
			line := lineAt(content, match[0])
			if offset, ok := seen[line]; !ok || match[0] < offset {
				seen[line] = match[0]
			}
		}
	}
	offsets := make([]int, 0, len(seen))
	for _, offset := range seen {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)
	return offsets
}

func firstCapture(patterns []*regexp.Regexp, content []byte) string {
	for _, pattern := range patterns {
		if match := pattern.FindSubmatch(content); len(match) > 1 {
			return string(match[1])
		}
	}
	return ""
}

func windowAt(content []byte, offset int) []byte {
	end := offset + matchWindow
	if end > len(content) {
		end = len(content)
	}
	return content[offset:end]
}

func lineAt(content []byte, offset int) int {
	return bytes.Count(content[:offset], []byte{'\n'}) + 1
}
