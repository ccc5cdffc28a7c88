package model

// Ecosystem identifies the language ecosystem a source file belongs to.
type Ecosystem string

const (
	EcosystemJava    Ecosystem = "java"
	EcosystemPython  Ecosystem = "python"
	EcosystemDotNet  Ecosystem = "dotnet"
	EcosystemGo      Ecosystem = "go"
	EcosystemNodeTS  Ecosystem = "nodets"
	EcosystemUnknown Ecosystem = "unknown"
)

// Known reports whether the ecosystem is one of the supported scan targets.
func (e Ecosystem) Known() bool {
	switch e {
	case EcosystemJava, EcosystemPython, EcosystemDotNet, EcosystemGo, EcosystemNodeTS:
		return true
	}
	return false
}

// SourceFile represents an indexed source file within a scan scope.
// Content is loaded once by the indexer and immutable afterwards.
type SourceFile struct {
	Path      string
	Ecosystem Ecosystem
	ScopeRoot string // root directory of the manifest scope owning this file
	Content   []byte
}
