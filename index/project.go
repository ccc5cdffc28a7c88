package index

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/streamlens/streamlens/model"
)

var (
	artifactIDPattern  = regexp.MustCompile(`<artifactId>([^<]+)</artifactId>`)
	gradleNamePattern  = regexp.MustCompile(`(?:rootProject|project)\.name\s*=\s*['"]([^'"]+)['"]`)
	packageNamePattern = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
	pyProjectPattern   = regexp.MustCompile(`(?m)^\s*name\s*=\s*["']([^"']+)["']`)
	setupNamePattern   = regexp.MustCompile(`name\s*=\s*["']([^"']+)["']`)
)

// projectName extracts an application name from a build manifest, falling
// back to the manifest's directory name.
func projectName(manifest string, ecosystem model.Ecosystem) string {
	fallback := filepath.Base(filepath.Dir(manifest))
	switch ecosystem {
	case model.EcosystemGo:
		return goModuleName(manifest, fallback)
	case model.EcosystemJava:
		return javaProjectName(manifest, fallback)
	case model.EcosystemNodeTS:
		return matchedName(manifest, packageNamePattern, fallback)
	case model.EcosystemPython:
		return pythonProjectName(manifest, fallback)
	case model.EcosystemDotNet:
		// Project name is the csproj base name by .NET convention.
		if strings.HasSuffix(manifest, ".csproj") {
			return strings.TrimSuffix(filepath.Base(manifest), ".csproj")
		}
		return fallback
	}
	return fallback
}

func goModuleName(goModPath, fallback string) string {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return fallback
	}
	mod, err := modfile.Parse(goModPath, content, nil)
	if err != nil || mod.Module == nil {
		return fallback
	}
	path := mod.Module.Mod.Path
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		return path[idx+1:]
	}
	return path
}

func javaProjectName(manifest, fallback string) string {
	switch filepath.Base(manifest) {
	case "pom.xml":
		return matchedName(manifest, artifactIDPattern, fallback)
	default:
		return matchedName(manifest, gradleNamePattern, fallback)
	}
}

func pythonProjectName(manifest, fallback string) string {
	switch filepath.Base(manifest) {
	case "pyproject.toml":
		return matchedName(manifest, pyProjectPattern, fallback)
	case "setup.py":
		return matchedName(manifest, setupNamePattern, fallback)
	}
	return fallback
}

func matchedName(path string, pattern *regexp.Regexp, fallback string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	match := pattern.FindSubmatch(content)
	if len(match) < 2 {
		return fallback
	}
	return string(match[1])
}
