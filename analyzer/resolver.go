package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/oxhq/codegraph/lang"
)

// Resolution classifies one import specifier.
type Resolution struct {
	// Path is the resolution target: for internal imports, a project path
	// (with extension when a real file was found, the raw joined specifier
	// otherwise); for external imports, the library name.
	Path string
	// Internal is true when the specifier starts with '.' or '/'.
	Internal bool
	// Exists is true when an actual file backs the resolution.
	Exists bool
}

// Resolver rewrites raw import specifiers into project paths. Specifiers
// that start with '.' or '/' are internal; everything else names an
// external package or builtin.
type Resolver struct {
	root string
}

// NewResolver anchors a resolver at the project root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Resolve classifies the specifier and, for internal imports, probes for a
// backing file using the importing language's extensions. When no file is
// found the joined specifier is returned unchanged so re-analysis of the
// eventual target converges on one node only once the file really exists.
func (r *Resolver) Resolve(importingFile, specifier string, l lang.Language) Resolution {
	if !isInternal(specifier, l) {
		return Resolution{Path: libraryName(specifier, l), Internal: false}
	}

	var candidate string
	switch {
	case strings.HasPrefix(specifier, "/"):
		candidate = filepath.Join(r.root, specifier)
	case l == lang.Python:
		candidate = filepath.Join(filepath.Dir(importingFile), pythonRelativePath(specifier))
	default:
		candidate = filepath.Join(filepath.Dir(importingFile), specifier)
	}

	// Specifier already names a real file.
	if fileExists(candidate) {
		return Resolution{Path: candidate, Internal: true, Exists: true}
	}
	// Probe candidate + extension, then candidate/index + extension.
	for _, ext := range l.Extensions() {
		if fileExists(candidate + ext) {
			return Resolution{Path: candidate + ext, Internal: true, Exists: true}
		}
	}
	for _, ext := range l.Extensions() {
		indexed := filepath.Join(candidate, "index"+ext)
		if fileExists(indexed) {
			return Resolution{Path: indexed, Internal: true, Exists: true}
		}
	}
	return Resolution{Path: candidate, Internal: true, Exists: false}
}

func isInternal(specifier string, l lang.Language) bool {
	if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		return true
	}
	return false
}

// libraryName trims specifier noise that would fragment library nodes:
// deep submodule paths keep their package root for scoped and plain npm
// names; Go and Java imports are kept whole.
func libraryName(specifier string, l lang.Language) string {
	switch l {
	case lang.TypeScript, lang.JavaScript:
		parts := strings.Split(specifier, "/")
		if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return parts[0]
	default:
		return specifier
	}
}

// pythonRelativePath converts a relative dotted module (".utils",
// "..pkg.mod") into a relative file path ("utils", "../pkg/mod").
func pythonRelativePath(specifier string) string {
	dots := 0
	for dots < len(specifier) && specifier[dots] == '.' {
		dots++
	}
	rest := strings.ReplaceAll(specifier[dots:], ".", "/")
	up := strings.Repeat("../", dots-1)
	return up + rest
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
