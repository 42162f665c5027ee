// Package lang enumerates the languages the analyzer understands and maps
// them to tree-sitter grammars and file extensions.
package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported source language.
type Language string

const (
	TypeScript Language = "typescript"
	JavaScript Language = "javascript"
	Java       Language = "java"
	Python     Language = "python"
	Go         Language = "go"
	Markdown   Language = "markdown"

	// External tags nodes that do not live in a source file, such as
	// libraries and builtins.
	External Language = "external"
)

// All returns every analyzable language, markdown included.
func All() []Language {
	return []Language{TypeScript, JavaScript, Java, Python, Go, Markdown}
}

// Grammar returns the tree-sitter grammar for the language, or nil when the
// language is not parsed with tree-sitter (markdown, external).
func (l Language) Grammar() *sitter.Language {
	switch l {
	case TypeScript:
		return typescript.GetLanguage()
	case JavaScript:
		return javascript.GetLanguage()
	case Java:
		return java.GetLanguage()
	case Python:
		return python.GetLanguage()
	case Go:
		return golang.GetLanguage()
	default:
		return nil
	}
}

// Extensions returns the file extensions associated with the language, the
// primary extension first.
func (l Language) Extensions() []string {
	switch l {
	case TypeScript:
		return []string{".ts", ".tsx", ".d.ts"}
	case JavaScript:
		return []string{".js", ".jsx", ".mjs", ".cjs"}
	case Java:
		return []string{".java"}
	case Python:
		return []string{".py"}
	case Go:
		return []string{".go"}
	case Markdown:
		return []string{".md", ".markdown"}
	default:
		return nil
	}
}

var byExtension = map[string]Language{}

func init() {
	for _, l := range All() {
		for _, ext := range l.Extensions() {
			byExtension[ext] = l
		}
	}
}

// FromPath infers the language from a file path's extension.
func FromPath(path string) (Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := byExtension[ext]
	return l, ok
}

// Valid reports whether the tag names a known analyzable language.
func Valid(l Language) bool {
	for _, known := range All() {
		if l == known {
			return true
		}
	}
	return false
}
