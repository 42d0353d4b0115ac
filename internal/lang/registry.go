// Package lang holds the tree-sitter grammar registry: one entry per
// supported language, mapping each model.Language to its grammar and
// exposing AST-shape metadata the parser and visitor use (which node types
// introduce new scopes).
package lang

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/Kosthi/openace/internal/model"
)

// Spec describes a supported language's grammar and the node types the
// visitor treats specially.
type Spec struct {
	Language model.Language

	// ScopeTypes are node types that introduce a new qualified-name scope
	// (function/method/class/struct/module bodies).
	ScopeTypes map[string]bool

	// NameField is the tree-sitter field name holding a declaration's
	// identifier, when the grammar exposes one uniformly.
	NameField string
}

// Registry resolves a model.Language (plus a TSX flag) to a tree-sitter
// grammar and its Spec.
type Registry struct {
	mu       sync.RWMutex
	grammars map[model.Language]*sitter.Language
	specs    map[model.Language]*Spec
	tsxGram  *sitter.Language
	tsxSpec  *Spec
}

// NewRegistry builds the registry with all six supported grammars
// registered.
func NewRegistry() *Registry {
	r := &Registry{
		grammars: make(map[model.Language]*sitter.Language),
		specs:    make(map[model.Language]*Spec),
	}

	r.register(model.LanguageGo, golang.GetLanguage(), &Spec{
		Language: model.LanguageGo,
		NameField: "name",
		ScopeTypes: set(
			"function_declaration", "method_declaration", "func_literal",
		),
	})

	r.register(model.LanguagePython, python.GetLanguage(), &Spec{
		Language:  model.LanguagePython,
		NameField: "name",
		ScopeTypes: set(
			"function_definition", "class_definition",
		),
	})

	tsGram := typescript.GetLanguage()
	r.register(model.LanguageTypeScript, tsGram, &Spec{
		Language:  model.LanguageTypeScript,
		NameField: "name",
		ScopeTypes: set(
			"function_declaration", "method_definition", "class_declaration",
			"interface_declaration",
		),
	})
	r.tsxGram = tsx.GetLanguage()
	r.tsxSpec = &Spec{
		Language:  model.LanguageTypeScript,
		NameField: "name",
		ScopeTypes: set(
			"function_declaration", "method_definition", "class_declaration",
			"interface_declaration",
		),
	}

	r.register(model.LanguageJavaScript, javascript.GetLanguage(), &Spec{
		Language:  model.LanguageJavaScript,
		NameField: "name",
		ScopeTypes: set(
			"function_declaration", "function", "method_definition",
			"class_declaration",
		),
	})

	r.register(model.LanguageRust, rust.GetLanguage(), &Spec{
		Language:  model.LanguageRust,
		NameField: "name",
		ScopeTypes: set(
			"function_item", "impl_item", "mod_item", "trait_item",
		),
	})

	r.register(model.LanguageJava, java.GetLanguage(), &Spec{
		Language:  model.LanguageJava,
		NameField: "name",
		ScopeTypes: set(
			"method_declaration", "class_declaration", "interface_declaration",
			"constructor_declaration",
		),
	})

	return r
}

func (r *Registry) register(l model.Language, g *sitter.Language, spec *Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammars[l] = g
	r.specs[l] = spec
}

// ForLanguage returns the grammar and Spec for a language, selecting the
// TSX grammar when isTSX is set and the language is TypeScript or
// JavaScript (JSX keeps the JavaScript Spec).
func (r *Registry) ForLanguage(l model.Language, isTSX bool) (*sitter.Language, *Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if isTSX && l == model.LanguageTypeScript {
		return r.tsxGram, r.tsxSpec, true
	}
	if isTSX && l == model.LanguageJavaScript {
		return r.tsxGram, r.specs[l], true
	}
	g, ok := r.grammars[l]
	if !ok {
		return nil, nil, false
	}
	return g, r.specs[l], true
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide language registry.
func Default() *Registry { return defaultRegistry }

// NormalizeExt lowercases and ensures a leading dot on a file extension.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
