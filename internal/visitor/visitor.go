// Package visitor is the engine's default language-visitor
// implementation: it walks the neutral AST the lang package produces and
// emits symbols and relations. A faithful per-language node-kind mapping
// is its own engineering problem, so this visitor is intentionally
// generic, driven entirely by each lang.Spec's ScopeTypes and NameField
// rather than bespoke per-language code paths. It is good enough to
// exercise the pipeline end to end and to produce real cross-file
// relations for the resolver to bind.
package visitor

import (
	"strings"

	"github.com/Kosthi/openace/internal/lang"
	"github.com/Kosthi/openace/internal/model"
)

// callNodeTypes are node types that look like a function/method invocation
// across the supported grammars.
var callNodeTypes = map[string]bool{
	"call_expression":   true, // JS/TS/Rust
	"call":              true, // Python
	"method_invocation": true, // Java
}

// importNodeTypes are node types that introduce a module-level dependency.
var importNodeTypes = map[string]bool{
	"import_statement":   true, // Python, JS/TS
	"import_declaration": true, // Go, Java
	"use_declaration":    true, // Rust
}

// Result holds everything a single file's parse contributes to the graph.
type Result struct {
	Symbols   []model.CodeSymbol
	Relations []model.CodeRelation
}

// kindForNodeType maps a scope node's type to a SymbolKind. Languages with
// ambiguous node names (e.g. Go's func_literal for closures) fall back to
// Function; the mapping only needs to be as precise as the grammars the
// registry wires in.
func kindForNodeType(nodeType string) model.SymbolKind {
	switch nodeType {
	case "class_declaration", "class_definition":
		return model.SymbolKindClass
	case "interface_declaration":
		return model.SymbolKindInterface
	case "trait_item":
		return model.SymbolKindTrait
	case "struct_item", "struct_declaration":
		return model.SymbolKindStruct
	case "impl_item":
		return model.SymbolKindClass
	case "mod_item":
		return model.SymbolKindModule
	case "method_declaration", "method_definition", "constructor_declaration":
		return model.SymbolKindMethod
	case "function_declaration", "function_definition", "function_item", "function", "func_literal":
		return model.SymbolKindFunction
	default:
		return model.SymbolKindFunction
	}
}

// Visit walks tree and produces the symbols and relations it can observe
// syntactically. repoID and relPath seed deterministic identity; relations
// targeting names not resolvable within this file are left as phantom IDs
// for the resolver to bind post-parse.
func Visit(tree *lang.Tree, repoID, relPath string) Result {
	var res Result
	if tree == nil || tree.Root == nil || tree.Spec == nil {
		return res
	}

	scopeTypes := tree.Spec.ScopeTypes
	source := tree.Source

	type scopeFrame struct {
		id            model.SymbolId
		qualifiedName string
	}

	var walk func(node *lang.Node, enclosing *scopeFrame)
	walk = func(node *lang.Node, enclosing *scopeFrame) {
		if node == nil {
			return
		}

		if callNodeTypes[node.Type] && enclosing != nil {
			if callee := calleeName(node, source); callee != "" {
				target := model.GenerateSymbolId("", "", callee, 0, 0)
				res.Relations = append(res.Relations,
					model.NewRelation(enclosing.id, target, model.RelationCalls, relPath, int(node.StartLine)))
			}
		}

		if importNodeTypes[node.Type] {
			if path := importPath(node, source); path != "" {
				// Imports are file-scoped; attribute them to the nearest
				// enclosing symbol when one exists, otherwise drop them;
				// a relation's source_id must reference a known symbol.
				if enclosing != nil {
					target := model.GenerateSymbolId("", "", path, 0, 0)
					res.Relations = append(res.Relations,
						model.NewRelation(enclosing.id, target, model.RelationImports, relPath, int(node.StartLine)))
				}
			}
		}

		next := enclosing
		if scopeTypes[node.Type] {
			name := scopeName(node, source)
			if name != "" {
				qname := name
				if enclosing != nil && enclosing.qualifiedName != "" {
					qname = model.JoinQualifiedName(enclosing.qualifiedName, name)
				}

				sym := model.CodeSymbol{
					ID:            model.GenerateSymbolId(repoID, relPath, qname, node.StartByte, node.EndByte),
					Name:          name,
					QualifiedName: qname,
					Kind:          kindForNodeType(node.Type),
					Language:      tree.Language,
					FilePath:      relPath,
					ByteRange:     model.ByteRange{Start: node.StartByte, End: node.EndByte},
					LineRange:     model.LineRange{Start: int(node.StartLine), End: int(node.EndLine)},
					Signature:     signatureLine(node, source),
					BodyHash:      model.BodyHash([]byte(node.Content(source))),
				}
				res.Symbols = append(res.Symbols, sym)

				if enclosing != nil {
					res.Relations = append(res.Relations,
						model.NewRelation(enclosing.id, sym.ID, model.RelationContains, relPath, int(node.StartLine)))
				}

				next = &scopeFrame{id: sym.ID, qualifiedName: qname}
			}
		}

		for _, c := range node.Children {
			walk(c, next)
		}
	}

	walk(tree.Root, nil)
	return res
}

func scopeName(n *lang.Node, source []byte) string {
	for _, c := range n.Children {
		switch c.Type {
		case "identifier", "name", "type_identifier", "field_identifier":
			return c.Content(source)
		}
	}
	return ""
}

// calleeName extracts the textual name of a call expression's target, good
// enough to seed a phantom relation id.
func calleeName(n *lang.Node, source []byte) string {
	if len(n.Children) == 0 {
		return ""
	}
	callee := n.Children[0]
	text := callee.Content(source)
	if idx := strings.LastIndexAny(text, ".:"); idx >= 0 {
		text = text[idx+1:]
		text = strings.TrimLeft(text, ":")
	}
	return strings.TrimSpace(text)
}

// importPath extracts a best-effort module path/name from an import node's
// raw text, stripping quotes and the keyword.
func importPath(n *lang.Node, source []byte) string {
	text := strings.TrimSpace(n.Content(source))
	text = strings.TrimSuffix(text, ";")
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	last := fields[len(fields)-1]
	last = strings.Trim(last, `"'`+"`")
	return last
}

// signatureLine returns the node's first source line, a reasonable
// approximation of a declaration signature without a per-language grammar.
func signatureLine(n *lang.Node, source []byte) string {
	content := n.Content(source)
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		return strings.TrimSpace(content[:idx])
	}
	return strings.TrimSpace(content)
}
