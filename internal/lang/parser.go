package lang

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Kosthi/openace/internal/model"
)

// Node is a language-agnostic AST node. It carries enough of the
// tree-sitter node's shape for the chunker and resolver without leaking the
// sitter.Node type (and its tree-attached memory) past the parse step.
type Node struct {
	Type      string
	StartByte uint32
	EndByte   uint32
	StartLine uint32 // 0-indexed
	EndLine   uint32
	FieldName string // this node's field name within its parent, if any
	IsNamed   bool
	HasError  bool
	Children  []*Node
}

// Tree is a parsed file's AST plus its source bytes.
type Tree struct {
	Root     *Node
	Source   []byte
	Language model.Language
	Spec     *Spec
}

// Content returns the source slice a node spans.
func (n *Node) Content(source []byte) string {
	if n == nil || n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// ChildByField returns the first child recorded under the given field name.
func (n *Node) ChildByField(field string) *Node {
	for _, c := range n.Children {
		if c.FieldName == field {
			return c
		}
	}
	return nil
}

// Walk traverses the tree depth-first, pre-order. fn returning false skips
// that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Parser parses source bytes into a Tree using the registered grammar for a
// language.
type Parser struct {
	sp       *sitter.Parser
	registry *Registry
}

// NewParser builds a Parser against the default registry.
func NewParser() *Parser {
	return &Parser{sp: sitter.NewParser(), registry: Default()}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.sp != nil {
		p.sp.Close()
	}
}

// Parse parses source with the grammar for language l (the TSX grammar when
// isTSX is set), returning a Tree.
func (p *Parser) Parse(ctx context.Context, source []byte, l model.Language, isTSX bool) (*Tree, error) {
	grammar, spec, ok := p.registry.ForLanguage(l, isTSX)
	if !ok {
		return nil, fmt.Errorf("lang: no grammar registered for %v", l)
	}
	p.sp.SetLanguage(grammar)

	tsTree, err := p.sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("lang: parse failed: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("lang: parse produced nil tree")
	}

	root := convert(tsTree.RootNode(), source, "")
	return &Tree{Root: root, Source: source, Language: l, Spec: spec}, nil
}

func convert(n *sitter.Node, source []byte, fieldName string) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:      n.Type(),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		StartLine: n.StartPoint().Row,
		EndLine:   n.EndPoint().Row,
		FieldName: fieldName,
		IsNamed:   n.IsNamed(),
		HasError:  n.HasError(),
		Children:  make([]*Node, 0, int(n.ChildCount())),
	}

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		out.Children = append(out.Children, convert(child, source, n.FieldNameForChild(i)))
	}
	return out
}
