// Package chunker implements the AST-aware chunking algorithm: source files
// are split into retrievable windows by greedily packing root AST children
// against a non-whitespace character budget, recursing into any child that
// overflows the budget on its own.
package chunker

import (
	"bytes"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/Kosthi/openace/internal/lang"
	"github.com/Kosthi/openace/internal/model"
)

// Config controls the chunking budget.
type Config struct {
	// MaxChunkChars is the maximum non-whitespace character count per chunk.
	MaxChunkChars int
	// OverlapNodes is the number of trailing child nodes carried from a
	// flushed window into the next one.
	OverlapNodes int
}

// DefaultConfig returns the engine's default chunking parameters.
func DefaultConfig() Config {
	return Config{MaxChunkChars: 1500, OverlapNodes: 1}
}

type byteRange struct {
	start, end uint32
}

// window accumulates consecutive child byte ranges under the NWS budget.
type window struct {
	nodes    []byteRange
	nwsCount uint32
}

func (w *window) empty() bool { return len(w.nodes) == 0 }

func (w *window) byteRange() (byteRange, bool) {
	if len(w.nodes) == 0 {
		return byteRange{}, false
	}
	return byteRange{start: w.nodes[0].start, end: w.nodes[len(w.nodes)-1].end}, true
}

// buildNWSCumsum returns a prefix-sum array where cumsum[i] is the count of
// non-whitespace bytes in source[0:i], giving O(1) NWS range queries.
func buildNWSCumsum(source []byte) []uint32 {
	cumsum := make([]uint32, len(source)+1)
	var count uint32
	for i, b := range source {
		if !isASCIISpace(b) {
			count++
		}
		cumsum[i+1] = count
	}
	return cumsum
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

func nwsSize(cumsum []uint32, start, end uint32) uint32 {
	if end <= start || int(end) >= len(cumsum) {
		return 0
	}
	return cumsum[end] - cumsum[start]
}

// ChunkFile splits a parsed file's AST into CodeChunks per the NWS-budget
// window-packing algorithm. filePath is stored on each chunk; repoID seeds
// chunk ID generation alongside the file path and byte range.
func ChunkFile(repoID, filePath string, tree *lang.Tree, cfg Config) []model.CodeChunk {
	source := tree.Source
	cumsum := buildNWSCumsum(source)
	totalNWS := nwsSize(cumsum, 0, uint32(len(source)))

	if totalNWS <= uint32(cfg.MaxChunkChars) {
		return []model.CodeChunk{singleChunk(repoID, filePath, source)}
	}

	var ranges []byteRange
	assignChildrenToWindows(tree.Root, cumsum, uint32(cfg.MaxChunkChars), cfg.OverlapNodes, &ranges)

	if len(ranges) == 0 {
		return nil
	}

	scopeTypes := map[string]bool{}
	if tree.Spec != nil {
		scopeTypes = tree.Spec.ScopeTypes
	}

	total := len(ranges)
	chunks := make([]model.CodeChunk, 0, total)
	for idx, r := range ranges {
		end := r.end
		if int(end) > len(source) {
			end = uint32(len(source))
		}
		if r.start >= end {
			continue
		}

		chunkSource := source[r.start:end]
		content := string(model.TruncateUTF8(chunkSource, model.MaxBodyTextBytes))
		contentHash := xxh3.Hash([]byte(content))

		lineStart := bytes.Count(source[:r.start], []byte{'\n'})
		lineEnd := lineStart + bytes.Count(chunkSource, []byte{'\n'})

		contextPath := ""
		if path := ancestorScopeNames(tree.Root, source, r.start, scopeTypes); len(path) > 0 {
			contextPath = strings.Join(path, ".")
		}

		chunks = append(chunks, model.CodeChunk{
			ID:          model.GenerateChunkId(repoID, filePath, r.start, end),
			FilePath:    filePath,
			ByteRange:   model.ByteRange{Start: r.start, End: end},
			LineRange:   model.LineRange{Start: lineStart, End: lineEnd},
			ChunkIndex:  idx,
			TotalChunks: total,
			ContextPath: contextPath,
			Content:     content,
			ContentHash: contentHash,
		})
	}
	return chunks
}

func singleChunk(repoID, filePath string, source []byte) model.CodeChunk {
	content := string(model.TruncateUTF8(source, model.MaxBodyTextBytes))
	lineEnd := bytes.Count(source, []byte{'\n'})
	return model.CodeChunk{
		ID:          model.GenerateChunkId(repoID, filePath, 0, uint32(len(source))),
		FilePath:    filePath,
		ByteRange:   model.ByteRange{Start: 0, End: uint32(len(source))},
		LineRange:   model.LineRange{Start: 0, End: lineEnd},
		ChunkIndex:  0,
		TotalChunks: 1,
		ContextPath: "",
		Content:     content,
		ContentHash: xxh3.Hash([]byte(content)),
	}
}

// assignChildrenToWindows recursively distributes a node's children across
// budget-respecting windows, appending finished windows' byte ranges to out.
func assignChildrenToWindows(node *lang.Node, cumsum []uint32, maxChars uint32, overlap int, out *[]byteRange) {
	if node == nil {
		return
	}
	if len(node.Children) == 0 {
		if node.StartByte < node.EndByte {
			*out = append(*out, byteRange{start: node.StartByte, end: node.EndByte})
		}
		return
	}

	w := &window{}

	flushWithOverlap := func() {
		if w.empty() {
			return
		}
		if r, ok := w.byteRange(); ok {
			*out = append(*out, r)
		}

		var carry []byteRange
		if overlap > 0 && len(w.nodes) > overlap {
			carry = append(carry, w.nodes[len(w.nodes)-overlap:]...)
		}
		var carryNWS uint32
		for _, c := range carry {
			carryNWS += nwsSize(cumsum, c.start, c.end)
		}
		w.nodes = carry
		w.nwsCount = carryNWS
	}

	for _, child := range node.Children {
		childNWS := nwsSize(cumsum, child.StartByte, child.EndByte)
		if childNWS == 0 {
			continue
		}

		if childNWS <= maxChars {
			if w.nwsCount+childNWS <= maxChars {
				w.nodes = append(w.nodes, byteRange{start: child.StartByte, end: child.EndByte})
				w.nwsCount += childNWS
				continue
			}
			flushWithOverlap()
			w.nodes = append(w.nodes, byteRange{start: child.StartByte, end: child.EndByte})
			w.nwsCount += childNWS
			continue
		}

		// Child itself exceeds the budget: flush what we have (no overlap
		// carry-over into a recursive descent) and recurse into its children.
		if !w.empty() {
			if r, ok := w.byteRange(); ok {
				*out = append(*out, r)
			}
			w.nodes = nil
			w.nwsCount = 0
		}
		assignChildrenToWindows(child, cumsum, maxChars, overlap, out)
	}

	if !w.empty() {
		if r, ok := w.byteRange(); ok {
			*out = append(*out, r)
		}
	}
}

// ancestorScopeNames walks down from root to the deepest node containing
// byte offset pos, collecting the names of any scope-type ancestors along
// the way, outermost first.
func ancestorScopeNames(root *lang.Node, source []byte, pos uint32, scopeTypes map[string]bool) []string {
	var names []string
	node := root
	for node != nil {
		if scopeTypes[node.Type] {
			if name := scopeName(node, source); name != "" {
				names = append(names, name)
			}
		}

		next := childContaining(node, pos)
		if next == nil {
			break
		}
		node = next
	}
	return names
}

func childContaining(node *lang.Node, pos uint32) *lang.Node {
	for _, c := range node.Children {
		if pos >= c.StartByte && pos < c.EndByte {
			return c
		}
	}
	return nil
}

// scopeName extracts a scope node's identifier from its direct children,
// per the identifier/name/type_identifier/field_identifier convention the
// supported grammars share.
func scopeName(n *lang.Node, source []byte) string {
	for _, c := range n.Children {
		switch c.Type {
		case "identifier", "name", "type_identifier", "field_identifier":
			return c.Content(source)
		}
	}
	return ""
}
