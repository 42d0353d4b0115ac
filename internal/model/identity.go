// Package model defines the symbol graph's data types and the deterministic
// identity scheme that lets incremental updates and cross-file reference
// resolution work without a UUID registry.
package model

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

// SymbolId is a 128-bit deterministic identifier. Two symbols with the same
// repo, path, qualified name, and byte span always hash to the same ID,
// across hosts and across reparses of unchanged code.
type SymbolId [16]byte

// ChunkId is the analogous 128-bit identifier for AST chunks. The literal
// word "chunk" is folded into the hash input so a chunk can never collide
// with a symbol sharing the same file and byte span.
type ChunkId [16]byte

// NilSymbolId is the zero value, returned when identity cannot be computed.
var NilSymbolId SymbolId

// GenerateSymbolId computes the deterministic ID for a symbol or a phantom
// relation target. Phantom targets are generated with repoID="" , path="",
// byteStart=0, byteEnd=0 and only the textual name populated.
func GenerateSymbolId(repoID, relPath, qualifiedName string, byteStart, byteEnd uint32) SymbolId {
	key := fmt.Sprintf("%s|%s|%s|%d|%d", repoID, relPath, qualifiedName, byteStart, byteEnd)
	return SymbolId(xxh3.Hash128([]byte(key)).Bytes())
}

// GenerateChunkId computes the deterministic ID for an AST chunk.
func GenerateChunkId(repoID, relPath string, byteStart, byteEnd uint32) ChunkId {
	key := fmt.Sprintf("%s|%s|chunk|%d|%d", repoID, relPath, byteStart, byteEnd)
	return ChunkId(xxh3.Hash128([]byte(key)).Bytes())
}

// BodyHash returns the lower 64 bits of XXH3-128 over a symbol's exact body
// bytes, used to detect whether a symbol's content changed across a reparse.
func BodyHash(body []byte) uint64 {
	return xxh3.Hash128(body).Lo
}

// ContentHash returns the XXH3-64 hash of a file's raw bytes, the sole
// source of truth for "should we reparse?" decisions.
func ContentHash(content []byte) uint64 {
	return xxh3.Hash(content)
}

// String renders a SymbolId as 32 lowercase hex characters.
func (id SymbolId) String() string {
	return hex.EncodeToString(id[:])
}

// IsNil reports whether id is the zero value.
func (id SymbolId) IsNil() bool {
	return id == NilSymbolId
}

// Bytes returns the raw 16 bytes of the identifier.
func (id SymbolId) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// SymbolIdFromBytes reconstructs a SymbolId from its raw byte
// representation. SymbolIdFromBytes(id.Bytes()) == id for any id.
func SymbolIdFromBytes(b []byte) (SymbolId, error) {
	var id SymbolId
	if len(b) != 16 {
		return id, fmt.Errorf("model: invalid SymbolId length %d, want 16", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// SymbolIdFromHex parses the 32-hex-character display form back into a SymbolId.
func SymbolIdFromHex(s string) (SymbolId, error) {
	var id SymbolId
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("model: invalid SymbolId hex %q: %w", s, err)
	}
	return SymbolIdFromBytes(b)
}

// String renders a ChunkId as 32 lowercase hex characters.
func (id ChunkId) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 16 bytes of the identifier.
func (id ChunkId) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}
