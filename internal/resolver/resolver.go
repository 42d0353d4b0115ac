// Package resolver resolves phantom cross-file relation targets against the
// symbols actually indexed for a repository, using a tiered match strategy
// (exact qualified name, dotted-suffix match, exact simple name) with
// deterministic tie-breaking.
package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/Kosthi/openace/internal/model"
)

// matchTier ranks how a candidate phantom match was found; lower is better.
type matchTier int

const (
	tierExactQualifiedName matchTier = iota
	tierSuffixMatch
	tierExactName
)

// SymbolRef is the lightweight projection of a CodeSymbol the resolver needs:
// just enough to build the phantom lookup without hauling body text along.
type SymbolRef struct {
	ID            model.SymbolId
	Name          string
	QualifiedName string
	FilePath      string
}

type candidate struct {
	realID   model.SymbolId
	filePath string
	tier     matchTier
}

// Stats summarizes a resolution pass.
type Stats struct {
	AlreadyResolved         int
	ResolvedByQualifiedName int
	ResolvedBySuffix        int
	ResolvedByName          int
	Unresolved              int
	Total                   int
}

// buildPhantomLookup maps phantom target IDs (as the parser would generate
// them for a textual cross-file reference) to the candidate real symbols
// that could satisfy them.
func buildPhantomLookup(symbols []SymbolRef) map[model.SymbolId][]candidate {
	lookup := make(map[model.SymbolId][]candidate)

	add := func(text string, sym SymbolRef, tier matchTier) {
		id := model.GenerateSymbolId("", "", text, 0, 0)
		lookup[id] = append(lookup[id], candidate{realID: sym.ID, filePath: sym.FilePath, tier: tier})
	}

	for _, sym := range symbols {
		add(sym.QualifiedName, sym, tierExactQualifiedName)

		qname := sym.QualifiedName
		pos := 0
		for {
			idx := strings.IndexByte(qname[pos:], '.')
			if idx < 0 {
				break
			}
			suffix := qname[pos+idx+1:]
			if suffix != "" && suffix != sym.Name {
				add(suffix, sym, tierSuffixMatch)
			}
			pos += idx + 1
		}

		if sym.Name != sym.QualifiedName {
			add(sym.Name, sym, tierExactName)
		}
	}

	return lookup
}

// pickBest selects the best candidate: lowest tier, breaking ties first by
// same-directory preference relative to the referencing relation's file,
// then alphabetically by file path for determinism.
func pickBest(candidates []candidate, relationDir string) *candidate {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return &candidates[0]
	}

	best := candidates[0].tier
	for _, c := range candidates[1:] {
		if c.tier < best {
			best = c.tier
		}
	}

	var atBest []candidate
	for _, c := range candidates {
		if c.tier == best {
			atBest = append(atBest, c)
		}
	}
	if len(atBest) == 1 {
		return &atBest[0]
	}

	if relationDir != "" {
		var sameDir []candidate
		for _, c := range atBest {
			if path.Dir(c.filePath) == relationDir {
				sameDir = append(sameDir, c)
			}
		}
		if len(sameDir) > 0 {
			atBest = sameDir
		}
	}

	sort.Slice(atBest, func(i, j int) bool { return atBest[i].filePath < atBest[j].filePath })
	return &atBest[0]
}

// ResolveRelations mutates relations in place, replacing any target_id not
// present in knownIDs with the best-matching real symbol found via the
// phantom lookup built from symbols. Relations with no match are left
// unchanged.
func ResolveRelations(relations []model.CodeRelation, symbols []SymbolRef, knownIDs map[model.SymbolId]bool) Stats {
	lookup := buildPhantomLookup(symbols)
	stats := Stats{Total: len(relations)}

	for i := range relations {
		rel := &relations[i]

		if knownIDs[rel.TargetID] {
			stats.AlreadyResolved++
			continue
		}

		relationDir := path.Dir(rel.FilePath)

		candidates, ok := lookup[rel.TargetID]
		if ok {
			if best := pickBest(candidates, relationDir); best != nil {
				rel.TargetID = best.realID
				switch best.tier {
				case tierExactQualifiedName:
					stats.ResolvedByQualifiedName++
				case tierSuffixMatch:
					stats.ResolvedBySuffix++
				case tierExactName:
					stats.ResolvedByName++
				}
				continue
			}
		}

		stats.Unresolved++
	}

	return stats
}

// SymbolRefsFrom projects CodeSymbols into the lightweight SymbolRef slice
// the resolver operates on.
func SymbolRefsFrom(symbols []model.CodeSymbol) []SymbolRef {
	refs := make([]SymbolRef, len(symbols))
	for i, s := range symbols {
		refs[i] = SymbolRef{ID: s.ID, Name: s.Name, QualifiedName: s.QualifiedName, FilePath: s.FilePath}
	}
	return refs
}
