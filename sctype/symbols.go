package sctype

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Symbol is one entry of a gene-symbol naming table: a canonical symbol plus
// the aliases that resolve to it.
type Symbol struct {
	Canonical string
	Aliases   []string
}

// SymbolTable maps case- and alias-variant gene symbols to their canonical
// form. Marker symbols are normalized against it before scoring so that the
// marker database and the expression matrix agree on naming.
type SymbolTable struct {
	// canon maps the upper-cased symbol or alias to the canonical symbol.
	canon map[string]string
	// canonical, sorted, for deterministic nearest-match scans.
	canonical []string
}

// NewSymbolTable builds a table from canonical symbols and their aliases.
// Later entries do not override earlier ones on key collisions.
func NewSymbolTable(symbols []Symbol) *SymbolTable {
	t := &SymbolTable{canon: make(map[string]string, len(symbols))}
	for _, s := range symbols {
		t.addKey(s.Canonical, s.Canonical)
		for _, a := range s.Aliases {
			t.addKey(a, s.Canonical)
		}
		t.canonical = append(t.canonical, s.Canonical)
	}
	sort.Strings(t.canonical)
	return t
}

// NewSymbolTableFromGenes builds an identity table from a gene axis, for
// callers without an external naming table: every matrix gene is its own
// canonical symbol, matched case-insensitively.
func NewSymbolTableFromGenes(genes []string) *SymbolTable {
	symbols := make([]Symbol, len(genes))
	for i, g := range genes {
		symbols[i] = Symbol{Canonical: g}
	}
	return NewSymbolTable(symbols)
}

func (t *SymbolTable) addKey(key, canonical string) {
	key = strings.ToUpper(key)
	if _, ok := t.canon[key]; !ok {
		t.canon[key] = canonical
	}
}

// Len returns the number of canonical symbols.
func (t *SymbolTable) Len() int { return len(t.canonical) }

// Lookup resolves a symbol to its canonical form.
func (t *SymbolTable) Lookup(symbol string) (string, bool) {
	c, ok := t.canon[strings.ToUpper(symbol)]
	return c, ok
}

// Suggest returns the canonical symbol nearest to the given unresolvable one,
// if any is within maxDist Levenshtein edits. Ties resolve to the symbol that
// sorts first.
func (t *SymbolTable) Suggest(symbol string, maxDist int) (string, bool) {
	if maxDist <= 0 {
		return "", false
	}
	upper := strings.ToUpper(symbol)
	best, bestDist := "", maxDist+1
	for _, c := range t.canonical {
		if d := matchr.Levenshtein(upper, strings.ToUpper(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist <= maxDist
}
