package sctype

import (
	"math"
	"sort"
	"strings"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
)

// GeneSets is the output of Prepare: the active, normalized evidence sets for
// one tissue, plus the derived marker specificity weights. It is immutable
// once returned.
type GeneSets struct {
	// Tissue is the tissue category the sets were filtered to.
	Tissue string
	// Types lists the scorable cell types, sorted by name.
	Types []string
	// Positive and Negative map a cell type to its canonical marker symbols,
	// sorted. Every type has a nonempty positive set; negative sets may be
	// empty.
	Positive map[string][]string
	Negative map[string][]string
	// Weights maps a positive marker symbol to its specificity weight,
	// 1/sqrt(# of types listing it as a positive marker). A symbol unique to
	// one type weighs 1. Negative markers are not weighted.
	Weights map[string]float64
}

// Fingerprint computes a farmhash over the gene-set content. It identifies
// the prepared configuration in score-cache files.
func (gs *GeneSets) Fingerprint() uint64 {
	b := strings.Builder{}
	b.WriteString(gs.Tissue)
	for _, t := range gs.Types {
		b.WriteByte(0)
		b.WriteString(t)
		for _, g := range gs.Positive[t] {
			b.WriteByte(1)
			b.WriteString(g)
		}
		for _, g := range gs.Negative[t] {
			b.WriteByte(2)
			b.WriteString(g)
		}
	}
	return farm.Hash64([]byte(b.String()))
}

// normalizeSymbols maps the given symbols to canonical form, dropping (with a
// warning) the ones the table cannot resolve. The result is deduplicated and
// sorted.
func normalizeSymbols(symbols []string, symtab *SymbolTable, cellType string, opts Opts, stats *Stats) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, sym := range symbols {
		c, ok := symtab.Lookup(sym)
		if !ok {
			stats.DroppedSymbols++
			if suggestion, ok := symtab.Suggest(sym, opts.MaxSuggestionDistance); ok {
				log.Error.Printf("%s: dropping unknown gene symbol %q (did you mean %q?)", cellType, sym, suggestion)
			} else {
				log.Error.Printf("%s: dropping unknown gene symbol %q", cellType, sym)
			}
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Prepare filters the marker database to one tissue and normalizes every
// marker symbol against the symbol table. Cell types whose positive set
// becomes empty are dropped; a tissue with no entries is a
// ConfigurationError. The returned GeneSets carries the specificity weight
// table so that Score never recomputes it from the database.
func Prepare(db *MarkerDB, symtab *SymbolTable, tissue string, opts Opts, stats *Stats) (*GeneSets, error) {
	sets := db.TissueSets(tissue)
	if len(sets) == 0 {
		return nil, &ConfigurationError{Tissue: tissue}
	}
	gs := &GeneSets{
		Tissue:   tissue,
		Positive: map[string][]string{},
		Negative: map[string][]string{},
		Weights:  map[string]float64{},
	}
	for _, set := range sets {
		pos := normalizeSymbols(set.Positive, symtab, set.CellType, opts, stats)
		if len(pos) == 0 {
			stats.DroppedTypes++
			log.Error.Printf("dropping cell type %q (tissue %q): no positive markers left after normalization", set.CellType, tissue)
			continue
		}
		gs.Types = append(gs.Types, set.CellType)
		gs.Positive[set.CellType] = pos
		gs.Negative[set.CellType] = normalizeSymbols(set.Negative, symtab, set.CellType, opts, stats)
	}
	if len(gs.Types) == 0 {
		return nil, &ConfigurationError{Tissue: tissue}
	}
	sort.Strings(gs.Types)

	// The weight table is derived from the active database: a marker shared
	// by n types contributes 1/sqrt(n) to each of them.
	counts := map[string]int{}
	for _, t := range gs.Types {
		for _, g := range gs.Positive[t] {
			counts[g]++
		}
	}
	for g, n := range counts {
		gs.Weights[g] = 1 / math.Sqrt(float64(n))
	}
	return gs, nil
}
