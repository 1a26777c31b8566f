package sctype

import (
	"errors"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func testMarkerDB(t *testing.T, sets ...MarkerSet) *MarkerDB {
	t.Helper()
	db := NewMarkerDB()
	for _, set := range sets {
		if err := db.Add(set); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestPrepareUnknownTissue(t *testing.T) {
	db := testMarkerDB(t, MarkerSet{Tissue: "Immune system", CellType: "B cells", Positive: []string{"CD19"}})
	tab := NewSymbolTableFromGenes([]string{"CD19"})
	stats := Stats{}
	_, err := Prepare(db, tab, "Liver", DefaultOpts, &stats)
	var cerr *ConfigurationError
	expect.True(t, errors.As(err, &cerr))
	expect.EQ(t, cerr.Tissue, "Liver")
}

func TestPrepareWeights(t *testing.T) {
	// HOUSEKEEP is a positive marker of all four types, UNIQUE of one.
	db := testMarkerDB(t,
		MarkerSet{Tissue: "Immune system", CellType: "A", Positive: []string{"HOUSEKEEP", "UNIQUE"}},
		MarkerSet{Tissue: "Immune system", CellType: "B", Positive: []string{"HOUSEKEEP"}},
		MarkerSet{Tissue: "Immune system", CellType: "C", Positive: []string{"HOUSEKEEP"}},
		MarkerSet{Tissue: "Immune system", CellType: "D", Positive: []string{"HOUSEKEEP"}},
	)
	tab := NewSymbolTableFromGenes([]string{"HOUSEKEEP", "UNIQUE"})
	stats := Stats{}
	gs, err := Prepare(db, tab, "Immune system", DefaultOpts, &stats)
	expect.NoError(t, err)
	expect.EQ(t, gs.Types, []string{"A", "B", "C", "D"})
	expect.EQ(t, gs.Weights["HOUSEKEEP"], 0.5) // 1/sqrt(4)
	expect.EQ(t, gs.Weights["UNIQUE"], 1.0)
}

func TestPrepareNormalization(t *testing.T) {
	db := testMarkerDB(t,
		MarkerSet{Tissue: "Immune system", CellType: "B cells",
			Positive: []string{"cd19", "CD20", "NOSUCHGENE"}, Negative: []string{"cd3e"}},
		MarkerSet{Tissue: "Immune system", CellType: "Ghost cells", Positive: []string{"NOSUCHGENE"}},
	)
	tab := NewSymbolTable([]Symbol{
		{Canonical: "CD19"},
		{Canonical: "MS4A1", Aliases: []string{"CD20"}},
		{Canonical: "CD3E"},
	})
	stats := Stats{}
	gs, err := Prepare(db, tab, "Immune system", DefaultOpts, &stats)
	expect.NoError(t, err)
	// Ghost cells lost its only positive marker and is dropped.
	expect.EQ(t, gs.Types, []string{"B cells"})
	expect.EQ(t, gs.Positive["B cells"], []string{"CD19", "MS4A1"})
	expect.EQ(t, gs.Negative["B cells"], []string{"CD3E"})
	expect.EQ(t, stats.DroppedTypes, 1)
	expect.EQ(t, stats.DroppedSymbols, 2)
}

func TestPrepareDeterministicFingerprint(t *testing.T) {
	db := testMarkerDB(t,
		MarkerSet{Tissue: "Immune system", CellType: "B cells", Positive: []string{"CD19", "MS4A1"}},
		MarkerSet{Tissue: "Immune system", CellType: "T cells", Positive: []string{"CD3E"}, Negative: []string{"CD19"}},
	)
	tab := NewSymbolTableFromGenes([]string{"CD19", "MS4A1", "CD3E"})
	stats := Stats{}
	gs1, err := Prepare(db, tab, "Immune system", DefaultOpts, &stats)
	expect.NoError(t, err)
	gs2, err := Prepare(db, tab, "Immune system", DefaultOpts, &stats)
	expect.NoError(t, err)
	expect.EQ(t, gs1.Fingerprint(), gs2.Fingerprint())

	// Dropping the negative marker must change the fingerprint.
	db2 := testMarkerDB(t,
		MarkerSet{Tissue: "Immune system", CellType: "B cells", Positive: []string{"CD19", "MS4A1"}},
		MarkerSet{Tissue: "Immune system", CellType: "T cells", Positive: []string{"CD3E"}},
	)
	gs3, err := Prepare(db2, tab, "Immune system", DefaultOpts, &stats)
	expect.NoError(t, err)
	expect.True(t, gs1.Fingerprint() != gs3.Fingerprint())
}
