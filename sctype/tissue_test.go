package sctype

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestGuessTissue(t *testing.T) {
	db := testMarkerDB(t,
		MarkerSet{Tissue: "Immune system", CellType: "T cells", Positive: []string{"CD3E"}},
		MarkerSet{Tissue: "Liver", CellType: "Hepatocytes", Positive: []string{"ALB"}},
	)
	genes := []string{"CD3E", "ALB"}
	cells := []string{"c1", "c2"}
	m := testMatrix(genes, cells, [][]float64{
		{2, 2},   // CD3E: strongly expressed
		{-1, -1}, // ALB: depleted
	})
	clusters := ClusterAssignment{"c1": "0", "c2": "0"}

	ranks, err := GuessTissue(db, NewSymbolTableFromGenes(genes), m, clusters, DefaultOpts)
	expect.NoError(t, err)
	expect.EQ(t, len(ranks), 2)
	expect.EQ(t, ranks[0].Tissue, "Immune system")
	expect.EQ(t, ranks[0].Score, 2.0) // (2+2)/2 cells, one cluster
	expect.EQ(t, ranks[1].Tissue, "Liver")
	expect.EQ(t, ranks[1].Score, -1.0)
}

func TestGuessTissueSkipsUnscorableTissue(t *testing.T) {
	// The pancreas markers are all absent from the matrix, so the tissue
	// drops out of the ranking instead of failing the whole guess.
	db := testMarkerDB(t,
		MarkerSet{Tissue: "Immune system", CellType: "T cells", Positive: []string{"CD3E"}},
		MarkerSet{Tissue: "Pancreas", CellType: "Beta cells", Positive: []string{"INS"}},
	)
	genes := []string{"CD3E"}
	m := testMatrix(genes, []string{"c1"}, [][]float64{{2}})
	clusters := ClusterAssignment{"c1": "0"}

	ranks, err := GuessTissue(db, NewSymbolTableFromGenes(genes), m, clusters, DefaultOpts)
	expect.NoError(t, err)
	expect.EQ(t, len(ranks), 1)
	expect.EQ(t, ranks[0].Tissue, "Immune system")
}
