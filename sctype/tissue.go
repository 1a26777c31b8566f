package sctype

import (
	"errors"
	"sort"

	"github.com/grailbio/base/log"
)

// TissueRank is one entry of the tissue auto-detection ranking.
type TissueRank struct {
	Tissue string
	// Score is the mean over clusters of the winning aggregate score
	// normalized by cluster size. Higher means the tissue's markers explain
	// the clusters better.
	Score float64
}

// GuessTissue scores every tissue in the database against the matrix and
// ranks tissues by how well their markers explain the clusters. It is meant
// for datasets whose tissue of origin is unknown; the top-ranked tissue is
// then used for a regular Prepare/Score/Aggregate run.
func GuessTissue(db *MarkerDB, symtab *SymbolTable, mat *ExpressionMatrix, clusters ClusterAssignment, opts Opts) ([]TissueRank, error) {
	var ranks []TissueRank
	for _, tissue := range db.Tissues() {
		stats := Stats{}
		gs, err := Prepare(db, symtab, tissue, opts, &stats)
		if err != nil {
			// A tissue whose types all lost their markers to normalization
			// cannot be ranked, but the others still can.
			var cerr *ConfigurationError
			if errors.As(err, &cerr) {
				log.Error.Printf("tissue %q: skipping, no scorable cell types", tissue)
				continue
			}
			return nil, err
		}
		scores, err := Score(mat, gs, opts, &stats)
		if err != nil {
			return nil, err
		}
		calls, err := Aggregate(scores, clusters, opts, &stats)
		if err != nil {
			return nil, err
		}
		total := 0.0
		for _, call := range calls {
			total += call.Score / float64(call.CellCount)
		}
		rank := TissueRank{Tissue: tissue}
		if len(calls) > 0 {
			rank.Score = total / float64(len(calls))
		}
		log.Printf("tissue %q: %d types, %d clusters, score %f", tissue, len(gs.Types), len(calls), rank.Score)
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Score != ranks[j].Score {
			return ranks[i].Score > ranks[j].Score
		}
		return ranks[i].Tissue < ranks[j].Tissue
	})
	return ranks, nil
}
