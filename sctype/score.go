package sctype

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// typeEvidence is the per-type scoring plan: the marker rows that actually
// exist in the expression matrix, resolved before the parallel pass so that
// workers only do arithmetic.
type typeEvidence struct {
	// positive rows and their specificity weights, index-aligned.
	posRows [][]float64
	posW    []float64
	// negative rows, contributing with a fixed negative sign.
	negRows [][]float64
}

// Score computes the cell-type x cell evidence matrix for the prepared gene
// sets. A cell type's score for a cell is the weighted sum of its positive
// marker expression minus the sum of its negative marker expression in that
// cell. Types whose positive markers are all absent from the matrix yield an
// all-zero row rather than an error.
//
// The matrix must hold scaled (per-gene z-scored) values; Score returns a
// PreconditionError otherwise. The computation is deterministic and never
// mutates its inputs. Rows are scored in parallel, one worker per cell type,
// each writing a disjoint output row.
func Score(mat *ExpressionMatrix, gs *GeneSets, opts Opts, stats *Stats) (*ScoreMatrix, error) {
	if !mat.Scaled {
		return nil, &PreconditionError{Reason: "expression matrix is not declared scaled (per-gene z-scores required)"}
	}

	evidence := make([]typeEvidence, len(gs.Types))
	for i, t := range gs.Types {
		ev := &evidence[i]
		for _, g := range gs.Positive[t] {
			if row, ok := mat.GeneRow(g); ok {
				ev.posRows = append(ev.posRows, row)
				ev.posW = append(ev.posW, gs.Weights[g])
			}
		}
		if len(ev.posRows) == 0 {
			stats.ZeroOverlapTypes++
			log.Error.Printf("cell type %q: no positive markers present in the expression matrix, scores will be zero", t)
			continue
		}
		for _, g := range gs.Negative[t] {
			if row, ok := mat.GeneRow(g); ok {
				ev.negRows = append(ev.negRows, row)
			}
		}
	}

	scores := NewScoreMatrix(gs.Types, mat.Cells())
	parallelism := opts.parallelism()
	if parallelism > len(gs.Types) {
		parallelism = len(gs.Types)
	}
	err := traverse.Each(parallelism, func(job int) error {
		for ti := job; ti < len(gs.Types); ti += parallelism {
			ev := &evidence[ti]
			out := scores.row(ti)
			for ri, row := range ev.posRows {
				w := ev.posW[ri]
				for c, v := range row {
					out[c] += w * v
				}
			}
			for _, row := range ev.negRows {
				for c, v := range row {
					out[c] -= v
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	stats.ScoredTypes += scores.NTypes()
	stats.ScoredCells += scores.NCells()
	return scores, nil
}
