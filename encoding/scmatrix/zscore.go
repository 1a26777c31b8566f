package scmatrix

import (
	"math"

	"github.com/grailbio/base/traverse"
	"github.com/scbio/scrna/sctype"
)

// ZScore scales the matrix in place to per-gene z-scores: each gene row ends
// up with mean 0 and unit variance across cells. Genes with zero variance
// scale to all-zero rows. The matrix is marked scaled afterwards.
//
// This is the preprocessing collaborator's half of the contract; the scoring
// engine itself never rescales its input.
func ZScore(m *sctype.ExpressionMatrix, parallelism int) error {
	if m.Scaled {
		return nil
	}
	genes := m.Genes()
	if parallelism <= 0 || parallelism > len(genes) {
		parallelism = len(genes)
	}
	nc := float64(m.NCells())
	err := traverse.Each(parallelism, func(job int) error {
		for g := job; g < len(genes); g += parallelism {
			row, _ := m.GeneRow(genes[g])
			mean := 0.0
			for _, v := range row {
				mean += v
			}
			mean /= nc
			variance := 0.0
			for _, v := range row {
				d := v - mean
				variance += d * d
			}
			// Sample variance, matching the scaling the R/Python single-cell
			// stacks apply before marker scoring.
			if nc > 1 {
				variance /= nc - 1
			}
			if variance == 0 {
				for c := range row {
					row[c] = 0
				}
				continue
			}
			sd := math.Sqrt(variance)
			for c, v := range row {
				row[c] = (v - mean) / sd
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.Scaled = true
	return nil
}
