package sctype

import (
	"errors"
	"testing"

	"github.com/grailbio/testutil/expect"
)

// testMatrix builds a scaled matrix from per-gene rows.
func testMatrix(genes, cells []string, rows [][]float64) *ExpressionMatrix {
	m := NewExpressionMatrix(genes, cells)
	m.Scaled = true
	for g, row := range rows {
		for c, v := range row {
			m.Set(g, c, v)
		}
	}
	return m
}

func testGeneSets(tissue string, types []string, pos, neg map[string][]string, weights map[string]float64) *GeneSets {
	return &GeneSets{Tissue: tissue, Types: types, Positive: pos, Negative: neg, Weights: weights}
}

func TestScoreRequiresScaledMatrix(t *testing.T) {
	m := testMatrix([]string{"G1"}, []string{"c1"}, [][]float64{{1}})
	m.Scaled = false
	gs := testGeneSets("tissue", []string{"A"},
		map[string][]string{"A": {"G1"}}, map[string][]string{}, map[string]float64{"G1": 1})
	stats := Stats{}
	_, err := Score(m, gs, DefaultOpts, &stats)
	var perr *PreconditionError
	expect.True(t, errors.As(err, &perr))
}

func TestScoreWeightedEvidence(t *testing.T) {
	m := testMatrix(
		[]string{"G1", "G2", "G3"},
		[]string{"c1", "c2"},
		[][]float64{
			{2, -1}, // G1
			{3, 0},  // G2
			{1, 4},  // G3
		})
	// G1 is shared by four types in the original database, so its weight is
	// 1/sqrt(4); G2 and G3 are unique.
	gs := testGeneSets("tissue", []string{"A", "B"},
		map[string][]string{"A": {"G1", "G2"}, "B": {"G3"}},
		map[string][]string{"B": {"G1"}},
		map[string]float64{"G1": 0.5, "G2": 1, "G3": 1})
	stats := Stats{}
	scores, err := Score(m, gs, DefaultOpts, &stats)
	expect.NoError(t, err)

	rowA, ok := scores.TypeRow("A")
	expect.True(t, ok)
	expect.EQ(t, rowA, []float64{0.5*2 + 3, 0.5*-1 + 0})

	// Negative markers subtract unweighted.
	rowB, ok := scores.TypeRow("B")
	expect.True(t, ok)
	expect.EQ(t, rowB, []float64{1 - 2, 4 - -1})

	expect.EQ(t, stats.ScoredTypes, 2)
	expect.EQ(t, stats.ScoredCells, 2)
}

func TestScoreZeroEvidence(t *testing.T) {
	m := testMatrix([]string{"G1"}, []string{"c1", "c2"}, [][]float64{{5, -5}})
	gs := testGeneSets("tissue", []string{"A", "B"},
		map[string][]string{"A": {"G1"}, "B": {"ABSENT"}},
		map[string][]string{"B": {"G1"}}, // negatives alone are not evidence
		map[string]float64{"G1": 1, "ABSENT": 1})
	stats := Stats{}
	scores, err := Score(m, gs, DefaultOpts, &stats)
	expect.NoError(t, err)
	rowB, ok := scores.TypeRow("B")
	expect.True(t, ok)
	expect.EQ(t, rowB, []float64{0, 0})
	expect.EQ(t, stats.ZeroOverlapTypes, 1)
}

func TestScoreDeterminism(t *testing.T) {
	m := testMatrix(
		[]string{"G1", "G2", "G3", "G4"},
		[]string{"c1", "c2", "c3"},
		[][]float64{
			{0.25, -1.75, 0.5},
			{1.125, 0.375, -0.25},
			{-0.625, 2.25, 0.875},
			{0.0625, -0.3125, 1.5},
		})
	gs := testGeneSets("tissue", []string{"A", "B", "C"},
		map[string][]string{"A": {"G1", "G2"}, "B": {"G2", "G3"}, "C": {"G4"}},
		map[string][]string{"A": {"G3"}},
		map[string]float64{"G1": 1, "G2": 0.7071067811865475, "G3": 1, "G4": 1})
	opts := DefaultOpts
	opts.Parallelism = 3
	stats := Stats{}
	first, err := Score(m, gs, opts, &stats)
	expect.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Score(m, gs, opts, &stats)
		expect.NoError(t, err)
		expect.EQ(t, again.data, first.data)
	}
}

func TestPerCellCalls(t *testing.T) {
	s := NewScoreMatrix([]string{"A", "B"}, []string{"c1", "c2"})
	s.Set(0, 0, 2)
	s.Set(1, 0, 1)
	s.Set(0, 1, -1)
	s.Set(1, 1, 3)
	calls := s.PerCellCalls()
	expect.EQ(t, calls, []PerCellCall{
		{Cell: "c1", Type: "A", Score: 2},
		{Cell: "c2", Type: "B", Score: 3},
	})

	// No types, no calls.
	empty := NewScoreMatrix(nil, []string{"c1"})
	expect.Nil(t, empty.PerCellCalls())
}
