package sctype

import (
	"encoding/binary"
	"math"

	"github.com/minio/highwayhash"
)

// ExpressionMatrix is a dense gene x cell matrix of expression values. It is
// produced by the preprocessing pipeline (see encoding/scmatrix) and is
// read-only once handed to the scoring engine.
type ExpressionMatrix struct {
	genes     []string
	geneIndex map[string]int
	cells     []string
	cellIndex map[string]int

	// Scaled records whether the values are per-gene z-scores (mean 0,
	// variance 1 across cells). Score refuses unscaled matrices.
	Scaled bool

	// data is row-major: data[g*len(cells)+c] is the value of gene g in cell c.
	data []float64
}

// NewExpressionMatrix creates a matrix of zeros with the given gene and cell
// axes. Gene and cell names must be unique along their axis.
func NewExpressionMatrix(genes, cells []string) *ExpressionMatrix {
	m := &ExpressionMatrix{
		genes:     genes,
		geneIndex: make(map[string]int, len(genes)),
		cells:     cells,
		cellIndex: make(map[string]int, len(cells)),
		data:      make([]float64, len(genes)*len(cells)),
	}
	for i, g := range genes {
		m.geneIndex[g] = i
	}
	for i, c := range cells {
		m.cellIndex[c] = i
	}
	return m
}

func (m *ExpressionMatrix) NGenes() int { return len(m.genes) }
func (m *ExpressionMatrix) NCells() int { return len(m.cells) }

// Genes returns the gene axis in matrix order. The caller must not mutate it.
func (m *ExpressionMatrix) Genes() []string { return m.genes }

// Cells returns the cell axis in matrix order. The caller must not mutate it.
func (m *ExpressionMatrix) Cells() []string { return m.cells }

// GeneRow returns the values of one gene across all cells, in cell-axis
// order, and whether the gene exists. The returned slice aliases the matrix.
func (m *ExpressionMatrix) GeneRow(gene string) ([]float64, bool) {
	g, ok := m.geneIndex[gene]
	if !ok {
		return nil, false
	}
	nc := len(m.cells)
	return m.data[g*nc : (g+1)*nc], true
}

// Set stores one value. It is meant for matrix construction; the scoring
// engine never calls it.
func (m *ExpressionMatrix) Set(gene, cell int, v float64) {
	m.data[gene*len(m.cells)+cell] = v
}

// Get returns the value at (gene, cell) by axis position.
func (m *ExpressionMatrix) Get(gene, cell int) float64 {
	return m.data[gene*len(m.cells)+cell]
}

// The fingerprint is a content checksum, not a MAC, so a fixed zero key is
// fine.
var fingerprintKey [32]byte

// Fingerprint computes a highwayhash checksum over the matrix axes and
// values. Two matrices with identical genes, cells, scaled flag, and data
// have identical fingerprints.
func (m *ExpressionMatrix) Fingerprint() uint64 {
	h, err := highwayhash.New64(fingerprintKey[:])
	if err != nil {
		panic(err)
	}
	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	for _, g := range m.genes {
		writeString(g)
	}
	for _, c := range m.cells {
		writeString(c)
	}
	if m.Scaled {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	for _, v := range m.data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// ScoreMatrix is a dense cell-type x cell matrix of evidence scores, the
// output of Score. Higher means stronger evidence that the cell belongs to
// the type.
type ScoreMatrix struct {
	types     []string
	typeIndex map[string]int
	cells     []string
	cellIndex map[string]int

	// data is row-major: data[t*len(cells)+c].
	data []float64
}

// NewScoreMatrix creates a zero score matrix with the given axes.
func NewScoreMatrix(types, cells []string) *ScoreMatrix {
	s := &ScoreMatrix{
		types:     types,
		typeIndex: make(map[string]int, len(types)),
		cells:     cells,
		cellIndex: make(map[string]int, len(cells)),
		data:      make([]float64, len(types)*len(cells)),
	}
	for i, t := range types {
		s.typeIndex[t] = i
	}
	for i, c := range cells {
		s.cellIndex[c] = i
	}
	return s
}

func (s *ScoreMatrix) NTypes() int { return len(s.types) }
func (s *ScoreMatrix) NCells() int { return len(s.cells) }

// Types returns the cell-type axis in matrix order. The caller must not
// mutate it.
func (s *ScoreMatrix) Types() []string { return s.types }

// Cells returns the cell axis in matrix order. The caller must not mutate it.
func (s *ScoreMatrix) Cells() []string { return s.cells }

// TypeRow returns the score row for one cell type. The returned slice
// aliases the matrix.
func (s *ScoreMatrix) TypeRow(typ string) ([]float64, bool) {
	t, ok := s.typeIndex[typ]
	if !ok {
		return nil, false
	}
	nc := len(s.cells)
	return s.data[t*nc : (t+1)*nc], true
}

// Get returns the score at (type, cell) by axis position.
func (s *ScoreMatrix) Get(typ, cell int) float64 {
	return s.data[typ*len(s.cells)+cell]
}

// Set stores one score by axis position.
func (s *ScoreMatrix) Set(typ, cell int, v float64) {
	s.data[typ*len(s.cells)+cell] = v
}

// row returns the mutable score row at position t.
func (s *ScoreMatrix) row(t int) []float64 {
	nc := len(s.cells)
	return s.data[t*nc : (t+1)*nc]
}

// PerCellCall is the argmax cell type for a single cell.
type PerCellCall struct {
	Cell  string
	Type  string
	Score float64
}

// PerCellCalls returns the top-scoring type for every cell, in cell-axis
// order, or nil if the matrix has no types. Ties resolve to the type that
// sorts first on the type axis.
func (s *ScoreMatrix) PerCellCalls() []PerCellCall {
	if len(s.types) == 0 {
		return nil
	}
	calls := make([]PerCellCall, len(s.cells))
	for c, cell := range s.cells {
		best, bestScore := 0, math.Inf(-1)
		for t := range s.types {
			if v := s.Get(t, c); v > bestScore {
				best, bestScore = t, v
			}
		}
		calls[c] = PerCellCall{Cell: cell, Type: s.types[best], Score: bestScore}
	}
	return calls
}
