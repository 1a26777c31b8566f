package scmatrix_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/scbio/scrna/encoding/scmatrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDense = `gene	c1	c2	c3
CD19	5	0	1
CD3E	0	4	2
`

func TestReadDense(t *testing.T) {
	m, err := scmatrix.ReadDense(strings.NewReader(testDense))
	require.NoError(t, err)
	assert.Equal(t, []string{"CD19", "CD3E"}, m.Genes())
	assert.Equal(t, []string{"c1", "c2", "c3"}, m.Cells())
	assert.False(t, m.Scaled)
	row, ok := m.GeneRow("CD19")
	require.True(t, ok)
	assert.Equal(t, []float64{5, 0, 1}, row)
}

func TestReadDenseErrors(t *testing.T) {
	_, err := scmatrix.ReadDense(strings.NewReader(""))
	assert.Error(t, err)

	_, err = scmatrix.ReadDense(strings.NewReader("gene\tc1\nCD19\t5\t7\n"))
	assert.Error(t, err)

	_, err = scmatrix.ReadDense(strings.NewReader("gene\tc1\nCD19\tnotanumber\n"))
	assert.Error(t, err)

	// A repeated gene symbol would shadow the first row's data.
	_, err = scmatrix.ReadDense(strings.NewReader("gene\tc1\nCD19\t5\nCD19\t7\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate gene")
}

func TestReadMTX(t *testing.T) {
	mtx := `%%MatrixMarket matrix coordinate real general
% generated by a 10x-style pipeline
3 2 4
1 1 5
2 1 1
2 2 4
3 2 2
`
	features := "ENSG01\tCD19\nENSG02\tCD3E\nENSG03\tALB\n"
	barcodes := "AAAC-1\nAAAG-1\n"
	m, err := scmatrix.ReadMTX(strings.NewReader(mtx), strings.NewReader(features), strings.NewReader(barcodes))
	require.NoError(t, err)
	assert.Equal(t, []string{"CD19", "CD3E", "ALB"}, m.Genes())
	assert.Equal(t, []string{"AAAC-1", "AAAG-1"}, m.Cells())
	row, ok := m.GeneRow("CD3E")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 4}, row)
	row, _ = m.GeneRow("ALB")
	assert.Equal(t, []float64{0, 2}, row) // unlisted entries are zero
}

func TestReadMTXMismatch(t *testing.T) {
	mtx := "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 1 5\n"
	features := "CD19\n"
	barcodes := "AAAC-1\nAAAG-1\n"
	_, err := scmatrix.ReadMTX(strings.NewReader(mtx), strings.NewReader(features), strings.NewReader(barcodes))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "features")
}

func TestReadMTXDuplicateFeature(t *testing.T) {
	mtx := "%%MatrixMarket matrix coordinate real general\n2 1 1\n1 1 5\n"
	features := "ENSG01\tCD19\nENSG02\tCD19\n"
	barcodes := "AAAC-1\n"
	_, err := scmatrix.ReadMTX(strings.NewReader(mtx), strings.NewReader(features), strings.NewReader(barcodes))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestZScore(t *testing.T) {
	m, err := scmatrix.ReadDense(strings.NewReader("gene\tc1\tc2\tc3\nG1\t1\t2\t3\nFLAT\t7\t7\t7\n"))
	require.NoError(t, err)
	require.NoError(t, scmatrix.ZScore(m, 2))
	assert.True(t, m.Scaled)

	row, _ := m.GeneRow("G1")
	// mean 2, sample sd 1.
	assert.InDelta(t, -1, row[0], 1e-12)
	assert.InDelta(t, 0, row[1], 1e-12)
	assert.InDelta(t, 1, row[2], 1e-12)

	flat, _ := m.GeneRow("FLAT")
	assert.Equal(t, []float64{0, 0, 0}, flat)

	sum := 0.0
	for _, v := range row {
		sum += v
	}
	assert.True(t, math.Abs(sum) < 1e-12)
}

func TestBinaryRoundTrip(t *testing.T) {
	m, err := scmatrix.ReadDense(strings.NewReader(testDense))
	require.NoError(t, err)
	require.NoError(t, scmatrix.ZScore(m, 0))

	var buf bytes.Buffer
	require.NoError(t, scmatrix.WriteBinary(&buf, m))
	got, err := scmatrix.ReadBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Genes(), got.Genes())
	assert.Equal(t, m.Cells(), got.Cells())
	assert.True(t, got.Scaled)
	assert.Equal(t, m.Fingerprint(), got.Fingerprint())
}

func TestReadBinaryRejectsGarbage(t *testing.T) {
	_, err := scmatrix.ReadBinary(bytes.NewReader([]byte("not a matrix at all")))
	require.Error(t, err)
}

func TestReadClusters(t *testing.T) {
	in := "cell\tcluster\nc1\t0\nc2\t0\nc3\t1\n"
	assignment, err := scmatrix.ReadClusters(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, len(assignment))
	assert.Equal(t, "1", assignment["c3"])

	_, err = scmatrix.ReadClusters(strings.NewReader("cell\tcluster\nc1\t0\nc1\t1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
