package scmatrix

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"math"

	"github.com/golang/snappy"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
	"github.com/scbio/scrna/sctype"
)

// Binary cache format, for reloading a large matrix without reparsing text:
//
//	magic "SCMX", version byte, scaled byte
//	uvarint nGenes, uvarint nCells
//	nGenes + nCells length-prefixed name strings
//	per gene: uvarint compressed length, snappy block of nCells float64s
const (
	binaryMagic   = "SCMX"
	binaryVersion = 1
)

// WriteBinary writes the matrix in the binary cache format.
func WriteBinary(w io.Writer, m *sctype.ExpressionMatrix) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(binaryMagic); err != nil {
		return err
	}
	scaled := byte(0)
	if m.Scaled {
		scaled = 1
	}
	if _, err := bw.Write([]byte{binaryVersion, scaled}); err != nil {
		return err
	}
	var buf [binary.MaxVarintLen64]byte
	writeUvarint := func(v uint64) error {
		n := binary.PutUvarint(buf[:], v)
		_, err := bw.Write(buf[:n])
		return err
	}
	writeString := func(s string) error {
		if err := writeUvarint(uint64(len(s))); err != nil {
			return err
		}
		_, err := bw.WriteString(s)
		return err
	}
	genes, cells := m.Genes(), m.Cells()
	if err := writeUvarint(uint64(len(genes))); err != nil {
		return err
	}
	if err := writeUvarint(uint64(len(cells))); err != nil {
		return err
	}
	for _, g := range genes {
		if err := writeString(g); err != nil {
			return err
		}
	}
	for _, c := range cells {
		if err := writeString(c); err != nil {
			return err
		}
	}
	raw := make([]byte, 8*len(cells))
	var compressed []byte
	for _, g := range genes {
		row, _ := m.GeneRow(g)
		for i, v := range row {
			binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
		}
		compressed = snappy.Encode(compressed[:0], raw)
		if err := writeUvarint(uint64(len(compressed))); err != nil {
			return err
		}
		if _, err := bw.Write(compressed); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadBinary reads a matrix written by WriteBinary.
func ReadBinary(r io.Reader) (*sctype.ExpressionMatrix, error) {
	br := bufio.NewReader(r)
	head := make([]byte, len(binaryMagic)+2)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, errors.Wrap(err, "binary matrix header")
	}
	if string(head[:len(binaryMagic)]) != binaryMagic {
		return nil, errors.New("not a binary matrix file")
	}
	if head[len(binaryMagic)] != binaryVersion {
		return nil, errors.Errorf("binary matrix version %d, want %d", head[len(binaryMagic)], binaryVersion)
	}
	scaled := head[len(binaryMagic)+1] != 0

	readString := func() (string, error) {
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return "", err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(br, b); err != nil {
			return "", err
		}
		return string(b), nil
	}
	nGenes, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(err, "binary matrix header")
	}
	nCells, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(err, "binary matrix header")
	}
	genes := make([]string, nGenes)
	for i := range genes {
		if genes[i], err = readString(); err != nil {
			return nil, errors.Wrap(err, "binary matrix gene names")
		}
	}
	cells := make([]string, nCells)
	for i := range cells {
		if cells[i], err = readString(); err != nil {
			return nil, errors.Wrap(err, "binary matrix cell names")
		}
	}

	m := sctype.NewExpressionMatrix(genes, cells)
	m.Scaled = scaled
	var compressed []byte
	raw := make([]byte, 8*nCells)
	for g := range genes {
		clen, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, errors.Wrapf(err, "binary matrix row %q", genes[g])
		}
		if uint64(cap(compressed)) < clen {
			compressed = make([]byte, clen)
		}
		compressed = compressed[:clen]
		if _, err := io.ReadFull(br, compressed); err != nil {
			return nil, errors.Wrapf(err, "binary matrix row %q", genes[g])
		}
		if raw, err = snappy.Decode(raw, compressed); err != nil {
			return nil, errors.Wrapf(err, "binary matrix row %q", genes[g])
		}
		if len(raw) != int(8*nCells) {
			return nil, errors.Errorf("binary matrix row %q: got %d bytes, want %d", genes[g], len(raw), 8*nCells)
		}
		for c := 0; c < int(nCells); c++ {
			m.Set(g, c, math.Float64frombits(binary.LittleEndian.Uint64(raw[8*c:])))
		}
	}
	return m, nil
}

// WriteBinaryFile writes the binary cache to a path.
func WriteBinaryFile(ctx context.Context, path string, m *sctype.ExpressionMatrix) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	return WriteBinary(out.Writer(ctx), m)
}

// ReadBinaryFile reads a binary cache from a path.
func ReadBinaryFile(ctx context.Context, path string) (m *sctype.ExpressionMatrix, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return ReadBinary(in.Reader(ctx))
}
