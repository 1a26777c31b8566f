// Package scmatrix contains code for reading expression count matrices in
// the formats single-cell pipelines exchange: dense TSV (genes in rows, cells
// in columns) and MatrixMarket coordinate triples (matrix.mtx + features +
// barcodes), plus a compact binary cache for fast reloads. It also implements
// the per-gene z-scoring that scoring requires, for runs that start from raw
// counts instead of an externally scaled matrix.
package scmatrix

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
	"github.com/scbio/scrna/sctype"
)

const (
	// Dense TSV rows can be long; size the scanner for wide matrices.
	scannerBufSize = 16 * 1024 * 1024
)

// ReadDense parses a dense expression TSV. The header row is "gene" followed
// by one cell barcode per column; every following row is a gene symbol and
// its values. The result is marked unscaled; run ZScore (or load an already
// scaled matrix and set Scaled) before scoring.
func ReadDense(r io.Reader) (*sctype.ExpressionMatrix, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, scannerBufSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "couldn't read matrix header")
		}
		return nil, errors.New("empty expression matrix")
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 2 {
		return nil, errors.New("expression matrix header needs a gene column and at least one cell column")
	}
	cells := header[1:]

	var genes []string
	var rows [][]float64
	seen := map[string]struct{}{}
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != len(header) {
			return nil, errors.Errorf("gene %q: got %d values, want %d", fields[0], len(fields)-1, len(cells))
		}
		// A repeated symbol would orphan the earlier row in the gene index.
		if _, ok := seen[fields[0]]; ok {
			return nil, errors.Errorf("duplicate gene %q", fields[0])
		}
		seen[fields[0]] = struct{}{}
		row := make([]float64, len(cells))
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "gene %q, cell %q", fields[0], cells[i])
			}
			row[i] = v
		}
		genes = append(genes, fields[0])
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read matrix data")
	}

	m := sctype.NewExpressionMatrix(genes, cells)
	for g, row := range rows {
		for c, v := range row {
			m.Set(g, c, v)
		}
	}
	return m, nil
}

// ReadDenseFile reads a dense expression TSV from a path, transparently
// decompressing by file extension.
func ReadDenseFile(ctx context.Context, path string) (m *sctype.ExpressionMatrix, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return ReadDense(r)
}
