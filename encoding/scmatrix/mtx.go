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

// mtxBanner is the MatrixMarket header this reader accepts: a real-valued
// general matrix in coordinate (sparse triplet) format.
const mtxBanner = "%%MatrixMarket matrix coordinate"

// ReadMTX parses a MatrixMarket coordinate file plus its feature and barcode
// sidecars, the triple 10x-style pipelines emit. Rows are features (genes),
// columns are barcodes (cells); entries are 1-based; unlisted entries are
// zero. The matrix is materialized dense and marked unscaled.
func ReadMTX(mtx, features, barcodes io.Reader) (*sctype.ExpressionMatrix, error) {
	genes, err := readFeatureColumn(features)
	if err != nil {
		return nil, errors.Wrap(err, "features")
	}
	cells, err := readFeatureColumn(barcodes)
	if err != nil {
		return nil, errors.Wrap(err, "barcodes")
	}

	scanner := bufio.NewScanner(mtx)
	scanner.Buffer(nil, scannerBufSize)
	if !scanner.Scan() {
		return nil, errors.New("empty mtx file")
	}
	if !strings.HasPrefix(scanner.Text(), mtxBanner) {
		return nil, errors.Errorf("not a coordinate MatrixMarket file: %q", scanner.Text())
	}
	// Skip comments, then read the size line.
	var nRows, nCols, nEntries int
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "%") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.Errorf("malformed mtx size line: %q", line)
		}
		var err error
		if nRows, err = strconv.Atoi(fields[0]); err != nil {
			return nil, errors.Wrap(err, "mtx size line")
		}
		if nCols, err = strconv.Atoi(fields[1]); err != nil {
			return nil, errors.Wrap(err, "mtx size line")
		}
		if nEntries, err = strconv.Atoi(fields[2]); err != nil {
			return nil, errors.Wrap(err, "mtx size line")
		}
		break
	}
	if nRows != len(genes) {
		return nil, errors.Errorf("mtx has %d rows but features lists %d genes", nRows, len(genes))
	}
	if nCols != len(cells) {
		return nil, errors.Errorf("mtx has %d columns but barcodes lists %d cells", nCols, len(cells))
	}

	m := sctype.NewExpressionMatrix(genes, cells)
	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.Errorf("malformed mtx entry: %q", line)
		}
		i, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "mtx entry %q", line)
		}
		j, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "mtx entry %q", line)
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "mtx entry %q", line)
		}
		if i < 1 || i > nRows || j < 1 || j > nCols {
			return nil, errors.Errorf("mtx entry %q out of bounds (%d x %d)", line, nRows, nCols)
		}
		m.Set(i-1, j-1, v)
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read mtx data")
	}
	if n != nEntries {
		return nil, errors.Errorf("mtx declares %d entries but contains %d", nEntries, n)
	}
	return m, nil
}

// readFeatureColumn reads a features.tsv or barcodes.tsv sidecar: one entry
// per line. For the two-or-more-column 10x features format, the second column
// (the gene symbol) names the row; single-column files use the line itself.
func readFeatureColumn(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, scannerBufSize)
	var names []string
	seen := map[string]struct{}{}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		name := fields[0]
		if len(fields) >= 2 {
			name = fields[1]
		}
		// Names index matrix rows/columns, so repeats would shadow data.
		if _, ok := seen[name]; ok {
			return nil, errors.Errorf("duplicate name %q", name)
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("empty sidecar file")
	}
	return names, nil
}

// ReadMTXFiles reads the mtx/features/barcodes triple from paths,
// transparently decompressing each by file extension.
func ReadMTXFiles(ctx context.Context, mtxPath, featuresPath, barcodesPath string) (m *sctype.ExpressionMatrix, err error) {
	open := func(path string) (file.File, io.Reader, error) {
		in, err := file.Open(ctx, path)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open %s", path)
		}
		var r io.Reader = in.Reader(ctx)
		if u := compress.NewReaderPath(r, in.Name()); u != nil {
			r = u
		}
		return in, r, nil
	}
	mtxIn, mtxR, err := open(mtxPath)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, mtxIn, &err)
	featIn, featR, err := open(featuresPath)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, featIn, &err)
	bcIn, bcR, err := open(barcodesPath)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, bcIn, &err)
	return ReadMTX(mtxR, featR, bcR)
}
