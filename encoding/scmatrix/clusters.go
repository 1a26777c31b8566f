package scmatrix

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
	"github.com/scbio/scrna/sctype"
)

type clusterRow struct {
	Cell    string `tsv:"cell"`
	Cluster string `tsv:"cluster"`
}

// ReadClusters parses a cluster-assignment TSV with the header
// "cell<TAB>cluster", one row per cell. A cell appearing twice is an error.
func ReadClusters(r io.Reader) (sctype.ClusterAssignment, error) {
	tsvReader := tsv.NewReader(r)
	tsvReader.HasHeaderRow = true
	tsvReader.UseHeaderNames = true

	assignment := sctype.ClusterAssignment{}
	nRow := 0
	for {
		var row clusterRow
		if err := tsvReader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "cluster assignment row %d", nRow+1)
		}
		nRow++
		if row.Cell == "" || row.Cluster == "" {
			return nil, errors.Errorf("cluster assignment row %d: cell and cluster are required", nRow)
		}
		if _, ok := assignment[row.Cell]; ok {
			return nil, errors.Errorf("cluster assignment row %d: duplicate cell %q", nRow, row.Cell)
		}
		assignment[row.Cell] = row.Cluster
	}
	if len(assignment) == 0 {
		return nil, errors.New("cluster assignment is empty")
	}
	return assignment, nil
}

// ReadClustersFile reads a cluster-assignment TSV from a path, transparently
// decompressing by file extension.
func ReadClustersFile(ctx context.Context, path string) (assignment sctype.ClusterAssignment, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return ReadClusters(r)
}
