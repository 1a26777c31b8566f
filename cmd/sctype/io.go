package main

// This file defines scoresWriter and scoresReader, plus the TSV report
// writers. Type scoresWriter dumps a ScoreMatrix into a recordio file, and
// scoresReader reads it back. The recordio file can be used to bypass the
// scoring phase and run only the aggregation phase.

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
	"github.com/scbio/scrna/sctype"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// <fileVersionHeader, fileVersion> is stored in a recordio header.
	fileVersionHeader = "sctypeversion"
	fileVersion       = "SCTYPE_V1"
	runIDHeader       = "runid"
)

// scoresFileTrailer is stored in the trailer section of the recordio file.
type scoresFileTrailer struct {
	// Tissue the gene sets were prepared for.
	Tissue string
	// Cells is the cell axis, in matrix order.
	Cells []string
	// GeneSetFingerprint is GeneSets.Fingerprint() of the prepared sets.
	GeneSetFingerprint uint64
	// MatrixFingerprint is ExpressionMatrix.Fingerprint() of the scored matrix.
	MatrixFingerprint uint64
}

// verifyMatrix checks that the cached scores were computed from mat.
func (t *scoresFileTrailer) verifyMatrix(mat *sctype.ExpressionMatrix) error {
	if got := mat.Fingerprint(); got != t.MatrixFingerprint {
		return fmt.Errorf("scores were computed from a different matrix (fingerprint %x, want %x)",
			t.MatrixFingerprint, got)
	}
	return nil
}

// verifyGeneSets checks that the cached scores were computed from gs.
func (t *scoresFileTrailer) verifyGeneSets(gs *sctype.GeneSets) error {
	if got := gs.Fingerprint(); got != t.GeneSetFingerprint {
		return fmt.Errorf("scores were computed from different gene sets (fingerprint %x, want %x)",
			t.GeneSetFingerprint, got)
	}
	return nil
}

// scoresRecord is one msgpack-encoded record: a cell type and its score row.
type scoresRecord struct {
	Type   string
	Scores []float64
}

type scoresWriter struct {
	out     file.File
	w       recordio.Writer
	trailer scoresFileTrailer
}

func newScoresWriter(ctx context.Context, outPath, runID string, gs *sctype.GeneSets, mat *sctype.ExpressionMatrix) *scoresWriter {
	recordiozstd.Init()
	out, err := file.Create(ctx, outPath)
	if err != nil {
		log.Panicf("rio create %v: %v", outPath, err)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(runIDHeader, runID)
	w.AddHeader(recordio.KeyTrailer, true)
	return &scoresWriter{
		out: out,
		w:   w,
		trailer: scoresFileTrailer{
			Tissue:             gs.Tissue,
			Cells:              mat.Cells(),
			GeneSetFingerprint: gs.Fingerprint(),
			MatrixFingerprint:  mat.Fingerprint(),
		},
	}
}

// Write adds one cell type's score row. Any error will crash the process.
func (w *scoresWriter) Write(typ string, scores []float64) {
	b, err := msgpack.Marshal(&scoresRecord{Type: typ, Scores: scores})
	if err != nil {
		log.Panic(err)
	}
	w.w.Append(b)
}

// Close closes the writer. It must be called exactly once, after writing all
// the score rows.
func (w *scoresWriter) Close(ctx context.Context) {
	b, err := msgpack.Marshal(&w.trailer)
	if err != nil {
		log.Panic(err)
	}
	w.w.SetTrailer(b)
	if err := w.w.Finish(); err != nil {
		log.Panic(err)
	}
	if err := w.out.Close(ctx); err != nil {
		log.Panic(err)
	}
}

// writeScores dumps the whole score matrix.
func writeScores(ctx context.Context, outPath, runID string, gs *sctype.GeneSets, mat *sctype.ExpressionMatrix, scores *sctype.ScoreMatrix) {
	w := newScoresWriter(ctx, outPath, runID, gs, mat)
	for _, typ := range scores.Types() {
		row, _ := scores.TypeRow(typ)
		w.Write(typ, row)
	}
	w.Close(ctx)
	log.Printf("Wrote %d score rows to %s", scores.NTypes(), outPath)
}

// readScores reads back a score matrix written by writeScores, returning the
// matrix and its trailer metadata.
func readScores(ctx context.Context, inPath string) (*sctype.ScoreMatrix, scoresFileTrailer) {
	in, err := file.Open(ctx, inPath)
	if err != nil {
		log.Panicf("open %s: %v", inPath, err)
	}
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if kv.Value.(string) != fileVersion {
				log.Panicf("scores file version mismatch, got %v, expect %v", kv.Value.(string), fileVersion)
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		log.Panic(fileVersionHeader + " not found in " + inPath)
	}
	trailer := scoresFileTrailer{}
	if err := msgpack.Unmarshal(r.Trailer(), &trailer); err != nil {
		log.Panicf("scores trailer %s: %v", inPath, err)
	}

	var records []scoresRecord
	seen := map[string]struct{}{}
	for r.Scan() {
		rec := scoresRecord{}
		if err := msgpack.Unmarshal(r.Get().([]byte), &rec); err != nil {
			log.Panicf("scores record %s: %v", inPath, err)
		}
		if len(rec.Scores) != len(trailer.Cells) {
			log.Panicf("scores record %q: got %d scores, want %d cells", rec.Type, len(rec.Scores), len(trailer.Cells))
		}
		// A repeated type would shadow the earlier row in the type index and
		// double-count in aggregation.
		if _, ok := seen[rec.Type]; ok {
			log.Panicf("scores record %q: duplicate cell type in %s", rec.Type, inPath)
		}
		seen[rec.Type] = struct{}{}
		records = append(records, rec)
	}
	once := errors.Once{}
	once.Set(r.Err())
	once.Set(in.Close(ctx))
	if err := once.Err(); err != nil {
		log.Panicf("close %s: %v", inPath, err)
	}

	types := make([]string, len(records))
	for i, rec := range records {
		types[i] = rec.Type
	}
	scores := sctype.NewScoreMatrix(types, trailer.Cells)
	for ti, rec := range records {
		for c, v := range rec.Scores {
			scores.Set(ti, c, v)
		}
	}
	log.Printf("Read %d score rows for %d cells from %s (tissue %q)",
		scores.NTypes(), scores.NCells(), inPath, trailer.Tissue)
	return scores, trailer
}

// createFile creates a text output file, gzip-compressed when the path ends
// in ".gz". The returned cleanup must be called after writing.
func createFile(ctx context.Context, path string) (io.Writer, func()) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panicf("create %s: %v", path, err)
	}
	w := out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		return gz, func() {
			once := errors.Once{}
			once.Set(gz.Close())
			once.Set(out.Close(ctx))
			if err := once.Err(); err != nil {
				log.Panicf("close %s: %v", path, err)
			}
		}
	}
	return w, func() {
		if err := out.Close(ctx); err != nil {
			log.Panicf("close %s: %v", path, err)
		}
	}
}

// writeClusterCalls writes the per-cluster report TSV.
func writeClusterCalls(ctx context.Context, path string, calls []sctype.ClusterCall) {
	out, cleanup := createFile(ctx, path)
	defer cleanup()
	w := tsv.NewWriter(out)
	w.WriteString("cluster\ttype\tscore\tncells")
	if err := w.EndLine(); err != nil {
		log.Panic(err)
	}
	for _, call := range calls {
		w.WriteString(call.Cluster)
		w.WriteString(call.AssignedType)
		w.WriteString(formatScore(call.Score))
		w.WriteUint32(uint32(call.CellCount))
		if err := w.EndLine(); err != nil {
			log.Panic(err)
		}
	}
	if err := w.Flush(); err != nil {
		log.Panic(err)
	}
	log.Printf("Wrote %d cluster calls to %s", len(calls), path)
}

// writePerCellCalls writes the optional per-cell annotation TSV.
func writePerCellCalls(ctx context.Context, path string, calls []sctype.PerCellCall) {
	out, cleanup := createFile(ctx, path)
	defer cleanup()
	w := tsv.NewWriter(out)
	w.WriteString("cell\ttype\tscore")
	if err := w.EndLine(); err != nil {
		log.Panic(err)
	}
	for _, call := range calls {
		w.WriteString(call.Cell)
		w.WriteString(call.Type)
		w.WriteString(formatScore(call.Score))
		if err := w.EndLine(); err != nil {
			log.Panic(err)
		}
	}
	if err := w.Flush(); err != nil {
		log.Panic(err)
	}
	log.Printf("Wrote %d per-cell calls to %s", len(calls), path)
}

func formatScore(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
