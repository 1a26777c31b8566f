package main

// sctype assigns cell-type labels to single-cell RNA-seq clusters using a
// marker-gene database.
//
// The run has two phases:
//
//   1. score: load the marker database and the scaled expression matrix,
//      prepare the gene sets for one tissue, and compute the cell-type x
//      cell score matrix. The matrix can be dumped with -scores-output.
//
//   2. aggregate: sum scores per cluster, call the winning type per cluster
//      (low-confidence clusters become Unknown), and write the report.
//
// Example 1: run both phases on a dense pre-scaled matrix.
//
//    sctype -markers db.tsv -tissue "Immune system" -matrix scaled.tsv \
//      -scaled-input -clusters clusters.tsv -output calls.tsv
//
// Example 2: score raw 10x counts, keep the scores for later re-aggregation.
//
//    sctype -markers db.tsv -tissue "Immune system" \
//      -mtx matrix.mtx.gz -features features.tsv.gz -barcodes barcodes.tsv.gz \
//      -scale -clusters clusters.tsv -scores-output scores.rio -output calls.tsv
//
// Example 3: run only the 2nd phase using the result from example 2.
//
//    sctype -scores-input scores.rio -clusters clusters.tsv -output calls.tsv

import (
	"context"
	"flag"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/montanaflynn/stats"
	"github.com/scbio/scrna/encoding/markers"
	"github.com/scbio/scrna/encoding/scmatrix"
	"github.com/scbio/scrna/sctype"
)

// Collection of options set via cmdline flags.
type sctypeFlags struct {
	configPath string

	markersPath string
	symbolsPath string
	tissue      string
	guessTissue bool

	matrixPath       string
	mtxPath          string
	featuresPath     string
	barcodesPath     string
	matrixBinaryPath string
	scale            bool
	scaledInput      bool
	matrixCachePath  string

	clustersPath     string
	scoresOutputPath string
	scoresInputPath  string
	outputPath       string
	perCellPath      string
}

// loadMatrix reads the expression matrix from whichever input flag is set and
// leaves it scaled, or dies.
func loadMatrix(ctx context.Context, flags sctypeFlags, opts sctype.Opts) *sctype.ExpressionMatrix {
	var (
		mat *sctype.ExpressionMatrix
		err error
	)
	switch {
	case flags.matrixBinaryPath != "":
		mat, err = scmatrix.ReadBinaryFile(ctx, flags.matrixBinaryPath)
	case flags.mtxPath != "":
		if flags.featuresPath == "" || flags.barcodesPath == "" {
			log.Fatal("-mtx requires -features and -barcodes")
		}
		mat, err = scmatrix.ReadMTXFiles(ctx, flags.mtxPath, flags.featuresPath, flags.barcodesPath)
	case flags.matrixPath != "":
		mat, err = scmatrix.ReadDenseFile(ctx, flags.matrixPath)
	default:
		log.Fatal("one of -matrix, -mtx, or -matrix-binary is required")
	}
	if err != nil {
		log.Panicf("read matrix: %v", err)
	}
	log.Printf("Read matrix: %d genes x %d cells", mat.NGenes(), mat.NCells())
	if flags.scaledInput {
		// Text formats carry no scaled marker; the caller vouches for the
		// upstream preprocessing.
		mat.Scaled = true
	}
	if flags.scale {
		if err := scmatrix.ZScore(mat, opts.Parallelism); err != nil {
			log.Panicf("zscore: %v", err)
		}
		log.Printf("Scaled matrix to per-gene z-scores")
	}
	if !mat.Scaled {
		log.Fatal("matrix is not scaled; pass -scale to z-score it, or -scaled-input if it already holds z-scores")
	}
	if flags.matrixCachePath != "" {
		if err := scmatrix.WriteBinaryFile(ctx, flags.matrixCachePath, mat); err != nil {
			log.Panicf("write matrix cache: %v", err)
		}
		log.Printf("Wrote matrix cache to %s", flags.matrixCachePath)
	}
	return mat
}

// loadSymbols reads the symbol table, falling back to an identity table over
// the matrix genes.
func loadSymbols(ctx context.Context, flags sctypeFlags, mat *sctype.ExpressionMatrix) *sctype.SymbolTable {
	if flags.symbolsPath == "" {
		return sctype.NewSymbolTableFromGenes(mat.Genes())
	}
	symtab, err := markers.ReadSymbolsFile(ctx, flags.symbolsPath)
	if err != nil {
		log.Panicf("read symbols: %v", err)
	}
	log.Printf("Read %d canonical symbols from %s", symtab.Len(), flags.symbolsPath)
	return symtab
}

func main() {
	flags := sctypeFlags{}
	flag.StringVar(&flags.configPath, "config", "", "Optional TOML file overriding option defaults.")
	flag.StringVar(&flags.markersPath, "markers", "", "Marker database TSV (tissue, cellType, positiveMarkers, negativeMarkers, shortName).")
	flag.StringVar(&flags.symbolsPath, "symbols", "", `Gene symbol table TSV (symbol, aliases) used to normalize marker names.
If empty, marker symbols are matched case-insensitively against the matrix gene names.`)
	flag.StringVar(&flags.tissue, "tissue", "", "Tissue category to score against.")
	flag.BoolVar(&flags.guessTissue, "guess-tissue", false, "Rank all tissues in the database by fit instead of calling clusters.")

	flag.StringVar(&flags.matrixPath, "matrix", "", "Dense expression TSV (genes in rows, cells in columns).")
	flag.StringVar(&flags.mtxPath, "mtx", "", "MatrixMarket coordinate file. Requires -features and -barcodes.")
	flag.StringVar(&flags.featuresPath, "features", "", "Feature (gene) sidecar for -mtx.")
	flag.StringVar(&flags.barcodesPath, "barcodes", "", "Barcode (cell) sidecar for -mtx.")
	flag.StringVar(&flags.matrixBinaryPath, "matrix-binary", "", "Binary matrix cache written by a previous run's -matrix-cache.")
	flag.StringVar(&flags.matrixCachePath, "matrix-cache", "", "If set, write the loaded (and scaled) matrix to this binary cache.")
	flag.BoolVar(&flags.scale, "scale", false, "Z-score the matrix per gene before scoring. Use when the input holds raw or normalized counts.")
	flag.BoolVar(&flags.scaledInput, "scaled-input", false, "Declare that the text matrix already holds per-gene z-scores.")

	flag.StringVar(&flags.clustersPath, "clusters", "", "Cluster assignment TSV (cell, cluster).")
	flag.StringVar(&flags.scoresOutputPath, "scores-output", "", "If set, dump the score matrix to this recordio file.")
	flag.StringVar(&flags.scoresInputPath, "scores-input", "", `Score matrix recordio produced by -scores-output. If nonempty, sctype skips
the scoring phase and runs only aggregation using this input.`)
	flag.StringVar(&flags.outputPath, "output", "./cluster-calls.tsv", "Cluster call report TSV. A .gz suffix enables gzip.")
	flag.StringVar(&flags.perCellPath, "per-cell-output", "", "If set, also write the per-cell argmax annotation TSV.")

	opts := sctype.DefaultOpts
	flag.IntVar(&opts.Parallelism, "parallelism", sctype.DefaultOpts.Parallelism, "Max concurrent scoring workers. 0 means NumCPU.")
	flag.StringVar(&opts.UnknownLabel, "unknown-label", sctype.DefaultOpts.UnknownLabel, "Label assigned to low-confidence clusters.")
	flag.IntVar(&opts.MaxSuggestionDistance, "max-suggestion-distance", sctype.DefaultOpts.MaxSuggestionDistance,
		"Max edit distance for did-you-mean suggestions on unknown marker symbols. 0 disables.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if flags.configPath != "" {
		// Precedence: flag > TOML > default.
		fileOpts := opts
		if _, err := toml.DecodeFile(flags.configPath, &fileOpts); err != nil {
			log.Panicf("config %s: %v", flags.configPath, err)
		}
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if !set["parallelism"] {
			opts.Parallelism = fileOpts.Parallelism
		}
		if !set["unknown-label"] {
			opts.UnknownLabel = fileOpts.UnknownLabel
		}
		if !set["max-suggestion-distance"] {
			opts.MaxSuggestionDistance = fileOpts.MaxSuggestionDistance
		}
	}

	runID := uuid.New().String()
	log.Printf("sctype run %s", runID)

	if flags.clustersPath == "" {
		log.Fatal("-clusters is required")
	}
	clusters, err := scmatrix.ReadClustersFile(ctx, flags.clustersPath)
	if err != nil {
		log.Panicf("read clusters: %v", err)
	}
	log.Printf("Read %d cell assignments from %s", len(clusters), flags.clustersPath)

	runStats := sctype.Stats{}
	var scores *sctype.ScoreMatrix
	if flags.scoresInputPath == "" {
		// Phase 1: score from scratch.
		if flags.markersPath == "" {
			log.Fatal("-markers is required")
		}
		db, err := markers.ReadFile(ctx, flags.markersPath)
		if err != nil {
			log.Panicf("read markers: %v", err)
		}
		mat := loadMatrix(ctx, flags, opts)
		symtab := loadSymbols(ctx, flags, mat)

		if flags.guessTissue {
			ranks, err := sctype.GuessTissue(db, symtab, mat, clusters, opts)
			if err != nil {
				log.Panicf("guess tissue: %v", err)
			}
			for i, rank := range ranks {
				log.Printf("tissue rank %d: %s (score %f)", i+1, rank.Tissue, rank.Score)
			}
			return
		}
		if flags.tissue == "" {
			log.Fatal("-tissue is required (or pass -guess-tissue)")
		}

		gs, err := sctype.Prepare(db, symtab, flags.tissue, opts, &runStats)
		if err != nil {
			log.Fatalf("prepare: %v", err)
		}
		log.Printf("Prepared %d cell types for tissue %q", len(gs.Types), gs.Tissue)
		if scores, err = sctype.Score(mat, gs, opts, &runStats); err != nil {
			log.Fatalf("score: %v", err)
		}
		if flags.scoresOutputPath != "" {
			writeScores(ctx, flags.scoresOutputPath, runID, gs, mat, scores)
		}
	} else {
		// Phase 2 only: reload a previous run's scores and verify the cache
		// against whichever of the original inputs are at hand.
		var trailer scoresFileTrailer
		scores, trailer = readScores(ctx, flags.scoresInputPath)
		var mat *sctype.ExpressionMatrix
		if flags.matrixPath != "" || flags.mtxPath != "" || flags.matrixBinaryPath != "" {
			mat = loadMatrix(ctx, flags, opts)
			if err := trailer.verifyMatrix(mat); err != nil {
				log.Panicf("%s: %v", flags.scoresInputPath, err)
			}
		}
		if flags.markersPath != "" && flags.tissue != "" && (flags.symbolsPath != "" || mat != nil) {
			db, err := markers.ReadFile(ctx, flags.markersPath)
			if err != nil {
				log.Panicf("read markers: %v", err)
			}
			symtab := loadSymbols(ctx, flags, mat)
			gs, err := sctype.Prepare(db, symtab, flags.tissue, opts, &runStats)
			if err != nil {
				log.Fatalf("prepare: %v", err)
			}
			if err := trailer.verifyGeneSets(gs); err != nil {
				log.Panicf("%s: %v", flags.scoresInputPath, err)
			}
		}
	}

	calls, err := sctype.Aggregate(scores, clusters, opts, &runStats)
	if err != nil {
		log.Fatalf("aggregate: %v", err)
	}
	writeClusterCalls(ctx, flags.outputPath, calls)
	if flags.perCellPath != "" {
		writePerCellCalls(ctx, flags.perCellPath, scores.PerCellCalls())
	}
	logScoreSummary(calls, opts.UnknownLabel)
	log.Printf("Stats: %+v", runStats)
	log.Printf("All done")
}

// logScoreSummary logs the distribution of winning aggregate scores.
func logScoreSummary(calls []sctype.ClusterCall, unknownLabel string) {
	if len(calls) == 0 {
		return
	}
	winning := make([]float64, len(calls))
	unknown := 0
	for i, call := range calls {
		winning[i] = call.Score
		if call.AssignedType == unknownLabel {
			unknown++
		}
	}
	mean, err := stats.Mean(winning)
	if err != nil {
		log.Error.Printf("score summary: %v", err)
		return
	}
	median, err := stats.Median(winning)
	if err != nil {
		log.Error.Printf("score summary: %v", err)
		return
	}
	log.Printf("Stats: %d clusters called, winning score mean %f, median %f, %d unknown",
		len(calls), mean, median, unknown)
}
