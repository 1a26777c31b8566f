package sctype

import (
	"sort"
	"strconv"
)

// unknownScoreDivisor is the fixed confidence heuristic: a cluster whose
// winning aggregate score is strictly below cellCount/unknownScoreDivisor is
// called Unknown. A score exactly at the threshold keeps its call.
const unknownScoreDivisor = 4

// ClusterAssignment maps a cell identifier to its cluster identifier. It is
// produced by the upstream clustering step and read-only here.
type ClusterAssignment map[string]string

// ClusterCall is the terminal output for one cluster: the winning cell type
// (or the Unknown label), its aggregate score, and the cluster size.
type ClusterCall struct {
	Cluster      string
	AssignedType string
	Score        float64
	CellCount    int
}

// Aggregate sums per-cell scores within each cluster, picks the top cell type
// per cluster (ties broken by type name, ascending), and demotes
// low-confidence winners to the Unknown label. Calls are returned sorted by
// cluster id, numerically when every id parses as an integer.
//
// Cells in the score matrix without a cluster assignment are ignored
// (upstream QC may drop cells from clustering). An assignment referencing a
// cell the score matrix lacks is an InputMismatchError and no calls are
// returned.
func Aggregate(scores *ScoreMatrix, clusters ClusterAssignment, opts Opts, stats *Stats) ([]ClusterCall, error) {
	if scores.NTypes() == 0 {
		return nil, &PreconditionError{Reason: "score matrix has no cell types"}
	}
	cells := make([]string, 0, len(clusters))
	for cell := range clusters {
		cells = append(cells, cell)
	}
	sort.Strings(cells)

	nTypes := scores.NTypes()
	sums := map[string][]float64{}
	counts := map[string]int{}
	for _, cell := range cells {
		cluster := clusters[cell]
		ci, ok := scores.cellIndex[cell]
		if !ok {
			return nil, &InputMismatchError{Cell: cell, Cluster: cluster}
		}
		sum := sums[cluster]
		if sum == nil {
			sum = make([]float64, nTypes)
			sums[cluster] = sum
		}
		for t := 0; t < nTypes; t++ {
			sum[t] += scores.Get(t, ci)
		}
		counts[cluster]++
	}

	calls := make([]ClusterCall, 0, len(sums))
	for cluster, sum := range sums {
		// Ties resolve to the ascending type name regardless of axis order.
		best := 0
		for t := 1; t < nTypes; t++ {
			if sum[t] > sum[best] ||
				(sum[t] == sum[best] && scores.types[t] < scores.types[best]) {
				best = t
			}
		}
		call := ClusterCall{
			Cluster:      cluster,
			AssignedType: scores.types[best],
			Score:        sum[best],
			CellCount:    counts[cluster],
		}
		if call.Score < float64(call.CellCount)/unknownScoreDivisor {
			call.AssignedType = opts.UnknownLabel
		}
		calls = append(calls, call)
	}
	sortClusterCalls(calls)
	stats.Clusters += len(calls)
	return calls, nil
}

// sortClusterCalls orders calls by cluster id for reproducible output:
// numerically when every id is an integer, lexicographically otherwise.
func sortClusterCalls(calls []ClusterCall) {
	numeric := true
	ids := make(map[string]int64, len(calls))
	for _, c := range calls {
		v, err := strconv.ParseInt(c.Cluster, 10, 64)
		if err != nil {
			numeric = false
			break
		}
		ids[c.Cluster] = v
	}
	sort.Slice(calls, func(i, j int) bool {
		if numeric {
			return ids[calls[i].Cluster] < ids[calls[j].Cluster]
		}
		return calls[i].Cluster < calls[j].Cluster
	})
}
