package sctype

// Stats represents high-level statistics of one scoring run.
type Stats struct {
	// DroppedSymbols is the # of marker symbols with no canonical equivalent
	// in the symbol table.
	DroppedSymbols int
	// DroppedTypes is the # of cell types dropped during preparation because
	// their positive set became empty after normalization.
	DroppedTypes int
	// ZeroOverlapTypes is the # of cell types whose positive markers had no
	// overlap with the expression matrix genes. Their score rows are zero.
	ZeroOverlapTypes int
	// ScoredTypes and ScoredCells are the dimensions of the score matrix.
	ScoredTypes int
	ScoredCells int
	// Clusters is the # of distinct clusters aggregated.
	Clusters int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.DroppedSymbols += o.DroppedSymbols
	s.DroppedTypes += o.DroppedTypes
	s.ZeroOverlapTypes += o.ZeroOverlapTypes
	s.ScoredTypes += o.ScoredTypes
	s.ScoredCells += o.ScoredCells
	s.Clusters += o.Clusters
	return s
}
