package sctype

import "runtime"

type Opts struct {
	// Parallelism caps the number of concurrent workers used when scoring
	// cell types. Zero or negative means runtime.NumCPU().
	Parallelism int

	// UnknownLabel is assigned to clusters whose winning aggregate score
	// falls below the confidence threshold.
	UnknownLabel string

	// MaxSuggestionDistance is the maximum Levenshtein distance at which an
	// unresolvable gene symbol warning includes a nearest-match suggestion.
	// Zero disables suggestions.
	MaxSuggestionDistance int
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Parallelism:           0, // Go: -parallelism. 0 means NumCPU.
	UnknownLabel:          "Unknown",
	MaxSuggestionDistance: 2, // Go: -max-suggestion-distance
}

func (o Opts) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.NumCPU()
}
