package sctype

import "fmt"

// ConfigurationError indicates that the requested tissue category is not
// present in the marker database. There is no recovery without a different
// database or tissue argument.
type ConfigurationError struct {
	Tissue string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sctype: no marker sets for tissue %q", e.Tissue)
}

// PreconditionError indicates that the expression matrix handed to Score was
// not declared scaled. Scores over unscaled data are meaningless, so the
// whole run is aborted instead.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "sctype: precondition violated: " + e.Reason
}

// InputMismatchError indicates that the cluster assignment references a cell
// identifier absent from the score matrix. No partial cluster calls are
// returned when this happens.
type InputMismatchError struct {
	Cell    string
	Cluster string
}

func (e *InputMismatchError) Error() string {
	return fmt.Sprintf("sctype: cluster %q references cell %q not present in the score matrix", e.Cluster, e.Cell)
}
