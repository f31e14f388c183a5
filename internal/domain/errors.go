package domain

import (
	"errors"
	"fmt"
)

// Evaluation errors. All are local validation failures; none are retried.
var (
	// ErrInvalidCostSpec is returned when cost weights are negative, non-finite or both zero.
	ErrInvalidCostSpec = errors.New("invalid cost spec")

	// ErrMisalignedHorizon is returned when a forecast timestamp is not in the series
	// or a timestamp is duplicated.
	ErrMisalignedHorizon = errors.New("misaligned horizon")

	// ErrEmptyHorizon is returned when the aligned overlap has no scorable pair.
	ErrEmptyHorizon = errors.New("empty horizon")

	// ErrNoCandidates is returned when selection receives no candidate forecasts.
	ErrNoCandidates = errors.New("no candidates")

	// ErrIncomparableCandidates is returned when a candidate fails alignment validation.
	ErrIncomparableCandidates = errors.New("incomparable candidates")

	// ErrCyclicHierarchy is returned when hierarchy nodes do not form a forest.
	ErrCyclicHierarchy = errors.New("cyclic hierarchy")

	// ErrOrphanSeries is returned when a series is not in exactly one leaf node.
	ErrOrphanSeries = errors.New("orphan series")

	// ErrNonFiniteValue is returned when a forecast carries NaN or Inf predictions.
	ErrNonFiniteValue = errors.New("non-finite value")

	// ErrDuplicateCandidate is returned when two candidates share a model id.
	ErrDuplicateCandidate = errors.New("duplicate candidate")

	// ErrInvalidReadinessSpec is returned when the readiness spec cannot be applied.
	ErrInvalidReadinessSpec = errors.New("invalid readiness spec")

	// ErrInvalidConfig is returned when run configuration is incomplete or invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CostSpecError reports an invalid CostSpec.
type CostSpecError struct {
	Spec   CostSpec
	Reason string
}

func (e *CostSpecError) Error() string {
	return fmt.Sprintf("%s: cu=%v co=%v: %s", ErrInvalidCostSpec, e.Spec.Underforecast, e.Spec.Overforecast, e.Reason)
}

func (e *CostSpecError) Unwrap() error { return ErrInvalidCostSpec }

// AlignmentError reports a series/forecast alignment failure.
type AlignmentError struct {
	SeriesID    string
	ModelID     string
	TimestampMs int64 // offending timestamp, 0 when not applicable
	Err         error // ErrMisalignedHorizon, ErrEmptyHorizon or ErrNonFiniteValue
	Reason      string
}

func (e *AlignmentError) Error() string {
	msg := fmt.Sprintf("%s: series=%s model=%s", e.Err, e.SeriesID, e.ModelID)
	if e.TimestampMs != 0 {
		msg += fmt.Sprintf(" ts=%d", e.TimestampMs)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *AlignmentError) Unwrap() error { return e.Err }

// SelectionError reports a selection failure for one series.
// Err is ErrNoCandidates, ErrIncomparableCandidates or ErrDuplicateCandidate;
// Cause holds the underlying alignment error when there is one.
type SelectionError struct {
	SeriesID string
	ModelID  string
	Err      error
	Cause    error
}

func (e *SelectionError) Error() string {
	msg := fmt.Sprintf("%s: series=%s", e.Err, e.SeriesID)
	if e.ModelID != "" {
		msg += " model=" + e.ModelID
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *SelectionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// HierarchyError reports a structural hierarchy failure.
type HierarchyError struct {
	NodeID   string
	SeriesID string
	Err      error // ErrCyclicHierarchy or ErrOrphanSeries
	Reason   string
}

func (e *HierarchyError) Error() string {
	msg := e.Err.Error()
	if e.NodeID != "" {
		msg += " node=" + e.NodeID
	}
	if e.SeriesID != "" {
		msg += " series=" + e.SeriesID
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *HierarchyError) Unwrap() error { return e.Err }
