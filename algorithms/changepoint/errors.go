package changepoint

import "errors"

var (
	// ErrSeriesTooShort is returned when a series has fewer than MinSeriesLength steps.
	ErrSeriesTooShort = errors.New("changepoint: series too short")

	// ErrEmptyMatrix is returned by the extractor for a matrix with no rows or no columns.
	ErrEmptyMatrix = errors.New("changepoint: empty power matrix")

	// ErrInvalidStride is returned for a stride below 1.
	ErrInvalidStride = errors.New("changepoint: stride must be positive")

	// ErrLengthMismatch is returned when a decoded record has trajectories of unequal length.
	ErrLengthMismatch = errors.New("changepoint: trajectory length mismatch")

	// ErrTimeBaseTooShort is returned when an event index falls outside the supplied time base.
	ErrTimeBaseTooShort = errors.New("changepoint: time base too short")
)
