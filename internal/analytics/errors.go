package analytics

import "errors"

var (
	// ErrInvalidInput is returned for inputs the core cannot compute on at all,
	// such as an empty value sequence or an unknown metric identifier.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData is returned when a series is shorter than an
	// operation's minimum history.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameters is returned when an engine is invoked with
	// out-of-bounds parameters (horizon, windows, thresholds).
	ErrInvalidParameters = errors.New("invalid parameters")
)
