package domain

import "errors"

// Engine error kinds. Per-instrument errors (DataGap, InsufficientHistory,
// CorrelationUndefined) exclude that instrument from ranking and rotation for
// the current cycle but never abort the cycle for other instruments.
// ErrConfigurationInvalid is cycle-fatal: the engine refuses to run rather
// than compute with ambiguous parameters.
var (
	// ErrDataGap indicates a missing or zero price where one was required
	ErrDataGap = errors.New("data gap: missing or zero price")

	// ErrInsufficientHistory indicates fewer observations than the longest
	// configured lookback window. Instruments are excluded from ranking
	// rather than scored with partial windows.
	ErrInsufficientHistory = errors.New("insufficient history for configured windows")

	// ErrCorrelationUndefined indicates a zero-variance return series over
	// the correlation window (e.g. halted trading). Treated as failing the
	// correlation criterion conservatively.
	ErrCorrelationUndefined = errors.New("correlation undefined: zero variance over window")

	// ErrConfigurationInvalid indicates malformed weights or thresholds
	ErrConfigurationInvalid = errors.New("configuration invalid")
)
