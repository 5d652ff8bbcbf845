package metrics

import "errors"

// Sentinel errors for the metrics collector.
var (
	// ErrAlreadyRunning indicates Start was called on a running collector.
	ErrAlreadyRunning = errors.New("metrics: collector already running")

	// ErrMissingMetricName indicates a custom metric without a name.
	ErrMissingMetricName = errors.New("metrics: metric name is required")

	// ErrUnknownFormat indicates an unsupported export format.
	ErrUnknownFormat = errors.New("metrics: unknown export format")
)
