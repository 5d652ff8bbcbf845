package health

import "errors"

// Sentinel errors for the health monitor.
var (
	// ErrMissingTargetID indicates a target was registered without an ID.
	ErrMissingTargetID = errors.New("health: target ID is required")

	// ErrMissingTargetURL indicates a target was registered without a URL.
	ErrMissingTargetURL = errors.New("health: target URL is required")

	// ErrInvalidTargetURL indicates a target URL that cannot be parsed.
	ErrInvalidTargetURL = errors.New("health: target URL is invalid")

	// ErrDuplicateTarget indicates the target ID is already registered.
	ErrDuplicateTarget = errors.New("health: target already registered")

	// ErrTargetNotFound indicates the target ID is not registered.
	ErrTargetNotFound = errors.New("health: target not found")

	// ErrAlreadyRunning indicates Start was called on a running monitor.
	ErrAlreadyRunning = errors.New("health: monitor already running")
)
