package pool

import "errors"

// Sentinel errors for pool operations.
var (
	// ErrMissingPoolName indicates a pool configured without a name.
	ErrMissingPoolName = errors.New("pool: pool name is required")

	// ErrMissingLifecycle indicates a pool configured without a Lifecycle.
	ErrMissingLifecycle = errors.New("pool: lifecycle is required")

	// ErrInvalidSize indicates min/max sizing that cannot be satisfied.
	ErrInvalidSize = errors.New("pool: invalid pool sizing")

	// ErrDuplicatePool indicates the pool name is already in use.
	ErrDuplicatePool = errors.New("pool: pool already exists")

	// ErrPoolNotFound indicates the pool name is not registered.
	ErrPoolNotFound = errors.New("pool: pool not found")

	// ErrExhausted is returned when a pool has no capacity left.
	// Acquire never blocks; callers must handle absence.
	ErrExhausted = errors.New("pool: pool exhausted")

	// ErrAlreadyReleased indicates a double release, which is a caller bug.
	ErrAlreadyReleased = errors.New("pool: item already released")

	// ErrNotOwned indicates a release of an item the pool does not own.
	ErrNotOwned = errors.New("pool: item not owned by this pool")

	// ErrAlreadyRunning indicates Start was called on a running manager.
	ErrAlreadyRunning = errors.New("pool: manager already running")
)
