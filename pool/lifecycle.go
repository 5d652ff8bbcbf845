package pool

import "context"

// Lifecycle supplies the owner-defined behaviors for pooled objects. It is
// implemented once per object type and passed into the pool configuration.
//
// Contract:
// - Concurrency: methods may be called from multiple goroutines.
// - Errors: Create and Reset errors are handled by the pool (the entry is
//   destroyed and acquisition retried once); Destroy errors are logged and
//   swallowed so teardown never blocks.
type Lifecycle interface {
	// Create builds a new object.
	Create(ctx context.Context) (any, error)

	// Reset prepares a reused object before it is handed out.
	Reset(obj any) error

	// Validate reports whether an idle object is still usable.
	Validate(obj any) bool

	// Destroy disposes of an object permanently.
	Destroy(obj any) error
}

// FuncLifecycle adapts plain functions to the Lifecycle interface. Nil
// funcs behave as no-ops (Validate defaults to true).
type FuncLifecycle struct {
	CreateFunc   func(ctx context.Context) (any, error)
	ResetFunc    func(obj any) error
	ValidateFunc func(obj any) bool
	DestroyFunc  func(obj any) error
}

// Create builds a new object.
func (f FuncLifecycle) Create(ctx context.Context) (any, error) {
	if f.CreateFunc == nil {
		return nil, ErrMissingLifecycle
	}
	return f.CreateFunc(ctx)
}

// Reset prepares a reused object.
func (f FuncLifecycle) Reset(obj any) error {
	if f.ResetFunc == nil {
		return nil
	}
	return f.ResetFunc(obj)
}

// Validate reports whether an idle object is still usable.
func (f FuncLifecycle) Validate(obj any) bool {
	if f.ValidateFunc == nil {
		return true
	}
	return f.ValidateFunc(obj)
}

// Destroy disposes of an object.
func (f FuncLifecycle) Destroy(obj any) error {
	if f.DestroyFunc == nil {
		return nil
	}
	return f.DestroyFunc(obj)
}

// Ensure FuncLifecycle implements Lifecycle.
var _ Lifecycle = FuncLifecycle{}
