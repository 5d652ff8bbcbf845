// Package pool implements reusable-object pools with creation, reuse, and
// destruction accounting, plus a manager that reclaims idle entries and
// reacts to memory pressure with forced collection.
//
// # Core Concepts
//
// Owners implement Lifecycle (Create, Reset, Validate, Destroy) once per
// object type and hand it to the pool configuration. A Pool pre-warms to
// MinSize and never exceeds MaxSize. Acquire never blocks: when every
// entry is checked out and the pool is full, it records a miss and
// returns ErrExhausted.
//
//	p, err := mgr.CreatePool(pool.Config{
//	    Name:    "db-conns",
//	    MinSize: 2,
//	    MaxSize: 10,
//	    Lifecycle: pool.FuncLifecycle{
//	        CreateFunc: func(ctx context.Context) (any, error) { return dial(ctx) },
//	        ResetFunc:  func(obj any) error { return obj.(*conn).reset() },
//	        DestroyFunc: func(obj any) error { return obj.(*conn).Close() },
//	    },
//	})
//
//	item, err := p.Acquire(ctx)
//	if err != nil {
//	    // handle absence; acquisition does not wait
//	}
//	defer p.Release(item)
//
// The Manager runs two loops: a reclamation pass that destroys available
// entries idle past IdleTimeout (never shrinking below MinSize), and a
// memory sampler that emits pressure events and invokes a forced
// collection past the GC thresholds. Optimize shrinks pools whose
// available count is more than double current demand.
package pool
