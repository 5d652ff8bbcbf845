// Package core composes the health monitor, metrics collector, pool
// manager, and validation pipeline behind a single lifecycle, a shared
// structured logger, a shared event bus, and one merged status report.
//
//	c, err := core.New(core.Config{
//	    Logger: telemetry.NewLogger("info"),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	defer c.Close(ctx)
//
//	events, cancel := c.Events()
//	defer cancel()
//
//	report := c.Report()
//
// Subsystems stay reachable through Health, Metrics, Pools, and
// Validation for registration calls (probe targets, custom metrics,
// pools, rules). Stop halts every subsystem even when one fails and is
// safe to call more than once.
package core
