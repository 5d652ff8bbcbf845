// Package events provides the typed event bus shared by the runtime
// governance components.
//
// Every component (health monitor, metrics collector, pool manager,
// validation pipeline) publishes tagged Event values to a Bus instead of
// invoking callbacks. Consumers subscribe and dispatch on Event.Type:
//
//	bus := events.NewBus()
//	ch, cancel := bus.Subscribe(0)
//	defer cancel()
//
//	go func() {
//	    for ev := range ch {
//	        switch ev.Type {
//	        case events.TypeRecovery:
//	            // notify on-call that the dependency recovered
//	        case events.TypeMemoryPressure:
//	            // page if ev.Severity == events.SeverityCritical
//	        }
//	    }
//	}()
//
// Delivery is best-effort at emit time: a subscriber whose buffer is full
// misses the event, and there is no replay.
package events
