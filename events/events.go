package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event being published.
type Type string

// Health monitor events.
const (
	TypeCheckFailed         Type = "health.check-failed"
	TypeConsecutiveFailures Type = "health.consecutive-failures"
	TypeDegradedPerformance Type = "health.degraded-performance"
	TypeRecovery            Type = "health.recovery"
)

// Metrics collector events.
const (
	TypeMetricsThreshold Type = "metrics.threshold"
)

// Pool manager events.
const (
	TypePoolCreated      Type = "pool.created"
	TypePoolDestroyed    Type = "pool.destroyed"
	TypePoolAcquired     Type = "pool.acquired"
	TypePoolReleased     Type = "pool.released"
	TypePoolExhausted    Type = "pool.exhausted"
	TypeMemoryPressure   Type = "memory.pressure"
	TypeCollectionForced Type = "collection.forced"
)

// Validation pipeline events.
const (
	TypeValidationFailure Type = "validation.failure"
)

// Lifecycle events.
const (
	TypeComponentStart Type = "component.start"
	TypeComponentStop  Type = "component.stop"
)

// Severity indicates how urgent an event is.
type Severity int

const (
	// SeverityInfo is informational, no action needed.
	SeverityInfo Severity = iota
	// SeverityWarning indicates a condition worth attention.
	SeverityWarning
	// SeverityCritical indicates a condition requiring action.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Event is the single tagged union carried on the bus. Components publish
// these instead of calling subscribers directly; consumers dispatch on Type.
type Event struct {
	// ID uniquely identifies this event.
	ID string

	// Type is the event kind.
	Type Type

	// Source names the emitting component or target.
	Source string

	// Severity is the urgency of the event.
	Severity Severity

	// Message is a human-readable description.
	Message string

	// Time is when the event was emitted.
	Time time.Time

	// Data carries event-specific metadata.
	Data map[string]any
}

// New creates an event with a fresh ID and timestamp.
func New(t Type, source string, severity Severity, message string) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     t,
		Source:   source,
		Severity: severity,
		Message:  message,
		Time:     time.Now(),
	}
}

// WithData attaches metadata to an event.
func (e Event) WithData(data map[string]any) Event {
	e.Data = data
	return e
}
