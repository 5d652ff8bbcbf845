package health

import (
	"fmt"
	"net/url"
	"time"
)

// Priority is the tier of a probe target. Alerts for critical-tier targets
// are emitted at critical severity.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Target describes a monitored dependency endpoint with its own check
// schedule and success criteria. A registered target is only changed via
// explicit Register/Unregister/Update calls, never in place.
type Target struct {
	// ID uniquely identifies the target.
	ID string

	// Name is the display name. Defaults to ID.
	Name string

	// URL is the endpoint to probe.
	URL string

	// Method is the HTTP method. Default: GET.
	Method string

	// Headers are added to every probe request.
	Headers map[string]string

	// Body is the request body sent with the probe, if any.
	Body string

	// ExpectedStatuses is the set of status codes counted as success.
	// Default: {200}.
	ExpectedStatuses []int

	// MaxResponseTime is the response-time ceiling. A probe that returns
	// an expected status but exceeds the ceiling counts as a failure with
	// a degraded-performance alert. Zero means no ceiling.
	MaxResponseTime time.Duration

	// Interval is the check interval. Zero uses the monitor default.
	Interval time.Duration

	// Timeout bounds each probe call. Zero uses the monitor default.
	Timeout time.Duration

	// Enabled controls whether the check loop runs.
	Enabled bool

	// Priority is the alerting tier.
	Priority Priority

	// DependsOn lists IDs of targets this one depends on.
	DependsOn []string

	// Metadata is free-form annotation, not interpreted by the monitor.
	Metadata map[string]string
}

// validate checks registration-time invariants and applies defaults.
func (t *Target) validate() error {
	if t.ID == "" {
		return ErrMissingTargetID
	}
	if t.URL == "" {
		return fmt.Errorf("%w: target %q", ErrMissingTargetURL, t.ID)
	}
	if _, err := url.ParseRequestURI(t.URL); err != nil {
		return fmt.Errorf("%w: target %q: %v", ErrInvalidTargetURL, t.ID, err)
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.Method == "" {
		t.Method = "GET"
	}
	if len(t.ExpectedStatuses) == 0 {
		t.ExpectedStatuses = []int{200}
	}
	return nil
}

// expectsStatus reports whether code is in the target's success set.
func (t *Target) expectsStatus(code int) bool {
	for _, s := range t.ExpectedStatuses {
		if s == code {
			return true
		}
	}
	return false
}
