package health

import (
	"errors"
	"testing"
)

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr error
	}{
		{"missing ID", Target{URL: "http://example.com"}, ErrMissingTargetID},
		{"missing URL", Target{ID: "api"}, ErrMissingTargetURL},
		{"invalid URL", Target{ID: "api", URL: "not a url"}, ErrInvalidTargetURL},
		{"valid", Target{ID: "api", URL: "http://example.com/health"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTargetValidateAppliesDefaults(t *testing.T) {
	target := Target{ID: "api", URL: "http://example.com"}
	if err := target.validate(); err != nil {
		t.Fatalf("validate() = %v", err)
	}

	if target.Name != "api" {
		t.Errorf("Name = %q, want %q", target.Name, "api")
	}
	if target.Method != "GET" {
		t.Errorf("Method = %q, want GET", target.Method)
	}
	if len(target.ExpectedStatuses) != 1 || target.ExpectedStatuses[0] != 200 {
		t.Errorf("ExpectedStatuses = %v, want [200]", target.ExpectedStatuses)
	}
}

func TestTargetExpectsStatus(t *testing.T) {
	target := Target{ID: "api", URL: "http://example.com", ExpectedStatuses: []int{200, 204}}
	if err := target.validate(); err != nil {
		t.Fatalf("validate() = %v", err)
	}

	if !target.expectsStatus(204) {
		t.Error("expectsStatus(204) = false, want true")
	}
	if target.expectsStatus(500) {
		t.Error("expectsStatus(500) = true, want false")
	}
}

func TestPriorityString(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityCritical, "critical"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateUnknown.String() != "unknown" {
		t.Errorf("StateUnknown = %q", StateUnknown.String())
	}
	if StateHealthy.String() != "healthy" {
		t.Errorf("StateHealthy = %q", StateHealthy.String())
	}
}

func TestTargetTimingFieldsAreOptional(t *testing.T) {
	target := Target{ID: "api", URL: "http://example.com", Interval: 0, Timeout: 0}
	if err := target.validate(); err != nil {
		t.Fatalf("validate() = %v", err)
	}
	if target.Interval != 0 || target.Timeout != 0 {
		t.Error("zero timing fields must stay zero; the monitor applies defaults")
	}
}
