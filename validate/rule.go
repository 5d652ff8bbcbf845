package validate

import "time"

// RuleType classifies what a rule inspects. Request validation runs
// request, security, and performance rules; response validation runs
// response rules.
type RuleType int

const (
	TypeRequest RuleType = iota
	TypeResponse
	TypeSecurity
	TypePerformance
)

// String returns the string representation of the rule type.
func (t RuleType) String() string {
	switch t {
	case TypeResponse:
		return "response"
	case TypeSecurity:
		return "security"
	case TypePerformance:
		return "performance"
	default:
		return "request"
	}
}

// Severity classifies a validation result. Only error and critical
// results fail the pipeline; warnings never do.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// ValidatorFunc is a synchronous, pure validator. It must not mutate the
// context and must not panic; a panic is converted into an error-severity
// result citing the rule.
type ValidatorFunc func(payload any, vctx *Context) Result

// Rule is one prioritized validation rule. Lower priority runs first;
// rules with equal priority run in registration order.
type Rule struct {
	ID       string
	Name     string
	Type     RuleType
	Priority int
	Enabled  bool
	Validate ValidatorFunc

	// seq is the registration order, used to keep the priority sort
	// stable.
	seq int
}

// Result is the outcome of one rule execution.
type Result struct {
	Valid       bool           `json:"valid"`
	RuleID      string         `json:"rule_id"`
	RuleName    string         `json:"rule_name"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// Pass creates a valid result.
func Pass(message string) Result {
	return Result{Valid: true, Severity: SeverityInfo, Message: message}
}

// Fail creates an invalid result with the given severity.
func Fail(severity Severity, message string) Result {
	return Result{Valid: false, Severity: severity, Message: message}
}

// WithDetails attaches details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithSuggestions attaches remediation hints to a result.
func (r Result) WithSuggestions(suggestions ...string) Result {
	r.Suggestions = suggestions
	return r
}

// RuleStats tracks per-rule execution statistics.
type RuleStats struct {
	RuleID      string        `json:"rule_id"`
	Executions  int64         `json:"executions"`
	Failures    int64         `json:"failures"`
	TotalTime   time.Duration `json:"total_time"`
	AvgTime     time.Duration `json:"avg_time"`
	LastMessage string        `json:"last_message,omitempty"`
}

// PipelineResult aggregates one validation pass.
type PipelineResult struct {
	// Valid is true iff the error list is empty. Warnings never fail
	// the pipeline.
	Valid         bool          `json:"valid"`
	Results       []Result      `json:"results"`
	Errors        []Result      `json:"errors,omitempty"`
	Warnings      []Result      `json:"warnings,omitempty"`
	ExecutedRules int           `json:"executed_rules"`
	Duration      time.Duration `json:"duration"`
	Context       *Context      `json:"context,omitempty"`
}
