package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/runtimeops/events"
	"github.com/jonwraymond/runtimeops/telemetry"
)

// Config configures the Pipeline.
type Config struct {
	// FailFast stops rule execution at the first error-severity result.
	FailFast bool

	// Logger receives structured pipeline logs. Default: no-op.
	Logger telemetry.Logger

	// Bus receives validation failure events. Optional.
	Bus *events.Bus
}

// Pipeline executes a prioritized, typed set of validation rules against
// request and response contexts.
//
// Contract:
// - Concurrency: safe for concurrent use; validation passes snapshot the
//   rule set and run without holding the registry lock.
// - Ordering: rules execute sorted by ascending priority, registration
//   order breaking ties.
// - Errors: a rule that panics becomes an error-severity result citing
//   the rule; it never aborts the pass unless FailFast is set.
type Pipeline struct {
	config Config
	log    telemetry.Logger
	bus    *events.Bus

	mu      sync.RWMutex
	rules   map[string]*Rule
	stats   map[string]*RuleStats
	nextSeq int
}

// NewPipeline creates a validation pipeline with no rules.
func NewPipeline(config Config) *Pipeline {
	log := config.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &Pipeline{
		config: config,
		log:    log.WithComponent("validate"),
		bus:    config.Bus,
		rules:  make(map[string]*Rule),
		stats:  make(map[string]*RuleStats),
	}
}

// AddRule registers a rule. A rule without a synchronous validator is
// rejected here, not at first use.
func (p *Pipeline) AddRule(rule Rule) error {
	if rule.ID == "" {
		return ErrMissingRuleID
	}
	if rule.Validate == nil {
		return fmt.Errorf("%w: rule %q", ErrNilValidator, rule.ID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.rules[rule.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRule, rule.ID)
	}
	if rule.Name == "" {
		rule.Name = rule.ID
	}
	rule.seq = p.nextSeq
	p.nextSeq++

	p.rules[rule.ID] = &rule
	p.stats[rule.ID] = &RuleStats{RuleID: rule.ID}
	return nil
}

// AddRules registers several rules, stopping at the first error.
func (p *Pipeline) AddRules(rules ...Rule) error {
	for _, r := range rules {
		if err := p.AddRule(r); err != nil {
			return err
		}
	}
	return nil
}

// RemoveRule unregisters a rule and its statistics.
func (p *Pipeline) RemoveRule(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rules[id]; !ok {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	delete(p.rules, id)
	delete(p.stats, id)
	return nil
}

// EnableRule enables a rule.
func (p *Pipeline) EnableRule(id string) error {
	return p.setEnabled(id, true)
}

// DisableRule disables a rule without removing it.
func (p *Pipeline) DisableRule(id string) error {
	return p.setEnabled(id, false)
}

func (p *Pipeline) setEnabled(id string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rule, ok := p.rules[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	rule.Enabled = enabled
	return nil
}

// ValidateRequest runs request, security, and performance rules against
// the context. The context body is the payload.
func (p *Pipeline) ValidateRequest(vctx *Context) PipelineResult {
	return p.run(vctx, vctx.Body, TypeRequest, TypeSecurity, TypePerformance)
}

// ValidateResponse runs response rules with data substituted for the
// context body.
func (p *Pipeline) ValidateResponse(data any, vctx *Context) PipelineResult {
	scoped := *vctx
	scoped.Body = data
	return p.run(&scoped, data, TypeResponse)
}

// run executes the applicable rules in priority order.
func (p *Pipeline) run(vctx *Context, payload any, types ...RuleType) PipelineResult {
	start := time.Now()

	applicable := p.applicableRules(types)

	result := PipelineResult{Valid: true, Context: vctx}
	for _, rule := range applicable {
		res, elapsed := p.executeRule(rule, payload, vctx)
		result.Results = append(result.Results, res)
		result.ExecutedRules++

		p.recordStats(rule.ID, res, elapsed)

		if !res.Valid {
			switch res.Severity {
			case SeverityError, SeverityCritical:
				result.Errors = append(result.Errors, res)
			case SeverityWarning:
				result.Warnings = append(result.Warnings, res)
			}
		}

		if p.config.FailFast && len(result.Errors) > 0 {
			break
		}
	}

	result.Valid = len(result.Errors) == 0
	result.Duration = time.Since(start)

	if !result.Valid {
		p.publishFailure(vctx, result)
	}
	return result
}

// applicableRules snapshots the enabled rules matching the type set,
// sorted by priority then registration order.
func (p *Pipeline) applicableRules(types []RuleType) []*Rule {
	wanted := make(map[RuleType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	p.mu.RLock()
	out := make([]*Rule, 0, len(p.rules))
	for _, r := range p.rules {
		if r.Enabled && wanted[r.Type] {
			out = append(out, r)
		}
	}
	p.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// executeRule runs one rule, converting a panic into an error-severity
// result citing the rule.
func (p *Pipeline) executeRule(rule *Rule, payload any, vctx *Context) (res Result, elapsed time.Duration) {
	start := time.Now()
	defer func() {
		elapsed = time.Since(start)
		if r := recover(); r != nil {
			res = Fail(SeverityError, fmt.Sprintf("rule %q panicked: %v", rule.ID, r))
			res.RuleID = rule.ID
			res.RuleName = rule.Name
			p.log.Error(context.Background(), "rule panicked",
				telemetry.F("rule", rule.ID), telemetry.F("panic", fmt.Sprint(r)))
		}
	}()

	res = rule.Validate(payload, vctx)
	if res.RuleID == "" {
		res.RuleID = rule.ID
	}
	if res.RuleName == "" {
		res.RuleName = rule.Name
	}
	return res, time.Since(start)
}

func (p *Pipeline) recordStats(id string, res Result, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.stats[id]
	if !ok {
		return
	}
	st.Executions++
	st.TotalTime += elapsed
	st.AvgTime = st.TotalTime / time.Duration(st.Executions)
	if !res.Valid {
		st.Failures++
		st.LastMessage = res.Message
	}
}

func (p *Pipeline) publishFailure(vctx *Context, result PipelineResult) {
	if p.bus == nil {
		return
	}

	severity := events.SeverityWarning
	for _, e := range result.Errors {
		if e.Severity == SeverityCritical {
			severity = events.SeverityCritical
			break
		}
	}

	p.bus.Publish(events.New(events.TypeValidationFailure, vctx.Endpoint, severity,
		fmt.Sprintf("validation failed with %d errors", len(result.Errors))).
		WithData(map[string]any{
			"request_id": vctx.RequestID,
			"method":     vctx.Method,
			"errors":     len(result.Errors),
			"warnings":   len(result.Warnings),
		}))
}

// Metrics returns a copy of the per-rule execution statistics.
func (p *Pipeline) Metrics() map[string]RuleStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]RuleStats, len(p.stats))
	for id, st := range p.stats {
		out[id] = *st
	}
	return out
}

// ruleSummary is the exported view of one registered rule.
type ruleSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// ExportReport renders the rule registry and execution statistics as JSON.
func (p *Pipeline) ExportReport() ([]byte, error) {
	p.mu.RLock()
	rules := make([]ruleSummary, 0, len(p.rules))
	for _, r := range p.rules {
		rules = append(rules, ruleSummary{
			ID:       r.ID,
			Name:     r.Name,
			Type:     r.Type.String(),
			Priority: r.Priority,
			Enabled:  r.Enabled,
		})
	}
	p.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})

	report := struct {
		GeneratedAt time.Time            `json:"generated_at"`
		FailFast    bool                 `json:"fail_fast"`
		RuleCount   int                  `json:"rule_count"`
		Rules       []ruleSummary        `json:"rules"`
		Stats       map[string]RuleStats `json:"stats"`
	}{
		GeneratedAt: time.Now(),
		FailFast:    p.config.FailFast,
		RuleCount:   len(rules),
		Rules:       rules,
		Stats:       p.Metrics(),
	}
	return json.MarshalIndent(report, "", "  ")
}
