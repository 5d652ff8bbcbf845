package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jonwraymond/runtimeops/events"
)

func passRule(id string, typ RuleType, priority int) Rule {
	return Rule{
		ID:       id,
		Type:     typ,
		Priority: priority,
		Enabled:  true,
		Validate: func(any, *Context) Result { return Pass("ok") },
	}
}

func failRule(id string, typ RuleType, priority int, severity Severity) Rule {
	return Rule{
		ID:       id,
		Type:     typ,
		Priority: priority,
		Enabled:  true,
		Validate: func(any, *Context) Result { return Fail(severity, "refused") },
	}
}

func TestAddRuleValidation(t *testing.T) {
	p := NewPipeline(Config{})

	err := p.AddRule(Rule{Validate: func(any, *Context) Result { return Pass("") }})
	if !errors.Is(err, ErrMissingRuleID) {
		t.Errorf("no ID = %v, want ErrMissingRuleID", err)
	}

	if err := p.AddRule(Rule{ID: "r"}); !errors.Is(err, ErrNilValidator) {
		t.Errorf("nil validator = %v, want ErrNilValidator", err)
	}

	if err := p.AddRule(passRule("r", TypeRequest, 1)); err != nil {
		t.Fatalf("AddRule() = %v", err)
	}
	if err := p.AddRule(passRule("r", TypeRequest, 1)); !errors.Is(err, ErrDuplicateRule) {
		t.Errorf("duplicate = %v, want ErrDuplicateRule", err)
	}
}

func TestRulesRunInPriorityOrder(t *testing.T) {
	p := NewPipeline(Config{})
	var order []string

	mk := func(id string, priority int) Rule {
		return Rule{
			ID:       id,
			Type:     TypeRequest,
			Priority: priority,
			Enabled:  true,
			Validate: func(any, *Context) Result {
				order = append(order, id)
				return Pass("ok")
			},
		}
	}
	if err := p.AddRules(mk("five", 5), mk("one", 1), mk("three", 3)); err != nil {
		t.Fatal(err)
	}

	res := p.ValidateRequest(NewContext("/x", "GET"))
	if !res.Valid {
		t.Fatalf("Valid = false: %+v", res)
	}
	want := []string{"one", "three", "five"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEqualPriorityKeepsRegistrationOrder(t *testing.T) {
	p := NewPipeline(Config{})
	var order []string

	for _, id := range []string{"a", "b", "c"} {
		id := id
		err := p.AddRule(Rule{
			ID:      id,
			Type:    TypeRequest,
			Enabled: true,
			Validate: func(any, *Context) Result {
				order = append(order, id)
				return Pass("ok")
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	p.ValidateRequest(NewContext("/x", "GET"))
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

func TestFailFastStopsAtFirstError(t *testing.T) {
	p := NewPipeline(Config{FailFast: true})
	if err := p.AddRules(
		failRule("boom", TypeRequest, 1, SeverityError),
		passRule("later", TypeRequest, 2),
	); err != nil {
		t.Fatal(err)
	}

	res := p.ValidateRequest(NewContext("/x", "GET"))
	if res.Valid {
		t.Error("Valid = true, want false")
	}
	if res.ExecutedRules != 1 {
		t.Errorf("ExecutedRules = %d, want 1", res.ExecutedRules)
	}
}

func TestFailFastIgnoresWarnings(t *testing.T) {
	p := NewPipeline(Config{FailFast: true})
	if err := p.AddRules(
		failRule("warned", TypeRequest, 1, SeverityWarning),
		passRule("later", TypeRequest, 2),
	); err != nil {
		t.Fatal(err)
	}

	res := p.ValidateRequest(NewContext("/x", "GET"))
	if !res.Valid {
		t.Error("Valid = false; warnings must not fail the pass")
	}
	if res.ExecutedRules != 2 {
		t.Errorf("ExecutedRules = %d, want 2 (warning must not stop the pass)", res.ExecutedRules)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %d, want 1", len(res.Warnings))
	}
}

func TestWithoutFailFastAllRulesRun(t *testing.T) {
	p := NewPipeline(Config{})
	if err := p.AddRules(
		failRule("boom", TypeRequest, 1, SeverityError),
		passRule("later", TypeRequest, 2),
	); err != nil {
		t.Fatal(err)
	}

	res := p.ValidateRequest(NewContext("/x", "GET"))
	if res.Valid {
		t.Error("Valid = true, want false")
	}
	if res.ExecutedRules != 2 {
		t.Errorf("ExecutedRules = %d, want 2", res.ExecutedRules)
	}
}

func TestPanickingRuleBecomesErrorResult(t *testing.T) {
	p := NewPipeline(Config{})
	err := p.AddRule(Rule{
		ID:      "panicky",
		Type:    TypeRequest,
		Enabled: true,
		Validate: func(any, *Context) Result {
			panic("rule exploded")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	res := p.ValidateRequest(NewContext("/x", "GET"))
	if res.Valid {
		t.Error("Valid = true, want false")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %d, want 1", len(res.Errors))
	}
	if res.Errors[0].RuleID != "panicky" {
		t.Errorf("RuleID = %q, want panicky", res.Errors[0].RuleID)
	}
}

func TestValidateRequestSelectsTypes(t *testing.T) {
	p := NewPipeline(Config{})
	if err := p.AddRules(
		passRule("req", TypeRequest, 1),
		passRule("sec", TypeSecurity, 2),
		passRule("perf", TypePerformance, 3),
		failRule("resp", TypeResponse, 0, SeverityError),
	); err != nil {
		t.Fatal(err)
	}

	res := p.ValidateRequest(NewContext("/x", "GET"))
	if !res.Valid {
		t.Error("response rule ran during request validation")
	}
	if res.ExecutedRules != 3 {
		t.Errorf("ExecutedRules = %d, want 3", res.ExecutedRules)
	}
}

func TestValidateResponseSubstitutesData(t *testing.T) {
	p := NewPipeline(Config{})
	var got any
	err := p.AddRule(Rule{
		ID:      "resp",
		Type:    TypeResponse,
		Enabled: true,
		Validate: func(payload any, vctx *Context) Result {
			got = payload
			if vctx.Body == nil {
				return Fail(SeverityError, "body not substituted")
			}
			return Pass("ok")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	vctx := NewContext("/x", "GET")
	data := map[string]any{"status": "ok"}
	res := p.ValidateResponse(data, vctx)

	if !res.Valid {
		t.Errorf("Valid = false: %+v", res.Errors)
	}
	m, ok := got.(map[string]any)
	if !ok || m["status"] != "ok" {
		t.Errorf("payload = %v, want the response data", got)
	}
	if vctx.Body != nil {
		t.Error("caller's context was mutated")
	}
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	p := NewPipeline(Config{})
	if err := p.AddRule(failRule("boom", TypeRequest, 1, SeverityError)); err != nil {
		t.Fatal(err)
	}

	if err := p.DisableRule("boom"); err != nil {
		t.Fatal(err)
	}
	if res := p.ValidateRequest(NewContext("/x", "GET")); !res.Valid || res.ExecutedRules != 0 {
		t.Errorf("disabled rule ran: %+v", res)
	}

	if err := p.EnableRule("boom"); err != nil {
		t.Fatal(err)
	}
	if res := p.ValidateRequest(NewContext("/x", "GET")); res.Valid {
		t.Error("re-enabled rule did not run")
	}

	if err := p.EnableRule("ghost"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("EnableRule(ghost) = %v, want ErrRuleNotFound", err)
	}
}

func TestRemoveRule(t *testing.T) {
	p := NewPipeline(Config{})
	if err := p.AddRule(passRule("r", TypeRequest, 1)); err != nil {
		t.Fatal(err)
	}
	if err := p.RemoveRule("r"); err != nil {
		t.Fatal(err)
	}
	if err := p.RemoveRule("r"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("second RemoveRule = %v, want ErrRuleNotFound", err)
	}
}

func TestMetricsTracksExecutions(t *testing.T) {
	p := NewPipeline(Config{})
	if err := p.AddRules(
		passRule("ok", TypeRequest, 1),
		failRule("bad", TypeRequest, 2, SeverityError),
	); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		p.ValidateRequest(NewContext("/x", "GET"))
	}

	stats := p.Metrics()
	if stats["ok"].Executions != 3 || stats["ok"].Failures != 0 {
		t.Errorf("ok stats = %+v", stats["ok"])
	}
	if stats["bad"].Executions != 3 || stats["bad"].Failures != 3 {
		t.Errorf("bad stats = %+v", stats["bad"])
	}
	if stats["bad"].LastMessage != "refused" {
		t.Errorf("LastMessage = %q", stats["bad"].LastMessage)
	}
}

func TestValidationFailureEvent(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	p := NewPipeline(Config{Bus: bus})
	if err := p.AddRule(failRule("bad", TypeRequest, 1, SeverityCritical)); err != nil {
		t.Fatal(err)
	}

	p.ValidateRequest(NewContext("/orders", "POST"))

	select {
	case e := <-ch:
		if e.Type != events.TypeValidationFailure {
			t.Errorf("Type = %v, want %v", e.Type, events.TypeValidationFailure)
		}
		if e.Severity != events.SeverityCritical {
			t.Errorf("Severity = %v, want critical", e.Severity)
		}
	default:
		t.Error("no validation.failure event")
	}
}

func TestExportReport(t *testing.T) {
	p := NewPipeline(Config{FailFast: true})
	if err := p.AddRule(passRule("r", TypeRequest, 1)); err != nil {
		t.Fatal(err)
	}
	p.ValidateRequest(NewContext("/x", "GET"))

	out, err := p.ExportReport()
	if err != nil {
		t.Fatalf("ExportReport() = %v", err)
	}

	var report struct {
		FailFast  bool                 `json:"fail_fast"`
		RuleCount int                  `json:"rule_count"`
		Stats     map[string]RuleStats `json:"stats"`
	}
	if err := json.Unmarshal(out, &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if !report.FailFast || report.RuleCount != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Stats["r"].Executions != 1 {
		t.Errorf("stats = %+v", report.Stats)
	}
}
