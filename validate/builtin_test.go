package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func runRule(t *testing.T, rule Rule, payload any, vctx *Context) Result {
	t.Helper()
	if rule.Validate == nil {
		t.Fatal("rule has no validator")
	}
	return rule.Validate(payload, vctx)
}

func TestRequiredHeadersRule(t *testing.T) {
	rule := RequiredHeadersRule(1, "Content-Type", "X-Request-ID")

	vctx := NewContext("/x", "POST")
	vctx.Headers = map[string]string{"content-type": "application/json"}

	res := runRule(t, rule, nil, vctx)
	if res.Valid {
		t.Error("Valid = true with X-Request-ID missing")
	}
	if !strings.Contains(res.Message, "X-Request-ID") {
		t.Errorf("Message = %q, want the missing header named", res.Message)
	}

	vctx.Headers["X-Request-ID"] = "abc"
	if res := runRule(t, rule, nil, vctx); !res.Valid {
		t.Errorf("Valid = false with all headers present: %s", res.Message)
	}
}

func TestJSONBodyRule(t *testing.T) {
	rule := JSONBodyRule(1)
	vctx := NewContext("/x", "POST")

	tests := []struct {
		name    string
		payload any
		want    bool
	}{
		{"nil body", nil, true},
		{"valid object", `{"a":1}`, true},
		{"valid bytes", []byte(`[1,2,3]`), true},
		{"broken json", `{"a":`, false},
		{"decoded body", map[string]any{"a": 1}, true},
		{"empty string", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := runRule(t, rule, tt.payload, vctx); res.Valid != tt.want {
				t.Errorf("Valid = %v, want %v (%s)", res.Valid, tt.want, res.Message)
			}
		})
	}
}

func TestMaxBodySizeRule(t *testing.T) {
	rule := MaxBodySizeRule(1, 10)
	vctx := NewContext("/x", "POST")

	if res := runRule(t, rule, "short", vctx); !res.Valid {
		t.Errorf("small body rejected: %s", res.Message)
	}
	if res := runRule(t, rule, strings.Repeat("x", 11), vctx); res.Valid {
		t.Error("oversized body accepted")
	}
}

func TestMaxURLLengthRule(t *testing.T) {
	rule := MaxURLLengthRule(1, 16)

	short := NewContext("/x", "GET")
	if res := runRule(t, rule, nil, short); !res.Valid {
		t.Errorf("short URL rejected: %s", res.Message)
	}

	long := NewContext("/"+strings.Repeat("a", 32), "GET")
	res := runRule(t, rule, nil, long)
	if res.Valid {
		t.Error("long URL accepted")
	}
	if res.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want warning", res.Severity)
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAuthHeaderRule(t *testing.T) {
	rule := AuthHeaderRule(1)

	t.Run("missing header", func(t *testing.T) {
		vctx := NewContext("/x", "GET")
		res := runRule(t, rule, nil, vctx)
		if res.Valid || res.Severity != SeverityCritical {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("not a bearer token", func(t *testing.T) {
		vctx := NewContext("/x", "GET")
		vctx.Headers = map[string]string{"Authorization": "Basic dXNlcjpwdw=="}
		if res := runRule(t, rule, nil, vctx); res.Valid {
			t.Error("basic auth accepted as bearer")
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		vctx := NewContext("/x", "GET")
		vctx.Headers = map[string]string{"Authorization": "Bearer not.a.jwt"}
		if res := runRule(t, rule, nil, vctx); res.Valid {
			t.Error("malformed token accepted")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		vctx := NewContext("/x", "GET")
		vctx.Headers = map[string]string{"Authorization": "Bearer " + token}
		res := runRule(t, rule, nil, vctx)
		if res.Valid {
			t.Error("expired token accepted")
		}
		if !strings.Contains(res.Message, "expired") {
			t.Errorf("Message = %q", res.Message)
		}
	})

	t.Run("live token", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		vctx := NewContext("/x", "GET")
		vctx.Headers = map[string]string{"Authorization": "Bearer " + token}
		if res := runRule(t, rule, nil, vctx); !res.Valid {
			t.Errorf("live token rejected: %s", res.Message)
		}
	})
}

func TestResponseStructureRule(t *testing.T) {
	rule := ResponseStructureRule(1, "status", "data")
	vctx := NewContext("/x", "GET")

	complete := map[string]any{"status": "ok", "data": []int{1}}
	if res := runRule(t, rule, complete, vctx); !res.Valid {
		t.Errorf("complete response rejected: %s", res.Message)
	}

	partial := map[string]any{"status": "ok"}
	res := runRule(t, rule, partial, vctx)
	if res.Valid {
		t.Error("partial response accepted")
	}
	if !strings.Contains(res.Message, "data") {
		t.Errorf("Message = %q, want the missing field named", res.Message)
	}

	if res := runRule(t, rule, "plain text", vctx); !res.Valid {
		t.Error("non-map response must pass")
	}
}

func TestDefaultRulesRegister(t *testing.T) {
	p := NewPipeline(Config{})
	if err := p.AddRules(DefaultRules()...); err != nil {
		t.Fatalf("AddRules(DefaultRules) = %v", err)
	}

	vctx := NewContext("/x", "POST")
	vctx.Body = `{"ok":true}`
	if res := p.ValidateRequest(vctx); !res.Valid {
		t.Errorf("default rules rejected a clean request: %+v", res.Errors)
	}
}
