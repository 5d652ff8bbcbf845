package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RequiredHeadersRule fails when any of the named headers is absent.
// Header lookup is case-insensitive.
func RequiredHeadersRule(priority int, headers ...string) Rule {
	return Rule{
		ID:       "required-headers",
		Name:     "Required Headers",
		Type:     TypeRequest,
		Priority: priority,
		Enabled:  true,
		Validate: func(_ any, vctx *Context) Result {
			var missing []string
			for _, h := range headers {
				if _, ok := vctx.header(h); !ok {
					missing = append(missing, h)
				}
			}
			if len(missing) > 0 {
				return Fail(SeverityError, fmt.Sprintf("missing required headers: %s", strings.Join(missing, ", "))).
					WithDetails(map[string]any{"missing": missing}).
					WithSuggestions("set the listed headers on the request")
			}
			return Pass("all required headers present")
		},
	}
}

// JSONBodyRule fails when a string or byte-slice body is not well-formed
// JSON. Non-string bodies and empty bodies pass; structured values were
// already decoded by the caller.
func JSONBodyRule(priority int) Rule {
	return Rule{
		ID:       "json-body",
		Name:     "JSON Body",
		Type:     TypeRequest,
		Priority: priority,
		Enabled:  true,
		Validate: func(payload any, _ *Context) Result {
			var raw []byte
			switch v := payload.(type) {
			case nil:
				return Pass("empty body")
			case string:
				raw = []byte(v)
			case []byte:
				raw = v
			default:
				return Pass("body already decoded")
			}
			if len(raw) == 0 {
				return Pass("empty body")
			}
			if !json.Valid(raw) {
				return Fail(SeverityError, "body is not valid JSON").
					WithSuggestions("check for unbalanced braces or trailing commas")
			}
			return Pass("body is valid JSON")
		},
	}
}

// MaxBodySizeRule fails when a string or byte-slice body exceeds the
// byte limit.
func MaxBodySizeRule(priority int, maxBytes int) Rule {
	return Rule{
		ID:       "max-body-size",
		Name:     "Max Body Size",
		Type:     TypeRequest,
		Priority: priority,
		Enabled:  true,
		Validate: func(payload any, _ *Context) Result {
			var size int
			switch v := payload.(type) {
			case string:
				size = len(v)
			case []byte:
				size = len(v)
			default:
				return Pass("body size not measurable")
			}
			if size > maxBytes {
				return Fail(SeverityError, fmt.Sprintf("body size %d exceeds limit %d", size, maxBytes)).
					WithDetails(map[string]any{"size": size, "limit": maxBytes})
			}
			return Pass("body within size limit")
		},
	}
}

// MaxURLLengthRule warns when the endpoint path exceeds the length limit.
func MaxURLLengthRule(priority int, maxLength int) Rule {
	return Rule{
		ID:       "max-url-length",
		Name:     "Max URL Length",
		Type:     TypePerformance,
		Priority: priority,
		Enabled:  true,
		Validate: func(_ any, vctx *Context) Result {
			if len(vctx.Endpoint) > maxLength {
				return Fail(SeverityWarning, fmt.Sprintf("URL length %d exceeds %d", len(vctx.Endpoint), maxLength)).
					WithSuggestions("move large parameters into the request body")
			}
			return Pass("URL within length limit")
		},
	}
}

// AuthHeaderRule fails when the Authorization header is missing, is not a
// bearer token, or carries a malformed or expired JWT. The token signature
// is not verified here; that belongs to the authenticating layer.
func AuthHeaderRule(priority int) Rule {
	parser := jwt.NewParser()
	return Rule{
		ID:       "auth-header",
		Name:     "Authorization Header",
		Type:     TypeSecurity,
		Priority: priority,
		Enabled:  true,
		Validate: func(_ any, vctx *Context) Result {
			header, ok := vctx.header("Authorization")
			if !ok || header == "" {
				return Fail(SeverityCritical, "missing Authorization header").
					WithSuggestions("send a bearer token in the Authorization header")
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header {
				return Fail(SeverityCritical, "Authorization header is not a bearer token")
			}
			tokenString = strings.TrimSpace(tokenString)

			token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
			if err != nil {
				return Fail(SeverityCritical, "malformed bearer token").
					WithDetails(map[string]any{"error": err.Error()})
			}

			exp, err := token.Claims.GetExpirationTime()
			if err != nil {
				return Fail(SeverityCritical, "malformed token expiry")
			}
			if exp != nil && exp.Before(time.Now()) {
				return Fail(SeverityCritical, "bearer token expired").
					WithDetails(map[string]any{"expired_at": exp.Time})
			}
			return Pass("bearer token present")
		},
	}
}

// ResponseStructureRule fails when a map-shaped response is missing any
// of the required top-level fields.
func ResponseStructureRule(priority int, requiredFields ...string) Rule {
	return Rule{
		ID:       "response-structure",
		Name:     "Response Structure",
		Type:     TypeResponse,
		Priority: priority,
		Enabled:  true,
		Validate: func(payload any, _ *Context) Result {
			m, ok := payload.(map[string]any)
			if !ok {
				return Pass("response is not map-shaped")
			}
			var missing []string
			for _, f := range requiredFields {
				if _, ok := m[f]; !ok {
					missing = append(missing, f)
				}
			}
			if len(missing) > 0 {
				return Fail(SeverityError, fmt.Sprintf("response missing fields: %s", strings.Join(missing, ", "))).
					WithDetails(map[string]any{"missing": missing})
			}
			return Pass("response structure valid")
		},
	}
}

// DefaultRules returns a conservative starter rule set: body well-formed
// and bounded, URL length bounded.
func DefaultRules() []Rule {
	return []Rule{
		JSONBodyRule(10),
		MaxBodySizeRule(20, 10<<20),
		MaxURLLengthRule(30, 2048),
	}
}
