package validate

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

// RateLimit caps requests per client within a rolling window.
type RateLimit struct {
	// MaxRequests is the request budget per window. Must be positive.
	MaxRequests int

	// Window is the counting window. Must be positive.
	Window time.Duration
}

// SecurityRule is a data-driven security policy for endpoints matching a
// pattern. Compile it into a pipeline rule with AddSecurityRule.
type SecurityRule struct {
	// ID identifies the compiled rule in the pipeline.
	ID string

	// Name is a human-readable label. Default: the ID.
	Name string

	// Priority orders the compiled rule among the pipeline's rules.
	Priority int

	// EndpointPattern is a regular expression matched against the
	// context endpoint. The rule passes for non-matching endpoints.
	EndpointPattern string

	// BlockedHeaders fail the request when present.
	BlockedHeaders []string

	// AllowedMethods, when non-empty, restricts the HTTP methods.
	AllowedMethods []string

	// RequireAuth fails requests without an Authorization header.
	RequireAuth bool

	// RateLimit, when non-nil, caps requests per client address within
	// the window.
	RateLimit *RateLimit
}

// clientWindow counts one client's requests within the current window.
type clientWindow struct {
	count   int
	resetAt time.Time
}

// rateCounter tracks per-client request counts for one security rule.
type rateCounter struct {
	mu      sync.Mutex
	limit   RateLimit
	clients map[string]*clientWindow
}

func newRateCounter(limit RateLimit) *rateCounter {
	return &rateCounter{
		limit:   limit,
		clients: make(map[string]*clientWindow),
	}
}

// allow records one request for the client and reports whether it fits
// the budget. The window resets lazily on first use after expiry.
func (rc *rateCounter) allow(client string, now time.Time) (allowed bool, remaining int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	w, ok := rc.clients[client]
	if !ok || now.After(w.resetAt) {
		w = &clientWindow{resetAt: now.Add(rc.limit.Window)}
		rc.clients[client] = w
	}
	if w.count >= rc.limit.MaxRequests {
		return false, 0
	}
	w.count++
	return true, rc.limit.MaxRequests - w.count
}

// Compile validates the security rule and turns it into a pipeline rule.
// Pattern and rate-limit problems surface here, at registration time.
func (s SecurityRule) Compile() (Rule, error) {
	if s.ID == "" {
		return Rule{}, ErrMissingRuleID
	}
	if s.Name == "" {
		s.Name = s.ID
	}

	var pattern *regexp.Regexp
	if s.EndpointPattern != "" {
		var err error
		pattern, err = regexp.Compile(s.EndpointPattern)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, s.EndpointPattern, err)
		}
	}

	var counter *rateCounter
	if s.RateLimit != nil {
		if s.RateLimit.MaxRequests <= 0 || s.RateLimit.Window <= 0 {
			return Rule{}, fmt.Errorf("%w: rule %q", ErrInvalidRateLimit, s.ID)
		}
		counter = newRateCounter(*s.RateLimit)
	}

	blocked := append([]string(nil), s.BlockedHeaders...)
	methods := append([]string(nil), s.AllowedMethods...)

	return Rule{
		ID:       s.ID,
		Name:     s.Name,
		Type:     TypeSecurity,
		Priority: s.Priority,
		Enabled:  true,
		Validate: func(_ any, vctx *Context) Result {
			if pattern != nil && !pattern.MatchString(vctx.Endpoint) {
				return Pass("endpoint not covered by policy")
			}

			for _, h := range blocked {
				if _, ok := vctx.header(h); ok {
					return Fail(SeverityCritical, fmt.Sprintf("blocked header %q present", h)).
						WithDetails(map[string]any{"header": h})
				}
			}

			if len(methods) > 0 && !containsFold(methods, vctx.Method) {
				return Fail(SeverityError, fmt.Sprintf("method %s not allowed", vctx.Method)).
					WithDetails(map[string]any{"allowed": methods})
			}

			if s.RequireAuth {
				if v, ok := vctx.header("Authorization"); !ok || v == "" {
					return Fail(SeverityCritical, "authentication required").
						WithSuggestions("send a bearer token in the Authorization header")
				}
			}

			if counter != nil {
				client := vctx.ClientAddr
				if client == "" {
					client = "unknown"
				}
				allowed, remaining := counter.allow(client, time.Now())
				if !allowed {
					return Fail(SeverityError, fmt.Sprintf("rate limit exceeded for %s", client)).
						WithDetails(map[string]any{
							"client":       client,
							"max_requests": counter.limit.MaxRequests,
							"window":       counter.limit.Window.String(),
						}).
						WithSuggestions("retry after the window resets")
				}
				return Pass("within security policy").
					WithDetails(map[string]any{"rate_remaining": remaining})
			}

			return Pass("within security policy")
		},
	}, nil
}

// AddSecurityRule compiles a security rule and registers it.
func (p *Pipeline) AddSecurityRule(s SecurityRule) error {
	rule, err := s.Compile()
	if err != nil {
		return err
	}
	return p.AddRule(rule)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if equalFold(s, v) {
			return true
		}
	}
	return false
}
