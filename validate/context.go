package validate

import (
	"time"

	"github.com/google/uuid"
)

// Context carries the request attributes a validation pass inspects. It is
// constructed fresh per call and never mutated by rules.
type Context struct {
	Endpoint   string            `json:"endpoint"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	Query      map[string]string `json:"query,omitempty"`
	Body       any               `json:"body,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	ClientAddr string            `json:"client_addr,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	RequestID  string            `json:"request_id"`
}

// NewContext creates a validation context with a fresh request ID and
// timestamp.
func NewContext(endpoint, method string) *Context {
	return &Context{
		Endpoint:  endpoint,
		Method:    method,
		Timestamp: time.Now(),
		RequestID: uuid.NewString(),
	}
}

// header returns a header value, trying the exact key then a lower-case
// fallback.
func (c *Context) header(key string) (string, bool) {
	if c.Headers == nil {
		return "", false
	}
	if v, ok := c.Headers[key]; ok {
		return v, true
	}
	for k, v := range c.Headers {
		if equalFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// equalFold is an ASCII-only case-insensitive compare, sufficient for
// header names.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
